package classify

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/local/scanprep/internal/page"
)

func whitePage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func TestClassifyWhitePageIsBlank(t *testing.T) {
	c := NewInkRatio()
	res := c.Classify(&page.Image{Index: 0, Raster: whitePage(500, 500)}, 0.005)
	assert.True(t, res.IsBlank)
	assert.Zero(t, res.InkRatio)
}

func TestClassifyPrintedBlockIsContent(t *testing.T) {
	img := whitePage(500, 500)
	for y := 200; y < 300; y++ {
		for x := 200; x < 300; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	c := NewInkRatio()
	res := c.Classify(&page.Image{Index: 0, Raster: img}, 0.005)
	assert.False(t, res.IsBlank)
	assert.Greater(t, res.InkRatio, 0.005)
}

func TestClassifyIgnoresMarginNoise(t *testing.T) {
	// Punch holes and fold shadows live in the cropped margins.
	img := whitePage(500, 500)
	for y := 0; y < 500; y++ {
		for x := 0; x < 40; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
			img.SetGray(499-x, y, color.Gray{Y: 0})
		}
	}
	c := NewInkRatio()
	res := c.Classify(&page.Image{Index: 0, Raster: img}, 0.005)
	assert.True(t, res.IsBlank)
}

func TestClassifyDespecklesIsolatedPixels(t *testing.T) {
	// Scanner dust: isolated dark pixels with no dark neighbor.
	img := whitePage(500, 500)
	for y := 100; y < 400; y += 3 {
		for x := 100; x < 400; x += 3 {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	c := NewInkRatio()
	res := c.Classify(&page.Image{Index: 0, Raster: img}, 0.005)
	assert.True(t, res.IsBlank)
	assert.Zero(t, res.InkRatio)
}

func TestClassifyEmptyRasterFailsSafeToBlank(t *testing.T) {
	c := NewInkRatio()

	res := c.Classify(nil, 0.005)
	assert.True(t, res.IsBlank)

	res = c.Classify(&page.Image{Index: 3}, 0.005)
	assert.True(t, res.IsBlank)

	res = c.Classify(&page.Image{Index: 4, Raster: image.NewGray(image.Rect(0, 0, 0, 0))}, 0.005)
	assert.True(t, res.IsBlank)
}

func TestClassifyThresholdIsStrict(t *testing.T) {
	// A ratio equal to the threshold is content; only strictly below drops.
	c := NewInkRatio()
	res := c.Classify(&page.Image{Index: 0, Raster: whitePage(500, 500)}, 0)
	assert.Zero(t, res.InkRatio)
	assert.False(t, res.IsBlank)
}
