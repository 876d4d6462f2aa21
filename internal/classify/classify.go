// Package classify decides whether a rasterized page carries meaningful
// content. The metric is an ink ratio: the fraction of pixels darker than a
// luminance cutoff after margin cropping and despeckling.
package classify

import (
	"image"
	"image/color"

	"github.com/rs/zerolog/log"

	"github.com/local/scanprep/internal/page"
)

const (
	// Margins cropped off before measuring. Staples, folds and punch holes
	// tend to be confined to the left and right margins; page borders show
	// up at the top and bottom.
	SideMarginFrac = 0.10
	EdgeMarginFrac = 0.05

	// Offset below the mean luminance used as the ink-vs-paper cutoff.
	// Scanner background noise sits near the mean; print sits well below it.
	BinarizeOffset = 50

	// Brightening applied before binarization, matching a scan of a white
	// sheet under imperfect lighting.
	BrightenFactor = 1.5
)

// Result carries the metric alongside the blank verdict so callers can keep
// it for diagnostics.
type Result struct {
	InkRatio float64
	IsBlank  bool
}

// Classifier is the injectable blank-detection strategy. Implementations
// must be pure functions of their inputs and safe for concurrent use.
type Classifier interface {
	Classify(img *page.Image, threshold float64) Result
}

// InkRatio is the default Classifier.
type InkRatio struct{}

// NewInkRatio returns the default ink-ratio classifier.
func NewInkRatio() *InkRatio { return &InkRatio{} }

// Classify computes the ink ratio of img and compares it against threshold.
// An unreadable or zero-sized image is blank: a corrupt render is assumed to
// originate from a physically blank back side, so the fail-safe leans toward
// removal.
func (c *InkRatio) Classify(img *page.Image, threshold float64) Result {
	if img.Empty() {
		idx := -1
		if img != nil {
			idx = img.Index
		}
		log.Debug().Int("page", idx).Msg("empty raster, treating as blank")
		return Result{InkRatio: 0, IsBlank: true}
	}

	gray := toGray(img.Raster)
	gray = cropMargins(gray)
	binary := binarize(gray)
	binary = despeckle(binary)

	bounds := binary.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total <= 0 {
		return Result{InkRatio: 0, IsBlank: true}
	}

	ink := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if binary.GrayAt(x, y).Y == 0 {
				ink++
			}
		}
	}

	ratio := float64(ink) / float64(total)
	log.Debug().
		Int("page", img.Index).
		Float64("ink_ratio", ratio).
		Float64("threshold", threshold).
		Msg("classified page")

	return Result{InkRatio: ratio, IsBlank: ratio < threshold}
}

// toGray converts an image to grayscale with brightening applied.
func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			v := float64(g.Y) * BrightenFactor
			if v > 255 {
				v = 255
			}
			gray.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}

	return gray
}

// cropMargins removes the side and edge margins.
func cropMargins(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	dx := int(float64(bounds.Dx()) * SideMarginFrac)
	dy := int(float64(bounds.Dy()) * EdgeMarginFrac)
	inner := image.Rect(bounds.Min.X+dx, bounds.Min.Y+dy, bounds.Max.X-dx, bounds.Max.Y-dy)
	if inner.Empty() {
		return img
	}
	return img.SubImage(inner).(*image.Gray)
}

// binarize thresholds against the mean luminance minus a fixed offset,
// separating printed marks from scanner background.
func binarize(img *image.Gray) *image.Gray {
	bounds := img.Bounds()

	var sum uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += uint64(img.GrayAt(x, y).Y)
		}
	}
	n := bounds.Dx() * bounds.Dy()
	if n <= 0 {
		return img
	}
	mean := int(sum / uint64(n))
	cutoff := mean - BinarizeOffset
	if cutoff < 0 {
		cutoff = 0
	}

	binary := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if int(img.GrayAt(x, y).Y) > cutoff {
				binary.SetGray(x, y, color.Gray{Y: 255})
			} else {
				binary.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return binary
}

// despeckle erodes single-pixel ink specks with a 3x3 minimum filter pass in
// the white direction: a dark pixel survives only if it has a dark neighbor.
func despeckle(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.GrayAt(x, y).Y != 0 {
				out.SetGray(x, y, color.Gray{Y: 255})
				continue
			}
			if hasDarkNeighbor(img, x, y, bounds) {
				out.SetGray(x, y, color.Gray{Y: 0})
			} else {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

func hasDarkNeighbor(img *image.Gray, px, py int, bounds image.Rectangle) bool {
	for y := py - 1; y <= py+1; y++ {
		for x := px - 1; x <= px+1; x++ {
			if x == px && y == py {
				continue
			}
			if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			if img.GrayAt(x, y).Y == 0 {
				return true
			}
		}
	}
	return false
}
