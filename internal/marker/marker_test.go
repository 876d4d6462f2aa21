package marker

import (
	"image"
	"image/color"
	"testing"

	"github.com/makiuchi-d/gozxing"
	qrwriter "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/scanprep/internal/page"
)

// encodeQR renders a QR code for payload onto a white page, like a printed
// separator sheet.
func encodeQR(t *testing.T, payload string) image.Image {
	t.Helper()
	matrix, err := qrwriter.NewQRCodeWriter().Encode(payload, gozxing.BarcodeFormat_QR_CODE, 300, 300, nil)
	require.NoError(t, err)

	img := image.NewGray(image.Rect(0, 0, matrix.GetWidth(), matrix.GetHeight()))
	for y := 0; y < matrix.GetHeight(); y++ {
		for x := 0; x < matrix.GetWidth(); x++ {
			if matrix.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestScanDetectsSeparator(t *testing.T) {
	s := NewQRScanner("")
	img := &page.Image{Index: 0, Raster: encodeQR(t, DefaultPayload)}

	m := s.Scan(img)
	require.NotNil(t, m)
	assert.True(t, m.Valid)
	assert.Equal(t, DefaultPayload, m.Data)
}

func TestScanCustomPayload(t *testing.T) {
	s := NewQRScanner("BATCH_42")
	m := s.Scan(&page.Image{Index: 0, Raster: encodeQR(t, "BATCH_42")})
	require.NotNil(t, m)
	assert.Equal(t, "BATCH_42", m.Data)
}

func TestScanRejectsForeignPayload(t *testing.T) {
	// A QR code on a content page (an invoice link, say) is not a separator.
	s := NewQRScanner(DefaultPayload)
	m := s.Scan(&page.Image{Index: 0, Raster: encodeQR(t, "https://example.com/invoice/7")})
	assert.Nil(t, m)
}

func TestScanBlankPage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 300, 300))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	s := NewQRScanner(DefaultPayload)
	assert.Nil(t, s.Scan(&page.Image{Index: 0, Raster: img}))
}

func TestScanEmptyRaster(t *testing.T) {
	s := NewQRScanner(DefaultPayload)
	assert.Nil(t, s.Scan(nil))
	assert.Nil(t, s.Scan(&page.Image{Index: 1}))
}
