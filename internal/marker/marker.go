// Package marker detects separator pages by decoding machine-readable codes
// printed on them. Detection is conservative: a page counts as a separator
// only when exactly one code decodes and its payload matches the configured
// separator value.
package marker

import (
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/rs/zerolog/log"

	"github.com/local/scanprep/internal/page"
)

// DefaultPayload is the separator value printed on stock separator sheets.
const DefaultPayload = "SCANPREP_SEP"

// Scanner is the injectable separator-detection strategy. Implementations
// must be deterministic for a given image and safe for concurrent use.
type Scanner interface {
	// Scan returns the separator payload found on the page, or nil when the
	// page carries no valid, unambiguous marker.
	Scan(img *page.Image) *page.MarkerPayload
}

// QRScanner decodes QR codes and accepts only an exact payload match.
type QRScanner struct {
	payload string
	hints   map[gozxing.DecodeHintType]interface{}
}

// NewQRScanner returns a scanner matching the given separator payload.
// An empty payload falls back to DefaultPayload.
func NewQRScanner(payload string) *QRScanner {
	if payload == "" {
		payload = DefaultPayload
	}
	return &QRScanner{
		payload: payload,
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Scan decodes all QR codes on the page. Zero results, multiple results, or
// a payload mismatch all resolve to "no marker" rather than guessing, so
// visual noise that coincidentally resembles a code never truncates a
// document.
func (s *QRScanner) Scan(img *page.Image) *page.MarkerPayload {
	if img.Empty() {
		return nil
	}

	src := gozxing.NewLuminanceSourceFromImage(img.Raster)
	bmp, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(src))
	if err != nil {
		log.Debug().Err(err).Int("page", img.Index).Msg("binarize for decode failed")
		return nil
	}

	results, err := qrcode.NewQRCodeMultiReader().DecodeMultiple(bmp, s.hints)
	if err != nil || len(results) == 0 {
		// NotFound is the normal case for content pages.
		return nil
	}
	if len(results) > 1 {
		log.Debug().
			Int("page", img.Index).
			Int("codes", len(results)).
			Msg("ambiguous decode, ignoring markers")
		return nil
	}

	data := results[0].GetText()
	if data != s.payload {
		log.Debug().Int("page", img.Index).Str("data", data).Msg("code payload is not a separator")
		return nil
	}

	log.Debug().Int("page", img.Index).Msg("separator detected")
	return &page.MarkerPayload{Data: data, Valid: true}
}
