// Package render rasterizes PDF pages through MuPDF (go-fitz) and exposes
// the embedded text layer. It is the pipeline's view of the PDF renderer.
package render

import (
	"context"
	"fmt"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/scanprep/internal/page"
)

// DefaultDPI is the raster resolution used when none is configured. Blank
// detection and QR decoding are both reliable at 150 dpi and pages render
// several times faster than at print resolution.
const DefaultDPI = 150

// RenderError reports that a single page could not be rasterized. The
// pipeline resolves it to a blank verdict and continues.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer produces rasters and text for pages of one source document.
// Implementations must be safe for concurrent use across pages.
type Renderer interface {
	PageCount() (int, error)
	Render(ctx context.Context, index int) (*page.Image, error)
	Text(ctx context.Context, index int) (string, error)
}

// FitzRenderer renders through go-fitz. Each call opens its own document
// handle: fitz documents are not safe for concurrent use, and per-call opens
// let the worker pool render pages independently.
type FitzRenderer struct {
	path string
	dpi  int
}

// NewFitz returns a renderer for the PDF at path. A non-positive dpi falls
// back to DefaultDPI.
func NewFitz(path string, dpi int) *FitzRenderer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &FitzRenderer{path: path, dpi: dpi}
}

// PageCount returns the number of pages in the source document.
func (r *FitzRenderer) PageCount() (int, error) {
	doc, err := fitz.New(r.path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// Render rasterizes the page at index (0-based) at the configured DPI.
func (r *FitzRenderer) Render(ctx context.Context, index int) (*page.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.New(r.path)
	if err != nil {
		return nil, &RenderError{Page: index, Err: err}
	}
	defer doc.Close()

	img, err := doc.ImageDPI(index, float64(r.dpi))
	if err != nil {
		return nil, &RenderError{Page: index, Err: err}
	}

	log.Debug().
		Int("page", index).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Int("dpi", r.dpi).
		Msg("rendered page")

	return &page.Image{Index: index, Raster: img}, nil
}

// Text returns the embedded text layer of the page at index, or an empty
// string when the page has none.
func (r *FitzRenderer) Text(ctx context.Context, index int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc, err := fitz.New(r.path)
	if err != nil {
		return "", &RenderError{Page: index, Err: err}
	}
	defer doc.Close()

	text, err := doc.Text(index)
	if err != nil {
		return "", &RenderError{Page: index, Err: err}
	}
	return text, nil
}
