// Package page holds the shared data model for the scan preparation
// pipeline: rasterized pages, per-page verdicts, and the segmentation plan.
package page

import "image"

// Image is a rasterized page produced by the renderer. It is consumed once
// by classification and never retained for the whole document.
type Image struct {
	Index  int // 0-based position in the source document
	Raster image.Image
}

// Empty reports whether the raster is missing or has no pixels.
func (im *Image) Empty() bool {
	if im == nil || im.Raster == nil {
		return true
	}
	b := im.Raster.Bounds()
	return b.Dx() <= 0 || b.Dy() <= 0
}

// MarkerPayload is a decoded separator marker found on a page.
type MarkerPayload struct {
	Data  string `json:"data"`
	Valid bool   `json:"valid"`
}

// Verdict is the immutable classification record for a single page.
type Verdict struct {
	Index     int            `json:"index"`
	IsBlank   bool           `json:"is_blank"`
	InkRatio  float64        `json:"ink_ratio"`
	TextChars int            `json:"text_chars"`
	Marker    *MarkerPayload `json:"marker,omitempty"`
	// RenderFailed records that the verdict came from the fail-safe path
	// (unreadable page treated as blank) rather than a real raster.
	RenderFailed bool `json:"render_failed,omitempty"`
}

// HasMarker reports whether the page carries a valid separator marker.
func (v Verdict) HasMarker() bool {
	return v.Marker != nil && v.Marker.Valid
}

// OutputDocument is one contiguous run of retained source page indices
// destined for a single output file. Indices are strictly increasing.
type OutputDocument struct {
	Pages []int `json:"pages"`
}

// Plan is the ordered set of output documents computed for one input.
// An input whose every page was dropped yields an empty plan.
type Plan struct {
	Documents []OutputDocument `json:"documents"`
}

// TotalPages returns the number of retained pages across all documents.
func (p Plan) TotalPages() int {
	n := 0
	for _, d := range p.Documents {
		n += len(d.Pages)
	}
	return n
}
