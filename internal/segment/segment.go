// Package segment turns the ordered stream of per-page verdicts into a
// segmentation plan: which pages to keep, and which output document each
// kept page belongs to.
package segment

import (
	"github.com/rs/zerolog/log"

	"github.com/local/scanprep/internal/page"
)

// State of the segmenter between pages.
type State int

const (
	// AwaitingContent means no output document is currently open.
	AwaitingContent State = iota
	// InDocument means an output document is being accumulated.
	InDocument
)

// Options are the two independent feature toggles.
type Options struct {
	BlankRemoval   bool
	PageSeparation bool
}

// Segmenter applies the drop/split policy to verdicts arriving in strict
// physical page order. It owns the only cross-page state in the pipeline and
// must be constructed fresh per run; it is not safe for concurrent use.
type Segmenter struct {
	opts    Options
	state   State
	current []int
	plan    page.Plan
	next    int // next expected page index, guards ordering
}

// New returns a segmenter in the AwaitingContent state.
func New(opts Options) *Segmenter {
	return &Segmenter{opts: opts, state: AwaitingContent}
}

// Push applies the transition rules to the verdict for the next page in
// physical order. Verdicts must arrive with contiguous, increasing indices.
func (s *Segmenter) Push(v page.Verdict) {
	if v.Index != s.next {
		// A gap here is a pipeline bug, not an input condition.
		log.Error().Int("expected", s.next).Int("got", v.Index).Msg("verdict out of order")
	}
	s.next = v.Index + 1

	// Separation outranks blank removal: separator sheets are usually
	// visually sparse, so checking blankness first would either keep a
	// marker page as content or drop it without splitting.
	if s.opts.PageSeparation && v.HasMarker() {
		log.Debug().Int("page", v.Index).Msg("separator page, closing document")
		s.finalize()
		return
	}

	if s.opts.BlankRemoval && v.IsBlank {
		log.Debug().Int("page", v.Index).Float64("ink_ratio", v.InkRatio).Msg("blank page dropped")
		return
	}

	if s.state == AwaitingContent {
		s.state = InDocument
		s.current = nil
	}
	s.current = append(s.current, v.Index)
}

// finalize closes the open document, if any. A separator seen while already
// awaiting content is a no-op so no empty document is ever emitted.
func (s *Segmenter) finalize() {
	if s.state == InDocument && len(s.current) > 0 {
		s.plan.Documents = append(s.plan.Documents, page.OutputDocument{Pages: s.current})
	}
	s.current = nil
	s.state = AwaitingContent
}

// Plan finalizes the open document and returns the completed plan.
func (s *Segmenter) Plan() page.Plan {
	s.finalize()
	return s.plan
}
