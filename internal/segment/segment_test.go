package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/scanprep/internal/page"
)

func content(idx int) page.Verdict {
	return page.Verdict{Index: idx, InkRatio: 0.05}
}

func blank(idx int) page.Verdict {
	return page.Verdict{Index: idx, IsBlank: true}
}

func sep(idx int) page.Verdict {
	return page.Verdict{Index: idx, Marker: &page.MarkerPayload{Data: "SCANPREP_SEP", Valid: true}}
}

func pagesOf(p page.Plan) [][]int {
	out := make([][]int, len(p.Documents))
	for i, d := range p.Documents {
		out[i] = d.Pages
	}
	return out
}

func TestSegmenterPassThrough(t *testing.T) {
	s := New(Options{})
	for i := 0; i < 5; i++ {
		v := content(i)
		if i == 1 {
			v = blank(i)
		}
		if i == 3 {
			v = sep(i)
		}
		s.Push(v)
	}
	// Both features off: every page survives, including blanks and markers.
	assert.Equal(t, [][]int{{0, 1, 2, 3, 4}}, pagesOf(s.Plan()))
}

func TestSegmenterBlankRemovalOnly(t *testing.T) {
	s := New(Options{BlankRemoval: true})
	s.Push(content(0))
	s.Push(blank(1))
	s.Push(blank(2))
	s.Push(content(3))
	assert.Equal(t, [][]int{{0, 3}}, pagesOf(s.Plan()))
}

func TestSegmenterSeparation(t *testing.T) {
	// content content sep content sep content content
	s := New(Options{BlankRemoval: true, PageSeparation: true})
	s.Push(content(0))
	s.Push(content(1))
	s.Push(sep(2))
	s.Push(content(3))
	s.Push(sep(4))
	s.Push(content(5))
	s.Push(content(6))
	assert.Equal(t, [][]int{{0, 1}, {3}, {5, 6}}, pagesOf(s.Plan()))
}

func TestSegmenterAllDropped(t *testing.T) {
	s := New(Options{BlankRemoval: true, PageSeparation: true})
	s.Push(blank(0))
	s.Push(sep(1))
	s.Push(blank(2))
	plan := s.Plan()
	assert.Empty(t, plan.Documents)
	assert.Equal(t, 0, plan.TotalPages())
}

func TestSegmenterConsecutiveSeparators(t *testing.T) {
	s := New(Options{PageSeparation: true})
	s.Push(content(0))
	s.Push(sep(1))
	s.Push(sep(2))
	s.Push(sep(3))
	s.Push(content(4))
	// Back-to-back separators never emit empty documents.
	assert.Equal(t, [][]int{{0}, {4}}, pagesOf(s.Plan()))
}

func TestSegmenterLeadingAndTrailingSeparators(t *testing.T) {
	s := New(Options{PageSeparation: true})
	s.Push(sep(0))
	s.Push(content(1))
	s.Push(sep(2))
	assert.Equal(t, [][]int{{1}}, pagesOf(s.Plan()))
}

func TestSegmenterBlankRunDoesNotSplit(t *testing.T) {
	s := New(Options{BlankRemoval: true, PageSeparation: true})
	s.Push(content(0))
	s.Push(blank(1))
	s.Push(blank(2))
	s.Push(content(3))
	// A run of blanks inside a document is dropped but never closes it.
	assert.Equal(t, [][]int{{0, 3}}, pagesOf(s.Plan()))
}

func TestSegmenterMarkerOutranksBlank(t *testing.T) {
	// A separator sheet is visually sparse; it must split, not vanish as a
	// blank page.
	s := New(Options{BlankRemoval: true, PageSeparation: true})
	s.Push(content(0))
	v := sep(1)
	v.IsBlank = true
	s.Push(v)
	s.Push(content(2))
	assert.Equal(t, [][]int{{0}, {2}}, pagesOf(s.Plan()))
}

func TestSegmenterMarkerIgnoredWhenSeparationOff(t *testing.T) {
	s := New(Options{BlankRemoval: true})
	s.Push(content(0))
	s.Push(sep(1))
	s.Push(content(2))
	// Without separation the marker page is ordinary content.
	assert.Equal(t, [][]int{{0, 1, 2}}, pagesOf(s.Plan()))
}

func TestSegmenterIndicesStrictlyIncreasing(t *testing.T) {
	s := New(Options{BlankRemoval: true, PageSeparation: true})
	for i := 0; i < 20; i++ {
		switch i % 5 {
		case 2:
			s.Push(blank(i))
		case 4:
			s.Push(sep(i))
		default:
			s.Push(content(i))
		}
	}
	plan := s.Plan()
	require.NotEmpty(t, plan.Documents)
	last := -1
	for _, doc := range plan.Documents {
		require.NotEmpty(t, doc.Pages)
		for _, p := range doc.Pages {
			assert.Greater(t, p, last)
			last = p
		}
	}
}

func TestPlanIsIdempotent(t *testing.T) {
	s := New(Options{PageSeparation: true})
	s.Push(content(0))
	s.Push(sep(1))
	first := s.Plan()
	second := s.Plan()
	assert.Equal(t, first, second)
}
