package segment

import "github.com/local/scanprep/internal/page"

// Collector reorders verdicts arriving from a concurrent worker pool before
// they reach the segmenter. The split/keep decision is order-dependent, so
// verdicts are buffered by index and released only when the run of indices
// is contiguous.
type Collector struct {
	seg     *Segmenter
	pending map[int]page.Verdict
	next    int
}

// NewCollector wraps seg with a reordering buffer starting at page 0.
func NewCollector(seg *Segmenter) *Collector {
	return &Collector{seg: seg, pending: make(map[int]page.Verdict)}
}

// Add buffers v and flushes every verdict that is now contiguous.
func (c *Collector) Add(v page.Verdict) {
	c.pending[v.Index] = v
	for {
		next, ok := c.pending[c.next]
		if !ok {
			return
		}
		delete(c.pending, c.next)
		c.seg.Push(next)
		c.next++
	}
}

// Pending returns the number of buffered, not-yet-contiguous verdicts.
func (c *Collector) Pending() int { return len(c.pending) }

// Plan finalizes the underlying segmenter. All expected verdicts must have
// been added; buffered stragglers indicate a lost page and are dropped.
func (c *Collector) Plan() page.Plan { return c.seg.Plan() }
