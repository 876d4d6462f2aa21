package pipeline

import (
	"context"
	"errors"
	"image"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/scanprep/internal/classify"
	"github.com/local/scanprep/internal/config"
	"github.com/local/scanprep/internal/marker"
	"github.com/local/scanprep/internal/page"
)

// fakeRenderer serves synthetic pages, optionally failing some renders and
// jittering latency to exercise out-of-order completion.
type fakeRenderer struct {
	pages  int
	fail   map[int]bool
	text   map[int]string
	jitter time.Duration
}

func (f *fakeRenderer) PageCount() (int, error) { return f.pages, nil }

func (f *fakeRenderer) Render(ctx context.Context, index int) (*page.Image, error) {
	if f.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(f.jitter))))
	}
	if f.fail[index] {
		return nil, errors.New("broken page stream")
	}
	return &page.Image{Index: index, Raster: image.NewGray(image.Rect(0, 0, 8, 8))}, nil
}

func (f *fakeRenderer) Text(ctx context.Context, index int) (string, error) {
	return f.text[index], nil
}

// fakeClassifier marks the configured pages blank.
type fakeClassifier struct {
	blank map[int]bool
}

func (f *fakeClassifier) Classify(img *page.Image, threshold float64) classify.Result {
	if f.blank[img.Index] {
		return classify.Result{InkRatio: 0.001, IsBlank: true}
	}
	return classify.Result{InkRatio: 0.05}
}

// fakeScanner marks the configured pages as separators.
type fakeScanner struct {
	markers map[int]bool
}

func (f *fakeScanner) Scan(img *page.Image) *page.MarkerPayload {
	if f.markers[img.Index] {
		return &page.MarkerPayload{Data: marker.DefaultPayload, Valid: true}
	}
	return nil
}

func testConfig() config.RunConfig {
	cfg := config.DefaultRun()
	cfg.Workers = 4
	return cfg
}

func pagesOf(p page.Plan) [][]int {
	out := make([][]int, len(p.Documents))
	for i, d := range p.Documents {
		out[i] = d.Pages
	}
	return out
}

func TestProcessSeparationAndBlanks(t *testing.T) {
	r := &fakeRenderer{pages: 8}
	pl := New(
		&fakeClassifier{blank: map[int]bool{3: true}},
		&fakeScanner{markers: map[int]bool{2: true, 5: true}},
	)

	plan, err := pl.Process(context.Background(), r, testConfig())
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1}, {4}, {6, 7}}, pagesOf(plan))
}

func TestProcessPassThroughSkipsRender(t *testing.T) {
	// Every render fails, yet with both features off the input survives.
	fail := map[int]bool{}
	for i := 0; i < 5; i++ {
		fail[i] = true
	}
	r := &fakeRenderer{pages: 5, fail: fail}

	cfg := testConfig()
	cfg.BlankRemoval = false
	cfg.PageSeparation = false

	plan, err := New(&fakeClassifier{}, &fakeScanner{}).Process(context.Background(), r, cfg)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1, 2, 3, 4}}, pagesOf(plan))
}

func TestProcessRenderFailureDropsPage(t *testing.T) {
	r := &fakeRenderer{pages: 4, fail: map[int]bool{1: true}}
	pl := New(&fakeClassifier{}, &fakeScanner{})

	var mu sync.Mutex
	failed := map[int]bool{}
	pl.Observer = func(v page.Verdict) {
		mu.Lock()
		defer mu.Unlock()
		if v.RenderFailed {
			failed[v.Index] = true
		}
	}

	plan, err := pl.Process(context.Background(), r, testConfig())
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 2, 3}}, pagesOf(plan))
	assert.Equal(t, map[int]bool{1: true}, failed)
}

func TestProcessTextLayerOverridesBlankRaster(t *testing.T) {
	// A page can rasterize as near-white (light grey print) while carrying a
	// real text layer; the text wins.
	r := &fakeRenderer{pages: 2, text: map[int]string{1: "Invoice 2024-17"}}
	pl := New(&fakeClassifier{blank: map[int]bool{1: true}}, &fakeScanner{})

	plan, err := pl.Process(context.Background(), r, testConfig())
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1}}, pagesOf(plan))
}

func TestProcessOrderStableUnderConcurrency(t *testing.T) {
	blanks := map[int]bool{}
	markers := map[int]bool{}
	for i := 0; i < 60; i++ {
		switch i % 6 {
		case 2:
			blanks[i] = true
		case 5:
			markers[i] = true
		}
	}
	want := [][]int{}
	var cur []int
	for i := 0; i < 60; i++ {
		switch {
		case markers[i]:
			if len(cur) > 0 {
				want = append(want, cur)
				cur = nil
			}
		case blanks[i]:
		default:
			cur = append(cur, i)
		}
	}
	if len(cur) > 0 {
		want = append(want, cur)
	}

	r := &fakeRenderer{pages: 60, jitter: 2 * time.Millisecond}
	cfg := testConfig()
	cfg.Workers = 8

	for trial := 0; trial < 3; trial++ {
		plan, err := New(&fakeClassifier{blank: blanks}, &fakeScanner{markers: markers}).
			Process(context.Background(), r, cfg)
		require.NoError(t, err)
		assert.Equal(t, want, pagesOf(plan))
	}
}

func TestProcessEmptyDocument(t *testing.T) {
	plan, err := New(&fakeClassifier{}, &fakeScanner{}).
		Process(context.Background(), &fakeRenderer{pages: 0}, testConfig())
	require.NoError(t, err)
	assert.Empty(t, plan.Documents)
}

func TestProcessAllPagesDropped(t *testing.T) {
	blanks := map[int]bool{0: true, 1: true, 2: true}
	plan, err := New(&fakeClassifier{blank: blanks}, &fakeScanner{}).
		Process(context.Background(), &fakeRenderer{pages: 3}, testConfig())
	require.NoError(t, err)
	assert.Empty(t, plan.Documents)
}

func TestProcessCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&fakeClassifier{}, &fakeScanner{}).
		Process(ctx, &fakeRenderer{pages: 100, jitter: time.Millisecond}, testConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BlankThreshold = 1.5

	_, err := New(&fakeClassifier{}, &fakeScanner{}).
		Process(context.Background(), &fakeRenderer{pages: 1}, cfg)
	var cerr *config.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "blank_threshold", cerr.Field)
}
