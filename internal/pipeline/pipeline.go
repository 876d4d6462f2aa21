// Package pipeline runs the page preparation pipeline: concurrent per-page
// rendering and classification feeding a strictly ordered segmenter.
package pipeline

import (
	"context"
	"sync"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/local/scanprep/internal/classify"
	"github.com/local/scanprep/internal/config"
	"github.com/local/scanprep/internal/marker"
	"github.com/local/scanprep/internal/metrics"
	"github.com/local/scanprep/internal/page"
	"github.com/local/scanprep/internal/render"
	"github.com/local/scanprep/internal/segment"
)

// Pipeline classifies pages and segments a document. The classifier and
// scanner are injectable strategies; both must be safe for concurrent use.
type Pipeline struct {
	classifier classify.Classifier
	scanner    marker.Scanner

	// Observer, when set, receives every verdict as classification
	// completes (not necessarily in page order). Used by the service mode
	// to persist per-page diagnostics.
	Observer func(page.Verdict)
}

// New builds a pipeline around the given strategies.
func New(classifier classify.Classifier, scanner marker.Scanner) *Pipeline {
	return &Pipeline{classifier: classifier, scanner: scanner}
}

// Default builds a pipeline with the standard ink-ratio classifier and the
// QR separator scanner for cfg's marker payload.
func Default(cfg config.RunConfig) *Pipeline {
	return New(classify.NewInkRatio(), marker.NewQRScanner(cfg.MarkerPayload))
}

// Process classifies every page of the document behind r and returns the
// segmentation plan. Pages are rendered and classified concurrently across
// a bounded worker pool; verdicts are reordered by page index before the
// sequential segmentation stage. Single-page render failures resolve to
// blank verdicts and never abort the run; cancellation via ctx does.
func (p *Pipeline) Process(ctx context.Context, r render.Renderer, cfg config.RunConfig) (page.Plan, error) {
	if err := cfg.Validate(); err != nil {
		return page.Plan{}, err
	}

	total, err := r.PageCount()
	if err != nil {
		return page.Plan{}, err
	}

	collector := segment.NewCollector(segment.New(segment.Options{
		BlankRemoval:   cfg.BlankRemoval,
		PageSeparation: cfg.PageSeparation,
	}))

	if total == 0 {
		return collector.Plan(), nil
	}

	workers := cfg.EffectiveWorkers()
	if workers > total {
		workers = total
	}

	jobs := make(chan int)
	results := make(chan page.Verdict, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					return
				}
				results <- p.classifyPage(ctx, r, cfg, idx)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < total; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for v := range results {
		if p.Observer != nil {
			p.Observer(v)
		}
		collector.Add(v)
	}

	if err := ctx.Err(); err != nil {
		return page.Plan{}, err
	}

	plan := collector.Plan()
	metrics.AddDocumentsEmitted(len(plan.Documents))
	log.Info().
		Int("pages", total).
		Int("retained", plan.TotalPages()).
		Int("documents", len(plan.Documents)).
		Msg("segmentation complete")

	return plan, nil
}

// classifyPage produces the verdict for a single page. Every dropped page
// must be attributable to a specific rule, so render failures are recorded
// on the verdict rather than swallowed.
func (p *Pipeline) classifyPage(ctx context.Context, r render.Renderer, cfg config.RunConfig, idx int) page.Verdict {
	// With both features off the pipeline is a pass-through; skip the
	// render entirely so a pass-through run survives even unrenderable
	// pages.
	if !cfg.BlankRemoval && !cfg.PageSeparation {
		metrics.IncPage("retained")
		return page.Verdict{Index: idx}
	}

	img, err := r.Render(ctx, idx)
	if err != nil {
		// Fail-safe: a corrupt render is assumed to be a blank back side.
		log.Warn().Err(err).Int("page", idx).Msg("render failed, treating page as blank")
		metrics.IncRenderFailure()
		metrics.IncPage("blank")
		return page.Verdict{Index: idx, IsBlank: true, RenderFailed: true}
	}

	v := page.Verdict{Index: idx}

	if cfg.PageSeparation {
		v.Marker = p.scanner.Scan(img)
	}

	if cfg.BlankRemoval && !v.HasMarker() {
		text, terr := r.Text(ctx, idx)
		if terr != nil {
			log.Warn().Err(terr).Int("page", idx).Msg("text layer unavailable")
		}
		v.TextChars = countAlnum(text)

		threshold := cfg.BlankThreshold
		if v.TextChars == 0 {
			threshold = cfg.NoTextBlankThreshold
		}
		res := p.classifier.Classify(img, threshold)
		v.InkRatio = res.InkRatio
		// A page with embedded text content is never blank, whatever the
		// raster looks like.
		v.IsBlank = res.IsBlank && v.TextChars == 0
	}

	switch {
	case v.HasMarker():
		metrics.IncPage("marker")
	case v.IsBlank:
		metrics.IncPage("blank")
	default:
		metrics.IncPage("retained")
	}
	return v
}

// countAlnum counts letters and digits, ignoring whitespace and punctuation
// artifacts that PDF text extraction tends to produce on empty pages.
func countAlnum(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
