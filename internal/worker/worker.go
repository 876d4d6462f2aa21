// Package worker consumes jobs from the queue and runs the page
// preparation pipeline on each.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/scanprep/internal/config"
	"github.com/local/scanprep/internal/converter"
	"github.com/local/scanprep/internal/filetype"
	"github.com/local/scanprep/internal/job"
	"github.com/local/scanprep/internal/metrics"
	"github.com/local/scanprep/internal/page"
	"github.com/local/scanprep/internal/pdfout"
	"github.com/local/scanprep/internal/pipeline"
	"github.com/local/scanprep/internal/queue"
	"github.com/local/scanprep/internal/render"
	"github.com/local/scanprep/internal/storage"
	"github.com/local/scanprep/internal/store"
)

// Transient input failures are retried with a growing delay through the
// queue's delayed set before the job lands in the DLQ.
const (
	maxAttempts    = 3
	retryBaseDelay = 30 * time.Second
)

func retryDelay(attempt int) time.Duration {
	return time.Duration(attempt) * retryBaseDelay
}

func shouldRetry(err error, attempt int) bool {
	return errors.Is(err, errTransientInput) && attempt < maxAttempts-1
}

// Pool runs N concurrent job consumers against the queue.
type Pool struct {
	Queue    *queue.RedisQueue
	Status   *store.RedisStatus
	Verdicts *store.VerdictStore
	Storage  *storage.S3Client // nil when no bucket is configured
	Convert  *converter.LibreOffice
	Cfg      config.Config
}

// Run blocks until ctx is cancelled, then waits for in-flight jobs.
func (p *Pool) Run(ctx context.Context) {
	n := p.Cfg.Worker.Concurrency
	if n <= 0 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		consumer := fmt.Sprintf("worker-%d-%s", i, uuid.NewString()[:8])
		go func() {
			defer wg.Done()
			p.consume(ctx, consumer)
		}()
	}

	go p.reportDepths(ctx)
	wg.Wait()
}

func (p *Pool) consume(ctx context.Context, consumer string) {
	for {
		if ctx.Err() != nil {
			return
		}
		msgID, payload, err := p.Queue.Dequeue(ctx, consumer, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("consumer", consumer).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if payload == nil {
			continue
		}

		j, err := job.Decode(payload)
		if err != nil {
			log.Error().Err(err).Str("msg_id", msgID).Msg("malformed job, sending to dlq")
			_ = p.Queue.AddDLQ(ctx, payload, err.Error())
			_ = p.Queue.Ack(ctx, msgID)
			continue
		}

		start := time.Now()
		result := p.handle(ctx, j, payload)
		metrics.ObserveJob(result, time.Since(start))
		_ = p.Queue.Ack(ctx, msgID)
	}
}

// handle processes one job end to end and returns the metrics result label.
func (p *Pool) handle(ctx context.Context, j job.Job, raw []byte) string {
	logger := log.With().Str("job_id", j.ID).Str("source", j.SourceKind()).Logger()

	if cancelled, _ := p.Queue.IsCancelled(ctx, j.ID); cancelled {
		logger.Info().Msg("job cancelled before start")
		p.setStatus(ctx, j.ID, "cancelled", 0, "cancelled before processing", nil)
		return "cancelled"
	}

	jctx, cancel := context.WithTimeout(ctx, p.Cfg.Worker.JobTimeout)
	defer cancel()
	go p.watchCancellation(jctx, cancel, j.ID)

	now := time.Now()
	_ = p.Status.Set(jctx, j.ID, store.Status{Status: "processing", Message: "resolving input", Start: &now})

	if err := p.process(jctx, j, logger); err != nil {
		if cancelled, _ := p.Queue.IsCancelled(ctx, j.ID); cancelled {
			logger.Info().Msg("job cancelled during processing")
			p.setStatus(ctx, j.ID, "cancelled", 0, "cancelled by request", nil)
			return "cancelled"
		}
		if shouldRetry(err, j.Attempt) && ctx.Err() == nil {
			j.Attempt++
			if payload, encErr := j.Encode(); encErr == nil {
				delay := retryDelay(j.Attempt)
				if qErr := p.Queue.EnqueueDelayed(ctx, payload, time.Now().Add(delay)); qErr == nil {
					logger.Warn().Err(err).Int("attempt", j.Attempt).Dur("delay", delay).Msg("transient input failure, job requeued")
					p.setStatus(ctx, j.ID, "queued",
						0, fmt.Sprintf("input unavailable, retry %d of %d scheduled", j.Attempt, maxAttempts-1), nil)
					return "retried"
				}
			}
		}
		if jctx.Err() != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("job timed out")
		} else {
			logger.Error().Err(err).Msg("job failed")
		}
		_ = p.Queue.AddDLQ(ctx, raw, err.Error())
		p.setStatus(ctx, j.ID, "failed", 0, err.Error(), nil)
		return "failed"
	}
	return "success"
}

// watchCancellation cancels the job context when a cancel request arrives
// mid-run.
func (p *Pool) watchCancellation(ctx context.Context, cancel context.CancelFunc, jobID string) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cancelled, _ := p.Queue.IsCancelled(ctx, jobID); cancelled {
				cancel()
				return
			}
		}
	}
}

func (p *Pool) process(ctx context.Context, j job.Job, logger zerolog.Logger) error {
	localPath, cleanup, err := p.resolveInput(ctx, j)
	if err != nil {
		return fmt.Errorf("resolve input: %w", err)
	}
	defer cleanup()

	pdfPath, convCleanup, err := p.ensurePDF(ctx, localPath)
	if err != nil {
		return err
	}
	defer convCleanup()

	p.setStatus(ctx, j.ID, "processing", 10, "classifying pages", nil)

	if err := j.Run.Validate(); err != nil {
		return err
	}

	r := render.NewFitz(pdfPath, j.Run.RenderDPI)
	totalPages, err := r.PageCount()
	if err != nil {
		return err
	}

	pl := pipeline.Default(j.Run)
	pl.Observer = func(v page.Verdict) {
		_ = p.Verdicts.Save(ctx, j.ID, v)
	}

	plan, err := pl.Process(ctx, r, j.Run)
	if err != nil {
		return err
	}

	p.setStatus(ctx, j.ID, "processing", 70, "writing output documents", nil)

	base := j.FileName
	if base == "" {
		base = filepath.Base(pdfPath)
	}
	outDir := filepath.Join(p.Cfg.Server.ResultDir, j.ID)
	writer := pdfout.New(pdfPath)
	paths, err := writer.EmitPlan(plan, outDir, base)
	if err != nil {
		return err
	}

	meta := map[string]interface{}{
		"documents":   len(paths),
		"pages":       plan.TotalPages(),
		"pages_total": totalPages,
	}

	if j.SourceKind() == job.SourceS3 && p.Storage != nil {
		urls, err := p.archive(ctx, j, paths)
		if err != nil {
			return err
		}
		meta["s3_urls"] = urls
	} else {
		files := make([]string, len(paths))
		for i, pth := range paths {
			files[i] = filepath.Base(pth)
		}
		meta["files"] = files
	}

	end := time.Now()
	st := store.Status{Status: "completed", Progress: 100, Message: "done", End: &end, Metadata: meta}
	if err := p.Status.Set(ctx, j.ID, st); err != nil {
		return err
	}

	logger.Info().Int("documents", len(paths)).Msg("job completed")
	return nil
}

// ensurePDF converts non-PDF inputs with LibreOffice. The returned cleanup
// removes the conversion directory when one was created.
func (p *Pool) ensurePDF(ctx context.Context, localPath string) (string, func(), error) {
	kind, mime, err := filetype.Detect(localPath)
	if err != nil {
		return "", nil, err
	}
	switch kind {
	case filetype.KindPDF:
		return localPath, func() {}, nil
	case filetype.KindConvertible:
		if p.Convert == nil || !p.Convert.Available() {
			return "", nil, fmt.Errorf("input is %s but no converter is available", mime)
		}
		pdfPath, err := p.Convert.ToPDF(ctx, localPath)
		if err != nil {
			return "", nil, err
		}
		return pdfPath, func() { os.RemoveAll(filepath.Dir(pdfPath)) }, nil
	default:
		return "", nil, fmt.Errorf("unsupported input type %s", mime)
	}
}

// archive uploads the emitted documents back to S3 for s3-origin jobs.
func (p *Pool) archive(ctx context.Context, j job.Job, paths []string) ([]string, error) {
	password := ""
	if p.Cfg.Storage.EncryptOutputs {
		password = p.Cfg.Storage.EncryptPassword
	}
	prefix := filepath.ToSlash(filepath.Join(p.Cfg.Storage.ResultPrefix, j.ID))
	urls := make([]string, 0, len(paths))
	for _, pth := range paths {
		url, err := p.Storage.UploadFile(ctx, pth, prefix, filepath.Base(pth), password)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (p *Pool) setStatus(ctx context.Context, jobID, status string, progress int, msg string, meta map[string]interface{}) {
	existing, ok, _ := p.Status.Get(ctx, jobID)
	st := store.Status{Status: status, Progress: progress, Message: msg, Metadata: meta}
	if ok {
		st.Start = existing.Start
	}
	if status == "failed" || status == "cancelled" {
		now := time.Now()
		st.End = &now
	}
	if err := p.Status.Set(ctx, jobID, st); err != nil {
		log.Warn().Str("job_id", jobID).Err(err).Msg("status update failed")
	}
}

// reportDepths exports queue depth gauges until ctx is cancelled.
func (p *Pool) reportDepths(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stream, delayed, dlq, err := p.Queue.Depths(ctx)
			if err != nil {
				continue
			}
			metrics.SetQueueDepth("stream", stream)
			metrics.SetQueueDepth("delayed", delayed)
			metrics.SetQueueDepth("dlq", dlq)
		}
	}
}
