// Package jobmonitor watches for jobs stuck in the processing state and
// marks them failed so clients are not left polling forever.
package jobmonitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/scanprep/internal/store"
)

// Monitor periodically scans processing jobs and fails the ones whose
// start time is older than StuckAfter.
type Monitor struct {
	Status     *store.RedisStatus
	Interval   time.Duration
	StuckAfter time.Duration
	ScanLimit  int
}

func New(status *store.RedisStatus, interval, stuckAfter time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if stuckAfter <= 0 {
		stuckAfter = 30 * time.Minute
	}
	return &Monitor{Status: status, Interval: interval, StuckAfter: stuckAfter, ScanLimit: 500}
}

// Run blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	ids, err := m.Status.ListByStatus(ctx, "processing", m.ScanLimit)
	if err != nil {
		log.Warn().Err(err).Msg("job monitor scan failed")
		return
	}
	now := time.Now()
	for _, id := range ids {
		st, ok, err := m.Status.Get(ctx, id)
		if err != nil || !ok || st.Start == nil {
			continue
		}
		if now.Sub(*st.Start) < m.StuckAfter {
			continue
		}
		end := now
		st.Status = "failed"
		st.Message = "job exceeded processing deadline"
		st.End = &end
		if err := m.Status.Set(ctx, id, st); err != nil {
			log.Warn().Str("job_id", id).Err(err).Msg("failed to mark stuck job")
			continue
		}
		log.Warn().Str("job_id", id).Time("started", *st.Start).Msg("marked stuck job as failed")
	}
}
