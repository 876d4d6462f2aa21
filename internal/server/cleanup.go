package server

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// RunCleanup deletes uploads and result directories older than the job TTL.
// It blocks until ctx is cancelled.
func (s *Server) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	s.sweepOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Server) sweepOnce() {
	cutoff := time.Now().Add(-s.Cfg.Server.JobTTL)
	removed := 0
	removed += sweepDir(s.Cfg.Server.UploadDir, cutoff)
	removed += sweepDir(s.Cfg.Server.ResultDir, cutoff)
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("cleaned expired job artifacts")
	}
}

// sweepDir removes direct children of dir whose mtime is before cutoff.
// Result directories count as one artifact each.
func sweepDir(dir string, cutoff time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Warn().Str("path", path).Err(err).Msg("cleanup failed")
			continue
		}
		removed++
	}
	return removed
}
