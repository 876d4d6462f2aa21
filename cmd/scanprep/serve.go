package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/scanprep/internal/config"
	"github.com/local/scanprep/internal/converter"
	"github.com/local/scanprep/internal/jobmonitor"
	"github.com/local/scanprep/internal/logger"
	"github.com/local/scanprep/internal/metrics"
	"github.com/local/scanprep/internal/queue"
	"github.com/local/scanprep/internal/server"
	"github.com/local/scanprep/internal/statuscheck"
	"github.com/local/scanprep/internal/storage"
	"github.com/local/scanprep/internal/store"
	"github.com/local/scanprep/internal/worker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service and job workers",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	if err := initLogging(cfg, false); err != nil {
		return err
	}
	defer logger.Close()

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, err := queue.New(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer q.Close()

	status, err := store.NewRedisStatus(cfg.Queue.RedisURL, cfg.Server.JobTTL)
	if err != nil {
		return fmt.Errorf("connect status store: %w", err)
	}
	defer status.Close()

	verdicts, err := store.NewVerdictStore(cfg.Queue.RedisURL, cfg.Server.JobTTL)
	if err != nil {
		return fmt.Errorf("connect verdict store: %w", err)
	}
	defer verdicts.Close()

	var s3 *storage.S3Client
	if cfg.Storage.Bucket != "" {
		s3, err = storage.NewS3Client(ctx, cfg.Storage.Bucket)
		if err != nil {
			return fmt.Errorf("connect s3: %w", err)
		}
	}

	conv := converter.New()

	health := statuscheck.New(3 * time.Second)
	health.AddPinger("redis", q)
	if s3 != nil {
		health.AddPinger("s3", s3)
	}
	health.AddLocal("libreoffice", conv)

	srv := &server.Server{
		Cfg:      cfg,
		Queue:    q,
		Status:   status,
		Verdicts: verdicts,
		Storage:  s3,
		Health:   health,
	}

	pool := &worker.Pool{
		Queue:    q,
		Status:   status,
		Verdicts: verdicts,
		Storage:  s3,
		Convert:  conv,
		Cfg:      cfg,
	}

	monitor := jobmonitor.New(status, time.Minute, cfg.Server.StuckJobAfter)

	go pool.Run(ctx)
	go monitor.Run(ctx)
	go srv.RunCleanup(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info().
		Int("workers", cfg.Worker.Concurrency).
		Str("stream", cfg.Queue.Stream).
		Bool("s3", s3 != nil).
		Msg("scanprep service started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	return nil
}
