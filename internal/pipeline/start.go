package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"candlepipe/config"
	"candlepipe/internal/broadcast"
	"candlepipe/internal/server"
	"candlepipe/internal/source"
	"candlepipe/pkg/storage/postgres"
	"candlepipe/pkg/storage/segment"
)

// Start builds the full pipeline for one stream from config and runs it
// until ctx is cancelled or a finite source is exhausted: segment writer
// (hydrated from disk), broadcast hub, HTTP state surface, tick source and
// the ingestion loop.
func Start(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	var archive segment.Archiver
	if cfg.Persist.Archive {
		client, err := postgres.InitializeAndMigrateCandleRecord(cfg.Postgres, cfg.Log.Environment, true)
		if err != nil {
			return fmt.Errorf("failed to connect to archive DB: %w", err)
		}
		defer client.Close()
		archive = client
	}

	writer := segment.NewWriter(segment.Config{
		StreamID:           cfg.Stream.ID,
		IntervalMs:         cfg.Stream.IntervalMs,
		Enabled:            cfg.Persist.Mode == "local",
		Root:               cfg.Persist.Root,
		FlushInterval:      cfg.Persist.FlushInterval,
		SegmentTargetBytes: cfg.Persist.SegmentTargetBytes,
	}, log, archive)
	writer.Hydrate()

	hub := broadcast.NewHub(log)
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(hub, writer, log),
	}
	go func() {
		log.Info("state server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("state server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	var src source.Source
	switch cfg.Source.Mode {
	case "replay":
		src = source.NewReplay(cfg.Source.ReplayPath, int(cfg.Stream.IntervalMs), log)
	default:
		src = source.NewSynthetic(cfg.Source.Seed, int(cfg.Stream.IntervalMs))
	}

	p := New(cfg.Stream.ID, cfg.Stream.IntervalMs, cfg.Stream.BatchSize, src, hub, writer, log)
	return p.Run(ctx)
}
