package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"candlepipe/config"
	"candlepipe/internal/pipeline"
	"candlepipe/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	// A termination signal cancels the context; the pipeline performs one
	// final forced flush on the way out.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pipeline.Start(ctx, cfg, log); err != nil {
		log.Fatal("pipeline failed", zap.Error(err))
	}
}
