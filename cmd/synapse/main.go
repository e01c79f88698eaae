package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"synapse/infrastructure/config"
	"synapse/infrastructure/di"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.LoadFromEnv()

	container, err := di.NewContainer(cfg)
	if err != nil {
		// Logger may not exist yet.
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to wire engine", zap.Error(err))
	}
	logger := container.Logger

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	if err := container.Memory.Restore(ctx); err != nil {
		logger.Warn("starting with an empty graph", zap.Error(err))
	}
	cancel()

	container.Scheduler.Start()
	logger.Info("engine running",
		zap.String("environment", cfg.Environment),
		zap.String("snapshotDb", cfg.SnapshotDBPath),
		zap.String("schedule", cfg.ConsolidationSchedule),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel = context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := container.Memory.Snapshot(ctx); err != nil {
		logger.Error("final snapshot failed", zap.Error(err))
	}
	if err := container.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
