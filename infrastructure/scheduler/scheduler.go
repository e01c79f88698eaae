package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"synapse/application/services"
	pkgerrors "synapse/pkg/errors"
)

// jobTimeout bounds one maintenance run
const jobTimeout = 5 * time.Minute

// Maintainer is what the scheduler drives on each tick
type Maintainer interface {
	Optimize(ctx context.Context) (*services.OptimizeStats, error)
	Snapshot(ctx context.Context) error
}

// Scheduler periodically runs the engine's maintenance cycle on a cron
// schedule, and optionally saves a snapshot after each cycle
type Scheduler struct {
	cron         *cron.Cron
	maintainer   Maintainer
	autoSnapshot bool
	logger       *zap.Logger
}

// New creates a Scheduler that fires per the 5-field cron spec
func New(spec string, maintainer Maintainer, autoSnapshot bool, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:         cron.New(),
		maintainer:   maintainer,
		autoSnapshot: autoSnapshot,
		logger:       logger,
	}
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, pkgerrors.NewInvalidArgumentError("invalid consolidation schedule: " + spec).WithCause(err)
	}
	return s, nil
}

// Start begins firing scheduled maintenance runs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("maintenance scheduler started", zap.Bool("autoSnapshot", s.autoSnapshot))
}

// Stop halts scheduling and waits for an in-flight run to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("maintenance scheduler stopped")
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	stats, err := s.maintainer.Optimize(ctx)
	if err != nil {
		s.logger.Error("scheduled maintenance failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled maintenance finished",
		zap.Int("promoted", stats.Consolidation.Promoted),
		zap.Int("forgotten", stats.Forgetting.Forgotten),
	)

	if s.autoSnapshot {
		if err := s.maintainer.Snapshot(ctx); err != nil {
			s.logger.Error("scheduled snapshot failed", zap.Error(err))
		}
	}
}
