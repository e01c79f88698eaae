package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"synapse/application/ports"
	"synapse/application/subscriptions"
	"synapse/domain/config"
	"synapse/domain/core/valueobjects"
	"synapse/domain/events"
	pkgerrors "synapse/pkg/errors"
)

// ConsolidationStats summarizes one promotion pass
type ConsolidationStats struct {
	Examined int           `json:"examined"`
	Promoted int           `json:"promoted"`
	Merged   int           `json:"merged"`
	Duration time.Duration `json:"duration"`
}

// ForgetStats summarizes one forgetting pass
type ForgetStats struct {
	Decayed   int           `json:"decayed"`
	Forgotten int           `json:"forgotten"`
	Duration  time.Duration `json:"duration"`
}

// OptimizeStats combines the two maintenance passes
type OptimizeStats struct {
	Consolidation ConsolidationStats `json:"consolidation"`
	Forgetting    ForgetStats        `json:"forgetting"`
}

// ConsolidationService runs the engine's maintenance passes: promotion
// of proven short-term associations into long-term memory, and decay
// driven forgetting of edges that faded below a strength floor. Passes
// are serialized by a service-level mutex so overlapping scheduler
// ticks and manual calls cannot interleave.
type ConsolidationService struct {
	mu           sync.Mutex
	associations ports.AssociationRepository
	hub          *subscriptions.Hub
	cfg          *config.EngineConfig
	logger       *zap.Logger
}

// NewConsolidationService creates a ConsolidationService
func NewConsolidationService(
	associations ports.AssociationRepository,
	hub *subscriptions.Hub,
	cfg *config.EngineConfig,
	logger *zap.Logger,
) *ConsolidationService {
	return &ConsolidationService{
		associations: associations,
		hub:          hub,
		cfg:          cfg,
		logger:       logger,
	}
}

// Consolidate promotes short-term associations that earned long-term
// status: effective strength at or above the promotion threshold, or a
// reinforcement count at or above the usage threshold. With force set,
// the usage shortcut is ignored and promotion goes by strength alone.
func (s *ConsolidationService) Consolidate(ctx context.Context, force bool) (*ConsolidationStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	stats := &ConsolidationStats{}

	for _, edge := range s.associations.EdgesInTier(valueobjects.TierShortTerm) {
		if err := ctx.Err(); err != nil {
			return stats, pkgerrors.Wrap(err, "consolidation interrupted")
		}
		stats.Examined++

		if !s.eligible(edge.EffectiveStrength(start, s.cfg).Value(), edge.Reinforcements(), force) {
			continue
		}

		promoted, merged := s.associations.Promote(edge.FromID(), edge.ToID(), s.cfg.PromotionBonus)
		if !promoted {
			// Vanished or already promoted since the snapshot.
			continue
		}
		stats.Promoted++
		if merged {
			stats.Merged++
		}

		if final, ok := s.associations.Get(edge.FromID(), edge.ToID()); ok {
			s.hub.Publish(events.NewAssociationPromoted(
				final.FromID(), final.ToID(), final.Strength().Value(), time.Now(),
			))
		}
	}

	stats.Duration = time.Since(start)
	s.logger.Info("consolidation pass finished",
		zap.Int("examined", stats.Examined),
		zap.Int("promoted", stats.Promoted),
		zap.Int("merged", stats.Merged),
		zap.Duration("duration", stats.Duration),
		zap.Bool("force", force),
	)
	return stats, nil
}

func (s *ConsolidationService) eligible(effectiveStrength float64, reinforcements uint64, force bool) bool {
	if effectiveStrength >= s.cfg.PromotionThreshold {
		return true
	}
	return !force && reinforcements >= s.cfg.UsageThreshold
}

// Forget materializes decay on every association and removes those
// whose strength fell below minStrength. Concepts are never removed by
// forgetting, only the edges between them.
func (s *ConsolidationService) Forget(ctx context.Context, minStrength float64) (*ForgetStats, error) {
	if minStrength < 0 {
		return nil, pkgerrors.NewInvalidArgumentError("minimum strength cannot be negative")
	}
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "forgetting interrupted")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	decayed, evicted := s.associations.DecayAndPrune(start, minStrength)

	for _, edge := range evicted {
		s.hub.Publish(events.NewAssociationRemoved(
			edge.FromID(), edge.ToID(), events.RemovalReasonForgotten, time.Now(),
		))
	}

	stats := &ForgetStats{
		Decayed:   decayed,
		Forgotten: len(evicted),
		Duration:  time.Since(start),
	}
	s.logger.Info("forgetting pass finished",
		zap.Int("decayed", stats.Decayed),
		zap.Int("forgotten", stats.Forgotten),
		zap.Float64("minStrength", minStrength),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// Optimize runs a standard maintenance cycle: consolidate what earned
// promotion, then forget what faded below the active threshold
func (s *ConsolidationService) Optimize(ctx context.Context) (*OptimizeStats, error) {
	consolidation, err := s.Consolidate(ctx, false)
	if err != nil {
		return nil, err
	}
	forgetting, err := s.Forget(ctx, s.cfg.ActiveThreshold)
	if err != nil {
		return nil, err
	}
	return &OptimizeStats{
		Consolidation: *consolidation,
		Forgetting:    *forgetting,
	}, nil
}
