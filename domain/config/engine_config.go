package config

import (
	"fmt"
	"time"
)

// EngineConfig holds all configurable numeric policy and capacity limits
// for the memory graph
type EngineConfig struct {
	// Strength policy
	DefaultStrength        float64 // strength assigned to a freshly created association
	ReinforcementIncrement float64 // additive gain on re-association, saturating at 1.0
	ActiveThreshold        float64 // strengths at or below this are treated as silent

	// Decay policy. Decay is computed lazily from an association's
	// last-reinforced timestamp; nothing mutates strengths in the
	// background.
	ShortTermDecayRate float64       // fractional loss per decay interval for short-term edges
	LongTermDecayRatio float64       // long-term decay rate = ShortTermDecayRate * this
	DecayInterval      time.Duration // elapsed time unit for one decay application

	// Recall policy
	PathDecayRate     float64 // per-hop multiplier on path relevance
	SpreadDecayFactor float64 // per-step multiplier on propagated activation
	ActivationEpsilon float64 // spreading halts when the largest step gain is below this

	// Consolidation policy
	PromotionThreshold float64 // effective strength needed for promotion
	UsageThreshold     uint64  // reinforcement count that promotes regardless of strength
	PromotionBonus     float64 // one-time additive bonus applied on promotion

	// Capacity limits
	MaxConcepts     int
	MaxAssociations int
}

// DefaultEngineConfig returns the default engine configuration
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		DefaultStrength:        0.1,
		ReinforcementIncrement: 0.1,
		ActiveThreshold:        0.01,

		ShortTermDecayRate: 0.01,
		LongTermDecayRatio: 0.1,
		DecayInterval:      time.Hour,

		PathDecayRate:     0.8,
		SpreadDecayFactor: 0.7,
		ActivationEpsilon: 0.001,

		PromotionThreshold: 0.5,
		UsageThreshold:     3,
		PromotionBonus:     0.1,

		MaxConcepts:     100000,
		MaxAssociations: 500000,
	}
}

// Validate checks if the configuration is internally consistent
func (c *EngineConfig) Validate() error {
	inUnit := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %g", name, v)
		}
		return nil
	}

	checks := []error{
		inUnit("DefaultStrength", c.DefaultStrength),
		inUnit("ReinforcementIncrement", c.ReinforcementIncrement),
		inUnit("ActiveThreshold", c.ActiveThreshold),
		inUnit("ShortTermDecayRate", c.ShortTermDecayRate),
		inUnit("LongTermDecayRatio", c.LongTermDecayRatio),
		inUnit("PromotionThreshold", c.PromotionThreshold),
		inUnit("PromotionBonus", c.PromotionBonus),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	if c.PathDecayRate <= 0 || c.PathDecayRate >= 1 {
		return fmt.Errorf("PathDecayRate must be in (0,1), got %g", c.PathDecayRate)
	}
	if c.SpreadDecayFactor <= 0 || c.SpreadDecayFactor >= 1 {
		return fmt.Errorf("SpreadDecayFactor must be in (0,1), got %g", c.SpreadDecayFactor)
	}
	if c.ActivationEpsilon <= 0 {
		return fmt.Errorf("ActivationEpsilon must be positive, got %g", c.ActivationEpsilon)
	}
	if c.DecayInterval <= 0 {
		return fmt.Errorf("DecayInterval must be positive, got %s", c.DecayInterval)
	}
	if c.MaxConcepts <= 0 || c.MaxAssociations <= 0 {
		return fmt.Errorf("capacity limits must be positive")
	}
	return nil
}
