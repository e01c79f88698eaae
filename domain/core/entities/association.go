package entities

import (
	"time"

	"synapse/domain/config"
	"synapse/domain/core/valueobjects"
	pkgerrors "synapse/pkg/errors"
)

// AssociationType classifies the relationship an edge represents.
// The tag is free-form; these are the common values.
const (
	AssociationTypeRelated    = "related"
	AssociationTypeSimilar    = "similar"
	AssociationTypeSequential = "sequential"
	AssociationTypeCausal     = "causal"
)

// Association is a directed, strength-weighted edge between two concepts.
// Strength decays lazily: the stored value is anchored at lastReinforced
// and reads compute the decayed value on demand, so the store never needs
// a background timer.
type Association struct {
	fromID          valueobjects.ConceptID
	toID            valueobjects.ConceptID
	strength        valueobjects.Strength
	associationType string
	tier            valueobjects.Tier
	bidirectional   bool
	createdAt       time.Time
	lastReinforced  time.Time
	reinforcements  uint64
}

// NewAssociation creates a new short-term association at the default
// creation strength
func NewAssociation(fromID, toID valueobjects.ConceptID, associationType string, bidirectional bool, defaultStrength float64) (*Association, error) {
	if fromID.IsZero() || toID.IsZero() {
		return nil, pkgerrors.NewInvalidArgumentError("association endpoints cannot be empty")
	}
	if fromID.Equals(toID) {
		return nil, pkgerrors.NewInvalidArgumentError("cannot associate a concept with itself")
	}
	if associationType == "" {
		associationType = AssociationTypeRelated
	}

	now := time.Now()
	return &Association{
		fromID:          fromID,
		toID:            toID,
		strength:        valueobjects.NewStrength(defaultStrength),
		associationType: associationType,
		tier:            valueobjects.TierShortTerm,
		bidirectional:   bidirectional,
		createdAt:       now,
		lastReinforced:  now,
		reinforcements:  0,
	}, nil
}

// ReconstructAssociation rebuilds an association from persisted data
func ReconstructAssociation(
	fromID, toID valueobjects.ConceptID,
	strength float64,
	associationType string,
	tier valueobjects.Tier,
	bidirectional bool,
	createdAt, lastReinforced time.Time,
	reinforcements uint64,
) (*Association, error) {
	if fromID.IsZero() || toID.IsZero() {
		return nil, pkgerrors.NewInvalidArgumentError("association endpoints cannot be empty")
	}
	if !tier.Valid() {
		return nil, pkgerrors.NewInvalidArgumentError("unknown association tier: " + tier.String())
	}

	return &Association{
		fromID:          fromID,
		toID:            toID,
		strength:        valueobjects.NewStrength(strength),
		associationType: associationType,
		tier:            tier,
		bidirectional:   bidirectional,
		createdAt:       createdAt,
		lastReinforced:  lastReinforced,
		reinforcements:  reinforcements,
	}, nil
}

// FromID returns the source concept identifier
func (a *Association) FromID() valueobjects.ConceptID {
	return a.fromID
}

// ToID returns the target concept identifier
func (a *Association) ToID() valueobjects.ConceptID {
	return a.toID
}

// Strength returns the stored (undecayed) strength
func (a *Association) Strength() valueobjects.Strength {
	return a.strength
}

// Type returns the association's classification tag
func (a *Association) Type() string {
	return a.associationType
}

// Tier returns the association's memory tier
func (a *Association) Tier() valueobjects.Tier {
	return a.tier
}

// IsBidirectional reports whether the edge was created as half of a
// bidirectional pair. Once created, each direction is an independent record.
func (a *Association) IsBidirectional() bool {
	return a.bidirectional
}

// CreatedAt returns when the association was created
func (a *Association) CreatedAt() time.Time {
	return a.createdAt
}

// LastReinforced returns the decay anchor timestamp
func (a *Association) LastReinforced() time.Time {
	return a.lastReinforced
}

// Reinforcements returns how many times the edge has been reinforced
func (a *Association) Reinforcements() uint64 {
	return a.reinforcements
}

// EffectiveStrength computes the decayed strength as of now without
// mutating the record. Long-term associations decay slower than
// short-term ones.
func (a *Association) EffectiveStrength(now time.Time, cfg *config.EngineConfig) valueobjects.Strength {
	elapsed := now.Sub(a.lastReinforced)
	if elapsed <= 0 {
		return a.strength
	}
	intervals := elapsed.Seconds() / cfg.DecayInterval.Seconds()
	return a.strength.Decayed(a.decayRate(cfg), intervals)
}

// Reinforce strengthens the edge additively, saturating at 1.0, and
// resets the decay anchor
func (a *Association) Reinforce(increment float64) {
	a.strength = a.strength.Reinforced(increment)
	a.lastReinforced = time.Now()
	a.reinforcements++
}

// Promote moves a short-term association to the long-term tier with a
// one-time strengthening bonus. Promoting a long-term edge is a no-op.
func (a *Association) Promote(bonus float64) bool {
	if a.tier == valueobjects.TierLongTerm {
		return false
	}
	a.tier = valueobjects.TierLongTerm
	a.strength = a.strength.WithBonus(bonus)
	a.lastReinforced = time.Now()
	return true
}

// ApplyDecay materializes lazy decay into the stored strength, moving
// the anchor to now. Used by the forgetting pass before threshold checks.
func (a *Association) ApplyDecay(now time.Time, cfg *config.EngineConfig) {
	a.strength = a.EffectiveStrength(now, cfg)
	a.lastReinforced = now
}

// Clone returns a detached copy safe to hand outside the store
func (a *Association) Clone() *Association {
	clone := *a
	return &clone
}

func (a *Association) decayRate(cfg *config.EngineConfig) float64 {
	if a.tier == valueobjects.TierLongTerm {
		return cfg.ShortTermDecayRate * cfg.LongTermDecayRatio
	}
	return cfg.ShortTermDecayRate
}
