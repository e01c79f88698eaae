package valueobjects

import "math"

// Strength bounds. An association is created at DefaultStrength and can
// never leave [MinStrength, MaxStrength]; values at or below
// ActiveThreshold are treated as silent during traversal.
const (
	MinStrength = 0.0
	MaxStrength = 1.0
)

// Strength is the weight of a synaptic connection, clamped to [0,1]
type Strength struct {
	value float64
}

// NewStrength creates a Strength, clamping the value into [0,1]
func NewStrength(v float64) Strength {
	return Strength{value: clamp(v)}
}

// Value returns the raw weight
func (s Strength) Value() float64 {
	return s.value
}

// Reinforced returns the strength after one additive reinforcement,
// saturating at 1.0
func (s Strength) Reinforced(increment float64) Strength {
	return NewStrength(s.value + increment)
}

// WithBonus is an alias of Reinforced used for the one-time promotion bonus
func (s Strength) WithBonus(bonus float64) Strength {
	return s.Reinforced(bonus)
}

// Decayed returns the strength after exponential decay: the value is
// multiplied by (1-rate) once per elapsed interval. Fractional intervals
// decay proportionally.
func (s Strength) Decayed(rate float64, intervals float64) Strength {
	if intervals <= 0 || rate <= 0 {
		return s
	}
	return NewStrength(s.value * math.Pow(1.0-rate, intervals))
}

// IsActive reports whether the strength is above the given threshold
func (s Strength) IsActive(threshold float64) bool {
	return s.value > threshold
}

// AverageStrength merges two strengths by arithmetic mean. Used when a
// promoted short-term edge lands on an existing long-term record.
func AverageStrength(a, b Strength) Strength {
	return NewStrength((a.value + b.value) / 2.0)
}

func clamp(v float64) float64 {
	if v < MinStrength {
		return MinStrength
	}
	if v > MaxStrength {
		return MaxStrength
	}
	return v
}
