package valueobjects_test

import (
	"testing"

	"synapse/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
)

func TestStrength_Clamping(t *testing.T) {
	assert.Equal(t, 0.0, valueobjects.NewStrength(-0.5).Value())
	assert.Equal(t, 1.0, valueobjects.NewStrength(1.5).Value())
	assert.Equal(t, 0.3, valueobjects.NewStrength(0.3).Value())
}

func TestStrength_ReinforcedSaturatesAtOne(t *testing.T) {
	s := valueobjects.NewStrength(0.95)

	s = s.Reinforced(0.1)

	assert.Equal(t, 1.0, s.Value())
}

func TestStrength_ReinforcedAccumulates(t *testing.T) {
	s := valueobjects.NewStrength(0.1)

	for i := 0; i < 3; i++ {
		s = s.Reinforced(0.1)
	}

	assert.InDelta(t, 0.4, s.Value(), 1e-9)
}

func TestStrength_Decayed(t *testing.T) {
	s := valueobjects.NewStrength(1.0)

	decayed := s.Decayed(0.01, 1)

	assert.InDelta(t, 0.99, decayed.Value(), 1e-9)
}

func TestStrength_DecayedMultipleIntervals(t *testing.T) {
	s := valueobjects.NewStrength(1.0)

	decayed := s.Decayed(0.01, 100)

	// (0.99)^100
	assert.InDelta(t, 0.3660323, decayed.Value(), 1e-6)
}

func TestStrength_DecayedNoElapsedTime(t *testing.T) {
	s := valueobjects.NewStrength(0.5)

	assert.Equal(t, 0.5, s.Decayed(0.01, 0).Value())
	assert.Equal(t, 0.5, s.Decayed(0.01, -1).Value())
}

func TestStrength_IsActive(t *testing.T) {
	assert.True(t, valueobjects.NewStrength(0.02).IsActive(0.01))
	assert.False(t, valueobjects.NewStrength(0.01).IsActive(0.01))
	assert.False(t, valueobjects.NewStrength(0.0).IsActive(0.01))
}

func TestAverageStrength(t *testing.T) {
	a := valueobjects.NewStrength(0.4)
	b := valueobjects.NewStrength(0.8)

	assert.InDelta(t, 0.6, valueobjects.AverageStrength(a, b).Value(), 1e-9)
}
