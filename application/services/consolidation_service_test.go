package services_test

import (
	"context"
	"testing"

	"synapse/application/ports"
	"synapse/domain/config"
	"synapse/domain/core/valueobjects"
	pkgerrors "synapse/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolidation_PromotesByStrength(t *testing.T) {
	// Arrange: one reinforcement at a large increment clears the
	// strength threshold without reaching the usage threshold
	cfg := config.DefaultEngineConfig()
	cfg.ReinforcementIncrement = 0.45
	e := newEngine(t, cfg)
	ctx := context.Background()
	from := e.learn(t, "Python")
	to := e.learn(t, "AI")
	_, err := e.associations.Associate(from, to, ports.AssociateOptions{})
	require.NoError(t, err)
	_, err = e.associations.Associate(from, to, ports.AssociateOptions{})
	require.NoError(t, err)

	// Act
	stats, err := e.consolidator.Consolidate(ctx, false)

	// Assert: 0.55 strength, one reinforcement, promoted with the bonus
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Examined)
	assert.Equal(t, 1, stats.Promoted)

	edge, ok := e.associations.Get(from, to)
	require.True(t, ok)
	assert.Equal(t, valueobjects.TierLongTerm, edge.Tier())
	assert.InDelta(t, 0.65, edge.Strength().Value(), 1e-9)
}

func TestConsolidation_PromotesByUsage(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	from := e.learn(t, "Python")
	to := e.learn(t, "AI")
	// Create plus three reinforcements: strength 0.4 stays under the
	// 0.5 threshold, but usage reaches the promotion count
	for i := 0; i < 4; i++ {
		_, err := e.associations.Associate(from, to, ports.AssociateOptions{})
		require.NoError(t, err)
	}

	stats, err := e.consolidator.Consolidate(ctx, false)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Promoted)
	edge, _ := e.associations.Get(from, to)
	assert.Equal(t, valueobjects.TierLongTerm, edge.Tier())
}

func TestConsolidation_LeavesUnprovenEdgesAlone(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	from := e.learn(t, "Python")
	to := e.learn(t, "AI")
	_, err := e.associations.Associate(from, to, ports.AssociateOptions{})
	require.NoError(t, err)

	stats, err := e.consolidator.Consolidate(ctx, false)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Examined)
	assert.Equal(t, 0, stats.Promoted)
	assert.Equal(t, 1, e.associations.CountInTier(valueobjects.TierShortTerm))
}

func TestConsolidation_ForceGoesByStrengthAlone(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	from := e.learn(t, "Python")
	to := e.learn(t, "AI")
	// Usage-eligible but weak: four associates leave strength at 0.4
	for i := 0; i < 4; i++ {
		_, err := e.associations.Associate(from, to, ports.AssociateOptions{})
		require.NoError(t, err)
	}

	stats, err := e.consolidator.Consolidate(ctx, true)

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Promoted, "force ignores the usage shortcut")
	assert.Equal(t, 1, e.associations.CountInTier(valueobjects.TierShortTerm))
}

func TestForget_ThresholdAboveMaxRemovesEverything(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	a := e.learn(t, "a")
	b := e.learn(t, "b")
	c := e.learn(t, "c")
	_, err := e.associations.Associate(a, b, ports.AssociateOptions{})
	require.NoError(t, err)
	_, err = e.associations.Associate(b, c, ports.AssociateOptions{})
	require.NoError(t, err)

	stats, err := e.consolidator.Forget(ctx, 1.1)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Forgotten)
	assert.Equal(t, 0, e.associations.Count())

	// Concepts are never deleted by forgetting
	assert.Equal(t, 3, e.concepts.Count())
}

func TestForget_ZeroThresholdRemovesNothing(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	a := e.learn(t, "a")
	b := e.learn(t, "b")
	_, err := e.associations.Associate(a, b, ports.AssociateOptions{})
	require.NoError(t, err)

	stats, err := e.consolidator.Forget(ctx, 0.0)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Decayed)
	assert.Equal(t, 0, stats.Forgotten)
	assert.Equal(t, 1, e.associations.Count())
}

func TestForget_RejectsNegativeThreshold(t *testing.T) {
	e := newEngine(t, nil)

	_, err := e.consolidator.Forget(context.Background(), -0.1)

	assert.True(t, pkgerrors.IsInvalidArgument(err))
}

func TestOptimize_RunsBothPasses(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.ReinforcementIncrement = 0.45
	e := newEngine(t, cfg)
	ctx := context.Background()
	from := e.learn(t, "Python")
	to := e.learn(t, "AI")
	weakTo := e.learn(t, "trivia")
	_, err := e.associations.Associate(from, to, ports.AssociateOptions{})
	require.NoError(t, err)
	_, err = e.associations.Associate(from, to, ports.AssociateOptions{})
	require.NoError(t, err)
	_, err = e.associations.Associate(from, weakTo, ports.AssociateOptions{})
	require.NoError(t, err)

	stats, err := e.consolidator.Optimize(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Consolidation.Promoted)
	// Fresh edges sit above the active threshold, so nothing is forgotten yet
	assert.Equal(t, 0, stats.Forgetting.Forgotten)
	assert.Equal(t, 1, e.associations.CountInTier(valueobjects.TierLongTerm))
	assert.Equal(t, 1, e.associations.CountInTier(valueobjects.TierShortTerm))
}
