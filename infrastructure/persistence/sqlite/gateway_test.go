package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"synapse/application/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	gateway, err := NewGateway(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { gateway.Close() })
	return gateway
}

func sampleSnapshot() *ports.Snapshot {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &ports.Snapshot{
		TakenAt: now,
		Concepts: []ports.ConceptRecord{
			{
				ID:           "550e8400-e29b-41d4-a716-446655440000",
				Content:      "Python",
				Metadata:     map[string]string{"kind": "language"},
				CreatedAt:    now.Add(-time.Hour),
				LastAccessed: now,
				AccessCount:  3,
			},
			{
				ID:           "550e8400-e29b-41d4-a716-446655440001",
				Content:      "AI",
				CreatedAt:    now.Add(-time.Hour),
				LastAccessed: now.Add(-time.Minute),
				AccessCount:  1,
			},
		},
		Associations: []ports.AssociationRecord{
			{
				FromID:         "550e8400-e29b-41d4-a716-446655440000",
				ToID:           "550e8400-e29b-41d4-a716-446655440001",
				Strength:       0.42,
				Type:           "related",
				Tier:           "long_term",
				Bidirectional:  true,
				CreatedAt:      now.Add(-time.Hour),
				LastReinforced: now.Add(-time.Minute),
				Reinforcements: 5,
			},
		},
	}
}

func TestGateway_SaveLoadRoundTrip(t *testing.T) {
	gateway := newTestGateway(t)
	ctx := context.Background()
	snapshot := sampleSnapshot()

	require.NoError(t, gateway.Save(ctx, snapshot))
	loaded, err := gateway.Load(ctx)
	require.NoError(t, err)

	assert.True(t, snapshot.TakenAt.Equal(loaded.TakenAt))
	require.Len(t, loaded.Concepts, 2)
	require.Len(t, loaded.Associations, 1)

	var python ports.ConceptRecord
	for _, rec := range loaded.Concepts {
		if rec.Content == "Python" {
			python = rec
		}
	}
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", python.ID)
	assert.Equal(t, map[string]string{"kind": "language"}, python.Metadata)
	assert.Equal(t, uint64(3), python.AccessCount)

	edge := loaded.Associations[0]
	assert.Equal(t, 0.42, edge.Strength)
	assert.Equal(t, "long_term", edge.Tier)
	assert.True(t, edge.Bidirectional)
	assert.Equal(t, uint64(5), edge.Reinforcements)
}

func TestGateway_SaveReplacesPreviousSnapshot(t *testing.T) {
	gateway := newTestGateway(t)
	ctx := context.Background()
	require.NoError(t, gateway.Save(ctx, sampleSnapshot()))

	smaller := &ports.Snapshot{
		TakenAt: time.Now().UTC(),
		Concepts: []ports.ConceptRecord{{
			ID:           "550e8400-e29b-41d4-a716-446655440002",
			Content:      "only one",
			CreatedAt:    time.Now().UTC(),
			LastAccessed: time.Now().UTC(),
		}},
	}
	require.NoError(t, gateway.Save(ctx, smaller))

	loaded, err := gateway.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Concepts, 1)
	assert.Equal(t, "only one", loaded.Concepts[0].Content)
	assert.Empty(t, loaded.Associations)
}

func TestGateway_LoadWithoutSaveIsEmpty(t *testing.T) {
	gateway := newTestGateway(t)

	loaded, err := gateway.Load(context.Background())

	require.NoError(t, err)
	assert.True(t, loaded.TakenAt.IsZero())
	assert.Empty(t, loaded.Concepts)
	assert.Empty(t, loaded.Associations)
}

func TestGateway_Stats(t *testing.T) {
	gateway := newTestGateway(t)
	ctx := context.Background()
	require.NoError(t, gateway.Save(ctx, sampleSnapshot()))

	stats, err := gateway.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.ConceptCount)
	assert.Equal(t, 1, stats.AssociationCount)
	assert.False(t, stats.LastSnapshot.IsZero())
	assert.Greater(t, stats.SizeBytes, int64(0))
}

func TestGateway_BackupProducesLoadableCopy(t *testing.T) {
	gateway := newTestGateway(t)
	ctx := context.Background()
	require.NoError(t, gateway.Save(ctx, sampleSnapshot()))

	dest := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, gateway.Backup(ctx, dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	restored, err := NewGateway(dest, zap.NewNop())
	require.NoError(t, err)
	defer restored.Close()

	loaded, err := restored.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Concepts, 2)
}

func TestGateway_BackupRejectsEmptyDestination(t *testing.T) {
	gateway := newTestGateway(t)

	err := gateway.Backup(context.Background(), "")

	assert.Error(t, err)
}

func TestGateway_Optimize(t *testing.T) {
	gateway := newTestGateway(t)
	ctx := context.Background()
	require.NoError(t, gateway.Save(ctx, sampleSnapshot()))

	assert.NoError(t, gateway.Optimize(ctx))
}
