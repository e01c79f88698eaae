package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"synapse/application/ports"
	"synapse/application/services"
	"synapse/application/subscriptions"
	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
	"synapse/infrastructure/persistence/memstore"
	"synapse/infrastructure/persistence/sqlite"
	"synapse/infrastructure/similarity"
	pkgerrors "synapse/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// engine bundles a fully wired in-memory stack for service tests
type engine struct {
	cfg          *config.EngineConfig
	concepts     *memstore.ConceptStore
	associations *memstore.AssociationStore
	hub          *subscriptions.Hub
	gateway      *sqlite.Gateway
	recall       *services.RecallService
	consolidator *services.ConsolidationService
	memory       *services.MemoryService
}

func newEngine(t *testing.T, cfg *config.EngineConfig) *engine {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	logger := zap.NewNop()

	concepts := memstore.NewConceptStore(cfg, logger)
	associations := memstore.NewAssociationStore(concepts, cfg, logger)
	hub := subscriptions.NewHub(logger)

	gateway, err := sqlite.NewGateway(filepath.Join(t.TempDir(), "snapshot.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { gateway.Close() })

	recall := services.NewRecallService(concepts, associations, similarity.NewLexicalProvider(), hub, cfg, logger)
	consolidator := services.NewConsolidationService(associations, hub, cfg, logger)
	memory := services.NewMemoryService(concepts, associations, recall, consolidator, gateway, hub, cfg, logger)

	t.Cleanup(hub.Close)
	return &engine{
		cfg:          cfg,
		concepts:     concepts,
		associations: associations,
		hub:          hub,
		gateway:      gateway,
		recall:       recall,
		consolidator: consolidator,
		memory:       memory,
	}
}

func (e *engine) learn(t *testing.T, content string) valueobjects.ConceptID {
	t.Helper()
	concept, err := e.concepts.Create(content, nil)
	require.NoError(t, err)
	return concept.ID()
}

// seedEdges replaces the association store with edges at exact
// strengths, anchored at now so lazy decay is negligible during a test
func (e *engine) seedEdges(t *testing.T, edges ...seedEdge) {
	t.Helper()
	now := time.Now()
	records := make([]*entities.Association, 0, len(edges))
	for _, edge := range edges {
		record, err := entities.ReconstructAssociation(
			edge.from, edge.to, edge.strength, "related",
			valueobjects.TierShortTerm, false, now, now, 0,
		)
		require.NoError(t, err)
		records = append(records, record)
	}
	e.associations.ImportAll(records)
}

type seedEdge struct {
	from     valueobjects.ConceptID
	to       valueobjects.ConceptID
	strength float64
}

func noBoostQuery() services.RecallQuery {
	q := services.DefaultRecallQuery()
	q.UseRecencyBoost = false
	q.MinRelevance = 0.01
	return q
}

func TestRecall_EndToEndDefaultQuery(t *testing.T) {
	// Arrange
	e := newEngine(t, nil)
	ctx := context.Background()
	python := e.learn(t, "Python")
	ai := e.learn(t, "AI")
	_, err := e.associations.Associate(python, ai, ports.AssociateOptions{Bidirectional: true})
	require.NoError(t, err)

	// Act
	results, err := e.recall.RecallFromConcept(ctx, python, services.DefaultRecallQuery())

	// Assert: AI is the sole result, one hop away, at the creation
	// default strength
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].ConceptID.Equals(ai))
	assert.Equal(t, 1, results[0].Hops)
	assert.InDelta(t, e.cfg.DefaultStrength, results[0].ConnectionStrength, 1e-9)

	// Recall reinforces what it retrieves
	recalled, err := e.concepts.Get(ai)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), recalled.AccessCount())
}

func TestRecall_TwoHopRelevanceAndPath(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	a := e.learn(t, "a")
	b := e.learn(t, "b")
	c := e.learn(t, "c")
	e.seedEdges(t, seedEdge{a, b, 0.9}, seedEdge{b, c, 0.8})

	results, err := e.recall.RecallFromConcept(ctx, a, noBoostQuery())

	require.NoError(t, err)
	require.Len(t, results, 2)

	// b: 0.9 * 0.8^1
	assert.True(t, results[0].ConceptID.Equals(b))
	assert.InDelta(t, 0.72, results[0].Relevance, 1e-9)
	assert.Equal(t, []valueobjects.ConceptID{a, b}, results[0].Path)

	// c: (0.9*0.8) * 0.8^2, connection strength is the path product
	assert.True(t, results[1].ConceptID.Equals(c))
	assert.InDelta(t, 0.4608, results[1].Relevance, 1e-9)
	assert.InDelta(t, 0.72, results[1].ConnectionStrength, 1e-9)
	assert.Equal(t, 2, results[1].Hops)
}

func TestRecall_NeverReturnsOriginAndRespectsBounds(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	source := e.learn(t, "source")
	ids := make([]valueobjects.ConceptID, 0, 8)
	edges := make([]seedEdge, 0, 8)
	for i := 0; i < 8; i++ {
		id := e.learn(t, "n")
		ids = append(ids, id)
		edges = append(edges, seedEdge{source, id, 0.3 + float64(i)*0.05})
	}
	// A back-edge so the origin is reachable from the graph
	edges = append(edges, seedEdge{ids[0], source, 0.9})
	e.seedEdges(t, edges...)

	query := noBoostQuery()
	query.MaxResults = 3
	query.ExplorationBreadth = 10
	results, err := e.recall.RecallFromConcept(ctx, source, query)

	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.False(t, r.ConceptID.Equals(source), "origin must never be returned")
		assert.LessOrEqual(t, r.Hops, query.MaxPathLength)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Relevance, r.Relevance, "relevance must be non-increasing")
		}
	}
}

func TestRecall_MaxPathLengthBoundsTraversal(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	a := e.learn(t, "a")
	b := e.learn(t, "b")
	c := e.learn(t, "c")
	d := e.learn(t, "d")
	e.seedEdges(t, seedEdge{a, b, 1.0}, seedEdge{b, c, 1.0}, seedEdge{c, d, 1.0})

	query := noBoostQuery()
	query.MaxPathLength = 2
	results, err := e.recall.RecallFromConcept(ctx, a, query)

	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.ConceptID.Equals(d))
	}
}

func TestRecall_TerminatesOnCycles(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	a := e.learn(t, "a")
	b := e.learn(t, "b")
	e.seedEdges(t, seedEdge{a, b, 0.9}, seedEdge{b, a, 0.9})

	results, err := e.recall.RecallFromConcept(ctx, a, noBoostQuery())

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].ConceptID.Equals(b))
}

func TestRecall_MinRelevanceFilters(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	a := e.learn(t, "a")
	b := e.learn(t, "b")
	e.seedEdges(t, seedEdge{a, b, 0.1})

	// 0.1 * 0.8 = 0.08 falls below the default 0.1 floor without boost
	query := services.DefaultRecallQuery()
	query.UseRecencyBoost = false
	results, err := e.recall.RecallFromConcept(ctx, a, query)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecall_ExplorationBreadthLimitsExpansion(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	source := e.learn(t, "source")
	strong := e.learn(t, "strong")
	medium := e.learn(t, "medium")
	weak := e.learn(t, "weak")
	e.seedEdges(t,
		seedEdge{source, strong, 0.9},
		seedEdge{source, medium, 0.8},
		seedEdge{source, weak, 0.5},
	)

	query := noBoostQuery()
	query.ExplorationBreadth = 2
	results, err := e.recall.RecallFromConcept(ctx, source, query)

	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.ConceptID.Equals(weak), "breadth limit must keep the weakest neighbor out")
	}
}

func TestRecall_ValidationErrors(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	source := e.learn(t, "source")

	query := services.DefaultRecallQuery()
	query.MinRelevance = 1.5
	_, err := e.recall.RecallFromConcept(ctx, source, query)
	assert.True(t, pkgerrors.IsInvalidArgument(err))

	query = services.DefaultRecallQuery()
	query.MaxResults = 0
	_, err = e.recall.RecallFromConcept(ctx, source, query)
	assert.True(t, pkgerrors.IsInvalidArgument(err), "an unset query must be rejected, not defaulted")

	_, err = e.recall.RecallFromConcept(ctx, valueobjects.NewConceptID(), services.DefaultRecallQuery())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestRecall_ZeroMinRelevanceKeepsWeakResults(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	a := e.learn(t, "a")
	b := e.learn(t, "b")
	e.seedEdges(t, seedEdge{a, b, 0.1})

	// 0.1 * 0.8 = 0.08 sits below the default floor but an explicit
	// zero floor admits it
	query := services.DefaultRecallQuery()
	query.UseRecencyBoost = false
	query.MinRelevance = 0
	results, err := e.recall.RecallFromConcept(ctx, a, query)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].ConceptID.Equals(b))
	assert.InDelta(t, 0.08, results[0].Relevance, 1e-9)
}

func TestRecallByContent_RanksBySimilarity(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	ml := e.learn(t, "machine learning algorithms")
	dl := e.learn(t, "deep learning")
	e.learn(t, "cooking recipes")

	results, err := e.recall.RecallByContent(ctx, "learning algorithms", noBoostQuery())

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].ConceptID.Equals(ml))
	assert.True(t, results[1].ConceptID.Equals(dl))
	for _, r := range results {
		assert.Equal(t, 0, r.Hops)
		assert.Equal(t, r.ConnectionStrength, r.Relevance, "without boost, relevance is the raw similarity")
	}
}

func TestRecallByContent_RejectsEmptyQuery(t *testing.T) {
	e := newEngine(t, nil)

	_, err := e.recall.RecallByContent(context.Background(), "", services.DefaultRecallQuery())

	assert.True(t, pkgerrors.IsInvalidArgument(err))
}

func TestSpreadingActivation_AccumulatesAcrossPaths(t *testing.T) {
	// Two independent two-hop paths into the same target must activate
	// it more than a single identical path activates its target.
	e := newEngine(t, nil)
	ctx := context.Background()
	source := e.learn(t, "source")
	viaX := e.learn(t, "via x")
	viaY := e.learn(t, "via y")
	target := e.learn(t, "target")

	soloSource := e.learn(t, "solo source")
	soloVia := e.learn(t, "solo via")
	soloTarget := e.learn(t, "solo target")

	e.seedEdges(t,
		seedEdge{source, viaX, 0.9}, seedEdge{viaX, target, 0.9},
		seedEdge{source, viaY, 0.9}, seedEdge{viaY, target, 0.9},
		seedEdge{soloSource, soloVia, 0.9}, seedEdge{soloVia, soloTarget, 0.9},
	)

	twoPath, err := e.recall.SpreadingActivationRecall(ctx, source, noBoostQuery())
	require.NoError(t, err)
	onePath, err := e.recall.SpreadingActivationRecall(ctx, soloSource, noBoostQuery())
	require.NoError(t, err)

	twoPathTarget := findActivation(t, twoPath, target)
	onePathTarget := findActivation(t, onePath, soloTarget)
	assert.Greater(t, twoPathTarget.Activation, onePathTarget.Activation)
	assert.Equal(t, 2, twoPathTarget.Hops)

	// 2 * (0.9*0.7)^2 vs (0.9*0.7)^2
	assert.InDelta(t, 0.7938, twoPathTarget.Activation, 1e-4)
	assert.InDelta(t, 0.3969, onePathTarget.Activation, 1e-4)
}

func TestSpreadingActivation_NormalizesToUnitPeak(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	source := e.learn(t, "source")
	target := e.learn(t, "target")
	edges := []seedEdge{}
	for i := 0; i < 5; i++ {
		via := e.learn(t, "via")
		edges = append(edges, seedEdge{source, via, 1.0}, seedEdge{via, target, 1.0})
	}
	e.seedEdges(t, edges...)

	query := noBoostQuery()
	query.ExplorationBreadth = 10
	results, err := e.recall.SpreadingActivationRecall(ctx, source, query)

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.InDelta(t, 1.0, results[0].Activation, 1e-9, "peak activation normalizes to 1")
	assert.True(t, results[0].ConceptID.Equals(target))
	for _, r := range results {
		assert.LessOrEqual(t, r.Activation, 1.0)
	}
}

func TestSpreadingActivationStream_DeliversAndCloses(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	a := e.learn(t, "a")
	b := e.learn(t, "b")
	c := e.learn(t, "c")
	e.seedEdges(t, seedEdge{a, b, 0.9}, seedEdge{b, c, 0.9})

	stream, err := e.recall.SpreadingActivationStream(ctx, a, noBoostQuery())
	require.NoError(t, err)

	seen := map[string]bool{}
	for result := range stream {
		seen[result.ConceptID.String()] = true
	}
	assert.True(t, seen[b.String()])
	assert.True(t, seen[c.String()])
}

func findActivation(t *testing.T, results []services.ActivationResult, id valueobjects.ConceptID) services.ActivationResult {
	t.Helper()
	for _, r := range results {
		if r.ConceptID.Equals(id) {
			return r
		}
	}
	t.Fatalf("concept %s not found in activation results", id)
	return services.ActivationResult{}
}
