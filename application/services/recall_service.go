package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"synapse/application/ports"
	"synapse/application/subscriptions"
	"synapse/domain/config"
	"synapse/domain/core/valueobjects"
	"synapse/domain/events"
	pkgerrors "synapse/pkg/errors"
)

// Recency boost windows. Concepts touched recently surface higher in
// recall results; stale ones are slightly penalized.
const (
	recencyBoostHour = 1.5
	recencyBoostDay  = 1.2
	recencyBoostWeek = 1.0
	recencyPenalty   = 0.8
)

// RecallQuery tunes a recall traversal. Start from DefaultRecallQuery
// and override fields; the zero value fails validation, so an
// accidental MaxResults of 0 surfaces as an InvalidArgument instead of
// being silently papered over, and an explicit MinRelevance of 0 means
// exactly that.
type RecallQuery struct {
	MaxResults         int     `validate:"gte=1,lte=1000"`
	MinRelevance       float64 `validate:"gte=0,lte=1"`
	MaxPathLength      int     `validate:"gte=1,lte=10"`
	ExplorationBreadth int     `validate:"gte=1,lte=100"`
	UseRecencyBoost    bool
}

// DefaultRecallQuery returns the standard recall parameters
func DefaultRecallQuery() RecallQuery {
	return RecallQuery{
		MaxResults:         10,
		MinRelevance:       0.1,
		MaxPathLength:      3,
		ExplorationBreadth: 5,
		UseRecencyBoost:    true,
	}
}

// RecallResult is one recalled concept with the evidence for it.
// ConnectionStrength is the strength of the edges actually traversed:
// the product of edge strengths along the best path for graph recall,
// or the raw similarity score for content recall.
type RecallResult struct {
	ConceptID          valueobjects.ConceptID   `json:"concept_id"`
	Content            string                   `json:"content"`
	Relevance          float64                  `json:"relevance"`
	ConnectionStrength float64                  `json:"connection_strength"`
	Path               []valueobjects.ConceptID `json:"path"`
	Hops               int                      `json:"hops"`

	createdAt time.Time
}

// ActivationResult is one concept reached by spreading activation.
// ConnectionStrength is the strongest single incoming contribution the
// concept received during propagation; Hops is the step it was first
// reached on.
type ActivationResult struct {
	ConceptID          valueobjects.ConceptID `json:"concept_id"`
	Content            string                 `json:"content"`
	Activation         float64                `json:"activation"`
	ConnectionStrength float64                `json:"connection_strength"`
	Hops               int                    `json:"hops"`
}

// RecallService walks the association graph to surface related
// concepts. Every returned concept counts as accessed, which is how
// recall feeds back into consolidation.
type RecallService struct {
	concepts     ports.ConceptRepository
	associations ports.AssociationRepository
	similarity   ports.SimilarityProvider
	hub          *subscriptions.Hub
	cfg          *config.EngineConfig
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewRecallService creates a RecallService
func NewRecallService(
	concepts ports.ConceptRepository,
	associations ports.AssociationRepository,
	similarity ports.SimilarityProvider,
	hub *subscriptions.Hub,
	cfg *config.EngineConfig,
	logger *zap.Logger,
) *RecallService {
	return &RecallService{
		concepts:     concepts,
		associations: associations,
		similarity:   similarity,
		hub:          hub,
		cfg:          cfg,
		validate:     validator.New(),
		logger:       logger,
	}
}

// RecallFromConcept finds concepts associated with the source, ranked
// by path relevance: the product of edge strengths along the best path,
// discounted per hop. The source itself is never in the results.
func (s *RecallService) RecallFromConcept(ctx context.Context, sourceID valueobjects.ConceptID, query RecallQuery) ([]RecallResult, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, pkgerrors.NewInvalidArgumentError("invalid recall query").WithCause(err)
	}
	if _, err := s.concepts.Get(sourceID); err != nil {
		return nil, err
	}
	s.markAccessed(sourceID)

	results := s.traverse(ctx, sourceID, query)

	sortResults(results)
	if len(results) > query.MaxResults {
		results = results[:query.MaxResults]
	}

	for _, r := range results {
		s.markAccessed(r.ConceptID)
	}

	s.logger.Debug("recall completed",
		zap.String("sourceId", sourceID.String()),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// traverse runs a breadth-first walk over outgoing edges, keeping the
// best path product per node and re-expanding a node when a stronger
// path to it is found later.
func (s *RecallService) traverse(ctx context.Context, sourceID valueobjects.ConceptID, query RecallQuery) []RecallResult {
	type frontierItem struct {
		id      valueobjects.ConceptID
		product float64
		path    []valueobjects.ConceptID
	}

	best := map[valueobjects.ConceptID]float64{sourceID: 1.0}
	bestPath := map[valueobjects.ConceptID][]valueobjects.ConceptID{}
	queue := []frontierItem{{id: sourceID, product: 1.0, path: []valueobjects.ConceptID{sourceID}}}

	for len(queue) > 0 {
		if ctx.Err() != nil {
			break
		}
		item := queue[0]
		queue = queue[1:]

		hops := len(item.path) - 1
		if hops >= query.MaxPathLength {
			continue
		}

		for _, n := range s.strongestNeighbors(item.id, query.ExplorationBreadth) {
			if n.ID.Equals(sourceID) || onPath(item.path, n.ID) {
				continue
			}
			product := item.product * n.Strength
			if product <= best[n.ID] {
				continue
			}
			path := append(append([]valueobjects.ConceptID{}, item.path...), n.ID)
			best[n.ID] = product
			bestPath[n.ID] = path
			queue = append(queue, frontierItem{id: n.ID, product: product, path: path})
		}
	}

	now := time.Now()
	results := make([]RecallResult, 0, len(best))
	for id, product := range best {
		if id.Equals(sourceID) {
			continue
		}
		concept, err := s.concepts.Get(id)
		if err != nil {
			// Concurrently deleted; leave it out.
			continue
		}

		path := bestPath[id]
		hops := len(path) - 1
		relevance := product * math.Pow(s.cfg.PathDecayRate, float64(hops))
		if query.UseRecencyBoost {
			relevance = math.Min(relevance*recencyFactor(now, concept.LastAccessed()), 1.0)
		}
		if relevance < query.MinRelevance {
			continue
		}

		results = append(results, RecallResult{
			ConceptID:          id,
			Content:            concept.Content(),
			Relevance:          relevance,
			ConnectionStrength: product,
			Path:               path,
			Hops:               hops,
			createdAt:          concept.CreatedAt(),
		})
	}
	return results
}

// RecallByContent ranks all stored concepts against a free-text query
// using the similarity provider
func (s *RecallService) RecallByContent(ctx context.Context, content string, query RecallQuery) ([]RecallResult, error) {
	if content == "" {
		return nil, pkgerrors.NewInvalidArgumentError("content query cannot be empty")
	}
	if err := s.validate.Struct(query); err != nil {
		return nil, pkgerrors.NewInvalidArgumentError("invalid recall query").WithCause(err)
	}

	now := time.Now()
	results := make([]RecallResult, 0)
	for _, concept := range s.concepts.ExportAll() {
		if ctx.Err() != nil {
			return nil, pkgerrors.Wrap(ctx.Err(), "content recall cancelled")
		}
		score := s.similarity.Score(content, concept.Content())
		relevance := score
		if query.UseRecencyBoost {
			relevance = math.Min(relevance*recencyFactor(now, concept.LastAccessed()), 1.0)
		}
		if relevance < query.MinRelevance {
			continue
		}
		results = append(results, RecallResult{
			ConceptID:          concept.ID(),
			Content:            concept.Content(),
			Relevance:          relevance,
			ConnectionStrength: score,
			Path:               []valueobjects.ConceptID{concept.ID()},
			Hops:               0,
			createdAt:          concept.CreatedAt(),
		})
	}

	sortResults(results)
	if len(results) > query.MaxResults {
		results = results[:query.MaxResults]
	}
	for _, r := range results {
		s.markAccessed(r.ConceptID)
	}
	return results, nil
}

// SpreadingActivationRecall propagates activation energy outward from
// the source. Each step, every active node pushes a share of its
// activation across its outgoing edges; contributions arriving at the
// same node sum. Propagation halts when the largest single gain in a
// step drops below the configured epsilon or the step limit is reached.
func (s *RecallService) SpreadingActivationRecall(ctx context.Context, sourceID valueobjects.ConceptID, query RecallQuery) ([]ActivationResult, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, pkgerrors.NewInvalidArgumentError("invalid recall query").WithCause(err)
	}
	if _, err := s.concepts.Get(sourceID); err != nil {
		return nil, err
	}
	s.markAccessed(sourceID)

	state := s.spread(ctx, sourceID, query, nil)
	results := s.collectActivations(sourceID, state, query)

	for _, r := range results {
		s.markAccessed(r.ConceptID)
	}
	return results, nil
}

// SpreadingActivationStream is SpreadingActivationRecall with
// progressive delivery: each propagation step emits the concepts whose
// activation first crossed the relevance floor during that step. The
// channel closes when propagation halts or ctx is cancelled.
func (s *RecallService) SpreadingActivationStream(ctx context.Context, sourceID valueobjects.ConceptID, query RecallQuery) (<-chan ActivationResult, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, pkgerrors.NewInvalidArgumentError("invalid recall query").WithCause(err)
	}
	if _, err := s.concepts.Get(sourceID); err != nil {
		return nil, err
	}

	out := make(chan ActivationResult, query.MaxResults)
	go func() {
		defer close(out)
		s.markAccessed(sourceID)

		emitted := map[valueobjects.ConceptID]bool{}
		onStep := func(state *spreadState) bool {
			for _, r := range s.collectActivations(sourceID, state, query) {
				if emitted[r.ConceptID] {
					continue
				}
				emitted[r.ConceptID] = true
				select {
				case out <- r:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		s.spread(ctx, sourceID, query, onStep)
		for id := range emitted {
			s.markAccessed(id)
		}
	}()
	return out, nil
}

// spreadState is the running bookkeeping of one propagation:
// accumulated activation, the strongest single contribution each node
// received, and the step each node was first reached on.
type spreadState struct {
	activation map[valueobjects.ConceptID]float64
	strongest  map[valueobjects.ConceptID]float64
	arrival    map[valueobjects.ConceptID]int
}

// spread runs the activation propagation loop. onStep, when non-nil, is
// invoked after every step with the running state; returning false
// stops propagation early.
func (s *RecallService) spread(
	ctx context.Context,
	sourceID valueobjects.ConceptID,
	query RecallQuery,
	onStep func(*spreadState) bool,
) *spreadState {
	state := &spreadState{
		activation: map[valueobjects.ConceptID]float64{sourceID: 1.0},
		strongest:  map[valueobjects.ConceptID]float64{},
		arrival:    map[valueobjects.ConceptID]int{},
	}
	frontier := []valueobjects.ConceptID{sourceID}

	for step := 1; step <= query.MaxPathLength && len(frontier) > 0; step++ {
		if ctx.Err() != nil {
			break
		}

		gains := map[valueobjects.ConceptID]float64{}
		for _, id := range frontier {
			for _, n := range s.strongestNeighbors(id, query.ExplorationBreadth) {
				contribution := state.activation[id] * n.Strength * s.cfg.SpreadDecayFactor
				gains[n.ID] += contribution
				if contribution > state.strongest[n.ID] {
					state.strongest[n.ID] = contribution
				}
			}
		}

		maxGain := 0.0
		frontier = frontier[:0]
		for id, gain := range gains {
			if id.Equals(sourceID) {
				continue
			}
			if _, seen := state.activation[id]; !seen {
				state.arrival[id] = step
			}
			state.activation[id] += gain
			frontier = append(frontier, id)
			if gain > maxGain {
				maxGain = gain
			}
		}

		if onStep != nil && !onStep(state) {
			break
		}
		if maxGain < s.cfg.ActivationEpsilon {
			break
		}
	}
	return state
}

// collectActivations normalizes activations so the strongest non-source
// concept sits at 1.0 at most, then filters, sorts, and truncates.
func (s *RecallService) collectActivations(
	sourceID valueobjects.ConceptID,
	state *spreadState,
	query RecallQuery,
) []ActivationResult {
	peak := 0.0
	for id, a := range state.activation {
		if !id.Equals(sourceID) && a > peak {
			peak = a
		}
	}
	scale := 1.0
	if peak > 1.0 {
		scale = 1.0 / peak
	}

	results := make([]ActivationResult, 0, len(state.activation))
	for id, a := range state.activation {
		if id.Equals(sourceID) {
			continue
		}
		level := a * scale
		if level < query.MinRelevance {
			continue
		}
		concept, err := s.concepts.Get(id)
		if err != nil {
			continue
		}
		results = append(results, ActivationResult{
			ConceptID:          id,
			Content:            concept.Content(),
			Activation:         level,
			ConnectionStrength: state.strongest[id],
			Hops:               state.arrival[id],
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Activation != results[j].Activation {
			return results[i].Activation > results[j].Activation
		}
		return results[i].ConceptID.Less(results[j].ConceptID)
	})
	if len(results) > query.MaxResults {
		results = results[:query.MaxResults]
	}
	return results
}

// strongestNeighbors returns up to breadth outgoing edges above the
// active threshold, strongest first, with older edges and then the
// concept ID breaking ties so traversal order is deterministic.
func (s *RecallService) strongestNeighbors(id valueobjects.ConceptID, breadth int) []ports.Neighbor {
	neighbors := s.associations.NeighborsOut(id)
	active := neighbors[:0]
	for _, n := range neighbors {
		if valueobjects.NewStrength(n.Strength).IsActive(s.cfg.ActiveThreshold) {
			active = append(active, n)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Strength != active[j].Strength {
			return active[i].Strength > active[j].Strength
		}
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID.Less(active[j].ID)
	})
	if len(active) > breadth {
		active = active[:breadth]
	}
	return active
}

// markAccessed records one use of a concept and publishes the access
// event. Concepts deleted mid-recall are ignored.
func (s *RecallService) markAccessed(id valueobjects.ConceptID) {
	concept, err := s.concepts.Access(id)
	if err != nil {
		return
	}
	s.hub.Publish(events.NewConceptAccessed(id, concept.AccessCount(), concept.LastAccessed()))
}

func sortResults(results []RecallResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		if len(results[i].Path) != len(results[j].Path) {
			return len(results[i].Path) < len(results[j].Path)
		}
		if !results[i].createdAt.Equal(results[j].createdAt) {
			return results[i].createdAt.Before(results[j].createdAt)
		}
		return results[i].ConceptID.Less(results[j].ConceptID)
	})
}

// recencyFactor scales relevance by how recently the concept was used
func recencyFactor(now, lastAccessed time.Time) float64 {
	elapsed := now.Sub(lastAccessed)
	switch {
	case elapsed < time.Hour:
		return recencyBoostHour
	case elapsed < 24*time.Hour:
		return recencyBoostDay
	case elapsed < 7*24*time.Hour:
		return recencyBoostWeek
	default:
		return recencyPenalty
	}
}

func onPath(path []valueobjects.ConceptID, id valueobjects.ConceptID) bool {
	for _, p := range path {
		if p.Equals(id) {
			return true
		}
	}
	return false
}
