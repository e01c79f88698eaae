package memstore

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"synapse/application/ports"
	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
	pkgerrors "synapse/pkg/errors"
)

type pairKey struct {
	from valueobjects.ConceptID
	to   valueobjects.ConceptID
}

// AssociationStore is the in-memory association repository. Edges live
// in one map per tier keyed by ordered endpoint pair, so a pair holds
// at most one edge per tier. Secondary indexes by source and by target
// make neighbor lookups and cascade deletes cheap; the values are
// reference counts because a pair may appear in both tiers.
type AssociationStore struct {
	mu       sync.RWMutex
	short    map[pairKey]*entities.Association
	long     map[pairKey]*entities.Association
	bySource map[valueobjects.ConceptID]map[valueobjects.ConceptID]int
	byTarget map[valueobjects.ConceptID]map[valueobjects.ConceptID]int
	concepts *ConceptStore
	cfg      *config.EngineConfig
	logger   *zap.Logger
}

// NewAssociationStore creates an empty association store backed by the
// given concept store for endpoint existence checks
func NewAssociationStore(concepts *ConceptStore, cfg *config.EngineConfig, logger *zap.Logger) *AssociationStore {
	return &AssociationStore{
		short:    make(map[pairKey]*entities.Association),
		long:     make(map[pairKey]*entities.Association),
		bySource: make(map[valueobjects.ConceptID]map[valueobjects.ConceptID]int),
		byTarget: make(map[valueobjects.ConceptID]map[valueobjects.ConceptID]int),
		concepts: concepts,
		cfg:      cfg,
		logger:   logger,
	}
}

// Associate inserts or reinforces the edge from fromID to toID, and the
// mirror edge as well when opts.Bidirectional is set. The
// check-then-act sequence per pair happens under one write lock, so
// concurrent calls for the same pair cannot both insert. The endpoint
// existence check happens inside the same write section: combined with
// deletes removing the concept record before cascading (see
// MemoryService.Delete), an insert that races a delete either sees the
// concept already gone or lands before the cascade, which then sweeps
// the edge. Either way no edge outlives its endpoints.
func (s *AssociationStore) Associate(fromID, toID valueobjects.ConceptID, opts ports.AssociateOptions) (bool, error) {
	if fromID.IsZero() || toID.IsZero() {
		return false, pkgerrors.NewInvalidArgumentError("association endpoints cannot be empty")
	}
	if fromID.Equals(toID) {
		return false, pkgerrors.NewInvalidArgumentError("cannot associate a concept with itself")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.concepts.Exists(fromID) || !s.concepts.Exists(toID) {
		return false, pkgerrors.NewNotFoundError("concept")
	}

	created, err := s.upsertLocked(fromID, toID, opts)
	if err != nil {
		return false, err
	}
	if opts.Bidirectional {
		if _, err := s.upsertLocked(toID, fromID, opts); err != nil {
			return created, err
		}
	}
	return created, nil
}

// upsertLocked reinforces an existing edge for the pair, short-term
// first, or inserts a fresh short-term edge. Caller holds the write lock.
func (s *AssociationStore) upsertLocked(fromID, toID valueobjects.ConceptID, opts ports.AssociateOptions) (bool, error) {
	key := pairKey{from: fromID, to: toID}

	if edge, ok := s.short[key]; ok {
		edge.Reinforce(s.cfg.ReinforcementIncrement)
		return false, nil
	}
	if edge, ok := s.long[key]; ok {
		edge.Reinforce(s.cfg.ReinforcementIncrement)
		return false, nil
	}

	if len(s.short)+len(s.long) >= s.cfg.MaxAssociations {
		return false, pkgerrors.NewResourceExhaustedError("association", s.cfg.MaxAssociations)
	}

	edge, err := entities.NewAssociation(fromID, toID, opts.Type, opts.Bidirectional, s.cfg.DefaultStrength)
	if err != nil {
		return false, err
	}
	s.short[key] = edge
	s.indexAddLocked(fromID, toID)
	return true, nil
}

// Remove deletes the edge for the given direction only
func (s *AssociationStore) Remove(fromID, toID valueobjects.ConceptID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.removePairLocked(pairKey{from: fromID, to: toID})) > 0
}

// Get returns a copy of the edge for the ordered pair, preferring the
// short-term record when the pair exists in both tiers
func (s *AssociationStore) Get(fromID, toID valueobjects.ConceptID) (*entities.Association, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := pairKey{from: fromID, to: toID}
	if edge, ok := s.short[key]; ok {
		return edge.Clone(), true
	}
	if edge, ok := s.long[key]; ok {
		return edge.Clone(), true
	}
	return nil, false
}

// NeighborsOut lists edges leaving the concept with their effective
// strengths as of the call
func (s *AssociationStore) NeighborsOut(id valueobjects.ConceptID) []ports.Neighbor {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	targets := s.bySource[id]
	out := make([]ports.Neighbor, 0, len(targets))
	for to := range targets {
		key := pairKey{from: id, to: to}
		for _, tierMap := range []map[pairKey]*entities.Association{s.short, s.long} {
			if edge, ok := tierMap[key]; ok {
				out = append(out, s.neighborLocked(to, edge, now))
			}
		}
	}
	return out
}

// NeighborsIn lists edges arriving at the concept with their effective
// strengths as of the call
func (s *AssociationStore) NeighborsIn(id valueobjects.ConceptID) []ports.Neighbor {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := s.byTarget[id]
	out := make([]ports.Neighbor, 0, len(sources))
	for from := range sources {
		key := pairKey{from: from, to: id}
		for _, tierMap := range []map[pairKey]*entities.Association{s.short, s.long} {
			if edge, ok := tierMap[key]; ok {
				out = append(out, s.neighborLocked(from, edge, now))
			}
		}
	}
	return out
}

func (s *AssociationStore) neighborLocked(endpoint valueobjects.ConceptID, edge *entities.Association, now time.Time) ports.Neighbor {
	return ports.Neighbor{
		ID:        endpoint,
		Strength:  edge.EffectiveStrength(now, s.cfg).Value(),
		Tier:      edge.Tier(),
		Type:      edge.Type(),
		CreatedAt: edge.CreatedAt(),
	}
}

// CascadeDelete removes every edge touching the concept in either
// direction, returning copies of the removed edges so the caller can
// publish a removal event per edge
func (s *AssociationStore) CascadeDelete(id valueobjects.ConceptID) []*entities.Association {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []*entities.Association
	for to := range s.bySource[id] {
		removed = append(removed, s.removePairLocked(pairKey{from: id, to: to})...)
	}
	for from := range s.byTarget[id] {
		removed = append(removed, s.removePairLocked(pairKey{from: from, to: id})...)
	}

	if len(removed) > 0 {
		s.logger.Debug("cascade removed associations",
			zap.String("conceptId", id.String()),
			zap.Int("removed", len(removed)),
		)
	}
	return removed
}

// Promote moves the pair's short-term edge to the long-term tier with a
// one-time bonus. When a long-term record already exists for the pair
// the two are merged: strengths averaged, reinforcement counts summed.
func (s *AssociationStore) Promote(fromID, toID valueobjects.ConceptID, bonus float64) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{from: fromID, to: toID}
	edge, ok := s.short[key]
	if !ok {
		return false, false
	}
	delete(s.short, key)
	edge.Promote(bonus)

	if existing, ok := s.long[key]; ok {
		merged, err := entities.ReconstructAssociation(
			fromID, toID,
			valueobjects.AverageStrength(existing.Strength(), edge.Strength()).Value(),
			existing.Type(),
			valueobjects.TierLongTerm,
			existing.IsBidirectional() || edge.IsBidirectional(),
			existing.CreatedAt(),
			time.Now(),
			existing.Reinforcements()+edge.Reinforcements(),
		)
		if err != nil {
			// Endpoints were already valid; keep the existing record.
			s.indexDropLocked(fromID, toID)
			return false, false
		}
		s.long[key] = merged
		s.indexDropLocked(fromID, toID)
		return true, true
	}

	s.long[key] = edge
	return true, false
}

// DecayAndPrune materializes lazy decay on every edge and evicts those
// whose strength fell below minStrength, returning copies of the
// evicted edges
func (s *AssociationStore) DecayAndPrune(now time.Time, minStrength float64) (int, []*entities.Association) {
	s.mu.Lock()
	defer s.mu.Unlock()

	decayed := 0
	var evicted []*entities.Association
	for _, tierMap := range []map[pairKey]*entities.Association{s.short, s.long} {
		for key, edge := range tierMap {
			edge.ApplyDecay(now, s.cfg)
			decayed++
			if edge.Strength().Value() < minStrength {
				delete(tierMap, key)
				s.indexDropLocked(key.from, key.to)
				evicted = append(evicted, edge.Clone())
			}
		}
	}
	return decayed, evicted
}

// EdgesInTier returns point-in-time copies of every edge in a tier
func (s *AssociationStore) EdgesInTier(tier valueobjects.Tier) []*entities.Association {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tierMap := s.tierMapLocked(tier)
	out := make([]*entities.Association, 0, len(tierMap))
	for _, edge := range tierMap {
		out = append(out, edge.Clone())
	}
	return out
}

// Count returns the total number of edges across both tiers
func (s *AssociationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.short) + len(s.long)
}

// CountInTier returns the number of edges in one tier
func (s *AssociationStore) CountInTier(tier valueobjects.Tier) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tierMapLocked(tier))
}

// ExportAll returns a point-in-time copy of every edge
func (s *AssociationStore) ExportAll() []*entities.Association {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.Association, 0, len(s.short)+len(s.long))
	for _, edge := range s.short {
		out = append(out, edge.Clone())
	}
	for _, edge := range s.long {
		out = append(out, edge.Clone())
	}
	return out
}

// ImportAll atomically replaces the store's contents and rebuilds the
// endpoint indexes
func (s *AssociationStore) ImportAll(associations []*entities.Association) {
	short := make(map[pairKey]*entities.Association)
	long := make(map[pairKey]*entities.Association)
	bySource := make(map[valueobjects.ConceptID]map[valueobjects.ConceptID]int)
	byTarget := make(map[valueobjects.ConceptID]map[valueobjects.ConceptID]int)

	for _, edge := range associations {
		key := pairKey{from: edge.FromID(), to: edge.ToID()}
		tierMap := short
		if edge.Tier() == valueobjects.TierLongTerm {
			tierMap = long
		}
		if _, dup := tierMap[key]; dup {
			continue
		}
		tierMap[key] = edge.Clone()
		indexAdd(bySource, key.from, key.to)
		indexAdd(byTarget, key.to, key.from)
	}

	s.mu.Lock()
	s.short = short
	s.long = long
	s.bySource = bySource
	s.byTarget = byTarget
	s.mu.Unlock()

	s.logger.Info("association store restored",
		zap.Int("shortTerm", len(short)),
		zap.Int("longTerm", len(long)),
	)
}

func (s *AssociationStore) tierMapLocked(tier valueobjects.Tier) map[pairKey]*entities.Association {
	if tier == valueobjects.TierLongTerm {
		return s.long
	}
	return s.short
}

// removePairLocked deletes the pair's edges from both tiers, returning
// copies of whatever was removed (at most one edge per tier)
func (s *AssociationStore) removePairLocked(key pairKey) []*entities.Association {
	var removed []*entities.Association
	if edge, ok := s.short[key]; ok {
		delete(s.short, key)
		s.indexDropLocked(key.from, key.to)
		removed = append(removed, edge.Clone())
	}
	if edge, ok := s.long[key]; ok {
		delete(s.long, key)
		s.indexDropLocked(key.from, key.to)
		removed = append(removed, edge.Clone())
	}
	return removed
}

func (s *AssociationStore) indexAddLocked(from, to valueobjects.ConceptID) {
	indexAdd(s.bySource, from, to)
	indexAdd(s.byTarget, to, from)
}

func (s *AssociationStore) indexDropLocked(from, to valueobjects.ConceptID) {
	indexDrop(s.bySource, from, to)
	indexDrop(s.byTarget, to, from)
}

func indexAdd(index map[valueobjects.ConceptID]map[valueobjects.ConceptID]int, key, value valueobjects.ConceptID) {
	bucket, ok := index[key]
	if !ok {
		bucket = make(map[valueobjects.ConceptID]int)
		index[key] = bucket
	}
	bucket[value]++
}

func indexDrop(index map[valueobjects.ConceptID]map[valueobjects.ConceptID]int, key, value valueobjects.ConceptID) {
	bucket, ok := index[key]
	if !ok {
		return
	}
	bucket[value]--
	if bucket[value] <= 0 {
		delete(bucket, value)
	}
	if len(bucket) == 0 {
		delete(index, key)
	}
}
