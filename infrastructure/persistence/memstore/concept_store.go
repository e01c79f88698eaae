package memstore

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
	"synapse/pkg/common"
	pkgerrors "synapse/pkg/errors"
)

// ConceptStore is the in-memory concept repository. A single RWMutex
// guards the map; every entity that crosses the store boundary is a
// clone, so callers can never mutate shared state.
type ConceptStore struct {
	mu       sync.RWMutex
	concepts map[valueobjects.ConceptID]*entities.Concept
	cfg      *config.EngineConfig
	logger   *zap.Logger
}

// NewConceptStore creates an empty concept store
func NewConceptStore(cfg *config.EngineConfig, logger *zap.Logger) *ConceptStore {
	return &ConceptStore{
		concepts: make(map[valueobjects.ConceptID]*entities.Concept),
		cfg:      cfg,
		logger:   logger,
	}
}

// Create allocates and stores a new concept
func (s *ConceptStore) Create(content string, metadata map[string]string) (*entities.Concept, error) {
	concept, err := entities.NewConcept(content, metadata)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.concepts) >= s.cfg.MaxConcepts {
		return nil, pkgerrors.NewResourceExhaustedError("concept", s.cfg.MaxConcepts)
	}
	s.concepts[concept.ID()] = concept

	s.logger.Debug("concept created",
		zap.String("conceptId", concept.ID().String()),
		zap.Int("totalConcepts", len(s.concepts)),
	)
	return concept.Clone(), nil
}

// Get returns a copy of the concept
func (s *ConceptStore) Get(id valueobjects.ConceptID) (*entities.Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	concept, ok := s.concepts[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("concept")
	}
	return concept.Clone(), nil
}

// Access bumps the concept's access statistics and returns a copy
func (s *ConceptStore) Access(id valueobjects.ConceptID) (*entities.Concept, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	concept, ok := s.concepts[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("concept")
	}
	concept.Access()
	return concept.Clone(), nil
}

// Delete removes the concept, reporting whether it was present
func (s *ConceptStore) Delete(id valueobjects.ConceptID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.concepts[id]; !ok {
		return false
	}
	delete(s.concepts, id)
	return true
}

// Exists reports whether the concept is present
func (s *ConceptStore) Exists(id valueobjects.ConceptID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.concepts[id]
	return ok
}

// List returns one page of concepts ordered by creation time, oldest
// first, with the concept ID breaking ties
func (s *ConceptStore) List(params common.PaginationParams) ([]*entities.Concept, int, bool, error) {
	if !params.Valid() {
		return nil, 0, false, pkgerrors.NewInvalidArgumentError("page and page size must be positive")
	}

	s.mu.RLock()
	all := make([]*entities.Concept, 0, len(s.concepts))
	for _, concept := range s.concepts {
		all = append(all, concept.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt().Equal(all[j].CreatedAt()) {
			return all[i].CreatedAt().Before(all[j].CreatedAt())
		}
		return all[i].ID().Less(all[j].ID())
	})

	total := len(all)
	offset := params.CalculateOffset()
	if offset >= total {
		return []*entities.Concept{}, total, false, nil
	}
	end := offset + params.PageSize
	if end > total {
		end = total
	}
	return all[offset:end], total, end < total, nil
}

// Count returns the number of stored concepts
func (s *ConceptStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.concepts)
}

// ExportAll returns a point-in-time copy of every concept
func (s *ConceptStore) ExportAll() []*entities.Concept {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.Concept, 0, len(s.concepts))
	for _, concept := range s.concepts {
		out = append(out, concept.Clone())
	}
	return out
}

// ImportAll atomically replaces the store's contents
func (s *ConceptStore) ImportAll(concepts []*entities.Concept) {
	next := make(map[valueobjects.ConceptID]*entities.Concept, len(concepts))
	for _, concept := range concepts {
		next[concept.ID()] = concept.Clone()
	}

	s.mu.Lock()
	s.concepts = next
	s.mu.Unlock()

	s.logger.Info("concept store restored", zap.Int("concepts", len(next)))
}
