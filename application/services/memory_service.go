package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"synapse/application/ports"
	"synapse/application/subscriptions"
	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
	"synapse/domain/events"
	"synapse/pkg/common"
	pkgerrors "synapse/pkg/errors"
)

// MemoryStats is a point-in-time census of the graph
type MemoryStats struct {
	Concepts              int `json:"concepts"`
	ShortTermAssociations int `json:"short_term_associations"`
	LongTermAssociations  int `json:"long_term_associations"`
	TotalAssociations     int `json:"total_associations"`
}

// MemoryService is the engine's facade. It owns the write operations on
// the graph, publishes domain events for them, and delegates traversal
// and maintenance to the specialized services.
type MemoryService struct {
	concepts      ports.ConceptRepository
	associations  ports.AssociationRepository
	recall        *RecallService
	consolidation *ConsolidationService
	gateway       ports.PersistenceGateway
	hub           *subscriptions.Hub
	cfg           *config.EngineConfig
	logger        *zap.Logger
}

// NewMemoryService creates a MemoryService
func NewMemoryService(
	concepts ports.ConceptRepository,
	associations ports.AssociationRepository,
	recall *RecallService,
	consolidation *ConsolidationService,
	gateway ports.PersistenceGateway,
	hub *subscriptions.Hub,
	cfg *config.EngineConfig,
	logger *zap.Logger,
) *MemoryService {
	return &MemoryService{
		concepts:      concepts,
		associations:  associations,
		recall:        recall,
		consolidation: consolidation,
		gateway:       gateway,
		hub:           hub,
		cfg:           cfg,
		logger:        logger,
	}
}

// Learn stores a new concept
func (s *MemoryService) Learn(ctx context.Context, content string, metadata map[string]string) (*entities.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "learn cancelled")
	}
	concept, err := s.concepts.Create(content, metadata)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(events.NewConceptCreated(concept.ID(), concept.Content(), concept.CreatedAt()))
	return concept, nil
}

// Get returns a concept without touching its access statistics
func (s *MemoryService) Get(ctx context.Context, id valueobjects.ConceptID) (*entities.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "get cancelled")
	}
	return s.concepts.Get(id)
}

// Access returns a concept after recording one use of it
func (s *MemoryService) Access(ctx context.Context, id valueobjects.ConceptID) (*entities.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "access cancelled")
	}
	concept, err := s.concepts.Access(id)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(events.NewConceptAccessed(id, concept.AccessCount(), concept.LastAccessed()))
	return concept, nil
}

// Associate links two concepts. A repeat association reinforces the
// existing edge instead of duplicating it.
func (s *MemoryService) Associate(ctx context.Context, fromID, toID valueobjects.ConceptID, opts ports.AssociateOptions) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, pkgerrors.Wrap(err, "associate cancelled")
	}
	created, err := s.associations.Associate(fromID, toID, opts)
	if err != nil {
		return false, err
	}

	if edge, ok := s.associations.Get(fromID, toID); ok {
		if created {
			s.hub.Publish(events.NewAssociationCreated(
				fromID, toID, edge.Strength().Value(), edge.Type(), edge.CreatedAt(),
			))
		} else {
			s.hub.Publish(events.NewAssociationReinforced(
				fromID, toID, edge.Strength().Value(), time.Now(),
			))
		}
	}
	if opts.Bidirectional {
		if edge, ok := s.associations.Get(toID, fromID); ok {
			if created {
				s.hub.Publish(events.NewAssociationCreated(
					toID, fromID, edge.Strength().Value(), edge.Type(), edge.CreatedAt(),
				))
			} else {
				s.hub.Publish(events.NewAssociationReinforced(
					toID, fromID, edge.Strength().Value(), time.Now(),
				))
			}
		}
	}
	return created, nil
}

// RemoveAssociation deletes one direction of an edge
func (s *MemoryService) RemoveAssociation(ctx context.Context, fromID, toID valueobjects.ConceptID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, pkgerrors.Wrap(err, "remove cancelled")
	}
	removed := s.associations.Remove(fromID, toID)
	if removed {
		s.hub.Publish(events.NewAssociationRemoved(fromID, toID, events.RemovalReasonExplicit, time.Now()))
	}
	return removed, nil
}

// Delete removes a concept and then cascades over every association
// touching it. The concept record goes first: once it is gone the
// association store refuses new edges to it, and the cascade sweeps any
// edge that landed in the window before, so no edge outlives its
// endpoints. Returns the number of associations removed and whether
// the concept existed; deleting an absent id is not an error, so
// deletes are safe to retry.
func (s *MemoryService) Delete(ctx context.Context, id valueobjects.ConceptID) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, pkgerrors.Wrap(err, "delete cancelled")
	}
	if !s.concepts.Delete(id) {
		return 0, false, nil
	}

	removed := s.associations.CascadeDelete(id)
	now := time.Now()
	for _, edge := range removed {
		s.hub.Publish(events.NewAssociationRemoved(edge.FromID(), edge.ToID(), events.RemovalReasonCascade, now))
	}
	s.hub.Publish(events.NewConceptDeleted(id, len(removed), now))

	s.logger.Info("concept deleted",
		zap.String("conceptId", id.String()),
		zap.Int("associationsRemoved", len(removed)),
	)
	return len(removed), true, nil
}

// ListConcepts returns one page of concepts with pagination metadata
func (s *MemoryService) ListConcepts(ctx context.Context, params common.PaginationParams) ([]*entities.Concept, *common.PaginationInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, pkgerrors.Wrap(err, "list cancelled")
	}
	concepts, total, _, err := s.concepts.List(params)
	if err != nil {
		return nil, nil, err
	}
	return concepts, common.BuildPaginationMeta(params.Page, params.PageSize, total), nil
}

// RecallFromConcept surfaces concepts associated with the source
func (s *MemoryService) RecallFromConcept(ctx context.Context, sourceID valueobjects.ConceptID, query RecallQuery) ([]RecallResult, error) {
	return s.recall.RecallFromConcept(ctx, sourceID, query)
}

// RecallByContent surfaces concepts whose content resembles the query
func (s *MemoryService) RecallByContent(ctx context.Context, content string, query RecallQuery) ([]RecallResult, error) {
	return s.recall.RecallByContent(ctx, content, query)
}

// SpreadingActivationRecall surfaces concepts by propagated activation
func (s *MemoryService) SpreadingActivationRecall(ctx context.Context, sourceID valueobjects.ConceptID, query RecallQuery) ([]ActivationResult, error) {
	return s.recall.SpreadingActivationRecall(ctx, sourceID, query)
}

// SpreadingActivationStream is the progressive form of spreading
// activation recall
func (s *MemoryService) SpreadingActivationStream(ctx context.Context, sourceID valueobjects.ConceptID, query RecallQuery) (<-chan ActivationResult, error) {
	return s.recall.SpreadingActivationStream(ctx, sourceID, query)
}

// Consolidate promotes short-term associations that earned long-term status
func (s *MemoryService) Consolidate(ctx context.Context, force bool) (*ConsolidationStats, error) {
	return s.consolidation.Consolidate(ctx, force)
}

// Forget removes associations whose decayed strength fell below minStrength
func (s *MemoryService) Forget(ctx context.Context, minStrength float64) (*ForgetStats, error) {
	return s.consolidation.Forget(ctx, minStrength)
}

// Optimize runs one full maintenance cycle and compacts storage
func (s *MemoryService) Optimize(ctx context.Context) (*OptimizeStats, error) {
	stats, err := s.consolidation.Optimize(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.Optimize(ctx); err != nil {
		s.logger.Warn("storage optimization failed", zap.Error(err))
	}
	return stats, nil
}

// Stats returns a census of the in-memory graph
func (s *MemoryService) Stats(ctx context.Context) (*MemoryStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "stats cancelled")
	}
	short := s.associations.CountInTier(valueobjects.TierShortTerm)
	long := s.associations.CountInTier(valueobjects.TierLongTerm)
	return &MemoryStats{
		Concepts:              s.concepts.Count(),
		ShortTermAssociations: short,
		LongTermAssociations:  long,
		TotalAssociations:     short + long,
	}, nil
}

// Snapshot exports the whole graph and saves it through the persistence
// gateway. The export itself holds the store locks only briefly; the
// write happens outside them.
func (s *MemoryService) Snapshot(ctx context.Context) error {
	snapshot := buildSnapshot(s.concepts.ExportAll(), s.associations.ExportAll())
	if err := s.gateway.Save(ctx, snapshot); err != nil {
		return pkgerrors.Wrap(err, "snapshot save failed")
	}
	s.logger.Info("snapshot saved",
		zap.Int("concepts", len(snapshot.Concepts)),
		zap.Int("associations", len(snapshot.Associations)),
	)
	return nil
}

// Restore replaces the in-memory graph with the last saved snapshot
func (s *MemoryService) Restore(ctx context.Context) error {
	snapshot, err := s.gateway.Load(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "snapshot load failed")
	}
	concepts, associations, err := decodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	s.concepts.ImportAll(concepts)
	s.associations.ImportAll(associations)

	s.logger.Info("snapshot restored",
		zap.Int("concepts", len(concepts)),
		zap.Int("associations", len(associations)),
		zap.Time("takenAt", snapshot.TakenAt),
	)
	return nil
}

// Backup writes a consistent copy of the durable store to dest
func (s *MemoryService) Backup(ctx context.Context, dest string) error {
	return s.gateway.Backup(ctx, dest)
}

// StorageStats reports size and freshness of the durable copy
func (s *MemoryService) StorageStats(ctx context.Context) (*ports.PersistenceStats, error) {
	return s.gateway.Stats(ctx)
}

// Subscribe registers a listener for events about one concept
func (s *MemoryService) Subscribe(conceptID valueobjects.ConceptID) *subscriptions.Subscription {
	return s.hub.Subscribe(conceptID)
}

// SubscribeAll registers a listener for every event
func (s *MemoryService) SubscribeAll() *subscriptions.Subscription {
	return s.hub.SubscribeAll()
}

// Close shuts the event hub and releases the persistence gateway
func (s *MemoryService) Close() error {
	s.hub.Close()
	return s.gateway.Close()
}
