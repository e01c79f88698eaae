package services

import (
	"time"

	"synapse/application/ports"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
	pkgerrors "synapse/pkg/errors"
)

// buildSnapshot converts live entities into their wire form
func buildSnapshot(concepts []*entities.Concept, associations []*entities.Association) *ports.Snapshot {
	snapshot := &ports.Snapshot{
		TakenAt:      time.Now(),
		Concepts:     make([]ports.ConceptRecord, 0, len(concepts)),
		Associations: make([]ports.AssociationRecord, 0, len(associations)),
	}
	for _, c := range concepts {
		snapshot.Concepts = append(snapshot.Concepts, ports.ConceptRecord{
			ID:           c.ID().String(),
			Content:      c.Content(),
			Metadata:     c.Metadata(),
			CreatedAt:    c.CreatedAt(),
			LastAccessed: c.LastAccessed(),
			AccessCount:  c.AccessCount(),
		})
	}
	for _, a := range associations {
		snapshot.Associations = append(snapshot.Associations, ports.AssociationRecord{
			FromID:         a.FromID().String(),
			ToID:           a.ToID().String(),
			Strength:       a.Strength().Value(),
			Type:           a.Type(),
			Tier:           a.Tier().String(),
			Bidirectional:  a.IsBidirectional(),
			CreatedAt:      a.CreatedAt(),
			LastReinforced: a.LastReinforced(),
			Reinforcements: a.Reinforcements(),
		})
	}
	return snapshot
}

// decodeSnapshot rebuilds entities from their wire form. A record that
// fails validation poisons the whole restore; partial graphs are worse
// than a clean failure.
func decodeSnapshot(snapshot *ports.Snapshot) ([]*entities.Concept, []*entities.Association, error) {
	concepts := make([]*entities.Concept, 0, len(snapshot.Concepts))
	for _, rec := range snapshot.Concepts {
		id, err := valueobjects.NewConceptIDFromString(rec.ID)
		if err != nil {
			return nil, nil, pkgerrors.NewInvalidArgumentError("snapshot concept has invalid ID: " + rec.ID)
		}
		concept, err := entities.ReconstructConcept(id, rec.Content, rec.Metadata, rec.CreatedAt, rec.LastAccessed, rec.AccessCount)
		if err != nil {
			return nil, nil, pkgerrors.Wrapf(err, "snapshot concept %s", rec.ID)
		}
		concepts = append(concepts, concept)
	}

	associations := make([]*entities.Association, 0, len(snapshot.Associations))
	for _, rec := range snapshot.Associations {
		fromID, err := valueobjects.NewConceptIDFromString(rec.FromID)
		if err != nil {
			return nil, nil, pkgerrors.NewInvalidArgumentError("snapshot association has invalid source ID: " + rec.FromID)
		}
		toID, err := valueobjects.NewConceptIDFromString(rec.ToID)
		if err != nil {
			return nil, nil, pkgerrors.NewInvalidArgumentError("snapshot association has invalid target ID: " + rec.ToID)
		}
		association, err := entities.ReconstructAssociation(
			fromID, toID,
			rec.Strength,
			rec.Type,
			valueobjects.Tier(rec.Tier),
			rec.Bidirectional,
			rec.CreatedAt,
			rec.LastReinforced,
			rec.Reinforcements,
		)
		if err != nil {
			return nil, nil, pkgerrors.Wrapf(err, "snapshot association %s -> %s", rec.FromID, rec.ToID)
		}
		associations = append(associations, association)
	}
	return concepts, associations, nil
}
