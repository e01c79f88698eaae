package events

import (
	"time"

	"synapse/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetConceptID() valueobjects.ConceptID
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	ConceptID valueobjects.ConceptID `json:"concept_id"`
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e BaseEvent) GetConceptID() valueobjects.ConceptID { return e.ConceptID }
func (e BaseEvent) GetEventType() string                 { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time              { return e.Timestamp }

// Concept events

// ConceptCreated is raised when a new concept is learned
type ConceptCreated struct {
	BaseEvent
	Content string `json:"content"`
}

// NewConceptCreated creates a ConceptCreated event
func NewConceptCreated(id valueobjects.ConceptID, content string, timestamp time.Time) ConceptCreated {
	return ConceptCreated{
		BaseEvent: BaseEvent{
			ConceptID: id,
			EventType: "concept.created",
			Timestamp: timestamp,
		},
		Content: content,
	}
}

// ConceptAccessed is raised when a concept's access statistics change
type ConceptAccessed struct {
	BaseEvent
	AccessCount uint64 `json:"access_count"`
}

// NewConceptAccessed creates a ConceptAccessed event
func NewConceptAccessed(id valueobjects.ConceptID, accessCount uint64, timestamp time.Time) ConceptAccessed {
	return ConceptAccessed{
		BaseEvent: BaseEvent{
			ConceptID: id,
			EventType: "concept.accessed",
			Timestamp: timestamp,
		},
		AccessCount: accessCount,
	}
}

// ConceptDeleted is raised when a concept and its associations are removed
type ConceptDeleted struct {
	BaseEvent
	AssociationsRemoved int `json:"associations_removed"`
}

// NewConceptDeleted creates a ConceptDeleted event
func NewConceptDeleted(id valueobjects.ConceptID, associationsRemoved int, timestamp time.Time) ConceptDeleted {
	return ConceptDeleted{
		BaseEvent: BaseEvent{
			ConceptID: id,
			EventType: "concept.deleted",
			Timestamp: timestamp,
		},
		AssociationsRemoved: associationsRemoved,
	}
}

// Association events. ConceptID carries the source endpoint so that
// per-concept subscriptions fire for edge changes too.

// AssociationCreated is raised when a new edge is inserted
type AssociationCreated struct {
	BaseEvent
	TargetID valueobjects.ConceptID `json:"target_id"`
	Strength float64                `json:"strength"`
	Type     string                 `json:"type"`
}

// NewAssociationCreated creates an AssociationCreated event
func NewAssociationCreated(fromID, toID valueobjects.ConceptID, strength float64, associationType string, timestamp time.Time) AssociationCreated {
	return AssociationCreated{
		BaseEvent: BaseEvent{
			ConceptID: fromID,
			EventType: "association.created",
			Timestamp: timestamp,
		},
		TargetID: toID,
		Strength: strength,
		Type:     associationType,
	}
}

// AssociationReinforced is raised when an existing edge is strengthened
type AssociationReinforced struct {
	BaseEvent
	TargetID valueobjects.ConceptID `json:"target_id"`
	Strength float64                `json:"strength"`
}

// NewAssociationReinforced creates an AssociationReinforced event
func NewAssociationReinforced(fromID, toID valueobjects.ConceptID, strength float64, timestamp time.Time) AssociationReinforced {
	return AssociationReinforced{
		BaseEvent: BaseEvent{
			ConceptID: fromID,
			EventType: "association.reinforced",
			Timestamp: timestamp,
		},
		TargetID: toID,
		Strength: strength,
	}
}

// AssociationPromoted is raised when consolidation moves an edge to the
// long-term tier
type AssociationPromoted struct {
	BaseEvent
	TargetID valueobjects.ConceptID `json:"target_id"`
	Strength float64                `json:"strength"`
}

// NewAssociationPromoted creates an AssociationPromoted event
func NewAssociationPromoted(fromID, toID valueobjects.ConceptID, strength float64, timestamp time.Time) AssociationPromoted {
	return AssociationPromoted{
		BaseEvent: BaseEvent{
			ConceptID: fromID,
			EventType: "association.promoted",
			Timestamp: timestamp,
		},
		TargetID: toID,
		Strength: strength,
	}
}

// AssociationRemoved is raised when an edge is deleted, whether by
// explicit removal, cascade, or forgetting
type AssociationRemoved struct {
	BaseEvent
	TargetID valueobjects.ConceptID `json:"target_id"`
	Reason   string                 `json:"reason"`
}

// Removal reasons
const (
	RemovalReasonExplicit  = "explicit"
	RemovalReasonCascade   = "cascade"
	RemovalReasonForgotten = "forgotten"
)

// NewAssociationRemoved creates an AssociationRemoved event
func NewAssociationRemoved(fromID, toID valueobjects.ConceptID, reason string, timestamp time.Time) AssociationRemoved {
	return AssociationRemoved{
		BaseEvent: BaseEvent{
			ConceptID: fromID,
			EventType: "association.removed",
			Timestamp: timestamp,
		},
		TargetID: toID,
		Reason:   reason,
	}
}
