package entities

import (
	"time"

	"synapse/domain/core/valueobjects"
	pkgerrors "synapse/pkg/errors"
)

// Concept is the main entity representing a stored unit of knowledge
// This is a rich domain model with encapsulated mutation: content and
// metadata are immutable after creation, access statistics are not
type Concept struct {
	// Private fields ensure encapsulation
	id           valueobjects.ConceptID
	content      string
	metadata     map[string]string
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  uint64
}

// NewConcept creates a new concept with a fresh identifier
func NewConcept(content string, metadata map[string]string) (*Concept, error) {
	if content == "" {
		return nil, pkgerrors.NewInvalidArgumentError("content cannot be empty")
	}

	now := time.Now()
	c := &Concept{
		id:           valueobjects.NewConceptID(),
		content:      content,
		metadata:     copyMetadata(metadata),
		createdAt:    now,
		lastAccessed: now,
		accessCount:  0,
	}

	return c, nil
}

// ReconstructConcept rebuilds a concept from persisted data with
// preserved timestamps and counters
func ReconstructConcept(
	id valueobjects.ConceptID,
	content string,
	metadata map[string]string,
	createdAt, lastAccessed time.Time,
	accessCount uint64,
) (*Concept, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewInvalidArgumentError("concept ID cannot be empty")
	}
	if content == "" {
		return nil, pkgerrors.NewInvalidArgumentError("content cannot be empty")
	}

	return &Concept{
		id:           id,
		content:      content,
		metadata:     copyMetadata(metadata),
		createdAt:    createdAt,
		lastAccessed: lastAccessed,
		accessCount:  accessCount,
	}, nil
}

// ID returns the concept's unique identifier
func (c *Concept) ID() valueobjects.ConceptID {
	return c.id
}

// Content returns the concept's text payload
func (c *Concept) Content() string {
	return c.content
}

// Metadata returns a copy of the concept's metadata
func (c *Concept) Metadata() map[string]string {
	return copyMetadata(c.metadata)
}

// CreatedAt returns when the concept was created
func (c *Concept) CreatedAt() time.Time {
	return c.createdAt
}

// LastAccessed returns when the concept was last accessed
func (c *Concept) LastAccessed() time.Time {
	return c.lastAccessed
}

// AccessCount returns how many times the concept has been accessed
func (c *Concept) AccessCount() uint64 {
	return c.accessCount
}

// Access records one use of the concept: the counter increases and the
// last-accessed timestamp moves forward. Recall calls this for every
// concept it returns.
func (c *Concept) Access() {
	c.lastAccessed = time.Now()
	c.accessCount++
}

// Clone returns a detached copy safe to hand outside the store
func (c *Concept) Clone() *Concept {
	clone := *c
	clone.metadata = copyMetadata(c.metadata)
	return &clone
}

func copyMetadata(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
