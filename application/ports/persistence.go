package ports

import (
	"context"
	"time"
)

// ConceptRecord is the wire form of a concept inside a snapshot
type ConceptRecord struct {
	ID           string            `json:"id"`
	Content      string            `json:"content"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	AccessCount  uint64            `json:"access_count"`
}

// AssociationRecord is the wire form of an association inside a snapshot
type AssociationRecord struct {
	FromID         string    `json:"from_id"`
	ToID           string    `json:"to_id"`
	Strength       float64   `json:"strength"`
	Type           string    `json:"type"`
	Tier           string    `json:"tier"`
	Bidirectional  bool      `json:"bidirectional"`
	CreatedAt      time.Time `json:"created_at"`
	LastReinforced time.Time `json:"last_reinforced"`
	Reinforcements uint64    `json:"reinforcements"`
}

// Snapshot is a point-in-time export of the whole memory graph
type Snapshot struct {
	TakenAt      time.Time           `json:"taken_at"`
	Concepts     []ConceptRecord     `json:"concepts"`
	Associations []AssociationRecord `json:"associations"`
}

// PersistenceStats describes the durable copy of the graph
type PersistenceStats struct {
	ConceptCount     int       `json:"concept_count"`
	AssociationCount int       `json:"association_count"`
	SizeBytes        int64     `json:"size_bytes"`
	LastSnapshot     time.Time `json:"last_snapshot"`
}

// PersistenceGateway persists snapshots of the in-memory graph. The
// engine never reads through the gateway on the hot path; it saves and
// restores whole snapshots.
type PersistenceGateway interface {
	// Save durably replaces the stored snapshot
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load returns the last saved snapshot, or an empty one if nothing
	// has been saved yet
	Load(ctx context.Context) (*Snapshot, error)

	// Backup writes a consistent copy of the store to dest
	Backup(ctx context.Context, dest string) error

	// Stats reports size and freshness of the durable copy
	Stats(ctx context.Context) (*PersistenceStats, error)

	// Optimize compacts the underlying storage
	Optimize(ctx context.Context) error

	// Close releases the underlying storage handle
	Close() error
}
