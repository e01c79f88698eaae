package ports

import (
	"time"

	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
	"synapse/pkg/common"
)

// ConceptRepository owns all concept records. Implementations serialize
// conflicting access internally; returned entities are detached copies.
type ConceptRepository interface {
	// Create allocates a new concept. Fails only on invalid content or
	// resource exhaustion.
	Create(content string, metadata map[string]string) (*entities.Concept, error)

	// Get returns the concept or a NotFound error.
	Get(id valueobjects.ConceptID) (*entities.Concept, error)

	// Access returns the concept after bumping its access counter and
	// last-accessed timestamp. This is the hook recall uses to simulate
	// reinforcement through use.
	Access(id valueobjects.ConceptID) (*entities.Concept, error)

	// Delete removes the concept. Returns false if it was absent.
	// Cascade removal of associations is coordinated by the caller.
	Delete(id valueobjects.ConceptID) bool

	// Exists reports whether the concept is present.
	Exists(id valueobjects.ConceptID) bool

	// List returns a stable page ordered by creation time, the total
	// count, and whether further pages exist. Page numbering is
	// 1-indexed; non-positive page or page size is an InvalidArgument.
	List(params common.PaginationParams) ([]*entities.Concept, int, bool, error)

	// Count returns the number of stored concepts.
	Count() int

	// ExportAll returns a point-in-time copy of every concept.
	ExportAll() []*entities.Concept

	// ImportAll atomically replaces the store's contents.
	ImportAll(concepts []*entities.Concept)
}

// AssociateOptions controls edge creation
type AssociateOptions struct {
	Type          string
	Bidirectional bool
}

// Neighbor is one traversable edge endpoint as seen from a concept.
// Strength is the effective (lazily decayed) value at read time.
type Neighbor struct {
	ID        valueobjects.ConceptID
	Strength  float64
	Tier      valueobjects.Tier
	Type      string
	CreatedAt time.Time
}

// AssociationRepository owns all directed edges between concepts,
// indexed by source and by target.
type AssociationRepository interface {
	// Associate inserts a new short-term edge or reinforces an existing
	// one; the check-then-act sequence, including the endpoint existence
	// check, is atomic per ordered pair. Returns created=true only when
	// a new edge was inserted for the forward pair. NotFound when either
	// endpoint is missing.
	Associate(fromID, toID valueobjects.ConceptID, opts AssociateOptions) (created bool, err error)

	// Remove deletes the edge for the given direction only. Returns
	// false if it was absent.
	Remove(fromID, toID valueobjects.ConceptID) bool

	// Get returns a copy of the edge for the ordered pair, if present.
	Get(fromID, toID valueobjects.ConceptID) (*entities.Association, bool)

	// NeighborsOut lists edges leaving the concept, both tiers merged.
	NeighborsOut(id valueobjects.ConceptID) []Neighbor

	// NeighborsIn lists edges arriving at the concept, both tiers merged.
	NeighborsIn(id valueobjects.ConceptID) []Neighbor

	// CascadeDelete removes every association where the concept appears
	// as source or target, returning copies of the removed edges.
	CascadeDelete(id valueobjects.ConceptID) []*entities.Association

	// Promote moves a short-term edge to the long-term tier with a
	// one-time bonus, merging with any existing long-term record.
	Promote(fromID, toID valueobjects.ConceptID, bonus float64) (promoted bool, merged bool)

	// DecayAndPrune materializes lazy decay on every edge and deletes
	// those whose strength fell below minStrength, returning copies of
	// the deleted edges.
	DecayAndPrune(now time.Time, minStrength float64) (decayed int, evicted []*entities.Association)

	// EdgesInTier returns point-in-time copies of every edge in a tier.
	EdgesInTier(tier valueobjects.Tier) []*entities.Association

	// Count returns the total number of edges.
	Count() int

	// CountInTier returns the number of edges in one tier.
	CountInTier(tier valueobjects.Tier) int

	// ExportAll returns a point-in-time copy of every edge.
	ExportAll() []*entities.Association

	// ImportAll atomically replaces the store's contents.
	ImportAll(associations []*entities.Association)
}
