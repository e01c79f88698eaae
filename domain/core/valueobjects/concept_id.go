package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// ConceptID is a value object representing a unique concept identifier
// Value objects are immutable and have no identity beyond their value
type ConceptID struct {
	value string
}

// NewConceptID creates a new random ConceptID
func NewConceptID() ConceptID {
	return ConceptID{value: uuid.New().String()}
}

// NewConceptIDFromString creates a ConceptID from an existing string
func NewConceptIDFromString(id string) (ConceptID, error) {
	if id == "" {
		return ConceptID{}, errors.New("concept ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return ConceptID{}, errors.New("concept ID must be a valid UUID")
	}
	return ConceptID{value: id}, nil
}

// String returns the string representation of the ConceptID
func (id ConceptID) String() string {
	return id.value
}

// Equals checks if two ConceptIDs are equal
func (id ConceptID) Equals(other ConceptID) bool {
	return id.value == other.value
}

// IsZero checks if the ConceptID is the zero value
func (id ConceptID) IsZero() bool {
	return id.value == ""
}

// Less provides a stable ordering for deterministic tie-breaking
func (id ConceptID) Less(other ConceptID) bool {
	return id.value < other.value
}

// MarshalJSON implements json.Marshaler
func (id ConceptID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *ConceptID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("ConceptID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}
