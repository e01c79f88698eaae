package valueobjects_test

import (
	"testing"

	"synapse/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConceptID_NewIsUnique(t *testing.T) {
	a := valueobjects.NewConceptID()
	b := valueobjects.NewConceptID()

	assert.False(t, a.IsZero())
	assert.False(t, a.Equals(b))
}

func TestConceptID_FromStringValidation(t *testing.T) {
	_, err := valueobjects.NewConceptIDFromString("")
	assert.Error(t, err)

	_, err = valueobjects.NewConceptIDFromString("not-a-uuid")
	assert.Error(t, err)

	id, err := valueobjects.NewConceptIDFromString("550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id.String())
}

func TestConceptID_JSONRoundTrip(t *testing.T) {
	id := valueobjects.NewConceptID()

	data, err := id.MarshalJSON()
	require.NoError(t, err)

	var decoded valueobjects.ConceptID
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.True(t, id.Equals(decoded))
}
