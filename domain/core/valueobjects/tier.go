package valueobjects

// Tier classifies an association as short-term (recent, unconsolidated)
// or long-term (consolidated)
type Tier string

const (
	TierShortTerm Tier = "short_term"
	TierLongTerm  Tier = "long_term"
)

// Valid reports whether the tier is one of the two known zones
func (t Tier) Valid() bool {
	return t == TierShortTerm || t == TierLongTerm
}

// String returns the string representation
func (t Tier) String() string {
	return string(t)
}
