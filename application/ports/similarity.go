package ports

// SimilarityProvider scores how close a candidate's content is to a
// query, in [0, 1]. Implementations must be pure and safe for
// concurrent use; content recall calls Score once per stored concept.
type SimilarityProvider interface {
	Score(query, candidate string) float64
}
