package similarity

import "strings"

// minTokenLength filters out short stopword-like tokens
const minTokenLength = 3

// LexicalProvider scores content similarity by Jaccard overlap of word
// sets. It is deliberately simple: no external models, deterministic,
// and cheap enough to run against every stored concept.
type LexicalProvider struct{}

// NewLexicalProvider creates a LexicalProvider
func NewLexicalProvider() *LexicalProvider {
	return &LexicalProvider{}
}

// Score returns the Jaccard similarity of the two texts' token sets,
// in [0, 1]. Identical token sets score 1; disjoint ones score 0.
func (p *LexicalProvider) Score(query, candidate string) float64 {
	queryTokens := tokenize(query)
	candidateTokens := tokenize(candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return 0
	}

	intersection := 0
	for token := range queryTokens {
		if _, ok := candidateTokens[token]; ok {
			intersection++
		}
	}
	union := len(queryTokens) + len(candidateTokens) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// tokenize lowercases and splits on non-letter, non-digit runes,
// dropping tokens shorter than minTokenLength
func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
	for _, field := range fields {
		if len(field) >= minTokenLength {
			tokens[field] = struct{}{}
		}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 0x80
}
