package reranker

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

// TermOverlapReranker scores candidates by the fraction of query terms
// present in their text, blended with the primary ranking score.
type TermOverlapReranker struct{}

// NewTermOverlapReranker constructs a TermOverlapReranker.
func NewTermOverlapReranker() *TermOverlapReranker {
	return &TermOverlapReranker{}
}

// Rerank tokenizes the query and each candidate's text, scores by term
// overlap, and sorts by 50% original score + 50% overlap. A query with no
// surviving tokens (all stopwords) falls back to the original ranking.
func (r *TermOverlapReranker) Rerank(ctx context.Context, query string, docs []Candidate, topK int) ([]ScoredCandidate, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 {
		topK = len(docs)
	}
	if len(docs) == 0 {
		return []ScoredCandidate{}, nil
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return fallbackRank(docs, topK), nil
	}

	type ranked struct {
		out           ScoredCandidate
		combinedScore float32
	}

	const originalWeight, overlapWeight = 0.5, 0.5

	scored := make([]ranked, len(docs))
	for i, doc := range docs {
		overlap := calculateTermOverlap(queryTokens, tokenize(doc.Text))
		scored[i] = ranked{
			out: ScoredCandidate{
				Candidate:     doc,
				RerankerScore: overlap,
				OriginalRank:  i,
			},
			combinedScore: originalWeight*doc.Score + overlapWeight*overlap,
		}
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].combinedScore > scored[j].combinedScore })

	limit := topK
	if limit > len(scored) {
		limit = len(scored)
	}
	result := make([]ScoredCandidate, limit)
	for i := 0; i < limit; i++ {
		result[i] = scored[i].out
	}
	return result, nil
}

// Close releases resources. TermOverlapReranker holds none.
func (r *TermOverlapReranker) Close() error {
	return nil
}

// tokenize lowercases text and splits it into terms, dropping stopwords
// and anything shorter than 3 runes.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !isAlphanumeric(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !isStopword(token) && len(token) > 2 {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "you": true, "he": true,
	"she": true, "it": true, "we": true, "they": true, "what": true, "which": true,
	"who": true, "when": true, "where": true, "why": true, "how": true,
}

func isStopword(token string) bool {
	return stopwords[token]
}

// calculateTermOverlap returns the fraction of queryTokens present in
// docTokens, 0.0-1.0.
func calculateTermOverlap(queryTokens, docTokens []string) float32 {
	if len(queryTokens) == 0 {
		return 0.0
	}

	docTokenSet := make(map[string]bool, len(docTokens))
	for _, token := range docTokens {
		docTokenSet[token] = true
	}

	matchCount := 0
	counted := make(map[string]bool, len(queryTokens))
	for _, queryToken := range queryTokens {
		if docTokenSet[queryToken] && !counted[queryToken] {
			matchCount++
			counted[queryToken] = true
		}
	}

	return float32(matchCount) / float32(len(queryTokens))
}

// fallbackRank ranks by original score when the query has no usable terms.
func fallbackRank(docs []Candidate, topK int) []ScoredCandidate {
	sorted := make([]Candidate, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	limit := topK
	if limit > len(sorted) {
		limit = len(sorted)
	}
	result := make([]ScoredCandidate, limit)
	for i := 0; i < limit; i++ {
		result[i] = ScoredCandidate{
			Candidate:     sorted[i],
			RerankerScore: sorted[i].Score,
			OriginalRank:  i,
		}
	}
	return result
}
