// Package reranker implements an optional lexical tie-break pass over
// already-scored text chunks, layered on top of the search engine's
// primary MaxSim ranking rather than replacing it.
package reranker

import (
	"context"
)

// Candidate is one chunk eligible for lexical reranking, carrying the
// score it already received from the primary ranking algorithm.
type Candidate struct {
	ID    string  // record ID
	Text  string  // chunk text to match against the query
	Score float32 // score from the primary (MaxSim) ranking
}

// ScoredCandidate is a Candidate after lexical scoring.
type ScoredCandidate struct {
	Candidate
	RerankerScore float32 // term-overlap score, 0.0-1.0 (the original Score when the query has no usable terms)
	OriginalRank  int     // rank before reranking, 0-indexed
}

// Reranker re-scores candidates by lexical relevance to a query.
type Reranker interface {
	// Rerank scores docs against query and returns the top topK in the
	// reranker's final order, best first. For TermOverlapReranker that order
	// is an equal blend of Score and RerankerScore, so it need not match
	// RerankerScore alone. ctx must not be nil.
	Rerank(ctx context.Context, query string, docs []Candidate, topK int) ([]ScoredCandidate, error)

	// Close releases any resources held by the reranker.
	Close() error
}
