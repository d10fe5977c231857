package search

import (
	"context"

	"github.com/fyrsmithlabs/contextd/internal/reranker"
	"go.uber.org/zap"
)

// applyLexicalRerank re-scores text-collection hits by term overlap with the
// query, replacing each such hit's MaxSim-based score with its term-overlap
// score (the fraction of query terms found in the chunk text). Hits without
// chunk text (visual hits) keep their score. This never changes which hits
// are present; because the caller sorts all hits together afterwards, the
// new scores can also move text hits relative to visual hits.
func (e *Engine) applyLexicalRerank(ctx context.Context, queryText string, results []Result) []Result {
	docs := make([]reranker.Candidate, 0, len(results))
	indexByID := make(map[string]int, len(results))
	for i, r := range results {
		if r.Text == "" {
			continue
		}
		docs = append(docs, reranker.Candidate{ID: r.RecordID, Text: r.Text, Score: r.Score})
		indexByID[r.RecordID] = i
	}
	if len(docs) == 0 {
		return results
	}

	scored, err := e.lexical.Rerank(ctx, queryText, docs, len(docs))
	if err != nil {
		e.logger.Warn("lexical rerank failed, keeping MaxSim order", zap.Error(err))
		return results
	}

	for _, sd := range scored {
		if i, ok := indexByID[sd.ID]; ok {
			results[i].Score = sd.RerankerScore
		}
	}
	return results
}
