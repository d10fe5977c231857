package embeddings

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/contextd/internal/domain"
)

var (
	// ErrEmptyInput indicates an empty input batch or query.
	ErrEmptyInput = errors.New("embeddings: empty input")

	// ErrDimensionMismatch indicates two vectors being compared have
	// different per-token dimensions.
	ErrDimensionMismatch = errors.New("embeddings: dimension mismatch")

	// ErrServiceUnavailable indicates the embedding service could not be
	// reached or returned a server error.
	ErrServiceUnavailable = errors.New("embeddings: service unavailable")

	// ErrInvalidConfig indicates invalid Engine configuration.
	ErrInvalidConfig = errors.New("embeddings: invalid config")
)

// Engine is the multi-vector embedding contract docusearchd's ingestion and
// search components use. Every returned vector is unit-normalized.
type Engine interface {
	// EmbedImages returns one multi-vector sequence per rendered page, in
	// input order.
	EmbedImages(ctx context.Context, pages []domain.Page) ([]domain.Embedding, error)

	// EmbedTexts returns one multi-vector sequence per text chunk, in
	// input order.
	EmbedTexts(ctx context.Context, chunks []domain.TextChunk) ([]domain.Embedding, error)

	// EmbedQuery returns the multi-vector sequence for a search query.
	EmbedQuery(ctx context.Context, text string) (domain.Embedding, error)

	// ScoreMultiVector computes the exact MaxSim late-interaction score
	// between a query sequence and a candidate document sequence.
	ScoreMultiVector(query, doc domain.Embedding) (float32, error)

	// Dimension returns the per-token vector dimension the engine produces.
	Dimension() int
}
