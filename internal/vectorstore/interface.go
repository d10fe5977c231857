package vectorstore

import (
	"context"
	"errors"
)

// Collection names the vector store's two fixed collections.
type Collection string

const (
	CollectionVisual Collection = "visual"
	CollectionText   Collection = "text"
)

var (
	// ErrInvalidConfig indicates invalid client configuration.
	ErrInvalidConfig = errors.New("vectorstore: invalid config")

	// ErrConnectionFailed indicates the client could not reach the store.
	ErrConnectionFailed = errors.New("vectorstore: connection failed")

	// ErrCollectionNotFound indicates an operation targeted a collection
	// other than visual/text.
	ErrCollectionNotFound = errors.New("vectorstore: collection not found")

	// ErrInvalidFilter indicates a malformed Filter.
	ErrInvalidFilter = errors.New("vectorstore: invalid filter")

	// ErrRecordNotFound indicates GetMany found no record for an ID.
	ErrRecordNotFound = errors.New("vectorstore: record not found")

	// ErrTransient indicates a failure the caller may retry; the client
	// itself already retried internally before surfacing this.
	ErrTransient = errors.New("vectorstore: transient failure")
)

// Client is the narrow contract docusearchd's ingestion and search
// components use against the vector store. Exactly two collections exist;
// every method takes a Collection rather than an arbitrary string.
type Client interface {
	// Upsert writes or replaces records in a collection.
	Upsert(ctx context.Context, collection Collection, records []Record) error

	// Query runs an approximate nearest-neighbor search against the lead
	// vector of each record in collection, returning the top k matches.
	Query(ctx context.Context, collection Collection, leadVector []float32, k int, filter *Filter) ([]ScoredRecord, error)

	// GetMany fetches full records by ID, used to load complete
	// multi-vector sequences for exact re-ranking.
	GetMany(ctx context.Context, collection Collection, ids []string) ([]Record, error)

	// DeleteBy removes every record matching filter from collection.
	DeleteBy(ctx context.Context, collection Collection, filter Filter) error

	// Heartbeat checks store liveness.
	Heartbeat(ctx context.Context) error

	// Close releases client resources.
	Close() error
}

// Record is one stored item: an ID, the lead vector used for ANN indexing,
// the full multi-vector sequence encoded as an opaque blob (see
// internal/codec), and flat metadata.
type Record struct {
	ID           string
	LeadVector   []float32
	SequenceBlob []byte
	Metadata     map[string]interface{}
}

// ScoredRecord is a Record returned from Query, with its similarity score
// against the query's lead vector.
type ScoredRecord struct {
	Record
	Score float32
}
