package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/contextd/internal/domain"
)

var (
	// ErrQueueFull indicates the ingestion queue has no room for another job.
	ErrQueueFull = errors.New("ingestion: queue full")

	// ErrNotFound indicates Status or Cancel was called for an unknown doc_id.
	ErrNotFound = errors.New("ingestion: document not found")

	// ErrAlreadyTerminal indicates Cancel was called for a document that has
	// already reached a terminal status.
	ErrAlreadyTerminal = errors.New("ingestion: document already in a terminal state")

	// ErrInvalidConfig indicates invalid Pipeline configuration.
	ErrInvalidConfig = errors.New("ingestion: invalid config")
)

// Parser extracts rendered pages, text chunks, and the heading outline from
// a source document. Format support (PDF, DOCX, scanned image stacks, ...)
// lives behind this interface; the pipeline itself is format-agnostic.
type Parser interface {
	Parse(ctx context.Context, docID, filename string, content []byte) ([]domain.Page, []domain.TextChunk, []domain.Heading, error)
}

// Config configures a Pipeline.
type Config struct {
	// Workers is the number of documents processed concurrently.
	Workers int

	// QueueCapacity bounds how many submitted-but-not-yet-started documents
	// may sit in the queue before Submit returns ErrQueueFull.
	QueueCapacity int

	// RetryAttempts is how many times a transient store error is retried
	// before failing the document.
	RetryAttempts int

	// RetryBackoff is the initial backoff between store retries, doubled
	// each attempt.
	RetryBackoff time.Duration

	// Quantize selects int8-scaled sequence encoding for stored records
	// instead of full float32 precision.
	Quantize bool
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 64
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue capacity must be positive", ErrInvalidConfig)
	}
	return nil
}

// Progress reports a single stage transition during ingestion, for callers
// that want to observe the pipeline beyond polling Status.
type Progress struct {
	DocID  string
	Status domain.DocStatus
}

// ProgressFunc receives stage-transition notifications. It must not block.
type ProgressFunc func(Progress)
