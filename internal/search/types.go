package search

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/contextd/internal/vectorstore"
)

var (
	// ErrEmptyQuery indicates a Query with no text.
	ErrEmptyQuery = errors.New("search: empty query")

	// ErrStoreUnavailable indicates the vector store could not be reached
	// for Stage 1 at all.
	ErrStoreUnavailable = errors.New("search: store unavailable")

	// ErrDeadlineExceeded indicates the deadline elapsed before any
	// Stage-1 shortlist was obtained.
	ErrDeadlineExceeded = errors.New("search: deadline exceeded")

	// ErrInvalidConfig indicates invalid Engine configuration.
	ErrInvalidConfig = errors.New("search: invalid config")
)

// Mode selects which collections a Query searches.
type Mode string

const (
	ModeHybrid     Mode = "hybrid"
	ModeVisualOnly Mode = "visual_only"
	ModeTextOnly   Mode = "text_only"
)

// Query describes one search request.
type Query struct {
	Text      string
	Mode      Mode
	NResults  int
	Filter    *vectorstore.Filter
	Deadline  time.Time
}

// Validate checks the query is usable, applying defaults for unset fields.
func (q *Query) Validate() error {
	if q.Text == "" {
		return ErrEmptyQuery
	}
	if q.Mode == "" {
		q.Mode = ModeHybrid
	}
	if q.Mode != ModeHybrid && q.Mode != ModeVisualOnly && q.Mode != ModeTextOnly {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, q.Mode)
	}
	if q.NResults <= 0 {
		q.NResults = 10
	}
	return nil
}

// Result is one ranked hit, carrying enough navigation metadata to locate
// it within its source document without a follow-up fetch.
type Result struct {
	DocID      string
	RecordID   string
	Collection vectorstore.Collection
	Score      float32
	Page       int
	Section    string
	// Text is the chunk's source text, present for CollectionText hits only.
	Text     string
	Metadata map[string]interface{}
}

// Results is the outcome of a Search call.
type Results struct {
	Hits    []Result
	Partial bool
}

// Config configures an Engine.
type Config struct {
	// CandidateMultiplier scales n_results into the Stage-1 shortlist size.
	CandidateMultiplier int

	// MinCandidates floors the Stage-1 shortlist size regardless of n_results.
	MinCandidates int

	// Deadline bounds the whole Search call when the caller supplies none.
	Deadline time.Duration

	// LexicalRerank applies a term-overlap rerank pass over text-collection
	// hits that carry chunk text, after MaxSim scoring and merge; those hits'
	// scores are replaced by their term-overlap scores (see
	// applyLexicalRerank). Off by default: the two-stage MaxSim ranking is
	// the primary algorithm.
	LexicalRerank bool
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.CandidateMultiplier == 0 {
		c.CandidateMultiplier = 4
	}
	if c.MinCandidates == 0 {
		c.MinCandidates = 50
	}
	if c.Deadline == 0 {
		c.Deadline = 2 * time.Second
	}
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if c.CandidateMultiplier <= 0 {
		return fmt.Errorf("%w: candidate multiplier must be positive", ErrInvalidConfig)
	}
	if c.MinCandidates <= 0 {
		return fmt.Errorf("%w: min candidates must be positive", ErrInvalidConfig)
	}
	return nil
}

// shortlistSize returns the Stage-1 k for the given n_results.
func (c Config) shortlistSize(nResults int) int {
	k := nResults * c.CandidateMultiplier
	if k < c.MinCandidates {
		k = c.MinCandidates
	}
	return k
}
