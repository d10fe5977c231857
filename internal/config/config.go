// Package config builds docusearchd's configuration as a single immutable
// value, populated from environment variables via koanf's env provider. No
// component reads a global config singleton; each receives its own typed
// sub-config (see the To*Config helpers) at construction.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/contextd/internal/embeddings"
	"github.com/fyrsmithlabs/contextd/internal/httpapi"
	"github.com/fyrsmithlabs/contextd/internal/ingestion"
	"github.com/fyrsmithlabs/contextd/internal/search"
	"github.com/fyrsmithlabs/contextd/internal/vectorstore"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds docusearchd's complete configuration.
type Config struct {
	// EmbeddingDim is the per-token embedding dimension every stored
	// vector and query embedding must agree on.
	EmbeddingDim int `koanf:"embedding_dim"`

	// BatchVisual and BatchText are per-collection ingestion batch sizes.
	// They are loaded and validated but not passed to the ingestion
	// pipeline, which embeds all of a document's pages in one EmbedImages
	// call and all of its chunks in one EmbedTexts call.
	BatchVisual int `koanf:"b_visual"`
	BatchText   int `koanf:"b_text"`

	// CandidateMultiplier and MinCandidates size the Stage-1 ANN shortlist.
	CandidateMultiplier int `koanf:"candidate_multiplier"`
	MinCandidates       int `koanf:"min_candidates"`

	// SearchDeadlineMS bounds a Search call when the caller specifies none.
	SearchDeadlineMS int `koanf:"search_deadline_ms"`

	// StoreHost and StorePort address the vector store.
	StoreHost string `koanf:"store_host"`
	StorePort int    `koanf:"store_port"`

	// IngestQueueCapacity and IngestWorkers size the ingestion pipeline.
	IngestQueueCapacity int `koanf:"ingest_queue_capacity"`
	IngestWorkers       int `koanf:"ingest_workers"`

	// DecodeCacheBytes is the byte budget for a cross-request
	// decoded-sequence cache. No component reads it: the search engine
	// decodes every candidate's sequence per request, without a cache.
	DecodeCacheBytes int64 `koanf:"decode_cache_bytes"`

	// HTTPPort is the port the HTTP API listens on.
	HTTPPort int `koanf:"http_port"`

	// LogLevel controls zap's logging verbosity.
	LogLevel string `koanf:"log_level"`

	// OTELExporterOTLPEndpoint is the collector endpoint for traces and
	// metrics; empty disables OTLP export.
	OTELExporterOTLPEndpoint string `koanf:"otel_exporter_otlp_endpoint"`

	// EmbeddingServiceURL addresses the external multi-vector embedding
	// service.
	EmbeddingServiceURL string `koanf:"embedding_service_url"`

	// QuantizeVectors selects int8-scaled sequence encoding; the Open
	// Question this leaves configurable rather than pinned.
	QuantizeVectors bool `koanf:"quantize_vectors"`

	// SearchLexicalRerank enables a term-overlap rerank pass over the
	// MaxSim-ranked results, on top of (not instead of) the primary
	// ranking algorithm.
	SearchLexicalRerank bool `koanf:"search_lexical_rerank"`
}

// Load builds a Config from environment variables, applies defaults for
// unset fields, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.EmbeddingDim == 0 {
		c.EmbeddingDim = 128
	}
	if c.BatchVisual == 0 {
		c.BatchVisual = 8
	}
	if c.BatchText == 0 {
		c.BatchText = 32
	}
	if c.CandidateMultiplier == 0 {
		c.CandidateMultiplier = 4
	}
	if c.MinCandidates == 0 {
		c.MinCandidates = 50
	}
	if c.SearchDeadlineMS == 0 {
		c.SearchDeadlineMS = 2000
	}
	if c.StoreHost == "" {
		c.StoreHost = "localhost"
	}
	if c.StorePort == 0 {
		c.StorePort = 6334
	}
	if c.IngestQueueCapacity == 0 {
		c.IngestQueueCapacity = 64
	}
	if c.IngestWorkers == 0 {
		c.IngestWorkers = 4
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.EmbeddingServiceURL == "" {
		c.EmbeddingServiceURL = "http://localhost:8081"
	}
}

// Validate checks ranges and required values, failing fast at startup
// rather than surfacing a misconfiguration deep in a request path.
func (c Config) Validate() error {
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive, got %d", c.EmbeddingDim)
	}
	if c.BatchVisual <= 0 || c.BatchText <= 0 {
		return fmt.Errorf("b_visual and b_text must be positive")
	}
	if c.CandidateMultiplier <= 0 {
		return fmt.Errorf("candidate_multiplier must be positive, got %d", c.CandidateMultiplier)
	}
	if c.MinCandidates <= 0 {
		return fmt.Errorf("min_candidates must be positive, got %d", c.MinCandidates)
	}
	if c.SearchDeadlineMS <= 0 {
		return fmt.Errorf("search_deadline_ms must be positive, got %d", c.SearchDeadlineMS)
	}
	if c.StoreHost == "" {
		return fmt.Errorf("store_host is required")
	}
	if c.StorePort <= 0 {
		return fmt.Errorf("store_port must be positive, got %d", c.StorePort)
	}
	if c.IngestQueueCapacity <= 0 || c.IngestWorkers <= 0 {
		return fmt.Errorf("ingest_queue_capacity and ingest_workers must be positive")
	}
	if c.HTTPPort <= 0 {
		return fmt.Errorf("http_port must be positive, got %d", c.HTTPPort)
	}
	if c.EmbeddingServiceURL == "" {
		return fmt.Errorf("embedding_service_url is required")
	}
	return nil
}

// ToVectorStoreConfig builds a vectorstore.Config from c.
func (c Config) ToVectorStoreConfig() vectorstore.Config {
	return vectorstore.Config{
		Host:       c.StoreHost,
		Port:       c.StorePort,
		VectorSize: uint64(c.EmbeddingDim),
	}
}

// ToEmbeddingsConfig builds an embeddings.Config from c.
func (c Config) ToEmbeddingsConfig() embeddings.Config {
	return embeddings.Config{
		BaseURL: c.EmbeddingServiceURL,
		Dim:     c.EmbeddingDim,
	}
}

// ToIngestionConfig builds an ingestion.Config from c.
func (c Config) ToIngestionConfig() ingestion.Config {
	return ingestion.Config{
		Workers:       c.IngestWorkers,
		QueueCapacity: c.IngestQueueCapacity,
		Quantize:      c.QuantizeVectors,
	}
}

// ToSearchConfig builds a search.Config from c.
func (c Config) ToSearchConfig() search.Config {
	return search.Config{
		CandidateMultiplier: c.CandidateMultiplier,
		MinCandidates:       c.MinCandidates,
		Deadline:            time.Duration(c.SearchDeadlineMS) * time.Millisecond,
		LexicalRerank:       c.SearchLexicalRerank,
	}
}

// ToHTTPConfig builds an httpapi.Config from c.
func (c Config) ToHTTPConfig() httpapi.Config {
	return httpapi.Config{
		Port: c.HTTPPort,
	}
}
