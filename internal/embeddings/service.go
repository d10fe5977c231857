package embeddings

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fyrsmithlabs/contextd/internal/domain"
	"go.uber.org/zap"
)

// Config holds HTTPEngine configuration.
type Config struct {
	// BaseURL is the embedding service's base URL.
	BaseURL string

	// Dim is the per-token vector dimension the service produces.
	Dim int

	// Timeout bounds each HTTP call.
	Timeout time.Duration
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults suited to local development.
func ConfigFromEnv() Config {
	baseURL := os.Getenv("EMBEDDING_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}
	return Config{BaseURL: baseURL, Dim: 128, Timeout: 30 * time.Second}
}

// Validate checks required fields are set.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Dim <= 0 {
		return fmt.Errorf("%w: dim must be positive", ErrInvalidConfig)
	}
	return nil
}

// HTTPEngine implements Engine against an out-of-process embedding service
// reachable over HTTP.
type HTTPEngine struct {
	config  Config
	client  *http.Client
	metrics *Metrics
}

// NewHTTPEngine creates an HTTPEngine, applying config.Timeout to its
// internal HTTP client.
func NewHTTPEngine(config Config) (*HTTPEngine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &HTTPEngine{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		metrics: NewMetrics(zap.NewNop()),
	}, nil
}

// Dimension returns the per-token vector dimension.
func (e *HTTPEngine) Dimension() int {
	return e.config.Dim
}

type sequenceResponse struct {
	Sequences [][][]float32 `json:"sequences"`
}

type singleSequenceResponse struct {
	Sequence [][]float32 `json:"sequence"`
}

func (e *HTTPEngine) postJSON(ctx context.Context, path string, reqBody interface{}, out interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrServiceUnavailable, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func sequencesToEmbeddings(seqs [][][]float32) []domain.Embedding {
	out := make([]domain.Embedding, len(seqs))
	for i, s := range seqs {
		out[i] = domain.Embedding{Vectors: s}
	}
	return out
}

// EmbedImages embeds rendered page images.
func (e *HTTPEngine) EmbedImages(ctx context.Context, pages []domain.Page) ([]domain.Embedding, error) {
	start := time.Now()
	var genErr error
	defer func() {
		e.metrics.RecordGeneration(ctx, "embed_images", time.Since(start), len(pages), genErr)
	}()

	if len(pages) == 0 {
		genErr = ErrEmptyInput
		return nil, genErr
	}

	images := make([]string, len(pages))
	for i, p := range pages {
		images[i] = base64.StdEncoding.EncodeToString(p.ImageBytes)
	}

	var resp sequenceResponse
	if genErr = e.postJSON(ctx, "/embed_images", map[string]interface{}{"images": images}, &resp); genErr != nil {
		return nil, genErr
	}
	return sequencesToEmbeddings(resp.Sequences), nil
}

// EmbedTexts embeds extracted text chunks.
func (e *HTTPEngine) EmbedTexts(ctx context.Context, chunks []domain.TextChunk) ([]domain.Embedding, error) {
	start := time.Now()
	var genErr error
	defer func() {
		e.metrics.RecordGeneration(ctx, "embed_texts", time.Since(start), len(chunks), genErr)
	}()

	if len(chunks) == 0 {
		genErr = ErrEmptyInput
		return nil, genErr
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var resp sequenceResponse
	if genErr = e.postJSON(ctx, "/embed_texts", map[string]interface{}{"texts": texts}, &resp); genErr != nil {
		return nil, genErr
	}
	return sequencesToEmbeddings(resp.Sequences), nil
}

// EmbedQuery embeds a single search query.
func (e *HTTPEngine) EmbedQuery(ctx context.Context, text string) (domain.Embedding, error) {
	start := time.Now()
	var genErr error
	defer func() {
		e.metrics.RecordGeneration(ctx, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = ErrEmptyInput
		return domain.Embedding{}, genErr
	}

	var resp singleSequenceResponse
	if genErr = e.postJSON(ctx, "/embed_query", map[string]interface{}{"text": text}, &resp); genErr != nil {
		return domain.Embedding{}, genErr
	}
	return domain.Embedding{Vectors: resp.Sequence}, nil
}

// ScoreMultiVector computes the exact MaxSim score between query and doc.
func (e *HTTPEngine) ScoreMultiVector(query, doc domain.Embedding) (float32, error) {
	return maxSim(query, doc)
}

var _ Engine = (*HTTPEngine)(nil)
