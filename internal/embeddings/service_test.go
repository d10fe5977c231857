package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fyrsmithlabs/contextd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{BaseURL: "http://x"}.Validate())
	assert.NoError(t, Config{BaseURL: "http://x", Dim: 128}.Validate())
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*HTTPEngine, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	engine, err := NewHTTPEngine(Config{BaseURL: srv.URL, Dim: 2})
	require.NoError(t, err)
	return engine, srv.Close
}

func TestHTTPEngine_EmbedTexts(t *testing.T) {
	engine, closeFn := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed_texts", r.URL.Path)
		_ = json.NewEncoder(w).Encode(sequenceResponse{
			Sequences: [][][]float32{{{1, 0}, {0, 1}}},
		})
	})
	defer closeFn()

	out, err := engine.EmbedTexts(context.Background(), []domain.TextChunk{{Text: "hello"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out[0].Vectors)
}

func TestHTTPEngine_EmbedTexts_EmptyInput(t *testing.T) {
	engine, err := NewHTTPEngine(Config{BaseURL: "http://unused", Dim: 2})
	require.NoError(t, err)

	_, err = engine.EmbedTexts(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestHTTPEngine_EmbedQuery(t *testing.T) {
	engine, closeFn := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed_query", r.URL.Path)
		_ = json.NewEncoder(w).Encode(singleSequenceResponse{
			Sequence: [][]float32{{1, 0}},
		})
	})
	defer closeFn()

	out, err := engine.EmbedQuery(context.Background(), "find me")
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}}, out.Vectors)
}

func TestHTTPEngine_ServerError(t *testing.T) {
	engine, closeFn := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeFn()

	_, err := engine.EmbedQuery(context.Background(), "x")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestHTTPEngine_ScoreMultiVector(t *testing.T) {
	engine, err := NewHTTPEngine(Config{BaseURL: "http://unused", Dim: 2})
	require.NoError(t, err)

	e := domain.Embedding{Vectors: [][]float32{{1, 0}}}
	score, err := engine.ScoreMultiVector(e, e)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-6)
}
