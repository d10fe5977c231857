package vectorstore

import (
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Host: "localhost", Port: 6334, VectorSize: 128}
	cfg.ApplyDefaults()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, 64*1024*1024, cfg.MaxMessageSize)
	assert.Equal(t, 5, cfg.CircuitBreakerThreshold)
	assert.Equal(t, qdrant.Distance_Cosine, cfg.Distance)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Host: "localhost", Port: 6334, VectorSize: 128}, false},
		{"missing host", Config{Port: 6334, VectorSize: 128}, true},
		{"bad port", Config{Host: "h", Port: 0, VectorSize: 128}, true},
		{"missing vector size", Config{Host: "h", Port: 6334}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRecordPointRoundTrip(t *testing.T) {
	rec := Record{
		ID:           "doc1-visual-p0001",
		LeadVector:   []float32{0.1, 0.2, 0.3},
		SequenceBlob: []byte{1, 2, 3, 4},
		Metadata:     map[string]interface{}{"doc_id": "doc1", "page": int64(1)},
	}

	point := recordToPoint(rec)
	require.NotNil(t, point.Payload)

	back := pointToRecord(rec.ID, rec.LeadVector, point.Payload)
	assert.Equal(t, rec.SequenceBlob, back.SequenceBlob)
	assert.Equal(t, "doc1", back.Metadata["doc_id"])
	assert.Equal(t, int64(1), back.Metadata["page"])
	assert.Equal(t, rec.LeadVector, back.LeadVector)
}

func TestBuildQdrantFilter_Nil(t *testing.T) {
	f, err := buildQdrantFilter(nil)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestBuildQdrantFilter_Eq(t *testing.T) {
	filter := NewFilterBuilder().Eq("doc_id", "doc1").Build()
	qf, err := buildQdrantFilter(&filter)
	require.NoError(t, err)
	require.Len(t, qf.Must, 1)
}

func TestBuildQdrantFilter_InvalidReturnsError(t *testing.T) {
	bad := Filter{Conditions: []Condition{{Field: ""}}}
	_, err := buildQdrantFilter(&bad)
	require.Error(t, err)
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, isTransientError(nil))
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	c := &QdrantClient{config: Config{CircuitBreakerThreshold: 2}}

	assert.False(t, c.isCircuitOpen())
	c.recordFailure()
	assert.False(t, c.isCircuitOpen())
	c.recordFailure()
	assert.True(t, c.isCircuitOpen())

	c.resetCircuitBreaker()
	assert.False(t, c.isCircuitOpen())
}

func TestCircuitBreaker_ResetsAfterWindow(t *testing.T) {
	c := &QdrantClient{config: Config{CircuitBreakerThreshold: 1}}
	c.recordFailure()
	require.True(t, c.isCircuitOpen())

	c.circuitBreaker.lastFail = time.Now().Add(-circuitResetWindow - time.Second)
	assert.False(t, c.isCircuitOpen())
}
