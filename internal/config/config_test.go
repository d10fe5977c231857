package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		key := k
		require.NoError(t, os.Setenv(key, v))
		t.Cleanup(func() { os.Unsetenv(key) })
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.EmbeddingDim)
	assert.Equal(t, "localhost", cfg.StoreHost)
	assert.Equal(t, 6334, cfg.StorePort)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	setEnv(t, map[string]string{
		"EMBEDDING_DIM": "256",
		"HTTP_PORT":     "9000",
		"STORE_HOST":    "qdrant.internal",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.EmbeddingDim)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, "qdrant.internal", cfg.StoreHost)
}

func TestConfig_Validate_RejectsNonPositiveDim(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	cfg.EmbeddingDim = 0
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestConfig_ToSearchConfig(t *testing.T) {
	cfg := Config{SearchDeadlineMS: 1500, CandidateMultiplier: 4, MinCandidates: 50}
	sc := cfg.ToSearchConfig()
	assert.Equal(t, 1500*time.Millisecond, sc.Deadline)
	assert.Equal(t, 4, sc.CandidateMultiplier)
}

func TestConfig_ToVectorStoreConfig(t *testing.T) {
	cfg := Config{StoreHost: "h", StorePort: 1, EmbeddingDim: 64}
	vc := cfg.ToVectorStoreConfig()
	assert.Equal(t, "h", vc.Host)
	assert.Equal(t, uint64(64), vc.VectorSize)
}
