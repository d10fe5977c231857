package embeddings

import (
	"errors"
	"testing"

	"github.com/fyrsmithlabs/contextd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxSim_IdenticalSequencesScoreDimSum(t *testing.T) {
	e := domain.Embedding{Vectors: [][]float32{{1, 0}, {0, 1}}}
	score, err := maxSim(e, e)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, score, 1e-6)
}

func TestMaxSim_PicksBestMatchPerQueryToken(t *testing.T) {
	query := domain.Embedding{Vectors: [][]float32{{1, 0}}}
	doc := domain.Embedding{Vectors: [][]float32{{0, 1}, {1, 0}, {0.5, 0.5}}}
	score, err := maxSim(query, doc)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-6)
}

func TestMaxSim_EmptyReturnsErr(t *testing.T) {
	_, err := maxSim(domain.Embedding{}, domain.Embedding{Vectors: [][]float32{{1}}})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestMaxSim_DimensionMismatch(t *testing.T) {
	query := domain.Embedding{Vectors: [][]float32{{1, 0}}}
	doc := domain.Embedding{Vectors: [][]float32{{1, 0, 0}}}
	_, err := maxSim(query, doc)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMaxSim_ErrorIsWrappable(t *testing.T) {
	_, err := maxSim(domain.Embedding{}, domain.Embedding{})
	var target error = ErrEmptyInput
	assert.True(t, errors.Is(err, target))
}
