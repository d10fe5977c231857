package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVector(seed int, dim int) []float32 {
	v := make([]float32, dim)
	var norm float64
	for i := range v {
		v[i] = float32((seed+i)%7 - 3)
		norm += float64(v[i]) * float64(v[i])
	}
	if norm == 0 {
		v[0] = 1
		norm = 1
	}
	scale := float32(1 / sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func sqrt(f float64) float64 {
	// local helper to avoid importing math in the test for one call site twice
	x := f
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 20; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

func TestSequenceCodec_RoundTripFloat32(t *testing.T) {
	c, err := NewSequenceCodec(false)
	require.NoError(t, err)
	defer c.Close()

	seq := [][]float32{unitVector(1, 8), unitVector(2, 8), unitVector(3, 8)}

	encoded, err := c.EncodeSequence(seq)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := c.DecodeSequence(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(seq))
	for i := range seq {
		for j := range seq[i] {
			assert.InDelta(t, seq[i][j], decoded[i][j], 1e-5)
		}
	}
}

func TestSequenceCodec_RoundTripQuantized(t *testing.T) {
	c, err := NewSequenceCodec(true)
	require.NoError(t, err)
	defer c.Close()

	seq := [][]float32{unitVector(1, 16), unitVector(9, 16)}

	encoded, err := c.EncodeSequence(seq)
	require.NoError(t, err)

	decoded, err := c.DecodeSequence(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(seq))
	for i := range seq {
		for j := range seq[i] {
			// quantization tolerance: bounded by scale/2, generous margin here
			assert.InDelta(t, seq[i][j], decoded[i][j], 0.05)
		}
	}
}

func TestSequenceCodec_EmptySequence(t *testing.T) {
	c, err := NewSequenceCodec(false)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.EncodeSequence(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)

	_, err = c.DecodeSequence(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestSequenceCodec_DimensionMismatch(t *testing.T) {
	c, err := NewSequenceCodec(false)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.EncodeSequence([][]float32{unitVector(1, 4), unitVector(2, 5)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSequenceCodec_CorruptFrame(t *testing.T) {
	c, err := NewSequenceCodec(false)
	require.NoError(t, err)
	defer c.Close()

	seq := [][]float32{unitVector(1, 4)}
	encoded, err := c.EncodeSequence(seq)
	require.NoError(t, err)

	corrupted := append([]byte(nil), encoded...)
	corrupted[0] ^= 0xff

	_, err = c.DecodeSequence(corrupted)
	assert.ErrorIs(t, err, ErrCorruptFrame)
}
