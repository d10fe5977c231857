package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStructure struct {
	Headings []string `json:"headings"`
	Pages    int      `json:"pages"`
}

func TestStructureCodec_RoundTrip(t *testing.T) {
	c := NewStructureCodec()
	in := testStructure{Headings: []string{"Intro", "Methods"}, Pages: 12}

	encoded, err := c.EncodeStructure(in)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	var out testStructure
	err = c.DecodeStructure(encoded, &out)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestStructureCodec_DecodeEmptyFails(t *testing.T) {
	c := NewStructureCodec()
	var out testStructure
	err := c.DecodeStructure("", &out)
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestStructureCodec_DecodeGarbageFails(t *testing.T) {
	c := NewStructureCodec()
	var out testStructure
	err := c.DecodeStructure("not-valid-base64!!", &out)
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestStructureCodec_EncodeOversizedFails(t *testing.T) {
	c := NewStructureCodec()
	// Random-looking repeated text defeats gzip's compression enough to
	// push the encoded size past MaxStructureBytes.
	headings := make([]string, 0, 5000)
	for i := 0; i < 5000; i++ {
		headings = append(headings, randomishToken(i))
	}
	in := testStructure{Headings: headings, Pages: 1}

	_, err := c.EncodeStructure(in)
	assert.ErrorIs(t, err, ErrSizeExceeded)
}

func randomishToken(seed int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 16)
	x := uint32(seed*2654435761 + 1)
	for i := range b {
		x = x*1664525 + 1013904223
		b[i] = alphabet[x%uint32(len(alphabet))]
	}
	return string(b)
}
