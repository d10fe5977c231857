package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

var (
	// ErrEncodeFailed is returned when a DocumentStructure cannot be serialized.
	ErrEncodeFailed = errors.New("codec: structure encode failed")

	// ErrDecodeFailed is returned when a structure string fails to decode.
	ErrDecodeFailed = errors.New("codec: structure decode failed")

	// ErrSizeExceeded is returned when an encoded structure blob exceeds
	// MaxStructureBytes, the vector store's per-metadata-field size limit.
	ErrSizeExceeded = errors.New("codec: structure exceeds size limit")
)

// MaxStructureBytes bounds the size of an encoded structure blob, matching
// the vector store's per-metadata-field size limit (reference: 50 KB).
const MaxStructureBytes = 50 * 1024

// StructureCodec encodes and decodes document structure blobs
// (headings, sections, bounding boxes, chunk cross-links) as compact JSON,
// gzip-compressed, base64-encoded for storage as a flat metadata string.
type StructureCodec struct{}

// NewStructureCodec constructs a StructureCodec. It holds no state; the
// type exists to mirror SequenceCodec's shape and give the two encodings a
// symmetric call convention.
func NewStructureCodec() *StructureCodec {
	return &StructureCodec{}
}

// EncodeStructure serializes v to a base64 string suitable for a flat
// metadata field. v may be any JSON-marshalable value; docusearchd always
// passes a *domain.DocumentStructure.
func (c *StructureCodec) EncodeStructure(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	if err := gw.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	if len(encoded) > MaxStructureBytes {
		return "", fmt.Errorf("%w: encoded structure is %d bytes, limit %d", ErrSizeExceeded, len(encoded), MaxStructureBytes)
	}

	return encoded, nil
}

// DecodeStructure reverses EncodeStructure, unmarshaling into out (a
// pointer).
func (c *StructureCodec) DecodeStructure(encoded string, out interface{}) error {
	if encoded == "" {
		return fmt.Errorf("%w: empty input", ErrDecodeFailed)
	}

	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	defer gr.Close()

	raw, err := io.ReadAll(gr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return nil
}
