// Package codec encodes and decodes the two byte-oriented payloads
// docusearchd persists alongside vectors: multi-vector embedding sequences
// and document structure blobs.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
)

var (
	// ErrEmptyFrame is returned when encoding or decoding an empty sequence.
	ErrEmptyFrame = errors.New("codec: empty sequence")

	// ErrCorruptFrame is returned when a decoded frame fails its header checks.
	ErrCorruptFrame = errors.New("codec: corrupt frame")

	// ErrDimensionMismatch is returned when a sequence's vectors disagree in length.
	ErrDimensionMismatch = errors.New("codec: dimension mismatch")
)

const (
	frameMagic      uint32 = 0x4d56_5331 // "MVS1"
	frameFloat32    uint8  = 0
	frameInt8Scaled uint8  = 1
)

// SequenceCodec encodes and decodes multi-vector embedding sequences:
// an ordered list of unit-normalized D-dimensional float32 vectors.
//
// The wire format is a small header (magic, token count, dimension,
// encoding kind, and for the quantized kind a per-sequence scale) followed by
// the vector data, the whole frame zstd-compressed. Quantization trades
// precision for size and is controlled by Quantize; decoding is agnostic to
// which kind a given frame was encoded with.
type SequenceCodec struct {
	Quantize bool

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewSequenceCodec constructs a SequenceCodec. quantize selects int8-scaled
// encoding for new frames; existing frames of either kind always decode.
func NewSequenceCodec(quantize bool) (*SequenceCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("codec: init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: init zstd decoder: %w", err)
	}
	return &SequenceCodec{Quantize: quantize, encoder: enc, decoder: dec}, nil
}

// Close releases the codec's compression resources.
func (c *SequenceCodec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

// EncodeSequence serializes a multi-vector sequence to bytes.
func (c *SequenceCodec) EncodeSequence(seq [][]float32) ([]byte, error) {
	if len(seq) == 0 {
		return nil, ErrEmptyFrame
	}
	dim := len(seq[0])
	if dim == 0 {
		return nil, ErrEmptyFrame
	}
	for _, v := range seq {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: token has %d dims, want %d", ErrDimensionMismatch, len(v), dim)
		}
	}

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, frameMagic)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(seq)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dim))

	if c.Quantize {
		buf.WriteByte(frameInt8Scaled)
		scale := quantizationScale(seq)
		_ = binary.Write(&buf, binary.LittleEndian, scale)
		for _, v := range seq {
			for _, f := range v {
				buf.WriteByte(byte(quantize(f, scale)))
			}
		}
	} else {
		buf.WriteByte(frameFloat32)
		for _, v := range seq {
			for _, f := range v {
				_ = binary.Write(&buf, binary.LittleEndian, f)
			}
		}
	}

	return c.encoder.EncodeAll(buf.Bytes(), nil), nil
}

// DecodeSequence reconstructs a multi-vector sequence from bytes produced by
// EncodeSequence. Decoding int8-quantized frames recovers values within the
// frame's declared scale tolerance, never bit-exactly.
func (c *SequenceCodec) DecodeSequence(data []byte) ([][]float32, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}

	r := bytes.NewReader(raw)
	var magic, count, dim uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil || magic != frameMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptFrame)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}
	if count == 0 || dim == 0 {
		return nil, ErrEmptyFrame
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}

	seq := make([][]float32, count)
	switch kindByte {
	case frameFloat32:
		for i := range seq {
			v := make([]float32, dim)
			for j := range v {
				if err := binary.Read(r, binary.LittleEndian, &v[j]); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
				}
			}
			seq[i] = v
		}
	case frameInt8Scaled:
		var scale float32
		if err := binary.Read(r, binary.LittleEndian, &scale); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
		}
		for i := range seq {
			v := make([]float32, dim)
			for j := range v {
				b, err := r.ReadByte()
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
				}
				v[j] = dequantize(int8(b), scale)
			}
			seq[i] = v
		}
	default:
		return nil, fmt.Errorf("%w: unknown encoding kind %d", ErrCorruptFrame, kindByte)
	}

	if extra, err := io.ReadAll(r); err == nil && len(extra) > 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrCorruptFrame)
	}

	return seq, nil
}

// quantizationScale picks the scale factor that maps the sequence's largest
// magnitude component to the int8 range.
func quantizationScale(seq [][]float32) float32 {
	var maxAbs float32
	for _, v := range seq {
		for _, f := range v {
			a := float32(math.Abs(float64(f)))
			if a > maxAbs {
				maxAbs = a
			}
		}
	}
	if maxAbs == 0 {
		return 1
	}
	return maxAbs / 127
}

func quantize(f, scale float32) int8 {
	v := math.Round(float64(f / scale))
	if v > 127 {
		v = 127
	}
	if v < -128 {
		v = -128
	}
	return int8(v)
}

func dequantize(q int8, scale float32) float32 {
	return float32(q) * scale
}
