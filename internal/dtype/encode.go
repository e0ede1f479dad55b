package dtype

import (
	"encoding/binary"
	"math"

	"github.com/robert-malhotra/go-hdfproxy/internal/message"
)

// EncodeFloat64s encodes values as little-endian IEEE doubles.
func EncodeFloat64s(values []float64) []byte {
	out := make([]byte, 0, 8*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
	}
	return out
}

// EncodeInt64s encodes values as little-endian signed 64-bit integers.
func EncodeInt64s(values []int64) []byte {
	out := make([]byte, 0, 8*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint64(out, uint64(v))
	}
	return out
}

// EncodeFixedString pads s with zeros to size bytes, truncating when it is
// longer. A null-terminated type keeps room for the terminator.
func EncodeFixedString(dt *message.Datatype, s string) []byte {
	out := make([]byte, dt.Size)
	n := len(out)
	if dt.Padding() == message.PadNullTerm && n > 0 {
		n--
	}
	copy(out[:n], s)
	return out
}
