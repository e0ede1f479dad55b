// Package dtype converts raw HDF5 element bytes into Go values.
//
// It works with the message.Datatype parsed from object headers. Numeric
// conversions follow the rules the HDF5 library applies for native memory
// types: integers widen exactly, floats truncate toward zero when read as
// integers and saturate at the target range.
package dtype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/robert-malhotra/go-hdfproxy/internal/message"
)

// ErrUnsupported is returned for datatypes the converters cannot handle.
var ErrUnsupported = errors.New("unsupported datatype conversion")

// ByteOrder returns the byte order of a numeric datatype.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.BigEndian() {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// IsNumeric reports whether dt is an integer or floating-point type.
func IsNumeric(dt *message.Datatype) bool {
	return dt.Class == message.ClassFixedPoint || dt.Class == message.ClassFloatPoint
}

func checkNumeric(dt *message.Datatype, data []byte, n int) error {
	if dt == nil {
		return fmt.Errorf("%w: nil datatype", ErrUnsupported)
	}
	if !IsNumeric(dt) {
		return fmt.Errorf("%w: %s is not numeric", ErrUnsupported, dt)
	}
	switch dt.Size {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("%w: %d-byte %s", ErrUnsupported, dt.Size, dt.Class)
	}
	if dt.Class == message.ClassFloatPoint && dt.Size != 4 && dt.Size != 8 {
		return fmt.Errorf("%w: %d-byte float", ErrUnsupported, dt.Size)
	}
	if len(data) < n*int(dt.Size) {
		return fmt.Errorf("%w: %d bytes for %d elements of %d bytes", ErrUnsupported, len(data), n, dt.Size)
	}
	return nil
}

// element is one decoded numeric value in its widest exact representation.
type element struct {
	isFloat bool
	signed  bool
	f       float64
	i       int64
	u       uint64
}

func decodeElement(dt *message.Datatype, order binary.ByteOrder, p []byte) element {
	if dt.Class == message.ClassFloatPoint {
		if dt.Size == 4 {
			return element{isFloat: true, f: float64(math.Float32frombits(order.Uint32(p)))}
		}
		return element{isFloat: true, f: math.Float64frombits(order.Uint64(p))}
	}

	var u uint64
	switch dt.Size {
	case 1:
		u = uint64(p[0])
	case 2:
		u = uint64(order.Uint16(p))
	case 4:
		u = uint64(order.Uint32(p))
	case 8:
		u = order.Uint64(p)
	}
	if !dt.Signed() {
		return element{u: u}
	}
	shift := 64 - 8*uint(dt.Size)
	return element{signed: true, i: int64(u<<shift) >> shift}
}

func (e element) float64() float64 {
	switch {
	case e.isFloat:
		return e.f
	case e.signed:
		return float64(e.i)
	}
	return float64(e.u)
}

func (e element) int64() int64 {
	switch {
	case e.isFloat:
		return saturate(e.f)
	case e.signed:
		return e.i
	case e.u > math.MaxInt64:
		return math.MaxInt64
	}
	return int64(e.u)
}

func saturate(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func convert[T any](dt *message.Datatype, data []byte, n int, to func(element) T) ([]T, error) {
	if err := checkNumeric(dt, data, n); err != nil {
		return nil, err
	}
	order := ByteOrder(dt)
	size := int(dt.Size)
	out := make([]T, n)
	for i := range out {
		out[i] = to(decodeElement(dt, order, data[i*size:]))
	}
	return out, nil
}

// Float64s decodes n numeric elements as float64.
func Float64s(dt *message.Datatype, data []byte, n int) ([]float64, error) {
	return convert(dt, data, n, element.float64)
}

// Int64s decodes n numeric elements as int64.
func Int64s(dt *message.Datatype, data []byte, n int) ([]int64, error) {
	return convert(dt, data, n, element.int64)
}

// FixedStrings decodes n fixed-length strings, removing the type's padding.
func FixedStrings(dt *message.Datatype, data []byte, n int) ([]string, error) {
	if dt == nil || dt.Class != message.ClassString {
		return nil, fmt.Errorf("%w: not a fixed-length string", ErrUnsupported)
	}
	size := int(dt.Size)
	if len(data) < n*size {
		return nil, fmt.Errorf("%w: %d bytes for %d strings of %d bytes", ErrUnsupported, len(data), n, size)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = TrimString(data[i*size:(i+1)*size], dt.Padding())
	}
	return out, nil
}

// TrimString removes string padding. Null-terminated and null-padded strings
// end at the first zero byte.
func TrimString(p []byte, pad uint8) string {
	if pad == message.PadSpace {
		return strings.TrimRight(string(p), " ")
	}
	for i, c := range p {
		if c == 0 {
			return string(p[:i])
		}
	}
	return string(p)
}

// ToLittleEndian returns numeric element bytes in little-endian order,
// swapping in place when the stored type is big-endian.
func ToLittleEndian(dt *message.Datatype, data []byte) []byte {
	if !dt.BigEndian() || dt.Size < 2 {
		return data
	}
	size := int(dt.Size)
	for off := 0; off+size <= len(data); off += size {
		elem := data[off : off+size]
		for i, j := 0, size-1; i < j; i, j = i+1, j-1 {
			elem[i], elem[j] = elem[j], elem[i]
		}
	}
	return data
}
