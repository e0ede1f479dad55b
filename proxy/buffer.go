package proxy

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// hostLittleEndian is true on little-endian machines, where element bytes
// already have the container's byte order.
var hostLittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// Buffer is a sized view of array elements. Reads fill it in place; the
// caller keeps ownership of the memory.
type Buffer struct {
	dt   Datatype
	data []byte
}

// BufferOf wraps s without copying it.
func BufferOf[T Element](s []T) Buffer {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if len(s) == 0 {
		return Buffer{dt: DatatypeOf[T]()}
	}
	p := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*size)
	return Buffer{dt: DatatypeOf[T](), data: p}
}

// RawBuffer wraps little-endian element bytes of type dt.
func RawBuffer(dt Datatype, p []byte) (Buffer, error) {
	size := dt.Size()
	if size == 0 {
		return Buffer{}, fmt.Errorf("%w: %s buffer", ErrUnsupportedType, dt)
	}
	if len(p)%size != 0 {
		return Buffer{}, fmt.Errorf("%w: %d bytes is not a whole number of %s elements", ErrBufferSize, len(p), dt)
	}
	if !hostLittleEndian {
		// Raw bytes are little-endian; the buffer holds host order.
		swap(p, size)
	}
	return Buffer{dt: dt, data: p}, nil
}

// NewBuffer allocates a buffer of n elements.
func NewBuffer(dt Datatype, n int) Buffer {
	return Buffer{dt: dt, data: make([]byte, n*dt.Size())}
}

// Datatype returns the element type.
func (b Buffer) Datatype() Datatype { return b.dt }

// Len returns the number of elements.
func (b Buffer) Len() int {
	if s := b.dt.Size(); s > 0 {
		return len(b.data) / s
	}
	return 0
}

// Slice returns the view of elements [lo, hi).
func (b Buffer) Slice(lo, hi int) Buffer {
	s := b.dt.Size()
	return Buffer{dt: b.dt, data: b.data[lo*s : hi*s]}
}

// Values returns the elements of b as a []T sharing b's memory.
func Values[T Element](b Buffer) ([]T, error) {
	if dt := DatatypeOf[T](); dt != b.dt {
		return nil, fmt.Errorf("%w: %s buffer viewed as %s", ErrTypeMismatch, b.dt, dt)
	}
	if len(b.data) == 0 {
		return []T{}, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b.data))), b.Len()), nil
}

// Float64s returns a copy of the elements converted to float64.
func (b Buffer) Float64s() []float64 {
	out := make([]float64, b.Len())
	for i := range out {
		out[i] = b.float64At(i)
	}
	return out
}

func (b Buffer) float64At(i int) float64 {
	s := b.dt.Size()
	p := b.data[i*s : (i+1)*s]
	order := hostOrder()
	switch b.dt {
	case Int8:
		return float64(int8(p[0]))
	case Uint8:
		return float64(p[0])
	case Int16:
		return float64(int16(order.Uint16(p)))
	case Uint16:
		return float64(order.Uint16(p))
	case Int32:
		return float64(int32(order.Uint32(p)))
	case Uint32:
		return float64(order.Uint32(p))
	case Int64:
		return float64(int64(order.Uint64(p)))
	case Uint64:
		return float64(order.Uint64(p))
	case Float32:
		return float64(math.Float32frombits(order.Uint32(p)))
	case Float64:
		return math.Float64frombits(order.Uint64(p))
	}
	return math.NaN()
}

func hostOrder() binary.ByteOrder {
	if hostLittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// wire returns the elements as little-endian bytes.
func (b Buffer) wire() []byte {
	if hostLittleEndian || b.dt.Size() <= 1 {
		return b.data
	}
	p := append([]byte(nil), b.data...)
	swap(p, b.dt.Size())
	return p
}

// fromWire converts little-endian bytes read into b.data to host order.
func (b Buffer) fromWire() {
	if !hostLittleEndian {
		swap(b.data, b.dt.Size())
	}
}

func swap(p []byte, size int) {
	if size <= 1 {
		return
	}
	for i := 0; i+size <= len(p); i += size {
		e := p[i : i+size]
		for l, r := 0, size-1; l < r; l, r = l+1, r-1 {
			e[l], e[r] = e[r], e[l]
		}
	}
}
