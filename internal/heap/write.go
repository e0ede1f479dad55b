package heap

import (
	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

// Builder accumulates objects for one new collection.
type Builder struct {
	cfg     binary.Config
	objects [][]byte
}

// NewBuilder creates an empty collection builder.
func NewBuilder(cfg binary.Config) *Builder {
	return &Builder{cfg: cfg}
}

// Add queues data and returns its 1-based object index.
func (b *Builder) Add(data []byte) uint32 {
	b.objects = append(b.objects, data)
	return uint32(len(b.objects))
}

// Len returns the number of queued objects.
func (b *Builder) Len() int { return len(b.objects) }

func (b *Builder) objectHeaderSize() int { return 8 + b.cfg.LengthSize }

// Size returns the collection size Encode will produce.
func (b *Builder) Size() int {
	n := 8 + b.cfg.LengthSize
	for _, obj := range b.objects {
		n += b.objectHeaderSize() + pad8(len(obj))
	}
	if n < MinCollectionSize {
		n = MinCollectionSize
	}
	return pad8(n)
}

// Encode serializes the collection. Space past the last object is described
// by a free-space object with index 0.
func (b *Builder) Encode() []byte {
	size := b.Size()
	e := binary.NewEncoder(b.cfg)
	e.PutBytes(signature)
	e.PutUint8(1)
	e.PutZeros(3)
	e.PutLength(uint64(size))
	for i, obj := range b.objects {
		e.PutUint16(uint16(i + 1))
		e.PutUint16(1)
		e.PutZeros(4)
		e.PutLength(uint64(len(obj)))
		e.PutBytes(obj)
		e.PutZeros(pad8(len(obj)) - len(obj))
	}
	if free := size - e.Len(); free >= b.objectHeaderSize() {
		e.PutUint16(0)
		e.PutUint16(0)
		e.PutZeros(4)
		e.PutLength(uint64(free))
	}
	e.PutZeros(size - e.Len())
	return e.Bytes()
}
