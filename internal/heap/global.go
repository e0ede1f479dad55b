// Package heap reads and writes HDF5 global heap collections, the storage
// behind variable-length strings.
//
// A collection is "GCOL", version 1, three reserved bytes and the
// collection size, followed by objects (index, reference count, reserved,
// size, data padded to eight bytes). Object 0, when present, describes the
// free space at the end of the collection.
package heap

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

var signature = []byte("GCOL")

// MinCollectionSize is the smallest collection the HDF5 library creates.
const MinCollectionSize = 4096

var ErrInvalidHeap = errors.New("invalid global heap collection")

// ID locates one object: the collection address and the object index.
type ID struct {
	Collection uint64
	Index      uint32
}

// VarLenSize returns the size of one variable-length element reference.
func VarLenSize(cfg binary.Config) int {
	return 4 + cfg.OffsetSize + 4
}

// EncodeVarLen appends a variable-length element: the sequence length
// followed by the heap ID of its bytes.
func EncodeVarLen(e *binary.Encoder, length uint32, id ID) {
	e.PutUint32(length)
	e.PutOffset(id.Collection)
	e.PutUint32(id.Index)
}

// DecodeVarLen reads a variable-length element reference.
func DecodeVarLen(d *binary.Decoder) (uint32, ID) {
	length := d.Uint32()
	id := ID{Collection: d.Offset(), Index: d.Uint32()}
	return length, id
}

// Collection is a decoded global heap collection.
type Collection struct {
	Address uint64
	Size    uint64
	objects map[uint32][]byte
}

// Read loads the collection at addr.
func Read(r io.ReaderAt, addr uint64, cfg binary.Config) (*Collection, error) {
	if addr == 0 || cfg.IsUndefined(addr) {
		return nil, fmt.Errorf("%w: address %#x", ErrInvalidHeap, addr)
	}
	headerSize := 8 + cfg.LengthSize
	head, err := binary.ReadAt(r, int64(addr), headerSize)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(head[:4], signature) {
		return nil, fmt.Errorf("%w at %d: bad signature", ErrInvalidHeap, addr)
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("%w at %d: version %d", ErrInvalidHeap, addr, head[4])
	}
	size := binary.DecodeUint(head[8:])
	if size < uint64(headerSize) {
		return nil, fmt.Errorf("%w at %d: size %d", ErrInvalidHeap, addr, size)
	}
	raw, err := binary.ReadAtMost(r, int64(addr), int(size))
	if err != nil {
		return nil, err
	}

	c := &Collection{Address: addr, Size: size, objects: make(map[uint32][]byte)}
	d := binary.NewDecoder(raw, cfg)
	d.Skip(headerSize)
	for d.Remaining() >= 8+cfg.LengthSize {
		index := d.Uint16()
		if index == 0 {
			break
		}
		d.Skip(6) // reference count, reserved
		n := int(d.Length())
		data := d.Bytes(n)
		if data == nil && n > 0 {
			break
		}
		c.objects[uint32(index)] = data
		d.Skip(pad8(n) - n)
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w at %d: %v", ErrInvalidHeap, addr, err)
	}
	return c, nil
}

// Object returns the bytes of object index.
func (c *Collection) Object(index uint32) ([]byte, error) {
	data, ok := c.objects[index]
	if !ok {
		return nil, fmt.Errorf("%w: object %d not in collection %d", ErrInvalidHeap, index, c.Address)
	}
	return data, nil
}

// Len returns the number of objects in the collection.
func (c *Collection) Len() int { return len(c.objects) }

func pad8(n int) int { return (n + 7) &^ 7 }
