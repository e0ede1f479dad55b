package message

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

// Dataspace kinds (version 2 "type" field).
const (
	SpaceScalar uint8 = 0
	SpaceSimple uint8 = 1
	SpaceNull   uint8 = 2
)

// Dataspace describes the shape of a dataset or attribute (type 0x0001).
// Dims are in HDF5 order: slowest-varying first.
type Dataspace struct {
	Kind    uint8
	Dims    []uint64
	MaxDims []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NewSimpleDataspace creates a fixed-size simple dataspace.
func NewSimpleDataspace(dims []uint64) *Dataspace {
	return &Dataspace{Kind: SpaceSimple, Dims: append([]uint64(nil), dims...)}
}

// NewScalarDataspace creates a single-element dataspace.
func NewScalarDataspace() *Dataspace {
	return &Dataspace{Kind: SpaceScalar}
}

// NumElements returns the number of elements the dataspace holds.
func (m *Dataspace) NumElements() uint64 {
	switch m.Kind {
	case SpaceNull:
		return 0
	case SpaceScalar:
		return 1
	}
	n := uint64(1)
	for _, d := range m.Dims {
		n *= d
	}
	return n
}

// Encode writes a version 2 dataspace message.
func (m *Dataspace) Encode(e *binary.Encoder) {
	e.PutUint8(2)
	e.PutUint8(uint8(len(m.Dims)))
	var flags uint8
	if len(m.MaxDims) == len(m.Dims) && len(m.MaxDims) > 0 {
		flags |= 0x01
	}
	e.PutUint8(flags)
	e.PutUint8(m.Kind)
	for _, d := range m.Dims {
		e.PutLength(d)
	}
	if flags&0x01 != 0 {
		for _, d := range m.MaxDims {
			e.PutLength(d)
		}
	}
}

func decodeDataspace(d *binary.Decoder) *Dataspace {
	version := d.Uint8()
	rank := int(d.Uint8())
	flags := d.Uint8()
	m := &Dataspace{Kind: SpaceSimple}

	switch version {
	case 1:
		d.Skip(5)
		if rank == 0 {
			m.Kind = SpaceScalar
		}
	case 2:
		m.Kind = d.Uint8()
	default:
		d.Fail(fmt.Errorf("unsupported dataspace version %d", version))
		return m
	}

	m.Dims = make([]uint64, rank)
	for i := range m.Dims {
		m.Dims[i] = d.Length()
	}
	if flags&0x01 != 0 {
		m.MaxDims = make([]uint64, rank)
		for i := range m.MaxDims {
			m.MaxDims[i] = d.Length()
		}
	}
	return m
}
