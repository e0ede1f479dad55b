package message

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

// LayoutClass is the storage layout class.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

func (c LayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	}
	return fmt.Sprintf("layout(%d)", uint8(c))
}

// ChunkIndexType identifies the structure indexing a chunked dataset's chunks.
type ChunkIndexType uint8

const (
	// ChunkIndexBTreeV1 marks version 1-3 layouts, which always use a
	// version 1 B-tree; it has no on-disk code.
	ChunkIndexBTreeV1         ChunkIndexType = 0
	ChunkIndexSingle          ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

// Chunked layout flags (version 4).
const (
	LayoutFlagDontFilterPartial uint8 = 0x01
	LayoutFlagSingleFiltered    uint8 = 0x02
)

// DataLayout is a data layout message (type 0x0008).
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	// Compact
	CompactData []byte

	// Contiguous
	Address uint64
	Size    uint64

	// Chunked. ChunkDims are in HDF5 order and exclude the element size
	// dimension, which is kept in ElementSize.
	Flags       uint8
	ChunkDims   []uint64
	ElementSize uint32
	IndexType   ChunkIndexType
	IndexAddr   uint64
	PageBits    uint8

	// Single chunk index with a filtered chunk.
	FilteredSize uint64
	FilterMask   uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// NewContiguousLayout returns a layout for size bytes at addr.
func NewContiguousLayout(addr, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: addr, Size: size}
}

// NewFixedArrayLayout returns a version 4 chunked layout indexed by the
// fixed array at indexAddr.
func NewFixedArrayLayout(chunkDims []uint64, elemSize uint32, pageBits uint8, indexAddr uint64) *DataLayout {
	return &DataLayout{
		Version:     4,
		Class:       LayoutChunked,
		ChunkDims:   append([]uint64(nil), chunkDims...),
		ElementSize: elemSize,
		IndexType:   ChunkIndexFixedArray,
		PageBits:    pageBits,
		IndexAddr:   indexAddr,
	}
}

// dimSizeBytes returns the smallest width that encodes every chunk dimension.
func (m *DataLayout) dimSizeBytes() int {
	largest := uint64(m.ElementSize)
	for _, d := range m.ChunkDims {
		if d > largest {
			largest = d
		}
	}
	n := 1
	for n < 8 && largest>>(8*uint(n)) != 0 {
		n++
	}
	return n
}

// Encode writes a version 3 message for compact and contiguous storage and a
// version 4 message for chunked storage.
func (m *DataLayout) Encode(e *binary.Encoder) {
	if m.Class != LayoutChunked {
		e.PutUint8(3)
		e.PutUint8(uint8(m.Class))
		if m.Class == LayoutCompact {
			e.PutUint16(uint16(len(m.CompactData)))
			e.PutBytes(m.CompactData)
			return
		}
		e.PutOffset(m.Address)
		e.PutLength(m.Size)
		return
	}

	e.PutUint8(4)
	e.PutUint8(uint8(LayoutChunked))
	e.PutUint8(m.Flags)
	e.PutUint8(uint8(len(m.ChunkDims) + 1))
	width := m.dimSizeBytes()
	e.PutUint8(uint8(width))
	for _, d := range m.ChunkDims {
		e.PutUintN(d, width)
	}
	e.PutUintN(uint64(m.ElementSize), width)
	e.PutUint8(uint8(m.IndexType))
	switch m.IndexType {
	case ChunkIndexSingle:
		if m.Flags&LayoutFlagSingleFiltered != 0 {
			e.PutLength(m.FilteredSize)
			e.PutUint32(m.FilterMask)
		}
	case ChunkIndexFixedArray:
		e.PutUint8(m.PageBits)
	}
	e.PutOffset(m.IndexAddr)
}

func decodeDataLayout(d *binary.Decoder) *DataLayout {
	m := &DataLayout{Version: d.Uint8()}
	switch m.Version {
	case 1, 2:
		decodeLayoutV1(d, m)
	case 3, 4:
		decodeLayoutV3(d, m)
	default:
		d.Fail(fmt.Errorf("unsupported data layout version %d", m.Version))
	}
	return m
}

func decodeLayoutV1(d *binary.Decoder, m *DataLayout) {
	ndims := int(d.Uint8())
	m.Class = LayoutClass(d.Uint8())
	d.Skip(5)
	if m.Class != LayoutCompact {
		m.Address = d.Offset()
	}
	dims := make([]uint64, ndims)
	for i := range dims {
		dims[i] = uint64(d.Uint32())
	}
	switch m.Class {
	case LayoutChunked:
		m.IndexType = ChunkIndexBTreeV1
		m.IndexAddr = m.Address
		if ndims > 0 {
			m.ChunkDims = dims[:ndims-1]
			m.ElementSize = uint32(d.Uint32())
		}
	case LayoutCompact:
		size := int(d.Uint32())
		m.CompactData = append([]byte(nil), d.Bytes(size)...)
	}
}

func decodeLayoutV3(d *binary.Decoder, m *DataLayout) {
	m.Class = LayoutClass(d.Uint8())
	switch m.Class {
	case LayoutCompact:
		size := int(d.Uint16())
		m.CompactData = append([]byte(nil), d.Bytes(size)...)
	case LayoutContiguous:
		m.Address = d.Offset()
		m.Size = d.Length()
	case LayoutChunked:
		if m.Version == 3 {
			ndims := int(d.Uint8())
			m.IndexType = ChunkIndexBTreeV1
			m.IndexAddr = d.Offset()
			m.ChunkDims = make([]uint64, ndims-1)
			for i := range m.ChunkDims {
				m.ChunkDims[i] = uint64(d.Uint32())
			}
			m.ElementSize = d.Uint32()
			return
		}
		m.Flags = d.Uint8()
		ndims := int(d.Uint8())
		width := int(d.Uint8())
		if ndims < 1 {
			d.Fail(fmt.Errorf("chunked layout with %d dimensions", ndims))
			return
		}
		m.ChunkDims = make([]uint64, ndims-1)
		for i := range m.ChunkDims {
			m.ChunkDims[i] = d.UintN(width)
		}
		m.ElementSize = uint32(d.UintN(width))
		m.IndexType = ChunkIndexType(d.Uint8())
		switch m.IndexType {
		case ChunkIndexSingle:
			if m.Flags&LayoutFlagSingleFiltered != 0 {
				m.FilteredSize = d.Length()
				m.FilterMask = d.Uint32()
			}
		case ChunkIndexImplicit:
		case ChunkIndexFixedArray:
			m.PageBits = d.Uint8()
		case ChunkIndexExtensibleArray:
			d.Skip(5)
		case ChunkIndexBTreeV2:
			d.Skip(6)
		default:
			d.Fail(fmt.Errorf("unknown chunk index type %d", m.IndexType))
			return
		}
		m.IndexAddr = d.Offset()
	case LayoutVirtual:
		m.Address = d.Offset()
	default:
		d.Fail(fmt.Errorf("unknown layout class %d", m.Class))
	}
}
