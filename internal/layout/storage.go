package layout

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/go-hdfproxy/internal/alloc"
	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
	"github.com/robert-malhotra/go-hdfproxy/internal/filter"
	"github.com/robert-malhotra/go-hdfproxy/internal/message"
)

// Space hands out and reclaims file space.
type Space interface {
	Alloc(size uint64, kind alloc.Kind) uint64
	Free(addr, size uint64)
}

// File is the file a dataset's storage lives in. W and Space are nil for
// read-only access.
type File struct {
	R      io.ReaderAt
	W      io.WriterAt
	Config binary.Config
	Space  Space
}

func (f File) writable() bool { return f.W != nil && f.Space != nil }

func (f File) writeAt(p []byte, addr uint64) error {
	if _, err := f.W.WriteAt(p, int64(addr)); err != nil {
		return fmt.Errorf("write %d bytes at %d: %w", len(p), addr, err)
	}
	return nil
}

// Storage reads and writes hyperslabs of one dataset. Buffers hold the
// selected elements packed in row-major order of the slab's shape.
type Storage interface {
	ReadSlab(s Slab, dst []byte) error
	WriteSlab(s Slab, src []byte) error
}

// New returns the storage described by a layout message for a dataset of
// extent dims (HDF5 order) and elemSize-byte elements.
func New(f File, lay *message.DataLayout, fp *message.FilterPipeline, dims []uint64, elemSize int) (Storage, error) {
	if lay == nil {
		return nil, fmt.Errorf("%w: missing layout message", ErrUnsupported)
	}
	switch lay.Class {
	case message.LayoutCompact:
		return &Compact{Data: lay.CompactData, Dims: dims, ElemSize: elemSize}, nil
	case message.LayoutContiguous:
		return &Contiguous{f: f, Address: lay.Address, Size: lay.Size, Dims: dims, ElemSize: elemSize}, nil
	case message.LayoutChunked:
		pipeline, err := filter.NewPipeline(fp)
		if err != nil {
			return nil, err
		}
		return newChunked(f, lay, pipeline, dims, elemSize)
	}
	return nil, fmt.Errorf("%w: %s layout", ErrUnsupported, lay.Class)
}

func selectionSegments(s Slab) [][]segment {
	segs := make([][]segment, s.Rank())
	for d := range segs {
		segs[d] = s.segments(d)
	}
	return segs
}
