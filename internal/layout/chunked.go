package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/alloc"
	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
	"github.com/robert-malhotra/go-hdfproxy/internal/filter"
	"github.com/robert-malhotra/go-hdfproxy/internal/message"
)

// chunkIndex resolves chunk numbers (row-major over the chunk grid) to
// stored chunks.
type chunkIndex interface {
	entry(i uint64) ChunkEntry
	update(f File, i uint64, e ChunkEntry) error
}

type singleIndex struct{ e ChunkEntry }

func (s singleIndex) entry(uint64) ChunkEntry { return s.e }

func (singleIndex) update(File, uint64, ChunkEntry) error {
	return fmt.Errorf("%w: single chunk index", ErrReadOnly)
}

// implicitIndex stores every chunk unfiltered, back to back from base.
type implicitIndex struct {
	base, chunkBytes uint64
}

func (x implicitIndex) entry(i uint64) ChunkEntry {
	return ChunkEntry{Addr: x.base + i*x.chunkBytes, Size: x.chunkBytes}
}

func (implicitIndex) update(File, uint64, ChunkEntry) error {
	return fmt.Errorf("%w: implicit chunk index", ErrReadOnly)
}

type fixedArrayIndex struct{ fa *FixedArray }

func (x fixedArrayIndex) entry(i uint64) ChunkEntry { return x.fa.Entry(i) }

func (x fixedArrayIndex) update(f File, i uint64, e ChunkEntry) error {
	if !x.fa.Filtered {
		e.Size, e.Mask = 0, 0
	}
	x.fa.Entries[i] = e
	return x.fa.WriteDataBlock(f.W)
}

// Chunked storage splits the dataset into chunks of equal extent; edge
// chunks are stored at full size.
type Chunked struct {
	f          File
	grid       Grid
	elemSize   int
	chunkBytes uint64
	pipeline   *filter.Pipeline
	index      chunkIndex
}

func newChunked(f File, lay *message.DataLayout, pipeline *filter.Pipeline, dims []uint64, elemSize int) (*Chunked, error) {
	if len(lay.ChunkDims) != len(dims) {
		return nil, fmt.Errorf("%w: rank %d chunks on rank %d dataset", ErrCorruptIndex, len(lay.ChunkDims), len(dims))
	}
	for _, c := range lay.ChunkDims {
		if c == 0 {
			return nil, fmt.Errorf("%w: zero chunk dimension", ErrCorruptIndex)
		}
	}
	c := &Chunked{
		f:        f,
		grid:     Grid{Dims: dims, Chunk: lay.ChunkDims},
		elemSize: elemSize,
		pipeline: pipeline,
	}
	c.chunkBytes = c.grid.ChunkElements() * uint64(elemSize)

	switch lay.IndexType {
	case message.ChunkIndexSingle:
		e := ChunkEntry{Addr: lay.IndexAddr, Size: c.chunkBytes}
		if lay.Flags&message.LayoutFlagSingleFiltered != 0 {
			e.Size, e.Mask = lay.FilteredSize, lay.FilterMask
		}
		c.index = singleIndex{e}
	case message.ChunkIndexImplicit:
		c.index = implicitIndex{base: lay.IndexAddr, chunkBytes: c.chunkBytes}
	case message.ChunkIndexFixedArray:
		if f.Config.IsUndefined(lay.IndexAddr) {
			return nil, fmt.Errorf("%w: fixed array index never allocated", ErrUnsupported)
		}
		fa, err := ReadFixedArray(f.R, lay.IndexAddr, f.Config, c.chunkBytes)
		if err != nil {
			return nil, err
		}
		if uint64(len(fa.Entries)) < c.grid.NumChunks() {
			return nil, fmt.Errorf("%w: %d entries for %d chunks", ErrCorruptIndex, len(fa.Entries), c.grid.NumChunks())
		}
		c.index = fixedArrayIndex{fa}
	default:
		return nil, fmt.Errorf("%w: chunk index type %d", ErrUnsupported, lay.IndexType)
	}
	return c, nil
}

// CreateFixedArray allocates and writes an empty fixed array index for a
// chunked dataset of extent dims.
func CreateFixedArray(f File, dims, chunkDims []uint64, elemSize int, filtered bool) (*FixedArray, error) {
	if !f.writable() {
		return nil, ErrReadOnly
	}
	g := Grid{Dims: dims, Chunk: chunkDims}
	fa := NewFixedArray(f.Config, g.NumChunks(), filtered, g.ChunkElements()*uint64(elemSize))
	if fa.paged() {
		return nil, fmt.Errorf("%w: %d chunks need a paged index", ErrUnsupported, g.NumChunks())
	}
	headerSize := uint64(fa.HeaderSize())
	fa.Address = f.Space.Alloc(headerSize+uint64(fa.DataBlockSize()), alloc.KindIndex)
	fa.DataBlock = fa.Address + headerSize
	if err := fa.Write(f.W); err != nil {
		return nil, err
	}
	return fa, nil
}

func (c *Chunked) defined(e ChunkEntry) bool {
	return e.Addr != 0 && !c.f.Config.IsUndefined(e.Addr)
}

// load returns the uncompressed bytes of chunk i, or nil when the chunk was
// never written.
func (c *Chunked) load(i uint64) ([]byte, error) {
	e := c.index.entry(i)
	if !c.defined(e) {
		return nil, nil
	}
	stored, err := binary.ReadAt(c.f.R, int64(e.Addr), int(e.Size))
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", i, err)
	}
	raw, err := c.pipeline.Decode(stored, e.Mask)
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", i, err)
	}
	if uint64(len(raw)) < c.chunkBytes {
		return nil, fmt.Errorf("%w: chunk %d decoded to %d bytes, want %d", ErrCorruptIndex, i, len(raw), c.chunkBytes)
	}
	return raw[:c.chunkBytes], nil
}

// store filters raw and writes it, reusing the chunk's current space when
// the new bytes fit.
func (c *Chunked) store(i uint64, raw []byte) error {
	data, err := c.pipeline.Encode(raw)
	if err != nil {
		return fmt.Errorf("chunk %d: %w", i, err)
	}
	size := uint64(len(data))
	old := c.index.entry(i)
	addr := old.Addr
	if !c.defined(old) || size > old.Size {
		if c.defined(old) {
			c.f.Space.Free(old.Addr, old.Size)
		}
		addr = c.f.Space.Alloc(size, alloc.KindData)
	}
	if err := c.f.writeAt(data, addr); err != nil {
		return err
	}
	return c.index.update(c.f, i, ChunkEntry{Addr: addr, Size: size})
}

// visit calls fn for every chunk the slab touches with the chunk number and
// the selection segments relative to that chunk.
func (c *Chunked) visit(s Slab, fn func(i uint64, segs [][]segment) error) error {
	r := s.Rank()
	all := selectionSegments(s)
	counts := c.grid.Counts()
	first := make([]uint64, r)
	last := make([]uint64, r)
	for d := 0; d < r; d++ {
		lo, hi := s.bounds(d)
		first[d] = lo / c.grid.Chunk[d]
		last[d] = (hi - 1) / c.grid.Chunk[d]
	}

	coord := append([]uint64(nil), first...)
	segs := make([][]segment, r)
	for {
		empty := false
		for d := 0; d < r; d++ {
			lo := coord[d] * c.grid.Chunk[d]
			segs[d] = clip(all[d], lo, lo+c.grid.Chunk[d])
			if len(segs[d]) == 0 {
				empty = true
				break
			}
		}
		if !empty {
			if err := fn(linear(coord, counts), segs); err != nil {
				return err
			}
		}

		d := r - 1
		for ; d >= 0; d-- {
			if coord[d] < last[d] {
				coord[d]++
				break
			}
			coord[d] = first[d]
		}
		if d < 0 {
			return nil
		}
	}
}

// ReadSlab copies the selected elements into dst. Unwritten chunks read as
// zeros.
func (c *Chunked) ReadSlab(s Slab, dst []byte) error {
	if err := checkBuffer(s, dst, c.elemSize); err != nil {
		return err
	}
	if s.Rank() == 0 || s.NumElements() == 0 {
		return nil
	}
	shape := s.Shape()
	return c.visit(s, func(i uint64, segs [][]segment) error {
		chunk, err := c.load(i)
		if err != nil {
			return err
		}
		return runs(segs, c.grid.Chunk, shape, c.elemSize, func(r run) error {
			if chunk == nil {
				clear(dst[r.dst : r.dst+r.n])
			} else {
				copy(dst[r.dst:r.dst+r.n], chunk[r.src:r.src+r.n])
			}
			return nil
		})
	})
}

// WriteSlab stores the selected elements from src, rewriting each touched
// chunk.
func (c *Chunked) WriteSlab(s Slab, src []byte) error {
	if err := checkBuffer(s, src, c.elemSize); err != nil {
		return err
	}
	if !c.f.writable() {
		return ErrReadOnly
	}
	if s.Rank() == 0 || s.NumElements() == 0 {
		return nil
	}
	shape := s.Shape()
	return c.visit(s, func(i uint64, segs [][]segment) error {
		chunk, err := c.load(i)
		if err != nil {
			return err
		}
		if chunk == nil {
			chunk = make([]byte, c.chunkBytes)
		}
		err = runs(segs, c.grid.Chunk, shape, c.elemSize, func(r run) error {
			copy(chunk[r.src:r.src+r.n], src[r.dst:r.dst+r.n])
			return nil
		})
		if err != nil {
			return err
		}
		return c.store(i, chunk)
	})
}
