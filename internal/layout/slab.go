// Package layout moves dataset elements between caller buffers and HDF5
// storage.
//
// Selections are hyperslabs expressed in HDF5 dimension order (slowest
// varying first). Storage comes in three classes:
//
//   - Compact: the bytes live in the layout message itself (read only).
//   - Contiguous: one block of Size bytes at Address.
//   - Chunked: fixed-size chunks located through a chunk index. Fixed Array
//     indexes are read and written; single-chunk and implicit indexes are
//     read only.
//
// Chunked writes are read-modify-write per touched chunk and run the chunk
// bytes through the dataset's filter pipeline.
package layout

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	ErrInvalidSlab  = errors.New("invalid hyperslab")
	ErrOutOfBounds  = errors.New("hyperslab out of bounds")
	ErrBufferSize   = errors.New("buffer size does not match selection")
	ErrReadOnly     = errors.New("storage is read only")
	ErrUnsupported  = errors.New("unsupported storage layout")
	ErrCorruptIndex = errors.New("corrupt chunk index")
)

// Slab is a regular hyperslab: per dimension, Count blocks of Block
// elements, the first at Start and each next one Stride further.
type Slab struct {
	Start  []uint64
	Stride []uint64
	Block  []uint64
	Count  []uint64
}

// FullSlab selects every element of dims.
func FullSlab(dims []uint64) Slab {
	n := len(dims)
	s := Slab{
		Start:  make([]uint64, n),
		Stride: make([]uint64, n),
		Block:  append([]uint64(nil), dims...),
		Count:  make([]uint64, n),
	}
	for i := range dims {
		s.Stride[i] = 1
		s.Count[i] = 1
	}
	return s
}

// BoxSlab selects the count elements starting at start in every dimension.
func BoxSlab(start, count []uint64) Slab {
	n := len(start)
	s := Slab{
		Start:  append([]uint64(nil), start...),
		Stride: make([]uint64, n),
		Block:  append([]uint64(nil), count...),
		Count:  make([]uint64, n),
	}
	for i := range start {
		s.Stride[i] = 1
		s.Count[i] = 1
	}
	return s
}

// Rank returns the number of dimensions.
func (s Slab) Rank() int { return len(s.Start) }

// Shape returns the number of selected elements per dimension.
func (s Slab) Shape() []uint64 {
	shape := make([]uint64, len(s.Block))
	for i := range shape {
		shape[i] = s.Block[i] * s.Count[i]
	}
	return shape
}

// NumElements returns the number of selected elements.
func (s Slab) NumElements() uint64 {
	n := uint64(1)
	for _, d := range s.Shape() {
		n *= d
	}
	return n
}

// Validate checks the slab against the dataset extent dims.
func (s Slab) Validate(dims []uint64) error {
	r := len(dims)
	if len(s.Start) != r || len(s.Stride) != r || len(s.Block) != r || len(s.Count) != r {
		return fmt.Errorf("%w: rank %d selection on rank %d dataset", ErrInvalidSlab, len(s.Start), r)
	}
	for i := 0; i < r; i++ {
		if s.Block[i] == 0 || s.Count[i] == 0 {
			return fmt.Errorf("%w: empty block or count in dimension %d", ErrInvalidSlab, i)
		}
		if s.Count[i] > 1 && s.Stride[i] < s.Block[i] {
			return fmt.Errorf("%w: overlapping blocks in dimension %d", ErrInvalidSlab, i)
		}
		end, ok := span(s.Start[i], s.stride(i), s.Block[i], s.Count[i])
		if !ok {
			return fmt.Errorf("%w: dimension %d selection overflows", ErrOutOfBounds, i)
		}
		if end > dims[i] {
			return fmt.Errorf("%w: dimension %d selects up to %d of %d", ErrOutOfBounds, i, end, dims[i])
		}
	}
	return nil
}

// span returns start + stride*(count-1) + block, or false when that
// overflows 64 bits.
func span(start, stride, block, count uint64) (uint64, bool) {
	hi, n := bits.Mul64(stride, count-1)
	if hi != 0 {
		return 0, false
	}
	n, c1 := bits.Add64(n, start, 0)
	n, c2 := bits.Add64(n, block, 0)
	return n, c1 == 0 && c2 == 0
}

func (s Slab) stride(d int) uint64 {
	if s.Count[d] == 1 || s.Stride[d] == 0 {
		return s.Block[d]
	}
	return s.Stride[d]
}

// bounds returns the half-open range of dimension d touched by the slab.
func (s Slab) bounds(d int) (lo, hi uint64) {
	return s.Start[d], s.Start[d] + s.stride(d)*(s.Count[d]-1) + s.Block[d]
}

// segment is a run of n selected positions in one dimension: dataset
// coordinate pos maps to packed buffer coordinate mem.
type segment struct {
	pos, mem, n uint64
}

// segments lists the selected runs of dimension d, merging adjacent blocks.
func (s Slab) segments(d int) []segment {
	var segs []segment
	block := s.Block[d]
	for c := uint64(0); c < s.Count[d]; c++ {
		pos := s.Start[d] + c*s.stride(d)
		if k := len(segs); k > 0 && segs[k-1].pos+segs[k-1].n == pos {
			segs[k-1].n += block
			continue
		}
		segs = append(segs, segment{pos: pos, mem: c * block, n: block})
	}
	return segs
}

// clip restricts segments to [lo, hi) and rebases positions to lo.
func clip(segs []segment, lo, hi uint64) []segment {
	var out []segment
	for _, sg := range segs {
		start, end := max(sg.pos, lo), min(sg.pos+sg.n, hi)
		if start >= end {
			continue
		}
		out = append(out, segment{pos: start - lo, mem: sg.mem + (start - sg.pos), n: end - start})
	}
	return out
}

// walk visits the cartesian product of per-dimension segments. fn receives
// the coordinates of the first element of a run along the last dimension
// and the run length.
func walk(segs [][]segment, fn func(pos, mem []uint64, n uint64) error) error {
	r := len(segs)
	if r == 0 {
		return fn(nil, nil, 1)
	}
	pos := make([]uint64, r)
	mem := make([]uint64, r)
	var rec func(d int) error
	rec = func(d int) error {
		if d == r-1 {
			for _, sg := range segs[d] {
				pos[d], mem[d] = sg.pos, sg.mem
				if err := fn(pos, mem, sg.n); err != nil {
					return err
				}
			}
			return nil
		}
		for _, sg := range segs[d] {
			for i := uint64(0); i < sg.n; i++ {
				pos[d], mem[d] = sg.pos+i, sg.mem+i
				if err := rec(d + 1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return rec(0)
}

// linear returns the row-major index of coords within dims.
func linear(coords, dims []uint64) uint64 {
	var idx uint64
	for i := range coords {
		idx = idx*dims[i] + coords[i]
	}
	return idx
}

// run is one contiguous copy between storage offset src and buffer offset
// dst, both in bytes.
type run struct {
	src, dst, n uint64
}

// merger joins runs that are adjacent on both sides before emitting them.
type merger struct {
	pending run
	ok      bool
	emit    func(run) error
}

func (m *merger) add(r run) error {
	if m.ok && m.pending.src+m.pending.n == r.src && m.pending.dst+m.pending.n == r.dst {
		m.pending.n += r.n
		return nil
	}
	if err := m.flush(); err != nil {
		return err
	}
	m.pending, m.ok = r, true
	return nil
}

func (m *merger) flush() error {
	if !m.ok {
		return nil
	}
	m.ok = false
	return m.emit(m.pending)
}

// runs converts the selection within a storage region of extent dims into
// byte runs. segs must already be relative to the region.
func runs(segs [][]segment, dims, shape []uint64, elemSize int, emit func(run) error) error {
	es := uint64(elemSize)
	m := &merger{emit: emit}
	err := walk(segs, func(pos, mem []uint64, n uint64) error {
		return m.add(run{src: linear(pos, dims) * es, dst: linear(mem, shape) * es, n: n * es})
	})
	if err != nil {
		return err
	}
	return m.flush()
}

func checkBuffer(s Slab, buf []byte, elemSize int) error {
	if want := s.NumElements() * uint64(elemSize); uint64(len(buf)) != want {
		return fmt.Errorf("%w: %d bytes for %d elements of %d bytes", ErrBufferSize, len(buf), s.NumElements(), elemSize)
	}
	return nil
}
