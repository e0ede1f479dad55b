package proxy

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-hdfproxy/hdf5"
)

// Hyperslab selects, per dimension, Count blocks of Block elements, the
// first at Offset and each next one Stride further. Dimensions are ordered
// fastest-varying first. A nil *Hyperslab selects the whole dataset.
type Hyperslab struct {
	Offset []uint64
	Stride []uint64
	Block  []uint64
	Count  []uint64
}

// SelectionOption configures NewHyperslab.
type SelectionOption func(*selectionOptions)

type selectionOptions struct {
	allowOverlap bool
}

// AllowOverlap accepts strides smaller than the block size. Overlapping
// selections can be read but not written.
func AllowOverlap() SelectionOption {
	return func(o *selectionOptions) {
		o.allowOverlap = true
	}
}

func ones(n int) []uint64 {
	s := make([]uint64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}

// NewHyperslab validates a selection against extent. Nil stride or block
// mean ones. A rank 1 selection of one block covering the whole extent
// returns nil, the whole-dataset selection.
func NewHyperslab(extent, offset, stride, block, count []uint64, opts ...SelectionOption) (*Hyperslab, error) {
	var o selectionOptions
	for _, opt := range opts {
		opt(&o)
	}
	rank := len(extent)
	if stride == nil {
		stride = ones(rank)
	}
	if block == nil {
		block = ones(rank)
	}
	if rank == 0 {
		return nil, fmt.Errorf("%w: empty extent", ErrSelectionOutOfBounds)
	}
	if len(offset) != rank || len(stride) != rank || len(block) != rank || len(count) != rank {
		return nil, fmt.Errorf("%w: selection ranks %d/%d/%d/%d for rank %d extent",
			ErrSelectionOutOfBounds, len(offset), len(stride), len(block), len(count), rank)
	}
	for d := 0; d < rank; d++ {
		if block[d] == 0 || count[d] == 0 {
			return nil, fmt.Errorf("%w: empty block or count in dimension %d", ErrSelectionOutOfBounds, d)
		}
		if count[d] > 1 && stride[d] < block[d] && !o.allowOverlap {
			return nil, fmt.Errorf("%w: stride %d smaller than block %d in dimension %d",
				ErrSelectionOutOfBounds, stride[d], block[d], d)
		}
		if count[d] > 1 && stride[d] == 0 {
			return nil, fmt.Errorf("%w: zero stride in dimension %d", ErrSelectionOutOfBounds, d)
		}
		end, ok := selectionEnd(offset[d], stride[d], block[d], count[d])
		if !ok {
			return nil, fmt.Errorf("%w: dimension %d selection overflows", ErrSelectionOutOfBounds, d)
		}
		if end > extent[d] {
			return nil, fmt.Errorf("%w: dimension %d selects up to %d of %d", ErrSelectionOutOfBounds, d, end, extent[d])
		}
	}
	if rank == 1 && count[0] == 1 && offset[0] == 0 && block[0] == extent[0] {
		return nil, nil
	}
	return &Hyperslab{
		Offset: append([]uint64(nil), offset...),
		Stride: append([]uint64(nil), stride...),
		Block:  append([]uint64(nil), block...),
		Count:  append([]uint64(nil), count...),
	}, nil
}

// selectionEnd returns offset + stride*(count-1) + block, or false when
// that overflows 64 bits.
func selectionEnd(offset, stride, block, count uint64) (uint64, bool) {
	hi, n := bits.Mul64(stride, count-1)
	if hi != 0 {
		return 0, false
	}
	n, c1 := bits.Add64(n, offset, 0)
	n, c2 := bits.Add64(n, block, 0)
	return n, c1 == 0 && c2 == 0
}

// box selects count elements at offset.
func box(extent, offset, count []uint64) (*Hyperslab, error) {
	return NewHyperslab(extent, offset, nil, count, ones(len(count)))
}

// Dims returns the number of selected elements per dimension.
func (h *Hyperslab) Dims() []uint64 {
	dims := make([]uint64, len(h.Block))
	for i := range dims {
		dims[i] = h.Block[i] * h.Count[i]
	}
	return dims
}

// ElementCount returns the number of selected elements.
func (h *Hyperslab) ElementCount() uint64 {
	n := uint64(1)
	for _, d := range h.Dims() {
		n *= d
	}
	return n
}

// Overlaps reports whether blocks of the selection overlap.
func (h *Hyperslab) Overlaps() bool {
	if h == nil {
		return false
	}
	for d := range h.Block {
		if h.Count[d] > 1 && h.Stride[d] < h.Block[d] {
			return true
		}
	}
	return false
}

// engine returns the selection in container dimension order.
func (h *Hyperslab) engine() *hdf5.Hyperslab {
	if h == nil {
		return nil
	}
	return &hdf5.Hyperslab{
		Start:  reversed(h.Offset),
		Stride: reversed(h.Stride),
		Block:  reversed(h.Block),
		Count:  reversed(h.Count),
	}
}

// span returns the bounding box of the selection as a hyperslab.
func (h *Hyperslab) span() *Hyperslab {
	s := &Hyperslab{
		Offset: append([]uint64(nil), h.Offset...),
		Stride: ones(len(h.Offset)),
		Block:  make([]uint64, len(h.Offset)),
		Count:  ones(len(h.Offset)),
	}
	for d := range s.Block {
		s.Block[d] = h.Stride[d]*(h.Count[d]-1) + h.Block[d]
	}
	return s
}

// gather copies the selected elements out of src, which holds the
// selection's bounding box, into dst. Both are ordered fastest-varying
// first.
func (h *Hyperslab) gather(dst, src []byte, elemSize int) {
	span := h.span().Block
	dims := h.Dims()
	rank := len(dims)
	idx := make([]uint64, rank)
	n := h.ElementCount()
	for i := uint64(0); i < n; i++ {
		var lin, mul uint64 = 0, 1
		for d := 0; d < rank; d++ {
			k := idx[d]
			pos := (k/h.Block[d])*h.Stride[d] + k%h.Block[d]
			lin += pos * mul
			mul *= span[d]
		}
		copy(dst[int(i)*elemSize:int(i+1)*elemSize], src[int(lin)*elemSize:int(lin+1)*elemSize])
		for d := 0; d < rank; d++ {
			idx[d]++
			if idx[d] < dims[d] {
				break
			}
			idx[d] = 0
		}
	}
}

func reversed(s []uint64) []uint64 {
	out := make([]uint64, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

func product(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

// Selection is a validated hyperslab bound to one dataset, reusable for
// repeated reads of the same region.
type Selection struct {
	path   string
	dt     Datatype
	extent []uint64
	slab   *Hyperslab
}

// Path returns the dataset path.
func (s *Selection) Path() string { return s.path }

// Datatype returns the dataset's element type.
func (s *Selection) Datatype() Datatype { return s.dt }

// Extent returns the dataset extent.
func (s *Selection) Extent() []uint64 { return append([]uint64(nil), s.extent...) }

// Hyperslab returns the selected region, nil for the whole dataset.
func (s *Selection) Hyperslab() *Hyperslab { return s.slab }

// ElementCount returns the number of selected elements.
func (s *Selection) ElementCount() uint64 {
	if s.slab == nil {
		return product(s.extent)
	}
	return s.slab.ElementCount()
}
