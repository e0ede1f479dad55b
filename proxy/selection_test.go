package proxy

import (
	"errors"
	"slices"
	"testing"
)

func TestNewHyperslab(t *testing.T) {
	tests := []struct {
		name                   string
		extent, offset, stride []uint64
		block, count           []uint64
		opts                   []SelectionOption
		wantErr                bool
		wantNil                bool
		wantDims               []uint64
	}{
		{name: "box", extent: []uint64{3, 2}, offset: []uint64{1, 0}, block: []uint64{2, 1}, count: []uint64{1, 1}, wantDims: []uint64{2, 1}},
		{name: "whole 1-D", extent: []uint64{5}, offset: []uint64{0}, block: []uint64{5}, count: []uint64{1}, wantNil: true},
		{name: "partial 1-D", extent: []uint64{5}, offset: []uint64{1}, block: []uint64{4}, count: []uint64{1}, wantDims: []uint64{4}},
		{name: "whole 2-D is explicit", extent: []uint64{3, 2}, offset: []uint64{0, 0}, block: []uint64{3, 2}, count: []uint64{1, 1}, wantDims: []uint64{3, 2}},
		{name: "strided", extent: []uint64{10}, offset: []uint64{1}, stride: []uint64{3}, block: []uint64{2}, count: []uint64{3}, wantDims: []uint64{6}},
		{name: "strided to the edge", extent: []uint64{9}, offset: []uint64{1}, stride: []uint64{3}, block: []uint64{2}, count: []uint64{3}, wantDims: []uint64{6}},
		{name: "strided past the edge", extent: []uint64{8}, offset: []uint64{1}, stride: []uint64{3}, block: []uint64{2}, count: []uint64{3}, wantErr: true},
		{name: "defaults", extent: []uint64{4, 4}, offset: []uint64{3, 3}, count: []uint64{1, 1}, wantDims: []uint64{1, 1}},
		{name: "overlap rejected", extent: []uint64{6}, offset: []uint64{0}, stride: []uint64{1}, block: []uint64{2}, count: []uint64{3}, wantErr: true},
		{name: "overlap allowed", extent: []uint64{6}, offset: []uint64{0}, stride: []uint64{1}, block: []uint64{2}, count: []uint64{3}, opts: []SelectionOption{AllowOverlap()}, wantDims: []uint64{6}},
		{name: "single block ignores stride", extent: []uint64{6}, offset: []uint64{2}, stride: []uint64{1}, block: []uint64{3}, count: []uint64{1}, wantDims: []uint64{3}},
		{name: "rank mismatch", extent: []uint64{3, 2}, offset: []uint64{0}, count: []uint64{1, 1}, wantErr: true},
		{name: "offset past end", extent: []uint64{3}, offset: []uint64{3}, count: []uint64{1}, wantErr: true},
		{name: "zero count", extent: []uint64{3}, offset: []uint64{0}, count: []uint64{0}, wantErr: true},
		{name: "zero block", extent: []uint64{3}, offset: []uint64{0}, block: []uint64{0}, count: []uint64{1}, wantErr: true},
		{name: "empty extent", extent: nil, wantErr: true},
		{name: "stride wraps", extent: []uint64{10}, offset: []uint64{0}, stride: []uint64{1 << 63}, block: []uint64{1}, count: []uint64{3}, wantErr: true},
		{name: "stride wraps with overlap allowed", extent: []uint64{10}, offset: []uint64{0}, stride: []uint64{1 << 63}, block: []uint64{1}, count: []uint64{3}, opts: []SelectionOption{AllowOverlap()}, wantErr: true},
		{name: "offset plus block wraps", extent: []uint64{10}, offset: []uint64{1 << 63}, block: []uint64{1 << 63}, count: []uint64{1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHyperslab(tt.extent, tt.offset, tt.stride, tt.block, tt.count, tt.opts...)
			if tt.wantErr {
				if !errors.Is(err, ErrSelectionOutOfBounds) {
					t.Fatalf("expected ErrSelectionOutOfBounds, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewHyperslab: %v", err)
			}
			if tt.wantNil {
				if h != nil {
					t.Fatalf("expected the whole-dataset selection, got %+v", h)
				}
				return
			}
			if h == nil {
				t.Fatal("unexpected whole-dataset selection")
			}
			if !slices.Equal(h.Dims(), tt.wantDims) {
				t.Errorf("Dims = %v, want %v", h.Dims(), tt.wantDims)
			}
			if h.ElementCount() != product(tt.wantDims) {
				t.Errorf("ElementCount = %d", h.ElementCount())
			}
		})
	}
}

func TestHyperslabEngineOrder(t *testing.T) {
	h, err := NewHyperslab([]uint64{4, 3, 2}, []uint64{1, 2, 0}, []uint64{2, 1, 1}, []uint64{1, 1, 2}, []uint64{2, 1, 1})
	if err != nil {
		t.Fatalf("NewHyperslab: %v", err)
	}
	e := h.engine()
	if !slices.Equal(e.Start, []uint64{0, 2, 1}) || !slices.Equal(e.Stride, []uint64{1, 1, 2}) ||
		!slices.Equal(e.Block, []uint64{2, 1, 1}) || !slices.Equal(e.Count, []uint64{1, 1, 2}) {
		t.Errorf("engine selection = %+v", e)
	}
	if (*Hyperslab)(nil).engine() != nil {
		t.Error("nil selection must stay nil")
	}
}

func TestHyperslabGather(t *testing.T) {
	// Extent [5, 2], value(x, y) = 10*y + x.
	h, err := NewHyperslab([]uint64{5, 2}, []uint64{0, 0}, []uint64{1, 1}, []uint64{3, 1}, []uint64{2, 2}, AllowOverlap())
	if err != nil {
		t.Fatalf("NewHyperslab: %v", err)
	}
	if !h.Overlaps() {
		t.Fatal("expected overlapping blocks")
	}
	span := h.span()
	if !slices.Equal(span.Block, []uint64{4, 2}) || !slices.Equal(span.Offset, []uint64{0, 0}) {
		t.Fatalf("span = %+v", span)
	}
	src := []byte{0, 1, 2, 3, 10, 11, 12, 13}
	dst := make([]byte, h.ElementCount())
	h.gather(dst, src, 1)
	want := []byte{
		0, 1, 2, 1, 2, 3,
		10, 11, 12, 11, 12, 13,
	}
	if !slices.Equal(dst, want) {
		t.Errorf("gather = %v, want %v", dst, want)
	}
}
