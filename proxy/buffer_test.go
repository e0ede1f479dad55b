package proxy

import (
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"testing"
)

func TestBufferOfSharesMemory(t *testing.T) {
	vals := []int32{1, 2, 3}
	b := BufferOf(vals)
	if b.Len() != 3 || b.Datatype() != Int32 {
		t.Fatalf("buffer of %d %s", b.Len(), b.Datatype())
	}
	view, err := Values[int32](b)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	view[1] = 42
	if vals[1] != 42 {
		t.Error("Values does not share the caller's memory")
	}
	if _, err := Values[uint32](b); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Values[uint32]: expected ErrTypeMismatch, got %v", err)
	}
	if got := b.Slice(1, 3).Float64s(); !slices.Equal(got, []float64{42, 3}) {
		t.Errorf("Slice(1, 3).Float64s() = %v", got)
	}
}

func TestRawBuffer(t *testing.T) {
	p := make([]byte, 16)
	binary.LittleEndian.PutUint64(p, math.Float64bits(1.5))
	binary.LittleEndian.PutUint64(p[8:], math.Float64bits(-2))
	b, err := RawBuffer(Float64, p)
	if err != nil {
		t.Fatalf("RawBuffer: %v", err)
	}
	if got := b.Float64s(); !slices.Equal(got, []float64{1.5, -2}) {
		t.Errorf("Float64s = %v", got)
	}
	if _, err := RawBuffer(Float64, p[:12]); !errors.Is(err, ErrBufferSize) {
		t.Errorf("ragged bytes: expected ErrBufferSize, got %v", err)
	}
	if _, err := RawBuffer(VarString, p); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("string buffer: expected ErrUnsupportedType, got %v", err)
	}
}

func TestBufferFloat64s(t *testing.T) {
	tests := []struct {
		name string
		buf  Buffer
		want []float64
	}{
		{"int8", BufferOf([]int8{-1, 2}), []float64{-1, 2}},
		{"uint16", BufferOf([]uint16{65535}), []float64{65535}},
		{"int64", BufferOf([]int64{-1 << 40}), []float64{-1 << 40}},
		{"float32", BufferOf([]float32{0.5}), []float64{0.5}},
		{"empty", BufferOf([]uint32{}), []float64{}},
	}
	for _, tt := range tests {
		if got := tt.buf.Float64s(); !slices.Equal(got, tt.want) {
			t.Errorf("%s: Float64s = %v, want %v", tt.name, got, tt.want)
		}
	}
}
