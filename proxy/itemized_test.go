package proxy

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"
)

func TestBuildCumulativeLengths(t *testing.T) {
	if got := BuildCumulativeLengths([]int{2, 0, 3}); !slices.Equal(got, []int64{2, 2, 5}) {
		t.Errorf("BuildCumulativeLengths = %v", got)
	}
	if got := BuildCumulativeLengths(nil); len(got) != 0 {
		t.Errorf("empty input gave %v", got)
	}
}

func TestItemizedList(t *testing.T) {
	ctx := context.Background()
	p, _ := openTemp(t)

	lists := [][]int32{{10, 11}, {}, {12, 13, 14}}
	var flat []int32
	lengths := make([]int, len(lists))
	for i, l := range lists {
		flat = append(flat, l...)
		lengths[i] = len(l)
	}
	cum := BuildCumulativeLengths(lengths)
	if !slices.Equal(cum, []int64{2, 2, 5}) {
		t.Fatalf("cumulative lengths = %v", cum)
	}
	if err := p.WriteItemizedList(ctx, "grid", "faces", cum, BufferOf(flat)); err != nil {
		t.Fatalf("WriteItemizedList: %v", err)
	}
	for _, name := range []string{"grid/faces_cumulativeLength", "grid/faces_elements"} {
		if ok, err := p.Exists(ctx, name); err != nil || !ok {
			t.Errorf("Exists(%s) = %v, %v", name, ok, err)
		}
	}

	l, err := p.ReadItemizedList(ctx, "grid", "faces")
	if err != nil {
		t.Fatalf("ReadItemizedList: %v", err)
	}
	if !slices.Equal(l.CumulativeLengths, []int64{2, 2, 5}) {
		t.Errorf("read cumulative lengths %v", l.CumulativeLengths)
	}
	if l.Elements.Len() != 5 || l.Elements.Datatype() != Int32 {
		t.Errorf("read %d %s elements", l.Elements.Len(), l.Elements.Datatype())
	}
	got, err := ListsOf[int32](l)
	if err != nil {
		t.Fatalf("ListsOf: %v", err)
	}
	if !reflect.DeepEqual(got, lists) {
		t.Errorf("lists = %v, want %v", got, lists)
	}
	if _, err := ListsOf[int64](l); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("ListsOf[int64]: expected ErrTypeMismatch, got %v", err)
	}
	if n := l.List(2).Len(); n != 3 {
		t.Errorf("List(2) has %d elements", n)
	}
}

func TestItemizedListEmpty(t *testing.T) {
	ctx := context.Background()
	p, _ := openTemp(t)
	if err := p.WriteItemizedList(ctx, "g", "none", []int64{0, 0}, BufferOf([]float64{})); err != nil {
		t.Fatalf("WriteItemizedList: %v", err)
	}
	l, err := p.ReadItemizedList(ctx, "g", "none")
	if err != nil {
		t.Fatalf("ReadItemizedList: %v", err)
	}
	if l.Len() != 2 || l.Elements.Len() != 0 {
		t.Errorf("read %d lists with %d elements", l.Len(), l.Elements.Len())
	}
}

func TestItemizedListInconsistent(t *testing.T) {
	ctx := context.Background()
	p, _ := openTemp(t)
	elements := BufferOf([]int32{1, 2, 3, 4, 5})

	tests := []struct {
		name string
		cum  []int64
	}{
		{"decreasing", []int64{2, 1, 5}},
		{"too few elements", []int64{2, 2, 6}},
		{"too many elements", []int64{2, 2, 4}},
		{"negative", []int64{-1, 5}},
		{"no lists", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.WriteItemizedList(ctx, "g", "bad", tt.cum, elements)
			if !errors.Is(err, ErrInconsistentItemizedList) {
				t.Fatalf("expected ErrInconsistentItemizedList, got %v", err)
			}
		})
	}
	if ok, err := p.Exists(ctx, "g/bad_cumulativeLength"); err != nil || ok {
		t.Errorf("rejected list was written: %v, %v", ok, err)
	}
}

func TestItemizedListSiblingMismatch(t *testing.T) {
	ctx := context.Background()
	p, _ := openTemp(t)

	if err := CreateArray[float64](ctx, p, "grid", "faces_elements", []uint64{5}); err != nil {
		t.Fatal(err)
	}
	cum := []int64{2, 2, 5}
	err := p.WriteItemizedList(ctx, "grid", "faces", cum, BufferOf([]int32{1, 2, 3, 4, 5}))
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if ok, err := p.Exists(ctx, "grid/faces_cumulativeLength"); err != nil || ok {
		t.Errorf("cumulative lengths written beside a mismatched element dataset: %v, %v", ok, err)
	}

	if err := p.WriteItemizedList(ctx, "grid", "edges", cum, BufferOf([]int32{1, 2, 3, 4, 5})); err != nil {
		t.Fatal(err)
	}
	err = p.WriteItemizedList(ctx, "grid", "edges", []int64{1, 1, 6}, BufferOf([]int32{1, 2, 3, 4, 5, 6}))
	if !errors.Is(err, ErrSelectionOutOfBounds) {
		t.Fatalf("expected ErrSelectionOutOfBounds, got %v", err)
	}
	l, err := p.ReadItemizedList(ctx, "grid", "edges")
	if err != nil {
		t.Fatalf("ReadItemizedList: %v", err)
	}
	if !slices.Equal(l.CumulativeLengths, cum) {
		t.Errorf("cumulative lengths changed to %v", l.CumulativeLengths)
	}
}

func TestReadItemizedListIntegerWidths(t *testing.T) {
	ctx := context.Background()
	p, _ := openTemp(t)
	elements := []float32{1, 2, 3, 4, 5}

	tests := []struct {
		name  string
		write func(name string) error
	}{
		{"uint16", func(n string) error {
			return WriteArray(ctx, p, "g", n+CumulativeLengthSuffix, []uint16{2, 2, 5}, []uint64{3})
		}},
		{"int32", func(n string) error {
			return WriteArray(ctx, p, "g", n+CumulativeLengthSuffix, []int32{2, 2, 5}, []uint64{3})
		}},
		{"uint64", func(n string) error {
			return WriteArray(ctx, p, "g", n+CumulativeLengthSuffix, []uint64{2, 2, 5}, []uint64{3})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.write(tt.name); err != nil {
				t.Fatal(err)
			}
			if err := WriteArray(ctx, p, "g", tt.name+ElementsSuffix, elements, []uint64{5}); err != nil {
				t.Fatal(err)
			}
			l, err := p.ReadItemizedList(ctx, "g", tt.name)
			if err != nil {
				t.Fatalf("ReadItemizedList: %v", err)
			}
			if !slices.Equal(l.CumulativeLengths, []int64{2, 2, 5}) {
				t.Errorf("cumulative lengths = %v", l.CumulativeLengths)
			}
		})
	}
}

func TestInt64sExact(t *testing.T) {
	big := int64(1<<53 + 1)
	got, err := int64s(BufferOf([]int64{big}))
	if err != nil || len(got) != 1 || got[0] != big {
		t.Errorf("int64s(%d) = %v, %v", big, got, err)
	}
	got, err = int64s(BufferOf([]uint64{1<<53 + 1}))
	if err != nil || got[0] != big {
		t.Errorf("int64s(uint64 %d) = %v, %v", big, got, err)
	}
	if _, err := int64s(BufferOf([]uint64{1 << 63})); !errors.Is(err, ErrInconsistentItemizedList) {
		t.Errorf("expected ErrInconsistentItemizedList, got %v", err)
	}
	if _, err := int64s(BufferOf([]float64{1})); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}
