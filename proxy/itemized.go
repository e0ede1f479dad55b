package proxy

import (
	"context"
	"fmt"
	"math"
)

// Sibling dataset suffixes of an itemized list.
const (
	CumulativeLengthSuffix = "_cumulativeLength"
	ElementsSuffix         = "_elements"
)

// ItemizedList is a list of lists stored flat. Entry i of
// CumulativeLengths is the number of elements in lists 0..i.
type ItemizedList struct {
	CumulativeLengths []int64
	Elements          Buffer
}

// BuildCumulativeLengths returns the running totals of lengths.
func BuildCumulativeLengths(lengths []int) []int64 {
	cum := make([]int64, len(lengths))
	var total int64
	for i, n := range lengths {
		total += int64(n)
		cum[i] = total
	}
	return cum
}

// Validate checks that the lengths never decrease and account for every
// element.
func (l ItemizedList) Validate() error {
	var prev int64
	for i, c := range l.CumulativeLengths {
		if c < prev {
			return fmt.Errorf("%w: cumulative length %d at %d follows %d", ErrInconsistentItemizedList, c, i, prev)
		}
		prev = c
	}
	if prev != int64(l.Elements.Len()) {
		return fmt.Errorf("%w: lists hold %d elements, %d given", ErrInconsistentItemizedList, prev, l.Elements.Len())
	}
	return nil
}

// Len returns the number of lists.
func (l ItemizedList) Len() int { return len(l.CumulativeLengths) }

// List returns list i as a view of the elements.
func (l ItemizedList) List(i int) Buffer {
	var lo int64
	if i > 0 {
		lo = l.CumulativeLengths[i-1]
	}
	return l.Elements.Slice(int(lo), int(l.CumulativeLengths[i]))
}

// Lists returns every list.
func (l ItemizedList) Lists() []Buffer {
	out := make([]Buffer, l.Len())
	for i := range out {
		out[i] = l.List(i)
	}
	return out
}

// ListsOf returns the lists of l as slices of T.
func ListsOf[T Element](l ItemizedList) ([][]T, error) {
	out := make([][]T, l.Len())
	for i := range out {
		vals, err := Values[T](l.List(i))
		if err != nil {
			return nil, err
		}
		out[i] = vals
	}
	return out, nil
}

// WriteItemizedList stores a list of lists as the datasets
// <name>_cumulativeLength and <name>_elements. Inconsistent input, or an
// existing dataset of either name with another type or extent, fails
// before anything is written.
func (p *Proxy) WriteItemizedList(ctx context.Context, group, name string, cumulative []int64, elements Buffer) error {
	if err := p.ready(); err != nil {
		return err
	}
	if err := (ItemizedList{CumulativeLengths: cumulative, Elements: elements}).Validate(); err != nil {
		return err
	}
	cumPath, err := DatasetPath(group, name+CumulativeLengthSuffix)
	if err != nil {
		return err
	}
	elemPath, err := DatasetPath(group, name+ElementsSuffix)
	if err != nil {
		return err
	}
	cumBuf := BufferOf(cumulative)
	cumExtent := []uint64{uint64(len(cumulative))}
	elemExtent := []uint64{uint64(elements.Len())}

	createCum, err := p.checkWhole(ctx, cumPath, Int64, cumBuf, cumExtent)
	if err != nil {
		return err
	}
	createElem, err := p.checkWhole(ctx, elemPath, elements.Datatype(), elements, elemExtent)
	if err != nil {
		return err
	}
	if err := p.writeWhole(ctx, cumPath, Int64, cumBuf, cumExtent, createCum); err != nil {
		return err
	}
	return p.writeWhole(ctx, elemPath, elements.Datatype(), elements, elemExtent, createElem)
}

// ReadItemizedList reads the two datasets of an itemized list. Integer
// cumulative lengths of any width are accepted.
func (p *Proxy) ReadItemizedList(ctx context.Context, group, name string) (ItemizedList, error) {
	cumInfo, err := p.Info(ctx, group, name+CumulativeLengthSuffix)
	if err != nil {
		return ItemizedList{}, err
	}
	if cumInfo.Type.Class() != ClassInteger {
		return ItemizedList{}, fmt.Errorf("%w: %s cumulative lengths", ErrTypeMismatch, cumInfo.Type)
	}
	cumBuf := NewBuffer(cumInfo.Type, int(cumInfo.ElementCount()))
	if err := p.ReadWhole(ctx, group, name+CumulativeLengthSuffix, cumBuf); err != nil {
		return ItemizedList{}, err
	}
	cum, err := int64s(cumBuf)
	if err != nil {
		return ItemizedList{}, fmt.Errorf("reading %s/%s: %w", group, name, err)
	}

	elemInfo, err := p.Info(ctx, group, name+ElementsSuffix)
	if err != nil {
		return ItemizedList{}, err
	}
	elements := NewBuffer(elemInfo.Type, int(elemInfo.ElementCount()))
	if err := p.ReadWhole(ctx, group, name+ElementsSuffix, elements); err != nil {
		return ItemizedList{}, err
	}

	l := ItemizedList{CumulativeLengths: cum, Elements: elements}
	if err := l.Validate(); err != nil {
		return ItemizedList{}, fmt.Errorf("reading %s/%s: %w", group, name, err)
	}
	return l, nil
}

// int64s widens an integer buffer to int64 without a float round trip.
func int64s(b Buffer) ([]int64, error) {
	switch b.Datatype() {
	case Int8:
		return widenInts[int8](b)
	case Int16:
		return widenInts[int16](b)
	case Int32:
		return widenInts[int32](b)
	case Int64:
		v, err := Values[int64](b)
		return append([]int64(nil), v...), err
	case Uint8:
		return widenInts[uint8](b)
	case Uint16:
		return widenInts[uint16](b)
	case Uint32:
		return widenInts[uint32](b)
	case Uint64:
		v, err := Values[uint64](b)
		if err != nil {
			return nil, err
		}
		out := make([]int64, len(v))
		for i, x := range v {
			if x > math.MaxInt64 {
				return nil, fmt.Errorf("%w: cumulative length %d at %d", ErrInconsistentItemizedList, x, i)
			}
			out[i] = int64(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s cumulative lengths", ErrTypeMismatch, b.Datatype())
}

func widenInts[T int8 | int16 | int32 | uint8 | uint16 | uint32](b Buffer) ([]int64, error) {
	v, err := Values[T](b)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out, nil
}
