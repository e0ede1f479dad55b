package proxy

import (
	"context"
	"fmt"
	"math"
)

// MinMax returns per-component bounds of interleaved values: component c
// is values[c], values[c+components], ... Leading NaNs are skipped. When
// every value of a component is NaN its bounds are NaN, or ok is false for
// a single component.
//
// Past the first number a NaN never replaces a bound.
func MinMax[T Element](values []T, components int) (mins, maxs []T, ok bool) {
	if components <= 0 {
		return nil, nil, false
	}
	mins = make([]T, components)
	maxs = make([]T, components)
	for c := 0; c < components; c++ {
		i := c
		// NaN is the only value not equal to itself.
		for i < len(values) && values[i] != values[i] {
			i += components
		}
		if i >= len(values) {
			if components == 1 {
				return nil, nil, false
			}
			mins[c], maxs[c] = nan[T](), nan[T]()
			continue
		}
		lo, hi := values[i], values[i]
		for i += components; i < len(values); i += components {
			v := values[i]
			if v < lo {
				lo = v
			} else if v > hi {
				hi = v
			}
		}
		mins[c], maxs[c] = lo, hi
	}
	return mins, maxs, true
}

// nan returns NaN for float types and zero otherwise.
func nan[T Element]() T {
	var zero T
	switch p := any(&zero).(type) {
	case *float32:
		*p = float32(math.NaN())
	case *float64:
		*p = math.NaN()
	}
	return zero
}

// DatasetMinMax reads a whole floating-point dataset and returns the bounds
// of each of its components.
func (p *Proxy) DatasetMinMax(ctx context.Context, group, name string, components int) (mins, maxs []float64, ok bool, err error) {
	info, err := p.Info(ctx, group, name)
	if err != nil {
		return nil, nil, false, err
	}
	switch info.Type {
	case Float32:
		vals, _, err := LoadArray[float32](ctx, p, group, name)
		if err != nil {
			return nil, nil, false, err
		}
		lo, hi, ok := MinMax(vals, components)
		return widen(lo), widen(hi), ok, nil
	case Float64:
		vals, _, err := LoadArray[float64](ctx, p, group, name)
		if err != nil {
			return nil, nil, false, err
		}
		mins, maxs, ok = MinMax(vals, components)
		return mins, maxs, ok, nil
	}
	return nil, nil, false, fmt.Errorf("%w: %s dataset is not floating-point", ErrTypeMismatch, info.Type)
}

func widen(s []float32) []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}
