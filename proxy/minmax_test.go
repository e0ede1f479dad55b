package proxy

import (
	"math"
	"testing"
)

func TestMinMax(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name       string
		values     []float64
		components int
		wantMin    []float64
		wantMax    []float64
		wantOK     bool
	}{
		{"scalar", []float64{3, 1, 4, 1, 5}, 1, []float64{1}, []float64{5}, true},
		{"leading NaN", []float64{nan, nan, 2, -7}, 1, []float64{-7}, []float64{2}, true},
		{"all NaN", []float64{nan, nan}, 1, nil, nil, false},
		{"empty", nil, 1, nil, nil, false},
		{"vector", []float64{1, 10, -2, 20, 3, 5}, 2, []float64{-2, 5}, []float64{3, 20}, true},
		{"vector with NaN component", []float64{nan, 1, nan, 2}, 2, []float64{nan, 1}, []float64{nan, 2}, true},
		// A NaN after the first number leaves both bounds alone.
		{"mid NaN", []float64{2, nan, 1, 3}, 1, []float64{1}, []float64{3}, true},
		{"bad components", []float64{1}, 0, nil, nil, false},
	}
	same := func(a, b []float64) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] && !(math.IsNaN(a[i]) && math.IsNaN(b[i])) {
				return false
			}
		}
		return true
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mins, maxs, ok := MinMax(tt.values, tt.components)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !same(mins, tt.wantMin) || !same(maxs, tt.wantMax) {
				t.Errorf("MinMax = %v %v, want %v %v", mins, maxs, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestMinMaxIntegers(t *testing.T) {
	mins, maxs, ok := MinMax([]int16{4, -3, 9, 0}, 2)
	if !ok || mins[0] != 4 || maxs[0] != 9 || mins[1] != -3 || maxs[1] != 0 {
		t.Errorf("MinMax = %v %v %v", mins, maxs, ok)
	}
}
