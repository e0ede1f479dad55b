package binary

import (
	"testing"
)

func TestLookup3Checksum(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{"empty", []byte{}, 0xdeadbeef},
		{"reference vector", []byte("Four score and seven years ago"), 0x17770551},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Lookup3Checksum(tt.input); got != tt.want {
				t.Errorf("Lookup3Checksum(%q) = 0x%08x, want 0x%08x", tt.input, got, tt.want)
			}
		})
	}
}

func TestLookup3ChecksumLengthVariations(t *testing.T) {
	// Every length through two full blocks must hash differently.
	checksums := make(map[uint32]int)
	for length := 0; length <= 24; length++ {
		data := make([]byte, length)
		for i := range data {
			data[i] = byte(i)
		}
		checksums[Lookup3Checksum(data)] = length
	}
	if len(checksums) != 25 {
		t.Errorf("expected 25 unique checksums for lengths 0-24, got %d", len(checksums))
	}
}

func TestVerifyLookup3(t *testing.T) {
	data := []byte("test data for verification")
	checksum := Lookup3Checksum(data)

	if !VerifyLookup3(data, checksum) {
		t.Error("VerifyLookup3 should return true for matching checksum")
	}
	if VerifyLookup3(data, checksum+1) {
		t.Error("VerifyLookup3 should return false for non-matching checksum")
	}
}

func TestFletcher32(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{"empty", []byte{}, 0},
		{"odd length", []byte("abcde"), 0x4ff029c7},
		{"even length", []byte("abcdef"), 0x50562a2d},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fletcher32(tt.input); got != tt.want {
				t.Errorf("Fletcher32(%q) = 0x%08x, want 0x%08x", tt.input, got, tt.want)
			}
		})
	}
}

func TestFletcher32OddLength(t *testing.T) {
	odd := []byte{0x01, 0x02, 0x03}
	even := []byte{0x01, 0x02, 0x03, 0x00}

	if a, b := Fletcher32(odd), Fletcher32(even); a != b {
		t.Errorf("Fletcher32 should pad odd-length input: odd=0x%08x, even=0x%08x", a, b)
	}
}

func BenchmarkLookup3Checksum(b *testing.B) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Lookup3Checksum(data)
	}
}

func BenchmarkFletcher32(b *testing.B) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Fletcher32(data)
	}
}
