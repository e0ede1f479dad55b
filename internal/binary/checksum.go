package binary

import (
	"encoding/binary"
	"math/bits"
)

// Lookup3Checksum computes Bob Jenkins' lookup3 "hashlittle" with an initial
// value of zero, the checksum HDF5 stores after superblocks, object headers
// and chunk index structures.
func Lookup3Checksum(data []byte) uint32 {
	a := 0xdeadbeef + uint32(len(data))
	b, c := a, a

	// Blocks are mixed only while more than 12 bytes remain; the last
	// 1..12 bytes go through the final mix.
	for len(data) > 12 {
		a += binary.LittleEndian.Uint32(data[0:])
		b += binary.LittleEndian.Uint32(data[4:])
		c += binary.LittleEndian.Uint32(data[8:])
		a, b, c = mix(a, b, c)
		data = data[12:]
	}
	if len(data) == 0 {
		return c
	}

	var tail [12]byte
	copy(tail[:], data)
	a += binary.LittleEndian.Uint32(tail[0:])
	b += binary.LittleEndian.Uint32(tail[4:])
	c += binary.LittleEndian.Uint32(tail[8:])
	_, _, c = final(a, b, c)
	return c
}

func mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= c
	a ^= bits.RotateLeft32(c, 4)
	c += b
	b -= a
	b ^= bits.RotateLeft32(a, 6)
	a += c
	c -= b
	c ^= bits.RotateLeft32(b, 8)
	b += a
	a -= c
	a ^= bits.RotateLeft32(c, 16)
	c += b
	b -= a
	b ^= bits.RotateLeft32(a, 19)
	a += c
	c -= b
	c ^= bits.RotateLeft32(b, 4)
	b += a
	return a, b, c
}

func final(a, b, c uint32) (uint32, uint32, uint32) {
	c ^= b
	c -= bits.RotateLeft32(b, 14)
	a ^= c
	a -= bits.RotateLeft32(c, 11)
	b ^= a
	b -= bits.RotateLeft32(a, 25)
	c ^= b
	c -= bits.RotateLeft32(b, 16)
	a ^= c
	a -= bits.RotateLeft32(c, 4)
	b ^= a
	b -= bits.RotateLeft32(a, 14)
	c ^= b
	c -= bits.RotateLeft32(b, 24)
	return a, b, c
}

// VerifyLookup3 reports whether data hashes to expected.
func VerifyLookup3(data []byte, expected uint32) bool {
	return Lookup3Checksum(data) == expected
}

// Fletcher32 computes the Fletcher-32 checksum of the fletcher32 filter.
// Words are formed big-endian from byte pairs; an odd trailing byte is
// treated as the high half of a final word.
func Fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32
	for len(data) > 1 {
		word := uint32(data[0])<<8 | uint32(data[1])
		sum1 = (sum1 + word) % 65535
		sum2 = (sum2 + sum1) % 65535
		data = data[2:]
	}
	if len(data) == 1 {
		sum1 = (sum1 + uint32(data[0])<<8) % 65535
		sum2 = (sum2 + sum1) % 65535
	}
	return sum2<<16 | sum1
}
