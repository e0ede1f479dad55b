// Package binary provides the little-endian encoding primitives used by the
// HDF5 container engine: an appending Encoder, a cursor Decoder with a sticky
// error, and the lookup3 / Fletcher-32 checksums.
package binary

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidSize is returned when an invalid offset or length size is specified.
var ErrInvalidSize = errors.New("invalid offset/length size: must be 2, 4, or 8")

// Config holds the variable field widths of a file, taken from its superblock.
// HDF5 metadata is always little-endian.
type Config struct {
	OffsetSize int // 2, 4, or 8 bytes
	LengthSize int // 2, 4, or 8 bytes
}

// DefaultConfig returns 8-byte offsets and lengths.
func DefaultConfig() Config {
	return Config{OffsetSize: 8, LengthSize: 8}
}

// Validate checks that both widths are supported.
func (c Config) Validate() error {
	for _, n := range []int{c.OffsetSize, c.LengthSize} {
		if n != 2 && n != 4 && n != 8 {
			return ErrInvalidSize
		}
	}
	return nil
}

// Undefined returns the all-ones "undefined address" value for a field of n bytes.
func Undefined(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(8*uint(n)) - 1
}

// UndefinedOffset returns the undefined address for the configured offset size.
func (c Config) UndefinedOffset() uint64 {
	return Undefined(c.OffsetSize)
}

// IsUndefined reports whether addr is the undefined address.
func (c Config) IsUndefined(addr uint64) bool {
	return addr == Undefined(c.OffsetSize)
}

// Encoder appends little-endian fields to an in-memory buffer. Structures are
// always assembled in memory first so checksums can be computed before the
// bytes reach the file.
type Encoder struct {
	cfg Config
	buf []byte
}

// NewEncoder creates an encoder with the given field widths.
func NewEncoder(cfg Config) *Encoder {
	return &Encoder{cfg: cfg}
}

// Config returns the encoder's field widths.
func (e *Encoder) Config() Config { return e.cfg }

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int { return len(e.buf) }

// Bytes returns the encoded bytes. The slice aliases the encoder's buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

// Reset discards encoded bytes, keeping the capacity.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

// PutBytes appends raw bytes.
func (e *Encoder) PutBytes(p []byte) { e.buf = append(e.buf, p...) }

// PutZeros appends n zero bytes.
func (e *Encoder) PutZeros(n int) {
	for i := 0; i < n; i++ {
		e.buf = append(e.buf, 0)
	}
}

// PutUint8 appends one byte.
func (e *Encoder) PutUint8(v uint8) { e.buf = append(e.buf, v) }

// PutUint16 appends a 16-bit value.
func (e *Encoder) PutUint16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }

// PutUint32 appends a 32-bit value.
func (e *Encoder) PutUint32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

// PutUint64 appends a 64-bit value.
func (e *Encoder) PutUint64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

// PutUintN appends the low n bytes of v.
func (e *Encoder) PutUintN(v uint64, n int) {
	for i := 0; i < n; i++ {
		e.buf = append(e.buf, byte(v>>(8*uint(i))))
	}
}

// PutOffset appends a file address using the configured offset size.
func (e *Encoder) PutOffset(v uint64) { e.PutUintN(v, e.cfg.OffsetSize) }

// PutLength appends a length using the configured length size.
func (e *Encoder) PutLength(v uint64) { e.PutUintN(v, e.cfg.LengthSize) }

// PutUndefinedOffset appends the undefined address.
func (e *Encoder) PutUndefinedOffset() { e.PutOffset(e.cfg.UndefinedOffset()) }

// PutChecksum appends the lookup3 checksum of everything encoded since start.
func (e *Encoder) PutChecksum(start int) {
	e.PutUint32(Lookup3Checksum(e.buf[start:]))
}

// PatchUint32 overwrites a previously encoded 32-bit field.
func (e *Encoder) PatchUint32(at int, v uint32) {
	binary.LittleEndian.PutUint32(e.buf[at:], v)
}

// OffsetSize returns the configured offset size in bytes.
func (e *Encoder) OffsetSize() int { return e.cfg.OffsetSize }

// LengthSize returns the configured length size in bytes.
func (e *Encoder) LengthSize() int { return e.cfg.LengthSize }
