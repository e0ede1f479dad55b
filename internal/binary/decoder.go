package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrShortBuffer is recorded when a decoder runs past the end of its input.
var ErrShortBuffer = errors.New("structure truncated")

// Decoder reads little-endian fields from a byte slice. The first failure is
// sticky: later reads return zero values and Err reports the original error,
// so callers check once after decoding a whole structure.
type Decoder struct {
	cfg Config
	buf []byte
	pos int
	err error
}

// NewDecoder creates a decoder over buf.
func NewDecoder(buf []byte, cfg Config) *Decoder {
	return &Decoder{cfg: cfg, buf: buf}
}

// Err returns the first decoding error.
func (d *Decoder) Err() error { return d.err }

// Pos returns the current position within the buffer.
func (d *Decoder) Pos() int { return d.pos }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

// Config returns the decoder's field widths.
func (d *Decoder) Config() Config { return d.cfg }

// Fail records err if no error is recorded yet.
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Bytes returns the next n bytes. The slice aliases the input.
func (d *Decoder) Bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.pos+n > len(d.buf) {
		d.err = fmt.Errorf("%w: need %d bytes at %d, have %d", ErrShortBuffer, n, d.pos, len(d.buf)-d.pos)
		return nil
	}
	p := d.buf[d.pos : d.pos+n]
	d.pos += n
	return p
}

// Skip advances past n bytes.
func (d *Decoder) Skip(n int) { d.Bytes(n) }

// Uint8 reads one byte.
func (d *Decoder) Uint8() uint8 {
	p := d.Bytes(1)
	if p == nil {
		return 0
	}
	return p[0]
}

// Uint16 reads a 16-bit value.
func (d *Decoder) Uint16() uint16 {
	p := d.Bytes(2)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(p)
}

// Uint32 reads a 32-bit value.
func (d *Decoder) Uint32() uint32 {
	p := d.Bytes(4)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(p)
}

// Uint64 reads a 64-bit value.
func (d *Decoder) Uint64() uint64 {
	p := d.Bytes(8)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(p)
}

// UintN reads an n-byte unsigned value.
func (d *Decoder) UintN(n int) uint64 {
	p := d.Bytes(n)
	if p == nil {
		return 0
	}
	return DecodeUint(p)
}

// Offset reads a file address.
func (d *Decoder) Offset() uint64 { return d.UintN(d.cfg.OffsetSize) }

// Length reads a length field.
func (d *Decoder) Length() uint64 { return d.UintN(d.cfg.LengthSize) }

// DecodeUint decodes a little-endian unsigned integer of len(p) bytes.
func DecodeUint(p []byte) uint64 {
	var v uint64
	for i := len(p) - 1; i >= 0; i-- {
		v = v<<8 | uint64(p[i])
	}
	return v
}

// ReadAt reads exactly n bytes at off. A short read at the end of the file is
// reported as io.ErrUnexpectedEOF.
func ReadAt(r io.ReaderAt, off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := r.ReadAt(buf, off)
	if got == n {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %d bytes at %d: %w", n, off, err)
}

// ReadAtMost reads up to n bytes at off, tolerating the end of the file.
func ReadAtMost(r io.ReaderAt, off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := r.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:got], nil
}
