package binary

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncoderDecoderFields(t *testing.T) {
	for _, cfg := range []Config{{2, 2}, {4, 4}, {8, 8}, {8, 4}} {
		e := NewEncoder(cfg)
		e.PutUint8(0xAB)
		e.PutUint16(0x1234)
		e.PutUint32(0xDEADBEEF)
		e.PutUint64(0x0102030405060708)
		e.PutOffset(0x0FFF)
		e.PutLength(0x0ABC)
		e.PutUndefinedOffset()
		e.PutBytes([]byte("OHDR"))

		wantLen := 1 + 2 + 4 + 8 + 2*cfg.OffsetSize + cfg.LengthSize + 4
		if e.Len() != wantLen {
			t.Fatalf("cfg %+v: encoded %d bytes, want %d", cfg, e.Len(), wantLen)
		}

		d := NewDecoder(e.Bytes(), cfg)
		if v := d.Uint8(); v != 0xAB {
			t.Errorf("Uint8 = %#x", v)
		}
		if v := d.Uint16(); v != 0x1234 {
			t.Errorf("Uint16 = %#x", v)
		}
		if v := d.Uint32(); v != 0xDEADBEEF {
			t.Errorf("Uint32 = %#x", v)
		}
		if v := d.Uint64(); v != 0x0102030405060708 {
			t.Errorf("Uint64 = %#x", v)
		}
		if v := d.Offset(); v != 0x0FFF {
			t.Errorf("Offset = %#x", v)
		}
		if v := d.Length(); v != 0x0ABC {
			t.Errorf("Length = %#x", v)
		}
		if v := d.Offset(); !cfg.IsUndefined(v) {
			t.Errorf("expected undefined offset, got %#x", v)
		}
		if v := d.Bytes(4); !bytes.Equal(v, []byte("OHDR")) {
			t.Errorf("Bytes = %q", v)
		}
		if err := d.Err(); err != nil {
			t.Fatalf("cfg %+v: unexpected error %v", cfg, err)
		}
		if d.Remaining() != 0 {
			t.Errorf("cfg %+v: %d bytes left over", cfg, d.Remaining())
		}
	}
}

func TestDecoderStickyError(t *testing.T) {
	d := NewDecoder([]byte{1, 2, 3}, DefaultConfig())
	if v := d.Uint32(); v != 0 {
		t.Errorf("short read returned %d", v)
	}
	if v := d.Uint8(); v != 0 {
		t.Errorf("read after failure returned %d", v)
	}
	if !errors.Is(d.Err(), ErrShortBuffer) {
		t.Errorf("expected ErrShortBuffer, got %v", d.Err())
	}
}

func TestPutChecksum(t *testing.T) {
	e := NewEncoder(DefaultConfig())
	e.PutBytes([]byte("prefix"))
	start := e.Len()
	e.PutBytes([]byte("Four score and seven years ago"))
	e.PutChecksum(start)

	d := NewDecoder(e.Bytes(), DefaultConfig())
	d.Skip(start + 30)
	if got := d.Uint32(); got != 0x17770551 {
		t.Errorf("checksum = 0x%08x", got)
	}
}

func TestUndefined(t *testing.T) {
	tests := []struct {
		size int
		want uint64
	}{
		{2, 0xFFFF},
		{4, 0xFFFFFFFF},
		{8, 0xFFFFFFFFFFFFFFFF},
	}
	for _, tt := range tests {
		if got := Undefined(tt.size); got != tt.want {
			t.Errorf("Undefined(%d) = %#x, want %#x", tt.size, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{OffsetSize: 8, LengthSize: 8}).Validate(); err != nil {
		t.Errorf("8/8 rejected: %v", err)
	}
	if err := (Config{OffsetSize: 3, LengthSize: 8}).Validate(); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}
