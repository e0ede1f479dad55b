package message

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

// Space allocation times.
const (
	AllocEarly       uint8 = 1
	AllocLate        uint8 = 2
	AllocIncremental uint8 = 3
)

// Fill value write times.
const (
	FillOnAlloc uint8 = 0
	FillNever   uint8 = 1
	FillIfSet   uint8 = 2
)

// FillValue is a version 3 fill value message (type 0x0005).
type FillValue struct {
	AllocTime uint8
	WriteTime uint8
	Defined   bool
	Value     []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

// Encode writes a version 3 fill value message.
func (m *FillValue) Encode(e *binary.Encoder) {
	e.PutUint8(3)
	flags := m.AllocTime&0x03 | (m.WriteTime&0x03)<<2
	if m.Defined {
		flags |= 0x20
	}
	e.PutUint8(flags)
	if m.Defined {
		e.PutUint32(uint32(len(m.Value)))
		e.PutBytes(m.Value)
	}
}

func decodeFillValue(d *binary.Decoder) *FillValue {
	version := d.Uint8()
	m := &FillValue{}
	switch version {
	case 1, 2:
		m.AllocTime = d.Uint8()
		m.WriteTime = d.Uint8()
		m.Defined = d.Uint8() != 0
		if m.Defined && (version == 1 || d.Remaining() >= 4) {
			m.Value = append([]byte(nil), d.Bytes(int(d.Uint32()))...)
		}
	case 3:
		flags := d.Uint8()
		m.AllocTime = flags & 0x03
		m.WriteTime = flags >> 2 & 0x03
		m.Defined = flags&0x20 != 0
		if m.Defined {
			m.Value = append([]byte(nil), d.Bytes(int(d.Uint32()))...)
		}
	default:
		d.Fail(fmt.Errorf("unsupported fill value version %d", version))
	}
	return m
}
