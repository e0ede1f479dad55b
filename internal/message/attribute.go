package message

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

// Attribute is an attribute message (type 0x000C): a small named value
// stored inside the object header it annotates.
type Attribute struct {
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// Encode writes a version 3 attribute message.
func (m *Attribute) Encode(e *binary.Encoder) {
	cfg := e.Config()
	dt := Encode(m.Datatype, cfg)
	ds := Encode(m.Dataspace, cfg)

	e.PutUint8(3)
	e.PutUint8(0)
	e.PutUint16(uint16(len(m.Name) + 1))
	e.PutUint16(uint16(len(dt)))
	e.PutUint16(uint16(len(ds)))
	e.PutUint8(CharsetUTF8)
	e.PutBytes([]byte(m.Name))
	e.PutUint8(0)
	e.PutBytes(dt)
	e.PutBytes(ds)
	e.PutBytes(m.Data)
}

func decodeAttribute(d *binary.Decoder) *Attribute {
	m := &Attribute{}
	version := d.Uint8()
	if version < 1 || version > 3 {
		d.Fail(fmt.Errorf("unsupported attribute version %d", version))
		return m
	}
	flags := d.Uint8()
	if flags&0x03 != 0 {
		d.Fail(fmt.Errorf("shared attribute datatypes are not supported"))
		return m
	}
	nameSize := int(d.Uint16())
	dtSize := int(d.Uint16())
	dsSize := int(d.Uint16())
	if version == 3 {
		d.Skip(1)
	}

	// Version 1 pads each field to a multiple of eight bytes.
	padded := func(n int) int {
		if version == 1 {
			return pad8(n)
		}
		return n
	}

	m.Name = cString(d.Bytes(padded(nameSize)))

	dtBytes := d.Bytes(padded(dtSize))
	if dtBytes != nil {
		sub := binary.NewDecoder(dtBytes[:dtSize], d.Config())
		m.Datatype = DecodeDatatype(sub)
		if err := sub.Err(); err != nil {
			d.Fail(fmt.Errorf("attribute %q datatype: %w", m.Name, err))
		}
	}
	dsBytes := d.Bytes(padded(dsSize))
	if dsBytes != nil {
		sub := binary.NewDecoder(dsBytes[:dsSize], d.Config())
		m.Dataspace = decodeDataspace(sub)
		if err := sub.Err(); err != nil {
			d.Fail(fmt.Errorf("attribute %q dataspace: %w", m.Name, err))
		}
	}
	if d.Err() != nil {
		return m
	}

	size := int(m.Dataspace.NumElements()) * int(m.Datatype.Size)
	if size > d.Remaining() {
		size = d.Remaining()
	}
	m.Data = append([]byte(nil), d.Bytes(size)...)
	return m
}
