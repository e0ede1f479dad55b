// Package message encodes and decodes HDF5 object header messages.
//
// Header messages carry an object's metadata: its dataspace, datatype,
// storage layout, filters, links and attributes. Each message type has a
// Go struct implementing Message; the ones the writer emits also implement
// Encoder.
package message

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

// Type represents an HDF5 header message type.
type Type uint16

// Header message types
const (
	TypeNIL                      Type = 0x0000
	TypeDataspace                Type = 0x0001
	TypeLinkInfo                 Type = 0x0002
	TypeDatatype                 Type = 0x0003
	TypeFillValueOld             Type = 0x0004
	TypeFillValue                Type = 0x0005
	TypeLink                     Type = 0x0006
	TypeExternalDataFiles        Type = 0x0007
	TypeDataLayout               Type = 0x0008
	TypeBogus                    Type = 0x0009
	TypeGroupInfo                Type = 0x000A
	TypeFilterPipeline           Type = 0x000B
	TypeAttribute                Type = 0x000C
	TypeObjectComment            Type = 0x000D
	TypeObjectModTime            Type = 0x000E
	TypeSharedMessageTable       Type = 0x000F
	TypeObjectHeaderContinuation Type = 0x0010
	TypeSymbolTable              Type = 0x0011
	TypeObjectModTimeOld         Type = 0x0012
	TypeBTreeKValues             Type = 0x0013
	TypeDriverInfo               Type = 0x0014
	TypeAttributeInfo            Type = 0x0015
	TypeObjectRefCount           Type = 0x0016
)

// Message is implemented by all header messages.
type Message interface {
	Type() Type
}

// Encoder is implemented by messages the writer can serialize.
type Encoder interface {
	Message
	Encode(e *binary.Encoder)
}

// Encode serializes m with the given field widths.
func Encode(m Encoder, cfg binary.Config) []byte {
	e := binary.NewEncoder(cfg)
	m.Encode(e)
	return e.Bytes()
}

// Decode parses the body of a header message of type typ.
func Decode(typ Type, data []byte, cfg binary.Config) (Message, error) {
	d := binary.NewDecoder(data, cfg)
	var m Message
	switch typ {
	case TypeDataspace:
		m = decodeDataspace(d)
	case TypeDatatype:
		m = DecodeDatatype(d)
	case TypeFillValue:
		m = decodeFillValue(d)
	case TypeDataLayout:
		m = decodeDataLayout(d)
	case TypeFilterPipeline:
		m = decodeFilterPipeline(d)
	case TypeAttribute:
		m = decodeAttribute(d)
	case TypeLink:
		m = decodeLink(d)
	case TypeLinkInfo:
		m = decodeLinkInfo(d)
	case TypeGroupInfo:
		m = decodeGroupInfo(d)
	case TypeObjectHeaderContinuation:
		m = &Continuation{Offset: d.Offset(), Length: d.Length()}
	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		return &Unknown{MsgType: typ, Raw: raw}, nil
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("message type 0x%04x: %w", uint16(typ), err)
	}
	return m, nil
}

// Unknown preserves a message this package does not interpret so that a
// rewritten header keeps it byte for byte.
type Unknown struct {
	MsgType Type
	Raw     []byte
}

func (m *Unknown) Type() Type                 { return m.MsgType }
func (m *Unknown) Encode(e *binary.Encoder) { e.PutBytes(m.Raw) }

// Continuation points at a further block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }
