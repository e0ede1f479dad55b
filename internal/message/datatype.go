package message

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

// DatatypeClass represents the class of an HDF5 datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

var classNames = [...]string{
	"fixed-point", "floating-point", "time", "string", "bitfield", "opaque",
	"compound", "reference", "enum", "variable-length", "array",
}

func (c DatatypeClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// String padding and character set codes.
const (
	PadNullTerm uint8 = 0
	PadNullPad  uint8 = 1
	PadSpace    uint8 = 2

	CharsetASCII uint8 = 0
	CharsetUTF8  uint8 = 1
)

// Datatype is a datatype message (type 0x0003). Bits holds the three
// class-specific bit field bytes; Properties holds the class-specific
// property bytes verbatim, except for variable-length types whose base
// type is decoded into Base.
type Datatype struct {
	Class      DatatypeClass
	Version    uint8
	Bits       [3]byte
	Size       uint32
	Properties []byte
	Base       *Datatype
}

func (m *Datatype) Type() Type { return TypeDatatype }

// NewFixedPoint returns a little-endian integer type of size bytes.
func NewFixedPoint(size int, signed bool) *Datatype {
	dt := &Datatype{Class: ClassFixedPoint, Version: 1, Size: uint32(size)}
	if signed {
		dt.Bits[0] = 0x08
	}
	dt.Properties = []byte{0, 0, byte(size * 8), byte(size * 8 >> 8)}
	return dt
}

// NewFloat returns a little-endian IEEE 754 type of 4 or 8 bytes.
func NewFloat(size int) *Datatype {
	dt := &Datatype{Class: ClassFloatPoint, Version: 1, Size: uint32(size)}
	dt.Bits[0] = 0x20 // implied leading mantissa bit
	if size == 4 {
		dt.Bits[1] = 31
		dt.Properties = []byte{0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0}
	} else {
		dt.Bits[1] = 63
		dt.Properties = []byte{0, 0, 64, 0, 52, 11, 0, 52, 0xFF, 0x03, 0, 0}
	}
	return dt
}

// NewFixedString returns a null-terminated ASCII string type of size bytes.
func NewFixedString(size int) *Datatype {
	if size < 1 {
		size = 1
	}
	return &Datatype{
		Class:   ClassString,
		Version: 1,
		Size:    uint32(size),
		Bits:    [3]byte{PadNullTerm | CharsetASCII<<4},
	}
}

// NewVarString returns a variable-length UTF-8 string type. Elements are
// stored as a length, a global heap collection address and an object index.
func NewVarString(cfg binary.Config) *Datatype {
	return &Datatype{
		Class:   ClassVarLen,
		Version: 1,
		Size:    uint32(4 + cfg.OffsetSize + 4),
		Bits:    [3]byte{0x01 | PadNullTerm<<4, CharsetUTF8},
		Base:    NewFixedPoint(1, false),
	}
}

// Signed reports whether a fixed-point type is signed.
func (m *Datatype) Signed() bool {
	return m.Class == ClassFixedPoint && m.Bits[0]&0x08 != 0
}

// BigEndian reports whether a numeric type is stored big-endian.
func (m *Datatype) BigEndian() bool {
	return (m.Class == ClassFixedPoint || m.Class == ClassFloatPoint) && m.Bits[0]&0x01 != 0
}

// IsVarString reports whether the type is a variable-length string.
func (m *Datatype) IsVarString() bool {
	return m.Class == ClassVarLen && m.Bits[0]&0x0F == 1
}

// IsString reports whether the type holds fixed or variable-length strings.
func (m *Datatype) IsString() bool {
	return m.Class == ClassString || m.IsVarString()
}

// Padding returns the string padding code of a string type.
func (m *Datatype) Padding() uint8 {
	if m.Class == ClassVarLen {
		return m.Bits[0] >> 4 & 0x0F
	}
	return m.Bits[0] & 0x0F
}

// Encode writes the datatype message.
func (m *Datatype) Encode(e *binary.Encoder) {
	version := m.Version
	if version == 0 {
		version = 1
	}
	e.PutUint8(uint8(m.Class)&0x0F | version<<4)
	e.PutBytes(m.Bits[:])
	e.PutUint32(m.Size)
	if m.Class == ClassVarLen && m.Base != nil {
		m.Base.Encode(e)
		return
	}
	e.PutBytes(m.Properties)
}

// propertySize is the fixed property length of the simple classes.
func propertySize(c DatatypeClass) (int, bool) {
	switch c {
	case ClassFixedPoint, ClassBitfield:
		return 4, true
	case ClassFloatPoint:
		return 12, true
	case ClassTime:
		return 2, true
	case ClassString, ClassReference:
		return 0, true
	}
	return 0, false
}

// DecodeDatatype reads a datatype from d. It is exported because attribute
// messages embed datatypes.
func DecodeDatatype(d *binary.Decoder) *Datatype {
	head := d.Uint8()
	m := &Datatype{Class: DatatypeClass(head & 0x0F), Version: head >> 4}
	copy(m.Bits[:], d.Bytes(3))
	m.Size = d.Uint32()

	if n, ok := propertySize(m.Class); ok {
		m.Properties = append([]byte(nil), d.Bytes(n)...)
		return m
	}
	if m.Class == ClassVarLen {
		m.Base = DecodeDatatype(d)
		return m
	}
	// Compound, enum, array and opaque properties are kept opaque.
	m.Properties = append([]byte(nil), d.Bytes(d.Remaining())...)
	return m
}

// String renders the type for diagnostics.
func (m *Datatype) String() string {
	switch {
	case m.Class == ClassFixedPoint && m.Signed():
		return fmt.Sprintf("int%d", m.Size*8)
	case m.Class == ClassFixedPoint:
		return fmt.Sprintf("uint%d", m.Size*8)
	case m.Class == ClassFloatPoint:
		return fmt.Sprintf("float%d", m.Size*8)
	case m.Class == ClassString:
		return fmt.Sprintf("string[%d]", m.Size)
	case m.IsVarString():
		return "vlen string"
	}
	return fmt.Sprintf("%s(%d)", m.Class, m.Size)
}
