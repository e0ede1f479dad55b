package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
	"github.com/robert-malhotra/go-hdfproxy/internal/message"
)

// Class is the storage class of an element type.
type Class int

const (
	ClassOther Class = iota
	ClassInteger
	ClassFloat
	ClassString
)

func (c Class) String() string {
	switch c {
	case ClassInteger:
		return "integer"
	case ClassFloat:
		return "float"
	case ClassString:
		return "string"
	}
	return "other"
}

// Type describes dataset and attribute elements. Variable marks
// variable-length strings, whose Size is the size of one heap reference.
type Type struct {
	Class    Class
	Size     int
	Signed   bool
	Variable bool
}

// Predefined element types.
var (
	Int8      = Type{Class: ClassInteger, Size: 1, Signed: true}
	Int16     = Type{Class: ClassInteger, Size: 2, Signed: true}
	Int32     = Type{Class: ClassInteger, Size: 4, Signed: true}
	Int64     = Type{Class: ClassInteger, Size: 8, Signed: true}
	Uint8     = Type{Class: ClassInteger, Size: 1}
	Uint16    = Type{Class: ClassInteger, Size: 2}
	Uint32    = Type{Class: ClassInteger, Size: 4}
	Uint64    = Type{Class: ClassInteger, Size: 8}
	Float32   = Type{Class: ClassFloat, Size: 4}
	Float64   = Type{Class: ClassFloat, Size: 8}
	VarString = Type{Class: ClassString, Variable: true}
)

// FixedString returns a null-terminated string type of size bytes.
func FixedString(size int) Type {
	return Type{Class: ClassString, Size: size}
}

func (t Type) String() string {
	switch {
	case t.Class == ClassInteger && t.Signed:
		return fmt.Sprintf("int%d", t.Size*8)
	case t.Class == ClassInteger:
		return fmt.Sprintf("uint%d", t.Size*8)
	case t.Class == ClassFloat:
		return fmt.Sprintf("float%d", t.Size*8)
	case t.Class == ClassString && t.Variable:
		return "vlen string"
	case t.Class == ClassString:
		return fmt.Sprintf("string[%d]", t.Size)
	}
	return fmt.Sprintf("other[%d]", t.Size)
}

// Equal reports whether two types describe the same elements.
func (t Type) Equal(o Type) bool {
	if t.Variable || o.Variable {
		return t.Variable == o.Variable && t.Class == o.Class
	}
	return t == o
}

func typeOf(dt *message.Datatype) Type {
	switch {
	case dt == nil:
		return Type{}
	case dt.Class == message.ClassFixedPoint:
		return Type{Class: ClassInteger, Size: int(dt.Size), Signed: dt.Signed()}
	case dt.Class == message.ClassFloatPoint:
		return Type{Class: ClassFloat, Size: int(dt.Size)}
	case dt.Class == message.ClassString:
		return Type{Class: ClassString, Size: int(dt.Size)}
	case dt.IsVarString():
		return Type{Class: ClassString, Size: int(dt.Size), Variable: true}
	}
	return Type{Class: ClassOther, Size: int(dt.Size)}
}

func (t Type) datatype(cfg binary.Config) (*message.Datatype, error) {
	switch t.Class {
	case ClassInteger:
		switch t.Size {
		case 1, 2, 4, 8:
			return message.NewFixedPoint(t.Size, t.Signed), nil
		}
	case ClassFloat:
		if t.Size == 4 || t.Size == 8 {
			return message.NewFloat(t.Size), nil
		}
	case ClassString:
		if t.Variable {
			return message.NewVarString(cfg), nil
		}
		if t.Size > 0 {
			return message.NewFixedString(t.Size), nil
		}
	}
	return nil, fmt.Errorf("%w: element type %s", ErrUnsupported, t)
}
