package proxy

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/hdf5"
	"github.com/robert-malhotra/go-hdfproxy/internal/etp"
)

// Datatype is a storage-independent element type.
type Datatype int

const (
	Unknown Datatype = iota
	// Int8 also stores characters.
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	FixedString
	VarString
)

var datatypeNames = [...]string{
	Unknown:     "unknown",
	Int8:        "int8",
	Int16:       "int16",
	Int32:       "int32",
	Int64:       "int64",
	Uint8:       "uint8",
	Uint16:      "uint16",
	Uint32:      "uint32",
	Uint64:      "uint64",
	Float32:     "float32",
	Float64:     "float64",
	FixedString: "fixed string",
	VarString:   "variable string",
}

func (d Datatype) String() string {
	if d >= 0 && int(d) < len(datatypeNames) {
		return datatypeNames[d]
	}
	return fmt.Sprintf("datatype(%d)", int(d))
}

// Size returns the element size in bytes, or 0 for strings.
func (d Datatype) Size() int {
	switch d {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// IsNumeric reports whether d can be stored in an array.
func (d Datatype) IsNumeric() bool { return d.Size() > 0 }

// IsFloat reports whether d is a floating-point type.
func (d Datatype) IsFloat() bool { return d == Float32 || d == Float64 }

// NativeType returns the container type of d. FixedString maps to a
// string type whose size is decided when a value is written.
func NativeType(d Datatype) (hdf5.Type, error) {
	switch d {
	case Int8:
		return hdf5.Int8, nil
	case Int16:
		return hdf5.Int16, nil
	case Int32:
		return hdf5.Int32, nil
	case Int64:
		return hdf5.Int64, nil
	case Uint8:
		return hdf5.Uint8, nil
	case Uint16:
		return hdf5.Uint16, nil
	case Uint32:
		return hdf5.Uint32, nil
	case Uint64:
		return hdf5.Uint64, nil
	case Float32:
		return hdf5.Float32, nil
	case Float64:
		return hdf5.Float64, nil
	case FixedString:
		return hdf5.FixedString(0), nil
	case VarString:
		return hdf5.VarString, nil
	}
	return hdf5.Type{}, fmt.Errorf("%w: %s", ErrUnsupportedType, d)
}

// LogicalType returns the logical type of a container type.
func LogicalType(t hdf5.Type) (Datatype, error) {
	switch t.Class {
	case hdf5.ClassInteger:
		switch {
		case t.Size == 1 && t.Signed:
			return Int8, nil
		case t.Size == 2 && t.Signed:
			return Int16, nil
		case t.Size == 4 && t.Signed:
			return Int32, nil
		case t.Size == 8 && t.Signed:
			return Int64, nil
		case t.Size == 1:
			return Uint8, nil
		case t.Size == 2:
			return Uint16, nil
		case t.Size == 4:
			return Uint32, nil
		case t.Size == 8:
			return Uint64, nil
		}
	case hdf5.ClassFloat:
		switch t.Size {
		case 4:
			return Float32, nil
		case 8:
			return Float64, nil
		}
	case hdf5.ClassString:
		if t.Variable {
			return VarString, nil
		}
		return FixedString, nil
	}
	return Unknown, fmt.Errorf("%w: container type %s", ErrUnsupportedType, t)
}

var arrayTypes = map[Datatype]etp.ArrayType{
	Int8:    etp.ArrayOfInt8,
	Int16:   etp.ArrayOfInt16,
	Int32:   etp.ArrayOfInt32,
	Int64:   etp.ArrayOfInt64,
	Uint8:   etp.ArrayOfUInt8,
	Uint16:  etp.ArrayOfUInt16,
	Uint32:  etp.ArrayOfUInt32,
	Uint64:  etp.ArrayOfUInt64,
	Float32: etp.ArrayOfFloat32,
	Float64: etp.ArrayOfDouble,
}

// ArrayTypeOf returns the wire array type of a numeric datatype.
func ArrayTypeOf(d Datatype) (etp.ArrayType, error) {
	if t, ok := arrayTypes[d]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("%w: %s has no array type", ErrUnsupportedType, d)
}

// DatatypeOfArrayType returns the datatype of a wire array type.
func DatatypeOfArrayType(t etp.ArrayType) (Datatype, error) {
	for d, at := range arrayTypes {
		if at == t {
			return d, nil
		}
	}
	return Unknown, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

// Element is the set of Go types arrays can be built from.
type Element interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// DatatypeOf returns the datatype of T.
func DatatypeOf[T Element]() Datatype {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	}
	return Unknown
}

// TypeClass is the storage class of a datatype.
type TypeClass int

const (
	ClassOther TypeClass = iota
	ClassInteger
	ClassFloat
	ClassString
)

func (c TypeClass) String() string {
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

// Class returns the storage class of d.
func (d Datatype) Class() TypeClass {
	switch {
	case d.IsFloat():
		return ClassFloat
	case d.IsNumeric():
		return ClassInteger
	case d == FixedString || d == VarString:
		return ClassString
	}
	return ClassOther
}
