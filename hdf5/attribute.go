package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/alloc"
	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
	"github.com/robert-malhotra/go-hdfproxy/internal/dtype"
	"github.com/robert-malhotra/go-hdfproxy/internal/heap"
	"github.com/robert-malhotra/go-hdfproxy/internal/message"
)

// Attribute is a decoded attribute value attached to a group or dataset.
type Attribute struct {
	Name string
	Type Type
	// Dims is nil for scalar attributes.
	Dims []uint64

	dt      *message.Datatype
	data    []byte
	strings []string
}

// IsScalar returns true if the attribute is a scalar value.
func (a *Attribute) IsScalar() bool { return a.Dims == nil }

// NumElements returns the total number of elements.
func (a *Attribute) NumElements() int {
	n := 1
	for _, d := range a.Dims {
		n *= int(d)
	}
	return n
}

// Strings returns the values of a string attribute.
func (a *Attribute) Strings() ([]string, error) {
	if a.Type.Class != ClassString {
		return nil, fmt.Errorf("%w: %s attribute %q read as string", ErrTypeMismatch, a.Type, a.Name)
	}
	if a.Type.Variable {
		return a.strings, nil
	}
	return dtype.FixedStrings(a.dt, a.data, a.NumElements())
}

// Float64s returns the values of a numeric attribute converted to float64.
func (a *Attribute) Float64s() ([]float64, error) {
	if !dtype.IsNumeric(a.dt) {
		return nil, fmt.Errorf("%w: %s attribute %q read as float64", ErrTypeMismatch, a.Type, a.Name)
	}
	return dtype.Float64s(a.dt, a.data, a.NumElements())
}

// Int64s returns the values of a numeric attribute converted to int64.
// Floating-point values are truncated toward zero.
func (a *Attribute) Int64s() ([]int64, error) {
	if !dtype.IsNumeric(a.dt) {
		return nil, fmt.Errorf("%w: %s attribute %q read as int64", ErrTypeMismatch, a.Type, a.Name)
	}
	return dtype.Int64s(a.dt, a.data, a.NumElements())
}

// Value returns the attribute as a Go value: a string, float64 or int64 for
// scalars and the matching slice otherwise. Other classes yield nil.
func (a *Attribute) Value() any {
	switch a.Type.Class {
	case ClassString:
		return scalarOrSlice(a, a.Strings)
	case ClassFloat:
		return scalarOrSlice(a, a.Float64s)
	case ClassInteger:
		return scalarOrSlice(a, a.Int64s)
	}
	return nil
}

func scalarOrSlice[T any](a *Attribute, read func() ([]T, error)) any {
	vals, err := read()
	if err != nil {
		return nil
	}
	if a.IsScalar() && len(vals) == 1 {
		return vals[0]
	}
	return vals
}

// Attributes returns the attributes of the object at path.
func (f *File) Attributes(path string) ([]*Attribute, error) {
	if err := f.acquire(false); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	n, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	var out []*Attribute
	for _, m := range n.header.Attributes() {
		a, err := f.decodeAttribute(m)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Attribute returns one attribute of the object at path.
func (f *File) Attribute(path, name string) (*Attribute, error) {
	if err := f.acquire(false); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	n, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	for _, m := range n.header.Attributes() {
		if m.Name == name {
			return f.decodeAttribute(m)
		}
	}
	return nil, fmt.Errorf("%w: attribute %s", ErrNotFound, JoinAttrPath(n.path, name))
}

// SetAttribute creates or replaces an attribute of the object at path. The
// value can be a string, []string, float64, []float64, int64, []int64, int
// or []int. A string is stored as a fixed-length string; string slices use
// variable-length strings.
func (f *File) SetAttribute(path, name string, value any) error {
	if err := f.acquire(true); err != nil {
		return err
	}
	defer f.mu.Unlock()

	n, err := f.resolve(path)
	if err != nil {
		return err
	}
	am, err := f.attributeMessage(name, value)
	if err != nil {
		return err
	}
	msgs := make([]message.Message, 0, len(n.header.Messages)+1)
	for _, m := range n.header.Messages {
		if old, ok := m.(*message.Attribute); ok && old.Name == name {
			continue
		}
		msgs = append(msgs, m)
	}
	msgs = append(msgs, am)
	return f.store(n, msgs)
}

// DeleteAttribute removes an attribute of the object at path.
func (f *File) DeleteAttribute(path, name string) error {
	if err := f.acquire(true); err != nil {
		return err
	}
	defer f.mu.Unlock()

	n, err := f.resolve(path)
	if err != nil {
		return err
	}
	msgs := make([]message.Message, 0, len(n.header.Messages))
	found := false
	for _, m := range n.header.Messages {
		if old, ok := m.(*message.Attribute); ok && old.Name == name {
			found = true
			continue
		}
		msgs = append(msgs, m)
	}
	if !found {
		return fmt.Errorf("%w: attribute %s", ErrNotFound, JoinAttrPath(n.path, name))
	}
	return f.store(n, msgs)
}

// Attributes returns the object's attributes.
func (h handle) Attributes() ([]*Attribute, error) { return h.file.Attributes(h.path) }

// Attribute returns one of the object's attributes.
func (h handle) Attribute(name string) (*Attribute, error) { return h.file.Attribute(h.path, name) }

// SetAttribute creates or replaces one of the object's attributes.
func (h handle) SetAttribute(name string, value any) error {
	return h.file.SetAttribute(h.path, name, value)
}

func (f *File) decodeAttribute(m *message.Attribute) (*Attribute, error) {
	a := &Attribute{Name: m.Name, Type: typeOf(m.Datatype), dt: m.Datatype, data: m.Data}
	if m.Dataspace != nil && m.Dataspace.Kind == message.SpaceSimple {
		a.Dims = append([]uint64{}, m.Dataspace.Dims...)
	}
	if m.Datatype == nil {
		return nil, fmt.Errorf("%w: attribute %q has no datatype", ErrUnsupported, m.Name)
	}
	if a.Type.Variable {
		strs, err := f.readVarStrings(m.Data, a.NumElements())
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
		}
		a.strings = strs
	}
	return a, nil
}

// readVarStrings resolves n variable-length string references.
func (f *File) readVarStrings(data []byte, n int) ([]string, error) {
	size := heap.VarLenSize(f.cfg)
	if len(data) < n*size {
		return nil, fmt.Errorf("%w: %d bytes for %d string references", ErrUnsupported, len(data), n)
	}
	collections := make(map[uint64]*heap.Collection)
	out := make([]string, n)
	for i := range out {
		length, id := heap.DecodeVarLen(binary.NewDecoder(data[i*size:(i+1)*size], f.cfg))
		if length == 0 {
			continue
		}
		c, ok := collections[id.Collection]
		if !ok {
			var err error
			if c, err = heap.Read(f.file, id.Collection, f.cfg); err != nil {
				return nil, err
			}
			collections[id.Collection] = c
		}
		obj, err := c.Object(id.Index)
		if err != nil {
			return nil, err
		}
		out[i] = string(obj[:min(int(length), len(obj))])
	}
	return out, nil
}

// attributeMessage encodes value as an attribute, writing a global heap
// collection for string slices.
func (f *File) attributeMessage(name string, value any) (*message.Attribute, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty attribute name", ErrInvalidPath)
	}
	am := &message.Attribute{Name: name, Dataspace: message.NewScalarDataspace()}
	array := func(n int) { am.Dataspace = message.NewSimpleDataspace([]uint64{uint64(n)}) }

	switch v := value.(type) {
	case string:
		am.Datatype = message.NewFixedString(len(v) + 1)
		am.Data = dtype.EncodeFixedString(am.Datatype, v)
	case []string:
		am.Datatype = message.NewVarString(f.cfg)
		array(len(v))
		data, err := f.writeVarStrings(v)
		if err != nil {
			return nil, err
		}
		am.Data = data
	case float64:
		am.Datatype = message.NewFloat(8)
		am.Data = dtype.EncodeFloat64s([]float64{v})
	case []float64:
		am.Datatype = message.NewFloat(8)
		array(len(v))
		am.Data = dtype.EncodeFloat64s(v)
	case int64:
		am.Datatype = message.NewFixedPoint(8, true)
		am.Data = dtype.EncodeInt64s([]int64{v})
	case int:
		am.Datatype = message.NewFixedPoint(8, true)
		am.Data = dtype.EncodeInt64s([]int64{int64(v)})
	case []int64:
		am.Datatype = message.NewFixedPoint(8, true)
		array(len(v))
		am.Data = dtype.EncodeInt64s(v)
	case []int:
		vals := make([]int64, len(v))
		for i, x := range v {
			vals[i] = int64(x)
		}
		am.Datatype = message.NewFixedPoint(8, true)
		array(len(v))
		am.Data = dtype.EncodeInt64s(vals)
	default:
		return nil, fmt.Errorf("%w: attribute value of type %T", ErrUnsupported, value)
	}
	return am, nil
}

// writeVarStrings stores strs in a new global heap collection and returns
// the encoded references.
func (f *File) writeVarStrings(strs []string) ([]byte, error) {
	e := binary.NewEncoder(f.cfg)
	if len(strs) == 0 {
		return e.Bytes(), nil
	}
	b := heap.NewBuilder(f.cfg)
	ids := make([]uint32, len(strs))
	for i, s := range strs {
		ids[i] = b.Add([]byte(s))
	}
	addr := f.space.Alloc(uint64(b.Size()), alloc.KindHeap)
	if _, err := f.file.WriteAt(b.Encode(), int64(addr)); err != nil {
		return nil, fmt.Errorf("writing global heap: %w", err)
	}
	for i, s := range strs {
		heap.EncodeVarLen(e, uint32(len(s)), heap.ID{Collection: addr, Index: ids[i]})
	}
	return e.Bytes(), nil
}
