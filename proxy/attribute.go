package proxy

import (
	"context"
	"fmt"
)

// Attribute targets are a group name, "group/dataset", or an absolute path.

func writeAttributes[V any](ctx context.Context, p *Proxy, target string, names []string, values []V, conv func(V) any) error {
	if err := p.ready(); err != nil {
		return err
	}
	if len(names) != len(values) {
		return fmt.Errorf("%w: %d attribute names for %d values", ErrInvalidName, len(names), len(values))
	}
	path, err := resolve(target)
	if err != nil {
		return err
	}
	for i, name := range names {
		if name == "" {
			return fmt.Errorf("%w: empty attribute name", ErrInvalidName)
		}
		if err := p.session.WriteAttribute(ctx, path, name, conv(values[i])); err != nil {
			return err
		}
	}
	return nil
}

// WriteStringAttributes sets one string attribute per name.
func (p *Proxy) WriteStringAttributes(ctx context.Context, target string, names, values []string) error {
	return writeAttributes(ctx, p, target, names, values, func(v string) any { return v })
}

// WriteFloat64Attributes sets one double attribute per name.
func (p *Proxy) WriteFloat64Attributes(ctx context.Context, target string, names []string, values []float64) error {
	return writeAttributes(ctx, p, target, names, values, func(v float64) any { return v })
}

// WriteIntAttributes sets one integer attribute per name.
func (p *Proxy) WriteIntAttributes(ctx context.Context, target string, names []string, values []int) error {
	return writeAttributes(ctx, p, target, names, values, func(v int) any { return int64(v) })
}

// WriteStringArrayAttribute sets one attribute holding an array of
// variable-length strings.
func (p *Proxy) WriteStringArrayAttribute(ctx context.Context, target, name string, values []string) error {
	if values == nil {
		values = []string{}
	}
	return writeAttributes(ctx, p, target, []string{name}, [][]string{values}, func(v []string) any { return v })
}

func (p *Proxy) readAttribute(ctx context.Context, target, name string) (any, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	path, err := resolve(target)
	if err != nil {
		return nil, err
	}
	return p.session.ReadAttribute(ctx, path, name)
}

// ReadStringAttribute reads a string attribute.
func (p *Proxy) ReadStringAttribute(ctx context.Context, target, name string) (string, error) {
	v, err := p.readAttribute(ctx, target, name)
	if err != nil {
		return "", err
	}
	switch v := v.(type) {
	case string:
		return v, nil
	case []string:
		if len(v) == 1 {
			return v[0], nil
		}
	}
	return "", attrMismatch(target, name, v, "string")
}

// ReadStringArrayAttribute reads a string array attribute. A scalar string
// is returned as a one element array.
func (p *Proxy) ReadStringArrayAttribute(ctx context.Context, target, name string) ([]string, error) {
	v, err := p.readAttribute(ctx, target, name)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	}
	return nil, attrMismatch(target, name, v, "string array")
}

// ReadFloat64Attribute reads a numeric attribute as a double.
func (p *Proxy) ReadFloat64Attribute(ctx context.Context, target, name string) (float64, error) {
	v, err := p.readAttribute(ctx, target, name)
	if err != nil {
		return 0, err
	}
	switch v := v.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case []float64:
		if len(v) == 1 {
			return v[0], nil
		}
	case []int64:
		if len(v) == 1 {
			return float64(v[0]), nil
		}
	}
	return 0, attrMismatch(target, name, v, "double")
}

// ReadInt64Attribute reads a numeric attribute as a 64-bit integer.
// Doubles are truncated toward zero.
func (p *Proxy) ReadInt64Attribute(ctx context.Context, target, name string) (int64, error) {
	v, err := p.readAttribute(ctx, target, name)
	if err != nil {
		return 0, err
	}
	switch v := v.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case []int64:
		if len(v) == 1 {
			return v[0], nil
		}
	case []float64:
		if len(v) == 1 {
			return int64(v[0]), nil
		}
	}
	return 0, attrMismatch(target, name, v, "integer")
}

// ReadIntAttribute reads a numeric attribute as an int.
func (p *Proxy) ReadIntAttribute(ctx context.Context, target, name string) (int, error) {
	v, err := p.ReadInt64Attribute(ctx, target, name)
	return int(v), err
}

func attrMismatch(target, name string, v any, want string) error {
	return fmt.Errorf("%w: attribute %s of %s holds %T, not a %s", ErrTypeMismatch, name, target, v, want)
}
