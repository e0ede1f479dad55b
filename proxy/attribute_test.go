package proxy

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestAttributes(t *testing.T) {
	ctx := context.Background()
	p, _ := openTemp(t)
	if err := WriteArray(ctx, p, "grid", "pressure", sequence(4), []uint64{4}); err != nil {
		t.Fatalf("WriteArray: %v", err)
	}

	// Group-level attributes create the group.
	if err := p.WriteStringAttributes(ctx, "props", []string{"uom", "kind"}, []string{"bar", "pressure"}); err != nil {
		t.Fatalf("WriteStringAttributes: %v", err)
	}
	if ok, _ := p.Exists(ctx, "props"); !ok {
		t.Error("attribute write did not create the group")
	}
	if err := p.WriteFloat64Attributes(ctx, "grid/pressure", []string{"min", "max"}, []float64{-1.5, 3.25}); err != nil {
		t.Fatalf("WriteFloat64Attributes: %v", err)
	}
	if err := p.WriteIntAttributes(ctx, "/RESQML/grid/pressure", []string{"count"}, []int{4}); err != nil {
		t.Fatalf("WriteIntAttributes: %v", err)
	}
	if err := p.WriteStringArrayAttribute(ctx, "grid", "facets", []string{"top", "", "bottom layer"}); err != nil {
		t.Fatalf("WriteStringArrayAttribute: %v", err)
	}

	if s, err := p.ReadStringAttribute(ctx, "props", "kind"); err != nil || s != "pressure" {
		t.Errorf("ReadStringAttribute = %q, %v", s, err)
	}
	if v, err := p.ReadFloat64Attribute(ctx, "grid/pressure", "max"); err != nil || v != 3.25 {
		t.Errorf("ReadFloat64Attribute = %v, %v", v, err)
	}
	if v, err := p.ReadIntAttribute(ctx, "grid/pressure", "count"); err != nil || v != 4 {
		t.Errorf("ReadIntAttribute = %v, %v", v, err)
	}
	if v, err := p.ReadInt64Attribute(ctx, "grid/pressure", "min"); err != nil || v != -1 {
		t.Errorf("ReadInt64Attribute of a double = %v, %v", v, err)
	}
	if v, err := p.ReadFloat64Attribute(ctx, "grid/pressure", "count"); err != nil || v != 4 {
		t.Errorf("ReadFloat64Attribute of an integer = %v, %v", v, err)
	}
	facets, err := p.ReadStringArrayAttribute(ctx, "grid", "facets")
	if err != nil || !slices.Equal(facets, []string{"top", "", "bottom layer"}) {
		t.Errorf("ReadStringArrayAttribute = %q, %v", facets, err)
	}
	if one, err := p.ReadStringArrayAttribute(ctx, "props", "uom"); err != nil || !slices.Equal(one, []string{"bar"}) {
		t.Errorf("ReadStringArrayAttribute of a scalar = %q, %v", one, err)
	}

	// Last write wins.
	if err := p.WriteStringAttributes(ctx, "props", []string{"uom"}, []string{"kPa"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if s, err := p.ReadStringAttribute(ctx, "props", "uom"); err != nil || s != "kPa" {
		t.Errorf("after overwrite = %q, %v", s, err)
	}
	if err := p.WriteIntAttributes(ctx, "props", []string{"uom"}, []int{7}); err != nil {
		t.Fatalf("overwrite with another type: %v", err)
	}
	if v, err := p.ReadIntAttribute(ctx, "props", "uom"); err != nil || v != 7 {
		t.Errorf("after retyping = %v, %v", v, err)
	}
}

func TestAttributeErrors(t *testing.T) {
	ctx := context.Background()
	p, _ := openTemp(t)
	if err := p.WriteFloat64Attributes(ctx, "g", []string{"x"}, []float64{1}); err != nil {
		t.Fatalf("WriteFloat64Attributes: %v", err)
	}

	if _, err := p.ReadStringAttribute(ctx, "g", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing attribute: expected ErrNotFound, got %v", err)
	}
	if _, err := p.ReadStringAttribute(ctx, "other", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing group: expected ErrNotFound, got %v", err)
	}
	if err := p.WriteFloat64Attributes(ctx, "g/nods", []string{"x"}, []float64{1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing dataset target: expected ErrNotFound, got %v", err)
	}
	if _, err := p.ReadStringAttribute(ctx, "g", "x"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("double read as string: expected ErrTypeMismatch, got %v", err)
	}
	if _, err := p.ReadStringArrayAttribute(ctx, "g", "x"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("double read as strings: expected ErrTypeMismatch, got %v", err)
	}
	if err := p.WriteStringAttributes(ctx, "g", []string{"a", "b"}, []string{"v"}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("name/value mismatch: expected ErrInvalidName, got %v", err)
	}
	if err := p.WriteStringAttributes(ctx, "g", []string{""}, []string{"v"}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("empty name: expected ErrInvalidName, got %v", err)
	}
}
