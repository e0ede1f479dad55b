package proxy

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// CreateOption configures Create.
type CreateOption func(*createOptions)

type createOptions struct {
	compression int
}

// CreateWithCompression overrides the proxy's deflate level for one
// dataset. Levels are clamped to 0..9.
func CreateWithCompression(level int) CreateOption {
	return func(o *createOptions) {
		o.compression = clampLevel(level)
	}
}

// Create allocates an uninitialized dataset. It fails with
// ErrAlreadyExists when the name is taken.
func (p *Proxy) Create(ctx context.Context, group, name string, dt Datatype, extent []uint64, opts ...CreateOption) error {
	if err := p.ready(); err != nil {
		return err
	}
	path, err := DatasetPath(group, name)
	if err != nil {
		return err
	}
	return p.create(ctx, path, dt, extent, opts...)
}

func (p *Proxy) create(ctx context.Context, path string, dt Datatype, extent []uint64, opts ...CreateOption) error {
	if !dt.IsNumeric() {
		return fmt.Errorf("%w: %s datasets", ErrUnsupportedType, dt)
	}
	if len(extent) == 0 {
		return fmt.Errorf("%w: dataset %s needs at least one dimension", ErrSelectionOutOfBounds, path)
	}
	o := createOptions{compression: p.compression}
	for _, opt := range opts {
		opt(&o)
	}
	if err := p.session.CreateDataset(ctx, path, dt, extent, o.compression); err != nil {
		return err
	}
	p.log.Debug().Str("path", path).Stringer("type", dt).Uints64("extent", extent).
		Int("compression", o.compression).Msg("created dataset")
	return nil
}

// Info returns the type and extent of a dataset.
func (p *Proxy) Info(ctx context.Context, group, name string) (DatasetInfo, error) {
	if err := p.ready(); err != nil {
		return DatasetInfo{}, err
	}
	path, err := DatasetPath(group, name)
	if err != nil {
		return DatasetInfo{}, err
	}
	return p.session.DatasetInfo(ctx, path)
}

func checkType(path string, info DatasetInfo, dt Datatype) error {
	if info.Type != dt {
		return fmt.Errorf("%w: %s is %s, buffer is %s", ErrTypeMismatch, path, info.Type, dt)
	}
	return nil
}

func checkLen(buf Buffer, n uint64) error {
	if uint64(buf.Len()) != n {
		return fmt.Errorf("%w: buffer holds %d elements, selection %d", ErrBufferSize, buf.Len(), n)
	}
	return nil
}

// WriteWhole writes a whole dataset, creating it when it does not exist.
// An existing dataset must have the same extent and type.
func (p *Proxy) WriteWhole(ctx context.Context, group, name string, dt Datatype, buf Buffer, extent []uint64) error {
	if err := p.ready(); err != nil {
		return err
	}
	path, err := DatasetPath(group, name)
	if err != nil {
		return err
	}
	create, err := p.checkWhole(ctx, path, dt, buf, extent)
	if err != nil {
		return err
	}
	return p.writeWhole(ctx, path, dt, buf, extent, create)
}

// checkWhole validates a whole write to path without touching the
// container. It reports whether the dataset has to be created first.
func (p *Proxy) checkWhole(ctx context.Context, path string, dt Datatype, buf Buffer, extent []uint64) (create bool, err error) {
	if buf.Datatype() != dt {
		return false, fmt.Errorf("%w: buffer is %s, not %s", ErrTypeMismatch, buf.Datatype(), dt)
	}
	if err := checkLen(buf, product(extent)); err != nil {
		return false, err
	}
	info, err := p.session.DatasetInfo(ctx, path)
	switch {
	case errors.Is(err, ErrNotFound):
		if !dt.IsNumeric() {
			return false, fmt.Errorf("%w: %s datasets", ErrUnsupportedType, dt)
		}
		if len(extent) == 0 {
			return false, fmt.Errorf("%w: dataset %s needs at least one dimension", ErrSelectionOutOfBounds, path)
		}
		return true, nil
	case err != nil:
		return false, err
	}
	if err := checkType(path, info, dt); err != nil {
		return false, err
	}
	if !slices.Equal(info.Extent, extent) {
		return false, fmt.Errorf("%w: %s has extent %v, not %v", ErrSelectionOutOfBounds, path, info.Extent, extent)
	}
	return false, nil
}

func (p *Proxy) writeWhole(ctx context.Context, path string, dt Datatype, buf Buffer, extent []uint64, create bool) error {
	if create {
		if err := p.create(ctx, path, dt, extent); err != nil {
			return err
		}
	}
	return p.session.WriteSlab(ctx, path, dt, nil, buf.wire())
}

// WriteSlab writes count elements per dimension starting at offset into
// an existing dataset.
func (p *Proxy) WriteSlab(ctx context.Context, group, name string, dt Datatype, buf Buffer, count, offset []uint64) error {
	if err := p.ready(); err != nil {
		return err
	}
	path, err := DatasetPath(group, name)
	if err != nil {
		return err
	}
	if buf.Datatype() != dt {
		return fmt.Errorf("%w: buffer is %s, not %s", ErrTypeMismatch, buf.Datatype(), dt)
	}
	info, err := p.session.DatasetInfo(ctx, path)
	if err != nil {
		return err
	}
	if err := checkType(path, info, dt); err != nil {
		return err
	}
	slab, err := box(info.Extent, offset, count)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := checkLen(buf, product(count)); err != nil {
		return err
	}
	return p.session.WriteSlab(ctx, path, dt, slab, buf.wire())
}

// ReadWhole reads a whole dataset into buf, which must hold exactly its
// elements.
func (p *Proxy) ReadWhole(ctx context.Context, group, name string, buf Buffer) error {
	sel, err := p.Select(ctx, group, name, nil, nil, nil, nil)
	if err != nil {
		return err
	}
	return p.ReadBySelection(ctx, sel, buf, sel.ElementCount())
}

// ReadSlab reads count elements per dimension starting at offset.
func (p *Proxy) ReadSlab(ctx context.Context, group, name string, buf Buffer, count, offset []uint64) error {
	return p.ReadSlabGeneral(ctx, group, name, buf, offset, nil, count, ones(len(count)))
}

// ReadSlabGeneral reads a strided selection of count blocks of block
// elements per dimension. Nil stride or block mean ones.
func (p *Proxy) ReadSlabGeneral(ctx context.Context, group, name string, buf Buffer, offset, stride, block, count []uint64, opts ...SelectionOption) error {
	sel, err := p.Select(ctx, group, name, offset, stride, block, count, opts...)
	if err != nil {
		return err
	}
	return p.ReadBySelection(ctx, sel, buf, sel.ElementCount())
}

// Select validates a selection once so several reads can reuse it. Nil
// offset and count select the whole dataset.
func (p *Proxy) Select(ctx context.Context, group, name string, offset, stride, block, count []uint64, opts ...SelectionOption) (*Selection, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	path, err := DatasetPath(group, name)
	if err != nil {
		return nil, err
	}
	info, err := p.session.DatasetInfo(ctx, path)
	if err != nil {
		return nil, err
	}
	sel := &Selection{path: path, dt: info.Type, extent: info.Extent}
	if offset != nil || count != nil {
		if sel.slab, err = NewHyperslab(info.Extent, offset, stride, block, count, opts...); err != nil {
			return nil, fmt.Errorf("selecting in %s: %w", path, err)
		}
	}
	return sel, nil
}

// ReadBySelection reads a prepared selection into buf. elementCount must
// match both the selection and the buffer.
func (p *Proxy) ReadBySelection(ctx context.Context, sel *Selection, buf Buffer, elementCount uint64) error {
	if err := p.ready(); err != nil {
		return err
	}
	if buf.Datatype() != sel.dt {
		return fmt.Errorf("%w: %s is %s, buffer is %s", ErrTypeMismatch, sel.path, sel.dt, buf.Datatype())
	}
	if n := sel.ElementCount(); elementCount != n {
		return fmt.Errorf("%w: %d elements requested, selection has %d", ErrBufferSize, elementCount, n)
	}
	if err := checkLen(buf, elementCount); err != nil {
		return err
	}

	if !sel.slab.Overlaps() {
		if err := p.session.ReadSlab(ctx, sel.path, sel.dt, sel.slab, buf.data); err != nil {
			return err
		}
		buf.fromWire()
		return nil
	}

	// Overlapping blocks: read the bounding box and pick the elements.
	span := sel.slab.span()
	tmp := make([]byte, int(span.ElementCount())*sel.dt.Size())
	if err := p.session.ReadSlab(ctx, sel.path, sel.dt, span, tmp); err != nil {
		return err
	}
	sel.slab.gather(buf.data, tmp, sel.dt.Size())
	buf.fromWire()
	return nil
}

// Rank returns the number of dimensions of a dataset.
func (p *Proxy) Rank(ctx context.Context, group, name string) (int, error) {
	info, err := p.Info(ctx, group, name)
	return info.Rank(), err
}

// Extent returns a dataset's extent, fastest-varying dimension first.
func (p *Proxy) Extent(ctx context.Context, group, name string) ([]uint64, error) {
	info, err := p.Info(ctx, group, name)
	return info.Extent, err
}

// ElementCount returns the number of elements of a dataset.
func (p *Proxy) ElementCount(ctx context.Context, group, name string) (uint64, error) {
	info, err := p.Info(ctx, group, name)
	if err != nil {
		return 0, err
	}
	return info.ElementCount(), nil
}

// DatasetType returns the element type of a dataset.
func (p *Proxy) DatasetType(ctx context.Context, group, name string) (Datatype, error) {
	info, err := p.Info(ctx, group, name)
	return info.Type, err
}

// DatasetTypeClass returns the storage class of a dataset's elements.
func (p *Proxy) DatasetTypeClass(ctx context.Context, group, name string) (TypeClass, error) {
	info, err := p.Info(ctx, group, name)
	if err != nil {
		return ClassOther, err
	}
	return info.Type.Class(), nil
}

// Exists reports whether path names a group or dataset. A path without a
// leading slash is a group name, optionally followed by /dataset, under
// the namespace.
func (p *Proxy) Exists(ctx context.Context, path string) (bool, error) {
	if err := p.ready(); err != nil {
		return false, err
	}
	abs, err := resolve(path)
	if err != nil {
		return false, err
	}
	return p.session.Exists(ctx, abs)
}
