package proxy

import "context"

// CreateArray allocates a dataset of T elements.
func CreateArray[T Element](ctx context.Context, p *Proxy, group, name string, extent []uint64, opts ...CreateOption) error {
	return p.Create(ctx, group, name, DatatypeOf[T](), extent, opts...)
}

// WriteArray writes values as a whole dataset of the given extent.
func WriteArray[T Element](ctx context.Context, p *Proxy, group, name string, values []T, extent []uint64) error {
	return p.WriteWhole(ctx, group, name, DatatypeOf[T](), BufferOf(values), extent)
}

// WriteArraySlab writes values to the count elements per dimension at
// offset.
func WriteArraySlab[T Element](ctx context.Context, p *Proxy, group, name string, values []T, count, offset []uint64) error {
	return p.WriteSlab(ctx, group, name, DatatypeOf[T](), BufferOf(values), count, offset)
}

// ReadArray fills dst with a whole dataset.
func ReadArray[T Element](ctx context.Context, p *Proxy, group, name string, dst []T) error {
	return p.ReadWhole(ctx, group, name, BufferOf(dst))
}

// ReadArraySlab fills dst with the count elements per dimension at offset.
func ReadArraySlab[T Element](ctx context.Context, p *Proxy, group, name string, dst []T, count, offset []uint64) error {
	return p.ReadSlab(ctx, group, name, BufferOf(dst), count, offset)
}

// LoadArray allocates and reads a whole dataset, returning it with its
// extent.
func LoadArray[T Element](ctx context.Context, p *Proxy, group, name string) ([]T, []uint64, error) {
	info, err := p.Info(ctx, group, name)
	if err != nil {
		return nil, nil, err
	}
	dst := make([]T, info.ElementCount())
	if err := ReadArray(ctx, p, group, name, dst); err != nil {
		return nil, nil, err
	}
	return dst, info.Extent, nil
}
