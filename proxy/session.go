package proxy

import "context"

// DatasetInfo describes a stored dataset.
type DatasetInfo struct {
	Type Datatype
	// Extent is ordered fastest-varying first.
	Extent []uint64
}

// Rank returns the number of dimensions.
func (i DatasetInfo) Rank() int { return len(i.Extent) }

// ElementCount returns the product of the extent.
func (i DatasetInfo) ElementCount() uint64 { return product(i.Extent) }

// Session is a container backend. Paths are absolute, dimension slices are
// ordered fastest-varying first and element bytes are little-endian. A nil
// *Hyperslab selects the whole dataset.
//
// Attribute values are string, []string, float64, []float64, int64 or
// []int64.
type Session interface {
	// Open attaches the backend. Opening an open session is a no-op.
	Open(ctx context.Context) error
	// IsOpened reports whether the backend is usable right now.
	IsOpened() bool
	Close() error

	CreateDataset(ctx context.Context, path string, dt Datatype, extent []uint64, compression int) error
	WriteSlab(ctx context.Context, path string, dt Datatype, slab *Hyperslab, data []byte) error
	ReadSlab(ctx context.Context, path string, dt Datatype, slab *Hyperslab, dst []byte) error
	DatasetInfo(ctx context.Context, path string) (DatasetInfo, error)
	Exists(ctx context.Context, path string) (bool, error)

	WriteAttribute(ctx context.Context, path, name string, value any) error
	ReadAttribute(ctx context.Context, path, name string) (any, error)
}
