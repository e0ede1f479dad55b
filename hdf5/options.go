package hdf5

// FileOption configures file creation options.
type FileOption func(*fileOptions)

type fileOptions struct {
	offsetSize int
	lengthSize int
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{
		offsetSize: 8,
		lengthSize: 8,
	}
}

// WithOffsetSize sets the size in bytes for file offsets (2, 4, or 8).
func WithOffsetSize(size int) FileOption {
	return func(o *fileOptions) {
		if size == 2 || size == 4 || size == 8 {
			o.offsetSize = size
		}
	}
}

// WithLengthSize sets the size in bytes for lengths (2, 4, or 8).
func WithLengthSize(size int) FileOption {
	return func(o *fileOptions) {
		if size == 2 || size == 4 || size == 8 {
			o.lengthSize = size
		}
	}
}

// DatasetOption configures dataset creation options.
type DatasetOption func(*datasetOptions)

// attrDef holds an attribute definition for creation.
type attrDef struct {
	name  string
	value any
}

type datasetOptions struct {
	chunks         []uint64
	chunkBytes     uint64
	compressionLvl int
	shuffle        bool
	fletcher32     bool
	attributes     []attrDef
}

func defaultDatasetOptions() *datasetOptions {
	return &datasetOptions{}
}

func (o *datasetOptions) chunked() bool {
	return o.chunks != nil || o.compressionLvl > 0 || o.shuffle || o.fletcher32
}

// WithChunks sets the chunk dimensions of a chunked dataset. Without it,
// chunked datasets get chunks of about one MiB.
func WithChunks(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.chunks = dims
	}
}

// WithChunkBytes sets the target chunk size used when chunk dimensions are
// chosen automatically.
func WithChunkBytes(n uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.chunkBytes = n
	}
}

// WithCompression sets the deflate level (1-9, 0 = none). Levels outside
// the range are clamped.
func WithCompression(level int) DatasetOption {
	return func(o *datasetOptions) {
		o.compressionLvl = min(max(level, 0), 9)
	}
}

// WithShuffle enables the shuffle filter (improves compression).
func WithShuffle() DatasetOption {
	return func(o *datasetOptions) {
		o.shuffle = true
	}
}

// WithFletcher32 enables Fletcher32 checksum validation.
func WithFletcher32() DatasetOption {
	return func(o *datasetOptions) {
		o.fletcher32 = true
	}
}

// WithAttribute adds an attribute to the dataset. The value can be a
// string, []string, float64, []float64, int64, []int64 or int.
// Multiple WithAttribute options can be used to add multiple attributes.
func WithAttribute(name string, value any) DatasetOption {
	return func(o *datasetOptions) {
		o.attributes = append(o.attributes, attrDef{name: name, value: value})
	}
}
