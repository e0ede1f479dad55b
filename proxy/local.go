package proxy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-hdfproxy/hdf5"
	"github.com/robert-malhotra/go-hdfproxy/pkg/logging"
)

// LocalSession stores arrays in an HDF5 file on disk.
type LocalSession struct {
	path string
	opts []hdf5.FileOption
	log  zerolog.Logger

	mu         sync.Mutex
	f          *hdf5.File
	chunkBytes uint64
}

// NewLocalSession returns a closed session for the file at path. The
// options apply when Open has to create the file.
func NewLocalSession(path string, opts ...hdf5.FileOption) *LocalSession {
	return &LocalSession{
		path: path,
		opts: opts,
		log:  logging.WithComponent("local-session").With().Str("file", path).Logger(),
	}
}

// Path returns the file path.
func (s *LocalSession) Path() string { return s.path }

// Open creates the file if it does not exist and opens it for appending
// otherwise. An existing file is never truncated.
func (s *LocalSession) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f != nil {
		return nil
	}
	f, err := hdf5.OpenOrCreate(s.path, s.opts...)
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.path, engineErr(err))
	}
	s.f = f
	s.log.Debug().Msg("opened")
	return nil
}

func (s *LocalSession) IsOpened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f != nil
}

// Close flushes and closes the file. Closing a closed session is a no-op.
func (s *LocalSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	s.log.Debug().Err(err).Msg("closed")
	return engineErr(err)
}

// SetChunkBytes sets the target chunk size of compressed datasets created
// afterwards. Zero restores the default of about one MiB.
func (s *LocalSession) SetChunkBytes(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkBytes = n
}

// File returns the open file.
func (s *LocalSession) File() (*hdf5.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil, fmt.Errorf("%w: %s", ErrClosedContainer, s.path)
	}
	return s.f, nil
}

func (s *LocalSession) CreateDataset(ctx context.Context, path string, dt Datatype, extent []uint64, compression int) error {
	f, err := s.File()
	if err != nil {
		return err
	}
	if !dt.IsNumeric() {
		return fmt.Errorf("%w: %s datasets", ErrUnsupportedType, dt)
	}
	t, err := NativeType(dt)
	if err != nil {
		return err
	}
	var opts []hdf5.DatasetOption
	if compression > 0 && product(extent) > 0 {
		s.mu.Lock()
		chunkBytes := s.chunkBytes
		s.mu.Unlock()
		opts = append(opts, hdf5.WithCompression(compression), hdf5.WithShuffle(), hdf5.WithChunkBytes(chunkBytes))
	}
	if _, err := f.CreateDataset(path, t, reversed(extent), opts...); err != nil {
		return engineErr(err)
	}
	return nil
}

// dataset opens the dataset at path and checks its element type.
func (s *LocalSession) dataset(path string, dt Datatype) (*hdf5.Dataset, error) {
	f, err := s.File()
	if err != nil {
		return nil, err
	}
	ds, err := f.OpenDataset(path)
	if err != nil {
		return nil, engineErr(err)
	}
	info, err := ds.Info()
	if err != nil {
		return nil, engineErr(err)
	}
	stored, err := LogicalType(info.Type)
	if err != nil {
		return nil, err
	}
	if stored != dt {
		return nil, fmt.Errorf("%w: %s is %s, buffer is %s", ErrTypeMismatch, path, stored, dt)
	}
	return ds, nil
}

func (s *LocalSession) WriteSlab(ctx context.Context, path string, dt Datatype, slab *Hyperslab, data []byte) error {
	ds, err := s.dataset(path, dt)
	if err != nil {
		return err
	}
	return engineErr(ds.WriteSlab(slab.engine(), data))
}

func (s *LocalSession) ReadSlab(ctx context.Context, path string, dt Datatype, slab *Hyperslab, dst []byte) error {
	ds, err := s.dataset(path, dt)
	if err != nil {
		return err
	}
	return engineErr(ds.ReadSlab(slab.engine(), dst))
}

func (s *LocalSession) DatasetInfo(ctx context.Context, path string) (DatasetInfo, error) {
	f, err := s.File()
	if err != nil {
		return DatasetInfo{}, err
	}
	info, err := f.DatasetInfo(path)
	if err != nil {
		return DatasetInfo{}, engineErr(err)
	}
	dt, err := LogicalType(info.Type)
	if err != nil {
		return DatasetInfo{}, err
	}
	return DatasetInfo{Type: dt, Extent: reversed(info.Dims)}, nil
}

func (s *LocalSession) Exists(ctx context.Context, path string) (bool, error) {
	f, err := s.File()
	if err != nil {
		return false, err
	}
	ok, err := f.Exists(path)
	return ok, engineErr(err)
}

// WriteAttribute sets an attribute of the object at path. A missing group
// directly under the namespace root is created first.
func (s *LocalSession) WriteAttribute(ctx context.Context, path, name string, value any) error {
	f, err := s.File()
	if err != nil {
		return err
	}
	if len(hdf5.SplitPath(path)) <= 2 {
		if _, err := f.EnsureGroup(path); err != nil {
			return engineErr(err)
		}
	}
	return engineErr(f.SetAttribute(path, name, value))
}

func (s *LocalSession) ReadAttribute(ctx context.Context, path, name string) (any, error) {
	f, err := s.File()
	if err != nil {
		return nil, err
	}
	a, err := f.Attribute(path, name)
	if err != nil {
		return nil, engineErr(err)
	}
	v := a.Value()
	if v == nil {
		return nil, fmt.Errorf("%w: %s attribute %s", ErrUnsupportedType, a.Type, hdf5.JoinAttrPath(path, name))
	}
	return v, nil
}

// engineErr translates container engine errors to proxy errors.
func engineErr(err error) error {
	if err == nil {
		return nil
	}
	var kind error
	switch {
	case errors.Is(err, hdf5.ErrNotFound), errors.Is(err, hdf5.ErrNotDataset), errors.Is(err, hdf5.ErrNotGroup):
		kind = ErrNotFound
	case errors.Is(err, hdf5.ErrExists):
		kind = ErrAlreadyExists
	case errors.Is(err, hdf5.ErrOutOfBounds):
		kind = ErrSelectionOutOfBounds
	case errors.Is(err, hdf5.ErrBufferSize):
		kind = ErrBufferSize
	case errors.Is(err, hdf5.ErrTypeMismatch):
		kind = ErrTypeMismatch
	case errors.Is(err, hdf5.ErrUnsupported):
		kind = ErrUnsupportedType
	case errors.Is(err, hdf5.ErrInvalidPath):
		kind = ErrInvalidName
	case errors.Is(err, hdf5.ErrClosed):
		kind = ErrClosedContainer
	default:
		return err
	}
	return fmt.Errorf("%w: %v", kind, err)
}
