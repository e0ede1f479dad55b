package hdf5

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-hdfproxy/internal/alloc"
	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
	"github.com/robert-malhotra/go-hdfproxy/internal/layout"
	"github.com/robert-malhotra/go-hdfproxy/internal/object"
	"github.com/robert-malhotra/go-hdfproxy/internal/superblock"
	"github.com/robert-malhotra/go-hdfproxy/pkg/logging"
)

// File represents an open HDF5 file. A File is safe for concurrent use;
// operations are serialized.
type File struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	sb       *superblock.Superblock
	cfg      binary.Config
	space    *alloc.Allocator
	writable bool
	closed   bool
	log      zerolog.Logger
}

// Create creates a new HDF5 file at the given path, truncating any existing
// file. The file gets a version 3 superblock and an empty root group.
func Create(path string, opts ...FileOption) (*File, error) {
	options := defaultFileOptions()
	for _, opt := range opts {
		opt(options)
	}

	osFile, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	sb := superblock.New()
	sb.OffsetSize = uint8(options.offsetSize)
	sb.LengthSize = uint8(options.lengthSize)
	sb.ExtensionAddress = binary.Undefined(options.offsetSize)

	f := &File{
		path:     path,
		file:     osFile,
		sb:       sb,
		cfg:      sb.Config(),
		space:    alloc.New(uint64(sb.Size())),
		writable: true,
		log:      logging.WithComponent("hdf5").With().Str("file", path).Logger(),
	}

	rootMsgs := object.NewGroupMessages(f.cfg)
	rootAddr, err := f.writeHeader(rootMsgs, object.MinGroupChunkSize)
	if err != nil {
		osFile.Close()
		os.Remove(path)
		return nil, err
	}
	sb.RootAddress = rootAddr
	if err := f.flush(); err != nil {
		osFile.Close()
		os.Remove(path)
		return nil, err
	}

	f.log.Debug().Msg("created file")
	return f, nil
}

// Open opens an HDF5 file for reading.
func Open(path string) (*File, error) {
	return open(path, false)
}

// OpenReadWrite opens an existing HDF5 file for reading and writing.
// New objects are appended; existing content is never truncated.
func OpenReadWrite(path string) (*File, error) {
	return open(path, true)
}

// OpenOrCreate opens path for writing, creating it when it does not exist.
func OpenOrCreate(path string, opts ...FileOption) (*File, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Create(path, opts...)
	}
	return OpenReadWrite(path)
}

func open(path string, writable bool) (*File, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	osFile, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	sb, err := superblock.Read(osFile)
	if err != nil {
		osFile.Close()
		if errors.Is(err, superblock.ErrUnsupportedVersion) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotHDF5, err)
	}
	if sb.BaseAddress != 0 || sb.FileOffset != 0 {
		osFile.Close()
		return nil, fmt.Errorf("%w: superblock at offset %d", ErrUnsupported, sb.FileOffset)
	}

	f := &File{
		path:     path,
		file:     osFile,
		sb:       sb,
		cfg:      sb.Config(),
		writable: writable,
		log:      logging.WithComponent("hdf5").With().Str("file", path).Logger(),
	}
	if writable {
		eof := sb.EOFAddress
		if st, err := osFile.Stat(); err == nil && uint64(st.Size()) > eof {
			eof = uint64(st.Size())
		}
		f.space = alloc.New(eof)
	}

	if _, err := f.readHeader(sb.RootAddress); err != nil {
		osFile.Close()
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	f.log.Debug().Bool("writable", writable).Msg("opened file")
	return f, nil
}

// Close flushes a writable file and closes it. Closing twice is a no-op.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	if f.writable {
		if err := f.flush(); err != nil {
			f.file.Close()
			return err
		}
		stats := f.space.Stats()
		f.log.Debug().
			Uint64("eof", stats.EOF).
			Uint64("allocated", stats.Total()).
			Uint64("freed", stats.FreedBytes).
			Msg("closed file")
	}
	return f.file.Close()
}

// Flush writes the superblock and syncs the file to disk.
func (f *File) Flush() error {
	if err := f.acquire(true); err != nil {
		return err
	}
	defer f.mu.Unlock()
	return f.flush()
}

func (f *File) flush() error {
	eof := f.space.EOF()
	f.sb.EOFAddress = eof
	if err := f.sb.WriteTo(f.file); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	// Space may be allocated but never written; the file must still reach
	// the end-of-file address.
	st, err := f.file.Stat()
	if err != nil {
		return err
	}
	if uint64(st.Size()) < eof {
		if err := f.file.Truncate(int64(eof)); err != nil {
			return err
		}
	}
	return f.file.Sync()
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Version returns the superblock version.
func (f *File) Version() int {
	return int(f.sb.Version)
}

// IsWritable returns true if the file was opened for writing.
func (f *File) IsWritable() bool {
	return f.writable
}

// AllocStats returns allocation statistics (for debugging/testing).
func (f *File) AllocStats() alloc.Stats {
	if f.space == nil {
		return alloc.Stats{}
	}
	return f.space.Stats()
}

// acquire locks the file and checks it can serve the operation. On success
// the caller must unlock f.mu.
func (f *File) acquire(write bool) error {
	f.mu.Lock()
	switch {
	case f.closed:
		f.mu.Unlock()
		return ErrClosed
	case write && !f.writable:
		f.mu.Unlock()
		return ErrReadOnly
	}
	return nil
}

func (f *File) readHeader(addr uint64) (*object.Header, error) {
	return object.Read(f.file, addr, f.cfg)
}

// storage returns the view of the file that dataset storage works on.
func (f *File) storage() layout.File {
	lf := layout.File{R: f.file, Config: f.cfg}
	if f.writable {
		lf.W = f.file
		lf.Space = f.space
	}
	return lf
}
