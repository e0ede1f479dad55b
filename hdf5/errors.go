// Package hdf5 is a pure Go engine for reading and writing HDF5 containers:
// groups, n-dimensional datasets with contiguous or chunked and compressed
// storage, hyperslab I/O and attributes.
//
// Dimensions are given in HDF5 order, slowest-varying first. Element bytes
// cross the API little-endian.
package hdf5

import "errors"

// Common errors
var (
	ErrNotHDF5      = errors.New("not an HDF5 file")
	ErrNotFound     = errors.New("object not found")
	ErrExists       = errors.New("object already exists")
	ErrNotDataset   = errors.New("object is not a dataset")
	ErrNotGroup     = errors.New("object is not a group")
	ErrUnsupported  = errors.New("unsupported feature")
	ErrInvalidPath  = errors.New("invalid path")
	ErrOutOfBounds  = errors.New("selection out of bounds")
	ErrBufferSize   = errors.New("buffer size does not match selection")
	ErrReadOnly     = errors.New("file is not writable")
	ErrClosed       = errors.New("file is closed")
	ErrLinkDepth    = errors.New("maximum link depth exceeded")
	ErrTypeMismatch = errors.New("value does not match attribute type")
)

// MaxLinkDepth is the maximum number of soft links that can be followed
// in a single path resolution.
const MaxLinkDepth = 100
