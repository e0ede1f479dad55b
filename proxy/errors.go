// Package proxy stores logical n-dimensional arrays, ragged itemized lists
// and attribute metadata in an HDF5 container, either a local file or a
// container served remotely over the DataArray protocol.
//
// Arrays live at /RESQML/<group>/<name>. Every per-dimension slice passed
// to or returned by this package is ordered fastest-varying first.
package proxy

import "errors"

var (
	ErrNotFound                 = errors.New("not found")
	ErrAlreadyExists            = errors.New("already exists")
	ErrSelectionOutOfBounds     = errors.New("selection out of bounds")
	ErrUnsupportedType          = errors.New("unsupported datatype")
	ErrClosedContainer          = errors.New("container is closed")
	ErrConnection               = errors.New("connection failure")
	ErrInconsistentItemizedList = errors.New("inconsistent itemized list")
	ErrTypeMismatch             = errors.New("datatype mismatch")
	ErrInvalidName              = errors.New("invalid name")
	ErrBufferSize               = errors.New("buffer size does not match selection")
)
