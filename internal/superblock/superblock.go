// Package superblock reads and writes the HDF5 superblock, the fixed entry
// point of a file that records field widths, the end-of-file address and the
// root group's object header.
//
// Only the version 2 and 3 layout is handled:
//
//	Offset  Size  Description
//	0       8     Signature
//	8       1     Version (2 or 3)
//	9       1     Size of offsets
//	10      1     Size of lengths
//	11      1     File consistency flags
//	12      O     Base address
//	12+O    O     Superblock extension address
//	12+2O   O     EOF address
//	12+3O   O     Root group object header address
//	12+4O   4     Checksum (lookup3)
package superblock

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

// Signature is the 8-byte HDF5 format signature.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// Possible superblock locations, searched in order.
var searchOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
)

// Superblock holds the fields of a version 2/3 superblock.
type Superblock struct {
	Version          uint8
	OffsetSize       uint8
	LengthSize       uint8
	ConsistencyFlags uint8
	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootAddress      uint64

	// FileOffset is where the signature was found.
	FileOffset int64
}

// New returns a version 3 superblock with 8-byte offsets and lengths.
func New() *Superblock {
	return &Superblock{
		Version:          3,
		OffsetSize:       8,
		LengthSize:       8,
		ExtensionAddress: binpkg.Undefined(8),
	}
}

// Config returns the binary field widths recorded in the superblock.
func (sb *Superblock) Config() binpkg.Config {
	return binpkg.Config{OffsetSize: int(sb.OffsetSize), LengthSize: int(sb.LengthSize)}
}

// Size returns the encoded size of the superblock in bytes.
func (sb *Superblock) Size() int {
	return 12 + 4*int(sb.OffsetSize) + 4
}

// Encode serializes the superblock including its checksum.
func (sb *Superblock) Encode() []byte {
	e := binpkg.NewEncoder(sb.Config())
	e.PutBytes(Signature)
	e.PutUint8(sb.Version)
	e.PutUint8(sb.OffsetSize)
	e.PutUint8(sb.LengthSize)
	e.PutUint8(sb.ConsistencyFlags)
	e.PutOffset(sb.BaseAddress)
	e.PutOffset(sb.ExtensionAddress)
	e.PutOffset(sb.EOFAddress)
	e.PutOffset(sb.RootAddress)
	e.PutChecksum(0)
	return e.Bytes()
}

// WriteTo writes the superblock at its file offset.
func (sb *Superblock) WriteTo(w io.WriterAt) error {
	_, err := w.WriteAt(sb.Encode(), sb.FileOffset)
	return err
}

// Read locates and parses the superblock.
func Read(r io.ReaderAt) (*Superblock, error) {
	for _, off := range searchOffsets {
		head, err := binpkg.ReadAtMost(r, off, 9)
		if err != nil {
			return nil, err
		}
		if len(head) < 9 || !bytes.Equal(head[:8], Signature) {
			continue
		}
		switch head[8] {
		case 2, 3:
			return readV2(r, off)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, head[8])
		}
	}
	return nil, ErrNotHDF5
}

func readV2(r io.ReaderAt, off int64) (*Superblock, error) {
	fixed, err := binpkg.ReadAt(r, off, 12)
	if err != nil {
		return nil, err
	}
	osize := int(fixed[9])
	cfg := binpkg.Config{OffsetSize: osize, LengthSize: int(fixed[10])}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}

	raw, err := binpkg.ReadAt(r, off, 12+4*osize+4)
	if err != nil {
		return nil, err
	}
	body := raw[:len(raw)-4]
	d := binpkg.NewDecoder(raw, cfg)
	d.Skip(8)
	sb := &Superblock{
		Version:    d.Uint8(),
		OffsetSize: d.Uint8(),
		LengthSize: d.Uint8(),
		FileOffset: off,
	}
	sb.ConsistencyFlags = d.Uint8()
	sb.BaseAddress = d.Offset()
	sb.ExtensionAddress = d.Offset()
	sb.EOFAddress = d.Offset()
	sb.RootAddress = d.Offset()
	stored := d.Uint32()
	if err := d.Err(); err != nil {
		return nil, err
	}
	if !binpkg.VerifyLookup3(body, stored) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidSuperblock)
	}
	return sb, nil
}
