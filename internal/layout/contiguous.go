package layout

import (
	"bytes"
	"fmt"
	"io"
)

// Contiguous storage is one block of Size bytes at Address. An undefined
// address means the block was never allocated and reads as zeros.
type Contiguous struct {
	f        File
	Address  uint64
	Size     uint64
	Dims     []uint64
	ElemSize int
}

func (c *Contiguous) allocated() bool {
	return c.Address != 0 && !c.f.Config.IsUndefined(c.Address)
}

// ReadSlab copies the selected elements into dst.
func (c *Contiguous) ReadSlab(s Slab, dst []byte) error {
	if err := checkBuffer(s, dst, c.ElemSize); err != nil {
		return err
	}
	if !c.allocated() {
		clear(dst)
		return nil
	}
	return readRuns(c.f.R, c.Address, c.Size, s, c.Dims, c.ElemSize, dst)
}

// WriteSlab stores the selected elements from src.
func (c *Contiguous) WriteSlab(s Slab, src []byte) error {
	if err := checkBuffer(s, src, c.ElemSize); err != nil {
		return err
	}
	if !c.f.writable() || !c.allocated() {
		return ErrReadOnly
	}
	return runs(selectionSegments(s), c.Dims, s.Shape(), c.ElemSize, func(r run) error {
		if r.src+r.n > c.Size {
			return fmt.Errorf("%w: run ends at %d past storage size %d", ErrOutOfBounds, r.src+r.n, c.Size)
		}
		return c.f.writeAt(src[r.dst:r.dst+r.n], c.Address+r.src)
	})
}

func readRuns(r io.ReaderAt, base, size uint64, s Slab, dims []uint64, elemSize int, dst []byte) error {
	return runs(selectionSegments(s), dims, s.Shape(), elemSize, func(rn run) error {
		if rn.src+rn.n > size {
			return fmt.Errorf("%w: run ends at %d past storage size %d", ErrOutOfBounds, rn.src+rn.n, size)
		}
		buf := dst[rn.dst : rn.dst+rn.n]
		n, err := r.ReadAt(buf, int64(base+rn.src))
		if n == len(buf) {
			return nil
		}
		if err == nil || err == io.EOF {
			// Storage past the end of the file has never been written.
			clear(buf[n:])
			return nil
		}
		return fmt.Errorf("read %d bytes at %d: %w", len(buf), base+rn.src, err)
	})
}

// Compact storage keeps the raw data inside the layout message.
type Compact struct {
	Data     []byte
	Dims     []uint64
	ElemSize int
}

// ReadSlab copies the selected elements into dst.
func (c *Compact) ReadSlab(s Slab, dst []byte) error {
	if err := checkBuffer(s, dst, c.ElemSize); err != nil {
		return err
	}
	return readRuns(bytes.NewReader(c.Data), 0, uint64(len(c.Data)), s, c.Dims, c.ElemSize, dst)
}

// WriteSlab is not supported; compact datasets are only produced by other
// writers.
func (c *Compact) WriteSlab(Slab, []byte) error { return ErrReadOnly }
