package layout

import (
	"bytes"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

var (
	sigFixedArrayHeader = []byte("FAHD")
	sigFixedArrayBlock  = []byte("FADB")
)

// ChunkEntry locates one stored chunk. Size is the stored (filtered) size;
// Mask has bit i set when filter i was skipped for the chunk.
type ChunkEntry struct {
	Addr uint64
	Size uint64
	Mask uint32
}

// FixedArray is a Fixed Array chunk index: a header (FAHD) pointing at one
// data block (FADB) holding an entry per chunk. Arrays larger than one page
// split the data block into checksummed pages and are read only.
type FixedArray struct {
	Address   uint64
	DataBlock uint64
	Filtered  bool
	PageBits  uint8
	Entries   []ChunkEntry

	cfg        binary.Config
	sizeLen    int
	chunkBytes uint64
}

// NewFixedArray creates an index of n unallocated chunks of chunkBytes
// uncompressed bytes.
func NewFixedArray(cfg binary.Config, n uint64, filtered bool, chunkBytes uint64) *FixedArray {
	fa := &FixedArray{
		Filtered:   filtered,
		PageBits:   PageBitsFor(n),
		Entries:    make([]ChunkEntry, n),
		cfg:        cfg,
		chunkBytes: chunkBytes,
	}
	if filtered {
		fa.sizeLen = chunkSizeLen(chunkBytes)
	}
	for i := range fa.Entries {
		fa.Entries[i].Addr = cfg.UndefinedOffset()
	}
	return fa
}

func (fa *FixedArray) entrySize() int {
	if fa.Filtered {
		return fa.cfg.OffsetSize + fa.sizeLen + 4
	}
	return fa.cfg.OffsetSize
}

func (fa *FixedArray) paged() bool {
	return uint64(len(fa.Entries)) > uint64(1)<<fa.PageBits
}

// HeaderSize returns the encoded FAHD size.
func (fa *FixedArray) HeaderSize() int {
	return 8 + fa.cfg.LengthSize + fa.cfg.OffsetSize + 4
}

// DataBlockSize returns the encoded FADB size of an unpaged array.
func (fa *FixedArray) DataBlockSize() int {
	return 6 + fa.cfg.OffsetSize + len(fa.Entries)*fa.entrySize() + 4
}

func (fa *FixedArray) clientID() uint8 {
	if fa.Filtered {
		return 1
	}
	return 0
}

// EncodeHeader serializes the FAHD structure.
func (fa *FixedArray) EncodeHeader() []byte {
	e := binary.NewEncoder(fa.cfg)
	e.PutBytes(sigFixedArrayHeader)
	e.PutUint8(0)
	e.PutUint8(fa.clientID())
	e.PutUint8(uint8(fa.entrySize()))
	e.PutUint8(fa.PageBits)
	e.PutLength(uint64(len(fa.Entries)))
	e.PutOffset(fa.DataBlock)
	e.PutChecksum(0)
	return e.Bytes()
}

// EncodeDataBlock serializes the FADB structure.
func (fa *FixedArray) EncodeDataBlock() []byte {
	e := binary.NewEncoder(fa.cfg)
	e.PutBytes(sigFixedArrayBlock)
	e.PutUint8(0)
	e.PutUint8(fa.clientID())
	e.PutOffset(fa.Address)
	for _, ent := range fa.Entries {
		e.PutOffset(ent.Addr)
		if fa.Filtered {
			e.PutUintN(ent.Size, fa.sizeLen)
			e.PutUint32(ent.Mask)
		}
	}
	e.PutChecksum(0)
	return e.Bytes()
}

// Entry returns the index entry of chunk i. Unfiltered entries report the
// full chunk size.
func (fa *FixedArray) Entry(i uint64) ChunkEntry {
	ent := fa.Entries[i]
	if !fa.Filtered {
		ent.Size = fa.chunkBytes
	}
	return ent
}

// Write stores both structures at their addresses.
func (fa *FixedArray) Write(w io.WriterAt) error {
	if fa.paged() {
		return fmt.Errorf("%w: paged fixed array", ErrReadOnly)
	}
	if _, err := w.WriteAt(fa.EncodeDataBlock(), int64(fa.DataBlock)); err != nil {
		return err
	}
	_, err := w.WriteAt(fa.EncodeHeader(), int64(fa.Address))
	return err
}

// WriteDataBlock rewrites the data block after entries changed.
func (fa *FixedArray) WriteDataBlock(w io.WriterAt) error {
	if fa.paged() {
		return fmt.Errorf("%w: paged fixed array", ErrReadOnly)
	}
	_, err := w.WriteAt(fa.EncodeDataBlock(), int64(fa.DataBlock))
	return err
}

// ReadFixedArray loads the fixed array index at addr for chunks of
// chunkBytes uncompressed bytes.
func ReadFixedArray(r io.ReaderAt, addr uint64, cfg binary.Config, chunkBytes uint64) (*FixedArray, error) {
	headerSize := 8 + cfg.LengthSize + cfg.OffsetSize + 4
	raw, err := binary.ReadAt(r, int64(addr), headerSize)
	if err != nil {
		return nil, fmt.Errorf("fixed array header: %w", err)
	}
	if !bytes.Equal(raw[:4], sigFixedArrayHeader) {
		return nil, fmt.Errorf("%w: bad fixed array header signature at %d", ErrCorruptIndex, addr)
	}
	if !binary.VerifyLookup3(raw[:headerSize-4], uint32(binary.DecodeUint(raw[headerSize-4:]))) {
		return nil, fmt.Errorf("%w: fixed array header checksum at %d", ErrCorruptIndex, addr)
	}

	d := binary.NewDecoder(raw, cfg)
	d.Skip(4)
	if v := d.Uint8(); v != 0 {
		return nil, fmt.Errorf("%w: fixed array version %d", ErrUnsupported, v)
	}
	fa := &FixedArray{Address: addr, cfg: cfg, chunkBytes: chunkBytes}
	fa.Filtered = d.Uint8() == 1
	entrySize := int(d.Uint8())
	fa.PageBits = d.Uint8()
	n := d.Length()
	fa.DataBlock = d.Offset()
	if fa.Filtered {
		fa.sizeLen = entrySize - cfg.OffsetSize - 4
		if fa.sizeLen < 1 || fa.sizeLen > 8 {
			return nil, fmt.Errorf("%w: filtered entry size %d", ErrCorruptIndex, entrySize)
		}
	} else if entrySize != cfg.OffsetSize {
		return nil, fmt.Errorf("%w: entry size %d", ErrCorruptIndex, entrySize)
	}
	fa.Entries = make([]ChunkEntry, n)
	if n == 0 {
		return fa, nil
	}
	if fa.paged() {
		err = fa.readPages(r)
	} else {
		err = fa.readBlock(r)
	}
	if err != nil {
		return nil, err
	}
	return fa, nil
}

func (fa *FixedArray) checkBlockPrefix(d *binary.Decoder) error {
	if sig := d.Bytes(4); !bytes.Equal(sig, sigFixedArrayBlock) {
		return fmt.Errorf("%w: bad fixed array data block signature at %d", ErrCorruptIndex, fa.DataBlock)
	}
	d.Skip(2) // version, client ID
	if owner := d.Offset(); owner != fa.Address {
		return fmt.Errorf("%w: data block at %d belongs to header %d", ErrCorruptIndex, fa.DataBlock, owner)
	}
	return d.Err()
}

func (fa *FixedArray) decodeEntries(d *binary.Decoder, entries []ChunkEntry) {
	for i := range entries {
		entries[i].Addr = d.Offset()
		if fa.Filtered {
			entries[i].Size = d.UintN(fa.sizeLen)
			entries[i].Mask = d.Uint32()
		}
	}
}

func (fa *FixedArray) readBlock(r io.ReaderAt) error {
	size := fa.DataBlockSize()
	raw, err := binary.ReadAt(r, int64(fa.DataBlock), size)
	if err != nil {
		return fmt.Errorf("fixed array data block: %w", err)
	}
	if !binary.VerifyLookup3(raw[:size-4], uint32(binary.DecodeUint(raw[size-4:]))) {
		return fmt.Errorf("%w: fixed array data block checksum at %d", ErrCorruptIndex, fa.DataBlock)
	}
	d := binary.NewDecoder(raw, fa.cfg)
	if err := fa.checkBlockPrefix(d); err != nil {
		return err
	}
	fa.decodeEntries(d, fa.Entries)
	return d.Err()
}

// readPages reads a paged data block: the prefix carries a bitmap of
// initialized pages and its own checksum, and each page that follows holds
// its entries and a checksum.
func (fa *FixedArray) readPages(r io.ReaderAt) error {
	perPage := uint64(1) << fa.PageBits
	n := uint64(len(fa.Entries))
	pages := (n + perPage - 1) / perPage
	bitmapSize := int((pages + 7) / 8)
	prefixSize := 6 + fa.cfg.OffsetSize + bitmapSize + 4

	raw, err := binary.ReadAt(r, int64(fa.DataBlock), prefixSize)
	if err != nil {
		return fmt.Errorf("fixed array data block: %w", err)
	}
	if !binary.VerifyLookup3(raw[:prefixSize-4], uint32(binary.DecodeUint(raw[prefixSize-4:]))) {
		return fmt.Errorf("%w: fixed array data block checksum at %d", ErrCorruptIndex, fa.DataBlock)
	}
	d := binary.NewDecoder(raw, fa.cfg)
	if err := fa.checkBlockPrefix(d); err != nil {
		return err
	}
	bitmap := d.Bytes(bitmapSize)

	for i := range fa.Entries {
		fa.Entries[i].Addr = fa.cfg.UndefinedOffset()
	}
	pageAddr := fa.DataBlock + uint64(prefixSize)
	fullPage := uint64(perPage)*uint64(fa.entrySize()) + 4
	for p := uint64(0); p < pages; p++ {
		first := p * perPage
		count := min(perPage, n-first)
		addr := pageAddr + p*fullPage
		if bitmap[p/8]&(0x80>>(p%8)) == 0 {
			continue
		}
		size := int(count)*fa.entrySize() + 4
		page, err := binary.ReadAt(r, int64(addr), size)
		if err != nil {
			return fmt.Errorf("fixed array page %d: %w", p, err)
		}
		if !binary.VerifyLookup3(page[:size-4], uint32(binary.DecodeUint(page[size-4:]))) {
			return fmt.Errorf("%w: fixed array page %d checksum", ErrCorruptIndex, p)
		}
		pd := binary.NewDecoder(page, fa.cfg)
		fa.decodeEntries(pd, fa.Entries[first:first+count])
		if err := pd.Err(); err != nil {
			return err
		}
	}
	return nil
}
