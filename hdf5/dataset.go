package hdf5

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/alloc"
	"github.com/robert-malhotra/go-hdfproxy/internal/dtype"
	"github.com/robert-malhotra/go-hdfproxy/internal/filter"
	"github.com/robert-malhotra/go-hdfproxy/internal/layout"
	"github.com/robert-malhotra/go-hdfproxy/internal/message"
	"github.com/robert-malhotra/go-hdfproxy/internal/object"
)

// Dataset is a dataset in an HDF5 file.
type Dataset struct {
	handle
}

// Hyperslab selects Count blocks of Block elements per dimension, the
// first at Start and each next one Stride further. A nil Stride or Block
// means ones. A nil *Hyperslab selects the whole dataset.
type Hyperslab struct {
	Start  []uint64
	Stride []uint64
	Block  []uint64
	Count  []uint64
}

// Box selects count elements starting at start.
func Box(start, count []uint64) *Hyperslab {
	return &Hyperslab{Start: start, Count: count}
}

// NumElements returns the number of selected elements.
func (h *Hyperslab) NumElements() uint64 {
	return h.slab(nil).NumElements()
}

func ones(n int) []uint64 {
	s := make([]uint64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}

func (h *Hyperslab) slab(dims []uint64) layout.Slab {
	if h == nil {
		return layout.FullSlab(dims)
	}
	s := layout.Slab{Start: h.Start, Stride: h.Stride, Block: h.Block, Count: h.Count}
	if s.Stride == nil {
		s.Stride = ones(len(h.Start))
	}
	if s.Block == nil {
		s.Block = ones(len(h.Start))
	}
	return s
}

// DatasetInfo describes a dataset's element type, extent and storage.
type DatasetInfo struct {
	Type    Type
	Dims    []uint64
	Layout  string
	Chunks  []uint64
	Filters []string
}

// NumElements returns the number of elements in the dataset.
func (i *DatasetInfo) NumElements() uint64 {
	n := uint64(1)
	for _, d := range i.Dims {
		n *= d
	}
	return n
}

// OpenDataset opens a dataset by absolute path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if err := f.acquire(false); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	n, err := f.resolveDataset(path)
	if err != nil {
		return nil, err
	}
	return &Dataset{handle{file: f, path: n.path}}, nil
}

func (f *File) resolveDataset(path string) (*node, error) {
	n, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	if !n.header.IsDataset() {
		return nil, fmt.Errorf("%w: %s", ErrNotDataset, n.path)
	}
	return n, nil
}

// CreateDataset creates a dataset of element type t and extent dims at
// path, creating missing parent groups. Datasets are stored contiguously
// unless chunking, compression, shuffle or Fletcher-32 is requested; chunked
// datasets are indexed by a fixed array.
func (f *File) CreateDataset(path string, t Type, dims []uint64, opts ...DatasetOption) (*Dataset, error) {
	options := defaultDatasetOptions()
	for _, opt := range opts {
		opt(options)
	}

	if err := f.acquire(true); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	parentPath, name, err := splitParent(path)
	if err != nil {
		return nil, err
	}
	if t.Variable {
		return nil, fmt.Errorf("%w: variable-length dataset elements", ErrUnsupported)
	}
	dt, err := t.datatype(f.cfg)
	if err != nil {
		return nil, err
	}
	parent, err := f.ensureGroups(parentPath)
	if err != nil {
		return nil, err
	}
	if _, err := f.child(parent, name, 0); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, joinPath(parent.path, name))
	} else if !isNotFound(err) {
		return nil, err
	}

	var space *message.Dataspace
	if len(dims) == 0 {
		space = message.NewScalarDataspace()
	} else {
		space = message.NewSimpleDataspace(dims)
	}
	msgs := []message.Message{space, dt}

	storageMsgs, err := f.allocateStorage(dims, t.Size, options)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, storageMsgs...)

	for _, a := range options.attributes {
		am, err := f.attributeMessage(a.name, a.value)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, am)
	}

	need, err := object.DataSize(msgs, f.cfg)
	if err != nil {
		return nil, err
	}
	addr, err := f.writeHeader(msgs, headerCapacity(need))
	if err != nil {
		return nil, err
	}
	if err := f.addLink(parent, name, addr); err != nil {
		return nil, err
	}

	f.log.Debug().Str("path", joinPath(parent.path, name)).Str("type", t.String()).
		Uints64("dims", dims).Int("compression", options.compressionLvl).Msg("created dataset")
	return &Dataset{handle{file: f, path: joinPath(parent.path, name)}}, nil
}

// allocateStorage reserves the dataset's raw data storage and returns the
// fill value, layout and filter messages describing it.
func (f *File) allocateStorage(dims []uint64, elemSize int, o *datasetOptions) ([]message.Message, error) {
	if !o.chunked() || len(dims) == 0 {
		n := uint64(elemSize)
		for _, d := range dims {
			n *= d
		}
		addr := f.cfg.UndefinedOffset()
		if n > 0 {
			addr = f.space.Alloc(n, alloc.KindData)
		}
		return []message.Message{
			&message.FillValue{AllocTime: message.AllocEarly, WriteTime: message.FillIfSet},
			message.NewContiguousLayout(addr, n),
		}, nil
	}

	chunks := o.chunks
	if chunks == nil {
		chunks = layout.ChooseChunkDims(dims, elemSize, o.chunkBytes)
	}
	if len(chunks) != len(dims) {
		return nil, fmt.Errorf("%w: %d chunk dimensions for rank %d", ErrUnsupported, len(chunks), len(dims))
	}
	chunks = append([]uint64(nil), chunks...)
	for i, c := range chunks {
		if c == 0 {
			return nil, fmt.Errorf("%w: zero chunk dimension %d", ErrUnsupported, i)
		}
		chunks[i] = min(c, max(dims[i], 1))
	}

	pipeline := filter.Spec(o.compressionLvl, o.shuffle, o.fletcher32, elemSize)
	fa, err := layout.CreateFixedArray(f.storage(), dims, chunks, elemSize, pipeline != nil)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	msgs := []message.Message{
		&message.FillValue{AllocTime: message.AllocIncremental, WriteTime: message.FillIfSet},
		message.NewFixedArrayLayout(chunks, uint32(elemSize), fa.PageBits, fa.Address),
	}
	if pipeline != nil {
		msgs = append(msgs, pipeline)
	}
	return msgs, nil
}

// Info returns the dataset's type, extent and storage description.
func (d *Dataset) Info() (*DatasetInfo, error) {
	f := d.file
	if err := f.acquire(false); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	n, err := f.resolveDataset(d.path)
	if err != nil {
		return nil, err
	}
	return datasetInfo(n), nil
}

// DatasetInfo returns the description of the dataset at path.
func (f *File) DatasetInfo(path string) (*DatasetInfo, error) {
	return (&Dataset{handle{file: f, path: path}}).Info()
}

func datasetInfo(n *node) *DatasetInfo {
	h := n.header
	info := &DatasetInfo{Type: typeOf(h.Datatype())}
	if ds := h.Dataspace(); ds != nil {
		info.Dims = append([]uint64(nil), ds.Dims...)
	}
	if lay := h.Layout(); lay != nil {
		info.Layout = lay.Class.String()
		if lay.Class == message.LayoutChunked {
			info.Chunks = append([]uint64(nil), lay.ChunkDims...)
		}
	}
	if fp := h.Pipeline(); fp != nil {
		for _, fi := range fp.Filters {
			info.Filters = append(info.Filters, filter.Name(fi.ID))
		}
	}
	return info
}

// Shape returns the dataset extent.
func (d *Dataset) Shape() ([]uint64, error) {
	info, err := d.Info()
	if err != nil {
		return nil, err
	}
	return info.Dims, nil
}

// ReadSlab reads the selected elements into dst, packed in row-major order
// of the selection. dst must hold exactly the selected elements.
func (d *Dataset) ReadSlab(sel *Hyperslab, dst []byte) error {
	f := d.file
	if err := f.acquire(false); err != nil {
		return err
	}
	defer f.mu.Unlock()

	st, dt, slab, err := f.prepare(d.path, sel)
	if err != nil || st == nil {
		return err
	}
	if err := st.ReadSlab(slab, dst); err != nil {
		return mapStorageErr(err)
	}
	dtype.ToLittleEndian(dt, dst)
	return nil
}

// WriteSlab writes src to the selected elements.
func (d *Dataset) WriteSlab(sel *Hyperslab, src []byte) error {
	f := d.file
	if err := f.acquire(true); err != nil {
		return err
	}
	defer f.mu.Unlock()

	st, dt, slab, err := f.prepare(d.path, sel)
	if err != nil || st == nil {
		return err
	}
	if dt.BigEndian() {
		return fmt.Errorf("%w: writing big-endian dataset %s", ErrUnsupported, d.path)
	}
	if err := st.WriteSlab(slab, src); err != nil {
		return mapStorageErr(err)
	}
	return nil
}

// Read reads the whole dataset into dst.
func (d *Dataset) Read(dst []byte) error { return d.ReadSlab(nil, dst) }

// Write writes the whole dataset from src.
func (d *Dataset) Write(src []byte) error { return d.WriteSlab(nil, src) }

// prepare resolves a dataset and validates the selection against it. A nil
// storage with a nil error means the selection is empty.
func (f *File) prepare(path string, sel *Hyperslab) (layout.Storage, *message.Datatype, layout.Slab, error) {
	n, err := f.resolveDataset(path)
	if err != nil {
		return nil, nil, layout.Slab{}, err
	}
	h := n.header
	dt := h.Datatype()
	t := typeOf(dt)
	if t.Class == ClassOther || t.Variable {
		return nil, nil, layout.Slab{}, fmt.Errorf("%w: %s elements in %s", ErrUnsupported, t, path)
	}
	var dims []uint64
	if ds := h.Dataspace(); ds != nil {
		if ds.Kind == message.SpaceNull {
			return nil, nil, layout.Slab{}, nil
		}
		dims = ds.Dims
	}
	slab := sel.slab(dims)
	if sel == nil && slab.NumElements() == 0 {
		return nil, nil, slab, nil
	}
	if err := slab.Validate(dims); err != nil {
		return nil, nil, slab, mapStorageErr(err)
	}
	st, err := layout.New(f.storage(), h.Layout(), h.Pipeline(), dims, t.Size)
	if err != nil {
		return nil, nil, slab, mapStorageErr(err)
	}
	return st, dt, slab, nil
}

func mapStorageErr(err error) error {
	switch {
	case errors.Is(err, layout.ErrOutOfBounds), errors.Is(err, layout.ErrInvalidSlab):
		return fmt.Errorf("%w: %v", ErrOutOfBounds, err)
	case errors.Is(err, layout.ErrBufferSize):
		return fmt.Errorf("%w: %v", ErrBufferSize, err)
	case errors.Is(err, layout.ErrReadOnly), errors.Is(err, layout.ErrUnsupported), errors.Is(err, filter.ErrUnsupported):
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return err
}
