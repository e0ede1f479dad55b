package proxy

import (
	"context"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/etp"
)

// Backend serves a Session, usually a LocalSession, to remote clients. It
// implements etp.Backend.
type Backend struct {
	session Session
}

var _ etp.Backend = (*Backend)(nil)

// NewBackend returns a backend over s. The session must be open.
func NewBackend(s Session) *Backend {
	return &Backend{session: s}
}

func (b *Backend) Metadata(ctx context.Context, id etp.DataArrayIdentifier) (etp.DataArrayMetadata, error) {
	info, err := b.session.DatasetInfo(ctx, id.PathInResource)
	if err != nil {
		return etp.DataArrayMetadata{}, wireErr(err)
	}
	at, err := ArrayTypeOf(info.Type)
	if err != nil {
		return etp.DataArrayMetadata{}, wireErr(err)
	}
	return etp.DataArrayMetadata{
		Dimensions:       info.Extent,
		LogicalArrayType: at,
		StorageClass:     info.Type.Class().String(),
	}, nil
}

func (b *Backend) GetArray(ctx context.Context, id etp.DataArrayIdentifier) (etp.DataArray, error) {
	return b.read(ctx, id.PathInResource, nil, nil, nil, nil)
}

func (b *Backend) GetSubarray(ctx context.Context, req etp.GetDataSubarraysType) (etp.DataArray, error) {
	return b.read(ctx, req.UID.PathInResource, req.Starts, orOnes(req.Strides), orOnes(req.Blocks), req.Counts)
}

// read reads a selection, or the whole dataset when offset is nil.
func (b *Backend) read(ctx context.Context, path string, offset, stride, block, count []uint64) (etp.DataArray, error) {
	info, err := b.session.DatasetInfo(ctx, path)
	if err != nil {
		return etp.DataArray{}, wireErr(err)
	}
	at, err := ArrayTypeOf(info.Type)
	if err != nil {
		return etp.DataArray{}, wireErr(err)
	}
	var slab *Hyperslab
	dims := info.Extent
	if offset != nil {
		if slab, err = NewHyperslab(info.Extent, offset, stride, block, count); err != nil {
			return etp.DataArray{}, wireErr(err)
		}
		if slab != nil {
			dims = slab.Dims()
		}
	}
	data := make([]byte, int(product(dims))*info.Type.Size())
	if err := b.session.ReadSlab(ctx, path, info.Type, slab, data); err != nil {
		return etp.DataArray{}, wireErr(err)
	}
	return etp.DataArray{Dimensions: dims, Type: at, Data: data}, nil
}

func (b *Backend) PutUninitialized(ctx context.Context, req etp.PutUninitializedDataArrayType) error {
	dt, err := DatatypeOfArrayType(req.Metadata.LogicalArrayType)
	if err != nil {
		return wireErr(err)
	}
	return wireErr(b.session.CreateDataset(ctx, req.UID.PathInResource, dt,
		req.Metadata.Dimensions, req.Metadata.CompressionLevel))
}

func (b *Backend) PutArray(ctx context.Context, req etp.PutDataArraysType) error {
	dt, err := DatatypeOfArrayType(req.Array.Type)
	if err != nil {
		return wireErr(err)
	}
	return wireErr(b.session.WriteSlab(ctx, req.UID.PathInResource, dt, nil, req.Array.Data))
}

func (b *Backend) PutSubarray(ctx context.Context, req etp.PutDataSubarraysType) error {
	dt, err := DatatypeOfArrayType(req.Data.Type)
	if err != nil {
		return wireErr(err)
	}
	path := req.UID.PathInResource
	info, err := b.session.DatasetInfo(ctx, path)
	if err != nil {
		return wireErr(err)
	}
	slab, err := NewHyperslab(info.Extent, req.Starts, orOnes(req.Strides), orOnes(req.Blocks), req.Counts)
	if err != nil {
		return wireErr(err)
	}
	return wireErr(b.session.WriteSlab(ctx, path, dt, slab, req.Data.Data))
}

func (b *Backend) PutAttribute(ctx context.Context, id etp.DataArrayIdentifier, name string, value etp.AttributeValue) error {
	v, err := valueOfAttribute(value)
	if err != nil {
		return wireErr(err)
	}
	return wireErr(b.session.WriteAttribute(ctx, id.PathInResource, name, v))
}

func (b *Backend) GetAttribute(ctx context.Context, id etp.DataArrayIdentifier, name string) (etp.AttributeValue, error) {
	v, err := b.session.ReadAttribute(ctx, id.PathInResource, name)
	if err != nil {
		return etp.AttributeValue{}, wireErr(err)
	}
	av, err := attributeValueOf(v)
	return av, wireErr(err)
}

func (b *Backend) Exists(ctx context.Context, id etp.DataArrayIdentifier) (bool, error) {
	ok, err := b.session.Exists(ctx, id.PathInResource)
	return ok, wireErr(err)
}

// orOnes maps an empty wire slice to nil, which selections read as ones.
func orOnes(s []uint64) []uint64 {
	if len(s) == 0 {
		return nil
	}
	return s
}

// wireErr translates proxy errors to protocol exceptions.
func wireErr(err error) error {
	if err == nil {
		return nil
	}
	code := etp.CodeInternal
	switch {
	case errors.Is(err, ErrNotFound):
		code = etp.CodeNotFound
	case errors.Is(err, ErrAlreadyExists):
		code = etp.CodeAlreadyExists
	case errors.Is(err, ErrSelectionOutOfBounds):
		code = etp.CodeOutOfBounds
	case errors.Is(err, ErrTypeMismatch):
		code = etp.CodeTypeMismatch
	case errors.Is(err, ErrUnsupportedType):
		code = etp.CodeUnsupportedType
	case errors.Is(err, ErrBufferSize):
		code = etp.CodeBufferSize
	case errors.Is(err, ErrInvalidName):
		code = etp.CodeInvalidArgument
	case errors.Is(err, ErrClosedContainer):
		code = etp.CodeInvalidState
	}
	return etp.Errorf(code, "%v", err)
}

func attributeValueOf(v any) (etp.AttributeValue, error) {
	switch v := v.(type) {
	case string:
		return etp.AttributeValue{Kind: etp.AttributeString, String: v}, nil
	case []string:
		return etp.AttributeValue{Kind: etp.AttributeStrings, Strings: v}, nil
	case float64:
		return etp.AttributeValue{Kind: etp.AttributeDouble, Doubles: []float64{v}}, nil
	case []float64:
		return etp.AttributeValue{Kind: etp.AttributeDoubles, Doubles: v}, nil
	case int64:
		return etp.AttributeValue{Kind: etp.AttributeLong, Longs: []int64{v}}, nil
	case []int64:
		return etp.AttributeValue{Kind: etp.AttributeLongs, Longs: v}, nil
	}
	return etp.AttributeValue{}, fmt.Errorf("%w: attribute value of type %T", ErrUnsupportedType, v)
}

func valueOfAttribute(v etp.AttributeValue) (any, error) {
	switch v.Kind {
	case etp.AttributeString:
		return v.String, nil
	case etp.AttributeStrings:
		if v.Strings == nil {
			return []string{}, nil
		}
		return v.Strings, nil
	case etp.AttributeDouble:
		if len(v.Doubles) == 1 {
			return v.Doubles[0], nil
		}
	case etp.AttributeLong:
		if len(v.Longs) == 1 {
			return v.Longs[0], nil
		}
	case etp.AttributeDoubles:
		if v.Doubles == nil {
			return []float64{}, nil
		}
		return v.Doubles, nil
	case etp.AttributeLongs:
		if v.Longs == nil {
			return []int64{}, nil
		}
		return v.Longs, nil
	}
	return nil, fmt.Errorf("%w: malformed attribute value of kind %d", ErrUnsupportedType, v.Kind)
}
