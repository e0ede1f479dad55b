package proxy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-hdfproxy/internal/etp"
	"github.com/robert-malhotra/go-hdfproxy/pkg/logging"
)

// ResourceURI is the container URI sent with every remote array identifier.
const ResourceURI = "eml:///"

// RemoteSession stores arrays in a container served over the DataArray
// protocol. Every operation is one blocking request/response exchange.
type RemoteSession struct {
	endpoint string
	opts     []etp.ClientOption
	log      zerolog.Logger

	mu     sync.Mutex
	client *etp.Client
}

// NewRemoteSession returns a closed session for a websocket endpoint such
// as ws://host:port/etp.
func NewRemoteSession(endpoint string, opts ...etp.ClientOption) *RemoteSession {
	return &RemoteSession{
		endpoint: endpoint,
		opts:     opts,
		log:      logging.WithComponent("remote-session").With().Str("endpoint", endpoint).Logger(),
	}
}

// Endpoint returns the websocket endpoint.
func (s *RemoteSession) Endpoint() string { return s.endpoint }

// Open dials the endpoint and opens a protocol session. It fails with
// ErrConnection when the transport cannot be established.
func (s *RemoteSession) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.client.Alive() {
		return nil
	}
	c, err := etp.Dial(ctx, s.endpoint, s.opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	s.client = c
	s.log.Info().Str("session", c.SessionID()).Msg("session opened")
	return nil
}

// IsOpened reports whether the transport is up.
func (s *RemoteSession) IsOpened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.client.Alive()
}

func (s *RemoteSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *RemoteSession) call(ctx context.Context, req, resp etp.Message) error {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil || !c.Alive() {
		return fmt.Errorf("%w: %s", ErrClosedContainer, s.endpoint)
	}
	if err := c.Call(ctx, req, resp); err != nil {
		return remoteErr(err)
	}
	return nil
}

func uid(path string) etp.DataArrayIdentifier {
	return etp.DataArrayIdentifier{URI: ResourceURI, PathInResource: path}
}

func (s *RemoteSession) CreateDataset(ctx context.Context, path string, dt Datatype, extent []uint64, compression int) error {
	at, err := ArrayTypeOf(dt)
	if err != nil {
		return err
	}
	req := &etp.PutUninitializedDataArrays{DataArrays: map[string]etp.PutUninitializedDataArrayType{
		"0": {UID: uid(path), Metadata: etp.DataArrayMetadata{
			Dimensions:       extent,
			LogicalArrayType: at,
			CompressionLevel: compression,
		}},
	}}
	return s.call(ctx, req, &etp.PutUninitializedDataArraysResponse{})
}

func (s *RemoteSession) WriteSlab(ctx context.Context, path string, dt Datatype, slab *Hyperslab, data []byte) error {
	at, err := ArrayTypeOf(dt)
	if err != nil {
		return err
	}
	if slab == nil {
		req := &etp.PutDataArrays{DataArrays: map[string]etp.PutDataArraysType{
			"0": {UID: uid(path), Array: etp.DataArray{
				Dimensions: []uint64{uint64(len(data) / dt.Size())},
				Type:       at,
				Data:       data,
			}},
		}}
		return s.call(ctx, req, &etp.PutDataArraysResponse{})
	}
	req := &etp.PutDataSubarrays{DataSubarrays: map[string]etp.PutDataSubarraysType{
		"0": {
			UID:     uid(path),
			Data:    etp.DataArray{Dimensions: slab.Dims(), Type: at, Data: data},
			Starts:  slab.Offset,
			Counts:  slab.Count,
			Strides: slab.Stride,
			Blocks:  slab.Block,
		},
	}}
	return s.call(ctx, req, &etp.PutDataSubarraysResponse{})
}

func (s *RemoteSession) ReadSlab(ctx context.Context, path string, dt Datatype, slab *Hyperslab, dst []byte) error {
	var arr etp.DataArray
	if slab == nil {
		var resp etp.GetDataArraysResponse
		req := &etp.GetDataArrays{DataArrays: map[string]etp.DataArrayIdentifier{"0": uid(path)}}
		if err := s.call(ctx, req, &resp); err != nil {
			return err
		}
		arr = resp.DataArrays["0"]
	} else {
		var resp etp.GetDataSubarraysResponse
		req := &etp.GetDataSubarrays{DataSubarrays: map[string]etp.GetDataSubarraysType{
			"0": {UID: uid(path), Starts: slab.Offset, Counts: slab.Count, Strides: slab.Stride, Blocks: slab.Block},
		}}
		if err := s.call(ctx, req, &resp); err != nil {
			return err
		}
		arr = resp.DataSubarrays["0"]
	}
	got, err := DatatypeOfArrayType(arr.Type)
	if err != nil {
		return err
	}
	if got != dt {
		return fmt.Errorf("%w: %s is %s, buffer is %s", ErrTypeMismatch, path, got, dt)
	}
	if len(arr.Data) != len(dst) {
		return fmt.Errorf("%w: received %d bytes for a %d byte buffer", ErrBufferSize, len(arr.Data), len(dst))
	}
	copy(dst, arr.Data)
	return nil
}

func (s *RemoteSession) DatasetInfo(ctx context.Context, path string) (DatasetInfo, error) {
	var resp etp.GetDataArrayMetadataResponse
	req := &etp.GetDataArrayMetadata{DataArrays: map[string]etp.DataArrayIdentifier{"0": uid(path)}}
	if err := s.call(ctx, req, &resp); err != nil {
		return DatasetInfo{}, err
	}
	md, ok := resp.ArrayMetadata["0"]
	if !ok {
		return DatasetInfo{}, fmt.Errorf("%w: no metadata for %s", ErrNotFound, path)
	}
	dt, err := DatatypeOfArrayType(md.LogicalArrayType)
	if err != nil {
		return DatasetInfo{}, err
	}
	return DatasetInfo{Type: dt, Extent: md.Dimensions}, nil
}

func (s *RemoteSession) Exists(ctx context.Context, path string) (bool, error) {
	var resp etp.ExistsResponse
	if err := s.call(ctx, &etp.Exists{UID: uid(path)}, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

func (s *RemoteSession) WriteAttribute(ctx context.Context, path, name string, value any) error {
	v, err := attributeValueOf(value)
	if err != nil {
		return err
	}
	req := &etp.PutAttributes{UID: uid(path), Attributes: map[string]etp.AttributeValue{name: v}}
	return s.call(ctx, req, &etp.PutAttributesResponse{})
}

func (s *RemoteSession) ReadAttribute(ctx context.Context, path, name string) (any, error) {
	var resp etp.GetAttributeResponse
	if err := s.call(ctx, &etp.GetAttribute{UID: uid(path), Name: name}, &resp); err != nil {
		return nil, err
	}
	return valueOfAttribute(resp.Value)
}

// remoteErr translates protocol errors to proxy errors.
func remoteErr(err error) error {
	var info *etp.ErrorInfo
	if errors.As(err, &info) {
		var kind error
		switch info.Code {
		case etp.CodeNotFound:
			kind = ErrNotFound
		case etp.CodeAlreadyExists:
			kind = ErrAlreadyExists
		case etp.CodeOutOfBounds:
			kind = ErrSelectionOutOfBounds
		case etp.CodeTypeMismatch:
			kind = ErrTypeMismatch
		case etp.CodeUnsupportedType:
			kind = ErrUnsupportedType
		case etp.CodeBufferSize:
			kind = ErrBufferSize
		case etp.CodeInvalidArgument:
			kind = ErrInvalidName
		default:
			return err
		}
		return fmt.Errorf("%w: %s", kind, info.Message)
	}
	if errors.Is(err, etp.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return err
}
