package etp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend keeps whole arrays in memory.
type memBackend struct {
	mu     sync.Mutex
	arrays map[string]DataArray
	attrs  map[string]AttributeValue
}

func newMemBackend() *memBackend {
	return &memBackend{arrays: map[string]DataArray{}, attrs: map[string]AttributeValue{}}
}

func (b *memBackend) get(uid DataArrayIdentifier) (DataArray, error) {
	arr, ok := b.arrays[uid.PathInResource]
	if !ok {
		return DataArray{}, Errorf(CodeNotFound, "%s not found", uid.PathInResource)
	}
	return arr, nil
}

func (b *memBackend) Metadata(_ context.Context, uid DataArrayIdentifier) (DataArrayMetadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	arr, err := b.get(uid)
	return DataArrayMetadata{Dimensions: arr.Dimensions, LogicalArrayType: arr.Type}, err
}

func (b *memBackend) GetArray(_ context.Context, uid DataArrayIdentifier) (DataArray, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(uid)
}

func (b *memBackend) GetSubarray(_ context.Context, req GetDataSubarraysType) (DataArray, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	arr, err := b.get(req.UID)
	if err != nil {
		return arr, err
	}
	// One-dimensional byte arrays only.
	start, count := req.Starts[0], req.Counts[0]
	if start+count > uint64(len(arr.Data)) {
		return DataArray{}, Errorf(CodeOutOfBounds, "subarray out of bounds")
	}
	return DataArray{Dimensions: req.Counts, Type: arr.Type, Data: arr.Data[start : start+count]}, nil
}

func (b *memBackend) PutUninitialized(_ context.Context, req PutUninitializedDataArrayType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := uint64(1)
	for _, d := range req.Metadata.Dimensions {
		n *= d
	}
	b.arrays[req.UID.PathInResource] = DataArray{Dimensions: req.Metadata.Dimensions, Type: req.Metadata.LogicalArrayType, Data: make([]byte, n)}
	return nil
}

func (b *memBackend) PutArray(_ context.Context, req PutDataArraysType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.arrays[req.UID.PathInResource] = req.Array
	return nil
}

func (b *memBackend) PutSubarray(_ context.Context, req PutDataSubarraysType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	arr, err := b.get(req.UID)
	if err != nil {
		return err
	}
	copy(arr.Data[req.Starts[0]:], req.Data.Data)
	return nil
}

func (b *memBackend) PutAttribute(_ context.Context, uid DataArrayIdentifier, name string, v AttributeValue) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attrs[uid.PathInResource+"@"+name] = v
	return nil
}

func (b *memBackend) GetAttribute(_ context.Context, uid DataArrayIdentifier, name string) (AttributeValue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.attrs[uid.PathInResource+"@"+name]
	if !ok {
		return v, Errorf(CodeNotFound, "attribute %s not found", name)
	}
	return v, nil
}

func (b *memBackend) Exists(_ context.Context, uid DataArrayIdentifier) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.arrays[uid.PathInResource]
	return ok, nil
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startServer(t *testing.T, opts ...ServerOption) (*Client, *Server) {
	t.Helper()
	s := NewServer(newMemBackend(), opts...)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL(srv), WithApplication("etp-test", "0.1"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, s
}

func uid(path string) DataArrayIdentifier {
	return DataArrayIdentifier{URI: "eml:///", PathInResource: path}
}

func TestFrameRoundTrip(t *testing.T) {
	req := &GetDataSubarrays{DataSubarrays: map[string]GetDataSubarraysType{
		"0": {UID: uid("/RESQML/g/d"), Starts: []uint64{1, 0}, Counts: []uint64{2, 1}},
	}}
	data, err := encodeFrame(Header{MessageID: 7, MessageFlags: FlagFinalPart}, req)
	require.NoError(t, err)

	f, err := decodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, ProtocolDataArray, f.Protocol)
	assert.Equal(t, MsgGetDataSubarrays, f.MessageType)
	assert.Equal(t, int64(7), f.MessageID)

	var got GetDataSubarrays
	require.NoError(t, f.decode(&got))
	assert.Equal(t, req.DataSubarrays["0"].Starts, got.DataSubarrays["0"].Starts)
	assert.Equal(t, "/RESQML/g/d", got.DataSubarrays["0"].UID.PathInResource)
	assert.Empty(t, got.DataSubarrays["0"].Strides)

	var wrong GetDataArrays
	assert.ErrorIs(t, f.decode(&wrong), ErrUnexpectedMessage)

	_, err = decodeFrame([]byte{0xc1})
	assert.ErrorIs(t, err, ErrUnexpectedMessage)
}

func TestClientServerRoundTrip(t *testing.T) {
	c, _ := startServer(t)
	ctx := context.Background()
	assert.NotEmpty(t, c.SessionID())
	assert.True(t, c.Alive())

	put := &PutDataArrays{DataArrays: map[string]PutDataArraysType{
		"0": {UID: uid("/a"), Array: DataArray{Dimensions: []uint64{4}, Type: ArrayOfUInt8, Data: []byte{1, 2, 3, 4}}},
	}}
	var putResp PutDataArraysResponse
	require.NoError(t, c.Call(ctx, put, &putResp))
	assert.Contains(t, putResp.Success, "0")

	var md GetDataArrayMetadataResponse
	require.NoError(t, c.Call(ctx, &GetDataArrayMetadata{DataArrays: map[string]DataArrayIdentifier{"x": uid("/a")}}, &md))
	assert.Equal(t, []uint64{4}, md.ArrayMetadata["x"].Dimensions)
	assert.Equal(t, ArrayOfUInt8, md.ArrayMetadata["x"].LogicalArrayType)

	sub := &PutDataSubarrays{DataSubarrays: map[string]PutDataSubarraysType{
		"0": {UID: uid("/a"), Data: DataArray{Dimensions: []uint64{2}, Type: ArrayOfUInt8, Data: []byte{9, 9}}, Starts: []uint64{1}, Counts: []uint64{2}},
	}}
	var subResp PutDataSubarraysResponse
	require.NoError(t, c.Call(ctx, sub, &subResp))

	var got GetDataSubarraysResponse
	require.NoError(t, c.Call(ctx, &GetDataSubarrays{DataSubarrays: map[string]GetDataSubarraysType{
		"0": {UID: uid("/a"), Starts: []uint64{0}, Counts: []uint64{3}},
	}}, &got))
	assert.Equal(t, []byte{1, 9, 9}, got.DataSubarrays["0"].Data)

	var ex ExistsResponse
	require.NoError(t, c.Call(ctx, &Exists{UID: uid("/a")}, &ex))
	assert.True(t, ex.Exists)
	require.NoError(t, c.Call(ctx, &Exists{UID: uid("/b")}, &ex))
	assert.False(t, ex.Exists)

	var pa PutAttributesResponse
	require.NoError(t, c.Call(ctx, &PutAttributes{UID: uid("/a"), Attributes: map[string]AttributeValue{
		"units": {Kind: AttributeString, String: "m"},
	}}, &pa))
	var ga GetAttributeResponse
	require.NoError(t, c.Call(ctx, &GetAttribute{UID: uid("/a"), Name: "units"}, &ga))
	assert.Equal(t, "m", ga.Value.String)
}

func TestServerNameAndReadLimit(t *testing.T) {
	srv := httptest.NewServer(NewServer(newMemBackend(), WithServerName("unit-server")))
	t.Cleanup(srv.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv))
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "unit-server", c.ServerName())

	put := &PutDataArrays{DataArrays: map[string]PutDataArraysType{
		"0": {UID: uid("/big"), Array: DataArray{Dimensions: []uint64{4096}, Type: ArrayOfUInt8, Data: make([]byte, 4096)}},
	}}
	require.NoError(t, c.Call(ctx, put, &PutDataArraysResponse{}))

	small, err := Dial(ctx, wsURL(srv), WithReadLimit(1024))
	require.NoError(t, err)
	defer small.Close()
	var resp GetDataArraysResponse
	err = small.Call(ctx, &GetDataArrays{DataArrays: map[string]DataArrayIdentifier{"0": uid("/big")}}, &resp)
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, small.Alive())
}

func TestClientServerErrors(t *testing.T) {
	c, _ := startServer(t)
	ctx := context.Background()

	var arrays GetDataArraysResponse
	err := c.Call(ctx, &GetDataArrays{DataArrays: map[string]DataArrayIdentifier{"0": uid("/missing")}}, &arrays)
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, CodeOf(err))

	var ga GetAttributeResponse
	err = c.Call(ctx, &GetAttribute{UID: uid("/a"), Name: "none"}, &ga)
	assert.Equal(t, CodeNotFound, CodeOf(err))

	// A core message the server does not accept mid-session.
	var open OpenSession
	err = c.Call(ctx, &RequestSession{ApplicationName: "again"}, &open)
	assert.Equal(t, CodeInvalidState, CodeOf(err))

	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.True(t, c.Alive(), "errors must not drop the connection")
}

func TestServerRequiresSession(t *testing.T) {
	srv := httptest.NewServer(NewServer(newMemBackend()))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer ws.Close()

	data, err := encodeFrame(Header{MessageID: 1}, &Exists{UID: uid("/a")})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, data))

	_, reply, err := ws.ReadMessage()
	require.NoError(t, err)
	f, err := decodeFrame(reply)
	require.NoError(t, err)
	require.True(t, f.isException())
	assert.Equal(t, int64(1), f.CorrelationID)
	assert.Equal(t, CodeInvalidState, CodeOf(f.exception()))
}

func TestServerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, s := startServer(t, WithRegisterer(reg))

	var ex ExistsResponse
	require.NoError(t, c.Call(context.Background(), &Exists{UID: uid("/a")}, &ex))
	var arrays GetDataArraysResponse
	require.Error(t, c.Call(context.Background(), &GetDataArrays{DataArrays: map[string]DataArrayIdentifier{"0": uid("/a")}}, &arrays))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("RequestSession", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("Exists", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("GetDataArrays", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.sessions))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := Dial(ctx, url, WithDialRetries(2, time.Millisecond))
	require.Error(t, err)
}

func TestDialBadHandshakeIsNotRetried(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), wsURL(srv), WithDialRetries(5, time.Millisecond))
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits)
}

// dropServer opens a session and drops the connection on the next request.
func dropServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			f, err := decodeFrame(data)
			if err != nil {
				return
			}
			if f.MessageType != MsgRequestSession {
				return
			}
			reply, _ := encodeFrame(Header{CorrelationID: f.MessageID, MessageID: 1}, &OpenSession{SessionID: "s"})
			ws.WriteMessage(websocket.BinaryMessage, reply)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConnectionLoss(t *testing.T) {
	srv := dropServer(t)
	c, err := Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	assert.Equal(t, "s", c.SessionID())

	var ex ExistsResponse
	err = c.Call(context.Background(), &Exists{UID: uid("/a")}, &ex)
	require.ErrorIs(t, err, ErrClosed)

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not notice the lost connection")
	}
	assert.False(t, c.Alive())
	assert.ErrorIs(t, c.Call(context.Background(), &Exists{UID: uid("/a")}, &ex), ErrClosed)
	assert.NoError(t, c.Close())
}

func TestCallContextTimeout(t *testing.T) {
	// The server never answers anything after the handshake.
	upgrader := websocket.Upgrader{}
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		f, _ := decodeFrame(data)
		reply, _ := encodeFrame(Header{CorrelationID: f.MessageID, MessageID: 1}, &OpenSession{SessionID: "s"})
		ws.WriteMessage(websocket.BinaryMessage, reply)
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c, err := Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var ex ExistsResponse
	require.ErrorIs(t, c.Call(ctx, &Exists{UID: uid("/a")}, &ex), context.DeadlineExceeded)
	assert.True(t, c.Alive())
}
