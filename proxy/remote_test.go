package proxy

import (
	"context"
	"net"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-hdfproxy/internal/etp"
)

// trackingListener remembers accepted connections so a test can cut them.
type trackingListener struct {
	net.Listener
	mu    sync.Mutex
	conns []net.Conn
}

func (l *trackingListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err == nil {
		l.mu.Lock()
		l.conns = append(l.conns, c)
		l.mu.Unlock()
	}
	return c, err
}

func (l *trackingListener) drop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.conns {
		c.Close()
	}
}

type remoteFixture struct {
	proxy    *Proxy
	local    *LocalSession
	listener *trackingListener
	url      string
}

// startRemote serves a local file over websocket and opens a remote proxy
// on it.
func startRemote(t *testing.T, opts ...Option) *remoteFixture {
	t.Helper()
	ctx := context.Background()

	local := NewLocalSession(filepath.Join(t.TempDir(), "served.h5"))
	require.NoError(t, local.Open(ctx))
	t.Cleanup(func() { local.Close() })

	srv := httptest.NewUnstartedServer(etp.NewServer(NewBackend(local)))
	l := &trackingListener{Listener: srv.Listener}
	srv.Listener = l
	srv.Start()
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	p, err := OpenRemote(ctx, url, []etp.ClientOption{etp.WithApplication("proxy-test", "0.1")}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return &remoteFixture{proxy: p, local: local, listener: l, url: url}
}

func TestRemoteScenario(t *testing.T) {
	ctx := context.Background()
	p := startRemote(t).proxy
	require.True(t, p.IsOpened())

	ok, err := p.Exists(ctx, "grid/pressure")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, WriteArray(ctx, p, "grid", "pressure", sequence(6), []uint64{3, 2}))

	ok, err = p.Exists(ctx, "grid/pressure")
	require.NoError(t, err)
	assert.True(t, ok)

	whole := make([]float64, 6)
	require.NoError(t, ReadArray(ctx, p, "grid", "pressure", whole))
	assert.Equal(t, sequence(6), whole)

	slab := make([]float64, 2)
	require.NoError(t, ReadArraySlab(ctx, p, "grid", "pressure", slab, []uint64{2, 1}, []uint64{1, 0}))
	assert.Equal(t, []float64{1, 2}, slab)

	extent, err := p.Extent(ctx, "grid", "pressure")
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2}, extent)

	ok, err = p.Exists(ctx, "grid/pressure")
	require.NoError(t, err)
	assert.True(t, ok, "reads must not remove datasets")
}

func TestRemoteRoundTripTypes(t *testing.T) {
	p := startRemote(t).proxy
	roundTrip(t, p, "int8", func(i int) int8 { return int8(-i) })
	roundTrip(t, p, "uint16", func(i int) uint16 { return uint16(i * 1000) })
	roundTrip(t, p, "int64", func(i int) int64 { return -int64(i) << 50 })
	roundTrip(t, p, "float32", func(i int) float32 { return float32(i) / 8 })
}

func TestRemoteSlabsAndSelections(t *testing.T) {
	ctx := context.Background()
	p := startRemote(t, WithCompression(3)).proxy

	require.NoError(t, WriteArray(ctx, p, "g", "cube", sequence(24), []uint64{4, 3, 2}))
	got := make([]float64, 4)
	require.NoError(t, ReadArraySlab(ctx, p, "g", "cube", got, []uint64{2, 2, 1}, []uint64{2, 1, 1}))
	assert.Equal(t, []float64{18, 19, 22, 23}, got)

	require.NoError(t, WriteArraySlab(ctx, p, "g", "cube", []float64{-1, -2}, []uint64{1, 1, 2}, []uint64{0, 0, 0}))
	all := make([]float64, 24)
	require.NoError(t, ReadArray(ctx, p, "g", "cube", all))
	assert.Equal(t, -1.0, all[0])
	assert.Equal(t, -2.0, all[12])

	strided := make([]float64, 6)
	require.NoError(t, p.ReadSlabGeneral(ctx, "g", "cube", BufferOf(strided),
		[]uint64{1, 0, 1}, []uint64{2, 1, 1}, nil, []uint64{2, 3, 1}))
	assert.Equal(t, []float64{13, 15, 17, 19, 21, 23}, strided)

	overlap := make([]float64, 4)
	require.NoError(t, p.ReadSlabGeneral(ctx, "g", "cube", BufferOf(overlap),
		[]uint64{1, 0, 1}, []uint64{1, 1, 1}, []uint64{2, 1, 1}, []uint64{2, 1, 1}, AllowOverlap()))
	assert.Equal(t, []float64{13, 14, 14, 15}, overlap)

	sel, err := p.Select(ctx, "g", "cube", []uint64{0, 2, 0}, nil, []uint64{4, 1, 1}, []uint64{1, 1, 1})
	require.NoError(t, err)
	row := make([]float64, 4)
	require.NoError(t, p.ReadBySelection(ctx, sel, BufferOf(row), 4))
	assert.Equal(t, []float64{8, 9, 10, 11}, row)
}

func TestRemoteErrors(t *testing.T) {
	ctx := context.Background()
	f := startRemote(t)
	p := f.proxy

	require.NoError(t, CreateArray[int32](ctx, p, "g", "a", []uint64{3}))
	assert.ErrorIs(t, CreateArray[int32](ctx, p, "g", "a", []uint64{3}), ErrAlreadyExists)
	assert.ErrorIs(t, ReadArray(ctx, p, "g", "missing", make([]int32, 3)), ErrNotFound)
	assert.ErrorIs(t, WriteArraySlab(ctx, p, "g", "a", []int32{1, 2}, []uint64{2}, []uint64{2}), ErrSelectionOutOfBounds)
	assert.ErrorIs(t, ReadArray(ctx, p, "g", "a", make([]float64, 3)), ErrTypeMismatch)

	// Checks the server repeats when a client skips the proxy.
	rs := p.Session().(*RemoteSession)
	bad := &Hyperslab{Offset: []uint64{2}, Stride: []uint64{1}, Block: []uint64{2}, Count: []uint64{1}}
	assert.ErrorIs(t, rs.WriteSlab(ctx, "/RESQML/g/a", Int32, bad, make([]byte, 8)), ErrSelectionOutOfBounds)
	assert.ErrorIs(t, rs.WriteSlab(ctx, "/RESQML/g/a", Float32, nil, make([]byte, 12)), ErrTypeMismatch)
	assert.ErrorIs(t, rs.CreateDataset(ctx, "/RESQML/g/s", VarString, []uint64{1}, 0), ErrUnsupportedType)
	assert.ErrorIs(t, rs.WriteSlab(ctx, "/RESQML/g/a", Int32, nil, make([]byte, 8)), ErrBufferSize)

	// A stride whose product wraps 64 bits must not alias element 0.
	require.NoError(t, WriteArray(ctx, p, "g", "a", []int32{7, 8, 9}, []uint64{3}))
	wrap := &Hyperslab{Offset: []uint64{0}, Stride: []uint64{1 << 63}, Block: []uint64{1}, Count: []uint64{3}}
	assert.ErrorIs(t, rs.WriteSlab(ctx, "/RESQML/g/a", Int32, wrap, make([]byte, 12)), ErrSelectionOutOfBounds)
	assert.ErrorIs(t, rs.ReadSlab(ctx, "/RESQML/g/a", Int32, wrap, make([]byte, 12)), ErrSelectionOutOfBounds)
	got := make([]int32, 3)
	require.NoError(t, ReadArray(ctx, p, "g", "a", got))
	assert.Equal(t, []int32{7, 8, 9}, got)
}

func TestRemoteItemizedAndAttributes(t *testing.T) {
	ctx := context.Background()
	p := startRemote(t).proxy

	cum := BuildCumulativeLengths([]int{2, 0, 3})
	require.NoError(t, p.WriteItemizedList(ctx, "g", "faces", cum, BufferOf([]uint32{1, 2, 3, 4, 5})))
	l, err := p.ReadItemizedList(ctx, "g", "faces")
	require.NoError(t, err)
	lists, err := ListsOf[uint32](l)
	require.NoError(t, err)
	assert.Equal(t, [][]uint32{{1, 2}, {}, {3, 4, 5}}, lists)

	require.NoError(t, p.WriteStringAttributes(ctx, "g", []string{"uom"}, []string{"m"}))
	require.NoError(t, p.WriteFloat64Attributes(ctx, "g/faces_elements", []string{"scale"}, []float64{0.5}))
	require.NoError(t, p.WriteIntAttributes(ctx, "g", []string{"n"}, []int{-3}))
	require.NoError(t, p.WriteStringArrayAttribute(ctx, "g", "names", []string{"a", "b"}))
	require.NoError(t, p.WriteStringArrayAttribute(ctx, "g", "none", nil))

	s, err := p.ReadStringAttribute(ctx, "g", "uom")
	require.NoError(t, err)
	assert.Equal(t, "m", s)
	v, err := p.ReadFloat64Attribute(ctx, "g/faces_elements", "scale")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
	n, err := p.ReadIntAttribute(ctx, "g", "n")
	require.NoError(t, err)
	assert.Equal(t, -3, n)
	names, err := p.ReadStringArrayAttribute(ctx, "g", "names")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
	none, err := p.ReadStringArrayAttribute(ctx, "g", "none")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = p.ReadStringAttribute(ctx, "g", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoteConnectionLoss(t *testing.T) {
	ctx := context.Background()
	f := startRemote(t)
	p := f.proxy
	require.NoError(t, WriteArray(ctx, p, "g", "a", sequence(3), []uint64{3}))

	f.listener.drop()
	require.Eventually(t, func() bool { return !p.IsOpened() }, 5*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, ReadArray(ctx, p, "g", "a", make([]float64, 3)), ErrClosedContainer)
	_, err := p.Exists(ctx, "g/a")
	assert.ErrorIs(t, err, ErrClosedContainer)
	assert.ErrorIs(t, p.WriteStringAttributes(ctx, "g", []string{"k"}, []string{"v"}), ErrClosedContainer)

	// The server's data survives and a new session can read it.
	require.NoError(t, p.Open(ctx))
	got := make([]float64, 3)
	require.NoError(t, ReadArray(ctx, p, "g", "a", got))
	assert.Equal(t, sequence(3), got)
}

func TestRemoteClose(t *testing.T) {
	ctx := context.Background()
	p := startRemote(t).proxy
	require.NoError(t, p.Close())
	assert.False(t, p.IsOpened())
	assert.ErrorIs(t, CreateArray[int8](ctx, p, "g", "a", []uint64{1}), ErrClosedContainer)
	require.NoError(t, p.Close())
}

func TestRemoteDialFailure(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := OpenRemote(ctx, url, []etp.ClientOption{etp.WithDialRetries(1, time.Millisecond)})
	assert.ErrorIs(t, err, ErrConnection)

	s := NewRemoteSession(url, etp.WithDialRetries(0, time.Millisecond))
	assert.ErrorIs(t, s.Open(ctx), ErrConnection)
	assert.False(t, s.IsOpened())
}
