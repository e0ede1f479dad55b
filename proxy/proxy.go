package proxy

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-hdfproxy/hdf5"
	"github.com/robert-malhotra/go-hdfproxy/internal/etp"
	"github.com/robert-malhotra/go-hdfproxy/pkg/logging"
)

// Namespace is the group every array group lives under.
const Namespace = "/RESQML"

// Option configures New.
type Option func(*Proxy)

// WithCompression sets the deflate level of datasets created by the proxy.
// Levels are clamped to 0..9; 0 stores data uncompressed.
func WithCompression(level int) Option {
	return func(p *Proxy) {
		p.compression = clampLevel(level)
	}
}

func clampLevel(level int) int {
	return min(max(level, 0), 9)
}

// Proxy reads and writes arrays and attributes through one Session. A
// Proxy is used by one goroutine at a time.
type Proxy struct {
	session     Session
	compression int
	log         zerolog.Logger
}

// New returns a proxy over s. The session is not opened.
func New(s Session, opts ...Option) *Proxy {
	p := &Proxy{session: s, log: logging.WithComponent("proxy")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OpenLocal opens a proxy over the HDF5 file at path, creating the file if
// needed.
func OpenLocal(ctx context.Context, path string, opts ...Option) (*Proxy, error) {
	p := New(NewLocalSession(path), opts...)
	if err := p.Open(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// OpenRemote opens a proxy over a remote container.
func OpenRemote(ctx context.Context, endpoint string, clientOpts []etp.ClientOption, opts ...Option) (*Proxy, error) {
	p := New(NewRemoteSession(endpoint, clientOpts...), opts...)
	if err := p.Open(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Session returns the proxy's backend.
func (p *Proxy) Session() Session { return p.session }

// Compression returns the default deflate level.
func (p *Proxy) Compression() int { return p.compression }

// Open opens the backend.
func (p *Proxy) Open(ctx context.Context) error {
	if err := p.session.Open(ctx); err != nil {
		p.log.Warn().Err(err).Msg("open failed")
		return err
	}
	return nil
}

// IsOpened reports whether the backend is usable.
func (p *Proxy) IsOpened() bool { return p.session.IsOpened() }

// Close releases the backend. Later calls fail with ErrClosedContainer.
func (p *Proxy) Close() error {
	return p.session.Close()
}

// ready fails fast when the backend is not open.
func (p *Proxy) ready() error {
	if !p.session.IsOpened() {
		return ErrClosedContainer
	}
	return nil
}

// GroupPath returns the path of an array group.
func GroupPath(group string) (string, error) {
	if group == "" || strings.Contains(group, "/") {
		return "", fmt.Errorf("%w: group %q", ErrInvalidName, group)
	}
	return Namespace + "/" + group, nil
}

// DatasetPath returns the path of a dataset in an array group.
func DatasetPath(group, name string) (string, error) {
	g, err := GroupPath(group)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty dataset name", ErrInvalidName)
	}
	return hdf5.CleanPath(g + "/" + name), nil
}

// resolve turns a path relative to the namespace into an absolute one.
// Absolute paths are cleaned and kept.
func resolve(path string) (string, error) {
	if strings.HasPrefix(path, "/") {
		return hdf5.CleanPath(path), nil
	}
	group, rest, _ := strings.Cut(path, "/")
	if rest == "" {
		return GroupPath(group)
	}
	return DatasetPath(group, rest)
}
