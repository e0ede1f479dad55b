package etp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-hdfproxy/pkg/logging"
)

// DefaultReadLimit bounds the size of one received frame.
const DefaultReadLimit = 1 << 30

// ClientOption configures Dial.
type ClientOption func(*clientOptions)

type clientOptions struct {
	appName          string
	appVersion       string
	retries          uint64
	initialBackoff   time.Duration
	handshakeTimeout time.Duration
	readLimit        int64
}

func defaultClientOptions() *clientOptions {
	return &clientOptions{
		appName:          "hdfproxy",
		appVersion:       "1.0",
		retries:          3,
		initialBackoff:   100 * time.Millisecond,
		handshakeTimeout: 10 * time.Second,
		readLimit:        DefaultReadLimit,
	}
}

// WithApplication sets the application name and version announced in the
// session request.
func WithApplication(name, version string) ClientOption {
	return func(o *clientOptions) {
		o.appName, o.appVersion = name, version
	}
}

// WithDialRetries sets how many times a failed dial is retried, with
// exponential backoff starting at initial.
func WithDialRetries(retries uint64, initial time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.retries = retries
		if initial > 0 {
			o.initialBackoff = initial
		}
	}
}

// WithHandshakeTimeout bounds the websocket handshake.
func WithHandshakeTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.handshakeTimeout = d
	}
}

// WithReadLimit bounds the size of received frames.
func WithReadLimit(n int64) ClientOption {
	return func(o *clientOptions) {
		o.readLimit = n
	}
}

// Client is a blocking request/response session. Calls may be issued from
// several goroutines; each waits for the response correlated to its
// request.
type Client struct {
	conn       *websocket.Conn
	log        zerolog.Logger
	sessionID  string
	serverName string

	sendMu sync.Mutex
	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan frame
	done    chan struct{}
	err     error
}

// Dial connects to a websocket endpoint and opens a session.
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	o := defaultClientOptions()
	for _, opt := range opts {
		opt(o)
	}
	log := logging.WithComponent("etp-client").With().Str("endpoint", url).Logger()

	dialer := websocket.Dialer{HandshakeTimeout: o.handshakeTimeout}
	var conn *websocket.Conn
	attempt := 0
	dial := func() error {
		attempt++
		c, resp, err := dialer.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("dial failed")
			if errors.Is(err, websocket.ErrBadHandshake) {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.initialBackoff
	if err := backoff.Retry(dial, backoff.WithContext(backoff.WithMaxRetries(b, o.retries), ctx)); err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	conn.SetReadLimit(o.readLimit)

	c := &Client{
		conn:    conn,
		log:     log,
		pending: make(map[int64]chan frame),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	req := &RequestSession{
		ApplicationName:    o.appName,
		ApplicationVersion: o.appVersion,
		ClientInstanceID:   uuid.NewString(),
		RequestedProtocols: []SupportedProtocol{
			{Protocol: ProtocolDataArray, Role: "store"},
			{Protocol: ProtocolArrayProxy, Role: "store"},
		},
	}
	hctx, cancel := context.WithTimeout(ctx, o.handshakeTimeout)
	defer cancel()
	var open OpenSession
	if err := c.Call(hctx, req, &open); err != nil {
		c.Close()
		return nil, fmt.Errorf("opening session: %w", err)
	}
	c.sessionID = open.SessionID
	c.serverName = open.ApplicationName
	c.log = c.log.With().Str("session", open.SessionID).Logger()
	c.log.Info().Str("server", open.ApplicationName).Msg("session opened")
	return c, nil
}

// SessionID returns the identifier the server assigned to the session.
func (c *Client) SessionID() string { return c.sessionID }

// ServerName returns the application name the server announced.
func (c *Client) ServerName() string { return c.serverName }

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Alive reports whether the connection is still up.
func (c *Client) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Err returns the reason the connection went down, or nil.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Call sends req and decodes the correlated response into resp. A
// ProtocolException response is returned as an *ErrorInfo. When the
// connection drops before the response arrives, the error wraps ErrClosed.
func (c *Client) Call(ctx context.Context, req, resp Message) error {
	id := c.nextID.Add(1)
	ch := make(chan frame, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(Header{MessageID: id, MessageFlags: FlagFinalPart}, req); err != nil {
		return err
	}

	select {
	case f := <-ch:
		if f.isException() {
			return f.exception()
		}
		return f.decode(resp)
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) send(h Header, msg Message) error {
	data, err := encodeFrame(h, msg)
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		c.fail(err)
		return c.Err()
	}
	return nil
}

func (c *Client) readLoop() {
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		f, err := decodeFrame(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[f.CorrelationID]
		c.mu.Unlock()
		if !ok {
			c.log.Warn().Stringer("header", f.Header).Int64("correlation", f.CorrelationID).Msg("dropping uncorrelated message")
			continue
		}
		select {
		case ch <- f:
		default:
			c.log.Warn().Stringer("header", f.Header).Msg("dropping duplicate response")
		}
	}
}

// fail records why the connection is gone and wakes every waiting call.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = fmt.Errorf("%w: %v", ErrClosed, err)
	close(c.done)
	c.conn.Close()
	c.log.Debug().Err(err).Msg("connection closed")
}

// Close ends the session and closes the connection.
func (c *Client) Close() error {
	if !c.Alive() {
		return nil
	}
	c.send(Header{MessageID: c.nextID.Add(1), MessageFlags: FlagFinalPart}, &CloseSession{Reason: "client closed"})
	c.sendMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.sendMu.Unlock()
	c.fail(errors.New("closed by client"))
	return nil
}
