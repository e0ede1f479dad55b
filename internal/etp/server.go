package etp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-hdfproxy/pkg/logging"
)

// Backend stores the arrays a Server exposes. Errors that are *ErrorInfo
// reach the client with their code; any other error is reported as
// CodeInternal.
type Backend interface {
	Metadata(ctx context.Context, uid DataArrayIdentifier) (DataArrayMetadata, error)
	GetArray(ctx context.Context, uid DataArrayIdentifier) (DataArray, error)
	GetSubarray(ctx context.Context, req GetDataSubarraysType) (DataArray, error)
	PutUninitialized(ctx context.Context, req PutUninitializedDataArrayType) error
	PutArray(ctx context.Context, req PutDataArraysType) error
	PutSubarray(ctx context.Context, req PutDataSubarraysType) error
	PutAttribute(ctx context.Context, uid DataArrayIdentifier, name string, value AttributeValue) error
	GetAttribute(ctx context.Context, uid DataArrayIdentifier, name string) (AttributeValue, error)
	Exists(ctx context.Context, uid DataArrayIdentifier) (bool, error)
}

// ServerOption configures NewServer.
type ServerOption func(*Server)

// WithRegisterer registers the server's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) ServerOption {
	return func(s *Server) {
		s.metrics = newServerMetrics(reg)
	}
}

// WithServerName sets the application name sent in OpenSession.
func WithServerName(name string) ServerOption {
	return func(s *Server) {
		s.name = name
	}
}

// Server serves a Backend over websocket connections. Messages of one
// connection are handled one at a time, in order.
type Server struct {
	backend  Backend
	upgrader websocket.Upgrader
	name     string
	id       string
	metrics  *serverMetrics
	log      zerolog.Logger
}

// NewServer creates a server for b. Mount it on an http.ServeMux.
func NewServer(b Backend, opts ...ServerOption) *Server {
	s := &Server{
		backend: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 64 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		name: "hdfproxy",
		id:   uuid.NewString(),
		log:  logging.WithComponent("etp-server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newServerMetrics(nil)
	}
	return s
}

// conn is the state of one client connection.
type conn struct {
	ws        *websocket.Conn
	log       zerolog.Logger
	sessionID string
	nextID    int64
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()
	ws.SetReadLimit(DefaultReadLimit)

	c := &conn{ws: ws, log: s.log.With().Str("remote", r.RemoteAddr).Logger()}
	s.metrics.sessions.Inc()
	defer s.metrics.sessions.Dec()

	ctx := r.Context()
	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("connection lost")
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		s.metrics.bytes.WithLabelValues("in").Add(float64(len(data)))
		f, err := decodeFrame(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("undecodable frame")
			s.reply(c, Header{}, exceptionOf(Errorf(CodeInvalidMessage, "%v", err)))
			continue
		}
		if !s.handle(ctx, c, f) {
			return
		}
	}
}

// handle processes one message and reports whether the connection stays
// open.
func (s *Server) handle(ctx context.Context, c *conn, f frame) bool {
	name := MessageName(f.Protocol, f.MessageType)
	start := time.Now()

	resp, err := s.dispatch(ctx, c, f)
	if errors.Is(err, errCloseSession) {
		c.log.Debug().Msg("session closed by client")
		return false
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		resp = exceptionOf(err)
		c.log.Debug().Err(err).Str("message", name).Msg("request failed")
	}
	s.metrics.requests.WithLabelValues(name, outcome).Inc()
	s.metrics.latency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return s.reply(c, f.Header, resp)
}

func (s *Server) reply(c *conn, req Header, resp Message) bool {
	c.nextID++
	data, err := encodeFrame(Header{
		CorrelationID: req.MessageID,
		MessageID:     c.nextID,
		MessageFlags:  FlagFinalPart,
	}, resp)
	if err != nil {
		c.log.Error().Err(err).Msg("encoding response")
		data, _ = encodeFrame(Header{CorrelationID: req.MessageID, MessageID: c.nextID, MessageFlags: FlagFinalPart},
			exceptionOf(Errorf(CodeInternal, "%v", err)))
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		c.log.Warn().Err(err).Msg("writing response")
		return false
	}
	s.metrics.bytes.WithLabelValues("out").Add(float64(len(data)))
	return true
}

var errCloseSession = errors.New("close session")

func exceptionOf(err error) *ProtocolException {
	var info *ErrorInfo
	if !errors.As(err, &info) {
		info = &ErrorInfo{Code: CodeInternal, Message: err.Error()}
	}
	return &ProtocolException{Error: *info}
}

func (s *Server) dispatch(ctx context.Context, c *conn, f frame) (Message, error) {
	if f.Protocol == ProtocolCore {
		switch f.MessageType {
		case MsgRequestSession:
			return s.openSession(c, f)
		case MsgCloseSession:
			return nil, errCloseSession
		}
		return nil, Errorf(CodeInvalidMessage, "unexpected %s", MessageName(f.Protocol, f.MessageType))
	}
	if c.sessionID == "" {
		return nil, Errorf(CodeInvalidState, "%s before RequestSession", MessageName(f.Protocol, f.MessageType))
	}

	switch f.Protocol {
	case ProtocolDataArray:
		switch f.MessageType {
		case MsgGetDataArrayMetadata:
			return s.getMetadata(ctx, f)
		case MsgGetDataArrays:
			return s.getArrays(ctx, f)
		case MsgGetDataSubarrays:
			return s.getSubarrays(ctx, f)
		case MsgPutUninitializedDataArrays:
			return s.putUninitialized(ctx, f)
		case MsgPutDataArrays:
			return s.putArrays(ctx, f)
		case MsgPutDataSubarrays:
			return s.putSubarrays(ctx, f)
		}
	case ProtocolArrayProxy:
		switch f.MessageType {
		case MsgPutAttributes:
			return s.putAttributes(ctx, f)
		case MsgGetAttribute:
			return s.getAttribute(ctx, f)
		case MsgExists:
			return s.exists(ctx, f)
		}
	}
	return nil, Errorf(CodeNotSupported, "unsupported message %s", MessageName(f.Protocol, f.MessageType))
}

func decodeRequest[T any, PT interface {
	*T
	Message
}](f frame) (PT, error) {
	req := PT(new(T))
	if err := f.decode(req); err != nil {
		return nil, Errorf(CodeInvalidMessage, "%v", err)
	}
	return req, nil
}

func (s *Server) openSession(c *conn, f frame) (Message, error) {
	req, err := decodeRequest[RequestSession](f)
	if err != nil {
		return nil, err
	}
	if c.sessionID != "" {
		return nil, Errorf(CodeInvalidState, "session %s already open", c.sessionID)
	}
	c.sessionID = uuid.NewString()
	c.log = c.log.With().Str("session", c.sessionID).Logger()
	c.log.Info().Str("application", req.ApplicationName).Str("version", req.ApplicationVersion).
		Str("client", req.ClientInstanceID).Msg("session opened")
	return &OpenSession{
		ApplicationName:    s.name,
		ApplicationVersion: "1.0",
		ServerInstanceID:   s.id,
		SessionID:          c.sessionID,
		SupportedProtocols: req.RequestedProtocols,
	}, nil
}

func (s *Server) getMetadata(ctx context.Context, f frame) (Message, error) {
	req, err := decodeRequest[GetDataArrayMetadata](f)
	if err != nil {
		return nil, err
	}
	resp := &GetDataArrayMetadataResponse{ArrayMetadata: make(map[string]DataArrayMetadata, len(req.DataArrays))}
	for key, uid := range req.DataArrays {
		md, err := s.backend.Metadata(ctx, uid)
		if err != nil {
			return nil, err
		}
		resp.ArrayMetadata[key] = md
	}
	return resp, nil
}

func (s *Server) getArrays(ctx context.Context, f frame) (Message, error) {
	req, err := decodeRequest[GetDataArrays](f)
	if err != nil {
		return nil, err
	}
	resp := &GetDataArraysResponse{DataArrays: make(map[string]DataArray, len(req.DataArrays))}
	for key, uid := range req.DataArrays {
		arr, err := s.backend.GetArray(ctx, uid)
		if err != nil {
			return nil, err
		}
		resp.DataArrays[key] = arr
	}
	return resp, nil
}

func (s *Server) getSubarrays(ctx context.Context, f frame) (Message, error) {
	req, err := decodeRequest[GetDataSubarrays](f)
	if err != nil {
		return nil, err
	}
	resp := &GetDataSubarraysResponse{DataSubarrays: make(map[string]DataArray, len(req.DataSubarrays))}
	for key, sub := range req.DataSubarrays {
		arr, err := s.backend.GetSubarray(ctx, sub)
		if err != nil {
			return nil, err
		}
		resp.DataSubarrays[key] = arr
	}
	return resp, nil
}

func (s *Server) putUninitialized(ctx context.Context, f frame) (Message, error) {
	req, err := decodeRequest[PutUninitializedDataArrays](f)
	if err != nil {
		return nil, err
	}
	resp := &PutUninitializedDataArraysResponse{Success: make(map[string]string, len(req.DataArrays))}
	for key, put := range req.DataArrays {
		if err := s.backend.PutUninitialized(ctx, put); err != nil {
			return nil, err
		}
		resp.Success[key] = ""
	}
	return resp, nil
}

func (s *Server) putArrays(ctx context.Context, f frame) (Message, error) {
	req, err := decodeRequest[PutDataArrays](f)
	if err != nil {
		return nil, err
	}
	resp := &PutDataArraysResponse{Success: make(map[string]string, len(req.DataArrays))}
	for key, put := range req.DataArrays {
		if err := s.backend.PutArray(ctx, put); err != nil {
			return nil, err
		}
		resp.Success[key] = ""
	}
	return resp, nil
}

func (s *Server) putSubarrays(ctx context.Context, f frame) (Message, error) {
	req, err := decodeRequest[PutDataSubarrays](f)
	if err != nil {
		return nil, err
	}
	resp := &PutDataSubarraysResponse{Success: make(map[string]string, len(req.DataSubarrays))}
	for key, put := range req.DataSubarrays {
		if err := s.backend.PutSubarray(ctx, put); err != nil {
			return nil, err
		}
		resp.Success[key] = ""
	}
	return resp, nil
}

func (s *Server) putAttributes(ctx context.Context, f frame) (Message, error) {
	req, err := decodeRequest[PutAttributes](f)
	if err != nil {
		return nil, err
	}
	for name, v := range req.Attributes {
		if err := s.backend.PutAttribute(ctx, req.UID, name, v); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
	}
	return &PutAttributesResponse{}, nil
}

func (s *Server) getAttribute(ctx context.Context, f frame) (Message, error) {
	req, err := decodeRequest[GetAttribute](f)
	if err != nil {
		return nil, err
	}
	v, err := s.backend.GetAttribute(ctx, req.UID, req.Name)
	if err != nil {
		return nil, err
	}
	return &GetAttributeResponse{Value: v}, nil
}

func (s *Server) exists(ctx context.Context, f frame) (Message, error) {
	req, err := decodeRequest[Exists](f)
	if err != nil {
		return nil, err
	}
	ok, err := s.backend.Exists(ctx, req.UID)
	if err != nil {
		return nil, err
	}
	return &ExistsResponse{Exists: ok}, nil
}
