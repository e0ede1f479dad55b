package etp

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeFrame serializes a header and body into one websocket frame.
func encodeFrame(h Header, body Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(&buf)

	h.Protocol = body.Protocol()
	h.MessageType = body.MessageType()
	if err := enc.Encode(&h); err != nil {
		return nil, fmt.Errorf("encoding header: %w", err)
	}
	if err := enc.Encode(body); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", MessageName(h.Protocol, h.MessageType), err)
	}
	return buf.Bytes(), nil
}

// frame is a received message whose body is decoded on demand.
type frame struct {
	Header
	body []byte
}

func decodeFrame(data []byte) (frame, error) {
	// bytes.Reader is an io.ByteScanner, so the decoder does not read past
	// the header.
	r := bytes.NewReader(data)
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(r)

	var f frame
	if err := dec.Decode(&f.Header); err != nil {
		return f, fmt.Errorf("%w: decoding header: %v", ErrUnexpectedMessage, err)
	}
	f.body = data[len(data)-r.Len():]
	return f, nil
}

// decode unmarshals the body into v after checking the message type.
func (f frame) decode(v Message) error {
	if f.Protocol != v.Protocol() || f.MessageType != v.MessageType() {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedMessage,
			MessageName(f.Protocol, f.MessageType), MessageName(v.Protocol(), v.MessageType()))
	}
	if err := msgpack.Unmarshal(f.body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", MessageName(f.Protocol, f.MessageType), err)
	}
	return nil
}

func (f frame) isException() bool {
	return f.Protocol == ProtocolCore && f.MessageType == MsgProtocolException
}

// exception decodes a ProtocolException body into its error.
func (f frame) exception() error {
	var pe ProtocolException
	if err := f.decode(&pe); err != nil {
		return err
	}
	return &pe.Error
}
