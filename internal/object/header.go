// Package object reads and encodes HDF5 version 2 object headers.
//
// An object header is the metadata record of a group or dataset: a list of
// header messages in a checksummed chunk.
//
//	Offset  Size  Description
//	0       4     Signature ("OHDR")
//	4       1     Version (2)
//	5       1     Flags (bits 0-1: width of the chunk #0 size field)
//	6       16    Timestamps (flag bit 5 only)
//	var     4     Attribute phase change values (flag bit 4 only)
//	var     1-8   Size of chunk #0 data
//	var     var   Messages, then a gap smaller than a message header
//	var     4     Checksum (lookup3)
//
// Messages are type(1), size(2), flags(1), creation order(2, flag bit 2
// only) and the message body. Continuation blocks ("OCHK") hold further
// messages followed by their own checksum.
package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
	"github.com/robert-malhotra/go-hdfproxy/internal/message"
)

var (
	signatureHeader       = []byte("OHDR")
	signatureContinuation = []byte("OCHK")
)

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksumMismatch   = errors.New("object header checksum mismatch")
	ErrMessageTooLarge    = errors.New("header message exceeds 65535 bytes")
	ErrNoRoom             = errors.New("messages do not fit the header chunk")
)

// Flags the reader understands but the writer never sets.
const (
	flagCreationOrder = 0x04
	flagPhaseChange   = 0x10
	flagTimes         = 0x20
)

// maxContinuations bounds how many continuation blocks a header may chain.
const maxContinuations = 64

// Header is a decoded object header.
type Header struct {
	Address  uint64
	Flags    uint8
	Messages []message.Message

	// ChunkSize is the data size of chunk #0, the space available when the
	// header is rewritten in place.
	ChunkSize int
	// Continued is set when some messages live in continuation blocks.
	Continued bool
}

// Message returns the first message of type t, or nil.
func (h *Header) Message(t message.Type) message.Message {
	for _, m := range h.Messages {
		if m.Type() == t {
			return m
		}
	}
	return nil
}

// MessagesOf returns every message of type t.
func (h *Header) MessagesOf(t message.Type) []message.Message {
	var out []message.Message
	for _, m := range h.Messages {
		if m.Type() == t {
			out = append(out, m)
		}
	}
	return out
}

// Dataspace returns the dataspace message, or nil.
func (h *Header) Dataspace() *message.Dataspace {
	m, _ := h.Message(message.TypeDataspace).(*message.Dataspace)
	return m
}

// Datatype returns the datatype message, or nil.
func (h *Header) Datatype() *message.Datatype {
	m, _ := h.Message(message.TypeDatatype).(*message.Datatype)
	return m
}

// Layout returns the data layout message, or nil.
func (h *Header) Layout() *message.DataLayout {
	m, _ := h.Message(message.TypeDataLayout).(*message.DataLayout)
	return m
}

// Pipeline returns the filter pipeline message, or nil.
func (h *Header) Pipeline() *message.FilterPipeline {
	m, _ := h.Message(message.TypeFilterPipeline).(*message.FilterPipeline)
	return m
}

// Links returns the header's link messages.
func (h *Header) Links() []*message.Link {
	var out []*message.Link
	for _, m := range h.Messages {
		if l, ok := m.(*message.Link); ok {
			out = append(out, l)
		}
	}
	return out
}

// Attributes returns the header's attribute messages.
func (h *Header) Attributes() []*message.Attribute {
	var out []*message.Attribute
	for _, m := range h.Messages {
		if a, ok := m.(*message.Attribute); ok {
			out = append(out, a)
		}
	}
	return out
}

// IsGroup reports whether the header describes a group.
func (h *Header) IsGroup() bool {
	return h.Message(message.TypeLinkInfo) != nil || h.Message(message.TypeLink) != nil ||
		h.Message(message.TypeGroupInfo) != nil
}

// IsDataset reports whether the header describes a dataset.
func (h *Header) IsDataset() bool {
	return h.Message(message.TypeDataLayout) != nil
}

// Size returns the number of bytes the header occupies in chunk #0.
func (h *Header) Size() int {
	return TotalSize(h.ChunkSize)
}

// Rewritable reports whether the header can be re-encoded in place: the
// writer only emits the plain prefix, so headers with optional prefix fields
// always move.
func (h *Header) Rewritable() bool {
	return h.Flags&(flagCreationOrder|flagPhaseChange|flagTimes) == 0
}

// Read parses the object header at addr.
func Read(r io.ReaderAt, addr uint64, cfg binary.Config) (*Header, error) {
	head, err := binary.ReadAtMost(r, int64(addr), 6+16+4+8)
	if err != nil {
		return nil, err
	}
	if len(head) < 7 {
		return nil, fmt.Errorf("%w at %d: truncated", ErrInvalidHeader, addr)
	}
	if !bytes.Equal(head[:4], signatureHeader) {
		if head[0] == 1 {
			return nil, fmt.Errorf("%w: version 1 at %d", ErrUnsupportedVersion, addr)
		}
		return nil, fmt.Errorf("%w at %d: bad signature", ErrInvalidHeader, addr)
	}
	if head[4] != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, head[4])
	}

	h := &Header{Address: addr, Flags: head[5]}
	prefix := 6
	if h.Flags&flagTimes != 0 {
		prefix += 16
	}
	if h.Flags&flagPhaseChange != 0 {
		prefix += 4
	}
	width := 1 << (h.Flags & 0x03)
	if len(head) < prefix+width {
		return nil, fmt.Errorf("%w at %d: truncated prefix", ErrInvalidHeader, addr)
	}
	h.ChunkSize = int(binary.DecodeUint(head[prefix : prefix+width]))
	prefix += width

	raw, err := binary.ReadAt(r, int64(addr), prefix+h.ChunkSize+4)
	if err != nil {
		return nil, err
	}
	body := raw[:len(raw)-4]
	stored := binary.DecodeUint(raw[len(raw)-4:])
	if !binary.VerifyLookup3(body, uint32(stored)) {
		return nil, fmt.Errorf("%w at %d", ErrChecksumMismatch, addr)
	}

	order := h.Flags&flagCreationOrder != 0
	pending, err := h.decodeMessages(body[prefix:], cfg, order)
	if err != nil {
		return nil, err
	}
	for hops := 0; len(pending) > 0; hops++ {
		if hops >= maxContinuations {
			return nil, fmt.Errorf("%w at %d: too many continuation blocks", ErrInvalidHeader, addr)
		}
		cont := pending[0]
		pending = pending[1:]
		more, err := h.readContinuation(r, cont, cfg, order)
		if err != nil {
			return nil, err
		}
		pending = append(pending, more...)
		h.Continued = true
	}
	return h, nil
}

func (h *Header) readContinuation(r io.ReaderAt, c *message.Continuation, cfg binary.Config, order bool) ([]*message.Continuation, error) {
	if c.Length < 8 {
		return nil, fmt.Errorf("%w: continuation block of %d bytes", ErrInvalidHeader, c.Length)
	}
	raw, err := binary.ReadAt(r, int64(c.Offset), int(c.Length))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(raw[:4], signatureContinuation) {
		return nil, fmt.Errorf("%w: bad continuation signature at %d", ErrInvalidHeader, c.Offset)
	}
	body := raw[:len(raw)-4]
	if !binary.VerifyLookup3(body, uint32(binary.DecodeUint(raw[len(raw)-4:]))) {
		return nil, fmt.Errorf("%w in continuation at %d", ErrChecksumMismatch, c.Offset)
	}
	return h.decodeMessages(body[4:], cfg, order)
}

// decodeMessages appends the messages of one block to h and returns the
// continuation messages found in it.
func (h *Header) decodeMessages(block []byte, cfg binary.Config, order bool) ([]*message.Continuation, error) {
	entry := 4
	if order {
		entry += 2
	}
	var conts []*message.Continuation
	d := binary.NewDecoder(block, cfg)
	for d.Remaining() >= entry {
		typ := message.Type(d.Uint8())
		size := int(d.Uint16())
		d.Uint8() // message flags
		if order {
			d.Skip(2)
		}
		data := d.Bytes(size)
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
		}
		if typ == message.TypeNIL {
			continue
		}
		m, err := message.Decode(typ, data, cfg)
		if err != nil {
			return nil, err
		}
		if c, ok := m.(*message.Continuation); ok {
			conts = append(conts, c)
			continue
		}
		h.Messages = append(h.Messages, m)
	}
	return conts, nil
}
