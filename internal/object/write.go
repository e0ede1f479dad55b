package object

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
	"github.com/robert-malhotra/go-hdfproxy/internal/message"
)

// MinGroupChunkSize is the chunk #0 size the HDF5 library reserves for a new
// group, leaving room for a handful of links before the header has to move.
const MinGroupChunkSize = 120

// encodedMessage is one message body ready to be framed.
type encodedMessage struct {
	typ  message.Type
	body []byte
}

func encodeAll(msgs []message.Message, cfg binary.Config) ([]encodedMessage, int, error) {
	out := make([]encodedMessage, 0, len(msgs))
	total := 0
	for _, m := range msgs {
		enc, ok := m.(message.Encoder)
		if !ok {
			return nil, 0, fmt.Errorf("message type 0x%04x cannot be encoded", uint16(m.Type()))
		}
		body := message.Encode(enc, cfg)
		if len(body) > 0xFFFF {
			return nil, 0, fmt.Errorf("%w: type 0x%04x is %d bytes", ErrMessageTooLarge, uint16(m.Type()), len(body))
		}
		out = append(out, encodedMessage{typ: m.Type(), body: body})
		total += 4 + len(body)
	}
	return out, total, nil
}

// DataSize returns the chunk #0 data size msgs need.
func DataSize(msgs []message.Message, cfg binary.Config) (int, error) {
	_, n, err := encodeAll(msgs, cfg)
	return n, err
}

// TotalSize returns the on-disk size of a header whose chunk #0 holds
// chunkSize bytes of message data.
func TotalSize(chunkSize int) int {
	return 6 + sizeFieldWidth(chunkSize) + chunkSize + 4
}

func sizeFieldWidth(n int) int {
	switch {
	case n <= 0xFF:
		return 1
	case n <= 0xFFFF:
		return 2
	case n <= 0xFFFFFFFF:
		return 4
	}
	return 8
}

func widthFlag(width int) uint8 {
	switch width {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	}
	return 3
}

// Encode serializes msgs into a header whose chunk #0 holds exactly
// chunkSize bytes. Unused space becomes a NIL message, or a gap when it is
// too small to hold one.
func Encode(msgs []message.Message, cfg binary.Config, chunkSize int) ([]byte, error) {
	encoded, used, err := encodeAll(msgs, cfg)
	if err != nil {
		return nil, err
	}
	if used > chunkSize {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrNoRoom, used, chunkSize)
	}

	width := sizeFieldWidth(chunkSize)
	e := binary.NewEncoder(cfg)
	e.PutBytes(signatureHeader)
	e.PutUint8(2)
	e.PutUint8(widthFlag(width))
	e.PutUintN(uint64(chunkSize), width)

	for _, m := range encoded {
		e.PutUint8(uint8(m.typ))
		e.PutUint16(uint16(len(m.body)))
		e.PutUint8(0)
		e.PutBytes(m.body)
	}
	if gap := chunkSize - used; gap >= 4 {
		for gap > 0 {
			n := gap - 4
			if n > 0xFFFF {
				n = 0xFFFF
			}
			e.PutUint8(uint8(message.TypeNIL))
			e.PutUint16(uint16(n))
			e.PutUint8(0)
			e.PutZeros(n)
			gap -= 4 + n
			if gap > 0 && gap < 4 {
				e.PutZeros(gap)
				gap = 0
			}
		}
	} else {
		e.PutZeros(gap)
	}
	e.PutChecksum(0)
	return e.Bytes(), nil
}

// NewGroupMessages returns the messages of a group header holding links.
func NewGroupMessages(cfg binary.Config, links ...*message.Link) []message.Message {
	msgs := []message.Message{message.NewLinkInfo(cfg), &message.GroupInfo{}}
	for _, l := range links {
		msgs = append(msgs, l)
	}
	return msgs
}
