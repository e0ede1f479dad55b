package filter

import (
	"encoding/binary"
	"errors"

	binpkg "github.com/robert-malhotra/go-hdfproxy/internal/binary"
	"github.com/robert-malhotra/go-hdfproxy/internal/message"
)

// ErrChecksum is returned when a chunk fails Fletcher-32 verification.
var ErrChecksum = errors.New("fletcher32 checksum mismatch")

// fletcher32 appends a 4-byte checksum on write and verifies and strips it
// on read.
type fletcher32 struct{}

func (fletcher32) ID() uint16 { return message.FilterFletcher32 }

func (fletcher32) Encode(input []byte) ([]byte, error) {
	out := make([]byte, len(input), len(input)+4)
	copy(out, input)
	return binary.LittleEndian.AppendUint32(out, binpkg.Fletcher32(input)), nil
}

func (fletcher32) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, ErrChecksum
	}
	data := input[:len(input)-4]
	if binpkg.Fletcher32(data) != binary.LittleEndian.Uint32(input[len(input)-4:]) {
		return nil, ErrChecksum
	}
	return data, nil
}
