// Package filter implements the HDF5 chunk filters the writer uses and the
// pipeline that applies them.
//
// Filters run in pipeline order when a chunk is written and in reverse
// order when it is read back.
package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/message"
)

// ErrUnsupported is returned for filters this package cannot apply.
var ErrUnsupported = errors.New("unsupported filter")

// Filter transforms chunk bytes in both directions.
type Filter interface {
	ID() uint16
	Encode(input []byte) ([]byte, error)
	Decode(input []byte) ([]byte, error)
}

// registry maps filter IDs to constructors taking the filter's client data.
var registry = map[uint16]func([]uint32) Filter{
	message.FilterDeflate:    func(cd []uint32) Filter { return newDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32) Filter { return newShuffle(cd) },
	message.FilterFletcher32: func([]uint32) Filter { return fletcher32{} },
}

var names = map[uint16]string{
	message.FilterDeflate:    "deflate",
	message.FilterShuffle:    "shuffle",
	message.FilterFletcher32: "fletcher32",
	message.FilterSZip:       "szip",
	message.FilterNBit:       "nbit",
	message.FilterScaleOff:   "scaleoffset",
}

// Name returns a readable name for a filter ID.
func Name(id uint16) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("filter-%d", id)
}

// New builds the filter described by info. Optional filters that are not
// available return a nil filter and no error.
func New(info message.FilterInfo) (Filter, error) {
	ctor, ok := registry[info.ID]
	if !ok {
		if info.Flags&message.FilterFlagOptional != 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s (id %d)", ErrUnsupported, Name(info.ID), info.ID)
	}
	return ctor(info.ClientData), nil
}

// Spec builds the filter pipeline message for a new dataset. Shuffle runs
// before deflate so bytes of equal significance compress together;
// Fletcher-32 always comes last so it covers the stored bytes.
func Spec(level int, shuffle, checksum bool, elemSize int) *message.FilterPipeline {
	p := &message.FilterPipeline{}
	if shuffle && elemSize > 1 {
		p.Filters = append(p.Filters, message.FilterInfo{
			ID: message.FilterShuffle, ClientData: []uint32{uint32(elemSize)},
		})
	}
	if level > 0 {
		p.Filters = append(p.Filters, message.FilterInfo{
			ID: message.FilterDeflate, ClientData: []uint32{uint32(level)},
		})
	}
	if checksum {
		p.Filters = append(p.Filters, message.FilterInfo{ID: message.FilterFletcher32})
	}
	if len(p.Filters) == 0 {
		return nil
	}
	return p
}
