package message

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

// Predefined filter identifiers.
const (
	FilterDeflate    uint16 = 1
	FilterShuffle    uint16 = 2
	FilterFletcher32 uint16 = 3
	FilterSZip       uint16 = 4
	FilterNBit       uint16 = 5
	FilterScaleOff   uint16 = 6
)

// FilterFlagOptional marks a filter that may be skipped when it fails.
const FilterFlagOptional uint16 = 0x0001

// FilterInfo describes one filter of a pipeline.
type FilterInfo struct {
	ID         uint16
	Name       string
	Flags      uint16
	ClientData []uint32
}

// FilterPipeline is a filter pipeline message (type 0x000B). Filters are
// listed in the order they are applied when writing.
type FilterPipeline struct {
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// Has reports whether the pipeline contains filter id.
func (m *FilterPipeline) Has(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

// Encode writes a version 2 filter pipeline message.
func (m *FilterPipeline) Encode(e *binary.Encoder) {
	e.PutUint8(2)
	e.PutUint8(uint8(len(m.Filters)))
	for _, f := range m.Filters {
		e.PutUint16(f.ID)
		if f.ID >= 256 {
			e.PutUint16(uint16(len(f.Name) + 1))
		}
		e.PutUint16(f.Flags)
		e.PutUint16(uint16(len(f.ClientData)))
		if f.ID >= 256 {
			e.PutBytes([]byte(f.Name))
			e.PutUint8(0)
		}
		for _, v := range f.ClientData {
			e.PutUint32(v)
		}
	}
}

func decodeFilterPipeline(d *binary.Decoder) *FilterPipeline {
	version := d.Uint8()
	n := int(d.Uint8())
	m := &FilterPipeline{}
	switch version {
	case 1:
		d.Skip(6)
	case 2:
	default:
		d.Fail(fmt.Errorf("unsupported filter pipeline version %d", version))
		return m
	}

	for i := 0; i < n && d.Err() == nil; i++ {
		f := FilterInfo{ID: d.Uint16()}
		nameLen := 0
		if version == 1 || f.ID >= 256 {
			nameLen = int(d.Uint16())
		}
		f.Flags = d.Uint16()
		values := int(d.Uint16())
		if nameLen > 0 {
			name := d.Bytes(nameLen)
			f.Name = cString(name)
			if version == 1 {
				d.Skip(pad8(nameLen) - nameLen)
			}
		}
		f.ClientData = make([]uint32, values)
		for j := range f.ClientData {
			f.ClientData[j] = d.Uint32()
		}
		if version == 1 && values%2 == 1 {
			d.Skip(4)
		}
		m.Filters = append(m.Filters, f)
	}
	return m
}

func pad8(n int) int { return (n + 7) &^ 7 }

// cString returns p up to its first NUL byte.
func cString(p []byte) string {
	for i, b := range p {
		if b == 0 {
			return string(p[:i])
		}
	}
	return string(p)
}
