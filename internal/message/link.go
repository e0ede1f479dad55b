package message

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

// LinkKind is the type of a link.
type LinkKind uint8

const (
	LinkHard     LinkKind = 0
	LinkSoft     LinkKind = 1
	LinkExternal LinkKind = 64
)

// Link is a link message (type 0x0006) naming one child of a group.
type Link struct {
	Name    string
	Kind    LinkKind
	Address uint64 // hard links
	Target  string // soft links
	Raw     []byte // external and user-defined link payload

	CreationOrder    uint64
	HasCreationOrder bool
}

func (m *Link) Type() Type { return TypeLink }

// NewHardLink creates a hard link to the object header at addr.
func NewHardLink(name string, addr uint64) *Link {
	return &Link{Name: name, Kind: LinkHard, Address: addr}
}

// Encode writes a version 1 link message.
func (m *Link) Encode(e *binary.Encoder) {
	e.PutUint8(1)

	nameLen := uint64(len(m.Name))
	width := 1
	switch {
	case nameLen > 0xFFFF:
		width = 4
	case nameLen > 0xFF:
		width = 2
	}
	flags := uint8(0)
	switch width {
	case 2:
		flags = 1
	case 4:
		flags = 2
	}
	if m.Kind != LinkHard {
		flags |= 0x08
	}
	if m.HasCreationOrder {
		flags |= 0x04
	}
	flags |= 0x10 // UTF-8 character set field present
	e.PutUint8(flags)
	if m.Kind != LinkHard {
		e.PutUint8(uint8(m.Kind))
	}
	if m.HasCreationOrder {
		e.PutUint64(m.CreationOrder)
	}
	e.PutUint8(CharsetUTF8)
	e.PutUintN(nameLen, width)
	e.PutBytes([]byte(m.Name))

	switch m.Kind {
	case LinkHard:
		e.PutOffset(m.Address)
	case LinkSoft:
		e.PutUint16(uint16(len(m.Target)))
		e.PutBytes([]byte(m.Target))
	default:
		e.PutUint16(uint16(len(m.Raw)))
		e.PutBytes(m.Raw)
	}
}

func decodeLink(d *binary.Decoder) *Link {
	m := &Link{}
	if version := d.Uint8(); version != 1 {
		d.Fail(fmt.Errorf("unsupported link version %d", version))
		return m
	}
	flags := d.Uint8()
	if flags&0x08 != 0 {
		m.Kind = LinkKind(d.Uint8())
	}
	if flags&0x04 != 0 {
		m.CreationOrder = d.Uint64()
		m.HasCreationOrder = true
	}
	if flags&0x10 != 0 {
		d.Skip(1)
	}
	nameLen := int(d.UintN(1 << (flags & 0x03)))
	m.Name = string(d.Bytes(nameLen))

	switch m.Kind {
	case LinkHard:
		m.Address = d.Offset()
	case LinkSoft:
		m.Target = string(d.Bytes(int(d.Uint16())))
	default:
		m.Raw = append([]byte(nil), d.Bytes(int(d.Uint16()))...)
	}
	return m
}

// LinkInfo is a link info message (type 0x0002). The writer stores all links
// compactly in the group's header, so both index addresses are undefined.
type LinkInfo struct {
	TrackCreationOrder bool
	MaxCreationIndex   uint64
	FractalHeapAddr    uint64
	NameIndexAddr      uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// NewLinkInfo returns a link info message for compact link storage.
func NewLinkInfo(cfg binary.Config) *LinkInfo {
	return &LinkInfo{
		FractalHeapAddr: cfg.UndefinedOffset(),
		NameIndexAddr:   cfg.UndefinedOffset(),
	}
}

// Encode writes a version 0 link info message.
func (m *LinkInfo) Encode(e *binary.Encoder) {
	e.PutUint8(0)
	var flags uint8
	if m.TrackCreationOrder {
		flags = 0x01
	}
	e.PutUint8(flags)
	if m.TrackCreationOrder {
		e.PutUint64(m.MaxCreationIndex)
	}
	e.PutOffset(m.FractalHeapAddr)
	e.PutOffset(m.NameIndexAddr)
}

func decodeLinkInfo(d *binary.Decoder) *LinkInfo {
	d.Uint8()
	flags := d.Uint8()
	m := &LinkInfo{TrackCreationOrder: flags&0x01 != 0}
	if m.TrackCreationOrder {
		m.MaxCreationIndex = d.Uint64()
	}
	m.FractalHeapAddr = d.Offset()
	m.NameIndexAddr = d.Offset()
	if flags&0x02 != 0 {
		d.Offset()
	}
	return m
}

// GroupInfo is a group info message (type 0x000A) with default phase change
// values.
type GroupInfo struct{}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

// Encode writes a version 0 group info message without optional fields.
func (m *GroupInfo) Encode(e *binary.Encoder) {
	e.PutUint8(0)
	e.PutUint8(0)
}

func decodeGroupInfo(d *binary.Decoder) *GroupInfo {
	d.Uint8()
	flags := d.Uint8()
	if flags&0x01 != 0 {
		d.Skip(4)
	}
	if flags&0x02 != 0 {
		d.Skip(4)
	}
	return &GroupInfo{}
}
