// Package alloc manages file space for the HDF5 writer.
//
// Space is handed out append-only at the end of the file. Blocks that are
// abandoned when an object header moves are recorded as free so the caller
// can report how much of the file is dead space; they are never reused,
// which keeps every address that was ever published valid for readers that
// still hold it.
package alloc

import (
	"fmt"
	"sync"
)

// Kind classifies an allocation for statistics.
type Kind uint8

const (
	KindHeader Kind = iota // object headers
	KindData               // raw dataset storage and chunks
	KindIndex              // chunk index structures
	KindHeap               // global heap collections
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindData:
		return "data"
	case KindIndex:
		return "index"
	case KindHeap:
		return "heap"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Stats summarizes allocator activity since the file was opened.
type Stats struct {
	Allocations uint64
	Bytes       [numKinds]uint64
	FreedBytes  uint64
	EOF         uint64
}

// Total returns the number of bytes allocated across all kinds.
func (s Stats) Total() uint64 {
	var n uint64
	for _, b := range s.Bytes {
		n += b
	}
	return n
}

// Allocator hands out file addresses. It is safe for concurrent use.
type Allocator struct {
	mu    sync.Mutex
	eof   uint64
	stats Stats
}

// New creates an allocator whose first allocation starts at eof.
func New(eof uint64) *Allocator {
	a := &Allocator{eof: eof}
	a.stats.EOF = eof
	return a
}

// Alloc reserves size bytes aligned to 8 bytes and returns their address.
func (a *Allocator) Alloc(size uint64, kind Kind) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if rem := a.eof % 8; rem != 0 {
		a.eof += 8 - rem
	}
	addr := a.eof
	if size == 0 {
		return addr
	}
	a.eof += size
	a.stats.Allocations++
	if kind < numKinds {
		a.stats.Bytes[kind] += size
	}
	a.stats.EOF = a.eof
	return addr
}

// Free records that a block is no longer referenced.
func (a *Allocator) Free(addr, size uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if addr+size <= a.eof {
		a.stats.FreedBytes += size
	}
}

// EOF returns the current end-of-file address.
func (a *Allocator) EOF() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eof
}

// Stats returns a snapshot of the allocation statistics.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
