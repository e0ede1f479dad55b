package layout

import "math/bits"

// DefaultChunkBytes is the target uncompressed chunk size.
const DefaultChunkBytes = 1 << 20

// ChooseChunkDims picks chunk dimensions for a dataset of extent dims (HDF5
// order). The fastest-varying dimensions are kept whole while the chunk
// stays under target bytes; the next dimension is split and the slower ones
// get a chunk extent of one.
func ChooseChunkDims(dims []uint64, elemSize int, target uint64) []uint64 {
	if target == 0 {
		target = DefaultChunkBytes
	}
	budget := target / uint64(max(elemSize, 1))
	if budget == 0 {
		budget = 1
	}
	chunk := make([]uint64, len(dims))
	for i := range chunk {
		chunk[i] = 1
	}
	elems := uint64(1)
	for d := len(dims) - 1; d >= 0; d-- {
		extent := max(dims[d], 1)
		if elems*extent <= budget {
			chunk[d] = extent
			elems *= extent
			continue
		}
		chunk[d] = max(budget/elems, 1)
		break
	}
	return chunk
}

// Grid is the regular chunk grid over a dataset.
type Grid struct {
	Dims  []uint64
	Chunk []uint64
}

// Counts returns the number of chunks along each dimension.
func (g Grid) Counts() []uint64 {
	counts := make([]uint64, len(g.Dims))
	for i := range counts {
		counts[i] = (g.Dims[i] + g.Chunk[i] - 1) / g.Chunk[i]
	}
	return counts
}

// NumChunks returns the total number of chunks.
func (g Grid) NumChunks() uint64 {
	n := uint64(1)
	for _, c := range g.Counts() {
		n *= c
	}
	return n
}

// ChunkElements returns the number of elements in one chunk.
func (g Grid) ChunkElements() uint64 {
	n := uint64(1)
	for _, c := range g.Chunk {
		n *= c
	}
	return n
}

// chunkSizeLen is the width of the chunk size field in filtered chunk index
// entries: enough bytes for the uncompressed chunk size plus one, at most 8.
func chunkSizeLen(chunkBytes uint64) int {
	n := 1 + (log2(chunkBytes)+8)/8
	return min(n, 8)
}

func log2(n uint64) int {
	if n == 0 {
		return 0
	}
	return bits.Len64(n) - 1
}

// PageBitsFor returns the page size exponent that keeps a fixed array of n
// entries in a single page.
func PageBitsFor(n uint64) uint8 {
	b := 10
	for uint64(1)<<uint(b) < n {
		b++
	}
	return uint8(b)
}
