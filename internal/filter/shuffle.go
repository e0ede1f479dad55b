package filter

import (
	"github.com/robert-malhotra/go-hdfproxy/internal/message"
)

// shuffle regroups the bytes of fixed-size elements so byte k of every
// element is stored together. Client data: [0] = element size. Trailing
// bytes that do not form a whole element are left in place.
type shuffle struct {
	elemSize int
}

func newShuffle(clientData []uint32) *shuffle {
	size := 1
	if len(clientData) > 0 && clientData[0] > 0 {
		size = int(clientData[0])
	}
	return &shuffle{elemSize: size}
}

func (f *shuffle) ID() uint16 { return message.FilterShuffle }

func (f *shuffle) Encode(input []byte) ([]byte, error) {
	n := len(input) / f.elemSize
	if f.elemSize <= 1 || n <= 1 {
		return input, nil
	}
	out := make([]byte, len(input))
	for i := 0; i < n; i++ {
		for j := 0; j < f.elemSize; j++ {
			out[j*n+i] = input[i*f.elemSize+j]
		}
	}
	copy(out[n*f.elemSize:], input[n*f.elemSize:])
	return out, nil
}

func (f *shuffle) Decode(input []byte) ([]byte, error) {
	n := len(input) / f.elemSize
	if f.elemSize <= 1 || n <= 1 {
		return input, nil
	}
	out := make([]byte, len(input))
	for i := 0; i < n; i++ {
		for j := 0; j < f.elemSize; j++ {
			out[i*f.elemSize+j] = input[j*n+i]
		}
	}
	copy(out[n*f.elemSize:], input[n*f.elemSize:])
	return out, nil
}
