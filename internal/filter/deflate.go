package filter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/robert-malhotra/go-hdfproxy/internal/message"
)

// deflate is the zlib-wrapped DEFLATE filter. Client data: [0] = level.
type deflate struct {
	level int
}

func newDeflate(clientData []uint32) *deflate {
	level := 6
	if len(clientData) > 0 {
		level = int(clientData[0])
	}
	if level < zlib.NoCompression || level > zlib.BestCompression {
		level = zlib.DefaultCompression
	}
	return &deflate{level: level}
}

func (f *deflate) ID() uint16 { return message.FilterDeflate }

func (f *deflate) Encode(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(input); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *deflate) Decode(input []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	return out, nil
}
