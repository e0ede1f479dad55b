package superblock

import (
	"bytes"
	"errors"
	"testing"
)

// bytesReaderAt wraps a byte slice to implement io.ReaderAt.
type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, nil
	}
	return copy(p, b[off:]), nil
}

type bufferWriterAt struct{ buf []byte }

func (b *bufferWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if need := int(off) + len(p); need > len(b.buf) {
		b.buf = append(b.buf, make([]byte, need-len(b.buf))...)
	}
	return copy(b.buf[off:], p), nil
}

func TestReadNotHDF5(t *testing.T) {
	if _, err := Read(make(bytesReaderAt, 4096)); !errors.Is(err, ErrNotHDF5) {
		t.Errorf("expected ErrNotHDF5, got %v", err)
	}
}

func TestReadUnsupportedVersion(t *testing.T) {
	for _, version := range []byte{0, 1, 99} {
		data := make(bytesReaderAt, 256)
		copy(data, Signature)
		data[8] = version

		if _, err := Read(data); !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("version %d: expected ErrUnsupportedVersion, got %v", version, err)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	sb := New()
	sb.EOFAddress = 4096
	sb.RootAddress = 48

	w := &bufferWriterAt{}
	if err := sb.WriteTo(w); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if len(w.buf) != sb.Size() {
		t.Fatalf("wrote %d bytes, Size() = %d", len(w.buf), sb.Size())
	}
	if sb.Size() != 48 {
		t.Errorf("Size() = %d, want 48", sb.Size())
	}

	got, err := Read(bytesReaderAt(w.buf))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Version != 3 || got.OffsetSize != 8 || got.LengthSize != 8 {
		t.Errorf("unexpected header fields %+v", got)
	}
	if got.EOFAddress != 4096 || got.RootAddress != 48 {
		t.Errorf("addresses: EOF=%d root=%d", got.EOFAddress, got.RootAddress)
	}
	if !got.Config().IsUndefined(got.ExtensionAddress) {
		t.Errorf("extension address should be undefined, got %#x", got.ExtensionAddress)
	}
}

func TestReadAtUserBlockOffset(t *testing.T) {
	sb := New()
	sb.FileOffset = 512
	sb.RootAddress = 560

	w := &bufferWriterAt{}
	if err := sb.WriteTo(w); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	got, err := Read(bytesReaderAt(w.buf))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.FileOffset != 512 || got.RootAddress != 560 {
		t.Errorf("got offset %d root %d", got.FileOffset, got.RootAddress)
	}
}

func TestReadChecksumMismatch(t *testing.T) {
	raw := New().Encode()
	raw[len(raw)-1] ^= 0xFF

	if _, err := Read(bytesReaderAt(raw)); !errors.Is(err, ErrInvalidSuperblock) {
		t.Errorf("expected ErrInvalidSuperblock, got %v", err)
	}
}

func TestEncodeStartsWithSignature(t *testing.T) {
	if raw := New().Encode(); !bytes.HasPrefix(raw, Signature) {
		t.Errorf("encoded superblock does not start with the signature")
	}
}
