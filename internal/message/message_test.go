package message

import (
	"bytes"
	"strings"
	"testing"

	"github.com/robert-malhotra/go-hdfproxy/internal/binary"
)

var cfg = binary.DefaultConfig()

func roundTrip(t *testing.T, m Encoder) Message {
	t.Helper()
	raw := Encode(m, cfg)
	got, err := Decode(m.Type(), raw, cfg)
	if err != nil {
		t.Fatalf("Decode(%T) failed: %v", m, err)
	}
	return got
}

func TestDataspaceRoundTrip(t *testing.T) {
	ds := NewSimpleDataspace([]uint64{2, 3, 4})
	got := roundTrip(t, ds).(*Dataspace)

	if got.Kind != SpaceSimple || len(got.Dims) != 3 || got.Dims[2] != 4 {
		t.Errorf("unexpected dataspace %+v", got)
	}
	if got.NumElements() != 24 {
		t.Errorf("NumElements = %d, want 24", got.NumElements())
	}

	scalar := roundTrip(t, NewScalarDataspace()).(*Dataspace)
	if scalar.NumElements() != 1 {
		t.Errorf("scalar NumElements = %d", scalar.NumElements())
	}
}

func TestDatatypeEncoding(t *testing.T) {
	raw := Encode(NewFloat(8), cfg)
	want := []byte{
		0x11, 0x20, 63, 0, // class 1 version 1, bit field
		8, 0, 0, 0, // size
		0, 0, 64, 0, 52, 11, 0, 52, 0xFF, 0x03, 0, 0,
	}
	if !bytes.Equal(raw, want) {
		t.Errorf("float64 encoding\n got %v\nwant %v", raw, want)
	}

	tests := []struct {
		dt   *Datatype
		name string
	}{
		{NewFixedPoint(1, true), "int8"},
		{NewFixedPoint(8, false), "uint64"},
		{NewFloat(4), "float32"},
		{NewFixedString(12), "string[12]"},
		{NewVarString(cfg), "vlen string"},
	}
	for _, tt := range tests {
		got := roundTrip(t, tt.dt).(*Datatype)
		if got.String() != tt.name {
			t.Errorf("decoded %s as %s", tt.name, got.String())
		}
		if got.Size != tt.dt.Size || got.Signed() != tt.dt.Signed() {
			t.Errorf("%s: size/sign mismatch: %+v", tt.name, got)
		}
	}
}

func TestVarStringBase(t *testing.T) {
	got := roundTrip(t, NewVarString(cfg)).(*Datatype)
	if !got.IsVarString() || got.Base == nil || got.Base.Size != 1 {
		t.Fatalf("unexpected vlen string %+v", got)
	}
	if got.Size != 16 {
		t.Errorf("vlen size = %d, want 16", got.Size)
	}
}

func TestLayoutRoundTrip(t *testing.T) {
	cont := roundTrip(t, NewContiguousLayout(4096, 800)).(*DataLayout)
	if cont.Class != LayoutContiguous || cont.Address != 4096 || cont.Size != 800 {
		t.Errorf("contiguous layout %+v", cont)
	}

	fa := NewFixedArrayLayout([]uint64{10, 300}, 8, 10, 1234)
	got := roundTrip(t, fa).(*DataLayout)
	if got.Version != 4 || got.IndexType != ChunkIndexFixedArray {
		t.Fatalf("chunked layout %+v", got)
	}
	if len(got.ChunkDims) != 2 || got.ChunkDims[0] != 10 || got.ChunkDims[1] != 300 {
		t.Errorf("chunk dims %v", got.ChunkDims)
	}
	if got.ElementSize != 8 || got.PageBits != 10 || got.IndexAddr != 1234 {
		t.Errorf("chunked layout fields %+v", got)
	}
}

func TestFilterPipelineRoundTrip(t *testing.T) {
	p := &FilterPipeline{Filters: []FilterInfo{
		{ID: FilterShuffle, ClientData: []uint32{8}},
		{ID: FilterDeflate, ClientData: []uint32{6}},
		{ID: 32001, Name: "custom", Flags: FilterFlagOptional},
	}}
	got := roundTrip(t, p).(*FilterPipeline)
	if len(got.Filters) != 3 {
		t.Fatalf("got %d filters", len(got.Filters))
	}
	if got.Filters[1].ID != FilterDeflate || got.Filters[1].ClientData[0] != 6 {
		t.Errorf("deflate filter %+v", got.Filters[1])
	}
	if got.Filters[2].Name != "custom" {
		t.Errorf("custom filter name %q", got.Filters[2].Name)
	}
	if !got.Has(FilterShuffle) || got.Has(FilterFletcher32) {
		t.Errorf("Has reports wrong membership")
	}
}

func TestLinkRoundTrip(t *testing.T) {
	short := roundTrip(t, NewHardLink("RESQML", 96)).(*Link)
	if short.Name != "RESQML" || short.Address != 96 || short.Kind != LinkHard {
		t.Errorf("short link %+v", short)
	}

	long := strings.Repeat("x", 300)
	got := roundTrip(t, NewHardLink(long, 7)).(*Link)
	if got.Name != long || got.Address != 7 {
		t.Errorf("long link name not preserved")
	}

	soft := roundTrip(t, &Link{Name: "alias", Kind: LinkSoft, Target: "/RESQML/a"}).(*Link)
	if soft.Target != "/RESQML/a" {
		t.Errorf("soft link target %q", soft.Target)
	}
}

func TestAttributeRoundTrip(t *testing.T) {
	attr := &Attribute{
		Name:      "count",
		Datatype:  NewFixedPoint(8, true),
		Dataspace: NewScalarDataspace(),
		Data:      []byte{42, 0, 0, 0, 0, 0, 0, 0},
	}
	got := roundTrip(t, attr).(*Attribute)
	if got.Name != "count" || got.Datatype.String() != "int64" {
		t.Errorf("attribute header %+v", got)
	}
	if !bytes.Equal(got.Data, attr.Data) {
		t.Errorf("attribute data %v", got.Data)
	}
}

func TestUnknownPreserved(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5}
	m, err := Decode(TypeObjectModTime, raw, cfg)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	u, ok := m.(*Unknown)
	if !ok {
		t.Fatalf("expected *Unknown, got %T", m)
	}
	if !bytes.Equal(Encode(u, cfg), raw) {
		t.Errorf("unknown message not preserved")
	}
}

func TestDecodeTruncated(t *testing.T) {
	raw := Encode(NewSimpleDataspace([]uint64{5, 5}), cfg)
	if _, err := Decode(TypeDataspace, raw[:len(raw)-3], cfg); err == nil {
		t.Error("expected error for truncated dataspace")
	}
}

func TestFillValueRoundTrip(t *testing.T) {
	fv := &FillValue{AllocTime: AllocIncremental, WriteTime: FillIfSet}
	got := roundTrip(t, fv).(*FillValue)
	if got.AllocTime != AllocIncremental || got.WriteTime != FillIfSet || got.Defined {
		t.Errorf("fill value %+v", got)
	}
}
