package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robert-malhotra/go-hdfproxy/hdf5"
	"github.com/robert-malhotra/go-hdfproxy/internal/etp"
	"github.com/robert-malhotra/go-hdfproxy/proxy"
)

func writeSample(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sample.h5")
	p, err := proxy.OpenLocal(ctx, path)
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	if err := proxy.WriteArray(ctx, p, "grid", "pressure", []float64{1, 4, -2, 8, 3, 0}, []uint64{3, 2}); err != nil {
		t.Fatalf("WriteArray: %v", err)
	}
	if err := p.WriteStringAttributes(ctx, "grid/pressure", []string{"uom"}, []string{"bar"}); err != nil {
		t.Fatalf("WriteStringAttributes: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("hdfproxy %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestInspectJSON(t *testing.T) {
	path := writeSample(t)
	var report fileReport
	if err := json.Unmarshal([]byte(run(t, "inspect", "--json", path)), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	var ds *objectReport
	for _, o := range report.Objects {
		if o.Path == "/RESQML/grid/pressure" {
			ds = o
		}
	}
	if ds == nil {
		t.Fatalf("dataset missing from report: %+v", report.Objects)
	}
	if ds.Kind != "dataset" || ds.Type != "float64" {
		t.Errorf("dataset = %s %s, want dataset float64", ds.Kind, ds.Type)
	}
	if !reflect.DeepEqual(ds.Dims, []uint64{2, 3}) {
		t.Errorf("dims = %v, want [2 3]", ds.Dims)
	}
	if got := ds.Attributes["uom"]; got != "bar" {
		t.Errorf("uom = %v, want bar", got)
	}
}

func TestInspectText(t *testing.T) {
	out := run(t, "inspect", writeSample(t))
	for _, want := range []string{"/RESQML/grid/", "/RESQML/grid/pressure float64 [2 3]", "@uom = bar"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMinMax(t *testing.T) {
	out := run(t, "minmax", "--components", "2", writeSample(t), "grid", "pressure")
	want := "0\t-2\t3\n1\t0\t8\n"
	if out != want {
		t.Errorf("minmax output = %q, want %q", out, want)
	}
}

func TestMinMaxMissingFile(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"minmax", filepath.Join(t.TempDir(), "missing.h5"), "grid", "pressure"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("minmax on a missing file succeeded")
	}
}

func TestServeHandler(t *testing.T) {
	ctx := context.Background()
	cfg := serveConfig{
		file:       filepath.Join(t.TempDir(), "served.h5"),
		serverName: "unit-server",
		chunkBytes: 64 * 8,
	}
	session, h, err := cfg.handler(ctx, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/etp"

	c, err := etp.Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if got := c.ServerName(); got != "unit-server" {
		t.Errorf("server name = %q", got)
	}
	c.Close()

	p, err := proxy.OpenRemote(ctx, url, nil, proxy.WithCompression(4))
	if err != nil {
		t.Fatalf("OpenRemote: %v", err)
	}
	vals := make([]float64, 100*10)
	for i := range vals {
		vals[i] = float64(i)
	}
	if err := proxy.WriteArray(ctx, p, "g", "values", vals, []uint64{100, 10}); err != nil {
		t.Fatalf("WriteArray: %v", err)
	}
	p.Close()
	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := hdf5.Open(cfg.file)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	info, err := f.DatasetInfo("/RESQML/g/values")
	if err != nil {
		t.Fatalf("DatasetInfo: %v", err)
	}
	if !reflect.DeepEqual(info.Chunks, []uint64{1, 64}) {
		t.Errorf("chunks = %v, want [1 64]", info.Chunks)
	}
}
