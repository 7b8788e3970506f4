package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/openfroyo/hostdata/pkg/data"
	"github.com/openfroyo/hostdata/pkg/ffi"
)

func TestTreePrinter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.yaml")
	content := `
name: web
port: 8080
offset: -2
ratio: 0.5
tags: [a, b]
tls: {enabled: true, cert: null}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	bridge := ffi.NewBridge(nil)
	h := bridge.Open(context.Background(), path)
	if h == ffi.NullHandle {
		t.Fatalf("open failed: %v", ffi.LastError())
	}
	defer bridge.FreeValue(h)

	tests := []struct {
		name    string
		pointer data.Pointer
		want    string
	}{
		{
			name:    "whole document",
			pointer: data.Whole,
			want: `object{6}
  name: "web" string
  offset: -2 int
  port: 8080 uint
  ratio: 0.5 float
  tags: array[2]
    [0]: "a" string
    [1]: "b" string
  tls: object{2}
    cert: null null
    enabled: true bool
`,
		},
		{
			name:    "subtree",
			pointer: data.At("/tls"),
			want: `object{2}
  cert: null null
  enabled: true bool
`,
		},
		{
			name:    "scalar",
			pointer: data.At("/port"),
			want:    "8080 uint\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := newTreePrinter(bridge, &buf).print(h, tt.pointer); err != nil {
				t.Fatalf("print error: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("output mismatch\ngot:\n%s\nwant:\n%s", buf.String(), tt.want)
			}
		})
	}

	if bridge.Len() != 1 {
		t.Errorf("live handles = %d, want 1", bridge.Len())
	}

	var buf bytes.Buffer
	if err := newTreePrinter(bridge, &buf).print(h, data.At("/missing")); err == nil {
		t.Error("expected error for missing pointer")
	}
}
