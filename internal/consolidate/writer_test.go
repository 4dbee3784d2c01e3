package consolidate

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/TimelordUK/mtrace/internal/source"
)

func TestWriterDeduplicatesFiles(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	shared := source.NewFile("trace.pftrace", []byte("shared"))
	other := &source.File{Path: "nested/trace.pftrace", Data: []byte("other")}

	if name, wrote, err := w.Add("sf", shared); err != nil || !wrote || name != "sf/trace.pftrace" {
		t.Fatalf("first add = %q,%v,%v", name, wrote, err)
	}
	if name, wrote, _ := w.Add("transactions", shared); wrote || name != "sf/trace.pftrace" {
		t.Fatalf("second add of shared file = %q,%v", name, wrote)
	}
	if name, _, _ := w.Add("sf", other); name != "sf/trace (1).pftrace" {
		t.Fatalf("colliding name = %q", name)
	}
	if w.FileCount() != 2 {
		t.Fatalf("FileCount = %d, want 2", w.FileCount())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	want := map[string]string{"sf/trace.pftrace": "shared", "sf/trace (1).pftrace": "other"}
	if len(zr.File) != len(want) {
		t.Fatalf("archive has %d entries, want %d", len(zr.File), len(want))
	}
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			t.Fatalf("open %s: %v", zf.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != want[zf.Name] {
			t.Fatalf("%s = %q, want %q", zf.Name, data, want[zf.Name])
		}
	}
}
