// Package consolidate writes the loaded trace files back out as one archive.
package consolidate

import (
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/TimelordUK/mtrace/internal/source"
)

// Writer merges source files into a single zip archive. Each file is
// stored once, under the directory it was first added with.
type Writer struct {
	zw      *zip.Writer
	written map[*source.File]string
	names   map[string]struct{}
	// modified is stamped on every entry so archives are reproducible
	modified time.Time

	mu sync.Mutex
}

// NewWriter creates a writer emitting a zip archive to w
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		zw:       zip.NewWriter(w),
		written:  make(map[*source.File]string),
		names:    make(map[string]struct{}),
		modified: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Add stores f under dir. It returns the archive name and whether the file
// was written now; a file already in the archive is skipped.
func (w *Writer) Add(dir string, f *source.File) (string, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if name, ok := w.written[f]; ok {
		return name, false, nil
	}

	name := w.uniqueName(path.Join(dir, f.Base()))
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: w.modified,
	}
	out, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return "", false, fmt.Errorf("failed to create archive entry %s: %w", name, err)
	}
	if _, err := out.Write(f.Data); err != nil {
		return "", false, fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}

	w.written[f] = name
	w.names[name] = struct{}{}
	return name, true, nil
}

// uniqueName appends " (n)" before the extension of a name already in use
func (w *Writer) uniqueName(name string) string {
	if _, taken := w.names[name]; !taken {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, taken := w.names[candidate]; !taken {
			return candidate
		}
	}
}

// FileCount returns the number of files written
func (w *Writer) FileCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.written)
}

// Close finishes the archive. The underlying writer is not closed.
func (w *Writer) Close() error {
	return w.zw.Close()
}
