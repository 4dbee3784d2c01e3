package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/TimelordUK/mtrace/internal/notify"
)

// DefaultMaxDepth bounds how many levels of nested archives are unpacked
const DefaultMaxDepth = 3

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
)

// IsZip reports whether f looks like a zip archive
func IsZip(f *File) bool {
	return bytes.HasPrefix(f.Data, zipMagic)
}

// IsGzip reports whether data starts with the gzip magic number
func IsGzip(data []byte) bool {
	return bytes.HasPrefix(data, gzipMagic)
}

// Gunzip decompresses a gzip blob
func Gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Expander unpacks archives into flat file lists
type Expander struct {
	MaxDepth int
	Sink     notify.Sink
	Progress notify.ProgressListener
}

// NewExpander creates an expander reporting to sink and progress
func NewExpander(sink notify.Sink, progress notify.ProgressListener) *Expander {
	if sink == nil {
		sink = notify.Discard
	}
	if progress == nil {
		progress = notify.NopProgress
	}
	return &Expander{MaxDepth: DefaultMaxDepth, Sink: sink, Progress: progress}
}

// Expand replaces zip archives by their members and gzip files by their
// decompressed content. Corrupted archives are reported and skipped.
func (e *Expander) Expand(ctx context.Context, files []*File) ([]*File, error) {
	var out []*File
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.Progress.OnProgressUpdate("Unzipping "+f.Path, float64(i)*100/float64(len(files)))
		out = append(out, e.expand(f, 0)...)
	}
	return out, nil
}

func (e *Expander) expand(f *File, depth int) []*File {
	switch {
	case IsZip(f):
		if depth >= e.MaxDepth {
			return []*File{f}
		}
		members, err := unzip(f)
		if err != nil {
			e.Sink.Warn(notify.CorruptedArchive{Descriptor: f.Descriptor(), Err: err})
			return nil
		}
		var out []*File
		for _, m := range members {
			out = append(out, e.expand(m, depth+1)...)
		}
		return out

	case IsGzip(f.Data) && strings.HasSuffix(strings.ToLower(f.Path), ".gz"):
		data, err := Gunzip(f.Data)
		if err != nil {
			e.Sink.Warn(notify.CorruptedArchive{Descriptor: f.Descriptor(), Err: err})
			return nil
		}
		plain := &File{
			Path:    f.Path[:len(f.Path)-len(".gz")],
			Data:    data,
			Archive: f.Archive,
		}
		return []*File{plain}

	default:
		return []*File{f}
	}
}

func unzip(archive *File) ([]*File, error) {
	r, err := zip.NewReader(bytes.NewReader(archive.Data), archive.Size())
	if err != nil {
		return nil, err
	}

	var members []*File
	for _, zf := range r.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", zf.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", zf.Name, err)
		}
		members = append(members, &File{
			Path:    zf.Name,
			Data:    data,
			Archive: archive.Path,
		})
	}
	return members, nil
}
