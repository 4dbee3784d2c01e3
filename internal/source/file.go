package source

import (
	"path"
	"path/filepath"
	"strings"

	mtraceio "github.com/TimelordUK/mtrace/internal/io"
)

// File is an immutable blob with a path-like name. Archive names the archive
// it was extracted from; it groups files and never owns them.
type File struct {
	Path    string
	Data    []byte
	Archive string
}

// NewFile creates a file that was not extracted from an archive
func NewFile(name string, data []byte) *File {
	return &File{Path: name, Data: data}
}

// Size returns the file size in bytes
func (f *File) Size() int64 {
	return int64(len(f.Data))
}

// Descriptor names the file for users, including its archive when present
func (f *File) Descriptor() string {
	if f.Archive == "" {
		return f.Path
	}
	return f.Archive + " (" + f.Path + ")"
}

// Base returns the last element of the file's path
func (f *File) Base() string {
	return path.Base(filepath.ToSlash(f.Path))
}

// HasSuffix reports whether the lower-cased name ends with any of suffixes
func (f *File) HasSuffix(suffixes ...string) bool {
	name := strings.ToLower(f.Path)
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// ReadFile loads a file from disk
func ReadFile(p string) (*File, error) {
	data, err := mtraceio.ReadAll(p)
	if err != nil {
		return nil, err
	}
	return NewFile(filepath.Base(p), data), nil
}

// ReadFiles loads every path, stopping at the first failure
func ReadFiles(paths []string) ([]*File, error) {
	files := make([]*File, 0, len(paths))
	for _, p := range paths {
		f, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
