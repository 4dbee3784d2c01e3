package io

import (
	"fmt"
	"os"

	"golang.org/x/exp/mmap"
)

// MappedFile provides memory-mapped read access to a file
type MappedFile struct {
	reader *mmap.ReaderAt
	path   string
}

// OpenMapped opens a file with memory mapping
func OpenMapped(path string) (*MappedFile, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	return &MappedFile{reader: reader, path: path}, nil
}

// ReadAt reads len(p) bytes at offset
func (m *MappedFile) ReadAt(p []byte, off int64) (int, error) {
	return m.reader.ReadAt(p, off)
}

// Size returns the file size
func (m *MappedFile) Size() int64 {
	return int64(m.reader.Len())
}

// Path returns the file path
func (m *MappedFile) Path() string {
	return m.path
}

// Close closes the memory mapping
func (m *MappedFile) Close() error {
	return m.reader.Close()
}

// ReadRange reads bytes from start to end
func (m *MappedFile) ReadRange(start, end int64) ([]byte, error) {
	if end > m.Size() {
		end = m.Size()
	}
	if start >= end {
		return nil, nil
	}

	buf := make([]byte, end-start)
	if _, err := m.reader.ReadAt(buf, start); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadAll copies the whole mapped file into memory and releases the mapping
func ReadAll(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		// mmap of an empty file fails on some platforms
		return []byte{}, nil
	}

	m, err := OpenMapped(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	return m.ReadRange(0, m.Size())
}
