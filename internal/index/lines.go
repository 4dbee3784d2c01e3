package index

import "bytes"

// LineIndex stores byte offsets for each line of an in-memory blob
type LineIndex struct {
	offsets []int
	data    []byte
}

// BuildLineIndex scans data and builds a line offset index
func BuildLineIndex(data []byte) *LineIndex {
	if len(data) == 0 {
		return &LineIndex{data: data}
	}

	// Estimate initial capacity (assume ~100 bytes per line)
	offsets := make([]int, 0, len(data)/100+1)
	offsets = append(offsets, 0)

	pos := 0
	for {
		idx := bytes.IndexByte(data[pos:], '\n')
		if idx == -1 {
			break
		}
		lineStart := pos + idx + 1
		if lineStart < len(data) {
			offsets = append(offsets, lineStart)
		}
		pos = lineStart
		if pos >= len(data) {
			break
		}
	}

	return &LineIndex{offsets: offsets, data: data}
}

// LineCount returns the total number of lines
func (idx *LineIndex) LineCount() int {
	return len(idx.offsets)
}

// GetLine returns the content of line at given index (0-based) without its line ending
func (idx *LineIndex) GetLine(lineNum int) []byte {
	if lineNum < 0 || lineNum >= len(idx.offsets) {
		return nil
	}

	start := idx.offsets[lineNum]
	end := len(idx.data)
	if lineNum+1 < len(idx.offsets) {
		end = idx.offsets[lineNum+1]
	}

	return bytes.TrimRight(idx.data[start:end], "\r\n")
}

// ByteOffset returns the byte offset of a line
func (idx *LineIndex) ByteOffset(lineNum int) int {
	if lineNum < 0 || lineNum >= len(idx.offsets) {
		return -1
	}
	return idx.offsets[lineNum]
}
