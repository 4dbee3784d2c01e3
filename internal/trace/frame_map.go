package trace

import (
	"context"
	"fmt"
	"sort"
)

// FramesRange is a half-open range of absolute frame indexes
type FramesRange struct {
	Start, End int
}

// Empty reports whether the range holds no frame
func (r FramesRange) Empty() bool {
	return r.End <= r.Start
}

// Contains reports whether frame lies in the range
func (r FramesRange) Contains(frame int) bool {
	return frame >= r.Start && frame < r.End
}

// EntriesRange is a half-open range of entry indexes
type EntriesRange struct {
	Start, End int
}

// Empty reports whether the range holds no entry
func (r EntriesRange) Empty() bool {
	return r.End <= r.Start
}

// FrameMap correlates entries of different traces sharing a frame number.
// Absolute frame indexes are positions in the sorted list of frame numbers.
type FrameMap struct {
	numbers []int64
	traces  []Type
}

// FrameCount returns the number of distinct frames
func (m *FrameMap) FrameCount() int {
	return len(m.numbers)
}

// FrameNumber returns the frame number at absolute index
func (m *FrameMap) FrameNumber(index int) int64 {
	return m.numbers[index]
}

// Index returns the absolute index of a frame number
func (m *FrameMap) Index(number int64) (int, bool) {
	i := sort.Search(len(m.numbers), func(i int) bool { return m.numbers[i] >= number })
	if i < len(m.numbers) && m.numbers[i] == number {
		return i, true
	}
	return 0, false
}

// Traces returns the types that contributed frame information
func (m *FrameMap) Traces() []Type {
	return m.traces
}

// BuildFrameMap reads frame numbers from every trace whose parser provides
// them and attaches per-entry frame ranges to those traces.
func BuildFrameMap(ctx context.Context, traces *Traces) (*FrameMap, error) {
	perTrace := make(map[Type][]int64)
	seen := make(map[int64]struct{})

	for _, tr := range traces.All() {
		src, ok := tr.Parser().(FrameSource)
		if !ok {
			continue
		}
		numbers, err := src.FrameNumbers(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s trace: reading frame numbers: %w", tr.Type(), err)
		}
		if len(numbers) != tr.Len() {
			return nil, fmt.Errorf("%s trace: %d frame numbers for %d entries", tr.Type(), len(numbers), tr.Len())
		}
		last := int64(-1)
		for i, n := range numbers {
			if n < 0 {
				continue
			}
			if n < last {
				return nil, fmt.Errorf("%s trace: frame number decreases at entry %d (%d after %d)", tr.Type(), i, n, last)
			}
			last = n
			seen[n] = struct{}{}
		}
		perTrace[tr.Type()] = numbers
	}

	m := &FrameMap{numbers: make([]int64, 0, len(seen))}
	for n := range seen {
		m.numbers = append(m.numbers, n)
	}
	sort.Slice(m.numbers, func(i, j int) bool { return m.numbers[i] < m.numbers[j] })

	for _, tr := range traces.All() {
		numbers, ok := perTrace[tr.Type()]
		if !ok {
			if err := tr.setFrameInfo(nil, 0); err != nil {
				return nil, err
			}
			continue
		}
		frames := make([]FramesRange, len(numbers))
		for i, n := range numbers {
			if n < 0 {
				continue
			}
			idx, _ := m.Index(n)
			frames[i] = FramesRange{Start: idx, End: idx + 1}
		}
		if err := tr.setFrameInfo(frames, len(m.numbers)); err != nil {
			return nil, err
		}
		m.traces = append(m.traces, tr.Type())
	}

	traces.frameMap = m
	return m, nil
}
