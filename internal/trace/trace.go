package trace

import (
	"context"
	"fmt"
	"sort"
)

// Entry addresses one element of a trace. The zero Entry refers to nothing.
type Entry struct {
	trace *Trace
	index int
}

// Trace returns the trace the entry belongs to
func (e Entry) Trace() *Trace {
	return e.trace
}

// Index returns the entry's position within its trace
func (e Entry) Index() int {
	return e.index
}

// Timestamp returns the entry's timestamp in the trace's domain
func (e Entry) Timestamp() Timestamp {
	return e.trace.timestamps[e.index]
}

// HasValidTimestamp reports whether the entry carries a real timestamp
func (e Entry) HasValidTimestamp() bool {
	return e.Timestamp().Valid()
}

// Value materialises the entry's value through the parser
func (e Entry) Value(ctx context.Context) (any, error) {
	return e.trace.parser.Entry(ctx, e.index)
}

// Frames returns the frame range the entry belongs to
func (e Entry) Frames() (FramesRange, bool) {
	if e.trace.entryFrames == nil {
		return FramesRange{}, false
	}
	fr := e.trace.entryFrames[e.index]
	return fr, !fr.Empty()
}

// IsZero reports whether e refers to no entry
func (e Entry) IsZero() bool {
	return e.trace == nil
}

// Trace is one trace type's ordered entries as produced by a parser
type Trace struct {
	typ        Type
	parser     Parser
	timestamps []Timestamp

	entryFrames []FramesRange
	frameCount  int
}

// FromParser wraps p, reading its timestamps in domain d
func FromParser(p Parser, d Domain) (*Trace, error) {
	timestamps := p.Timestamps(d)
	if len(timestamps) != p.LengthEntries() {
		return nil, fmt.Errorf("%s trace: %d timestamps in %s domain for %d entries",
			p.TraceType(), len(timestamps), d, p.LengthEntries())
	}
	return &Trace{
		typ:        p.TraceType(),
		parser:     p,
		timestamps: timestamps,
	}, nil
}

// Type returns the trace type
func (t *Trace) Type() Type {
	return t.typ
}

// Parser returns the parser backing the trace
func (t *Trace) Parser() Parser {
	return t.parser
}

// Descriptors names the files the trace was parsed from
func (t *Trace) Descriptors() []string {
	return t.parser.Descriptors()
}

// Len returns the number of entries
func (t *Trace) Len() int {
	return len(t.timestamps)
}

// Domain returns the domain of the trace's timestamps
func (t *Trace) Domain() Domain {
	if len(t.timestamps) == 0 {
		return DomainReal
	}
	return t.timestamps[0].Domain
}

// Entry returns the entry at index. Negative indexes count from the end.
func (t *Trace) Entry(index int) (Entry, bool) {
	if index < 0 {
		index += len(t.timestamps)
	}
	if index < 0 || index >= len(t.timestamps) {
		return Entry{}, false
	}
	return Entry{trace: t, index: index}, true
}

// First returns the first entry
func (t *Trace) First() (Entry, bool) {
	return t.Entry(0)
}

// Last returns the last entry
func (t *Trace) Last() (Entry, bool) {
	return t.Entry(-1)
}

// Timestamps returns the entries' timestamps
func (t *Trace) Timestamps() []Timestamp {
	return t.timestamps
}

// IsDump reports whether the trace is a single snapshot
func (t *Trace) IsDump() bool {
	return len(t.timestamps) == 1
}

// IsDumpWithoutTimestamp reports whether the trace is a snapshot without a valid timestamp
func (t *Trace) IsDumpWithoutTimestamp() bool {
	return t.IsDump() && !t.timestamps[0].Valid()
}

// firstGreaterOrEqual returns the index of the first timestamp >= ts
func (t *Trace) firstGreaterOrEqual(ts Timestamp) int {
	return sort.Search(len(t.timestamps), func(i int) bool {
		return t.timestamps[i].Ns >= ts.Ns
	})
}

// firstGreater returns the index of the first timestamp > ts
func (t *Trace) firstGreater(ts Timestamp) int {
	return sort.Search(len(t.timestamps), func(i int) bool {
		return t.timestamps[i].Ns > ts.Ns
	})
}

// FindFirstGreaterOrEqual returns the first entry at or after ts
func (t *Trace) FindFirstGreaterOrEqual(ts Timestamp) (Entry, bool) {
	return t.Entry(t.firstGreaterOrEqual(ts))
}

// FindFirstGreater returns the first entry strictly after ts
func (t *Trace) FindFirstGreater(ts Timestamp) (Entry, bool) {
	return t.Entry(t.firstGreater(ts))
}

// FindLastLowerOrEqual returns the last entry at or before ts
func (t *Trace) FindLastLowerOrEqual(ts Timestamp) (Entry, bool) {
	i := t.firstGreater(ts)
	if i == 0 {
		return Entry{}, false
	}
	return t.Entry(i - 1)
}

// FindLastLower returns the last entry strictly before ts
func (t *Trace) FindLastLower(ts Timestamp) (Entry, bool) {
	i := t.firstGreaterOrEqual(ts)
	if i == 0 {
		return Entry{}, false
	}
	return t.Entry(i - 1)
}

// FindClosest returns the entry whose timestamp is nearest to ts; ties go to the later entry
func (t *Trace) FindClosest(ts Timestamp) (Entry, bool) {
	n := len(t.timestamps)
	if n == 0 {
		return Entry{}, false
	}
	i := t.firstGreaterOrEqual(ts)
	if i == n {
		return t.Entry(n - 1)
	}
	if i == 0 {
		return t.Entry(0)
	}
	diff := abs(t.timestamps[i].Ns - ts.Ns)
	prevDiff := abs(t.timestamps[i-1].Ns - ts.Ns)
	if prevDiff < diff {
		return t.Entry(i - 1)
	}
	return t.Entry(i)
}

// HasFrameInfo reports whether a frame map has been applied to the trace
func (t *Trace) HasFrameInfo() bool {
	return t.entryFrames != nil
}

// setFrameInfo attaches per-entry frame ranges computed by BuildFrameMap
func (t *Trace) setFrameInfo(entryFrames []FramesRange, frameCount int) error {
	if entryFrames != nil && len(entryFrames) != len(t.timestamps) {
		return fmt.Errorf("%s trace: frame info for %d entries, trace has %d",
			t.typ, len(entryFrames), len(t.timestamps))
	}
	t.entryFrames = entryFrames
	t.frameCount = frameCount
	return nil
}

// EntriesForFrame returns the entries of this trace that belong to frame
func (t *Trace) EntriesForFrame(frame int) EntriesRange {
	if t.entryFrames == nil || frame < 0 || frame >= t.frameCount {
		return EntriesRange{}
	}
	r := EntriesRange{Start: -1}
	for i, fr := range t.entryFrames {
		if fr.Contains(frame) {
			if r.Start < 0 {
				r.Start = i
			}
			r.End = i + 1
		}
	}
	if r.Start < 0 {
		return EntriesRange{}
	}
	return r
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
