// Package timeline owns the current position over a loaded trace collection.
package timeline

import (
	"errors"
	"fmt"

	"github.com/TimelordUK/mtrace/internal/source"
	"github.com/TimelordUK/mtrace/internal/trace"
)

var (
	// ErrNoTimestamps is returned when a position is set while no trace has timestamps
	ErrNoTimestamps = errors.New("no trace has timestamps")
	// ErrDomainMismatch is returned for a timestamp whose domain differs from the collection's
	ErrDomainMismatch = errors.New("timestamp domain differs from the trace collection")
)

// Range is an inclusive span of timestamps
type Range struct {
	From trace.Timestamp
	To   trace.Timestamp
}

// Timeline is the single authority on the current position
type Timeline struct {
	traces          *trace.Traces
	domain          trace.Domain
	converter       *trace.Converter
	screenRecording *source.File

	first, last   trace.Entry
	hasTimestamps bool

	explicit  *trace.Position
	active    []*trace.Trace
	selection *Range
	// current is returned again while the computed position is unchanged
	current *trace.Position
}

// New creates an empty timeline
func New() *Timeline {
	t := &Timeline{}
	t.Clear()
	return t
}

// Clear resets the timeline to an empty collection
func (t *Timeline) Clear() {
	*t = Timeline{
		traces:    trace.NewTraces(),
		domain:    trace.DomainPriority[0],
		converter: trace.NewConverter(nil),
	}
}

// Initialize resets the timeline onto traces. Dumps without a valid
// timestamp are left out.
func (t *Timeline) Initialize(traces *trace.Traces, screenRecording *source.File, converter *trace.Converter) error {
	if traces == nil {
		return errors.New("timeline: nil trace collection")
	}
	t.Clear()
	if converter != nil {
		t.converter = converter
	}
	t.screenRecording = screenRecording

	retained := trace.NewTraces()
	domainSet := false
	for _, tr := range traces.All() {
		if tr.IsDumpWithoutTimestamp() {
			continue
		}
		if tr.Len() > 0 {
			if !domainSet {
				t.domain, domainSet = tr.Domain(), true
			} else if tr.Domain() != t.domain {
				return fmt.Errorf("%w: %s trace is %s, expected %s", ErrDomainMismatch, tr.Type(), tr.Domain(), t.domain)
			}
		}
		if err := retained.Add(tr); err != nil {
			return err
		}

		first, ok := tr.First()
		if !ok {
			continue
		}
		last, _ := tr.Last()
		if !t.hasTimestamps || first.Timestamp().Before(t.first.Timestamp()) {
			t.first = first
		}
		if !t.hasTimestamps || t.last.Timestamp().Before(last.Timestamp()) {
			t.last = last
		}
		t.hasTimestamps = true
	}
	t.traces = retained
	return nil
}

// Traces returns the traces that take part in the timeline
func (t *Timeline) Traces() *trace.Traces {
	return t.traces
}

// Domain returns the timestamp domain positions must use
func (t *Timeline) Domain() trace.Domain {
	return t.domain
}

// Converter returns the converter for displaying and translating timestamps
func (t *Timeline) Converter() *trace.Converter {
	return t.converter
}

// ScreenRecordingVideo returns the side-channel video, if any
func (t *Timeline) ScreenRecordingVideo() *source.File {
	return t.screenRecording
}

// HasTimestamps reports whether any retained trace has an entry
func (t *Timeline) HasTimestamps() bool {
	return t.hasTimestamps
}

// HasMoreThanOneDistinctTimestamp reports whether the full range is not a single instant
func (t *Timeline) HasMoreThanOneDistinctTimestamp() bool {
	return t.hasTimestamps && t.first.Timestamp().Before(t.last.Timestamp())
}

// FullRange spans the first to the last entry of all retained traces
func (t *Timeline) FullRange() (Range, bool) {
	if !t.hasTimestamps {
		return Range{}, false
	}
	return Range{From: t.first.Timestamp(), To: t.last.Timestamp()}, true
}

// SelectionRange returns the selected range, the full range by default
func (t *Timeline) SelectionRange() (Range, bool) {
	if t.selection != nil {
		return *t.selection, true
	}
	return t.FullRange()
}

// SetSelectionRange selects a sub-range of the timeline
func (t *Timeline) SetSelectionRange(r Range) error {
	if err := t.checkTimestamp(r.From); err != nil {
		return err
	}
	if err := t.checkTimestamp(r.To); err != nil {
		return err
	}
	if r.To.Before(r.From) {
		r.From, r.To = r.To, r.From
	}
	t.selection = &r
	return nil
}

func (t *Timeline) checkTimestamp(ts trace.Timestamp) error {
	if !t.hasTimestamps {
		return ErrNoTimestamps
	}
	if ts.Domain != t.domain {
		return fmt.Errorf("%w: got %s, collection is %s", ErrDomainMismatch, ts.Domain, t.domain)
	}
	return nil
}

// SetPosition stores an explicit position. It fails when no trace has
// timestamps or the position is in another domain.
func (t *Timeline) SetPosition(pos *trace.Position) error {
	if pos == nil {
		t.explicit = nil
		return nil
	}
	if err := t.checkTimestamp(pos.Timestamp()); err != nil {
		return err
	}
	t.explicit = pos
	return nil
}

// CurrentPosition returns the explicit position if set, else the earliest
// entry of the active traces, else the earliest entry overall. It returns
// nil when no trace has timestamps.
func (t *Timeline) CurrentPosition() *trace.Position {
	if t.explicit != nil {
		return t.remember(t.explicit)
	}
	if e, ok := earliest(t.active); ok {
		return t.remember(trace.PositionFromEntry(e))
	}
	if t.hasTimestamps {
		return t.remember(trace.PositionFromEntry(t.first))
	}
	t.current = nil
	return nil
}

func (t *Timeline) remember(pos *trace.Position) *trace.Position {
	if t.current != nil && t.current.Equal(pos) {
		return t.current
	}
	t.current = pos
	return pos
}

func earliest(traces []*trace.Trace) (trace.Entry, bool) {
	var best trace.Entry
	found := false
	for _, tr := range traces {
		e, ok := tr.First()
		if !ok {
			continue
		}
		if !found || e.Timestamp().Before(best.Timestamp()) {
			best, found = e, true
		}
	}
	return best, found
}

// ActiveTrace returns the trace driving the default position, or nil
func (t *Timeline) ActiveTrace() *trace.Trace {
	if len(t.active) == 0 {
		return nil
	}
	return t.active[0]
}

// TrySetActiveTrace makes tr the active trace. It returns false when tr is
// already active, has no entries or is not part of the timeline.
func (t *Timeline) TrySetActiveTrace(tr *trace.Trace) bool {
	if tr == nil || tr.Len() == 0 || !t.traces.Contains(tr) {
		return false
	}
	for _, a := range t.active {
		if a == tr {
			return false
		}
	}
	t.active = []*trace.Trace{tr}
	return true
}

// currentEntry is the entry of tr at the current position
func (t *Timeline) currentEntry(tr *trace.Trace) (trace.Entry, bool) {
	pos := t.CurrentPosition()
	if pos == nil {
		return trace.Entry{}, false
	}
	if e, ok := pos.Entry(); ok && e.Trace() == tr {
		return e, true
	}
	return tr.FindLastLowerOrEqual(pos.Timestamp())
}

// PreviousEntry returns the entry of typ before the current position
func (t *Timeline) PreviousEntry(typ trace.Type) (trace.Entry, bool) {
	tr := t.traces.Get(typ)
	if tr == nil {
		return trace.Entry{}, false
	}
	cur, ok := t.currentEntry(tr)
	if !ok || cur.Index() == 0 {
		return trace.Entry{}, false
	}
	return tr.Entry(cur.Index() - 1)
}

// NextEntry returns the entry of typ after the current position. With no
// current entry it returns the first one.
func (t *Timeline) NextEntry(typ trace.Type) (trace.Entry, bool) {
	tr := t.traces.Get(typ)
	if tr == nil {
		return trace.Entry{}, false
	}
	cur, ok := t.currentEntry(tr)
	if !ok {
		return tr.First()
	}
	if cur.Index()+1 >= tr.Len() {
		return trace.Entry{}, false
	}
	return tr.Entry(cur.Index() + 1)
}

// MakePositionFromActiveTrace anchors a position at ts, carrying the active
// trace's entry at or before it
func (t *Timeline) MakePositionFromActiveTrace(ts trace.Timestamp) *trace.Position {
	if tr := t.ActiveTrace(); tr != nil {
		if e, ok := tr.FindLastLowerOrEqual(ts); ok {
			return trace.PositionFromTimestampAndEntry(ts, e)
		}
	}
	return trace.PositionFromTimestamp(ts)
}
