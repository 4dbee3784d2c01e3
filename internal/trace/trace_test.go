package trace

import (
	"context"
	"errors"
	"testing"
)

type fakeParser struct {
	typ    Type
	real   []int64
	frames []int64
}

func (p *fakeParser) TraceType() Type { return p.typ }

func (p *fakeParser) LengthEntries() int { return len(p.real) }

func (p *fakeParser) Descriptors() []string { return []string{p.typ.Info().Key} }

func (p *fakeParser) Entry(_ context.Context, i int) (any, error) { return i, nil }

func (p *fakeParser) Timestamps(d Domain) []Timestamp {
	if d != DomainReal {
		return nil
	}
	out := make([]Timestamp, len(p.real))
	for i, ns := range p.real {
		out[i] = NewTimestamp(DomainReal, ns)
	}
	return out
}

type framedParser struct {
	fakeParser
}

func (p *framedParser) FrameNumbers(context.Context) ([]int64, error) { return p.frames, nil }

func mustTrace(t *testing.T, p Parser) *Trace {
	t.Helper()
	tr, err := FromParser(p, DomainReal)
	if err != nil {
		t.Fatalf("FromParser: %v", err)
	}
	return tr
}

func TestFindEntries(t *testing.T) {
	tr := mustTrace(t, &fakeParser{typ: WindowManager, real: []int64{10, 20, 20, 30}})
	ts := func(ns int64) Timestamp { return NewTimestamp(DomainReal, ns) }

	tests := []struct {
		name  string
		find  func(Timestamp) (Entry, bool)
		at    int64
		want  int
		found bool
	}{
		{"first >= exact", tr.FindFirstGreaterOrEqual, 20, 1, true},
		{"first >= between", tr.FindFirstGreaterOrEqual, 25, 3, true},
		{"first >= past end", tr.FindFirstGreaterOrEqual, 31, 0, false},
		{"first > exact", tr.FindFirstGreater, 20, 3, true},
		{"last <= exact", tr.FindLastLowerOrEqual, 20, 2, true},
		{"last <= before start", tr.FindLastLowerOrEqual, 9, 0, false},
		{"last < exact", tr.FindLastLower, 20, 0, true},
		{"last < at start", tr.FindLastLower, 10, 0, false},
		{"closest before start", tr.FindClosest, 1, 0, true},
		{"closest after end", tr.FindClosest, 99, 3, true},
		{"closest nearer previous", tr.FindClosest, 12, 0, true},
		{"closest tie goes later", tr.FindClosest, 25, 3, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, ok := tc.find(ts(tc.at))
			if ok != tc.found {
				t.Fatalf("found = %v, want %v", ok, tc.found)
			}
			if ok && e.Index() != tc.want {
				t.Fatalf("index = %d, want %d", e.Index(), tc.want)
			}
		})
	}
}

func TestFromParserRejectsMissingDomain(t *testing.T) {
	if _, err := FromParser(&fakeParser{typ: ProtoLog, real: []int64{1}}, DomainElapsed); err == nil {
		t.Fatal("expected error for parser without elapsed timestamps")
	}
}

func TestDumpDetection(t *testing.T) {
	dump := mustTrace(t, &fakeParser{typ: WindowManager, real: []int64{InvalidNs}})
	if !dump.IsDumpWithoutTimestamp() {
		t.Fatal("single invalid entry should be a dump without timestamp")
	}
	timed := mustTrace(t, &fakeParser{typ: WindowManager, real: []int64{5}})
	if !timed.IsDump() || timed.IsDumpWithoutTimestamp() {
		t.Fatal("single valid entry is a dump with timestamp")
	}
}

func TestTracesUniqueType(t *testing.T) {
	c := NewTraces()
	if err := c.Add(mustTrace(t, &fakeParser{typ: ProtoLog, real: []int64{1}})); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := c.Add(mustTrace(t, &fakeParser{typ: ProtoLog, real: []int64{2}}))
	if !errors.Is(err, ErrDuplicateType) {
		t.Fatalf("second add = %v, want ErrDuplicateType", err)
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
}

func TestTracesIterateInTypeOrder(t *testing.T) {
	c := NewTraces()
	for _, typ := range []Type{EventLog, SurfaceFlinger, WindowManager} {
		if err := c.Add(mustTrace(t, &fakeParser{typ: typ, real: []int64{1}})); err != nil {
			t.Fatal(err)
		}
	}
	got := c.Types()
	want := []Type{SurfaceFlinger, WindowManager, EventLog}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("types = %v, want %v", got, want)
		}
	}
}

func TestBuildFrameMap(t *testing.T) {
	sf := mustTrace(t, &framedParser{fakeParser{typ: SurfaceFlinger, real: []int64{1, 2, 3}, frames: []int64{100, 101, 103}}})
	tx := mustTrace(t, &framedParser{fakeParser{typ: Transactions, real: []int64{1, 2, 3, 4}, frames: []int64{100, 100, -1, 103}}})
	log := mustTrace(t, &fakeParser{typ: ProtoLog, real: []int64{1}})
	c := NewTraces()
	for _, tr := range []*Trace{sf, tx, log} {
		if err := c.Add(tr); err != nil {
			t.Fatal(err)
		}
	}

	m, err := BuildFrameMap(context.Background(), c)
	if err != nil {
		t.Fatalf("BuildFrameMap: %v", err)
	}
	if m.FrameCount() != 3 {
		t.Fatalf("frame count = %d, want 3", m.FrameCount())
	}
	if c.FrameMap() != m {
		t.Fatal("collection should expose the built frame map")
	}

	idx, ok := m.Index(100)
	if !ok || idx != 0 {
		t.Fatalf("index of 100 = %d,%v", idx, ok)
	}
	if r := tx.EntriesForFrame(idx); r != (EntriesRange{Start: 0, End: 2}) {
		t.Fatalf("transactions for frame 100 = %+v", r)
	}
	e, _ := tx.Entry(2)
	if _, ok := e.Frames(); ok {
		t.Fatal("entry without frame number should have no frames")
	}
	if log.HasFrameInfo() {
		t.Fatal("trace without frame source should have no frame info")
	}
	last, _ := sf.Entry(2)
	pos := PositionFromEntry(last)
	if f, ok := pos.Frame(); !ok || f != 2 {
		t.Fatalf("position frame = %d,%v; want 2,true", f, ok)
	}
}

func TestBuildFrameMapRejectsDecreasingFrames(t *testing.T) {
	bad := mustTrace(t, &framedParser{fakeParser{typ: SurfaceFlinger, real: []int64{1, 2}, frames: []int64{5, 4}}})
	c := NewTraces()
	if err := c.Add(bad); err != nil {
		t.Fatal(err)
	}
	if _, err := BuildFrameMap(context.Background(), c); err == nil {
		t.Fatal("expected error for decreasing frame numbers")
	}
}

func TestConverter(t *testing.T) {
	c := NewConverter(nil)
	if _, err := c.FromRealNs(DomainElapsed, 100); !errors.Is(err, ErrNoOffset) {
		t.Fatalf("FromRealNs without offset = %v, want ErrNoOffset", err)
	}
	c.SetRealToElapsedOffset(40)
	ts, err := c.FromRealNs(DomainElapsed, 100)
	if err != nil || ts != NewTimestamp(DomainElapsed, 60) {
		t.Fatalf("FromRealNs = %v, %v", ts, err)
	}
	back, err := c.ToRealNs(ts)
	if err != nil || back != 100 {
		t.Fatalf("ToRealNs = %d, %v", back, err)
	}
	if got := FormatElapsed(90061001000001); got != "1d1h1m1s1ms1ns" {
		t.Fatalf("FormatElapsed = %q", got)
	}
}

func TestPositionEqual(t *testing.T) {
	a := PositionFromTimestamp(NewTimestamp(DomainReal, 5))
	b := PositionFromTimestamp(NewTimestamp(DomainReal, 5))
	if a == b || !a.Equal(b) {
		t.Fatal("distinct positions with same content should be Equal")
	}
	if a.Equal(PositionFromFrame(1, NewTimestamp(DomainReal, 5))) {
		t.Fatal("frame should participate in equality")
	}
}
