package trace

// Position is an immutable point on the timeline. It is replaced wholesale,
// never mutated, so pointer identity tells whether anything changed.
type Position struct {
	timestamp Timestamp
	frame     int
	hasFrame  bool
	entry     Entry
}

// PositionFromTimestamp creates a position carrying only a timestamp
func PositionFromTimestamp(ts Timestamp) *Position {
	return &Position{timestamp: ts}
}

// PositionFromEntry creates a position anchored to entry e
func PositionFromEntry(e Entry) *Position {
	p := &Position{timestamp: e.Timestamp(), entry: e}
	if fr, ok := e.Frames(); ok {
		p.frame = fr.Start
		p.hasFrame = true
	}
	return p
}

// PositionFromTimestampAndEntry creates a position at ts carrying e as its originating entry
func PositionFromTimestampAndEntry(ts Timestamp, e Entry) *Position {
	p := PositionFromEntry(e)
	p.timestamp = ts
	return p
}

// PositionFromFrame creates a position at the given absolute frame
func PositionFromFrame(frame int, ts Timestamp) *Position {
	return &Position{timestamp: ts, frame: frame, hasFrame: true}
}

// Timestamp returns the position's timestamp
func (p *Position) Timestamp() Timestamp {
	return p.timestamp
}

// Frame returns the absolute frame index, if known
func (p *Position) Frame() (int, bool) {
	return p.frame, p.hasFrame
}

// Entry returns the originating entry, if any
func (p *Position) Entry() (Entry, bool) {
	return p.entry, !p.entry.IsZero()
}

// Equal reports whether p and o describe the same point
func (p *Position) Equal(o *Position) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.timestamp == o.timestamp &&
		p.hasFrame == o.hasFrame && p.frame == o.frame &&
		p.entry == o.entry
}
