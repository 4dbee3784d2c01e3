package trace

import "context"

// Parser is the contract a per-format parser collaborator satisfies.
// Timestamps are expected to be monotonically non-decreasing.
type Parser interface {
	TraceType() Type
	LengthEntries() int
	Descriptors() []string
	// Timestamps returns one timestamp per entry in domain d, or nil when
	// the parser has no timestamps in that domain.
	Timestamps(d Domain) []Timestamp
	// Entry materialises the value of the entry at index.
	Entry(ctx context.Context, index int) (any, error)
}

// FrameSource is implemented by parsers whose entries carry a frame number.
// Entries without a frame report -1.
type FrameSource interface {
	FrameNumbers(ctx context.Context) ([]int64, error)
}

// OffsetSource is implemented by parsers that know the real-to-elapsed clock offset
type OffsetSource interface {
	RealToElapsedOffset() (int64, bool)
}
