package notify

import (
	"fmt"
	"time"

	"github.com/TimelordUK/mtrace/internal/trace"
)

// ParserErrorKind classifies why a file could not be parsed
type ParserErrorKind int

const (
	Corrupted ParserErrorKind = iota
	UnsupportedFormat
	NoEntries
	Overridden
	Unreadable
)

func (k ParserErrorKind) String() string {
	switch k {
	case Corrupted:
		return "corrupted"
	case UnsupportedFormat:
		return "unsupported format"
	case NoEntries:
		return "no entries"
	case Overridden:
		return "overridden"
	case Unreadable:
		return "unreadable"
	default:
		return "unknown"
	}
}

// ParserError reports a file that produced no usable trace. It is both an
// error (returned by parsers) and a Warning (surfaced to users).
type ParserError struct {
	Kind       ParserErrorKind
	Descriptor string
	Err        error
}

// NewParserError creates a parser error for the file named by descriptor
func NewParserError(kind ParserErrorKind, descriptor string, err error) *ParserError {
	return &ParserError{Kind: kind, Descriptor: descriptor, Err: err}
}

func (e *ParserError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Descriptor, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Descriptor, e.Kind, e.Err)
}

// Unwrap returns the underlying cause
func (e *ParserError) Unwrap() error {
	return e.Err
}

// Message implements Warning
func (e *ParserError) Message() string {
	return e.Error()
}

// TraceOverridden reports a candidate displaced by a conflicting one
type TraceOverridden struct {
	Descriptor string
	// Type is set when the displaced candidate is a parsed trace
	Type   *trace.Type
	Reason string
}

// Message implements Warning
func (w TraceOverridden) Message() string {
	what := w.Descriptor
	if w.Type != nil {
		what = fmt.Sprintf("%s (%s)", w.Descriptor, *w.Type)
	}
	if w.Reason == "" {
		return what + ": overridden"
	}
	return what + ": overridden by " + w.Reason
}

// TimeGap is a stretch of time with no trace data
type TimeGap struct {
	From, To trace.Timestamp
}

// Duration returns the length of the gap
func (g TimeGap) Duration() time.Duration {
	return time.Duration(g.To.Ns - g.From.Ns)
}

// TraceHasOldData reports a legacy trace left behind by an earlier capture.
// Its data ends before Gap, after which the other traces start.
type TraceHasOldData struct {
	Descriptor string
	Type       trace.Type
	Gap        TimeGap
}

// Message implements Warning
func (w TraceHasOldData) Message() string {
	return fmt.Sprintf("%s (%s): discarded, data ends %s before the other traces", w.Descriptor, w.Type, w.Gap.Duration())
}

// TraceWithoutRealTime reports a legacy trace dropped because it only has
// boot-relative timestamps while other traces carry wall-clock ones
type TraceWithoutRealTime struct {
	Descriptor string
	Type       trace.Type
}

// Message implements Warning
func (w TraceWithoutRealTime) Message() string {
	return fmt.Sprintf("%s (%s): discarded, no wall-clock timestamps", w.Descriptor, w.Type)
}

// LegacyTraceSuperseded reports a legacy trace ignored in favour of a trace
// of the same type from a rich bundle
type LegacyTraceSuperseded struct {
	Descriptor string
	Type       trace.Type
	By         string
}

// Message implements Warning
func (w LegacyTraceSuperseded) Message() string {
	return fmt.Sprintf("%s (%s): superseded by %s", w.Descriptor, w.Type, w.By)
}

// ScreenCaptureOverridden reports a screenshot or screen recording dropped
// because only one screen capture is kept
type ScreenCaptureOverridden struct {
	Descriptor string
	Type       trace.Type
	By         string
}

// Message implements Warning
func (w ScreenCaptureOverridden) Message() string {
	return fmt.Sprintf("%s (%s): only one screen capture is kept, using %s", w.Descriptor, w.Type, w.By)
}

// UnsupportedFile reports a file no parser accepts
type UnsupportedFile struct {
	Descriptor string
}

// Message implements Warning
func (w UnsupportedFile) Message() string {
	return w.Descriptor + ": unsupported file format"
}

// CorruptedArchive reports an archive that could not be expanded
type CorruptedArchive struct {
	Descriptor string
	Err        error
}

// Message implements Warning
func (w CorruptedArchive) Message() string {
	return fmt.Sprintf("%s: corrupted archive: %v", w.Descriptor, w.Err)
}

// NoValidFiles reports a load that produced no trace at all
type NoValidFiles struct{}

// Message implements Warning
func (NoValidFiles) Message() string {
	return "no valid trace files found"
}

// FrameMappingFailed reports that cross-trace frame correlation is unavailable
type FrameMappingFailed struct {
	Err error
}

// Message implements Warning
func (w FrameMappingFailed) Message() string {
	return fmt.Sprintf("frame mapping unavailable: %v", w.Err)
}

// TimelineInitFailed reports that the loaded traces could not be shown
type TimelineInitFailed struct {
	Err error
}

// Message implements Warning
func (w TimelineInitFailed) Message() string {
	return fmt.Sprintf("failed to initialize timeline: %v", w.Err)
}

// ViewerFailed reports a viewer that failed while handling an event
type ViewerFailed struct {
	TraceType trace.Type
	Err       error
}

// Message implements Warning
func (w ViewerFailed) Message() string {
	return fmt.Sprintf("%s viewer failed: %v", w.TraceType, w.Err)
}

// RemoteTimestampUnresolved reports an external timestamp that maps to no position
type RemoteTimestampUnresolved struct {
	Ns  int64
	Err error
}

// Message implements Warning
func (w RemoteTimestampUnresolved) Message() string {
	return fmt.Sprintf("cannot apply remote timestamp %d: %v", w.Ns, w.Err)
}
