package viewer

import (
	"context"
	"fmt"

	"github.com/TimelordUK/mtrace/internal/events"
	"github.com/TimelordUK/mtrace/internal/trace"
)

// RecordingViewer is an always-visible overlay tracking the screen
// recording frame at the current position
type RecordingViewer struct {
	trace  *trace.Trace
	view   *View
	format func(trace.Timestamp) string

	frame    trace.Entry
	position *trace.Position
}

var _ Viewer = (*RecordingViewer)(nil)

// NewRecordingViewer creates an overlay over a screen recording trace
func NewRecordingViewer(tr *trace.Trace, format func(trace.Timestamp) string) *RecordingViewer {
	return &RecordingViewer{
		trace:  tr,
		format: format,
		view: &View{
			ID:     tr.Type().Info().Key,
			Title:  tr.Type().String(),
			Kind:   ViewOverlay,
			Traces: []trace.Type{tr.Type()},
		},
	}
}

func (v *RecordingViewer) Views() []*View { return []*View{v.view} }

func (v *RecordingViewer) Dependencies() []trace.Type { return []trace.Type{v.trace.Type()} }

// OnEvent implements events.Subscriber
func (v *RecordingViewer) OnEvent(_ context.Context, e events.Event) error {
	ev, ok := e.(events.PositionUpdateEvent)
	if !ok || ev.Position == nil || ev.Position == v.position {
		return nil
	}
	v.position = ev.Position
	v.frame = trace.Entry{}
	ts := ev.Position.Timestamp()
	if ts.Valid() && ts.Domain == v.trace.Domain() {
		if e, ok := v.trace.FindLastLowerOrEqual(ts); ok {
			v.frame = e
		}
	}
	return nil
}

// Frame returns the recording frame shown at the current position
func (v *RecordingViewer) Frame() (trace.Entry, bool) {
	return v.frame, !v.frame.IsZero()
}

// Status renders a one-line description of the current frame
func (v *RecordingViewer) Status() string {
	if v.frame.IsZero() {
		return fmt.Sprintf("● %s  no frame", v.view.Title)
	}
	ts := v.frame.Timestamp().String()
	if v.format != nil {
		ts = v.format(v.frame.Timestamp())
	}
	return fmt.Sprintf("● %s  %s  frame %d/%d", v.view.Title, ts, v.frame.Index()+1, v.trace.Len())
}
