package viewer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/TimelordUK/mtrace/internal/events"
	"github.com/TimelordUK/mtrace/internal/logging"
	"github.com/TimelordUK/mtrace/internal/render"
	"github.com/TimelordUK/mtrace/internal/settings"
	"github.com/TimelordUK/mtrace/internal/trace"
	"github.com/TimelordUK/mtrace/pkg/logformat"
)

type summary struct {
	text  string
	level logformat.Level
}

// LogViewer shows the entries of one trace as a list and follows the
// current position
type LogViewer struct {
	trace  *trace.Trace
	view   *View
	store  settings.Store
	format func(trace.Timestamp) string
	log    *logrus.Logger

	emit events.EmitFunc

	summaries []summary
	filter    *Filter

	// entry index of the current position, -1 for none
	current  int
	position *trace.Position
	dark     bool

	// number of times summaries were built
	loads int
}

var (
	_ Viewer         = (*LogViewer)(nil)
	_ events.Emitter = (*LogViewer)(nil)
)

// NewLogViewer creates a viewer over tr
func NewLogViewer(tr *trace.Trace, store settings.Store, format func(trace.Timestamp) string, log *logrus.Logger) *LogViewer {
	if log == nil {
		log = logging.Discard()
	}
	v := &LogViewer{
		trace:   tr,
		store:   store,
		format:  format,
		log:     log,
		current: -1,
		view: &View{
			ID:     tr.Type().Info().Key,
			Title:  tr.Type().String(),
			Kind:   ViewTab,
			Traces: []trace.Type{tr.Type()},
		},
	}
	v.filter = NewFilter(tr.Len(), v.summaryAt)
	return v
}

func (v *LogViewer) Views() []*View { return []*View{v.view} }

func (v *LogViewer) Dependencies() []trace.Type { return []trace.Type{v.trace.Type()} }

// SetEmitEvent installs the callback used to publish position changes
func (v *LogViewer) SetEmitEvent(emit events.EmitFunc) { v.emit = emit }

// Trace returns the displayed trace
func (v *LogViewer) Trace() *trace.Trace { return v.trace }

// Filter returns the entry filter
func (v *LogViewer) Filter() *Filter { return v.filter }

// CurrentIndex returns the entry index at the current position, -1 for none
func (v *LogViewer) CurrentIndex() int { return v.current }

// Dark reports whether dark mode is active
func (v *LogViewer) Dark() bool { return v.dark }

// Loads returns how many times the entry summaries were built
func (v *LogViewer) Loads() int { return v.loads }

// OnEvent implements events.Subscriber
func (v *LogViewer) OnEvent(ctx context.Context, e events.Event) error {
	switch ev := e.(type) {
	case events.PositionUpdateEvent:
		return v.onPosition(ctx, ev.Position)
	case events.DarkModeToggledEvent:
		v.dark = ev.Dark
	case events.FilterPresetSaveEvent:
		if ev.Type == v.trace.Type() {
			return v.SavePreset(ctx, ev.Name)
		}
	case events.FilterPresetApplyEvent:
		if ev.Type == v.trace.Type() {
			return v.ApplyPreset(ctx, ev.Name)
		}
	}
	return nil
}

func (v *LogViewer) onPosition(ctx context.Context, p *trace.Position) error {
	if p == nil || p == v.position {
		return nil
	}
	if err := v.load(ctx); err != nil {
		return err
	}
	v.position = p
	v.current = -1

	if e, ok := p.Entry(); ok && e.Trace() == v.trace {
		v.current = e.Index()
		return nil
	}
	if !p.Timestamp().Valid() || p.Timestamp().Domain != v.trace.Domain() {
		return nil
	}
	if e, ok := v.trace.FindLastLowerOrEqual(p.Timestamp()); ok {
		v.current = e.Index()
	}
	return nil
}

// load materialises every entry once
func (v *LogViewer) load(ctx context.Context) error {
	if v.summaries != nil {
		return nil
	}
	summaries := make([]summary, v.trace.Len())
	for i := range summaries {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, _ := v.trace.Entry(i)
		val, err := e.Value(ctx)
		if err != nil {
			summaries[i] = summary{text: fmt.Sprintf("<%v>", err), level: logformat.LevelError}
			continue
		}
		text, level := render.Summarize(val)
		summaries[i] = summary{text: text, level: level}
	}
	v.summaries = summaries
	v.loads++
	v.filter.MarkDirty()
	v.log.WithFields(logrus.Fields{"trace": v.view.ID, "entries": len(summaries)}).Debug("viewer loaded")
	return nil
}

func (v *LogViewer) summaryAt(i int) (string, logformat.Level) {
	if err := v.load(context.Background()); err != nil || i >= len(v.summaries) {
		return "", logformat.LevelUnknown
	}
	s := v.summaries[i]
	return s.text, s.level
}

// LineCount implements view.LineProvider
func (v *LogViewer) LineCount() int {
	return v.filter.Count()
}

// GetLines implements view.LineProvider over filtered rows
func (v *LogViewer) GetLines(start, count int) ([]*render.Line, error) {
	if err := v.load(context.Background()); err != nil {
		return nil, err
	}
	total := v.filter.Count()
	if start >= total || count <= 0 {
		return nil, nil
	}
	end := start + count
	if end > total {
		end = total
	}
	lines := make([]*render.Line, 0, end-start)
	for row := start; row < end; row++ {
		idx := v.filter.EntryIndex(row)
		e, _ := v.trace.Entry(idx)
		s := v.summaries[idx]
		line := &render.Line{Index: idx, Level: s.level, Text: s.text}
		if v.format != nil && e.HasValidTimestamp() {
			line.Timestamp = v.format(e.Timestamp())
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Value materialises the entry at index
func (v *LogViewer) Value(ctx context.Context, index int) (any, error) {
	e, ok := v.trace.Entry(index)
	if !ok {
		return nil, fmt.Errorf("entry %d out of range", index)
	}
	return e.Value(ctx)
}

// Select moves to the entry at index and publishes a position update
func (v *LogViewer) Select(ctx context.Context, index int) error {
	e, ok := v.trace.Entry(index)
	if !ok {
		return fmt.Errorf("entry %d out of range", index)
	}
	p := trace.PositionFromEntry(e)
	v.position = p
	v.current = index
	if v.emit == nil {
		return nil
	}
	return v.emit(ctx, events.PositionUpdateEvent{Position: p, UpdateTimeline: true})
}

// SelectRow selects the entry shown at a filtered row
func (v *LogViewer) SelectRow(ctx context.Context, row int) error {
	idx := v.filter.EntryIndex(row)
	if idx < 0 {
		return nil
	}
	return v.Select(ctx, idx)
}

// CurrentRow returns the filtered row of the current entry, -1 for none
func (v *LogViewer) CurrentRow() int {
	if v.current < 0 {
		return -1
	}
	return v.filter.Row(v.current)
}

// SavePreset stores the active filter under name
func (v *LogViewer) SavePreset(ctx context.Context, name string) error {
	if v.store == nil {
		return nil
	}
	return v.store.Set(ctx, PresetKey(name), v.filter.Encode())
}

// ApplyPreset restores the filter stored under name; missing presets are ignored
func (v *LogViewer) ApplyPreset(ctx context.Context, name string) error {
	if v.store == nil {
		return nil
	}
	s, ok, err := v.store.Get(ctx, PresetKey(name))
	if err != nil || !ok {
		return err
	}
	v.filter.Decode(s)
	return nil
}
