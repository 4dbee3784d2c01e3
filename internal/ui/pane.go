package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TimelordUK/mtrace/internal/config"
	"github.com/TimelordUK/mtrace/internal/render"
	"github.com/TimelordUK/mtrace/internal/trace"
	"github.com/TimelordUK/mtrace/internal/view"
	"github.com/TimelordUK/mtrace/internal/viewer"
	"github.com/TimelordUK/mtrace/pkg/logformat"
)

const lightChromaStyle = "github"

// Pane shows one log viewer in a tab
type Pane struct {
	viewer   *viewer.LogViewer
	viewport *view.Viewport
	values   *render.ValueRenderer
	config   *config.Config

	// Marks (a-z) store entry indices
	marks map[rune]int

	showDetail bool
}

// NewPane creates a pane over v
func NewPane(v *viewer.LogViewer, cfg *config.Config) *Pane {
	vp := view.NewViewport(80, 24)
	vp.SetProvider(v)
	vp.SetShowLineNumbers(cfg.Display.ShowLineNumbers)
	vp.SetRenderer(render.NewLevelRenderer(cfg))
	if cfg.Theme.Highlight != "" {
		vp.SetHighlightColor(cfg.Theme.Highlight)
	}

	return &Pane{
		viewer:   v,
		viewport: vp,
		values:   render.NewValueRenderer(cfg.Display.ChromaStyle),
		config:   cfg,
		marks:    make(map[rune]int),
	}
}

// Viewer returns the displayed viewer
func (p *Pane) Viewer() *viewer.LogViewer {
	return p.viewer
}

// Viewport returns the scrolling window
func (p *Pane) Viewport() *view.Viewport {
	return p.viewport
}

// ID returns the view ID of the pane
func (p *Pane) ID() string {
	return p.viewer.Views()[0].ID
}

// Title returns the tab title
func (p *Pane) Title() string {
	return p.viewer.Views()[0].Title
}

// SetSize sets the viewport size
func (p *Pane) SetSize(width, height int) {
	p.viewport.SetSize(width, height)
}

// Sync moves the highlight to the viewer's current entry
func (p *Pane) Sync() {
	p.viewport.SetHighlightedIndex(p.viewer.CurrentIndex())
	if row := p.viewer.CurrentRow(); row >= 0 {
		p.viewport.EnsureVisible(row)
	}
	if p.viewer.Dark() {
		p.values.SetStyle(p.config.Display.ChromaStyle)
	} else {
		p.values.SetStyle(lightChromaStyle)
	}
}

// Render returns the rendered viewport content
func (p *Pane) Render() string {
	p.Sync()
	return p.viewport.Render()
}

// ToggleDetail shows or hides the materialised value of the current entry
func (p *Pane) ToggleDetail() bool {
	p.showDetail = !p.showDetail
	return p.showDetail
}

// Detail renders the current entry's value, empty when hidden
func (p *Pane) Detail(ctx context.Context, maxLines int) string {
	idx := p.viewer.CurrentIndex()
	if !p.showDetail || idx < 0 {
		return ""
	}
	v, err := p.viewer.Value(ctx, idx)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	lines := strings.Split(p.values.Render(v), "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = append(lines[:maxLines-1], "…")
	}
	return strings.Join(lines, "\n")
}

// Step selects the entry delta rows away from the current one
func (p *Pane) Step(ctx context.Context, delta int) error {
	count := p.viewer.LineCount()
	if count == 0 {
		return nil
	}
	row := p.viewer.CurrentRow()
	if row < 0 {
		row = p.viewport.CurrentLine() - delta
		if delta < 0 {
			row = p.viewport.CurrentLine() + p.viewport.Height()
		}
	}
	target := row + delta
	if target < 0 {
		target = 0
	}
	if target >= count {
		target = count - 1
	}
	return p.viewer.SelectRow(ctx, target)
}

// SelectTop selects the first visible row
func (p *Pane) SelectTop(ctx context.Context) error {
	return p.viewer.SelectRow(ctx, p.viewport.CurrentLine())
}

// SetFilterTerm sets the text filter
func (p *Pane) SetFilterTerm(term string) {
	p.viewer.Filter().SetTextFilter(term)
	p.viewport.GotoTop()
}

// FilterTerm returns the text filter
func (p *Pane) FilterTerm() string {
	return p.viewer.Filter().TextFilter()
}

// SetMinLevel shows only entries at level and above; LevelUnknown clears
// the level filter
func (p *Pane) SetMinLevel(level logformat.Level) {
	f := p.viewer.Filter()
	text := f.TextFilter()
	f.Clear()
	if level != logformat.LevelUnknown {
		f.SetLevelAndAbove(level)
	}
	f.SetTextFilter(text)
	p.viewport.GotoTop()
}

// SetMark remembers the current entry under char
func (p *Pane) SetMark(char rune) bool {
	idx := p.viewer.CurrentIndex()
	if idx < 0 {
		return false
	}
	p.marks[char] = idx
	return true
}

// JumpToMark selects the entry stored under char
func (p *Pane) JumpToMark(ctx context.Context, char rune) (bool, error) {
	idx, ok := p.marks[char]
	if !ok {
		return false, nil
	}
	return true, p.viewer.Select(ctx, idx)
}

// ParseTime converts user input into a timestamp in the pane's domain.
// Real traces accept wall-clock layouts, elapsed traces a duration.
func (p *Pane) ParseTime(input string, loc *time.Location) (trace.Timestamp, bool) {
	input = strings.TrimSpace(input)
	tr := p.viewer.Trace()
	if tr.Domain() == trace.DomainElapsed {
		d, err := time.ParseDuration(input)
		if err != nil {
			return trace.Timestamp{}, false
		}
		return trace.NewTimestamp(trace.DomainElapsed, d.Nanoseconds()), true
	}

	parser := logformat.NewTimestampParser(loc)
	if first, ok := tr.First(); ok && first.HasValidTimestamp() {
		parser.SetReference(time.Unix(0, first.Timestamp().Ns).In(loc))
	}
	t, ok := parser.Parse([]byte(input))
	if !ok {
		return trace.Timestamp{}, false
	}
	return trace.NewTimestamp(trace.DomainReal, t.UnixNano()), true
}
