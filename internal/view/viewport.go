package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/mtrace/internal/render"
)

// LineProvider supplies the rows a viewport displays
type LineProvider interface {
	LineCount() int
	GetLines(start, count int) ([]*render.Line, error)
}

// Viewport manages the visible portion of content.
// It only knows how to display lines from a LineProvider.
type Viewport struct {
	provider LineProvider
	renderer render.Renderer

	// Dimensions
	width  int
	height int

	// Scroll position
	scrollOffset int

	// Styling
	lineNumberStyle lipgloss.Style
	timestampStyle  lipgloss.Style
	highlightStyle  lipgloss.Style

	// Options
	showLineNumbers bool
	showTimestamps  bool

	// Highlighted entry index, -1 for none
	highlightedIndex int
}

// NewViewport creates a new viewport
func NewViewport(width, height int) *Viewport {
	return &Viewport{
		width:            width,
		height:           height,
		showLineNumbers:  true,
		showTimestamps:   true,
		lineNumberStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		timestampStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		highlightStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		renderer:         render.NewPlainRenderer(),
		highlightedIndex: -1,
	}
}

// SetHighlightColor sets the foreground of the highlighted row marker
func (v *Viewport) SetHighlightColor(color string) {
	v.highlightStyle = v.highlightStyle.Foreground(lipgloss.Color(color))
}

// SetHighlightedIndex sets which entry index to highlight (-1 for none)
func (v *Viewport) SetHighlightedIndex(index int) {
	v.highlightedIndex = index
}

// HighlightedIndex returns the highlighted entry index, -1 for none
func (v *Viewport) HighlightedIndex() int {
	return v.highlightedIndex
}

// SetRenderer sets the line renderer
func (v *Viewport) SetRenderer(r render.Renderer) {
	v.renderer = r
}

// SetProvider sets the line provider
func (v *Viewport) SetProvider(provider LineProvider) {
	v.provider = provider
	v.scrollOffset = 0
}

// SetSize updates viewport dimensions
func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clampScroll()
}

// Height returns the number of visible rows
func (v *Viewport) Height() int {
	return v.height
}

// ScrollDown scrolls down by n lines
func (v *Viewport) ScrollDown(n int) {
	v.scrollOffset += n
	v.clampScroll()
}

// ScrollUp scrolls up by n lines
func (v *Viewport) ScrollUp(n int) {
	v.scrollOffset -= n
	v.clampScroll()
}

// PageDown scrolls down by one page
func (v *Viewport) PageDown() {
	v.ScrollDown(v.height - 1)
}

// PageUp scrolls up by one page
func (v *Viewport) PageUp() {
	v.ScrollUp(v.height - 1)
}

// GotoTop scrolls to the beginning
func (v *Viewport) GotoTop() {
	v.scrollOffset = 0
}

// GotoBottom scrolls to the end
func (v *Viewport) GotoBottom() {
	if v.provider == nil {
		return
	}
	v.scrollOffset = v.provider.LineCount() - v.height
	v.clampScroll()
}

// GotoLine scrolls so that row is the top line
func (v *Viewport) GotoLine(row int) {
	v.scrollOffset = row
	v.clampScroll()
}

// EnsureVisible scrolls the minimum needed to bring row into view
func (v *Viewport) EnsureVisible(row int) {
	switch {
	case row < v.scrollOffset:
		v.scrollOffset = row
	case row >= v.scrollOffset+v.height:
		v.scrollOffset = row - v.height + 1
	}
	v.clampScroll()
}

// CurrentLine returns the current top row
func (v *Viewport) CurrentLine() int {
	return v.scrollOffset
}

// clampScroll ensures scroll offset is within valid bounds
func (v *Viewport) clampScroll() {
	if v.provider == nil {
		v.scrollOffset = 0
		return
	}

	maxScroll := v.provider.LineCount() - v.height
	if maxScroll < 0 {
		maxScroll = 0
	}

	if v.scrollOffset > maxScroll {
		v.scrollOffset = maxScroll
	}
	if v.scrollOffset < 0 {
		v.scrollOffset = 0
	}
}

// Render returns the viewport content as a string
func (v *Viewport) Render() string {
	if v.provider == nil {
		return ""
	}

	lines, err := v.provider.GetLines(v.scrollOffset, v.height)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	var builder strings.Builder
	numWidth := len(fmt.Sprintf("%d", v.provider.LineCount()))
	clip := lipgloss.NewStyle().MaxWidth(v.width)

	for i, line := range lines {
		if i > 0 {
			builder.WriteString("\n")
		}

		var row strings.Builder
		marker := "  "
		if line.Index == v.highlightedIndex {
			marker = v.highlightStyle.Render("▶ ")
		}
		row.WriteString(marker)

		if v.showLineNumbers {
			row.WriteString(v.lineNumberStyle.Render(fmt.Sprintf("%*d ", numWidth, line.Index)))
		}
		if v.showTimestamps && line.Timestamp != "" {
			row.WriteString(v.timestampStyle.Render(line.Timestamp))
			row.WriteString(" ")
		}
		row.WriteString(v.renderer.Render(line))

		if v.width > 0 {
			builder.WriteString(clip.Render(row.String()))
		} else {
			builder.WriteString(row.String())
		}
	}

	// Pad with empty lines if needed
	for i := len(lines); i < v.height; i++ {
		if i > 0 || len(lines) > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("~")
	}

	return builder.String()
}

// PercentScrolled returns how far through the content we are
func (v *Viewport) PercentScrolled() float64 {
	if v.provider == nil || v.provider.LineCount() == 0 {
		return 0
	}

	total := v.provider.LineCount()
	if total <= v.height {
		return 100
	}

	return float64(v.scrollOffset) / float64(total-v.height) * 100
}

// SetShowLineNumbers toggles entry numbers
func (v *Viewport) SetShowLineNumbers(show bool) {
	v.showLineNumbers = show
}

// SetShowTimestamps toggles the timestamp column
func (v *Viewport) SetShowTimestamps(show bool) {
	v.showTimestamps = show
}
