package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/mtrace/internal/config"
	"github.com/TimelordUK/mtrace/pkg/logformat"
)

// Line is one displayable row: a trace entry reduced to text
type Line struct {
	// Index is the entry index within its trace
	Index     int
	Timestamp string
	Level     logformat.Level
	Text      string
}

// Renderer applies styling to lines
type Renderer interface {
	Render(line *Line) string
}

// LevelRenderer colors lines based on their level
type LevelRenderer struct {
	styles map[logformat.Level]lipgloss.Style
}

// NewLevelRenderer creates a renderer with the theme's level colors
func NewLevelRenderer(cfg *config.Config) *LevelRenderer {
	c := cfg.Theme.Levels
	return &LevelRenderer{
		styles: map[logformat.Level]lipgloss.Style{
			logformat.LevelUnknown: lipgloss.NewStyle(),
			logformat.LevelTrace:   lipgloss.NewStyle().Foreground(lipgloss.Color(c.Trace)),
			logformat.LevelDebug:   lipgloss.NewStyle().Foreground(lipgloss.Color(c.Debug)),
			logformat.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color(c.Info)),
			logformat.LevelWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color(c.Warn)),
			logformat.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color(c.Error)),
			logformat.LevelFatal:   lipgloss.NewStyle().Foreground(lipgloss.Color(c.Fatal)),
		},
	}
}

// Render applies level styling to a line
func (r *LevelRenderer) Render(line *Line) string {
	return r.styles[line.Level].Render(line.Text)
}

// PlainRenderer renders without styling
type PlainRenderer struct{}

// NewPlainRenderer creates a plain renderer
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// Render returns the line text as-is
func (r *PlainRenderer) Render(line *Line) string {
	return line.Text
}

// leveled is implemented by values that know their severity
type leveled interface {
	LevelOf() logformat.Level
}

// jsonDocument is implemented by values backed by a JSON document
type jsonDocument interface {
	JSON() string
}

// Summarize reduces a materialised entry value to a single display line
func Summarize(v any) (string, logformat.Level) {
	level := logformat.LevelUnknown
	if l, ok := v.(leveled); ok {
		level = l.LevelOf()
	}

	var text string
	switch t := v.(type) {
	case nil:
		text = ""
	case jsonDocument:
		text = t.JSON()
	case fmt.Stringer:
		text = t.String()
	case string:
		text = t
	default:
		text = fmt.Sprint(v)
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i] + " …"
	}
	return text, level
}
