package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// ValueRenderer pretty-prints and highlights materialised entry values
type ValueRenderer struct {
	style     string
	formatter string
	enabled   bool
}

// NewValueRenderer creates a renderer using the chroma style name
func NewValueRenderer(style string) *ValueRenderer {
	if style == "" {
		style = "monokai"
	}
	return &ValueRenderer{style: style, formatter: "terminal256", enabled: true}
}

// SetEnabled turns highlighting on or off
func (r *ValueRenderer) SetEnabled(enabled bool) {
	r.enabled = enabled
}

// SetStyle switches the chroma style, e.g. when dark mode changes
func (r *ValueRenderer) SetStyle(style string) {
	if style != "" {
		r.style = style
	}
}

// Render returns the value as display text, highlighted when it is JSON
func (r *ValueRenderer) Render(v any) string {
	doc, ok := v.(jsonDocument)
	if !ok {
		if s, ok := v.(fmt.Stringer); ok {
			return s.String()
		}
		text, _ := Summarize(v)
		return text
	}

	raw := doc.JSON()
	if !gjson.Valid(raw) {
		return raw
	}
	content := strings.TrimRight(string(pretty.Pretty([]byte(raw))), "\n")
	if !r.enabled {
		return content
	}

	var buf bytes.Buffer
	if err := quick.Highlight(&buf, content, "json", r.formatter, r.style); err != nil {
		return content
	}
	return strings.TrimRight(buf.String(), "\n")
}
