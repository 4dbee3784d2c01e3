package render

import (
	"strings"
	"testing"

	"github.com/TimelordUK/mtrace/pkg/logformat"
)

type doc string

func (d doc) JSON() string { return string(d) }

type logLine struct {
	text  string
	level logformat.Level
}

func (l logLine) String() string { return l.text }

func (l logLine) LevelOf() logformat.Level { return l.level }

func TestSummarize(t *testing.T) {
	tests := []struct {
		name      string
		in        any
		wantText  string
		wantLevel logformat.Level
	}{
		{"json", doc(`{"a":1}`), `{"a":1}`, logformat.LevelUnknown},
		{"leveled", logLine{"boom\nstack", logformat.LevelError}, "boom …", logformat.LevelError},
		{"int", 42, "42", logformat.LevelUnknown},
		{"nil", nil, "", logformat.LevelUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, level := Summarize(tt.in)
			if text != tt.wantText || level != tt.wantLevel {
				t.Fatalf("Summarize = %q,%v want %q,%v", text, level, tt.wantText, tt.wantLevel)
			}
		})
	}
}

func TestValueRendererIndentsJSON(t *testing.T) {
	r := NewValueRenderer("")
	r.SetEnabled(false)
	got := r.Render(doc(`{"a":{"b":1}}`))
	if !strings.Contains(got, "\n  \"a\": {") {
		t.Fatalf("not indented: %q", got)
	}

	r.SetEnabled(true)
	if highlighted := r.Render(doc(`{"a":1}`)); !strings.Contains(highlighted, "\x1b[") {
		t.Fatalf("expected ANSI escapes: %q", highlighted)
	}
	if plain := r.Render(logLine{text: "x\ny"}); plain != "x\ny" {
		t.Fatalf("non-JSON value = %q", plain)
	}
}
