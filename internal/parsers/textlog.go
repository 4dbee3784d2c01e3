package parsers

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/TimelordUK/mtrace/internal/index"
	"github.com/TimelordUK/mtrace/internal/notify"
	"github.com/TimelordUK/mtrace/internal/trace"
	"github.com/TimelordUK/mtrace/pkg/logformat"
)

// LogLine is the materialised value of a text log entry
type LogLine struct {
	Time  time.Time
	Level logformat.Level
	// Line is the 1-based line number the entry starts at
	Line int
	Text string
}

func (l LogLine) String() string {
	return l.Text
}

// LevelOf returns the detected severity
func (l LogLine) LevelOf() logformat.Level {
	return l.Level
}

// TextLogParser serves an event-log trace read from a plain text log.
// Lines without a timestamp continue the previous entry.
type TextLogParser struct {
	descriptor string
	lines      []LogLine
	stamps     []trace.Timestamp
}

// ParseTextLog reads one entry per timestamped line of data
func ParseTextLog(ctx context.Context, data []byte, descriptor string, ts *logformat.TimestampParser, levels *logformat.LevelDetector) (*TextLogParser, error) {
	idx := index.BuildLineIndex(data)
	p := &TextLogParser{descriptor: descriptor}

	for i := 0; i < idx.LineCount(); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := idx.GetLine(i)
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		t, ok := ts.Parse(raw)
		if !ok {
			if n := len(p.lines); n > 0 {
				p.lines[n-1].Text += "\n" + string(raw)
			}
			continue
		}
		p.lines = append(p.lines, LogLine{
			Time:  t,
			Level: levels.Detect(raw),
			Line:  i + 1,
			Text:  string(raw),
		})
	}

	if len(p.lines) == 0 {
		return nil, notify.NewParserError(notify.NoEntries, descriptor, fmt.Errorf("no timestamped lines"))
	}

	// interleaved writers can emit slightly out of order lines
	sort.SliceStable(p.lines, func(a, b int) bool { return p.lines[a].Time.Before(p.lines[b].Time) })

	p.stamps = make([]trace.Timestamp, len(p.lines))
	for i, l := range p.lines {
		p.stamps[i] = trace.NewTimestamp(trace.DomainReal, l.Time.UnixNano())
	}
	return p, nil
}

func (p *TextLogParser) TraceType() trace.Type { return trace.EventLog }

func (p *TextLogParser) LengthEntries() int { return len(p.lines) }

func (p *TextLogParser) Descriptors() []string { return []string{p.descriptor} }

func (p *TextLogParser) Timestamps(d trace.Domain) []trace.Timestamp {
	if d == trace.DomainReal {
		return p.stamps
	}
	return nil
}

func (p *TextLogParser) Entry(ctx context.Context, i int) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(p.lines) {
		return nil, fmt.Errorf("entry %d out of range [0,%d)", i, len(p.lines))
	}
	return p.lines[i], nil
}
