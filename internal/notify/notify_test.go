package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/TimelordUK/mtrace/internal/trace"
)

func TestCollectorFlush(t *testing.T) {
	c := NewCollector()
	c.Warn(NoValidFiles{})
	c.Warn(UnsupportedFile{Descriptor: "a.bin"})

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	got := c.Flush()
	if len(got) != 2 || got[1].Message() != "a.bin: unsupported file format" {
		t.Fatalf("flushed = %v", got)
	}
	if c.Len() != 0 || len(c.Flush()) != 0 {
		t.Fatal("collector should be empty after flush")
	}
}

func TestParserErrorIsError(t *testing.T) {
	cause := errors.New("bad magic")
	var err error = NewParserError(Corrupted, "wm.winscope", cause)
	if !errors.Is(err, cause) {
		t.Fatal("ParserError should unwrap to its cause")
	}
	var pe *ParserError
	if !errors.As(err, &pe) || pe.Kind != Corrupted {
		t.Fatalf("errors.As = %v", pe)
	}
	if !strings.Contains(pe.Message(), "corrupted") {
		t.Fatalf("message = %q", pe.Message())
	}
}

func TestTraceOverriddenMessage(t *testing.T) {
	typ := trace.WindowManager
	w := TraceOverridden{Descriptor: "wm.jsonl", Type: &typ, Reason: "wm2.jsonl"}
	if got := w.Message(); got != "wm.jsonl (Window Manager): overridden by wm2.jsonl" {
		t.Fatalf("message = %q", got)
	}
}

func TestTraceHasOldDataMessage(t *testing.T) {
	w := TraceHasOldData{
		Descriptor: "sf.winscope",
		Type:       trace.SurfaceFlinger,
		Gap: TimeGap{
			From: trace.NewTimestamp(trace.DomainReal, int64(time.Minute)),
			To:   trace.NewTimestamp(trace.DomainReal, int64(7*time.Minute)),
		},
	}
	if got := w.Message(); got != "sf.winscope (Surface Flinger): discarded, data ends 6m0s before the other traces" {
		t.Fatalf("message = %q", got)
	}
}
