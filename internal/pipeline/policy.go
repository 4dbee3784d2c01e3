package pipeline

import (
	"sort"
	"time"

	"github.com/TimelordUK/mtrace/internal/notify"
	"github.com/TimelordUK/mtrace/internal/trace"
)

// MaxTraceGap is the widest gap expected between traces of one capture.
// Legacy traces ending before a wider gap are leftovers of an earlier one.
const MaxTraceGap = 5 * time.Minute

// span is the wall-clock extent of a parse, ignoring invalid timestamps
type span struct {
	from, to int64
}

func realSpan(p trace.Parser) (span, bool) {
	var s span
	found := false
	for _, ts := range p.Timestamps(trace.DomainReal) {
		if !ts.Valid() {
			continue
		}
		if !found {
			s.from = ts.Ns
			found = true
		}
		s.to = ts.Ns
	}
	return s, found
}

// oldDataExempt reports whether the old-data policies skip a parse. WM
// transitions do not set the merged transitions trace's timestamps.
func oldDataExempt(l loaded) bool {
	return l.parser.TraceType() == trace.WmTransitions
}

func elapsedOnly(p trace.Parser) bool {
	return len(p.Timestamps(trace.DomainReal)) == 0 && len(p.Timestamps(trace.DomainElapsed)) > 0
}

// dropElapsedOnly removes legacy parses without wall-clock timestamps when
// another parse of this load has them
func dropElapsedOnly(legacy, rich []loaded, sink notify.Sink) []loaded {
	hasReal := false
	for _, l := range append(legacy[:len(legacy):len(legacy)], rich...) {
		if len(l.parser.Timestamps(trace.DomainReal)) > 0 {
			hasReal = true
			break
		}
	}
	if !hasReal {
		return legacy
	}
	kept := legacy[:0:0]
	for _, l := range legacy {
		if !oldDataExempt(l) && elapsedOnly(l.parser) {
			sink.Warn(notify.TraceWithoutRealTime{Descriptor: l.descriptor(), Type: l.parser.TraceType()})
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// lastGap returns the latest gap wider than MaxTraceGap between the spans,
// ordered by their end
func lastGap(spans []span) (span, bool) {
	sort.Slice(spans, func(i, j int) bool { return spans[i].to < spans[j].to })
	for i := len(spans) - 2; i >= 0; i-- {
		curr, next := spans[i], spans[i+1]
		if time.Duration(next.from-curr.to) > MaxTraceGap {
			return span{from: curr.to, to: next.from}, true
		}
	}
	return span{}, false
}

// dropOldData removes legacy parses whose data ends before the latest wide
// gap. Rich and previously loaded parses count towards the gap but are
// never dropped here.
func dropOldData(legacy, rich []loaded, prior map[trace.Type]loaded, sink notify.Sink) []loaded {
	var spans []span
	collect := func(l loaded) {
		if oldDataExempt(l) {
			return
		}
		if s, ok := realSpan(l.parser); ok {
			spans = append(spans, s)
		}
	}
	for _, l := range legacy {
		collect(l)
	}
	for _, l := range rich {
		collect(l)
	}
	for _, l := range prior {
		collect(l)
	}

	gap, ok := lastGap(spans)
	if !ok {
		return legacy
	}
	kept := legacy[:0:0]
	for _, l := range legacy {
		s, valid := realSpan(l.parser)
		if valid && !oldDataExempt(l) && s.to <= gap.from {
			sink.Warn(notify.TraceHasOldData{
				Descriptor: l.descriptor(),
				Type:       l.parser.TraceType(),
				Gap: notify.TimeGap{
					From: trace.NewTimestamp(trace.DomainReal, gap.from),
					To:   trace.NewTimestamp(trace.DomainReal, gap.to),
				},
			})
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

func isScreenCapture(typ trace.Type) bool {
	return typ == trace.ScreenRecording || typ == trace.Screenshot
}

// acceptScreenCapture keeps at most one screen capture. A recording beats a
// screenshot; otherwise one kept from a prior load stays.
func acceptScreenCapture(batch, prior map[trace.Type]loaded, cand loaded, sink notify.Sink) {
	typ := cand.parser.TraceType()
	for _, other := range []trace.Type{trace.ScreenRecording, trace.Screenshot} {
		if other == typ {
			continue
		}
		existing, inBatch := batch[other]
		if !inBatch {
			var ok bool
			if existing, ok = prior[other]; !ok {
				continue
			}
		}
		if other == trace.ScreenRecording {
			sink.Warn(captureOverridden(cand, existing))
			return
		}
		sink.Warn(captureOverridden(existing, cand))
		delete(batch, other)
		delete(prior, other)
	}

	if _, inBatch := batch[typ]; !inBatch {
		if existing, ok := prior[typ]; ok {
			sink.Warn(captureOverridden(cand, existing))
			return
		}
	}
	acceptBySize(batch, cand, sink)
}

func captureOverridden(loser, winner loaded) notify.ScreenCaptureOverridden {
	return notify.ScreenCaptureOverridden{
		Descriptor: loser.descriptor(),
		Type:       loser.parser.TraceType(),
		By:         winner.descriptor(),
	}
}

func superseded(legacy, rich loaded) notify.LegacyTraceSuperseded {
	return notify.LegacyTraceSuperseded{
		Descriptor: legacy.descriptor(),
		Type:       legacy.parser.TraceType(),
		By:         rich.descriptor(),
	}
}
