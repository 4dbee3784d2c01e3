package coordinator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/TimelordUK/mtrace/internal/events"
	"github.com/TimelordUK/mtrace/internal/notify"
	"github.com/TimelordUK/mtrace/internal/pipeline"
	"github.com/TimelordUK/mtrace/internal/settings"
	"github.com/TimelordUK/mtrace/internal/source"
	"github.com/TimelordUK/mtrace/internal/trace"
	"github.com/TimelordUK/mtrace/internal/viewer"
)

type stubParser struct {
	typ  trace.Type
	real []int64
}

func (p *stubParser) TraceType() trace.Type { return p.typ }

func (p *stubParser) LengthEntries() int { return len(p.real) }

func (p *stubParser) Descriptors() []string { return []string{p.typ.Info().Key} }

func (p *stubParser) Entry(_ context.Context, i int) (any, error) { return i, nil }

func (p *stubParser) Timestamps(d trace.Domain) []trace.Timestamp {
	if d != trace.DomainReal {
		return nil
	}
	out := make([]trace.Timestamp, len(p.real))
	for i, ns := range p.real {
		out[i] = trace.NewTimestamp(trace.DomainReal, ns)
	}
	return out
}

// stubFactory parses each file name to the parsers registered for it
type stubFactory map[string][]trace.Parser

func (f stubFactory) Parse(_ context.Context, file *source.File) ([]trace.Parser, error) {
	ps, ok := f[file.Path]
	if !ok {
		return nil, notify.NewParserError(notify.UnsupportedFormat, file.Descriptor(), nil)
	}
	return ps, nil
}

// journal records the order in which collaborators saw events
type journal []string

func (j *journal) add(format string, args ...any) {
	*j = append(*j, fmt.Sprintf(format, args...))
}

type fakeViewer struct {
	name   string
	views  []*viewer.View
	deps   []trace.Type
	j      *journal
	emit   events.EmitFunc
	hook   func(ctx context.Context, e events.Event) error
	events []events.Event
}

func (v *fakeViewer) Views() []*viewer.View { return v.views }

func (v *fakeViewer) Dependencies() []trace.Type { return v.deps }

func (v *fakeViewer) SetEmitEvent(emit events.EmitFunc) { v.emit = emit }

func (v *fakeViewer) OnEvent(ctx context.Context, e events.Event) error {
	v.events = append(v.events, e)
	v.j.add("%s:%s", v.name, e.Kind())
	if v.hook != nil {
		return v.hook(ctx, e)
	}
	return nil
}

func (v *fakeViewer) positions() []trace.Timestamp {
	var out []trace.Timestamp
	for _, e := range v.events {
		if pu, ok := e.(events.PositionUpdateEvent); ok {
			out = append(out, pu.Position.Timestamp())
		}
	}
	return out
}

// framedParser reports frame numbers, or fails to when err is set
type framedParser struct {
	stubParser
	err error
}

func (p *framedParser) FrameNumbers(context.Context) ([]int64, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]int64, len(p.real))
	for i := range out {
		out[i] = int64(i)
	}
	return out, nil
}

// elapsedParser answers wall-clock requests with elapsed timestamps
type elapsedParser struct {
	stubParser
}

func (p *elapsedParser) Timestamps(d trace.Domain) []trace.Timestamp {
	if d != trace.DomainReal {
		return nil
	}
	out := make([]trace.Timestamp, len(p.real))
	for i, ns := range p.real {
		out[i] = trace.NewTimestamp(trace.DomainElapsed, ns)
	}
	return out
}

type fakeViewerFactory struct {
	viewers []viewer.Viewer
	traces  *trace.Traces
}

func (f *fakeViewerFactory) CreateViewers(traces *trace.Traces, _ settings.Store) []viewer.Viewer {
	f.traces = traces
	return f.viewers
}

type recorder struct {
	name   string
	j      *journal
	events []events.Event
	fail   error
}

func (r *recorder) OnEvent(_ context.Context, e events.Event) error {
	r.events = append(r.events, e)
	r.j.add("%s:%s", r.name, e.Kind())
	return r.fail
}

func (r *recorder) count(k events.Kind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind() == k {
			n++
		}
	}
	return n
}

type fakeHost struct {
	j        *journal
	loaded   int
	unloaded int
}

func (h *fakeHost) OnViewersLoaded(context.Context, []viewer.Viewer) {
	h.loaded++
	h.j.add("host:loaded")
}

func (h *fakeHost) OnViewersUnloaded(context.Context) {
	h.unloaded++
	h.j.add("host:unloaded")
}

type fakeProgress struct {
	finished []bool
}

func (p *fakeProgress) OnProgressUpdate(string, float64) {}

func (p *fakeProgress) OnOperationFinished(ok bool) { p.finished = append(p.finished, ok) }

type fixture struct {
	m        *Mediator
	j        journal
	factory  *fakeViewerFactory
	host     *fakeHost
	timeline *recorder
	bridge   *recorder
	progress *fakeProgress
	notified [][]notify.Warning
}

func newFixture(parsers stubFactory, viewers ...*fakeViewer) *fixture {
	f := &fixture{progress: &fakeProgress{}}
	f.host = &fakeHost{j: &f.j}
	f.timeline = &recorder{name: "timeline", j: &f.j}
	f.bridge = &recorder{name: "bridge", j: &f.j}

	vs := make([]viewer.Viewer, len(viewers))
	for i, v := range viewers {
		v.j = &f.j
		vs[i] = v
	}
	f.factory = &fakeViewerFactory{viewers: vs}
	f.m = New(Options{
		Pipeline: pipeline.Options{Factory: parsers},
		Viewers:  f.factory,
		Host:     f.host,
		Timeline: f.timeline,
		Bridge:   f.bridge,
		Progress: f.progress,
		Notifier: NotifierFunc(func(ws []notify.Warning) { f.notified = append(f.notified, ws) }),
	})
	return f
}

func (f *fixture) dispatch(t *testing.T, e events.Event) {
	t.Helper()
	if err := f.m.OnEvent(context.Background(), e); err != nil {
		t.Fatalf("dispatch %s: %v", e.Kind(), err)
	}
}

func tab(name string, typ trace.Type) *fakeViewer {
	return &fakeViewer{
		name:  name,
		deps:  []trace.Type{typ},
		views: []*viewer.View{{ID: name, Title: name, Kind: viewer.ViewTab, Traces: []trace.Type{typ}}},
	}
}

func overlay(name string, typ trace.Type) *fakeViewer {
	v := tab(name, typ)
	v.views[0].Kind = viewer.ViewOverlay
	return v
}

func twoTraces() stubFactory {
	return stubFactory{
		"wm.trace": {&stubParser{typ: trace.WindowManager, real: []int64{10, 20}}},
		"pl.trace": {&stubParser{typ: trace.ProtoLog, real: []int64{11, 21}}},
	}
}

func upload(names ...string) events.FilesUploadedEvent {
	files := make([]*source.File, len(names))
	for i, n := range names {
		files[i] = source.NewFile(n, []byte(n))
	}
	return events.FilesUploadedEvent{Files: files}
}

func realTs(ns int64) trace.Timestamp {
	return trace.NewTimestamp(trace.DomainReal, ns)
}

// warned reports whether any notified batch holds a warning matching is
func (f *fixture) warned(is func(notify.Warning) bool) bool {
	for _, batch := range f.notified {
		for _, w := range batch {
			if is(w) {
				return true
			}
		}
	}
	return false
}

func TestLoadAndShowTraces(t *testing.T) {
	wm, pl := tab("wm", trace.WindowManager), tab("pl", trace.ProtoLog)
	f := newFixture(twoTraces(), wm, pl)

	f.dispatch(t, upload("wm.trace", "pl.trace"))
	if got := f.m.Session().Pipeline().Traces().Len(); got != 2 {
		t.Fatalf("loaded %d traces, want 2", got)
	}
	if f.m.State() != StateIdle {
		t.Fatalf("state = %s after load, want idle", f.m.State())
	}

	f.dispatch(t, events.TraceViewRequestEvent{})
	if f.m.State() != StateReady {
		t.Fatalf("state = %s, want ready", f.m.State())
	}
	pos := f.m.Session().Timeline().CurrentPosition()
	if pos == nil || pos.Timestamp() != realTs(10) {
		t.Fatalf("initial position = %v, want 10", pos)
	}

	// every viewer gets the initial position before the host hears of them
	want := []string{
		"wm:PositionUpdate",
		"pl:PositionUpdate",
		"timeline:PositionUpdate",
		"bridge:PositionUpdate",
		"host:loaded",
	}
	if len(f.j) != len(want) {
		t.Fatalf("journal = %v, want %v", f.j, want)
	}
	for i := range want {
		if f.j[i] != want[i] {
			t.Fatalf("journal = %v, want %v", f.j, want)
		}
	}
	if f.m.FocusedView() != "wm" {
		t.Errorf("focused = %q, want wm", f.m.FocusedView())
	}
}

func TestPositionDeliveredToVisibleViewers(t *testing.T) {
	a, b, ov := tab("wm", trace.WindowManager), tab("pl", trace.ProtoLog), overlay("rec", trace.WindowManager)
	f := newFixture(twoTraces(), a, b, ov)
	f.dispatch(t, upload("wm.trace", "pl.trace"))
	f.dispatch(t, events.TraceViewRequestEvent{})

	update := func(ns int64) {
		a.events, b.events, ov.events = nil, nil, nil
		f.dispatch(t, events.PositionUpdateEvent{Position: trace.PositionFromTimestamp(realTs(ns)), UpdateTimeline: true})
	}

	update(15)
	if len(a.positions()) != 1 || len(ov.positions()) != 1 || len(b.positions()) != 0 {
		t.Fatalf("before switch: wm=%d pl=%d rec=%d", len(a.positions()), len(b.positions()), len(ov.positions()))
	}

	f.dispatch(t, events.TabSwitchedEvent{ViewID: "pl"})
	if f.m.Session().Timeline().ActiveTrace().Type() != trace.ProtoLog {
		t.Fatal("active trace did not follow the focused tab")
	}
	if f.timeline.count(events.ActiveTraceChanged) != 1 {
		t.Fatal("timeline not told about the active trace")
	}

	update(16)
	if len(b.positions()) != 1 || len(ov.positions()) != 1 || len(a.positions()) != 0 {
		t.Fatalf("after switch: wm=%d pl=%d rec=%d", len(a.positions()), len(b.positions()), len(ov.positions()))
	}
}

func TestRemoteTimestampDeferredUntilViewers(t *testing.T) {
	wm := tab("wm", trace.WindowManager)
	f := newFixture(twoTraces(), wm)

	f.dispatch(t, events.RemoteTimestampReceivedEvent{RealNs: 12})
	f.dispatch(t, events.RemoteTimestampReceivedEvent{RealNs: 15})
	if len(f.j) != 0 {
		t.Fatalf("remote timestamp delivered early: %v", f.j)
	}

	f.dispatch(t, upload("wm.trace", "pl.trace"))
	f.dispatch(t, events.TraceViewRequestEvent{})

	got := wm.positions()
	if len(got) != 1 || got[0] != realTs(15) {
		t.Fatalf("viewer positions = %v, want [15]", got)
	}
	if f.timeline.count(events.PositionUpdate) != 1 {
		t.Errorf("timeline got %d positions, want 1", f.timeline.count(events.PositionUpdate))
	}
	if f.bridge.count(events.PositionUpdate) != 0 {
		t.Error("remote timestamp echoed to the bridge")
	}

	// a later position from the user interface does reach the bridge
	f.dispatch(t, events.PositionUpdateEvent{Position: trace.PositionFromTimestamp(realTs(20)), UpdateTimeline: true})
	if f.bridge.count(events.PositionUpdate) != 1 {
		t.Error("bridge missed a local position update")
	}
}

func TestLoadRejectedWhileBusy(t *testing.T) {
	wm := tab("wm", trace.WindowManager)
	f := newFixture(twoTraces(), wm)

	var nested error
	wm.hook = func(ctx context.Context, e events.Event) error {
		if _, ok := e.(events.PositionUpdateEvent); ok && nested == nil {
			nested = wm.emit(ctx, events.TraceViewRequestEvent{})
		}
		return nil
	}
	f.dispatch(t, upload("wm.trace"))
	f.dispatch(t, events.TraceViewRequestEvent{})
	if !errors.Is(nested, ErrBusy) {
		t.Fatalf("nested view request err = %v, want ErrBusy", nested)
	}
	if f.host.loaded != 1 {
		t.Fatalf("host loaded %d times, want 1", f.host.loaded)
	}

	if err := f.m.OnEvent(context.Background(), upload("pl.trace")); !errors.Is(err, ErrBusy) {
		t.Fatalf("upload while ready err = %v, want ErrBusy", err)
	}

	first := f.m.Session().ID()
	f.dispatch(t, events.ResetRequestEvent{})
	if f.m.State() != StateIdle || f.host.unloaded != 1 {
		t.Fatalf("state = %s unloaded = %d after reset", f.m.State(), f.host.unloaded)
	}
	if f.m.Session().ID() == first || f.m.Session().Pipeline().Traces().Len() != 0 {
		t.Fatal("reset kept the old session")
	}
	f.dispatch(t, upload("pl.trace"))
}

func TestFailingViewerIsIsolated(t *testing.T) {
	bad := overlay("bad", trace.ProtoLog)
	bad.hook = func(context.Context, events.Event) error { panic("boom") }
	worse := overlay("worse", trace.WindowManager)
	worse.hook = func(context.Context, events.Event) error { return errors.New("broken") }
	good := tab("good", trace.WindowManager)

	f := newFixture(twoTraces(), bad, worse, good)
	f.dispatch(t, upload("wm.trace", "pl.trace"))
	f.dispatch(t, events.TraceViewRequestEvent{})

	if len(good.positions()) != 1 || f.timeline.count(events.PositionUpdate) != 1 {
		t.Fatal("a failing viewer blocked delivery")
	}
	if f.host.loaded != 1 {
		t.Fatal("host not notified")
	}

	var failed []trace.Type
	for _, batch := range f.notified {
		for _, w := range batch {
			if vf, ok := w.(notify.ViewerFailed); ok {
				failed = append(failed, vf.TraceType)
			}
		}
	}
	if len(failed) != 2 || failed[0] != trace.ProtoLog || failed[1] != trace.WindowManager {
		t.Fatalf("viewer failures = %v", failed)
	}
}

func TestNoValidFiles(t *testing.T) {
	f := newFixture(twoTraces(), tab("wm", trace.WindowManager))
	f.dispatch(t, upload("unknown.bin"))

	if len(f.progress.finished) != 1 || f.progress.finished[0] {
		t.Fatalf("progress finished = %v, want [false]", f.progress.finished)
	}
	if len(f.notified) != 1 {
		t.Fatalf("notified %d times, want once", len(f.notified))
	}
	found := false
	for _, w := range f.notified[0] {
		if _, ok := w.(notify.NoValidFiles); ok {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v, want NoValidFiles", f.notified[0])
	}

	f.dispatch(t, events.TraceViewRequestEvent{})
	if f.host.loaded != 0 || f.m.State() != StateIdle {
		t.Fatal("viewers created without traces")
	}
}

func TestTraceRemoveBeforeView(t *testing.T) {
	wm, pl := tab("wm", trace.WindowManager), tab("pl", trace.ProtoLog)
	f := newFixture(twoTraces(), wm, pl)
	f.dispatch(t, upload("wm.trace", "pl.trace"))
	f.dispatch(t, events.TraceRemoveRequestEvent{Type: trace.WindowManager})
	f.dispatch(t, events.TraceViewRequestEvent{})

	pos := f.m.Session().Timeline().CurrentPosition()
	if pos == nil || pos.Timestamp() != realTs(11) {
		t.Fatalf("initial position = %v, want 11", pos)
	}
	if err := f.m.OnEvent(context.Background(), events.TraceRemoveRequestEvent{Type: trace.ProtoLog}); !errors.Is(err, ErrBusy) {
		t.Fatalf("remove while ready err = %v, want ErrBusy", err)
	}
}

func TestSettingsEventsReachAllViewers(t *testing.T) {
	wm, pl := tab("wm", trace.WindowManager), tab("pl", trace.ProtoLog)
	f := newFixture(twoTraces(), wm, pl)
	f.dispatch(t, upload("wm.trace", "pl.trace"))
	f.dispatch(t, events.TraceViewRequestEvent{})

	f.dispatch(t, events.DarkModeToggledEvent{Dark: true})
	f.dispatch(t, events.FilterPresetSaveEvent{Type: trace.ProtoLog, Name: "x"})
	for _, v := range []*fakeViewer{wm, pl} {
		n := 0
		for _, e := range v.events {
			if e.Kind() == events.DarkModeToggled || e.Kind() == events.FilterPresetSave {
				n++
			}
		}
		if n != 2 {
			t.Errorf("%s got %d settings events, want 2", v.name, n)
		}
	}
}

func TestEveryEventKindHandled(t *testing.T) {
	m := New(Options{})
	for _, k := range events.AllKinds {
		if !m.router.Handled(k) {
			t.Errorf("no handler for %s", k)
		}
	}
}

func TestDumpsGetViewers(t *testing.T) {
	wm, pl := tab("wm", trace.WindowManager), tab("pl", trace.ProtoLog)
	f := newFixture(stubFactory{
		"wm.dump":  {&stubParser{typ: trace.WindowManager, real: []int64{trace.InvalidNs}}},
		"pl.trace": {&stubParser{typ: trace.ProtoLog, real: []int64{10, 20}}},
	}, wm, pl)
	f.dispatch(t, upload("wm.dump", "pl.trace"))
	f.dispatch(t, events.TraceViewRequestEvent{})

	if f.factory.traces == nil {
		t.Fatal("viewers not created")
	}
	for _, typ := range []trace.Type{trace.WindowManager, trace.ProtoLog} {
		if f.factory.traces.Get(typ) == nil {
			t.Fatalf("viewer factory missing %s trace, got %v", typ, f.factory.traces.Types())
		}
	}
	if f.m.Session().Timeline().Traces().Get(trace.WindowManager) != nil {
		t.Fatal("dump placed on the timeline")
	}
	pos := f.m.Session().Timeline().CurrentPosition()
	if pos == nil || pos.Timestamp() != realTs(10) {
		t.Fatalf("initial position = %v, want 10", pos)
	}
	if len(wm.positions()) != 1 || len(pl.positions()) != 1 {
		t.Fatalf("initial positions: wm=%d pl=%d", len(wm.positions()), len(pl.positions()))
	}
}

func TestOnlyDumpsShownAtTheirEntry(t *testing.T) {
	wm := tab("wm", trace.WindowManager)
	f := newFixture(stubFactory{
		"wm.dump": {&stubParser{typ: trace.WindowManager, real: []int64{trace.InvalidNs}}},
	}, wm)
	f.dispatch(t, upload("wm.dump"))
	f.dispatch(t, events.TraceViewRequestEvent{})

	got := wm.positions()
	if len(got) != 1 || got[0].Ns != trace.InvalidNs {
		t.Fatalf("viewer positions = %v, want the dump entry", got)
	}
	if f.host.loaded != 1 || f.m.State() != StateReady {
		t.Fatalf("host loaded %d times, state %s", f.host.loaded, f.m.State())
	}
}

func TestFailingSubscriberDoesNotBlockViewers(t *testing.T) {
	tests := []struct {
		name string
		fail func(f *fixture)
	}{
		{"timeline", func(f *fixture) { f.timeline.fail = errors.New("timeline broken") }},
		{"bridge", func(f *fixture) { f.bridge.fail = errors.New("bridge broken") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wm := tab("wm", trace.WindowManager)
			f := newFixture(twoTraces(), wm)
			tt.fail(f)
			f.dispatch(t, upload("wm.trace", "pl.trace"))

			if err := f.m.OnEvent(context.Background(), events.TraceViewRequestEvent{}); err == nil {
				t.Fatal("subscriber error not reported")
			}
			if f.host.loaded != 1 || f.m.State() != StateReady {
				t.Fatalf("host loaded %d times, state %s", f.host.loaded, f.m.State())
			}
			if len(wm.positions()) != 1 {
				t.Fatalf("viewer got %d positions, want 1", len(wm.positions()))
			}

			f.dispatch(t, events.ResetRequestEvent{})
			f.dispatch(t, upload("pl.trace"))
			if f.m.Session().Pipeline().Traces().Len() != 1 {
				t.Fatal("reload after reset failed")
			}
		})
	}
}

func TestRemoteTimestampDuringBuildApplied(t *testing.T) {
	wm := tab("wm", trace.WindowManager)
	f := newFixture(twoTraces(), wm)

	sent := false
	wm.hook = func(ctx context.Context, e events.Event) error {
		if _, ok := e.(events.PositionUpdateEvent); ok && !sent {
			sent = true
			return wm.emit(ctx, events.RemoteTimestampReceivedEvent{RealNs: 15})
		}
		return nil
	}
	f.dispatch(t, upload("wm.trace", "pl.trace"))
	f.dispatch(t, events.TraceViewRequestEvent{})

	got := wm.positions()
	if len(got) != 2 || got[0] != realTs(10) || got[1] != realTs(15) {
		t.Fatalf("viewer positions = %v, want [10 15]", got)
	}
	pos := f.m.Session().Timeline().CurrentPosition()
	if pos == nil || pos.Timestamp() != realTs(15) {
		t.Fatalf("timeline position = %v, want 15", pos)
	}
	if f.timeline.count(events.PositionUpdate) != 2 {
		t.Errorf("timeline got %d positions, want 2", f.timeline.count(events.PositionUpdate))
	}
	if f.bridge.count(events.PositionUpdate) != 1 {
		t.Errorf("bridge got %d positions, want only the initial one", f.bridge.count(events.PositionUpdate))
	}
}

func TestFrameMappingFailure(t *testing.T) {
	wm := tab("wm", trace.WindowManager)
	f := newFixture(stubFactory{
		"wm.trace": {&framedParser{
			stubParser: stubParser{typ: trace.WindowManager, real: []int64{10, 20}},
			err:        errors.New("no frames"),
		}},
	}, wm)
	f.dispatch(t, upload("wm.trace"))
	f.dispatch(t, events.TraceViewRequestEvent{})

	if n := len(f.progress.finished); n == 0 || f.progress.finished[n-1] {
		t.Fatalf("progress finished = %v, want a final false", f.progress.finished)
	}
	if !f.warned(func(w notify.Warning) bool { _, ok := w.(notify.FrameMappingFailed); return ok }) {
		t.Fatalf("warnings = %v, want FrameMappingFailed", f.notified)
	}
	if f.host.loaded != 1 || f.m.State() != StateReady {
		t.Fatalf("host loaded %d times, state %s", f.host.loaded, f.m.State())
	}
}

func TestTimelineFailureSkipsViewers(t *testing.T) {
	wm, pl := tab("wm", trace.WindowManager), tab("pl", trace.ProtoLog)
	f := newFixture(stubFactory{
		"wm.trace": {&stubParser{typ: trace.WindowManager, real: []int64{10, 20}}},
		"pl.trace": {&elapsedParser{stubParser{typ: trace.ProtoLog, real: []int64{11, 21}}}},
	}, wm, pl)
	f.dispatch(t, upload("wm.trace", "pl.trace"))
	f.dispatch(t, events.TraceViewRequestEvent{})

	if !f.warned(func(w notify.Warning) bool { _, ok := w.(notify.TimelineInitFailed); return ok }) {
		t.Fatalf("warnings = %v, want TimelineInitFailed", f.notified)
	}
	if f.factory.traces != nil || f.host.loaded != 0 {
		t.Fatalf("viewers created after timeline failure, host loaded %d times", f.host.loaded)
	}
	if f.m.State() != StateIdle {
		t.Fatalf("state = %s, want idle", f.m.State())
	}
	if len(wm.events) != 0 || len(pl.events) != 0 {
		t.Fatal("viewers received events")
	}
}
