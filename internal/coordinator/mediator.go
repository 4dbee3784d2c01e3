// Package coordinator routes events between the host, the timeline, the
// remote bridge and the viewers, and sequences loading traces into viewers.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/TimelordUK/mtrace/internal/events"
	"github.com/TimelordUK/mtrace/internal/logging"
	"github.com/TimelordUK/mtrace/internal/notify"
	"github.com/TimelordUK/mtrace/internal/pipeline"
	"github.com/TimelordUK/mtrace/internal/settings"
	"github.com/TimelordUK/mtrace/internal/source"
	"github.com/TimelordUK/mtrace/internal/trace"
	"github.com/TimelordUK/mtrace/internal/viewer"
)

// ErrBusy is returned for a load or display request while another one is
// in flight, or once viewers are shown
var ErrBusy = errors.New("coordinator: load already in progress")

// State is the phase of the load-and-display flow
type State int

const (
	StateIdle State = iota
	StateLoading
	StateBuilding
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a Mediator. Every collaborator is optional.
type Options struct {
	Pipeline pipeline.Options
	Viewers  viewer.Factory
	Store    settings.Store
	Host     Host
	// Timeline is the timeline UI component
	Timeline events.Subscriber
	// Bridge is the remote tool protocol endpoint
	Bridge   events.Subscriber
	Notifier UserNotifier
	Progress notify.ProgressListener
	Logger   logrus.FieldLogger
}

// Mediator is the event coordinator. It owns the session and is driven
// from a single goroutine; events raised by collaborators while an event
// is dispatched are handled inline.
type Mediator struct {
	opts   Options
	log    logrus.FieldLogger
	router events.Router

	session *Session
	state   State
	focused string

	// last remote timestamp received before viewers existed
	pendingRemote *int64

	warnings *notify.Collector
	depth    int
}

var _ events.Subscriber = (*Mediator)(nil)

// New creates a mediator and wires the collaborators' outbound events to it
func New(opts Options) *Mediator {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Pipeline.Logger == nil {
		opts.Pipeline.Logger = opts.Logger
	}
	if opts.Viewers == nil {
		opts.Viewers = viewer.NewFactory(viewer.FactoryOptions{})
	}
	if opts.Host == nil {
		opts.Host = nopHost{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Progress == nil {
		opts.Progress = notify.NopProgress
	}

	m := &Mediator{
		opts:     opts,
		log:      opts.Logger,
		warnings: notify.NewCollector(),
	}
	m.session = newSession(opts.Pipeline)
	for _, c := range []any{opts.Host, opts.Timeline, opts.Bridge} {
		if em, ok := c.(events.Emitter); ok {
			em.SetEmitEvent(m.OnEvent)
		}
	}
	m.register()
	return m
}

func (m *Mediator) register() {
	r := &m.router
	events.On(r, m.onAppInitialized)
	events.On(r, m.onFilesUploaded)
	events.On(r, m.onFilesCollected)
	events.On(r, m.onResetRequest)
	events.On(r, m.onTraceViewRequest)
	events.On(r, m.onTraceRemoveRequest)
	events.On(r, m.onRemoteDownloadStarted)
	events.On(r, m.onRemoteFilesReceived)
	events.On(r, m.onRemoteTimestampReceived)
	events.On(r, m.onTabSwitchRequest)
	events.On(r, m.onTabSwitched)
	events.On(r, m.onPositionUpdate)
	events.On(r, m.onActiveTraceChanged)
	r.Handle(events.DarkModeToggled, m.forwardToViewers)
	r.Handle(events.FilterPresetSave, m.forwardToViewers)
	r.Handle(events.FilterPresetApply, m.forwardToViewers)
}

// Session returns the current generation
func (m *Mediator) Session() *Session { return m.session }

// State returns the phase of the load-and-display flow
func (m *Mediator) State() State { return m.state }

// FocusedView returns the ID of the focused view, empty before display
func (m *Mediator) FocusedView() string { return m.focused }

// OnEvent dispatches e. Warnings raised while the outermost call runs are
// delivered to the notifier once it returns.
func (m *Mediator) OnEvent(ctx context.Context, e events.Event) error {
	m.depth++
	defer func() {
		m.depth--
		if m.depth == 0 {
			if ws := m.warnings.Flush(); len(ws) > 0 {
				m.opts.Notifier.Notify(ws)
			}
		}
	}()
	m.log.WithFields(logrus.Fields{"event": e.Kind(), "generation": m.session.id}).Debug("dispatch")
	return m.router.Dispatch(ctx, e)
}

func (m *Mediator) onAppInitialized(ctx context.Context, e events.AppInitializedEvent) error {
	return errors.Join(m.notifyTimeline(ctx, e), m.notifyBridge(ctx, e))
}

func (m *Mediator) onFilesUploaded(ctx context.Context, e events.FilesUploadedEvent) error {
	_, err := m.loadFiles(ctx, e.Files)
	return err
}

func (m *Mediator) onFilesCollected(ctx context.Context, e events.FilesCollectedEvent) error {
	ok, err := m.loadFiles(ctx, e.Files)
	if err != nil || !ok {
		return err
	}
	return m.loadViewers(ctx)
}

func (m *Mediator) onResetRequest(ctx context.Context, _ events.ResetRequestEvent) error {
	m.reset(ctx)
	return nil
}

func (m *Mediator) onTraceViewRequest(ctx context.Context, _ events.TraceViewRequestEvent) error {
	return m.loadViewers(ctx)
}

func (m *Mediator) onTraceRemoveRequest(_ context.Context, e events.TraceRemoveRequestEvent) error {
	if m.state != StateIdle {
		return ErrBusy
	}
	m.session.pipeline.RemoveTrace(e.Type)
	return nil
}

func (m *Mediator) onRemoteDownloadStarted(ctx context.Context, _ events.RemoteDownloadStartedEvent) error {
	m.reset(ctx)
	m.opts.Progress.OnProgressUpdate("Fetching files from remote tool", -1)
	return nil
}

func (m *Mediator) onRemoteFilesReceived(ctx context.Context, e events.RemoteFilesReceivedEvent) error {
	m.reset(ctx)
	ok, err := m.loadFiles(ctx, e.Files)
	if err != nil || !ok {
		return err
	}
	return m.loadViewers(ctx)
}

func (m *Mediator) onRemoteTimestampReceived(ctx context.Context, e events.RemoteTimestampReceivedEvent) error {
	if m.state != StateReady {
		ns := e.RealNs
		m.pendingRemote = &ns
		return nil
	}
	return m.applyRemote(ctx, e.RealNs)
}

// applyRemote moves the shown viewers to a remote timestamp without echoing
// it to the bridge
func (m *Mediator) applyRemote(ctx context.Context, ns int64) error {
	pos := m.resolveRemote(ns)
	if pos == nil {
		return nil
	}
	if err := m.session.timeline.SetPosition(pos); err != nil {
		m.warnings.Warn(notify.RemoteTimestampUnresolved{Ns: ns, Err: err})
		return nil
	}
	return m.propagatePosition(ctx, pos, false, true)
}

func (m *Mediator) onTabSwitchRequest(ctx context.Context, e events.TabSwitchRequestEvent) error {
	if m.session.viewers == nil {
		return nil
	}
	if host, ok := m.opts.Host.(events.Subscriber); ok {
		return host.OnEvent(ctx, e)
	}
	for _, v := range m.session.viewers {
		for _, view := range v.Views() {
			if view.Kind == viewer.ViewTab && len(view.Traces) > 0 && view.Traces[0] == e.Type {
				return m.OnEvent(ctx, events.TabSwitchedEvent{ViewID: view.ID})
			}
		}
	}
	return nil
}

func (m *Mediator) onTabSwitched(ctx context.Context, e events.TabSwitchedEvent) error {
	view := m.findView(e.ViewID)
	if view == nil {
		return nil
	}
	m.focused = view.ID

	var errs []error
	if len(view.Traces) > 0 {
		tl := m.session.timeline
		if tr := tl.Traces().Get(view.Traces[0]); tr != nil && tl.TrySetActiveTrace(tr) {
			errs = append(errs, m.notifyTimeline(ctx, events.ActiveTraceChangedEvent{Trace: tr}))
		}
	}
	if pos := m.session.timeline.CurrentPosition(); pos != nil {
		errs = append(errs, m.propagatePosition(ctx, pos, false, false))
	}
	return errors.Join(errs...)
}

func (m *Mediator) onPositionUpdate(ctx context.Context, e events.PositionUpdateEvent) error {
	if m.session.viewers == nil || e.Position == nil {
		return nil
	}
	if e.UpdateTimeline {
		// A position outside the collection's domain is a caller bug
		if err := m.session.timeline.SetPosition(e.Position); err != nil {
			return fmt.Errorf("set position: %w", err)
		}
	}
	return m.propagatePosition(ctx, e.Position, false, false)
}

func (m *Mediator) onActiveTraceChanged(ctx context.Context, e events.ActiveTraceChangedEvent) error {
	if m.session.viewers == nil || !m.session.timeline.TrySetActiveTrace(e.Trace) {
		return nil
	}
	return m.notifyTimeline(ctx, e)
}

func (m *Mediator) forwardToViewers(ctx context.Context, e events.Event) error {
	for _, v := range m.session.viewers {
		m.deliver(ctx, v, e)
	}
	return nil
}

// loadFiles runs the ingestion pipeline. It reports whether traces were loaded.
func (m *Mediator) loadFiles(ctx context.Context, files []*source.File) (bool, error) {
	if m.state != StateIdle {
		return false, ErrBusy
	}
	m.state = StateLoading
	defer func() { m.state = StateIdle }()

	s := m.session
	m.opts.Progress.OnProgressUpdate("Loading files", -1)
	err := s.pipeline.Load(ctx, files, m.warnings, m.opts.Progress)
	if s != m.session {
		return false, nil
	}
	m.opts.Progress.OnOperationFinished(err == nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pipeline.ErrNoValidFiles):
		return false, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false, err
	default:
		m.warnings.Warn(notify.NewParserError(notify.Corrupted, "upload", err))
		return false, nil
	}
}

// loadViewers builds the loaded traces, initializes the timeline, creates
// the viewers and shows them at the initial position
func (m *Mediator) loadViewers(ctx context.Context) error {
	if m.state != StateIdle {
		return ErrBusy
	}
	s := m.session
	if s.pipeline.Traces().Len() == 0 {
		return nil
	}
	m.state = StateBuilding
	log := m.log.WithField("generation", s.id)

	m.opts.Progress.OnProgressUpdate("Computing frame mapping", -1)
	s.pipeline.FilterTracesWithoutVisualization()
	_, err := s.pipeline.Build(ctx)
	if s != m.session {
		return nil
	}
	if err != nil {
		log.WithError(err).Warn("frame mapping failed")
		m.warnings.Warn(notify.FrameMappingFailed{Err: err})
	}
	m.opts.Progress.OnOperationFinished(err == nil)

	if err := s.timeline.Initialize(s.pipeline.Traces(), s.pipeline.ScreenRecordingVideo(), s.pipeline.Converter()); err != nil {
		log.WithError(err).Error("timeline initialization failed")
		m.warnings.Warn(notify.TimelineInitFailed{Err: err})
		m.state = StateIdle
		return nil
	}

	// dumps have no place on the timeline but are still shown
	viewers := m.opts.Viewers.CreateViewers(s.pipeline.Traces(), m.opts.Store)
	for _, v := range viewers {
		if em, ok := v.(events.Emitter); ok {
			em.SetEmitEvent(m.OnEvent)
		}
	}
	s.viewers = viewers
	m.focused = ""
	if view := m.firstTab(); view != nil {
		m.focused = view.ID
	}

	// a failing timeline or bridge component does not keep the viewers
	// from being shown; its error is returned once they are
	var errs []error
	pos, fromRemote := m.initialPosition()
	if pos != nil {
		if err := m.propagatePosition(ctx, pos, true, fromRemote); err != nil {
			log.WithError(err).Warn("initial position not accepted by every component")
			errs = append(errs, err)
		}
	}
	if s != m.session {
		return errors.Join(errs...)
	}

	m.opts.Host.OnViewersLoaded(ctx, viewers)
	m.state = StateReady
	log.WithField("viewers", len(viewers)).Info("viewers loaded")

	// a remote timestamp that arrived while the viewers were being built
	if m.pendingRemote != nil {
		ns := *m.pendingRemote
		m.pendingRemote = nil
		errs = append(errs, m.applyRemote(ctx, ns))
	}
	return errors.Join(errs...)
}

// initialPosition prefers the pending remote timestamp, then the timeline
// default, then any trace's first entry
func (m *Mediator) initialPosition() (*trace.Position, bool) {
	tl := m.session.timeline
	if m.pendingRemote != nil {
		ns := *m.pendingRemote
		m.pendingRemote = nil
		if pos := m.resolveRemote(ns); pos != nil {
			err := tl.SetPosition(pos)
			if err == nil {
				return pos, true
			}
			m.warnings.Warn(notify.RemoteTimestampUnresolved{Ns: ns, Err: err})
		}
	}
	if pos := tl.CurrentPosition(); pos != nil {
		return pos, false
	}
	for _, tr := range m.session.pipeline.Traces().All() {
		if e, ok := tr.First(); ok {
			return trace.PositionFromEntry(e), false
		}
	}
	return nil, false
}

func (m *Mediator) resolveRemote(ns int64) *trace.Position {
	tl := m.session.timeline
	ts, err := tl.Converter().FromRealNs(tl.Domain(), ns)
	if err != nil {
		m.warnings.Warn(notify.RemoteTimestampUnresolved{Ns: ns, Err: err})
		return nil
	}
	return tl.MakePositionFromActiveTrace(ts)
}

// propagatePosition delivers pos to the visible viewers (all of them when
// initial), the timeline component and, unless it came from there, the
// bridge
func (m *Mediator) propagatePosition(ctx context.Context, pos *trace.Position, initial, fromBridge bool) error {
	e := events.PositionUpdateEvent{Position: pos}
	for _, v := range m.session.viewers {
		if initial || m.isVisible(v) {
			m.deliver(ctx, v, e)
		}
	}
	errs := []error{m.notifyTimeline(ctx, e)}
	if !fromBridge {
		errs = append(errs, m.notifyBridge(ctx, e))
	}
	return errors.Join(errs...)
}

// deliver passes e to v, turning failures into warnings
func (m *Mediator) deliver(ctx context.Context, v viewer.Viewer, e events.Event) {
	var typ trace.Type
	if deps := v.Dependencies(); len(deps) > 0 {
		typ = deps[0]
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.WithFields(logrus.Fields{"trace": typ, "panic": r}).Error("viewer panicked")
			m.warnings.Warn(notify.ViewerFailed{TraceType: typ, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	if err := v.OnEvent(ctx, e); err != nil {
		m.log.WithField("trace", typ).WithError(err).Warn("viewer failed")
		m.warnings.Warn(notify.ViewerFailed{TraceType: typ, Err: err})
	}
}

// isVisible is evaluated on every delivery
func (m *Mediator) isVisible(v viewer.Viewer) bool {
	for _, view := range v.Views() {
		if view.Kind == viewer.ViewOverlay || view.ID == m.focused {
			return true
		}
	}
	return false
}

func (m *Mediator) findView(id string) *viewer.View {
	for _, v := range m.session.viewers {
		for _, view := range v.Views() {
			if view.ID == id {
				return view
			}
		}
	}
	return nil
}

func (m *Mediator) firstTab() *viewer.View {
	for _, v := range m.session.viewers {
		for _, view := range v.Views() {
			if view.Kind == viewer.ViewTab {
				return view
			}
		}
	}
	return nil
}

func (m *Mediator) notifyTimeline(ctx context.Context, e events.Event) error {
	if m.opts.Timeline == nil {
		return nil
	}
	return m.opts.Timeline.OnEvent(ctx, e)
}

func (m *Mediator) notifyBridge(ctx context.Context, e events.Event) error {
	if m.opts.Bridge == nil {
		return nil
	}
	return m.opts.Bridge.OnEvent(ctx, e)
}

// reset drops the session and unloads any viewers
func (m *Mediator) reset(ctx context.Context) {
	hadViewers := m.session.viewers != nil
	m.session = newSession(m.opts.Pipeline)
	m.state = StateIdle
	m.focused = ""
	if hadViewers {
		m.opts.Host.OnViewersUnloaded(ctx)
	}
	m.log.WithField("generation", m.session.id).Debug("session reset")
}
