// Package ui is the terminal host application
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/mtrace/internal/config"
	"github.com/TimelordUK/mtrace/internal/coordinator"
	"github.com/TimelordUK/mtrace/internal/events"
	"github.com/TimelordUK/mtrace/internal/notify"
	"github.com/TimelordUK/mtrace/internal/timeline"
	"github.com/TimelordUK/mtrace/internal/trace"
	"github.com/TimelordUK/mtrace/internal/viewer"
	"github.com/TimelordUK/mtrace/pkg/logformat"
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeFilter
	ModeGoto
	ModeSearch
	ModeSavePreset
	ModeLoadPreset
	ModeMark
	ModeJump
)

type action int

const (
	actNone action = iota
	actQuit
	actNextEntry
	actPrevEntry
	actNextTab
	actPrevTab
	actPageUp
	actPageDown
	actTop
	actBottom
	actFilter
	actGoto
	actDarkMode
	actSavePreset
	actLoadPreset
)

func bindings(k config.KeybindingConfig) map[string]action {
	out := make(map[string]action)
	for act, keys := range map[action][]string{
		actQuit:       k.Quit,
		actNextEntry:  k.NextEntry,
		actPrevEntry:  k.PrevEntry,
		actNextTab:    k.NextTab,
		actPrevTab:    k.PrevTab,
		actPageUp:     k.PageUp,
		actPageDown:   k.PageDown,
		actTop:        k.Top,
		actBottom:     k.Bottom,
		actFilter:     k.Filter,
		actGoto:       k.Goto,
		actDarkMode:   k.DarkMode,
		actSavePreset: k.SavePreset,
		actLoadPreset: k.LoadPreset,
	} {
		for _, key := range keys {
			out[key] = act
		}
	}
	return out
}

// Options configures the host model
type Options struct {
	Config *config.Config
	// Timeline returns the timeline of the current session
	Timeline func() *timeline.Timeline
	Title    string
}

// Model is the main application model. It is the host that renders the
// viewers created by the coordinator.
type Model struct {
	config   *config.Config
	timeline func() *timeline.Timeline
	title    string
	keys     map[string]action
	emit     events.EmitFunc

	panes   []*Pane
	active  int
	overlay *viewer.RecordingViewer
	search  *viewer.SearchViewer

	matches    []viewer.Match
	matchIndex int

	input textinput.Model
	mode  Mode

	width  int
	height int
	dark   bool

	// Status
	status   string
	warnings []string
	err      error
}

var (
	_ tea.Model                = (*Model)(nil)
	_ coordinator.Host         = (*Model)(nil)
	_ coordinator.UserNotifier = (*Model)(nil)
	_ notify.ProgressListener  = (*Model)(nil)
	_ events.Subscriber        = (*Model)(nil)
	_ events.Emitter           = (*Model)(nil)
)

// NewModel creates a new application model
func NewModel(opts Options) *Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	ti := textinput.New()
	ti.CharLimit = 256

	return &Model{
		config:   cfg,
		timeline: opts.Timeline,
		title:    opts.Title,
		keys:     bindings(cfg.Keybindings),
		input:    ti,
		dark:     cfg.Display.DarkMode,
		width:    80,
		height:   24,
	}
}

// SetEmitEvent implements events.Emitter
func (m *Model) SetEmitEvent(emit events.EmitFunc) {
	m.emit = emit
}

// OnViewersLoaded implements coordinator.Host
func (m *Model) OnViewersLoaded(_ context.Context, viewers []viewer.Viewer) {
	m.panes = nil
	m.overlay = nil
	m.search = nil
	m.active = 0
	for _, v := range viewers {
		switch v := v.(type) {
		case *viewer.LogViewer:
			m.panes = append(m.panes, NewPane(v, m.config))
		case *viewer.RecordingViewer:
			m.overlay = v
		case *viewer.SearchViewer:
			m.search = v
		}
	}
	m.layout()
}

// OnViewersUnloaded implements coordinator.Host
func (m *Model) OnViewersUnloaded(context.Context) {
	m.panes = nil
	m.overlay = nil
	m.search = nil
	m.matches = nil
	m.active = 0
}

// Notify implements coordinator.UserNotifier
func (m *Model) Notify(ws []notify.Warning) {
	m.warnings = m.warnings[:0]
	for _, w := range ws {
		m.warnings = append(m.warnings, w.Message())
	}
}

// OnProgressUpdate implements notify.ProgressListener
func (m *Model) OnProgressUpdate(message string, percent float64) {
	if percent >= 0 {
		m.status = fmt.Sprintf("%s (%.0f%%)", message, percent)
		return
	}
	m.status = message
}

// OnOperationFinished implements notify.ProgressListener
func (m *Model) OnOperationFinished(success bool) {
	if success {
		m.status = ""
		return
	}
	m.status = "operation failed"
}

// OnEvent handles tab switch requests raised elsewhere
func (m *Model) OnEvent(ctx context.Context, e events.Event) error {
	req, ok := e.(events.TabSwitchRequestEvent)
	if !ok {
		return nil
	}
	for i, p := range m.panes {
		if p.Viewer().Trace().Type() == req.Type {
			m.active = i
			return m.sendCtx(ctx, events.TabSwitchedEvent{ViewID: p.ID()})
		}
	}
	return nil
}

// Panes returns the open panes
func (m *Model) Panes() []*Pane {
	return m.panes
}

// ActivePane returns the focused pane, nil when nothing is loaded
func (m *Model) ActivePane() *Pane {
	if m.active < 0 || m.active >= len(m.panes) {
		return nil
	}
	return m.panes[m.active]
}

// Warnings returns the messages of the last notification
func (m *Model) Warnings() []string {
	return m.warnings
}

// Err returns the last error raised by an event
func (m *Model) Err() error {
	return m.err
}

func (m *Model) sendCtx(ctx context.Context, e events.Event) error {
	if m.emit == nil {
		return nil
	}
	return m.emit(ctx, e)
}

func (m *Model) send(e events.Event) {
	if err := m.sendCtx(context.Background(), e); err != nil {
		m.err = err
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil
	}

	return m, nil
}

// layout reserves the tab bar, overlay, warnings, status and help lines
func (m *Model) layout() {
	reserved := 4
	if m.overlay != nil {
		reserved++
	}
	height := m.height - reserved
	if p := m.ActivePane(); p != nil && p.showDetail {
		height -= m.detailHeight()
	}
	if height < 1 {
		height = 1
	}
	for _, p := range m.panes {
		p.SetSize(m.width, height)
	}
}

func (m *Model) detailHeight() int {
	return m.height / 3
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeNormal:
	case ModeMark, ModeJump:
		return m.handleMarkKey(msg)
	default:
		return m.handlePromptKey(msg)
	}

	m.err = nil
	pane := m.ActivePane()
	key := msg.String()

	switch m.keys[key] {
	case actQuit:
		return m, tea.Quit
	case actNextEntry:
		m.step(1)
	case actPrevEntry:
		m.step(-1)
	case actNextTab:
		m.switchTab(m.active + 1)
	case actPrevTab:
		m.switchTab(m.active - 1)
	case actPageUp:
		if pane != nil {
			pane.Viewport().PageUp()
		}
	case actPageDown:
		if pane != nil {
			pane.Viewport().PageDown()
		}
	case actTop:
		if pane != nil {
			pane.Viewport().GotoTop()
		}
	case actBottom:
		if pane != nil {
			pane.Viewport().GotoBottom()
		}
	case actFilter:
		return m.prompt(ModeFilter, "Filter text...")
	case actGoto:
		return m.prompt(ModeGoto, "Timestamp...")
	case actDarkMode:
		m.dark = !m.dark
		m.send(events.DarkModeToggledEvent{Dark: m.dark})
	case actSavePreset:
		return m.prompt(ModeSavePreset, "Preset name...")
	case actLoadPreset:
		return m.prompt(ModeLoadPreset, "Preset name...")
	case actNone:
		return m.handleFixedKey(key, pane)
	}
	return m, nil
}

// handleFixedKey covers keys that are not configurable
func (m *Model) handleFixedKey(key string, pane *Pane) (tea.Model, tea.Cmd) {
	switch key {
	case "enter":
		if pane != nil {
			if pane.Viewer().CurrentIndex() < 0 {
				if err := pane.SelectTop(context.Background()); err != nil {
					m.err = err
				}
			}
			pane.ToggleDetail()
			m.layout()
		}
	case "?":
		if m.search != nil {
			return m.prompt(ModeSearch, "Search all traces...")
		}
	case "n":
		m.nextMatch(1)
	case "N":
		m.nextMatch(-1)
	case "m":
		m.mode = ModeMark
	case "'":
		m.mode = ModeJump
	case "0", "1", "2", "3", "4", "5", "6":
		if pane != nil {
			pane.SetMinLevel(logformat.Level(key[0] - '0'))
		}
	}
	return m, nil
}

func (m *Model) handleMarkKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	mode := m.mode
	m.mode = ModeNormal
	pane := m.ActivePane()
	key := msg.String()
	if pane == nil || len(key) != 1 || key[0] < 'a' || key[0] > 'z' {
		return m, nil
	}
	char := rune(key[0])
	if mode == ModeMark {
		if !pane.SetMark(char) {
			m.status = "no entry to mark"
		}
		return m, nil
	}
	ok, err := pane.JumpToMark(context.Background(), char)
	if err != nil {
		m.err = err
	} else if !ok {
		m.status = fmt.Sprintf("mark '%c' not set", char)
	}
	return m, nil
}

func (m *Model) prompt(mode Mode, placeholder string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.SetValue("")
	m.input.Placeholder = placeholder
	m.input.Focus()
	return m, textinput.Blink
}

func (m *Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		value := m.input.Value()
		mode := m.mode
		m.mode = ModeNormal
		m.input.Blur()
		m.submit(mode, value)
		return m, nil

	case "esc":
		m.mode = ModeNormal
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit(mode Mode, value string) {
	pane := m.ActivePane()
	switch mode {
	case ModeFilter:
		if pane != nil {
			pane.SetFilterTerm(value)
		}
	case ModeGoto:
		m.GotoTime(value)
	case ModeSearch:
		m.runSearch(value)
	case ModeSavePreset, ModeLoadPreset:
		name := strings.TrimSpace(value)
		if pane == nil || name == "" {
			return
		}
		typ := pane.Viewer().Trace().Type()
		if mode == ModeSavePreset {
			m.send(events.FilterPresetSaveEvent{Type: typ, Name: name})
		} else {
			m.send(events.FilterPresetApplyEvent{Type: typ, Name: name})
		}
	}
}

// step moves to the adjacent entry of the focused trace. Without a filter
// this follows the timeline; a filtered pane steps over its visible rows.
func (m *Model) step(delta int) {
	pane := m.ActivePane()
	if pane == nil {
		return
	}
	if m.timeline != nil && !pane.Viewer().Filter().IsFiltered() {
		tl := m.timeline()
		typ := pane.Viewer().Trace().Type()
		var (
			e  trace.Entry
			ok bool
		)
		if delta > 0 {
			e, ok = tl.NextEntry(typ)
		} else {
			e, ok = tl.PreviousEntry(typ)
		}
		if ok {
			m.send(events.PositionUpdateEvent{Position: trace.PositionFromEntry(e), UpdateTimeline: true})
		}
		return
	}
	if err := pane.Step(context.Background(), delta); err != nil {
		m.err = err
	}
}

func (m *Model) switchTab(i int) {
	if len(m.panes) == 0 {
		return
	}
	m.active = (i + len(m.panes)) % len(m.panes)
	m.layout()
	m.send(events.TabSwitchedEvent{ViewID: m.panes[m.active].ID()})
}

func (m *Model) location() *time.Location {
	if m.timeline != nil {
		if c := m.timeline().Converter(); c != nil {
			return c.Location()
		}
	}
	return time.UTC
}

// GotoTime moves the timeline to a time typed by the user. It reports
// whether the input could be parsed.
func (m *Model) GotoTime(input string) bool {
	pane := m.ActivePane()
	if pane == nil {
		return false
	}
	ts, ok := pane.ParseTime(input, m.location())
	if !ok {
		m.status = fmt.Sprintf("cannot parse time %q", input)
		return false
	}
	m.send(events.PositionUpdateEvent{Position: trace.PositionFromTimestamp(ts), UpdateTimeline: true})
	return true
}

func (m *Model) runSearch(query string) {
	matches, err := m.search.Search(context.Background(), query)
	if err != nil {
		m.err = err
		return
	}
	m.matches = matches
	m.matchIndex = -1
	m.nextMatch(1)
}

func (m *Model) nextMatch(delta int) {
	if len(m.matches) == 0 {
		return
	}
	m.matchIndex = (m.matchIndex + delta + len(m.matches)) % len(m.matches)
	match := m.matches[m.matchIndex]
	for i, p := range m.panes {
		if p.Viewer().Trace().Type() == match.Type && i != m.active {
			m.switchTab(i)
			break
		}
	}
	if err := m.search.Select(context.Background(), match); err != nil {
		m.err = err
	}
}

// View implements tea.Model
func (m *Model) View() string {
	var builder strings.Builder
	theme := m.config.Theme

	builder.WriteString(m.renderTabs())
	builder.WriteString("\n")

	pane := m.ActivePane()
	if pane == nil {
		builder.WriteString("No traces loaded\n")
	} else {
		builder.WriteString(pane.Render())
		builder.WriteString("\n")
		if detail := pane.Detail(context.Background(), m.detailHeight()); detail != "" {
			builder.WriteString(detail)
			builder.WriteString("\n")
		}
	}

	if m.overlay != nil {
		builder.WriteString(m.overlay.Status())
		builder.WriteString("\n")
	}

	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Warning))
	switch {
	case m.err != nil:
		builder.WriteString(warnStyle.Render("Error: " + m.err.Error()))
	case len(m.warnings) == 1:
		builder.WriteString(warnStyle.Render(m.warnings[0]))
	case len(m.warnings) > 1:
		builder.WriteString(warnStyle.Render(fmt.Sprintf("%s (+%d more)", m.warnings[0], len(m.warnings)-1)))
	}
	builder.WriteString("\n")

	// Status bar
	statusStyle := lipgloss.NewStyle().
		Background(lipgloss.Color(theme.StatusBar)).
		Foreground(lipgloss.Color(theme.StatusBarText)).
		Width(m.width)
	builder.WriteString(statusStyle.Render(m.statusLine(pane)))
	builder.WriteString("\n")

	// Help line
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.LineNumbers))
	help := "j/k:entry  h/l:tab  f/b:page  /:filter  ::goto  ?:search  0-6:level  enter:detail  d:dark  q:quit"
	builder.WriteString(helpStyle.Render(help))

	return builder.String()
}

func (m *Model) renderTabs() string {
	theme := m.config.Theme
	active := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(theme.ActiveTab)).Padding(0, 1)
	inactive := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.InactiveTab)).Padding(0, 1)

	tabs := make([]string, 0, len(m.panes))
	for i, p := range m.panes {
		if i == m.active {
			tabs = append(tabs, active.Render(p.Title()))
		} else {
			tabs = append(tabs, inactive.Render(p.Title()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) statusLine(pane *Pane) string {
	switch m.mode {
	case ModeFilter:
		return "/" + m.input.View()
	case ModeGoto:
		return ":" + m.input.View()
	case ModeSearch:
		return "?" + m.input.View()
	case ModeSavePreset:
		return "save preset: " + m.input.View()
	case ModeLoadPreset:
		return "load preset: " + m.input.View()
	case ModeMark:
		return "mark: "
	case ModeJump:
		return "jump to mark: "
	}

	if m.status != "" {
		return " " + m.status
	}
	if pane == nil {
		return " " + m.title
	}

	v := pane.Viewer()
	info := fmt.Sprintf(" %s  E%d/%d  %.0f%%", m.title, v.CurrentIndex()+1, v.Trace().Len(), pane.Viewport().PercentScrolled())
	if term := pane.FilterTerm(); term != "" {
		info += fmt.Sprintf("  [filter: %s, %d shown]", term, v.LineCount())
	} else if v.Filter().IsFiltered() {
		info += fmt.Sprintf("  [%d shown]", v.LineCount())
	}
	if len(m.matches) > 0 {
		info += fmt.Sprintf("  [match %d/%d]", m.matchIndex+1, len(m.matches))
	}
	if m.timeline != nil {
		if tl := m.timeline(); tl != nil {
			if pos := tl.CurrentPosition(); pos != nil {
				info += "  @ " + tl.Converter().Format(pos.Timestamp())
			}
		}
	}
	return info
}
