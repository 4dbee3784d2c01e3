package viewer

import (
	"context"
	"strings"

	"github.com/TimelordUK/mtrace/internal/events"
	"github.com/TimelordUK/mtrace/internal/trace"
)

// SearchViewID identifies the global search view
const SearchViewID = "search"

// Match is one global search hit
type Match struct {
	Type  trace.Type
	Index int
	Text  string
}

// SearchViewer searches the entries of every displayed trace
type SearchViewer struct {
	viewers []*LogViewer
	view    *View
	emit    events.EmitFunc

	matches  []Match
	position *trace.Position
}

var (
	_ Viewer         = (*SearchViewer)(nil)
	_ events.Emitter = (*SearchViewer)(nil)
)

// NewSearchViewer searches the entries shown by viewers
func NewSearchViewer(viewers []*LogViewer) *SearchViewer {
	deps := make([]trace.Type, 0, len(viewers))
	for _, lv := range viewers {
		deps = append(deps, lv.Trace().Type())
	}
	return &SearchViewer{
		viewers: viewers,
		view: &View{
			ID:     SearchViewID,
			Title:  "Search",
			Kind:   ViewGlobalSearch,
			Traces: deps,
		},
	}
}

func (v *SearchViewer) Views() []*View { return []*View{v.view} }

func (v *SearchViewer) Dependencies() []trace.Type { return v.view.Traces }

func (v *SearchViewer) SetEmitEvent(emit events.EmitFunc) { v.emit = emit }

// OnEvent implements events.Subscriber
func (v *SearchViewer) OnEvent(_ context.Context, e events.Event) error {
	if ev, ok := e.(events.PositionUpdateEvent); ok {
		v.position = ev.Position
	}
	return nil
}

// Position returns the last position received
func (v *SearchViewer) Position() *trace.Position { return v.position }

// Search finds entries whose text contains query, case-insensitively,
// ordered by trace type then entry index
func (v *SearchViewer) Search(ctx context.Context, query string) ([]Match, error) {
	v.matches = nil
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}
	for _, lv := range v.viewers {
		if err := lv.load(ctx); err != nil {
			return nil, err
		}
		for i, s := range lv.summaries {
			if strings.Contains(strings.ToLower(s.text), needle) {
				v.matches = append(v.matches, Match{Type: lv.Trace().Type(), Index: i, Text: s.text})
			}
		}
	}
	return v.matches, nil
}

// Matches returns the results of the last search
func (v *SearchViewer) Matches() []Match { return v.matches }

// Select publishes the position of m
func (v *SearchViewer) Select(ctx context.Context, m Match) error {
	for _, lv := range v.viewers {
		if lv.Trace().Type() != m.Type {
			continue
		}
		e, ok := lv.Trace().Entry(m.Index)
		if !ok || v.emit == nil {
			return nil
		}
		return v.emit(ctx, events.PositionUpdateEvent{Position: trace.PositionFromEntry(e), UpdateTimeline: true})
	}
	return nil
}
