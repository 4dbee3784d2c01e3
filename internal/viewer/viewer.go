// Package viewer defines the viewer contract and the default viewers.
package viewer

import (
	"github.com/TimelordUK/mtrace/internal/events"
	"github.com/TimelordUK/mtrace/internal/settings"
	"github.com/TimelordUK/mtrace/internal/trace"
)

// ViewKind is the visibility class of a view
type ViewKind int

const (
	// ViewTab is visible only while focused
	ViewTab ViewKind = iota
	// ViewOverlay is always visible
	ViewOverlay
	// ViewGlobalSearch searches every trace; it is visible while focused
	ViewGlobalSearch
)

func (k ViewKind) String() string {
	switch k {
	case ViewTab:
		return "tab"
	case ViewOverlay:
		return "overlay"
	case ViewGlobalSearch:
		return "global-search"
	default:
		return "unknown"
	}
}

// View is a named surface exposed by a viewer
type View struct {
	ID     string
	Title  string
	Kind   ViewKind
	Traces []trace.Type
}

// Viewer receives lifecycle and position events and exposes views
type Viewer interface {
	events.Subscriber
	Views() []*View
	// Dependencies lists the trace types the viewer displays
	Dependencies() []trace.Type
}

// Factory creates the viewers for a loaded collection. The result is
// deterministic for the same input.
type Factory interface {
	CreateViewers(traces *trace.Traces, store settings.Store) []Viewer
}

// PresetKey is the settings key under which a filter preset is stored
func PresetKey(name string) string {
	return "filter-preset." + name
}
