// Package events defines the closed set of events exchanged between the
// coordinator, the host and viewers.
package events

import (
	"github.com/TimelordUK/mtrace/internal/source"
	"github.com/TimelordUK/mtrace/internal/trace"
)

// Event is one member of the closed event set
type Event interface {
	Kind() Kind
	isEvent()
}

// AppInitializedEvent is sent once the host is ready to receive events
type AppInitializedEvent struct{}

func (AppInitializedEvent) Kind() Kind { return AppInitialized }
func (AppInitializedEvent) isEvent()   {}

// FilesUploadedEvent carries files picked by the user
type FilesUploadedEvent struct {
	Files []*source.File
}

func (FilesUploadedEvent) Kind() Kind { return FilesUploaded }
func (FilesUploadedEvent) isEvent()   {}

// FilesCollectedEvent carries files gathered by the collection UI; they
// are displayed as soon as they load
type FilesCollectedEvent struct {
	Files []*source.File
}

func (FilesCollectedEvent) Kind() Kind { return FilesCollected }
func (FilesCollectedEvent) isEvent()   {}

// ResetRequestEvent discards everything loaded
type ResetRequestEvent struct{}

func (ResetRequestEvent) Kind() Kind { return ResetRequest }
func (ResetRequestEvent) isEvent()   {}

// TraceViewRequestEvent asks to display the loaded traces
type TraceViewRequestEvent struct{}

func (TraceViewRequestEvent) Kind() Kind { return TraceViewRequest }
func (TraceViewRequestEvent) isEvent()   {}

// TraceRemoveRequestEvent drops one loaded trace before it is displayed
type TraceRemoveRequestEvent struct {
	Type trace.Type
}

func (TraceRemoveRequestEvent) Kind() Kind { return TraceRemoveRequest }
func (TraceRemoveRequestEvent) isEvent()   {}

// RemoteDownloadStartedEvent is sent by the bridge before it delivers files
type RemoteDownloadStartedEvent struct{}

func (RemoteDownloadStartedEvent) Kind() Kind { return RemoteDownloadStarted }
func (RemoteDownloadStartedEvent) isEvent()   {}

// RemoteFilesReceivedEvent carries files delivered by the bridge
type RemoteFilesReceivedEvent struct {
	Files []*source.File
}

func (RemoteFilesReceivedEvent) Kind() Kind { return RemoteFilesReceived }
func (RemoteFilesReceivedEvent) isEvent()   {}

// RemoteTimestampReceivedEvent carries a wall-clock timestamp from the bridge
type RemoteTimestampReceivedEvent struct {
	RealNs int64
}

func (RemoteTimestampReceivedEvent) Kind() Kind { return RemoteTimestampReceived }
func (RemoteTimestampReceivedEvent) isEvent()   {}

// TabSwitchRequestEvent asks the host to focus the tab showing Type
type TabSwitchRequestEvent struct {
	Type trace.Type
}

func (TabSwitchRequestEvent) Kind() Kind { return TabSwitchRequest }
func (TabSwitchRequestEvent) isEvent()   {}

// TabSwitchedEvent reports the view that now has focus
type TabSwitchedEvent struct {
	ViewID string
}

func (TabSwitchedEvent) Kind() Kind { return TabSwitched }
func (TabSwitchedEvent) isEvent()   {}

// PositionUpdateEvent moves the current position
type PositionUpdateEvent struct {
	Position *trace.Position
	// UpdateTimeline stores the position in the timeline as well
	UpdateTimeline bool
}

func (PositionUpdateEvent) Kind() Kind { return PositionUpdate }
func (PositionUpdateEvent) isEvent()   {}

// ActiveTraceChangedEvent reports the trace now driving the default position
type ActiveTraceChangedEvent struct {
	Trace *trace.Trace
}

func (ActiveTraceChangedEvent) Kind() Kind { return ActiveTraceChanged }
func (ActiveTraceChangedEvent) isEvent()   {}

// DarkModeToggledEvent switches the colour scheme
type DarkModeToggledEvent struct {
	Dark bool
}

func (DarkModeToggledEvent) Kind() Kind { return DarkModeToggled }
func (DarkModeToggledEvent) isEvent()   {}

// FilterPresetSaveEvent asks the viewer of Type to store its filter as Name
type FilterPresetSaveEvent struct {
	Type trace.Type
	Name string
}

func (FilterPresetSaveEvent) Kind() Kind { return FilterPresetSave }
func (FilterPresetSaveEvent) isEvent()   {}

// FilterPresetApplyEvent asks the viewer of Type to restore the filter Name
type FilterPresetApplyEvent struct {
	Type trace.Type
	Name string
}

func (FilterPresetApplyEvent) Kind() Kind { return FilterPresetApply }
func (FilterPresetApplyEvent) isEvent()   {}
