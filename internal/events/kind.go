package events

// Kind tags every event of the closed event set
type Kind int

const (
	AppInitialized Kind = iota
	FilesUploaded
	FilesCollected
	ResetRequest
	TraceViewRequest
	TraceRemoveRequest
	RemoteDownloadStarted
	RemoteFilesReceived
	RemoteTimestampReceived
	TabSwitchRequest
	TabSwitched
	PositionUpdate
	ActiveTraceChanged
	DarkModeToggled
	FilterPresetSave
	FilterPresetApply

	numKinds
)

// AllKinds lists every kind. Adding a kind without listing it here fails
// to compile.
var AllKinds = [...]Kind{
	AppInitialized,
	FilesUploaded,
	FilesCollected,
	ResetRequest,
	TraceViewRequest,
	TraceRemoveRequest,
	RemoteDownloadStarted,
	RemoteFilesReceived,
	RemoteTimestampReceived,
	TabSwitchRequest,
	TabSwitched,
	PositionUpdate,
	ActiveTraceChanged,
	DarkModeToggled,
	FilterPresetSave,
	FilterPresetApply,
}

var _ [numKinds]struct{} = [len(AllKinds)]struct{}{}

var kindNames = [numKinds]string{
	AppInitialized:          "AppInitialized",
	FilesUploaded:           "FilesUploaded",
	FilesCollected:          "FilesCollected",
	ResetRequest:            "ResetRequest",
	TraceViewRequest:        "TraceViewRequest",
	TraceRemoveRequest:      "TraceRemoveRequest",
	RemoteDownloadStarted:   "RemoteDownloadStarted",
	RemoteFilesReceived:     "RemoteFilesReceived",
	RemoteTimestampReceived: "RemoteTimestampReceived",
	TabSwitchRequest:        "TabSwitchRequest",
	TabSwitched:             "TabSwitched",
	PositionUpdate:          "PositionUpdate",
	ActiveTraceChanged:      "ActiveTraceChanged",
	DarkModeToggled:         "DarkModeToggled",
	FilterPresetSave:        "FilterPresetSave",
	FilterPresetApply:       "FilterPresetApply",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "Kind(?)"
	}
	return kindNames[k]
}
