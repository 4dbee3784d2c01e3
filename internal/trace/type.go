package trace

import "strings"

// Type identifies which subsystem a trace was recorded from
type Type int

const (
	SurfaceFlinger Type = iota
	WindowManager
	Transactions
	ProtoLog
	InputMethodClients
	InputMethodManagerService
	InputMethodService
	ViewCapture
	Transitions
	WmTransitions
	ShellTransitions
	EventLog
	InputEvents
	CUJs
	ScreenRecording
	Screenshot

	numTypes
)

// Info describes static properties of a trace type
type Info struct {
	Name string
	Key  string // identifier used in trace files
	// Dir is the target directory inside a download archive
	Dir string
	// Visualizable is false for traces that no viewer renders on its own
	Visualizable bool
}

var infos = [numTypes]Info{
	SurfaceFlinger:            {Name: "Surface Flinger", Key: "surface_flinger", Dir: "sf", Visualizable: true},
	WindowManager:             {Name: "Window Manager", Key: "window_manager", Dir: "wm", Visualizable: true},
	Transactions:              {Name: "Transactions", Key: "transactions", Dir: "sf", Visualizable: true},
	ProtoLog:                  {Name: "ProtoLog", Key: "protolog", Dir: "protolog", Visualizable: true},
	InputMethodClients:        {Name: "IME Clients", Key: "ime_clients", Dir: "ime", Visualizable: true},
	InputMethodManagerService: {Name: "IME Manager Service", Key: "ime_manager_service", Dir: "ime", Visualizable: true},
	InputMethodService:        {Name: "IME Service", Key: "ime_service", Dir: "ime", Visualizable: true},
	ViewCapture:               {Name: "View Capture", Key: "view_capture", Dir: "vc", Visualizable: true},
	Transitions:               {Name: "Transitions", Key: "transitions", Dir: "transitions", Visualizable: true},
	WmTransitions:             {Name: "WM Transitions", Key: "wm_transitions", Dir: "transitions", Visualizable: false},
	ShellTransitions:          {Name: "Shell Transitions", Key: "shell_transitions", Dir: "transitions", Visualizable: false},
	EventLog:                  {Name: "Event Log", Key: "eventlog", Dir: "eventlog", Visualizable: true},
	InputEvents:               {Name: "Input", Key: "input", Dir: "input", Visualizable: true},
	CUJs:                      {Name: "CUJs", Key: "cujs", Dir: "eventlog", Visualizable: true},
	ScreenRecording:           {Name: "Screen Recording", Key: "screen_recording", Dir: "screen_recording", Visualizable: true},
	Screenshot:                {Name: "Screenshot", Key: "screenshot", Dir: "screenshot", Visualizable: true},
}

// Types returns every trace type in enumeration order
func Types() []Type {
	types := make([]Type, 0, numTypes)
	for t := Type(0); t < numTypes; t++ {
		types = append(types, t)
	}
	return types
}

// Valid reports whether t is a known trace type
func (t Type) Valid() bool {
	return t >= 0 && t < numTypes
}

// Info returns the static description of t
func (t Type) Info() Info {
	if !t.Valid() {
		return Info{Name: "Unknown", Key: "unknown", Dir: "unknown"}
	}
	return infos[t]
}

func (t Type) String() string {
	return t.Info().Name
}

// ParseType resolves a trace file key such as "window_manager"
func ParseType(key string) (Type, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for t := Type(0); t < numTypes; t++ {
		if infos[t].Key == key {
			return t, true
		}
	}
	return 0, false
}
