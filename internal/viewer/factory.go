package viewer

import (
	"github.com/sirupsen/logrus"

	"github.com/TimelordUK/mtrace/internal/logging"
	"github.com/TimelordUK/mtrace/internal/settings"
	"github.com/TimelordUK/mtrace/internal/trace"
)

// FactoryOptions configures the default factory
type FactoryOptions struct {
	// Converter returns the converter used to format timestamps
	Converter func() *trace.Converter
	// Search adds a global search viewer when more than one trace is shown
	Search bool
	Logger *logrus.Logger
}

// DefaultFactory creates one list viewer per visualizable trace, an
// overlay for the screen recording and optionally a search viewer
type DefaultFactory struct {
	opts FactoryOptions
}

var _ Factory = (*DefaultFactory)(nil)

// NewFactory creates the default viewer factory
func NewFactory(opts FactoryOptions) *DefaultFactory {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &DefaultFactory{opts: opts}
}

// CreateViewers implements Factory
func (f *DefaultFactory) CreateViewers(traces *trace.Traces, store settings.Store) []Viewer {
	format := func(ts trace.Timestamp) string {
		if f.opts.Converter != nil {
			if c := f.opts.Converter(); c != nil {
				return c.Format(ts)
			}
		}
		return ts.String()
	}

	var (
		viewers []Viewer
		lists   []*LogViewer
		overlay Viewer
	)
	for _, tr := range traces.All() {
		switch {
		case tr.Type() == trace.ScreenRecording:
			overlay = NewRecordingViewer(tr, format)
		case tr.Type().Info().Visualizable:
			lv := NewLogViewer(tr, store, format, f.opts.Logger)
			lists = append(lists, lv)
			viewers = append(viewers, lv)
		}
	}
	if overlay != nil {
		viewers = append(viewers, overlay)
	}
	if f.opts.Search && len(lists) > 1 {
		viewers = append(viewers, NewSearchViewer(lists))
	}
	return viewers
}
