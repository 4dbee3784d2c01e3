package coordinator

import (
	"github.com/google/uuid"

	"github.com/TimelordUK/mtrace/internal/pipeline"
	"github.com/TimelordUK/mtrace/internal/timeline"
	"github.com/TimelordUK/mtrace/internal/viewer"
)

// Session owns the state of one load generation. A reset replaces the
// whole session; work still running against an old one has no effect.
type Session struct {
	id       string
	pipeline *pipeline.Pipeline
	timeline *timeline.Timeline
	viewers  []viewer.Viewer
}

func newSession(opts pipeline.Options) *Session {
	return &Session{
		id:       uuid.NewString(),
		pipeline: pipeline.New(opts),
		timeline: timeline.New(),
	}
}

// ID identifies the generation in logs
func (s *Session) ID() string { return s.id }

// Pipeline returns the ingestion pipeline
func (s *Session) Pipeline() *pipeline.Pipeline { return s.pipeline }

// Timeline returns the timeline state
func (s *Session) Timeline() *timeline.Timeline { return s.timeline }

// Viewers returns the viewers created for this session, nil before display
func (s *Session) Viewers() []viewer.Viewer { return s.viewers }
