package coordinator

import (
	"context"

	"github.com/TimelordUK/mtrace/internal/notify"
	"github.com/TimelordUK/mtrace/internal/viewer"
)

// Host is the application that renders viewers
type Host interface {
	OnViewersLoaded(ctx context.Context, viewers []viewer.Viewer)
	OnViewersUnloaded(ctx context.Context)
}

// UserNotifier receives the warnings of one dispatch at once
type UserNotifier interface {
	Notify(warnings []notify.Warning)
}

// NotifierFunc adapts a function to UserNotifier
type NotifierFunc func([]notify.Warning)

// Notify implements UserNotifier
func (f NotifierFunc) Notify(ws []notify.Warning) { f(ws) }

type nopHost struct{}

func (nopHost) OnViewersLoaded(context.Context, []viewer.Viewer) {}

func (nopHost) OnViewersUnloaded(context.Context) {}

type nopNotifier struct{}

func (nopNotifier) Notify([]notify.Warning) {}
