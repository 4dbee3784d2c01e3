package events

import (
	"context"
	"errors"
)

// Subscriber receives events
type Subscriber interface {
	OnEvent(ctx context.Context, e Event) error
}

// EmitFunc sends an event back into the coordinator
type EmitFunc func(ctx context.Context, e Event) error

// Emitter is implemented by components that raise events of their own
type Emitter interface {
	SetEmitEvent(emit EmitFunc)
}

// Handler processes one event
type Handler func(ctx context.Context, e Event) error

// Router runs every handler registered for an event's kind, in
// registration order. A failing handler does not stop the others.
type Router struct {
	handlers [numKinds][]Handler
}

// Handle registers h for events of kind k
func (r *Router) Handle(k Kind, h Handler) {
	r.handlers[k] = append(r.handlers[k], h)
}

// On registers a handler typed by its event struct
func On[E Event](r *Router, h func(ctx context.Context, e E) error) {
	var zero E
	r.Handle(zero.Kind(), func(ctx context.Context, e Event) error {
		return h(ctx, e.(E))
	})
}

// Handled reports whether any handler is registered for k
func (r *Router) Handled(k Kind) bool {
	return len(r.handlers[k]) > 0
}

// Dispatch delivers e to its handlers and joins their errors
func (r *Router) Dispatch(ctx context.Context, e Event) error {
	var errs []error
	for _, h := range r.handlers[e.Kind()] {
		if err := h(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
