package events

import (
	"context"
	"errors"
	"testing"
)

func TestRouterRunsAllHandlersInOrder(t *testing.T) {
	var r Router
	var calls []string
	boom := errors.New("boom")

	On(&r, func(_ context.Context, e DarkModeToggledEvent) error {
		calls = append(calls, "first")
		return boom
	})
	r.Handle(DarkModeToggled, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	On(&r, func(context.Context, ResetRequestEvent) error {
		calls = append(calls, "reset")
		return nil
	})

	err := r.Dispatch(context.Background(), DarkModeToggledEvent{Dark: true})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("calls = %v", calls)
	}
	if r.Handled(TabSwitched) {
		t.Fatal("TabSwitched has no handler")
	}
}

func TestKindNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, k := range AllKinds {
		name := k.String()
		if name == "" || seen[name] {
			t.Fatalf("kind %d has missing or duplicate name %q", int(k), name)
		}
		seen[name] = true
	}
}
