package trace

import (
	"errors"
	"fmt"
)

// ErrDuplicateType is returned when a collection already holds a trace of the same type
var ErrDuplicateType = errors.New("trace type already present")

// Traces holds at most one trace per type
type Traces struct {
	byType   map[Type]*Trace
	frameMap *FrameMap
}

// NewTraces creates an empty collection
func NewTraces() *Traces {
	return &Traces{byType: make(map[Type]*Trace)}
}

// Add inserts tr, rejecting a second trace of the same type
func (c *Traces) Add(tr *Trace) error {
	if _, ok := c.byType[tr.Type()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, tr.Type())
	}
	c.byType[tr.Type()] = tr
	c.frameMap = nil
	return nil
}

// Get returns the trace of type t, or nil
func (c *Traces) Get(t Type) *Trace {
	return c.byType[t]
}

// Delete removes the trace of type t
func (c *Traces) Delete(t Type) {
	if _, ok := c.byType[t]; !ok {
		return
	}
	delete(c.byType, t)
	c.frameMap = nil
}

// Len returns the number of traces
func (c *Traces) Len() int {
	return len(c.byType)
}

// Types returns the contained types in enumeration order
func (c *Traces) Types() []Type {
	var types []Type
	for _, t := range Types() {
		if _, ok := c.byType[t]; ok {
			types = append(types, t)
		}
	}
	return types
}

// All returns the contained traces in type order
func (c *Traces) All() []*Trace {
	types := c.Types()
	out := make([]*Trace, 0, len(types))
	for _, t := range types {
		out = append(out, c.byType[t])
	}
	return out
}

// Each calls fn for every trace in type order
func (c *Traces) Each(fn func(*Trace)) {
	for _, tr := range c.All() {
		fn(tr)
	}
}

// Contains reports whether tr is a member of the collection
func (c *Traces) Contains(tr *Trace) bool {
	return tr != nil && c.byType[tr.Type()] == tr
}

// FrameMap returns the frame correlation computed for the current members, if any
func (c *Traces) FrameMap() *FrameMap {
	return c.frameMap
}
