// Package notify carries user-visible warnings from the engine to whoever
// displays them. Components receive a Sink explicitly; nothing is global.
package notify

import "sync"

// Warning is a user-visible, non-fatal problem
type Warning interface {
	Message() string
}

// Sink receives warnings
type Sink interface {
	Warn(w Warning)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Warning)

// Warn implements Sink
func (f SinkFunc) Warn(w Warning) { f(w) }

// Discard drops every warning
var Discard Sink = SinkFunc(func(Warning) {})

// Collector accumulates warnings for one operation until flushed
type Collector struct {
	mu       sync.Mutex
	warnings []Warning
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

// Warn implements Sink
func (c *Collector) Warn(w Warning) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, w)
}

// Warnings returns the collected warnings without clearing them
func (c *Collector) Warnings() []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Warning, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Flush returns the collected warnings and clears the collector
func (c *Collector) Flush() []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.warnings
	c.warnings = nil
	return out
}

// Len returns the number of pending warnings
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.warnings)
}

// ProgressListener follows a long-running operation.
// A negative percent means the progress is indeterminate.
type ProgressListener interface {
	OnProgressUpdate(message string, percent float64)
	OnOperationFinished(success bool)
}

type nopProgress struct{}

func (nopProgress) OnProgressUpdate(string, float64) {}
func (nopProgress) OnOperationFinished(bool)         {}

// NopProgress ignores all progress reports
var NopProgress ProgressListener = nopProgress{}
