package trace

import (
	"errors"
	"fmt"
	"time"
)

// Domain is the clock a timestamp was taken from
type Domain int

const (
	// DomainReal is wall-clock time, nanoseconds since the Unix epoch
	DomainReal Domain = iota
	// DomainElapsed is time since boot
	DomainElapsed
)

// DomainPriority is the order in which a common domain is picked for a collection
var DomainPriority = []Domain{DomainReal, DomainElapsed}

func (d Domain) String() string {
	switch d {
	case DomainReal:
		return "real"
	case DomainElapsed:
		return "elapsed"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

// InvalidNs marks an entry without a usable timestamp (e.g. a dump)
const InvalidNs int64 = 0

// Timestamp is a nanosecond value tagged with its domain
type Timestamp struct {
	Domain Domain
	Ns     int64
}

// NewTimestamp creates a timestamp in domain d
func NewTimestamp(d Domain, ns int64) Timestamp {
	return Timestamp{Domain: d, Ns: ns}
}

// Valid reports whether the timestamp carries a real value
func (t Timestamp) Valid() bool {
	return t.Ns != InvalidNs
}

// Compare returns -1, 0 or +1. Timestamps of different domains are not comparable.
func (t Timestamp) Compare(o Timestamp) int {
	switch {
	case t.Ns < o.Ns:
		return -1
	case t.Ns > o.Ns:
		return 1
	default:
		return 0
	}
}

// Before reports whether t is strictly earlier than o
func (t Timestamp) Before(o Timestamp) bool {
	return t.Ns < o.Ns
}

// Add returns t shifted by d nanoseconds
func (t Timestamp) Add(ns int64) Timestamp {
	return Timestamp{Domain: t.Domain, Ns: t.Ns + ns}
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%s:%d", t.Domain, t.Ns)
}

// ErrNoOffset is returned when converting between domains without a known offset
var ErrNoOffset = errors.New("real-to-elapsed offset unknown")

// Converter translates and formats timestamps for one loaded collection
type Converter struct {
	location  *time.Location
	offsetNs  int64 // real = elapsed + offset
	hasOffset bool
}

// NewConverter creates a converter that renders real timestamps in loc (UTC when nil)
func NewConverter(loc *time.Location) *Converter {
	if loc == nil {
		loc = time.UTC
	}
	return &Converter{location: loc}
}

// SetLocation changes the display timezone
func (c *Converter) SetLocation(loc *time.Location) {
	if loc != nil {
		c.location = loc
	}
}

// Location returns the display timezone
func (c *Converter) Location() *time.Location {
	return c.location
}

// SetRealToElapsedOffset records that real = elapsed + ns
func (c *Converter) SetRealToElapsedOffset(ns int64) {
	c.offsetNs = ns
	c.hasOffset = true
}

// RealToElapsedOffset returns the recorded offset, if any
func (c *Converter) RealToElapsedOffset() (int64, bool) {
	return c.offsetNs, c.hasOffset
}

// FromRealNs converts a wall-clock timestamp into domain d
func (c *Converter) FromRealNs(d Domain, ns int64) (Timestamp, error) {
	switch d {
	case DomainReal:
		return NewTimestamp(DomainReal, ns), nil
	case DomainElapsed:
		if !c.hasOffset {
			return Timestamp{}, ErrNoOffset
		}
		return NewTimestamp(DomainElapsed, ns-c.offsetNs), nil
	default:
		return Timestamp{}, fmt.Errorf("unsupported timestamp domain %s", d)
	}
}

// ToRealNs converts ts into wall-clock nanoseconds
func (c *Converter) ToRealNs(ts Timestamp) (int64, error) {
	switch ts.Domain {
	case DomainReal:
		return ts.Ns, nil
	case DomainElapsed:
		if !c.hasOffset {
			return 0, ErrNoOffset
		}
		return ts.Ns + c.offsetNs, nil
	default:
		return 0, fmt.Errorf("unsupported timestamp domain %s", ts.Domain)
	}
}

// Format renders ts for display
func (c *Converter) Format(ts Timestamp) string {
	if !ts.Valid() {
		return "--"
	}
	if ts.Domain == DomainReal {
		return time.Unix(0, ts.Ns).In(c.location).Format("2006-01-02 15:04:05.000000000")
	}
	return FormatElapsed(ts.Ns)
}

// FormatElapsed renders a boot-relative value like 1d2h3m4s567ms
func FormatElapsed(ns int64) string {
	if ns == 0 {
		return "0ms"
	}
	neg := ns < 0
	if neg {
		ns = -ns
	}
	units := []struct {
		suffix string
		size   int64
	}{
		{"d", int64(24 * time.Hour)},
		{"h", int64(time.Hour)},
		{"m", int64(time.Minute)},
		{"s", int64(time.Second)},
		{"ms", int64(time.Millisecond)},
	}
	out := ""
	for _, u := range units {
		if ns >= u.size {
			out += fmt.Sprintf("%d%s", ns/u.size, u.suffix)
			ns %= u.size
		}
	}
	if ns > 0 || out == "" {
		out += fmt.Sprintf("%dns", ns)
	}
	if neg {
		return "-" + out
	}
	return out
}
