package logformat

import (
	"regexp"
	"strconv"
	"time"
)

// TimestampParser detects and parses timestamps from log lines
type TimestampParser struct {
	patterns []timestampPattern
	loc      *time.Location
	// ref supplies the date or year for formats that omit them
	ref time.Time
}

type timestampPattern struct {
	regex   *regexp.Regexp
	layouts []string
	// fill completes a partially specified time using the reference time
	fill func(t, ref time.Time, loc *time.Location) time.Time
}

const (
	layoutUnix   = "unix"
	layoutUnixMs = "unix_ms"
)

func withYear(t, ref time.Time, loc *time.Location) time.Time {
	return time.Date(ref.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func withDate(t, ref time.Time, loc *time.Location) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// NewTimestampParser creates a parser with common timestamp formats. Times
// without a zone are interpreted in loc; nil means UTC.
func NewTimestampParser(loc *time.Location) *TimestampParser {
	if loc == nil {
		loc = time.UTC
	}
	return &TimestampParser{
		loc: loc,
		ref: time.Now().In(loc),
		patterns: []timestampPattern{
			// 2024-01-15T10:30:45.123456789Z
			{
				regex:   regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2}))`),
				layouts: []string{time.RFC3339Nano},
			},
			// [2024-01-15 10:30:45.123]
			{
				regex:   regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d+)?)\]`),
				layouts: []string{"2006-01-02 15:04:05.999999999"},
			},
			// 2024-01-15 10:30:45.123
			{
				regex:   regexp.MustCompile(`(\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}(?:\.\d+)?)`),
				layouts: []string{"2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05.999999999"},
			},
			// logcat threadtime: 01-15 10:30:45.123
			{
				regex:   regexp.MustCompile(`^(\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d+)`),
				layouts: []string{"01-02 15:04:05.999999999"},
				fill:    withYear,
			},
			// Jan 15 10:30:45
			{
				regex:   regexp.MustCompile(`([A-Z][a-z]{2} +\d{1,2} \d{2}:\d{2}:\d{2})`),
				layouts: []string{"Jan 2 15:04:05", "Jan  2 15:04:05"},
				fill:    withYear,
			},
			// 15/Jan/2024:10:30:45 +0000
			{
				regex:   regexp.MustCompile(`(\d{2}/[A-Z][a-z]{2}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4})`),
				layouts: []string{"02/Jan/2006:15:04:05 -0700"},
			},
			{
				regex:   regexp.MustCompile(`^(\d{13})(?:\D|$)`),
				layouts: []string{layoutUnixMs},
			},
			{
				regex:   regexp.MustCompile(`^(\d{10})(?:\D|$)`),
				layouts: []string{layoutUnix},
			},
			// 10:30:45.123
			{
				regex:   regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}(?:\.\d+)?)`),
				layouts: []string{"15:04:05.999999999"},
				fill:    withDate,
			},
		},
	}
}

// SetReference sets the time that supplies omitted years and dates
func (p *TimestampParser) SetReference(ref time.Time) {
	p.ref = ref.In(p.loc)
}

// Parse extracts the first recognised timestamp of a log line
func (p *TimestampParser) Parse(content []byte) (time.Time, bool) {
	line := string(content)

	for _, pattern := range p.patterns {
		matches := pattern.regex.FindStringSubmatch(line)
		if len(matches) < 2 {
			continue
		}
		value := matches[1]

		for _, layout := range pattern.layouts {
			switch layout {
			case layoutUnix, layoutUnixMs:
				n, err := strconv.ParseInt(value, 10, 64)
				if err != nil {
					continue
				}
				if layout == layoutUnix {
					return time.Unix(n, 0).In(p.loc), true
				}
				return time.UnixMilli(n).In(p.loc), true
			}

			t, err := time.ParseInLocation(layout, value, p.loc)
			if err != nil {
				continue
			}
			if pattern.fill != nil {
				t = pattern.fill(t, p.ref, p.loc)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// FormatTime formats a timestamp for display
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04:05.000")
}

// FormatTimeWithDate formats a timestamp with date for display
func FormatTimeWithDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05.000")
}
