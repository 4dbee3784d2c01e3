package logformat

import "strings"

// Level is the severity detected on a log line
type Level int

const (
	LevelUnknown Level = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"unknown", "trace", "debug", "info", "warn", "error", "fatal"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// severityOrder is the detection order, most severe first
var severityOrder = []Level{LevelFatal, LevelError, LevelWarn, LevelInfo, LevelDebug, LevelTrace}

// Patterns maps each level to the substrings that identify it
type Patterns map[Level][]string

// DefaultPatterns recognises bracketed tags, plain words and logcat priorities
func DefaultPatterns() Patterns {
	return Patterns{
		LevelTrace: {"[TRC]", "[TRACE]", "TRACE", " V "},
		LevelDebug: {"[DBG]", "[DEBUG]", "DEBUG", " D "},
		LevelInfo:  {"[INF]", "[INFO]", "INFO", " I "},
		LevelWarn:  {"[WRN]", "[WARN]", "[WARNING]", "WARN", " W "},
		LevelError: {"[ERR]", "[ERROR]", "ERROR", " E "},
		LevelFatal: {"[FTL]", "[FATAL]", "FATAL", "CRITICAL", " F "},
	}
}

// LevelDetector detects log levels from line content
type LevelDetector struct {
	patterns Patterns
}

// NewLevelDetector creates a detector; nil patterns means DefaultPatterns
func NewLevelDetector(patterns Patterns) *LevelDetector {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	return &LevelDetector{patterns: patterns}
}

// Detect returns the most severe level whose pattern occurs in content
func (d *LevelDetector) Detect(content []byte) Level {
	line := string(content)
	for _, level := range severityOrder {
		for _, pattern := range d.patterns[level] {
			if strings.Contains(line, pattern) {
				return level
			}
		}
	}
	return LevelUnknown
}
