// Package parsers holds the reference parser collaborators: JSON-lines traces
// and bundles, and plain text logs.
package parsers

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TimelordUK/mtrace/internal/classify"
	"github.com/TimelordUK/mtrace/internal/logging"
	"github.com/TimelordUK/mtrace/internal/notify"
	"github.com/TimelordUK/mtrace/internal/source"
	"github.com/TimelordUK/mtrace/internal/trace"
	"github.com/TimelordUK/mtrace/pkg/logformat"
)

// Factory turns one file into zero or more parsers. Failures are returned
// as *notify.ParserError.
type Factory interface {
	Parse(ctx context.Context, f *source.File) ([]trace.Parser, error)
}

var (
	jsonSuffixes = []string{".jsonl", ".winscope.json", ".json"}
	textSuffixes = []string{".log", ".txt"}
)

// Options configures a Registry
type Options struct {
	Patterns logformat.Patterns
	// Location interprets text log times without a zone
	Location *time.Location
	Logger   logrus.FieldLogger
}

// Registry dispatches files to the reference parsers by name and content
type Registry struct {
	levels   *logformat.LevelDetector
	location *time.Location
	log      logrus.FieldLogger
}

// NewRegistry creates a registry
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Registry{
		levels:   logformat.NewLevelDetector(opts.Patterns),
		location: opts.Location,
		log:      opts.Logger,
	}
}

// SetLocation changes the zone used for text logs, e.g. once a bug report
// declared one.
func (r *Registry) SetLocation(loc *time.Location) {
	if loc != nil {
		r.location = loc
	}
}

// Parse implements Factory
func (r *Registry) Parse(ctx context.Context, f *source.File) ([]trace.Parser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	desc := f.Descriptor()
	name := strings.ToLower(f.Path)
	data := f.Data

	if source.IsGzip(data) {
		plain, err := source.Gunzip(data)
		if err != nil {
			return nil, notify.NewParserError(notify.Corrupted, desc, err)
		}
		data = plain
		name = strings.TrimSuffix(name, ".gz")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, notify.NewParserError(notify.NoEntries, desc, nil)
	}

	log := r.log.WithField("file", desc)
	switch {
	case hasSuffix(name, jsonSuffixes) || isRich(name):
		log.Debug("parsing JSON-lines trace")
		return ParseJSONLines(ctx, data, desc)
	case hasSuffix(name, textSuffixes):
		log.Debug("parsing text log")
		p, err := ParseTextLog(ctx, data, desc, logformat.NewTimestampParser(r.location), r.levels)
		if err != nil {
			return nil, err
		}
		return []trace.Parser{p}, nil
	case bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")):
		log.Debug("sniffed JSON-lines content")
		return ParseJSONLines(ctx, data, desc)
	}
	return nil, notify.NewParserError(notify.UnsupportedFormat, desc, nil)
}

func hasSuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func isRich(name string) bool {
	return hasSuffix(name, classify.RichSuffixes)
}
