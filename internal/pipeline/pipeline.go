// Package pipeline turns uploaded files into the loaded trace collection.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/TimelordUK/mtrace/internal/classify"
	"github.com/TimelordUK/mtrace/internal/consolidate"
	"github.com/TimelordUK/mtrace/internal/logging"
	"github.com/TimelordUK/mtrace/internal/notify"
	"github.com/TimelordUK/mtrace/internal/parsers"
	"github.com/TimelordUK/mtrace/internal/source"
	"github.com/TimelordUK/mtrace/internal/trace"
)

var (
	// ErrNoValidFiles is returned when a load produced no trace at all
	ErrNoValidFiles = errors.New("no valid trace files")
	// ErrNoCommonDomain is returned when the loaded traces share no timestamp domain
	ErrNoCommonDomain = errors.New("loaded traces share no timestamp domain")
)

// supersededByTransitions are dropped whenever a unified transitions trace is loaded
var supersededByTransitions = []trace.Type{trace.WmTransitions, trace.ShellTransitions}

// loaded pairs an accepted parser with the file it was read from. A rich
// bundle backs several parsers with one file.
type loaded struct {
	parser trace.Parser
	file   *source.File
	// rich is set for parses of the upload's rich bundle
	rich bool
}

func (l loaded) descriptor() string {
	return strings.Join(l.parser.Descriptors(), ", ")
}

// locationSetter is implemented by factories that interpret zone-less times
type locationSetter interface {
	SetLocation(*time.Location)
}

// Options configures a Pipeline
type Options struct {
	Factory parsers.Factory
	Logger  logrus.FieldLogger
	// MaxArchiveDepth bounds nested archive expansion
	MaxArchiveDepth int
	// Location is the display zone used until an upload declares one
	Location *time.Location
}

// Pipeline owns the parsed traces of a session until they are removed or
// cleared.
type Pipeline struct {
	factory  parsers.Factory
	log      logrus.FieldLogger
	maxDepth int
	location *time.Location

	loaded    map[trace.Type]loaded
	traces    *trace.Traces
	domain    trace.Domain
	converter *trace.Converter
	uploads   []*source.File
}

// New creates an empty pipeline
func New(opts Options) *Pipeline {
	if opts.Factory == nil {
		opts.Factory = parsers.NewRegistry(parsers.Options{Logger: opts.Logger, Location: opts.Location})
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.MaxArchiveDepth <= 0 {
		opts.MaxArchiveDepth = source.DefaultMaxDepth
	}
	p := &Pipeline{
		factory:  opts.Factory,
		log:      opts.Logger,
		maxDepth: opts.MaxArchiveDepth,
		location: opts.Location,
	}
	p.Clear()
	return p
}

// Traces returns the loaded collection
func (p *Pipeline) Traces() *trace.Traces {
	return p.traces
}

// Domain returns the common timestamp domain of the loaded collection
func (p *Pipeline) Domain() trace.Domain {
	return p.domain
}

// Converter returns the timestamp converter of the loaded collection
func (p *Pipeline) Converter() *trace.Converter {
	return p.converter
}

// Clear drops every loaded trace
func (p *Pipeline) Clear() {
	p.loaded = make(map[trace.Type]loaded)
	p.traces = trace.NewTraces()
	p.domain = trace.DomainPriority[0]
	p.converter = trace.NewConverter(p.location)
	p.uploads = nil
}

// Load parses files and merges the result into the loaded collection.
// Per-file problems are reported to sink; only a load that leaves nothing
// usable, or traces without a shared domain, fails. A failed load commits
// nothing.
func (p *Pipeline) Load(ctx context.Context, files []*source.File, sink notify.Sink, progress notify.ProgressListener) error {
	if sink == nil {
		sink = notify.Discard
	}
	if progress == nil {
		progress = notify.NopProgress
	}

	expander := source.NewExpander(sink, progress)
	expander.MaxDepth = p.maxDepth
	expanded, err := expander.Expand(ctx, files)
	if err != nil {
		return err
	}

	res := classify.Classify(expanded, sink)
	if res.Timezone != nil {
		if ls, ok := p.factory.(locationSetter); ok {
			ls.SetLocation(res.Timezone)
		}
	}

	ordered := res.Legacy
	if res.Rich != nil {
		ordered = append(ordered[:len(ordered):len(ordered)], res.Rich)
	}

	var legacy, rich []loaded
	for i, f := range ordered {
		progress.OnProgressUpdate(fmt.Sprintf("Parsing %s (%s)", f.Descriptor(), humanize.Bytes(uint64(f.Size()))), 100*float64(i)/float64(len(ordered)))

		ps, err := p.factory.Parse(ctx, f)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			reportParseFailure(sink, f, err)
			p.log.WithField("file", f.Descriptor()).WithError(err).Debug("file rejected")
			continue
		}
		for _, parser := range ps {
			l := loaded{parser: parser, file: f, rich: f == res.Rich}
			if l.rich {
				rich = append(rich, l)
			} else {
				legacy = append(legacy, l)
			}
		}
	}

	parsed := len(legacy) + len(rich)
	prior := p.priorLoads(len(rich) > 0)
	legacy = dropElapsedOnly(legacy, rich, sink)
	legacy = dropOldData(legacy, rich, prior, sink)

	batch := make(map[trace.Type]loaded)
	for _, l := range legacy {
		p.accept(batch, prior, l, sink)
	}
	for _, l := range rich {
		p.accept(batch, prior, l, sink)
	}

	if len(batch) == 0 {
		if parsed > 0 && len(p.loaded) > 0 {
			// every parse lost to traces already loaded
			p.log.Debug("load added no trace")
			return nil
		}
		sink.Warn(notify.NoValidFiles{})
		return ErrNoValidFiles
	}

	candidate := make(map[trace.Type]loaded, len(prior)+len(batch))
	for typ, l := range prior {
		candidate[typ] = l
	}
	for typ, l := range batch {
		candidate[typ] = l
	}
	if _, ok := candidate[trace.Transitions]; ok {
		for _, typ := range supersededByTransitions {
			if _, dropped := candidate[typ]; dropped {
				p.log.WithField("trace", typ).Debug("superseded by unified transitions trace")
				delete(candidate, typ)
			}
		}
	}

	domain, err := commonDomain(candidate)
	if err != nil {
		return err
	}

	traces := trace.NewTraces()
	for _, typ := range trace.Types() {
		l, ok := candidate[typ]
		if !ok {
			continue
		}
		err := addTrace(traces, l, domain)
		if err == nil {
			continue
		}
		sink.Warn(notify.NewParserError(notify.Corrupted, l.descriptor(), err))
		delete(candidate, typ)
		// keep the trace this parse was meant to replace
		if _, replaced := batch[typ]; !replaced {
			continue
		}
		if old, had := prior[typ]; had {
			if err := addTrace(traces, old, domain); err != nil {
				p.log.WithField("trace", typ).WithError(err).Debug("previous trace unusable")
				continue
			}
			candidate[typ] = old
		}
	}
	if traces.Len() == 0 {
		sink.Warn(notify.NoValidFiles{})
		return ErrNoValidFiles
	}

	p.loaded = candidate
	p.traces = traces
	p.domain = domain
	p.uploads = append(p.uploads, files...)
	p.configureConverter(res)

	p.log.WithFields(logrus.Fields{"traces": traces.Len(), "domain": domain}).Info("traces loaded")
	return nil
}

// priorLoads copies the parses kept from earlier loads. A new rich bundle
// replaces every previously loaded rich parse.
func (p *Pipeline) priorLoads(newRich bool) map[trace.Type]loaded {
	prior := make(map[trace.Type]loaded, len(p.loaded))
	for typ, l := range p.loaded {
		if newRich && l.rich {
			p.log.WithField("trace", typ).Debug("dropping parse of the previous rich bundle")
			continue
		}
		prior[typ] = l
	}
	return prior
}

func addTrace(traces *trace.Traces, l loaded, domain trace.Domain) error {
	tr, err := trace.FromParser(l.parser, domain)
	if err != nil {
		return err
	}
	return traces.Add(tr)
}

// accept applies the conflict policy for one candidate parse of this load.
// Rich parses win over legacy ones of the same type; screen captures are
// kept singly.
func (p *Pipeline) accept(batch, prior map[trace.Type]loaded, cand loaded, sink notify.Sink) {
	typ := cand.parser.TraceType()
	if isScreenCapture(typ) {
		acceptScreenCapture(batch, prior, cand, sink)
		return
	}

	current, inBatch := batch[typ]
	if !cand.rich {
		if r, ok := richParse(typ, batch, prior); ok {
			sink.Warn(superseded(cand, r))
			return
		}
	} else if inBatch && !current.rich {
		sink.Warn(superseded(current, cand))
		batch[typ] = cand
		return
	}

	if !inBatch {
		if old, ok := prior[typ]; ok {
			if cand.rich && !old.rich {
				sink.Warn(superseded(old, cand))
			} else {
				sink.Warn(overridden(old, cand))
			}
		}
		batch[typ] = cand
		return
	}
	acceptBySize(batch, cand, sink)
}

// acceptBySize keeps the parse with strictly more entries; ties keep the
// earlier one
func acceptBySize(batch map[trace.Type]loaded, cand loaded, sink notify.Sink) {
	typ := cand.parser.TraceType()
	current, inBatch := batch[typ]

	switch {
	case !inBatch:
		batch[typ] = cand
	case cand.parser.LengthEntries() > current.parser.LengthEntries():
		sink.Warn(overridden(current, cand))
		batch[typ] = cand
	default:
		// the incoming parse loses; it is the one reported
		sink.Warn(overridden(cand, current))
	}
}

func richParse(typ trace.Type, batch, prior map[trace.Type]loaded) (loaded, bool) {
	if l, ok := batch[typ]; ok && l.rich {
		return l, true
	}
	if l, ok := prior[typ]; ok && l.rich {
		return l, true
	}
	return loaded{}, false
}

func overridden(loser, winner loaded) notify.TraceOverridden {
	typ := loser.parser.TraceType()
	return notify.TraceOverridden{
		Descriptor: loser.descriptor(),
		Type:       &typ,
		Reason:     winner.descriptor(),
	}
}

func reportParseFailure(sink notify.Sink, f *source.File, err error) {
	var perr *notify.ParserError
	if !errors.As(err, &perr) {
		sink.Warn(notify.NewParserError(notify.Corrupted, f.Descriptor(), err))
		return
	}
	if perr.Kind == notify.UnsupportedFormat && perr.Err == nil {
		sink.Warn(notify.UnsupportedFile{Descriptor: perr.Descriptor})
		return
	}
	sink.Warn(perr)
}

// commonDomain returns the first domain of the priority list in which every
// parser has timestamps
func commonDomain(candidate map[trace.Type]loaded) (trace.Domain, error) {
	for _, d := range trace.DomainPriority {
		all := true
		for _, l := range candidate {
			if len(l.parser.Timestamps(d)) == 0 {
				all = false
				break
			}
		}
		if all {
			return d, nil
		}
	}

	var types []string
	for _, typ := range trace.Types() {
		if _, ok := candidate[typ]; ok {
			types = append(types, typ.String())
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNoCommonDomain, strings.Join(types, ", "))
}

func (p *Pipeline) configureConverter(res *classify.Result) {
	if res.Timezone != nil {
		p.converter.SetLocation(res.Timezone)
	}
	if res.HasOffset {
		p.converter.SetRealToElapsedOffset(res.RealToElapsedOffsetNs)
		return
	}
	for _, tr := range p.traces.All() {
		if src, ok := tr.Parser().(trace.OffsetSource); ok {
			if off, ok := src.RealToElapsedOffset(); ok {
				p.converter.SetRealToElapsedOffset(off)
				return
			}
		}
	}
}

// Build computes the frame mapping across the loaded traces
func (p *Pipeline) Build(ctx context.Context) (*trace.FrameMap, error) {
	return trace.BuildFrameMap(ctx, p.traces)
}

// FilterTracesWithoutVisualization removes traces that no viewer renders
func (p *Pipeline) FilterTracesWithoutVisualization() {
	for _, typ := range p.traces.Types() {
		if !typ.Info().Visualizable {
			p.log.WithField("trace", typ).Debug("removing trace without visualization")
			p.RemoveTrace(typ)
		}
	}
}

// RemoveTrace drops a loaded trace; it reports whether one was present
func (p *Pipeline) RemoveTrace(typ trace.Type) bool {
	if p.traces.Get(typ) == nil {
		return false
	}
	p.traces.Delete(typ)
	delete(p.loaded, typ)
	return true
}

// ScreenRecordingVideo returns the file backing the screen recording, if loaded
func (p *Pipeline) ScreenRecordingVideo() *source.File {
	if p.traces.Get(trace.ScreenRecording) == nil {
		return nil
	}
	return p.loaded[trace.ScreenRecording].file
}

// MakeArchive writes every file backing a loaded trace into a zip archive,
// under its trace type's directory. A file backing several traces is written
// once.
func (p *Pipeline) MakeArchive(ctx context.Context, w io.Writer) error {
	zw := consolidate.NewWriter(w)
	for _, typ := range p.traces.Types() {
		if err := ctx.Err(); err != nil {
			return err
		}
		l := p.loaded[typ]
		name, wrote, err := zw.Add(typ.Info().Dir, l.file)
		if err != nil {
			return err
		}
		if wrote {
			p.log.WithFields(logrus.Fields{"trace": typ, "file": name}).Debug("archived")
		}
	}
	return zw.Close()
}

// DownloadArchiveName derives the download file name from the upload
func (p *Pipeline) DownloadArchiveName() string {
	const fallback = "mtrace"
	if len(p.uploads) != 1 {
		return fallback + ".zip"
	}
	name := p.uploads[0].Base()
	for {
		ext := path.Ext(name)
		if ext == "" || ext == name {
			break
		}
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" {
		name = fallback
	}
	return name + ".zip"
}
