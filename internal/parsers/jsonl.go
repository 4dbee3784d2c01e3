package parsers

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/TimelordUK/mtrace/internal/index"
	"github.com/TimelordUK/mtrace/internal/notify"
	"github.com/TimelordUK/mtrace/internal/trace"
)

// JSONValue is the materialised value of a JSON-lines entry
type JSONValue struct {
	Raw string
}

// Get returns the value at a gjson path
func (v JSONValue) Get(path string) gjson.Result {
	return gjson.Get(v.Raw, path)
}

// JSON returns the raw JSON document
func (v JSONValue) JSON() string {
	return v.Raw
}

func (v JSONValue) String() string {
	return v.Raw
}

type jsonEntry struct {
	real       int64
	elapsed    int64
	hasReal    bool
	hasElapsed bool
	frame      int64
	value      string
}

// JSONParser serves one trace type read from a JSON-lines document
type JSONParser struct {
	typ        trace.Type
	descriptor string
	entries    []jsonEntry

	offset    int64
	hasOffset bool

	real    []trace.Timestamp
	elapsed []trace.Timestamp
}

// framedJSONParser additionally reports per-entry frame numbers
type framedJSONParser struct {
	*JSONParser
}

func (p framedJSONParser) FrameNumbers(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frames := make([]int64, len(p.entries))
	for i, e := range p.entries {
		frames[i] = e.frame
	}
	return frames, nil
}

func (p *JSONParser) TraceType() trace.Type { return p.typ }

func (p *JSONParser) LengthEntries() int { return len(p.entries) }

func (p *JSONParser) Descriptors() []string { return []string{p.descriptor} }

func (p *JSONParser) Timestamps(d trace.Domain) []trace.Timestamp {
	switch d {
	case trace.DomainReal:
		return p.real
	case trace.DomainElapsed:
		return p.elapsed
	}
	return nil
}

func (p *JSONParser) Entry(ctx context.Context, i int) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(p.entries) {
		return nil, fmt.Errorf("entry %d out of range [0,%d)", i, len(p.entries))
	}
	return JSONValue{Raw: p.entries[i].value}, nil
}

// RealToElapsedOffset returns the offset declared in the document header
func (p *JSONParser) RealToElapsedOffset() (int64, bool) {
	return p.offset, p.hasOffset
}

type jsonHeader struct {
	typ        trace.Type
	hasType    bool
	descriptor string
	offset     int64
	hasOffset  bool
}

// ParseJSONLines reads a JSON-lines trace document and returns one parser per
// trace type it contains, in order of first appearance.
func ParseJSONLines(ctx context.Context, data []byte, descriptor string) ([]trace.Parser, error) {
	idx := index.BuildLineIndex(data)

	var header jsonHeader
	byType := make(map[trace.Type]*JSONParser)
	var order []trace.Type
	hasFrames := make(map[trace.Type]bool)

	for i := 0; i < idx.LineCount(); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := bytes.TrimSpace(idx.GetLine(i))
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			return nil, notify.NewParserError(notify.Corrupted, descriptor, fmt.Errorf("line %d: invalid JSON", i+1))
		}
		res := gjson.ParseBytes(line)

		if h := res.Get("header"); h.Exists() {
			if err := header.read(h); err != nil {
				return nil, notify.NewParserError(notify.Corrupted, descriptor, fmt.Errorf("line %d: %w", i+1, err))
			}
			continue
		}

		typ := header.typ
		if t := res.Get("type"); t.Exists() {
			parsed, ok := trace.ParseType(t.String())
			if !ok {
				return nil, notify.NewParserError(notify.UnsupportedFormat, descriptor, fmt.Errorf("line %d: unknown trace type %q", i+1, t.String()))
			}
			typ = parsed
		} else if !header.hasType {
			return nil, notify.NewParserError(notify.Corrupted, descriptor, fmt.Errorf("line %d: entry has no trace type", i+1))
		}

		p, ok := byType[typ]
		if !ok {
			name := descriptor
			if header.descriptor != "" {
				name = header.descriptor
			}
			p = &JSONParser{typ: typ, descriptor: name}
			byType[typ] = p
			order = append(order, typ)
		}

		e := jsonEntry{frame: -1, value: res.Get("value").Raw}
		if v := res.Get("real"); v.Exists() {
			e.real, e.hasReal = v.Int(), true
		}
		if v := res.Get("elapsed"); v.Exists() {
			e.elapsed, e.hasElapsed = v.Int(), true
		}
		if v := res.Get("frame"); v.Exists() {
			e.frame = v.Int()
			hasFrames[typ] = true
		}
		if e.value == "" {
			e.value = "{}"
		}
		p.entries = append(p.entries, e)
	}

	if len(order) == 0 {
		return nil, notify.NewParserError(notify.NoEntries, descriptor, nil)
	}

	parsers := make([]trace.Parser, 0, len(order))
	for _, typ := range order {
		p := byType[typ]
		p.offset, p.hasOffset = header.offset, header.hasOffset
		if err := p.buildTimestamps(); err != nil {
			return nil, notify.NewParserError(notify.Corrupted, descriptor, err)
		}
		if hasFrames[typ] {
			parsers = append(parsers, framedJSONParser{p})
		} else {
			parsers = append(parsers, p)
		}
	}
	return parsers, nil
}

func (h *jsonHeader) read(r gjson.Result) error {
	if t := r.Get("type"); t.Exists() {
		typ, ok := trace.ParseType(t.String())
		if !ok {
			return fmt.Errorf("unknown trace type %q in header", t.String())
		}
		h.typ, h.hasType = typ, true
	}
	h.descriptor = r.Get("descriptor").String()
	if o := r.Get("realToElapsedOffset"); o.Exists() {
		h.offset, h.hasOffset = o.Int(), true
	}
	return nil
}

// buildTimestamps fills each domain in which every entry has a timestamp.
// The real domain is derived from elapsed timestamps when only the header
// offset is known.
func (p *JSONParser) buildTimestamps() error {
	allReal, allElapsed := true, true
	for _, e := range p.entries {
		allReal = allReal && e.hasReal
		allElapsed = allElapsed && e.hasElapsed
	}

	if allElapsed {
		p.elapsed = make([]trace.Timestamp, len(p.entries))
		for i, e := range p.entries {
			p.elapsed[i] = trace.NewTimestamp(trace.DomainElapsed, e.elapsed)
		}
		if err := checkOrdered(p.elapsed); err != nil {
			return err
		}
	}

	switch {
	case allReal:
		p.real = make([]trace.Timestamp, len(p.entries))
		for i, e := range p.entries {
			p.real[i] = trace.NewTimestamp(trace.DomainReal, e.real)
		}
	case allElapsed && p.hasOffset:
		p.real = make([]trace.Timestamp, len(p.entries))
		for i, e := range p.entries {
			ns := trace.InvalidNs
			if e.elapsed != trace.InvalidNs {
				ns = e.elapsed + p.offset
			}
			p.real[i] = trace.NewTimestamp(trace.DomainReal, ns)
		}
	}
	if p.real != nil {
		if err := checkOrdered(p.real); err != nil {
			return err
		}
	}
	return nil
}

func checkOrdered(ts []trace.Timestamp) error {
	for i := 1; i < len(ts); i++ {
		if ts[i].Ns < ts[i-1].Ns {
			return fmt.Errorf("%s timestamps decrease at entry %d", ts[i].Domain, i)
		}
	}
	return nil
}
