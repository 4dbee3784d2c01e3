package viewer

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/TimelordUK/mtrace/pkg/logformat"
)

// summaryFunc returns the display text and level of entry i
type summaryFunc func(i int) (string, logformat.Level)

// Filter selects the entries of one trace by level and text
type Filter struct {
	count   int
	summary summaryFunc

	// Level filter: if set, only show entries with these levels
	levels map[logformat.Level]bool
	// Text filter: case-insensitive substring match
	text string

	// Cached filtered indices (entry indices that pass the filter)
	indices []int
	dirty   bool
}

// NewFilter creates a filter over count entries
func NewFilter(count int, summary summaryFunc) *Filter {
	return &Filter{
		count:   count,
		summary: summary,
		levels:  make(map[logformat.Level]bool),
		dirty:   true,
	}
}

// ToggleLevel toggles a level in the filter
func (f *Filter) ToggleLevel(level logformat.Level) {
	if f.levels[level] {
		delete(f.levels, level)
	} else {
		f.levels[level] = true
	}
	f.dirty = true
}

// SetLevelAndAbove shows this level and every more severe one
func (f *Filter) SetLevelAndAbove(level logformat.Level) {
	f.levels = make(map[logformat.Level]bool)
	for l := level; l <= logformat.LevelFatal; l++ {
		if l != logformat.LevelUnknown {
			f.levels[l] = true
		}
	}
	f.dirty = true
}

// SetTextFilter sets the text substring filter
func (f *Filter) SetTextFilter(text string) {
	f.text = text
	f.dirty = true
}

// TextFilter returns the current text filter
func (f *Filter) TextFilter() string {
	return f.text
}

// Clear removes every filter
func (f *Filter) Clear() {
	f.levels = make(map[logformat.Level]bool)
	f.text = ""
	f.dirty = true
}

// IsFiltered returns true if any filter is active
func (f *Filter) IsFiltered() bool {
	return len(f.levels) > 0 || f.text != ""
}

// MarkDirty forces the index to be rebuilt
func (f *Filter) MarkDirty() {
	f.dirty = true
}

func (f *Filter) rebuildIndex() {
	if !f.dirty {
		return
	}
	f.dirty = false
	f.indices = nil
	if !f.IsFiltered() {
		return
	}

	needle := strings.ToLower(f.text)
	for i := 0; i < f.count; i++ {
		text, level := f.summary(i)
		if needle != "" && !strings.Contains(strings.ToLower(text), needle) {
			continue
		}
		if len(f.levels) > 0 && !f.levels[level] {
			continue
		}
		f.indices = append(f.indices, i)
	}
}

// Count returns the number of entries that pass
func (f *Filter) Count() int {
	f.rebuildIndex()
	if !f.IsFiltered() {
		return f.count
	}
	return len(f.indices)
}

// EntryIndex maps a filtered row to its entry index
func (f *Filter) EntryIndex(row int) int {
	f.rebuildIndex()
	if !f.IsFiltered() {
		return row
	}
	if row < 0 || row >= len(f.indices) {
		return -1
	}
	return f.indices[row]
}

// Row maps an entry index to the last filtered row at or before it, -1 if none
func (f *Filter) Row(entry int) int {
	f.rebuildIndex()
	if !f.IsFiltered() {
		if entry >= f.count {
			return f.count - 1
		}
		return entry
	}
	return sort.SearchInts(f.indices, entry+1) - 1
}

type preset struct {
	Levels []string `json:"levels,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Encode serialises the filter as a preset
func (f *Filter) Encode() string {
	p := preset{Text: f.text}
	for l := logformat.LevelTrace; l <= logformat.LevelFatal; l++ {
		if f.levels[l] {
			p.Levels = append(p.Levels, l.String())
		}
	}
	data, _ := json.Marshal(p)
	return string(data)
}

// Decode restores a filter from a preset produced by Encode
func (f *Filter) Decode(s string) {
	f.Clear()
	doc := gjson.Parse(s)
	f.text = doc.Get("text").String()
	for _, name := range doc.Get("levels").Array() {
		for l := logformat.LevelTrace; l <= logformat.LevelFatal; l++ {
			if l.String() == name.String() {
				f.levels[l] = true
			}
		}
	}
	f.dirty = true
}
