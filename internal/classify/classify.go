// Package classify decides which uploaded files form the authoritative trace set.
package classify

import (
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"

	"github.com/TimelordUK/mtrace/internal/notify"
	"github.com/TimelordUK/mtrace/internal/source"
)

const (
	// ManifestName marks a bug report; its content names the report text file
	ManifestName = "main_entry.txt"
	// BugReportSystracePath is the rich trace of a bug report
	BugReportSystracePath = "FS/data/misc/perfetto-traces/bugreport/systrace.pftrace"
	// ScreenRecordingMetadataName is the side-file carrying clock offsets
	ScreenRecordingMetadataName = "screen_recording_metadata.json"
)

// RichSuffixes identify rich-trace candidates, each optionally gzipped
var RichSuffixes = []string{".pftrace", ".perfetto-trace", ".perfetto"}

// BugReportTraceDirs are the locations of legacy traces inside a bug report
var BugReportTraceDirs = []string{
	"FS/data/misc/wmtrace/",
	"FS/data/misc/perfetto-traces/",
	"proto/window_CRITICAL.proto",
	"proto/input_method_CRITICAL.proto",
	"proto/SurfaceFlinger_CRITICAL.proto",
}

var timezoneProp = regexp.MustCompile(`\[persist\.sys\.timezone\]:\s*\[([^\]]+)\]`)

// BugReport describes a detected bug-report bundle
type BugReport struct {
	Archive  string
	Manifest *source.File
	Report   *source.File
	Codename string
}

// Result is the classified file set for one load request
type Result struct {
	Rich      *source.File
	Legacy    []*source.File
	BugReport *BugReport

	TimezoneName string
	Timezone     *time.Location

	RealToElapsedOffsetNs int64
	HasOffset             bool
}

// Empty reports whether classification kept no file at all
func (r *Result) Empty() bool {
	return r.Rich == nil && len(r.Legacy) == 0
}

// IsRichCandidate reports whether f is recognised as a rich trace by name
func IsRichCandidate(f *source.File) bool {
	for _, s := range RichSuffixes {
		if f.HasSuffix(s, s+".gz") {
			return true
		}
	}
	return false
}

// Classify partitions files into the authoritative rich trace and legacy
// files. Every displaced rich candidate is reported to sink.
func Classify(files []*source.File, sink notify.Sink) *Result {
	if sink == nil {
		sink = notify.Discard
	}
	res := &Result{}

	files = res.extractMetadata(files)

	if br := findBugReport(files); br != nil {
		res.BugReport = br
		res.classifyBugReport(files)
		return res
	}

	res.classifyPlain(files, sink)
	return res
}

// extractMetadata consumes side-files and returns the remaining files
func (r *Result) extractMetadata(files []*source.File) []*source.File {
	kept := files[:0:0]
	for _, f := range files {
		if f.Base() == ScreenRecordingMetadataName {
			offset := gjson.GetBytes(f.Data, "realToElapsedTimeOffsetNanos")
			if offset.Exists() {
				r.RealToElapsedOffsetNs = offset.Int()
				r.HasOffset = true
			}
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func findBugReport(files []*source.File) *BugReport {
	for _, manifest := range files {
		if manifest.Base() != ManifestName {
			continue
		}
		target := strings.TrimSpace(string(manifest.Data))
		if target == "" {
			continue
		}
		for _, f := range files {
			if f == manifest || f.Archive != manifest.Archive {
				continue
			}
			if f.Path == target || f.Base() == target {
				return &BugReport{
					Archive:  manifest.Archive,
					Manifest: manifest,
					Report:   f,
					Codename: codename(f.Base()),
				}
			}
		}
	}
	return nil
}

// codename extracts "husky" from "bugreport-husky-UQ1A.240105.004-2024-01-15.txt"
func codename(reportName string) string {
	parts := strings.Split(strings.TrimSuffix(reportName, ".txt"), "-")
	if len(parts) < 2 || parts[0] != "bugreport" {
		return ""
	}
	return parts[1]
}

func (r *Result) classifyBugReport(files []*source.File) {
	br := r.BugReport
	if m := timezoneProp.FindSubmatch(br.Report.Data); m != nil {
		r.TimezoneName = string(m[1])
		if loc, err := time.LoadLocation(r.TimezoneName); err == nil {
			r.Timezone = loc
		}
	}

	for _, f := range files {
		if f == br.Manifest || f == br.Report {
			continue
		}
		inBugReport := f.Archive == br.Archive
		if inBugReport && f.Path == BugReportSystracePath {
			r.Rich = f
			continue
		}
		if !inBugReport || inTraceDirs(f.Path) {
			r.Legacy = append(r.Legacy, f)
		}
	}
}

func inTraceDirs(p string) bool {
	for _, dir := range BugReportTraceDirs {
		if strings.HasPrefix(p, dir) {
			return true
		}
	}
	return false
}

func (r *Result) classifyPlain(files []*source.File, sink notify.Sink) {
	var candidates []*source.File
	for _, f := range files {
		if IsRichCandidate(f) {
			candidates = append(candidates, f)
			continue
		}
		r.Legacy = append(r.Legacy, f)
	}
	if len(candidates) == 0 {
		return
	}

	winner := candidates[0]
	for _, c := range candidates[1:] {
		if c.Size() > winner.Size() {
			winner = c
		}
	}
	r.Rich = winner

	for _, c := range candidates {
		if c == winner {
			continue
		}
		sink.Warn(notify.TraceOverridden{
			Descriptor: c.Descriptor() + " (" + humanize.Bytes(uint64(c.Size())) + ")",
			Reason:     "larger file " + winner.Descriptor() + " (" + humanize.Bytes(uint64(winner.Size())) + ")",
		})
	}
}
