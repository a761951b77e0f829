// Package normalize maps source-specific log records onto core.UsageEvent.
package normalize

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/janekbaraniewski/ccost/internal/core"
	"github.com/janekbaraniewski/ccost/internal/locate"
	"github.com/janekbaraniewski/ccost/internal/logreader"
)

const UnknownModel = core.UnknownModel

// Result classifies what a single record turned into.
type Result int

const (
	// ResultEvent means the record produced a usage event.
	ResultEvent Result = iota
	// ResultNonUsage is a known record type that carries no billable usage
	// (user turns, tool calls, summaries, session metadata).
	ResultNonUsage
	// ResultUnrecognized is a record whose type tag is not known for the source.
	ResultUnrecognized
	// ResultInvalid is a usage record missing a field required to place it.
	ResultInvalid
)

func (r Result) String() string {
	switch r {
	case ResultEvent:
		return "event"
	case ResultNonUsage:
		return "non_usage"
	case ResultUnrecognized:
		return "unrecognized"
	case ResultInvalid:
		return "invalid"
	default:
		return "result(" + strconv.Itoa(int(r)) + ")"
	}
}

// Normalizer converts the records of one file. Implementations may keep
// per-file state (Codex reports cumulative totals), so a Normalizer must not
// be shared between files.
type Normalizer interface {
	Normalize(rec logreader.Record) (core.UsageEvent, Result)
}

// New picks the mapping for the file's source kind.
func New(ref locate.FileRef) Normalizer {
	switch ref.Source {
	case core.SourceCodex:
		return newCodexNormalizer(ref)
	default:
		return newClaudeNormalizer(ref)
	}
}

// FileStats summarizes one file's pass through reader and normalizer.
type FileStats struct {
	logreader.Stats
	Events   int
	Skipped  int
	Earliest time.Time
}

// File reads and normalizes a whole file. A returned error means the file
// could not be read; events gathered before a mid-file read error are kept.
func File(ref locate.FileRef) ([]core.UsageEvent, FileStats, error) {
	n := New(ref)
	var (
		events []core.UsageEvent
		stats  FileStats
	)
	readStats, err := logreader.Scan(ref.Path, func(rec logreader.Record) {
		ev, res := n.Normalize(rec)
		if res != ResultEvent {
			stats.Skipped++
			return
		}
		events = append(events, ev)
		if stats.Earliest.IsZero() || ev.Timestamp.Before(stats.Earliest) {
			stats.Earliest = ev.Timestamp
		}
	})
	stats.Stats = readStats
	stats.Events = len(events)
	return events, stats, err
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return unixAuto(n), true
	}
	return time.Time{}, false
}

func unixAuto(ts int64) time.Time {
	switch {
	case ts > 1_000_000_000_000_000:
		return time.UnixMicro(ts).UTC()
	case ts > 1_000_000_000_000:
		return time.UnixMilli(ts).UTC()
	default:
		return time.Unix(ts, 0).UTC()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func workspaceLabel(cwd string) string {
	cwd = strings.TrimSpace(cwd)
	if cwd == "" {
		return ""
	}
	base := filepath.Base(cwd)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return cwd
	}
	return base
}
