// Package aggregate groups log entries into error signatures with frequency,
// service and time-bucket statistics.
//
// The grouping key is the message with variable substrings masked, paired
// with the entry's level. The masking rule is deliberately pinned and tested:
// it is the accuracy-critical knob of the whole pipeline. Masking applies, in
// order:
//
//  1. double- and single-quoted spans   -> "<STR>" / '<STR>'
//  2. UUIDs                             -> <UUID>
//  3. ISO-8601 timestamps               -> <TS>
//  4. hex runs of 8+ chars with a letter -> <HEX>
//  5. integer and decimal numbers       -> <NUM>
//  6. whitespace runs collapsed, trimmed
//
// Step 4 requires at least one a-f character so long decimal identifiers fall
// through to <NUM> instead of being mistaken for hashes.
package aggregate

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sheralamHF/log-explorer/internal/models"
)

// DefaultSampleCount bounds verbatim samples kept per signature.
const DefaultSampleCount = 3

var (
	doubleQuotedRe = regexp.MustCompile(`"[^"]*"`)
	singleQuotedRe = regexp.MustCompile(`'[^']*'`)
	uuidRe         = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	timestampRe    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?\b`)
	hexRe          = regexp.MustCompile(`\b[0-9a-fA-F]{8,}\b`)
	hexLetterRe    = regexp.MustCompile(`[a-fA-F]`)
	numberRe       = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// Signature is the normalized grouping key for a class of log messages.
type Signature struct {
	Pattern string
	Level   models.Level
}

// Group holds the statistics for one signature.
type Group struct {
	Signature Signature
	Count     int
	Services  []string
	FirstSeen time.Time
	LastSeen  time.Time
	Samples   []models.LogEntry
	TraceIDs  []string
}

// Result is the aggregation over one filtered entry set. Derived, read-only.
type Result struct {
	Groups       []Group
	TotalEntries int
	SpanStart    time.Time
	SpanEnd      time.Time
}

// Mask replaces variable substrings in a message with placeholder tokens so
// that messages differing only in IDs, numbers or timestamps collapse to the
// same signature.
func Mask(message string) string {
	s := doubleQuotedRe.ReplaceAllString(message, `"<STR>"`)
	s = singleQuotedRe.ReplaceAllString(s, `'<STR>'`)
	s = uuidRe.ReplaceAllString(s, "<UUID>")
	s = timestampRe.ReplaceAllString(s, "<TS>")
	s = hexRe.ReplaceAllStringFunc(s, func(tok string) string {
		if hexLetterRe.MatchString(tok) {
			return "<HEX>"
		}
		return tok
	})
	s = numberRe.ReplaceAllString(s, "<NUM>")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

type groupAccum struct {
	signature Signature
	entries   []models.LogEntry
	services  map[string]struct{}
	traceIDs  map[string]struct{}
}

// Summarize groups entries by (masked message, level) and computes per-group
// statistics. Groups are ordered by count descending, ties broken by most
// recent last-seen, then lexicographic pattern, for reproducibility.
func Summarize(entries []models.LogEntry, sampleCount int) *Result {
	if sampleCount <= 0 {
		sampleCount = DefaultSampleCount
	}

	accums := make(map[Signature]*groupAccum)
	result := &Result{TotalEntries: len(entries)}

	for _, e := range entries {
		if result.SpanStart.IsZero() || e.Timestamp.Before(result.SpanStart) {
			result.SpanStart = e.Timestamp
		}
		if e.Timestamp.After(result.SpanEnd) {
			result.SpanEnd = e.Timestamp
		}

		sig := Signature{Pattern: Mask(e.Message), Level: e.Level}
		acc, ok := accums[sig]
		if !ok {
			acc = &groupAccum{
				signature: sig,
				services:  make(map[string]struct{}),
				traceIDs:  make(map[string]struct{}),
			}
			accums[sig] = acc
		}
		acc.entries = append(acc.entries, e)
		acc.services[e.Service] = struct{}{}
		if e.TraceID != "" {
			acc.traceIDs[e.TraceID] = struct{}{}
		}
	}

	for _, acc := range accums {
		result.Groups = append(result.Groups, acc.finalize(sampleCount))
	}

	sort.Slice(result.Groups, func(i, j int) bool {
		gi, gj := result.Groups[i], result.Groups[j]
		if gi.Count != gj.Count {
			return gi.Count > gj.Count
		}
		if !gi.LastSeen.Equal(gj.LastSeen) {
			return gi.LastSeen.After(gj.LastSeen)
		}
		return gi.Signature.Pattern < gj.Signature.Pattern
	})

	return result
}

func (acc *groupAccum) finalize(sampleCount int) Group {
	entries := acc.entries
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	g := Group{
		Signature: acc.signature,
		Count:     len(entries),
		FirstSeen: entries[0].Timestamp,
		LastSeen:  entries[len(entries)-1].Timestamp,
		Services:  sortedKeys(acc.services),
		TraceIDs:  sortedKeys(acc.traceIDs),
		Samples:   selectSamples(entries, sampleCount),
	}
	return g
}

// selectSamples keeps the first sampleCount-1 entries chronologically plus
// the earliest most-severe entry, so a late severe occurrence is never lost
// to a purely chronological cut. Output stays in timestamp order.
func selectSamples(entries []models.LogEntry, sampleCount int) []models.LogEntry {
	if len(entries) <= sampleCount {
		out := make([]models.LogEntry, len(entries))
		copy(out, entries)
		return out
	}

	severeIdx := 0
	for i, e := range entries {
		if e.Level.Severity() > entries[severeIdx].Level.Severity() {
			severeIdx = i
		}
	}

	picked := make([]models.LogEntry, 0, sampleCount)
	for i := 0; i < sampleCount-1; i++ {
		picked = append(picked, entries[i])
	}
	if severeIdx >= sampleCount-1 {
		picked = append(picked, entries[severeIdx])
	} else {
		picked = append(picked, entries[sampleCount-1])
	}
	return picked
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
