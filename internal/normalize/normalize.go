// Package normalize converts source-native raw records into canonical log
// entries. Unparseable records are dropped (nil), never an error.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/sheralamHF/log-explorer/internal/models"
)

// Accepted timestamp formats, tried in order. Single-token formats match the
// first whitespace-delimited field; two-token formats match the first two.
var (
	singleTokenFormats = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
	}
	twoTokenFormats = []string{
		"2006-01-02 15:04:05",
		"2006/01/02 15:04:05",
	}
)

var (
	errorRe = regexp.MustCompile(`(?i)\b(ERROR|ERR|ERRO|FATAL|CRITICAL|PANIC)\b`)
	warnRe  = regexp.MustCompile(`(?i)\b(WARN|WARNING)\b`)
	infoRe  = regexp.MustCompile(`(?i)\bINFO\b`)
	debugRe = regexp.MustCompile(`(?i)\b(DEBUG|TRACE)\b`)

	// stackTraceRe matches common stack-trace shapes; those imply error level
	// even without an explicit marker.
	stackTraceRe = regexp.MustCompile(`(?i)(Traceback \(most recent call last\)|^panic:|^\s+at\s+\S|\bException\b)`)

	// traceIDRe extracts a hex or UUID token following a recognizable label.
	traceIDRe = regexp.MustCompile(`(?i)\b(?:trace[-_]?id|x-b3-traceid|x-amzn-trace-id)["']?[=:\s]+["']?([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}|[0-9a-fA-F]{16,64})`)
)

// Normalizer turns raw records into LogEntry values. The zero value is not
// usable; construct with New.
type Normalizer struct {
	now func() time.Time
}

func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewWithClock fixes observation time; used by tests.
func NewWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize parses one raw record. Returns nil when the record carries no
// usable content (blank line, NaN sample); the caller counts drops.
func (n *Normalizer) Normalize(raw models.RawRecord) *models.LogEntry {
	switch raw.Source {
	case models.SourcePrometheus:
		return n.normalizeMetric(raw)
	default:
		return n.normalizeLine(raw)
	}
}

func (n *Normalizer) normalizeLine(raw models.RawRecord) *models.LogEntry {
	line := strings.TrimSpace(raw.Line)
	if line == "" {
		return nil
	}

	ts, message, ok := splitTimestamp(line)
	if !ok {
		ts = n.now()
		message = line
	}

	service := raw.Pod
	if service == "" {
		service = "unknown"
	}

	return &models.LogEntry{
		Timestamp: ts,
		Service:   service,
		Level:     DetectLevel(message),
		Message:   message,
		TraceID:   ExtractTraceID(message),
		Raw:       raw.Line,
	}
}

func (n *Normalizer) normalizeMetric(raw models.RawRecord) *models.LogEntry {
	if raw.Value == "NaN" || raw.Value == "" {
		return nil
	}
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = n.now()
	}

	service := raw.Labels["pod"]
	if service == "" {
		service = raw.Labels["service"]
	}
	if service == "" {
		service = "unknown"
	}

	return &models.LogEntry{
		Timestamp: ts,
		Service:   service,
		Level:     metricLevel(raw.Metric),
		Message:   raw.Line,
		Raw:       raw.Line,
	}
}

// splitTimestamp strips a leading timestamp token from the line, returning
// the parsed instant and the remaining message.
func splitTimestamp(line string) (time.Time, string, bool) {
	fields := strings.SplitN(line, " ", 3)
	head := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, head))

	for _, format := range singleTokenFormats {
		if ts, err := time.Parse(format, head); err == nil {
			return ts, rest, true
		}
	}

	// Date and time separated by a space.
	if len(fields) >= 2 {
		head2 := fields[0] + " " + fields[1]
		for _, format := range twoTokenFormats {
			if ts, err := time.Parse(format, head2); err == nil {
				return ts, strings.TrimSpace(strings.TrimPrefix(line, head2)), true
			}
		}
	}

	return time.Time{}, line, false
}

// DetectLevel finds the highest-priority level marker in the message.
// Explicit error markers and stack-trace indicators win over warnings,
// warnings over info, info over debug.
func DetectLevel(message string) models.Level {
	switch {
	case errorRe.MatchString(message) || stackTraceRe.MatchString(message):
		return models.LevelError
	case warnRe.MatchString(message):
		return models.LevelWarning
	case infoRe.MatchString(message):
		return models.LevelInfo
	case debugRe.MatchString(message):
		return models.LevelDebug
	default:
		return models.LevelUnknown
	}
}

// ExtractTraceID returns the first labeled trace identifier in the message,
// or empty when none is present.
func ExtractTraceID(message string) string {
	m := traceIDRe.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// metricLevel keys severity off the query set: error counters are errors,
// saturation series warnings, traffic series informational.
func metricLevel(metric string) models.Level {
	switch metric {
	case "error_rate", "error_count", "exception_count":
		return models.LevelError
	case "memory_usage", "cpu_usage":
		return models.LevelWarning
	default:
		return models.LevelInfo
	}
}
