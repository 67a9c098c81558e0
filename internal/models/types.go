package models

import "time"

// Source identifies which backend logs are pulled from.
type Source string

const (
	SourceKubernetes Source = "kubernetes"
	SourcePrometheus Source = "prometheus"
)

// Level is a normalized log severity.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
	LevelDebug   Level = "debug"
	LevelUnknown Level = ""
)

// Severity ranks levels for sample selection; higher is more severe.
func (l Level) Severity() int {
	switch l {
	case LevelError:
		return 4
	case LevelWarning:
		return 3
	case LevelInfo:
		return 2
	case LevelDebug:
		return 1
	default:
		return 0
	}
}

// ParseLevel maps a user-supplied string to a Level. Empty means "all levels".
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "":
		return LevelUnknown, true
	case "error", "warning", "info", "debug":
		return Level(s), true
	default:
		return LevelUnknown, false
	}
}

// QueryFilter fully determines what one pipeline run retrieves.
// Immutable once constructed by the CLI/config layer.
type QueryFilter struct {
	AppName         string
	TimeRange       time.Duration
	MessageContains string
	Level           Level
	Source          Source
	MaxRecords      int
}

// RawRecord is a source-native record before normalization.
// Kubernetes fills Line/Pod/Namespace/Container; Prometheus fills
// Metric/Labels/Value/Timestamp.
type RawRecord struct {
	Source    Source
	Line      string
	Pod       string
	Namespace string
	Container string

	Metric    string
	Labels    map[string]string
	Value     string
	Timestamp time.Time
}

// LogEntry is the canonical record produced by the normalizer.
// Never mutated after creation.
type LogEntry struct {
	Timestamp time.Time
	Service   string
	Level     Level
	Message   string
	TraceID   string
	Raw       string
}

// Report is the terminal artifact of one pipeline run. Ownership passes to
// the caller for display and persistence.
type Report struct {
	Summary            string
	AffectedServices   []string
	Patterns           []string
	RootCauses         []string
	InvestigationAreas []string
	TraceIDs           []string
	RawModelText       string

	App            string
	GeneratedAt    time.Time
	TotalEntries   int
	PartialShards  []string
	DroppedRecords int
}
