// Package logfilter applies the query constraints to normalized entries.
package logfilter

import (
	"sort"
	"strings"
	"time"

	"github.com/sheralamHF/log-explorer/internal/models"
)

// Apply filters entries by time window, level and message substring, then
// caps the result at filter.MaxRecords keeping the most recent entries.
// Entries are stable-sorted by timestamp ascending first, so identical
// inputs always produce identical output.
func Apply(entries []models.LogEntry, filter models.QueryFilter, now time.Time) []models.LogEntry {
	sorted := make([]models.LogEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	cutoff := now.Add(-filter.TimeRange)
	substring := strings.ToLower(filter.MessageContains)

	kept := make([]models.LogEntry, 0, len(sorted))
	for _, e := range sorted {
		if filter.TimeRange > 0 && (e.Timestamp.Before(cutoff) || e.Timestamp.After(now)) {
			continue
		}
		if filter.Level != models.LevelUnknown && e.Level != filter.Level {
			continue
		}
		if substring != "" && !strings.Contains(strings.ToLower(e.Message), substring) {
			continue
		}
		kept = append(kept, e)
	}

	if filter.MaxRecords > 0 && len(kept) > filter.MaxRecords {
		kept = kept[len(kept)-filter.MaxRecords:]
	}
	return kept
}
