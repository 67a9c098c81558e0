package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/sheralamHF/log-explorer/internal/models"
)

// Markdown renders a report for display and for the persisted analysis file.
func Markdown(r *models.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Log Analysis for %s\n\n", r.App)
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Entries analyzed: %d", r.TotalEntries)
	if r.DroppedRecords > 0 {
		fmt.Fprintf(&b, " (%d unparseable records dropped)", r.DroppedRecords)
	}
	b.WriteString("\n\n")

	if len(r.PartialShards) > 0 {
		fmt.Fprintf(&b, "> **Partial data**: %d source shards failed: %s\n\n",
			len(r.PartialShards), strings.Join(r.PartialShards, "; "))
	}

	if r.Summary != "" {
		fmt.Fprintf(&b, "## Summary\n\n%s\n\n", r.Summary)
	}
	writeList(&b, "Affected Services", r.AffectedServices)
	writeList(&b, "Error Patterns", r.Patterns)
	writeList(&b, "Root Causes", r.RootCauses)
	writeList(&b, "Investigation Areas", r.InvestigationAreas)
	writeList(&b, "Trace IDs", r.TraceIDs)

	// Fall back to the unstructured answer when parsing degraded.
	if r.Summary == "" && len(r.AffectedServices) == 0 && len(r.Patterns) == 0 &&
		len(r.RootCauses) == 0 && len(r.InvestigationAreas) == 0 && r.RawModelText != "" {
		fmt.Fprintf(&b, "## Model Response\n\n%s\n", r.RawModelText)
	}

	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}
