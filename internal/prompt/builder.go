// Package prompt renders the aggregation into the bounded text context sent
// to the model. Output is a deterministic function of its inputs.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/sheralamHF/log-explorer/internal/aggregate"
	"github.com/sheralamHF/log-explorer/internal/models"
)

// DefaultBudget is the context character budget when the caller passes none.
const DefaultBudget = 24000

// omissionReserve is held back from the budget so the omission marker always
// fits; an entry is never cut mid-render.
const omissionReserve = 64

// Meta carries run facts the model should know about data quality.
type Meta struct {
	PartialShards  []string
	DroppedRecords int
}

// Context is the rendered text for one inference call.
type Context struct {
	Text          string
	TotalPatterns int
	Omitted       int
}

const instructions = `You are analyzing aggregated application logs for an on-call engineer.

Respond using exactly these section headers, in this order:

## Summary
## Affected Services
## Error Patterns
## Root Causes
## Investigation Areas
## Trace IDs

GUIDELINES:
- Summarize the main errors and issues concisely
- Identify which services are most affected
- Detect patterns in when or how errors occur
- Suggest potential root causes with your reasoning
- Recommend specific places in the code or systems to investigate
- List any trace IDs helpful for further investigation
- Quote specific pattern text and service names from the data below
- If a section has nothing to report, write "None identified"`

// Build renders the aggregation most-frequent-first under a hard character
// budget. When the budget would be exceeded, lower-frequency signatures are
// dropped whole and an explicit omission marker is appended.
func Build(agg *aggregate.Result, filter models.QueryFilter, meta Meta, budget int) Context {
	if budget <= 0 {
		budget = DefaultBudget
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n")
	b.WriteString(header(agg, filter, meta))

	limit := budget - omissionReserve
	included := 0
	for i, g := range agg.Groups {
		block := renderGroup(i+1, g)
		if b.Len()+len(block) > limit {
			break
		}
		b.WriteString(block)
		included++
	}

	omitted := len(agg.Groups) - included
	if omitted > 0 {
		fmt.Fprintf(&b, "\n%d additional less-frequent patterns omitted\n", omitted)
	}

	// The budget is hard. Pathologically small budgets can't even hold the
	// preamble; cut at the last whole line rather than exceed it.
	text := b.String()
	if len(text) > budget {
		cut := strings.LastIndexByte(text[:budget], '\n')
		if cut < 0 {
			cut = budget
		}
		text = text[:cut]
	}

	return Context{
		Text:          text,
		TotalPatterns: len(agg.Groups),
		Omitted:       omitted,
	}
}

func header(agg *aggregate.Result, filter models.QueryFilter, meta Meta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "APPLICATION: %s\n", filter.AppName)
	fmt.Fprintf(&b, "SOURCE: %s\n", filter.Source)
	fmt.Fprintf(&b, "WINDOW: last %s\n", filter.TimeRange)
	if !agg.SpanStart.IsZero() {
		fmt.Fprintf(&b, "DATA SPAN: %s to %s\n", agg.SpanStart.Format(time.RFC3339), agg.SpanEnd.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "TOTAL ENTRIES: %d across %d distinct patterns\n", agg.TotalEntries, len(agg.Groups))
	if len(meta.PartialShards) > 0 {
		fmt.Fprintf(&b, "WARNING: data is PARTIAL, %d shards failed: %s\n",
			len(meta.PartialShards), strings.Join(meta.PartialShards, "; "))
	}
	if meta.DroppedRecords > 0 {
		fmt.Fprintf(&b, "NOTE: %d unparseable records were dropped before analysis\n", meta.DroppedRecords)
	}
	b.WriteString("\n")
	return b.String()
}

func renderGroup(rank int, g aggregate.Group) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- PATTERN %d (count=%d, level=%s) ---\n", rank, g.Count, levelLabel(g.Signature.Level))
	fmt.Fprintf(&b, "signature: %s\n", g.Signature.Pattern)
	fmt.Fprintf(&b, "services: %s\n", strings.Join(g.Services, ", "))
	fmt.Fprintf(&b, "seen: %s to %s\n", g.FirstSeen.Format(time.RFC3339), g.LastSeen.Format(time.RFC3339))
	if len(g.TraceIDs) > 0 {
		fmt.Fprintf(&b, "trace ids: %s\n", strings.Join(g.TraceIDs, ", "))
	}
	for _, s := range g.Samples {
		fmt.Fprintf(&b, "  sample: %s\n", s.Message)
	}
	b.WriteString("\n")
	return b.String()
}

func levelLabel(l models.Level) string {
	if l == models.LevelUnknown {
		return "unknown"
	}
	return string(l)
}
