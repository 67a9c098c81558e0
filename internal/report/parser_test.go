package report

import (
	"strings"
	"testing"
	"time"

	"github.com/sheralamHF/log-explorer/internal/models"
)

const wellFormed = `## Summary

The payment service is failing to reach its primary database.
Timeouts dominate the error volume.

## Affected Services

- payment-0
- payment-1

## Error Patterns

- connection timeout to db-primary after <NUM> ms
- out of memory

## Root Causes

- Database connection pool exhaustion under load

## Investigation Areas

- Check db-primary connection limits
- Review pod memory requests

## Trace IDs

- abc123def4567890
`

func TestParse_WellFormed(t *testing.T) {
	r := Parse(wellFormed)

	if r.Summary != "The payment service is failing to reach its primary database. Timeouts dominate the error volume." {
		t.Errorf("summary = %q", r.Summary)
	}
	if len(r.AffectedServices) != 2 || r.AffectedServices[0] != "payment-0" {
		t.Errorf("affected services = %v", r.AffectedServices)
	}
	if len(r.Patterns) != 2 || r.Patterns[0] != "connection timeout to db-primary after <NUM> ms" {
		t.Errorf("patterns = %v", r.Patterns)
	}
	if len(r.RootCauses) != 1 {
		t.Errorf("root causes = %v", r.RootCauses)
	}
	if len(r.InvestigationAreas) != 2 || r.InvestigationAreas[1] != "Review pod memory requests" {
		t.Errorf("investigation areas = %v", r.InvestigationAreas)
	}
	if len(r.TraceIDs) != 1 || r.TraceIDs[0] != "abc123def4567890" {
		t.Errorf("trace ids = %v", r.TraceIDs)
	}
	if r.RawModelText != wellFormed {
		t.Error("raw model text not preserved")
	}
}

func TestParse_HeaderVariants(t *testing.T) {
	raw := strings.Join([]string{
		"**Summary:**",
		"All good mostly.",
		"1. Affected Services",
		"* api-gateway",
		"2) Potential Root Causes:",
		"- slow disk",
		"Areas to Investigate",
		"- kernel logs",
		"Related Trace IDs",
		"- 550e8400-e29b-41d4-a716-446655440000",
	}, "\n")

	r := Parse(raw)
	if r.Summary != "All good mostly." {
		t.Errorf("summary = %q", r.Summary)
	}
	if len(r.AffectedServices) != 1 || r.AffectedServices[0] != "api-gateway" {
		t.Errorf("affected services = %v", r.AffectedServices)
	}
	if len(r.RootCauses) != 1 || r.RootCauses[0] != "slow disk" {
		t.Errorf("root causes = %v", r.RootCauses)
	}
	if len(r.InvestigationAreas) != 1 || r.InvestigationAreas[0] != "kernel logs" {
		t.Errorf("investigation areas = %v", r.InvestigationAreas)
	}
	if len(r.TraceIDs) != 1 {
		t.Errorf("trace ids = %v", r.TraceIDs)
	}
}

func TestParse_NoHeadersDegradesToRaw(t *testing.T) {
	raw := "The model decided to answer in free prose without any of the requested sections, which happens."
	r := Parse(raw)
	if r.RawModelText != raw {
		t.Error("raw text not preserved")
	}
	if r.Summary != "" || len(r.AffectedServices) != 0 || len(r.Patterns) != 0 ||
		len(r.RootCauses) != 0 || len(r.InvestigationAreas) != 0 || len(r.TraceIDs) != 0 {
		t.Errorf("structured fields populated without headers: %+v", r)
	}
}

func TestParse_BodySentenceStartingWithAliasIsNotHeader(t *testing.T) {
	raw := strings.Join([]string{
		"## Summary",
		"Patterns in when errors occur suggest a nightly batch job is involved and the load is periodic.",
		"## Error Patterns",
		"- timeout",
	}, "\n")
	r := Parse(raw)
	if !strings.Contains(r.Summary, "nightly batch job") {
		t.Errorf("summary lost its body: %q", r.Summary)
	}
	if len(r.Patterns) != 1 || r.Patterns[0] != "timeout" {
		t.Errorf("patterns = %v", r.Patterns)
	}
}

func TestParse_NoneIdentifiedDropped(t *testing.T) {
	raw := strings.Join([]string{
		"## Summary",
		"Quiet hour.",
		"## Trace IDs",
		"None identified",
	}, "\n")
	r := Parse(raw)
	if len(r.TraceIDs) != 0 {
		t.Errorf("trace ids = %v, want empty", r.TraceIDs)
	}
}

func TestParse_MissingSectionsAreEmpty(t *testing.T) {
	raw := "## Summary\nJust a summary."
	r := Parse(raw)
	if r.Summary != "Just a summary." {
		t.Errorf("summary = %q", r.Summary)
	}
	if len(r.RootCauses) != 0 || len(r.TraceIDs) != 0 {
		t.Errorf("missing sections not empty: %+v", r)
	}
}

func TestParse_Empty(t *testing.T) {
	r := Parse("")
	if r == nil {
		t.Fatal("Parse returned nil")
	}
	if r.RawModelText != "" || r.Summary != "" {
		t.Errorf("unexpected report for empty input: %+v", r)
	}
}

func TestMarkdown_Structured(t *testing.T) {
	r := &models.Report{
		App:          "payment-service",
		GeneratedAt:  time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		TotalEntries: 53,
		Summary:      "Timeouts dominate.",
		Patterns:     []string{"connection timeout"},
		PartialShards: []string{
			"pod payment-1: timed out",
		},
		DroppedRecords: 2,
	}
	md := Markdown(r)

	for _, want := range []string{
		"# Log Analysis for payment-service",
		"Entries analyzed: 53 (2 unparseable records dropped)",
		"> **Partial data**: 1 source shards failed: pod payment-1: timed out",
		"## Summary\n\nTimeouts dominate.",
		"## Error Patterns\n\n- connection timeout",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "## Model Response") {
		t.Error("fallback section rendered for a structured report")
	}
}

func TestMarkdown_FallbackToRawText(t *testing.T) {
	r := &models.Report{
		App:          "payment-service",
		GeneratedAt:  time.Now(),
		RawModelText: "unstructured answer",
	}
	md := Markdown(r)
	if !strings.Contains(md, "## Model Response\n\nunstructured answer") {
		t.Errorf("fallback section missing:\n%s", md)
	}
}
