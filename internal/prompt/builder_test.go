package prompt

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sheralamHF/log-explorer/internal/aggregate"
	"github.com/sheralamHF/log-explorer/internal/models"
)

// kindName is masking-stable so each p yields a distinct signature.
func kindName(p int) string {
	return strings.Repeat(string(rune('a'+p%26)), p/26+1)
}

func testAggregation(patterns int) *aggregate.Result {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	var entries []models.LogEntry
	for p := 0; p < patterns; p++ {
		// pattern p occurs patterns-p+1 times so ranks are stable
		for i := 0; i <= patterns-p; i++ {
			entries = append(entries, models.LogEntry{
				Timestamp: base.Add(time.Duration(i) * time.Second),
				Service:   "payment-service",
				Level:     models.LevelError,
				Message:   fmt.Sprintf("failure kind %s on attempt %d", kindName(p), i),
			})
		}
	}
	return aggregate.Summarize(entries, 2)
}

func testFilter() models.QueryFilter {
	return models.QueryFilter{
		AppName:   "payment-service",
		Source:    models.SourceKubernetes,
		TimeRange: time.Hour,
	}
}

func TestBuild_ContainsInstructionsAndHeader(t *testing.T) {
	ctx := Build(testAggregation(3), testFilter(), Meta{}, DefaultBudget)

	for _, want := range []string{
		"## Summary",
		"## Trace IDs",
		"APPLICATION: payment-service",
		"SOURCE: kubernetes",
		"WINDOW: last 1h0m0s",
		"--- PATTERN 1 (count=4, level=error) ---",
		"signature: failure kind a on attempt <NUM>",
	} {
		if !strings.Contains(ctx.Text, want) {
			t.Errorf("context missing %q", want)
		}
	}
	if ctx.Omitted != 0 {
		t.Errorf("omitted = %d, want 0", ctx.Omitted)
	}
}

func TestBuild_NeverExceedsBudget(t *testing.T) {
	agg := testAggregation(40)
	for _, budget := range []int{100, 500, 1500, 4000, DefaultBudget} {
		ctx := Build(agg, testFilter(), Meta{}, budget)
		if len(ctx.Text) > budget {
			t.Errorf("budget %d: rendered %d chars", budget, len(ctx.Text))
		}
	}
}

func TestBuild_OmissionMarker(t *testing.T) {
	agg := testAggregation(40)
	ctx := Build(agg, testFilter(), Meta{}, 2500)
	if ctx.Omitted == 0 {
		t.Fatal("expected some patterns omitted at a tight budget")
	}
	marker := fmt.Sprintf("%d additional less-frequent patterns omitted", ctx.Omitted)
	if !strings.Contains(ctx.Text, marker) {
		t.Errorf("context missing omission marker %q", marker)
	}
	if ctx.TotalPatterns != len(agg.Groups) {
		t.Errorf("total patterns = %d, want %d", ctx.TotalPatterns, len(agg.Groups))
	}
}

func TestBuild_NoMarkerWhenEverythingFits(t *testing.T) {
	ctx := Build(testAggregation(2), testFilter(), Meta{}, DefaultBudget)
	if strings.Contains(ctx.Text, "patterns omitted") {
		t.Error("omission marker present though nothing was omitted")
	}
}

func TestBuild_HighestFrequencyFirst(t *testing.T) {
	ctx := Build(testAggregation(5), testFilter(), Meta{}, DefaultBudget)
	first := strings.Index(ctx.Text, "failure kind a on attempt <NUM>")
	if first < 0 {
		t.Fatal("top signature not rendered")
	}
	p1 := strings.Index(ctx.Text, "--- PATTERN 1 (count=6,")
	p2 := strings.Index(ctx.Text, "--- PATTERN 2 (count=5,")
	if p1 < 0 || p2 < 0 || p1 > p2 {
		t.Errorf("patterns not ordered by frequency: p1 at %d, p2 at %d", p1, p2)
	}
}

func TestBuild_PartialAndDroppedAnnotations(t *testing.T) {
	meta := Meta{
		PartialShards:  []string{"pod payment-1: timed out", "query error_rate: connection refused"},
		DroppedRecords: 7,
	}
	ctx := Build(testAggregation(2), testFilter(), meta, DefaultBudget)
	if !strings.Contains(ctx.Text, "WARNING: data is PARTIAL, 2 shards failed") {
		t.Error("partial warning missing")
	}
	if !strings.Contains(ctx.Text, "NOTE: 7 unparseable records were dropped") {
		t.Error("dropped-records note missing")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	agg := testAggregation(10)
	a := Build(agg, testFilter(), Meta{}, 3000)
	b := Build(agg, testFilter(), Meta{}, 3000)
	if a.Text != b.Text || a.Omitted != b.Omitted {
		t.Error("identical inputs produced different contexts")
	}
}

func TestBuild_ZeroBudgetUsesDefault(t *testing.T) {
	ctx := Build(testAggregation(2), testFilter(), Meta{}, 0)
	if len(ctx.Text) == 0 || len(ctx.Text) > DefaultBudget {
		t.Errorf("rendered %d chars under default budget", len(ctx.Text))
	}
}
