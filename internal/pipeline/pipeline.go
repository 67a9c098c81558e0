// Package pipeline orchestrates one batch analysis run:
// fetch -> normalize -> filter -> aggregate -> prompt -> infer -> parse.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheralamHF/log-explorer/internal/aggregate"
	"github.com/sheralamHF/log-explorer/internal/logfilter"
	"github.com/sheralamHF/log-explorer/internal/models"
	"github.com/sheralamHF/log-explorer/internal/normalize"
	"github.com/sheralamHF/log-explorer/internal/prompt"
	"github.com/sheralamHF/log-explorer/internal/report"
	"github.com/sheralamHF/log-explorer/internal/source"
)

// Invoker is the model call the pipeline needs; satisfied by
// inference.Client.
type Invoker interface {
	Invoke(ctx context.Context, promptText string) (string, error)
}

// Options tune a pipeline independently of the per-run query.
type Options struct {
	PromptBudget      int
	SamplesPerPattern int
}

// Pipeline wires the stages together. All state is per-run; nothing is
// shared across runs.
type Pipeline struct {
	src        source.Adapter
	normalizer *normalize.Normalizer
	invoker    Invoker
	opts       Options
	log        *zap.Logger
	now        func() time.Time
}

func New(src source.Adapter, invoker Invoker, opts Options, log *zap.Logger) *Pipeline {
	return &Pipeline{
		src:        src,
		normalizer: normalize.New(),
		invoker:    invoker,
		opts:       opts,
		log:        log,
		now:        time.Now,
	}
}

// Run executes one analysis. A completed run always yields a Report; only a
// fatal fetch or inference error aborts it.
func (p *Pipeline) Run(ctx context.Context, filter models.QueryFilter) (*models.Report, error) {
	runID := uuid.New().String()
	log := p.log.With(zap.String("run_id", runID), zap.String("app", filter.AppName))

	log.Info("fetching logs",
		zap.String("source", string(filter.Source)),
		zap.Duration("window", filter.TimeRange))
	fetched, err := p.src.Fetch(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch from %s failed: %w", filter.Source, err)
	}

	var partialShards []string
	for _, f := range fetched.Failures {
		partialShards = append(partialShards, f.String())
	}
	if len(partialShards) > 0 {
		log.Warn("fetch was partial", zap.Strings("failed_shards", partialShards))
	}

	entries := make([]models.LogEntry, 0, len(fetched.Records))
	dropped := 0
	for _, raw := range fetched.Records {
		entry := p.normalizer.Normalize(raw)
		if entry == nil {
			dropped++
			continue
		}
		entries = append(entries, *entry)
	}
	log.Info("normalized records",
		zap.Int("fetched", len(fetched.Records)),
		zap.Int("normalized", len(entries)),
		zap.Int("dropped", dropped))

	filtered := logfilter.Apply(entries, filter, p.now())
	log.Info("filtered entries", zap.Int("kept", len(filtered)))

	if len(filtered) == 0 {
		return &models.Report{
			Summary:        fmt.Sprintf("No log entries matched the query for %s in the last %s.", filter.AppName, filter.TimeRange),
			App:            filter.AppName,
			GeneratedAt:    p.now(),
			PartialShards:  partialShards,
			DroppedRecords: dropped,
		}, nil
	}

	agg := aggregate.Summarize(filtered, p.opts.SamplesPerPattern)
	log.Info("aggregated entries", zap.Int("patterns", len(agg.Groups)))

	promptCtx := prompt.Build(agg, filter, prompt.Meta{
		PartialShards:  partialShards,
		DroppedRecords: dropped,
	}, p.opts.PromptBudget)
	if promptCtx.Omitted > 0 {
		log.Info("prompt budget reached",
			zap.Int("patterns_included", promptCtx.TotalPatterns-promptCtx.Omitted),
			zap.Int("patterns_omitted", promptCtx.Omitted))
	}

	log.Info("invoking model", zap.Int("prompt_chars", len(promptCtx.Text)))
	rawText, err := p.invoker.Invoke(ctx, promptCtx.Text)
	if err != nil {
		return nil, fmt.Errorf("model invocation failed: %w", err)
	}

	rep := report.Parse(rawText)
	if rep.Summary == "" && len(rep.RootCauses) == 0 {
		log.Warn("model response had no recognizable sections, keeping raw text only")
	}

	rep.App = filter.AppName
	rep.GeneratedAt = p.now()
	rep.TotalEntries = agg.TotalEntries
	rep.PartialShards = partialShards
	rep.DroppedRecords = dropped
	return rep, nil
}
