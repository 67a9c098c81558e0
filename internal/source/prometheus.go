package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"

	"github.com/sheralamHF/log-explorer/internal/models"
)

// PrometheusOptions configure the Prometheus adapter.
type PrometheusOptions struct {
	BaseURL               string
	InsecureSkipTLSVerify bool
	QueryTimeout          time.Duration
}

// Prometheus issues range queries against a Prometheus endpoint and converts
// the resulting series into raw records. Each query is an isolated shard.
type Prometheus struct {
	api          promv1.API
	queryTimeout time.Duration
	log          *zap.Logger
}

// NewPrometheus builds the adapter for the configured base URL.
func NewPrometheus(opts PrometheusOptions, log *zap.Logger) (*Prometheus, error) {
	rt := api.DefaultRoundTripper
	if opts.InsecureSkipTLSVerify {
		rt = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	client, err := api.NewClient(api.Config{Address: opts.BaseURL, RoundTripper: rt})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	return NewPrometheusWithAPI(promv1.NewAPI(client), opts, log), nil
}

// NewPrometheusWithAPI builds the adapter around an existing query API.
func NewPrometheusWithAPI(papi promv1.API, opts PrometheusOptions, log *zap.Logger) *Prometheus {
	timeout := opts.QueryTimeout
	if timeout <= 0 {
		timeout = defaultShardTimeout
	}
	return &Prometheus{api: papi, queryTimeout: timeout, log: log}
}

type promQuery struct {
	name string
	expr string
}

// queriesFor returns the level-keyed query set for the application. Error
// counters map to error level, request/latency series to info, resource
// saturation series to warning.
func queriesFor(filter models.QueryFilter) []promQuery {
	appSel := fmt.Sprintf(`{app=%q}`, filter.AppName)
	containerSel := fmt.Sprintf(`{container=%q}`, filter.AppName)
	window := promDuration(filter.TimeRange)

	var queries []promQuery
	if filter.Level == models.LevelUnknown || filter.Level == models.LevelError {
		queries = append(queries,
			promQuery{"error_rate", fmt.Sprintf(`sum(rate(http_requests_total%s[5m])) by (status_code, path) > 0`, appSel)},
			promQuery{"error_count", fmt.Sprintf(`sum(increase(http_server_errors_total%s[%s])) by (path, status_code)`, appSel, window)},
			promQuery{"exception_count", fmt.Sprintf(`sum(increase(application_exceptions_total%s[%s])) by (exception_type)`, appSel, window)},
		)
	}
	if filter.Level == models.LevelUnknown || filter.Level == models.LevelInfo {
		queries = append(queries,
			promQuery{"request_rate", fmt.Sprintf(`sum(rate(http_requests_total%s[5m])) by (path)`, appSel)},
			promQuery{"response_time", fmt.Sprintf(`histogram_quantile(0.95, sum(rate(http_request_duration_seconds_bucket%s[5m])) by (path, le))`, appSel)},
		)
	}
	if filter.Level == models.LevelUnknown || filter.Level == models.LevelWarning {
		queries = append(queries,
			promQuery{"memory_usage", fmt.Sprintf(`sum(container_memory_usage_bytes%s) by (pod)`, containerSel)},
			promQuery{"cpu_usage", fmt.Sprintf(`sum(rate(container_cpu_usage_seconds_total%s[5m])) by (pod)`, containerSel)},
		)
	}
	return queries
}

// Fetch runs the query set over the window. Individual query failures are
// recorded as shard failures; the whole set failing means the endpoint is
// unreachable.
func (p *Prometheus) Fetch(ctx context.Context, filter models.QueryFilter) (*FetchResult, error) {
	end := time.Now()
	start := end.Add(-filter.TimeRange)
	step := stepFor(filter.TimeRange)
	queries := queriesFor(filter)

	result := &FetchResult{}
	for _, q := range queries {
		qctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
		value, warnings, err := p.api.QueryRange(qctx, q.expr, promv1.Range{Start: start, End: end, Step: step})
		cancel()
		if err != nil {
			p.log.Warn("prometheus query failed", zap.String("query", q.name), zap.Error(err))
			result.Failures = append(result.Failures, ShardFailure{Shard: q.name, Err: err})
			continue
		}
		for _, w := range warnings {
			p.log.Warn("prometheus query warning", zap.String("query", q.name), zap.String("warning", w))
		}
		result.Records = append(result.Records, recordsFromValue(q, value)...)
	}

	if len(queries) > 0 && len(result.Failures) == len(queries) {
		return nil, &Unavailable{Source: models.SourcePrometheus, Err: fmt.Errorf("all %d queries failed, first error: %w", len(queries), result.Failures[0].Err)}
	}
	return result, nil
}

// recordsFromValue flattens a range-query matrix into raw records, one per
// sample point.
func recordsFromValue(q promQuery, value model.Value) []models.RawRecord {
	matrix, ok := value.(model.Matrix)
	if !ok {
		return nil
	}
	var records []models.RawRecord
	for _, series := range matrix {
		labels := make(map[string]string, len(series.Metric))
		for name, val := range series.Metric {
			if name == model.MetricNameLabel {
				continue
			}
			labels[string(name)] = string(val)
		}
		labelStr := formatLabels(labels)
		for _, sample := range series.Values {
			records = append(records, models.RawRecord{
				Source:    models.SourcePrometheus,
				Metric:    q.name,
				Labels:    labels,
				Value:     sample.Value.String(),
				Timestamp: sample.Timestamp.Time(),
				Line:      fmt.Sprintf("%s: %s = %s", q.name, labelStr, sample.Value.String()),
			})
		}
	}
	return records
}

func formatLabels(labels map[string]string) string {
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

// stepFor picks query resolution by window size: seconds for minutes-scale
// windows, minutes for hours, hours for days.
func stepFor(window time.Duration) time.Duration {
	switch {
	case window <= time.Hour:
		return 15 * time.Second
	case window <= 24*time.Hour:
		return time.Minute
	default:
		return time.Hour
	}
}

func promDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
