// Package source retrieves raw log records from one of several backends.
// Two adapters exist: Kubernetes pod logs and Prometheus range queries.
package source

import (
	"context"
	"fmt"

	"github.com/sheralamHF/log-explorer/internal/models"
)

// Adapter fetches source-native records for a query window.
type Adapter interface {
	Fetch(ctx context.Context, filter models.QueryFilter) (*FetchResult, error)
}

// ShardFailure records one pod/query that could not be fetched. Non-fatal;
// the pipeline continues with whatever was retrieved.
type ShardFailure struct {
	Shard string
	Err   error
}

func (f ShardFailure) String() string {
	return fmt.Sprintf("%s: %v", f.Shard, f.Err)
}

// FetchResult carries retrieved records plus any per-shard failures.
type FetchResult struct {
	Records  []models.RawRecord
	Failures []ShardFailure
}

// Partial reports whether some shards failed while others returned data.
func (r *FetchResult) Partial() bool {
	return len(r.Failures) > 0
}

// Unavailable is returned when the backend cannot be reached at all.
type Unavailable struct {
	Source models.Source
	Err    error
}

func (e *Unavailable) Error() string {
	return fmt.Sprintf("%s source unavailable: %v", e.Source, e.Err)
}

func (e *Unavailable) Unwrap() error { return e.Err }
