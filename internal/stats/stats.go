// Package stats derives read-only sync summaries for the dashboard.
package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/taxsync/internal/entities"
)

// Counter tallies one local collection by sync state.
type Counter interface {
	CountByState() (entities.SyncStateCounts, error)
}

// JobSource exposes the scheduler's in-memory job view.
type JobSource interface {
	ActiveJob(entityType entities.SyncEntityType) (entities.SyncJob, bool)
	LastFinishedAt(entityType entities.SyncEntityType) (time.Time, bool)
}

// LogSource exposes the newest sync log entry per type.
type LogSource interface {
	Latest(entityType entities.SyncEntityType, outcomes ...entities.SyncOutcome) (*entities.SyncLogEntry, error)
}

// NextRunSource reports the next auto-sync tick, or nil when auto-sync is off.
type NextRunSource interface {
	NextRunTime() *time.Time
}

// EntityStats summarizes one entity type.
type EntityStats struct {
	EntityType entities.SyncEntityType `json:"entity_type"`
	Total      int64                   `json:"total"`
	Synced     int64                   `json:"synced"`
	Pending    int64                   `json:"pending"`
	Failed     int64                   `json:"failed"`
	SyncRate   float64                 `json:"sync_rate"`
	LastSyncAt *time.Time              `json:"last_sync_at,omitempty"`
	NextSyncAt *time.Time              `json:"next_sync_at,omitempty"`
	ActiveJob  *entities.SyncJob       `json:"active_job,omitempty"`
}

// SyncStats is the dashboard summary across all entity types.
type SyncStats struct {
	Entities    []EntityStats `json:"entities"`
	Total       int64         `json:"total"`
	Synced      int64         `json:"synced"`
	Pending     int64         `json:"pending"`
	Failed      int64         `json:"failed"`
	SyncRate    float64       `json:"sync_rate"`
	NextSyncAt  *time.Time    `json:"next_sync_at,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Aggregator computes SyncStats on demand. It never takes locks that an
// executor holds while processing a batch.
type Aggregator struct {
	counters map[entities.SyncEntityType]Counter
	order    []entities.SyncEntityType
	jobs     JobSource
	log      LogSource
	nextRun  NextRunSource
	now      func() time.Time
}

// NewAggregator creates an aggregator. nextRun may be nil.
func NewAggregator(counters map[entities.SyncEntityType]Counter, jobs JobSource, log LogSource, nextRun NextRunSource) *Aggregator {
	var order []entities.SyncEntityType
	for _, t := range entities.AllSyncEntityTypes() {
		if _, ok := counters[t]; ok {
			order = append(order, t)
		}
	}
	return &Aggregator{
		counters: counters,
		order:    order,
		jobs:     jobs,
		log:      log,
		nextRun:  nextRun,
		now:      time.Now,
	}
}

// SetNextRunSource wires the auto-sync timer after construction.
func (a *Aggregator) SetNextRunSource(nextRun NextRunSource) {
	a.nextRun = nextRun
}

// Compute builds a fresh summary.
func (a *Aggregator) Compute(ctx context.Context) (*SyncStats, error) {
	var next *time.Time
	if a.nextRun != nil {
		next = a.nextRun.NextRunTime()
	}

	results := make([]EntityStats, len(a.order))
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range a.order {
		g.Go(func() error {
			es, err := a.entity(ctx, t)
			if err != nil {
				return fmt.Errorf("%s stats: %w", t, err)
			}
			es.NextSyncAt = next
			results[i] = es
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &SyncStats{
		Entities:    results,
		NextSyncAt:  next,
		GeneratedAt: a.now().UTC(),
	}
	for _, es := range results {
		out.Total += es.Total
		out.Synced += es.Synced
		out.Pending += es.Pending
		out.Failed += es.Failed
	}
	out.SyncRate = rate(out.Synced, out.Total)
	return out, nil
}

func (a *Aggregator) entity(ctx context.Context, t entities.SyncEntityType) (EntityStats, error) {
	if err := ctx.Err(); err != nil {
		return EntityStats{}, err
	}

	counts, err := a.counters[t].CountByState()
	if err != nil {
		return EntityStats{}, err
	}
	es := EntityStats{
		EntityType: t,
		Total:      counts.Total,
		Synced:     counts.Synced,
		Pending:    counts.Pending,
		Failed:     counts.Failed,
		SyncRate:   rate(counts.Synced, counts.Total),
	}

	if a.jobs != nil {
		if job, ok := a.jobs.ActiveJob(t); ok {
			es.ActiveJob = &job
		}
		if at, ok := a.jobs.LastFinishedAt(t); ok {
			es.LastSyncAt = &at
		}
	}
	if es.LastSyncAt == nil && a.log != nil {
		latest, err := a.log.Latest(t)
		if err != nil {
			return EntityStats{}, err
		}
		if latest != nil {
			at := latest.Timestamp
			es.LastSyncAt = &at
		}
	}
	return es, nil
}

func rate(synced, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(synced) / float64(total)
}
