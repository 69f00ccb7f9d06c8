package http

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/taxsync/internal/audit"
	"github.com/mrlokans/taxsync/internal/database/synclog"
	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/settingsstore"
	"github.com/mrlokans/taxsync/internal/stats"
)

// This file consolidates the interfaces HTTP controllers depend on.
// Concrete implementations are checked in internal/interfaces.

// --- Sync engine ---

// SyncScheduler exposes job control.
type SyncScheduler interface {
	Start(ctx context.Context, target string) ([]entities.SyncJob, error)
	Pause(jobID string) (entities.SyncJob, error)
	Resume(jobID string) (entities.SyncJob, error)
	Stop(jobID string) (entities.SyncJob, error)
	Clear(jobID string) error
	Job(jobID string) (entities.SyncJob, error)
	Jobs() []entities.SyncJob
}

// StatsProvider computes the dashboard summary.
type StatsProvider interface {
	Compute(ctx context.Context) (*stats.SyncStats, error)
}

// SyncLogReader serves the sync log.
type SyncLogReader interface {
	Query(filter synclog.Filter, limit, offset int) ([]entities.SyncLogEntry, int64, error)
}

// Requeuer moves failed records of one entity type back to pending.
type Requeuer interface {
	Requeue(ctx context.Context, ids []uint) (int64, error)
}

// --- Settings ---

// AutoSyncSettings reads and writes the auto-sync overrides.
type AutoSyncSettings interface {
	GetAutoSyncConfigInfo() settingsstore.AutoSyncConfigInfo
	UpdateAutoSync(update settingsstore.AutoSyncUpdate) (settingsstore.AutoSyncConfig, error)
	ClearAutoSyncSettings() error
}

// AutoSyncTimer is rescheduled after a settings change.
type AutoSyncTimer interface {
	Reschedule(ctx context.Context) error
	NextRunTime() *time.Time
	IsRunning() bool
}

// --- Audit trail ---

// AuditLog records and lists operator actions.
type AuditLog interface {
	LogSyncStart(actor audit.Actor, target string, jobs []entities.SyncJob, err error)
	LogSyncControl(actor audit.Actor, action string, job entities.SyncJob, err error)
	LogRequeue(actor audit.Actor, entityType entities.SyncEntityType, requested int, requeued int64, err error)
	LogSettings(actor audit.Actor, action, description string)
	GetEvents(limit, offset int) ([]entities.AuditEvent, int64, error)
	GetEventsByType(eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error)
	GetJobHistory(jobID string) ([]entities.AuditEvent, error)
}

// --- Task queue ---

// TaskStatusReader reports backlite task status.
type TaskStatusReader interface {
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// TaskRunner enqueues a task by type name.
type TaskRunner interface {
	Enqueue(ctx context.Context, taskType string) (string, error)
}
