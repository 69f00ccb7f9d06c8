package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/logging"
	"github.com/mrlokans/taxsync/internal/settingsstore"
)

// TaskEnqueuer adds a background task by type name.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, taskType string) (string, error)
}

// MaintenanceJob enqueues TaskType on Schedule (cron format or descriptor).
type MaintenanceJob struct {
	TaskType string
	Schedule string
}

// MaintenanceScheduler periodically enqueues background tasks such as
// invoice confirmation polls and audit retention cleanup.
type MaintenanceScheduler struct {
	enqueuer TaskEnqueuer
	jobs     []MaintenanceJob
	logger   *zap.SugaredLogger

	mu        sync.Mutex
	cron      *cron.Cron
	entries   map[string]cron.EntryID
	isRunning bool
}

func NewMaintenanceScheduler(enqueuer TaskEnqueuer, jobs []MaintenanceJob, logger *zap.SugaredLogger) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		enqueuer: enqueuer,
		jobs:     jobs,
		logger:   logging.OrNop(logger),
	}
}

// Start validates every schedule before registering any of them.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning || len(s.jobs) == 0 {
		return nil
	}

	for _, job := range s.jobs {
		if err := settingsstore.ValidateCronSchedule(job.Schedule); err != nil {
			return fmt.Errorf("invalid schedule '%s' for %s: %w", job.Schedule, job.TaskType, err)
		}
	}

	c := cron.New()
	entries := make(map[string]cron.EntryID, len(s.jobs))
	for _, job := range s.jobs {
		taskType := job.TaskType
		id, err := c.AddFunc(job.Schedule, func() { s.enqueue(ctx, taskType) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", taskType, err)
		}
		entries[taskType] = id
	}

	s.cron = c
	s.entries = entries
	s.isRunning = true
	c.Start()
	s.logger.Infow("Maintenance scheduler: started", "jobs", len(s.jobs))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a tick in progress.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	c := s.cron
	s.isRunning = false
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info("Maintenance scheduler: stopped")
}

// NextRuns reports the next enqueue time per task type.
func (s *MaintenanceScheduler) NextRuns() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time, len(s.entries))
	if !s.isRunning {
		return out
	}
	for taskType, id := range s.entries {
		out[taskType] = nextRun(s.cron, id)
	}
	return out
}

func (s *MaintenanceScheduler) enqueue(ctx context.Context, taskType string) {
	id, err := s.enqueuer.Enqueue(ctx, taskType)
	if err != nil {
		s.logger.Errorw("Maintenance: failed to enqueue task", "task_type", taskType, "error", err)
		return
	}
	s.logger.Debugw("Maintenance: task enqueued", "task_type", taskType, "task_id", id)
}
