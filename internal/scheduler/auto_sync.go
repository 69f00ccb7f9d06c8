package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/logging"
	"github.com/mrlokans/taxsync/internal/settingsstore"
	"github.com/mrlokans/taxsync/internal/syncengine"
)

// AutoSyncConfigSource resolves the effective auto-sync settings.
type AutoSyncConfigSource interface {
	GetAutoSyncConfig() settingsstore.AutoSyncConfig
}

// FullSyncStarter starts one job per idle entity type.
type FullSyncStarter interface {
	StartFull(ctx context.Context) ([]entities.SyncJob, error)
}

// AutoSyncScheduler starts a full sync every N minutes while enabled.
type AutoSyncScheduler struct {
	settings AutoSyncConfigSource
	starter  FullSyncStarter
	logger   *zap.SugaredLogger

	mu        sync.RWMutex
	cron      *cron.Cron
	entryID   cron.EntryID
	isRunning bool
	config    settingsstore.AutoSyncConfig
	ctx       context.Context
	stopped   chan struct{}
	lastRun   *time.Time
}

// NewAutoSyncScheduler creates a new scheduler instance
func NewAutoSyncScheduler(settings AutoSyncConfigSource, starter FullSyncStarter, logger *zap.SugaredLogger) *AutoSyncScheduler {
	return &AutoSyncScheduler{
		settings: settings,
		starter:  starter,
		logger:   logging.OrNop(logger),
		ctx:      context.Background(),
	}
}

// Start begins the timer if auto-sync is enabled. ctx bounds the lifetime of
// the timer; jobs it starts are owned by the sync engine.
func (s *AutoSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	config := s.settings.GetAutoSyncConfig()
	s.config = config
	if !config.Enabled {
		s.logger.Info("Auto-sync scheduler: disabled")
		return nil
	}

	schedule := config.Schedule()
	if err := settingsstore.ValidateCronSchedule(schedule); err != nil {
		return fmt.Errorf("invalid auto-sync schedule '%s': %w", schedule, err)
	}

	c := cron.New()
	entryID, err := c.AddFunc(schedule, s.runSync)
	if err != nil {
		return fmt.Errorf("failed to schedule auto-sync: %w", err)
	}
	s.cron = c
	s.entryID = entryID
	s.ctx = ctx
	stopped := make(chan struct{})
	s.stopped = stopped

	c.Start()
	s.isRunning = true

	s.logger.Infow("Auto-sync scheduler: started",
		"interval_minutes", config.IntervalMinutes,
		"next_run", nextRun(c, entryID),
	)

	// Monitor for context cancellation
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopped:
		}
	}()

	return nil
}

// Stop halts the timer. Jobs already started keep running.
func (s *AutoSyncScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	c := s.cron
	close(s.stopped)
	s.isRunning = false
	s.cron = nil
	s.mu.Unlock()

	// Stop accepting new ticks and wait for a tick in progress
	<-c.Stop().Done()
	s.logger.Info("Auto-sync scheduler: stopped")
}

// Reschedule re-reads the settings (call after a settings change).
func (s *AutoSyncScheduler) Reschedule(ctx context.Context) error {
	s.Stop()
	return s.Start(ctx)
}

// RunNow triggers an immediate tick.
func (s *AutoSyncScheduler) RunNow() {
	go s.runSync()
}

// IsRunning returns whether the timer is active
func (s *AutoSyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Config returns the settings the timer was last started with.
func (s *AutoSyncScheduler) Config() settingsstore.AutoSyncConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// NextRunTime returns when the next tick will occur, or nil when disabled.
func (s *AutoSyncScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	next := nextRun(s.cron, s.entryID)
	return &next
}

func nextRun(c *cron.Cron, id cron.EntryID) time.Time {
	entry := c.Entry(id)
	if entry.Next.IsZero() && entry.Schedule != nil {
		return entry.Schedule.Next(time.Now())
	}
	return entry.Next
}

// LastRunTime returns when the timer last fired.
func (s *AutoSyncScheduler) LastRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// runSync starts a full sync. Busy entity types are skipped by the engine;
// when every type is busy the tick starts nothing.
func (s *AutoSyncScheduler) runSync() {
	now := time.Now().UTC()
	s.mu.Lock()
	s.lastRun = &now
	ctx := s.ctx
	s.mu.Unlock()

	jobs, err := s.starter.StartFull(ctx)
	switch {
	case errors.Is(err, syncengine.ErrAlreadyRunning):
		s.logger.Debug("Auto-sync: skipped, every entity type is already syncing")
	case errors.Is(err, syncengine.ErrShuttingDown):
		s.logger.Debug("Auto-sync: skipped, sync engine is shutting down")
	case err != nil:
		s.logger.Errorw("Auto-sync: failed to start jobs", "error", err)
	case len(jobs) == 0:
		s.logger.Debug("Auto-sync: nothing started, every entity type is already syncing")
	default:
		ids := make([]string, 0, len(jobs))
		for _, job := range jobs {
			ids = append(ids, job.ID)
		}
		s.logger.Infow("Auto-sync: started jobs", "job_ids", ids)
	}
}
