// Package syncengine runs synchronization jobs against the tax authority.
//
// The Scheduler owns every job, enforces one active job per entity type and
// exposes the operator controls. Each running job has one worker goroutine
// driven by the Executor. Workers observe pause requests between batches
// and stop requests between records.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/adapter"
	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/logging"
)

// Scheduler coordinates sync jobs.
type Scheduler struct {
	adapters map[entities.SyncEntityType]adapter.EntityAdapter
	order    []entities.SyncEntityType
	executor *Executor
	logger   *zap.SugaredLogger
	now      func() time.Time

	// typeLocks serialize start/pause/resume/stop/finish per entity type.
	typeLocks map[entities.SyncEntityType]*sync.Mutex

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.RWMutex
	seq          uint64
	closing      bool
	jobs         map[string]*jobHandle
	busy         map[entities.SyncEntityType]*jobHandle
	lastFinished map[entities.SyncEntityType]time.Time
}

// NewScheduler creates a scheduler over the given adapters.
func NewScheduler(executor *Executor, adapters []adapter.EntityAdapter, logger *zap.SugaredLogger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	byType := adapter.ByType(adapters...)
	var order []entities.SyncEntityType
	locks := make(map[entities.SyncEntityType]*sync.Mutex)
	for _, t := range entities.AllSyncEntityTypes() {
		if _, ok := byType[t]; ok {
			order = append(order, t)
			locks[t] = &sync.Mutex{}
		}
	}

	return &Scheduler{
		adapters:     byType,
		order:        order,
		executor:     executor,
		logger:       logging.OrNop(logger),
		now:          time.Now,
		typeLocks:    locks,
		baseCtx:      ctx,
		cancel:       cancel,
		jobs:         make(map[string]*jobHandle),
		busy:         make(map[entities.SyncEntityType]*jobHandle),
		lastFinished: make(map[entities.SyncEntityType]time.Time),
	}
}

// EntityTypes lists the entity types this scheduler can sync, in start order.
func (s *Scheduler) EntityTypes() []entities.SyncEntityType {
	out := make([]entities.SyncEntityType, len(s.order))
	copy(out, s.order)
	return out
}

// Start parses a target ("product", "invoice" or "full") and starts the matching jobs.
func (s *Scheduler) Start(ctx context.Context, target string) ([]entities.SyncJob, error) {
	if strings.EqualFold(strings.TrimSpace(target), entities.SyncTargetFull) {
		return s.StartFull(ctx)
	}
	entityType, err := entities.ParseSyncEntityType(target)
	if err != nil {
		return nil, invalidTarget(target)
	}
	job, err := s.StartSync(ctx, entityType)
	if err != nil {
		return nil, err
	}
	return []entities.SyncJob{job}, nil
}

// StartSync starts a job for one entity type.
func (s *Scheduler) StartSync(ctx context.Context, entityType entities.SyncEntityType) (entities.SyncJob, error) {
	lock, ok := s.typeLocks[entityType]
	if !ok {
		return entities.SyncJob{}, invalidTarget(string(entityType))
	}
	lock.Lock()
	defer lock.Unlock()

	return s.startLocked(ctx, entityType)
}

// StartFull starts one job per entity type that is not already busy. All type
// locks are held for the duration so the result is atomic with respect to
// concurrent starts. Busy types are skipped; when every type is busy the
// result is an empty list. A type whose snapshot fails is skipped as well, and
// the error is returned only when no job could be started.
func (s *Scheduler) StartFull(ctx context.Context) ([]entities.SyncJob, error) {
	for _, t := range s.order {
		s.typeLocks[t].Lock()
	}
	defer func() {
		for i := len(s.order) - 1; i >= 0; i-- {
			s.typeLocks[s.order[i]].Unlock()
		}
	}()

	started := []entities.SyncJob{}
	var skipped []string
	var firstErr error
	for _, t := range s.order {
		job, err := s.startLocked(ctx, t)
		switch {
		case err == nil:
			started = append(started, job)
		case errors.Is(err, ErrAlreadyRunning):
			skipped = append(skipped, string(t))
		case errors.Is(err, ErrShuttingDown):
			return started, err
		default:
			s.logger.Errorw("Full sync: skipping entity type", "entity_type", t, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if len(started) == 0 && firstErr != nil {
		return nil, firstErr
	}
	if len(skipped) > 0 {
		s.logger.Infow("Full sync: busy entity types skipped", "entity_types", skipped)
	}
	return started, nil
}

// startLocked must be called with the type lock held.
func (s *Scheduler) startLocked(ctx context.Context, entityType entities.SyncEntityType) (entities.SyncJob, error) {
	s.mu.RLock()
	closing := s.closing
	busy := s.busy[entityType]
	s.mu.RUnlock()

	if closing {
		return entities.SyncJob{}, shuttingDown()
	}
	if busy != nil {
		return entities.SyncJob{}, alreadyRunning(entityType, busy.id)
	}

	a := s.adapters[entityType]
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return entities.SyncJob{}, fmt.Errorf("failed to snapshot %s records: %w", entityType, err)
	}

	job := entities.SyncJob{
		ID:           uuid.New().String(),
		EntityType:   entityType,
		Name:         entityType.DisplayName() + " sync",
		Status:       entities.SyncJobPending,
		RecordsTotal: snap.Total,
		StartTime:    s.now().UTC(),
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return entities.SyncJob{}, shuttingDown()
	}
	s.seq++
	h := newJobHandle(s.baseCtx, s.seq, job, snap.Cursor)
	s.jobs[job.ID] = h
	s.busy[entityType] = h
	s.wg.Add(1)
	s.mu.Unlock()

	s.executor.logJobEvent(job, entities.SyncOutcomePending,
		fmt.Sprintf("%s started: %d records eligible", job.Name, job.RecordsTotal))
	s.logger.Infow("Sync job started",
		"job_id", job.ID,
		"entity_type", entityType,
		"records_total", job.RecordsTotal,
	)

	go s.work(h, a, true)
	return h.snapshot(), nil
}

// work runs one worker lifetime of a job.
func (s *Scheduler) work(h *jobHandle, a adapter.EntityAdapter, fresh bool) {
	defer s.wg.Done()
	done := h.doneChan()
	defer close(done)

	if fresh {
		h.setStatus(entities.SyncJobRunning)
	}
	res := s.executor.run(h, a)
	s.finish(h, res)
}

// finish applies the worker's result under the type lock.
func (s *Scheduler) finish(h *jobHandle, res runResult) {
	entityType := h.entityType()
	lock := s.typeLocks[entityType]
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	if s.busy[entityType] == h {
		delete(s.busy, entityType)
	}
	s.mu.Unlock()

	// A stop that raced with the worker's own exit wins.
	if h.isStopped() {
		return
	}

	now := s.now().UTC()
	switch res.status {
	case runPaused:
		h.finishPaused()
		job := h.snapshot()
		s.executor.logJobEvent(job, entities.SyncOutcomePending,
			fmt.Sprintf("%s paused at %d of %d records", job.Name, job.RecordsProcessed, job.RecordsTotal))
		s.logger.Infow("Sync job paused", "job_id", job.ID, "processed", job.RecordsProcessed)

	case runCompleted:
		h.finishTerminal(entities.SyncJobCompleted, "", now)
		s.recordFinished(entityType, now)
		job := h.snapshot()
		s.executor.logJobCompleted(job)
		s.logger.Infow("Sync job completed",
			"job_id", job.ID,
			"entity_type", entityType,
			"succeeded", job.RecordsSucceeded,
			"failed", job.RecordsFailed,
		)

	case runFailed:
		msg := "unknown error"
		if res.err != nil {
			msg = res.err.Error()
		}
		h.finishTerminal(entities.SyncJobFailed, msg, now)
		s.recordFinished(entityType, now)
		job := h.snapshot()
		s.executor.logJobFailed(job, res.err)
		if isShutdown(res) {
			s.logger.Warnw("Sync job interrupted by shutdown", "job_id", job.ID)
		} else {
			s.logger.Errorw("Sync job failed", "job_id", job.ID, "error", res.err)
		}

	case runStopped:
		// Job already removed by Stop.
	}
}

func (s *Scheduler) recordFinished(entityType entities.SyncEntityType, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFinished[entityType] = at
}

// Pause asks a running job to pause at its next checkpoint.
func (s *Scheduler) Pause(jobID string) (entities.SyncJob, error) {
	h, unlock, err := s.lockJob(jobID)
	if err != nil {
		return entities.SyncJob{}, err
	}
	defer unlock()

	job := h.snapshot()
	if job.Status != entities.SyncJobRunning {
		return job, invalidTransition(job, "pause")
	}
	h.requestPause()
	s.logger.Infow("Sync job pause requested", "job_id", jobID)
	return h.snapshot(), nil
}

// Resume restarts a paused job from its cursor.
func (s *Scheduler) Resume(jobID string) (entities.SyncJob, error) {
	h, unlock, err := s.lockJob(jobID)
	if err != nil {
		return entities.SyncJob{}, err
	}
	defer unlock()

	job := h.snapshot()
	if job.Status != entities.SyncJobPaused {
		return job, invalidTransition(job, "resume")
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return job, shuttingDown()
	}
	if other := s.busy[job.EntityType]; other != nil {
		s.mu.Unlock()
		return job, alreadyRunning(job.EntityType, other.id)
	}
	s.busy[job.EntityType] = h
	s.wg.Add(1)
	s.mu.Unlock()

	h.resumeWorker()
	resumed := h.snapshot()
	s.executor.logJobEvent(resumed, entities.SyncOutcomePending,
		fmt.Sprintf("%s resumed at %d of %d records", resumed.Name, resumed.RecordsProcessed, resumed.RecordsTotal))
	s.logger.Infow("Sync job resumed", "job_id", jobID)

	go s.work(h, s.adapters[job.EntityType], false)
	return resumed, nil
}

// Stop removes a non-terminal job. A running worker finishes its current
// record and exits; the entity type stays busy until it has.
func (s *Scheduler) Stop(jobID string) (entities.SyncJob, error) {
	h, unlock, err := s.lockJob(jobID)
	if err != nil {
		return entities.SyncJob{}, err
	}
	defer unlock()

	job := h.snapshot()
	if job.Status.IsTerminal() {
		return job, invalidTransition(job, "stop")
	}

	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
	h.markStopped()

	s.executor.logJobEvent(job, entities.SyncOutcomeWarning,
		fmt.Sprintf("%s stopped at %d of %d records", job.Name, job.RecordsProcessed, job.RecordsTotal))
	s.logger.Infow("Sync job stopped", "job_id", jobID, "processed", job.RecordsProcessed)
	return job, nil
}

// Clear removes a completed or failed job from the job list.
func (s *Scheduler) Clear(jobID string) error {
	h, unlock, err := s.lockJob(jobID)
	if err != nil {
		return err
	}
	defer unlock()

	job := h.snapshot()
	if !job.Status.IsTerminal() {
		return invalidTransition(job, "clear")
	}
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
	return nil
}

// lockJob finds a job and takes its type lock, re-checking that the job still
// exists once the lock is held.
func (s *Scheduler) lockJob(jobID string) (*jobHandle, func(), error) {
	s.mu.RLock()
	h, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, notFound(jobID)
	}

	lock := s.typeLocks[h.entityType()]
	lock.Lock()

	s.mu.RLock()
	_, ok = s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		lock.Unlock()
		return nil, nil, notFound(jobID)
	}
	return h, lock.Unlock, nil
}

// Job returns a snapshot of one job.
func (s *Scheduler) Job(jobID string) (entities.SyncJob, error) {
	s.mu.RLock()
	h, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return entities.SyncJob{}, notFound(jobID)
	}
	return h.snapshot(), nil
}

// Jobs returns snapshots of all known jobs, newest first.
func (s *Scheduler) Jobs() []entities.SyncJob {
	s.mu.RLock()
	handles := make([]*jobHandle, 0, len(s.jobs))
	for _, h := range s.jobs {
		handles = append(handles, h)
	}
	s.mu.RUnlock()

	sort.Slice(handles, func(i, j int) bool { return handles[i].seq > handles[j].seq })

	jobs := make([]entities.SyncJob, len(handles))
	for i, h := range handles {
		jobs[i] = h.snapshot()
	}
	return jobs
}

// ActiveJob returns the newest non-terminal job of a type.
func (s *Scheduler) ActiveJob(entityType entities.SyncEntityType) (entities.SyncJob, bool) {
	for _, job := range s.Jobs() {
		if job.EntityType == entityType && !job.Status.IsTerminal() {
			return job, true
		}
	}
	return entities.SyncJob{}, false
}

// IsBusy reports whether a worker currently holds the type's slot.
func (s *Scheduler) IsBusy(entityType entities.SyncEntityType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy[entityType] != nil
}

// LastFinishedAt returns when a job of the type last completed or failed in this process.
func (s *Scheduler) LastFinishedAt(entityType entities.SyncEntityType) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastFinished[entityType]
	return t, ok
}

// Wait blocks until the job is terminal, paused or removed, or ctx ends.
func (s *Scheduler) Wait(ctx context.Context, jobID string) (entities.SyncJob, error) {
	s.mu.RLock()
	h, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return entities.SyncJob{}, notFound(jobID)
	}

	for {
		done := h.doneChan()
		select {
		case <-ctx.Done():
			return h.snapshot(), ctx.Err()
		case <-done:
		}
		job := h.snapshot()
		if job.Status.IsTerminal() || job.Status == entities.SyncJobPaused || h.isStopped() {
			return job, nil
		}
	}
}

// Shutdown stops accepting work, interrupts running jobs at their next
// checkpoint and waits for workers to exit. Paused jobs are failed.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.mu.Unlock()

	s.cancel()

	for _, job := range s.Jobs() {
		if job.Status != entities.SyncJobPaused {
			continue
		}
		lock := s.typeLocks[job.EntityType]
		lock.Lock()
		s.mu.RLock()
		h, ok := s.jobs[job.ID]
		s.mu.RUnlock()
		if ok && h.status() == entities.SyncJobPaused {
			now := s.now().UTC()
			h.finishTerminal(entities.SyncJobFailed, ErrShuttingDown.Error(), now)
			s.executor.logJobFailed(h.snapshot(), ErrShuttingDown)
		}
		lock.Unlock()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sync workers: %w", ctx.Err())
	}
}
