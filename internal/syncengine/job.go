package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/mrlokans/taxsync/internal/entities"
)

const pendingActionPause = "pause"

// jobHandle owns the mutable state of one job. The executor goroutine updates
// progress; status transitions happen under the scheduler's per-type lock.
type jobHandle struct {
	seq uint64
	id  string

	ctx    context.Context // cancelled by Stop or engine shutdown
	cancel context.CancelFunc

	mu      sync.Mutex
	job     entities.SyncJob
	cursor  string
	pause   bool
	stopped bool
	done    chan struct{} // closed when the current worker exits
}

func newJobHandle(parent context.Context, seq uint64, job entities.SyncJob, cursor string) *jobHandle {
	ctx, cancel := context.WithCancel(parent)
	return &jobHandle{
		seq:    seq,
		id:     job.ID,
		ctx:    ctx,
		cancel: cancel,
		job:    job,
		cursor: cursor,
		done:   make(chan struct{}),
	}
}

// snapshot returns a copy of the job. The cursor is exposed only while the
// job is running or paused.
func (h *jobHandle) snapshot() entities.SyncJob {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *jobHandle) snapshotLocked() entities.SyncJob {
	job := h.job
	if job.EndTime != nil {
		end := *job.EndTime
		job.EndTime = &end
	}
	if job.Status == entities.SyncJobRunning || job.Status == entities.SyncJobPaused {
		job.Cursor = h.cursor
	} else {
		job.Cursor = ""
	}
	if h.pause && job.Status == entities.SyncJobRunning {
		job.PendingAction = pendingActionPause
	} else {
		job.PendingAction = ""
	}
	return job
}

func (h *jobHandle) entityType() entities.SyncEntityType {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job.EntityType
}

func (h *jobHandle) status() entities.SyncJobStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job.Status
}

func (h *jobHandle) currentCursor() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

func (h *jobHandle) setStatus(status entities.SyncJobStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.Status = status
}

func (h *jobHandle) requestPause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pause = true
}

func (h *jobHandle) pauseRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pause
}

func (h *jobHandle) markStopped() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}

func (h *jobHandle) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// progress returns processed and total counts.
func (h *jobHandle) progress() (processed, total int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job.RecordsProcessed, h.job.RecordsTotal
}

// applyBatch records a batch's counts and moves the cursor in one step.
func (h *jobHandle) applyBatch(res batchResult, next string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.RecordsProcessed += res.processed()
	h.job.RecordsSucceeded += res.succeeded
	h.job.RecordsFailed += res.failed
	if !res.aborted {
		h.cursor = next
	}
}

// resumeWorker marks the job running with a fresh done channel.
func (h *jobHandle) resumeWorker() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.Status = entities.SyncJobRunning
	h.pause = false
	h.done = make(chan struct{})
}

func (h *jobHandle) doneChan() chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// finishPaused parks the job at its cursor.
func (h *jobHandle) finishPaused() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.Status = entities.SyncJobPaused
	h.pause = false
}

// finishTerminal moves the job to completed or failed.
func (h *jobHandle) finishTerminal(status entities.SyncJobStatus, errMsg string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.Status = status
	h.job.ErrorMessage = errMsg
	h.job.EndTime = &at
	h.pause = false
}
