package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/adapter"
	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/logging"
	"github.com/mrlokans/taxsync/internal/retry"
)

// LogSink receives sync log entries. synclog.Repository implements it.
type LogSink interface {
	Append(entry *entities.SyncLogEntry) error
}

// Sleeper waits between retry attempts. It returns early with an error when ctx ends.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper sleeps on a real timer.
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
})

// ExecutorConfig tunes batch processing.
type ExecutorConfig struct {
	BatchSize     int
	Policy        retry.Policy
	SubmitTimeout time.Duration
	Sleeper       Sleeper
}

// Executor runs one job's batches. It is shared by all jobs and keeps no per-job state.
type Executor struct {
	cfg    ExecutorConfig
	sink   LogSink
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewExecutor(cfg ExecutorConfig, sink LogSink, logger *zap.SugaredLogger) *Executor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = retry.DefaultPolicy()
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 20 * time.Second
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = TimerSleeper
	}
	return &Executor{
		cfg:    cfg,
		sink:   sink,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

type runStatus int

const (
	runCompleted runStatus = iota
	runFailed
	runPaused
	runStopped
)

type runResult struct {
	status runStatus
	err    error
}

type recordResult int

const (
	recordSynced recordResult = iota
	recordFailed
	recordInterrupted
)

type batchResult struct {
	succeeded int
	failed    int
	size      int
	aborted   bool
	duration  time.Duration
}

func (r batchResult) processed() int {
	return r.succeeded + r.failed
}

// run drives a job from its current cursor until it completes, fails, or
// observes a pause or stop at a checkpoint.
func (e *Executor) run(h *jobHandle, a adapter.EntityAdapter) runResult {
	ctx := h.ctx
	for {
		// Checkpoint: signals are honoured only between batches.
		switch {
		case h.isStopped():
			return runResult{status: runStopped}
		case ctx.Err() != nil:
			return runResult{status: runFailed, err: ErrShuttingDown}
		case h.pauseRequested():
			return runResult{status: runPaused}
		}

		processed, total := h.progress()
		remaining := total - processed
		if remaining <= 0 {
			return runResult{status: runCompleted}
		}

		limit := e.cfg.BatchSize
		if limit > remaining {
			limit = remaining
		}

		batch, next, err := a.EligibleBatch(ctx, h.currentCursor(), limit)
		if err != nil {
			if h.isStopped() {
				return runResult{status: runStopped}
			}
			if ctx.Err() != nil {
				return runResult{status: runFailed, err: ErrShuttingDown}
			}
			return runResult{status: runFailed, err: fmt.Errorf("failed to load batch: %w", err)}
		}
		if len(batch) == 0 {
			return runResult{status: runCompleted}
		}
		if len(batch) > remaining {
			batch = batch[:remaining]
		}

		res, err := e.processBatch(ctx, h, a, batch)
		if err != nil {
			return runResult{status: runFailed, err: err}
		}
		h.applyBatch(res, next)
		e.logBatch(h, res)
	}
}

func (e *Executor) processBatch(ctx context.Context, h *jobHandle, a adapter.EntityAdapter, batch []adapter.Record) (batchResult, error) {
	start := e.now()
	res := batchResult{size: len(batch)}

	for _, rec := range batch {
		if ctx.Err() != nil {
			res.aborted = true
			break
		}

		outcome, err := e.processRecord(ctx, h, a, rec)
		if err != nil {
			return res, err
		}
		switch outcome {
		case recordSynced:
			res.succeeded++
		case recordFailed:
			res.failed++
		case recordInterrupted:
			res.aborted = true
		}
		if res.aborted {
			break
		}
	}

	res.duration = e.now().Sub(start)
	return res, nil
}

// processRecord validates and submits one record. Write-back failures and
// submission faults are returned as errors; everything else is a record-level outcome.
func (e *Executor) processRecord(ctx context.Context, h *jobHandle, a adapter.EntityAdapter, rec adapter.Record) (recordResult, error) {
	// Write-back must finish even if the job is stopped meanwhile.
	writeCtx := context.WithoutCancel(ctx)

	if v := a.Validate(rec); !v.Valid() {
		reason := "validation failed: " + v.Reason()
		return recordFailed, e.fail(writeCtx, h, a, rec, "Record failed validation", reason, 0)
	}

	for attempt := 1; ; attempt++ {
		submitCtx, cancel := context.WithTimeout(writeCtx, e.cfg.SubmitTimeout)
		outcome := a.Submit(submitCtx, rec)
		cancel()

		switch outcome.Kind {
		case adapter.OutcomeAccepted:
			if err := a.MarkSynced(writeCtx, rec, outcome.ExternalRef, attempt); err != nil {
				return recordSynced, fmt.Errorf("failed to mark %s synced: %w", rec.Describe(), err)
			}
			return recordSynced, nil

		case adapter.OutcomeRejected:
			return recordFailed, e.fail(writeCtx, h, a, rec, "Record rejected by tax authority", "rejected: "+outcome.Reason, attempt)

		case adapter.OutcomeFault:
			return recordInterrupted, fmt.Errorf("failed to submit %s: %w", rec.Describe(), outcome.Err)

		case adapter.OutcomeTransientFailure:
			decision := e.cfg.Policy.Classify(outcome.Err, attempt)
			if decision.Permanent() {
				reason := "permanent failure: " + outcome.Reason
				if decision.Exhausted {
					reason = fmt.Sprintf("transient failure persisted after %d attempts: %s", attempt, outcome.Reason)
				}
				return recordFailed, e.fail(writeCtx, h, a, rec, "Record failed after retries", reason, attempt)
			}

			e.logger.Debugw("Retrying submission",
				"job_id", h.id,
				"record", rec.Describe(),
				"attempt", attempt,
				"delay", decision.Delay,
				"error", outcome.Reason,
			)
			if err := e.cfg.Sleeper.Sleep(ctx, decision.Delay); err != nil {
				// Interrupted by stop or shutdown; the record stays pending.
				return recordInterrupted, nil
			}

		default:
			return recordFailed, fmt.Errorf("unknown submission outcome %v for %s", outcome.Kind, rec.Describe())
		}
	}
}

func (e *Executor) fail(ctx context.Context, h *jobHandle, a adapter.EntityAdapter, rec adapter.Record, message, reason string, attempts int) error {
	if err := a.MarkFailed(ctx, rec, reason, attempts); err != nil {
		return fmt.Errorf("failed to mark %s failed: %w", rec.Describe(), err)
	}
	job := h.snapshot()
	e.append(&entities.SyncLogEntry{
		EntityType:       job.EntityType,
		JobID:            job.ID,
		Outcome:          entities.SyncOutcomeError,
		Message:          message,
		Details:          rec.Describe() + ": " + reason,
		RecordsProcessed: 1,
		RecordsTotal:     1,
	})
	return nil
}

func (e *Executor) logBatch(h *jobHandle, res batchResult) {
	job := h.snapshot()

	outcome := entities.SyncOutcomeSuccess
	message := fmt.Sprintf("Batch completed: %d synced, %d failed", res.succeeded, res.failed)
	switch {
	case res.aborted:
		outcome = entities.SyncOutcomeWarning
		message = fmt.Sprintf("Batch aborted: %d of %d records processed (%d synced, %d failed)",
			res.processed(), res.size, res.succeeded, res.failed)
	case res.failed > 0 && res.succeeded == 0:
		outcome = entities.SyncOutcomeError
		message = fmt.Sprintf("Batch failed: all %d records failed", res.failed)
	case res.failed > 0:
		outcome = entities.SyncOutcomeWarning
	}

	e.append(&entities.SyncLogEntry{
		EntityType:       job.EntityType,
		JobID:            job.ID,
		Outcome:          outcome,
		Message:          message,
		Details:          fmt.Sprintf("job progress %d/%d", job.RecordsProcessed, job.RecordsTotal),
		RecordsProcessed: res.processed(),
		RecordsTotal:     res.size,
		DurationSeconds:  res.duration.Seconds(),
	})
}

func (e *Executor) logJobCompleted(job entities.SyncJob) {
	outcome := entities.SyncOutcomeSuccess
	if job.RecordsFailed > 0 {
		outcome = entities.SyncOutcomeWarning
	}
	e.append(&entities.SyncLogEntry{
		EntityType: job.EntityType,
		JobID:      job.ID,
		Outcome:    outcome,
		Message: fmt.Sprintf("%s completed: %d of %d records synced, %d failed",
			job.Name, job.RecordsSucceeded, job.RecordsTotal, job.RecordsFailed),
		RecordsProcessed: job.RecordsProcessed,
		RecordsTotal:     job.RecordsTotal,
		DurationSeconds:  e.now().Sub(job.StartTime).Seconds(),
	})
}

func (e *Executor) logJobFailed(job entities.SyncJob, err error) {
	e.append(&entities.SyncLogEntry{
		EntityType:       job.EntityType,
		JobID:            job.ID,
		Outcome:          entities.SyncOutcomeError,
		Message:          fmt.Sprintf("%s failed", job.Name),
		Details:          err.Error(),
		RecordsProcessed: job.RecordsProcessed,
		RecordsTotal:     job.RecordsTotal,
		DurationSeconds:  e.now().Sub(job.StartTime).Seconds(),
	})
}

func (e *Executor) logJobEvent(job entities.SyncJob, outcome entities.SyncOutcome, message string) {
	e.append(&entities.SyncLogEntry{
		EntityType:       job.EntityType,
		JobID:            job.ID,
		Outcome:          outcome,
		Message:          message,
		RecordsProcessed: job.RecordsProcessed,
		RecordsTotal:     job.RecordsTotal,
	})
}

func (e *Executor) append(entry *entities.SyncLogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = e.now().UTC()
	}
	if e.sink == nil {
		return
	}
	if err := e.sink.Append(entry); err != nil {
		e.logger.Errorw("Failed to append sync log entry",
			"job_id", entry.JobID,
			"message", entry.Message,
			"error", err,
		)
	}
}

// isShutdown reports whether a run result came from engine shutdown.
func isShutdown(res runResult) bool {
	return res.status == runFailed && errors.Is(res.err, ErrShuttingDown)
}
