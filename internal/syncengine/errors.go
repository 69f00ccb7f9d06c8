package syncengine

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mrlokans/taxsync/internal/entities"
)

// Sentinel errors matched with errors.Is against an *OperationError.
var (
	ErrAlreadyRunning    = errors.New("a sync job for this entity type is already running")
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrNotFound          = errors.New("sync job not found")
	ErrInvalidTarget     = errors.New("unknown sync target")
	ErrShuttingDown      = errors.New("sync engine shutting down")
)

// Error codes exposed to API clients.
const (
	CodeAlreadyRunning    = "already_running"
	CodeInvalidTransition = "invalid_transition"
	CodeNotFound          = "not_found"
	CodeInvalidTarget     = "invalid_target"
	CodeShuttingDown      = "shutting_down"
)

// OperationError is returned synchronously by scheduler operations.
type OperationError struct {
	Code       string
	StatusCode int
	Message    string
	JobID      string
	EntityType entities.SyncEntityType
	Err        error
}

func (e *OperationError) Error() string {
	switch {
	case e.JobID != "":
		return fmt.Sprintf("%s: %s (job %s)", e.Code, e.Message, e.JobID)
	case e.EntityType != "":
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.EntityType)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func alreadyRunning(entityType entities.SyncEntityType, jobID string) *OperationError {
	return &OperationError{
		Code:       CodeAlreadyRunning,
		StatusCode: http.StatusConflict,
		Message:    fmt.Sprintf("a %s sync job is already running", entityType),
		JobID:      jobID,
		EntityType: entityType,
		Err:        ErrAlreadyRunning,
	}
}

func invalidTransition(job entities.SyncJob, action string) *OperationError {
	return &OperationError{
		Code:       CodeInvalidTransition,
		StatusCode: http.StatusConflict,
		Message:    fmt.Sprintf("cannot %s a job that is %s", action, job.Status),
		JobID:      job.ID,
		EntityType: job.EntityType,
		Err:        ErrInvalidTransition,
	}
}

func notFound(jobID string) *OperationError {
	return &OperationError{
		Code:       CodeNotFound,
		StatusCode: http.StatusNotFound,
		Message:    "sync job not found",
		JobID:      jobID,
		Err:        ErrNotFound,
	}
}

func invalidTarget(target string) *OperationError {
	return &OperationError{
		Code:       CodeInvalidTarget,
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf("unknown sync target %q, expected product, invoice or full", target),
		Err:        ErrInvalidTarget,
	}
}

func shuttingDown() *OperationError {
	return &OperationError{
		Code:       CodeShuttingDown,
		StatusCode: http.StatusServiceUnavailable,
		Message:    ErrShuttingDown.Error(),
		Err:        ErrShuttingDown,
	}
}
