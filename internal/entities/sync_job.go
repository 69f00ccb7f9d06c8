package entities

import "time"

type SyncJobStatus string

const (
	SyncJobPending   SyncJobStatus = "pending"
	SyncJobRunning   SyncJobStatus = "running"
	SyncJobPaused    SyncJobStatus = "paused"
	SyncJobCompleted SyncJobStatus = "completed"
	SyncJobFailed    SyncJobStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s SyncJobStatus) IsTerminal() bool {
	switch s {
	case SyncJobCompleted, SyncJobFailed:
		return true
	case SyncJobPending, SyncJobRunning, SyncJobPaused:
		return false
	}
	return false
}

// IsActive reports whether the job holds its entity type's exclusive slot.
func (s SyncJobStatus) IsActive() bool {
	switch s {
	case SyncJobPending, SyncJobRunning:
		return true
	case SyncJobPaused, SyncJobCompleted, SyncJobFailed:
		return false
	}
	return false
}

// SyncJob is one in-flight or recently finished synchronization run.
// It lives in memory only; the sync log is the durable record.
type SyncJob struct {
	ID               string         `json:"id"`
	EntityType       SyncEntityType `json:"entity_type"`
	Name             string         `json:"name"`
	Status           SyncJobStatus  `json:"status"`
	RecordsProcessed int            `json:"records_processed"`
	RecordsTotal     int            `json:"records_total"`
	RecordsSucceeded int            `json:"records_succeeded"`
	RecordsFailed    int            `json:"records_failed"`
	StartTime        time.Time      `json:"start_time"`
	EndTime          *time.Time     `json:"end_time,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	Cursor           string         `json:"cursor,omitempty"`
	PendingAction    string         `json:"pending_action,omitempty"` // "pause" while waiting for a checkpoint
}

// SuccessRate is the share of processed records that were accepted.
func (j SyncJob) SuccessRate() float64 {
	if j.RecordsProcessed == 0 {
		return 0
	}
	return float64(j.RecordsSucceeded) / float64(j.RecordsProcessed)
}
