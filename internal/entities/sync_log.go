package entities

import "time"

type SyncOutcome string

const (
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomeError   SyncOutcome = "error"
	SyncOutcomeWarning SyncOutcome = "warning"
	SyncOutcomePending SyncOutcome = "pending"
)

func (o SyncOutcome) Valid() bool {
	switch o {
	case SyncOutcomeSuccess, SyncOutcomeError, SyncOutcomeWarning, SyncOutcomePending:
		return true
	}
	return false
}

// SyncLogEntry is an immutable audit record of a sync step or batch.
type SyncLogEntry struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Timestamp        time.Time      `gorm:"index" json:"timestamp"`
	EntityType       SyncEntityType `gorm:"index;size:20" json:"entity_type"`
	JobID            string         `gorm:"index;size:36" json:"job_id,omitempty"`
	Outcome          SyncOutcome    `gorm:"index;size:20" json:"outcome"`
	Message          string         `gorm:"size:500" json:"message"`
	Details          string         `gorm:"type:text" json:"details,omitempty"`
	RecordsProcessed int            `json:"records_processed"`
	RecordsTotal     int            `json:"records_total"`
	DurationSeconds  float64        `json:"duration_seconds"`
}

func (SyncLogEntry) TableName() string {
	return "sync_log_entries"
}
