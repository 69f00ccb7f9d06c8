// Package audit records operator actions such as starting or stopping sync
// jobs, requeueing records and changing settings.
package audit

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/database/audit"
	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/logging"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo   *audit.Repository
	logger *zap.SugaredLogger
	wg     sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository, logger *zap.SugaredLogger) *Service {
	return &Service{repo: repo, logger: logging.OrNop(logger)}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(event); err != nil {
			s.logger.Warnw("Failed to log audit event", "action", event.Action, "error", err)
		}
	}()
}

// Wait blocks until every pending LogAsync write has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Actor identifies who triggered an action.
type Actor struct {
	IPAddress string
}

// LogSyncControl records start/pause/resume/stop/clear requests.
func (s *Service) LogSyncControl(actor Actor, action string, job entities.SyncJob, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventSyncControl,
		Action:      action,
		Description: describeJob(action, job),
		EntityType:  string(job.EntityType),
		JobID:       job.ID,
		IPAddress:   actor.IPAddress,
		Status:      entities.AuditStatusSuccess,
	}
	s.finish(event, err)
}

// LogSyncStart records a start request, which may create several jobs.
func (s *Service) LogSyncStart(actor Actor, target string, jobs []entities.SyncJob, err error) {
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventSyncControl,
		Action:      "sync_start",
		Description: "Sync requested for " + target,
		EntityType:  target,
		IPAddress:   actor.IPAddress,
		Status:      entities.AuditStatusSuccess,
	}
	if len(ids) == 1 {
		event.JobID = ids[0]
	}
	event.Metadata = marshalMetadata(map[string]any{"job_ids": ids})
	s.finish(event, err)
}

// LogRequeue records a manual requeue of failed records.
func (s *Service) LogRequeue(actor Actor, entityType entities.SyncEntityType, requested int, requeued int64, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventRequeue,
		Action:      "requeue",
		Description: "Requeued failed " + string(entityType) + " records",
		EntityType:  string(entityType),
		IPAddress:   actor.IPAddress,
		Status:      entities.AuditStatusSuccess,
	}
	event.Metadata = marshalMetadata(map[string]any{
		"requested": requested,
		"requeued":  requeued,
	})
	s.finish(event, err)
}

// LogSettings records a settings change event.
func (s *Service) LogSettings(actor Actor, action, description string) {
	s.LogAsync(&entities.AuditEvent{
		EventType:   entities.AuditEventSettings,
		Action:      action,
		Description: description,
		IPAddress:   actor.IPAddress,
		Status:      entities.AuditStatusSuccess,
	})
}

// LogMaintenance records a background task run.
func (s *Service) LogMaintenance(action, description string, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventMaintenance,
		Action:      action,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	}
	s.finish(event, err)
}

func (s *Service) finish(event *entities.AuditEvent, err error) {
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(limit, offset)
}

// GetEventsByType retrieves audit events filtered by type.
func (s *Service) GetEventsByType(eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEventsByType(eventType, limit, offset)
}

// GetJobHistory returns the operator actions recorded for one sync job.
func (s *Service) GetJobHistory(jobID string) ([]entities.AuditEvent, error) {
	return s.repo.GetEventsForJob(jobID)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func describeJob(action string, job entities.SyncJob) string {
	name := job.Name
	if name == "" {
		name = "sync job"
	}
	if job.ID == "" {
		return action + " " + name
	}
	return action + " " + name + " (" + job.ID + ")"
}

func marshalMetadata(md map[string]any) string {
	b, err := json.Marshal(md)
	if err != nil {
		return ""
	}
	return string(b)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
