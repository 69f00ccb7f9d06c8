package tasks

import (
	"context"
	"fmt"

	"github.com/mikestefanello/backlite"
)

// Queue names, also used as task type identifiers on the HTTP API.
const (
	QueueConfirmInvoices    = "confirm_invoices"
	QueueCleanupAuditEvents = "cleanup_audit_events"
)

// TaskType describes a task that can be triggered on demand.
type TaskType struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Queue       string `json:"queue"`
}

// TaskTypes lists the task types that can be triggered.
func TaskTypes() []TaskType {
	return []TaskType{
		{
			Type:        QueueConfirmInvoices,
			Description: "Poll the tax authority for the verdict on submitted invoices",
			Queue:       QueueConfirmInvoices,
		},
		{
			Type:        QueueCleanupAuditEvents,
			Description: "Delete operator audit events past the retention period",
			Queue:       QueueCleanupAuditEvents,
		},
	}
}

// Defaults carries the parameters used when a task is enqueued without overrides.
type Defaults struct {
	ConfirmBatchSize   int
	AuditRetentionDays int
}

// ErrUnknownTaskType is returned by Enqueuer.Enqueue for unregistered task types.
type ErrUnknownTaskType struct {
	Type string
}

func (e ErrUnknownTaskType) Error() string {
	return fmt.Sprintf("unknown task type: %s", e.Type)
}

// Adder enqueues backlite tasks; *Client satisfies it.
type Adder interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
}

// Enqueuer builds tasks by type name and adds them to the queue.
type Enqueuer struct {
	adder    Adder
	defaults Defaults
}

func NewEnqueuer(adder Adder, defaults Defaults) *Enqueuer {
	return &Enqueuer{adder: adder, defaults: defaults}
}

// NewTask builds the task for a type name.
func (e *Enqueuer) NewTask(taskType string) (backlite.Task, error) {
	switch taskType {
	case QueueConfirmInvoices:
		return ConfirmInvoicesTask{BatchSize: e.defaults.ConfirmBatchSize}, nil
	case QueueCleanupAuditEvents:
		return CleanupAuditEventsTask{RetentionDays: e.defaults.AuditRetentionDays}, nil
	default:
		return nil, ErrUnknownTaskType{Type: taskType}
	}
}

// Enqueue adds one task of the given type and returns its id.
func (e *Enqueuer) Enqueue(ctx context.Context, taskType string) (string, error) {
	task, err := e.NewTask(taskType)
	if err != nil {
		return "", err
	}
	ids, err := e.adder.Add(task).Ctx(ctx).Save()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}
	return ids[0], nil
}
