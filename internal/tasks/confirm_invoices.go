package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/logging"
	"github.com/mrlokans/taxsync/internal/retry"
	"github.com/mrlokans/taxsync/internal/taxauthority"
)

// ConfirmationStore is the slice of the invoice repository the confirmation poll needs.
type ConfirmationStore interface {
	ListAwaitingConfirmation(limit int) ([]entities.Invoice, error)
	MarkConfirmed(id uint, at time.Time) error
	MarkRejectedAfterSubmission(id uint, reason string) error
}

// StatusChecker asks the tax authority about a submitted document.
type StatusChecker interface {
	CheckStatus(ctx context.Context, externalRef string) (*taxauthority.StatusResult, error)
}

// ConfirmInvoicesTask polls the tax authority for the verdict on submitted invoices.
type ConfirmInvoicesTask struct {
	BatchSize int `json:"batch_size"`
}

// Config returns the queue configuration for confirmation polls.
func (t ConfirmInvoicesTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        QueueConfirmInvoices,
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ConfirmationResult summarizes one poll.
type ConfirmationResult struct {
	Checked   int
	Confirmed int
	Rejected  int
	Pending   int
	Errors    int
}

func (r ConfirmationResult) String() string {
	return fmt.Sprintf("checked %d invoices: %d confirmed, %d rejected, %d pending, %d errors",
		r.Checked, r.Confirmed, r.Rejected, r.Pending, r.Errors)
}

// ConfirmInvoices checks each awaiting invoice once. Per-invoice transient
// failures are counted and skipped; the next poll picks the invoice up again.
// Permanent failures such as bad credentials abort the poll.
func ConfirmInvoices(ctx context.Context, store ConfirmationStore, checker StatusChecker, batchSize int) (ConfirmationResult, error) {
	var res ConfirmationResult

	pending, err := store.ListAwaitingConfirmation(batchSize)
	if err != nil {
		return res, fmt.Errorf("failed to list invoices awaiting confirmation: %w", err)
	}

	for _, inv := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++

		status, err := checker.CheckStatus(ctx, inv.ExternalRef)
		if err != nil {
			if errors.Is(err, taxauthority.ErrUnauthorized) || !retry.IsTransient(err) {
				return res, fmt.Errorf("check status of %s: %w", inv.Describe(), err)
			}
			res.Errors++
			continue
		}

		switch status.Status {
		case taxauthority.StatusConfirmed:
			at := status.UpdatedAt
			if at.IsZero() {
				at = time.Now().UTC()
			}
			if err := store.MarkConfirmed(inv.ID, at); err != nil {
				return res, fmt.Errorf("failed to mark %s confirmed: %w", inv.Describe(), err)
			}
			res.Confirmed++
		case taxauthority.StatusRejected:
			reason := status.Reason
			if reason == "" {
				reason = "rejected by tax authority after submission"
			}
			if err := store.MarkRejectedAfterSubmission(inv.ID, reason); err != nil {
				return res, fmt.Errorf("failed to mark %s rejected: %w", inv.Describe(), err)
			}
			res.Rejected++
		default:
			res.Pending++
		}
	}

	if res.Checked > 0 && res.Errors == res.Checked {
		return res, fmt.Errorf("every status check failed (%d invoices)", res.Errors)
	}
	return res, nil
}

// ConfirmInvoicesProcessor creates a processor function for ConfirmInvoicesTask.
func ConfirmInvoicesProcessor(store ConfirmationStore, checker StatusChecker, reporter MaintenanceReporter, logger *zap.SugaredLogger) backlite.QueueProcessor[ConfirmInvoicesTask] {
	logger = logging.OrNop(logger)
	return func(ctx context.Context, task ConfirmInvoicesTask) error {
		res, err := ConfirmInvoices(ctx, store, checker, task.BatchSize)
		if reporter != nil && (res.Checked > 0 || err != nil) {
			reporter.LogMaintenance(QueueConfirmInvoices, "Confirmation poll "+res.String(), err)
		}
		if err != nil {
			logger.Warnw("Invoice confirmation poll failed", "error", err, "result", res.String())
			return err
		}
		logger.Infow("Invoice confirmation poll finished",
			"checked", res.Checked,
			"confirmed", res.Confirmed,
			"rejected", res.Rejected,
			"pending", res.Pending,
			"errors", res.Errors,
		)
		return nil
	}
}

// NewConfirmInvoicesQueue creates a backlite queue for confirmation polls.
func NewConfirmInvoicesQueue(store ConfirmationStore, checker StatusChecker, reporter MaintenanceReporter, logger *zap.SugaredLogger) backlite.Queue {
	return backlite.NewQueue(ConfirmInvoicesProcessor(store, checker, reporter, logger))
}
