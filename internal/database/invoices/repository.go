// Package invoices provides database operations for locally held invoices
// and their confirmation state at the tax authority.
package invoices

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/taxsync/internal/database/records"
	"github.com/mrlokans/taxsync/internal/entities"
)

// Repository handles all invoice database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new invoices repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts invoices together with their lines.
func (r *Repository) Create(invoices ...*entities.Invoice) error {
	for _, inv := range invoices {
		if inv.SyncState == "" {
			inv.SyncState = entities.RecordSyncPending
		}
	}
	return r.db.Create(invoices).Error
}

// GetByID retrieves an invoice with its lines.
func (r *Repository) GetByID(id uint) (*entities.Invoice, error) {
	var invoice entities.Invoice
	if err := r.db.Preload("Lines").First(&invoice, id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// EligibleSnapshot counts pending invoices and returns the highest pending ID.
func (r *Repository) EligibleSnapshot() (int64, uint, error) {
	return records.Snapshot(r.db, &entities.Invoice{})
}

// ListEligible returns pending invoices with after < ID <= until, in ID order.
func (r *Repository) ListEligible(after, until uint, limit int) ([]entities.Invoice, error) {
	var result []entities.Invoice
	err := records.EligibleQuery(r.db.Preload("Lines"), after, until, limit).Find(&result).Error
	return result, err
}

// MarkSynced stores the external reference and awaits confirmation.
func (r *Repository) MarkSynced(id uint, externalRef string, attempts int, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := records.MarkSynced(tx, &entities.Invoice{}, id, externalRef, attempts, at); err != nil {
			return err
		}
		return tx.Model(&entities.Invoice{}).Where("id = ?", id).Updates(map[string]any{
			"confirmation_status": entities.ConfirmationPending,
			"confirmed_at":        nil,
		}).Error
	})
}

// MarkFailed excludes an invoice from future batches until it is requeued.
func (r *Repository) MarkFailed(id uint, reason string, attempts int) error {
	return records.MarkFailed(r.db, &entities.Invoice{}, id, reason, attempts)
}

// CountByState tallies invoices per sync state.
func (r *Repository) CountByState() (entities.SyncStateCounts, error) {
	return records.CountByState(r.db, &entities.Invoice{})
}

// Requeue moves failed invoices back to pending and clears their confirmation.
func (r *Repository) Requeue(ids []uint) (int64, error) {
	var affected int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		n, err := records.Requeue(tx, &entities.Invoice{}, ids)
		if err != nil {
			return err
		}
		affected = n
		query := tx.Model(&entities.Invoice{}).
			Where("sync_state = ? AND confirmation_status = ?", entities.RecordSyncPending, entities.ConfirmationRejected)
		if len(ids) > 0 {
			query = query.Where("id IN ?", ids)
		}
		return query.Updates(map[string]any{
			"confirmation_status": entities.ConfirmationNone,
			"external_ref":        "",
		}).Error
	})
	return affected, err
}

// ListAwaitingConfirmation returns submitted invoices whose confirmation is still pending,
// oldest submission first.
func (r *Repository) ListAwaitingConfirmation(limit int) ([]entities.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	var result []entities.Invoice
	err := r.db.Where("sync_state = ? AND confirmation_status = ?", entities.RecordSyncSynced, entities.ConfirmationPending).
		Order("synced_at ASC, id ASC").
		Limit(limit).
		Find(&result).Error
	return result, err
}

// MarkConfirmed records the tax authority's confirmation.
func (r *Repository) MarkConfirmed(id uint, at time.Time) error {
	return r.db.Model(&entities.Invoice{}).Where("id = ?", id).Updates(map[string]any{
		"confirmation_status": entities.ConfirmationConfirmed,
		"confirmed_at":        at,
	}).Error
}

// MarkRejectedAfterSubmission records a late rejection; the invoice becomes failed
// so an operator can correct and requeue it.
func (r *Repository) MarkRejectedAfterSubmission(id uint, reason string) error {
	if len(reason) > 500 {
		reason = reason[:497] + "..."
	}
	return r.db.Model(&entities.Invoice{}).Where("id = ?", id).Updates(map[string]any{
		"confirmation_status": entities.ConfirmationRejected,
		"sync_state":          entities.RecordSyncFailed,
		"last_sync_error":     reason,
	}).Error
}
