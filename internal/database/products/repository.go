// Package products provides database operations for locally held products.
//
// # Usage
//
//	repo := products.NewRepository(db)
//	batch, err := repo.ListEligible(0, maxID, 25)
package products

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/taxsync/internal/database/records"
	"github.com/mrlokans/taxsync/internal/entities"
)

// Repository handles all product database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new products repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts products, defaulting their sync state to pending.
func (r *Repository) Create(products ...*entities.Product) error {
	for _, p := range products {
		if p.SyncState == "" {
			p.SyncState = entities.RecordSyncPending
		}
	}
	return r.db.Create(products).Error
}

// GetByID retrieves a product by ID.
func (r *Repository) GetByID(id uint) (*entities.Product, error) {
	var product entities.Product
	if err := r.db.First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// EligibleSnapshot counts pending products and returns the highest pending ID.
func (r *Repository) EligibleSnapshot() (int64, uint, error) {
	return records.Snapshot(r.db, &entities.Product{})
}

// ListEligible returns pending products with after < ID <= until, in ID order.
func (r *Repository) ListEligible(after, until uint, limit int) ([]entities.Product, error) {
	var result []entities.Product
	err := records.EligibleQuery(r.db, after, until, limit).Find(&result).Error
	return result, err
}

// MarkSynced stores the external reference of an accepted product.
func (r *Repository) MarkSynced(id uint, externalRef string, attempts int, at time.Time) error {
	return records.MarkSynced(r.db, &entities.Product{}, id, externalRef, attempts, at)
}

// MarkFailed excludes a product from future batches until it is requeued.
func (r *Repository) MarkFailed(id uint, reason string, attempts int) error {
	return records.MarkFailed(r.db, &entities.Product{}, id, reason, attempts)
}

// CountByState tallies products per sync state.
func (r *Repository) CountByState() (entities.SyncStateCounts, error) {
	return records.CountByState(r.db, &entities.Product{})
}

// Requeue moves failed products back to pending.
func (r *Repository) Requeue(ids []uint) (int64, error) {
	return records.Requeue(r.db, &entities.Product{}, ids)
}

// ListByState returns products in a sync state, newest first.
func (r *Repository) ListByState(state entities.RecordSyncState, limit, offset int) ([]entities.Product, int64, error) {
	var result []entities.Product
	var total int64

	query := r.db.Model(&entities.Product{}).Where("sync_state = ?", state)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	err := query.Order("updated_at DESC, id DESC").Limit(limit).Offset(offset).Find(&result).Error
	return result, total, err
}
