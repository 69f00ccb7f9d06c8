package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/taxauthority"
)

// ProductStore is the persistence the product adapter needs.
type ProductStore interface {
	EligibleSnapshot() (int64, uint, error)
	ListEligible(after, until uint, limit int) ([]entities.Product, error)
	MarkSynced(id uint, externalRef string, attempts int, at time.Time) error
	MarkFailed(id uint, reason string, attempts int) error
	Requeue(ids []uint) (int64, error)
}

// ProductAdapter registers products with the tax authority.
type ProductAdapter struct {
	store  ProductStore
	client taxauthority.Client
	now    func() time.Time
}

func NewProductAdapter(store ProductStore, client taxauthority.Client) *ProductAdapter {
	return &ProductAdapter{store: store, client: client, now: time.Now}
}

func (a *ProductAdapter) EntityType() entities.SyncEntityType {
	return entities.SyncEntityProduct
}

func (a *ProductAdapter) Snapshot(ctx context.Context) (Snapshot, error) {
	total, maxID, err := a.store.EligibleSnapshot()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to snapshot products: %w", err)
	}
	return Snapshot{Total: int(total), Cursor: Cursor{Until: maxID}.Encode()}, nil
}

func (a *ProductAdapter) EligibleBatch(ctx context.Context, cursor string, batchSize int) ([]Record, string, error) {
	c, err := DecodeCursor(cursor)
	if err != nil {
		return nil, cursor, err
	}
	products, err := a.store.ListEligible(c.After, c.Until, batchSize)
	if err != nil {
		return nil, cursor, fmt.Errorf("failed to load products: %w", err)
	}
	if len(products) == 0 {
		return nil, cursor, nil
	}

	batch := make([]Record, len(products))
	for i := range products {
		batch[i] = &products[i]
	}
	c.After = products[len(products)-1].ID
	return batch, c.Encode(), nil
}

func (a *ProductAdapter) Validate(rec Record) ValidationResult {
	p, ok := rec.(*entities.Product)
	if !ok {
		return ValidationResult{Problems: []string{ErrUnexpectedRecord.Error()}}
	}
	return ValidateProduct(p)
}

func (a *ProductAdapter) Submit(ctx context.Context, rec Record) SubmissionOutcome {
	p, ok := rec.(*entities.Product)
	if !ok {
		return Rejected(ErrUnexpectedRecord.Error())
	}

	decision, err := a.client.RegisterProduct(ctx, p.RegistrationCode, taxauthority.ProductAttributes{
		Name:      p.Name,
		Category:  p.Category,
		UnitPrice: p.UnitPrice,
		TaxRate:   p.TaxRate,
	})
	if err != nil {
		return outcomeFromError(err)
	}
	if !decision.Accepted {
		return Rejected(decision.Reason)
	}

	ref := decision.ExternalRef
	if ref == "" {
		ref = p.RegistrationCode
	}
	return Accepted(ref)
}

func (a *ProductAdapter) MarkSynced(ctx context.Context, rec Record, externalRef string, attempts int) error {
	return a.store.MarkSynced(rec.SyncKey(), externalRef, attempts, a.now().UTC())
}

func (a *ProductAdapter) MarkFailed(ctx context.Context, rec Record, reason string, attempts int) error {
	return a.store.MarkFailed(rec.SyncKey(), reason, attempts)
}

func (a *ProductAdapter) Requeue(ctx context.Context, ids []uint) (int64, error) {
	return a.store.Requeue(ids)
}
