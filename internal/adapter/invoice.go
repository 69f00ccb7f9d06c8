package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/taxauthority"
)

// InvoiceStore is the persistence the invoice adapter needs.
type InvoiceStore interface {
	EligibleSnapshot() (int64, uint, error)
	ListEligible(after, until uint, limit int) ([]entities.Invoice, error)
	MarkSynced(id uint, externalRef string, attempts int, at time.Time) error
	MarkFailed(id uint, reason string, attempts int) error
	Requeue(ids []uint) (int64, error)
}

// InvoiceAdapter submits invoices to the tax authority.
type InvoiceAdapter struct {
	store  InvoiceStore
	client taxauthority.Client
	now    func() time.Time
}

func NewInvoiceAdapter(store InvoiceStore, client taxauthority.Client) *InvoiceAdapter {
	return &InvoiceAdapter{store: store, client: client, now: time.Now}
}

func (a *InvoiceAdapter) EntityType() entities.SyncEntityType {
	return entities.SyncEntityInvoice
}

func (a *InvoiceAdapter) Snapshot(ctx context.Context) (Snapshot, error) {
	total, maxID, err := a.store.EligibleSnapshot()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to snapshot invoices: %w", err)
	}
	return Snapshot{Total: int(total), Cursor: Cursor{Until: maxID}.Encode()}, nil
}

func (a *InvoiceAdapter) EligibleBatch(ctx context.Context, cursor string, batchSize int) ([]Record, string, error) {
	c, err := DecodeCursor(cursor)
	if err != nil {
		return nil, cursor, err
	}
	invoices, err := a.store.ListEligible(c.After, c.Until, batchSize)
	if err != nil {
		return nil, cursor, fmt.Errorf("failed to load invoices: %w", err)
	}
	if len(invoices) == 0 {
		return nil, cursor, nil
	}

	batch := make([]Record, len(invoices))
	for i := range invoices {
		batch[i] = &invoices[i]
	}
	c.After = invoices[len(invoices)-1].ID
	return batch, c.Encode(), nil
}

func (a *InvoiceAdapter) Validate(rec Record) ValidationResult {
	inv, ok := rec.(*entities.Invoice)
	if !ok {
		return ValidationResult{Problems: []string{ErrUnexpectedRecord.Error()}}
	}
	return ValidateInvoice(inv, a.now())
}

func (a *InvoiceAdapter) Submit(ctx context.Context, rec Record) SubmissionOutcome {
	inv, ok := rec.(*entities.Invoice)
	if !ok {
		return Rejected(ErrUnexpectedRecord.Error())
	}

	decision, err := a.client.SubmitInvoice(ctx, toPayload(inv))
	if err != nil {
		return outcomeFromError(err)
	}
	if !decision.Accepted {
		return Rejected(decision.Reason)
	}
	if decision.ExternalRef == "" {
		return Rejected("tax authority accepted the invoice without a submission reference")
	}
	return Accepted(decision.ExternalRef)
}

func (a *InvoiceAdapter) MarkSynced(ctx context.Context, rec Record, externalRef string, attempts int) error {
	return a.store.MarkSynced(rec.SyncKey(), externalRef, attempts, a.now().UTC())
}

func (a *InvoiceAdapter) MarkFailed(ctx context.Context, rec Record, reason string, attempts int) error {
	return a.store.MarkFailed(rec.SyncKey(), reason, attempts)
}

func (a *InvoiceAdapter) Requeue(ctx context.Context, ids []uint) (int64, error) {
	return a.store.Requeue(ids)
}

func toPayload(inv *entities.Invoice) taxauthority.InvoicePayload {
	lines := make([]taxauthority.InvoiceLine, len(inv.Lines))
	for i, l := range inv.Lines {
		lines[i] = taxauthority.InvoiceLine{
			ProductCode: l.ProductCode,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		}
	}
	return taxauthority.InvoicePayload{
		Number:        inv.Number,
		CustomerName:  inv.CustomerName,
		CustomerTaxID: inv.CustomerTaxID,
		Currency:      inv.Currency,
		IssuedAt:      inv.IssuedAt.UTC(),
		Subtotal:      inv.Subtotal,
		TaxTotal:      inv.TaxTotal,
		Total:         inv.Total,
		Lines:         lines,
	}
}
