// Package taxauthority is the client for the external tax-authority registry.
//
// The registry accepts product registrations and invoice submissions and
// reports the confirmation status of submitted invoices.
package taxauthority

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client is the registry surface the sync engine consumes.
type Client interface {
	RegisterProduct(ctx context.Context, code string, attrs ProductAttributes) (*Decision, error)
	SubmitInvoice(ctx context.Context, invoice InvoicePayload) (*Decision, error)
	CheckStatus(ctx context.Context, externalRef string) (*StatusResult, error)
}

// Decision is the registry's synchronous answer to a submission.
// A non-accepted decision is a permanent rejection.
type Decision struct {
	Accepted    bool   `json:"accepted"`
	ExternalRef string `json:"external_ref,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// ProductAttributes describes a product registration.
type ProductAttributes struct {
	Name      string  `json:"name"`
	Category  string  `json:"category,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	TaxRate   float64 `json:"tax_rate"`
}

// InvoicePayload is the submitted invoice document.
type InvoicePayload struct {
	Number        string        `json:"number"`
	CustomerName  string        `json:"customer_name"`
	CustomerTaxID string        `json:"customer_tax_id"`
	Currency      string        `json:"currency"`
	IssuedAt      time.Time     `json:"issued_at"`
	Subtotal      float64       `json:"subtotal"`
	TaxTotal      float64       `json:"tax_total"`
	Total         float64       `json:"total"`
	Lines         []InvoiceLine `json:"lines"`
}

// InvoiceLine is one line of a submitted invoice.
type InvoiceLine struct {
	ProductCode string  `json:"product_code"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Status is the confirmation state of a submitted document.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// StatusResult answers a CheckStatus call.
type StatusResult struct {
	ExternalRef string    `json:"external_ref"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
