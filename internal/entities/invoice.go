package entities

import (
	"fmt"
	"time"
)

// ConfirmationStatus is the tax authority's verdict on a submitted invoice.
type ConfirmationStatus string

const (
	ConfirmationNone      ConfirmationStatus = ""
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationRejected  ConfirmationStatus = "rejected"
)

type Invoice struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	Number             string             `gorm:"size:64;uniqueIndex" json:"number"`
	CustomerName       string             `gorm:"size:255" json:"customer_name"`
	CustomerTaxID      string             `gorm:"size:32" json:"customer_tax_id"`
	Currency           string             `gorm:"size:3" json:"currency"`
	IssuedAt           time.Time          `json:"issued_at"`
	Subtotal           float64            `json:"subtotal"`
	TaxTotal           float64            `json:"tax_total"`
	Total              float64            `json:"total"`
	Lines              []InvoiceLine      `gorm:"constraint:OnDelete:CASCADE" json:"lines,omitempty"`
	SyncState          RecordSyncState    `gorm:"size:20;index;default:pending" json:"sync_state"`
	SyncAttempts       int                `json:"sync_attempts"`
	LastSyncError      string             `gorm:"size:500" json:"last_sync_error,omitempty"`
	ExternalRef        string             `gorm:"size:100;index" json:"external_ref,omitempty"`
	ConfirmationStatus ConfirmationStatus `gorm:"size:20;index" json:"confirmation_status,omitempty"`
	ConfirmedAt        *time.Time         `json:"confirmed_at,omitempty"`
	SyncedAt           *time.Time         `json:"synced_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}

func (i *Invoice) SyncKey() uint {
	return i.ID
}

func (i *Invoice) Describe() string {
	return fmt.Sprintf("invoice #%d (number %q)", i.ID, i.Number)
}

type InvoiceLine struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	InvoiceID   uint    `gorm:"index" json:"invoice_id"`
	ProductCode string  `gorm:"size:32" json:"product_code"`
	Description string  `gorm:"size:255" json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

func (InvoiceLine) TableName() string {
	return "invoice_lines"
}

// Amount is quantity times unit price.
func (l InvoiceLine) Amount() float64 {
	return l.Quantity * l.UnitPrice
}
