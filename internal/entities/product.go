package entities

import (
	"fmt"
	"time"
)

type Product struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Name             string          `gorm:"size:255;not null" json:"name"`
	RegistrationCode string          `gorm:"size:32;index" json:"registration_code"`
	Category         string          `gorm:"size:100" json:"category,omitempty"`
	UnitPrice        float64         `json:"unit_price"`
	TaxRate          float64         `json:"tax_rate"`
	SyncState        RecordSyncState `gorm:"size:20;index;default:pending" json:"sync_state"`
	SyncAttempts     int             `json:"sync_attempts"`
	LastSyncError    string          `gorm:"size:500" json:"last_sync_error,omitempty"`
	ExternalRef      string          `gorm:"size:100" json:"external_ref,omitempty"`
	SyncedAt         *time.Time      `json:"synced_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) SyncKey() uint {
	return p.ID
}

func (p *Product) Describe() string {
	return fmt.Sprintf("product #%d %q (code %q)", p.ID, p.Name, p.RegistrationCode)
}
