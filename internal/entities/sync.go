package entities

import (
	"fmt"
	"strings"
)

// SyncEntityType identifies which adapter and local collection a job operates on.
type SyncEntityType string

const (
	SyncEntityProduct SyncEntityType = "product"
	SyncEntityInvoice SyncEntityType = "invoice"
)

// SyncTargetFull is the scheduler target that starts one job per entity type.
const SyncTargetFull = "full"

// AllSyncEntityTypes returns every entity type in a fixed order.
func AllSyncEntityTypes() []SyncEntityType {
	return []SyncEntityType{SyncEntityProduct, SyncEntityInvoice}
}

// ParseSyncEntityType accepts singular or plural names, case-insensitively.
func ParseSyncEntityType(s string) (SyncEntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "product", "products":
		return SyncEntityProduct, nil
	case "invoice", "invoices":
		return SyncEntityInvoice, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", s)
	}
}

func (t SyncEntityType) Valid() bool {
	switch t {
	case SyncEntityProduct, SyncEntityInvoice:
		return true
	}
	return false
}

// DisplayName is the human label used in job names and log messages.
func (t SyncEntityType) DisplayName() string {
	switch t {
	case SyncEntityProduct:
		return "Product"
	case SyncEntityInvoice:
		return "Invoice"
	}
	return string(t)
}

// RecordSyncState tracks a local record's position in the sync lifecycle.
type RecordSyncState string

const (
	RecordSyncPending RecordSyncState = "pending"
	RecordSyncSynced  RecordSyncState = "synced"
	RecordSyncFailed  RecordSyncState = "failed"
)

// SyncStateCounts is a per-state tally of one local collection.
type SyncStateCounts struct {
	Total   int64 `json:"total"`
	Pending int64 `json:"pending"`
	Synced  int64 `json:"synced"`
	Failed  int64 `json:"failed"`
}
