package config

import "time"

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./taxsync.db"

	// DefaultTaxAuthorityURL points at the sandbox environment
	DefaultTaxAuthorityURL = "https://sandbox.tax-authority.example/api/v1"
)

// Auto-sync interval bounds, in minutes
const (
	MinAutoSyncInterval     = 5
	MaxAutoSyncInterval     = 120
	DefaultAutoSyncInterval = 30
)

// Sync engine defaults
const (
	DefaultBatchSize      = 25
	DefaultMaxAttempts    = 5
	DefaultRetryBaseDelay = 2 * time.Second
	DefaultRetryMaxDelay  = 60 * time.Second
	DefaultSubmitTimeout  = 20 * time.Second
)
