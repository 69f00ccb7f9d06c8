// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── records/         # Sync-state queries shared by products and invoices
//	├── products/        # Product CRUD and sync-state transitions
//	├── invoices/        # Invoice CRUD, sync state and confirmation state
//	├── synclog/         # Append-only sync log
//	├── audit/           # Operator audit trail
//	└── settings/        # Application settings
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	db, err := database.NewDatabase("./taxsync.db")
//
//	productsRepo := products.NewRepository(db.DB)
//	logRepo := synclog.NewRepository(db.DB)
//
//	total, maxID, err := productsRepo.EligibleSnapshot()
//	entries, count, err := logRepo.Query(synclog.Filter{}, 50, 0)
//
// # Interface Implementations
//
//   - products.Repository: consumed by adapter.ProductStore
//   - invoices.Repository: consumed by adapter.InvoiceStore and tasks.InvoiceConfirmer
//   - synclog.Repository: implements syncengine.LogSink and http.SyncLogStore
//   - audit.Repository: implements audit.Store
//
// The sync log is append-only. No repository exposes an update or delete for it.
package database
