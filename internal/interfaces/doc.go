// Package interfaces documents the core abstractions used throughout the application.
//
// This package consolidates interface documentation so extension points are
// easy to find, and holds the compile-time checks that bind them together.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - ProductStore, InvoiceStore: local collections behind the adapters (internal/adapter)
//   - Counter, LogSource: read-only inputs to the dashboard stats (internal/stats)
//   - LogSink: append-only sync log written by the executor (internal/syncengine)
//   - ConfirmationStore: invoices awaiting a verdict (internal/tasks)
//
// ## External Service Interfaces
//
//   - Client: the tax authority API (internal/taxauthority/client.go)
//   - StatusChecker: the verdict lookup used by confirmation polling (internal/tasks)
//
// ## Sync Engine Interfaces
//
//   - EntityAdapter: everything the engine knows about one entity type (internal/adapter)
//   - SyncScheduler, StatsProvider, Requeuer: what HTTP handlers need (internal/http/stores.go)
//   - FullSyncStarter: what the auto-sync timer triggers (internal/scheduler)
//
// # Adding a New Entity Type
//
// To synchronize another collection (e.g., customers):
//
//  1. Add the model and a SyncEntityType constant in internal/entities/
//
//  2. Create a repository in internal/database/customers/ that satisfies
//     an adapter store interface. The shared queries live in
//     internal/database/records.
//
//  3. Implement EntityAdapter in internal/adapter/
//
//     type CustomerAdapter struct {
//         store  CustomerStore
//         client taxauthority.Client
//     }
//
//     var _ EntityAdapter = (*CustomerAdapter)(nil)
//
//  4. Pass it to syncengine.NewScheduler in entrypoint.go and add a
//     stats counter and requeuer for it.
//
// # Adding a New Background Task
//
//  1. Define the task and its queue config in internal/tasks/
//
//     type ReconcileTask struct{}
//
//     func (t ReconcileTask) Config() backlite.QueueConfig
//
//  2. Register the queue in entrypoint.go and add the type to TaskTypes
//     and Enqueuer.NewTask
//
//  3. Optionally schedule it with a MaintenanceJob
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// This pattern is used throughout the codebase. See checks.go for examples.
package interfaces
