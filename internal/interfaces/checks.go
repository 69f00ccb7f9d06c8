package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/taxsync/internal/adapter"
	"github.com/mrlokans/taxsync/internal/audit"
	"github.com/mrlokans/taxsync/internal/database/invoices"
	"github.com/mrlokans/taxsync/internal/database/products"
	"github.com/mrlokans/taxsync/internal/database/synclog"
	"github.com/mrlokans/taxsync/internal/http"
	"github.com/mrlokans/taxsync/internal/scheduler"
	"github.com/mrlokans/taxsync/internal/settingsstore"
	"github.com/mrlokans/taxsync/internal/stats"
	"github.com/mrlokans/taxsync/internal/syncengine"
	"github.com/mrlokans/taxsync/internal/taxauthority"
	"github.com/mrlokans/taxsync/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// Entity stores behind the adapters
var _ adapter.ProductStore = (*products.Repository)(nil)
var _ adapter.InvoiceStore = (*invoices.Repository)(nil)

// Stats counters
var _ stats.Counter = (*products.Repository)(nil)
var _ stats.Counter = (*invoices.Repository)(nil)
var _ stats.LogSource = (*synclog.Repository)(nil)

// Sync log
var _ syncengine.LogSink = (*synclog.Repository)(nil)
var _ http.SyncLogReader = (*synclog.Repository)(nil)

// =============================================================================
// External Services
// =============================================================================

var _ taxauthority.Client = (*taxauthority.HTTPClient)(nil)
var _ tasks.StatusChecker = (taxauthority.Client)(nil)

// =============================================================================
// Sync Engine
// =============================================================================

var _ adapter.EntityAdapter = (*adapter.ProductAdapter)(nil)
var _ adapter.EntityAdapter = (*adapter.InvoiceAdapter)(nil)
var _ http.Requeuer = (*adapter.ProductAdapter)(nil)
var _ http.Requeuer = (*adapter.InvoiceAdapter)(nil)

var _ http.SyncScheduler = (*syncengine.Scheduler)(nil)
var _ stats.JobSource = (*syncengine.Scheduler)(nil)
var _ scheduler.FullSyncStarter = (*syncengine.Scheduler)(nil)
var _ http.StatsProvider = (*stats.Aggregator)(nil)

// =============================================================================
// Settings and Scheduling
// =============================================================================

var _ http.AutoSyncSettings = (*settingsstore.SettingsStore)(nil)
var _ scheduler.AutoSyncConfigSource = (*settingsstore.SettingsStore)(nil)
var _ http.AutoSyncTimer = (*scheduler.AutoSyncScheduler)(nil)
var _ stats.NextRunSource = (*scheduler.AutoSyncScheduler)(nil)

// =============================================================================
// Audit and Background Tasks
// =============================================================================

var _ http.AuditLog = (*audit.Service)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ tasks.MaintenanceReporter = (*audit.Service)(nil)
var _ tasks.ConfirmationStore = (*invoices.Repository)(nil)

var _ http.TaskStatusReader = (*tasks.Client)(nil)
var _ http.TaskRunner = (*tasks.Enqueuer)(nil)
var _ scheduler.TaskEnqueuer = (*tasks.Enqueuer)(nil)
var _ tasks.Adder = (*tasks.Client)(nil)
