package http

import (
	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/database"
	"github.com/mrlokans/taxsync/internal/entities"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database  *database.Database
	Scheduler SyncScheduler
	Stats     StatsProvider
	SyncLog   SyncLogReader
	Requeuers map[entities.SyncEntityType]Requeuer

	// Auto-sync settings (optional)
	Settings AutoSyncSettings
	AutoSync AutoSyncTimer

	// Operator audit trail (optional)
	Audit AuditLog

	// Task queue (optional)
	TaskStatus TaskStatusReader
	TaskRunner TaskRunner

	// Application info
	Version string

	Logger *zap.SugaredLogger
}
