package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/taxsync/internal/logging"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Optional dependencies left nil disable their routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	logger := logging.OrNop(cfg.Logger)

	health := NewHealthController(cfg.Database, cfg.Scheduler, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	api := router.Group("/api")

	// Sync engine endpoints
	if cfg.Scheduler != nil {
		syncController := NewSyncController(cfg.Scheduler, cfg.Stats, cfg.SyncLog, cfg.Requeuers, cfg.Audit, logger)
		api.GET("/sync/stats", syncController.GetStats)
		api.GET("/sync/jobs", syncController.ListJobs)
		api.GET("/sync/jobs/:id", syncController.GetJob)
		api.DELETE("/sync/jobs/:id", syncController.ClearJob)
		api.POST("/sync/start", syncController.StartSync)
		api.POST("/sync/jobs/:id/pause", syncController.PauseJob)
		api.POST("/sync/jobs/:id/resume", syncController.ResumeJob)
		api.POST("/sync/jobs/:id/stop", syncController.StopJob)
		api.GET("/sync/logs", syncController.ListLogs)
		api.POST("/sync/requeue", syncController.Requeue)
	}

	// Auto-sync settings endpoints
	if cfg.Settings != nil {
		settingsController := NewAutoSyncSettingsController(cfg.Settings, cfg.AutoSync, cfg.Audit, logger)
		api.GET("/settings/auto-sync", settingsController.GetSettings)
		api.PUT("/settings/auto-sync", settingsController.UpdateSettings)
		api.DELETE("/settings/auto-sync", settingsController.ResetSettings)
	}

	// Operator audit trail endpoints
	if cfg.Audit != nil {
		auditController := NewAuditController(cfg.Audit, logger)
		api.GET("/audit", auditController.GetAuditEvents)
		api.GET("/audit/jobs/:id", auditController.GetJobHistory)
	}

	// Task management endpoints
	if cfg.TaskStatus != nil && cfg.TaskRunner != nil {
		tasksController := NewTasksController(cfg.TaskStatus, cfg.TaskRunner, logger)
		api.GET("/tasks/types", tasksController.ListTaskTypes)
		api.GET("/tasks/:id", tasksController.GetTaskStatus)
		api.POST("/tasks/:type/run", tasksController.RunTask)
	}

	return router
}
