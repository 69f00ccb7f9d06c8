package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/config"
	"github.com/mrlokans/taxsync/internal/entities"
	http_controllers "github.com/mrlokans/taxsync/internal/http"
	"github.com/mrlokans/taxsync/internal/scheduler"
	"github.com/mrlokans/taxsync/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, logger *zap.SugaredLogger, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		logger.Infow("Starting server", "addr", srv.Addr)
		// service connections
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("listen", "error", err)
		}
	}()

	// kill (no param) default sends syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be caught, so don't need to add it
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infow("Shutting down server", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests before background work is torn down
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorw("Server shutdown", "error", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	logger.Info("Server exiting")
}

func Run(cfg *config.Config, version string) {
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Infow("Starting taxsync", "version", version)

	app, err := NewApp(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to initialize application", "error", err)
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	// Auto-sync timer, driven by the settings store so API changes apply without restart
	autoSync := scheduler.NewAutoSyncScheduler(app.Settings, app.Scheduler, logger.Named("auto-sync"))
	app.Stats.SetNextRunSource(autoSync)
	if err := autoSync.Start(baseCtx); err != nil {
		logger.Errorw("Failed to start auto-sync scheduler", "error", err)
	}

	routerCfg := http_controllers.RouterConfig{
		Database:  app.DB,
		Scheduler: app.Scheduler,
		Stats:     app.Stats,
		SyncLog:   app.SyncLog,
		Requeuers: make(map[entities.SyncEntityType]http_controllers.Requeuer, len(app.Adapters)),
		Settings:  app.Settings,
		AutoSync:  autoSync,
		Audit:     app.Audit,
		Version:   version,
		Logger:    logger.Named("http"),
	}
	for entityType, a := range app.Adapters {
		routerCfg.Requeuers[entityType] = a
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var maintenance *scheduler.MaintenanceScheduler
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskLogger := logger.Named("tasks")
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromConfig(cfg.Tasks), taskLogger)
		if err != nil {
			logger.Fatalw("Failed to initialize task queue", "error", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Errorw("Error closing task client", "error", err)
			}
		}()

		// Register task queues
		taskClient.Register(
			tasks.NewConfirmInvoicesQueue(app.Invoices, app.Authority, app.Audit, taskLogger),
			tasks.NewCleanupAuditEventsQueue(app.Audit, app.Audit, taskLogger),
		)

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(baseCtx)
		go taskClient.Start(taskCtx)

		enqueuer := tasks.NewEnqueuer(taskClient, tasks.Defaults{
			ConfirmBatchSize:   cfg.Confirmation.BatchSize,
			AuditRetentionDays: cfg.Audit.RetentionDays,
		})
		routerCfg.TaskStatus = taskClient
		routerCfg.TaskRunner = enqueuer

		maintenance = scheduler.NewMaintenanceScheduler(enqueuer, maintenanceJobs(cfg), logger.Named("maintenance"))
		if err := maintenance.Start(baseCtx); err != nil {
			logger.Errorw("Failed to start maintenance scheduler", "error", err)
		}
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		autoSync.Stop()
		if maintenance != nil {
			maintenance.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		if err := app.Close(ctx); err != nil {
			logger.Errorw("Error closing application", "error", err)
		}
	}

	Serve(router, cfg, logger, onShutdown)
}

// maintenanceJobs lists the periodic background tasks enabled by configuration.
func maintenanceJobs(cfg *config.Config) []scheduler.MaintenanceJob {
	var jobs []scheduler.MaintenanceJob
	if cfg.Confirmation.Enabled && cfg.Confirmation.Schedule != "" {
		jobs = append(jobs, scheduler.MaintenanceJob{
			TaskType: tasks.QueueConfirmInvoices,
			Schedule: cfg.Confirmation.Schedule,
		})
	}
	if cfg.Audit.CleanupSchedule != "" && cfg.Audit.RetentionDays > 0 {
		jobs = append(jobs, scheduler.MaintenanceJob{
			TaskType: tasks.QueueCleanupAuditEvents,
			Schedule: cfg.Audit.CleanupSchedule,
		})
	}
	return jobs
}
