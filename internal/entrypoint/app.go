package entrypoint

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/adapter"
	"github.com/mrlokans/taxsync/internal/audit"
	"github.com/mrlokans/taxsync/internal/config"
	"github.com/mrlokans/taxsync/internal/database"
	auditrepo "github.com/mrlokans/taxsync/internal/database/audit"
	"github.com/mrlokans/taxsync/internal/database/invoices"
	"github.com/mrlokans/taxsync/internal/database/products"
	"github.com/mrlokans/taxsync/internal/database/synclog"
	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/logging"
	"github.com/mrlokans/taxsync/internal/retry"
	"github.com/mrlokans/taxsync/internal/settingsstore"
	"github.com/mrlokans/taxsync/internal/stats"
	"github.com/mrlokans/taxsync/internal/syncengine"
	"github.com/mrlokans/taxsync/internal/taxauthority"
)

// App holds the components shared by the server and the CLI commands.
type App struct {
	Config    *config.Config
	Logger    *zap.SugaredLogger
	DB        *database.Database
	Products  *products.Repository
	Invoices  *invoices.Repository
	SyncLog   *synclog.Repository
	Authority taxauthority.Client
	Adapters  map[entities.SyncEntityType]adapter.EntityAdapter
	Scheduler *syncengine.Scheduler
	Stats     *stats.Aggregator
	Settings  *settingsstore.SettingsStore
	Audit     *audit.Service
}

// AppOption customises NewApp.
type AppOption func(*appOptions)

type appOptions struct {
	authority taxauthority.Client
	sleeper   syncengine.Sleeper
}

// WithAuthority replaces the HTTP tax authority client.
func WithAuthority(client taxauthority.Client) AppOption {
	return func(o *appOptions) { o.authority = client }
}

// WithSleeper replaces the real timer used between retry attempts.
func WithSleeper(sleeper syncengine.Sleeper) AppOption {
	return func(o *appOptions) { o.sleeper = sleeper }
}

// NewLogger builds the root sugared logger from the logging config.
func NewLogger(cfg config.Logging) (*zap.SugaredLogger, error) {
	logger, err := logging.New(cfg.Level, cfg.Format)
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// NewApp opens the database and wires the sync engine around it.
func NewApp(cfg *config.Config, logger *zap.SugaredLogger, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger = logging.OrNop(logger)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Products: products.NewRepository(db.DB),
		Invoices: invoices.NewRepository(db.DB),
		SyncLog:  synclog.NewRepository(db.DB),
		Settings: settingsstore.New(db),
	}
	app.Audit = audit.NewService(auditrepo.NewRepository(db.DB), logger.Named("audit"))

	app.Authority = o.authority
	if app.Authority == nil {
		app.Authority = taxauthority.NewHTTPClient(taxauthority.HTTPConfig{
			BaseURL:   cfg.TaxAuthority.BaseURL,
			APIKey:    cfg.TaxAuthority.APIKey,
			Timeout:   cfg.TaxAuthority.RequestTimeout,
			RateLimit: cfg.TaxAuthority.RateLimit,
			Burst:     cfg.TaxAuthority.Burst,
		}, logger.Named("taxauthority"))
	}

	productAdapter := adapter.NewProductAdapter(app.Products, app.Authority)
	invoiceAdapter := adapter.NewInvoiceAdapter(app.Invoices, app.Authority)
	app.Adapters = adapter.ByType(productAdapter, invoiceAdapter)

	executor := syncengine.NewExecutor(syncengine.ExecutorConfig{
		BatchSize: cfg.Sync.BatchSize,
		Policy: retry.Policy{
			BaseDelay:   cfg.Sync.RetryBaseDelay,
			MaxDelay:    cfg.Sync.RetryMaxDelay,
			Multiplier:  2,
			MaxAttempts: cfg.Sync.MaxAttempts,
		},
		SubmitTimeout: cfg.Sync.SubmitTimeout,
		Sleeper:       o.sleeper,
	}, app.SyncLog, logger.Named("executor"))
	app.Scheduler = syncengine.NewScheduler(executor, []adapter.EntityAdapter{productAdapter, invoiceAdapter}, logger.Named("sync"))

	app.Stats = stats.NewAggregator(map[entities.SyncEntityType]stats.Counter{
		entities.SyncEntityProduct: app.Products,
		entities.SyncEntityInvoice: app.Invoices,
	}, app.Scheduler, app.SyncLog, nil)

	return app, nil
}

// Close stops the sync engine, flushes pending audit writes and closes the database.
func (a *App) Close(ctx context.Context) error {
	if err := a.Scheduler.Shutdown(ctx); err != nil {
		a.Logger.Warnw("Sync engine did not stop cleanly", "error", err)
	}
	a.Audit.Wait()
	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
