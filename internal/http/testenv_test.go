package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/mrlokans/taxsync/internal/adapter"
	auditsvc "github.com/mrlokans/taxsync/internal/audit"
	"github.com/mrlokans/taxsync/internal/database"
	auditrepo "github.com/mrlokans/taxsync/internal/database/audit"
	"github.com/mrlokans/taxsync/internal/database/invoices"
	"github.com/mrlokans/taxsync/internal/database/products"
	"github.com/mrlokans/taxsync/internal/database/synclog"
	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/fixtures"
	"github.com/mrlokans/taxsync/internal/retry"
	"github.com/mrlokans/taxsync/internal/settingsstore"
	"github.com/mrlokans/taxsync/internal/stats"
	"github.com/mrlokans/taxsync/internal/syncengine"
)

const waitTimeout = 10 * time.Second

// apiEnv wires a real engine over an in-memory database behind the router.
type apiEnv struct {
	db        *database.Database
	products  *products.Repository
	invoices  *invoices.Repository
	log       *synclog.Repository
	authority *fixtures.FakeAuthority
	scheduler *syncengine.Scheduler
	audit     *auditsvc.Service
	settings  *settingsstore.SettingsStore
	router    *gin.Engine
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("AUTO_SYNC_ENABLED", "")
	t.Setenv("AUTO_SYNC_INTERVAL_MINUTES", "")

	db := fixtures.NewDatabase(t)
	env := &apiEnv{
		db:        db,
		products:  products.NewRepository(db.DB),
		invoices:  invoices.NewRepository(db.DB),
		log:       synclog.NewRepository(db.DB),
		authority: fixtures.NewFakeAuthority(),
		settings:  settingsstore.New(db),
	}

	// Workers may log after the test body returns, so they get a no-op logger.
	engineLogger := zap.NewNop().Sugar()
	executor := syncengine.NewExecutor(syncengine.ExecutorConfig{
		BatchSize:     5,
		Policy:        retry.DefaultPolicy(),
		SubmitTimeout: time.Second,
		Sleeper: syncengine.SleeperFunc(func(ctx context.Context, d time.Duration) error {
			return ctx.Err()
		}),
	}, env.log, engineLogger)

	productAdapter := adapter.NewProductAdapter(env.products, env.authority)
	invoiceAdapter := adapter.NewInvoiceAdapter(env.invoices, env.authority)
	env.scheduler = syncengine.NewScheduler(executor, []adapter.EntityAdapter{productAdapter, invoiceAdapter}, engineLogger)
	env.audit = auditsvc.NewService(auditrepo.NewRepository(db.DB), engineLogger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = env.scheduler.Shutdown(ctx)
		env.audit.Wait()
	})

	aggregator := stats.NewAggregator(map[entities.SyncEntityType]stats.Counter{
		entities.SyncEntityProduct: env.products,
		entities.SyncEntityInvoice: env.invoices,
	}, env.scheduler, env.log, nil)

	env.router = NewRouter(RouterConfig{
		Database:  db,
		Scheduler: env.scheduler,
		Stats:     aggregator,
		SyncLog:   env.log,
		Requeuers: map[entities.SyncEntityType]Requeuer{
			entities.SyncEntityProduct: productAdapter,
			entities.SyncEntityInvoice: invoiceAdapter,
		},
		Settings: env.settings,
		Audit:    env.audit,
		Version:  "test",
		Logger:   zaptest.NewLogger(t).Sugar(),
	})
	return env
}

// gateFirstCall blocks the first authority call until release is called or
// the test ends. entered is closed once that call is in flight.
func (e *apiEnv) gateFirstCall(t *testing.T) (release func(), entered <-chan struct{}) {
	t.Helper()
	gate := make(chan struct{})
	in := make(chan struct{})
	var calls atomic.Int32
	var once sync.Once

	e.authority.OnCall(func(fixtures.Call) {
		if calls.Add(1) == 1 {
			close(in)
			<-gate
		}
	})

	release = func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)
	return release, in
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) wait(t *testing.T, jobID string) entities.SyncJob {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	job, err := e.scheduler.Wait(ctx, jobID)
	require.NoError(t, err)
	return job
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for signal")
	}
}
