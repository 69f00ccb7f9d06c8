package syncengine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mrlokans/taxsync/internal/adapter"
	"github.com/mrlokans/taxsync/internal/database/invoices"
	"github.com/mrlokans/taxsync/internal/database/products"
	"github.com/mrlokans/taxsync/internal/database/synclog"
	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/fixtures"
	"github.com/mrlokans/taxsync/internal/retry"
)

const waitTimeout = 10 * time.Second

type recordingSleeper struct {
	mu       sync.Mutex
	delays   []time.Duration
	block    bool
	sleeping chan struct{}
}

func newRecordingSleeper() *recordingSleeper {
	return &recordingSleeper{sleeping: make(chan struct{}, 64)}
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	block := r.block
	r.mu.Unlock()

	select {
	case r.sleeping <- struct{}{}:
	default:
	}

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return ctx.Err()
}

func (r *recordingSleeper) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}

type testEnv struct {
	products  *products.Repository
	invoices  *invoices.Repository
	log       *synclog.Repository
	authority *fixtures.FakeAuthority
	sleeper   *recordingSleeper
	scheduler *Scheduler
}

type envOption func(cfg *ExecutorConfig)

func withBatchSize(n int) envOption {
	return func(cfg *ExecutorConfig) { cfg.BatchSize = n }
}

func withSubmitTimeout(d time.Duration) envOption {
	return func(cfg *ExecutorConfig) { cfg.SubmitTimeout = d }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	db := fixtures.NewDatabase(t)

	env := &testEnv{
		products:  products.NewRepository(db.DB),
		invoices:  invoices.NewRepository(db.DB),
		log:       synclog.NewRepository(db.DB),
		authority: fixtures.NewFakeAuthority(),
		sleeper:   newRecordingSleeper(),
	}

	cfg := ExecutorConfig{
		BatchSize:     5,
		Policy:        retry.DefaultPolicy(),
		SubmitTimeout: time.Second,
		Sleeper:       env.sleeper,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := zaptest.NewLogger(t).Sugar()
	executor := NewExecutor(cfg, env.log, logger)
	env.scheduler = NewScheduler(executor, []adapter.EntityAdapter{
		adapter.NewProductAdapter(env.products, env.authority),
		adapter.NewInvoiceAdapter(env.invoices, env.authority),
	}, logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = env.scheduler.Shutdown(ctx)
	})
	return env
}

func (e *testEnv) seedProducts(t *testing.T, items ...*entities.Product) {
	t.Helper()
	require.NoError(t, e.products.Create(items...))
}

// gateFirstCall blocks the first authority call until release is called.
// entered is closed once that call is in flight.
func (e *testEnv) gateFirstCall(t *testing.T) (release func(), entered <-chan struct{}) {
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

func (e *testEnv) wait(t *testing.T, jobID string) entities.SyncJob {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	job, err := e.scheduler.Wait(ctx, jobID)
	require.NoError(t, err)
	return job
}

func (e *testEnv) entries(t *testing.T, filter synclog.Filter) []entities.SyncLogEntry {
	t.Helper()
	entries, _, err := e.log.Query(filter, 500, 0)
	require.NoError(t, err)
	return entries
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for signal")
	}
}
