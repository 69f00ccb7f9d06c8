package syncengine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mrlokans/taxsync/internal/adapter"
	"github.com/mrlokans/taxsync/internal/database/products"
	"github.com/mrlokans/taxsync/internal/database/synclog"
	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/fixtures"
)

func TestScheduler_ConcurrentStartAllowsOneJob(t *testing.T) {
	for round := 0; round < 5; round++ {
		env := newTestEnv(t)
		env.seedProducts(t, fixtures.Products(3)...)
		release, _ := env.gateFirstCall(t)

		const starters = 8
		var wg sync.WaitGroup
		results := make(chan error, starters)
		for i := 0; i < starters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var ok, busy int
		for err := range results {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadyRunning):
				busy++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, starters-1, busy)
		release()
	}
}

func TestScheduler_AlreadyRunningCarriesDetails(t *testing.T) {
	env := newTestEnv(t)
	env.seedProducts(t, fixtures.Products(2)...)
	release, entered := env.gateFirstCall(t)
	defer release()

	first, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	require.NoError(t, err)
	waitFor(t, entered)

	_, err = env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, CodeAlreadyRunning, opErr.Code)
	assert.Equal(t, 409, opErr.StatusCode)
	assert.Equal(t, first.ID, opErr.JobID)
	assert.Equal(t, entities.SyncEntityProduct, opErr.EntityType)
}

func TestScheduler_StartTargets(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.scheduler.Start(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrInvalidTarget)

	jobs, err := env.scheduler.Start(context.Background(), "Products")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, entities.SyncEntityProduct, jobs[0].EntityType)
	assert.Equal(t, "Product sync", jobs[0].Name)
	env.wait(t, jobs[0].ID)

	jobs, err = env.scheduler.Start(context.Background(), "full")
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestScheduler_StartFullSkipsBusyTypes(t *testing.T) {
	env := newTestEnv(t)
	env.seedProducts(t, fixtures.Products(2)...)
	require.NoError(t, env.invoices.Create(fixtures.Invoices(2)...))
	release, entered := env.gateFirstCall(t)

	productJob, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	require.NoError(t, err)
	waitFor(t, entered)

	jobs, err := env.scheduler.StartFull(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, entities.SyncEntityInvoice, jobs[0].EntityType)

	invoiceJob := env.wait(t, jobs[0].ID)
	assert.Equal(t, entities.SyncJobCompleted, invoiceJob.Status)
	assert.Equal(t, 2, invoiceJob.RecordsSucceeded)

	release()
	assert.Equal(t, entities.SyncJobCompleted, env.wait(t, productJob.ID).Status)
}

func TestScheduler_StartFullAllBusy(t *testing.T) {
	env := newTestEnv(t)
	env.seedProducts(t, fixtures.Products(1)...)
	require.NoError(t, env.invoices.Create(fixtures.Invoices(1)...))

	gate := make(chan struct{})
	defer close(gate)
	env.authority.OnCall(func(fixtures.Call) { <-gate })

	_, err := env.scheduler.StartFull(context.Background())
	require.NoError(t, err)

	jobs, err := env.scheduler.StartFull(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)

	jobs, err = env.scheduler.Start(context.Background(), "full")
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

// lockedInvoiceStore fails every snapshot; other methods are never reached.
type lockedInvoiceStore struct {
	adapter.InvoiceStore
}

func (lockedInvoiceStore) EligibleSnapshot() (int64, uint, error) {
	return 0, 0, errors.New("database is locked")
}

func TestScheduler_StartFullSkipsFailedSnapshot(t *testing.T) {
	db := fixtures.NewDatabase(t)
	productRepo := products.NewRepository(db.DB)
	require.NoError(t, productRepo.Create(fixtures.Products(2)...))
	authority := fixtures.NewFakeAuthority()
	logger := zaptest.NewLogger(t).Sugar()

	scheduler := NewScheduler(
		NewExecutor(ExecutorConfig{Sleeper: newRecordingSleeper()}, nil, logger),
		[]adapter.EntityAdapter{
			adapter.NewProductAdapter(productRepo, authority),
			adapter.NewInvoiceAdapter(lockedInvoiceStore{}, authority),
		},
		logger,
	)
	t.Cleanup(func() { _ = scheduler.Shutdown(context.Background()) })

	jobs, err := scheduler.StartFull(context.Background())
	require.NoError(t, err, "the product job started, so the invoice failure is only logged")
	require.Len(t, jobs, 1)
	assert.Equal(t, entities.SyncEntityProduct, jobs[0].EntityType)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	job, err := scheduler.Wait(ctx, jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncJobCompleted, job.Status)

	// With the product type done and nothing else startable, the snapshot error surfaces.
	invoicesOnly := NewScheduler(
		NewExecutor(ExecutorConfig{Sleeper: newRecordingSleeper()}, nil, logger),
		[]adapter.EntityAdapter{adapter.NewInvoiceAdapter(lockedInvoiceStore{}, authority)},
		logger,
	)
	t.Cleanup(func() { _ = invoicesOnly.Shutdown(context.Background()) })

	jobs, err = invoicesOnly.StartFull(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Empty(t, jobs)
}

func TestScheduler_OverlappingFullAndSingleStartsKeepOneJob(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("at most one active product job", prop.ForAll(
		func(fullStarts, singleStarts int) bool {
			env := newTestEnv(t)
			env.seedProducts(t, fixtures.Products(3)...)
			release, _ := env.gateFirstCall(t)
			defer release()

			ctx := context.Background()
			var mu sync.Mutex
			productJobs := make(map[string]bool)
			var unexpected error
			record := func(jobs []entities.SyncJob, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil && !errors.Is(err, ErrAlreadyRunning) {
					unexpected = err
				}
				for _, job := range jobs {
					if job.EntityType == entities.SyncEntityProduct {
						productJobs[job.ID] = true
					}
				}
			}

			start := make(chan struct{})
			var wg sync.WaitGroup
			for i := 0; i < fullStarts; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					record(env.scheduler.StartFull(ctx))
				}()
			}
			for i := 0; i < singleStarts; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					job, err := env.scheduler.StartSync(ctx, entities.SyncEntityProduct)
					if err != nil {
						record(nil, err)
						return
					}
					record([]entities.SyncJob{job}, nil)
				}()
			}
			close(start)
			wg.Wait()

			active := 0
			for _, job := range env.scheduler.Jobs() {
				if job.EntityType == entities.SyncEntityProduct && job.Status.IsActive() {
					active++
				}
			}
			return unexpected == nil && len(productJobs) == 1 && active == 1
		},
		gen.IntRange(1, 4),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}

func TestScheduler_InvalidTransitions(t *testing.T) {
	env := newTestEnv(t)
	env.seedProducts(t, fixtures.Products(1)...)

	_, err := env.scheduler.Pause("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.scheduler.Resume("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.scheduler.Stop("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	started, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	require.NoError(t, err)
	job := env.wait(t, started.ID)
	require.Equal(t, entities.SyncJobCompleted, job.Status)

	_, err = env.scheduler.Pause(job.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = env.scheduler.Resume(job.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = env.scheduler.Stop(job.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, CodeInvalidTransition, opErr.Code)

	require.NoError(t, env.scheduler.Clear(job.ID))
	_, err = env.scheduler.Job(job.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScheduler_ResumeAndClearWhileRunning(t *testing.T) {
	env := newTestEnv(t)
	env.seedProducts(t, fixtures.Products(2)...)
	release, entered := env.gateFirstCall(t)
	defer release()

	started, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	require.NoError(t, err)
	waitFor(t, entered)

	_, err = env.scheduler.Resume(started.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, env.scheduler.Clear(started.ID), ErrInvalidTransition)
}

func TestScheduler_ResumeBlockedByNewerJob(t *testing.T) {
	env := newTestEnv(t, withBatchSize(1))
	env.seedProducts(t, fixtures.Products(4)...)

	var pauseOnce sync.Once
	env.authority.OnCall(func(fixtures.Call) {
		pauseOnce.Do(func() {
			if active, ok := env.scheduler.ActiveJob(entities.SyncEntityProduct); ok {
				_, _ = env.scheduler.Pause(active.ID)
			}
		})
	})

	first, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	require.NoError(t, err)
	paused := env.wait(t, first.ID)
	require.Equal(t, entities.SyncJobPaused, paused.Status)

	// A paused job frees its slot, so a new job may start.
	release, entered := env.gateFirstCall(t)
	second, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	require.NoError(t, err)
	waitFor(t, entered)

	_, err = env.scheduler.Resume(first.ID)
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, second.ID, opErr.JobID)

	release()
	env.wait(t, second.ID)

	resumed, err := env.scheduler.Resume(first.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncJobRunning, resumed.Status)
	done := env.wait(t, first.ID)
	assert.Equal(t, entities.SyncJobCompleted, done.Status)
	assert.LessOrEqual(t, done.RecordsProcessed, done.RecordsTotal)
}

func TestScheduler_StopWhileDraining(t *testing.T) {
	env := newTestEnv(t)
	env.seedProducts(t, fixtures.Products(5)...)
	release, entered := env.gateFirstCall(t)

	started, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	require.NoError(t, err)
	waitFor(t, entered)

	stopped, err := env.scheduler.Stop(started.ID)
	require.NoError(t, err)
	assert.Equal(t, started.ID, stopped.ID)

	_, err = env.scheduler.Job(started.ID)
	assert.ErrorIs(t, err, ErrNotFound, "stop removes the job immediately")
	assert.Empty(t, env.scheduler.Jobs())

	_, err = env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	assert.ErrorIs(t, err, ErrAlreadyRunning, "the slot is held until the worker drains")

	release()
	require.Eventually(t, func() bool {
		return !env.scheduler.IsBusy(entities.SyncEntityProduct)
	}, waitTimeout, 10*time.Millisecond)

	counts, err := env.products.CountByState()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Synced, "only the acknowledged in-flight record is synced")
	assert.Equal(t, int64(4), counts.Pending)

	warnings := env.entries(t, synclog.Filter{Outcome: entities.SyncOutcomeWarning})
	var aborted, stopLogged bool
	for _, e := range warnings {
		if e.RecordsTotal == 5 && e.RecordsProcessed == 1 {
			aborted = true
			assert.Contains(t, e.Message, "Batch aborted")
		}
		if e.JobID == started.ID && e.RecordsTotal == 5 && e.RecordsProcessed == 0 {
			stopLogged = true
		}
	}
	assert.True(t, aborted)
	assert.True(t, stopLogged)

	next, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	require.NoError(t, err)
	assert.Equal(t, 4, next.RecordsTotal)
	assert.Equal(t, entities.SyncJobCompleted, env.wait(t, next.ID).Status)
}

func TestScheduler_StopInterruptsBackoff(t *testing.T) {
	env := newTestEnv(t)
	env.seedProducts(t, fixtures.Products(3)...)
	env.authority.FailAll(fixtures.ErrUnavailable)
	env.sleeper.block = true

	started, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	require.NoError(t, err)
	waitFor(t, env.sleeper.sleeping)

	_, err = env.scheduler.Stop(started.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !env.scheduler.IsBusy(entities.SyncEntityProduct)
	}, waitTimeout, 10*time.Millisecond)

	counts, err := env.products.CountByState()
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Pending, "the interrupted record is left untouched")
	assert.Equal(t, 1, env.authority.CallCount(fixtures.ProductCode(1)))
	assert.Zero(t, env.authority.CallCount(fixtures.ProductCode(2)))
}

func TestScheduler_StopPausedJob(t *testing.T) {
	env := newTestEnv(t, withBatchSize(1))
	env.seedProducts(t, fixtures.Products(3)...)

	var once sync.Once
	env.authority.OnCall(func(fixtures.Call) {
		once.Do(func() {
			if active, ok := env.scheduler.ActiveJob(entities.SyncEntityProduct); ok {
				_, _ = env.scheduler.Pause(active.ID)
			}
		})
	})

	started, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	require.NoError(t, err)
	require.Equal(t, entities.SyncJobPaused, env.wait(t, started.ID).Status)

	_, err = env.scheduler.Stop(started.ID)
	require.NoError(t, err)
	assert.Empty(t, env.scheduler.Jobs())

	_, err = env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	assert.NoError(t, err)
}

func TestScheduler_JobsNewestFirst(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	require.NoError(t, err)
	env.wait(t, first.ID)
	second, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityInvoice)
	require.NoError(t, err)
	env.wait(t, second.ID)

	jobs := env.scheduler.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)

	finished, ok := env.scheduler.LastFinishedAt(entities.SyncEntityInvoice)
	assert.True(t, ok)
	assert.False(t, finished.IsZero())
}

func TestScheduler_ShutdownFailsRunningJobs(t *testing.T) {
	env := newTestEnv(t)
	env.seedProducts(t, fixtures.Products(2)...)
	env.authority.FailAll(fixtures.ErrUnavailable)
	env.sleeper.block = true

	started, err := env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	require.NoError(t, err)
	waitFor(t, env.sleeper.sleeping)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, env.scheduler.Shutdown(ctx))

	job, err := env.scheduler.Job(started.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncJobFailed, job.Status)
	assert.Equal(t, ErrShuttingDown.Error(), job.ErrorMessage)

	_, err = env.scheduler.StartSync(context.Background(), entities.SyncEntityProduct)
	assert.ErrorIs(t, err, ErrShuttingDown)
}
