package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/entrypoint"
	"github.com/mrlokans/taxsync/internal/fixtures"
	"github.com/mrlokans/taxsync/internal/syncengine"
)

// testBase points a command at a temp database and a fake authority.
func testBase(t *testing.T, authority *fixtures.FakeAuthority) (base, *bytes.Buffer) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	out := &bytes.Buffer{}
	noSleep := syncengine.SleeperFunc(func(ctx context.Context, d time.Duration) error { return ctx.Err() })
	return base{
		DatabasePath: filepath.Join(t.TempDir(), "taxsync.db"),
		out:          out,
		opts:         []entrypoint.AppOption{entrypoint.WithAuthority(authority), entrypoint.WithSleeper(noSleep)},
	}, out
}

func seed(t *testing.T, b base, products, invoices int) {
	t.Helper()
	app, err := b.openApp()
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close(context.Background())) }()

	if products > 0 {
		require.NoError(t, app.Products.Create(fixtures.Products(products)...))
	}
	if invoices > 0 {
		require.NoError(t, app.Invoices.Create(fixtures.Invoices(invoices)...))
	}
}

func TestSyncOnceCommand_ParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		entity  string
		wantErr bool
	}{
		{"defaults to full", nil, "full", false},
		{"single type", []string{"-entity", "invoice"}, "invoice", false},
		{"unknown type", []string{"-entity", "customer"}, "", true},
		{"bad timeout", []string{"-timeout", "0s"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewSyncOnceCommand()
			err := cmd.ParseFlags(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.entity, cmd.Entity)
		})
	}
}

func TestSyncOnceCommand_Run(t *testing.T) {
	authority := fixtures.NewFakeAuthority()
	authority.Reject(fixtures.ProductCode(2), "unknown category")
	b, out := testBase(t, authority)
	seed(t, b, 3, 1)

	cmd := &SyncOnceCommand{base: b, Entity: entities.SyncTargetFull, Timeout: 10 * time.Second}
	require.NoError(t, cmd.Run())

	output := out.String()
	assert.Contains(t, output, "=== Sync Results ===")
	assert.Contains(t, output, "product")
	assert.Contains(t, output, "3/3")
	assert.Contains(t, output, "invoice")
	assert.Contains(t, output, "completed")
}

func TestRequeueCommand(t *testing.T) {
	authority := fixtures.NewFakeAuthority()
	authority.Reject(fixtures.ProductCode(1), "duplicate")
	authority.Reject(fixtures.ProductCode(3), "duplicate")
	b, out := testBase(t, authority)
	seed(t, b, 3, 0)

	syncCmd := &SyncOnceCommand{base: b, Entity: "product", Timeout: 10 * time.Second}
	require.NoError(t, syncCmd.Run())

	cmd := NewRequeueCommand()
	cmd.base = b
	require.NoError(t, cmd.ParseFlags([]string{"-entity", "product", "-ids", "1"}))
	assert.Equal(t, []uint{1}, cmd.IDs)

	out.Reset()
	require.NoError(t, cmd.Run())
	assert.Contains(t, out.String(), "Requeued 1 product record(s)")

	app, err := b.openApp()
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close(context.Background())) }()

	counts, err := app.Products.CountByState()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Pending)
	assert.Equal(t, int64(1), counts.Failed)

	events, total, err := app.Audit.GetEventsByType(entities.AuditEventRequeue, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "cli", events[0].IPAddress)
}

func TestRequeueCommand_ParseFlags(t *testing.T) {
	cmd := NewRequeueCommand()
	assert.Error(t, cmd.ParseFlags(nil))

	cmd = NewRequeueCommand()
	assert.Error(t, cmd.ParseFlags([]string{"-entity", "product", "-ids", "1,x"}))

	cmd = NewRequeueCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-entity", "invoices", "-ids", " 4, 5 ,"}))
	assert.Equal(t, []uint{4, 5}, cmd.IDs)
}
