package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSyncEntityType(t *testing.T) {
	tests := []struct {
		input   string
		want    SyncEntityType
		wantErr bool
	}{
		{"product", SyncEntityProduct, false},
		{"Products", SyncEntityProduct, false},
		{" invoice ", SyncEntityInvoice, false},
		{"INVOICES", SyncEntityInvoice, false},
		{"full", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSyncEntityType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestSyncJobStatus(t *testing.T) {
	tests := []struct {
		status   SyncJobStatus
		terminal bool
		active   bool
	}{
		{SyncJobPending, false, true},
		{SyncJobRunning, false, true},
		{SyncJobPaused, false, false},
		{SyncJobCompleted, true, false},
		{SyncJobFailed, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.active, tt.status.IsActive())
		})
	}
}

func TestSyncJob_SuccessRate(t *testing.T) {
	assert.Zero(t, SyncJob{}.SuccessRate())
	job := SyncJob{RecordsProcessed: 10, RecordsSucceeded: 9}
	assert.InDelta(t, 0.9, job.SuccessRate(), 1e-9)
}

func TestDescribe(t *testing.T) {
	p := &Product{ID: 7, Name: "Widget", RegistrationCode: "BAD"}
	assert.Contains(t, p.Describe(), "product #7")
	inv := &Invoice{ID: 3, Number: "INV-3"}
	assert.Contains(t, inv.Describe(), "invoice #3")
}
