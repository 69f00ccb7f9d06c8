package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrlokans/taxsync/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	return db
}

func TestRepository_LogEvent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	event := &entities.AuditEvent{
		EventType:   entities.AuditEventSyncControl,
		Action:      "sync_start",
		Description: "Started product sync",
		EntityType:  "product",
		Status:      entities.AuditStatusSuccess,
	}

	err := repo.LogEvent(event)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestRepository_GetEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	for i := 0; i < 15; i++ {
		event := &entities.AuditEvent{
			EventType:   entities.AuditEventSyncControl,
			Action:      "job_pause",
			Description: "Test event",
			Status:      entities.AuditStatusSuccess,
			CreatedAt:   time.Now().Add(time.Duration(-i) * time.Hour),
		}
		require.NoError(t, repo.LogEvent(event))
	}
	for i := 0; i < 5; i++ {
		event := &entities.AuditEvent{
			EventType:   entities.AuditEventSettings,
			Action:      "auto_sync_update",
			Description: "Settings changed",
			Status:      entities.AuditStatusSuccess,
		}
		require.NoError(t, repo.LogEvent(event))
	}

	t.Run("get all events", func(t *testing.T) {
		events, total, err := repo.GetEvents(50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(20), total)
		assert.Len(t, events, 20)
	})

	t.Run("filter by type", func(t *testing.T) {
		events, total, err := repo.GetEventsByType(entities.AuditEventSettings, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		for _, e := range events {
			assert.Equal(t, entities.AuditEventSettings, e.EventType)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		events, total, err := repo.GetEventsByType(entities.AuditEventSyncControl, 5, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 5)

		events2, _, err := repo.GetEventsByType(entities.AuditEventSyncControl, 5, 5)
		require.NoError(t, err)
		assert.Len(t, events2, 5)
		assert.NotEqual(t, events[0].ID, events2[0].ID)
	})

	t.Run("order by created_at desc", func(t *testing.T) {
		events, _, err := repo.GetEvents(10, 0)
		require.NoError(t, err)
		for i := 1; i < len(events); i++ {
			assert.False(t, events[i-1].CreatedAt.Before(events[i].CreatedAt))
		}
	})

	t.Run("defaults for bad paging input", func(t *testing.T) {
		events, _, err := repo.GetEvents(0, -3)
		require.NoError(t, err)
		assert.Len(t, events, 20)
	})
}

func TestRepository_GetEventsForJob(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	for _, action := range []string{"sync_start", "job_pause", "job_resume"} {
		require.NoError(t, repo.LogEvent(&entities.AuditEvent{
			EventType: entities.AuditEventSyncControl,
			Action:    action,
			JobID:     "job-1",
			Status:    entities.AuditStatusSuccess,
		}))
	}
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventSyncControl,
		Action:    "sync_start",
		JobID:     "job-2",
		Status:    entities.AuditStatusSuccess,
	}))

	events, err := repo.GetEventsForJob("job-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "job_resume", events[0].Action)
}

func TestRepository_DeleteOldEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	old := &entities.AuditEvent{
		EventType: entities.AuditEventSettings,
		Action:    "old",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now().Add(-100 * 24 * time.Hour),
	}
	recent := &entities.AuditEvent{
		EventType: entities.AuditEventSettings,
		Action:    "recent",
		Status:    entities.AuditStatusSuccess,
	}
	require.NoError(t, repo.LogEvent(old))
	require.NoError(t, repo.LogEvent(recent))

	deleted, err := repo.DeleteOldEvents(time.Now().Add(-90 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetEventByID(old.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	found, err := repo.GetEventByID(recent.ID)
	require.NoError(t, err)
	assert.Equal(t, "recent", found.Action)
}
