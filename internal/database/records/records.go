// Package records holds the sync-state queries shared by the product and
// invoice repositories. Both tables carry id, sync_state, sync_attempts,
// last_sync_error, external_ref and synced_at columns.
package records

import (
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/mrlokans/taxsync/internal/entities"
)

// Snapshot counts pending rows and returns the highest pending id.
func Snapshot(db *gorm.DB, model any) (count int64, maxID uint, err error) {
	var row struct {
		Count int64
		MaxID *uint
	}
	err = db.Model(model).
		Select("COUNT(*) AS count, MAX(id) AS max_id").
		Where("sync_state = ?", entities.RecordSyncPending).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	if row.MaxID != nil {
		maxID = *row.MaxID
	}
	return row.Count, maxID, nil
}

// EligibleQuery selects pending rows with after < id <= until in id order.
func EligibleQuery(db *gorm.DB, after, until uint, limit int) *gorm.DB {
	return db.Where("sync_state = ? AND id > ? AND id <= ?", entities.RecordSyncPending, after, until).
		Order("id ASC").
		Limit(limit)
}

// MarkSynced records an accepted submission.
func MarkSynced(db *gorm.DB, model any, id uint, externalRef string, attempts int, at time.Time) error {
	return db.Model(model).Where("id = ?", id).Updates(map[string]any{
		"sync_state":      entities.RecordSyncSynced,
		"sync_attempts":   attempts,
		"external_ref":    externalRef,
		"last_sync_error": "",
		"synced_at":       at,
	}).Error
}

// MarkFailed records a permanent failure for this run.
func MarkFailed(db *gorm.DB, model any, id uint, reason string, attempts int) error {
	reason = truncate(reason, maxReasonLength)
	return db.Model(model).Where("id = ?", id).Updates(map[string]any{
		"sync_state":      entities.RecordSyncFailed,
		"sync_attempts":   attempts,
		"last_sync_error": reason,
	}).Error
}

const maxReasonLength = 500

// truncate shortens s to at most limit bytes, cutting on a rune boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// CountByState tallies rows per sync state.
func CountByState(db *gorm.DB, model any) (entities.SyncStateCounts, error) {
	var rows []struct {
		SyncState entities.RecordSyncState
		Count     int64
	}
	err := db.Model(model).
		Select("sync_state, COUNT(*) AS count").
		Group("sync_state").
		Scan(&rows).Error
	if err != nil {
		return entities.SyncStateCounts{}, err
	}

	var counts entities.SyncStateCounts
	for _, row := range rows {
		counts.Total += row.Count
		switch row.SyncState {
		case entities.RecordSyncPending:
			counts.Pending += row.Count
		case entities.RecordSyncSynced:
			counts.Synced += row.Count
		case entities.RecordSyncFailed:
			counts.Failed += row.Count
		}
	}
	return counts, nil
}

// Requeue moves failed rows back to pending. An empty ids slice requeues every failed row.
func Requeue(db *gorm.DB, model any, ids []uint) (int64, error) {
	query := db.Model(model).Where("sync_state = ?", entities.RecordSyncFailed)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	result := query.Updates(map[string]any{
		"sync_state":      entities.RecordSyncPending,
		"sync_attempts":   0,
		"last_sync_error": "",
	})
	return result.RowsAffected, result.Error
}
