// Package synclog provides the append-only store of sync outcomes.
//
// Entries are never updated or deleted; the package exposes no method that
// could do either.
//
// # Usage
//
//	repo := synclog.NewRepository(db)
//	entries, total, err := repo.Query(synclog.Filter{EntityType: entities.SyncEntityProduct}, 50, 0)
package synclog

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/taxsync/internal/entities"
)

// Filter narrows a log query. Zero values match everything.
type Filter struct {
	EntityType entities.SyncEntityType
	Outcome    entities.SyncOutcome
	JobID      string
	Since      time.Time
}

// Repository handles sync log persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new sync log repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Append stores a new entry. Entries that already have an ID are rejected.
func (r *Repository) Append(entry *entities.SyncLogEntry) error {
	if entry.ID != 0 {
		return errors.New("sync log entries are immutable")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return r.db.Create(entry).Error
}

// Query returns entries matching the filter, newest first.
func (r *Repository) Query(filter Filter, limit, offset int) ([]entities.SyncLogEntry, int64, error) {
	var entries []entities.SyncLogEntry
	var total int64

	query := r.apply(r.db.Model(&entities.SyncLogEntry{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("timestamp DESC, id DESC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, total, err
}

// Latest returns the newest entry for an entity type, optionally restricted to outcomes.
// It returns nil without error when nothing matches.
func (r *Repository) Latest(entityType entities.SyncEntityType, outcomes ...entities.SyncOutcome) (*entities.SyncLogEntry, error) {
	var entry entities.SyncLogEntry
	query := r.db.Where("entity_type = ?", entityType)
	if len(outcomes) > 0 {
		query = query.Where("outcome IN ?", outcomes)
	}
	err := query.Order("timestamp DESC, id DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CountByOutcome tallies entries per outcome since the given time.
func (r *Repository) CountByOutcome(since time.Time) (map[entities.SyncOutcome]int64, error) {
	var rows []struct {
		Outcome entities.SyncOutcome
		Count   int64
	}
	query := r.db.Model(&entities.SyncLogEntry{}).Select("outcome, COUNT(*) AS count").Group("outcome")
	if !since.IsZero() {
		query = query.Where("timestamp >= ?", since)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[entities.SyncOutcome]int64, len(rows))
	for _, row := range rows {
		counts[row.Outcome] = row.Count
	}
	return counts, nil
}

func (r *Repository) apply(query *gorm.DB, filter Filter) *gorm.DB {
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.Outcome != "" {
		query = query.Where("outcome = ?", filter.Outcome)
	}
	if filter.JobID != "" {
		query = query.Where("job_id = ?", filter.JobID)
	}
	if !filter.Since.IsZero() {
		query = query.Where("timestamp >= ?", filter.Since)
	}
	return query
}
