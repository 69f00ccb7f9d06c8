package settingsstore

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/taxsync/internal/database"
	"github.com/mrlokans/taxsync/internal/database/settings"
)

// Setting sources, reported alongside effective values.
const (
	SourceDatabase    = "database"
	SourceEnvironment = "environment"
	SourceDefault     = "default"
)

// Priority: database > environment > default
type SettingsStore struct {
	db   *database.Database
	repo *settings.Repository
}

func New(db *database.Database) *SettingsStore {
	return &SettingsStore{db: db, repo: settings.NewRepository(db.DB)}
}

// lookup resolves a key to its raw value and source. An empty value means the
// caller should apply its default.
func (s *SettingsStore) lookup(key, envVar string) (string, string) {
	setting, err := s.db.GetSetting(key)
	if err == nil && setting.Value != "" {
		return setting.Value, SourceDatabase
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal, SourceEnvironment
	}
	return "", SourceDefault
}

func (s *SettingsStore) clear(keys ...string) error {
	for _, key := range keys {
		if err := s.db.DeleteSetting(key); err != nil && !settings.IsNotFound(err) {
			return err
		}
	}
	return nil
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronSchedule validates a cron schedule string. Descriptors such as
// "@every 10m" and "@daily" are accepted.
func ValidateCronSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// GetNextRunTime calculates when a schedule fires next after from.
func GetNextRunTime(schedule string, from time.Time) (*time.Time, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, err
	}
	next := sched.Next(from)
	return &next, nil
}
