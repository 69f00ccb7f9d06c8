package settingsstore

import (
	"fmt"
	"strconv"

	"github.com/mrlokans/taxsync/internal/config"
	"github.com/mrlokans/taxsync/internal/entities"
)

const (
	envAutoSyncEnabled  = "AUTO_SYNC_ENABLED"
	envAutoSyncInterval = "AUTO_SYNC_INTERVAL_MINUTES"
)

// AutoSyncConfig is the effective auto-sync configuration
type AutoSyncConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"interval_minutes"`
}

// Schedule renders the interval as a cron descriptor.
func (c AutoSyncConfig) Schedule() string {
	return fmt.Sprintf("@every %dm", c.IntervalMinutes)
}

// AutoSyncConfigInfo includes source information for each field
type AutoSyncConfigInfo struct {
	Enabled       bool   `json:"enabled"`
	EnabledSource string `json:"enabled_source"`

	IntervalMinutes int    `json:"interval_minutes"`
	IntervalSource  string `json:"interval_source"`
	MinInterval     int    `json:"min_interval"`
	MaxInterval     int    `json:"max_interval"`
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

// GetAutoSyncEnabled returns whether auto-sync is enabled (database > env > default)
func (s *SettingsStore) GetAutoSyncEnabled() bool {
	v, _ := s.lookup(entities.SettingKeyAutoSyncEnabled, envAutoSyncEnabled)
	return parseBool(v)
}

func (s *SettingsStore) GetAutoSyncEnabledSource() string {
	_, source := s.lookup(entities.SettingKeyAutoSyncEnabled, envAutoSyncEnabled)
	return source
}

func (s *SettingsStore) SetAutoSyncEnabled(enabled bool) error {
	return s.db.SetSetting(entities.SettingKeyAutoSyncEnabled, strconv.FormatBool(enabled))
}

// GetAutoSyncInterval returns the interval in minutes, clamped to the supported range.
// Unparseable values fall through to the default.
func (s *SettingsStore) GetAutoSyncInterval() int {
	v, _ := s.lookup(entities.SettingKeyAutoSyncInterval, envAutoSyncInterval)
	minutes, err := strconv.Atoi(v)
	if err != nil {
		return config.DefaultAutoSyncInterval
	}
	return config.ClampInterval(minutes)
}

func (s *SettingsStore) GetAutoSyncIntervalSource() string {
	_, source := s.lookup(entities.SettingKeyAutoSyncInterval, envAutoSyncInterval)
	return source
}

// SetAutoSyncInterval stores the clamped interval and returns the stored value.
func (s *SettingsStore) SetAutoSyncInterval(minutes int) (int, error) {
	clamped := config.ClampInterval(minutes)
	if err := s.db.SetSetting(entities.SettingKeyAutoSyncInterval, strconv.Itoa(clamped)); err != nil {
		return 0, err
	}
	return clamped, nil
}

// GetAutoSyncConfig returns the effective configuration
func (s *SettingsStore) GetAutoSyncConfig() AutoSyncConfig {
	return AutoSyncConfig{
		Enabled:         s.GetAutoSyncEnabled(),
		IntervalMinutes: s.GetAutoSyncInterval(),
	}
}

// GetAutoSyncConfigInfo returns the configuration with source information
func (s *SettingsStore) GetAutoSyncConfigInfo() AutoSyncConfigInfo {
	return AutoSyncConfigInfo{
		Enabled:         s.GetAutoSyncEnabled(),
		EnabledSource:   s.GetAutoSyncEnabledSource(),
		IntervalMinutes: s.GetAutoSyncInterval(),
		IntervalSource:  s.GetAutoSyncIntervalSource(),
		MinInterval:     config.MinAutoSyncInterval,
		MaxInterval:     config.MaxAutoSyncInterval,
	}
}

// ClearAutoSyncSettings removes database overrides, reverting to env/default
func (s *SettingsStore) ClearAutoSyncSettings() error {
	return s.clear(entities.SettingKeyAutoSyncEnabled, entities.SettingKeyAutoSyncInterval)
}

// AutoSyncUpdate is a partial update; nil fields keep their current value.
type AutoSyncUpdate struct {
	Enabled         *bool `json:"enabled"`
	IntervalMinutes *int  `json:"interval_minutes"`
}

// UpdateAutoSync writes the provided fields in one transaction and returns the
// resulting effective configuration. Intervals are clamped before storing.
func (s *SettingsStore) UpdateAutoSync(update AutoSyncUpdate) (AutoSyncConfig, error) {
	values := make(map[string]string, 2)
	if update.Enabled != nil {
		values[entities.SettingKeyAutoSyncEnabled] = strconv.FormatBool(*update.Enabled)
	}
	if update.IntervalMinutes != nil {
		values[entities.SettingKeyAutoSyncInterval] = strconv.Itoa(config.ClampInterval(*update.IntervalMinutes))
	}
	if len(values) > 0 {
		if err := s.repo.SetSettings(values); err != nil {
			return AutoSyncConfig{}, fmt.Errorf("failed to save auto-sync settings: %w", err)
		}
	}
	return s.GetAutoSyncConfig(), nil
}
