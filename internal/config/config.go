package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Logging
		TaxAuthority
		Sync
		Confirmation
		Audit
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Logging struct {
		Level  string // debug, info, warn, error
		Format string // "json" or "console"
	}
	TaxAuthority struct {
		BaseURL        string
		APIKey         string
		RequestTimeout time.Duration
		RateLimit      float64 // Requests per second, 0 disables limiting
		Burst          int
	}
	Sync struct {
		AutoSyncEnabled         bool
		AutoSyncIntervalMinutes int // Clamped to [MinAutoSyncInterval, MaxAutoSyncInterval]
		BatchSize               int
		MaxAttempts             int
		RetryBaseDelay          time.Duration
		RetryMaxDelay           time.Duration
		SubmitTimeout           time.Duration // Upper bound for a single external call
	}
	Confirmation struct {
		Enabled   bool
		Schedule  string // Cron format, e.g. "@every 10m"
		BatchSize int
	}
	Audit struct {
		RetentionDays   int    // Days to keep operator audit events (default: 90)
		CleanupSchedule string // Cron format
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
)

// Normalize clamps the sync settings into their supported ranges.
func (s *Sync) Normalize() {
	s.AutoSyncIntervalMinutes = ClampInterval(s.AutoSyncIntervalMinutes)
	if s.BatchSize <= 0 {
		s.BatchSize = DefaultBatchSize
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
	if s.RetryBaseDelay <= 0 {
		s.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if s.RetryMaxDelay < s.RetryBaseDelay {
		s.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if s.SubmitTimeout <= 0 {
		s.SubmitTimeout = DefaultSubmitTimeout
	}
}

// ClampInterval bounds an auto-sync interval in minutes to the supported range.
func ClampInterval(minutes int) int {
	if minutes < MinAutoSyncInterval {
		return MinAutoSyncInterval
	}
	if minutes > MaxAutoSyncInterval {
		return MaxAutoSyncInterval
	}
	return minutes
}

// loadDotEnv reads an optional .env file; real environment variables win.
func loadDotEnv() {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

func NewConfig() *Config {
	loadDotEnv()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 10)
	v.SetDefault("database_path", DefaultDatabasePath)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	// Tax authority defaults
	v.SetDefault("tax_authority_base_url", DefaultTaxAuthorityURL)
	v.SetDefault("tax_authority_api_key", "")
	v.SetDefault("tax_authority_request_timeout", "15s")
	v.SetDefault("tax_authority_rate_limit", 5.0)
	v.SetDefault("tax_authority_burst", 5)

	// Sync engine defaults
	v.SetDefault("auto_sync_enabled", false)
	v.SetDefault("auto_sync_interval_minutes", DefaultAutoSyncInterval)
	v.SetDefault("sync_batch_size", DefaultBatchSize)
	v.SetDefault("sync_max_attempts", DefaultMaxAttempts)
	v.SetDefault("sync_retry_base_delay", DefaultRetryBaseDelay.String())
	v.SetDefault("sync_retry_max_delay", DefaultRetryMaxDelay.String())
	v.SetDefault("sync_submit_timeout", DefaultSubmitTimeout.String())

	// Invoice confirmation polling
	v.SetDefault("confirmation_enabled", true)
	v.SetDefault("confirmation_schedule", "@every 10m")
	v.SetDefault("confirmation_batch_size", 50)

	v.SetDefault("audit_retention_days", 90)
	v.SetDefault("audit_cleanup_schedule", "30 3 * * *") // Daily at 03:30

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	cfg := &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Logging: Logging{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		TaxAuthority: TaxAuthority{
			BaseURL:        v.GetString("TAX_AUTHORITY_BASE_URL"),
			APIKey:         v.GetString("TAX_AUTHORITY_API_KEY"),
			RequestTimeout: v.GetDuration("TAX_AUTHORITY_REQUEST_TIMEOUT"),
			RateLimit:      v.GetFloat64("TAX_AUTHORITY_RATE_LIMIT"),
			Burst:          v.GetInt("TAX_AUTHORITY_BURST"),
		},
		Sync: Sync{
			AutoSyncEnabled:         v.GetBool("AUTO_SYNC_ENABLED"),
			AutoSyncIntervalMinutes: v.GetInt("AUTO_SYNC_INTERVAL_MINUTES"),
			BatchSize:               v.GetInt("SYNC_BATCH_SIZE"),
			MaxAttempts:             v.GetInt("SYNC_MAX_ATTEMPTS"),
			RetryBaseDelay:          v.GetDuration("SYNC_RETRY_BASE_DELAY"),
			RetryMaxDelay:           v.GetDuration("SYNC_RETRY_MAX_DELAY"),
			SubmitTimeout:           v.GetDuration("SYNC_SUBMIT_TIMEOUT"),
		},
		Confirmation: Confirmation{
			Enabled:   v.GetBool("CONFIRMATION_ENABLED"),
			Schedule:  v.GetString("CONFIRMATION_SCHEDULE"),
			BatchSize: v.GetInt("CONFIRMATION_BATCH_SIZE"),
		},
		Audit: Audit{
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
	}
	cfg.Sync.Normalize()

	return cfg
}
