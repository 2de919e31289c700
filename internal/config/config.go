package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		SourceDB
		AnalyticsDB
		Sync
		Tasks
		Scheduler
		Global
	}

	HTTP struct {
		Port int32
		Host string
	}
	SourceDB struct {
		DSN string
	}
	AnalyticsDB struct {
		DSN string
	}
	Sync struct {
		PageSize  int
		PagePause time.Duration // yield between extraction pages
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxAttempts       int
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Scheduler struct {
		Enabled  bool
		Schedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("source_dsn", DefaultSourceDSN)
	v.SetDefault("analytics_dsn", DefaultAnalyticsDSN)

	// Sync defaults
	v.SetDefault("sync_page_size", 500)
	v.SetDefault("sync_page_pause", "200ms")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_attempts", 1)
	v.SetDefault("task_timeout", "30m")
	v.SetDefault("task_release_after", "45m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	// Scheduler defaults
	v.SetDefault("sync_schedule_enabled", false)
	v.SetDefault("sync_schedule", "0 3 * * *") // Daily at 03:00

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		SourceDB: SourceDB{
			DSN: v.GetString("SOURCE_DSN"),
		},
		AnalyticsDB: AnalyticsDB{
			DSN: v.GetString("ANALYTICS_DSN"),
		},
		Sync: Sync{
			PageSize:  v.GetInt("SYNC_PAGE_SIZE"),
			PagePause: v.GetDuration("SYNC_PAGE_PAUSE"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxAttempts:       v.GetInt("TASK_MAX_ATTEMPTS"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Scheduler: Scheduler{
			Enabled:  v.GetBool("SYNC_SCHEDULE_ENABLED"),
			Schedule: v.GetString("SYNC_SCHEDULE"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}
