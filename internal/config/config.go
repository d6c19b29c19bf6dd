package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/mrlokans/catalog/internal/activity"
	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/logging"
	"github.com/mrlokans/catalog/internal/scheduler"
	"github.com/mrlokans/catalog/internal/tasks"
)

type (
	Config struct {
		HTTP
		Database
		Activity
		Tasks
		Log
		Global
	}

	HTTP struct {
		Enabled bool // Serve /healthz and /metrics from the worker
		Port    int32
		Host    string
	}

	Database struct {
		URL             string // Overrides the discrete fields when set
		Host            string
		Port            int
		User            string
		Password        string
		Name            string
		SSLMode         string
		ApplicationName string
		MinConns        int
		MaxConns        int
		MaxQueue        int // Callers allowed to wait for a busy pool (default: 4 x MaxConns)
		AcquireTimeout  time.Duration
		ConnectTimeout  time.Duration
		ConnMaxLifetime time.Duration
		ConnMaxIdleTime time.Duration
		LogLevel        string // gorm statement logging: silent, error, warn, info
		SlowThreshold   time.Duration
	}
	Activity struct {
		PoolMaxConns    int // Size of the dedicated logging pool (default: 2)
		Workers         int
		QueueSize       int
		WriteTimeout    time.Duration
		Durable         bool // Route entries through the SQLite task queue
		RetentionDays   int  // Days to keep log entries (default: 90)
		CleanupEnabled  bool
		CleanupSchedule string // Cron format: "0 3 * * *" = daily at 03:00
		CleanupViaQueue bool   // Enqueue prune tasks instead of pruning inline
	}
	Tasks struct {
		DBPath          string
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Log struct {
		Level  string
		Format string // text or json
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

// NewConfig reads the configuration from the environment and, when
// CATALOG_CONFIG_FILE is set, from that file. Environment variables win.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("admin_enabled", true)
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// Database defaults
	v.SetDefault("database_host", DefaultDatabaseHost)
	v.SetDefault("database_port", 5432)
	v.SetDefault("database_user", "postgres")
	v.SetDefault("database_name", DefaultDatabaseName)
	v.SetDefault("database_sslmode", "disable")
	v.SetDefault("database_application_name", "catalog")
	v.SetDefault("database_min_conns", database.DefaultMinConns)
	v.SetDefault("database_max_conns", database.DefaultMaxConns)
	v.SetDefault("database_max_queue", 0)
	v.SetDefault("database_acquire_timeout", "5s")
	v.SetDefault("database_connect_timeout", "5s")
	v.SetDefault("database_conn_max_lifetime", "30m")
	v.SetDefault("database_conn_max_idle_time", "5m")
	v.SetDefault("database_log_level", "warn")
	v.SetDefault("database_slow_threshold", "200ms")

	// Activity logger defaults
	v.SetDefault("activity_pool_max_conns", 2)
	v.SetDefault("activity_workers", 2)
	v.SetDefault("activity_queue_size", 1024)
	v.SetDefault("activity_write_timeout", "5s")
	v.SetDefault("activity_durable", false)
	v.SetDefault("activity_retention_days", tasks.DefaultRetentionDays)
	v.SetDefault("activity_cleanup_enabled", true)
	v.SetDefault("activity_cleanup_schedule", scheduler.DefaultSchedule)
	v.SetDefault("activity_cleanup_via_queue", false)

	// Task queue defaults
	v.SetDefault("tasks_db_path", DefaultTasksDBPath)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		HTTP: HTTP{
			Enabled: v.GetBool("ADMIN_ENABLED"),
			Port:    v.GetInt32("PORT"),
			Host:    v.GetString("HOST"),
		},
		Database: Database{
			URL:             v.GetString("DATABASE_URL"),
			Host:            v.GetString("DATABASE_HOST"),
			Port:            v.GetInt("DATABASE_PORT"),
			User:            v.GetString("DATABASE_USER"),
			Password:        v.GetString("DATABASE_PASSWORD"),
			Name:            v.GetString("DATABASE_NAME"),
			SSLMode:         v.GetString("DATABASE_SSLMODE"),
			ApplicationName: v.GetString("DATABASE_APPLICATION_NAME"),
			MinConns:        v.GetInt("DATABASE_MIN_CONNS"),
			MaxConns:        v.GetInt("DATABASE_MAX_CONNS"),
			MaxQueue:        v.GetInt("DATABASE_MAX_QUEUE"),
			AcquireTimeout:  v.GetDuration("DATABASE_ACQUIRE_TIMEOUT"),
			ConnectTimeout:  v.GetDuration("DATABASE_CONNECT_TIMEOUT"),
			ConnMaxLifetime: v.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DATABASE_CONN_MAX_IDLE_TIME"),
			LogLevel:        v.GetString("DATABASE_LOG_LEVEL"),
			SlowThreshold:   v.GetDuration("DATABASE_SLOW_THRESHOLD"),
		},
		Activity: Activity{
			PoolMaxConns:    v.GetInt("ACTIVITY_POOL_MAX_CONNS"),
			Workers:         v.GetInt("ACTIVITY_WORKERS"),
			QueueSize:       v.GetInt("ACTIVITY_QUEUE_SIZE"),
			WriteTimeout:    v.GetDuration("ACTIVITY_WRITE_TIMEOUT"),
			Durable:         v.GetBool("ACTIVITY_DURABLE"),
			RetentionDays:   v.GetInt("ACTIVITY_RETENTION_DAYS"),
			CleanupEnabled:  v.GetBool("ACTIVITY_CLEANUP_ENABLED"),
			CleanupSchedule: v.GetString("ACTIVITY_CLEANUP_SCHEDULE"),
			CleanupViaQueue: v.GetBool("ACTIVITY_CLEANUP_VIA_QUEUE"),
		},
		Tasks: Tasks{
			DBPath:          v.GetString("TASKS_DB_PATH"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}

	if cfg.Database.MaxQueue <= 0 {
		cfg.Database.MaxQueue = database.DefaultQueueFactor * cfg.Database.MaxConns
	}

	if err := scheduler.ValidateCronSchedule(cfg.Activity.CleanupSchedule); err != nil {
		return nil, fmt.Errorf("invalid ACTIVITY_CLEANUP_SCHEDULE '%s': %w", cfg.Activity.CleanupSchedule, err)
	}
	return cfg, nil
}

// MainPool returns the settings of the pool serving foreground operations.
func (c *Config) MainPool() database.Config {
	return database.Config{
		URL:             c.Database.URL,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Name:            c.Database.Name,
		SSLMode:         c.Database.SSLMode,
		ApplicationName: c.Database.ApplicationName,
		MinConns:        c.Database.MinConns,
		MaxConns:        c.Database.MaxConns,
		MaxQueue:        c.Database.MaxQueue,
		AcquireTimeout:  c.Database.AcquireTimeout,
		ConnectTimeout:  c.Database.ConnectTimeout,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
		LogLevel:        c.Database.LogLevel,
		SlowThreshold:   c.Database.SlowThreshold,
	}
}

// LoggingPool returns the settings of the small pool used only by activity
// writes. It connects to the same database as MainPool.
func (c *Config) LoggingPool() database.Config {
	cfg := c.MainPool()
	cfg.MinConns = 1
	cfg.MaxConns = c.Activity.PoolMaxConns
	cfg.MaxQueue = database.DefaultQueueFactor * cfg.MaxConns
	if cfg.ApplicationName != "" {
		cfg.ApplicationName += "-activity"
	}
	return cfg
}

// ActivityConfig returns the background writer settings.
func (c *Config) ActivityConfig() activity.Config {
	return activity.Config{
		Workers:      c.Activity.Workers,
		QueueSize:    c.Activity.QueueSize,
		WriteTimeout: c.Activity.WriteTimeout,
	}
}

// RetentionConfig returns the log retention schedule.
func (c *Config) RetentionConfig() scheduler.RetentionConfig {
	return scheduler.RetentionConfig{
		Enabled:       c.Activity.CleanupEnabled,
		Schedule:      c.Activity.CleanupSchedule,
		RetentionDays: c.Activity.RetentionDays,
	}
}

// TasksConfig returns the task queue settings.
func (c *Config) TasksConfig() tasks.Config {
	return tasks.Config{
		Workers:         c.Tasks.Workers,
		ReleaseAfter:    c.Tasks.ReleaseAfter,
		CleanupInterval: c.Tasks.CleanupInterval,
	}
}

// LoggingConfig returns the root logger settings.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// ShutdownTimeout returns how long graceful shutdown may take.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Global.ShutdownTimeoutInSeconds) * time.Second
}
