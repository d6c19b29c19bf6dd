// Package logging configures the process-wide logrus logger and hands out
// component-scoped entries.
//
// # Usage
//
//	logging.Setup(logging.Config{Level: "info", Format: "json"})
//	logging.DB().WithField("pool", "main").Info("pool opened")
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

// Config selects the level and output format of the root logger.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // text or json
}

var root = log.New()

// Setup applies cfg to the root logger. Unknown levels fall back to info.
func Setup(cfg Config) *log.Logger {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	root.SetLevel(level)
	root.SetOutput(os.Stderr)

	if strings.EqualFold(cfg.Format, "json") {
		root.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		root.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return root
}

// SetOutput redirects the root logger, mostly for tests.
func SetOutput(w io.Writer) {
	root.SetOutput(w)
}

// Root returns the process-wide logger.
func Root() *log.Logger {
	return root
}

// WithField returns an entry of the root logger carrying one field.
func WithField(key string, value any) *log.Entry {
	return root.WithField(key, value)
}

// DB returns a logger for the connection pool and repositories.
func DB() *log.Entry {
	return WithField("component", "db")
}

// Search returns a logger for the search engine.
func Search() *log.Entry {
	return WithField("component", "search")
}

// Activity returns a logger for the activity logger.
func Activity() *log.Entry {
	return WithField("component", "activity")
}

// Tasks returns a logger for the background task queue.
func Tasks() *log.Entry {
	return WithField("component", "tasks")
}

// Scheduler returns a logger for cron jobs.
func Scheduler() *log.Entry {
	return WithField("component", "scheduler")
}

// CLI returns a logger for command line operations.
func CLI() *log.Entry {
	return WithField("component", "cli")
}

// Gorm bridges gorm's statement logging into entry. level is one of
// silent, error, warn, info; slow statements above slowThreshold are
// reported at warn.
func Gorm(entry *log.Entry, level string, slowThreshold time.Duration) gormlogger.Interface {
	return gormlogger.New(entry, gormlogger.Config{
		SlowThreshold:             slowThreshold,
		LogLevel:                  gormLevel(level),
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
		Colorful:                  false,
	})
}

func gormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
