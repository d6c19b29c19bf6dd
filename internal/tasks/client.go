package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
	log "github.com/sirupsen/logrus"

	"github.com/mrlokans/catalog/internal/logging"
)

// Client runs the activity queues on a backlite store kept in its own
// SQLite file, apart from the catalog database.
type Client struct {
	queue   *backlite.Client
	store   *sql.DB
	workers int
	log     *log.Entry
	running atomic.Bool
}

// NewClient opens (or creates) the queue store at dbPath and installs the
// backlite schema. Tasks left in the store are picked up on the next Start.
func NewClient(dbPath string, cfg Config) (*Client, error) {
	store, err := openStore(dbPath, cfg.Workers)
	if err != nil {
		return nil, err
	}

	entry := logging.Tasks()
	queue, err := backlite.NewClient(backlite.ClientConfig{
		DB:              store,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          backliteLogger{entry: entry},
	})
	if err == nil {
		err = queue.Install()
	}
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("task store %s: %w", dbPath, err)
	}

	return &Client{queue: queue, store: store, workers: cfg.Workers, log: entry}, nil
}

func openStore(dbPath string, workers int) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("task store directory: %w", err)
	}
	store, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("task store %s: %w", dbPath, err)
	}
	// Every worker holds a connection while it runs; the rest serve Add.
	store.SetMaxOpenConns(workers + 4)
	store.SetMaxIdleConns(workers + 1)
	store.SetConnMaxLifetime(time.Hour)
	return store, nil
}

// Register adds queues. Call it before Start.
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.queue.Register(q)
	}
}

// Start dispatches tasks to workers until ctx ends or Stop is called.
// Only the first call has any effect.
func (c *Client) Start(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	c.log.WithField("workers", c.workers).Info("task queue started")
	c.queue.Start(ctx)
}

// Stop waits for running tasks until ctx expires. It reports whether every
// worker finished in time.
func (c *Client) Stop(ctx context.Context) bool {
	if !c.running.Load() {
		return true
	}
	drained := c.queue.Stop(ctx)
	if !drained {
		c.log.Warn("task queue stopped before all tasks finished")
		return false
	}
	c.log.Info("task queue stopped")
	return true
}

// Close releases the queue store.
func (c *Client) Close() error {
	return c.store.Close()
}

// Add begins enqueueing tasks; call Save or Ctx(...).Save on the result.
func (c *Client) Add(tasks ...backlite.Task) *backlite.TaskAddOp {
	return c.queue.Add(tasks...)
}

type backliteLogger struct {
	entry *log.Entry
}

func (l backliteLogger) Info(message string, params ...any) {
	l.entry.WithFields(pairs(params)).Info(message)
}

func (l backliteLogger) Error(message string, params ...any) {
	l.entry.WithFields(pairs(params)).Error(message)
}

// pairs turns backlite's alternating key/value params into logrus fields.
// A trailing key without a value is dropped.
func pairs(params []any) log.Fields {
	fields := make(log.Fields, len(params)/2)
	for i := 0; i+1 < len(params); i += 2 {
		fields[fmt.Sprint(params[i])] = params[i+1]
	}
	return fields
}
