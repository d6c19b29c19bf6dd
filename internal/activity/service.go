// Package activity records user actions in the activity log without
// holding up the request that triggered them.
//
// Enqueue snapshots the entry and hands it to a bounded queue drained by
// background workers, each writing through its own pooled connection.
// Writes that fail are logged and counted, never returned to the caller
// and never retried. When the queue is full new entries are dropped.
//
// # Usage
//
//	svc := activity.NewService(logs.NewRepository(loggingPool), activity.DefaultConfig())
//	svc.Start()
//	defer svc.Close(ctx)
//
//	svc.Enqueue(&userID, "search_books", map[string]any{"search": "systems"})
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/entities"
	"github.com/mrlokans/catalog/internal/logging"
	"github.com/mrlokans/catalog/internal/metrics"
)

// Store persists and prunes log entries.
type Store interface {
	Insert(ctx context.Context, entry *entities.LogEntry) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sink receives entries from the background workers.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// Entry is an immutable snapshot of one action waiting to be written.
type Entry struct {
	ID       uuid.UUID       `json:"id"`
	UserID   *int64          `json:"user_id,omitempty"`
	Action   string          `json:"action"`
	Details  json.RawMessage `json:"details"`
	QueuedAt time.Time       `json:"queued_at"`
}

// NewEntry validates the action and freezes details as JSON.
func NewEntry(userID *int64, action string, details map[string]any) (Entry, error) {
	entry := Entry{
		ID:       uuid.New(),
		Action:   strings.TrimSpace(action),
		QueuedAt: time.Now().UTC(),
	}
	if userID != nil {
		id := *userID
		entry.UserID = &id
	}

	if entry.Action == "" {
		return entry, database.Invalid("log_action", "action", "is required")
	}
	if utf8.RuneCountInString(entry.Action) > entities.LogActionMaxLen {
		return entry, database.Invalid("log_action", "action",
			fmt.Sprintf("must be at most %d characters", entities.LogActionMaxLen))
	}

	if details == nil {
		entry.Details = json.RawMessage("{}")
		return entry, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return entry, database.Invalid("log_action", "details", err.Error())
	}
	entry.Details = raw
	return entry, nil
}

// LogEntry converts e into a row. CreatedAt is left for the store to set
// at insertion time.
func (e Entry) LogEntry() *entities.LogEntry {
	return &entities.LogEntry{
		UserID:  e.UserID,
		Action:  e.Action,
		Details: datatypes.JSON(e.Details),
	}
}

// StoreSink writes entries straight to a Store.
type StoreSink struct {
	Store Store
}

func (s StoreSink) Write(ctx context.Context, entry Entry) error {
	return s.Store.Insert(ctx, entry.LogEntry())
}

// Config controls the background writer.
type Config struct {
	// Workers is the number of goroutines writing entries. Default: 2
	Workers int

	// QueueSize bounds the entries waiting to be written. Default: 1024
	QueueSize int

	// WriteTimeout bounds a single write. Default: 5s
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:      2,
		QueueSize:    1024,
		WriteTimeout: 5 * time.Second,
	}
}

// Service provides activity logging.
type Service struct {
	store   Store
	sink    Sink
	cfg     Config
	metrics *metrics.Metrics
	log     *log.Entry

	queue   chan Entry
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
}

// Option customises a Service.
type Option func(*Service)

// WithSink routes background writes through sink instead of the store.
func WithSink(sink Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithMetrics enables activity counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger replaces the component logger.
func WithLogger(entry *log.Entry) Option {
	return func(s *Service) { s.log = entry }
}

// NewService creates a new activity service. Call Start before Enqueue.
func NewService(store Store, cfg Config, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	s := &Service{
		store: store,
		sink:  StoreSink{Store: store},
		cfg:   cfg,
		log:   logging.Activity(),
		queue: make(chan Entry, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogAction writes one entry synchronously. userID may be nil for an
// anonymous action.
func (s *Service) LogAction(ctx context.Context, userID *int64, action string, details map[string]any) error {
	entry, err := NewEntry(userID, action, details)
	if err != nil {
		return err
	}
	return s.store.Insert(ctx, entry.LogEntry())
}

// Enqueue hands an entry to the background writer and returns at once.
// Invalid entries and entries that do not fit in the queue are reported
// and discarded.
func (s *Service) Enqueue(userID *int64, action string, details map[string]any) {
	entry, err := NewEntry(userID, action, details)
	if err != nil {
		s.failed(entry, err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.dropped(entry, "logger closed")
		return
	}
	select {
	case s.queue <- entry:
		s.metrics.Activity(metrics.ActivityEnqueued)
	default:
		s.dropped(entry, "queue full")
	}
}

// Start launches the background workers. Calling it again is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

func (s *Service) startLocked() {
	if s.started {
		return
	}
	s.started = true
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.log.WithField("workers", s.cfg.Workers).Info("activity logger started")
}

// Close stops accepting entries and waits, up to ctx's deadline, for the
// queued ones to be written.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.startLocked()
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("activity logger stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("activity logger: %d entries not written: %w", len(s.queue), ctx.Err())
	}
}

// Pending returns the number of queued entries.
func (s *Service) Pending() int {
	return len(s.queue)
}

// Prune deletes entries older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(log.Fields{"deleted": deleted, "cutoff": cutoff}).Info("pruned activity log")
	return deleted, nil
}

func (s *Service) worker() {
	defer s.wg.Done()
	for entry := range s.queue {
		s.write(entry)
	}
}

func (s *Service) write(entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			s.failed(entry, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()

	if err := s.sink.Write(ctx, entry); err != nil {
		s.failed(entry, err)
		return
	}
	s.metrics.Activity(metrics.ActivityWritten)
}

func (s *Service) failed(entry Entry, err error) {
	s.metrics.Activity(metrics.ActivityFailed)
	s.log.WithError(err).WithFields(log.Fields{
		"entry_id": entry.ID,
		"action":   entry.Action,
	}).Warn("failed to log activity")
}

func (s *Service) dropped(entry Entry, reason string) {
	s.metrics.Activity(metrics.ActivityDropped)
	s.log.WithFields(log.Fields{
		"entry_id": entry.ID,
		"action":   entry.Action,
		"reason":   reason,
	}).Warn("dropped activity entry")
}
