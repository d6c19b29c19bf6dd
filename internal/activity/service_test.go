package activity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/entities"
	"github.com/mrlokans/catalog/internal/metrics"
)

type memoryStore struct {
	mu      sync.Mutex
	entries []*entities.LogEntry
	calls   int
	err     error
	block   chan struct{}
	cutoff  time.Time
}

func (s *memoryStore) Insert(ctx context.Context, entry *entities.LogEntry) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoff = cutoff
	return 3, s.err
}

func (s *memoryStore) written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *memoryStore) insertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestService(store Store, cfg Config) (*Service, *metrics.Metrics, *test.Hook) {
	logger, hook := test.NewNullLogger()
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(store, cfg, WithMetrics(m), WithLogger(log.NewEntry(logger)))
	return svc, m, hook
}

func outcome(m *metrics.Metrics, name string) float64 {
	return testutil.ToFloat64(m.ActivityEvents.WithLabelValues(name))
}

func TestNewEntry(t *testing.T) {
	userID := int64(7)
	entry, err := NewEntry(&userID, " search_books ", map[string]any{"search": "go"})
	require.NoError(t, err)

	userID = 8
	assert.Equal(t, int64(7), *entry.UserID, "user id is copied")
	assert.Equal(t, "search_books", entry.Action)
	assert.JSONEq(t, `{"search":"go"}`, string(entry.Details))
	assert.NotEqual(t, [16]byte{}, [16]byte(entry.ID))
	assert.False(t, entry.QueuedAt.IsZero())

	entry, err = NewEntry(nil, "anonymous", nil)
	require.NoError(t, err)
	assert.Nil(t, entry.UserID)
	assert.Equal(t, "{}", string(entry.Details))
}

func TestNewEntryRejectsInvalidInput(t *testing.T) {
	_, err := NewEntry(nil, "  ", nil)
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = NewEntry(nil, strings.Repeat("a", entities.LogActionMaxLen+1), nil)
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = NewEntry(nil, "bad_details", map[string]any{"fn": func() {}})
	assert.ErrorIs(t, err, database.ErrValidation)
}

func TestEntryLogEntry(t *testing.T) {
	userID := int64(3)
	entry, err := NewEntry(&userID, "search_books", map[string]any{"limit": 10})
	require.NoError(t, err)

	row := entry.LogEntry()
	assert.Equal(t, &userID, row.UserID)
	assert.Equal(t, "search_books", row.Action)
	assert.JSONEq(t, `{"limit":10}`, string(row.Details))
	assert.True(t, row.CreatedAt.IsZero())
}

func TestEnqueueWritesInBackground(t *testing.T) {
	store := &memoryStore{}
	svc, m, _ := newTestService(store, Config{Workers: 2, QueueSize: 10})
	svc.Start()
	svc.Start()

	for i := 0; i < 5; i++ {
		svc.Enqueue(nil, "search_books", map[string]any{"n": i})
	}

	assert.Eventually(t, func() bool { return store.written() == 5 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, svc.Close(context.Background()))
	assert.Equal(t, 5.0, outcome(m, metrics.ActivityEnqueued))
	assert.Equal(t, 5.0, outcome(m, metrics.ActivityWritten))
}

func TestEnqueueDropsWhenQueueIsFull(t *testing.T) {
	store := &memoryStore{}
	svc, m, hook := newTestService(store, Config{Workers: 1, QueueSize: 2})

	for i := 0; i < 3; i++ {
		svc.Enqueue(nil, "search_books", nil)
	}

	assert.Equal(t, 2, svc.Pending())
	assert.Equal(t, 1.0, outcome(m, metrics.ActivityDropped))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "queue full", hook.LastEntry().Data["reason"])

	require.NoError(t, svc.Close(context.Background()))
	assert.Equal(t, 2, store.written())
}

func TestFailedWritesAreNotRetried(t *testing.T) {
	store := &memoryStore{err: errors.New("insert failed")}
	svc, m, hook := newTestService(store, Config{Workers: 1, QueueSize: 4})
	svc.Start()

	svc.Enqueue(nil, "search_books", nil)
	require.NoError(t, svc.Close(context.Background()))

	assert.Equal(t, 1, store.insertCalls())
	assert.Equal(t, 1.0, outcome(m, metrics.ActivityFailed))
	assert.Equal(t, 0.0, outcome(m, metrics.ActivityWritten))
	assert.True(t, hasMessage(hook, "failed to log activity"))
}

func hasMessage(hook *test.Hook, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

func TestInvalidEnqueueIsReportedNotRaised(t *testing.T) {
	store := &memoryStore{}
	svc, m, _ := newTestService(store, Config{})

	svc.Enqueue(nil, "", nil)

	assert.Equal(t, 0, svc.Pending())
	assert.Equal(t, 1.0, outcome(m, metrics.ActivityFailed))
}

func TestCloseDrainsQueuedEntries(t *testing.T) {
	store := &memoryStore{}
	svc, _, _ := newTestService(store, Config{Workers: 3, QueueSize: 16})

	for i := 0; i < 10; i++ {
		svc.Enqueue(nil, "search_books", nil)
	}
	require.NoError(t, svc.Close(context.Background()))
	require.NoError(t, svc.Close(context.Background()), "second close is a no-op")

	assert.Equal(t, 10, store.written())
}

func TestEnqueueAfterCloseIsDropped(t *testing.T) {
	store := &memoryStore{}
	svc, m, _ := newTestService(store, Config{})
	require.NoError(t, svc.Close(context.Background()))

	svc.Enqueue(nil, "search_books", nil)

	assert.Equal(t, 1.0, outcome(m, metrics.ActivityDropped))
	assert.Equal(t, 0, store.written())
}

func TestCloseGivesUpAtDeadline(t *testing.T) {
	store := &memoryStore{block: make(chan struct{})}
	defer close(store.block)
	svc, _, _ := newTestService(store, Config{Workers: 1, QueueSize: 4, WriteTimeout: time.Minute})
	svc.Start()

	svc.Enqueue(nil, "search_books", nil)
	svc.Enqueue(nil, "search_books", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := svc.Close(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithSinkReplacesStoreForBackgroundWrites(t *testing.T) {
	store := &memoryStore{}
	sink := &memorySink{}
	svc := NewService(store, Config{}, WithSink(sink), WithLogger(log.NewEntry(log.New())))

	svc.Enqueue(nil, "search_books", nil)
	require.NoError(t, svc.Close(context.Background()))

	assert.Equal(t, 0, store.written())
	assert.Len(t, sink.entries, 1)
}

type memorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func (s *memorySink) Write(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func TestLogActionIsSynchronous(t *testing.T) {
	store := &memoryStore{}
	svc, _, _ := newTestService(store, Config{})

	require.NoError(t, svc.LogAction(context.Background(), nil, "search_books", nil))
	assert.Equal(t, 1, store.written())

	store.err = database.NotFound("insert", "logs")
	assert.ErrorIs(t, svc.LogAction(context.Background(), nil, "search_books", nil), database.ErrNotFound)
	assert.ErrorIs(t, svc.LogAction(context.Background(), nil, "", nil), database.ErrValidation)
}

func TestPrune(t *testing.T) {
	store := &memoryStore{}
	svc, _, _ := newTestService(store, Config{})

	before := time.Now()
	deleted, err := svc.Prune(context.Background(), 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, int64(3), deleted)
	assert.WithinDuration(t, before.Add(-24*time.Hour), store.cutoff, time.Second)
}

func TestDefaultsApplied(t *testing.T) {
	svc := NewService(&memoryStore{}, Config{})

	assert.Equal(t, DefaultConfig(), svc.cfg)
	assert.Equal(t, DefaultConfig().QueueSize, cap(svc.queue))
}
