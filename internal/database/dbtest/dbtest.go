// Package dbtest builds database pools for tests.
//
// NewMock wires go-sqlmock behind gorm's postgres dialector for fast unit
// tests that assert on exact statements. Postgres starts a throwaway
// Postgres container (one per test binary) for integration tests; set
// CATALOG_TEST_DATABASE_URL to reuse an existing server instead, and run
// with -p 1 in that case since every test truncates the catalog tables.
package dbtest

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mrlokans/catalog/internal/database"
)

// QuietLogger discards everything logged through it.
func QuietLogger() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

// NewMock returns a Pool named "mock" whose connections are served by
// go-sqlmock. Zero-valued cfg fields take the pool defaults.
func NewMock(t *testing.T, cfg database.Config, opts ...database.Option) (*database.Pool, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	opts = append([]database.Option{database.WithLogger(QuietLogger()), database.WithName("mock")}, opts...)
	pool, err := database.Wrap(gdb, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	return pool, mock
}

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// URL returns the connection string of the integration test server. The
// test is skipped under -short or without Docker.
func URL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	if dsn := os.Getenv("CATALOG_TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	containerOnce.Do(func() {
		containerDSN, containerErr = startContainer()
	})
	require.NoError(t, containerErr, "failed to start postgres container")
	return containerDSN
}

// Postgres returns a migrated Pool against the server from URL with all
// catalog tables emptied.
func Postgres(t *testing.T) *database.Pool {
	t.Helper()
	dsn := URL(t)

	ctx := context.Background()
	pool, err := database.Open(ctx, database.Config{
		URL:            dsn,
		MinConns:       1,
		MaxConns:       8,
		AcquireTimeout: 10 * time.Second,
		LogLevel:       "silent",
	}, database.WithLogger(QuietLogger()), database.WithName("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, database.Migrate(ctx, pool))
	Truncate(t, pool)
	return pool
}

// Truncate empties every catalog table and resets identities.
func Truncate(t *testing.T, pool database.Executor) {
	t.Helper()
	stmt := "TRUNCATE " + strings.Join(database.Tables, ", ") + " RESTART IDENTITY CASCADE"
	err := pool.Acquire(context.Background(), func(db *gorm.DB) error {
		return db.Exec(stmt).Error
	})
	require.NoError(t, err)
}

// Count returns the number of rows in table matching the optional where clause.
func Count(t *testing.T, pool database.Executor, table, where string, args ...any) int64 {
	t.Helper()
	var n int64
	err := pool.Acquire(context.Background(), func(db *gorm.DB) error {
		q := db.Table(table)
		if where != "" {
			q = q.Where(where, args...)
		}
		return q.Count(&n).Error
	})
	require.NoError(t, err)
	return n
}

// The container is left to the testcontainers reaper, which removes it
// when the test binary exits.
func startContainer() (string, error) {
	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("catalog_test"),
		tcpostgres.WithUsername("catalog"),
		tcpostgres.WithPassword("catalog"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return "", err
	}
	return ctr.ConnectionString(ctx, "sslmode=disable")
}
