package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mrlokans/catalog/internal/logging"
	"github.com/mrlokans/catalog/internal/metrics"
)

// Executor runs work on a pooled connection. Repositories depend on this
// rather than on *Pool.
type Executor interface {
	// Acquire pins one connection for the duration of fn.
	Acquire(ctx context.Context, fn func(db *gorm.DB) error) error
	// Transaction runs fn inside one transaction on one connection; fn's
	// error or panic rolls everything back.
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// Pool is an explicitly owned, bounded set of connections to Postgres.
// Open it once at startup, pass it to every component, Close it once.
type Pool struct {
	name    string
	db      *gorm.DB
	sqlDB   *sql.DB
	cfg     Config
	log     *log.Entry
	metrics *metrics.Metrics

	waiting  atomic.Int64
	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

var _ Executor = (*Pool)(nil)

// Option customises a Pool.
type Option func(*options)

type options struct {
	name       string
	log        *log.Entry
	gormLogger gormlogger.Interface
	metrics    *metrics.Metrics
}

// WithName labels the pool in logs and metrics. Default: "main".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger replaces the component logger.
func WithLogger(entry *log.Entry) Option {
	return func(o *options) { o.log = entry }
}

// WithGormLogger replaces the statement logger handed to gorm.
func WithGormLogger(l gormlogger.Interface) Option {
	return func(o *options) { o.gormLogger = l }
}

// WithMetrics enables pool instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{name: "main"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.DB()
	}
	o.log = o.log.WithField("pool", o.name)
	return o
}

// Open connects to Postgres, verifies the credentials and opens
// cfg.MinConns connections up front. An unreachable server or rejected
// credentials yield ErrConnection.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Pool, error) {
	cfg = cfg.withDefaults()
	o := buildOptions(opts)

	gl := o.gormLogger
	if gl == nil {
		gl = logging.Gorm(o.log, cfg.LogLevel, cfg.SlowThreshold)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{DSN: cfg.DSN()}), &gorm.Config{
		Logger:                 gl,
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return nil, &Error{Op: "open", Kind: ErrConnection, Err: err}
	}

	p, err := newPool(gdb, cfg, o)
	if err != nil {
		return nil, err
	}

	if err := p.warmUp(ctx); err != nil {
		_ = p.sqlDB.Close()
		return nil, err
	}

	p.log.WithFields(log.Fields{
		"dsn":       cfg.Redacted(),
		"min_conns": cfg.MinConns,
		"max_conns": cfg.MaxConns,
	}).Info("database pool opened")

	return p, nil
}

// Wrap adopts an already opened gorm handle, applying cfg's pool bounds.
// No connections are opened eagerly.
func Wrap(gdb *gorm.DB, cfg Config, opts ...Option) (*Pool, error) {
	return newPool(gdb, cfg.withDefaults(), buildOptions(opts))
}

func newPool(gdb *gorm.DB, cfg Config, o options) (*Pool, error) {
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, &Error{Op: "open", Kind: ErrConnection, Err: err}
	}

	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(max(cfg.MinConns, cfg.MaxConns/2, 2))
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &Pool{
		name:    o.name,
		db:      gdb,
		sqlDB:   sqlDB,
		cfg:     cfg,
		log:     o.log,
		metrics: o.metrics,
	}, nil
}

func (p *Pool) warmUp(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout+p.cfg.AcquireTimeout)
	defer cancel()

	if err := p.sqlDB.PingContext(ctx); err != nil {
		return &Error{Op: "open", Kind: ErrConnection, Err: err}
	}

	conns := make([]*sql.Conn, 0, p.cfg.MinConns)
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	for i := 0; i < p.cfg.MinConns; i++ {
		c, err := p.sqlDB.Conn(ctx)
		if err != nil {
			return &Error{Op: "open", Kind: ErrConnection, Err: fmt.Errorf("warm up connection %d: %w", i+1, err)}
		}
		conns = append(conns, c)
	}
	return nil
}

// enter registers an in-flight scope unless the pool is closed.
func (p *Pool) enter() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return &Error{Op: "acquire", Kind: ErrPoolClosed}
	}
	p.inflight.Add(1)
	return nil
}

// Acquire pins one connection to a gorm session for the duration of fn and
// returns it to the pool on every exit path. Waiting is bounded by
// Config.AcquireTimeout and Config.MaxQueue; exceeding either yields
// ErrPoolExhausted.
func (p *Pool) Acquire(ctx context.Context, fn func(db *gorm.DB) error) error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.inflight.Done()

	conn, err := p.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	db := p.db.WithContext(ctx)
	db.Statement.ConnPool = conn
	return fn(db)
}

// Transaction runs fn in a single transaction on a single connection.
// A cancelled ctx aborts the transaction; it never commits partially.
func (p *Pool) Transaction(ctx context.Context, fn func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	err := p.Acquire(ctx, func(db *gorm.DB) error {
		return db.Transaction(fn, opts...)
	})
	// database/sql rolls back on cancellation and then reports ErrTxDone
	// from Commit; surface the cancellation instead.
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return errors.Join(fmt.Errorf("transaction: %w", ctx.Err()), err)
	}
	return err
}

func (p *Pool) conn(ctx context.Context) (*sql.Conn, error) {
	// Only callers arriving at a saturated pool queue up; the rest get an
	// idle connection or dial a new one. A caller that loses that race
	// waits uncounted, still bounded by AcquireTimeout.
	if p.saturated() {
		waiting := p.waiting.Add(1)
		defer p.waiting.Add(-1)

		if p.cfg.MaxQueue > 0 && waiting > int64(p.cfg.MaxQueue) {
			p.metrics.PoolExhaustedInc(p.name)
			return nil, &Error{
				Op:   "acquire",
				Kind: ErrPoolExhausted,
				Err:  fmt.Errorf("%d callers already waiting", waiting-1),
			}
		}
	}

	start := time.Now()
	actx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	conn, err := p.sqlDB.Conn(actx)
	p.metrics.ObserveAcquire(p.name, time.Since(start))
	if err == nil {
		return conn, nil
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("acquire: %w", ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) && p.saturated() {
		p.metrics.PoolExhaustedInc(p.name)
		p.log.WithField("timeout", p.cfg.AcquireTimeout).Warn("no connection available")
		return nil, &Error{
			Op:   "acquire",
			Kind: ErrPoolExhausted,
			Err:  fmt.Errorf("no connection available within %s", p.cfg.AcquireTimeout),
		}
	}
	return nil, &Error{Op: "acquire", Kind: ErrConnection, Err: err}
}

func (p *Pool) saturated() bool {
	s := p.sqlDB.Stats()
	return s.MaxOpenConnections > 0 && s.InUse >= s.MaxOpenConnections
}

// Ping checks the server is reachable through the pool.
func (p *Pool) Ping(ctx context.Context) error {
	return p.Acquire(ctx, func(db *gorm.DB) error {
		if err := db.Exec("SELECT 1").Error; err != nil {
			return Translate("ping", "", err)
		}
		return nil
	})
}

// Stats reports database/sql pool statistics.
func (p *Pool) Stats() sql.DBStats {
	return p.sqlDB.Stats()
}

// Name is the label given with WithName.
func (p *Pool) Name() string {
	return p.name
}

// SQL exposes the underlying *sql.DB for instrumentation.
func (p *Pool) SQL() *sql.DB {
	return p.sqlDB
}

// Close refuses new work, waits for in-flight scopes to finish and closes
// every connection. Calls after the first return the first result.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		p.inflight.Wait()
		p.closeErr = p.sqlDB.Close()
		if p.closeErr != nil {
			p.log.WithError(p.closeErr).Error("failed to close database pool")
			return
		}
		p.log.Info("database pool closed")
	})
	return p.closeErr
}
