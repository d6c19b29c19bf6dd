// Package catalog wires the data-access core into one handle: both
// connection pools, the repositories, the search engine and the activity
// logger, plus the optional durable queue and retention schedule.
//
// # Usage
//
//	cfg, _ := config.NewConfig()
//	c, err := catalog.Open(ctx, cfg)
//	if err != nil { ... }
//	defer c.Close(ctx)
//
//	found, err := c.SearchBooks(ctx, &userID, search.Params{Query: "systems"})
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/mrlokans/catalog/internal/activity"
	"github.com/mrlokans/catalog/internal/config"
	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/database/authors"
	"github.com/mrlokans/catalog/internal/database/books"
	"github.com/mrlokans/catalog/internal/database/categories"
	"github.com/mrlokans/catalog/internal/database/logs"
	"github.com/mrlokans/catalog/internal/database/users"
	"github.com/mrlokans/catalog/internal/entities"
	"github.com/mrlokans/catalog/internal/logging"
	"github.com/mrlokans/catalog/internal/metrics"
	"github.com/mrlokans/catalog/internal/scheduler"
	"github.com/mrlokans/catalog/internal/search"
	"github.com/mrlokans/catalog/internal/tasks"
)

// Pool names used in logs and metrics.
const (
	MainPoolName     = "main"
	ActivityPoolName = "activity"
)

// Catalog owns every long-lived component of the data-access core.
type Catalog struct {
	Pool         *database.Pool
	ActivityPool *database.Pool

	Authors    *authors.Repository
	Categories *categories.Repository
	Books      *books.Repository
	Users      *users.Repository
	Logs       *logs.Repository

	Search    *search.Engine
	Activity  *activity.Service
	Retention *scheduler.RetentionScheduler

	// Tasks is nil unless durable activity or queued retention is enabled.
	Tasks *tasks.Client

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	log *log.Entry
}

// Open connects both pools and builds every component. Nothing runs in
// the background until Start, except the activity workers.
func Open(ctx context.Context, cfg *config.Config) (*Catalog, error) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	c := &Catalog{
		Metrics:  m,
		Gatherer: registry,
		log:      logging.WithField("component", "catalog"),
	}

	pool, err := database.Open(ctx, cfg.MainPool(),
		database.WithName(MainPoolName), database.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("open main pool: %w", err)
	}
	c.Pool = pool

	activityPool, err := database.Open(ctx, cfg.LoggingPool(),
		database.WithName(ActivityPoolName), database.WithMetrics(m))
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("open activity pool: %w", err)
	}
	c.ActivityPool = activityPool

	for _, p := range []*database.Pool{pool, activityPool} {
		if err := m.RegisterDBStats(p.Name(), p.SQL()); err != nil {
			c.closePools()
			return nil, err
		}
	}

	c.Authors = authors.NewRepository(pool)
	c.Categories = categories.NewRepository(pool)
	c.Books = books.NewRepository(pool)
	c.Users = users.NewRepository(pool)
	c.Logs = logs.NewRepository(activityPool)
	c.Search = search.NewEngine(pool, search.WithMetrics(m))

	var activityOpts []activity.Option
	activityOpts = append(activityOpts, activity.WithMetrics(m))

	if cfg.Activity.Durable || cfg.Activity.CleanupViaQueue {
		client, err := tasks.NewClient(cfg.Tasks.DBPath, cfg.TasksConfig())
		if err != nil {
			c.closePools()
			return nil, fmt.Errorf("open task queue: %w", err)
		}
		c.Tasks = client
		if cfg.Activity.Durable {
			activityOpts = append(activityOpts, activity.WithSink(tasks.NewActivitySink(client)))
		}
	}

	c.Activity = activity.NewService(c.Logs, cfg.ActivityConfig(), activityOpts...)
	c.Activity.Start()

	c.Retention = scheduler.NewRetentionScheduler(cfg.RetentionConfig(), c.Activity)
	if c.Tasks != nil {
		c.Tasks.Register(
			tasks.NewRecordActivityQueue(c.Logs),
			tasks.NewPruneActivityQueue(c.Activity),
		)
		if cfg.Activity.CleanupViaQueue {
			c.Retention.UseQueue(c.Tasks)
		}
	}

	return c, nil
}

// Start runs the task queue and the retention schedule until ctx is done
// or Close is called.
func (c *Catalog) Start(ctx context.Context) error {
	if c.Tasks != nil {
		go c.Tasks.Start(ctx)
	}
	return c.Retention.Start(ctx)
}

// Migrate applies the schema through the main pool.
func (c *Catalog) Migrate(ctx context.Context) error {
	return database.Migrate(ctx, c.Pool)
}

// SearchBooks runs a search and records it in the activity log without
// waiting for the write. userID may be nil for anonymous searches.
func (c *Catalog) SearchBooks(ctx context.Context, userID *int64, p search.Params) ([]entities.Book, error) {
	found, err := c.Search.Search(ctx, p)
	if err != nil {
		return nil, err
	}

	page, _ := p.Page.Normalize("search")
	c.Activity.Enqueue(userID, entities.ActionSearchBooks, map[string]any{
		"author_id":    p.AuthorID,
		"category_id":  p.CategoryID,
		"search":       p.Query,
		"limit":        page.Limit,
		"offset":       page.Offset,
		"result_count": len(found),
		"request_id":   uuid.NewString(),
	})
	return found, nil
}

// Close shuts everything down in reverse order of Open. Pending activity
// entries are written before the pools close, bounded by ctx.
func (c *Catalog) Close(ctx context.Context) error {
	var errs []error

	c.Retention.Stop()
	if err := c.Activity.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if c.Tasks != nil {
		c.Tasks.Stop(ctx)
		if err := c.Tasks.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close task queue: %w", err))
		}
	}
	errs = append(errs, c.closePools()...)

	if err := errors.Join(errs...); err != nil {
		c.log.WithError(err).Error("catalog closed with errors")
		return err
	}
	c.log.Info("catalog closed")
	return nil
}

func (c *Catalog) closePools() []error {
	var errs []error
	if c.ActivityPool != nil {
		if err := c.ActivityPool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close activity pool: %w", err))
		}
	}
	if c.Pool != nil {
		if err := c.Pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close main pool: %w", err))
		}
	}
	return errs
}
