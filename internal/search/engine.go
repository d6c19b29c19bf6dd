// Package search answers book search and listing queries.
//
// A search is one statement that combines the full-text predicate with the
// author, category, price and date filters, followed by exactly one
// statement loading the categories of every book on the page.
//
// Text queries are matched with plainto_tsquery against the same
// expression the idx_books_search_fts index is built on, so the planner
// can use it. A query made only of stopwords produces an empty tsquery,
// which matches nothing: such searches return no books rather than
// degrading to a plain listing.
//
// # Usage
//
//	engine := search.NewEngine(pool)
//	found, err := engine.Search(ctx, search.Params{Query: "systems"})
package search

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/database/books"
	"github.com/mrlokans/catalog/internal/entities"
	"github.com/mrlokans/catalog/internal/logging"
	"github.com/mrlokans/catalog/internal/metrics"
)

const (
	textVector = "to_tsvector('english', b.title || ' ' || coalesce(b.description, ''))"
	textQuery  = "plainto_tsquery('english', ?)"
)

// Sort selects the result order. Every order is tie-broken by book id.
type Sort string

const (
	// SortRelevance ranks text matches; it is the default with a query and
	// behaves like SortTitle without one.
	SortRelevance Sort = "relevance"
	SortTitle     Sort = "title"
	SortPublished Sort = "published"
	SortNewest    Sort = "newest"
	SortID        Sort = "id"
)

// Params describes one search. An empty or blank Query lists books.
type Params struct {
	Query         string
	AuthorID      *int64
	CategoryID    *int64
	MinPrice      *float64
	MaxPrice      *float64
	PublishedFrom *time.Time
	PublishedTo   *time.Time
	Sort          Sort
	Page          database.Page
}

// HasText reports whether p carries a full-text query.
func (p Params) HasText() bool {
	return strings.TrimSpace(p.Query) != ""
}

// Engine runs searches on a pool.
type Engine struct {
	pool    database.Executor
	metrics *metrics.Metrics
	log     *log.Entry
}

// Option customises an Engine.
type Option func(*Engine)

// WithMetrics enables search instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger replaces the component logger.
func WithLogger(entry *log.Entry) Option {
	return func(e *Engine) { e.log = entry }
}

// NewEngine creates a search engine using pool.
func NewEngine(pool database.Executor, opts ...Option) *Engine {
	e := &Engine{pool: pool, log: logging.Search()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns one page of books matching p, each with its author name
// and categories. No match yields an empty, non-nil slice.
func (e *Engine) Search(ctx context.Context, p Params) ([]entities.Book, error) {
	query, args, err := Build(p)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := []entities.Book{}
	err = e.pool.Acquire(ctx, func(db *gorm.DB) error {
		if err := db.Raw(query, args...).Scan(&results).Error; err != nil {
			return err
		}
		return books.LoadCategories(db, results)
	})
	if err != nil {
		return nil, database.Translate("search", "books", err)
	}

	mode := "list"
	if p.HasText() {
		mode = "text"
	}
	took := time.Since(start)
	e.metrics.ObserveSearch(mode, took, len(results))
	e.log.WithFields(log.Fields{
		"mode":    mode,
		"results": len(results),
		"took":    took,
	}).Debug("search completed")

	return results, nil
}

// Build renders the page query for p. Placeholders are '?' so the
// statement can go through gorm's Raw.
func Build(p Params) (string, []any, error) {
	page, err := p.Page.Normalize("search")
	if err != nil {
		return "", nil, err
	}
	if err := validateRanges(p); err != nil {
		return "", nil, err
	}

	q := sq.Select(books.SelectColumns).
		From("books b").
		Join("authors a ON a.id = b.author_id")

	text := strings.TrimSpace(p.Query)
	if p.CategoryID != nil {
		q = q.Join("book_categories bc ON bc.book_id = b.id AND bc.category_id = ?", *p.CategoryID)
	}
	if text != "" {
		q = q.Where(sq.Expr(textVector+" @@ "+textQuery, text))
	}
	if p.AuthorID != nil {
		q = q.Where(sq.Eq{"b.author_id": *p.AuthorID})
	}
	if p.MinPrice != nil {
		q = q.Where(sq.GtOrEq{"b.price": *p.MinPrice})
	}
	if p.MaxPrice != nil {
		q = q.Where(sq.LtOrEq{"b.price": *p.MaxPrice})
	}
	if p.PublishedFrom != nil {
		q = q.Where(sq.GtOrEq{"b.published_date": *p.PublishedFrom})
	}
	if p.PublishedTo != nil {
		q = q.Where(sq.LtOrEq{"b.published_date": *p.PublishedTo})
	}

	switch p.Sort {
	case "", SortRelevance:
		if text != "" {
			q = q.OrderByClause("ts_rank("+textVector+", "+textQuery+") DESC", text).OrderBy("b.id")
		} else {
			q = q.OrderBy("b.title", "b.id")
		}
	case SortTitle:
		q = q.OrderBy("b.title", "b.id")
	case SortPublished:
		q = q.OrderBy("b.published_date", "b.id")
	case SortNewest:
		q = q.OrderBy("b.published_date DESC", "b.id DESC")
	case SortID:
		q = q.OrderBy("b.id")
	default:
		return "", nil, database.Invalid("search", "sort", "unknown sort "+string(p.Sort))
	}

	return q.Limit(uint64(page.Limit)).Offset(uint64(page.Offset)).ToSql()
}

func validateRanges(p Params) error {
	if p.MinPrice != nil && *p.MinPrice < 0 {
		return database.Invalid("search", "min_price", "must not be negative")
	}
	if p.MinPrice != nil && p.MaxPrice != nil && *p.MinPrice > *p.MaxPrice {
		return database.Invalid("search", "max_price", "must not be below min_price")
	}
	if p.PublishedFrom != nil && p.PublishedTo != nil && p.PublishedFrom.After(*p.PublishedTo) {
		return database.Invalid("search", "published_to", "must not be before published_from")
	}
	return nil
}
