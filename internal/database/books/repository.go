// Package books provides database operations for books and their category
// associations.
//
// Multi-table writes (creating a book with categories, replacing a book's
// category set) run in one transaction and either fully apply or leave the
// store untouched. Category lists are always loaded for a whole batch of
// books in a single query; see LoadCategories.
//
// # Usage
//
//	repo := books.NewRepository(pool)
//	book, err := repo.Create(ctx, books.NewBook{
//		Title:         "Learning Systems",
//		Price:         29.99,
//		AuthorID:      author.ID,
//		PublishedDate: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
//		CategoryIDs:   []int64{fiction.ID, science.ID},
//	})
package books

import (
	"context"
	"math"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/entities"
)

const table = "books"

// MaxPrice is the largest price a numeric(10,2) column can hold.
const MaxPrice = 99_999_999.99

// SelectColumns is the projection used wherever books are read: the book
// row plus the author's name.
const SelectColumns = "b.id, b.title, b.description, b.price, b.published_date, b.author_id, a.name AS author_name"

const selectBook = "SELECT " + SelectColumns + " FROM books b JOIN authors a ON a.id = b.author_id WHERE b.id = ?"

const selectCategories = `SELECT bc.book_id, c.id, c.name
FROM book_categories bc
JOIN categories c ON c.id = bc.category_id
WHERE bc.book_id = ANY(?::bigint[])
ORDER BY bc.book_id, c.name, c.id`

type categoryRow struct {
	BookID int64
	ID     int64
	Name   string
}

// NewBook holds the fields of a book to create.
type NewBook struct {
	Title         string
	Description   *string
	Price         float64
	AuthorID      int64
	PublishedDate time.Time
	CategoryIDs   []int64
}

// Patch lists the fields to change; nil fields are left alone. A non-nil
// CategoryIDs replaces the whole category set, an empty slice clears it.
type Patch struct {
	Title         *string
	Description   *string
	Price         *float64
	AuthorID      *int64
	PublishedDate *time.Time
	CategoryIDs   *[]int64
}

// Repository handles all book database operations.
type Repository struct {
	pool database.Executor
}

// NewRepository creates a new books repository.
func NewRepository(pool database.Executor) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a book and its category associations in one transaction.
// A missing author or any unknown category fails with
// database.ErrForeignKey and nothing is written.
func (r *Repository) Create(ctx context.Context, in NewBook) (*entities.Book, error) {
	title, err := database.RequireText("create", "title", in.Title, entities.BookTitleMaxLen)
	if err != nil {
		return nil, err
	}
	if err := validatePrice("create", in.Price); err != nil {
		return nil, err
	}
	if in.PublishedDate.IsZero() {
		return nil, database.Invalid("create", "published_date", "is required")
	}

	book := &entities.Book{
		Title:         title,
		Description:   database.OptionalText(in.Description),
		Price:         in.Price,
		PublishedDate: dateOnly(in.PublishedDate),
		AuthorID:      in.AuthorID,
	}
	categoryIDs := uniqueIDs(in.CategoryIDs)

	var created *entities.Book
	err = r.pool.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockAuthor(tx, "create", book.AuthorID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(book).Error; err != nil {
			return err
		}
		if err := insertCategories(tx, book.ID, categoryIDs); err != nil {
			return err
		}
		var ferr error
		created, ferr = fetch(tx, book.ID)
		return ferr
	})
	if err != nil {
		return nil, database.Translate("create", table, err)
	}
	return created, nil
}

// Get retrieves a book with its author name and categories.
func (r *Repository) Get(ctx context.Context, id int64) (*entities.Book, error) {
	var book *entities.Book
	err := r.pool.Acquire(ctx, func(db *gorm.DB) (err error) {
		book, err = fetch(db, id)
		return err
	})
	if err != nil {
		return nil, database.Translate("get", table, err)
	}
	return book, nil
}

// Update applies patch and, when requested, replaces the category set, all
// in one transaction. It returns the updated book.
func (r *Repository) Update(ctx context.Context, id int64, patch Patch) (*entities.Book, error) {
	updates, err := patch.assignments()
	if err != nil {
		return nil, err
	}

	var book *entities.Book
	err = r.pool.Transaction(ctx, func(tx *gorm.DB) error {
		if patch.AuthorID != nil {
			if err := lockAuthor(tx, "update", *patch.AuthorID); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			res := tx.Model(&entities.Book{}).Where("id = ?", id).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		if patch.CategoryIDs != nil {
			if err := replaceCategories(tx, id, uniqueIDs(*patch.CategoryIDs)); err != nil {
				return err
			}
		}
		var err error
		book, err = fetch(tx, id)
		return err
	})
	if err != nil {
		return nil, database.Translate("update", table, err)
	}
	return book, nil
}

// UpdateCategories replaces the book's whole category set atomically.
// Concurrent replacements of the same book serialise on the book row, so
// the final set is always one of the requested sets.
func (r *Repository) UpdateCategories(ctx context.Context, bookID int64, categoryIDs []int64) error {
	ids := uniqueIDs(categoryIDs)
	err := r.pool.Transaction(ctx, func(tx *gorm.DB) error {
		return replaceCategories(tx, bookID, ids)
	})
	return database.Translate("update_categories", table, err)
}

// Delete removes a book; its category associations go with it.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		res := db.Delete(&entities.Book{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return database.Translate("delete", table, err)
}

// LoadCategories attaches categories to every book in list using exactly
// one query, whatever the length of list. Each book ends up with a non-nil
// slice ordered by category name.
func LoadCategories(db *gorm.DB, list []entities.Book) error {
	ids := make(pq.Int64Array, 0, len(list))
	index := make(map[int64]int, len(list))
	for i := range list {
		ids = append(ids, list[i].ID)
		index[list[i].ID] = i
		list[i].Categories = []entities.Category{}
	}

	var rows []categoryRow
	if err := db.Raw(selectCategories, ids).Scan(&rows).Error; err != nil {
		return err
	}

	for _, row := range rows {
		if i, ok := index[row.BookID]; ok {
			list[i].Categories = append(list[i].Categories, entities.Category{ID: row.ID, Name: row.Name})
		}
	}
	return nil
}

func fetch(db *gorm.DB, id int64) (*entities.Book, error) {
	var list []entities.Book
	if err := db.Raw(selectBook, id).Scan(&list).Error; err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	if err := LoadCategories(db, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// lockAuthor checks the author exists and keeps it from being deleted
// until the transaction ends.
func lockAuthor(tx *gorm.DB, op string, authorID int64) error {
	var found []int64
	if err := tx.Raw("SELECT id FROM authors WHERE id = ? FOR KEY SHARE", authorID).Scan(&found).Error; err != nil {
		return err
	}
	if len(found) == 0 {
		return database.MissingReference(op, "authors", "author_id", authorID)
	}
	return nil
}

func replaceCategories(tx *gorm.DB, bookID int64, ids []int64) error {
	var found []int64
	if err := tx.Raw("SELECT id FROM books WHERE id = ? FOR UPDATE", bookID).Scan(&found).Error; err != nil {
		return err
	}
	if len(found) == 0 {
		return gorm.ErrRecordNotFound
	}
	if err := tx.Exec("DELETE FROM book_categories WHERE book_id = ?", bookID).Error; err != nil {
		return err
	}
	return insertCategories(tx, bookID, ids)
}

func insertCategories(tx *gorm.DB, bookID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Exec(
		"INSERT INTO book_categories (book_id, category_id) SELECT ?::bigint, unnest(?::bigint[])",
		bookID, pq.Int64Array(ids),
	).Error
}

func (p Patch) assignments() (map[string]any, error) {
	updates := map[string]any{}
	if p.Title != nil {
		title, err := database.RequireText("update", "title", *p.Title, entities.BookTitleMaxLen)
		if err != nil {
			return nil, err
		}
		updates["title"] = title
	}
	if p.Description != nil {
		updates["description"] = database.OptionalText(p.Description)
	}
	if p.Price != nil {
		if err := validatePrice("update", *p.Price); err != nil {
			return nil, err
		}
		updates["price"] = *p.Price
	}
	if p.AuthorID != nil {
		updates["author_id"] = *p.AuthorID
	}
	if p.PublishedDate != nil {
		if p.PublishedDate.IsZero() {
			return nil, database.Invalid("update", "published_date", "must not be empty")
		}
		updates["published_date"] = dateOnly(*p.PublishedDate)
	}
	return updates, nil
}

func validatePrice(op string, price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return database.Invalid(op, "price", "must be a non-negative number")
	}
	if price > MaxPrice {
		return database.Invalid(op, "price", "is too large")
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// uniqueIDs drops duplicates while keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
