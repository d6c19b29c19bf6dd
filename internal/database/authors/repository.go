// Package authors provides database operations for authors.
//
// Deleting an author also deletes every book written by that author, and
// those books' category associations. The cascade is performed by the
// schema, not by this package.
//
// # Usage
//
//	repo := authors.NewRepository(pool)
//	author, err := repo.Create(ctx, authors.NewAuthor{Name: "A. Author"})
package authors

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/entities"
)

const table = "authors"

// NewAuthor holds the fields of an author to create.
type NewAuthor struct {
	Name string
	Bio  *string
}

// Patch lists the fields to change; nil fields are left alone. A Bio
// pointing at a blank string clears the bio.
type Patch struct {
	Name *string
	Bio  *string
}

// Repository handles author database operations.
type Repository struct {
	pool database.Executor
}

// NewRepository creates a new authors repository.
func NewRepository(pool database.Executor) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an author. A name already in use fails with
// database.ErrUniqueConstraint.
func (r *Repository) Create(ctx context.Context, in NewAuthor) (*entities.Author, error) {
	name, err := database.RequireText("create", "name", in.Name, entities.AuthorNameMaxLen)
	if err != nil {
		return nil, err
	}

	author := &entities.Author{Name: name, Bio: database.OptionalText(in.Bio)}
	err = r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Create(author).Error
	})
	if err != nil {
		return nil, database.Translate("create", table, err)
	}
	return author, nil
}

// Get retrieves an author by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*entities.Author, error) {
	var author entities.Author
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Take(&author, id).Error
	})
	if err != nil {
		return nil, database.Translate("get", table, err)
	}
	return &author, nil
}

// List returns one page of authors ordered by name.
func (r *Repository) List(ctx context.Context, page database.Page) ([]entities.Author, error) {
	page, err := page.Normalize("list")
	if err != nil {
		return nil, err
	}

	authors := []entities.Author{}
	err = r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Order("name, id").Limit(page.Limit).Offset(page.Offset).Find(&authors).Error
	})
	if err != nil {
		return nil, database.Translate("list", table, err)
	}
	return authors, nil
}

// Count returns the total number of authors.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Model(&entities.Author{}).Count(&total).Error
	})
	if err != nil {
		return 0, database.Translate("count", table, err)
	}
	return total, nil
}

// Update applies patch in a single statement and returns the updated row.
func (r *Repository) Update(ctx context.Context, id int64, patch Patch) (*entities.Author, error) {
	updates := map[string]any{}
	if patch.Name != nil {
		name, err := database.RequireText("update", "name", *patch.Name, entities.AuthorNameMaxLen)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if patch.Bio != nil {
		updates["bio"] = database.OptionalText(patch.Bio)
	}
	if len(updates) == 0 {
		return r.Get(ctx, id)
	}

	var author entities.Author
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		res := db.Model(&author).Clauses(clause.Returning{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, database.Translate("update", table, err)
	}
	return &author, nil
}

// Delete removes an author together with the author's books.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		res := db.Delete(&entities.Author{}, id)
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
