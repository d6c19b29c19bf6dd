// Package categories provides database operations for book categories.
//
// Deleting a category removes its book associations only; the books
// themselves are kept.
//
// # Usage
//
//	repo := categories.NewRepository(pool)
//	category, err := repo.Create(ctx, "fiction")
package categories

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/entities"
)

const table = "categories"

// Patch lists the fields to change; nil fields are left alone.
type Patch struct {
	Name *string
}

// Repository handles category database operations.
type Repository struct {
	pool database.Executor
}

// NewRepository creates a new categories repository.
func NewRepository(pool database.Executor) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a category. A name already in use fails with
// database.ErrUniqueConstraint.
func (r *Repository) Create(ctx context.Context, name string) (*entities.Category, error) {
	name, err := database.RequireText("create", "name", name, entities.CategoryNameMaxLen)
	if err != nil {
		return nil, err
	}

	category := &entities.Category{Name: name}
	err = r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Create(category).Error
	})
	if err != nil {
		return nil, database.Translate("create", table, err)
	}
	return category, nil
}

// GetOrCreate returns the category called name, creating it when missing.
func (r *Repository) GetOrCreate(ctx context.Context, name string) (*entities.Category, error) {
	name, err := database.RequireText("get_or_create", "name", name, entities.CategoryNameMaxLen)
	if err != nil {
		return nil, err
	}

	var category entities.Category
	err = r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Where(entities.Category{Name: name}).FirstOrCreate(&category).Error
	})
	if err != nil {
		return nil, database.Translate("get_or_create", table, err)
	}
	return &category, nil
}

// Get retrieves a category by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*entities.Category, error) {
	var category entities.Category
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Take(&category, id).Error
	})
	if err != nil {
		return nil, database.Translate("get", table, err)
	}
	return &category, nil
}

// GetByName retrieves a category by name (case-insensitive).
func (r *Repository) GetByName(ctx context.Context, name string) (*entities.Category, error) {
	var category entities.Category
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).Take(&category).Error
	})
	if err != nil {
		return nil, database.Translate("get_by_name", table, err)
	}
	return &category, nil
}

// List returns one page of categories ordered by name.
func (r *Repository) List(ctx context.Context, page database.Page) ([]entities.Category, error) {
	page, err := page.Normalize("list")
	if err != nil {
		return nil, err
	}

	categories := []entities.Category{}
	err = r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Order("name, id").Limit(page.Limit).Offset(page.Offset).Find(&categories).Error
	})
	if err != nil {
		return nil, database.Translate("list", table, err)
	}
	return categories, nil
}

// Count returns the total number of categories.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Model(&entities.Category{}).Count(&total).Error
	})
	if err != nil {
		return 0, database.Translate("count", table, err)
	}
	return total, nil
}

// Update renames a category and returns the updated row.
func (r *Repository) Update(ctx context.Context, id int64, patch Patch) (*entities.Category, error) {
	if patch.Name == nil {
		return r.Get(ctx, id)
	}
	name, err := database.RequireText("update", "name", *patch.Name, entities.CategoryNameMaxLen)
	if err != nil {
		return nil, err
	}

	var category entities.Category
	err = r.pool.Acquire(ctx, func(db *gorm.DB) error {
		res := db.Model(&category).Clauses(clause.Returning{}).Where("id = ?", id).Update("name", name)
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
	return &category, nil
}

// Delete removes a category and its book associations.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		res := db.Delete(&entities.Category{}, id)
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
