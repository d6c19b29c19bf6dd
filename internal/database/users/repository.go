// Package users provides database operations for user management.
//
// Deleting a user keeps the user's activity log entries; their user
// reference becomes NULL.
//
// # Usage
//
//	repo := users.NewRepository(pool)
//	user, err := repo.Create(ctx, users.NewUser{Username: "reader", Email: "reader@example.com"})
package users

import (
	"context"
	"net/mail"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/entities"
)

const table = "users"

// NewUser holds the fields of a user to create.
type NewUser struct {
	Username string
	Email    string
}

// Patch lists the fields to change; nil fields are left alone.
type Patch struct {
	Username *string
	Email    *string
}

// Repository handles all user database operations.
type Repository struct {
	pool database.Executor
}

// NewRepository creates a new users repository.
func NewRepository(pool database.Executor) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a user. A taken username or email fails with
// database.ErrUniqueConstraint.
func (r *Repository) Create(ctx context.Context, in NewUser) (*entities.User, error) {
	username, err := database.RequireText("create", "username", in.Username, entities.UsernameMaxLen)
	if err != nil {
		return nil, err
	}
	email, err := validateEmail("create", in.Email)
	if err != nil {
		return nil, err
	}

	user := &entities.User{Username: username, Email: email}
	err = r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Create(user).Error
	})
	if err != nil {
		return nil, database.Translate("create", table, err)
	}
	return user, nil
}

// Get retrieves a user by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*entities.User, error) {
	var user entities.User
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Take(&user, id).Error
	})
	if err != nil {
		return nil, database.Translate("get", table, err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	var user entities.User
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	})
	if err != nil {
		return nil, database.Translate("get_by_username", table, err)
	}
	return &user, nil
}

// List returns one page of users ordered by username.
func (r *Repository) List(ctx context.Context, page database.Page) ([]entities.User, error) {
	page, err := page.Normalize("list")
	if err != nil {
		return nil, err
	}

	users := []entities.User{}
	err = r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Order("username, id").Limit(page.Limit).Offset(page.Offset).Find(&users).Error
	})
	if err != nil {
		return nil, database.Translate("list", table, err)
	}
	return users, nil
}

// Update applies patch in a single statement and returns the updated row.
func (r *Repository) Update(ctx context.Context, id int64, patch Patch) (*entities.User, error) {
	updates := map[string]any{}
	if patch.Username != nil {
		username, err := database.RequireText("update", "username", *patch.Username, entities.UsernameMaxLen)
		if err != nil {
			return nil, err
		}
		updates["username"] = username
	}
	if patch.Email != nil {
		email, err := validateEmail("update", *patch.Email)
		if err != nil {
			return nil, err
		}
		updates["email"] = email
	}
	if len(updates) == 0 {
		return r.Get(ctx, id)
	}

	var user entities.User
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		res := db.Model(&user).Clauses(clause.Returning{}).Where("id = ?", id).Updates(updates)
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
	return &user, nil
}

// Delete removes a user. Log entries referencing the user are kept with
// their user reference cleared.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		res := db.Delete(&entities.User{}, id)
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

func validateEmail(op, email string) (string, error) {
	email, err := database.RequireText(op, "email", email, entities.EmailMaxLen)
	if err != nil {
		return "", err
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", database.Invalid(op, "email", "must be a plain email address")
	}
	return email, nil
}
