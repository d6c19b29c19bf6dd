package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTranslatePostgresErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"unique violation", "23505", ErrUniqueConstraint},
		{"foreign key violation", "23503", ErrForeignKey},
		{"check violation", "23514", ErrValidation},
		{"not null violation", "23502", ErrValidation},
		{"string too long", "22001", ErrValidation},
		{"numeric out of range", "22003", ErrValidation},
		{"invalid text representation", "22P02", ErrValidation},
		{"connection failure", "08006", ErrConnection},
		{"invalid password", "28P01", ErrConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tt.code, ConstraintName: "some_constraint", ColumnName: "name"}
			err := Translate("create", "authors", fmt.Errorf("exec: %w", pgErr))

			assert.ErrorIs(t, err, tt.want)

			var dbErr *Error
			require.ErrorAs(t, err, &dbErr)
			assert.Equal(t, "create", dbErr.Op)
			assert.Equal(t, "authors", dbErr.Table)
			assert.Equal(t, "some_constraint", dbErr.Constraint)
			assert.Equal(t, "name", dbErr.Field)

			var cause *pgconn.PgError
			assert.ErrorAs(t, err, &cause, "the driver error stays reachable")
		})
	}
}

func TestTranslateUnclassifiedPostgresError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	err := Translate("list", "books", pgErr)

	var dbErr *Error
	assert.False(t, errors.As(err, &dbErr))
	assert.ErrorIs(t, err, pgErr)
	assert.Contains(t, err.Error(), "list books")
}

func TestTranslateNotFound(t *testing.T) {
	for _, cause := range []error{gorm.ErrRecordNotFound, sql.ErrNoRows} {
		err := Translate("get", "users", cause)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "get users: not found", err.Error())
	}
}

func TestTranslateConnectionErrors(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	assert.ErrorIs(t, Translate("get", "books", netErr), ErrConnection)
	assert.ErrorIs(t, Translate("get", "books", sql.ErrConnDone), ErrConnection)
}

func TestTranslateKeepsContextErrors(t *testing.T) {
	err := Translate("search", "books", context.Canceled)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrConnection)
}

func TestTranslatePassesThroughTypedErrors(t *testing.T) {
	original := Invalid("create", "title", "is required")
	assert.Same(t, original, Translate("update", "books", original))
	assert.Nil(t, Translate("get", "books", nil))
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Op:         "create",
		Table:      "categories",
		Kind:       ErrUniqueConstraint,
		Constraint: "categories_name_key",
		Err:        errors.New("duplicate key"),
	}
	assert.Equal(t,
		"create categories: unique constraint violation (constraint categories_name_key): duplicate key",
		err.Error())
}

func TestMissingReference(t *testing.T) {
	err := MissingReference("create", "authors", "author_id", 42)

	assert.ErrorIs(t, err, ErrForeignKey)
	assert.Contains(t, err.Error(), "author_id 42 does not exist")
}
