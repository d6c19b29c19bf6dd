package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error kinds. Match them with errors.Is; the concrete value is *Error.
var (
	ErrNotFound         = errors.New("not found")
	ErrUniqueConstraint = errors.New("unique constraint violation")
	ErrForeignKey       = errors.New("foreign key violation")
	ErrValidation       = errors.New("validation failed")
	ErrPoolExhausted    = errors.New("connection pool exhausted")
	ErrConnection       = errors.New("database connection failed")
	ErrPoolClosed       = errors.New("connection pool closed")
)

// Postgres SQLSTATE codes we classify.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeNotNullViolation     = "23502"
	codeStringTooLong        = "22001"
	codeNumericOutOfRange    = "22003"
	codeInvalidTextRepr      = "22P02"
	classConnectionException = "08"
	classInvalidAuth         = "28"
)

// Error describes a failed data-access operation.
type Error struct {
	Op         string // repository operation, e.g. "create"
	Table      string
	Kind       error // one of the Err* kinds
	Constraint string
	Field      string
	Err        error // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Table != "" {
		b.WriteString(" ")
		b.WriteString(e.Table)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Constraint != "" {
		fmt.Fprintf(&b, " (constraint %s)", e.Constraint)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFound reports an absent row in table.
func NotFound(op, table string) error {
	return &Error{Op: op, Table: table, Kind: ErrNotFound}
}

// Invalid reports rejected input before it reaches the store.
func Invalid(op, field, msg string) error {
	return &Error{Op: op, Field: field, Kind: ErrValidation, Err: errors.New(msg)}
}

// MissingReference reports a reference to a row that does not exist.
func MissingReference(op, table, field string, id int64) error {
	return &Error{
		Op:    op,
		Table: table,
		Kind:  ErrForeignKey,
		Field: field,
		Err:   fmt.Errorf("%s %d does not exist", field, id),
	}
}

// Translate maps gorm, database/sql and Postgres errors onto the error
// kinds. Errors that are already *Error, and errors that match no kind,
// are returned wrapped but otherwise unchanged.
func Translate(op, table string, err error) error {
	if err == nil {
		return nil
	}

	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, sql.ErrNoRows):
		return NotFound(op, table)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s %s: %w", op, table, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if kind := pgErrorKind(pgErr.Code); kind != nil {
			return &Error{
				Op:         op,
				Table:      table,
				Kind:       kind,
				Constraint: pgErr.ConstraintName,
				Field:      pgErr.ColumnName,
				Err:        err,
			}
		}
		return fmt.Errorf("%s %s: %w", op, table, err)
	}

	if isConnectionError(err) {
		return &Error{Op: op, Table: table, Kind: ErrConnection, Err: err}
	}

	return fmt.Errorf("%s %s: %w", op, table, err)
}

func pgErrorKind(code string) error {
	switch code {
	case codeUniqueViolation:
		return ErrUniqueConstraint
	case codeForeignKeyViolation:
		return ErrForeignKey
	case codeCheckViolation, codeNotNullViolation, codeStringTooLong, codeNumericOutOfRange, codeInvalidTextRepr:
		return ErrValidation
	}
	if strings.HasPrefix(code, classConnectionException) || strings.HasPrefix(code, classInvalidAuth) {
		return ErrConnection
	}
	return nil
}

func isConnectionError(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
