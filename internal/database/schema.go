package database

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

//go:embed schema.sql
var schemaSQL string

// migrationLockID serialises concurrent Migrate calls across processes.
const migrationLockID = 7_401_220_311

// Tables lists the catalog tables in dependency order.
var Tables = []string{"authors", "categories", "books", "book_categories", "users", "logs"}

// SchemaStatements returns the DDL statements applied by Migrate.
func SchemaStatements() []string {
	var lines []string
	for _, line := range strings.Split(schemaSQL, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}

	var stmts []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// Migrate creates the catalog tables, constraints and indexes. It runs in
// one transaction and is safe to repeat.
func Migrate(ctx context.Context, pool Executor) error {
	return pool.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockID).Error; err != nil {
			return fmt.Errorf("failed to take migration lock: %w", err)
		}
		for _, stmt := range SchemaStatements() {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to apply schema statement %q: %w", firstLine(stmt), err)
			}
		}
		return nil
	})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
