// Package database provides the Postgres data access layer of the catalog.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Pool: open, scoped acquisition, transactions, close
//	├── errors.go        # Error kinds and Postgres error translation
//	├── schema.sql       # Tables, constraints and indexes (applied by Migrate)
//	├── authors/         # Author CRUD
//	├── categories/      # Category CRUD
//	├── users/           # User CRUD
//	├── books/           # Books, the book/category association, batch hydration
//	├── logs/            # Activity log rows
//	└── dbtest/          # sqlmock and testcontainers helpers for tests
//
// # Using Sub-packages
//
// Every repository takes an Executor, normally the *Pool:
//
//	pool, err := database.Open(ctx, cfg)
//	defer pool.Close()
//
//	if err := database.Migrate(ctx, pool); err != nil { ... }
//
//	authorsRepo := authors.NewRepository(pool)
//	booksRepo := books.NewRepository(pool)
//
//	author, err := authorsRepo.Create(ctx, authors.NewAuthor{Name: "A. Author"})
//	book, err := booksRepo.Get(ctx, 42)
//
// # Errors
//
// Repository errors are *Error values wrapping one of ErrNotFound,
// ErrUniqueConstraint, ErrForeignKey, ErrValidation, ErrPoolExhausted,
// ErrConnection or ErrPoolClosed. Test them with errors.Is.
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a database.Executor field
//  3. Add NewRepository(pool database.Executor) constructor
//  4. Translate errors with database.Translate(op, table, err)
//  5. Add compile-time interface checks in internal/interfaces
package database
