package logs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/database/dbtest"
	"github.com/mrlokans/catalog/internal/database/logs"
	"github.com/mrlokans/catalog/internal/database/users"
	"github.com/mrlokans/catalog/internal/entities"
)

func TestInsertAndList(t *testing.T) {
	pool := dbtest.Postgres(t)
	repo := logs.NewRepository(pool)
	ctx := context.Background()

	user, err := users.NewRepository(pool).Create(ctx, users.NewUser{Username: "reader", Email: "reader@example.com"})
	require.NoError(t, err)

	require.NoError(t, repo.Insert(ctx, &entities.LogEntry{UserID: &user.ID, Action: "search_books", Details: []byte(`{"search":"go"}`)}))
	require.NoError(t, repo.Insert(ctx, &entities.LogEntry{Action: "search_books"}))
	require.NoError(t, repo.Insert(ctx, &entities.LogEntry{UserID: &user.ID, Action: "login"}))

	all, total, err := repo.List(ctx, logs.Filter{}, database.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, "login", all[0].Action, "most recent first")

	mine, total, err := repo.List(ctx, logs.Filter{UserID: &user.ID, Action: "search_books"}, database.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mine, 1)
	assert.JSONEq(t, `{"search":"go"}`, string(mine[0].Details))

	anonymous, _, err := repo.List(ctx, logs.Filter{Action: "search_books"}, database.Page{})
	require.NoError(t, err)
	assert.Len(t, anonymous, 2)
}

func TestInsertTakesServerTimestamp(t *testing.T) {
	pool := dbtest.Postgres(t)
	repo := logs.NewRepository(pool)
	ctx := context.Background()

	entry := &entities.LogEntry{Action: "search_books"}
	require.NoError(t, repo.Insert(ctx, entry))
	assert.NotZero(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero(), "created_at is read back from the column default")
	assert.WithinDuration(t, time.Now(), entry.CreatedAt, time.Minute)

	stored, _, err := repo.List(ctx, logs.Filter{}, database.Page{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].CreatedAt.Equal(entry.CreatedAt))
}

func TestInsertRejectsUnknownUser(t *testing.T) {
	pool := dbtest.Postgres(t)
	repo := logs.NewRepository(pool)

	missing := int64(404)
	err := repo.Insert(context.Background(), &entities.LogEntry{UserID: &missing, Action: "search_books"})
	assert.ErrorIs(t, err, database.ErrForeignKey)
}

func TestDeletingUserKeepsEntries(t *testing.T) {
	pool := dbtest.Postgres(t)
	repo := logs.NewRepository(pool)
	usersRepo := users.NewRepository(pool)
	ctx := context.Background()

	user, err := usersRepo.Create(ctx, users.NewUser{Username: "reader", Email: "reader@example.com"})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, &entities.LogEntry{UserID: &user.ID, Action: "search_books"}))

	require.NoError(t, usersRepo.Delete(ctx, user.ID))

	entries, _, err := repo.List(ctx, logs.Filter{}, database.Page{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].UserID)
}

func TestDeleteOlderThan(t *testing.T) {
	pool := dbtest.Postgres(t)
	repo := logs.NewRepository(pool)
	ctx := context.Background()

	old := time.Now().Add(-100 * 24 * time.Hour)
	require.NoError(t, repo.Insert(ctx, &entities.LogEntry{Action: "search_books", CreatedAt: old}))
	require.NoError(t, repo.Insert(ctx, &entities.LogEntry{Action: "search_books"}))

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, int64(1), dbtest.Count(t, pool, "logs", ""))
}
