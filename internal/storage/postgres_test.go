package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengig/greengig/internal/storage"
	"github.com/greengig/greengig/internal/user"
)

var userColumns = []string{"user_id", "name", "email", "preferred_mode", "reward_points", "badges", "created_at", "updated_at"}

func TestPostgresStore_CommitsUserUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users\s+WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("usr_1").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow("usr_1", "Ada", "ada@example.com", "", 8, []string{}, now, now))
	mock.ExpectExec(`UPDATE users`).
		WithArgs("usr_1", 14, []string{"Eco Starter"}, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	store := storage.NewPostgresStore(mock)
	err = store.Atomically(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		u, err := tx.LockUser(ctx, "usr_1")
		if err != nil {
			return err
		}
		if err := u.AddPoints(6); err != nil {
			return err
		}
		u.AddBadge("Eco Starter")
		u.UpdatedAt = time.Now()
		return tx.SaveUser(ctx, u)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("usr_missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	store := storage.NewPostgresStore(mock)
	err = store.Atomically(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.LockUser(ctx, "usr_missing")
		return err
	})
	assert.ErrorIs(t, err, user.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BeginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	store := storage.NewPostgresStore(mock)
	err = store.Atomically(context.Background(), func(context.Context, storage.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorContains(t, err, "begin transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}
