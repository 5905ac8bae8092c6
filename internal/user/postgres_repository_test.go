package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengig/greengig/internal/travel"
	"github.com/greengig/greengig/internal/user"
)

var userColumns = []string{"user_id", "name", "email", "preferred_mode", "reward_points", "badges", "created_at", "updated_at"}

func TestPostgresRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT user_id, name, email`).
		WithArgs("usr_1").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow("usr_1", "Ada", "ada@example.com", "train", 120, []string{"Eco Starter"}, now, now))

	u, err := user.NewPostgresRepository(mock).Get(context.Background(), "usr_1")
	require.NoError(t, err)

	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, travel.ModeTrain, u.PreferredMode)
	assert.Equal(t, 120, u.RewardPoints)
	assert.Equal(t, []string{"Eco Starter"}, u.Badges)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetForUpdateNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM users\s+WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("usr_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = user.NewPostgresRepository(mock).GetForUpdate(context.Background(), "usr_missing")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	u := &user.User{ID: "usr_1", RewardPoints: 446, Badges: []string{"Eco Starter"}, UpdatedAt: time.Now()}

	mock.ExpectExec(`UPDATE users`).
		WithArgs("usr_1", 446, []string{"Eco Starter"}, u.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE users`).
		WithArgs("usr_2", 0, []string{}, u.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := user.NewPostgresRepository(mock)
	require.NoError(t, repo.Save(context.Background(), u))
	assert.ErrorIs(t, repo.Save(context.Background(), &user.User{ID: "usr_2", UpdatedAt: u.UpdatedAt}), user.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT user_id FROM users ORDER BY user_id`).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("usr_1").AddRow("usr_2"))

	ids, err := user.NewPostgresRepository(mock).ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"usr_1", "usr_2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
