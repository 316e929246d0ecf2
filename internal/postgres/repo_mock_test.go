package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lg/nutrition-api/internal/nutrition"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var june1 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

/* ─── mapError ───────────────────────────────────────────────────────── */

// TestMapError verifies driver errors become domain errors.
func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, nutrition.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, nutrition.ErrConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, nutrition.ErrNotFound},
		{"check", &pgconn.PgError{Code: "23514", ConstraintName: "meal_items_kcal_check"}, nutrition.ErrValidation},
		{"statement timeout", &pgconn.PgError{Code: "57014"}, context.DeadlineExceeded},
		{"deadline", context.DeadlineExceeded, context.DeadlineExceeded},
		{"canceled", context.Canceled, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "meal", 1)
			assert.ErrorIs(t, got, tt.want)
		})
	}

	assert.NoError(t, mapError(nil, "meal", 1))

	other := errors.New("broken pipe")
	assert.ErrorIs(t, mapError(other, "meal", 1), other)
}

/* ─── TxManager ──────────────────────────────────────────────────────── */

// TestTxManager_Commit verifies statements inside fn run on the transaction.
func TestTxManager_Commit(t *testing.T) {
	mock := newMock(t)
	tm := NewTxManager(mock)
	repo := NewStatsRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM daily_stats`).
		WithArgs(7, june1).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		return repo.Delete(ctx, 7, june1)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestTxManager_RollbackOnError verifies fn's error is returned after rollback.
func TestTxManager_RollbackOnError(t *testing.T) {
	mock := newMock(t)
	tm := NewTxManager(mock)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tm.RunInTx(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestTxManager_RollbackFailure verifies both errors are reported.
func TestTxManager_RollbackFailure(t *testing.T) {
	mock := newMock(t)
	tm := NewTxManager(mock)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("conn closed"))

	err := tm.RunInTx(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "rollback failed")
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestTxManager_RollbackOnPanic verifies a panicking fn rolls back and
// re-panics.
func TestTxManager_RollbackOnPanic(t *testing.T) {
	mock := newMock(t)
	tm := NewTxManager(mock)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = tm.RunInTx(context.Background(), func(context.Context) error { panic("kaboom") })
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestTxManager_BeginFailure verifies fn never runs without a transaction.
func TestTxManager_BeginFailure(t *testing.T) {
	mock := newMock(t)
	tm := NewTxManager(mock)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := tm.RunInTx(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

/* ─── StatsRepo ──────────────────────────────────────────────────────── */

var statsCols = []string{"kcal", "protein", "carb", "fat", "sugars", "fiber", "salt"}

// TestStatsRepo_Get covers a hit and a miss.
func TestStatsRepo_Get(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
		check   func(t *testing.T, got nutrition.Totals)
	}{
		{
			name: "found",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT kcal, protein`).
					WithArgs(7, june1).
					WillReturnRows(pgxmock.NewRows(statsCols).
						AddRow(int64(1500), "80.5", "150", "50", "40", "25", "4.2"))
			},
			check: func(t *testing.T, got nutrition.Totals) {
				assert.True(t, got.Kcal.Equal(decimal.NewFromInt(1500)))
				assert.True(t, got.Protein.Equal(decimal.RequireFromString("80.5")))
				assert.True(t, got.Salt.Equal(decimal.RequireFromString("4.2")))
			},
		},
		{
			name: "missing row",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT kcal, protein`).
					WithArgs(7, june1).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: nutrition.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setup(mock)

			got, err := NewStatsRepo(mock).Get(context.Background(), 7, june1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				tt.check(t, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// TestStatsRepo_ListRange verifies rows come back keyed by day.
func TestStatsRepo_ListRange(t *testing.T) {
	mock := newMock(t)
	june3 := june1.AddDate(0, 0, 2)

	mock.ExpectQuery(`SELECT day, kcal, protein, carb, fat, sugars, fiber, salt FROM daily_stats`).
		WithArgs(7, june1, june3).
		WillReturnRows(pgxmock.NewRows(append([]string{"day"}, statsCols...)).
			AddRow(june1, int64(900), "10", "0", "0", "0", "0", "0").
			AddRow(june3, int64(2200), "90", "0", "0", "0", "0", "0"))

	got, err := NewStatsRepo(mock).ListRange(context.Background(), 7, june1, june3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, june1, got[0].Day)
	assert.True(t, got[1].Totals.Kcal.Equal(decimal.NewFromInt(2200)))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestStatsRepo_UpsertStoresWholeKcal verifies kcal is written as an integer.
func TestStatsRepo_UpsertStoresWholeKcal(t *testing.T) {
	mock := newMock(t)
	totals := nutrition.Totals{
		Kcal:    decimal.RequireFromString("640.5"),
		Protein: decimal.RequireFromString("31.25"),
	}

	mock.ExpectExec(`INSERT INTO daily_stats`).
		WithArgs(7, june1, int64(641),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewStatsRepo(mock).Upsert(context.Background(), 7, june1, totals))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestStatsRepo_LockDay verifies the advisory lock key.
func TestStatsRepo_LockDay(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs("daily_stats:7:2024-06-01").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, NewStatsRepo(mock).LockDay(context.Background(), 7, june1))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestStatsRepo_StatementTimeout verifies a server-side cancel surfaces as a
// deadline error for the cache to classify.
func TestStatsRepo_StatementTimeout(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(`DELETE FROM daily_stats`).
		WithArgs(7, june1).
		WillReturnError(&pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"})

	err := NewStatsRepo(mock).Delete(context.Background(), 7, june1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

/* ─── MealRepo ───────────────────────────────────────────────────────── */

// TestMealRepo_NextPosition verifies the next position query.
func TestMealRepo_NextPosition(t *testing.T) {
	mock := newMock(t)
	mealID := uuid.New()

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(position\), 0\) \+ 1`).
		WithArgs(mealID).
		WillReturnRows(pgxmock.NewRows([]string{"pos"}).AddRow(4))

	pos, err := NewMealRepo(mock).NextPosition(context.Background(), mealID)
	require.NoError(t, err)
	assert.Equal(t, 4, pos)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestMealRepo_Delete verifies deletes report missing rows.
func TestMealRepo_Delete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"deleted", 1, nil},
		{"missing", 0, nutrition.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			repo := NewMealRepo(mock)
			id := uuid.New()

			mock.ExpectExec(`DELETE FROM meal_items`).
				WithArgs(id).
				WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))
			mock.ExpectExec(`DELETE FROM meals`).
				WithArgs(id).
				WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))

			errItem := repo.DeleteItem(context.Background(), id)
			errMeal := repo.DeleteMeal(context.Background(), id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, errItem, tt.wantErr)
				assert.ErrorIs(t, errMeal, tt.wantErr)
			} else {
				assert.NoError(t, errItem)
				assert.NoError(t, errMeal)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

/* ─── UserRepo ───────────────────────────────────────────────────────── */

// TestUserRepo_UserIDByToken covers a valid and an unknown token.
func TestUserRepo_UserIDByToken(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepo(mock)

	mock.ExpectQuery(`SELECT id FROM users WHERE auth_token`).
		WithArgs("good").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectQuery(`SELECT id FROM users WHERE auth_token`).
		WithArgs("bad").
		WillReturnError(pgx.ErrNoRows)

	id, err := repo.UserIDByToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	_, err = repo.UserIDByToken(context.Background(), "bad")
	assert.ErrorIs(t, err, nutrition.ErrNotFound)
	assert.NotContains(t, err.Error(), "bad")
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUserRepo_CreateDuplicate verifies a taken username is a conflict.
func TestUserRepo_CreateDuplicate(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("lyle", "lyle@example.com", "hash", "tok").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := NewUserRepo(mock).Create(context.Background(), "lyle", "lyle@example.com", "hash", "tok")
	assert.ErrorIs(t, err, nutrition.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

/* ─── ProfileRepo ────────────────────────────────────────────────────── */

// TestPatchColumns verifies only provided fields are written.
func TestPatchColumns(t *testing.T) {
	h := 170.0
	tz := "Europe/Berlin"
	vegan := false
	set := patchColumns(nutrition.ProfilePatch{HeightCM: &h, Timezone: &tz, Vegan: &vegan})

	assert.Equal(t, map[string]any{
		"height_cm": 170.0,
		"timezone":  "Europe/Berlin",
		"vegan":     false,
	}, set)
	assert.Empty(t, patchColumns(nutrition.ProfilePatch{}))
}
