package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lg/nutrition-api/internal/aggregate"
	"lg/nutrition-api/internal/calendar"
	"lg/nutrition-api/internal/nutrition"
)

// StatsRepo stores the daily_stats aggregate rows.
type StatsRepo struct {
	db DB
}

// NewStatsRepo creates a StatsRepo.
func NewStatsRepo(db DB) *StatsRepo {
	return &StatsRepo{db: db}
}

func scanTotals(row pgx.Row, dest ...any) (nutrition.Totals, error) {
	var (
		kcal int64
		t    nutrition.Totals
	)
	targets := append(dest, &kcal, &t.Protein, &t.Carb, &t.Fat, &t.Sugars, &t.Fiber, &t.Salt)
	if err := row.Scan(targets...); err != nil {
		return nutrition.Totals{}, err
	}
	t.Kcal = decimal.NewFromInt(kcal)
	return t, nil
}

// Get returns the row for (userID, day), or ErrNotFound.
func (r *StatsRepo) Get(ctx context.Context, userID int, day time.Time) (nutrition.Totals, error) {
	row := QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`SELECT kcal, protein, carb, fat, sugars, fiber, salt
		 FROM daily_stats WHERE user_id = $1 AND day = $2`,
		userID, day)
	t, err := scanTotals(row)
	if err != nil {
		return nutrition.Totals{}, mapError(err, "daily stats", calendar.FormatAnchor(day))
	}
	return t, nil
}

// ListRange returns the existing rows in [from, to] ordered by day. Missing
// days are simply absent.
func (r *StatsRepo) ListRange(ctx context.Context, userID int, from, to time.Time) ([]aggregate.DayTotals, error) {
	sql, args, err := psql.
		Select("day", "kcal", "protein", "carb", "fat", "sugars", "fiber", "salt").
		From("daily_stats").
		Where("user_id = ?", userID).
		Where("day BETWEEN ? AND ?", from, to).
		OrderBy("day").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := QuerierFromCtx(ctx, r.db).Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "daily stats", calendar.FormatAnchor(from))
	}
	defer rows.Close()

	var out []aggregate.DayTotals
	for rows.Next() {
		var day time.Time
		t, err := scanTotals(rows, &day)
		if err != nil {
			return nil, mapError(err, "daily stats", calendar.FormatAnchor(from))
		}
		out = append(out, aggregate.DayTotals{Day: day.UTC(), Totals: t})
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "daily stats", calendar.FormatAnchor(from))
	}
	return out, nil
}

// Upsert writes the row for (userID, day). Calories are stored whole.
func (r *StatsRepo) Upsert(ctx context.Context, userID int, day time.Time, t nutrition.Totals) error {
	_, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		`INSERT INTO daily_stats (user_id, day, kcal, protein, carb, fat, sugars, fiber, salt, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (user_id, day) DO UPDATE SET
			kcal = EXCLUDED.kcal, protein = EXCLUDED.protein, carb = EXCLUDED.carb,
			fat = EXCLUDED.fat, sugars = EXCLUDED.sugars, fiber = EXCLUDED.fiber,
			salt = EXCLUDED.salt, updated_at = now()`,
		userID, day, t.Kcal.Round(0).IntPart(), t.Protein, t.Carb, t.Fat, t.Sugars, t.Fiber, t.Salt)
	if err != nil {
		return mapError(err, "daily stats", calendar.FormatAnchor(day))
	}
	return nil
}

// Delete removes the row for (userID, day). Deleting a missing row is not an
// error.
func (r *StatsRepo) Delete(ctx context.Context, userID int, day time.Time) error {
	_, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		"DELETE FROM daily_stats WHERE user_id = $1 AND day = $2", userID, day)
	if err != nil {
		return mapError(err, "daily stats", calendar.FormatAnchor(day))
	}
	return nil
}

// LockDay takes a transaction-scoped advisory lock on (userID, day). It must
// run inside RunInTx.
func (r *StatsRepo) LockDay(ctx context.Context, userID int, day time.Time) error {
	_, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", dayLockKey(userID, day))
	if err != nil {
		return mapError(err, "day lock", calendar.FormatAnchor(day))
	}
	return nil
}

func dayLockKey(userID int, day time.Time) string {
	return "daily_stats:" + strconv.Itoa(userID) + ":" + calendar.FormatAnchor(day)
}
