package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lg/nutrition-api/internal/calendar"
	"lg/nutrition-api/internal/nutrition"
)

const weightColumns = "id, user_id, day, weight_kg, source, note, created_at"

type weightRow struct {
	ID        uuid.UUID       `db:"id"`
	UserID    int             `db:"user_id"`
	Day       time.Time       `db:"day"`
	WeightKG  decimal.Decimal `db:"weight_kg"`
	Source    string          `db:"source"`
	Note      *string         `db:"note"`
	CreatedAt time.Time       `db:"created_at"`
}

func (r weightRow) toDomain() nutrition.WeightEntry {
	return nutrition.WeightEntry{
		ID:        r.ID,
		UserID:    r.UserID,
		Day:       r.Day.UTC(),
		WeightKG:  r.WeightKG,
		Source:    r.Source,
		Note:      r.Note,
		CreatedAt: r.CreatedAt,
	}
}

// WeightRepo stores weight log entries.
type WeightRepo struct {
	db DB
}

// NewWeightRepo creates a WeightRepo.
func NewWeightRepo(db DB) *WeightRepo {
	return &WeightRepo{db: db}
}

// Insert adds an entry and returns it as stored.
func (r *WeightRepo) Insert(ctx context.Context, e nutrition.WeightEntry) (nutrition.WeightEntry, error) {
	row, err := queryOne[weightRow](ctx, QuerierFromCtx(ctx, r.db),
		`INSERT INTO weight_log (id, user_id, day, weight_kg, source, note)
		 VALUES (@id, @userID, @day, @weightKG, @source, @note)
		 RETURNING `+weightColumns,
		pgx.NamedArgs{
			"id":       e.ID,
			"userID":   e.UserID,
			"day":      e.Day,
			"weightKG": e.WeightKG,
			"source":   e.Source,
			"note":     e.Note,
		})
	if err != nil {
		return nutrition.WeightEntry{}, mapError(err, "weight entry", calendar.FormatAnchor(e.Day))
	}
	return row.toDomain(), nil
}

// Range returns the entries in [from, to], oldest first.
func (r *WeightRepo) Range(ctx context.Context, userID int, from, to time.Time) ([]nutrition.WeightEntry, error) {
	rows, err := queryMany[weightRow](ctx, QuerierFromCtx(ctx, r.db),
		`SELECT `+weightColumns+` FROM weight_log
		 WHERE user_id = @userID AND day BETWEEN @from AND @to
		 ORDER BY day, created_at`,
		pgx.NamedArgs{"userID": userID, "from": from, "to": to})
	if err != nil {
		return nil, mapError(err, "weight log", calendar.FormatAnchor(from))
	}
	out := make([]nutrition.WeightEntry, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// Latest returns the most recent entry, or ErrNotFound.
func (r *WeightRepo) Latest(ctx context.Context, userID int) (nutrition.WeightEntry, error) {
	row, err := queryOne[weightRow](ctx, QuerierFromCtx(ctx, r.db),
		`SELECT `+weightColumns+` FROM weight_log
		 WHERE user_id = @userID
		 ORDER BY day DESC, created_at DESC LIMIT 1`,
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		return nutrition.WeightEntry{}, mapError(err, "weight log", userID)
	}
	return row.toDomain(), nil
}

// Delete removes an entry owned by userID.
func (r *WeightRepo) Delete(ctx context.Context, userID int, id uuid.UUID) error {
	tag, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		"DELETE FROM weight_log WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return mapError(err, "weight entry", id)
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "weight entry", id)
	}
	return nil
}
