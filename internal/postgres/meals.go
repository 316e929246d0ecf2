package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lg/nutrition-api/internal/nutrition"
)

// slotOrder sorts meals in display order rather than alphabetically.
const slotOrder = "array_position(ARRAY['breakfast','lunch','dinner','snack'], m.slot)"

const itemColumns = `i.id, i.meal_id, m.slot, i.position, i.name, i.unit, i.quantity, i.grams_total,
	i.kcal, i.protein, i.carb, i.fat, i.sugars, i.fiber, i.salt, i.created_at, i.updated_at`

const itemReturning = `id, meal_id, position, name, unit, quantity, grams_total,
	kcal, protein, carb, fat, sugars, fiber, salt, created_at, updated_at`

type mealRow struct {
	ID        uuid.UUID `db:"id"`
	UserID    int       `db:"user_id"`
	Day       time.Time `db:"day"`
	Slot      string    `db:"slot"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r mealRow) toDomain() nutrition.Meal {
	return nutrition.Meal{
		ID:        r.ID,
		UserID:    r.UserID,
		Day:       r.Day.UTC(),
		Slot:      nutrition.Slot(r.Slot),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type itemRow struct {
	ID         uuid.UUID           `db:"id"`
	MealID     uuid.UUID           `db:"meal_id"`
	Slot       string              `db:"slot"`
	Position   int                 `db:"position"`
	Name       string              `db:"name"`
	Unit       string              `db:"unit"`
	Quantity   decimal.Decimal     `db:"quantity"`
	GramsTotal decimal.NullDecimal `db:"grams_total"`
	Kcal       decimal.NullDecimal `db:"kcal"`
	Protein    decimal.NullDecimal `db:"protein"`
	Carb       decimal.NullDecimal `db:"carb"`
	Fat        decimal.NullDecimal `db:"fat"`
	Sugars     decimal.NullDecimal `db:"sugars"`
	Fiber      decimal.NullDecimal `db:"fiber"`
	Salt       decimal.NullDecimal `db:"salt"`
	CreatedAt  time.Time           `db:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at"`
}

func (r itemRow) toDomain() nutrition.LineItem {
	return nutrition.LineItem{
		ID:         r.ID,
		MealID:     r.MealID,
		Slot:       nutrition.Slot(r.Slot),
		Position:   r.Position,
		Name:       r.Name,
		Unit:       nutrition.Unit(r.Unit),
		Quantity:   r.Quantity,
		GramsTotal: r.GramsTotal,
		Kcal:       r.Kcal,
		Protein:    r.Protein,
		Carb:       r.Carb,
		Fat:        r.Fat,
		Sugars:     r.Sugars,
		Fiber:      r.Fiber,
		Salt:       r.Salt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func itemArgs(it nutrition.LineItem) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id":         it.ID,
		"mealID":     it.MealID,
		"position":   it.Position,
		"name":       it.Name,
		"unit":       string(it.Unit),
		"quantity":   it.Quantity,
		"gramsTotal": it.GramsTotal,
		"kcal":       it.Kcal,
		"protein":    it.Protein,
		"carb":       it.Carb,
		"fat":        it.Fat,
		"sugars":     it.Sugars,
		"fiber":      it.Fiber,
		"salt":       it.Salt,
	}
}

// MealRepo stores meals and their line items.
type MealRepo struct {
	db DB
}

// NewMealRepo creates a MealRepo.
func NewMealRepo(db DB) *MealRepo {
	return &MealRepo{db: db}
}

/* ─── Meals ──────────────────────────────────────────────────────────── */

// UpsertMeal returns the (userID, day, slot) meal, creating it if needed.
func (r *MealRepo) UpsertMeal(ctx context.Context, userID int, day time.Time, slot nutrition.Slot) (nutrition.Meal, error) {
	row, err := queryOne[mealRow](ctx, QuerierFromCtx(ctx, r.db),
		`INSERT INTO meals (id, user_id, day, slot)
		 VALUES (@id, @userID, @day, @slot)
		 ON CONFLICT (user_id, day, slot) DO UPDATE SET updated_at = now()
		 RETURNING id, user_id, day, slot, created_at, updated_at`,
		pgx.NamedArgs{"id": uuid.New(), "userID": userID, "day": day, "slot": string(slot)})
	if err != nil {
		return nutrition.Meal{}, mapError(err, "meal", slot)
	}
	return row.toDomain(), nil
}

// GetMeal returns a meal header owned by userID.
func (r *MealRepo) GetMeal(ctx context.Context, userID int, mealID uuid.UUID) (nutrition.Meal, error) {
	row, err := queryOne[mealRow](ctx, QuerierFromCtx(ctx, r.db),
		`SELECT id, user_id, day, slot, created_at, updated_at
		 FROM meals WHERE id = @id AND user_id = @userID`,
		pgx.NamedArgs{"id": mealID, "userID": userID})
	if err != nil {
		return nutrition.Meal{}, mapError(err, "meal", mealID)
	}
	return row.toDomain(), nil
}

// FindMeal returns the (userID, day, slot) meal header, or ErrNotFound.
func (r *MealRepo) FindMeal(ctx context.Context, userID int, day time.Time, slot nutrition.Slot) (nutrition.Meal, error) {
	row, err := queryOne[mealRow](ctx, QuerierFromCtx(ctx, r.db),
		`SELECT id, user_id, day, slot, created_at, updated_at
		 FROM meals WHERE user_id = @userID AND day = @day AND slot = @slot`,
		pgx.NamedArgs{"userID": userID, "day": day, "slot": string(slot)})
	if err != nil {
		return nutrition.Meal{}, mapError(err, "meal", slot)
	}
	return row.toDomain(), nil
}

// ListDay returns the day's meals in slot order, each with its items.
func (r *MealRepo) ListDay(ctx context.Context, userID int, day time.Time) ([]nutrition.Meal, error) {
	rows, err := queryMany[mealRow](ctx, QuerierFromCtx(ctx, r.db),
		`SELECT m.id, m.user_id, m.day, m.slot, m.created_at, m.updated_at
		 FROM meals m WHERE m.user_id = @userID AND m.day = @day
		 ORDER BY `+slotOrder,
		pgx.NamedArgs{"userID": userID, "day": day})
	if err != nil {
		return nil, mapError(err, "meals", day.Format(time.DateOnly))
	}

	items, err := r.ListLineItems(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	byMeal := make(map[uuid.UUID][]nutrition.LineItem, len(rows))
	for _, it := range items {
		byMeal[it.MealID] = append(byMeal[it.MealID], it)
	}

	meals := make([]nutrition.Meal, 0, len(rows))
	for _, row := range rows {
		m := row.toDomain()
		m.Items = byMeal[m.ID]
		if m.Items == nil {
			m.Items = []nutrition.LineItem{}
		}
		meals = append(meals, m)
	}
	return meals, nil
}

// RelocateMeal moves a meal header to another day and slot.
func (r *MealRepo) RelocateMeal(ctx context.Context, mealID uuid.UUID, day time.Time, slot nutrition.Slot) error {
	tag, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		"UPDATE meals SET day = @day, slot = @slot, updated_at = now() WHERE id = @id",
		pgx.NamedArgs{"id": mealID, "day": day, "slot": string(slot)})
	if err != nil {
		return mapError(err, "meal", mealID)
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "meal", mealID)
	}
	return nil
}

// MergeMeal appends every item of from to into, numbering positions from
// startPos in their current order, then deletes from.
func (r *MealRepo) MergeMeal(ctx context.Context, from, into uuid.UUID, startPos int) error {
	q := QuerierFromCtx(ctx, r.db)
	_, err := q.Exec(ctx,
		`UPDATE meal_items i
		 SET meal_id = @into, position = @startPos + s.rn - 1, updated_at = now()
		 FROM (
			SELECT id, row_number() OVER (ORDER BY position, created_at) AS rn
			FROM meal_items WHERE meal_id = @from
		 ) s
		 WHERE i.id = s.id`,
		pgx.NamedArgs{"from": from, "into": into, "startPos": startPos})
	if err != nil {
		return mapError(err, "meal", from)
	}
	return r.DeleteMeal(ctx, from)
}

// DeleteMeal deletes a meal; its items go with it.
func (r *MealRepo) DeleteMeal(ctx context.Context, mealID uuid.UUID) error {
	tag, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		"DELETE FROM meals WHERE id = $1", mealID)
	if err != nil {
		return mapError(err, "meal", mealID)
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "meal", mealID)
	}
	return nil
}

/* ─── Line items ─────────────────────────────────────────────────────── */

// ListLineItems returns every item logged by userID on day, with its meal's
// slot, in slot then position order.
func (r *MealRepo) ListLineItems(ctx context.Context, userID int, day time.Time) ([]nutrition.LineItem, error) {
	rows, err := queryMany[itemRow](ctx, QuerierFromCtx(ctx, r.db),
		`SELECT `+itemColumns+`
		 FROM meal_items i JOIN meals m ON m.id = i.meal_id
		 WHERE m.user_id = @userID AND m.day = @day
		 ORDER BY `+slotOrder+`, i.position`,
		pgx.NamedArgs{"userID": userID, "day": day})
	if err != nil {
		return nil, mapError(err, "line items", day.Format(time.DateOnly))
	}
	items := make([]nutrition.LineItem, len(rows))
	for i, row := range rows {
		items[i] = row.toDomain()
	}
	return items, nil
}

// NextPosition returns the position after the meal's last item (1 when empty).
func (r *MealRepo) NextPosition(ctx context.Context, mealID uuid.UUID) (int, error) {
	var pos int
	err := QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		"SELECT COALESCE(MAX(position), 0) + 1 FROM meal_items WHERE meal_id = $1", mealID).
		Scan(&pos)
	if err != nil {
		return 0, mapError(err, "meal", mealID)
	}
	return pos, nil
}

// InsertItem inserts a line item. The item's Slot is carried through.
func (r *MealRepo) InsertItem(ctx context.Context, it nutrition.LineItem) (nutrition.LineItem, error) {
	row, err := queryReturning[itemRow](ctx, QuerierFromCtx(ctx, r.db),
		`INSERT INTO meal_items (id, meal_id, position, name, unit, quantity, grams_total,
			kcal, protein, carb, fat, sugars, fiber, salt)
		 VALUES (@id, @mealID, @position, @name, @unit, @quantity, @gramsTotal,
			@kcal, @protein, @carb, @fat, @sugars, @fiber, @salt)
		 RETURNING `+itemReturning,
		itemArgs(it))
	if err != nil {
		return nutrition.LineItem{}, mapError(err, "line item", it.ID)
	}
	out := row.toDomain()
	out.Slot = it.Slot
	return out, nil
}

// GetItem returns an item owned by userID together with its meal header.
func (r *MealRepo) GetItem(ctx context.Context, userID int, itemID uuid.UUID) (nutrition.LineItem, nutrition.Meal, error) {
	q := QuerierFromCtx(ctx, r.db)
	row, err := queryOne[itemRow](ctx, q,
		`SELECT `+itemColumns+`
		 FROM meal_items i JOIN meals m ON m.id = i.meal_id
		 WHERE i.id = @id AND m.user_id = @userID`,
		pgx.NamedArgs{"id": itemID, "userID": userID})
	if err != nil {
		return nutrition.LineItem{}, nutrition.Meal{}, mapError(err, "line item", itemID)
	}
	meal, err := r.GetMeal(ctx, userID, row.MealID)
	if err != nil {
		return nutrition.LineItem{}, nutrition.Meal{}, err
	}
	return row.toDomain(), meal, nil
}

// UpdateItem rewrites an item's name, quantity and frozen nutrients.
func (r *MealRepo) UpdateItem(ctx context.Context, it nutrition.LineItem) (nutrition.LineItem, error) {
	row, err := queryReturning[itemRow](ctx, QuerierFromCtx(ctx, r.db),
		`UPDATE meal_items SET
			name = @name, unit = @unit, quantity = @quantity, grams_total = @gramsTotal,
			kcal = @kcal, protein = @protein, carb = @carb, fat = @fat,
			sugars = @sugars, fiber = @fiber, salt = @salt, updated_at = now()
		 WHERE id = @id
		 RETURNING `+itemReturning,
		itemArgs(it))
	if err != nil {
		return nutrition.LineItem{}, mapError(err, "line item", it.ID)
	}
	out := row.toDomain()
	out.Slot = it.Slot
	return out, nil
}

// MoveItem re-parents an item under mealID at position.
func (r *MealRepo) MoveItem(ctx context.Context, itemID, mealID uuid.UUID, position int) error {
	tag, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		"UPDATE meal_items SET meal_id = @mealID, position = @position, updated_at = now() WHERE id = @id",
		pgx.NamedArgs{"id": itemID, "mealID": mealID, "position": position})
	if err != nil {
		return mapError(err, "line item", itemID)
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "line item", itemID)
	}
	return nil
}

// DeleteItem deletes one line item.
func (r *MealRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	tag, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		"DELETE FROM meal_items WHERE id = $1", itemID)
	if err != nil {
		return mapError(err, "line item", itemID)
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "line item", itemID)
	}
	return nil
}
