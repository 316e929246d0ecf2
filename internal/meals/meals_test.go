package meals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lg/nutrition-api/internal/nutrition"
)

/* ─── Fakes ──────────────────────────────────────────────────────────── */

type memRepo struct {
	meals map[uuid.UUID]*nutrition.Meal
	items map[uuid.UUID]*nutrition.LineItem
}

func newMemRepo() *memRepo {
	return &memRepo{meals: map[uuid.UUID]*nutrition.Meal{}, items: map[uuid.UUID]*nutrition.LineItem{}}
}

func (r *memRepo) UpsertMeal(ctx context.Context, userID int, day time.Time, slot nutrition.Slot) (nutrition.Meal, error) {
	if m, err := r.FindMeal(ctx, userID, day, slot); err == nil {
		return m, nil
	}
	m := &nutrition.Meal{ID: uuid.New(), UserID: userID, Day: day, Slot: slot}
	r.meals[m.ID] = m
	return *m, nil
}

func (r *memRepo) GetMeal(_ context.Context, userID int, mealID uuid.UUID) (nutrition.Meal, error) {
	m, ok := r.meals[mealID]
	if !ok || m.UserID != userID {
		return nutrition.Meal{}, nutrition.ErrNotFound
	}
	return *m, nil
}

func (r *memRepo) FindMeal(_ context.Context, userID int, day time.Time, slot nutrition.Slot) (nutrition.Meal, error) {
	for _, m := range r.meals {
		if m.UserID == userID && m.Day.Equal(day) && m.Slot == slot {
			return *m, nil
		}
	}
	return nutrition.Meal{}, nutrition.ErrNotFound
}

func (r *memRepo) ListDay(_ context.Context, userID int, day time.Time) ([]nutrition.Meal, error) {
	var out []nutrition.Meal
	for _, m := range r.meals {
		if m.UserID != userID || !m.Day.Equal(day) {
			continue
		}
		meal := *m
		meal.Items = r.itemsOf(m.ID)
		out = append(out, meal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (r *memRepo) itemsOf(mealID uuid.UUID) []nutrition.LineItem {
	var out []nutrition.LineItem
	for _, it := range r.items {
		if it.MealID == mealID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (r *memRepo) NextPosition(_ context.Context, mealID uuid.UUID) (int, error) {
	next := 1
	for _, it := range r.items {
		if it.MealID == mealID && it.Position >= next {
			next = it.Position + 1
		}
	}
	return next, nil
}

func (r *memRepo) InsertItem(_ context.Context, item nutrition.LineItem) (nutrition.LineItem, error) {
	r.items[item.ID] = &item
	return item, nil
}

func (r *memRepo) GetItem(_ context.Context, userID int, itemID uuid.UUID) (nutrition.LineItem, nutrition.Meal, error) {
	it, ok := r.items[itemID]
	if !ok {
		return nutrition.LineItem{}, nutrition.Meal{}, nutrition.ErrNotFound
	}
	m := r.meals[it.MealID]
	if m.UserID != userID {
		return nutrition.LineItem{}, nutrition.Meal{}, nutrition.ErrNotFound
	}
	item := *it
	item.Slot = m.Slot
	return item, *m, nil
}

func (r *memRepo) UpdateItem(_ context.Context, item nutrition.LineItem) (nutrition.LineItem, error) {
	r.items[item.ID] = &item
	return item, nil
}

func (r *memRepo) MoveItem(_ context.Context, itemID, mealID uuid.UUID, position int) error {
	it := r.items[itemID]
	it.MealID, it.Position = mealID, position
	return nil
}

func (r *memRepo) RelocateMeal(_ context.Context, mealID uuid.UUID, day time.Time, slot nutrition.Slot) error {
	m := r.meals[mealID]
	m.Day, m.Slot = day, slot
	return nil
}

func (r *memRepo) MergeMeal(_ context.Context, from, into uuid.UUID, startPos int) error {
	for i, it := range r.itemsOf(from) {
		moved := r.items[it.ID]
		moved.MealID, moved.Position = into, startPos+i
	}
	delete(r.meals, from)
	return nil
}

func (r *memRepo) DeleteMeal(_ context.Context, mealID uuid.UUID) error {
	for id, it := range r.items {
		if it.MealID == mealID {
			delete(r.items, id)
		}
	}
	delete(r.meals, mealID)
	return nil
}

func (r *memRepo) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	delete(r.items, itemID)
	return nil
}

type passTx struct{}

func (passTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recorder struct {
	days []string
	err  error
}

func (r *recorder) Recompute(_ context.Context, _ int, day time.Time) (nutrition.Totals, error) {
	r.days = append(r.days, day.Format("2006-01-02"))
	return nutrition.Totals{}, r.err
}

type profiles map[int]nutrition.Profile

func (p profiles) Get(_ context.Context, userID int) (nutrition.Profile, error) {
	if pr, ok := p[userID]; ok {
		return pr, nil
	}
	return nutrition.Profile{}, nutrition.ErrNotFound
}

/* ─── Fixtures ───────────────────────────────────────────────────────── */

var ctx = context.Background()

func newTestService(t *testing.T, p profiles) (*Service, *memRepo, *recorder) {
	t.Helper()
	repo := newMemRepo()
	rec := &recorder{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC))
	svc := NewService(repo, passTx{}, rec, p, clock, zap.NewNop(), Options{DefaultTimezone: "UTC"})
	return svc, repo, rec
}

func item(name, kcal string) ItemInput {
	return ItemInput{
		Name:     name,
		Unit:     nutrition.UnitGram,
		Quantity: decimal.NewFromInt(100),
		Kcal:     decimal.NewNullDecimal(decimal.RequireFromString(kcal)),
	}
}

func anchor(date string) time.Time {
	t, _ := time.Parse("2006-01-02", date)
	return t
}

/* ─── AddItems ───────────────────────────────────────────────────────── */

// TestAddItems_AppendsToExistingMeal: a second add for the same slot reuses
// the meal and continues the position sequence.
func TestAddItems_AppendsToExistingMeal(t *testing.T) {
	svc, repo, rec := newTestService(t, nil)

	first, err := svc.AddItems(ctx, 1, AddInput{Date: "2024-05-20", Slot: nutrition.SlotLunch,
		Items: []ItemInput{item("rice", "130"), item("beans", "90")}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, 1, first.Items[0].Position)
	assert.Equal(t, 2, first.Items[1].Position)
	assert.True(t, first.Items[0].GramsTotal.Valid)

	second, err := svc.AddItems(ctx, 1, AddInput{Date: "2024-05-20", Slot: nutrition.SlotLunch,
		Items: []ItemInput{item("apple", "52")}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, second.Items[0].Position)

	assert.Len(t, repo.meals, 1)
	assert.Equal(t, []string{"2024-05-20", "2024-05-20"}, rec.days)
}

func TestAddItems_PieceHasNoGramsTotal(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	in := item("egg", "70")
	in.Unit = nutrition.UnitPiece
	in.Quantity = decimal.NewFromInt(2)

	meal, err := svc.AddItems(ctx, 1, AddInput{Date: "2024-05-20", Slot: nutrition.SlotBreakfast, Items: []ItemInput{in}})
	require.NoError(t, err)
	assert.False(t, meal.Items[0].GramsTotal.Valid)
}

// TestAddItems_DayResolution covers the three ways an add picks its day.
func TestAddItems_DayResolution(t *testing.T) {
	late := time.Date(2024, 3, 10, 4, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		profiles profiles
		in       AddInput
		want     string
	}{
		{"explicit date wins", nil, AddInput{Date: "2024-01-02", EatenAt: &late}, "2024-01-02"},
		{"eaten_at in explicit zone", nil, AddInput{EatenAt: &late, Timezone: "America/New_York"}, "2024-03-09"},
		{"eaten_at in UTC by default", nil, AddInput{EatenAt: &late}, "2024-03-10"},
		{"today in profile zone", profiles{1: {Timezone: "Asia/Tokyo"}}, AddInput{}, "2024-06-02"},
		{"today in default zone", nil, AddInput{}, "2024-06-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t, tt.profiles)
			tt.in.Slot = nutrition.SlotSnack
			tt.in.Items = []ItemInput{item("nuts", "180")}

			meal, err := svc.AddItems(ctx, 1, tt.in)
			require.NoError(t, err)
			assert.Equal(t, anchor(tt.want), meal.Day)
		})
	}
}

func TestAddItems_Validation(t *testing.T) {
	negative := item("x", "10")
	negative.Fat = decimal.NewNullDecimal(decimal.NewFromInt(-1))
	zeroQty := item("x", "10")
	zeroQty.Quantity = decimal.Zero
	badUnit := item("x", "10")
	badUnit.Unit = "cup"

	tests := []struct {
		name string
		in   AddInput
		want error
	}{
		{"bad slot", AddInput{Date: "2024-05-20", Slot: "brunch", Items: []ItemInput{item("x", "1")}}, nutrition.ErrValidation},
		{"no items", AddInput{Date: "2024-05-20", Slot: nutrition.SlotLunch}, nutrition.ErrValidation},
		{"negative nutrient", AddInput{Date: "2024-05-20", Slot: nutrition.SlotLunch, Items: []ItemInput{negative}}, nutrition.ErrValidation},
		{"zero quantity", AddInput{Date: "2024-05-20", Slot: nutrition.SlotLunch, Items: []ItemInput{zeroQty}}, nutrition.ErrValidation},
		{"bad unit", AddInput{Date: "2024-05-20", Slot: nutrition.SlotLunch, Items: []ItemInput{badUnit}}, nutrition.ErrValidation},
		{"blank name", AddInput{Date: "2024-05-20", Slot: nutrition.SlotLunch, Items: []ItemInput{item("  ", "1")}}, nutrition.ErrValidation},
		{"bad date", AddInput{Date: "2024-13-01", Slot: nutrition.SlotLunch, Items: []ItemInput{item("x", "1")}}, nutrition.ErrInvalidDate},
		{"bad zone", AddInput{Timezone: "Mars/Olympus", Slot: nutrition.SlotLunch, Items: []ItemInput{item("x", "1")}}, nutrition.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, rec := newTestService(t, nil)
			_, err := svc.AddItems(ctx, 1, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, repo.meals)
			assert.Empty(t, rec.days)
		})
	}
}

// TestValidateItem_FirstNegativeNutrientIsStable: with several negative
// nutrients the error always names the first in kcal, protein, carb, fat,
// sugars, fiber, salt order.
func TestValidateItem_FirstNegativeNutrientIsStable(t *testing.T) {
	in := item("x", "10")
	in.Protein = decimal.NewNullDecimal(decimal.NewFromInt(-1))
	in.Fiber = decimal.NewNullDecimal(decimal.NewFromInt(-2))
	in.Salt = decimal.NewNullDecimal(decimal.NewFromInt(-3))

	for range 50 {
		err := validateItem(in)
		var ve *nutrition.ValidationError
		require.ErrorAs(t, err, &ve)
		require.Equal(t, "protein", ve.Field)
	}
}

// TestAddItems_StaleStats: a failed recompute still returns the saved meal.
func TestAddItems_StaleStats(t *testing.T) {
	svc, repo, rec := newTestService(t, nil)
	rec.err = fmt.Errorf("%w: recompute: deadline", nutrition.ErrStorageTimeout)

	meal, err := svc.AddItems(ctx, 1, AddInput{Date: "2024-05-20", Slot: nutrition.SlotDinner,
		Items: []ItemInput{item("soup", "210")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, nutrition.ErrStatsStale)
	assert.ErrorIs(t, err, nutrition.ErrStorageTimeout)
	assert.Len(t, meal.Items, 1)
	assert.Len(t, repo.items, 1)
}

/* ─── Edits and moves ────────────────────────────────────────────────── */

func TestUpdateItem(t *testing.T) {
	svc, repo, rec := newTestService(t, nil)
	meal, err := svc.AddItems(ctx, 1, AddInput{Date: "2024-05-20", Slot: nutrition.SlotLunch,
		Items: []ItemInput{item("rice", "130")}})
	require.NoError(t, err)
	id := meal.Items[0].ID

	updated, err := svc.UpdateItem(ctx, 1, id, item("brown rice", "111"))
	require.NoError(t, err)
	assert.Equal(t, id, updated.ID)
	assert.Equal(t, "brown rice", repo.items[id].Name)
	assert.Equal(t, 1, repo.items[id].Position)
	assert.Equal(t, []string{"2024-05-20", "2024-05-20"}, rec.days)

	_, err = svc.UpdateItem(ctx, 2, id, item("stolen", "1"))
	assert.ErrorIs(t, err, nutrition.ErrNotFound)
	assert.Len(t, rec.days, 2)
}

// TestMoveItem_RecomputesBothDays: moving to another day refreshes the
// source and the destination.
func TestMoveItem_RecomputesBothDays(t *testing.T) {
	svc, repo, rec := newTestService(t, nil)
	meal, err := svc.AddItems(ctx, 1, AddInput{Date: "2024-05-20", Slot: nutrition.SlotDinner,
		Items: []ItemInput{item("pizza", "800")}})
	require.NoError(t, err)
	rec.days = nil

	moved, err := svc.MoveItem(ctx, 1, meal.Items[0].ID, MoveTarget{Date: "2024-05-21", Slot: nutrition.SlotLunch})
	require.NoError(t, err)
	assert.Equal(t, nutrition.SlotLunch, moved.Slot)
	assert.NotEqual(t, meal.ID, moved.MealID)
	assert.Equal(t, []string{"2024-05-20", "2024-05-21"}, rec.days)
	assert.Len(t, repo.meals, 2, "source meal is kept even when emptied")
}

func TestMoveItem_SameDayRecomputesOnce(t *testing.T) {
	svc, _, rec := newTestService(t, nil)
	meal, err := svc.AddItems(ctx, 1, AddInput{Date: "2024-05-20", Slot: nutrition.SlotDinner,
		Items: []ItemInput{item("cake", "350")}})
	require.NoError(t, err)
	rec.days = nil

	_, err = svc.MoveItem(ctx, 1, meal.Items[0].ID, MoveTarget{Slot: nutrition.SlotSnack})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-20"}, rec.days)
}

func TestMoveMeal_MergesIntoExisting(t *testing.T) {
	svc, repo, rec := newTestService(t, nil)
	src, err := svc.AddItems(ctx, 1, AddInput{Date: "2024-05-20", Slot: nutrition.SlotSnack,
		Items: []ItemInput{item("chips", "500"), item("dip", "100")}})
	require.NoError(t, err)
	dest, err := svc.AddItems(ctx, 1, AddInput{Date: "2024-05-21", Slot: nutrition.SlotSnack,
		Items: []ItemInput{item("apple", "52")}})
	require.NoError(t, err)
	rec.days = nil

	got, err := svc.MoveMeal(ctx, 1, src.ID, MoveTarget{Date: "2024-05-21"})
	require.NoError(t, err)
	assert.Equal(t, dest.ID, got.ID)

	_, gone := repo.meals[src.ID]
	assert.False(t, gone)
	items := repo.itemsOf(dest.ID)
	require.Len(t, items, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{items[0].Position, items[1].Position, items[2].Position})
	assert.Equal(t, []string{"2024-05-20", "2024-05-21"}, rec.days)
}

func TestMoveMeal_RelocatesWhenFree(t *testing.T) {
	svc, repo, rec := newTestService(t, nil)
	src, err := svc.AddItems(ctx, 1, AddInput{Date: "2024-05-20", Slot: nutrition.SlotSnack,
		Items: []ItemInput{item("chips", "500")}})
	require.NoError(t, err)
	rec.days = nil

	got, err := svc.MoveMeal(ctx, 1, src.ID, MoveTarget{Date: "2024-05-22", Slot: nutrition.SlotDinner})
	require.NoError(t, err)
	assert.Equal(t, src.ID, got.ID)
	assert.Equal(t, anchor("2024-05-22"), repo.meals[src.ID].Day)
	assert.Equal(t, nutrition.SlotDinner, repo.meals[src.ID].Slot)
	assert.Equal(t, []string{"2024-05-20", "2024-05-22"}, rec.days)
}

/* ─── Deletes ────────────────────────────────────────────────────────── */

func TestDeleteItemAndMeal(t *testing.T) {
	svc, repo, rec := newTestService(t, nil)
	meal, err := svc.AddItems(ctx, 1, AddInput{Date: "2024-05-20", Slot: nutrition.SlotLunch,
		Items: []ItemInput{item("rice", "130"), item("beans", "90")}})
	require.NoError(t, err)
	rec.days = nil

	require.NoError(t, svc.DeleteItem(ctx, 1, meal.Items[0].ID))
	assert.Len(t, repo.items, 1)

	assert.ErrorIs(t, svc.DeleteMeal(ctx, 2, meal.ID), nutrition.ErrNotFound)
	require.NoError(t, svc.DeleteMeal(ctx, 1, meal.ID))
	assert.Empty(t, repo.items)
	assert.Empty(t, repo.meals)

	assert.Equal(t, []string{"2024-05-20", "2024-05-20"}, rec.days)
}

func TestAfterCommit_AggregatesFailures(t *testing.T) {
	svc, _, rec := newTestService(t, nil)
	rec.err = errors.New("boom")

	err := svc.afterCommit(ctx, 1, anchor("2024-05-20"), anchor("2024-05-21"), anchor("2024-05-20"))
	assert.ErrorIs(t, err, nutrition.ErrStatsStale)
	assert.Equal(t, []string{"2024-05-20", "2024-05-21"}, rec.days)

	rec.err = nil
	assert.NoError(t, svc.afterCommit(ctx, 1, anchor("2024-05-20")))
}

/* ─── Day view ───────────────────────────────────────────────────────── */

func TestGetDay(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.AddItems(ctx, 1, AddInput{Date: "2024-05-20", Slot: nutrition.SlotLunch,
		Items: []ItemInput{item("rice", "130.4"), item("beans", "90.4")}})
	require.NoError(t, err)
	_, err = svc.AddItems(ctx, 1, AddInput{Date: "2024-05-20", Slot: nutrition.SlotBreakfast,
		Items: []ItemInput{item("oats", "150")}})
	require.NoError(t, err)

	day, err := svc.GetDay(ctx, 1, "2024-05-20", "")
	require.NoError(t, err)
	assert.Len(t, day.Meals, 2)
	assert.True(t, day.Totals.Kcal.Equal(decimal.NewFromInt(371)), "got %s", day.Totals.Kcal)

	empty, err := svc.GetDay(ctx, 1, "2024-05-21", "")
	require.NoError(t, err)
	assert.NotNil(t, empty.Meals)
	assert.Empty(t, empty.Meals)

	_, err = svc.GetDay(ctx, 1, "yesterday", "")
	assert.ErrorIs(t, err, nutrition.ErrInvalidDate)
}
