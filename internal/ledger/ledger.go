// Package ledger reduces a day's meal line items to nutrient totals.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lg/nutrition-api/internal/nutrition"
)

// Source lists the line items of every meal a user logged on a day, each
// with its meal's slot attached.
type Source interface {
	ListLineItems(ctx context.Context, userID int, day time.Time) ([]nutrition.LineItem, error)
}

// DaySum is the reduction of one day.
type DaySum struct {
	Totals nutrition.Totals
	// Items is the number of contributing line items. Zero means the day has
	// no data, which is distinct from items that sum to zero.
	Items int
	Meals int
}

// Empty reports whether no line item contributed.
func (s DaySum) Empty() bool { return s.Items == 0 }

// Reduce sums each nutrient independently. Absent values contribute zero and
// kcal is rounded to a whole number after summing.
func Reduce(items []nutrition.LineItem) DaySum {
	var sum DaySum
	meals := make(map[uuid.UUID]struct{})
	for _, it := range items {
		sum.Totals = sum.Totals.AddItem(it)
		meals[it.MealID] = struct{}{}
	}
	sum.Totals = sum.Totals.Canonical()
	sum.Items = len(items)
	sum.Meals = len(meals)
	return sum
}

// ReduceBySlot groups items by slot. Every slot is present in the result.
func ReduceBySlot(items []nutrition.LineItem) map[nutrition.Slot]nutrition.Totals {
	grouped := make(map[nutrition.Slot][]nutrition.LineItem, len(nutrition.Slots))
	for _, it := range items {
		grouped[it.Slot] = append(grouped[it.Slot], it)
	}

	out := make(map[nutrition.Slot]nutrition.Totals, len(nutrition.Slots))
	for _, slot := range nutrition.Slots {
		out[slot] = Reduce(grouped[slot]).Totals
	}
	return out
}

// Reader reads and reduces a day's line items.
type Reader struct {
	src Source
}

// NewReader creates a Reader over src.
func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

// SumDay returns the reduction of every line item the user logged on day.
// A day without meals yields a zero DaySum, not an error.
func (r *Reader) SumDay(ctx context.Context, userID int, day time.Time) (DaySum, error) {
	items, err := r.src.ListLineItems(ctx, userID, day)
	if err != nil {
		return DaySum{}, fmt.Errorf("list line items: %w", err)
	}
	return Reduce(items), nil
}

// SumDayBySlot returns per-slot totals for day.
func (r *Reader) SumDayBySlot(ctx context.Context, userID int, day time.Time) (map[nutrition.Slot]nutrition.Totals, error) {
	items, err := r.src.ListLineItems(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	return ReduceBySlot(items), nil
}
