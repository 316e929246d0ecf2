// Package meals owns meal logging. Every mutation commits its own
// transaction and then refreshes the daily aggregate of each day it touched.
package meals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"lg/nutrition-api/internal/aggregate"
	"lg/nutrition-api/internal/calendar"
	"lg/nutrition-api/internal/ledger"
	"lg/nutrition-api/internal/nutrition"
)

// Repository is the meal storage the service needs. Calls made with a
// transaction context run inside it.
type Repository interface {
	// UpsertMeal returns the meal for (userID, day, slot), creating it if needed.
	UpsertMeal(ctx context.Context, userID int, day time.Time, slot nutrition.Slot) (nutrition.Meal, error)
	GetMeal(ctx context.Context, userID int, mealID uuid.UUID) (nutrition.Meal, error)
	FindMeal(ctx context.Context, userID int, day time.Time, slot nutrition.Slot) (nutrition.Meal, error)
	ListDay(ctx context.Context, userID int, day time.Time) ([]nutrition.Meal, error)
	NextPosition(ctx context.Context, mealID uuid.UUID) (int, error)
	InsertItem(ctx context.Context, item nutrition.LineItem) (nutrition.LineItem, error)
	// GetItem returns the item and its owning meal, or ErrNotFound when the
	// item does not belong to userID.
	GetItem(ctx context.Context, userID int, itemID uuid.UUID) (nutrition.LineItem, nutrition.Meal, error)
	UpdateItem(ctx context.Context, item nutrition.LineItem) (nutrition.LineItem, error)
	MoveItem(ctx context.Context, itemID, mealID uuid.UUID, position int) error
	RelocateMeal(ctx context.Context, mealID uuid.UUID, day time.Time, slot nutrition.Slot) error
	// MergeMeal moves every item of from into into, renumbering positions
	// from startPos, and deletes from.
	MergeMeal(ctx context.Context, from, into uuid.UUID, startPos int) error
	DeleteMeal(ctx context.Context, mealID uuid.UUID) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
}

// TxManager runs fn inside one database transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Recomputer rebuilds the daily aggregate for one day.
type Recomputer interface {
	Recompute(ctx context.Context, userID int, day time.Time) (nutrition.Totals, error)
}

type profileReader interface {
	Get(ctx context.Context, userID int) (nutrition.Profile, error)
}

// Options configures the Service.
type Options struct {
	DefaultTimezone string
}

// Service implements the meal mutations and the day view.
type Service struct {
	repo     Repository
	tx       TxManager
	stats    Recomputer
	profiles profileReader
	resolver *calendar.Resolver
	log      *zap.Logger
	opts     Options
}

// NewService creates a Service. A nil clock means the real clock.
func NewService(repo Repository, tx TxManager, stats Recomputer, profiles profileReader, clock clockwork.Clock, log *zap.Logger, opts Options) *Service {
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = "UTC"
	}
	return &Service{
		repo:     repo,
		tx:       tx,
		stats:    stats,
		profiles: profiles,
		resolver: calendar.NewResolver(clock),
		log:      log.Named("meals"),
		opts:     opts,
	}
}

/* ─── Inputs ─────────────────────────────────────────────────────────── */

const (
	maxNameLen  = 200
	maxQuantity = 100000
)

// ItemInput is one line item as submitted by the client.
type ItemInput struct {
	Name     string
	Unit     nutrition.Unit
	Quantity decimal.Decimal
	Kcal     decimal.NullDecimal
	Protein  decimal.NullDecimal
	Carb     decimal.NullDecimal
	Fat      decimal.NullDecimal
	Sugars   decimal.NullDecimal
	Fiber    decimal.NullDecimal
	Salt     decimal.NullDecimal
}

// AddInput appends items to the meal for a slot. The day is Date when set,
// else the local date of EatenAt in Timezone, else today in Timezone.
type AddInput struct {
	Date     string
	EatenAt  *time.Time
	Timezone string
	Slot     nutrition.Slot
	Items    []ItemInput
}

// MoveTarget names a destination day and slot. Empty fields keep the
// current value.
type MoveTarget struct {
	Date string
	Slot nutrition.Slot
}

// DayView is one day's meals, in slot order, with their items.
type DayView struct {
	Date   string
	Meals  []nutrition.Meal
	Totals nutrition.Totals
}

/* ─── Mutations ──────────────────────────────────────────────────────── */

// AddItems appends items to the (day, slot) meal, creating the meal if it
// does not exist yet. A returned ErrStatsStale accompanies a saved meal.
func (s *Service) AddItems(ctx context.Context, userID int, in AddInput) (nutrition.Meal, error) {
	if !in.Slot.Valid() {
		return nutrition.Meal{}, nutrition.NewValidationError("slot", "must be one of breakfast, lunch, dinner, snack")
	}
	if len(in.Items) == 0 {
		return nutrition.Meal{}, nutrition.NewValidationError("items", "at least one item is required")
	}
	for i, it := range in.Items {
		if err := validateItem(it); err != nil {
			return nutrition.Meal{}, fmt.Errorf("item %d: %w", i, err)
		}
	}

	day, err := s.resolveAddDay(ctx, userID, in)
	if err != nil {
		return nutrition.Meal{}, err
	}

	var meal nutrition.Meal
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.UpsertMeal(ctx, userID, day, in.Slot)
		if err != nil {
			return fmt.Errorf("upsert meal: %w", err)
		}
		pos, err := s.repo.NextPosition(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("next position: %w", err)
		}
		for i, it := range in.Items {
			saved, err := s.repo.InsertItem(ctx, newLineItem(it, m.ID, in.Slot, pos+i))
			if err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			m.Items = append(m.Items, saved)
		}
		meal = m
		return nil
	})
	if err != nil {
		return nutrition.Meal{}, aggregate.Classify(ctx, "add items", err)
	}

	return meal, s.afterCommit(ctx, userID, meal.Day)
}

// UpdateItem replaces the name, quantity and frozen nutrients of an item.
func (s *Service) UpdateItem(ctx context.Context, userID int, itemID uuid.UUID, in ItemInput) (nutrition.LineItem, error) {
	if err := validateItem(in); err != nil {
		return nutrition.LineItem{}, err
	}

	var (
		updated nutrition.LineItem
		day     time.Time
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, meal, err := s.repo.GetItem(ctx, userID, itemID)
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}
		next := newLineItem(in, cur.MealID, cur.Slot, cur.Position)
		next.ID = cur.ID
		next.CreatedAt = cur.CreatedAt

		updated, err = s.repo.UpdateItem(ctx, next)
		if err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		day = meal.Day
		return nil
	})
	if err != nil {
		return nutrition.LineItem{}, aggregate.Classify(ctx, "update item", err)
	}

	return updated, s.afterCommit(ctx, userID, day)
}

// MoveItem moves an item to the end of the meal for another day and/or slot.
// Both the old and the new day are recomputed.
func (s *Service) MoveItem(ctx context.Context, userID int, itemID uuid.UUID, to MoveTarget) (nutrition.LineItem, error) {
	if to.Slot != "" && !to.Slot.Valid() {
		return nutrition.LineItem{}, nutrition.NewValidationError("slot", "must be one of breakfast, lunch, dinner, snack")
	}

	var (
		moved    nutrition.LineItem
		from, at time.Time
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		item, meal, err := s.repo.GetItem(ctx, userID, itemID)
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}
		day, slot, err := destination(meal, to)
		if err != nil {
			return err
		}
		from, at = meal.Day, day
		if day.Equal(meal.Day) && slot == meal.Slot {
			moved = item
			return nil
		}

		dest, err := s.repo.UpsertMeal(ctx, userID, day, slot)
		if err != nil {
			return fmt.Errorf("upsert meal: %w", err)
		}
		pos, err := s.repo.NextPosition(ctx, dest.ID)
		if err != nil {
			return fmt.Errorf("next position: %w", err)
		}
		if err := s.repo.MoveItem(ctx, item.ID, dest.ID, pos); err != nil {
			return fmt.Errorf("move item: %w", err)
		}
		item.MealID, item.Slot, item.Position = dest.ID, slot, pos
		moved = item
		return nil
	})
	if err != nil {
		return nutrition.LineItem{}, aggregate.Classify(ctx, "move item", err)
	}

	return moved, s.afterCommit(ctx, userID, from, at)
}

// MoveMeal moves a whole meal to another day and/or slot. When the user
// already has a meal there, the items are appended to it and the source meal
// is removed.
func (s *Service) MoveMeal(ctx context.Context, userID int, mealID uuid.UUID, to MoveTarget) (nutrition.Meal, error) {
	if to.Slot != "" && !to.Slot.Valid() {
		return nutrition.Meal{}, nutrition.NewValidationError("slot", "must be one of breakfast, lunch, dinner, snack")
	}

	var (
		result   nutrition.Meal
		from, at time.Time
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		src, err := s.repo.GetMeal(ctx, userID, mealID)
		if err != nil {
			return fmt.Errorf("get meal: %w", err)
		}
		day, slot, err := destination(src, to)
		if err != nil {
			return err
		}
		from, at = src.Day, day
		if day.Equal(src.Day) && slot == src.Slot {
			result = src
			return nil
		}

		existing, err := s.repo.FindMeal(ctx, userID, day, slot)
		switch {
		case errors.Is(err, nutrition.ErrNotFound):
			if err := s.repo.RelocateMeal(ctx, src.ID, day, slot); err != nil {
				return fmt.Errorf("relocate meal: %w", err)
			}
			src.Day, src.Slot = day, slot
			result = src
			return nil
		case err != nil:
			return fmt.Errorf("find meal: %w", err)
		}

		pos, err := s.repo.NextPosition(ctx, existing.ID)
		if err != nil {
			return fmt.Errorf("next position: %w", err)
		}
		if err := s.repo.MergeMeal(ctx, src.ID, existing.ID, pos); err != nil {
			return fmt.Errorf("merge meal: %w", err)
		}
		result = existing
		return nil
	})
	if err != nil {
		return nutrition.Meal{}, aggregate.Classify(ctx, "move meal", err)
	}

	return result, s.afterCommit(ctx, userID, from, at)
}

// DeleteMeal removes a meal and all of its items.
func (s *Service) DeleteMeal(ctx context.Context, userID int, mealID uuid.UUID) error {
	var day time.Time
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		meal, err := s.repo.GetMeal(ctx, userID, mealID)
		if err != nil {
			return fmt.Errorf("get meal: %w", err)
		}
		day = meal.Day
		return s.repo.DeleteMeal(ctx, meal.ID)
	})
	if err != nil {
		return aggregate.Classify(ctx, "delete meal", err)
	}
	return s.afterCommit(ctx, userID, day)
}

// DeleteItem removes one line item. The meal is kept even when it becomes
// empty.
func (s *Service) DeleteItem(ctx context.Context, userID int, itemID uuid.UUID) error {
	var day time.Time
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		item, meal, err := s.repo.GetItem(ctx, userID, itemID)
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}
		day = meal.Day
		return s.repo.DeleteItem(ctx, item.ID)
	})
	if err != nil {
		return aggregate.Classify(ctx, "delete item", err)
	}
	return s.afterCommit(ctx, userID, day)
}

/* ─── Queries ────────────────────────────────────────────────────────── */

// GetDay lists the meals of date (today in the user's zone when empty).
func (s *Service) GetDay(ctx context.Context, userID int, date, tz string) (DayView, error) {
	if date == "" {
		zone, err := s.timezone(ctx, userID, tz)
		if err != nil {
			return DayView{}, err
		}
		if date, err = s.resolver.Today(zone); err != nil {
			return DayView{}, err
		}
	}
	day, err := calendar.Anchor(date)
	if err != nil {
		return DayView{}, err
	}

	meals, err := s.repo.ListDay(ctx, userID, day)
	if err != nil {
		return DayView{}, aggregate.Classify(ctx, "list day", err)
	}
	if meals == nil {
		meals = []nutrition.Meal{}
	}

	var items []nutrition.LineItem
	for _, m := range meals {
		items = append(items, m.Items...)
	}
	return DayView{Date: date, Meals: meals, Totals: ledger.Reduce(items).Totals}, nil
}

/* ─── Helpers ────────────────────────────────────────────────────────── */

// afterCommit recomputes every distinct day a committed mutation touched,
// detached from the request's cancellation.
func (s *Service) afterCommit(ctx context.Context, userID int, days ...time.Time) error {
	ctx = context.WithoutCancel(ctx)
	seen := make(map[int64]struct{}, len(days))
	var errs error
	for _, d := range days {
		if _, ok := seen[d.Unix()]; ok {
			continue
		}
		seen[d.Unix()] = struct{}{}

		if _, err := s.stats.Recompute(ctx, userID, d); err != nil {
			s.log.Warn("recompute after commit failed",
				zap.Int("user_id", userID),
				zap.String("day", calendar.FormatAnchor(d)),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", nutrition.ErrStatsStale, errs)
	}
	return nil
}

func (s *Service) resolveAddDay(ctx context.Context, userID int, in AddInput) (time.Time, error) {
	if in.Date != "" {
		return calendar.Anchor(in.Date)
	}
	tz, err := s.timezone(ctx, userID, in.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	if in.EatenAt != nil {
		return calendar.AnchorOf(*in.EatenAt, tz)
	}
	today, err := s.resolver.Today(tz)
	if err != nil {
		return time.Time{}, err
	}
	return calendar.Anchor(today)
}

// timezone picks the explicit zone, then the profile's, then the default.
func (s *Service) timezone(ctx context.Context, userID int, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	p, err := s.profiles.Get(ctx, userID)
	switch {
	case err == nil && p.Timezone != "":
		return p.Timezone, nil
	case err == nil, errors.Is(err, nutrition.ErrNotFound):
		return s.opts.DefaultTimezone, nil
	default:
		return "", aggregate.Classify(ctx, "load profile", err)
	}
}

func destination(cur nutrition.Meal, to MoveTarget) (time.Time, nutrition.Slot, error) {
	day, slot := cur.Day, cur.Slot
	if to.Date != "" {
		d, err := calendar.Anchor(to.Date)
		if err != nil {
			return time.Time{}, "", err
		}
		day = d
	}
	if to.Slot != "" {
		slot = to.Slot
	}
	return day, slot, nil
}

func validateItem(it ItemInput) error {
	name := strings.TrimSpace(it.Name)
	switch {
	case name == "":
		return nutrition.NewValidationError("name", "is required")
	case len(name) > maxNameLen:
		return nutrition.NewValidationError("name", fmt.Sprintf("must be at most %d characters", maxNameLen))
	case !it.Unit.Valid():
		return nutrition.NewValidationError("unit", "must be one of g, ml, piece")
	case !it.Quantity.IsPositive():
		return nutrition.NewValidationError("quantity", "must be greater than zero")
	case it.Quantity.GreaterThan(decimal.NewFromInt(maxQuantity)):
		return nutrition.NewValidationError("quantity", fmt.Sprintf("must be at most %d", maxQuantity))
	}

	nutrients := []struct {
		field string
		value decimal.NullDecimal
	}{
		{"kcal", it.Kcal}, {"protein", it.Protein}, {"carb", it.Carb}, {"fat", it.Fat},
		{"sugars", it.Sugars}, {"fiber", it.Fiber}, {"salt", it.Salt},
	}
	for _, n := range nutrients {
		if n.value.Valid && n.value.Decimal.IsNegative() {
			return nutrition.NewValidationError(n.field, "must not be negative")
		}
	}
	return nil
}

func newLineItem(in ItemInput, mealID uuid.UUID, slot nutrition.Slot, position int) nutrition.LineItem {
	item := nutrition.LineItem{
		ID:       uuid.New(),
		MealID:   mealID,
		Slot:     slot,
		Position: position,
		Name:     strings.TrimSpace(in.Name),
		Unit:     in.Unit,
		Quantity: in.Quantity,
		Kcal:     in.Kcal,
		Protein:  in.Protein,
		Carb:     in.Carb,
		Fat:      in.Fat,
		Sugars:   in.Sugars,
		Fiber:    in.Fiber,
		Salt:     in.Salt,
	}
	if in.Unit == nutrition.UnitGram {
		item.GramsTotal = decimal.NewNullDecimal(in.Quantity)
	}
	return item
}
