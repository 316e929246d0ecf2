// Package weight keeps the weight log and mirrors the newest entry onto the
// profile's current weight.
package weight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lg/nutrition-api/internal/aggregate"
	"lg/nutrition-api/internal/calendar"
	"lg/nutrition-api/internal/nutrition"
)

const (
	maxRangeDays = 366
	maxNoteLen   = 500
	sourceManual = "manual"
)

var maxWeight = decimal.NewFromInt(400)

// Repository stores weight entries.
type Repository interface {
	Insert(ctx context.Context, e nutrition.WeightEntry) (nutrition.WeightEntry, error)
	Range(ctx context.Context, userID int, from, to time.Time) ([]nutrition.WeightEntry, error)
	Latest(ctx context.Context, userID int) (nutrition.WeightEntry, error)
	Delete(ctx context.Context, userID int, id uuid.UUID) error
}

// ProfileStore reads the profile timezone and records the current weight.
type ProfileStore interface {
	Get(ctx context.Context, userID int) (nutrition.Profile, error)
	SetWeight(ctx context.Context, userID int, weightKG float64) error
}

// TxManager runs fn inside one database transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service is the weight log.
type Service struct {
	repo      Repository
	profiles  ProfileStore
	tx        TxManager
	resolver  *calendar.Resolver
	log       *zap.Logger
	defaultTZ string
}

// NewService creates a Service. A nil clock means the real clock.
func NewService(repo Repository, profiles ProfileStore, tx TxManager, clock clockwork.Clock, log *zap.Logger, defaultTZ string) *Service {
	return &Service{
		repo:      repo,
		profiles:  profiles,
		tx:        tx,
		resolver:  calendar.NewResolver(clock),
		log:       log.Named("weight"),
		defaultTZ: defaultTZ,
	}
}

// AddInput is one weigh-in. Date defaults to today in Timezone, then the
// profile's zone.
type AddInput struct {
	Date     string
	Timezone string
	WeightKG decimal.Decimal
	Note     *string
}

// Add records an entry and, in the same transaction, sets the profile's
// current weight when the entry is the newest one.
func (s *Service) Add(ctx context.Context, userID int, in AddInput) (nutrition.WeightEntry, error) {
	if !in.WeightKG.IsPositive() || in.WeightKG.GreaterThan(maxWeight) {
		return nutrition.WeightEntry{}, nutrition.NewValidationError("weight_kg", "must be between 0 and 400")
	}
	if in.Note != nil {
		n := strings.TrimSpace(*in.Note)
		if len(n) > maxNoteLen {
			return nutrition.WeightEntry{}, nutrition.NewValidationError("note", fmt.Sprintf("must be at most %d characters", maxNoteLen))
		}
		in.Note = &n
	}

	date := in.Date
	if date == "" {
		tz, err := s.timezone(ctx, userID, in.Timezone)
		if err != nil {
			return nutrition.WeightEntry{}, err
		}
		if date, err = s.resolver.Today(tz); err != nil {
			return nutrition.WeightEntry{}, err
		}
	}
	day, err := calendar.Anchor(date)
	if err != nil {
		return nutrition.WeightEntry{}, err
	}

	var saved nutrition.WeightEntry
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		newest := true
		latest, err := s.repo.Latest(ctx, userID)
		switch {
		case err == nil:
			newest = !day.Before(latest.Day)
		case !errors.Is(err, nutrition.ErrNotFound):
			return fmt.Errorf("latest weight: %w", err)
		}

		saved, err = s.repo.Insert(ctx, nutrition.WeightEntry{
			ID:       uuid.New(),
			UserID:   userID,
			Day:      day,
			WeightKG: in.WeightKG,
			Source:   sourceManual,
			Note:     in.Note,
		})
		if err != nil {
			return fmt.Errorf("insert weight: %w", err)
		}
		if !newest {
			return nil
		}
		if err := s.profiles.SetWeight(ctx, userID, in.WeightKG.InexactFloat64()); err != nil {
			return fmt.Errorf("set profile weight: %w", err)
		}
		return nil
	})
	if err != nil {
		return nutrition.WeightEntry{}, aggregate.Classify(ctx, "add weight", err)
	}

	s.log.Debug("weight recorded",
		zap.Int("user_id", userID),
		zap.String("day", date),
		zap.String("weight_kg", in.WeightKG.String()),
	)
	return saved, nil
}

// Range returns the entries between from and to inclusive, oldest first.
func (s *Service) Range(ctx context.Context, userID int, from, to string) ([]nutrition.WeightEntry, error) {
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: from and to are required", nutrition.ErrInvalidDate)
	}
	fromDay, toDay, _, err := calendar.ParseRange(from, to, maxRangeDays)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.Range(ctx, userID, fromDay, toDay)
	if err != nil {
		return nil, aggregate.Classify(ctx, "weight range", err)
	}
	if entries == nil {
		entries = []nutrition.WeightEntry{}
	}
	return entries, nil
}

// Latest returns the most recent entry, or ErrNotFound.
func (s *Service) Latest(ctx context.Context, userID int) (nutrition.WeightEntry, error) {
	e, err := s.repo.Latest(ctx, userID)
	if err != nil {
		return nutrition.WeightEntry{}, aggregate.Classify(ctx, "latest weight", err)
	}
	return e, nil
}

// Delete removes one entry. The profile's current weight is left as is.
func (s *Service) Delete(ctx context.Context, userID int, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return aggregate.Classify(ctx, "delete weight", err)
	}
	return nil
}

func (s *Service) timezone(ctx context.Context, userID int, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	p, err := s.profiles.Get(ctx, userID)
	switch {
	case err == nil && p.Timezone != "":
		return p.Timezone, nil
	case err == nil, errors.Is(err, nutrition.ErrNotFound):
		return s.defaultTZ, nil
	default:
		return "", aggregate.Classify(ctx, "load profile", err)
	}
}
