// Package stats answers daily and range summary requests by combining goal
// targets with the aggregate cache's actuals.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lg/nutrition-api/internal/aggregate"
	"lg/nutrition-api/internal/calendar"
	"lg/nutrition-api/internal/goals"
	"lg/nutrition-api/internal/nutrition"
)

type profileReader interface {
	Get(ctx context.Context, userID int) (nutrition.Profile, error)
}

type cacheReader interface {
	Read(ctx context.Context, userID int, day time.Time) (nutrition.Totals, error)
	ReadRange(ctx context.Context, userID int, from, to time.Time) ([]aggregate.DayTotals, error)
}

type slotReader interface {
	SumDayBySlot(ctx context.Context, userID int, day time.Time) (map[nutrition.Slot]nutrition.Totals, error)
}

// Options configures the Service.
type Options struct {
	DefaultTimezone string
	MaxRangeDays    int
}

// Service is the stats facade.
type Service struct {
	profiles profileReader
	cache    cacheReader
	ledger   slotReader
	resolver *calendar.Resolver
	clock    clockwork.Clock
	log      *zap.Logger
	opts     Options
}

// NewService creates a Service. A nil clock means the real clock.
func NewService(profiles profileReader, cache cacheReader, ledger slotReader, clock clockwork.Clock, log *zap.Logger, opts Options) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = aggregate.DefaultOptions().MaxRangeDays
	}
	return &Service{
		profiles: profiles,
		cache:    cache,
		ledger:   ledger,
		resolver: calendar.NewResolver(clock),
		clock:    clock,
		log:      log.Named("stats"),
		opts:     opts,
	}
}

/* ─── Results ────────────────────────────────────────────────────────── */

// Progress is the used/target comparison for one nutrient. Remaining and
// OverBy are nil when there is no target.
type Progress struct {
	Used      float64
	Target    *float64
	Remaining *float64
	OverBy    *float64
}

// NutrientProgress holds a Progress per tracked nutrient.
type NutrientProgress struct {
	Kcal    Progress
	Protein Progress
	Carb    Progress
	Fat     Progress
	Sugars  Progress
	Fiber   Progress
	Salt    Progress
}

// DailySummary is one day's report.
type DailySummary struct {
	Date     string
	Timezone string
	Window   calendar.Window
	// Target is nil when the profile is missing or incomplete.
	Target *goals.Targets
	Actual nutrition.Totals
	// BySlot is only filled for single-day requests.
	BySlot   map[nutrition.Slot]nutrition.Totals
	Progress NutrientProgress
}

// RangeSummary is an ordered run of daily summaries.
type RangeSummary struct {
	From     string
	To       string
	Timezone string
	Days     []DailySummary
}

// DayNutrients is the reduced per-day card.
type DayNutrients struct {
	Date         string
	TargetKcal   *int
	ConsumedKcal int
	Totals       nutrition.Totals
}

/* ─── Queries ────────────────────────────────────────────────────────── */

// GetDaily returns the summary for date (today in tz when empty).
func (s *Service) GetDaily(ctx context.Context, userID int, date, tz string) (DailySummary, error) {
	profile, found, err := s.loadProfile(ctx, userID)
	if err != nil {
		return DailySummary{}, err
	}
	tz = s.timezone(tz, profile, found)

	win, err := s.resolver.ResolveDay(date, tz)
	if err != nil {
		return DailySummary{}, err
	}
	targets := s.targets(profile, found)

	actual, err := s.cache.Read(ctx, userID, win.Anchor)
	if err != nil {
		return DailySummary{}, fmt.Errorf("read day %s: %w", win.LocalDate, err)
	}
	bySlot, err := s.ledger.SumDayBySlot(ctx, userID, win.Anchor)
	if err != nil {
		return DailySummary{}, aggregate.Classify(ctx, "sum by slot", err)
	}

	return DailySummary{
		Date:     win.LocalDate,
		Timezone: tz,
		Window:   win,
		Target:   targets,
		Actual:   actual,
		BySlot:   bySlot,
		Progress: progressFor(actual, targets),
	}, nil
}

// GetRange returns a summary for every day in [from, to]. Ranges longer than
// the configured maximum are rejected, never truncated.
func (s *Service) GetRange(ctx context.Context, userID int, from, to, tz string) (RangeSummary, error) {
	dates, err := calendar.Days(from, to, s.opts.MaxRangeDays)
	if err != nil {
		return RangeSummary{}, err
	}

	profile, found, err := s.loadProfile(ctx, userID)
	if err != nil {
		return RangeSummary{}, err
	}
	tz = s.timezone(tz, profile, found)
	if _, err := calendar.LoadLocation(tz); err != nil {
		return RangeSummary{}, err
	}
	targets := s.targets(profile, found)

	fromAnchor, _ := calendar.Anchor(dates[0])
	toAnchor, _ := calendar.Anchor(dates[len(dates)-1])
	series, err := s.cache.ReadRange(ctx, userID, fromAnchor, toAnchor)
	if err != nil {
		return RangeSummary{}, fmt.Errorf("read range %s..%s: %w", from, to, err)
	}

	days := make([]DailySummary, 0, len(series))
	for i, dt := range series {
		win, err := s.resolver.ResolveDay(dates[i], tz)
		if err != nil {
			return RangeSummary{}, err
		}
		days = append(days, DailySummary{
			Date:     win.LocalDate,
			Timezone: tz,
			Window:   win,
			Target:   targets,
			Actual:   dt.Totals,
			Progress: progressFor(dt.Totals, targets),
		})
	}

	return RangeSummary{From: from, To: to, Timezone: tz, Days: days}, nil
}

// GetRecommendedTargets computes the user's current targets.
func (s *Service) GetRecommendedTargets(ctx context.Context, userID int) (goals.Targets, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, nutrition.ErrNotFound) {
			return goals.Targets{}, fmt.Errorf("profile for user %d: %w", userID, err)
		}
		return goals.Targets{}, aggregate.Classify(ctx, "load profile", err)
	}
	return goals.Compute(profile, s.clock.Now())
}

// GetDayNutrients returns the reduced card for date.
func (s *Service) GetDayNutrients(ctx context.Context, userID int, date, tz string) (DayNutrients, error) {
	profile, found, err := s.loadProfile(ctx, userID)
	if err != nil {
		return DayNutrients{}, err
	}
	win, err := s.resolver.ResolveDay(date, s.timezone(tz, profile, found))
	if err != nil {
		return DayNutrients{}, err
	}

	actual, err := s.cache.Read(ctx, userID, win.Anchor)
	if err != nil {
		return DayNutrients{}, fmt.Errorf("read day %s: %w", win.LocalDate, err)
	}

	out := DayNutrients{
		Date:         win.LocalDate,
		ConsumedKcal: int(actual.Kcal.IntPart()),
		Totals:       actual,
	}
	if t := s.targets(profile, found); t != nil {
		out.TargetKcal = &t.Kcal
	}
	return out, nil
}

/* ─── Helpers ────────────────────────────────────────────────────────── */

// loadProfile treats a missing profile as "no targets", not a failure.
func (s *Service) loadProfile(ctx context.Context, userID int) (nutrition.Profile, bool, error) {
	p, err := s.profiles.Get(ctx, userID)
	switch {
	case err == nil:
		return p, true, nil
	case errors.Is(err, nutrition.ErrNotFound):
		return nutrition.Profile{}, false, nil
	default:
		return nutrition.Profile{}, false, aggregate.Classify(ctx, "load profile", err)
	}
}

// timezone picks the explicit zone, then the profile's, then the default.
func (s *Service) timezone(explicit string, p nutrition.Profile, found bool) string {
	switch {
	case explicit != "":
		return explicit
	case found && p.Timezone != "":
		return p.Timezone
	default:
		return s.opts.DefaultTimezone
	}
}

func (s *Service) targets(p nutrition.Profile, found bool) *goals.Targets {
	if !found {
		return nil
	}
	t, err := goals.Compute(p, s.clock.Now())
	if err != nil {
		s.log.Debug("no targets for profile", zap.Int("user_id", p.UserID), zap.Error(err))
		return nil
	}
	return &t
}

func progressFor(actual nutrition.Totals, t *goals.Targets) NutrientProgress {
	if t == nil {
		return NutrientProgress{
			Kcal:    Progress{Used: actual.Kcal.InexactFloat64()},
			Protein: Progress{Used: actual.Protein.InexactFloat64()},
			Carb:    Progress{Used: actual.Carb.InexactFloat64()},
			Fat:     Progress{Used: actual.Fat.InexactFloat64()},
			Sugars:  Progress{Used: actual.Sugars.InexactFloat64()},
			Fiber:   Progress{Used: actual.Fiber.InexactFloat64()},
			Salt:    Progress{Used: actual.Salt.InexactFloat64()},
		}
	}
	return NutrientProgress{
		Kcal:    progress(actual.Kcal, t.Kcal),
		Protein: progress(actual.Protein, t.ProteinG),
		Carb:    progress(actual.Carb, t.CarbG),
		Fat:     progress(actual.Fat, t.FatG),
		Sugars:  progress(actual.Sugars, t.SugarMaxG),
		Fiber:   progress(actual.Fiber, t.FiberMinG),
		Salt:    progress(actual.Salt, t.SaltMaxG),
	}
}

// progress computes remaining = max(0, target-used) and
// overBy = max(0, used-target); at most one of them is nonzero.
func progress(used decimal.Decimal, target int) Progress {
	tgt := decimal.NewFromInt(int64(target))
	remaining := decimal.Max(decimal.Zero, tgt.Sub(used)).InexactFloat64()
	overBy := decimal.Max(decimal.Zero, used.Sub(tgt)).InexactFloat64()
	tf := tgt.InexactFloat64()
	return Progress{
		Used:      used.InexactFloat64(),
		Target:    &tf,
		Remaining: &remaining,
		OverBy:    &overBy,
	}
}
