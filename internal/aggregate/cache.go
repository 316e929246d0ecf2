// Package aggregate keeps the materialized per-user, per-day nutrient
// snapshot consistent with the ledger it is derived from.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lg/nutrition-api/internal/calendar"
	"lg/nutrition-api/internal/ledger"
	"lg/nutrition-api/internal/nutrition"
)

// Store persists daily aggregate rows. Get returns nutrition.ErrNotFound on
// a miss. Calls made with a transaction context run inside it.
type Store interface {
	Get(ctx context.Context, userID int, day time.Time) (nutrition.Totals, error)
	ListRange(ctx context.Context, userID int, from, to time.Time) ([]DayTotals, error)
	Upsert(ctx context.Context, userID int, day time.Time, t nutrition.Totals) error
	Delete(ctx context.Context, userID int, day time.Time) error
	// LockDay takes a lock on (userID, day) held until the transaction ends.
	LockDay(ctx context.Context, userID int, day time.Time) error
}

// TxManager runs fn inside a database transaction carried by ctx.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SumReader is the ledger view the cache rebuilds from.
type SumReader interface {
	SumDay(ctx context.Context, userID int, day time.Time) (ledger.DaySum, error)
}

// DayTotals is one day of a range.
type DayTotals struct {
	Day    time.Time
	Totals nutrition.Totals
}

// Options tunes the cache.
type Options struct {
	// Timeout bounds a single recompute or read.
	Timeout      time.Duration
	MaxRangeDays int
	Concurrency  int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{Timeout: 5 * time.Second, MaxRangeDays: 92, Concurrency: 8}
}

// Cache is the read-through daily aggregate.
type Cache struct {
	ledger SumReader
	store  Store
	tx     TxManager
	log    *zap.Logger
	locks  *keyedMutex
	opts   Options
}

// New creates a Cache.
func New(reader SumReader, store Store, tx TxManager, log *zap.Logger, opts Options) *Cache {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = def.MaxRangeDays
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	return &Cache{
		ledger: reader,
		store:  store,
		tx:     tx,
		log:    log.Named("aggregate"),
		locks:  newKeyedMutex(),
		opts:   opts,
	}
}

// Recompute rebuilds the row for (userID, day) from the ledger. The read and
// the upsert-or-delete run in one transaction under a per-day lock. A day
// with no line items has its row deleted and yields zero totals. The timeout
// covers waiting for the lock as well as the work itself.
func (c *Cache) Recompute(ctx context.Context, userID int, day time.Time) (nutrition.Totals, error) {
	if !calendar.IsAnchor(day) {
		return nutrition.Totals{}, fmt.Errorf("%w: %s is not a day anchor", nutrition.ErrInvalidDate, day)
	}
	day = day.UTC()

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	unlock, err := c.locks.Lock(ctx, lockKey(userID, day))
	if err != nil {
		return nutrition.Totals{}, Classify(ctx, "wait for day lock", err)
	}
	defer unlock()

	var sum ledger.DaySum
	err = c.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := c.store.LockDay(ctx, userID, day); err != nil {
			return fmt.Errorf("lock day: %w", err)
		}

		s, err := c.ledger.SumDay(ctx, userID, day)
		if err != nil {
			return err
		}
		sum = s

		if s.Empty() {
			return c.store.Delete(ctx, userID, day)
		}
		return c.store.Upsert(ctx, userID, day, s.Totals)
	})
	if err != nil {
		return nutrition.Totals{}, Classify(ctx, "recompute", err)
	}

	c.log.Debug("recomputed day",
		zap.Int("user_id", userID),
		zap.String("day", calendar.FormatAnchor(day)),
		zap.Int("items", sum.Items),
		zap.Bool("evicted", sum.Empty()),
	)

	if sum.Empty() {
		return nutrition.Totals{}, nil
	}
	return sum.Totals, nil
}

// Read returns the cached totals for (userID, day), recomputing on a miss.
func (c *Cache) Read(ctx context.Context, userID int, day time.Time) (nutrition.Totals, error) {
	if !calendar.IsAnchor(day) {
		return nutrition.Totals{}, fmt.Errorf("%w: %s is not a day anchor", nutrition.ErrInvalidDate, day)
	}

	getCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	t, err := c.store.Get(getCtx, userID, day.UTC())
	cancel()

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, nutrition.ErrNotFound):
		return c.Recompute(ctx, userID, day)
	default:
		return nutrition.Totals{}, Classify(getCtx, "read", err)
	}
}

// ReadRange returns the ordered totals for every day in [from, to]. Existing
// rows are fetched in one query; missing days are recomputed concurrently.
func (c *Cache) ReadRange(ctx context.Context, userID int, from, to time.Time) ([]DayTotals, error) {
	if !calendar.IsAnchor(from) || !calendar.IsAnchor(to) {
		return nil, fmt.Errorf("%w: range bounds must be day anchors", nutrition.ErrInvalidDate)
	}
	from, to = from.UTC(), to.UTC()
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s",
			nutrition.ErrInvalidDate, calendar.FormatAnchor(to), calendar.FormatAnchor(from))
	}
	n := calendar.DaysBetween(from, to) + 1
	if n > c.opts.MaxRangeDays {
		return nil, fmt.Errorf("%w: %d days requested, at most %d allowed",
			nutrition.ErrRangeTooLarge, n, c.opts.MaxRangeDays)
	}

	listCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	rows, err := c.store.ListRange(listCtx, userID, from, to)
	cancel()
	if err != nil {
		return nil, Classify(listCtx, "read range", err)
	}

	cached := make(map[int64]nutrition.Totals, len(rows))
	for _, r := range rows {
		cached[r.Day.Unix()] = r.Totals
	}

	out := make([]DayTotals, n)
	var missing []int
	for i := range out {
		d := from.AddDate(0, 0, i)
		out[i].Day = d
		if t, ok := cached[d.Unix()]; ok {
			out[i].Totals = t
		} else {
			missing = append(missing, i)
		}
	}

	if len(missing) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.opts.Concurrency)
		for _, i := range missing {
			g.Go(func() error {
				t, err := c.Recompute(gctx, userID, out[i].Day)
				if err != nil {
					return err
				}
				out[i].Totals = t
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func lockKey(userID int, day time.Time) string {
	return strconv.Itoa(userID) + ":" + calendar.FormatAnchor(day)
}
