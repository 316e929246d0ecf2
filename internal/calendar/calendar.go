// Package calendar maps local calendar dates onto the UTC instants used for
// storage. A stored day is keyed by the UTC midnight of the user's local
// calendar date; the timezone is applied once, when an instant is turned
// into a local date.
package calendar

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"lg/nutrition-api/internal/nutrition"
)

// DateLayout is the only accepted date format.
const DateLayout = "2006-01-02"

// Window is the UTC span of one local calendar day.
type Window struct {
	// Start and End are local 00:00:00.000 and 23:59:59.999 in UTC.
	Start     time.Time
	End       time.Time
	LocalDate string
	// Anchor is the storage key for the day.
	Anchor   time.Time
	Location *time.Location
}

// Duration is the wall length of the window (23h or 25h on DST transitions).
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start) + time.Millisecond
}

// Contains reports whether instant t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Resolver resolves days against an injectable clock.
type Resolver struct {
	clock clockwork.Clock
}

// NewResolver creates a Resolver. A nil clock means the real clock.
func NewResolver(clock clockwork.Clock) *Resolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Resolver{clock: clock}
}

// Today returns the local calendar date of "now" in tz.
func (r *Resolver) Today(tz string) (string, error) {
	return LocalDate(r.clock.Now(), tz)
}

// ResolveDay converts date (or today, when empty) in tz into its UTC window.
func (r *Resolver) ResolveDay(date, tz string) (Window, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return Window{}, err
	}
	if date == "" {
		date = r.clock.Now().In(loc).Format(DateLayout)
	}
	d, err := ParseDate(date)
	if err != nil {
		return Window{}, err
	}

	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	// AddDate keeps wall-clock midnight across DST, Add(24h) does not
	next := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)

	return Window{
		Start:     start.UTC(),
		End:       next.Add(-time.Millisecond).UTC(),
		LocalDate: date,
		Anchor:    d,
		Location:  loc,
	}, nil
}

// ParseDate validates a strict YYYY-MM-DD date and returns its UTC midnight.
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q, expected YYYY-MM-DD", nutrition.ErrInvalidDate, s)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q, expected YYYY-MM-DD", nutrition.ErrInvalidDate, s)
	}
	return t, nil
}

// Anchor returns the storage anchor (UTC midnight) of a calendar date.
func Anchor(date string) (time.Time, error) {
	return ParseDate(date)
}

// IsAnchor reports whether t is a UTC midnight instant.
func IsAnchor(t time.Time) bool {
	u := t.UTC()
	return u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0
}

// FormatAnchor renders an anchor back to its calendar date.
func FormatAnchor(anchor time.Time) string {
	return anchor.UTC().Format(DateLayout)
}

// LoadLocation resolves an IANA zone name. Empty means UTC.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", nutrition.ErrInvalidDate, tz)
	}
	return loc, nil
}

// LocalDate returns the calendar date in tz that contains instant t.
func LocalDate(t time.Time, tz string) (string, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(DateLayout), nil
}

// AnchorOf returns the storage anchor of the local day containing t.
func AnchorOf(t time.Time, tz string) (time.Time, error) {
	date, err := LocalDate(t, tz)
	if err != nil {
		return time.Time{}, err
	}
	return ParseDate(date)
}

// ParseRange parses the inclusive range [from, to] and returns its anchors
// and length in days. Ranges longer than maxDays fail with ErrRangeTooLarge
// before anything is enumerated; maxDays <= 0 means no limit.
func ParseRange(from, to string, maxDays int) (f, t time.Time, n int, err error) {
	f, err = ParseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, 0, err
	}
	t, err = ParseDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, 0, err
	}
	if t.Before(f) {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("%w: %s is before %s", nutrition.ErrInvalidDate, to, from)
	}
	n = DaysBetween(f, t) + 1
	if maxDays > 0 && n > maxDays {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("%w: %d days requested, at most %d allowed",
			nutrition.ErrRangeTooLarge, n, maxDays)
	}
	return f, t, n, nil
}

// Days enumerates every calendar date in [from, to], subject to the same
// maxDays limit as ParseRange.
func Days(from, to string, maxDays int) ([]string, error) {
	f, t, n, err := ParseRange(from, to, maxDays)
	if err != nil {
		return nil, err
	}

	days := make([]string, 0, n)
	for d := f; !d.After(t); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}

// DaysBetween returns the number of whole days from anchor a to anchor b.
// It counts in Unix seconds, so spans beyond time.Duration's range stay exact.
func DaysBetween(a, b time.Time) int {
	return int((b.Unix() - a.Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60
