package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lg/nutrition-api/internal/nutrition"
)

/* ─── ResolveDay ─────────────────────────────────────────────────────── */

// TestResolveDay_DSTSpringForward verifies that 2024-03-10 in New York is a
// 23 hour day, one hour shorter than the ordinary day before it.
func TestResolveDay_DSTSpringForward(t *testing.T) {
	r := NewResolver(nil)

	dst, err := r.ResolveDay("2024-03-10", "America/New_York")
	require.NoError(t, err)
	normal, err := r.ResolveDay("2024-03-09", "America/New_York")
	require.NoError(t, err)

	assert.Equal(t, 23*time.Hour, dst.Duration())
	assert.Equal(t, 24*time.Hour, normal.Duration())
	assert.Equal(t, time.Hour, normal.Duration()-dst.Duration())

	assert.Equal(t, time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC), dst.Start)
	assert.Equal(t, time.Date(2024, 3, 11, 3, 59, 59, int(999*time.Millisecond), time.UTC), dst.End)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), dst.Anchor)
}

// TestResolveDay_DSTFallBack verifies the 25 hour day in November.
func TestResolveDay_DSTFallBack(t *testing.T) {
	w, err := NewResolver(nil).ResolveDay("2024-11-03", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, 25*time.Hour, w.Duration())
}

// TestResolveDay_WindowMatchesLocalDate checks that the window boundaries and
// LocalDate agree on which day an instant belongs to.
func TestResolveDay_WindowMatchesLocalDate(t *testing.T) {
	w, err := NewResolver(nil).ResolveDay("2024-03-10", "America/New_York")
	require.NoError(t, err)

	cases := []struct {
		name    string
		instant time.Time
		inside  bool
	}{
		{"late evening on the 10th", time.Date(2024, 3, 11, 3, 30, 0, 0, time.UTC), true},
		{"just after local midnight", time.Date(2024, 3, 11, 4, 30, 0, 0, time.UTC), false},
		{"first minute of the day", time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC), true},
		{"last minute of the 9th", time.Date(2024, 3, 10, 4, 59, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.inside, w.Contains(tc.instant))

			date, err := LocalDate(tc.instant, "America/New_York")
			require.NoError(t, err)
			assert.Equal(t, tc.inside, date == "2024-03-10")
		})
	}
}

// TestResolveDay_EmptyDateUsesClockInZone checks that "now" is projected into
// the requested zone before the calendar date is taken.
func TestResolveDay_EmptyDateUsesClockInZone(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC))
	r := NewResolver(clock)

	w, err := r.ResolveDay("", "America/Los_Angeles")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-31", w.LocalDate)

	w, err = r.ResolveDay("", "Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", w.LocalDate)
}

func TestResolveDay_Errors(t *testing.T) {
	r := NewResolver(nil)

	cases := []struct {
		name string
		date string
		tz   string
	}{
		{"unknown zone", "2024-01-01", "Mars/Olympus"},
		{"month out of range", "2024-13-01", "UTC"},
		{"day out of range", "2023-02-29", "UTC"},
		{"not padded", "2024-1-5", "UTC"},
		{"garbage", "yesterday", "UTC"},
		{"timestamp", "2024-01-01T00:00:00Z", "UTC"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.ResolveDay(tc.date, tc.tz)
			require.Error(t, err)
			assert.True(t, errors.Is(err, nutrition.ErrInvalidDate), "got %v", err)
		})
	}
}

/* ─── Anchors and ranges ─────────────────────────────────────────────── */

func TestAnchor_IsUTCMidnight(t *testing.T) {
	a, err := Anchor("2024-02-29")
	require.NoError(t, err)
	assert.True(t, IsAnchor(a))
	assert.Equal(t, "2024-02-29", FormatAnchor(a))
	assert.False(t, IsAnchor(a.Add(time.Hour)))
}

func TestAnchorOf_AppliesZoneOnce(t *testing.T) {
	a, err := AnchorOf(time.Date(2024, 3, 11, 3, 30, 0, 0, time.UTC), "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), a)
}

func TestDays(t *testing.T) {
	days, err := Days("2024-02-27", "2024-03-02", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02"}, days)

	days, err = Days("2024-05-05", "2024-05-05", 1)
	require.NoError(t, err)
	assert.Len(t, days, 1)

	_, err = Days("2024-05-06", "2024-05-05", 0)
	assert.ErrorIs(t, err, nutrition.ErrInvalidDate)

	_, err = Days("2024-05-01", "2024-05-03", 2)
	assert.ErrorIs(t, err, nutrition.ErrRangeTooLarge)
}

// TestParseRange_CountsInclusiveDays checks the returned anchors and length,
// including a leap day.
func TestParseRange_CountsInclusiveDays(t *testing.T) {
	f, to, n, err := ParseRange("2024-02-27", "2024-03-02", 92)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC), f)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), to)
	assert.Equal(t, 5, n)

	_, _, n, err = ParseRange("2024-01-01", "2024-04-01", 92)
	require.NoError(t, err)
	assert.Equal(t, 92, n)

	_, _, _, err = ParseRange("2024-01-01", "2024-04-02", 92)
	assert.ErrorIs(t, err, nutrition.ErrRangeTooLarge)
}

// TestParseRange_HugeRangeRejectedWithoutEnumerating: a range spanning the
// whole calendar is rejected in a handful of allocations, and its reported
// length is exact even though it overflows time.Duration.
func TestParseRange_HugeRangeRejectedWithoutEnumerating(t *testing.T) {
	_, _, _, err := ParseRange("0001-01-01", "9999-12-31", 92)
	require.ErrorIs(t, err, nutrition.ErrRangeTooLarge)
	assert.Contains(t, err.Error(), "3652059 days requested")

	allocs := testing.AllocsPerRun(10, func() {
		_, _ = Days("0001-01-01", "9999-12-31", 92)
	})
	assert.Less(t, allocs, float64(50))
}

// TestDaysBetween_BeyondDurationRange covers spans longer than ~292 years.
func TestDaysBetween_BeyondDurationRange(t *testing.T) {
	a := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3652058, DaysBetween(a, b))
	assert.Equal(t, 1, DaysBetween(b.AddDate(0, 0, -1), b))
}
