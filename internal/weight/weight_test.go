package weight

import (
	"context"
	"errors"
	"sort"
	"strings"
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
	entries []nutrition.WeightEntry
	err     error
}

func (r *memRepo) Insert(_ context.Context, e nutrition.WeightEntry) (nutrition.WeightEntry, error) {
	if r.err != nil {
		return nutrition.WeightEntry{}, r.err
	}
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *memRepo) Range(_ context.Context, userID int, from, to time.Time) ([]nutrition.WeightEntry, error) {
	var out []nutrition.WeightEntry
	for _, e := range r.entries {
		if e.UserID == userID && !e.Day.Before(from) && !e.Day.After(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (r *memRepo) Latest(_ context.Context, userID int) (nutrition.WeightEntry, error) {
	var (
		best  nutrition.WeightEntry
		found bool
	)
	for _, e := range r.entries {
		if e.UserID == userID && (!found || !e.Day.Before(best.Day)) {
			best, found = e, true
		}
	}
	if !found {
		return nutrition.WeightEntry{}, nutrition.ErrNotFound
	}
	return best, nil
}

func (r *memRepo) Delete(_ context.Context, userID int, id uuid.UUID) error {
	for i, e := range r.entries {
		if e.ID == id && e.UserID == userID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return nutrition.ErrNotFound
}

type profileStub struct {
	tz     string
	weight *float64
	setErr error
	getErr error
}

func (p *profileStub) Get(_ context.Context, userID int) (nutrition.Profile, error) {
	if p.getErr != nil {
		return nutrition.Profile{}, p.getErr
	}
	return nutrition.Profile{UserID: userID, Timezone: p.tz, WeightKG: p.weight}, nil
}

func (p *profileStub) SetWeight(_ context.Context, _ int, kg float64) error {
	if p.setErr != nil {
		return p.setErr
	}
	p.weight = &kg
	return nil
}

type passTx struct{}

func (passTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// 2024-06-01 20:00 UTC is already 2024-06-02 in Tokyo.
var now = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

func newService(repo *memRepo, p *profileStub) *Service {
	return NewService(repo, p, passTx{}, clockwork.NewFakeClockAt(now), zap.NewNop(), "UTC")
}

func kg(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

/* ─── Add ────────────────────────────────────────────────────────────── */

// TestAdd_UpdatesProfileWeight verifies the first entry sets the profile's
// current weight.
func TestAdd_UpdatesProfileWeight(t *testing.T) {
	repo, p := &memRepo{}, &profileStub{}
	svc := newService(repo, p)

	e, err := svc.Add(context.Background(), 1, AddInput{Date: "2024-05-30", WeightKG: kg("72.4")})
	require.NoError(t, err)

	assert.Equal(t, day("2024-05-30"), e.Day)
	assert.Equal(t, "manual", e.Source)
	require.NotNil(t, p.weight)
	assert.InDelta(t, 72.4, *p.weight, 1e-9)
}

// TestAdd_BackfillKeepsCurrentWeight verifies that an entry older than the
// latest one is logged without touching the profile.
func TestAdd_BackfillKeepsCurrentWeight(t *testing.T) {
	repo, p := &memRepo{}, &profileStub{}
	svc := newService(repo, p)
	ctx := context.Background()

	_, err := svc.Add(ctx, 1, AddInput{Date: "2024-05-30", WeightKG: kg("72")})
	require.NoError(t, err)
	_, err = svc.Add(ctx, 1, AddInput{Date: "2024-05-01", WeightKG: kg("75")})
	require.NoError(t, err)

	assert.Len(t, repo.entries, 2)
	assert.InDelta(t, 72.0, *p.weight, 1e-9)
}

// TestAdd_DefaultsToTodayInProfileZone verifies the default day follows the
// profile's timezone.
func TestAdd_DefaultsToTodayInProfileZone(t *testing.T) {
	repo := &memRepo{}
	svc := newService(repo, &profileStub{tz: "Asia/Tokyo"})

	e, err := svc.Add(context.Background(), 1, AddInput{WeightKG: kg("70")})
	require.NoError(t, err)
	assert.Equal(t, day("2024-06-02"), e.Day)

	e, err = svc.Add(context.Background(), 1, AddInput{Timezone: "America/New_York", WeightKG: kg("70")})
	require.NoError(t, err)
	assert.Equal(t, day("2024-06-01"), e.Day)
}

// TestAdd_Validation covers the rejected inputs.
func TestAdd_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   AddInput
		want error
	}{
		{"zero weight", AddInput{Date: "2024-06-01", WeightKG: kg("0")}, nutrition.ErrValidation},
		{"too heavy", AddInput{Date: "2024-06-01", WeightKG: kg("400.1")}, nutrition.ErrValidation},
		{"bad date", AddInput{Date: "2024-13-01", WeightKG: kg("70")}, nutrition.ErrInvalidDate},
		{"bad zone", AddInput{Timezone: "Mars/Base", WeightKG: kg("70")}, nutrition.ErrInvalidDate},
	}
	svc := newService(&memRepo{}, &profileStub{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(context.Background(), 1, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// TestAdd_LongNote verifies notes are length-limited.
func TestAdd_LongNote(t *testing.T) {
	note := strings.Repeat("x", 501)
	svc := newService(&memRepo{}, &profileStub{})

	_, err := svc.Add(context.Background(), 1, AddInput{Date: "2024-06-01", WeightKG: kg("70"), Note: &note})

	var ve *nutrition.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "note", ve.Field)
}

// TestAdd_StorageFailure verifies a failed profile update fails the add.
func TestAdd_StorageFailure(t *testing.T) {
	svc := newService(&memRepo{}, &profileStub{setErr: errors.New("connection reset")})

	_, err := svc.Add(context.Background(), 1, AddInput{Date: "2024-06-01", WeightKG: kg("70")})
	assert.ErrorIs(t, err, nutrition.ErrStorageUnavailable)
}

/* ─── Queries ────────────────────────────────────────────────────────── */

// TestRange verifies ordering, bounds and the empty result.
func TestRange(t *testing.T) {
	repo := &memRepo{}
	svc := newService(repo, &profileStub{})
	ctx := context.Background()
	for _, d := range []string{"2024-05-20", "2024-05-01", "2024-05-10", "2024-06-01"} {
		_, err := svc.Add(ctx, 1, AddInput{Date: d, WeightKG: kg("70")})
		require.NoError(t, err)
	}

	got, err := svc.Range(ctx, 1, "2024-05-01", "2024-05-20")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, day("2024-05-01"), got[0].Day)
	assert.Equal(t, day("2024-05-20"), got[2].Day)

	empty, err := svc.Range(ctx, 2, "2024-05-01", "2024-05-20")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

// TestRange_Errors covers missing, reversed and oversized ranges.
func TestRange_Errors(t *testing.T) {
	svc := newService(&memRepo{}, &profileStub{})
	ctx := context.Background()

	_, err := svc.Range(ctx, 1, "", "2024-05-01")
	assert.ErrorIs(t, err, nutrition.ErrInvalidDate)

	_, err = svc.Range(ctx, 1, "2024-05-02", "2024-05-01")
	assert.ErrorIs(t, err, nutrition.ErrInvalidDate)

	_, err = svc.Range(ctx, 1, "2023-01-01", "2024-01-02")
	assert.ErrorIs(t, err, nutrition.ErrRangeTooLarge)

	_, err = svc.Range(ctx, 1, "0001-01-01", "9999-12-31")
	assert.ErrorIs(t, err, nutrition.ErrRangeTooLarge)
}

// TestLatestAndDelete verifies latest lookups and ownership on delete.
func TestLatestAndDelete(t *testing.T) {
	repo := &memRepo{}
	svc := newService(repo, &profileStub{})
	ctx := context.Background()

	_, err := svc.Latest(ctx, 1)
	assert.ErrorIs(t, err, nutrition.ErrNotFound)

	e, err := svc.Add(ctx, 1, AddInput{Date: "2024-05-01", WeightKG: kg("70")})
	require.NoError(t, err)
	latest, err := svc.Latest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, e.ID, latest.ID)

	assert.ErrorIs(t, svc.Delete(ctx, 2, e.ID), nutrition.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, 1, e.ID))
	assert.Empty(t, repo.entries)
}
