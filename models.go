package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lg/nutrition-api/internal/goals"
	"lg/nutrition-api/internal/meals"
	"lg/nutrition-api/internal/nutrition"
	"lg/nutrition-api/internal/stats"
)

// DateOnly wraps time.Time to serialize as "YYYY-MM-DD" in JSON.
type DateOnly struct{ time.Time }

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format("2006-01-02") + `"`), nil
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"2006-01-02"`, string(b))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func dateOnlyPtr(t *time.Time) *DateOnly {
	if t == nil {
		return nil
	}
	return &DateOnly{*t}
}

// nullFloat renders an absent nutrient as JSON null rather than 0.
func nullFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

/* ─── Ledger responses ───────────────────────────────────────────────── */

type totalsResponse struct {
	Kcal    float64 `json:"kcal"`
	Protein float64 `json:"protein"`
	Carb    float64 `json:"carb"`
	Fat     float64 `json:"fat"`
	Sugars  float64 `json:"sugars"`
	Fiber   float64 `json:"fiber"`
	Salt    float64 `json:"salt"`
}

func newTotalsResponse(t nutrition.Totals) totalsResponse {
	return totalsResponse{
		Kcal:    t.Kcal.InexactFloat64(),
		Protein: t.Protein.InexactFloat64(),
		Carb:    t.Carb.InexactFloat64(),
		Fat:     t.Fat.InexactFloat64(),
		Sugars:  t.Sugars.InexactFloat64(),
		Fiber:   t.Fiber.InexactFloat64(),
		Salt:    t.Salt.InexactFloat64(),
	}
}

// itemResponse is one line item. Nutrients the client never supplied are null.
type itemResponse struct {
	ID         uuid.UUID `json:"id"`
	MealID     uuid.UUID `json:"meal_id"`
	Slot       string    `json:"slot,omitempty"`
	Position   int       `json:"position"`
	Name       string    `json:"name"`
	Unit       string    `json:"unit"`
	Quantity   float64   `json:"quantity"`
	GramsTotal *float64  `json:"grams_total"`
	Kcal       *float64  `json:"kcal"`
	Protein    *float64  `json:"protein"`
	Carb       *float64  `json:"carb"`
	Fat        *float64  `json:"fat"`
	Sugars     *float64  `json:"sugars"`
	Fiber      *float64  `json:"fiber"`
	Salt       *float64  `json:"salt"`
}

func newItemResponse(it nutrition.LineItem) itemResponse {
	return itemResponse{
		ID:         it.ID,
		MealID:     it.MealID,
		Slot:       string(it.Slot),
		Position:   it.Position,
		Name:       it.Name,
		Unit:       string(it.Unit),
		Quantity:   it.Quantity.InexactFloat64(),
		GramsTotal: nullFloat(it.GramsTotal),
		Kcal:       nullFloat(it.Kcal),
		Protein:    nullFloat(it.Protein),
		Carb:       nullFloat(it.Carb),
		Fat:        nullFloat(it.Fat),
		Sugars:     nullFloat(it.Sugars),
		Fiber:      nullFloat(it.Fiber),
		Salt:       nullFloat(it.Salt),
	}
}

type mealResponse struct {
	ID     uuid.UUID      `json:"id"`
	Date   DateOnly       `json:"date"`
	Slot   string         `json:"slot"`
	Items  []itemResponse `json:"items"`
	Totals totalsResponse `json:"totals"`
}

func newMealResponse(m nutrition.Meal) mealResponse {
	items := make([]itemResponse, 0, len(m.Items))
	var totals nutrition.Totals
	for _, it := range m.Items {
		items = append(items, newItemResponse(it))
		totals = totals.AddItem(it)
	}
	return mealResponse{
		ID:     m.ID,
		Date:   DateOnly{m.Day},
		Slot:   string(m.Slot),
		Items:  items,
		Totals: newTotalsResponse(totals.Canonical()),
	}
}

type dayViewResponse struct {
	Date   string         `json:"date"`
	Meals  []mealResponse `json:"meals"`
	Totals totalsResponse `json:"totals"`
}

func newDayViewResponse(v meals.DayView) dayViewResponse {
	out := dayViewResponse{Date: v.Date, Meals: make([]mealResponse, 0, len(v.Meals)), Totals: newTotalsResponse(v.Totals)}
	for _, m := range v.Meals {
		out.Meals = append(out.Meals, newMealResponse(m))
	}
	return out
}

/* ─── Stats responses ────────────────────────────────────────────────── */

type targetsResponse struct {
	Source         string   `json:"source"`
	BMR            *float64 `json:"bmr"`
	TDEE           *int     `json:"tdee"`
	Kcal           int      `json:"kcal"`
	Adjustment     *float64 `json:"adjustment"`
	HorizonDays    *int     `json:"horizon_days"`
	ProteinPercent float64  `json:"protein_percent"`
	CarbPercent    float64  `json:"carb_percent"`
	FatPercent     float64  `json:"fat_percent"`
	ProteinG       int      `json:"protein_g"`
	CarbG          int      `json:"carb_g"`
	FatG           int      `json:"fat_g"`
	SugarMaxG      int      `json:"sugar_max_g"`
	SatFatMaxG     int      `json:"sat_fat_max_g"`
	FiberMinG      int      `json:"fiber_min_g"`
	SaltMaxG       int      `json:"salt_max_g"`
}

func newTargetsResponse(t goals.Targets) targetsResponse {
	return targetsResponse{
		Source:         string(t.Source),
		BMR:            t.BMR,
		TDEE:           t.TDEE,
		Kcal:           t.Kcal,
		Adjustment:     t.Adjustment,
		HorizonDays:    t.HorizonDays,
		ProteinPercent: t.ProteinPercent,
		CarbPercent:    t.CarbPercent,
		FatPercent:     t.FatPercent,
		ProteinG:       t.ProteinG,
		CarbG:          t.CarbG,
		FatG:           t.FatG,
		SugarMaxG:      t.SugarMaxG,
		SatFatMaxG:     t.SatFatMaxG,
		FiberMinG:      t.FiberMinG,
		SaltMaxG:       t.SaltMaxG,
	}
}

type progressResponse struct {
	Used      float64  `json:"used"`
	Target    *float64 `json:"target"`
	Remaining *float64 `json:"remaining"`
	OverBy    *float64 `json:"over_by"`
}

func newProgressResponse(p stats.Progress) progressResponse {
	return progressResponse{Used: p.Used, Target: p.Target, Remaining: p.Remaining, OverBy: p.OverBy}
}

// dailySummaryResponse is one day of GET /api/stats/daily or /range. BySlot is
// only present for single-day requests.
type dailySummaryResponse struct {
	Date        string                      `json:"date"`
	Timezone    string                      `json:"timezone"`
	WindowStart time.Time                   `json:"window_start"`
	WindowEnd   time.Time                   `json:"window_end"`
	Target      *targetsResponse            `json:"target"`
	Actual      totalsResponse              `json:"actual"`
	BySlot      map[string]totalsResponse   `json:"by_slot,omitempty"`
	Progress    map[string]progressResponse `json:"progress"`
}

func newDailySummaryResponse(s stats.DailySummary) dailySummaryResponse {
	out := dailySummaryResponse{
		Date:        s.Date,
		Timezone:    s.Timezone,
		WindowStart: s.Window.Start,
		WindowEnd:   s.Window.End,
		Actual:      newTotalsResponse(s.Actual),
		Progress: map[string]progressResponse{
			"kcal":    newProgressResponse(s.Progress.Kcal),
			"protein": newProgressResponse(s.Progress.Protein),
			"carb":    newProgressResponse(s.Progress.Carb),
			"fat":     newProgressResponse(s.Progress.Fat),
			"sugars":  newProgressResponse(s.Progress.Sugars),
			"fiber":   newProgressResponse(s.Progress.Fiber),
			"salt":    newProgressResponse(s.Progress.Salt),
		},
	}
	if s.Target != nil {
		t := newTargetsResponse(*s.Target)
		out.Target = &t
	}
	if s.BySlot != nil {
		out.BySlot = make(map[string]totalsResponse, len(s.BySlot))
		for slot, t := range s.BySlot {
			out.BySlot[string(slot)] = newTotalsResponse(t)
		}
	}
	return out
}

type rangeSummaryResponse struct {
	From     string                 `json:"from"`
	To       string                 `json:"to"`
	Timezone string                 `json:"timezone"`
	Days     []dailySummaryResponse `json:"days"`
}

type dayNutrientsResponse struct {
	Date         string         `json:"date"`
	TargetKcal   *int           `json:"target_kcal"`
	ConsumedKcal int            `json:"consumed_kcal"`
	Totals       totalsResponse `json:"totals"`
}

/* ─── Profile & weight ───────────────────────────────────────────────── */

type profileResponse struct {
	UserID         int       `json:"user_id"`
	Sex            *string   `json:"sex"`
	DateOfBirth    *DateOnly `json:"date_of_birth"`
	HeightCM       *float64  `json:"height_cm"`
	WeightKG       *float64  `json:"weight_kg"`
	TargetWeightKG *float64  `json:"target_weight_kg"`
	TargetDate     *DateOnly `json:"target_date"`
	ActivityLevel  *string   `json:"activity_level"`
	LowSalt        bool      `json:"low_salt"`
	LowSugar       bool      `json:"low_sugar"`
	Vegetarian     bool      `json:"vegetarian"`
	Vegan          bool      `json:"vegan"`
	Allergens      []string  `json:"allergens"`
	DailyCalories  *float64  `json:"daily_calories"`
	ProteinPercent *int      `json:"protein_percent"`
	CarbPercent    *int      `json:"carb_percent"`
	FatPercent     *int      `json:"fat_percent"`
	Timezone       string    `json:"timezone"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newProfileResponse(p nutrition.Profile) profileResponse {
	out := profileResponse{
		UserID:         p.UserID,
		DateOfBirth:    dateOnlyPtr(p.DateOfBirth),
		HeightCM:       p.HeightCM,
		WeightKG:       p.WeightKG,
		TargetWeightKG: p.TargetWeightKG,
		TargetDate:     dateOnlyPtr(p.TargetDate),
		LowSalt:        p.LowSalt,
		LowSugar:       p.LowSugar,
		Vegetarian:     p.Vegetarian,
		Vegan:          p.Vegan,
		Allergens:      p.Allergens,
		DailyCalories:  p.DailyCalories,
		ProteinPercent: p.ProteinPercent,
		CarbPercent:    p.CarbPercent,
		FatPercent:     p.FatPercent,
		Timezone:       p.Timezone,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.Sex != nil {
		s := string(*p.Sex)
		out.Sex = &s
	}
	if p.ActivityLevel != nil {
		a := string(*p.ActivityLevel)
		out.ActivityLevel = &a
	}
	if out.Allergens == nil {
		out.Allergens = []string{}
	}
	return out
}

type weightEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	Date      DateOnly  `json:"date"`
	WeightKG  float64   `json:"weight_kg"`
	Source    string    `json:"source"`
	Note      *string   `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

func newWeightEntryResponse(e nutrition.WeightEntry) weightEntryResponse {
	return weightEntryResponse{
		ID:        e.ID,
		Date:      DateOnly{e.Day},
		WeightKG:  e.WeightKG.InexactFloat64(),
		Source:    e.Source,
		Note:      e.Note,
		CreatedAt: e.CreatedAt,
	}
}

/* ─── Requests ───────────────────────────────────────────────────────── */

// itemRequest is one line item in a request body. Nutrients accept JSON
// numbers or strings; omitted or null means unknown, not zero.
type itemRequest struct {
	Name     string              `json:"name"`
	Unit     string              `json:"unit"`
	Quantity decimal.Decimal     `json:"quantity"`
	Kcal     decimal.NullDecimal `json:"kcal"`
	Protein  decimal.NullDecimal `json:"protein"`
	Carb     decimal.NullDecimal `json:"carb"`
	Fat      decimal.NullDecimal `json:"fat"`
	Sugars   decimal.NullDecimal `json:"sugars"`
	Fiber    decimal.NullDecimal `json:"fiber"`
	Salt     decimal.NullDecimal `json:"salt"`
}

func (r itemRequest) input() meals.ItemInput {
	unit := nutrition.Unit(r.Unit)
	if unit == "" {
		unit = nutrition.UnitGram
	}
	return meals.ItemInput{
		Name:     r.Name,
		Unit:     unit,
		Quantity: r.Quantity,
		Kcal:     r.Kcal,
		Protein:  r.Protein,
		Carb:     r.Carb,
		Fat:      r.Fat,
		Sugars:   r.Sugars,
		Fiber:    r.Fiber,
		Salt:     r.Salt,
	}
}

// addMealRequest is the request body for POST /api/meals.
type addMealRequest struct {
	Date     string        `json:"date"`
	EatenAt  *time.Time    `json:"eaten_at"`
	Timezone string        `json:"tz"`
	Slot     string        `json:"slot"`
	Items    []itemRequest `json:"items"`
}

// moveRequest is the request body for the move endpoints. Omitted fields
// keep their current value.
type moveRequest struct {
	Date string `json:"date"`
	Slot string `json:"slot"`
}

// patchProfileRequest is the request body for PATCH /api/profile.
// All fields are pointers so only fields the client sent get written.
type patchProfileRequest struct {
	Sex            *string   `json:"sex"`
	DateOfBirth    *DateOnly `json:"date_of_birth"`
	HeightCM       *float64  `json:"height_cm"`
	WeightKG       *float64  `json:"weight_kg"`
	TargetWeightKG *float64  `json:"target_weight_kg"`
	TargetDate     *DateOnly `json:"target_date"`
	ActivityLevel  *string   `json:"activity_level"`
	LowSalt        *bool     `json:"low_salt"`
	LowSugar       *bool     `json:"low_sugar"`
	Vegetarian     *bool     `json:"vegetarian"`
	Vegan          *bool     `json:"vegan"`
	Allergens      *[]string `json:"allergens"`
	DailyCalories  *float64  `json:"daily_calories"`
	ProteinPercent *int      `json:"protein_percent"`
	CarbPercent    *int      `json:"carb_percent"`
	FatPercent     *int      `json:"fat_percent"`
	Timezone       *string   `json:"timezone"`
}

func (r patchProfileRequest) patch() nutrition.ProfilePatch {
	p := nutrition.ProfilePatch{
		HeightCM:       r.HeightCM,
		WeightKG:       r.WeightKG,
		TargetWeightKG: r.TargetWeightKG,
		LowSalt:        r.LowSalt,
		LowSugar:       r.LowSugar,
		Vegetarian:     r.Vegetarian,
		Vegan:          r.Vegan,
		Allergens:      r.Allergens,
		DailyCalories:  r.DailyCalories,
		ProteinPercent: r.ProteinPercent,
		CarbPercent:    r.CarbPercent,
		FatPercent:     r.FatPercent,
		Timezone:       r.Timezone,
	}
	if r.Sex != nil {
		s := nutrition.Sex(*r.Sex)
		p.Sex = &s
	}
	if r.ActivityLevel != nil {
		a := nutrition.ActivityLevel(*r.ActivityLevel)
		p.ActivityLevel = &a
	}
	if r.DateOfBirth != nil {
		p.DateOfBirth = &r.DateOfBirth.Time
	}
	if r.TargetDate != nil {
		p.TargetDate = &r.TargetDate.Time
	}
	return p
}

// weightRequest is the request body for POST /api/weight-log.
type weightRequest struct {
	Date     string          `json:"date"`
	Timezone string          `json:"tz"`
	WeightKG decimal.Decimal `json:"weight_kg"`
	Note     *string         `json:"note"`
}
