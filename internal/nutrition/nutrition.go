// Package nutrition holds the domain types shared by the accounting engine:
// biometric profiles, meals with their frozen line items, and nutrient totals.
package nutrition

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

/* ─── Enums ──────────────────────────────────────────────────────────── */

// Sex selects the Mifflin-St Jeor constant.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	SexOther  Sex = "other"
)

// Valid reports whether s is a known sex value.
func (s Sex) Valid() bool {
	switch s {
	case SexMale, SexFemale, SexOther:
		return true
	}
	return false
}

// ActivityLevel is one of the five TDEE tiers.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

// Valid reports whether a is a known activity level.
func (a ActivityLevel) Valid() bool {
	switch a {
	case ActivitySedentary, ActivityLight, ActivityModerate, ActivityActive, ActivityVeryActive:
		return true
	}
	return false
}

// Slot is the meal slot a Meal is filed under.
type Slot string

const (
	SlotBreakfast Slot = "breakfast"
	SlotLunch     Slot = "lunch"
	SlotDinner    Slot = "dinner"
	SlotSnack     Slot = "snack"
)

// Slots lists every slot in display order.
var Slots = []Slot{SlotBreakfast, SlotLunch, SlotDinner, SlotSnack}

// Valid reports whether s is a known slot.
func (s Slot) Valid() bool {
	switch s {
	case SlotBreakfast, SlotLunch, SlotDinner, SlotSnack:
		return true
	}
	return false
}

// Unit is the unit a line item quantity is expressed in.
type Unit string

const (
	UnitGram  Unit = "g"
	UnitML    Unit = "ml"
	UnitPiece Unit = "piece"
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	switch u {
	case UnitGram, UnitML, UnitPiece:
		return true
	}
	return false
}

/* ─── Profile ────────────────────────────────────────────────────────── */

// Profile is a user's biometric and goal profile. Every biometric is
// optional; the goal engine refuses to guess missing BMR inputs.
type Profile struct {
	UserID         int
	Sex            *Sex
	DateOfBirth    *time.Time
	HeightCM       *float64
	WeightKG       *float64
	TargetWeightKG *float64
	TargetDate     *time.Time
	ActivityLevel  *ActivityLevel

	LowSalt    bool
	LowSugar   bool
	Vegetarian bool
	Vegan      bool
	Allergens  []string

	// DailyCalories is a manual override of the computed target.
	DailyCalories  *float64
	ProteinPercent *int
	CarbPercent    *int
	FatPercent     *int

	Timezone  string
	UpdatedAt time.Time
}

/* ─── Ledger ─────────────────────────────────────────────────────────── */

// LineItem is one logged quantity of food inside a Meal. Nutrient values are
// frozen at insertion time and never re-derived from a food reference.
type LineItem struct {
	ID         uuid.UUID
	MealID     uuid.UUID
	Slot       Slot
	Position   int
	Name       string
	Unit       Unit
	Quantity   decimal.Decimal
	GramsTotal decimal.NullDecimal

	Kcal    decimal.NullDecimal
	Protein decimal.NullDecimal
	Carb    decimal.NullDecimal
	Fat     decimal.NullDecimal
	Sugars  decimal.NullDecimal
	Fiber   decimal.NullDecimal
	Salt    decimal.NullDecimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Meal groups the line items a user logged for one (day, slot).
type Meal struct {
	ID     uuid.UUID
	UserID int
	// Day is the UTC-midnight anchor of the user's local calendar date.
	Day   time.Time
	Slot  Slot
	Items []LineItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WeightEntry is one point in the weight log.
type WeightEntry struct {
	ID        uuid.UUID
	UserID    int
	Day       time.Time
	WeightKG  decimal.Decimal
	Source    string
	Note      *string
	CreatedAt time.Time
}
