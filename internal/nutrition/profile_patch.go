package nutrition

import (
	"fmt"
	"strings"
	"time"
)

const maxAllergens = 50

// ProfilePatch is a partial profile update. Nil fields are left unchanged.
type ProfilePatch struct {
	Sex            *Sex
	DateOfBirth    *time.Time
	HeightCM       *float64
	WeightKG       *float64
	TargetWeightKG *float64
	TargetDate     *time.Time
	ActivityLevel  *ActivityLevel

	LowSalt    *bool
	LowSugar   *bool
	Vegetarian *bool
	Vegan      *bool
	Allergens  *[]string

	DailyCalories  *float64
	ProteinPercent *int
	CarbPercent    *int
	FatPercent     *int

	Timezone *string
}

// Empty reports whether no field is set.
func (p ProfilePatch) Empty() bool {
	return p == ProfilePatch{}
}

// Validate checks every provided field. now bounds the date of birth.
func (p ProfilePatch) Validate(now time.Time) error {
	if p.Empty() {
		return NewValidationError("profile", "no fields to update")
	}
	if p.Sex != nil && !p.Sex.Valid() {
		return NewValidationError("sex", "must be one of male, female, other")
	}
	if p.ActivityLevel != nil && !p.ActivityLevel.Valid() {
		return NewValidationError("activity_level", "must be one of sedentary, light, moderate, active, very_active")
	}
	if p.DateOfBirth != nil && (p.DateOfBirth.After(now) || p.DateOfBirth.Year() < 1900) {
		return NewValidationError("date_of_birth", "must be between 1900-01-01 and today")
	}
	if p.HeightCM != nil && (*p.HeightCM <= 0 || *p.HeightCM >= 300) {
		return NewValidationError("height_cm", "must be between 0 and 300")
	}
	weights := []struct {
		field string
		value *float64
	}{{"weight_kg", p.WeightKG}, {"target_weight_kg", p.TargetWeightKG}}
	for _, w := range weights {
		if w.value != nil && (*w.value <= 0 || *w.value > 400) {
			return NewValidationError(w.field, "must be between 0 and 400")
		}
	}
	if p.DailyCalories != nil && (*p.DailyCalories <= 0 || *p.DailyCalories > 10000) {
		return NewValidationError("daily_calories", "must be between 0 and 10000")
	}
	percents := []struct {
		field string
		value *int
	}{{"protein_percent", p.ProteinPercent}, {"carb_percent", p.CarbPercent}, {"fat_percent", p.FatPercent}}
	for _, pc := range percents {
		if pc.value != nil && (*pc.value < 0 || *pc.value > 100) {
			return NewValidationError(pc.field, "must be between 0 and 100")
		}
	}
	if p.Allergens != nil {
		if len(*p.Allergens) > maxAllergens {
			return NewValidationError("allergens", fmt.Sprintf("at most %d entries", maxAllergens))
		}
		for _, a := range *p.Allergens {
			if strings.TrimSpace(a) == "" {
				return NewValidationError("allergens", "entries must not be blank")
			}
		}
	}
	if p.Timezone != nil && *p.Timezone != "" {
		if _, err := time.LoadLocation(*p.Timezone); err != nil {
			return NewValidationError("timezone", "unknown IANA timezone")
		}
	}
	return nil
}
