// Package goals derives a user's daily energy target and macro split from
// their biometric profile.
package goals

import (
	"fmt"
	"math"
	"strings"
	"time"

	"lg/nutrition-api/internal/nutrition"
)

// Source tells which branch produced the calorie target.
type Source string

const (
	SourceOverride    Source = "override"
	SourceMaintenance Source = "maintenance"
	SourceGoal        Source = "goal"
)

const (
	kcalPerKg = 7700.0

	overrideFloor = 1000
	targetFloor   = 1200

	minHorizonDays = 3
	maxHorizonDays = 730

	defaultLossAdjustment = -500.0
	defaultGainAdjustment = 300.0
	// Changes smaller than this are treated as maintenance.
	maintenanceToleranceKg = 0.5

	proteinGPerKg   = 1.6
	minProteinPct   = 15.0
	maxProteinPct   = 35.0
	defaultFatPct   = 30.0
	saltCeilingG    = 5
	minFiberG       = 25
	fiberGPer1000   = 14.0
	defaultActivity = 1.2
)

// activityMultipliers maps activity levels to their TDEE multiplier. It is
// also the list of valid levels for profile validation.
var activityMultipliers = map[nutrition.ActivityLevel]float64{
	nutrition.ActivitySedentary:  1.2,
	nutrition.ActivityLight:      1.375,
	nutrition.ActivityModerate:   1.55,
	nutrition.ActivityActive:     1.725,
	nutrition.ActivityVeryActive: 1.9,
}

// sexOffsets are the Mifflin-St Jeor constants. "other" is the mean of the two.
var sexOffsets = map[nutrition.Sex]float64{
	nutrition.SexMale:   5,
	nutrition.SexFemale: -161,
	nutrition.SexOther:  -78,
}

// Targets is the result of Compute.
type Targets struct {
	Source Source
	// BMR and TDEE are nil only in the override branch when biometrics are
	// incomplete.
	BMR  *float64
	TDEE *int
	Kcal int
	// Adjustment is the clamped daily kcal delta applied in the goal branch.
	Adjustment  *float64
	HorizonDays *int

	ProteinPercent float64
	CarbPercent    float64
	FatPercent     float64
	ProteinG       int
	CarbG          int
	FatG           int

	SugarMaxG  int
	SatFatMaxG int
	FiberMinG  int
	SaltMaxG   int
}

// ValidActivityLevel reports whether level has a multiplier.
func ValidActivityLevel(level nutrition.ActivityLevel) bool {
	_, ok := activityMultipliers[level]
	return ok
}

// ActivityFactor returns the TDEE multiplier. Unknown or absent levels fall
// back to sedentary.
func ActivityFactor(level *nutrition.ActivityLevel) float64 {
	if level == nil {
		return defaultActivity
	}
	if f, ok := activityMultipliers[*level]; ok {
		return f
	}
	return defaultActivity
}

// Age returns whole years between dob and now.
func Age(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Before(dob.AddDate(age, 0, 0)) {
		age--
	}
	return age
}

// BMR computes the Mifflin-St Jeor basal metabolic rate.
func BMR(sex nutrition.Sex, weightKG, heightCM float64, age int) float64 {
	offset, ok := sexOffsets[sex]
	if !ok {
		offset = sexOffsets[nutrition.SexOther]
	}
	return 10*weightKG + 6.25*heightCM - 5*float64(age) + offset
}

// Compute derives the daily targets for p as of now.
func Compute(p nutrition.Profile, now time.Time) (Targets, error) {
	var t Targets

	bmr, bmrErr := profileBMR(p, now)
	if bmrErr == nil {
		tdee := int(math.Round(bmr * ActivityFactor(p.ActivityLevel)))
		t.BMR = &bmr
		t.TDEE = &tdee
	}

	switch {
	case p.DailyCalories != nil:
		t.Source = SourceOverride
		t.Kcal = max(overrideFloor, int(math.Round(*p.DailyCalories)))
	case bmrErr != nil:
		return Targets{}, bmrErr
	case p.TargetWeightKG == nil || math.Abs(*p.TargetWeightKG-*p.WeightKG) < maintenanceToleranceKg:
		t.Source = SourceMaintenance
		t.Kcal = *t.TDEE
	default:
		t.Source = SourceGoal
		adj, horizon := adjustment(*p.TargetWeightKG-*p.WeightKG, p.TargetDate, now)
		t.Adjustment = &adj
		t.HorizonDays = horizon
		goal := float64(*t.TDEE) + adj
		t.Kcal = max(targetFloor, int(math.Round(goal/10))*10)
	}

	applyMacros(&t, p)
	return t, nil
}

// profileBMR checks the inputs BMR needs and returns it.
func profileBMR(p nutrition.Profile, now time.Time) (float64, error) {
	var missing []string
	if p.Sex == nil {
		missing = append(missing, "sex")
	}
	if p.DateOfBirth == nil {
		missing = append(missing, "date_of_birth")
	}
	if p.HeightCM == nil {
		missing = append(missing, "height_cm")
	}
	if p.WeightKG == nil {
		missing = append(missing, "weight_kg")
	}
	if len(missing) > 0 {
		return 0, fmt.Errorf("%w: missing %s", nutrition.ErrIncompleteProfile, strings.Join(missing, ", "))
	}

	age := Age(*p.DateOfBirth, now)
	// A DOB in the future or more than 130 years ago is not usable.
	if age < 0 || age > 130 {
		return 0, fmt.Errorf("%w: implausible age %d", nutrition.ErrIncompleteProfile, age)
	}
	return BMR(*p.Sex, *p.WeightKG, *p.HeightCM, age), nil
}

// adjustment returns the clamped daily kcal delta for a weight change of
// deltaKg, plus the horizon in days when a usable target date was given.
func adjustment(deltaKg float64, targetDate *time.Time, now time.Time) (float64, *int) {
	loss := deltaKg < 0

	var adj float64
	var horizon *int
	if days, ok := horizonDays(targetDate, now); ok {
		adj = deltaKg * kcalPerKg / float64(days)
		horizon = &days
	} else if loss {
		adj = defaultLossAdjustment
	} else {
		adj = defaultGainAdjustment
	}

	if loss {
		return clamp(adj, -700, -300), horizon
	}
	return clamp(adj, 250, 500), horizon
}

func horizonDays(targetDate *time.Time, now time.Time) (int, bool) {
	if targetDate == nil {
		return 0, false
	}
	days := int(math.Round(targetDate.Sub(now).Hours() / 24))
	if days < minHorizonDays || days > maxHorizonDays {
		return 0, false
	}
	return days, true
}

func applyMacros(t *Targets, p nutrition.Profile) {
	kcal := float64(t.Kcal)

	protein := 0.0
	if p.ProteinPercent != nil {
		protein = float64(*p.ProteinPercent)
	} else {
		weight := 0.0
		if p.WeightKG != nil {
			weight = *p.WeightKG
		}
		protein = clamp(proteinGPerKg*weight*4/kcal*100, minProteinPct, maxProteinPct)
	}

	fat := defaultFatPct
	if p.FatPercent != nil {
		fat = float64(*p.FatPercent)
	}
	fat = math.Min(fat, 100-protein)

	// Carb always takes the remainder so the split sums to 100; a stored
	// carb_percent is kept on the profile but does not change the split.
	carb := 100 - protein - fat

	t.ProteinPercent = protein
	t.FatPercent = fat
	t.CarbPercent = carb
	t.ProteinG = int(math.Round(kcal * protein / 100 / 4))
	t.CarbG = int(math.Round(kcal * carb / 100 / 4))
	t.FatG = int(math.Round(kcal * fat / 100 / 9))

	t.SugarMaxG = int(math.Round(kcal * 0.10 / 4))
	t.SatFatMaxG = int(math.Round(kcal * 0.10 / 9))
	t.FiberMinG = max(minFiberG, int(math.Round(fiberGPer1000*kcal/1000)))
	t.SaltMaxG = saltCeilingG
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
