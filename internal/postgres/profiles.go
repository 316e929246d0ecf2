package postgres

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"lg/nutrition-api/internal/nutrition"
)

const profileColumns = `user_id, sex, date_of_birth, height_cm, weight_kg, target_weight_kg,
	target_date, activity_level, low_salt, low_sugar, vegetarian, vegan, allergens,
	daily_calories, protein_percent, carb_percent, fat_percent, timezone, updated_at`

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type profileRow struct {
	UserID         int        `db:"user_id"`
	Sex            *string    `db:"sex"`
	DateOfBirth    *time.Time `db:"date_of_birth"`
	HeightCM       *float64   `db:"height_cm"`
	WeightKG       *float64   `db:"weight_kg"`
	TargetWeightKG *float64   `db:"target_weight_kg"`
	TargetDate     *time.Time `db:"target_date"`
	ActivityLevel  *string    `db:"activity_level"`
	LowSalt        bool       `db:"low_salt"`
	LowSugar       bool       `db:"low_sugar"`
	Vegetarian     bool       `db:"vegetarian"`
	Vegan          bool       `db:"vegan"`
	Allergens      []string   `db:"allergens"`
	DailyCalories  *float64   `db:"daily_calories"`
	ProteinPercent *int       `db:"protein_percent"`
	CarbPercent    *int       `db:"carb_percent"`
	FatPercent     *int       `db:"fat_percent"`
	Timezone       string     `db:"timezone"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (r profileRow) toDomain() nutrition.Profile {
	p := nutrition.Profile{
		UserID:         r.UserID,
		DateOfBirth:    r.DateOfBirth,
		HeightCM:       r.HeightCM,
		WeightKG:       r.WeightKG,
		TargetWeightKG: r.TargetWeightKG,
		TargetDate:     r.TargetDate,
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
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Sex != nil {
		s := nutrition.Sex(*r.Sex)
		p.Sex = &s
	}
	if r.ActivityLevel != nil {
		a := nutrition.ActivityLevel(*r.ActivityLevel)
		p.ActivityLevel = &a
	}
	if p.Allergens == nil {
		p.Allergens = []string{}
	}
	return p
}

// ProfileRepo stores biometric profiles, one row per user.
type ProfileRepo struct {
	db DB
	tx *TxManager
}

// NewProfileRepo creates a ProfileRepo.
func NewProfileRepo(db DB, tx *TxManager) *ProfileRepo {
	return &ProfileRepo{db: db, tx: tx}
}

// Get returns the profile of userID, or ErrNotFound.
func (r *ProfileRepo) Get(ctx context.Context, userID int) (nutrition.Profile, error) {
	row, err := queryOne[profileRow](ctx, QuerierFromCtx(ctx, r.db),
		"SELECT "+profileColumns+" FROM profiles WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		return nutrition.Profile{}, mapError(err, "profile", userID)
	}
	return row.toDomain(), nil
}

// Create inserts an empty profile for userID if none exists.
func (r *ProfileRepo) Create(ctx context.Context, userID int) error {
	_, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		"INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID)
	return mapError(err, "profile", userID)
}

// Patch applies the provided fields, creating the row first when the user
// has none, and returns the updated profile.
func (r *ProfileRepo) Patch(ctx context.Context, userID int, p nutrition.ProfilePatch) (nutrition.Profile, error) {
	set := patchColumns(p)
	if len(set) == 0 {
		return nutrition.Profile{}, nutrition.NewValidationError("profile", "no fields to update")
	}

	sql, args, err := psql.Update("profiles").
		SetMap(set).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"user_id": userID}).
		Suffix("RETURNING " + profileColumns).
		ToSql()
	if err != nil {
		return nutrition.Profile{}, err
	}

	var out nutrition.Profile
	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.Create(ctx, userID); err != nil {
			return err
		}
		row, err := queryOne[profileRow](ctx, QuerierFromCtx(ctx, r.db), sql, args...)
		if err != nil {
			return mapError(err, "profile", userID)
		}
		out = row.toDomain()
		return nil
	})
	return out, err
}

// SetWeight records the current weight on the profile, creating the row if
// needed.
func (r *ProfileRepo) SetWeight(ctx context.Context, userID int, weightKG float64) error {
	_, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		`INSERT INTO profiles (user_id, weight_kg) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET weight_kg = EXCLUDED.weight_kg, updated_at = now()`,
		userID, weightKG)
	return mapError(err, "profile", userID)
}

// patchColumns maps the provided patch fields to their columns.
func patchColumns(p nutrition.ProfilePatch) map[string]any {
	set := map[string]any{}
	if p.Sex != nil {
		set["sex"] = string(*p.Sex)
	}
	if p.DateOfBirth != nil {
		set["date_of_birth"] = *p.DateOfBirth
	}
	if p.HeightCM != nil {
		set["height_cm"] = *p.HeightCM
	}
	if p.WeightKG != nil {
		set["weight_kg"] = *p.WeightKG
	}
	if p.TargetWeightKG != nil {
		set["target_weight_kg"] = *p.TargetWeightKG
	}
	if p.TargetDate != nil {
		set["target_date"] = *p.TargetDate
	}
	if p.ActivityLevel != nil {
		set["activity_level"] = string(*p.ActivityLevel)
	}
	if p.LowSalt != nil {
		set["low_salt"] = *p.LowSalt
	}
	if p.LowSugar != nil {
		set["low_sugar"] = *p.LowSugar
	}
	if p.Vegetarian != nil {
		set["vegetarian"] = *p.Vegetarian
	}
	if p.Vegan != nil {
		set["vegan"] = *p.Vegan
	}
	if p.Allergens != nil {
		set["allergens"] = *p.Allergens
	}
	if p.DailyCalories != nil {
		set["daily_calories"] = *p.DailyCalories
	}
	if p.ProteinPercent != nil {
		set["protein_percent"] = *p.ProteinPercent
	}
	if p.CarbPercent != nil {
		set["carb_percent"] = *p.CarbPercent
	}
	if p.FatPercent != nil {
		set["fat_percent"] = *p.FatPercent
	}
	if p.Timezone != nil {
		set["timezone"] = *p.Timezone
	}
	return set
}
