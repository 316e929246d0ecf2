package nutrition

import "github.com/shopspring/decimal"

// Totals is the sum of the seven tracked nutrients.
type Totals struct {
	Kcal    decimal.Decimal
	Protein decimal.Decimal
	Carb    decimal.Decimal
	Fat     decimal.Decimal
	Sugars  decimal.Decimal
	Fiber   decimal.Decimal
	Salt    decimal.Decimal
}

// AddItem adds the nutrients of one line item. Absent values contribute zero.
func (t Totals) AddItem(it LineItem) Totals {
	return Totals{
		Kcal:    addNull(t.Kcal, it.Kcal),
		Protein: addNull(t.Protein, it.Protein),
		Carb:    addNull(t.Carb, it.Carb),
		Fat:     addNull(t.Fat, it.Fat),
		Sugars:  addNull(t.Sugars, it.Sugars),
		Fiber:   addNull(t.Fiber, it.Fiber),
		Salt:    addNull(t.Salt, it.Salt),
	}
}

// Add returns the field-wise sum of t and o.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Kcal:    t.Kcal.Add(o.Kcal),
		Protein: t.Protein.Add(o.Protein),
		Carb:    t.Carb.Add(o.Carb),
		Fat:     t.Fat.Add(o.Fat),
		Sugars:  t.Sugars.Add(o.Sugars),
		Fiber:   t.Fiber.Add(o.Fiber),
		Salt:    t.Salt.Add(o.Salt),
	}
}

// Canonical rounds kcal to a whole number, matching the integer kcal column
// of the daily aggregate.
func (t Totals) Canonical() Totals {
	t.Kcal = t.Kcal.Round(0)
	return t
}

// IsZero reports whether every field is zero.
func (t Totals) IsZero() bool {
	return t.Kcal.IsZero() && t.Protein.IsZero() && t.Carb.IsZero() &&
		t.Fat.IsZero() && t.Sugars.IsZero() && t.Fiber.IsZero() && t.Salt.IsZero()
}

// Equal compares numerically, ignoring decimal exponent differences.
func (t Totals) Equal(o Totals) bool {
	return t.Kcal.Equal(o.Kcal) && t.Protein.Equal(o.Protein) && t.Carb.Equal(o.Carb) &&
		t.Fat.Equal(o.Fat) && t.Sugars.Equal(o.Sugars) && t.Fiber.Equal(o.Fiber) &&
		t.Salt.Equal(o.Salt)
}

func addNull(acc decimal.Decimal, v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return acc
	}
	return acc.Add(v.Decimal)
}
