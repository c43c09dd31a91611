// Package money holds the decimal rounding rules shared by pricing, ledger and bookings.
package money

import "github.com/shopspring/decimal"

const (
	// AmountScale is the scale for cash amounts and prices.
	AmountScale int32 = 2
	// GramScale is the scale for metal quantities.
	GramScale int32 = 4
)

// TroyOunceGrams is the number of grams in one troy ounce.
var TroyOunceGrams = decimal.RequireFromString("31.1035")

var hundred = decimal.NewFromInt(100)

// RoundAmount rounds half away from zero to 2 decimals.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

// RoundGrams rounds half away from zero to 4 decimals.
func RoundGrams(d decimal.Decimal) decimal.Decimal {
	return d.Round(GramScale)
}

// PerGramFromOunce converts a per-troy-ounce quote to a per-gram price.
func PerGramFromOunce(perOunce decimal.Decimal) decimal.Decimal {
	return RoundAmount(perOunce.Div(TroyOunceGrams))
}

// Percent returns pct percent of base, unrounded.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// ToMinorUnits converts a major-unit amount to minor units (paise, cents).
func ToMinorUnits(d decimal.Decimal) int64 {
	return RoundAmount(d).Mul(hundred).IntPart()
}

// FromMinorUnits converts minor units back to a 2-decimal amount.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -AmountScale)
}
