package oracle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// Unit is the quantity a provider quotes its price for.
type Unit string

const (
	UnitTroyOunce Unit = "ounce"
	UnitGram      Unit = "gram"
)

// ParseUnit maps configuration values onto a Unit, defaulting to troy ounces.
func ParseUnit(value string) Unit {
	if Unit(value) == UnitGram {
		return UnitGram
	}
	return UnitTroyOunce
}

// Quote is a raw provider answer before normalization to a per-gram price.
type Quote struct {
	Price decimal.Decimal
	Unit  Unit
}

// Provider fetches a market quote for one commodity.
type Provider interface {
	Name() string
	Quote(ctx context.Context, commodity enums.Commodity) (Quote, error)
}

// ProviderFunc adapts a function into a named Provider.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context, commodity enums.Commodity) (Quote, error)
}

func (p ProviderFunc) Name() string {
	return p.ProviderName
}

func (p ProviderFunc) Quote(ctx context.Context, commodity enums.Commodity) (Quote, error) {
	return p.Fn(ctx, commodity)
}
