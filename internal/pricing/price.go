package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
	"github.com/angelmondragon/bullion-backend/pkg/money"
)

// Price sources reported on Price.Source besides the oracle provider names.
const (
	SourceSnapshot = "snapshot"
)

// Price is a tenant-specific per-gram sell price.
type Price struct {
	Commodity     enums.Commodity `json:"commodity"`
	BasePrice     decimal.Decimal `json:"base_price"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
	MarginFixed   decimal.Decimal `json:"margin_fixed"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	Source        string          `json:"source"`
	FetchedAt     time.Time       `json:"fetched_at"`
}

// GramQuote is the number of grams a cash amount buys at a given price.
type GramQuote struct {
	Commodity    enums.Commodity `json:"commodity"`
	Amount       decimal.Decimal `json:"amount"`
	Grams        decimal.Decimal `json:"grams"`
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	Source       string          `json:"source"`
}

// FinalPrice applies a margin to a base price: round2(base + base*pct/100 + fixed).
func FinalPrice(base, marginPercent, marginFixed decimal.Decimal) decimal.Decimal {
	return money.RoundAmount(base.Add(money.Percent(base, marginPercent)).Add(marginFixed))
}

// GramsFor returns amount/pricePerGram rounded to 4 decimals. pricePerGram must be positive.
func GramsFor(amount, pricePerGram decimal.Decimal) decimal.Decimal {
	return money.RoundGrams(amount.Div(pricePerGram))
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
