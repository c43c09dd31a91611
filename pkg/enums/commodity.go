package enums

import (
	"fmt"
	"strings"
)

// Commodity identifies a tracked precious metal. Gram balances, margins and price
// history are all keyed by this tag.
type Commodity string

const (
	CommodityGold   Commodity = "gold"
	CommoditySilver Commodity = "silver"
)

var validCommodities = []Commodity{
	CommodityGold,
	CommoditySilver,
}

// Commodities returns every supported commodity in a stable order.
func Commodities() []Commodity {
	out := make([]Commodity, len(validCommodities))
	copy(out, validCommodities)
	return out
}

// String implements fmt.Stringer.
func (c Commodity) String() string {
	return string(c)
}

// IsValid reports whether the value is a supported commodity.
func (c Commodity) IsValid() bool {
	for _, candidate := range validCommodities {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommodity converts raw input (case-insensitive) into a Commodity.
func ParseCommodity(value string) (Commodity, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validCommodities {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commodity %q", value)
}
