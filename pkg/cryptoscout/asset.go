package cryptoscout

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// rankUnknown is the sort sentinel for assets the upstream did not rank.
// Unranked assets always sort after ranked ones.
const rankUnknown = math.MaxInt32

// Asset is one tracked cryptocurrency as returned by a data provider.
// Values are normalized: symbols are lowercase, missing ranks map to a
// large sentinel so they sort last within a batch.
type Asset struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	// CurrentPrice is quoted in the request currency.
	CurrentPrice  Price `json:"currentPrice"`
	MarketCapRank int   `json:"marketCapRank"`
	// PriceChangePercentage1y is the one-year price change in percent, nil
	// when the upstream has no data. Sources that only report the change "in
	// currency" (CoinGecko) map that value here; the two are treated as
	// equivalent.
	PriceChangePercentage1y *Price `json:"priceChangePercentage1y"`
}

// Price wraps decimal.Decimal for monetary and percentage values.
// JSON marshaling outputs a plain number (compatible with the dashboard
// frontend) while internal arithmetic stays in precise decimal.
type Price struct {
	decimal.Decimal
}

// MarshalJSON outputs as a JSON number (not a string).
func (p Price) MarshalJSON() ([]byte, error) {
	f, _ := p.Round(8).Float64()
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted strings.
func (p *Price) UnmarshalJSON(data []byte) error {
	return p.Decimal.UnmarshalJSON(data)
}

// NewPrice creates a Price from a float64.
func NewPrice(f float64) Price {
	return Price{decimal.NewFromFloat(f)}
}

// NewPriceFromString parses a decimal string into a Price.
func NewPriceFromString(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, err
	}
	return Price{d}, nil
}

// pctChange computes (last-first)/first*100 in decimal.
func pctChange(first, last Price) Price {
	hundred := decimal.NewFromInt(100)
	return Price{last.Sub(first.Decimal).DivRound(first.Decimal, 8).Mul(hundred)}
}
