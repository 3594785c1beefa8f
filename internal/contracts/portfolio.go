package contracts

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Position pairs an asset's history with the held quantity
// ⭐ 계약: Quantity는 0 이상, Ticker는 포트폴리오 내 유일
type Position struct {
	Series     AssetSeries `json:"series"`
	Quantity   float64     `json:"quantity"`
	AssetClass string      `json:"asset_class,omitempty"`
	Sector     string      `json:"sector,omitempty"`
}

// Ticker returns the position's ticker
func (p Position) Ticker() string {
	return p.Series.Ticker
}

// PortfolioComposition is the set of positions handed to the simulation
// ⭐ SSOT: data layer → risk 포트폴리오 전달
type PortfolioComposition struct {
	Positions  []Position `json:"positions"`
	PriceField PriceField `json:"price_field"`
	AsOf       time.Time  `json:"as_of"`
}

// Count returns the number of positions
func (pc *PortfolioComposition) Count() int {
	return len(pc.Positions)
}

// Tickers returns the tickers in position order
func (pc *PortfolioComposition) Tickers() []string {
	out := make([]string, len(pc.Positions))
	for i, p := range pc.Positions {
		out[i] = p.Ticker()
	}
	return out
}

// GetPosition finds a position by ticker
func (pc *PortfolioComposition) GetPosition(ticker string) (*Position, bool) {
	for i := range pc.Positions {
		if pc.Positions[i].Ticker() == ticker {
			return &pc.Positions[i], true
		}
	}
	return nil, false
}

// Values returns quantity × last price per position.
// 가격이 없는 포지션은 0
func (pc *PortfolioComposition) Values() []float64 {
	out := make([]float64, len(pc.Positions))
	for i, p := range pc.Positions {
		if last, ok := p.Series.LastPrice(pc.PriceField); ok {
			out[i] = p.Quantity * last
		}
	}
	return out
}

// TotalValue returns the current market value of the portfolio
func (pc *PortfolioComposition) TotalValue() float64 {
	total := 0.0
	for _, v := range pc.Values() {
		total += v
	}
	return total
}

// Weights returns value weights in position order.
// Total value 0 → all zero (caller decides whether that is an error).
func (pc *PortfolioComposition) Weights() []float64 {
	values := pc.Values()
	total := 0.0
	for _, v := range values {
		total += v
	}
	weights := make([]float64, len(values))
	if total <= 0 {
		return weights
	}
	for i, v := range values {
		weights[i] = v / total
	}
	return weights
}

// GroupBy selects the dimension of a weight report
type GroupBy string

const (
	GroupByTicker     GroupBy = "ticker"
	GroupBySector     GroupBy = "sector"
	GroupByAssetClass GroupBy = "asset_class"
)

// ParseGroupBy parses a grouping name ("" = ticker)
func ParseGroupBy(s string) (GroupBy, bool) {
	switch GroupBy(strings.ToLower(strings.TrimSpace(s))) {
	case "", GroupByTicker:
		return GroupByTicker, true
	case GroupBySector:
		return GroupBySector, true
	case GroupByAssetClass, "assetclass", "class":
		return GroupByAssetClass, true
	}
	return "", false
}

// WeightGroup is one row of a weight report
type WeightGroup struct {
	Key    string  `json:"key"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"` // 0.0 ~ 1.0
	Count  int     `json:"count"`
}

// Unclassified is the group key for positions without sector/asset class
const Unclassified = "unclassified"

// WeightsBy aggregates current value weights along one dimension.
// Sorted by weight descending, ties by key.
func (pc *PortfolioComposition) WeightsBy(by GroupBy) []WeightGroup {
	values := pc.Values()
	total := 0.0
	for _, v := range values {
		total += v
	}

	groups := make(map[string]*WeightGroup)
	for i, p := range pc.Positions {
		key := groupKey(p, by)
		g, ok := groups[key]
		if !ok {
			g = &WeightGroup{Key: key}
			groups[key] = g
		}
		g.Value += values[i]
		g.Count++
	}

	out := make([]WeightGroup, 0, len(groups))
	for _, g := range groups {
		if total > 0 {
			g.Weight = g.Value / total
		}
		out = append(out, *g)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func groupKey(p Position, by GroupBy) string {
	var key string
	switch by {
	case GroupBySector:
		key = p.Sector
	case GroupByAssetClass:
		key = p.AssetClass
	default:
		key = p.Ticker()
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Unclassified
	}
	return key
}

// Holding is a stored position (no price history)
// ⭐ SSOT: portfolio.holdings 한 행
type Holding struct {
	Ticker        string    `json:"ticker"`
	Quantity      float64   `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	AssetClass    string    `json:"asset_class,omitempty"`
	Sector        string    `json:"sector,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CostBasis returns quantity × purchase price
func (h Holding) CostBasis() float64 {
	return h.Quantity * h.PurchasePrice
}

// CurrentValue returns quantity × price
func (h Holding) CurrentValue(price float64) float64 {
	return h.Quantity * price
}

// UnrealizedReturn returns the simple return versus cost basis.
// Cost basis 0 → NaN
func (h Holding) UnrealizedReturn(price float64) float64 {
	cost := h.CostBasis()
	if cost == 0 {
		return math.NaN()
	}
	return h.CurrentValue(price)/cost - 1
}
