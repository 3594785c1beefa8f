package risk

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/mcrisk/internal/contracts"
)

// =============================================================================
// Return Series Processing
// =============================================================================

// PriceSeries is a cleaned single-column price history
type PriceSeries struct {
	Ticker string
	Dates  []time.Time
	Prices []float64
}

// AlignedPrices holds price histories on their common trading days.
// Prices[i][t] is asset i on Dates[t].
type AlignedPrices struct {
	Tickers  []string
	Dates    []time.Time
	Prices   [][]float64
	Latest   []float64 // 종목별 최신 유효 가격 (공통 날짜와 무관) = S₀
	Shortest string    // 정렬 전 유효 가격이 가장 적은 종목
}

// Observations returns the number of aligned returns (dates - 1)
func (a *AlignedPrices) Observations() int {
	if len(a.Dates) < 2 {
		return 0
	}
	return len(a.Dates) - 1
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// dayKey normalizes a timestamp to its calendar day
func dayKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CleanSeries drops missing observations for field, sorts by date and
// keeps the last observation of a duplicated day.
func CleanSeries(s contracts.AssetSeries, field contracts.PriceField) PriceSeries {
	type obs struct {
		day   time.Time
		price float64
	}

	byDay := make(map[time.Time]int, len(s.Points))
	kept := make([]obs, 0, len(s.Points))
	for _, p := range s.Points {
		v, ok := p.Value(field)
		if !ok {
			continue
		}
		day := dayKey(p.Date)
		if idx, dup := byDay[day]; dup {
			kept[idx].price = v
			continue
		}
		byDay[day] = len(kept)
		kept = append(kept, obs{day: day, price: v})
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].day.Before(kept[j].day) })

	out := PriceSeries{
		Ticker: s.Ticker,
		Dates:  make([]time.Time, len(kept)),
		Prices: make([]float64, len(kept)),
	}
	for i, o := range kept {
		out.Dates[i] = o.day
		out.Prices[i] = o.price
	}
	return out
}

// AlignSeries keeps only the dates present in every series, then the last
// lookback+1 of them (lookback 0 = all). Returns computed from the result
// span the same interval for every asset. Latest keeps each series' own last
// price, which may be newer than the last common date.
func AlignSeries(series []PriceSeries, lookback int) (*AlignedPrices, error) {
	if len(series) == 0 {
		return nil, ErrEmptyPortfolio
	}
	if lookback < 0 {
		return nil, fmt.Errorf("%w: negative lookback %d", ErrInvalidConfig, lookback)
	}

	shortest := series[0]
	for _, s := range series {
		if len(s.Prices) < len(shortest.Prices) {
			shortest = s
		}
		if len(s.Prices) < 2 {
			return nil, &SimulationError{
				Stage: StateEstimating,
				Asset: s.Ticker,
				Err:   fmt.Errorf("%w: %d usable prices", ErrInsufficientHistory, len(s.Prices)),
			}
		}
	}

	// 모든 종목에 존재하는 날짜만 남김
	counts := make(map[time.Time]int)
	for _, s := range series {
		for _, d := range s.Dates {
			counts[d]++
		}
	}
	common := make([]time.Time, 0, len(series[0].Dates))
	for _, d := range series[0].Dates {
		if counts[d] == len(series) {
			common = append(common, d)
		}
	}

	if lookback > 0 && len(common) > lookback+1 {
		common = common[len(common)-(lookback+1):]
	}

	aligned := &AlignedPrices{
		Tickers:  make([]string, len(series)),
		Dates:    common,
		Prices:   make([][]float64, len(series)),
		Latest:   make([]float64, len(series)),
		Shortest: shortest.Ticker,
	}
	keep := make(map[time.Time]struct{}, len(common))
	for _, d := range common {
		keep[d] = struct{}{}
	}
	for i, s := range series {
		aligned.Tickers[i] = s.Ticker
		aligned.Latest[i] = s.Prices[len(s.Prices)-1]
		prices := make([]float64, 0, len(common))
		for t, d := range s.Dates {
			if _, ok := keep[d]; ok {
				prices = append(prices, s.Prices[t])
			}
		}
		aligned.Prices[i] = prices
	}

	return aligned, nil
}

// LogReturns computes r[t] = ln(p[t]/p[t-1]); len = len(prices)-1
func LogReturns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 prices, got %d", ErrInsufficientHistory, len(prices))
	}

	returns := make([]float64, len(prices)-1)
	for t := range prices {
		if !validPrice(prices[t]) {
			return nil, fmt.Errorf("%w: %v at index %d", ErrInvalidPrice, prices[t], t)
		}
		if t == 0 {
			continue
		}
		returns[t-1] = math.Log(prices[t] / prices[t-1])
	}
	return returns, nil
}
