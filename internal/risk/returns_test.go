package risk

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/mcrisk/internal/contracts"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func priceSeries(ticker string, offset int, prices ...float64) PriceSeries {
	s := PriceSeries{Ticker: ticker}
	for i, p := range prices {
		s.Dates = append(s.Dates, day0.AddDate(0, 0, offset+i))
		s.Prices = append(s.Prices, p)
	}
	return s
}

func TestLogReturns(t *testing.T) {
	prices := []float64{100, 105, 98, 120.5, 119}

	returns, err := LogReturns(prices)
	require.NoError(t, err)
	assert.Len(t, returns, len(prices)-1)
	assert.InDelta(t, math.Log(105.0/100.0), returns[0], 1e-15)

	// p0 · Π exp(r) = 마지막 가격
	rebuilt := prices[0]
	for _, r := range returns {
		rebuilt *= math.Exp(r)
	}
	assert.InDelta(t, prices[len(prices)-1], rebuilt, 1e-9)
}

func TestLogReturns_Errors(t *testing.T) {
	_, err := LogReturns([]float64{100})
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = LogReturns(nil)
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = LogReturns([]float64{100, 0, 101})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = LogReturns([]float64{100, math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestCleanSeries(t *testing.T) {
	raw := contracts.AssetSeries{
		Ticker: "005930",
		Points: []contracts.PricePoint{
			{Date: day0.AddDate(0, 0, 2), Close: 103, AdjClose: 102},
			{Date: day0, Close: 100, AdjClose: 99},
			{Date: day0.AddDate(0, 0, 1), Close: 0},                       // 결측
			{Date: day0.AddDate(0, 0, 3), Close: math.NaN()},              // 결측
			{Date: day0.AddDate(0, 0, 2).Add(15 * time.Hour), Close: 104}, // 같은 날 → 마지막 값
			{Date: day0.AddDate(0, 0, 4), Close: 105, AdjClose: 0},        // adj 결측
		},
	}

	t.Run("close", func(t *testing.T) {
		s := CleanSeries(raw, contracts.FieldClose)
		assert.Equal(t, "005930", s.Ticker)
		assert.Equal(t, []float64{100, 104, 105}, s.Prices)
		require.Len(t, s.Dates, 3)
		assert.True(t, s.Dates[0].Equal(day0))
		assert.True(t, s.Dates[1].Equal(day0.AddDate(0, 0, 2)))
	})

	t.Run("adj close", func(t *testing.T) {
		s := CleanSeries(raw, contracts.FieldAdjClose)
		assert.Equal(t, []float64{99, 102}, s.Prices)
	})
}

func TestAlignSeries_Intersection(t *testing.T) {
	a := priceSeries("A", 0, 100, 101, 102, 103, 104) // day 0..4
	b := priceSeries("B", 2, 50, 51, 52, 53)          // day 2..5

	aligned, err := AlignSeries([]PriceSeries{a, b}, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, aligned.Tickers)
	require.Len(t, aligned.Dates, 3)
	assert.Equal(t, []float64{102, 103, 104}, aligned.Prices[0])
	assert.Equal(t, []float64{50, 51, 52}, aligned.Prices[1])
	assert.Equal(t, 2, aligned.Observations())
	assert.Equal(t, "B", aligned.Shortest)
}

func TestAlignSeries_Lookback(t *testing.T) {
	a := priceSeries("A", 0, 100, 101, 102, 103, 104, 105)

	aligned, err := AlignSeries([]PriceSeries{a}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{102, 103, 104, 105}, aligned.Prices[0])
	assert.Equal(t, 3, aligned.Observations())

	// lookback이 이력보다 길면 전체
	aligned, err = AlignSeries([]PriceSeries{a}, 100)
	require.NoError(t, err)
	assert.Len(t, aligned.Prices[0], 6)
}

func TestAlignSeries_Errors(t *testing.T) {
	_, err := AlignSeries(nil, 0)
	assert.ErrorIs(t, err, ErrEmptyPortfolio)

	_, err = AlignSeries([]PriceSeries{priceSeries("A", 0, 100, 101)}, -1)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = AlignSeries([]PriceSeries{
		priceSeries("A", 0, 100, 101),
		priceSeries("THIN", 0, 100),
	}, 0)
	require.ErrorIs(t, err, ErrInsufficientHistory)

	var se *SimulationError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "THIN", se.Asset)
	assert.Equal(t, StateEstimating, se.Stage)
}
