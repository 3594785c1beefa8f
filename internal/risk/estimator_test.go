package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pricesFromReturns builds a price path p[t] = p[t-1]·exp(r[t-1])
func pricesFromReturns(start float64, returns ...float64) []float64 {
	prices := []float64{start}
	for _, r := range returns {
		prices = append(prices, prices[len(prices)-1]*math.Exp(r))
	}
	return prices
}

func TestEstimate_MeanAndSampleCovariance(t *testing.T) {
	r1 := []float64{0.01, -0.02, 0.03}
	r2 := []float64{0.02, 0.00, -0.01}

	aligned, err := AlignSeries([]PriceSeries{
		priceSeries("A", 0, pricesFromReturns(100, r1...)...),
		priceSeries("B", 0, pricesFromReturns(50, r2...)...),
	}, 0)
	require.NoError(t, err)

	est, err := Estimate(aligned)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, est.Tickers)
	assert.Equal(t, 3, est.Observations)
	assert.InDelta(t, 0.02/3, est.Mean[0], 1e-12)
	assert.InDelta(t, 0.01/3, est.Mean[1], 1e-12)

	// 표본 공분산 (n-1)
	cov := func(x, y []float64) float64 {
		mx, my := Mean(x), Mean(y)
		s := 0.0
		for i := range x {
			s += (x[i] - mx) * (y[i] - my)
		}
		return s / float64(len(x)-1)
	}
	assert.InDelta(t, cov(r1, r1), est.Covariance.At(0, 0), 1e-12)
	assert.InDelta(t, cov(r2, r2), est.Covariance.At(1, 1), 1e-12)
	assert.InDelta(t, cov(r1, r2), est.Covariance.At(0, 1), 1e-12)
	assert.InDelta(t, est.Covariance.At(0, 1), est.Covariance.At(1, 0), 0)

	// 같은 달력이면 S₀ = 공통 구간 마지막 가격
	assert.InDelta(t, 100*math.Exp(0.02), est.LastPrices[0], 1e-9)
	assert.True(t, est.Start.Equal(day0))
	assert.True(t, est.End.Equal(day0.AddDate(0, 0, 3)))
}

func TestEstimate_LastPricesUseEachAssetsLatestDay(t *testing.T) {
	// B는 마지막 날 거래정지: 공분산은 공통 5일, S₀는 종목별 최신 가격
	aligned, err := AlignSeries([]PriceSeries{
		priceSeries("A", 0, 100, 101, 99, 102, 103, 206),
		priceSeries("B", 0, 50, 51, 52, 51, 53),
	}, 0)
	require.NoError(t, err)

	est, err := Estimate(aligned)
	require.NoError(t, err)

	assert.Equal(t, 4, est.Observations)
	assert.True(t, est.End.Equal(day0.AddDate(0, 0, 4)))
	assert.Equal(t, []float64{206, 53}, est.LastPrices)
}

func TestEstimate_EmptyReturnSet(t *testing.T) {
	// 공통 날짜가 하루뿐 → 수익률 0개
	aligned, err := AlignSeries([]PriceSeries{
		priceSeries("A", 0, 100, 101, 102, 103, 104),
		priceSeries("LATE", 4, 50, 51, 52),
	}, 0)
	require.NoError(t, err)

	_, err = Estimate(aligned)
	require.ErrorIs(t, err, ErrEmptyReturnSet)

	var se *SimulationError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "LATE", se.Asset)
}

func TestEstimate_SingleReturnIsNotEnough(t *testing.T) {
	aligned, err := AlignSeries([]PriceSeries{priceSeries("A", 0, 100, 101)}, 0)
	require.NoError(t, err)

	_, err = Estimate(aligned)
	assert.ErrorIs(t, err, ErrEmptyReturnSet)
}

func TestEstimate_Empty(t *testing.T) {
	_, err := Estimate(nil)
	assert.ErrorIs(t, err, ErrEmptyPortfolio)
}
