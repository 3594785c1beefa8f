package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/mcrisk/internal/contracts"
)

var start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func series(ticker string, offset, n int) contracts.AssetSeries {
	points := make([]contracts.PricePoint, n)
	for i := range points {
		points[i] = contracts.PricePoint{Date: start.AddDate(0, 0, offset+i), Close: 100 + float64(i)}
	}
	return contracts.AssetSeries{Ticker: ticker, Points: points}
}

func composition(asOf time.Time, s ...contracts.AssetSeries) *contracts.PortfolioComposition {
	comp := &contracts.PortfolioComposition{PriceField: contracts.FieldClose, AsOf: asOf}
	for _, x := range s {
		comp.Positions = append(comp.Positions, contracts.Position{Series: x, Quantity: 1})
	}
	return comp
}

func TestCheck_CleanHistories(t *testing.T) {
	asOf := start.AddDate(0, 0, 99)
	report := Check(composition(asOf, series("AAA", 0, 100), series("BBB", 0, 100)), DefaultConfig())

	assert.True(t, report.Passed)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 100, report.CommonDates)
	assert.InDelta(t, 1.0, report.Coverage, 1e-12)
	assert.InDelta(t, 1.0, report.Score, 1e-12)
	require.Len(t, report.Assets, 2)
	assert.Equal(t, 0, report.Assets[0].StaleDays)
	assert.Equal(t, start, report.Assets[0].First)
}

func TestCheck_PartialOverlap(t *testing.T) {
	asOf := start.AddDate(0, 0, 99)
	report := Check(composition(asOf, series("OLD", 0, 100), series("NEW", 50, 50)), DefaultConfig())

	assert.Equal(t, 50, report.CommonDates)
	assert.InDelta(t, 0.5, report.Coverage, 1e-12)
	assert.False(t, report.Passed, "NEW has fewer than 60 usable prices")
	assert.InDelta(t, 0.5, report.Assets[0].Coverage, 1e-12)
	assert.InDelta(t, 1.0, report.Assets[1].Coverage, 1e-12)
	assert.Len(t, report.Warnings, 2)
}

func TestCheck_MissingAndStale(t *testing.T) {
	s := series("AAA", 0, 80)
	s.Points[10].Close = 0
	s.Points[11].Close = math.NaN()

	asOf := start.AddDate(0, 0, 79+10)
	report := Check(composition(asOf, s), DefaultConfig())

	aq := report.Assets[0]
	assert.Equal(t, 80, aq.Points)
	assert.Equal(t, 78, aq.Usable)
	assert.Equal(t, 2, aq.Missing)
	assert.Equal(t, 10, aq.StaleDays)
	assert.True(t, report.Passed, "missing values and staleness only warn")
	assert.Len(t, report.Warnings, 2)
	assert.Less(t, report.Score, 1.0)
}

func TestCheck_NoOverlap(t *testing.T) {
	report := Check(composition(time.Time{}, series("AAA", 0, 70), series("BBB", 100, 70)), DefaultConfig())

	assert.Equal(t, 0, report.CommonDates)
	assert.False(t, report.Passed)
}

func TestCheck_Empty(t *testing.T) {
	report := Check(nil, DefaultConfig())
	assert.False(t, report.Passed)
	assert.NotEmpty(t, report.Warnings)

	report = Check(&contracts.PortfolioComposition{}, DefaultConfig())
	assert.False(t, report.Passed)
}

func TestCalculateScore(t *testing.T) {
	tests := []struct {
		name  string
		parts map[string]float64
		want  float64
	}{
		{"perfect", map[string]float64{"coverage": 1, "history": 1, "freshness": 1}, 1.0},
		{"history capped", map[string]float64{"coverage": 1, "history": 3, "freshness": 1}, 1.0},
		{"half coverage", map[string]float64{"coverage": 0.5, "history": 1, "freshness": 1}, 0.75},
		{"empty", map[string]float64{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calculateScore(tt.parts), 1e-12)
		})
	}
}
