package quality

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/mcrisk/internal/contracts"
)

// Config holds quality gate thresholds
type Config struct {
	MinObservations int     // 종목별 최소 유효 가격 수
	MinCoverage     float64 // 공통 거래일 / 가장 긴 이력 (0.80)
	MaxStaleDays    int     // as-of 대비 마지막 가격 허용 지연 (달력일)
}

// DefaultConfig 기본 품질 기준
func DefaultConfig() Config {
	return Config{
		MinObservations: 60,
		MinCoverage:     0.80,
		MaxStaleDays:    7,
	}
}

// AssetQuality is the per-ticker part of a Report
type AssetQuality struct {
	Ticker    string    `json:"ticker"`
	Points    int       `json:"points"`
	Usable    int       `json:"usable"`
	Missing   int       `json:"missing"`
	First     time.Time `json:"first"`
	Last      time.Time `json:"last"`
	StaleDays int       `json:"stale_days"`
	Coverage  float64   `json:"coverage"` // 공통 거래일 / 이 종목 유효 가격 수
}

// Report summarizes whether the loaded histories are fit for estimation
type Report struct {
	AsOf        time.Time            `json:"as_of"`
	PriceField  contracts.PriceField `json:"price_field"`
	Assets      []AssetQuality       `json:"assets"`
	CommonDates int                  `json:"common_dates"`
	Coverage    float64              `json:"coverage"`
	Score       float64              `json:"score"`
	Warnings    []string             `json:"warnings,omitempty"`
	Passed      bool                 `json:"passed"`
}

// Check inspects a composition's price histories without modifying them.
// ⭐ SSOT: S0 → risk 입력 품질 검증
func Check(comp *contracts.PortfolioComposition, cfg Config) *Report {
	report := &Report{Passed: true}
	if comp == nil || len(comp.Positions) == 0 {
		report.Passed = false
		report.Warnings = append(report.Warnings, "portfolio has no positions")
		return report
	}

	field := comp.PriceField
	if field == "" {
		field = contracts.FieldClose
	}
	report.AsOf = comp.AsOf
	report.PriceField = field

	var common map[time.Time]bool
	longest := 0
	stalest := 0

	for _, pos := range comp.Positions {
		aq, days := inspect(pos.Series, field, comp.AsOf)
		report.Assets = append(report.Assets, aq)

		if aq.Usable > longest {
			longest = aq.Usable
		}
		if aq.StaleDays > stalest {
			stalest = aq.StaleDays
		}

		if common == nil {
			common = days
		} else {
			for d := range common {
				if !days[d] {
					delete(common, d)
				}
			}
		}

		if aq.Usable < cfg.MinObservations {
			report.Passed = false
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s: %d usable prices, need %d", aq.Ticker, aq.Usable, cfg.MinObservations))
		}
		if aq.Missing > 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s: %d missing %s values skipped", aq.Ticker, aq.Missing, field))
		}
		if cfg.MaxStaleDays > 0 && aq.StaleDays > cfg.MaxStaleDays {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s: last price is %d days old", aq.Ticker, aq.StaleDays))
		}
	}

	report.CommonDates = len(common)
	for i := range report.Assets {
		if report.Assets[i].Usable > 0 {
			report.Assets[i].Coverage = float64(report.CommonDates) / float64(report.Assets[i].Usable)
		}
	}
	if longest > 0 {
		report.Coverage = float64(report.CommonDates) / float64(longest)
	}

	if report.CommonDates < 2 {
		report.Passed = false
		report.Warnings = append(report.Warnings, "fewer than 2 common trading days across positions")
	} else if report.Coverage < cfg.MinCoverage {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("only %.0f%% of the longest history is shared by all positions", report.Coverage*100))
	}

	report.Score = calculateScore(map[string]float64{
		"coverage":  report.Coverage,
		"history":   historyScore(report.Assets, cfg.MinObservations),
		"freshness": freshnessScore(stalest, cfg.MaxStaleDays),
	})

	return report
}

// inspect counts usable values and returns the set of usable days
func inspect(series contracts.AssetSeries, field contracts.PriceField, asOf time.Time) (AssetQuality, map[time.Time]bool) {
	aq := AssetQuality{Ticker: series.Ticker, Points: len(series.Points)}
	days := make(map[time.Time]bool, len(series.Points))

	for _, p := range series.Points {
		if _, ok := p.Value(field); !ok {
			aq.Missing++
			continue
		}
		d := dayOf(p.Date)
		if days[d] {
			continue
		}
		days[d] = true
		if aq.First.IsZero() || d.Before(aq.First) {
			aq.First = d
		}
		if d.After(aq.Last) {
			aq.Last = d
		}
	}
	aq.Usable = len(days)

	if !asOf.IsZero() && !aq.Last.IsZero() {
		aq.StaleDays = int(dayOf(asOf).Sub(aq.Last).Hours() / 24)
		if aq.StaleDays < 0 {
			aq.StaleDays = 0
		}
	}
	return aq, days
}

// calculateScore calculates overall quality score using weighted average
func calculateScore(parts map[string]float64) float64 {
	// 가중치 (합계 = 1.0)
	weights := map[string]float64{
		"coverage":  0.50, // 공통 구간 비율
		"history":   0.30, // 이력 길이
		"freshness": 0.20, // 최신성
	}

	score := 0.0
	for key, weight := range weights {
		if v, exists := parts[key]; exists {
			score += math.Max(0, math.Min(1, v)) * weight
		}
	}
	return score
}

func historyScore(assets []AssetQuality, minObs int) float64 {
	if len(assets) == 0 {
		return 0
	}
	if minObs <= 0 {
		return 1
	}
	shortest := assets[0].Usable
	for _, a := range assets[1:] {
		if a.Usable < shortest {
			shortest = a.Usable
		}
	}
	return float64(shortest) / float64(minObs)
}

func freshnessScore(stalest, maxStale int) float64 {
	if maxStale <= 0 || stalest <= maxStale {
		return 1
	}
	return float64(maxStale) / float64(stalest)
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
