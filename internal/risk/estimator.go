package risk

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// EstimationResult holds drift and covariance of daily log returns.
// Shapes: N assets; Mean N; Covariance N×N; LastPrices N.
type EstimationResult struct {
	Tickers      []string      `json:"tickers"`
	Mean         []float64     `json:"mean"`
	Covariance   *mat.SymDense `json:"-"`
	LastPrices   []float64     `json:"last_prices"`  // 종목별 최신 유효 가격 = S₀
	Observations int           `json:"observations"` // 수익률 개수
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
}

// minObservations 표본 공분산 (n-1) 계산에 필요한 최소 수익률 개수
const minObservations = 2

// Estimate computes the per-asset mean log return and the sample
// covariance (n-1 denominator). Pure.
func Estimate(aligned *AlignedPrices) (*EstimationResult, error) {
	if aligned == nil || len(aligned.Tickers) == 0 {
		return nil, ErrEmptyPortfolio
	}

	n := len(aligned.Tickers)
	obs := aligned.Observations()
	if obs < minObservations {
		return nil, &SimulationError{
			Stage: StateEstimating,
			Asset: shortestAsset(aligned),
			Err: fmt.Errorf("%w: %d common returns across %d assets, need %d",
				ErrEmptyReturnSet, obs, n, minObservations),
		}
	}

	// T×N 수익률 행렬 (행=관측, 열=종목)
	returns := mat.NewDense(obs, n, nil)
	mean := make([]float64, n)
	last := make([]float64, n)
	for j, ticker := range aligned.Tickers {
		r, err := LogReturns(aligned.Prices[j])
		if err != nil {
			return nil, &SimulationError{Stage: StateEstimating, Asset: ticker, Err: err}
		}
		returns.SetCol(j, r)
		mean[j] = stat.Mean(r, nil)
		last[j] = latestPrice(aligned, j)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, returns, nil)

	return &EstimationResult{
		Tickers:      append([]string(nil), aligned.Tickers...),
		Mean:         mean,
		Covariance:   &cov,
		LastPrices:   last,
		Observations: obs,
		Start:        aligned.Dates[0],
		End:          aligned.Dates[len(aligned.Dates)-1],
	}, nil
}

// latestPrice is S₀ for asset j: its own most recent usable price, not the
// last common date (a halted asset must not drag the others back in time).
func latestPrice(aligned *AlignedPrices, j int) float64 {
	if j < len(aligned.Latest) && validPrice(aligned.Latest[j]) {
		return aligned.Latest[j]
	}
	return aligned.Prices[j][len(aligned.Prices[j])-1]
}

// shortestAsset names the asset with the fewest usable prices before
// alignment; it is the most likely cause of an empty intersection.
func shortestAsset(aligned *AlignedPrices) string {
	if aligned.Shortest != "" {
		return aligned.Shortest
	}
	return aligned.Tickers[0]
}
