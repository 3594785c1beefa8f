package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// pivotTolerance is relative to max(1, largest diagonal entry)
const pivotTolerance = 1e-12

// Factorize returns the lower-triangular L with L·Lᵀ = cov
// (Cholesky–Banachiewicz, row by row, O(N³)).
//
// A pivot at or below tolerance fails with ErrNonPositiveDefinite naming
// the asset of that row: duplicated or perfectly correlated assets and
// zero-variance series are reported, never regularized into zero risk.
// gonum's mat.Cholesky only reports success as a bool, so the row is
// tracked here.
func Factorize(cov *mat.SymDense, tickers []string) (*mat.TriDense, error) {
	if cov == nil {
		return nil, ErrEmptyPortfolio
	}
	n := cov.SymmetricDim()
	if n == 0 {
		return nil, ErrEmptyPortfolio
	}
	if len(tickers) != n {
		return nil, fmt.Errorf("%w: %d tickers for %d×%d covariance", ErrInvalidConfig, len(tickers), n, n)
	}

	maxDiag := 1.0
	for i := 0; i < n; i++ {
		if d := cov.At(i, i); d > maxDiag {
			maxDiag = d
		}
	}
	tol := pivotTolerance * maxDiag

	l := mat.NewTriDense(n, mat.Lower, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := 0.0
			for k := 0; k < j; k++ {
				sum += l.At(i, k) * l.At(j, k)
			}

			if i == j {
				pivot := cov.At(i, i) - sum
				if !(pivot > tol) || math.IsNaN(pivot) {
					return nil, &SimulationError{
						Stage: StateFactorizing,
						Asset: tickers[i],
						Err:   fmt.Errorf("%w: pivot %.3g at row %d", ErrNonPositiveDefinite, pivot, i),
					}
				}
				l.SetTri(i, i, math.Sqrt(pivot))
				continue
			}

			l.SetTri(i, j, (cov.At(i, j)-sum)/l.At(j, j))
		}
	}

	return l, nil
}

// DiagonalFactor builds L = diag(sigmas) for uncorrelated assets.
// Zero entries are allowed (deterministic paths).
func DiagonalFactor(sigmas []float64) *mat.TriDense {
	if len(sigmas) == 0 {
		return nil
	}
	l := mat.NewTriDense(len(sigmas), mat.Lower, nil)
	for i, s := range sigmas {
		l.SetTri(i, i, s)
	}
	return l
}
