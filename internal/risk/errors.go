package risk

import (
	"errors"
	"fmt"
)

// Sentinel errors
// ⭐ SSOT: 실행 실패는 모두 *SimulationError로 감싸서 반환, errors.Is로 판별
var (
	ErrInsufficientHistory = errors.New("insufficient price history")
	ErrEmptyReturnSet      = errors.New("empty return set after alignment")
	ErrNonPositiveDefinite = errors.New("covariance matrix is not positive definite")
	ErrEmptyPortfolio      = errors.New("empty portfolio")
	ErrInvalidHorizon      = errors.New("invalid horizon")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrCancelled           = errors.New("simulation cancelled")
	ErrInvalidPrice        = errors.New("invalid price")
)

// SimulationError describes where a run failed.
// Partial is set only for cancelled runs with ReturnPartialOnCancel.
type SimulationError struct {
	Stage   State
	Asset   string
	Err     error
	Partial *Summary
}

func (e *SimulationError) Error() string {
	if e.Asset != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Stage, e.Asset, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}

// fail wraps err unless it already carries a stage
func fail(stage State, asset string, err error) error {
	var se *SimulationError
	if errors.As(err, &se) {
		return err
	}
	return &SimulationError{Stage: stage, Asset: asset, Err: err}
}
