package risk

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// ctxCheckEvery 배치 내부 취소 확인 주기 (trial 단위)
const ctxCheckEvery = 1024

// Simulator generates correlated daily log-return paths.
// All fields are read-only after construction; one Simulator is shared by
// every worker, each worker brings its own *rand.Rand.
type Simulator struct {
	n          int
	mean       []float64
	factor     *mat.TriDense
	initial    []float64
	quantities []float64
	weights    []float64
	horizon    int
	mode       Mode
}

// NewSimulator validates parameters and derives value weights
// w_i = q_i·S₀_i / Σ q·S₀.
func NewSimulator(p Parameters, horizon int, mode Mode) (*Simulator, error) {
	if asset, err := p.validate(); err != nil {
		return nil, &SimulationError{Stage: StateSimulating, Asset: asset, Err: err}
	}
	if horizon < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizon)
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	total := p.InitialValue()
	if !(total > 0) {
		return nil, fmt.Errorf("%w: total value is 0", ErrEmptyPortfolio)
	}

	n := len(p.Tickers)
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = p.Quantities[i] * p.InitialPrices[i] / total
	}

	return &Simulator{
		n:          n,
		mean:       append([]float64(nil), p.Mean...),
		factor:     p.Factor,
		initial:    append([]float64(nil), p.InitialPrices...),
		quantities: append([]float64(nil), p.Quantities...),
		weights:    weights,
		horizon:    horizon,
		mode:       mode,
	}, nil
}

// Weights returns a copy of the derived value weights
func (s *Simulator) Weights() []float64 {
	return append([]float64(nil), s.weights...)
}

// pathState is per-worker scratch space, O(N)
type pathState struct {
	z      *mat.VecDense
	c      *mat.VecDense
	prices []float64
}

func (s *Simulator) newPathState() *pathState {
	return &pathState{
		z:      mat.NewVecDense(s.n, nil),
		c:      mat.NewVecDense(s.n, nil),
		prices: make([]float64, s.n),
	}
}

// SimulateBatch fills out with len(out) terminal outcomes.
// Memory is O(len(out) + N); no per-day state is retained.
func (s *Simulator) SimulateBatch(ctx context.Context, rng *rand.Rand, out []float64) error {
	st := s.newPathState()
	for k := range out {
		if k%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		out[k] = s.simulatePath(rng, st, nil)
	}
	return nil
}

// simulatePath runs one trial over the horizon.
// Per day: z ~ N(0,1)^N, c = L·z + μ, S_i *= exp(c_i), cum += c·w.
// observe, when set, sees the prices after every day.
func (s *Simulator) simulatePath(rng *rand.Rand, st *pathState, observe func(day int, prices []float64)) float64 {
	copy(st.prices, s.initial)
	cumLog := 0.0

	for day := 0; day < s.horizon; day++ {
		for i := 0; i < s.n; i++ {
			st.z.SetVec(i, rng.NormFloat64())
		}
		st.c.MulVec(s.factor, st.z)

		for i := 0; i < s.n; i++ {
			ci := st.c.AtVec(i) + s.mean[i]
			st.prices[i] *= math.Exp(ci)
			cumLog += ci * s.weights[i]
		}

		if observe != nil {
			observe(day, st.prices)
		}
	}

	if s.mode == ModeReturn {
		return math.Exp(cumLog) - 1
	}

	value := 0.0
	for i := 0; i < s.n; i++ {
		value += s.quantities[i] * st.prices[i]
	}
	return value
}
