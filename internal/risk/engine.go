package risk

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/mcrisk/internal/contracts"
)

// =============================================================================
// Engine - 시뮬레이션 오케스트레이터
// =============================================================================

// Engine runs correlated Monte Carlo projections
// ⭐ SSOT: 데이터 수집/보유 종목 조립은 상위 레이어(s0_data)에서, risk는 계산만
// Engine holds no per-run state and is safe for concurrent runs.
type Engine struct {
	log zerolog.Logger
	now func() time.Time
}

// NewEngine creates an engine logging through log
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "risk").Logger(),
		now: time.Now,
	}
}

// Option configures a single run
type Option func(*runOptions)

type runOptions struct {
	progress ProgressFunc
	state    StateFunc
}

// WithProgress registers a batch progress observer
func WithProgress(fn ProgressFunc) Option {
	return func(o *runOptions) { o.progress = fn }
}

// WithStateObserver registers a state transition observer
func WithStateObserver(fn StateFunc) Option {
	return func(o *runOptions) { o.state = fn }
}

// run carries the mutable bookkeeping of one execution
type run struct {
	id      string
	cfg     Config
	opts    runOptions
	log     zerolog.Logger
	state   State
	started time.Time
}

func (r *run) transition(to State) {
	r.log.Debug().Str("from", string(r.state)).Str("to", string(to)).Msg("State transition")
	r.state = to
	if r.opts.state != nil {
		r.opts.state(to)
	}
}

// failed moves to Failed and returns err wrapped with the stage it happened in
func (r *run) failed(stage State, asset string, err error) error {
	err = fail(stage, asset, err)
	r.log.Warn().Err(err).Str("stage", string(stage)).Msg("Simulation failed")
	r.transition(StateFailed)
	return err
}

func (e *Engine) newRun(cfg Config, opts []Option) *run {
	r := &run{
		id:      uuid.NewString(),
		cfg:     cfg,
		state:   StateIdle,
		started: e.now(),
	}
	for _, opt := range opts {
		opt(&r.opts)
	}
	r.log = e.log.With().Str("run_id", r.id).Logger()
	return r
}

// =============================================================================
// Run
// =============================================================================

// Run estimates parameters from the composition's history, factorizes the
// covariance and simulates cfg.EffectiveTrials() paths.
func (e *Engine) Run(ctx context.Context, comp *contracts.PortfolioComposition, cfg Config, opts ...Option) (*Summary, error) {
	r := e.newRun(cfg, opts)

	if err := cfg.Validate(); err != nil {
		return nil, r.failed(StateIdle, "", err)
	}
	if asset, err := ValidateComposition(comp); err != nil {
		return nil, r.failed(StateIdle, asset, err)
	}

	r.transition(StateEstimating)
	est, err := e.Estimate(comp, cfg)
	if err != nil {
		return nil, r.failed(StateEstimating, "", err)
	}
	r.log.Info().
		Int("assets", len(est.Tickers)).
		Int("observations", est.Observations).
		Time("from", est.Start).
		Time("to", est.End).
		Msg("Parameters estimated")

	r.transition(StateFactorizing)
	factor, err := Factorize(est.Covariance, est.Tickers)
	if err != nil {
		return nil, r.failed(StateFactorizing, "", err)
	}

	quantities := make([]float64, len(est.Tickers))
	for i, t := range est.Tickers {
		pos, _ := comp.GetPosition(t)
		quantities[i] = pos.Quantity
	}

	return e.simulate(ctx, r, Parameters{
		Tickers:       est.Tickers,
		Mean:          est.Mean,
		Factor:        factor,
		InitialPrices: est.LastPrices,
		Quantities:    quantities,
	})
}

// RunWithFactor simulates from caller-supplied parameters, skipping
// estimation and factorization (what-if scenarios, deterministic checks).
func (e *Engine) RunWithFactor(ctx context.Context, p Parameters, cfg Config, opts ...Option) (*Summary, error) {
	r := e.newRun(cfg, opts)

	if err := cfg.Validate(); err != nil {
		return nil, r.failed(StateIdle, "", err)
	}
	if asset, err := p.validate(); err != nil {
		return nil, r.failed(StateIdle, asset, err)
	}

	return e.simulate(ctx, r, p)
}

// Estimate cleans, aligns and estimates the composition's history
func (e *Engine) Estimate(comp *contracts.PortfolioComposition, cfg Config) (*EstimationResult, error) {
	field, ok := contracts.ParsePriceField(string(cfg.PriceField))
	if !ok {
		return nil, fmt.Errorf("%w: unknown price field %q", ErrInvalidConfig, cfg.PriceField)
	}

	series := make([]PriceSeries, len(comp.Positions))
	for i, pos := range comp.Positions {
		series[i] = CleanSeries(pos.Series, field)
		if dropped := pos.Series.Len() - len(series[i].Prices); dropped > 0 {
			e.log.Debug().Str("ticker", pos.Ticker()).Int("dropped", dropped).Msg("Dropped missing observations")
		}
	}

	aligned, err := AlignSeries(series, cfg.LookbackDays)
	if err != nil {
		return nil, err
	}
	return Estimate(aligned)
}

// ValidateComposition checks tickers and quantities before estimation
func ValidateComposition(comp *contracts.PortfolioComposition) (string, error) {
	if comp == nil || len(comp.Positions) == 0 {
		return "", ErrEmptyPortfolio
	}

	seen := make(map[string]struct{}, len(comp.Positions))
	anyHeld := false
	for _, pos := range comp.Positions {
		t := pos.Ticker()
		if t == "" {
			return "", fmt.Errorf("%w: position without ticker", ErrInvalidConfig)
		}
		if _, dup := seen[t]; dup {
			return t, fmt.Errorf("%w: duplicate ticker", ErrInvalidConfig)
		}
		seen[t] = struct{}{}
		if pos.Quantity < 0 {
			return t, fmt.Errorf("%w: negative quantity %v", ErrInvalidConfig, pos.Quantity)
		}
		if pos.Quantity > 0 {
			anyHeld = true
		}
	}
	if !anyHeld {
		return "", fmt.Errorf("%w: all quantities are zero", ErrEmptyPortfolio)
	}
	return "", nil
}

// =============================================================================
// Batched simulation
// =============================================================================

func (e *Engine) simulate(ctx context.Context, r *run, p Parameters) (*Summary, error) {
	cfg := r.cfg
	mode, _ := ParseMode(string(cfg.Mode))

	seed := cfg.Seed
	if seed == 0 {
		seed = e.now().UnixNano()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	batches := cfg.Batches()
	batchSize := cfg.BatchSize

	r.transition(StateSimulating)
	sim, err := NewSimulator(p, cfg.HorizonDays, mode)
	if err != nil {
		return nil, r.failed(StateSimulating, "", err)
	}

	r.log.Info().
		Int("assets", len(p.Tickers)).
		Int("horizon_days", cfg.HorizonDays).
		Int("trials", cfg.EffectiveTrials()).
		Int("batches", batches).
		Int("workers", workers).
		Int64("seed", seed).
		Str("mode", string(mode)).
		Msg("Simulation started")

	agg := NewAggregator(batches * batchSize)

	var (
		progressMu sync.Mutex
		completed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

dispatch:
	for b := 0; b < batches; b++ {
		// 취소/실패 시 남은 배치는 디스패치하지 않음
		select {
		case <-gctx.Done():
			break dispatch
		default:
		}

		batch := b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			// ⭐ 배치마다 독립 스트림: (seed, batch) → 워커 수와 무관하게 재현 가능
			rng := rand.New(rand.NewPCG(uint64(seed), uint64(batch)))
			out := make([]float64, batchSize)
			if err := sim.SimulateBatch(gctx, rng, out); err != nil {
				return err
			}
			agg.Add(out)

			progressMu.Lock()
			completed++
			if r.opts.progress != nil {
				r.opts.progress(completed, batches)
			}
			progressMu.Unlock()
			return nil
		})
	}

	waitErr := g.Wait()

	progressMu.Lock()
	done := completed
	progressMu.Unlock()

	// 모든 배치가 끝난 뒤 도착한 취소는 무시 (완료된 결과를 버리지 않음)
	if ctx.Err() != nil && done < batches {

		se := &SimulationError{
			Stage: StateSimulating,
			Err:   fmt.Errorf("%w after %d of %d batches: %w", ErrCancelled, done, batches, ctx.Err()),
		}
		if cfg.ReturnPartialOnCancel {
			if partial := agg.Summarize(p.InitialValue(), mode, cfg.IncludeDistribution); partial != nil {
				e.finish(r, partial, p, seed)
				partial.Partial = true
				se.Partial = partial
			}
		}
		r.log.Warn().Int("completed", done).Int("batches", batches).Msg("Simulation cancelled")
		r.transition(StateFailed)
		return nil, se
	}
	if waitErr != nil {
		return nil, r.failed(StateSimulating, "", waitErr)
	}

	r.transition(StateAggregating)
	summary := agg.Summarize(p.InitialValue(), mode, cfg.IncludeDistribution)
	if summary == nil {
		return nil, r.failed(StateAggregating, "", errors.New("no outcomes collected"))
	}
	e.finish(r, summary, p, seed)

	r.log.Info().
		Float64("mean", summary.Mean).
		Float64("median", summary.Median).
		Float64("p5", summary.P5).
		Float64("p95", summary.P95).
		Dur("duration", summary.Duration).
		Msg("Simulation completed")

	r.transition(StateDone)
	return summary, nil
}

// finish stamps run metadata on a summary
func (e *Engine) finish(r *run, s *Summary, p Parameters, seed int64) {
	s.RunID = r.id
	s.HorizonDays = r.cfg.HorizonDays
	s.Seed = seed
	s.RequestedTrials = r.cfg.Trials
	s.InitialValue = p.InitialValue()
	s.StartedAt = r.started
	s.Duration = e.now().Sub(r.started)
}

// =============================================================================
// Risk Check
// =============================================================================

// CheckLimits 리스크 한도 체크 (순수 계산)
// 0 이하의 한도는 검사하지 않음
func (e *Engine) CheckLimits(s *Summary, limits RiskLimits) *RiskCheckResult {
	result := &RiskCheckResult{
		Passed:     true,
		Limits:     limits,
		Violations: make([]string, 0),
		CheckedAt:  e.now(),
	}
	if s == nil {
		result.Passed = false
		result.Violations = append(result.Violations, "no simulation summary")
		return result
	}

	result.VaR95 = s.VaR95
	result.CVaR95 = s.CVaR95
	result.ProbLoss = s.ProbabilityLoss

	// VaR 한도 체크
	if limits.MaxVaR95 > 0 && s.VaR95 > limits.MaxVaR95 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("VaR95 %.4f exceeds limit %.4f", s.VaR95, limits.MaxVaR95))
	}

	// CVaR 한도 체크
	if limits.MaxCVaR95 > 0 && s.CVaR95 > limits.MaxCVaR95 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("CVaR95 %.4f exceeds limit %.4f", s.CVaR95, limits.MaxCVaR95))
	}

	// 손실 확률 체크
	if limits.MaxProbabilityLoss > 0 && s.ProbabilityLoss > limits.MaxProbabilityLoss {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("P(loss) %.4f exceeds limit %.4f", s.ProbabilityLoss, limits.MaxProbabilityLoss))
	}

	return result
}
