package risk

import (
	"sort"
	"sync"
)

// Aggregator collects batch outcomes from concurrent workers.
// Add order does not affect the summary.
type Aggregator struct {
	mu       sync.Mutex
	outcomes []float64
}

// NewAggregator preallocates room for capacity outcomes
func NewAggregator(capacity int) *Aggregator {
	if capacity < 0 {
		capacity = 0
	}
	return &Aggregator{outcomes: make([]float64, 0, capacity)}
}

// Add appends a completed batch
func (a *Aggregator) Add(batch []float64) {
	a.mu.Lock()
	a.outcomes = append(a.outcomes, batch...)
	a.mu.Unlock()
}

// Count returns the number of collected outcomes
func (a *Aggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.outcomes)
}

// Summarize sorts the outcomes once and computes the summary statistics.
// Risk figures are measured on terminal returns: outcome/initial - 1 in
// value mode, the outcome itself in return mode.
// Returns nil when nothing was collected.
func (a *Aggregator) Summarize(initialValue float64, mode Mode, keepDistribution bool) *Summary {
	a.mu.Lock()
	sorted := make([]float64, len(a.outcomes))
	copy(sorted, a.outcomes)
	a.mu.Unlock()

	n := len(sorted)
	if n == 0 {
		return nil
	}
	sort.Float64s(sorted)

	s := &Summary{
		Mode:            mode,
		InitialValue:    initialValue,
		EffectiveTrials: n,
		Mean:            Mean(sorted),
		StdDev:          StdDev(sorted),
		Median:          Percentile(sorted, 50),
		P5:              Percentile(sorted, 5),
		P95:             Percentile(sorted, 95),
		Min:             sorted[0],
		Max:             sorted[n-1],
		Percentiles:     make(map[int]float64, len(SummaryPercentiles)),
	}
	for _, p := range SummaryPercentiles {
		s.Percentiles[p] = Percentile(sorted, float64(p))
	}

	returns := terminalReturns(sorted, initialValue, mode)
	if returns != nil {
		v := CalculateVaR(returns, 0.95)
		s.VaR95 = v.VaR
		s.CVaR95 = v.CVaR

		losses := 0
		for _, r := range returns {
			if r < 0 {
				losses++
			}
		}
		s.ProbabilityLoss = float64(losses) / float64(n)
	}

	if keepDistribution {
		s.Distribution = sorted
	}
	return s
}

// terminalReturns converts outcomes to returns; nil when value mode has no
// initial value to compare against.
func terminalReturns(outcomes []float64, initialValue float64, mode Mode) []float64 {
	if mode == ModeReturn {
		return outcomes
	}
	if !(initialValue > 0) {
		return nil
	}
	returns := make([]float64, len(outcomes))
	for i, v := range outcomes {
		returns[i] = v/initialValue - 1
	}
	return returns
}
