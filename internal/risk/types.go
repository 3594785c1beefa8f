package risk

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/mcrisk/internal/contracts"
)

// =============================================================================
// Run State
// =============================================================================

// State 시뮬레이션 실행 단계
type State string

const (
	StateIdle        State = "idle"
	StateEstimating  State = "estimating"
	StateFactorizing State = "factorizing"
	StateSimulating  State = "simulating"
	StateAggregating State = "aggregating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// StateFunc receives every state transition
type StateFunc func(State)

// ProgressFunc receives (completed batches, total batches) after each batch.
// Calls are serialized and the count is strictly increasing.
type ProgressFunc func(batch, total int)

// =============================================================================
// Simulation Config
// =============================================================================

// Mode 결과 측정 방식
type Mode string

const (
	ModeValue  Mode = "value"  // 최종 포트폴리오 가치 Σ q·S_T
	ModeReturn Mode = "return" // 누적 가중 로그수익률 → exp(Σ c·w) - 1
)

// ParseMode validates a mode name ("" = value)
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeValue:
		return ModeValue, nil
	case ModeReturn:
		return ModeReturn, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

// Config 시뮬레이션 설정
// ⭐ SSOT: 재현성을 위해 실제 사용된 Seed는 Summary에 기록
type Config struct {
	HorizonDays           int                  `json:"horizon_days"`             // 거래일 수 H
	Trials                int                  `json:"trials"`                   // 요청 시뮬레이션 횟수 T
	BatchSize             int                  `json:"batch_size"`               // 배치 크기 B
	Seed                  int64                `json:"seed"`                     // 0 = 시계 기반
	Workers               int                  `json:"workers"`                  // 0 이하 = GOMAXPROCS
	Mode                  Mode                 `json:"mode"`                     // value | return
	LookbackDays          int                  `json:"lookback_days"`            // 0 = 전체 정렬 이력
	PriceField            contracts.PriceField `json:"price_field"`              // close | adj_close
	IncludeDistribution   bool                 `json:"include_distribution"`     // 정렬된 결과 포함
	ReturnPartialOnCancel bool                 `json:"return_partial_on_cancel"` // 취소 시 부분 통계
}

// DefaultConfig 기본 설정 (15년, 10만 회)
func DefaultConfig() Config {
	return Config{
		HorizonDays:  252 * 15,
		Trials:       100000,
		BatchSize:    25000,
		Mode:         ModeValue,
		LookbackDays: 252,
		PriceField:   contracts.FieldClose,
	}
}

// Batches returns ⌊Trials/BatchSize⌋
func (c Config) Batches() int {
	if c.BatchSize <= 0 || c.Trials <= 0 {
		return 0
	}
	return c.Trials / c.BatchSize
}

// EffectiveTrials returns the number of trials actually simulated.
// 나머지 trial은 버림 (배치 단위로만 실행)
func (c Config) EffectiveTrials() int {
	return c.Batches() * c.BatchSize
}

// Validate 설정 유효성 검사
func (c Config) Validate() error {
	if c.HorizonDays < 1 {
		return fmt.Errorf("%w: horizon must be >= 1 day, got %d", ErrInvalidHorizon, c.HorizonDays)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be >= 1", ErrInvalidConfig)
	}
	if c.Trials < 1 {
		return fmt.Errorf("%w: trials must be >= 1", ErrInvalidConfig)
	}
	if c.EffectiveTrials() == 0 {
		return fmt.Errorf("%w: trials %d smaller than batch size %d", ErrInvalidConfig, c.Trials, c.BatchSize)
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.LookbackDays < 0 {
		return fmt.Errorf("%w: lookback must be >= 0", ErrInvalidConfig)
	}
	if _, ok := contracts.ParsePriceField(string(c.PriceField)); !ok {
		return fmt.Errorf("%w: unknown price field %q", ErrInvalidConfig, c.PriceField)
	}
	return nil
}

// =============================================================================
// Model Parameters
// =============================================================================

// Parameters are the read-only inputs of the path simulator.
// Shapes: N = len(Tickers); Mean N; Factor N×N lower; InitialPrices N; Quantities N.
type Parameters struct {
	Tickers       []string
	Mean          []float64     // 일별 로그수익률 평균 μ
	Factor        *mat.TriDense // Cholesky factor L (L·Lᵀ = Σ)
	InitialPrices []float64     // S₀
	Quantities    []float64     // q
}

// validate checks shapes and values
func (p Parameters) validate() (string, error) {
	n := len(p.Tickers)
	if n == 0 {
		return "", ErrEmptyPortfolio
	}
	if len(p.Mean) != n || len(p.InitialPrices) != n || len(p.Quantities) != n {
		return "", fmt.Errorf("%w: parameter length mismatch for %d assets", ErrInvalidConfig, n)
	}
	if p.Factor == nil {
		return "", fmt.Errorf("%w: missing factor", ErrInvalidConfig)
	}
	if r, _ := p.Factor.Dims(); r != n {
		return "", fmt.Errorf("%w: factor is %d×%d, want %d×%d", ErrInvalidConfig, r, r, n, n)
	}
	for i, t := range p.Tickers {
		if !validPrice(p.InitialPrices[i]) {
			return t, fmt.Errorf("%w: initial price %v", ErrInvalidPrice, p.InitialPrices[i])
		}
		if p.Quantities[i] < 0 {
			return t, fmt.Errorf("%w: negative quantity %v", ErrInvalidConfig, p.Quantities[i])
		}
	}
	return "", nil
}

// InitialValue returns Σ q·S₀
func (p Parameters) InitialValue() float64 {
	total := 0.0
	for i := range p.Quantities {
		total += p.Quantities[i] * p.InitialPrices[i]
	}
	return total
}

// =============================================================================
// Outcome Summary
// =============================================================================

// SummaryPercentiles 요약에 포함되는 백분위수
var SummaryPercentiles = []int{1, 5, 10, 25, 50, 75, 90, 95, 99}

// Summary 시뮬레이션 결과 요약
// ⭐ SSOT: 한 번 생성되면 변경하지 않음
// VaR95/CVaR95/ProbabilityOfLoss는 초기 가치 대비 최종 수익률 기준 (손실 양수)
type Summary struct {
	RunID           string          `json:"run_id"`
	Mode            Mode            `json:"mode"`
	HorizonDays     int             `json:"horizon_days"`
	Seed            int64           `json:"seed"`
	RequestedTrials int             `json:"requested_trials"`
	EffectiveTrials int             `json:"effective_trials"`
	Partial         bool            `json:"partial"`
	InitialValue    float64         `json:"initial_value"`
	Mean            float64         `json:"mean"`
	Median          float64         `json:"median"`
	StdDev          float64         `json:"std_dev"`
	P5              float64         `json:"p5"`
	P95             float64         `json:"p95"`
	Min             float64         `json:"min"`
	Max             float64         `json:"max"`
	Percentiles     map[int]float64 `json:"percentiles"`
	VaR95           float64         `json:"var_95"`
	CVaR95          float64         `json:"cvar_95"`
	ProbabilityLoss float64         `json:"probability_of_loss"`
	StartedAt       time.Time       `json:"started_at"`
	Duration        time.Duration   `json:"duration"`
	Distribution    []float64       `json:"distribution,omitempty"`
}

// =============================================================================
// VaR / Risk Check Types
// =============================================================================

// VaRConvention VaR 부호 규약
// ⭐ SSOT: Loss를 양수로 표현 (VaR=0.05 → 5% 손실 가능)
const VaRConvention = "loss_positive"

// VaRResult VaR 계산 결과
type VaRResult struct {
	Confidence float64 `json:"confidence"` // 신뢰수준 (예: 0.95, 0.99)
	VaR        float64 `json:"var"`        // Value at Risk (손실, 양수)
	CVaR       float64 `json:"cvar"`       // Conditional VaR (Expected Shortfall, 양수)
}

// RiskLimits 리스크 한도 (최종 수익률 분포 기준)
type RiskLimits struct {
	MaxVaR95           float64 `json:"max_var_95"`              // 최대 95% VaR (예: 0.30 = 30%)
	MaxCVaR95          float64 `json:"max_cvar_95"`             // 최대 95% CVaR
	MaxProbabilityLoss float64 `json:"max_probability_of_loss"` // 최대 손실 확률
}

// DefaultRiskLimits 기본 리스크 한도 (장기 horizon 기준)
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxVaR95:           0.30,
		MaxCVaR95:          0.40,
		MaxProbabilityLoss: 0.25,
	}
}

// RiskCheckResult 리스크 한도 체크 결과
type RiskCheckResult struct {
	Passed     bool       `json:"passed"`
	VaR95      float64    `json:"var_95"`
	CVaR95     float64    `json:"cvar_95"`
	ProbLoss   float64    `json:"probability_of_loss"`
	Limits     RiskLimits `json:"limits"`
	Violations []string   `json:"violations"`
	CheckedAt  time.Time  `json:"checked_at"`
}
