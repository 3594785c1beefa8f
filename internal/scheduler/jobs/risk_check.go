package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/internal/risk"
	"github.com/wonny/mcrisk/pkg/logger"
)

// RiskCheckJob simulates the stored portfolio and checks it against risk limits.
// 한도 위반은 작업 실패가 아니라 경고 로그로 남김
type RiskCheckJob struct {
	composition contracts.CompositionProvider
	engine      *risk.Engine
	config      risk.Config
	limits      risk.RiskLimits
	schedule    string
	logger      *logger.Logger

	mu   sync.RWMutex
	last *risk.RiskCheckResult
}

// NewRiskCheckJob creates a new risk check job
func NewRiskCheckJob(
	composition contracts.CompositionProvider,
	engine *risk.Engine,
	cfg risk.Config,
	limits risk.RiskLimits,
	schedule string,
	log *logger.Logger,
) *RiskCheckJob {
	return &RiskCheckJob{
		composition: composition,
		engine:      engine,
		config:      cfg,
		limits:      limits,
		schedule:    schedule,
		logger:      log.WithField("job", "risk_check"),
	}
}

// Name returns the job name
func (j *RiskCheckJob) Name() string {
	return "risk_check"
}

// Schedule returns the cron schedule
func (j *RiskCheckJob) Schedule() string {
	return j.schedule
}

// Run executes one projection and records the limit check
func (j *RiskCheckJob) Run(ctx context.Context) error {
	comp, err := j.composition.Composition(ctx)
	if err != nil {
		return fmt.Errorf("load composition: %w", err)
	}

	summary, err := j.engine.Run(ctx, comp, j.config)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	result := j.engine.CheckLimits(summary, j.limits)
	j.mu.Lock()
	j.last = result
	j.mu.Unlock()

	log := j.logger.WithFields(map[string]interface{}{
		"run_id":    summary.RunID,
		"var_95":    result.VaR95,
		"cvar_95":   result.CVaR95,
		"prob_loss": result.ProbLoss,
	})
	if !result.Passed {
		log.WithField("violations", result.Violations).Warn("Risk limits exceeded")
		return nil
	}
	log.Info("Risk limits OK")
	return nil
}

// LastResult returns the most recent check, nil before the first run
func (j *RiskCheckJob) LastResult() *risk.RiskCheckResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}
