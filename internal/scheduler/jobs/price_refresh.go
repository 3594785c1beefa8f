package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/internal/s0_data/collector"
	"github.com/wonny/mcrisk/pkg/logger"
)

// HoldingLister lists the held tickers to refresh
type HoldingLister interface {
	List(ctx context.Context) ([]contracts.Holding, error)
}

// PriceRefreshJob pulls new daily prices for every held ticker
// ⭐ SSOT: 가격 이력 갱신 스케줄은 이 Job에서만
type PriceRefreshJob struct {
	holdings  HoldingLister
	collector *collector.Collector
	schedule  string
	config    collector.Config
	logger    *logger.Logger
}

// NewPriceRefreshJob creates a new price refresh job
func NewPriceRefreshJob(holdings HoldingLister, col *collector.Collector, schedule string, cfg collector.Config, log *logger.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		holdings:  holdings,
		collector: col,
		schedule:  schedule,
		config:    cfg,
		logger:    log.WithField("job", "price_refresh"),
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Schedule returns the cron schedule (SCHEDULE_PRICE_REFRESH)
func (j *PriceRefreshJob) Schedule() string {
	return j.schedule
}

// Run refreshes histories. Fails only when no ticker could be refreshed.
func (j *PriceRefreshJob) Run(ctx context.Context) error {
	holdings, err := j.holdings.List(ctx)
	if err != nil {
		return fmt.Errorf("list holdings: %w", err)
	}
	if len(holdings) == 0 {
		j.logger.Info("No holdings to refresh")
		return nil
	}

	tickers := make([]string, len(holdings))
	for i, h := range holdings {
		tickers[i] = h.Ticker
	}

	results, err := j.collector.RefreshHistories(ctx, tickers, j.config)
	if err != nil {
		return fmt.Errorf("refresh histories: %w", err)
	}

	success, failed, prices := collector.Summarize(results)
	j.logger.WithFields(map[string]interface{}{
		"success": success,
		"failed":  failed,
		"prices":  prices,
	}).Info("Price refresh finished")

	if success == 0 && failed > 0 {
		return fmt.Errorf("all %d tickers failed, first: %s: %w", failed, results[0].Ticker, results[0].Error)
	}
	return nil
}
