package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/internal/s0_data"
	"github.com/wonny/mcrisk/pkg/logger"
)

// Invalidator drops cached history after a refresh (s0_data.HistoryService)
type Invalidator interface {
	Invalidate(ctx context.Context, ticker string) error
}

// Collector pulls price history from an external source into the store
// ⭐ SSOT: 가격 이력 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	fetcher s0_data.PriceFetcher
	store   s0_data.PriceStore
	cache   Invalidator
	logger  *logger.Logger
	now     func() time.Time
}

// Config holds collector configuration
type Config struct {
	Workers     int // Number of concurrent workers
	InitialDays int // 저장된 이력이 없을 때 조회 기간 (달력일)
}

// DefaultConfig 기본 수집 설정
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		InitialDays: 365 * 3,
	}
}

// NewCollector creates a new Collector instance. cache may be nil.
func NewCollector(fetcher s0_data.PriceFetcher, store s0_data.PriceStore, cache Invalidator, log *logger.Logger) *Collector {
	return &Collector{
		fetcher: fetcher,
		store:   store,
		cache:   cache,
		logger:  log.WithField("module", "collector"),
		now:     time.Now,
	}
}

// FetchResult represents the result of a fetch operation
type FetchResult struct {
	Ticker     string
	From       time.Time
	PriceCount int
	Error      error
}

// Summarize counts successes and failures
func Summarize(results []FetchResult) (success, failed, prices int) {
	for _, r := range results {
		if r.Error != nil {
			failed++
			continue
		}
		success++
		prices += r.PriceCount
	}
	return success, failed, prices
}

// RefreshHistories fetches new prices for every ticker, resuming from the
// day after the latest stored date.
func (c *Collector) RefreshHistories(ctx context.Context, tickers []string, cfg Config) ([]FetchResult, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.InitialDays <= 0 {
		cfg.InitialDays = DefaultConfig().InitialDays
	}

	c.logger.WithFields(map[string]interface{}{
		"tickers": len(tickers),
		"workers": cfg.Workers,
	}).Info("Starting price collection")

	results := make([]FetchResult, 0, len(tickers))
	resultCh := make(chan FetchResult, len(tickers))
	tickerCh := make(chan string, len(tickers))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.priceWorker(ctx, workerID, tickerCh, resultCh, cfg)
		}(i)
	}

	for _, t := range tickers {
		tickerCh <- s0_data.NormalizeTicker(t)
	}
	close(tickerCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for result := range resultCh {
		results = append(results, result)
	}

	success, failed, prices := Summarize(results)
	c.logger.WithFields(map[string]interface{}{
		"success": success,
		"failed":  failed,
		"prices":  prices,
	}).Info("Price collection completed")

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// priceWorker processes tickers until the channel is drained
func (c *Collector) priceWorker(ctx context.Context, workerID int, tickerCh <-chan string, resultCh chan<- FetchResult, cfg Config) {
	for ticker := range tickerCh {
		select {
		case <-ctx.Done():
			resultCh <- FetchResult{Ticker: ticker, Error: ctx.Err()}
			continue
		default:
		}

		resultCh <- c.refreshOne(ctx, workerID, ticker, cfg)
	}
}

func (c *Collector) refreshOne(ctx context.Context, workerID int, ticker string, cfg Config) FetchResult {
	to := c.now()
	from := to.AddDate(0, 0, -cfg.InitialDays)

	latest, ok, err := c.store.LatestDate(ctx, ticker)
	if err != nil {
		return FetchResult{Ticker: ticker, Error: fmt.Errorf("latest date: %w", err)}
	}
	if ok {
		from = latest.AddDate(0, 0, 1)
	}
	if from.After(to) {
		return FetchResult{Ticker: ticker, From: from}
	}

	points, err := c.fetcher.FetchPrices(ctx, ticker, from, to)
	if err != nil {
		// 최신 상태에서 새 거래일이 없으면 정상
		if ok && isNoData(err) {
			return FetchResult{Ticker: ticker, From: from}
		}
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"worker": workerID,
			"ticker": ticker,
		}).Error("Failed to fetch prices")
		return FetchResult{Ticker: ticker, From: from, Error: err}
	}

	saved, err := c.store.SaveBatch(ctx, ticker, points)
	if err != nil {
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"worker": workerID,
			"ticker": ticker,
		}).Error("Failed to save prices")
		return FetchResult{Ticker: ticker, From: from, PriceCount: saved, Error: err}
	}

	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, ticker); err != nil {
			c.logger.WithError(err).WithField("ticker", ticker).Warn("Failed to invalidate history cache")
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"worker": workerID,
		"ticker": ticker,
		"count":  saved,
	}).Debug("Fetched prices")

	return FetchResult{Ticker: ticker, From: from, PriceCount: saved}
}

func isNoData(err error) bool {
	return errors.Is(err, contracts.ErrDataUnavailable)
}
