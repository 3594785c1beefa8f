package commands

import (
	"context"
	"fmt"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/internal/external/naver"
	"github.com/wonny/mcrisk/internal/risk"
	"github.com/wonny/mcrisk/internal/s0_data"
	"github.com/wonny/mcrisk/internal/s0_data/collector"
	"github.com/wonny/mcrisk/pkg/config"
	"github.com/wonny/mcrisk/pkg/database"
	"github.com/wonny/mcrisk/pkg/httputil"
	"github.com/wonny/mcrisk/pkg/logger"
	"github.com/wonny/mcrisk/pkg/redis"
)

// deps holds everything a command may need.
// DB 관련 필드는 withDB일 때만 채워짐
type deps struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	redis  *redis.Client
	naver  *naver.Client
	engine *risk.Engine

	prices   *s0_data.PriceRepository
	holdings *s0_data.HoldingRepository
	history  *s0_data.HistoryService
}

// loadConfig loads config and applies global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// initDeps wires config, logger, redis, naver and (optionally) the database
func initDeps(ctx context.Context, withDB bool) (*deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg)

	d := &deps{
		cfg:    cfg,
		log:    log,
		engine: risk.NewEngine(log.Zerolog()),
	}

	// Redis (비활성화 시 no-op 클라이언트)
	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rc, _ = redis.New(&config.Config{})
	}
	d.redis = rc

	httpClient := httputil.New(cfg, log).
		WithRateLimiter(redis.NewRateLimiter(rc, "mcrisk"), redis.NaverRateLimit)
	d.naver = naver.NewClient(httpClient, cfg.Naver, log)

	// store는 DB 없이 nil 인터페이스로 남아야 함 (nil *PriceRepository 금지)
	var store s0_data.PriceStore
	if withDB {
		db, err := database.New(cfg)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			d.close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		d.db = db
		d.prices = s0_data.NewPriceRepository(db.Pool)
		d.holdings = s0_data.NewHoldingRepository(db.Pool)
		store = d.prices
	}

	cache := redis.NewCache(rc, "mcrisk")
	d.history = s0_data.NewHistoryService(store, d.naver, cache, cfg.Redis.HistoryTTL, log)

	return d, nil
}

func (d *deps) close() {
	if d.db != nil {
		d.db.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

// loader builds a composition loader for the given field/lookback
func (d *deps) loader(field contracts.PriceField, lookback int) *s0_data.CompositionLoader {
	var lister s0_data.HoldingLister
	if d.holdings != nil {
		lister = d.holdings
	}
	return s0_data.NewCompositionLoader(lister, d.history, field, lookback, d.log)
}

// collector builds a price collector writing into the database
func (d *deps) collector() *collector.Collector {
	return collector.NewCollector(d.naver, d.prices, d.history, d.log)
}

// riskLimits maps configured limits
func riskLimits(cfg config.SimulationConfig) risk.RiskLimits {
	return risk.RiskLimits{
		MaxVaR95:           cfg.MaxVaR95,
		MaxCVaR95:          cfg.MaxCVaR95,
		MaxProbabilityLoss: cfg.MaxProbabilityLoss,
	}
}
