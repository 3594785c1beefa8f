package s0_data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/pkg/logger"
)

// HoldingLister lists stored holdings
type HoldingLister interface {
	List(ctx context.Context) ([]contracts.Holding, error)
}

// maxHistoryYears 전체 이력 요청 (lookback 0) 시 조회 상한
const maxHistoryYears = 20

// loadConcurrency 종목별 이력 동시 조회 수
const loadConcurrency = 4

// CompositionLoader assembles holdings and their price histories into a
// contracts.PortfolioComposition.
// ⭐ SSOT: 보유 종목 + 가격 이력 조립은 여기서만 (risk는 조립된 입력만 받음)
type CompositionLoader struct {
	holdings HoldingLister
	history  contracts.PriceHistoryProvider
	field    contracts.PriceField
	lookback int
	logger   *logger.Logger
	now      func() time.Time
}

// NewCompositionLoader creates a loader. holdings may be nil when only
// FromHoldings is used.
func NewCompositionLoader(holdings HoldingLister, history contracts.PriceHistoryProvider, field contracts.PriceField, lookback int, log *logger.Logger) *CompositionLoader {
	return &CompositionLoader{
		holdings: holdings,
		history:  history,
		field:    field,
		lookback: lookback,
		logger:   log.WithField("module", "loader"),
		now:      time.Now,
	}
}

// Composition implements contracts.CompositionProvider using stored holdings
func (l *CompositionLoader) Composition(ctx context.Context) (*contracts.PortfolioComposition, error) {
	if l.holdings == nil {
		return nil, fmt.Errorf("no holding store configured")
	}
	holdings, err := l.holdings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	return l.FromHoldings(ctx, holdings)
}

// FromHoldings loads the history window for each holding.
// Positions keep the holdings' order.
func (l *CompositionLoader) FromHoldings(ctx context.Context, holdings []contracts.Holding) (*contracts.PortfolioComposition, error) {
	from, to := HistoryWindow(l.lookback, l.now())

	positions := make([]contracts.Position, len(holdings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)

	for i, h := range holdings {
		i, h := i, h
		g.Go(func() error {
			ticker := NormalizeTicker(h.Ticker)
			points, err := l.history.PriceHistory(gctx, ticker, from, to)
			if err != nil {
				return fmt.Errorf("history %s: %w", ticker, err)
			}
			positions[i] = contracts.Position{
				Series:     contracts.AssetSeries{Ticker: ticker, Points: points},
				Quantity:   h.Quantity,
				AssetClass: classified(h.AssetClass),
				Sector:     classified(h.Sector),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.WithFields(map[string]interface{}{
		"positions": len(positions),
		"from":      from.Format("2006-01-02"),
		"to":        to.Format("2006-01-02"),
	}).Info("Composition loaded")

	return &contracts.PortfolioComposition{
		Positions:  positions,
		PriceField: l.field,
		AsOf:       to,
	}, nil
}

// HistoryWindow converts a lookback in trading days into a calendar window
// ending at now. 252 거래일 ≈ 365 일, 휴장일 여유 30일 추가.
func HistoryWindow(lookback int, now time.Time) (time.Time, time.Time) {
	to := dayOf(now)
	if lookback <= 0 {
		return to.AddDate(-maxHistoryYears, 0, 0), to
	}
	days := lookback*365/252 + 30
	return to.AddDate(0, 0, -days), to
}

// classified maps the store's UNKNOWN placeholder back to empty
func classified(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "unknown") {
		return ""
	}
	return s
}
