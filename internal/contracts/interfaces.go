package contracts

import (
	"context"
	"errors"
	"time"
)

// ErrDataUnavailable is returned when no source has history for a ticker
var ErrDataUnavailable = errors.New("price history unavailable")

// PriceHistoryProvider supplies daily price history
// ⭐ SSOT: 가격 이력 조회 인터페이스 (cache → DB → naver)
type PriceHistoryProvider interface {
	PriceHistory(ctx context.Context, ticker string, from, to time.Time) ([]PricePoint, error)
}

// CompositionProvider builds the portfolio to simulate
// ⭐ SSOT: 보유 종목 + 가격 이력 조합 인터페이스
type CompositionProvider interface {
	Composition(ctx context.Context) (*PortfolioComposition, error)
}

// HoldingStore persists holdings
type HoldingStore interface {
	List(ctx context.Context) ([]Holding, error)
	Upsert(ctx context.Context, h Holding) error
	Delete(ctx context.Context, ticker string) (bool, error)
}
