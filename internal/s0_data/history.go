package s0_data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/pkg/logger"
	"github.com/wonny/mcrisk/pkg/redis"
)

// PriceStore is the persistent price history (PriceRepository)
type PriceStore interface {
	GetHistory(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error)
	SaveBatch(ctx context.Context, ticker string, points []contracts.PricePoint) (int, error)
	LatestDate(ctx context.Context, ticker string) (time.Time, bool, error)
}

// PriceFetcher downloads price history (naver.Client)
type PriceFetcher interface {
	FetchPrices(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error)
}

// HistoryCache is the subset of redis.Cache used here
type HistoryCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// staleAfter 저장된 마지막 거래일이 이보다 오래되면 외부에서 보충
const staleAfter = 4 * 24 * time.Hour

// cachedHistory is the cache payload: the window it was loaded for + points
type cachedHistory struct {
	From   time.Time              `json:"from"`
	To     time.Time              `json:"to"`
	Points []contracts.PricePoint `json:"points"`
}

func (c cachedHistory) covers(from, to time.Time) bool {
	return !c.From.After(from) && !c.To.Before(to)
}

// HistoryService implements contracts.PriceHistoryProvider:
// redis cache → database → naver (saved through to the database).
// Any layer may be nil.
type HistoryService struct {
	store   PriceStore
	fetcher PriceFetcher
	cache   HistoryCache
	ttl     time.Duration
	logger  *logger.Logger
	now     func() time.Time
}

var _ contracts.PriceHistoryProvider = (*HistoryService)(nil)

// NewHistoryService creates a layered history provider
func NewHistoryService(store PriceStore, fetcher PriceFetcher, cache HistoryCache, ttl time.Duration, log *logger.Logger) *HistoryService {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &HistoryService{
		store:   store,
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		logger:  log.WithField("module", "history"),
		now:     time.Now,
	}
}

// PriceHistory returns daily prices for ticker in [from, to], oldest first
func (s *HistoryService) PriceHistory(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	ticker = NormalizeTicker(ticker)
	key := redis.HistoryKey(ticker)

	// 1. Cache
	if s.cache != nil {
		var cached cachedHistory
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.WithError(err).WithField("ticker", ticker).Warn("History cache read failed")
		}
		if found && cached.covers(from, to) {
			if points := window(cached.Points, from, to); len(points) > 0 {
				return points, nil
			}
		}
	}

	// 2. Database
	var points []contracts.PricePoint
	if s.store != nil {
		stored, err := s.store.GetHistory(ctx, ticker, from, to)
		if err != nil {
			s.logger.WithError(err).WithField("ticker", ticker).Warn("History store read failed")
		}
		points = stored
	}

	// 3. Naver (부족하거나 오래된 구간만 보충)
	if s.fetcher != nil && s.needsFetch(points, from, to) {
		fetchFrom := from
		if len(points) > 0 && (from.IsZero() || !points[0].Date.After(from.Add(7*24*time.Hour))) {
			fetchFrom = points[len(points)-1].Date.AddDate(0, 0, 1)
		}

		fetched, err := s.fetcher.FetchPrices(ctx, ticker, fetchFrom, to)
		switch {
		case err != nil && len(points) == 0:
			return nil, fmt.Errorf("fetch %s: %w", ticker, err)
		case err != nil:
			s.logger.WithError(err).WithField("ticker", ticker).Warn("Fetch failed, using stored history")
		default:
			s.saveThrough(ctx, ticker, fetched)
			points = merge(points, fetched)
		}
	}

	points = window(points, from, to)
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", contracts.ErrDataUnavailable, ticker)
	}

	if s.cache != nil {
		payload := cachedHistory{From: from, To: to, Points: points}
		if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
			s.logger.WithError(err).WithField("ticker", ticker).Warn("History cache write failed")
		}
	}

	return points, nil
}

// Invalidate drops the cached history for ticker
func (s *HistoryService) Invalidate(ctx context.Context, ticker string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, redis.HistoryKey(NormalizeTicker(ticker)))
}

func (s *HistoryService) needsFetch(points []contracts.PricePoint, from, to time.Time) bool {
	if len(points) == 0 {
		return true
	}
	// 요청 시작일보다 한참 늦게 시작하는 이력 → 전체 재조회
	if !from.IsZero() && points[0].Date.After(from.Add(7*24*time.Hour)) {
		return true
	}
	end := to
	if now := s.now(); end.After(now) {
		end = now
	}
	return end.Sub(points[len(points)-1].Date) > staleAfter
}

func (s *HistoryService) saveThrough(ctx context.Context, ticker string, points []contracts.PricePoint) {
	if s.store == nil || len(points) == 0 {
		return
	}
	n, err := s.store.SaveBatch(ctx, ticker, points)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"ticker": ticker,
			"saved":  n,
		}).Warn("Failed to save fetched prices")
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"saved":  n,
	}).Debug("Saved fetched prices")
}

// merge combines two histories; b wins on duplicate days
func merge(a, b []contracts.PricePoint) []contracts.PricePoint {
	byDay := make(map[time.Time]contracts.PricePoint, len(a)+len(b))
	for _, p := range a {
		byDay[dayOf(p.Date)] = p
	}
	for _, p := range b {
		byDay[dayOf(p.Date)] = p
	}

	out := make([]contracts.PricePoint, 0, len(byDay))
	for _, p := range byDay {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// window keeps points with from <= date <= to (zero from = open)
func window(points []contracts.PricePoint, from, to time.Time) []contracts.PricePoint {
	fromDay, toDay := dayOf(from), dayOf(to)
	out := make([]contracts.PricePoint, 0, len(points))
	for _, p := range points {
		d := dayOf(p.Date)
		if !from.IsZero() && d.Before(fromDay) {
			continue
		}
		if d.After(toDay) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
