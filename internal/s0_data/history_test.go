package s0_data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/pkg/logger"
	"github.com/wonny/mcrisk/pkg/redis"
)

func newTestService(store PriceStore, fetcher PriceFetcher, cache HistoryCache, now time.Time) *HistoryService {
	s := NewHistoryService(store, fetcher, cache, time.Hour, logger.Nop())
	s.now = func() time.Time { return now }
	return s
}

func TestPriceHistory_StoreHitSkipsFetch(t *testing.T) {
	store := newFakeStore()
	store.points["AAPL"] = dailyPoints(day0, 30, 100)
	fetcher := &fakeFetcher{}

	to := day0.AddDate(0, 0, 29)
	s := newTestService(store, fetcher, nil, to)

	points, err := s.PriceHistory(context.Background(), " aapl ", day0, to)
	require.NoError(t, err)
	assert.Len(t, points, 30)
	assert.Equal(t, 0, fetcher.calls)
}

func TestPriceHistory_FetchAndSaveThrough(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{data: map[string][]contracts.PricePoint{
		"AAPL": dailyPoints(day0, 10, 100),
	}}

	to := day0.AddDate(0, 0, 9)
	s := newTestService(store, fetcher, nil, to)

	points, err := s.PriceHistory(context.Background(), "AAPL", day0, to)
	require.NoError(t, err)
	assert.Len(t, points, 10)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 10, store.saved["AAPL"])
}

func TestPriceHistory_StaleStoreFetchesIncrementally(t *testing.T) {
	store := newFakeStore()
	store.points["AAPL"] = dailyPoints(day0, 10, 100)
	fetcher := &fakeFetcher{data: map[string][]contracts.PricePoint{
		"AAPL": dailyPoints(day0, 20, 100),
	}}

	to := day0.AddDate(0, 0, 19)
	s := newTestService(store, fetcher, nil, to)

	points, err := s.PriceHistory(context.Background(), "AAPL", day0, to)
	require.NoError(t, err)
	assert.Len(t, points, 20)

	require.Len(t, fetcher.ranges, 1)
	assert.Equal(t, day0.AddDate(0, 0, 10), fetcher.ranges[0][0], "fetch resumes after last stored day")
	assert.Equal(t, 10, store.saved["AAPL"])
}

func TestPriceHistory_FetchErrorFallsBackToStore(t *testing.T) {
	store := newFakeStore()
	store.points["AAPL"] = dailyPoints(day0, 10, 100)
	fetcher := &fakeFetcher{err: errors.New("upstream down")}

	to := day0.AddDate(0, 0, 30)
	s := newTestService(store, fetcher, nil, to)

	points, err := s.PriceHistory(context.Background(), "AAPL", day0, to)
	require.NoError(t, err)
	assert.Len(t, points, 10)
	assert.Equal(t, 1, fetcher.calls)
}

func TestPriceHistory_NoDataAnywhere(t *testing.T) {
	s := newTestService(newFakeStore(), &fakeFetcher{}, nil, day0)

	_, err := s.PriceHistory(context.Background(), "NONE", day0.AddDate(0, 0, -10), day0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrDataUnavailable))
}

func TestPriceHistory_NoLayers(t *testing.T) {
	s := newTestService(nil, nil, nil, day0)

	_, err := s.PriceHistory(context.Background(), "AAPL", day0, day0)
	assert.True(t, errors.Is(err, contracts.ErrDataUnavailable))
}

func TestPriceHistory_CacheHit(t *testing.T) {
	store := newFakeStore()
	store.points["AAPL"] = dailyPoints(day0, 30, 100)
	cache := newFakeCache()

	to := day0.AddDate(0, 0, 29)
	s := newTestService(store, nil, cache, to)

	first, err := s.PriceHistory(context.Background(), "AAPL", day0, to)
	require.NoError(t, err)
	_, ok := cache.entries[redis.HistoryKey("AAPL")]
	require.True(t, ok, "history should be cached")

	// store 비워도 캐시에서 응답
	store.points["AAPL"] = nil
	second, err := s.PriceHistory(context.Background(), "AAPL", day0.AddDate(0, 0, 5), to)
	require.NoError(t, err)
	assert.Len(t, second, 25)
	assert.Equal(t, first[5].Close, second[0].Close)
}

func TestPriceHistory_CacheMissOnWiderWindow(t *testing.T) {
	store := newFakeStore()
	store.points["AAPL"] = dailyPoints(day0, 30, 100)
	cache := newFakeCache()

	to := day0.AddDate(0, 0, 29)
	s := newTestService(store, nil, cache, to)

	_, err := s.PriceHistory(context.Background(), "AAPL", day0.AddDate(0, 0, 10), to)
	require.NoError(t, err)

	// 캐시 범위보다 넓은 요청은 store로
	points, err := s.PriceHistory(context.Background(), "AAPL", day0, to)
	require.NoError(t, err)
	assert.Len(t, points, 30)
}

func TestInvalidate(t *testing.T) {
	cache := newFakeCache()
	s := newTestService(nil, nil, cache, day0)

	require.NoError(t, s.Invalidate(context.Background(), "aapl"))
	assert.Equal(t, []string{redis.HistoryKey("AAPL")}, cache.deleted)

	noCache := newTestService(nil, nil, nil, day0)
	assert.NoError(t, noCache.Invalidate(context.Background(), "AAPL"))
}

func TestMerge_LaterWins(t *testing.T) {
	a := dailyPoints(day0, 3, 100)
	b := []contracts.PricePoint{{Date: day0.AddDate(0, 0, 1).Add(9 * time.Hour), Close: 999}}

	merged := merge(a, b)
	require.Len(t, merged, 3)
	assert.Equal(t, 999.0, merged[1].Close)
	assert.True(t, merged[0].Date.Before(merged[2].Date))
}

func TestWindow(t *testing.T) {
	points := dailyPoints(day0, 10, 100)

	assert.Len(t, window(points, day0.AddDate(0, 0, 2), day0.AddDate(0, 0, 4)), 3)
	assert.Len(t, window(points, time.Time{}, day0.AddDate(0, 0, 4)), 5)
	assert.Empty(t, window(points, day0.AddDate(0, 0, 20), day0.AddDate(0, 0, 30)))
}
