package collector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/pkg/logger"
)

var today = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type memStore struct {
	mu     sync.Mutex
	latest map[string]time.Time
	saved  map[string]int
}

func newMemStore() *memStore {
	return &memStore{latest: map[string]time.Time{}, saved: map[string]int{}}
}

func (s *memStore) GetHistory(context.Context, string, time.Time, time.Time) ([]contracts.PricePoint, error) {
	return nil, nil
}

func (s *memStore) SaveBatch(_ context.Context, ticker string, points []contracts.PricePoint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[ticker] += len(points)
	if len(points) > 0 {
		s.latest[ticker] = points[len(points)-1].Date
	}
	return len(points), nil
}

func (s *memStore) LatestDate(_ context.Context, ticker string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.latest[ticker]
	return d, ok, nil
}

type stubFetcher struct {
	mu    sync.Mutex
	from  map[string]time.Time
	fail  map[string]error
	empty bool
}

func (f *stubFetcher) FetchPrices(_ context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.from == nil {
		f.from = map[string]time.Time{}
	}
	f.from[ticker] = from
	if err := f.fail[ticker]; err != nil {
		return nil, err
	}
	if f.empty {
		return nil, contracts.ErrDataUnavailable
	}
	var out []contracts.PricePoint
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, contracts.PricePoint{Date: d, Close: 100, AdjClose: 100})
	}
	return out, nil
}

type recordingInvalidator struct {
	mu      sync.Mutex
	tickers []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, ticker string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickers = append(r.tickers, ticker)
	return nil
}

func newTestCollector(f *stubFetcher, s *memStore, inv Invalidator) *Collector {
	c := NewCollector(f, s, inv, logger.Nop())
	c.now = func() time.Time { return today }
	return c
}

func TestRefreshHistories_IncrementalFromLatest(t *testing.T) {
	store := newMemStore()
	store.latest["AAA"] = today.AddDate(0, 0, -3)
	fetcher := &stubFetcher{}
	inv := &recordingInvalidator{}

	c := newTestCollector(fetcher, store, inv)
	results, err := c.RefreshHistories(context.Background(), []string{"aaa", "BBB"}, Config{Workers: 2, InitialDays: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, today.AddDate(0, 0, -2), fetcher.from["AAA"], "resumes the day after the stored history")
	assert.Equal(t, today.AddDate(0, 0, -10), fetcher.from["BBB"], "new tickers use the initial window")
	assert.Equal(t, 3, store.saved["AAA"])
	assert.Equal(t, 11, store.saved["BBB"])

	sort.Strings(inv.tickers)
	assert.Equal(t, []string{"AAA", "BBB"}, inv.tickers)

	success, failed, prices := Summarize(results)
	assert.Equal(t, 2, success)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 14, prices)
}

func TestRefreshHistories_UpToDate(t *testing.T) {
	store := newMemStore()
	store.latest["AAA"] = today
	fetcher := &stubFetcher{}

	c := newTestCollector(fetcher, store, nil)
	results, err := c.RefreshHistories(context.Background(), []string{"AAA"}, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Error)
	assert.Zero(t, results[0].PriceCount)
	assert.Empty(t, fetcher.from, "nothing to fetch")
}

func TestRefreshHistories_NoNewTradingDay(t *testing.T) {
	store := newMemStore()
	store.latest["AAA"] = today.AddDate(0, 0, -2)
	fetcher := &stubFetcher{empty: true}

	c := newTestCollector(fetcher, store, nil)
	results, err := c.RefreshHistories(context.Background(), []string{"AAA"}, DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, results[0].Error)
}

func TestRefreshHistories_PerTickerFailure(t *testing.T) {
	fetcher := &stubFetcher{fail: map[string]error{"BAD": errors.New("boom")}}

	c := newTestCollector(fetcher, newMemStore(), nil)
	results, err := c.RefreshHistories(context.Background(), []string{"GOOD", "BAD"}, Config{Workers: 1})
	require.NoError(t, err)

	success, failed, _ := Summarize(results)
	assert.Equal(t, 1, success)
	assert.Equal(t, 1, failed)
	for _, r := range results {
		if r.Ticker == "BAD" {
			assert.ErrorContains(t, r.Error, "boom")
		}
	}
}

func TestRefreshHistories_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestCollector(&stubFetcher{}, newMemStore(), nil)
	results, err := c.RefreshHistories(ctx, []string{"AAA", "BBB"}, DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Error, context.Canceled)
	}
}

func TestRefreshHistories_Empty(t *testing.T) {
	c := newTestCollector(&stubFetcher{}, newMemStore(), nil)
	results, err := c.RefreshHistories(context.Background(), nil, DefaultConfig())
	assert.NoError(t, err)
	assert.Empty(t, results)
}
