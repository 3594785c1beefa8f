package s0_data

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wonny/mcrisk/internal/contracts"
)

// fakeStore is an in-memory PriceStore
type fakeStore struct {
	mu      sync.Mutex
	points  map[string][]contracts.PricePoint
	saved   map[string]int
	readErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		points: make(map[string][]contracts.PricePoint),
		saved:  make(map[string]int),
	}
}

func (s *fakeStore) GetHistory(_ context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return window(s.points[ticker], from, to), nil
}

func (s *fakeStore) SaveBatch(_ context.Context, ticker string, points []contracts.PricePoint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[ticker] = merge(s.points[ticker], points)
	s.saved[ticker] += len(points)
	return len(points), nil
}

func (s *fakeStore) LatestDate(_ context.Context, ticker string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.points[ticker]
	if len(p) == 0 {
		return time.Time{}, false, nil
	}
	return p[len(p)-1].Date, true, nil
}

// fakeFetcher serves a fixed history per ticker and records requests
type fakeFetcher struct {
	mu     sync.Mutex
	data   map[string][]contracts.PricePoint
	err    error
	calls  int
	ranges [][2]time.Time
}

func (f *fakeFetcher) FetchPrices(_ context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ranges = append(f.ranges, [2]time.Time{from, to})
	if f.err != nil {
		return nil, f.err
	}
	out := window(f.data[ticker], from, to)
	if len(out) == 0 {
		return nil, contracts.ErrDataUnavailable
	}
	return out, nil
}

// fakeCache stores JSON like redis.Cache does
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deleted = append(c.deleted, key)
	return nil
}

var day0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// dailyPoints builds n consecutive calendar days of prices starting at start
func dailyPoints(start time.Time, n int, price float64) []contracts.PricePoint {
	out := make([]contracts.PricePoint, n)
	for i := range out {
		p := price + float64(i)
		out[i] = contracts.PricePoint{Date: start.AddDate(0, 0, i), Close: p, AdjClose: p}
	}
	return out
}
