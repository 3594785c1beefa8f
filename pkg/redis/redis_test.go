package redis

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/mcrisk/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewFromClient_Nil(t *testing.T) {
	client := NewFromClient(nil)
	if client.Enabled() {
		t.Error("Expected nil go-redis client to be treated as disabled")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, _ := New(cfg)
	limiter := NewRateLimiter(client, "test")

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), NaverRateLimit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if remaining != NaverRateLimit.Limit {
		t.Errorf("Expected remaining = %d, got %d", NaverRateLimit.Limit, remaining)
	}

	if err := limiter.Wait(context.Background(), NaverRateLimit); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestCache_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, _ := New(cfg)
	cache := NewCache(client, "test")
	ctx := context.Background()

	// When Redis is disabled, cache operations should be no-ops
	var result []float64
	found, err := cache.Get(ctx, HistoryKey("005930"), &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}

	if err := cache.Set(ctx, HistoryKey("005930"), []float64{1, 2}, TTLDaily); err != nil {
		t.Errorf("Set() error = %v", err)
	}
	if err := cache.Delete(ctx, HistoryKey("005930")); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestCache_GetOrSet_Disabled(t *testing.T) {
	client := NewFromClient(nil)
	cache := NewCache(client, "test")

	calls := 0
	var got []float64
	err := cache.GetOrSet(context.Background(), "k", &got, time.Minute, func() (interface{}, error) {
		calls++
		return []float64{100, 101.5}, nil
	})
	if err != nil {
		t.Fatalf("GetOrSet() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected loader to be called once, got %d", calls)
	}
	if len(got) != 2 || got[1] != 101.5 {
		t.Errorf("Expected loader value to be decoded into dest, got %v", got)
	}
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{
			name:     "HistoryKey",
			fn:       func() string { return HistoryKey("aapl") },
			expected: "history:AAPL",
		},
		{
			name:     "HoldingsKey",
			fn:       HoldingsKey,
			expected: "portfolio:holdings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
