package naver

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/mcrisk/pkg/config"
	"github.com/wonny/mcrisk/pkg/httputil"
	"github.com/wonny/mcrisk/pkg/logger"
)

// Client handles communication with Naver Finance
// ⭐ SSOT: Naver Finance 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	chartURL   string
	maxPages   int
}

// NewClient creates a new Naver Finance client
func NewClient(httpClient *httputil.Client, cfg config.NaverConfig, log *logger.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://finance.naver.com"
	}
	chartURL := cfg.ChartURL
	if chartURL == "" {
		chartURL = "https://fchart.stock.naver.com/siseJson.naver"
	}

	httpClient.WithHeader("Referer", baseURL+"/")

	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "naver"),
		baseURL:    baseURL,
		chartURL:   chartURL,
		maxPages:   250, // sise_day 1페이지 = 10거래일
	}
}

// fetchHTML fetches a page from Naver Finance.
// Naver serves EUC-KR pages; only ASCII fields (dates, numbers) are read.
func (c *Client) fetchHTML(ctx context.Context, path string, params url.Values) (string, error) {
	fullURL := fmt.Sprintf("%s%s", c.baseURL, path)
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	body, err := c.httpClient.GetBytes(ctx, fullURL)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	return string(body), nil
}

// PriceData represents one daily bar from Naver
type PriceData struct {
	TradeDate time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}
