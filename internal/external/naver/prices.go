package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/mcrisk/internal/contracts"
)

// FetchPrices fetches daily closes for a ticker between from and to (inclusive).
// The chart API is tried first; the sise_day HTML pages are the fallback.
// ⭐ SSOT: Naver Finance 가격 조회는 이 함수에서만
func (c *Client) FetchPrices(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	bars, err := c.fetchChart(ctx, ticker, from, to)
	if err != nil || len(bars) == 0 {
		c.logger.WithFields(map[string]interface{}{
			"ticker": ticker,
			"error":  fmt.Sprint(err),
		}).Warn("Chart API returned nothing, falling back to daily HTML")

		bars, err = c.FetchDailyPricesHTML(ctx, ticker, from, to)
		if err != nil {
			return nil, err
		}
	}

	points := toPricePoints(bars, from, to)

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(points),
	}).Debug("Fetched prices")

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: naver has no prices for %s", contracts.ErrDataUnavailable, ticker)
	}
	return points, nil
}

// fetchChart calls the siseJson chart API
func (c *Client) fetchChart(ctx context.Context, ticker string, from, to time.Time) ([]PriceData, error) {
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("requestType", "1")
	params.Set("startTime", from.Format("20060102"))
	params.Set("endTime", to.Format("20060102"))
	params.Set("timeframe", "day")

	body, err := c.httpClient.GetBytes(ctx, c.chartURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	bars, err := c.parsePriceResponse(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse response failed: %w", err)
	}
	return bars, nil
}

// toPricePoints filters to [from, to], sorts by date and drops empty closes
func toPricePoints(bars []PriceData, from, to time.Time) []contracts.PricePoint {
	fromDay := truncateDay(from)
	toDay := truncateDay(to)

	points := make([]contracts.PricePoint, 0, len(bars))
	for _, b := range bars {
		if b.Close <= 0 {
			continue
		}
		if b.TradeDate.Before(fromDay) || b.TradeDate.After(toDay) {
			continue
		}
		// Naver 차트 종가는 수정주가 → adj_close에도 기록
		points = append(points, contracts.PricePoint{
			Date:     b.TradeDate,
			Close:    b.Close,
			AdjClose: b.Close,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parsePriceResponse parses the chart API body (JS-ish array)
func (c *Client) parsePriceResponse(body string) ([]PriceData, error) {
	body = strings.TrimSpace(body)
	body = strings.ReplaceAll(body, "'", "\"")

	// Try JSON parsing first
	var rawData [][]interface{}
	if err := json.Unmarshal([]byte(body), &rawData); err == nil {
		return c.parsePriceJSON(rawData)
	}

	// Fallback to regex parsing
	return c.parsePriceRegex(body)
}

// parsePriceJSON parses JSON array format
// 컬럼: 날짜 | 시가 | 고가 | 저가 | 종가 | 거래량 | (외국인소진율)
func (c *Client) parsePriceJSON(rawData [][]interface{}) ([]PriceData, error) {
	var prices []PriceData
	for i, row := range rawData {
		if i == 0 || len(row) < 6 {
			continue // Skip header
		}

		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		tradeDate, err := time.Parse("20060102", strings.TrimSpace(strings.Trim(dateStr, "\"")))
		if err != nil {
			continue
		}

		prices = append(prices, PriceData{
			TradeDate: tradeDate,
			Open:      toFloat64(row[1]),
			High:      toFloat64(row[2]),
			Low:       toFloat64(row[3]),
			Close:     toFloat64(row[4]),
			Volume:    int64(toFloat64(row[5])),
		})
	}
	return prices, nil
}

var priceRowRe = regexp.MustCompile(`\["(\d{8})",\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*([\d.]+)`)

// parsePriceRegex parses using regex (fallback)
func (c *Client) parsePriceRegex(body string) ([]PriceData, error) {
	matches := priceRowRe.FindAllStringSubmatch(body, -1)

	var prices []PriceData
	for _, match := range matches {
		tradeDate, err := time.Parse("20060102", match[1])
		if err != nil {
			continue
		}

		prices = append(prices, PriceData{
			TradeDate: tradeDate,
			Open:      toFloat64(match[2]),
			High:      toFloat64(match[3]),
			Low:       toFloat64(match[4]),
			Close:     toFloat64(match[5]),
			Volume:    int64(toFloat64(match[6])),
		})
	}
	return prices, nil
}

// toFloat64 converts JSON numbers and numeric strings ("72,500") to float64
func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(val), ",", "")
		n, _ := strconv.ParseFloat(s, 64)
		return n
	default:
		return 0
	}
}
