package naver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// FetchDailyPricesHTML scrapes /item/sise_day.naver page by page (newest
// first) until a page ends before from or no further page exists.
func (c *Client) FetchDailyPricesHTML(ctx context.Context, ticker string, from, to time.Time) ([]PriceData, error) {
	var all []PriceData
	fromDay := truncateDay(from)

	for page := 1; page <= c.maxPages; page++ {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		params := url.Values{}
		params.Set("code", ticker)
		params.Set("page", strconv.Itoa(page))

		html, err := c.fetchHTML(ctx, "/item/sise_day.naver", params)
		if err != nil {
			return all, fmt.Errorf("fetch sise_day page %d: %w", page, err)
		}

		bars, oldest, hasMore := parseDailyHTML(html)
		all = append(all, bars...)

		// 기준일보다 이전 데이터면 종료
		if len(bars) == 0 || (!oldest.IsZero() && oldest.Before(fromDay)) || !hasMore {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(all),
	}).Debug("Fetched daily prices from HTML")
	return all, nil
}

var dailyDateRe = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)

// parseDailyHTML parses one sise_day page.
// 컬럼: 날짜 | 종가 | 전일비 | 시가 | 고가 | 저가 | 거래량
func parseDailyHTML(html string) ([]PriceData, time.Time, bool) {
	var bars []PriceData
	var oldest time.Time

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return bars, oldest, false
	}

	doc.Find("table.type2 tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		if !dailyDateRe.MatchString(dateText) {
			return
		}
		tradeDate, err := time.Parse("2006.01.02", dateText)
		if err != nil {
			return
		}

		bar := PriceData{
			TradeDate: tradeDate,
			Close:     parseNum(cells.Eq(1).Text()),
			Open:      parseNum(cells.Eq(3).Text()),
			High:      parseNum(cells.Eq(4).Text()),
			Low:       parseNum(cells.Eq(5).Text()),
			Volume:    int64(parseNum(cells.Eq(6).Text())),
		}
		if bar.Close <= 0 {
			return
		}
		bars = append(bars, bar)

		if oldest.IsZero() || tradeDate.Before(oldest) {
			oldest = tradeDate
		}
	})

	// 다음 페이지 존재 여부 확인
	hasMore := doc.Find(".pgRR").Length() > 0
	return bars, oldest, hasMore
}

func parseNum(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return 0
	}
	n, _ := strconv.ParseFloat(s, 64)
	return n
}
