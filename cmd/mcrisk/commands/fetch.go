package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/mcrisk/internal/s0_data/collector"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [tickers...]",
	Short: "가격 이력 수집 (naver → DB)",
	Long: `Naver Finance에서 일별 가격을 받아 data.daily_prices에 저장합니다.
저장된 마지막 거래일 다음 날부터 증분 수집하며, 종목을 지정하지 않으면 보유 종목 전체를 수집합니다.

Example:
  go run ./cmd/mcrisk fetch
  go run ./cmd/mcrisk fetch 005930 000660 --days 1825`,
	RunE: runFetch,
}

var (
	fetchWorkers int
	fetchDays    int
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	def := collector.DefaultConfig()
	fetchCmd.Flags().IntVar(&fetchWorkers, "workers", def.Workers, "동시 수집 종목 수")
	fetchCmd.Flags().IntVar(&fetchDays, "days", def.InitialDays, "이력이 없는 종목의 초기 수집 기간 (달력일)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	d, err := initDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.close()

	tickers := args
	if len(tickers) == 0 {
		holdings, err := d.holdings.List(ctx)
		if err != nil {
			return fmt.Errorf("list holdings: %w", err)
		}
		for _, h := range holdings {
			tickers = append(tickers, h.Ticker)
		}
	}
	if len(tickers) == 0 {
		PrintWarning(out, "Nothing to fetch: no tickers given and no holdings stored")
		return nil
	}

	PrintHeader(out, fmt.Sprintf("Fetch prices (%d tickers)", len(tickers)))

	results, err := d.collector().RefreshHistories(ctx, tickers, collector.Config{
		Workers:     fetchWorkers,
		InitialDays: fetchDays,
	})

	widths := []int{10, 12, 8, 40}
	PrintTableHeader(out, []string{"TICKER", "FROM", "PRICES", "ERROR"}, widths)
	for _, r := range results {
		from, errStr := "-", ""
		if !r.From.IsZero() {
			from = r.From.Format("2006-01-02")
		}
		if r.Error != nil {
			errStr = r.Error.Error()
		}
		PrintTableRow(out, []string{r.Ticker, from, strconv.Itoa(r.PriceCount), errStr}, widths)
	}

	success, failed, prices := collector.Summarize(results)
	PrintSeparator(out)
	PrintKeyValue(out, "Success", strconv.Itoa(success), 8)
	PrintKeyValue(out, "Failed", strconv.Itoa(failed), 8)
	PrintKeyValue(out, "Prices", strconv.Itoa(prices), 8)

	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tickers failed", failed, len(results))
	}
	return nil
}
