package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/internal/s0_data"
)

var holdingsCmd = &cobra.Command{
	Use:   "holdings",
	Short: "보유 종목 관리",
	Long: `portfolio.holdings 테이블의 보유 종목을 관리합니다.

Subcommands:
  add      - 보유 종목 추가/수정
  list     - 보유 종목 및 평가 금액
  remove   - 보유 종목 삭제
  weights  - 종목/섹터/자산군별 비중

Example:
  go run ./cmd/mcrisk holdings add 005930 10 --price 71000 --sector Tech --class equity
  go run ./cmd/mcrisk holdings weights --by sector`,
}

var (
	holdingsAddCmd = &cobra.Command{
		Use:   "add [ticker] [quantity]",
		Short: "보유 종목 추가/수정",
		Args:  cobra.ExactArgs(2),
		RunE:  runHoldingsAdd,
	}

	holdingsListCmd = &cobra.Command{
		Use:   "list",
		Short: "보유 종목 및 평가 금액",
		RunE:  runHoldingsList,
	}

	holdingsRemoveCmd = &cobra.Command{
		Use:   "remove [ticker]",
		Short: "보유 종목 삭제",
		Args:  cobra.ExactArgs(1),
		RunE:  runHoldingsRemove,
	}

	holdingsWeightsCmd = &cobra.Command{
		Use:   "weights",
		Short: "비중 리포트",
		RunE:  runHoldingsWeights,
	}
)

var (
	holdingPrice  float64
	holdingClass  string
	holdingSector string
	weightsBy     string
)

func init() {
	rootCmd.AddCommand(holdingsCmd)
	holdingsCmd.AddCommand(holdingsAddCmd)
	holdingsCmd.AddCommand(holdingsListCmd)
	holdingsCmd.AddCommand(holdingsRemoveCmd)
	holdingsCmd.AddCommand(holdingsWeightsCmd)

	holdingsAddCmd.Flags().Float64Var(&holdingPrice, "price", 0, "매입 단가")
	holdingsAddCmd.Flags().StringVar(&holdingClass, "class", "", "자산군 (equity, bond, ...)")
	holdingsAddCmd.Flags().StringVar(&holdingSector, "sector", "", "섹터")

	holdingsWeightsCmd.Flags().StringVar(&weightsBy, "by", "ticker", "그룹 기준 ticker|sector|asset_class")
}

func runHoldingsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	qty, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", args[1], err)
	}

	d, err := initDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.close()

	h := contracts.Holding{
		Ticker:        s0_data.NormalizeTicker(args[0]),
		Quantity:      qty,
		PurchasePrice: holdingPrice,
		AssetClass:    holdingClass,
		Sector:        holdingSector,
	}
	if err := d.holdings.Upsert(ctx, h); err != nil {
		return fmt.Errorf("save holding: %w", err)
	}

	PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Saved %s × %g", h.Ticker, h.Quantity))
	return nil
}

func runHoldingsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	d, err := initDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.close()

	holdings, err := d.holdings.List(ctx)
	if err != nil {
		return fmt.Errorf("list holdings: %w", err)
	}
	if len(holdings) == 0 {
		PrintWarning(out, "No holdings. Add one with: mcrisk holdings add <ticker> <quantity>")
		return nil
	}

	field := contracts.PriceField(d.cfg.Simulation.PriceField)
	widths := []int{10, 10, 14, 14, 14, 9, 12, 12}
	PrintTableHeader(out, []string{"TICKER", "QTY", "COST", "LAST", "VALUE", "RETURN", "CLASS", "SECTOR"}, widths)

	totalCost, totalValue := 0.0, 0.0
	for _, h := range holdings {
		last, ok := latestPrice(cmd, d, h.Ticker, field)
		lastStr, valueStr, retStr := "n/a", "n/a", "n/a"
		if ok {
			lastStr = formatMoney(last)
			valueStr = formatMoney(h.CurrentValue(last))
			retStr = formatPct(h.UnrealizedReturn(last))
			totalValue += h.CurrentValue(last)
		}
		totalCost += h.CostBasis()

		PrintTableRow(out, []string{
			h.Ticker,
			strconv.FormatFloat(h.Quantity, 'f', -1, 64),
			formatMoney(h.CostBasis()),
			lastStr,
			valueStr,
			retStr,
			h.AssetClass,
			h.Sector,
		}, widths)
	}

	PrintSeparator(out)
	PrintKeyValue(out, "Cost basis", formatMoney(totalCost), 12)
	PrintKeyValue(out, "Market value", formatMoney(totalValue), 12)
	return nil
}

// latestPrice reads the last stored price within the past month
func latestPrice(cmd *cobra.Command, d *deps, ticker string, field contracts.PriceField) (float64, bool) {
	to := time.Now()
	points, err := d.history.PriceHistory(cmd.Context(), ticker, to.AddDate(0, -1, 0), to)
	if err != nil {
		d.log.WithError(err).WithField("ticker", ticker).Debug("No recent price")
		return 0, false
	}
	return contracts.AssetSeries{Ticker: ticker, Points: points}.LastPrice(field)
}

func runHoldingsRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := initDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.close()

	ticker := s0_data.NormalizeTicker(args[0])
	removed, err := d.holdings.Delete(ctx, ticker)
	if err != nil {
		return fmt.Errorf("remove holding: %w", err)
	}
	if !removed {
		return fmt.Errorf("holding %s not found", ticker)
	}

	PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Removed %s", ticker))
	return nil
}

func runHoldingsWeights(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	by, ok := contracts.ParseGroupBy(weightsBy)
	if !ok {
		return fmt.Errorf("--by must be one of: ticker, sector, asset_class")
	}

	d, err := initDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.close()

	sim := d.cfg.Simulation
	comp, err := d.loader(contracts.PriceField(sim.PriceField), sim.LookbackDays).Composition(ctx)
	if err != nil {
		return fmt.Errorf("load composition: %w", err)
	}

	PrintHeader(out, fmt.Sprintf("Weights by %s (total %s)", by, formatMoney(comp.TotalValue())))
	printWeights(out, by, comp.WeightsBy(by))
	return nil
}
