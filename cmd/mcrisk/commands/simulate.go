package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/internal/risk"
	"github.com/wonny/mcrisk/internal/s0_data"
	"github.com/wonny/mcrisk/internal/s0_data/quality"
	"github.com/wonny/mcrisk/pkg/config"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Monte Carlo 포트폴리오 시뮬레이션",
	Long: `보유 종목(또는 --ticker/--qty)의 가격 이력으로 상관 Monte Carlo 시뮬레이션을 실행합니다.

기본값은 환경변수(MC_*)에서 읽고, 지정한 플래그만 덮어씁니다.
Ctrl+C로 중단하면 --partial 지정 시 완료된 배치의 통계를 출력합니다.

Example:
  go run ./cmd/mcrisk simulate
  go run ./cmd/mcrisk simulate --ticker 005930 --qty 10 --ticker 000660 --qty 3
  go run ./cmd/mcrisk simulate --horizon 2520 --trials 20000 --seed 42 --json`,
	RunE: runSimulate,
}

// simOptions holds simulate flags
type simOptions struct {
	horizon    int
	trials     int
	batch      int
	seed       int64
	workers    int
	mode       string
	lookback   int
	field      string
	partial    bool
	tickers    []string
	quantities []float64
	asJSON     bool
	quiet      bool
}

var simOpts simOptions

func init() {
	rootCmd.AddCommand(simulateCmd)

	f := simulateCmd.Flags()
	f.IntVar(&simOpts.horizon, "horizon", 0, "시뮬레이션 기간 (거래일, MC_HORIZON_DAYS)")
	f.IntVar(&simOpts.trials, "trials", 0, "시뮬레이션 횟수 (MC_TRIALS)")
	f.IntVar(&simOpts.batch, "batch", 0, "배치 크기 (MC_BATCH_SIZE)")
	f.Int64Var(&simOpts.seed, "seed", 0, "난수 seed (0 = 시계 기반)")
	f.IntVar(&simOpts.workers, "workers", 0, "동시 배치 수 (0 = GOMAXPROCS)")
	f.StringVar(&simOpts.mode, "mode", "", "결과 모드 value|return (MC_MODE)")
	f.IntVar(&simOpts.lookback, "lookback", 0, "추정 기간 (거래일, 0 = 전체)")
	f.StringVar(&simOpts.field, "field", "", "가격 필드 close|adj_close (MC_PRICE_FIELD)")
	f.BoolVar(&simOpts.partial, "partial", false, "중단 시 부분 통계 출력")
	f.StringSliceVar(&simOpts.tickers, "ticker", nil, "종목 코드 (반복 지정, DB 보유 종목 대신 사용)")
	f.Float64SliceVar(&simOpts.quantities, "qty", nil, "수량 (--ticker 순서대로)")
	f.BoolVar(&simOpts.asJSON, "json", false, "JSON 출력")
	f.BoolVarP(&simOpts.quiet, "quiet", "q", false, "진행률 출력 안 함")
}

// apply merges changed flags over the configured defaults
func (o simOptions) apply(base config.SimulationConfig, changed func(string) bool) (risk.Config, error) {
	cfg := risk.Config{
		HorizonDays:           base.HorizonDays,
		Trials:                base.Trials,
		BatchSize:             base.BatchSize,
		Seed:                  base.Seed,
		Workers:               base.Workers,
		Mode:                  risk.Mode(base.Mode),
		LookbackDays:          base.LookbackDays,
		PriceField:            contracts.PriceField(base.PriceField),
		ReturnPartialOnCancel: base.PartialOnCancel,
	}

	if changed("horizon") {
		cfg.HorizonDays = o.horizon
	}
	if changed("trials") {
		cfg.Trials = o.trials
	}
	if changed("batch") {
		cfg.BatchSize = o.batch
	}
	if changed("seed") {
		cfg.Seed = o.seed
	}
	if changed("workers") {
		cfg.Workers = o.workers
	}
	if changed("mode") {
		cfg.Mode = risk.Mode(o.mode)
	}
	if changed("lookback") {
		cfg.LookbackDays = o.lookback
	}
	if changed("field") {
		cfg.PriceField = contracts.PriceField(o.field)
	}
	if changed("partial") {
		cfg.ReturnPartialOnCancel = o.partial
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// configDefaults maps the configured defaults without flag overrides
func configDefaults(base config.SimulationConfig) (risk.Config, error) {
	return simOptions{}.apply(base, func(string) bool { return false })
}

// inlineHoldings pairs --ticker and --qty flags
func inlineHoldings(tickers []string, quantities []float64) ([]contracts.Holding, error) {
	if len(tickers) != len(quantities) {
		return nil, fmt.Errorf("--ticker and --qty must be given the same number of times (%d vs %d)", len(tickers), len(quantities))
	}
	holdings := make([]contracts.Holding, len(tickers))
	for i, t := range tickers {
		h := contracts.Holding{Ticker: s0_data.NormalizeTicker(t), Quantity: quantities[i]}
		if err := s0_data.ValidateHolding(h); err != nil {
			return nil, fmt.Errorf("holding %d: %w", i+1, err)
		}
		holdings[i] = h
	}
	return holdings, nil
}

// simulationOutput is the --json document
type simulationOutput struct {
	Summary   *risk.Summary         `json:"summary"`
	RiskCheck *risk.RiskCheckResult `json:"risk_check,omitempty"`
	Quality   *quality.Report       `json:"quality"`
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	inline := len(simOpts.tickers) > 0
	d, err := initDeps(ctx, !inline)
	if err != nil {
		return err
	}
	defer d.close()

	cfg, err := simOpts.apply(d.cfg.Simulation, cmd.Flags().Changed)
	if err != nil {
		return err
	}

	// 1. Composition
	loader := d.loader(cfg.PriceField, cfg.LookbackDays)
	var comp *contracts.PortfolioComposition
	if inline {
		holdings, err := inlineHoldings(simOpts.tickers, simOpts.quantities)
		if err != nil {
			return err
		}
		comp, err = loader.FromHoldings(ctx, holdings)
		if err != nil {
			return fmt.Errorf("load composition: %w", err)
		}
	} else {
		comp, err = loader.Composition(ctx)
		if err != nil {
			return fmt.Errorf("load composition: %w", err)
		}
	}

	// 2. History quality (경고만, 실패 판단은 엔진이 함)
	report := quality.Check(comp, quality.DefaultConfig())
	if !simOpts.asJSON {
		printQuality(errOut, report)
	}

	// 3. Run
	var opts []risk.Option
	if !simOpts.quiet {
		opts = append(opts, risk.WithProgress(func(batch, total int) {
			fmt.Fprintf(errOut, "\r[Simulate] batch %d/%d", batch, total)
			if batch == total {
				fmt.Fprintln(errOut)
			}
		}))
	}

	summary, err := d.engine.Run(ctx, comp, cfg, opts...)
	if err != nil {
		var simErr *risk.SimulationError
		if errors.As(err, &simErr) && simErr.Partial != nil {
			fmt.Fprintln(errOut)
			printSummary(out, simErr.Partial)
		}
		return err
	}

	check := d.engine.CheckLimits(summary, riskLimits(d.cfg.Simulation))

	if simOpts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(simulationOutput{Summary: summary, RiskCheck: check, Quality: report})
	}

	printSummary(out, summary)
	printRiskCheck(out, check)
	return nil
}
