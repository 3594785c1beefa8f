package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/mcrisk/internal/api"
	"github.com/wonny/mcrisk/internal/api/handlers"
	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/internal/s0_data/quality"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST/WebSocket API 서버를 시작합니다.

Endpoints:
  GET  /health                       - Health check
  GET  /api/portfolio                - 보유 종목, 평가 금액, 이력 품질
  GET  /api/portfolio/weights?by=    - 비중 (ticker|sector|asset_class)
  POST /api/simulations              - 동기 시뮬레이션 (JSON 요약)
  GET  /api/simulations/stream       - WebSocket 진행률 스트림

Example:
  go run ./cmd/mcrisk api
  go run ./cmd/mcrisk api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := initDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}

	defaults, err := configDefaults(d.cfg.Simulation)
	if err != nil {
		return fmt.Errorf("simulation defaults: %w", err)
	}

	loader := d.loader(contracts.PriceField(d.cfg.Simulation.PriceField), d.cfg.Simulation.LookbackDays)
	portfolioHandler := handlers.NewPortfolioHandler(loader, quality.DefaultConfig(), d.log)
	perRequest := func(field contracts.PriceField, lookback int) contracts.CompositionProvider {
		return d.loader(field, lookback)
	}
	simulationHandler := handlers.NewSimulationHandler(d.engine, perRequest, defaults, riskLimits(d.cfg.Simulation), d.log)

	router := api.NewRouter(portfolioHandler, simulationHandler, d.log)
	server := api.New(d.cfg, d.log, router)

	fmt.Fprintf(cmd.OutOrStdout(), "mcrisk API listening on :%s (Ctrl+C to stop)\n", d.cfg.Port)
	return server.Run(ctx)
}
