package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	env      string
	logLevel string
	verbose  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mcrisk",
	Short: "mcrisk - 상관 Monte Carlo 포트폴리오 시뮬레이터",
	Long: `mcrisk Unified CLI

보유 종목의 일별 가격 이력으로 평균/공분산을 추정하고,
Cholesky 분해로 상관된 충격을 생성해 장기 포트폴리오 가치를 시뮬레이션합니다.

Usage:
  go run ./cmd/mcrisk [command]

Examples:
  go run ./cmd/mcrisk simulate --ticker 005930 --qty 10
  go run ./cmd/mcrisk holdings list
  go run ./cmd/mcrisk fetch
  go run ./cmd/mcrisk api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Ctrl+C → context 취소 (시뮬레이션/수집 중단)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment (development|staging|production), overrides ENV")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error), overrides LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
