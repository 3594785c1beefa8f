package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "인프라 상태 확인",
	Long: `데이터베이스와 Redis 연결 상태를 확인합니다.

표시 정보:
- PostgreSQL: 응답 시간, 커넥션 풀 통계 (마이그레이션 포함)
- Redis: 활성화 여부, 이력 캐시 TTL

Example:
  go run ./cmd/mcrisk status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	d, err := initDeps(cmd.Context(), true)
	if err != nil {
		PrintError(out, err.Error())
		return err
	}
	defer d.close()

	PrintHeader(out, "Infrastructure Status")

	health, err := d.db.HealthCheck(cmd.Context())
	if err != nil {
		PrintError(out, fmt.Sprintf("PostgreSQL: %s", health.Error))
		return err
	}
	PrintSuccess(out, "PostgreSQL connected (schema migrated)")
	PrintKeyValue(out, "Response time", health.ResponseTime.Round(time.Microsecond).String(), 16)
	PrintKeyValue(out, "Connections", fmt.Sprintf("%d total / %d idle / %d max",
		health.Stats.TotalConns, health.Stats.IdleConns, health.Stats.MaxConns), 16)

	PrintSeparator(out)
	if d.redis.Enabled() {
		PrintSuccess(out, "Redis enabled")
		PrintKeyValue(out, "History TTL", d.cfg.Redis.HistoryTTL.String(), 16)
	} else {
		PrintWarning(out, "Redis disabled (history cache and shared rate limit off)")
	}

	return nil
}
