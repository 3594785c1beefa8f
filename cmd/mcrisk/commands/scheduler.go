package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/internal/s0_data/collector"
	"github.com/wonny/mcrisk/internal/scheduler"
	"github.com/wonny/mcrisk/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 즉시 실행합니다.

등록되는 작업:
- price_refresh: 보유 종목 가격 증분 수집 (SCHEDULE_PRICE_REFRESH)
- risk_check:    기본 설정 시뮬레이션 + 리스크 한도 체크 (SCHEDULE_RISK_CHECK)

Subcommands:
  start   - 스케줄러 시작 (Ctrl+C로 종료)
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/mcrisk scheduler start
  go run ./cmd/mcrisk scheduler run price_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	d, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	sched.Start()

	PrintSuccess(out, "Scheduler started")
	printJobStats(cmd, sched)
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	<-cmd.Context().Done()

	fmt.Fprintln(out, "Shutting down scheduler...")
	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	d, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	printJobStats(cmd, sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	d, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	fmt.Fprintf(out, "Running job: %s\n", args[0])
	result, err := sched.RunJob(args[0])
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed after %d attempts: %s", result.JobName, result.Attempts, result.Error)
	}

	PrintSuccess(out, fmt.Sprintf("Job %s completed in %s", result.JobName, result.Duration.Round(time.Millisecond)))
	return nil
}

func printJobStats(cmd *cobra.Command, sched *scheduler.Scheduler) {
	out := cmd.OutOrStdout()
	stats := sched.GetJobStats()

	widths := []int{16, 18, 20}
	PrintTableHeader(out, []string{"JOB", "SCHEDULE", "NEXT RUN"}, widths)
	for _, name := range sched.GetAllJobs() {
		st := stats[name]
		next := "-"
		if st.NextRun != nil {
			next = st.NextRun.Format("2006-01-02 15:04")
		}
		PrintTableRow(out, []string{name, st.Schedule, next}, widths)
	}
}

func initScheduler(cmd *cobra.Command) (*deps, *scheduler.Scheduler, error) {
	d, err := initDeps(cmd.Context(), true)
	if err != nil {
		return nil, nil, err
	}

	defaults, err := configDefaults(d.cfg.Simulation)
	if err != nil {
		d.close()
		return nil, nil, fmt.Errorf("simulation defaults: %w", err)
	}
	loader := d.loader(contracts.PriceField(d.cfg.Simulation.PriceField), d.cfg.Simulation.LookbackDays)

	sched := scheduler.New(d.log)

	if err := sched.AddJob(jobs.NewPriceRefreshJob(d.holdings, d.collector(), d.cfg.Schedule.PriceRefresh, collector.DefaultConfig(), d.log)); err != nil {
		d.close()
		return nil, nil, err
	}
	if err := sched.AddJob(jobs.NewRiskCheckJob(loader, d.engine, defaults, riskLimits(d.cfg.Simulation), d.cfg.Schedule.RiskCheck, d.log)); err != nil {
		d.close()
		return nil, nil, err
	}

	return d, sched, nil
}
