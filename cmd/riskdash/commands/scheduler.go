package commands

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/riskdash/internal/external/benchmark"
	"github.com/wonny/riskdash/internal/scheduler"
	"github.com/wonny/riskdash/internal/scheduler/jobs"
	"github.com/wonny/riskdash/internal/session"
	"github.com/wonny/riskdash/pkg/httputil"
	"github.com/wonny/riskdash/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/riskdash scheduler start
  go run ./cmd/riskdash scheduler list
  go run ./cmd/riskdash scheduler run risk_recalculate`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- risk_recalculate: RISK_RECALC_SCHEDULE (RISK_PORTFOLIO_IDS 재계산)
- benchmark_refresh: BENCHMARK_SCHEDULE (DB 설정 시, 벤치마크 수준 수집)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
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
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	registry, err := rt.registry()
	if err != nil {
		return err
	}

	sched, err := buildScheduler(rt, registry)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	out := cmd.OutOrStdout()
	sched.Start()
	PrintSuccess(out, "Scheduler started")
	fmt.Fprintln(out, "\nRegistered jobs:")
	for _, name := range sched.GetAllJobs() {
		fmt.Fprintf(out, "  - %s\n", name)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Fprintln(out, "\nShutting down scheduler...")
	sched.Stop()
	fmt.Fprintln(out, "Scheduler stopped")
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	registry, err := rt.registry()
	if err != nil {
		return err
	}
	sched, err := buildScheduler(rt, registry)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	out := cmd.OutOrStdout()
	stats := sched.GetJobStats()
	names := sched.GetAllJobs()
	sort.Strings(names)

	widths := []int{20, 20}
	PrintTableHeader(out, []string{"Job", "Schedule"}, widths)
	for _, name := range names {
		PrintTableRow(out, []string{name, stats[name].Schedule}, widths)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	rt, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	registry, err := rt.registry()
	if err != nil {
		return err
	}
	sched, err := buildScheduler(rt, registry)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer sched.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running job: %s\n", jobName)

	result, err := sched.RunJob(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed after %d attempt(s): %s", jobName, result.Attempts, result.Error)
	}

	PrintSuccess(out, fmt.Sprintf("%s completed in %s (%d attempt(s))",
		jobName, result.Duration.Round(time.Millisecond), result.Attempts))
	return nil
}

// buildScheduler registers the recalculation job and, with a database,
// the benchmark refresh job
func buildScheduler(rt *app, registry *session.Registry) (*scheduler.Scheduler, error) {
	sched := scheduler.New(rt.log)

	recalc := jobs.NewRecalculateJob(registry, rt.loader(), rt.cfg.Risk.PortfolioIDs, rt.cfg.Risk.RecalcSchedule, rt.log)
	if repo, err := rt.reportRepo(); err == nil {
		recalc.WithSaver(repo, rt.catalogHash)
	}
	if err := sched.AddJob(recalc); err != nil {
		return nil, err
	}

	store, err := rt.portfolioRepo()
	if err != nil {
		rt.log.Info("Benchmark refresh job disabled (no database)")
		return sched, nil
	}

	refresh := jobs.NewBenchmarkRefreshJob(
		newBenchmarkClient(rt, rt.cfg.Benchmark.SourceURL),
		store,
		rt.cfg.Benchmark.Symbol,
		rt.cfg.Benchmark.Lookback,
		rt.cfg.Risk.PortfolioIDs,
		rt.cfg.Benchmark.Schedule,
		rt.log,
	)
	if err := sched.AddJob(refresh); err != nil {
		return nil, err
	}

	return sched, nil
}

// newBenchmarkClient 로컬 + (Redis 활성 시) 인스턴스 공유 레이트 리밋
func newBenchmarkClient(rt *app, sourceURL string) *benchmark.Client {
	httpClient := httputil.New(rt.log, rt.cfg.Benchmark.Timeout).
		WithRateLimit(rt.cfg.Benchmark.RatePerSec).
		WithSharedRateLimiter(redis.NewRateLimiter(rt.redis, "riskdash"), redis.BenchmarkRateLimit)

	return benchmark.NewClient(httpClient, rt.log, sourceURL).
		WithCache(redis.NewCache(rt.redis, "riskdash"))
}
