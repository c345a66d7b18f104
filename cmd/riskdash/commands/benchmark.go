package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/riskdash/internal/external/benchmark"
)

// benchmarkCmd represents the benchmark command group
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "벤치마크 지수 수준 관리",
}

var benchmarkFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "벤치마크 지수 일별 수준 수집",
	Long: `소스 페이지에서 벤치마크 지수의 일별 종가를 수집합니다.

--save 시 portfolio.benchmark_levels에 저장하고
RISK_PORTFOLIO_IDS 포트폴리오의 비어 있는 벤치마크 값을 채웁니다.

Example:
  go run ./cmd/riskdash benchmark fetch --symbol KOSPI
  go run ./cmd/riskdash benchmark fetch --symbol KOSDAQ --from 2022-01-01 --month-end --save`,
	RunE: runBenchmarkFetch,
}

var (
	benchSymbol   string
	benchURL      string
	benchFrom     string
	benchMonthEnd bool
	benchSave     bool
)

func init() {
	rootCmd.AddCommand(benchmarkCmd)
	benchmarkCmd.AddCommand(benchmarkFetchCmd)

	benchmarkFetchCmd.Flags().StringVar(&benchSymbol, "symbol", "", "지수 코드 (기본: BENCHMARK_SYMBOL)")
	benchmarkFetchCmd.Flags().StringVar(&benchURL, "url", "", "소스 URL (기본: BENCHMARK_SOURCE_URL)")
	benchmarkFetchCmd.Flags().StringVar(&benchFrom, "from", "", "시작일 YYYY-MM-DD (기본: BENCHMARK_LOOKBACK 전)")
	benchmarkFetchCmd.Flags().BoolVar(&benchMonthEnd, "month-end", false, "월말 수준만 출력/저장")
	benchmarkFetchCmd.Flags().BoolVar(&benchSave, "save", false, "DB에 저장")
}

func runBenchmarkFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	symbol := benchSymbol
	if symbol == "" {
		symbol = rt.cfg.Benchmark.Symbol
	}
	sourceURL := benchURL
	if sourceURL == "" {
		sourceURL = rt.cfg.Benchmark.SourceURL
	}

	to := time.Now()
	from := to.Add(-rt.cfg.Benchmark.Lookback)
	if benchFrom != "" {
		from, err = time.Parse("2006-01-02", benchFrom)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}

	levels, err := newBenchmarkClient(rt, sourceURL).FetchLevels(ctx, symbol, from, to)
	if err != nil {
		return fmt.Errorf("fetch levels: %w", err)
	}
	if benchMonthEnd {
		levels = benchmark.MonthEnd(levels)
	}

	out := cmd.OutOrStdout()
	PrintHeader(out, "Benchmark Levels", [][2]string{
		{"Symbol", symbol},
		{"Period", from.Format("2006-01-02") + " ~ " + to.Format("2006-01-02")},
		{"Points", fmt.Sprintf("%d", len(levels))},
	})

	widths := []int{12, 12}
	PrintTableHeader(out, []string{"Date", "Level"}, widths)
	for _, lv := range levels {
		PrintTableRow(out, []string{lv.Date.Format("2006-01-02"), fmt.Sprintf("%.2f", lv.Value)}, widths)
	}

	if !benchSave {
		return nil
	}

	repo, err := rt.portfolioRepo()
	if err != nil {
		return fmt.Errorf("save levels: %w", err)
	}
	saved, err := repo.SaveBenchmarkLevels(ctx, symbol, levels)
	if err != nil {
		return fmt.Errorf("save levels: %w", err)
	}
	PrintSuccess(out, fmt.Sprintf("%d levels saved", saved))

	for _, id := range rt.cfg.Risk.PortfolioIDs {
		filled, err := repo.FillBenchmarkValues(ctx, id, symbol)
		if err != nil {
			PrintWarning(out, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		PrintKeyValue(out, id, fmt.Sprintf("%d benchmark values filled", filled), 12)
	}

	return nil
}
