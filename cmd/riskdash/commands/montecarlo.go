package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/riskdash/internal/report"
	"github.com/wonny/riskdash/internal/risk"
)

// montecarloCmd represents the montecarlo command
var montecarloCmd = &cobra.Command{
	Use:   "montecarlo",
	Short: "Monte Carlo 보유 기간 수익률 시뮬레이션",
	Long: `월간 수익률로 보유 기간 누적 수익률 분포를 시뮬레이션합니다.

Methods:
  bootstrap   - 과거 월간 수익률 재샘플링 (기본)
  parametric  - 정규분포 가정

Example:
  go run ./cmd/riskdash montecarlo --file data/alpha.json
  go run ./cmd/riskdash montecarlo --portfolio alpha --simulations 50000 --horizon 6 --seed 42`,
	RunE: runMonteCarlo,
}

var (
	mcFile        string
	mcPortfolio   string
	mcSimulations int
	mcHorizon     int
	mcMethod      string
	mcMinSamples  int
	mcSeed        int64
	mcOutput      string
	mcSave        bool
)

func init() {
	rootCmd.AddCommand(montecarloCmd)

	defaults := risk.DefaultMonteCarloConfig()
	montecarloCmd.Flags().StringVar(&mcFile, "file", "", "데이터셋 JSON 파일")
	montecarloCmd.Flags().StringVar(&mcPortfolio, "portfolio", "", "저장된 포트폴리오 ID")
	montecarloCmd.Flags().IntVar(&mcSimulations, "simulations", defaults.NumSimulations, "시뮬레이션 횟수")
	montecarloCmd.Flags().IntVar(&mcHorizon, "horizon", defaults.HoldingPeriod, "보유 기간 (개월)")
	montecarloCmd.Flags().StringVar(&mcMethod, "method", string(defaults.Method), "bootstrap|parametric")
	montecarloCmd.Flags().IntVar(&mcMinSamples, "min-samples", defaults.MinSamples, "최소 월간 수익률 개수")
	montecarloCmd.Flags().Int64Var(&mcSeed, "seed", 0, "난수 시드 (0이면 시각 기반)")
	montecarloCmd.Flags().StringVarP(&mcOutput, "output", "o", "text", "출력 형식 (text|json)")
	montecarloCmd.Flags().BoolVar(&mcSave, "save", false, "결과를 DB에 저장")
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	input, portfolioID, err := rt.loadInput(ctx, mcFile, mcPortfolio)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}

	series, err := risk.NormalizeSeries(input.Performance)
	if err != nil {
		return fmt.Errorf("normalize series: %w", err)
	}

	mcConfig := risk.DefaultMonteCarloConfig()
	mcConfig.NumSimulations = mcSimulations
	mcConfig.HoldingPeriod = mcHorizon
	mcConfig.Method = risk.SimulationMethod(mcMethod)
	mcConfig.MinSamples = mcMinSamples
	mcConfig.Seed = mcSeed

	result, err := risk.NewMonteCarloSimulator(mcConfig).Simulate(ctx, series.PortfolioReturns())
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	out := cmd.OutOrStdout()
	if mcOutput == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		PrintHeader(out, "Monte Carlo Simulation", [][2]string{
			{"Portfolio", portfolioID},
			{"Samples", fmt.Sprintf("%d monthly returns", result.InputSampleCount)},
		})
		fmt.Fprint(out, report.FormatMonteCarlo(result))
	}

	if mcSave {
		repo, err := rt.reportRepo()
		if err != nil {
			return fmt.Errorf("save result: %w", err)
		}
		if err := repo.SaveMonteCarloResult(ctx, portfolioID, result); err != nil {
			return fmt.Errorf("save result: %w", err)
		}
		if mcOutput == "text" {
			PrintSuccess(out, fmt.Sprintf("Monte Carlo run %s saved", result.RunID))
		}
	}

	return nil
}
