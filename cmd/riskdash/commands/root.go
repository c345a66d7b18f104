package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	logLevel string
	verbose  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "riskdash",
	Short: "riskdash - 포트폴리오 리스크 분석 엔진",
	Long: `riskdash Unified CLI

포트폴리오 성과 시계열과 보유 종목으로
VaR/CVaR, 낙폭, 위험조정 수익률, 팩터 분해, 집중도, 스트레스 테스트를 계산.

Usage:
  go run ./cmd/riskdash [command]

Examples:
  go run ./cmd/riskdash calculate --file data/alpha.json
  go run ./cmd/riskdash scenarios
  go run ./cmd/riskdash api --with-scheduler
  go run ./cmd/riskdash benchmark fetch --symbol KOSPI`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
