package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// scenariosCmd represents the scenarios command
var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "스트레스 시나리오 카탈로그 조회",
	Long: `현재 설정된 스트레스 시나리오 카탈로그를 표시합니다.

RISK_SCENARIO_FILE이 없으면 내장 카탈로그를 사용합니다.

Example:
  go run ./cmd/riskdash scenarios
  go run ./cmd/riskdash scenarios --output json`,
	RunE: runScenarios,
}

var scenariosOutput string

func init() {
	rootCmd.AddCommand(scenariosCmd)

	scenariosCmd.Flags().StringVarP(&scenariosOutput, "output", "o", "text", "출력 형식 (text|json)")
}

func runScenarios(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if scenariosOutput == "json" {
		data, err := json.MarshalIndent(rt.catalog, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	PrintHeader(out, "Stress Scenarios", [][2]string{
		{"Version", rt.catalog.Version},
		{"Hash", rt.catalogHash[:12]},
	})

	widths := []int{18, 30, 12, 12, 10}
	PrintTableHeader(out, []string{"ID", "Name", "Start", "End", "Bench %"}, widths)
	for _, sc := range rt.catalog.Scenarios {
		PrintTableRow(out, []string{
			sc.ID,
			sc.Name,
			sc.StartDate,
			sc.EndDate,
			fmt.Sprintf("%.1f", sc.BenchmarkReturnPct),
		}, widths)
	}

	return nil
}
