package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/riskdash/internal/report"
	"github.com/wonny/riskdash/internal/session"
)

// calculateCmd represents the calculate command
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "포트폴리오 리스크 계산",
	Long: `데이터셋 파일 또는 저장된 포트폴리오로 리스크를 한 번 계산합니다.

이 명령어는:
- 성과 시계열/보유 종목/팩터 모델 로드
- 전체 리스크 슬라이스 계산 (실패한 슬라이스는 사유와 함께 표시)
- 텍스트 요약 또는 JSON 출력
- --save 시 analytics.risk_snapshots에 저장

Example:
  go run ./cmd/riskdash calculate --file data/alpha.json
  go run ./cmd/riskdash calculate --portfolio alpha --output json --save`,
	RunE: runCalculate,
}

var (
	calcFile      string
	calcPortfolio string
	calcOutput    string
	calcSave      bool
)

func init() {
	rootCmd.AddCommand(calculateCmd)

	calculateCmd.Flags().StringVar(&calcFile, "file", "", "데이터셋 JSON 파일")
	calculateCmd.Flags().StringVar(&calcPortfolio, "portfolio", "", "저장된 포트폴리오 ID (DB 또는 RISK_DATASET_DIR)")
	calculateCmd.Flags().StringVarP(&calcOutput, "output", "o", "text", "출력 형식 (text|json)")
	calculateCmd.Flags().BoolVar(&calcSave, "save", false, "결과를 DB에 저장")
}

func runCalculate(cmd *cobra.Command, args []string) error {
	if calcOutput != "text" && calcOutput != "json" {
		return fmt.Errorf("unknown output format %q (text|json)", calcOutput)
	}

	ctx := cmd.Context()
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	input, portfolioID, err := rt.loadInput(ctx, calcFile, calcPortfolio)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}

	registry, err := rt.registry()
	if err != nil {
		return err
	}

	// 포트폴리오 ID를 세션 ID로 사용 (API/스케줄러와 동일)
	start := time.Now()
	snap, _, err := registry.Calculate(ctx, portfolioID, input, session.TriggerCLI)
	if err != nil {
		return fmt.Errorf("calculate: %w", err)
	}
	bundle := snap.Bundle()

	rt.log.WithFields(map[string]interface{}{
		"portfolio": portfolioID,
		"run_id":    bundle.RunID,
		"failed":    len(bundle.Errors),
		"duration":  time.Since(start),
	}).Info("Risk calculation finished")

	rep := report.New(bundle, portfolioID)
	rep.CatalogHash = rt.catalogHash

	out := cmd.OutOrStdout()
	if calcOutput == "json" {
		data, err := rep.ToJSON()
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprint(out, rep.ToSummary())
	}

	if calcSave {
		repo, err := rt.reportRepo()
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		if err := repo.SaveSnapshot(ctx, report.SnapshotRecord{
			SessionID:   portfolioID,
			PortfolioID: portfolioID,
			CatalogHash: rt.catalogHash,
			Bundle:      bundle,
		}); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		if calcOutput == "text" {
			PrintSuccess(out, fmt.Sprintf("Snapshot %s saved", bundle.RunID))
		}
	}

	return nil
}
