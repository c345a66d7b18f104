package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/riskdash/internal/portfolio"
)

// portfolioCmd represents the portfolio command group
var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "포트폴리오 데이터 관리",
}

var portfolioImportCmd = &cobra.Command{
	Use:   "import",
	Short: "데이터셋 파일을 DB로 적재",
	Long: `데이터셋 JSON(성과 시계열, 보유 종목, 팩터 모델)을 DB에 적재합니다.

성과는 날짜 기준 upsert, 보유 종목은 as_of 기준으로 교체됩니다.

Example:
  go run ./cmd/riskdash portfolio import --file data/alpha.json
  go run ./cmd/riskdash portfolio import --file data/alpha.json --portfolio alpha-copy`,
	RunE: runPortfolioImport,
}

var portfolioListCmd = &cobra.Command{
	Use:   "list",
	Short: "저장된 포트폴리오 목록",
	RunE:  runPortfolioList,
}

var (
	importFile      string
	importPortfolio string
)

func init() {
	rootCmd.AddCommand(portfolioCmd)
	portfolioCmd.AddCommand(portfolioImportCmd)
	portfolioCmd.AddCommand(portfolioListCmd)

	portfolioImportCmd.Flags().StringVar(&importFile, "file", "", "데이터셋 JSON 파일")
	portfolioImportCmd.Flags().StringVar(&importPortfolio, "portfolio", "", "포트폴리오 ID (기본: 파일의 portfolio_id)")
	_ = portfolioImportCmd.MarkFlagRequired("file")
}

func runPortfolioImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	repo, err := rt.portfolioRepo()
	if err != nil {
		return err
	}
	if err := rt.db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	ds, err := portfolio.LoadDatasetFile(importFile)
	if err != nil {
		return err
	}
	// 적재 전에 입력 변환까지 검증
	if _, err := ds.Input(); err != nil {
		return err
	}

	id := importPortfolio
	if id == "" {
		id = ds.PortfolioID
	}
	if id == "" {
		return fmt.Errorf("%w: portfolio id missing (use --portfolio)", portfolio.ErrInvalidDataset)
	}

	if err := repo.ImportDataset(ctx, id, ds); err != nil {
		return fmt.Errorf("import dataset: %w", err)
	}

	out := cmd.OutOrStdout()
	PrintSuccess(out, fmt.Sprintf("Portfolio %s imported", id))
	PrintKeyValue(out, "Periods", fmt.Sprintf("%d", len(ds.Performance)), 10)
	PrintKeyValue(out, "Holdings", fmt.Sprintf("%d", len(ds.Holdings)), 10)
	PrintKeyValue(out, "Factors", fmt.Sprintf("%v", ds.Factors != nil), 10)
	return nil
}

func runPortfolioList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	repo, err := rt.portfolioRepo()
	if err != nil {
		return err
	}

	ids, err := repo.ListPortfolioIDs(ctx)
	if err != nil {
		return fmt.Errorf("list portfolios: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		PrintInfo(out, "No portfolios stored")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintf(out, "   • %s\n", id)
	}
	return nil
}
