package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// dbCmd represents the db command group
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "PostgreSQL 관리",
}

var dbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "PostgreSQL 연결 테스트",
	Long: `데이터베이스 연결을 테스트하고 풀 통계를 표시합니다.

Example:
  go run ./cmd/riskdash db check`,
	RunE: runDBCheck,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "스키마 생성 (idempotent)",
	RunE:  runDBMigrate,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbCheckCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if rt.db == nil {
		return errNoDatabase
	}
	PrintSuccess(out, fmt.Sprintf("Config loaded (ENV: %s)", rt.cfg.Env))
	PrintKeyValue(out, "Database URL", maskPassword(rt.cfg.Database.URL), 14)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	status, err := rt.db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}

	PrintSuccess(out, "Health Check Results:")
	PrintKeyValue(out, "Response Time", status.ResponseTime.String(), 14)
	PrintKeyValue(out, "Timestamp", status.Timestamp.Format(time.RFC3339), 14)

	fmt.Fprintln(out, "\n📊 Connection Pool Statistics:")
	PrintKeyValue(out, "Max", fmt.Sprintf("%d", status.MaxConns), 14)
	PrintKeyValue(out, "Total", fmt.Sprintf("%d", status.TotalConns), 14)
	PrintKeyValue(out, "Acquired", fmt.Sprintf("%d", status.AcquiredConns), 14)
	PrintKeyValue(out, "Idle", fmt.Sprintf("%d", status.IdleConns), 14)
	return nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.db == nil {
		return errNoDatabase
	}
	if err := rt.db.EnsureSchema(cmd.Context()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	PrintSuccess(cmd.OutOrStdout(), "Schema is up to date")
	return nil
}
