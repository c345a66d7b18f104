package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/riskdash/internal/risk"
)

// ErrSnapshotNotFound 저장된 스냅샷 없음
var ErrSnapshotNotFound = errors.New("risk snapshot not found")

// SnapshotRecord 저장 단위
type SnapshotRecord struct {
	SessionID   string
	PortfolioID string
	CatalogHash string
	Bundle      *risk.Bundle
}

// Repository handles risk report persistence
// ⭐ SSOT: 리스크 결과 저장은 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new report repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSnapshot 계산 결과 묶음 저장 (run_id 기준 upsert)
func (r *Repository) SaveSnapshot(ctx context.Context, rec SnapshotRecord) error {
	bundleJSON, err := json.Marshal(rec.Bundle)
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}

	query := `
		INSERT INTO analytics.risk_snapshots (
			run_id, session_id, portfolio_id, catalog_hash,
			calculated_at, failed_slices, bundle
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			failed_slices = EXCLUDED.failed_slices,
			bundle = EXCLUDED.bundle
	`

	_, err = r.pool.Exec(ctx, query,
		rec.Bundle.RunID, rec.SessionID, rec.PortfolioID, rec.CatalogHash,
		rec.Bundle.CalculatedAt, FailedSlices(rec.Bundle), bundleJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save risk snapshot: %w", err)
	}

	return nil
}

// LatestSnapshot 포트폴리오의 가장 최근 결과
func (r *Repository) LatestSnapshot(ctx context.Context, portfolioID string) (*risk.Bundle, error) {
	query := `
		SELECT bundle
		FROM analytics.risk_snapshots
		WHERE portfolio_id = $1
		ORDER BY calculated_at DESC
		LIMIT 1
	`

	var raw []byte
	err := r.pool.QueryRow(ctx, query, portfolioID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, portfolioID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query risk snapshot: %w", err)
	}

	var bundle risk.Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &bundle, nil
}

// SaveMonteCarloResult Monte Carlo 결과 저장
func (r *Repository) SaveMonteCarloResult(ctx context.Context, portfolioID string, result *risk.MonteCarloResult) error {
	configJSON, err := json.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	varJSON, err := json.Marshal(result.VaR)
	if err != nil {
		return fmt.Errorf("failed to marshal var: %w", err)
	}
	cvarJSON, err := json.Marshal(result.CVaR)
	if err != nil {
		return fmt.Errorf("failed to marshal cvar: %w", err)
	}
	percentilesJSON, err := json.Marshal(result.Percentiles)
	if err != nil {
		return fmt.Errorf("failed to marshal percentiles: %w", err)
	}

	query := `
		INSERT INTO analytics.montecarlo_results (
			run_id, portfolio_id, run_date, config,
			input_sample_count, mean_return, std_dev,
			var, cvar, percentiles
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id) DO NOTHING
	`

	_, err = r.pool.Exec(ctx, query,
		result.RunID, portfolioID, result.RunDate, configJSON,
		result.InputSampleCount, result.MeanReturn, result.StdDev,
		varJSON, cvarJSON, percentilesJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save monte carlo result: %w", err)
	}

	return nil
}
