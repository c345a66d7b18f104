package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/riskdash/internal/risk"
)

// ErrPortfolioNotFound 성과 데이터가 없는 포트폴리오
var ErrPortfolioNotFound = errors.New("portfolio not found")

// Loader 포트폴리오 ID로 엔진 입력을 구성
type Loader interface {
	LoadInput(ctx context.Context, portfolioID string) (risk.Input, error)
}

// Repository handles portfolio data persistence
// ⭐ SSOT: 포트폴리오 입력 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new portfolio repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadInput 성과 시계열, 최신 보유 종목, 최신 팩터 모델 조회
func (r *Repository) LoadInput(ctx context.Context, portfolioID string) (risk.Input, error) {
	perf, err := r.loadPerformance(ctx, portfolioID)
	if err != nil {
		return risk.Input{}, err
	}
	if len(perf) == 0 {
		return risk.Input{}, fmt.Errorf("%w: %s", ErrPortfolioNotFound, portfolioID)
	}

	holdings, err := r.loadHoldings(ctx, portfolioID)
	if err != nil {
		return risk.Input{}, err
	}

	model, err := r.loadFactorModel(ctx, portfolioID)
	if err != nil {
		return risk.Input{}, err
	}

	return risk.Input{
		Performance: perf,
		Holdings:    holdings,
		Factors:     model,
	}, nil
}

func (r *Repository) loadPerformance(ctx context.Context, portfolioID string) ([]risk.PerformancePoint, error) {
	query := `
		SELECT period_date, portfolio_value, benchmark_value, period_return, alpha
		FROM portfolio.performance
		WHERE portfolio_id = $1
		ORDER BY period_date
	`

	rows, err := r.pool.Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance: %w", err)
	}
	defer rows.Close()

	points := make([]risk.PerformancePoint, 0)
	for rows.Next() {
		var p risk.PerformancePoint
		if err := rows.Scan(&p.Date, &p.PortfolioValue, &p.BenchmarkValue, &p.Return, &p.Alpha); err != nil {
			return nil, fmt.Errorf("failed to scan performance: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating performance rows: %w", err)
	}

	return points, nil
}

func (r *Repository) loadHoldings(ctx context.Context, portfolioID string) ([]risk.Holding, error) {
	query := `
		SELECT ticker, name, portfolio_weight, benchmark_weight, sector, country, region, factors
		FROM portfolio.holdings
		WHERE portfolio_id = $1
		  AND as_of = (SELECT MAX(as_of) FROM portfolio.holdings WHERE portfolio_id = $1)
		ORDER BY portfolio_weight DESC, ticker
	`

	rows, err := r.pool.Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]risk.Holding, 0)
	for rows.Next() {
		var h risk.Holding
		var factors []byte
		if err := rows.Scan(&h.Ticker, &h.Name, &h.PortfolioWeight, &h.BenchmarkWeight,
			&h.Sector, &h.Country, &h.Region, &factors); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		if len(factors) > 0 {
			if err := json.Unmarshal(factors, &h.Factors); err != nil {
				return nil, fmt.Errorf("holding %s factors: %w", h.Ticker, err)
			}
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holding rows: %w", err)
	}

	return holdings, nil
}

// loadFactorModel 최신 팩터 모델, 없으면 nil
func (r *Repository) loadFactorModel(ctx context.Context, portfolioID string) (*risk.FactorModel, error) {
	query := `
		SELECT model
		FROM portfolio.factor_models
		WHERE portfolio_id = $1
		ORDER BY as_of DESC
		LIMIT 1
	`

	var raw []byte
	err := r.pool.QueryRow(ctx, query, portfolioID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query factor model: %w", err)
	}

	var model risk.FactorModel
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, fmt.Errorf("decode factor model: %w", err)
	}
	return &model, nil
}

// ImportDataset 데이터셋을 포트폴리오 테이블에 저장 (같은 기준일 보유 종목은 교체)
func (r *Repository) ImportDataset(ctx context.Context, portfolioID string, ds *Dataset) error {
	input, err := ds.Input()
	if err != nil {
		return err
	}
	asOf, err := ds.AsOfDate()
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	perfQuery := `
		INSERT INTO portfolio.performance (
			portfolio_id, period_date, portfolio_value, benchmark_value, period_return, alpha
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (portfolio_id, period_date) DO UPDATE SET
			portfolio_value = EXCLUDED.portfolio_value,
			benchmark_value = EXCLUDED.benchmark_value,
			period_return = EXCLUDED.period_return,
			alpha = EXCLUDED.alpha
	`
	for _, p := range input.Performance {
		if _, err := tx.Exec(ctx, perfQuery,
			portfolioID, p.Date, p.PortfolioValue, p.BenchmarkValue, p.Return, p.Alpha,
		); err != nil {
			return fmt.Errorf("failed to upsert performance %s: %w", p.Date.Format("2006-01-02"), err)
		}
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM portfolio.holdings WHERE portfolio_id = $1 AND as_of = $2",
		portfolioID, asOf,
	); err != nil {
		return fmt.Errorf("failed to delete old holdings: %w", err)
	}

	holdingQuery := `
		INSERT INTO portfolio.holdings (
			portfolio_id, as_of, ticker, name, portfolio_weight, benchmark_weight,
			sector, country, region, factors
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (portfolio_id, as_of, ticker) DO NOTHING
	`
	for _, h := range input.Holdings {
		factors, err := json.Marshal(h.Factors)
		if err != nil {
			return fmt.Errorf("encode factors for %s: %w", h.Ticker, err)
		}
		if h.Factors == nil {
			factors = []byte("{}")
		}
		if _, err := tx.Exec(ctx, holdingQuery,
			portfolioID, asOf, h.Ticker, h.Name, h.PortfolioWeight, h.BenchmarkWeight,
			h.Sector, h.Country, h.Region, factors,
		); err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.Ticker, err)
		}
	}

	if input.Factors != nil {
		model, err := json.Marshal(input.Factors)
		if err != nil {
			return fmt.Errorf("encode factor model: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO portfolio.factor_models (portfolio_id, as_of, model)
			VALUES ($1, $2, $3)
			ON CONFLICT (portfolio_id, as_of) DO UPDATE SET model = EXCLUDED.model
		`, portfolioID, asOf, model); err != nil {
			return fmt.Errorf("failed to save factor model: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveBenchmarkLevels 벤치마크 지수 종가 저장 (upsert)
func (r *Repository) SaveBenchmarkLevels(ctx context.Context, symbol string, levels []risk.ValuePoint) (int, error) {
	if len(levels) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO portfolio.benchmark_levels (symbol, level_date, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, level_date) DO UPDATE SET level = EXCLUDED.level
	`
	for _, l := range levels {
		batch.Queue(query, symbol, l.Date, l.Value)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range levels {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("failed to save level %s: %w", levels[i].Date.Format("2006-01-02"), err)
		}
	}
	return len(levels), nil
}

// FillBenchmarkValues 벤치마크 값이 빈 기간을 해당일 이하 가장 가까운 지수 종가로 채움
func (r *Repository) FillBenchmarkValues(ctx context.Context, portfolioID, symbol string) (int64, error) {
	query := `
		UPDATE portfolio.performance p
		SET benchmark_value = (
			SELECT b.level FROM portfolio.benchmark_levels b
			WHERE b.symbol = $2 AND b.level_date <= p.period_date
			ORDER BY b.level_date DESC
			LIMIT 1
		)
		WHERE p.portfolio_id = $1
		  AND p.benchmark_value IS NULL
		  AND EXISTS (
			SELECT 1 FROM portfolio.benchmark_levels b
			WHERE b.symbol = $2 AND b.level_date <= p.period_date
		  )
	`

	tag, err := r.pool.Exec(ctx, query, portfolioID, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to fill benchmark values: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListPortfolioIDs 성과 데이터가 있는 포트폴리오 목록
func (r *Repository) ListPortfolioIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT DISTINCT portfolio_id FROM portfolio.performance ORDER BY portfolio_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect portfolio ids: %w", err)
	}
	return ids, nil
}
