package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/riskdash/internal/risk"
	"github.com/wonny/riskdash/pkg/logger"
)

// LevelFetcher 지수 종가 수집 (benchmark.Client)
type LevelFetcher interface {
	FetchLevels(ctx context.Context, symbol string, from, to time.Time) ([]risk.ValuePoint, error)
}

// LevelStore 지수 종가 저장 (portfolio.Repository)
type LevelStore interface {
	SaveBenchmarkLevels(ctx context.Context, symbol string, levels []risk.ValuePoint) (int, error)
	FillBenchmarkValues(ctx context.Context, portfolioID, symbol string) (int64, error)
}

// BenchmarkRefreshJob 벤치마크 지수 종가를 수집해 저장하고
// 성과 시계열의 빈 벤치마크 값을 채움
type BenchmarkRefreshJob struct {
	fetcher      LevelFetcher
	store        LevelStore
	symbol       string
	lookback     time.Duration
	portfolioIDs []string
	schedule     string
	logger       *logger.Logger
	now          func() time.Time
}

// NewBenchmarkRefreshJob creates a new benchmark refresh job
func NewBenchmarkRefreshJob(
	fetcher LevelFetcher,
	store LevelStore,
	symbol string,
	lookback time.Duration,
	portfolioIDs []string,
	schedule string,
	log *logger.Logger,
) *BenchmarkRefreshJob {
	return &BenchmarkRefreshJob{
		fetcher:      fetcher,
		store:        store,
		symbol:       symbol,
		lookback:     lookback,
		portfolioIDs: portfolioIDs,
		schedule:     schedule,
		logger:       log,
		now:          time.Now,
	}
}

// Name returns the job name
func (j *BenchmarkRefreshJob) Name() string {
	return "benchmark_refresh"
}

// Schedule returns the cron schedule
func (j *BenchmarkRefreshJob) Schedule() string {
	return j.schedule
}

// Run fetches levels for the lookback window and backfills performance rows
func (j *BenchmarkRefreshJob) Run(ctx context.Context) error {
	to := j.now()
	from := to.Add(-j.lookback)

	levels, err := j.fetcher.FetchLevels(ctx, j.symbol, from, to)
	if err != nil {
		return fmt.Errorf("fetch %s levels: %w", j.symbol, err)
	}

	saved, err := j.store.SaveBenchmarkLevels(ctx, j.symbol, levels)
	if err != nil {
		return fmt.Errorf("save %s levels: %w", j.symbol, err)
	}

	var filled int64
	for _, id := range j.portfolioIDs {
		n, err := j.store.FillBenchmarkValues(ctx, id, j.symbol)
		if err != nil {
			return fmt.Errorf("fill benchmark for %s: %w", id, err)
		}
		filled += n
	}

	j.logger.WithFields(map[string]interface{}{
		"symbol": j.symbol,
		"saved":  saved,
		"filled": filled,
	}).Info("Benchmark levels refreshed")

	return nil
}
