package portfolio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/riskdash/internal/risk"
	"github.com/wonny/riskdash/pkg/config"
	"github.com/wonny/riskdash/pkg/database"
)

func TestIntegration_ImportAndLoad(t *testing.T) {
	if testing.Short() || os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.EnsureSchema(ctx))

	ds, err := LoadDatasetFile(filepath.Join("testdata", "alpha.json"))
	require.NoError(t, err)

	id := "it-" + time.Now().Format("20060102150405.000000")
	t.Cleanup(func() {
		for _, q := range []string{
			"DELETE FROM portfolio.performance WHERE portfolio_id = $1",
			"DELETE FROM portfolio.holdings WHERE portfolio_id = $1",
			"DELETE FROM portfolio.factor_models WHERE portfolio_id = $1",
		} {
			_, _ = db.Pool.Exec(context.Background(), q, id)
		}
	})

	repo := NewRepository(db.Pool)
	require.NoError(t, repo.ImportDataset(ctx, id, ds))

	input, err := repo.LoadInput(ctx, id)
	require.NoError(t, err)
	assert.Len(t, input.Performance, len(ds.Performance))
	assert.Len(t, input.Holdings, len(ds.Holdings))
	require.NotNil(t, input.Factors)
	assert.InDelta(t, 8.0, input.Factors.IdiosyncraticVolatility, 1e-9)

	_, err = repo.LoadInput(ctx, id+"-missing")
	assert.ErrorIs(t, err, ErrPortfolioNotFound)

	symbol := "IT_" + id
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), "DELETE FROM portfolio.benchmark_levels WHERE symbol = $1", symbol)
	})
	n, err := repo.SaveBenchmarkLevels(ctx, symbol, []risk.ValuePoint{
		{Date: time.Date(2020, 1, 30, 0, 0, 0, 0, time.UTC), Value: 2100},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
