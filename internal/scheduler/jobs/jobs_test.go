package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/riskdash/internal/portfolio"
	"github.com/wonny/riskdash/internal/report"
	"github.com/wonny/riskdash/internal/risk"
	"github.com/wonny/riskdash/internal/session"
	"github.com/wonny/riskdash/pkg/logger"
)

type mapLoader map[string]risk.Input

func (m mapLoader) LoadInput(_ context.Context, id string) (risk.Input, error) {
	in, ok := m[id]
	if !ok {
		return risk.Input{}, portfolio.ErrPortfolioNotFound
	}
	return in, nil
}

type stubCalc struct{}

func (stubCalc) Calculate(_ context.Context, in risk.Input) *risk.Bundle {
	return &risk.Bundle{RunID: "run", CalculatedAt: time.Now(), Errors: map[string]string{}}
}

type memSaver struct {
	records []report.SnapshotRecord
}

func (m *memSaver) SaveSnapshot(_ context.Context, rec report.SnapshotRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func TestRecalculateJob_Run(t *testing.T) {
	registry := session.NewRegistry(session.Options{Calculator: stubCalc{}, Logger: zerolog.Nop()})
	loader := mapLoader{"alpha": {}, "beta": {}}
	saver := &memSaver{}

	job := NewRecalculateJob(registry, loader, []string{"alpha", "missing", "beta"}, "0 30 18 * * 1-5", logger.Nop()).
		WithSaver(saver, "hash-1")

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, portfolio.ErrPortfolioNotFound)
	assert.Contains(t, err.Error(), "missing")

	// 실패한 포트폴리오와 무관하게 나머지는 계산
	require.Len(t, saver.records, 2)
	assert.Equal(t, "alpha", saver.records[0].PortfolioID)
	assert.Equal(t, "hash-1", saver.records[0].CatalogHash)
	assert.Equal(t, "run", saver.records[1].Bundle.RunID)

	snap, found := registry.Lookup(context.Background(), "beta")
	require.True(t, found)
	assert.True(t, snap.Computed())

	assert.Equal(t, "risk_recalculate", job.Name())
	assert.Equal(t, "0 30 18 * * 1-5", job.Schedule())
}

func TestRecalculateJob_Cancelled(t *testing.T) {
	registry := session.NewRegistry(session.Options{Calculator: stubCalc{}, Logger: zerolog.Nop()})
	job := NewRecalculateJob(registry, mapLoader{"alpha": {}}, []string{"alpha"}, "@daily", logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
}

type fakeFetcher struct {
	from, to time.Time
	err      error
}

func (f *fakeFetcher) FetchLevels(_ context.Context, _ string, from, to time.Time) ([]risk.ValuePoint, error) {
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	return []risk.ValuePoint{{Date: to, Value: 2500}}, nil
}

type fakeStore struct {
	saved  int
	filled []string
}

func (s *fakeStore) SaveBenchmarkLevels(_ context.Context, _ string, levels []risk.ValuePoint) (int, error) {
	s.saved += len(levels)
	return len(levels), nil
}

func (s *fakeStore) FillBenchmarkValues(_ context.Context, portfolioID, _ string) (int64, error) {
	s.filled = append(s.filled, portfolioID)
	return 1, nil
}

func TestBenchmarkRefreshJob_Run(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := &fakeStore{}
	job := NewBenchmarkRefreshJob(fetcher, store, "KOSPI", 30*24*time.Hour, []string{"alpha", "beta"}, "@daily", logger.Nop())
	now := time.Date(2024, 6, 30, 18, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.AddDate(0, 0, -30), fetcher.from)
	assert.Equal(t, 1, store.saved)
	assert.Equal(t, []string{"alpha", "beta"}, store.filled)
}

func TestBenchmarkRefreshJob_FetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("source down")}
	store := &fakeStore{}
	job := NewBenchmarkRefreshJob(fetcher, store, "KOSPI", time.Hour, nil, "@daily", logger.Nop())

	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "source down")
	assert.Zero(t, store.saved)
}
