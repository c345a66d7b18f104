package risk

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMonthlyReturns(n int) []float64 {
	rng := rand.New(rand.NewSource(11))
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.8 + rng.NormFloat64()*4
	}
	return out
}

func TestMonteCarlo_ReproducibleWithSeed(t *testing.T) {
	cfg := DefaultMonteCarloConfig()
	cfg.NumSimulations = 2000
	cfg.Seed = 42
	returns := sampleMonthlyReturns(60)

	a, err := NewMonteCarloSimulator(cfg).Simulate(context.Background(), returns)
	require.NoError(t, err)
	b, err := NewMonteCarloSimulator(cfg).Simulate(context.Background(), returns)
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.MeanReturn, b.MeanReturn)
	assert.Equal(t, a.VaR, b.VaR)
	assert.Equal(t, a.Percentiles, b.Percentiles)
	assert.Equal(t, 60, a.InputSampleCount)

	assert.GreaterOrEqual(t, a.VaR["0.99"], a.VaR["0.95"])
	assert.GreaterOrEqual(t, a.CVaR["0.95"], a.VaR["0.95"])
	assert.LessOrEqual(t, a.Percentiles[5], a.Percentiles[50])
	assert.LessOrEqual(t, a.Percentiles[50], a.Percentiles[95])
}

func TestMonteCarlo_Parametric(t *testing.T) {
	cfg := DefaultMonteCarloConfig()
	cfg.Method = MethodParametric
	cfg.NumSimulations = 5000
	cfg.HoldingPeriod = 1
	cfg.Seed = 7

	returns := sampleMonthlyReturns(120)
	res, err := NewMonteCarloSimulator(cfg).Simulate(context.Background(), returns)
	require.NoError(t, err)

	// 1개월 보유 → 분포 평균은 표본 평균 근처
	assert.InDelta(t, Mean(returns), res.MeanReturn, 0.5)
	assert.InDelta(t, StdDev(returns), res.StdDev, 0.5)
}

func TestMonteCarlo_FailClosed(t *testing.T) {
	cfg := DefaultMonteCarloConfig()
	_, err := NewMonteCarloSimulator(cfg).Simulate(context.Background(), sampleMonthlyReturns(cfg.MinSamples-1))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestMonteCarlo_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MonteCarloConfig)
	}{
		{"simulations", func(c *MonteCarloConfig) { c.NumSimulations = 0 }},
		{"holding period", func(c *MonteCarloConfig) { c.HoldingPeriod = 0 }},
		{"min samples", func(c *MonteCarloConfig) { c.MinSamples = 1 }},
		{"method", func(c *MonteCarloConfig) { c.Method = "garch" }},
		{"confidence", func(c *MonteCarloConfig) { c.ConfidenceLevels = []float64{1.2} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMonteCarloConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidInput)
		})
	}
}

func TestMonteCarlo_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMonteCarloSimulator(DefaultMonteCarloConfig()).Simulate(ctx, sampleMonthlyReturns(60))
	assert.ErrorIs(t, err, context.Canceled)
}
