package risk

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateVaR_NearestRank(t *testing.T) {
	returns := []float64{-5, 3, -2, 10, -1}

	v95, err := CalculateVaR(returns, 0.95)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v95.VaR)
	assert.Equal(t, -5.0, v95.Quantile)
	assert.Equal(t, 5.0, v95.CVaR)

	v99, err := CalculateVaR(returns, 0.99)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v99.VaR)
}

func TestCalculateVaR_RankBoundary(t *testing.T) {
	// n=20, 0.05·20 = 1 → 최저값 1개
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = -float64(i + 1)
	}

	v, err := CalculateVaR(returns, 0.95)
	require.NoError(t, err)
	assert.Equal(t, 20.0, v.VaR)

	// n=40 → k=2
	returns = append(returns, make([]float64, 20)...)
	v, err = CalculateVaR(returns, 0.95)
	require.NoError(t, err)
	assert.Equal(t, 19.0, v.VaR)
	assert.InDelta(t, 19.5, v.CVaR, 1e-9)
}

func TestCalculateVaR_NoLosses(t *testing.T) {
	v, err := CalculateVaR([]float64{1, 2, 3}, 0.95)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.VaR)
	assert.Equal(t, 0.0, v.CVaR)
}

func TestCalculateVaR_Errors(t *testing.T) {
	_, err := CalculateVaR([]float64{-1}, 0.95)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = CalculateVaR([]float64{-1, 2}, 1.5)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCalculateVaR_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		n := 2 + rng.Intn(120)
		returns := make([]float64, n)
		for i := range returns {
			returns[i] = rng.NormFloat64()*5 + 0.5
		}

		v95, err := CalculateVaR(returns, 0.95)
		require.NoError(t, err)
		v99, err := CalculateVaR(returns, 0.99)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, v95.CVaR, v95.VaR, "CVaR ≥ VaR (n=%d)", n)
		assert.GreaterOrEqual(t, v99.VaR, v95.VaR, "VaR99 ≥ VaR95 (n=%d)", n)
	}
}

func TestCalculateVaR_DoesNotMutateInput(t *testing.T) {
	returns := []float64{3, -1, 2, -4}
	_, err := CalculateVaR(returns, 0.95)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, -1, 2, -4}, returns)
}

func TestCalculateParametricVaR(t *testing.T) {
	v := CalculateParametricVaR(0, 1, 0.95)
	assert.InDelta(t, 1.6449, v.VaR, 1e-3)
	assert.Greater(t, v.CVaR, v.VaR)

	// 평균이 충분히 크면 손실 없음
	v = CalculateParametricVaR(10, 1, 0.95)
	assert.Equal(t, 0.0, v.VaR)
}

func TestVolatility(t *testing.T) {
	vol, err := AnnualizedVolatility([]float64{1, -1})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(2)*math.Sqrt(12), vol, 1e-9)

	down, err := DownsideVolatility([]float64{-2, 2, -4})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(10)*math.Sqrt(12), down, 1e-9)

	down, err = DownsideVolatility([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, down)

	_, err = AnnualizedVolatility([]float64{1})
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = DownsideVolatility(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCalculateDistribution_InsufficientData(t *testing.T) {
	d := CalculateDistribution([]float64{-3})

	for name, m := range map[string]Metric{
		"var95":      d.VaR95,
		"var99":      d.VaR99,
		"cvar95":     d.CVaR95,
		"parametric": d.ParametricVaR95,
		"vol":        d.AnnualizedVolatility,
		"downside":   d.DownsideVolatility,
	} {
		assert.False(t, m.Valid, name)
		assert.NotEmpty(t, m.Reason, name)
	}
}
