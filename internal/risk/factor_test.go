package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecomposeFactorRisk_Explicit(t *testing.T) {
	model := &FactorModel{
		Exposures: []FactorExposure{
			{Name: FactorMarket, Exposure: 1.0, Volatility: 15},
			{Name: FactorSize, Exposure: 0.5, Volatility: 4},
			{Name: FactorValue, Exposure: -0.2, Volatility: 5},
		},
		IdiosyncraticVolatility: 10,
	}

	d, err := DecomposeFactorRisk(model, nil)
	require.NoError(t, err)
	require.Len(t, d.Factors, 3)

	assert.Equal(t, 15.0, d.Factors[0].Contribution)
	assert.Equal(t, 2.0, d.Factors[1].Contribution)
	assert.InDelta(t, -1.0, d.Factors[2].Contribution, 1e-12)

	sysVar := 225.0 + 4 + 1
	assert.InDelta(t, math.Sqrt(sysVar), d.SystematicRisk, 1e-9)
	assert.Equal(t, 10.0, d.IdiosyncraticRisk)
	assert.InDelta(t, math.Sqrt(d.SystematicRisk*d.SystematicRisk+100), d.TotalRisk, 1e-9)
	assert.InDelta(t, 100.0, d.SystematicPercent+d.IdiosyncraticPercent, 1e-9)

	var factorPct float64
	for _, f := range d.Factors {
		assert.GreaterOrEqual(t, f.PercentOfRisk, 0.0)
		factorPct += f.PercentOfRisk
	}
	assert.InDelta(t, d.SystematicPercent, factorPct, 1e-9)
	assert.InDelta(t, 225/(sysVar+100)*100, d.Factors[0].PercentOfRisk, 1e-9)
}

func TestDecomposeFactorRisk_IdiosyncraticOnly(t *testing.T) {
	d, err := DecomposeFactorRisk(&FactorModel{
		Exposures:               []FactorExposure{{Name: FactorMarket, Exposure: 0, Volatility: 15}},
		IdiosyncraticVolatility: 8,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, d.SystematicPercent)
	assert.Equal(t, 100.0, d.IdiosyncraticPercent)
	assert.Equal(t, 8.0, d.TotalRisk)
}

func TestDecomposeFactorRisk_DerivedFromHoldings(t *testing.T) {
	holdings := []Holding{
		{Ticker: "A", PortfolioWeight: 0.6, BenchmarkWeight: 0.4, Factors: FactorScores{FactorMarket: 1.2, "esg": 0.5}},
		{Ticker: "B", PortfolioWeight: 0.4, BenchmarkWeight: 0.4, Factors: FactorScores{FactorMarket: 0.8}},
		{Ticker: "C", PortfolioWeight: 0, BenchmarkWeight: 0.2, Factors: FactorScores{FactorMarket: 1.0, "esg": -1}},
	}
	model := &FactorModel{
		Volatilities:            map[FactorName]float64{"esg": 3, FactorMarket: 10},
		IdiosyncraticVolatility: 5,
	}

	d, err := DecomposeFactorRisk(model, holdings)
	require.NoError(t, err)
	require.Len(t, d.Factors, 2)

	// 잘 알려진 팩터 먼저, 확장 팩터는 뒤
	assert.Equal(t, FactorMarket, d.Factors[0].Name)
	assert.Equal(t, FactorName("esg"), d.Factors[1].Name)

	// market: 0.2·1.2 + 0 + (-0.2)·1.0 = 0.04
	assert.InDelta(t, 0.04, d.Factors[0].Exposure, 1e-12)
	// esg: 0.2·0.5 + (-0.2)·(-1) = 0.3
	assert.InDelta(t, 0.3, d.Factors[1].Exposure, 1e-12)
	assert.Equal(t, 3.0, d.Factors[1].Volatility)
}

func TestDecomposeFactorRisk_Errors(t *testing.T) {
	_, err := DecomposeFactorRisk(nil, nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = DecomposeFactorRisk(&FactorModel{
		Exposures: []FactorExposure{{Name: FactorMarket, Exposure: 0, Volatility: 10}},
	}, nil)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = DecomposeFactorRisk(&FactorModel{IdiosyncraticVolatility: -1}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = DecomposeFactorRisk(&FactorModel{
		Exposures: []FactorExposure{{Name: FactorMarket, Exposure: 1, Volatility: -3}},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	// 노출도 변동성도 없음
	_, err = DecomposeFactorRisk(&FactorModel{IdiosyncraticVolatility: 5}, nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestFactorScores_KnownAndExtra(t *testing.T) {
	scores := FactorScores{FactorMomentum: 1, "carbon": 2}

	assert.Equal(t, FactorScores{FactorMomentum: 1}, scores.Known())
	assert.Equal(t, FactorScores{"carbon": 2}, scores.Extra())
	assert.True(t, FactorDividendYield.IsWellKnown())
	assert.False(t, FactorName("carbon").IsWellKnown())
}
