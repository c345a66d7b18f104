package risk

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, scenarios ...StressScenario) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.Scenarios = scenarios
	e, err := NewEngine(cfg, zerolog.Nop())
	require.NoError(t, err)
	return e
}

// fullInput 24개월 성과 + 보유 종목 + 팩터 모델
func fullInput() Input {
	portfolio := make([]float64, 24)
	bench := make([]float64, 24)
	portfolio[0], bench[0] = 100, 1000
	for i := 1; i < 24; i++ {
		b := 3 * math.Sin(float64(i))
		bench[i] = bench[i-1] * (1 + b/100)
		portfolio[i] = portfolio[i-1] * (1 + (1.2*b+0.4*math.Cos(float64(3*i)))/100)
	}

	return Input{
		Performance: perfSeries(portfolio, bench),
		Holdings: []Holding{
			{Ticker: "A", PortfolioWeight: 0.5, BenchmarkWeight: 0.3, Sector: "IT", Country: "KR",
				Factors: FactorScores{FactorMarket: 1.1}},
			{Ticker: "B", PortfolioWeight: 0.3, BenchmarkWeight: 0.4, Sector: "Energy", Country: "US",
				Factors: FactorScores{FactorMarket: 0.9}},
			{Ticker: "C", PortfolioWeight: 0.2, BenchmarkWeight: 0.3, Sector: "IT", Country: "US",
				Factors: FactorScores{FactorMarket: 1.0}},
		},
		Factors: &FactorModel{
			Exposures: []FactorExposure{
				{Name: FactorMarket, Exposure: 1.05, Volatility: 16},
				{Name: FactorMomentum, Exposure: 0.3, Volatility: 6},
			},
			IdiosyncraticVolatility: 7,
		},
	}
}

func TestEngine_CalculateAllSlices(t *testing.T) {
	e := newTestEngine(t, scenario("window", monthEnd(3), monthEnd(8), -10))

	b := e.Calculate(context.Background(), fullInput())

	assert.NotEmpty(t, b.RunID)
	assert.Empty(t, b.Errors)
	require.NotNil(t, b.RiskMetrics)
	require.NotNil(t, b.FactorRisk)
	require.NotNil(t, b.Concentration)
	require.Len(t, b.StressTests, 1)

	m := b.RiskMetrics
	assert.Equal(t, 23, m.SampleCount)
	assert.Len(t, b.Returns, 23)
	assert.Len(t, b.Drawdowns, 24)
	assert.GreaterOrEqual(t, m.VaR99.Value, m.VaR95.Value)
	assert.GreaterOrEqual(t, m.CVaR95.Value, m.VaR95.Value)
	assert.True(t, m.Beta.Valid)
	assert.True(t, m.TrackingError.Valid)
	assert.True(t, m.SharpeRatio.Valid)
	assert.Len(t, m.RollingVaR, 23-12+1)
	assert.Len(t, m.RollingBeta, 23-12+1)
	assert.Len(t, m.RollingSharpe, 23-12+1)

	assert.True(t, b.StressTests[0].Overlap)
	assert.InDelta(t, 100.0, b.FactorRisk.SystematicPercent+b.FactorRisk.IdiosyncraticPercent, 1e-9)
}

func TestEngine_Idempotent(t *testing.T) {
	e := newTestEngine(t, scenario("window", monthEnd(3), monthEnd(8), -10))
	input := fullInput()

	a := e.Calculate(context.Background(), input)
	b := e.Calculate(context.Background(), input)

	assert.NotEqual(t, a.RunID, b.RunID)
	b.RunID = a.RunID
	b.CalculatedAt = a.CalculatedAt
	assert.Equal(t, a, b)
}

func TestEngine_SliceFailuresAreIndependent(t *testing.T) {
	e := newTestEngine(t)
	input := fullInput()
	input.Factors = nil

	b := e.Calculate(context.Background(), input)

	assert.Nil(t, b.FactorRisk)
	assert.Contains(t, b.Errors, SliceFactorRisk)
	assert.NotNil(t, b.RiskMetrics)
	assert.NotNil(t, b.Concentration)
	assert.NotContains(t, b.Errors, SliceRiskMetrics)
}

func TestEngine_NoPerformanceData(t *testing.T) {
	gfc := scenario("gfc",
		time.Date(2007, 10, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2009, 2, 28, 0, 0, 0, 0, time.UTC),
		-52.6)
	e := newTestEngine(t, gfc)

	input := fullInput()
	input.Performance = nil
	b := e.Calculate(context.Background(), input)

	assert.Nil(t, b.RiskMetrics)
	assert.Contains(t, b.Errors[SliceRiskMetrics], ErrInsufficientData.Error())
	assert.NotNil(t, b.Concentration)
	require.Len(t, b.StressTests, 1)
	assert.False(t, b.StressTests[0].Overlap)
	assert.Equal(t, -52.6, b.StressTests[0].BenchmarkReturn.Value)
}

func TestEngine_SinglePeriodFailsDistribution(t *testing.T) {
	e := newTestEngine(t)
	b := e.Calculate(context.Background(), Input{Performance: perfSeries([]float64{100, 101}, nil)})

	require.NotNil(t, b.RiskMetrics)
	assert.False(t, b.RiskMetrics.VaR95.Valid)
	assert.False(t, b.RiskMetrics.AnnualizedVolatility.Valid)
	assert.False(t, b.RiskMetrics.Beta.Valid)
}

func TestEngine_MissingBenchmarkEncodesNull(t *testing.T) {
	e := newTestEngine(t)
	input := fullInput()
	for i := range input.Performance {
		input.Performance[i].BenchmarkValue = nil
	}

	b := e.Calculate(context.Background(), input)
	data, err := json.Marshal(b.RiskMetrics)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"beta":null`)
	assert.Contains(t, string(data), `"tracking_error":null`)
	assert.Contains(t, string(data), `"rolling_beta":[]`)
}

func TestEngine_LeadingBenchmarkGapUsesObservedSpan(t *testing.T) {
	e := newTestEngine(t)
	input := fullInput()
	for i := 0; i < 10; i++ {
		input.Performance[i].BenchmarkValue = nil
	}

	b := e.Calculate(context.Background(), input)
	require.NotNil(t, b.RiskMetrics)
	m := b.RiskMetrics

	series, err := NormalizeSeries(input.Performance)
	require.NoError(t, err)
	paired := series.Paired()
	require.NotNil(t, paired)
	require.Len(t, paired.Benchmark, 13)

	wantBeta, err := CalculateBeta(paired.Portfolio, paired.Benchmark)
	require.NoError(t, err)
	assert.InDelta(t, wantBeta, m.Beta.Value, 1e-9)
	assert.True(t, m.TrackingError.Valid)
	assert.Len(t, m.RollingBeta, 13-12+1)
	assert.Equal(t, 23, m.SampleCount)

	assert.False(t, b.Returns[0].BenchmarkReturn.Valid)
	assert.True(t, b.Returns[10].BenchmarkReturn.Valid)
}

func TestEngine_SingleBenchmarkObservationIsNotEnough(t *testing.T) {
	e := newTestEngine(t)
	performance := perfSeries([]float64{100, 90, 80, 85}, nil)
	performance[3].BenchmarkValue = f64(50)

	b := e.Calculate(context.Background(), Input{Performance: performance})
	require.NotNil(t, b.RiskMetrics)

	assert.False(t, b.RiskMetrics.Beta.Valid)
	assert.False(t, b.RiskMetrics.TrackingError.Valid)
	assert.False(t, b.RiskMetrics.InformationRatio.Valid)
	assert.Empty(t, b.RiskMetrics.RollingBeta)
	assert.True(t, b.RiskMetrics.SharpeRatio.Valid)
}

type fakeRecorder struct {
	mu     sync.Mutex
	slices []string
	errs   int
}

func (r *fakeRecorder) ObserveSlice(slice string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slices = append(r.slices, slice)
	if err != nil {
		r.errs++
	}
}

func TestEngine_RecorderAndCancellation(t *testing.T) {
	rec := &fakeRecorder{}
	e := newTestEngine(t).WithRecorder(rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := e.Calculate(ctx, fullInput())

	assert.Equal(t, []string{SliceRiskMetrics, SliceFactorRisk, SliceConcentration, SliceStressTests}, rec.slices)
	assert.Equal(t, 4, rec.errs)
	assert.Len(t, b.Errors, 4)
	assert.Equal(t, context.Canceled.Error(), b.Errors[SliceConcentration])
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.RollingWindow = 1
	_, err := NewEngine(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidInput)

	cfg = DefaultEngineConfig()
	cfg.RiskFreeRate = math.NaN()
	_, err = NewEngine(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidInput)
}
