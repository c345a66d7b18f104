package risk

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Monte Carlo Simulation
// =============================================================================

// SimulationMethod 시뮬레이션 방식
type SimulationMethod string

const (
	MethodBootstrap  SimulationMethod = "bootstrap"  // 과거 월간 수익률 재샘플링
	MethodParametric SimulationMethod = "parametric" // 정규분포 가정
)

// MonteCarloConfig 시뮬레이션 설정
type MonteCarloConfig struct {
	NumSimulations   int              `json:"num_simulations"`
	HoldingPeriod    int              `json:"holding_period"` // 개월
	ConfidenceLevels []float64        `json:"confidence_levels"`
	Method           SimulationMethod `json:"method"`
	MinSamples       int              `json:"min_samples"` // 미만이면 fail-closed
	Seed             int64            `json:"seed"`        // 0이면 시각 기반
}

// DefaultMonteCarloConfig 기본 설정 (1만회, 12개월 보유)
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		NumSimulations:   10000,
		HoldingPeriod:    12,
		ConfidenceLevels: []float64{0.95, 0.99},
		Method:           MethodBootstrap,
		MinSamples:       24,
	}
}

// Validate 설정 유효성 검사
func (c MonteCarloConfig) Validate() error {
	if c.NumSimulations < 2 {
		return fmt.Errorf("%w: num_simulations must be >= 2", ErrInvalidInput)
	}
	if c.HoldingPeriod <= 0 {
		return fmt.Errorf("%w: holding_period must be > 0", ErrInvalidInput)
	}
	if c.MinSamples < 2 {
		return fmt.Errorf("%w: min_samples must be >= 2", ErrInvalidInput)
	}
	if c.Method != MethodBootstrap && c.Method != MethodParametric {
		return fmt.Errorf("%w: unknown method %q", ErrInvalidInput, c.Method)
	}
	for _, cl := range c.ConfidenceLevels {
		if cl <= 0 || cl >= 1 {
			return fmt.Errorf("%w: confidence level %v must be between 0 and 1", ErrInvalidInput, cl)
		}
	}
	return nil
}

// MonteCarloResult 보유 기간 누적 수익률 분포 (%)
type MonteCarloResult struct {
	RunID            string             `json:"run_id"`
	RunDate          time.Time          `json:"run_date"`
	Config           MonteCarloConfig   `json:"config"`
	InputSampleCount int                `json:"input_sample_count"`
	MeanReturn       float64            `json:"mean_return"`
	StdDev           float64            `json:"std_dev"`
	VaR              map[string]float64 `json:"var"`  // "0.95" → 손실 (양수)
	CVaR             map[string]float64 `json:"cvar"` // "0.95" → 평균 tail 손실
	Percentiles      map[int]float64    `json:"percentiles"`
}

// MonteCarloSimulator Monte Carlo 시뮬레이터
type MonteCarloSimulator struct {
	config MonteCarloConfig
	rng    *rand.Rand
}

// NewMonteCarloSimulator 새 시뮬레이터 생성
func NewMonteCarloSimulator(config MonteCarloConfig) *MonteCarloSimulator {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MonteCarloSimulator{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Simulate 월간 수익률 시계열로 보유 기간 누적 수익률 분포 추정
// returns: 월간 수익률 (%)
func (mc *MonteCarloSimulator) Simulate(ctx context.Context, returns []float64) (*MonteCarloResult, error) {
	if err := mc.config.Validate(); err != nil {
		return nil, err
	}
	// Fail-closed: 최소 샘플 수 체크
	if len(returns) < mc.config.MinSamples {
		return nil, fmt.Errorf("%w: got %d monthly returns, need %d",
			ErrInsufficientData, len(returns), mc.config.MinSamples)
	}

	outcomes := make([]float64, mc.config.NumSimulations)
	mean, std := Mean(returns), StdDev(returns)

	for i := range outcomes {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		cum := 1.0
		for m := 0; m < mc.config.HoldingPeriod; m++ {
			var r float64
			if mc.config.Method == MethodParametric {
				r = mean + std*mc.rng.NormFloat64()
			} else {
				r = returns[mc.rng.Intn(len(returns))]
			}
			// 월 -100% 미만은 불가능
			cum *= math.Max(0, 1+r/100)
		}
		outcomes[i] = (cum - 1) * 100
	}

	result := mc.summarize(outcomes)
	result.InputSampleCount = len(returns)
	return result, nil
}

// summarize 시뮬레이션 결과 통계
func (mc *MonteCarloSimulator) summarize(outcomes []float64) *MonteCarloResult {
	result := &MonteCarloResult{
		RunID:       uuid.New().String(),
		RunDate:     time.Now(),
		Config:      mc.config,
		MeanReturn:  Mean(outcomes),
		StdDev:      StdDev(outcomes),
		VaR:         make(map[string]float64, len(mc.config.ConfidenceLevels)),
		CVaR:        make(map[string]float64, len(mc.config.ConfidenceLevels)),
		Percentiles: make(map[int]float64),
	}

	for _, cl := range mc.config.ConfidenceLevels {
		v, err := CalculateVaR(outcomes, cl)
		if err != nil {
			continue
		}
		key := fmt.Sprintf("%.2f", cl)
		result.VaR[key] = v.VaR
		result.CVaR[key] = v.CVaR
	}

	sorted := sortedCopy(outcomes)
	for _, p := range []int{1, 5, 10, 25, 50, 75, 90, 95, 99} {
		result.Percentiles[p] = Percentile(sorted, float64(p))
	}

	return result
}
