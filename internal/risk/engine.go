package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// Engine - 순수 계산 오케스트레이터
// =============================================================================

// 결과 슬라이스 이름 (Bundle.Errors 키, 메트릭 라벨)
const (
	SliceRiskMetrics   = "risk_metrics"
	SliceFactorRisk    = "factor_risk"
	SliceConcentration = "concentration"
	SliceStressTests   = "stress_tests"
)

// EngineConfig 엔진 설정
type EngineConfig struct {
	RiskFreeRate  float64          // 연 무위험 수익률 (%)
	RollingWindow int              // 롤링 지표 윈도우 (기간 수)
	Scenarios     []StressScenario // 스트레스 시나리오 카탈로그
}

// DefaultEngineConfig 기본 설정 (무위험 0%, 12개월 롤링, 시나리오 없음)
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RollingWindow: DefaultRollingWindow,
	}
}

// Validate 설정 유효성 검사
func (c EngineConfig) Validate() error {
	if !isFinite(c.RiskFreeRate) {
		return fmt.Errorf("%w: risk-free rate %v", ErrInvalidInput, c.RiskFreeRate)
	}
	return validateWindow(c.RollingWindow)
}

// Recorder 슬라이스별 계산 결과 관측 (메트릭 수집용, 선택)
type Recorder interface {
	ObserveSlice(slice string, duration time.Duration, err error)
}

// Bundle 한 번의 계산 결과 묶음
// 실패한 슬라이스는 nil이고 사유는 Errors에 기록
type Bundle struct {
	RunID         string                   `json:"run_id"`
	CalculatedAt  time.Time                `json:"calculated_at"`
	RiskMetrics   *RiskMetrics             `json:"risk_metrics"`
	Returns       []ReturnDataPoint        `json:"returns"`
	Drawdowns     []DrawdownPoint          `json:"drawdowns"`
	FactorRisk    *FactorRiskDecomposition `json:"factor_risk"`
	Concentration *ConcentrationMetrics    `json:"concentration_risk"`
	StressTests   []StressTestResult       `json:"stress_test_results"`
	Errors        map[string]string        `json:"errors,omitempty"`
}

// Engine 리스크 엔진
// ⭐ SSOT: 데이터 로딩/캐시/전송은 상위 레이어에서 담당, Engine은 순수 계산만
type Engine struct {
	config   EngineConfig
	logger   zerolog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewEngine 새 리스크 엔진 생성
func NewEngine(config EngineConfig, logger zerolog.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		config: config,
		logger: logger.With().Str("component", "risk_engine").Logger(),
		now:    time.Now,
	}, nil
}

// WithRecorder 관측 훅 설정
func (e *Engine) WithRecorder(r Recorder) *Engine {
	e.recorder = r
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Calculate 전체 리스크 계산
// 각 슬라이스는 독립적으로 계산되며 하나의 실패가 다른 슬라이스를 막지 않음
func (e *Engine) Calculate(ctx context.Context, input Input) *Bundle {
	bundle := &Bundle{
		RunID:        uuid.New().String(),
		CalculatedAt: e.now(),
		Errors:       make(map[string]string),
	}

	series, seriesErr := NormalizeSeries(input.Performance)
	if seriesErr == nil {
		bundle.Returns = series.Points
	}

	e.run(ctx, bundle, SliceRiskMetrics, func() error {
		if seriesErr != nil {
			return seriesErr
		}
		metrics, drawdowns := e.riskMetrics(series)
		bundle.RiskMetrics = metrics
		bundle.Drawdowns = drawdowns
		return nil
	})

	e.run(ctx, bundle, SliceFactorRisk, func() error {
		fr, err := DecomposeFactorRisk(input.Factors, input.Holdings)
		if err != nil {
			return err
		}
		bundle.FactorRisk = fr
		return nil
	})

	e.run(ctx, bundle, SliceConcentration, func() error {
		cm, err := AnalyzeConcentration(input.Holdings)
		if err != nil {
			return err
		}
		bundle.Concentration = cm
		return nil
	})

	e.run(ctx, bundle, SliceStressTests, func() error {
		// 시계열이 없어도 시나리오별 정적 벤치마크 추정치는 제공
		bundle.StressTests = EvaluateStress(series, e.config.Scenarios)
		return nil
	})

	e.logger.Debug().
		Str("run_id", bundle.RunID).
		Int("periods", len(bundle.Returns)).
		Int("holdings", len(input.Holdings)).
		Int("failed_slices", len(bundle.Errors)).
		Msg("Risk calculation completed")

	return bundle
}

// run 슬라이스 하나를 실행하고 실패 사유와 관측값을 기록
func (e *Engine) run(ctx context.Context, bundle *Bundle, slice string, fn func() error) {
	start := time.Now()

	err := ctx.Err()
	if err == nil {
		err = fn()
	}

	if err != nil {
		bundle.Errors[slice] = err.Error()
		e.logger.Debug().Err(err).Str("slice", slice).Msg("Risk slice not computed")
	}
	if e.recorder != nil {
		e.recorder.ObserveSlice(slice, time.Since(start), err)
	}
}

// riskMetrics 분포/낙폭/위험조정/롤링 지표 조립
func (e *Engine) riskMetrics(s *Series) (*RiskMetrics, []DrawdownPoint) {
	port := s.PortfolioReturns()
	paired := s.Paired()

	dist := CalculateDistribution(port)
	m := &RiskMetrics{
		SampleCount:          len(port),
		VaR95:                dist.VaR95,
		VaR99:                dist.VaR99,
		CVaR95:               dist.CVaR95,
		ParametricVaR95:      dist.ParametricVaR95,
		AnnualizedVolatility: dist.AnnualizedVolatility,
		DownsideVolatility:   dist.DownsideVolatility,
	}

	var drawdowns []DrawdownPoint
	if dd, err := TrackDrawdown(s.ValuePoints()); err != nil {
		m.MaxDrawdown = None(err)
		m.CurrentDrawdown = None(err)
	} else {
		drawdowns = dd.Points
		m.MaxDrawdown = Some(dd.MaxDrawdown * 100)
		m.CurrentDrawdown = Some(dd.CurrentDrawdown * 100)
		m.MaxDrawdownPeakDate = dd.PeakDate
		m.MaxDrawdownTroughDate = dd.TroughDate
		m.DrawdownDuration = dd.Duration
	}

	ratios := CalculateRatios(port, paired, m.MaxDrawdown, e.config.RiskFreeRate)
	m.Beta = ratios.Beta
	m.TrackingError = ratios.TrackingError
	m.InformationRatio = ratios.InformationRatio
	m.SharpeRatio = ratios.SharpeRatio
	m.SortinoRatio = ratios.SortinoRatio
	m.CalmarRatio = ratios.CalmarRatio

	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
	}
	m.RollingVaR = RollingVaR(dates, port, e.config.RollingWindow)
	m.RollingBeta = []RollingMetricPoint{}
	if paired != nil {
		m.RollingBeta = RollingBeta(paired.Dates, paired.Portfolio, paired.Benchmark, e.config.RollingWindow)
	}
	m.RollingSharpe = RollingSharpe(dates, port, e.config.RollingWindow, e.config.RiskFreeRate)

	return m, drawdowns
}
