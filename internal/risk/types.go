package risk

import "time"

// =============================================================================
// Conventions
// =============================================================================

// PeriodsPerYear 월간 데이터 연율화 기준
const PeriodsPerYear = 12

// VaRConvention VaR 부호 규약
// ⭐ SSOT: 손실을 양수로 표현 (VaR=5 → 한 달에 5% 손실 가능)
const VaRConvention = "loss_positive"

// 단위 규약
// - 수익률, VaR/CVaR, 변동성, MDD(RiskMetrics/StressTestResult): 퍼센트 (5 = 5%)
// - DrawdownPoint.Drawdown: 비율 [0, 1)
// - Holding 입력 비중: 0~1, ConcentrationMetrics 출력 비중: 퍼센트 포인트 (0~100)

// =============================================================================
// Series Types
// =============================================================================

// ReturnDataPoint 기간별 수익률 (퍼센트)
type ReturnDataPoint struct {
	Date                time.Time `json:"date"`
	PortfolioReturn     float64   `json:"portfolio_return"`
	BenchmarkReturn     Metric    `json:"benchmark_return"`     // 벤치마크 관측 전이면 null
	CumulativePortfolio float64   `json:"cumulative_portfolio"` // 첫 기간 대비 누적 수익률 (%)
	CumulativeBenchmark Metric    `json:"cumulative_benchmark"` // 벤치마크 첫 관측 대비
}

// RollingMetricPoint 롤링 지표 시계열 포인트
type RollingMetricPoint struct {
	Date  time.Time `json:"date"`
	Value Metric    `json:"value"`
}

// DrawdownPoint 낙폭 시계열 포인트
// 불변식: Drawdown = max(0, (Peak - Value) / Peak)
type DrawdownPoint struct {
	Date     time.Time `json:"date"`
	Drawdown float64   `json:"drawdown"` // 비율 [0, 1)
	Peak     float64   `json:"peak"`
	Value    float64   `json:"value"`
}

// =============================================================================
// Result Types
// =============================================================================

// RiskMetrics 포트폴리오 리스크 스냅샷
type RiskMetrics struct {
	SampleCount int `json:"sample_count"`

	VaR95           Metric `json:"var_95"`
	VaR99           Metric `json:"var_99"`
	CVaR95          Metric `json:"cvar_95"`
	ParametricVaR95 Metric `json:"parametric_var_95"`

	MaxDrawdown           Metric     `json:"max_drawdown"`
	MaxDrawdownPeakDate   *time.Time `json:"max_drawdown_peak_date"`
	MaxDrawdownTroughDate *time.Time `json:"max_drawdown_trough_date"`
	DrawdownDuration      int        `json:"drawdown_duration"` // 기간(월) 수
	CurrentDrawdown       Metric     `json:"current_drawdown"`

	Beta             Metric `json:"beta"`
	SharpeRatio      Metric `json:"sharpe_ratio"`
	SortinoRatio     Metric `json:"sortino_ratio"`
	InformationRatio Metric `json:"information_ratio"`
	CalmarRatio      Metric `json:"calmar_ratio"`

	AnnualizedVolatility Metric `json:"annualized_volatility"`
	DownsideVolatility   Metric `json:"downside_volatility"`
	TrackingError        Metric `json:"tracking_error"`

	RollingVaR    []RollingMetricPoint `json:"rolling_var"`
	RollingBeta   []RollingMetricPoint `json:"rolling_beta"`
	RollingSharpe []RollingMetricPoint `json:"rolling_sharpe"`
}

// FactorRiskContribution 팩터별 리스크 기여
type FactorRiskContribution struct {
	Name          FactorName `json:"name"`
	Exposure      float64    `json:"exposure"`     // σ 단위
	Volatility    float64    `json:"volatility"`   // 팩터 변동성 (%)
	Contribution  float64    `json:"contribution"` // 리스크 단위 (%)
	PercentOfRisk float64    `json:"percent_of_risk"`
}

// FactorRiskDecomposition 팩터 리스크 분해 결과
type FactorRiskDecomposition struct {
	Factors              []FactorRiskContribution `json:"factors"`
	SystematicRisk       float64                  `json:"systematic_risk"`
	IdiosyncraticRisk    float64                  `json:"idiosyncratic_risk"`
	TotalRisk            float64                  `json:"total_risk"`
	SystematicPercent    float64                  `json:"systematic_percent"`
	IdiosyncraticPercent float64                  `json:"idiosyncratic_percent"`
}

// SectorConcentration 섹터별 비중 (퍼센트 포인트)
type SectorConcentration struct {
	Sector          string  `json:"sector"`
	PortfolioWeight float64 `json:"portfolio_weight"`
	BenchmarkWeight float64 `json:"benchmark_weight"`
	ActiveWeight    float64 `json:"active_weight"`
	StockCount      int     `json:"stock_count"`
}

// CountryConcentration 국가별 비중 (퍼센트 포인트)
type CountryConcentration struct {
	Country         string  `json:"country"`
	PortfolioWeight float64 `json:"portfolio_weight"`
	BenchmarkWeight float64 `json:"benchmark_weight"`
	ActiveWeight    float64 `json:"active_weight"`
	StockCount      int     `json:"stock_count"`
}

// ConcentrationMetrics 집중도 지표
type ConcentrationMetrics struct {
	HHI             float64 `json:"hhi"`
	EffectiveStocks Metric  `json:"effective_stocks"`
	HoldingCount    int     `json:"holding_count"`

	Top5Weight  float64 `json:"top5_weight"`
	Top10Weight float64 `json:"top10_weight"`

	MaxSingleNameWeight float64 `json:"max_single_name_weight"`
	MaxSingleName       string  `json:"max_single_name"`
	MaxSectorWeight     float64 `json:"max_sector_weight"`
	MaxSector           string  `json:"max_sector"`
	MaxCountryWeight    float64 `json:"max_country_weight"`
	MaxCountry          string  `json:"max_country"`

	ActiveShare float64 `json:"active_share"`

	SectorConcentration  []SectorConcentration  `json:"sector_concentration"`
	CountryConcentration []CountryConcentration `json:"country_concentration"`
}

// StressScenario 과거 스트레스 구간
type StressScenario struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	BenchmarkReturn float64   `json:"benchmark_return"` // 과거 벤치마크 수익률 추정치 (%)
}

// StressTestResult 시나리오별 결과
// RecoveryMonths: 데이터 끝까지 회복하지 못하면 무효
type StressTestResult struct {
	Scenario        StressScenario `json:"scenario"`
	Overlap         bool           `json:"overlap"`
	PortfolioReturn Metric         `json:"portfolio_return"`
	BenchmarkReturn Metric         `json:"benchmark_return"`
	ExcessReturn    Metric         `json:"excess_return"`
	MaxDrawdown     Metric         `json:"max_drawdown"`
	Beta            Metric         `json:"beta"`
	RecoveryMonths  *int           `json:"recovery_months"`
}
