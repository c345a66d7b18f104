package risk

import "time"

// =============================================================================
// Input Types (순수 입력, 로딩은 상위 레이어 담당)
// =============================================================================

// PerformancePoint 월간 성과 레코드
// 값이 nil이면 해당 기간 데이터 누락
type PerformancePoint struct {
	Date           time.Time `json:"date"`
	PortfolioValue *float64  `json:"portfolio_value"`
	BenchmarkValue *float64  `json:"benchmark_value"`
	Return         *float64  `json:"return,omitempty"` // 사전 계산된 포트폴리오 수익률 (%)
	Alpha          *float64  `json:"alpha,omitempty"`
}

// FactorName 팩터 식별자
type FactorName string

// 잘 알려진 팩터 (그 외 이름은 확장 팩터로 취급)
const (
	FactorMarket        FactorName = "market"
	FactorSize          FactorName = "size"
	FactorValue         FactorName = "value"
	FactorMomentum      FactorName = "momentum"
	FactorQuality       FactorName = "quality"
	FactorLowVolatility FactorName = "low_volatility"
	FactorGrowth        FactorName = "growth"
	FactorDividendYield FactorName = "dividend_yield"
)

// WellKnownFactors returns the declared factor set in display order.
func WellKnownFactors() []FactorName {
	return []FactorName{
		FactorMarket,
		FactorSize,
		FactorValue,
		FactorMomentum,
		FactorQuality,
		FactorLowVolatility,
		FactorGrowth,
		FactorDividendYield,
	}
}

// IsWellKnown reports whether the factor belongs to the declared set.
func (f FactorName) IsWellKnown() bool {
	for _, known := range WellKnownFactors() {
		if f == known {
			return true
		}
	}
	return false
}

// FactorScores 종목별 팩터 점수 (σ 단위)
type FactorScores map[FactorName]float64

// Known returns only the well-known factor scores.
func (s FactorScores) Known() FactorScores {
	out := make(FactorScores)
	for name, v := range s {
		if name.IsWellKnown() {
			out[name] = v
		}
	}
	return out
}

// Extra returns the scores outside the declared set.
func (s FactorScores) Extra() FactorScores {
	out := make(FactorScores)
	for name, v := range s {
		if !name.IsWellKnown() {
			out[name] = v
		}
	}
	return out
}

// Holding 보유 종목 (비중 0~1)
// 벤치마크에만 있는 종목은 PortfolioWeight=0으로 포함
type Holding struct {
	Ticker          string       `json:"ticker"`
	Name            string       `json:"name"`
	PortfolioWeight float64      `json:"portfolio_weight"`
	BenchmarkWeight float64      `json:"benchmark_weight"`
	Sector          string       `json:"sector"`
	Country         string       `json:"country"`
	Region          string       `json:"region"`
	Factors         FactorScores `json:"factors,omitempty"`
}

// FactorExposure 팩터 노출 입력
type FactorExposure struct {
	Name       FactorName `json:"name"`
	Exposure   float64    `json:"exposure"`   // σ 단위
	Volatility float64    `json:"volatility"` // 팩터 변동성 (%)
}

// FactorModel 팩터 리스크 모델 입력
// Exposures가 비어 있으면 Holdings의 팩터 점수와 Volatilities로 노출을 구성
type FactorModel struct {
	Exposures               []FactorExposure       `json:"exposures,omitempty"`
	Volatilities            map[FactorName]float64 `json:"volatilities,omitempty"`
	IdiosyncraticVolatility float64                `json:"idiosyncratic_volatility"`
}

// Input 리스크 계산 입력 묶음
type Input struct {
	Performance []PerformancePoint `json:"performance"`
	Holdings    []Holding          `json:"holdings,omitempty"`
	Factors     *FactorModel       `json:"factors,omitempty"`
}
