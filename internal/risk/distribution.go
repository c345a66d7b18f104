package risk

import (
	"fmt"
	"math"
)

// =============================================================================
// VaR/CVaR Types
// =============================================================================

// VaRResult VaR 계산 결과
// ⭐ SSOT: VaR/CVaR는 손실을 양수로 표현
// - VaR=5 → 95% 신뢰수준에서 월 최대 5% 손실 가능
// - CVaR=7 → 5% tail에서 평균 7% 손실 예상
type VaRResult struct {
	Confidence float64 `json:"confidence"`
	Quantile   float64 `json:"quantile"` // 부호 있는 분위 수익률
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// Distribution 분포 기반 리스크 지표
type Distribution struct {
	VaR95                Metric
	VaR99                Metric
	CVaR95               Metric
	ParametricVaR95      Metric
	AnnualizedVolatility Metric
	DownsideVolatility   Metric
}

// rankEpsilon (1-c)·n 부동소수 오차 보정 (예: 0.05·20 = 1.0000000000000009)
const rankEpsilon = 1e-9

// =============================================================================
// Historical VaR (Nearest-Rank)
// =============================================================================

// CalculateVaR 과거 수익률 기반 VaR 계산 (Historical Simulation)
// returns: 월간 수익률 (%) (양수=이익, 음수=손실)
// confidence: 신뢰수준 (예: 0.95, 0.99)
//
// Nearest-rank 규약: 오름차순 정렬 후 k = ⌈(1-c)·n⌉ 번째 값 (최소 1)
// CVaR는 그 분위 이하 모든 수익률의 평균
func CalculateVaR(returns []float64, confidence float64) (VaRResult, error) {
	if len(returns) < 2 {
		return VaRResult{Confidence: confidence}, fmt.Errorf("%w: VaR needs at least 2 periods, got %d",
			ErrInsufficientData, len(returns))
	}
	if confidence <= 0 || confidence >= 1 {
		return VaRResult{Confidence: confidence}, fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidInput)
	}

	sorted := sortedCopy(returns)
	k := nearestRank(len(sorted), confidence)
	q := sorted[k-1]

	// tail: 분위 이하 전부 (동률 포함)
	var sum float64
	var count int
	for _, r := range sorted {
		if r > q {
			break
		}
		sum += r
		count++
	}

	return VaRResult{
		Confidence: confidence,
		Quantile:   q,
		VaR:        lossMagnitude(q),
		CVaR:       lossMagnitude(sum / float64(count)),
	}, nil
}

// nearestRank 1-based rank ⌈(1-c)·n⌉, [1, n]로 제한
func nearestRank(n int, confidence float64) int {
	k := int(math.Ceil((1-confidence)*float64(n) - rankEpsilon))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

func lossMagnitude(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}

// =============================================================================
// Parametric VaR (정규분포 가정)
// =============================================================================

// CalculateParametricVaR 정규분포 가정 VaR 계산
// VaR = max(0, z·σ - μ), CVaR = max(0, σ·φ(z)/(1-c) - μ)
func CalculateParametricVaR(mean, stdDev, confidence float64) VaRResult {
	z := NormInv(confidence)

	varValue := math.Max(0, z*stdDev-mean)
	cvar := math.Max(0, stdDev*NormPDF(z)/(1-confidence)-mean)

	return VaRResult{
		Confidence: confidence,
		Quantile:   mean - z*stdDev,
		VaR:        varValue,
		CVaR:       cvar,
	}
}

// =============================================================================
// Volatility
// =============================================================================

// AnnualizedVolatility 연율화 변동성 (표본 표준편차 × √12)
func AnnualizedVolatility(returns []float64) (float64, error) {
	if len(returns) < 2 {
		return 0, fmt.Errorf("%w: volatility needs at least 2 periods", ErrInsufficientData)
	}
	return StdDev(returns) * math.Sqrt(PeriodsPerYear), nil
}

// DownsideVolatility 하방 변동성 (MAR=0 기준 semi-deviation × √12)
// 음수 수익률이 없으면 0
func DownsideVolatility(returns []float64) (float64, error) {
	if len(returns) < 2 {
		return 0, fmt.Errorf("%w: downside volatility needs at least 2 periods", ErrInsufficientData)
	}

	var sumSq float64
	var count int
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}

	return math.Sqrt(sumSq/float64(count)) * math.Sqrt(PeriodsPerYear), nil
}

// CalculateDistribution 분포 지표 일괄 계산
// 각 지표는 독립적으로 실패할 수 있음
func CalculateDistribution(returns []float64) Distribution {
	var d Distribution

	if v95, err := CalculateVaR(returns, 0.95); err != nil {
		d.VaR95 = None(err)
		d.CVaR95 = None(err)
	} else {
		d.VaR95 = Some(v95.VaR)
		d.CVaR95 = Some(v95.CVaR)
	}

	if v99, err := CalculateVaR(returns, 0.99); err != nil {
		d.VaR99 = None(err)
	} else {
		d.VaR99 = Some(v99.VaR)
	}

	d.AnnualizedVolatility = FromResult(AnnualizedVolatility(returns))
	d.DownsideVolatility = FromResult(DownsideVolatility(returns))

	if len(returns) >= 2 {
		d.ParametricVaR95 = Some(CalculateParametricVaR(Mean(returns), StdDev(returns), 0.95).VaR)
	} else {
		d.ParametricVaR95 = None(ErrInsufficientData)
	}

	return d
}
