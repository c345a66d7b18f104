package risk

import (
	"fmt"
	"math"
)

// zeroTolerance 분모 0 판정 기준 (상수 시계열의 부동소수 잔차 흡수)
const zeroTolerance = 1e-12

// Ratios 위험조정 수익 지표
type Ratios struct {
	Beta             Metric
	TrackingError    Metric
	InformationRatio Metric
	SharpeRatio      Metric
	SortinoRatio     Metric
	CalmarRatio      Metric
}

// AnnualizedReturn 산술 연율화 수익률 (12 × 월평균, %)
func AnnualizedReturn(returns []float64) float64 {
	return Mean(returns) * PeriodsPerYear
}

// CalculateBeta 표본 공분산 / 벤치마크 표본 분산
func CalculateBeta(portfolio, benchmark []float64) (float64, error) {
	if err := checkPaired(portfolio, benchmark); err != nil {
		return 0, err
	}
	v := Variance(benchmark)
	if v < zeroTolerance {
		return 0, fmt.Errorf("%w: benchmark variance is zero", ErrDivisionByZero)
	}
	return Covariance(portfolio, benchmark) / v, nil
}

// TrackingError 초과 수익률의 연율화 표준편차 (%)
func TrackingError(portfolio, benchmark []float64) (float64, error) {
	if err := checkPaired(portfolio, benchmark); err != nil {
		return 0, err
	}
	return StdDev(Excess(portfolio, benchmark)) * math.Sqrt(PeriodsPerYear), nil
}

// InformationRatio 연율화 초과 수익 / 추적오차
func InformationRatio(portfolio, benchmark []float64) (float64, error) {
	te, err := TrackingError(portfolio, benchmark)
	if err != nil {
		return 0, err
	}
	if te < zeroTolerance {
		return 0, fmt.Errorf("%w: tracking error is zero", ErrDivisionByZero)
	}
	return AnnualizedReturn(Excess(portfolio, benchmark)) / te, nil
}

// SharpeRatio (연율화 수익 - 무위험 수익) / 연율화 변동성
// riskFreeRate: 연 무위험 수익률 (%)
func SharpeRatio(returns []float64, riskFreeRate float64) (float64, error) {
	vol, err := AnnualizedVolatility(returns)
	if err != nil {
		return 0, err
	}
	if vol < zeroTolerance {
		return 0, fmt.Errorf("%w: volatility is zero", ErrDivisionByZero)
	}
	return (AnnualizedReturn(returns) - riskFreeRate) / vol, nil
}

// SortinoRatio 연율화 수익 / 하방 변동성
// 손실 기간이 없으면 계산 불가
func SortinoRatio(returns []float64) (float64, error) {
	dv, err := DownsideVolatility(returns)
	if err != nil {
		return 0, err
	}
	if dv < zeroTolerance {
		return 0, fmt.Errorf("%w: downside volatility is zero", ErrDivisionByZero)
	}
	return AnnualizedReturn(returns) / dv, nil
}

// CalmarRatio 연율화 수익 / MDD (%)
func CalmarRatio(returns []float64, maxDrawdownPct float64) (float64, error) {
	if len(returns) < 2 {
		return 0, fmt.Errorf("%w: calmar needs at least 2 periods", ErrInsufficientData)
	}
	if maxDrawdownPct < zeroTolerance {
		return 0, fmt.Errorf("%w: max drawdown is zero", ErrDivisionByZero)
	}
	return AnnualizedReturn(returns) / maxDrawdownPct, nil
}

// CalculateRatios 위험조정 지표 일괄 계산
// 벤치마크 상대 지표는 paired 구간(벤치마크 관측 기간)만 사용
// paired가 nil이면 계산 불가로 남김
func CalculateRatios(portfolio []float64, paired *PairedReturns, maxDrawdown Metric, riskFreeRate float64) Ratios {
	var r Ratios

	if paired == nil {
		noBench := fmt.Errorf("%w: benchmark series not available", ErrInsufficientData)
		r.Beta = None(noBench)
		r.TrackingError = None(noBench)
		r.InformationRatio = None(noBench)
	} else {
		r.Beta = FromResult(CalculateBeta(paired.Portfolio, paired.Benchmark))
		r.TrackingError = FromResult(TrackingError(paired.Portfolio, paired.Benchmark))
		r.InformationRatio = FromResult(InformationRatio(paired.Portfolio, paired.Benchmark))
	}

	r.SharpeRatio = FromResult(SharpeRatio(portfolio, riskFreeRate))
	r.SortinoRatio = FromResult(SortinoRatio(portfolio))

	if mdd, ok := maxDrawdown.Get(); ok {
		r.CalmarRatio = FromResult(CalmarRatio(portfolio, mdd))
	} else {
		r.CalmarRatio = None(fmt.Errorf("%w: max drawdown not available", ErrInsufficientData))
	}

	return r
}

func checkPaired(a, b []float64) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: series length mismatch (%d vs %d)", ErrInvalidInput, len(a), len(b))
	}
	if len(a) < 2 {
		return fmt.Errorf("%w: need at least 2 paired periods, got %d", ErrInsufficientData, len(a))
	}
	return nil
}
