package risk

import (
	"fmt"
	"time"
)

// DefaultRollingWindow 롤링 지표 기본 윈도우 (12개월)
const DefaultRollingWindow = 12

// rollingFunc 윈도우 구간 지표 계산
type rollingFunc func(portfolio, benchmark []float64) (float64, error)

// RollingVaR 롤링 95% VaR
func RollingVaR(dates []time.Time, returns []float64, window int) []RollingMetricPoint {
	return rolling(dates, returns, nil, window, func(p, _ []float64) (float64, error) {
		v, err := CalculateVaR(p, 0.95)
		return v.VaR, err
	})
}

// RollingBeta 롤링 베타, benchmark가 nil이면 빈 시계열
func RollingBeta(dates []time.Time, portfolio, benchmark []float64, window int) []RollingMetricPoint {
	if benchmark == nil {
		return []RollingMetricPoint{}
	}
	return rolling(dates, portfolio, benchmark, window, CalculateBeta)
}

// RollingSharpe 롤링 샤프 비율
func RollingSharpe(dates []time.Time, returns []float64, window int, riskFreeRate float64) []RollingMetricPoint {
	return rolling(dates, returns, nil, window, func(p, _ []float64) (float64, error) {
		return SharpeRatio(p, riskFreeRate)
	})
}

// rolling 윈도우 끝 날짜에 지표를 기록, 윈도우보다 짧은 시계열은 빈 결과
func rolling(dates []time.Time, portfolio, benchmark []float64, window int, fn rollingFunc) []RollingMetricPoint {
	if window < 2 {
		window = 2
	}
	n := len(portfolio)
	if len(dates) < n {
		n = len(dates)
	}
	if n < window {
		return []RollingMetricPoint{}
	}

	out := make([]RollingMetricPoint, 0, n-window+1)
	for end := window; end <= n; end++ {
		var bench []float64
		if benchmark != nil {
			bench = benchmark[end-window : end]
		}
		out = append(out, RollingMetricPoint{
			Date:  dates[end-1],
			Value: FromResult(fn(portfolio[end-window:end], bench)),
		})
	}
	return out
}

// validateWindow returns an error for windows that cannot produce a sample statistic.
func validateWindow(window int) error {
	if window < 2 {
		return fmt.Errorf("%w: rolling window must be at least 2, got %d", ErrInvalidInput, window)
	}
	return nil
}
