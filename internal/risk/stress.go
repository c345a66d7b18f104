package risk

import (
	"fmt"
	"time"
)

// EvaluateStress 과거 스트레스 시나리오별 포트폴리오 반응 계산
//
// 경계 규칙: 요청 날짜 이하의 가장 가까운 기간을 사용
// 시나리오가 데이터 시작 전에 시작하면 첫 기간부터 평가 (부분 겹침)
// 종료 기간이 시작 이후가 아니면 겹치는 데이터 없음으로 처리
// (벤치마크는 시나리오의 정적 추정치, 포트폴리오 지표는 계산 불가)
func EvaluateStress(series *Series, scenarios []StressScenario) []StressTestResult {
	results := make([]StressTestResult, 0, len(scenarios))
	for _, sc := range scenarios {
		results = append(results, evaluateScenario(series, sc))
	}
	return results
}

func evaluateScenario(s *Series, sc StressScenario) StressTestResult {
	result := StressTestResult{Scenario: sc}

	startIdx, endIdx := -1, -1
	if s != nil {
		startIdx = periodAtOrBefore(s.Dates, sc.StartDate)
		endIdx = periodAtOrBefore(s.Dates, sc.EndDate)
		if startIdx < 0 && endIdx > 0 {
			startIdx = 0
		}
	}

	if startIdx < 0 || endIdx <= startIdx {
		noOverlap := fmt.Errorf("%w: scenario %s (%s ~ %s)", ErrMissingScenarioOverlap,
			sc.ID, sc.StartDate.Format("2006-01-02"), sc.EndDate.Format("2006-01-02"))
		result.PortfolioReturn = None(noOverlap)
		result.BenchmarkReturn = Some(sc.BenchmarkReturn)
		result.ExcessReturn = None(noOverlap)
		result.MaxDrawdown = None(noOverlap)
		result.Beta = None(noOverlap)
		return result
	}

	result.Overlap = true

	portRet := (s.Portfolio[endIdx]/s.Portfolio[startIdx] - 1) * 100
	result.PortfolioReturn = Some(portRet)

	// 구간 시작부터 관측된 벤치마크가 없으면 정적 추정치로 대체
	observed := s.BenchmarkCovers(startIdx)
	benchRet := sc.BenchmarkReturn
	if observed {
		benchRet = (s.Benchmark[endIdx]/s.Benchmark[startIdx] - 1) * 100
	}
	result.BenchmarkReturn = Some(benchRet)
	result.ExcessReturn = Some(portRet - benchRet)

	window := s.ValuePoints()[startIdx : endIdx+1]
	if dd, err := TrackDrawdown(window); err != nil {
		result.MaxDrawdown = None(err)
	} else {
		result.MaxDrawdown = Some(dd.MaxDrawdown * 100)
	}

	// Points[i]는 Dates[i+1]의 수익률 → 구간 수익률은 [startIdx, endIdx)
	// Paired는 BenchmarkFrom부터 시작
	if observed {
		paired := s.Paired()
		from, to := startIdx-s.BenchmarkFrom, endIdx-s.BenchmarkFrom
		result.Beta = FromResult(CalculateBeta(paired.Portfolio[from:to], paired.Benchmark[from:to]))
	} else {
		result.Beta = None(fmt.Errorf("%w: benchmark series not available", ErrInsufficientData))
	}

	result.RecoveryMonths = recoveryPeriods(s.Portfolio, startIdx, endIdx)

	return result
}

// recoveryPeriods 시나리오 종료 후 시나리오 이전 고점을 회복하기까지 기간 수
// 데이터 끝까지 회복하지 못하면 nil
func recoveryPeriods(values []float64, startIdx, endIdx int) *int {
	prePeak := values[0]
	for i := 1; i <= startIdx; i++ {
		if values[i] > prePeak {
			prePeak = values[i]
		}
	}

	for k := endIdx; k < len(values); k++ {
		if values[k] >= prePeak {
			months := k - endIdx
			return &months
		}
	}
	return nil
}

// periodAtOrBefore 날짜 이하인 마지막 기간 인덱스, 없으면 -1
func periodAtOrBefore(dates []time.Time, target time.Time) int {
	idx := -1
	for i, d := range dates {
		if d.After(target) {
			break
		}
		idx = i
	}
	return idx
}
