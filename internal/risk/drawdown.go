package risk

import (
	"fmt"
	"time"
)

// ValuePoint 수준 시계열 포인트
type ValuePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// DrawdownResult 낙폭 추적 결과 (비율 단위)
type DrawdownResult struct {
	Points          []DrawdownPoint
	MaxDrawdown     float64
	PeakIndex       int // MDD 직전 고점 인덱스, MDD가 없으면 -1
	TroughIndex     int // MDD 저점 인덱스, MDD가 없으면 -1
	PeakDate        *time.Time
	TroughDate      *time.Time
	Duration        int // 고점 → 저점 (아직 회복 전이면 고점 → 마지막) 기간 수
	CurrentDrawdown float64
}

// TrackDrawdown 단일 순회로 고점/낙폭 추적
// ⭐ SSOT: 낙폭 계산은 여기서만 (스트레스 구간 MDD도 동일 함수 사용)
//
// 고점은 V ≥ P일 때 갱신, MDD가 같은 값이면 먼저 나온 구간 유지
func TrackDrawdown(values []ValuePoint) (*DrawdownResult, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty value series", ErrInsufficientData)
	}
	for _, v := range values {
		if v.Value <= 0 || !isFinite(v.Value) {
			return nil, fmt.Errorf("%w: non-positive value %v at %s",
				ErrInvalidInput, v.Value, v.Date.Format("2006-01-02"))
		}
	}

	result := &DrawdownResult{
		Points:      make([]DrawdownPoint, len(values)),
		PeakIndex:   -1,
		TroughIndex: -1,
	}

	peak := values[0].Value
	peakIdx := 0

	for i, v := range values {
		if v.Value >= peak {
			peak = v.Value
			peakIdx = i
		}

		dd := (peak - v.Value) / peak
		if dd < 0 {
			dd = 0
		}

		result.Points[i] = DrawdownPoint{
			Date:     v.Date,
			Drawdown: dd,
			Peak:     peak,
			Value:    v.Value,
		}

		if dd > result.MaxDrawdown {
			result.MaxDrawdown = dd
			result.TroughIndex = i
			result.PeakIndex = peakIdx
		}
	}

	last := len(values) - 1
	result.CurrentDrawdown = result.Points[last].Drawdown

	if result.TroughIndex >= 0 {
		peakDate := values[result.PeakIndex].Date
		troughDate := values[result.TroughIndex].Date
		result.PeakDate = &peakDate
		result.TroughDate = &troughDate

		if peakIdx == result.PeakIndex {
			// MDD 고점 이후 신고가 없음 → 마지막 관측까지
			result.Duration = last - result.PeakIndex
		} else {
			result.Duration = result.TroughIndex - result.PeakIndex
		}
	}

	return result, nil
}
