package risk

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Series 정규화된 월간 시계열
// ⭐ SSOT: 원시 성과 데이터 → 수익률 변환은 여기서만
type Series struct {
	Dates     []time.Time
	Portfolio []float64 // 포트폴리오 수준 (결측 보정 후)
	Benchmark []float64 // 벤치마크 수준, nil이면 벤치마크 없음 (BenchmarkFrom 이전은 NaN)
	Points    []ReturnDataPoint

	// BenchmarkFrom 벤치마크가 처음 관측된 기간 (Dates 인덱스)
	// 그 이전 기간은 벤치마크 결측으로 남김
	BenchmarkFrom int
}

// PairedReturns 벤치마크가 관측된 구간의 같은 기간 수익률 쌍 (%)
type PairedReturns struct {
	Dates     []time.Time
	Portfolio []float64
	Benchmark []float64
}

// NormalizeSeries 원시 성과 레코드를 정렬된 수익률 시계열로 변환
//
// 결측 처리 규칙:
//   - 포트폴리오 값이 없거나 0 이하이면 사전 계산 수익률(Return)로 복원, 그것도 없으면 기간 제외
//   - 벤치마크 값이 없으면 직전 값으로 채움, 첫 관측 이전 기간은 결측으로 남김
//   - 같은 날짜가 여러 번 나오면 마지막 레코드 사용
func NormalizeSeries(points []PerformancePoint) (*Series, error) {
	sorted := make([]PerformancePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	deduped := make([]PerformancePoint, 0, len(sorted))
	for _, p := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(p.Date) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}

	s := &Series{}
	rawBench := make([]float64, 0, len(deduped))

	for _, p := range deduped {
		value, ok := validLevel(p.PortfolioValue)
		if !ok {
			if p.Return == nil || len(s.Portfolio) == 0 || !isFinite(*p.Return) {
				continue
			}
			value = s.Portfolio[len(s.Portfolio)-1] * (1 + *p.Return/100)
			if value <= 0 {
				continue
			}
		}

		bench, ok := validLevel(p.BenchmarkValue)
		if !ok {
			bench = math.NaN()
		}

		s.Dates = append(s.Dates, p.Date)
		s.Portfolio = append(s.Portfolio, value)
		rawBench = append(rawBench, bench)
	}

	if len(s.Portfolio) == 0 {
		return nil, fmt.Errorf("%w: no valid portfolio values", ErrInsufficientData)
	}

	s.Benchmark, s.BenchmarkFrom = fillLevels(rawBench)
	s.Points = buildReturnPoints(s.Dates, s.Portfolio, s.Benchmark, s.BenchmarkFrom)

	return s, nil
}

// HasBenchmark reports whether at least one benchmark return was observed.
func (s *Series) HasBenchmark() bool {
	return s.Benchmark != nil && s.BenchmarkFrom < len(s.Dates)-1
}

// BenchmarkCovers reports whether benchmark levels were observed from
// period idx onwards.
func (s *Series) BenchmarkCovers(idx int) bool {
	return s.HasBenchmark() && idx >= s.BenchmarkFrom
}

// Len returns the number of return periods.
func (s *Series) Len() int {
	return len(s.Points)
}

// PortfolioReturns 포트폴리오 기간 수익률 (%)
func (s *Series) PortfolioReturns() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.PortfolioReturn
	}
	return out
}

// Paired 벤치마크 관측 구간의 수익률 쌍, 벤치마크가 없으면 nil
// Points[i]는 Dates[i+1]의 수익률이므로 구간은 Points[BenchmarkFrom:]
func (s *Series) Paired() *PairedReturns {
	if !s.HasBenchmark() {
		return nil
	}
	span := s.Points[s.BenchmarkFrom:]
	p := &PairedReturns{
		Dates:     make([]time.Time, len(span)),
		Portfolio: make([]float64, len(span)),
		Benchmark: make([]float64, len(span)),
	}
	for i, pt := range span {
		p.Dates[i] = pt.Date
		p.Portfolio[i] = pt.PortfolioReturn
		p.Benchmark[i] = pt.BenchmarkReturn.Value
	}
	return p
}

// ValuePoints 포트폴리오 수준 시계열 (낙폭 계산용)
func (s *Series) ValuePoints() []ValuePoint {
	out := make([]ValuePoint, len(s.Portfolio))
	for i := range s.Portfolio {
		out[i] = ValuePoint{Date: s.Dates[i], Value: s.Portfolio[i]}
	}
	return out
}

// ReturnsFromValues 수준 → 기간 수익률 (%)
func ReturnsFromValues(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = (values[i]/values[i-1] - 1) * 100
	}
	return out
}

// ValuesFromReturns 기간 수익률 (%) → 수준, base에서 시작
func ValuesFromReturns(base float64, returns []float64) []float64 {
	out := make([]float64, len(returns)+1)
	out[0] = base
	for i, r := range returns {
		out[i+1] = out[i] * (1 + r/100)
	}
	return out
}

func validLevel(v *float64) (float64, bool) {
	if v == nil || !isFinite(*v) || *v <= 0 {
		return 0, false
	}
	return *v, true
}

// fillLevels 첫 관측 이후의 결측(NaN)을 직전 값으로 채움
// 첫 관측 이전은 NaN 유지, 관측이 없으면 nil
func fillLevels(raw []float64) ([]float64, int) {
	first := -1
	for i, v := range raw {
		if !math.IsNaN(v) {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, 0
	}

	out := make([]float64, len(raw))
	last := math.NaN()
	for i, v := range raw {
		if !math.IsNaN(v) {
			last = v
		}
		out[i] = last
	}
	return out, first
}

func buildReturnPoints(dates []time.Time, portfolio, benchmark []float64, benchFrom int) []ReturnDataPoint {
	if len(portfolio) < 2 {
		return []ReturnDataPoint{}
	}

	noBench := None(fmt.Errorf("%w: benchmark not observed", ErrInsufficientData))
	points := make([]ReturnDataPoint, 0, len(portfolio)-1)
	for i := 1; i < len(portfolio); i++ {
		p := ReturnDataPoint{
			Date:                dates[i],
			PortfolioReturn:     (portfolio[i]/portfolio[i-1] - 1) * 100,
			CumulativePortfolio: (portfolio[i]/portfolio[0] - 1) * 100,
			BenchmarkReturn:     noBench,
			CumulativeBenchmark: noBench,
		}
		if benchmark != nil && i-1 >= benchFrom {
			p.BenchmarkReturn = Some((benchmark[i]/benchmark[i-1] - 1) * 100)
			p.CumulativeBenchmark = Some((benchmark[i]/benchmark[benchFrom] - 1) * 100)
		}
		points = append(points, p)
	}
	return points
}
