package risk

import (
	"fmt"
	"math"
	"sort"
)

// UnclassifiedGroup 섹터/국가 태그가 없는 종목의 그룹 라벨
const UnclassifiedGroup = "Unclassified"

// weightGroup 섹터/국가 공통 집계 (비중 0~1)
type weightGroup struct {
	label      string
	portfolio  float64
	benchmark  float64
	stockCount int
}

// AnalyzeConcentration 보유 종목 집중도 분석
// 입력 비중은 0~1, 출력 비중은 퍼센트 포인트
// 같은 티커가 여러 번 나오면 비중을 합산 (첫 레코드의 태그 사용)
func AnalyzeConcentration(holdings []Holding) (*ConcentrationMetrics, error) {
	if len(holdings) == 0 {
		return nil, fmt.Errorf("%w: no holdings", ErrInsufficientData)
	}

	merged, err := mergeHoldings(holdings)
	if err != nil {
		return nil, err
	}

	m := &ConcentrationMetrics{
		SectorConcentration:  []SectorConcentration{},
		CountryConcentration: []CountryConcentration{},
	}

	// HHI, 활성 비중
	var sumSq, activeAbs float64
	for _, h := range merged {
		if h.PortfolioWeight > 0 {
			sumSq += h.PortfolioWeight * h.PortfolioWeight
			m.HoldingCount++
		}
		activeAbs += math.Abs(h.PortfolioWeight - h.BenchmarkWeight)
	}
	m.HHI = 10000 * sumSq
	if m.HHI < zeroTolerance {
		m.EffectiveStocks = None(fmt.Errorf("%w: portfolio has no positive weights", ErrDivisionByZero))
	} else {
		m.EffectiveStocks = Some(10000 / m.HHI)
	}
	m.ActiveShare = 0.5 * activeAbs * 100

	// Top-N: 비중 내림차순, 동률은 입력 순서
	ranked := make([]Holding, len(merged))
	copy(ranked, merged)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PortfolioWeight > ranked[j].PortfolioWeight
	})
	m.Top5Weight = topWeight(ranked, 5) * 100
	m.Top10Weight = topWeight(ranked, 10) * 100
	if ranked[0].PortfolioWeight > 0 {
		m.MaxSingleName = ranked[0].Ticker
		m.MaxSingleNameWeight = ranked[0].PortfolioWeight * 100
	}

	// 섹터
	for _, g := range groupWeights(merged, func(h Holding) string { return h.Sector }) {
		m.SectorConcentration = append(m.SectorConcentration, SectorConcentration{
			Sector:          g.label,
			PortfolioWeight: g.portfolio * 100,
			BenchmarkWeight: g.benchmark * 100,
			ActiveWeight:    (g.portfolio - g.benchmark) * 100,
			StockCount:      g.stockCount,
		})
	}
	if len(m.SectorConcentration) > 0 && m.SectorConcentration[0].PortfolioWeight > 0 {
		m.MaxSector = m.SectorConcentration[0].Sector
		m.MaxSectorWeight = m.SectorConcentration[0].PortfolioWeight
	}

	// 국가
	for _, g := range groupWeights(merged, func(h Holding) string { return h.Country }) {
		m.CountryConcentration = append(m.CountryConcentration, CountryConcentration{
			Country:         g.label,
			PortfolioWeight: g.portfolio * 100,
			BenchmarkWeight: g.benchmark * 100,
			ActiveWeight:    (g.portfolio - g.benchmark) * 100,
			StockCount:      g.stockCount,
		})
	}
	if len(m.CountryConcentration) > 0 && m.CountryConcentration[0].PortfolioWeight > 0 {
		m.MaxCountry = m.CountryConcentration[0].Country
		m.MaxCountryWeight = m.CountryConcentration[0].PortfolioWeight
	}

	return m, nil
}

// mergeHoldings 티커 기준 합산, 첫 등장 순서 유지
func mergeHoldings(holdings []Holding) ([]Holding, error) {
	index := make(map[string]int, len(holdings))
	merged := make([]Holding, 0, len(holdings))

	for _, h := range holdings {
		if !isFinite(h.PortfolioWeight) || !isFinite(h.BenchmarkWeight) ||
			h.PortfolioWeight < 0 || h.BenchmarkWeight < 0 {
			return nil, fmt.Errorf("%w: holding %q has weights pw=%v bw=%v",
				ErrInvalidInput, h.Ticker, h.PortfolioWeight, h.BenchmarkWeight)
		}

		if i, ok := index[h.Ticker]; ok {
			merged[i].PortfolioWeight += h.PortfolioWeight
			merged[i].BenchmarkWeight += h.BenchmarkWeight
			continue
		}
		index[h.Ticker] = len(merged)
		merged = append(merged, h)
	}
	return merged, nil
}

func topWeight(ranked []Holding, n int) float64 {
	var sum float64
	for i := 0; i < n && i < len(ranked); i++ {
		sum += ranked[i].PortfolioWeight
	}
	return sum
}

// groupWeights 태그별 합산, 포트폴리오 비중 내림차순 → 라벨 오름차순
func groupWeights(holdings []Holding, tag func(Holding) string) []weightGroup {
	index := make(map[string]int)
	groups := make([]weightGroup, 0)

	for _, h := range holdings {
		label := tag(h)
		if label == "" {
			label = UnclassifiedGroup
		}
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, weightGroup{label: label})
		}
		groups[i].portfolio += h.PortfolioWeight
		groups[i].benchmark += h.BenchmarkWeight
		if h.PortfolioWeight > 0 {
			groups[i].stockCount++
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].portfolio != groups[j].portfolio {
			return groups[i].portfolio > groups[j].portfolio
		}
		return groups[i].label < groups[j].label
	})
	return groups
}
