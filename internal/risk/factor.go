package risk

import (
	"fmt"
	"math"
	"sort"
)

// =============================================================================
// Factor Risk Decomposition
// =============================================================================
//
// 모델 가정: 팩터 간 상관이 없는 직교 모델
//   c_i          = exposure_i × vol_i
//   systematic   = √Σ c_i²
//   total        = √(systematic² + idiosyncratic²)
//   percent_i    = c_i² / total² × 100  (분산 기준 기여)
// 상관 구조가 있는 팩터에 적용하면 체계적 리스크를 과소/과대 추정할 수 있음

// DecomposeFactorRisk 팩터별 리스크 기여 분해
// model.Exposures가 비어 있으면 holdings의 팩터 점수로 액티브 노출을 구성
func DecomposeFactorRisk(model *FactorModel, holdings []Holding) (*FactorRiskDecomposition, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: factor model not supplied", ErrInsufficientData)
	}
	idio := model.IdiosyncraticVolatility
	if idio < 0 || !isFinite(idio) {
		return nil, fmt.Errorf("%w: idiosyncratic volatility %v", ErrInvalidInput, idio)
	}

	exposures := model.Exposures
	if len(exposures) == 0 {
		derived, err := DeriveExposures(holdings, model.Volatilities)
		if err != nil {
			return nil, err
		}
		exposures = derived
	}

	result := &FactorRiskDecomposition{
		Factors: make([]FactorRiskContribution, 0, len(exposures)),
	}

	var sysVar float64
	for _, e := range exposures {
		if !isFinite(e.Exposure) || !isFinite(e.Volatility) || e.Volatility < 0 {
			return nil, fmt.Errorf("%w: factor %q exposure=%v volatility=%v",
				ErrInvalidInput, e.Name, e.Exposure, e.Volatility)
		}
		c := e.Exposure * e.Volatility
		sysVar += c * c
		result.Factors = append(result.Factors, FactorRiskContribution{
			Name:         e.Name,
			Exposure:     e.Exposure,
			Volatility:   e.Volatility,
			Contribution: c,
		})
	}

	totalVar := sysVar + idio*idio
	if totalVar < zeroTolerance {
		return nil, fmt.Errorf("%w: total risk is zero", ErrDivisionByZero)
	}

	for i := range result.Factors {
		c := result.Factors[i].Contribution
		result.Factors[i].PercentOfRisk = c * c / totalVar * 100
	}

	result.SystematicRisk = math.Sqrt(sysVar)
	result.IdiosyncraticRisk = idio
	result.TotalRisk = math.Sqrt(totalVar)
	result.SystematicPercent = sysVar / totalVar * 100
	result.IdiosyncraticPercent = 100 - result.SystematicPercent

	return result, nil
}

// DeriveExposures 보유 종목 팩터 점수 → 액티브 팩터 노출
// exposure_f = Σ (pw_i - bw_i) × score_i,f
// volatilities에 있는 팩터만 대상 (잘 알려진 팩터 순서, 그 외는 이름순)
func DeriveExposures(holdings []Holding, volatilities map[FactorName]float64) ([]FactorExposure, error) {
	if len(volatilities) == 0 {
		return nil, fmt.Errorf("%w: no factor volatilities supplied", ErrInsufficientData)
	}
	if len(holdings) == 0 {
		return nil, fmt.Errorf("%w: no holdings to derive factor exposures", ErrInsufficientData)
	}

	names := orderedFactorNames(volatilities)
	out := make([]FactorExposure, 0, len(names))
	for _, name := range names {
		var exposure float64
		for _, h := range holdings {
			score, ok := h.Factors[name]
			if !ok {
				continue
			}
			exposure += (h.PortfolioWeight - h.BenchmarkWeight) * score
		}
		out = append(out, FactorExposure{
			Name:       name,
			Exposure:   exposure,
			Volatility: volatilities[name],
		})
	}
	return out, nil
}

func orderedFactorNames(volatilities map[FactorName]float64) []FactorName {
	names := make([]FactorName, 0, len(volatilities))
	for _, known := range WellKnownFactors() {
		if _, ok := volatilities[known]; ok {
			names = append(names, known)
		}
	}

	extra := make([]FactorName, 0)
	for name := range volatilities {
		if !name.IsWellKnown() {
			extra = append(extra, name)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })

	return append(names, extra...)
}
