package scenarioconfig

import (
	"fmt"
	"time"

	"github.com/wonny/riskdash/internal/risk"
)

// DateLayout 시나리오 경계 날짜 형식
const DateLayout = "2006-01-02"

// Catalog 스트레스 시나리오 카탈로그
// ⭐ SSOT: 시나리오 경계는 코드 상수가 아니라 이 설정에서만 정의
type Catalog struct {
	Version   string     `yaml:"version" json:"version"`
	Scenarios []Scenario `yaml:"scenarios" json:"scenarios"`
}

// Scenario 과거 스트레스 구간 정의
type Scenario struct {
	ID                 string  `yaml:"id" json:"id"`
	Name               string  `yaml:"name" json:"name"`
	Description        string  `yaml:"description" json:"description"`
	StartDate          string  `yaml:"start_date" json:"start_date"`
	EndDate            string  `yaml:"end_date" json:"end_date"`
	BenchmarkReturnPct float64 `yaml:"benchmark_return_pct" json:"benchmark_return_pct"`
}

// StressScenarios 엔진 입력 형식으로 변환 (Validate 통과 후 호출)
func (c *Catalog) StressScenarios() ([]risk.StressScenario, error) {
	out := make([]risk.StressScenario, 0, len(c.Scenarios))
	for _, s := range c.Scenarios {
		start, err := time.Parse(DateLayout, s.StartDate)
		if err != nil {
			return nil, fmt.Errorf("scenario %s start_date: %w", s.ID, err)
		}
		end, err := time.Parse(DateLayout, s.EndDate)
		if err != nil {
			return nil, fmt.Errorf("scenario %s end_date: %w", s.ID, err)
		}
		out = append(out, risk.StressScenario{
			ID:              s.ID,
			Name:            s.Name,
			Description:     s.Description,
			StartDate:       start,
			EndDate:         end,
			BenchmarkReturn: s.BenchmarkReturnPct,
		})
	}
	return out, nil
}
