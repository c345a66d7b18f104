package scenarioconfig

import (
	"fmt"
	"math"
	"time"
)

// ValidationError 카탈로그 검증 실패
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints.
func Validate(cat *Catalog) error {
	if cat.Version == "" {
		return ValidationError{"version", "required"}
	}
	if len(cat.Scenarios) == 0 {
		return ValidationError{"scenarios", "at least one scenario required"}
	}

	seen := make(map[string]bool, len(cat.Scenarios))
	for i, s := range cat.Scenarios {
		field := fmt.Sprintf("scenarios[%d]", i)

		if s.ID == "" {
			return ValidationError{field + ".id", "required"}
		}
		if seen[s.ID] {
			return ValidationError{field + ".id", fmt.Sprintf("duplicate id %q", s.ID)}
		}
		seen[s.ID] = true

		if s.Name == "" {
			return ValidationError{field + ".name", "required"}
		}

		start, err := time.Parse(DateLayout, s.StartDate)
		if err != nil {
			return ValidationError{field + ".start_date", "must be YYYY-MM-DD"}
		}
		end, err := time.Parse(DateLayout, s.EndDate)
		if err != nil {
			return ValidationError{field + ".end_date", "must be YYYY-MM-DD"}
		}
		if !start.Before(end) {
			return ValidationError{field, "start_date must be before end_date"}
		}

		if math.IsNaN(s.BenchmarkReturnPct) || math.IsInf(s.BenchmarkReturnPct, 0) || s.BenchmarkReturnPct <= -100 {
			return ValidationError{field + ".benchmark_return_pct", "must be a finite return above -100"}
		}
	}

	return nil
}
