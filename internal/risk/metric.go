package risk

import (
	"encoding/json"
	"errors"
	"math"
)

// Metric 계산 불가 상태를 명시적으로 담는 선택 값
// ⭐ SSOT: 계산 불가는 0으로 대체하지 않고 Valid=false로 표현 (JSON null)
type Metric struct {
	Value  float64
	Valid  bool
	Reason string
}

// Some wraps a computed value. NaN and ±Inf are not valid metrics.
func Some(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Metric{Reason: ErrDivisionByZero.Error()}
	}
	return Metric{Value: v, Valid: true}
}

// None marks a metric as not computable.
func None(err error) Metric {
	if err == nil {
		return Metric{}
	}
	return Metric{Reason: err.Error()}
}

// FromResult converts a (value, error) pair.
func FromResult(v float64, err error) Metric {
	if err != nil {
		return None(err)
	}
	return Some(v)
}

// Get returns the value and whether it was computed.
func (m Metric) Get() (float64, bool) {
	return m.Value, m.Valid
}

// Or returns the value or fallback when not computed.
func (m Metric) Or(fallback float64) float64 {
	if !m.Valid {
		return fallback
	}
	return m.Value
}

// MarshalJSON encodes invalid metrics as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts a number or null.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metric{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Some(v)
	if !m.Valid {
		return errors.New("metric is not a finite number")
	}
	return nil
}
