package portfolio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wonny/riskdash/internal/risk"
)

// =============================================================================
// Dataset - JSON 입력 파일
// =============================================================================

// ErrInvalidDataset 데이터셋 형식 오류
var ErrInvalidDataset = errors.New("invalid dataset")

// 허용 날짜 형식 (월말 날짜 또는 RFC3339)
var dateLayouts = []string{"2006-01-02", time.RFC3339}

// Dataset 포트폴리오 한 개의 리스크 계산 입력
// ⭐ SSOT: 파일/HTTP 본문 입력 형식은 이 구조체 하나
type Dataset struct {
	PortfolioID string              `json:"portfolio_id,omitempty"`
	AsOf        string              `json:"as_of,omitempty"`
	Performance []PerformanceRecord `json:"performance"`
	Holdings    []risk.Holding      `json:"holdings,omitempty"`
	Factors     *risk.FactorModel   `json:"factors,omitempty"`
}

// PerformanceRecord 월간 성과 레코드 (날짜는 문자열)
type PerformanceRecord struct {
	Date           string   `json:"date"`
	PortfolioValue *float64 `json:"portfolio_value"`
	BenchmarkValue *float64 `json:"benchmark_value"`
	Return         *float64 `json:"return,omitempty"`
	Alpha          *float64 `json:"alpha,omitempty"`
}

// ParseDataset JSON 데이터셋 파싱 (알 수 없는 필드 거부)
func ParseDataset(data []byte) (*Dataset, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	return &ds, nil
}

// LoadDatasetFile 파일에서 데이터셋 로드
func LoadDatasetFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	ds, err := ParseDataset(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Input 엔진 입력으로 변환
func (d *Dataset) Input() (risk.Input, error) {
	perf := make([]risk.PerformancePoint, 0, len(d.Performance))
	for i, rec := range d.Performance {
		date, err := parseDate(rec.Date)
		if err != nil {
			return risk.Input{}, fmt.Errorf("%w: performance[%d]: %v", ErrInvalidDataset, i, err)
		}
		perf = append(perf, risk.PerformancePoint{
			Date:           date,
			PortfolioValue: rec.PortfolioValue,
			BenchmarkValue: rec.BenchmarkValue,
			Return:         rec.Return,
			Alpha:          rec.Alpha,
		})
	}

	return risk.Input{
		Performance: perf,
		Holdings:    d.Holdings,
		Factors:     d.Factors,
	}, nil
}

// AsOfDate 기준일 (없으면 마지막 성과 날짜, 그것도 없으면 오늘)
func (d *Dataset) AsOfDate() (time.Time, error) {
	if d.AsOf != "" {
		t, err := parseDate(d.AsOf)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: as_of: %v", ErrInvalidDataset, err)
		}
		return t, nil
	}
	if n := len(d.Performance); n > 0 {
		var last time.Time
		for _, rec := range d.Performance {
			t, err := parseDate(rec.Date)
			if err != nil {
				return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
			}
			if t.After(last) {
				last = t
			}
		}
		return last, nil
	}
	y, m, day := time.Now().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC), nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// DirLoader <dir>/<portfolio_id>.json 파일에서 입력을 읽는 Loader (DB 없이 동작)
type DirLoader struct {
	Dir string
}

// LoadInput implements Loader.
func (l DirLoader) LoadInput(_ context.Context, portfolioID string) (risk.Input, error) {
	if portfolioID == "" || strings.ContainsAny(portfolioID, `/\`) || strings.Contains(portfolioID, "..") {
		return risk.Input{}, fmt.Errorf("%w: portfolio id %q", ErrInvalidDataset, portfolioID)
	}

	path := filepath.Join(l.Dir, portfolioID+".json")
	ds, err := LoadDatasetFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return risk.Input{}, fmt.Errorf("%w: %s", ErrPortfolioNotFound, portfolioID)
	}
	if err != nil {
		return risk.Input{}, err
	}
	return ds.Input()
}
