package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/riskdash/internal/risk"
)

// =============================================================================
// Report Types
// =============================================================================

// RiskReport 한 번의 리스크 계산 결과 리포트
type RiskReport struct {
	ReportDate  time.Time              `json:"report_date"`
	PortfolioID string                 `json:"portfolio_id,omitempty"`
	CatalogHash string                 `json:"catalog_hash,omitempty"`
	Bundle      *risk.Bundle           `json:"bundle"`
	MonteCarlo  *risk.MonteCarloResult `json:"monte_carlo,omitempty"`
	Metadata    ReportMetadata         `json:"metadata"`
}

// ReportMetadata 리포트 메타데이터
type ReportMetadata struct {
	GeneratedAt  time.Time `json:"generated_at"`
	DataFrom     time.Time `json:"data_from,omitempty"`
	DataTo       time.Time `json:"data_to,omitempty"`
	SampleCount  int       `json:"sample_count"`
	FailedSlices []string  `json:"failed_slices,omitempty"`
}

// New 계산 결과로 리포트 생성
func New(bundle *risk.Bundle, portfolioID string) *RiskReport {
	r := &RiskReport{
		ReportDate:  bundle.CalculatedAt,
		PortfolioID: portfolioID,
		Bundle:      bundle,
		Metadata: ReportMetadata{
			GeneratedAt:  time.Now(),
			FailedSlices: FailedSlices(bundle),
		},
	}

	if n := len(bundle.Returns); n > 0 {
		r.Metadata.DataFrom = bundle.Returns[0].Date
		r.Metadata.DataTo = bundle.Returns[n-1].Date
		r.Metadata.SampleCount = n
	}

	return r
}

// FailedSlices 실패한 슬라이스 이름 (정렬)
func FailedSlices(bundle *risk.Bundle) []string {
	out := make([]string, 0, len(bundle.Errors))
	for slice := range bundle.Errors {
		out = append(out, slice)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// Output Formatting
// =============================================================================

// ToJSON JSON 형식으로 출력
func (r *RiskReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ToSummary 요약 문자열 출력
func (r *RiskReport) ToSummary() string {
	var b strings.Builder
	bundle := r.Bundle

	fmt.Fprintf(&b, "=== Risk Report (%s) ===\n", r.ReportDate.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Run ID: %s\n", bundle.RunID)
	if r.PortfolioID != "" {
		fmt.Fprintf(&b, "Portfolio: %s\n", r.PortfolioID)
	}
	if r.Metadata.SampleCount > 0 {
		fmt.Fprintf(&b, "Periods: %d (%s ~ %s)\n", r.Metadata.SampleCount,
			r.Metadata.DataFrom.Format("2006-01"), r.Metadata.DataTo.Format("2006-01"))
	}
	b.WriteString("\n")

	if m := bundle.RiskMetrics; m != nil {
		b.WriteString("📊 Portfolio Risk\n")
		fmt.Fprintf(&b, "  VaR 95%%:           %s\n", pct(m.VaR95))
		fmt.Fprintf(&b, "  VaR 99%%:           %s\n", pct(m.VaR99))
		fmt.Fprintf(&b, "  CVaR 95%%:          %s\n", pct(m.CVaR95))
		fmt.Fprintf(&b, "  Parametric VaR 95%%: %s\n", pct(m.ParametricVaR95))
		fmt.Fprintf(&b, "  Volatility (ann.): %s\n", pct(m.AnnualizedVolatility))
		fmt.Fprintf(&b, "  Downside Vol:      %s\n", pct(m.DownsideVolatility))
		fmt.Fprintf(&b, "  Max Drawdown:      %s", pct(m.MaxDrawdown))
		if m.MaxDrawdownPeakDate != nil && m.MaxDrawdownTroughDate != nil {
			fmt.Fprintf(&b, " (%s → %s, %d periods)",
				m.MaxDrawdownPeakDate.Format("2006-01"), m.MaxDrawdownTroughDate.Format("2006-01"), m.DrawdownDuration)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "  Current Drawdown:  %s\n", pct(m.CurrentDrawdown))
		fmt.Fprintf(&b, "  Beta:              %s\n", num(m.Beta))
		fmt.Fprintf(&b, "  Tracking Error:    %s\n", pct(m.TrackingError))
		fmt.Fprintf(&b, "  Sharpe:            %s\n", num(m.SharpeRatio))
		fmt.Fprintf(&b, "  Sortino:           %s\n", num(m.SortinoRatio))
		fmt.Fprintf(&b, "  Information Ratio: %s\n", num(m.InformationRatio))
		fmt.Fprintf(&b, "  Calmar:            %s\n", num(m.CalmarRatio))
		b.WriteString("\n")
	}

	if fr := bundle.FactorRisk; fr != nil {
		b.WriteString("🧮 Factor Risk\n")
		fmt.Fprintf(&b, "  Total %.2f%% = Systematic %.2f%% (%.1f%%) + Idiosyncratic %.2f%% (%.1f%%)\n",
			fr.TotalRisk, fr.SystematicRisk, fr.SystematicPercent, fr.IdiosyncraticRisk, fr.IdiosyncraticPercent)
		for _, f := range fr.Factors {
			fmt.Fprintf(&b, "  %-16s exp %+6.2f  vol %6.2f%%  contrib %+7.2f  (%5.1f%%)\n",
				f.Name, f.Exposure, f.Volatility, f.Contribution, f.PercentOfRisk)
		}
		b.WriteString("\n")
	}

	if c := bundle.Concentration; c != nil {
		b.WriteString("🎯 Concentration\n")
		fmt.Fprintf(&b, "  Holdings: %d  HHI: %.0f  Effective: %s\n", c.HoldingCount, c.HHI, num(c.EffectiveStocks))
		fmt.Fprintf(&b, "  Top 5: %.2f%%  Top 10: %.2f%%  Active Share: %.2f%%\n", c.Top5Weight, c.Top10Weight, c.ActiveShare)
		if c.MaxSingleName != "" {
			fmt.Fprintf(&b, "  Largest name: %s (%.2f%%)\n", c.MaxSingleName, c.MaxSingleNameWeight)
		}
		if c.MaxSector != "" {
			fmt.Fprintf(&b, "  Largest sector: %s (%.2f%%)\n", c.MaxSector, c.MaxSectorWeight)
		}
		if c.MaxCountry != "" {
			fmt.Fprintf(&b, "  Largest country: %s (%.2f%%)\n", c.MaxCountry, c.MaxCountryWeight)
		}
		b.WriteString("\n")
	}

	if len(bundle.StressTests) > 0 {
		b.WriteString("⚠️ Stress Test Results\n")
		for _, st := range bundle.StressTests {
			fmt.Fprintf(&b, "  %-28s port %s  bench %s  excess %s  mdd %s",
				st.Scenario.Name, pct(st.PortfolioReturn), pct(st.BenchmarkReturn), pct(st.ExcessReturn), pct(st.MaxDrawdown))
			switch {
			case !st.Overlap:
				b.WriteString("  (no overlap)")
			case st.RecoveryMonths != nil:
				fmt.Fprintf(&b, "  recovered in %d", *st.RecoveryMonths)
			default:
				b.WriteString("  not recovered")
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if r.MonteCarlo != nil {
		b.WriteString(FormatMonteCarlo(r.MonteCarlo))
		b.WriteString("\n")
	}

	if len(bundle.Errors) > 0 {
		b.WriteString("❌ Not computed\n")
		for _, slice := range FailedSlices(bundle) {
			fmt.Fprintf(&b, "  %s: %s\n", slice, bundle.Errors[slice])
		}
	}

	return b.String()
}

// FormatMonteCarlo Monte Carlo 결과 요약
func FormatMonteCarlo(mc *risk.MonteCarloResult) string {
	var b strings.Builder

	b.WriteString("🎲 Monte Carlo Simulation\n")
	fmt.Fprintf(&b, "  Method: %s  Simulations: %d  Holding Period: %d months\n",
		mc.Config.Method, mc.Config.NumSimulations, mc.Config.HoldingPeriod)
	fmt.Fprintf(&b, "  Input Samples: %d\n", mc.InputSampleCount)
	fmt.Fprintf(&b, "  Mean Return: %.2f%%  Std Dev: %.2f%%\n", mc.MeanReturn, mc.StdDev)

	keys := make([]string, 0, len(mc.VaR))
	for k := range mc.VaR {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  VaR %s: %.2f%%  CVaR: %.2f%%\n", k, mc.VaR[k], mc.CVaR[k])
	}

	ps := make([]int, 0, len(mc.Percentiles))
	for p := range mc.Percentiles {
		ps = append(ps, p)
	}
	sort.Ints(ps)
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, fmt.Sprintf("p%d %.1f", p, mc.Percentiles[p]))
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, "  Percentiles: %s\n", strings.Join(parts, ", "))
	}

	return b.String()
}

func pct(m risk.Metric) string {
	if !m.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", m.Value)
}

func num(m risk.Metric) string {
	if !m.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", m.Value)
}
