package kpi

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidTargetType = errors.New("invalid KPI target type")

type TargetType string

const (
	TargetCPA  TargetType = "CPA"
	TargetROAS TargetType = "ROAS"
	TargetPOAS TargetType = "POAS"
)

// ParseTargetType accepts the target type case-insensitively.
func ParseTargetType(s string) (TargetType, error) {
	switch t := TargetType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TargetCPA, TargetROAS, TargetPOAS:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTargetType, s)
}

// lowerIsBetter is true for cost targets, where a falling KPI is good.
func (t TargetType) lowerIsBetter() bool { return t == TargetCPA }

type TargetStatus string

const (
	StatusOnTrack  TargetStatus = "on_track"
	StatusWarning  TargetStatus = "warning"
	StatusCritical TargetStatus = "critical"
)

type Trend string

const (
	TrendImproving Trend = "IMPROVING"
	TrendStable    Trend = "STABLE"
	TrendDeclining Trend = "DECLINING"
)

const (
	maxTargetPenalty   = 40
	maxCategoryPenalty = 15
	spendAnomalyPct    = 30
	trendThresholdPct  = 5
)

// Input is everything CalculateKPI needs. ProfitMarginPct is only used for
// POAS targets; nil means a margin of 100%.
type Input struct {
	TargetType             TargetType
	TargetValue            float64
	TolerancePct           float64
	Current                PeriodMetrics
	Previous               PeriodMetrics
	ProfitMarginPct        *float64
	ServingIssues          int
	Disapprovals           int
	MerchantDisapprovalPct float64
}

// Breakdown holds each penalty as a non-positive number of points, so the
// components sum to HealthScore - 100.
type Breakdown struct {
	TargetDeviation int `json:"target_deviation"`
	Disapprovals    int `json:"disapprovals"`
	ServingIssues   int `json:"serving_issues"`
	MerchantIssues  int `json:"merchant_issues"`
	SpendAnomaly    int `json:"spend_anomaly"`
}

func (b Breakdown) Total() int {
	return b.TargetDeviation + b.Disapprovals + b.ServingIssues + b.MerchantIssues + b.SpendAnomaly
}

// Deltas are week-over-week changes in percent.
type Deltas struct {
	Spend       float64 `json:"spend"`
	Conversions float64 `json:"conversions"`
	CVR         float64 `json:"cvr"`
	CPC         float64 `json:"cpc"`
	KPI         float64 `json:"kpi"`
}

type Result struct {
	TargetType         TargetType    `json:"target_type"`
	TargetValue        float64       `json:"target_value"`
	TolerancePct       float64       `json:"tolerance_pct"`
	Current            PeriodMetrics `json:"current"`
	Previous           PeriodMetrics `json:"previous"`
	BlendedKPI         float64       `json:"blended_kpi"`
	PreviousBlendedKPI float64       `json:"previous_blended_kpi"`
	TargetDeviation    float64       `json:"target_deviation"`
	TargetStatus       TargetStatus  `json:"target_status"`
	HealthScore        int           `json:"health_score"`
	HealthBreakdown    Breakdown     `json:"health_breakdown"`
	WoW                Deltas        `json:"wow"`
	TrendDirection     Trend         `json:"trend_direction"`
}

// CalculateKPI scores current performance against the target. It is
// deterministic and performs no I/O.
func CalculateKPI(in Input) (Result, error) {
	if err := in.validate(); err != nil {
		return Result{}, err
	}

	margin := 1.0
	if in.ProfitMarginPct != nil {
		margin = *in.ProfitMarginPct / 100
	}

	blended := BlendedKPI(in.TargetType, in.Current, margin)
	previous := BlendedKPI(in.TargetType, in.Previous, margin)
	deviation := TargetDeviation(in.TargetType, blended, in.TargetValue)

	wow := Deltas{
		Spend:       PercentChange(in.Current.Spend, in.Previous.Spend),
		Conversions: PercentChange(in.Current.Conversions, in.Previous.Conversions),
		CVR:         PercentChange(in.Current.CVR, in.Previous.CVR),
		CPC:         PercentChange(in.Current.CPC, in.Previous.CPC),
		KPI:         PercentChange(blended, previous),
	}

	breakdown := Penalties(deviation, in.Disapprovals, in.ServingIssues, in.MerchantDisapprovalPct, wow.Spend)
	score := clamp(100+breakdown.Total(), 0, 100)

	return Result{
		TargetType:         in.TargetType,
		TargetValue:        in.TargetValue,
		TolerancePct:       in.TolerancePct,
		Current:            in.Current,
		Previous:           in.Previous,
		BlendedKPI:         blended,
		PreviousBlendedKPI: previous,
		TargetDeviation:    deviation,
		TargetStatus:       StatusFor(deviation, in.TolerancePct),
		HealthScore:        score,
		HealthBreakdown:    breakdown,
		WoW:                wow,
		TrendDirection:     TrendFor(in.TargetType, wow.KPI),
	}, nil
}

func (in Input) validate() error {
	switch in.TargetType {
	case TargetCPA, TargetROAS, TargetPOAS:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTargetType, in.TargetType)
	}
	if in.TolerancePct < 0 || math.IsNaN(in.TolerancePct) {
		return fmt.Errorf("tolerance must be a non-negative percentage, got %v", in.TolerancePct)
	}
	if in.ServingIssues < 0 || in.Disapprovals < 0 {
		return errors.New("issue counts must not be negative")
	}
	return nil
}

// BlendedKPI is the single number the client is measured against.
func BlendedKPI(t TargetType, m PeriodMetrics, margin float64) float64 {
	switch t {
	case TargetCPA:
		return m.CPA
	case TargetROAS:
		return m.ROAS
	case TargetPOAS:
		return safeDiv(m.ConversionValue*margin-m.Spend, m.Spend)
	}
	return 0
}

// TargetDeviation is positive when actual is worse than target.
func TargetDeviation(t TargetType, actual, target float64) float64 {
	if target == 0 {
		return 0
	}
	if t.lowerIsBetter() {
		return finite((actual - target) * 100 / target)
	}
	return finite((target - actual) * 100 / target)
}

// StatusFor classifies a deviation. Beating the target is always on track.
func StatusFor(deviation, tolerancePct float64) TargetStatus {
	abs := math.Abs(deviation)
	switch {
	case deviation <= 0 || abs <= tolerancePct:
		return StatusOnTrack
	case abs <= 2*tolerancePct:
		return StatusWarning
	default:
		return StatusCritical
	}
}

// Penalties computes the five independently capped health penalties.
func Penalties(deviation float64, disapprovals, servingIssues int, merchantPct, wowSpend float64) Breakdown {
	var b Breakdown
	if deviation > 0 {
		b.TargetDeviation = -minInt(maxTargetPenalty, round(deviation*1.5))
	}
	b.Disapprovals = -minInt(maxCategoryPenalty, disapprovals*3)
	b.ServingIssues = -minInt(maxCategoryPenalty, servingIssues*5)
	if merchantPct > 0 {
		b.MerchantIssues = -minInt(maxCategoryPenalty, round(merchantPct))
	}
	if abs := math.Abs(wowSpend); abs > spendAnomalyPct {
		b.SpendAnomaly = -minInt(maxCategoryPenalty, round((abs-spendAnomalyPct)/3))
	}
	return b
}

// TrendFor labels the KPI delta; the sign is flipped for return targets.
func TrendFor(t TargetType, kpiDelta float64) Trend {
	d := kpiDelta
	if !t.lowerIsBetter() {
		d = -d
	}
	switch {
	case d < -trendThresholdPct:
		return TrendImproving
	case d > trendThresholdPct:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// PercentChange is (current-previous)/previous*100, or 0 without a baseline.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return finite((current - previous) * 100 / previous)
}

// round matches half-up rounding of the dashboard front end.
func round(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int(math.Floor(v + 0.5))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
