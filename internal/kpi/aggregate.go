// Package kpi folds campaign metric rows into period summaries and scores a
// client's performance against its KPI target. Everything here is pure.
package kpi

import (
	"math"
	"strings"
	"time"
)

// MetricRow is one campaign's metrics for one day.
type MetricRow struct {
	CampaignID      string    `json:"campaign_id"`
	Date            time.Time `json:"date"`
	Spend           float64   `json:"spend"`
	Conversions     float64   `json:"conversions"`
	ConversionValue float64   `json:"conversion_value"`
	Clicks          int64     `json:"clicks"`
	Impressions     int64     `json:"impressions"`
	Status          string    `json:"status"`
	ServingStatus   string    `json:"serving_status"`
}

// Totals are the additive fields of a set of rows.
type Totals struct {
	Spend           float64 `json:"spend"`
	Conversions     float64 `json:"conversions"`
	ConversionValue float64 `json:"conversion_value"`
	Clicks          int64   `json:"clicks"`
	Impressions     int64   `json:"impressions"`
}

// Ratios are derived from Totals. A zero denominator yields 0.
type Ratios struct {
	CPA  float64 `json:"cpa"`
	ROAS float64 `json:"roas"`
	CPC  float64 `json:"cpc"`
	CVR  float64 `json:"cvr"`
}

type CampaignSummary struct {
	CampaignID string `json:"campaign_id"`
	Totals
	Ratios
	Status        string `json:"status"`
	ServingStatus string `json:"serving_status"`
}

// PeriodMetrics is the aggregation of all rows in a date window.
type PeriodMetrics struct {
	Totals
	Ratios
	Campaigns []CampaignSummary `json:"campaigns"`
}

// AggregateCampaigns groups rows by campaign, summing the numeric fields and
// keeping the last seen status and serving status per campaign. Campaigns are
// returned in order of first appearance.
func AggregateCampaigns(rows []MetricRow) PeriodMetrics {
	index := make(map[string]int)
	campaigns := make([]CampaignSummary, 0)
	var period Totals

	for _, r := range rows {
		t := Totals{
			Spend:           finite(r.Spend),
			Conversions:     finite(r.Conversions),
			ConversionValue: finite(r.ConversionValue),
			Clicks:          r.Clicks,
			Impressions:     r.Impressions,
		}

		i, ok := index[r.CampaignID]
		if !ok {
			i = len(campaigns)
			index[r.CampaignID] = i
			campaigns = append(campaigns, CampaignSummary{CampaignID: r.CampaignID})
		}
		c := &campaigns[i]
		c.Totals = c.Totals.add(t)
		c.Status = r.Status
		c.ServingStatus = r.ServingStatus

		period = period.add(t)
	}

	for i := range campaigns {
		campaigns[i].Ratios = campaigns[i].Totals.Ratios()
	}

	return PeriodMetrics{
		Totals:    period,
		Ratios:    period.Ratios(),
		Campaigns: campaigns,
	}
}

// Ratios computes cpa, roas, cpc and cvr (percent).
func (t Totals) Ratios() Ratios {
	clicks := float64(t.Clicks)
	return Ratios{
		CPA:  safeDiv(t.Spend, t.Conversions),
		ROAS: safeDiv(t.ConversionValue, t.Spend),
		CPC:  safeDiv(t.Spend, clicks),
		CVR:  safeDiv(t.Conversions, clicks) * 100,
	}
}

func (t Totals) add(o Totals) Totals {
	return Totals{
		Spend:           t.Spend + o.Spend,
		Conversions:     t.Conversions + o.Conversions,
		ConversionValue: t.ConversionValue + o.ConversionValue,
		Clicks:          t.Clicks + o.Clicks,
		Impressions:     t.Impressions + o.Impressions,
	}
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return finite(num / den)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ServingIssues counts enabled campaigns whose last serving status is neither
// SERVING nor ELIGIBLE.
func ServingIssues(m PeriodMetrics) int {
	n := 0
	for _, c := range m.Campaigns {
		if !strings.EqualFold(c.Status, "ENABLED") {
			continue
		}
		switch strings.ToUpper(c.ServingStatus) {
		case "SERVING", "ELIGIBLE":
		default:
			n++
		}
	}
	return n
}
