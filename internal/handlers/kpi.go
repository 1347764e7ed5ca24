package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ahmetk3436/markops/internal/kpi"
	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
)

// Reporter evaluates and stores KPI reports for a client.
type Reporter interface {
	Evaluate(ctx context.Context, clientID uuid.UUID, end time.Time) (*models.Client, kpi.Result, error)
	Generate(ctx context.Context, clientID uuid.UUID, end time.Time) (*models.KPIReport, error)
}

type KPIHandler struct {
	reporter Reporter
	metrics  storage.MetricStore
}

func NewKPIHandler(reporter Reporter, metrics storage.MetricStore) *KPIHandler {
	return &KPIHandler{reporter: reporter, metrics: metrics}
}

type metricRow struct {
	CampaignID      string  `json:"campaign_id"`
	CampaignName    string  `json:"campaign_name"`
	Date            string  `json:"date"`
	Spend           float64 `json:"spend"`
	Conversions     float64 `json:"conversions"`
	ConversionValue float64 `json:"conversion_value"`
	Clicks          int64   `json:"clicks"`
	Impressions     int64   `json:"impressions"`
	Status          string  `json:"status"`
	ServingStatus   string  `json:"serving_status"`
}

func (r metricRow) toRow() (kpi.MetricRow, error) {
	date, err := parseDay(r.Date)
	if err != nil {
		return kpi.MetricRow{}, err
	}
	return kpi.MetricRow{
		CampaignID:      r.CampaignID,
		Date:            date,
		Spend:           r.Spend,
		Conversions:     r.Conversions,
		ConversionValue: r.ConversionValue,
		Clicks:          r.Clicks,
		Impressions:     r.Impressions,
		Status:          r.Status,
		ServingStatus:   r.ServingStatus,
	}, nil
}

// parseDay accepts YYYY-MM-DD or RFC 3339 and returns midnight UTC.
func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().Truncate(24 * time.Hour), nil
}

func toRows(in []metricRow) ([]kpi.MetricRow, error) {
	rows := make([]kpi.MetricRow, 0, len(in))
	for _, r := range in {
		row, err := r.toRow()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Calculate scores ad-hoc metric rows without touching storage.
func (h *KPIHandler) Calculate(c *fiber.Ctx) error {
	var req struct {
		TargetType             string      `json:"target_type"`
		TargetValue            float64     `json:"target_value"`
		TolerancePct           float64     `json:"tolerance_pct"`
		ProfitMarginPct        *float64    `json:"profit_margin_pct"`
		Current                []metricRow `json:"current"`
		Previous               []metricRow `json:"previous"`
		Disapprovals           int         `json:"disapprovals"`
		MerchantDisapprovalPct float64     `json:"merchant_disapproval_pct"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	targetType, err := kpi.ParseTargetType(req.TargetType)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	cur, err := toRows(req.Current)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid date in current rows")
	}
	prev, err := toRows(req.Previous)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid date in previous rows")
	}

	in := kpi.Input{
		TargetType:             targetType,
		TargetValue:            req.TargetValue,
		TolerancePct:           req.TolerancePct,
		Current:                kpi.AggregateCampaigns(cur),
		Previous:               kpi.AggregateCampaigns(prev),
		ProfitMarginPct:        req.ProfitMarginPct,
		Disapprovals:           req.Disapprovals,
		MerchantDisapprovalPct: req.MerchantDisapprovalPct,
	}
	in.ServingIssues = kpi.ServingIssues(in.Current)

	res, err := kpi.CalculateKPI(in)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(res)
}

// endOf reads ?end=YYYY-MM-DD, defaulting to today's midnight UTC.
func endOf(c *fiber.Ctx) (time.Time, bool) {
	raw := c.Query("end")
	if raw == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), true
	}
	t, err := parseDay(raw)
	return t, err == nil
}

func (h *KPIHandler) ClientKPI(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid client ID")
	}
	end, ok := endOf(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid end date")
	}
	_, res, err := h.reporter.Evaluate(c.UserContext(), id, end)
	if err != nil {
		return storeError(c, err, "Failed to calculate KPI")
	}
	return c.JSON(res)
}

func (h *KPIHandler) GenerateReport(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid client ID")
	}
	end, ok := endOf(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid end date")
	}
	report, err := h.reporter.Generate(c.UserContext(), id, end)
	if err != nil {
		return storeError(c, err, "Failed to generate report")
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

func (h *KPIHandler) ListReports(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid client ID")
	}
	reports, err := h.metrics.ListReports(c.UserContext(), id, queryLimit(c, 20, 200))
	if err != nil {
		return storeError(c, err, "Failed to list reports")
	}
	return c.JSON(fiber.Map{"reports": reports})
}

// UpsertMetrics stores daily campaign rows, replacing existing
// (campaign, date) rows.
func (h *KPIHandler) UpsertMetrics(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid client ID")
	}
	var req struct {
		Rows []metricRow `json:"rows"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	rows := make([]models.CampaignMetric, 0, len(req.Rows))
	for _, r := range req.Rows {
		if r.CampaignID == "" {
			return fail(c, fiber.StatusBadRequest, "campaign_id is required")
		}
		date, err := parseDay(r.Date)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid date "+r.Date)
		}
		rows = append(rows, models.CampaignMetric{
			ClientID:        id,
			CampaignID:      r.CampaignID,
			CampaignName:    r.CampaignName,
			Date:            date,
			Spend:           r.Spend,
			Conversions:     r.Conversions,
			ConversionValue: r.ConversionValue,
			Clicks:          r.Clicks,
			Impressions:     r.Impressions,
			Status:          r.Status,
			ServingStatus:   r.ServingStatus,
		})
	}
	if err := h.metrics.UpsertMetrics(c.UserContext(), rows); err != nil {
		return storeError(c, err, "Failed to store metrics")
	}
	return c.JSON(fiber.Map{"upserted": len(rows)})
}
