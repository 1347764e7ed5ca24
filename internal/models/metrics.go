package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CampaignMetric is one campaign's performance for one day. Rows are upserted
// by (campaign_id, date) when a sync period is written.
type CampaignMetric struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID        uuid.UUID `gorm:"type:uuid;not null;index:idx_metric_client_date" json:"client_id"`
	CampaignID      string    `gorm:"not null;uniqueIndex:idx_metric_campaign_date" json:"campaign_id"`
	CampaignName    string    `json:"campaign_name"`
	Date            time.Time `gorm:"type:date;not null;uniqueIndex:idx_metric_campaign_date;index:idx_metric_client_date" json:"date"`
	Spend           float64   `json:"spend"`
	Conversions     float64   `json:"conversions"`
	ConversionValue float64   `json:"conversion_value"`
	Clicks          int64     `json:"clicks"`
	Impressions     int64     `json:"impressions"`
	Status          string    `json:"status"`
	ServingStatus   string    `json:"serving_status"`
}

func (m *CampaignMetric) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// KPIReport is a stored health/KPI evaluation for one client and period.
// Result carries the full evaluation, Breakdown the penalty components.
type KPIReport struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"client_id"`
	PeriodStart     time.Time      `gorm:"not null" json:"period_start"`
	PeriodEnd       time.Time      `gorm:"not null" json:"period_end"`
	TargetType      string         `gorm:"not null" json:"target_type"`
	TargetValue     float64        `json:"target_value"`
	BlendedKPI      float64        `json:"blended_kpi"`
	TargetDeviation float64        `json:"target_deviation"`
	TargetStatus    string         `json:"target_status"`
	HealthScore     int            `json:"health_score"`
	TrendDirection  string         `json:"trend_direction"`
	Breakdown       datatypes.JSON `gorm:"type:jsonb" json:"breakdown"`
	Result          datatypes.JSON `gorm:"type:jsonb" json:"result"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (r *KPIReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
