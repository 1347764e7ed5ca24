package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Client is a tenant of the dashboard. It owns data sources, incidents,
// notifications and campaign metrics.
type Client struct {
	ID              uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name            string                      `gorm:"not null" json:"name"`
	AlertEmails     datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"alert_emails"`
	SlackWebhookURL string                      `json:"slack_webhook_url,omitempty"`
	KPITargetType   string                      `gorm:"default:'CPA'" json:"kpi_target_type"` // CPA, ROAS, POAS
	KPITargetValue  float64                     `json:"kpi_target_value"`
	KPITolerancePct float64                     `gorm:"default:15" json:"kpi_tolerance_pct"`
	ProfitMarginPct *float64                    `json:"profit_margin_pct,omitempty"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
	DeletedAt       gorm.DeletedAt              `gorm:"index" json:"-"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// AccountIssues is the latest snapshot of policy problems reported by the ad
// platforms for a client. Written by the sync jobs, read by the KPI report.
type AccountIssues struct {
	ID                     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID               uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`
	Disapprovals           int       `json:"disapprovals"`
	MerchantDisapprovalPct float64   `json:"merchant_disapproval_pct"`
	RecordedAt             time.Time `gorm:"not null;index" json:"recorded_at"`
}
