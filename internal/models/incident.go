package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IncidentStatus string

const (
	IncidentOngoing      IncidentStatus = "ONGOING"
	IncidentAcknowledged IncidentStatus = "ACKNOWLEDGED"
	IncidentResolved     IncidentStatus = "RESOLVED"
)

// OpenIncidentStatuses are the statuses covered by the one-open-incident-per-URL rule.
var OpenIncidentStatuses = []IncidentStatus{IncidentOngoing, IncidentAcknowledged}

func (s IncidentStatus) IsOpen() bool {
	return s == IncidentOngoing || s == IncidentAcknowledged
}

type IncidentEventType string

const (
	EventCreated      IncidentEventType = "CREATED"
	EventAcknowledged IncidentEventType = "ACKNOWLEDGED"
	EventResolved     IncidentEventType = "RESOLVED"
	EventReopened     IncidentEventType = "REOPENED"
)

// SystemActor is recorded for transitions driven by the monitor itself.
const SystemActor = "Systeem"

// Incident is one failure episode for a (data source, checked URL) pair.
type Incident struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	DataSourceID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_incident_source_url" json:"data_source_id"`
	CheckedURL     string          `gorm:"not null;index:idx_incident_source_url" json:"checked_url"`
	Title          string          `gorm:"not null" json:"title"`
	Cause          string          `json:"cause"`
	CauseCode      string          `json:"cause_code"` // HTTP status or T/O
	Status         IncidentStatus  `gorm:"not null;default:'ONGOING';index" json:"status"`
	StatusCode     *int            `json:"status_code"`
	ResponseTimeMs int             `json:"response_time_ms"`
	StartedAt      time.Time       `gorm:"not null" json:"started_at"`
	AcknowledgedAt *time.Time      `json:"acknowledged_at"`
	AcknowledgedBy string          `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at"`
	ResolvedBy     string          `json:"resolved_by,omitempty"`
	Events         []IncidentEvent `gorm:"foreignKey:IncidentID;constraint:OnDelete:CASCADE" json:"events,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (i *Incident) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// IsOpen reports whether the incident still counts against the
// one-open-incident-per-URL rule.
func (i *Incident) IsOpen() bool {
	return i.Status.IsOpen()
}

// IncidentEvent is an append-only audit entry on an incident.
type IncidentEvent struct {
	ID         uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	IncidentID uuid.UUID         `gorm:"type:uuid;not null;index" json:"incident_id"`
	Type       IncidentEventType `gorm:"not null" json:"type"`
	Message    string            `json:"message"`
	Actor      string            `gorm:"not null" json:"actor"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (e *IncidentEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
