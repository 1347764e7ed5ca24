package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CheckStatus string

const (
	CheckUp   CheckStatus = "UP"
	CheckDown CheckStatus = "DOWN"
)

type CheckKind string

const (
	CheckKindDomain CheckKind = "domain"
	CheckKindPage   CheckKind = "page"
)

// UptimeCheck is one persisted probe outcome for a data source URL.
type UptimeCheck struct {
	ID             uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DataSourceID   uuid.UUID   `gorm:"type:uuid;not null;index:idx_uptime_source_checked" json:"data_source_id"`
	ClientID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"client_id"`
	URL            string      `gorm:"not null" json:"url"`
	Kind           CheckKind   `gorm:"not null;default:'domain'" json:"kind"`
	Status         CheckStatus `gorm:"not null" json:"status"`
	StatusCode     *int        `json:"status_code"`
	ResponseTimeMs int         `json:"response_time_ms"`
	Error          string      `json:"error,omitempty"`
	CheckedAt      time.Time   `gorm:"not null;index:idx_uptime_source_checked" json:"checked_at"`
}

func (u *UptimeCheck) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// SSLCert holds the last TLS probe result for a domain data source.
type SSLCert struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DataSourceID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"data_source_id"`
	Domain        string     `gorm:"not null" json:"domain"`
	Issuer        string     `json:"issuer"`
	Subject       string     `json:"subject"`
	ValidFrom     *time.Time `json:"valid_from"`
	ValidTo       *time.Time `json:"valid_to"`
	DaysRemaining int        `json:"days_remaining"`
	Authorized    bool       `json:"authorized"`
	Error         string     `json:"error,omitempty"`
	LastCheckedAt time.Time  `json:"last_checked_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (s *SSLCert) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
