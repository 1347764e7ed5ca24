package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SourceType string

const (
	SourceDomain           SourceType = "DOMAIN"
	SourceGoogleBusiness   SourceType = "GOOGLE_BUSINESS"
	SourceGoogleTagManager SourceType = "GOOGLE_TAG_MANAGER"
)

// DataSource links a client to an external property. For DOMAIN sources it
// is the monitored target; Config holds the type-specific settings and is
// decoded through DecodeConfig.
type DataSource struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"client_id"`
	Type           SourceType     `gorm:"not null;index" json:"type"`
	Name           string         `json:"name"`
	Config         datatypes.JSON `gorm:"type:jsonb" json:"config"`
	Active         bool           `gorm:"default:true" json:"active"`
	LastCheckedAt  *time.Time     `json:"last_checked_at"`
	LastStatus     string         `gorm:"default:'UNKNOWN'" json:"last_status"` // UP, DOWN, UNKNOWN
	LastResponseMs int            `json:"last_response_ms"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (d *DataSource) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DecodeConfig returns the typed, validated config variant for the source.
func (d *DataSource) DecodeConfig() (SourceConfig, error) {
	return DecodeSourceConfig(d.Type, d.Config)
}

// Due reports whether a DOMAIN source should be checked at now given its
// configured interval.
func (d *DataSource) Due(now time.Time, interval time.Duration) bool {
	if d.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*d.LastCheckedAt) >= interval
}
