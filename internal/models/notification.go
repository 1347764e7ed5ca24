package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Notification is a deduplicated dashboard alert keyed by (client, url, status code).
type Notification struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_notification_key" json:"client_id"`
	URL        string     `gorm:"not null;index:idx_notification_key" json:"url"`
	StatusCode int        `gorm:"index:idx_notification_key" json:"status_code"`
	Severity   Severity   `gorm:"not null;default:'info'" json:"severity"`
	Title      string     `gorm:"not null" json:"title"`
	Message    string     `gorm:"not null" json:"message"`
	Read       bool       `gorm:"default:false" json:"read"`
	ReadAt     *time.Time `json:"read_at"`
	CreatedAt  time.Time  `gorm:"not null;index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
