// Package postgres implements storage.Store on gorm with the Postgres driver.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
)

type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

func eventsByTime(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// advisoryLock serializes writers on key for the rest of the transaction.
func advisoryLock(tx *gorm.DB, key string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error
}

// Clients

func (s *Store) CreateClient(ctx context.Context, c *models.Client) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *Store) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var c models.Client
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]models.Client, error) {
	var out []models.Client
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (s *Store) SaveAccountIssues(ctx context.Context, issues *models.AccountIssues) error {
	if issues.RecordedAt.IsZero() {
		issues.RecordedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(issues).Error
}

func (s *Store) LatestAccountIssues(ctx context.Context, clientID uuid.UUID) (*models.AccountIssues, error) {
	var out models.AccountIssues
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).Order("recorded_at DESC").First(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

// Targets

func (s *Store) CreateTarget(ctx context.Context, t *models.DataSource) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Store) GetTarget(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	var t models.DataSource
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *Store) UpdateTarget(ctx context.Context, t *models.DataSource) error {
	res := s.db.WithContext(ctx).Model(&models.DataSource{}).Where("id = ?", t.ID).Updates(map[string]any{
		"name":       t.Name,
		"config":     t.Config,
		"active":     t.Active,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTarget(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.DataSource{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListTargets(ctx context.Context, f storage.TargetFilter) ([]models.DataSource, error) {
	q := s.db.WithContext(ctx).Model(&models.DataSource{})
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	var out []models.DataSource
	err := q.Order("created_at ASC").Find(&out).Error
	return out, err
}

func (s *Store) RecordCheckResult(ctx context.Context, id uuid.UUID, status models.CheckStatus, responseMs int, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.DataSource{}).Where("id = ?", id).Updates(map[string]any{
		"last_status":      string(status),
		"last_response_ms": responseMs,
		"last_checked_at":  at,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Checks

func (s *Store) SaveUptimeChecks(ctx context.Context, checks []models.UptimeCheck) error {
	if len(checks) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&checks).Error
}

func (s *Store) ListUptimeChecks(ctx context.Context, dataSourceID uuid.UUID, limit int) ([]models.UptimeCheck, error) {
	q := s.db.WithContext(ctx).Where("data_source_id = ?", dataSourceID).Order("checked_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.UptimeCheck
	err := q.Find(&out).Error
	return out, err
}

func (s *Store) UpsertSSLCert(ctx context.Context, cert *models.SSLCert) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "data_source_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"domain", "issuer", "subject", "valid_from", "valid_to",
			"days_remaining", "authorized", "error", "last_checked_at", "updated_at",
		}),
	}).Create(cert).Error
}

func (s *Store) GetSSLCert(ctx context.Context, dataSourceID uuid.UUID) (*models.SSLCert, error) {
	var c models.SSLCert
	if err := s.db.WithContext(ctx).First(&c, "data_source_id = ?", dataSourceID).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// Incidents

func (s *Store) CreateIncidentIfNoneOpen(ctx context.Context, inc *models.Incident, event models.IncidentEvent) (*models.Incident, bool, error) {
	var (
		out     *models.Incident
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := advisoryLock(tx, "incident|"+inc.DataSourceID.String()+"|"+inc.CheckedURL); err != nil {
			return fmt.Errorf("lock incident key: %w", err)
		}

		var existing models.Incident
		err := tx.Preload("Events", eventsByTime).
			Where("data_source_id = ? AND checked_url = ? AND status IN ?", inc.DataSourceID, inc.CheckedURL, models.OpenIncidentStatuses).
			First(&existing).Error
		if err == nil {
			out = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		inc.Events = nil
		if err := tx.Omit(clause.Associations).Create(inc).Error; err != nil {
			return err
		}
		event.IncidentID = inc.ID
		if event.CreatedAt.IsZero() {
			event.CreatedAt = time.Now().UTC()
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		inc.Events = []models.IncidentEvent{event}
		out, created = inc, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (s *Store) FindOpenIncidents(ctx context.Context, dataSourceID uuid.UUID, checkedURL string) ([]models.Incident, error) {
	var out []models.Incident
	err := s.db.WithContext(ctx).
		Where("data_source_id = ? AND checked_url = ? AND status IN ?", dataSourceID, checkedURL, models.OpenIncidentStatuses).
		Order("started_at DESC").
		Find(&out).Error
	return out, err
}

func (s *Store) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	var inc models.Incident
	if err := s.db.WithContext(ctx).Preload("Events", eventsByTime).First(&inc, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &inc, nil
}

func (s *Store) ListIncidents(ctx context.Context, f storage.IncidentFilter) ([]models.Incident, error) {
	q := s.db.WithContext(ctx).Model(&models.Incident{})
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.DataSourceID != nil {
		q = q.Where("data_source_id = ?", *f.DataSourceID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.Incident
	err := q.Order("started_at DESC").Find(&out).Error
	return out, err
}

func (s *Store) SaveIncidentTransition(ctx context.Context, inc *models.Incident, from models.IncidentStatus, event models.IncidentEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if inc.IsOpen() && !from.IsOpen() {
			if err := advisoryLock(tx, "incident|"+inc.DataSourceID.String()+"|"+inc.CheckedURL); err != nil {
				return fmt.Errorf("lock incident key: %w", err)
			}
			var others int64
			err := tx.Model(&models.Incident{}).
				Where("data_source_id = ? AND checked_url = ? AND status IN ? AND id <> ?", inc.DataSourceID, inc.CheckedURL, models.OpenIncidentStatuses, inc.ID).
				Count(&others).Error
			if err != nil {
				return err
			}
			if others > 0 {
				return storage.ErrOpenIncidentExists
			}
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Incident{}).
			Where("id = ? AND status = ?", inc.ID, from).
			Updates(map[string]any{
				"status":          inc.Status,
				"acknowledged_at": inc.AcknowledgedAt,
				"acknowledged_by": inc.AcknowledgedBy,
				"resolved_at":     inc.ResolvedAt,
				"resolved_by":     inc.ResolvedBy,
				"updated_at":      now,
			})
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return storage.ErrOpenIncidentExists
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Incident{}).Where("id = ?", inc.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return storage.ErrNotFound
			}
			return storage.ErrConflict
		}

		event.IncidentID = inc.ID
		if event.CreatedAt.IsZero() {
			event.CreatedAt = now
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		inc.UpdatedAt = now
		inc.Events = append(inc.Events, event)
		return nil
	})
}

// Notifications

func (s *Store) CreateNotificationIfAbsent(ctx context.Context, n *models.Notification, since time.Time) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key := fmt.Sprintf("notification|%s|%s|%d", n.ClientID, n.URL, n.StatusCode)
		if err := advisoryLock(tx, key); err != nil {
			return fmt.Errorf("lock notification key: %w", err)
		}
		var count int64
		err := tx.Model(&models.Notification{}).
			Where("client_id = ? AND url = ? AND status_code = ? AND read = ? AND created_at >= ?",
				n.ClientID, n.URL, n.StatusCode, false, since).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		if err := tx.Create(n).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (s *Store) ListNotifications(ctx context.Context, f storage.NotificationFilter) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Model(&models.Notification{})
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.UnreadOnly {
		q = q.Where("read = ?", false)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.Notification
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).
		Updates(map[string]any{"read": true, "read_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Metrics

func (s *Store) UpsertMetrics(ctx context.Context, rows []models.CampaignMetric) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "campaign_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"client_id", "campaign_name", "spend", "conversions", "conversion_value",
			"clicks", "impressions", "status", "serving_status",
		}),
	}).Create(&rows).Error
}

func (s *Store) ListMetrics(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]models.CampaignMetric, error) {
	var out []models.CampaignMetric
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND date >= ? AND date < ?", clientID, from, to).
		Order("date ASC, campaign_id ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) SaveReport(ctx context.Context, r *models.KPIReport) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) ListReports(ctx context.Context, clientID uuid.UUID, limit int) ([]models.KPIReport, error) {
	q := s.db.WithContext(ctx).Where("client_id = ?", clientID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.KPIReport
	err := q.Find(&out).Error
	return out, err
}
