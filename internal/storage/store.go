// Package storage defines the persistence ports used by the monitor, the
// incident manager and the KPI reporting service.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ahmetk3436/markops/internal/models"
)

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional write lost a race, e.g. an
	// incident transition whose source status no longer matches.
	ErrConflict = errors.New("conflict")
	// ErrOpenIncidentExists is returned when a write would leave two open
	// incidents for the same (data source, URL).
	ErrOpenIncidentExists = errors.New("an open incident already exists for this URL")
)

type TargetFilter struct {
	ClientID   *uuid.UUID
	Type       models.SourceType
	ActiveOnly bool
}

type IncidentFilter struct {
	ClientID     *uuid.UUID
	DataSourceID *uuid.UUID
	Status       models.IncidentStatus
	Limit        int
}

type NotificationFilter struct {
	ClientID   *uuid.UUID
	UnreadOnly bool
	Limit      int
}

type ClientStore interface {
	CreateClient(ctx context.Context, c *models.Client) error
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	ListClients(ctx context.Context) ([]models.Client, error)
	SaveAccountIssues(ctx context.Context, issues *models.AccountIssues) error
	// LatestAccountIssues returns ErrNotFound when nothing was recorded yet.
	LatestAccountIssues(ctx context.Context, clientID uuid.UUID) (*models.AccountIssues, error)
}

type TargetStore interface {
	CreateTarget(ctx context.Context, t *models.DataSource) error
	GetTarget(ctx context.Context, id uuid.UUID) (*models.DataSource, error)
	// UpdateTarget writes the editable fields (name, config, active).
	UpdateTarget(ctx context.Context, t *models.DataSource) error
	DeleteTarget(ctx context.Context, id uuid.UUID) error
	ListTargets(ctx context.Context, f TargetFilter) ([]models.DataSource, error)
	RecordCheckResult(ctx context.Context, id uuid.UUID, status models.CheckStatus, responseMs int, at time.Time) error
}

type CheckStore interface {
	SaveUptimeChecks(ctx context.Context, checks []models.UptimeCheck) error
	// ListUptimeChecks returns the newest checks first.
	ListUptimeChecks(ctx context.Context, dataSourceID uuid.UUID, limit int) ([]models.UptimeCheck, error)
	UpsertSSLCert(ctx context.Context, cert *models.SSLCert) error
	GetSSLCert(ctx context.Context, dataSourceID uuid.UUID) (*models.SSLCert, error)
}

type IncidentStore interface {
	// CreateIncidentIfNoneOpen inserts inc with event as its first audit entry
	// unless an ONGOING or ACKNOWLEDGED incident already exists for
	// (inc.DataSourceID, inc.CheckedURL). In that case the existing incident is
	// returned with created=false.
	CreateIncidentIfNoneOpen(ctx context.Context, inc *models.Incident, event models.IncidentEvent) (*models.Incident, bool, error)
	FindOpenIncidents(ctx context.Context, dataSourceID uuid.UUID, checkedURL string) ([]models.Incident, error)
	// GetIncident loads the incident with its events in creation order.
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListIncidents(ctx context.Context, f IncidentFilter) ([]models.Incident, error)
	// SaveIncidentTransition persists inc if its stored status still equals
	// from, and appends event. ErrConflict otherwise. Moving inc into an open
	// status fails with ErrOpenIncidentExists while another incident for the
	// same URL is open.
	SaveIncidentTransition(ctx context.Context, inc *models.Incident, from models.IncidentStatus, event models.IncidentEvent) error
}

type NotificationStore interface {
	// CreateNotificationIfAbsent inserts n unless an unread notification with
	// the same (client, url, status code) was created at or after since.
	CreateNotificationIfAbsent(ctx context.Context, n *models.Notification, since time.Time) (bool, error)
	ListNotifications(ctx context.Context, f NotificationFilter) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID, at time.Time) error
}

type MetricStore interface {
	UpsertMetrics(ctx context.Context, rows []models.CampaignMetric) error
	// ListMetrics returns rows with from <= date < to, ordered by date.
	ListMetrics(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]models.CampaignMetric, error)
	SaveReport(ctx context.Context, r *models.KPIReport) error
	// ListReports returns the newest reports first.
	ListReports(ctx context.Context, clientID uuid.UUID, limit int) ([]models.KPIReport, error)
}

// Store is the full persistence surface.
type Store interface {
	ClientStore
	TargetStore
	CheckStore
	IncidentStore
	NotificationStore
	MetricStore
}
