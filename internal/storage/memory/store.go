// Package memory is an in-process implementation of storage.Store. It backs
// tests and CLI dry runs.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
)

type Store struct {
	mu            sync.RWMutex
	clients       map[uuid.UUID]models.Client
	issues        []models.AccountIssues
	targets       map[uuid.UUID]models.DataSource
	checks        []models.UptimeCheck
	certs         map[uuid.UUID]models.SSLCert
	incidents     map[uuid.UUID]models.Incident
	events        map[uuid.UUID][]models.IncidentEvent
	notifications []models.Notification
	metrics       map[metricKey]models.CampaignMetric
	reports       []models.KPIReport
	now           func() time.Time
}

type metricKey struct {
	campaignID string
	date       string
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		clients:   make(map[uuid.UUID]models.Client),
		targets:   make(map[uuid.UUID]models.DataSource),
		certs:     make(map[uuid.UUID]models.SSLCert),
		incidents: make(map[uuid.UUID]models.Incident),
		events:    make(map[uuid.UUID][]models.IncidentEvent),
		metrics:   make(map[metricKey]models.CampaignMetric),
		now:       time.Now,
	}
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// Clients

func (s *Store) CreateClient(ctx context.Context, c *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&c.ID)
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.KPITargetType == "" {
		c.KPITargetType = "CPA"
	}
	s.clients[c.ID] = *c
	return nil
}

func (s *Store) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SaveAccountIssues(ctx context.Context, issues *models.AccountIssues) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&issues.ID)
	if issues.RecordedAt.IsZero() {
		issues.RecordedAt = s.now()
	}
	s.issues = append(s.issues, *issues)
	return nil
}

func (s *Store) LatestAccountIssues(ctx context.Context, clientID uuid.UUID) (*models.AccountIssues, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.AccountIssues
	for i := range s.issues {
		if s.issues[i].ClientID != clientID {
			continue
		}
		if latest == nil || !s.issues[i].RecordedAt.Before(latest.RecordedAt) {
			v := s.issues[i]
			latest = &v
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

// Targets

func (s *Store) CreateTarget(ctx context.Context, t *models.DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&t.ID)
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.LastStatus == "" {
		t.LastStatus = "UNKNOWN"
	}
	s.targets[t.ID] = *t
	return nil
}

func (s *Store) GetTarget(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

func (s *Store) UpdateTarget(ctx context.Context, t *models.DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.targets[t.ID]
	if !ok {
		return storage.ErrNotFound
	}
	stored.Name = t.Name
	stored.Config = t.Config
	stored.Active = t.Active
	stored.UpdatedAt = s.now()
	s.targets[t.ID] = stored
	*t = stored
	return nil
}

func (s *Store) DeleteTarget(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.targets[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.targets, id)
	return nil
}

func (s *Store) ListTargets(ctx context.Context, f storage.TargetFilter) ([]models.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DataSource
	for _, t := range s.targets {
		if f.ClientID != nil && t.ClientID != *f.ClientID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.ActiveOnly && !t.Active {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) RecordCheckResult(ctx context.Context, id uuid.UUID, status models.CheckStatus, responseMs int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.LastStatus = string(status)
	t.LastResponseMs = responseMs
	t.LastCheckedAt = &at
	s.targets[id] = t
	return nil
}

// Checks

func (s *Store) SaveUptimeChecks(ctx context.Context, checks []models.UptimeCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range checks {
		ensureID(&checks[i].ID)
		s.checks = append(s.checks, checks[i])
	}
	return nil
}

func (s *Store) ListUptimeChecks(ctx context.Context, dataSourceID uuid.UUID, limit int) ([]models.UptimeCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.UptimeCheck
	for i := len(s.checks) - 1; i >= 0; i-- {
		if s.checks[i].DataSourceID != dataSourceID {
			continue
		}
		out = append(out, s.checks[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UpsertSSLCert(ctx context.Context, cert *models.SSLCert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.certs[cert.DataSourceID]; ok {
		cert.ID = existing.ID
		cert.CreatedAt = existing.CreatedAt
	} else {
		ensureID(&cert.ID)
		cert.CreatedAt = now
	}
	cert.UpdatedAt = now
	s.certs[cert.DataSourceID] = *cert
	return nil
}

func (s *Store) GetSSLCert(ctx context.Context, dataSourceID uuid.UUID) (*models.SSLCert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.certs[dataSourceID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

// Incidents

func (s *Store) CreateIncidentIfNoneOpen(ctx context.Context, inc *models.Incident, event models.IncidentEvent) (*models.Incident, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.incidents {
		if existing.DataSourceID == inc.DataSourceID && existing.CheckedURL == inc.CheckedURL && existing.IsOpen() {
			return s.withEvents(existing), false, nil
		}
	}
	ensureID(&inc.ID)
	now := s.now()
	inc.CreatedAt, inc.UpdatedAt = now, now
	ensureID(&event.ID)
	event.IncidentID = inc.ID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	inc.Events = nil
	s.incidents[inc.ID] = *inc
	s.events[inc.ID] = []models.IncidentEvent{event}
	inc.Events = []models.IncidentEvent{event}
	return s.withEvents(s.incidents[inc.ID]), true, nil
}

func (s *Store) FindOpenIncidents(ctx context.Context, dataSourceID uuid.UUID, checkedURL string) ([]models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Incident
	for _, inc := range s.incidents {
		if inc.DataSourceID == dataSourceID && inc.CheckedURL == checkedURL && inc.IsOpen() {
			out = append(out, inc)
		}
	}
	sortIncidents(out)
	return out, nil
}

func (s *Store) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.withEvents(inc), nil
}

func (s *Store) ListIncidents(ctx context.Context, f storage.IncidentFilter) ([]models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Incident
	for _, inc := range s.incidents {
		if f.ClientID != nil && inc.ClientID != *f.ClientID {
			continue
		}
		if f.DataSourceID != nil && inc.DataSourceID != *f.DataSourceID {
			continue
		}
		if f.Status != "" && inc.Status != f.Status {
			continue
		}
		out = append(out, inc)
	}
	sortIncidents(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) SaveIncidentTransition(ctx context.Context, inc *models.Incident, from models.IncidentStatus, event models.IncidentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.incidents[inc.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Status != from {
		return storage.ErrConflict
	}
	if inc.IsOpen() && !stored.IsOpen() {
		for id, other := range s.incidents {
			if id != inc.ID && other.DataSourceID == inc.DataSourceID && other.CheckedURL == inc.CheckedURL && other.IsOpen() {
				return storage.ErrOpenIncidentExists
			}
		}
	}
	inc.UpdatedAt = s.now()
	ensureID(&event.ID)
	event.IncidentID = inc.ID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = inc.UpdatedAt
	}
	row := *inc
	row.Events = nil
	s.incidents[inc.ID] = row
	s.events[inc.ID] = append(s.events[inc.ID], event)
	inc.Events = slices.Clone(s.events[inc.ID])
	return nil
}

func (s *Store) withEvents(inc models.Incident) *models.Incident {
	inc.Events = slices.Clone(s.events[inc.ID])
	return &inc
}

// newest first
func sortIncidents(in []models.Incident) {
	sort.Slice(in, func(i, j int) bool { return in[i].StartedAt.After(in[j].StartedAt) })
}

// Notifications

func (s *Store) CreateNotificationIfAbsent(ctx context.Context, n *models.Notification, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.notifications {
		if existing.ClientID == n.ClientID && existing.URL == n.URL && existing.StatusCode == n.StatusCode &&
			!existing.Read && !existing.CreatedAt.Before(since) {
			return false, nil
		}
	}
	ensureID(&n.ID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.notifications = append(s.notifications, *n)
	return true, nil
}

func (s *Store) ListNotifications(ctx context.Context, f storage.NotificationFilter) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if f.ClientID != nil && n.ClientID != *f.ClientID {
			continue
		}
		if f.UnreadOnly && n.Read {
			continue
		}
		out = append(out, n)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			s.notifications[i].ReadAt = &at
			return nil
		}
	}
	return storage.ErrNotFound
}

// Metrics

func (s *Store) UpsertMetrics(ctx context.Context, rows []models.CampaignMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range rows {
		key := metricKey{campaignID: rows[i].CampaignID, date: rows[i].Date.Format(time.DateOnly)}
		if existing, ok := s.metrics[key]; ok {
			rows[i].ID = existing.ID
		} else {
			ensureID(&rows[i].ID)
		}
		s.metrics[key] = rows[i]
	}
	return nil
}

func (s *Store) ListMetrics(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]models.CampaignMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CampaignMetric
	for _, m := range s.metrics {
		if m.ClientID != clientID || m.Date.Before(from) || !m.Date.Before(to) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CampaignID < out[j].CampaignID
	})
	return out, nil
}

func (s *Store) SaveReport(ctx context.Context, r *models.KPIReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&r.ID)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.reports = append(s.reports, *r)
	return nil
}

func (s *Store) ListReports(ctx context.Context, clientID uuid.UUID, limit int) ([]models.KPIReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.KPIReport
	for i := len(s.reports) - 1; i >= 0; i-- {
		if s.reports[i].ClientID != clientID {
			continue
		}
		out = append(out, s.reports[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
