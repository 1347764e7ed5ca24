// Package storagetest holds behaviour tests shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/datatypes"

	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
)

// StoreSuite runs against the store returned by NewStore, which is called
// before every test and must return an empty store.
type StoreSuite struct {
	suite.Suite

	NewStore func() storage.Store
	store    storage.Store
	ctx      context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
}

func (s *StoreSuite) newClient() *models.Client {
	c := &models.Client{Name: "Bakkerij Jansen", KPITargetType: "CPA", KPITargetValue: 25, KPITolerancePct: 15}
	s.Require().NoError(s.store.CreateClient(s.ctx, c))
	return c
}

func (s *StoreSuite) newTarget(clientID uuid.UUID) *models.DataSource {
	t := &models.DataSource{
		ClientID: clientID,
		Type:     models.SourceDomain,
		Name:     "example.com",
		Config:   datatypes.JSON(`{"url":"https://example.com","checks":{"uptime":true}}`),
		Active:   true,
	}
	s.Require().NoError(s.store.CreateTarget(s.ctx, t))
	return t
}

func (s *StoreSuite) openIncident(target *models.DataSource, url string) (*models.Incident, bool) {
	inc := &models.Incident{
		ClientID:     target.ClientID,
		DataSourceID: target.ID,
		CheckedURL:   url,
		Title:        url + " is down",
		Cause:        "Status 503",
		CauseCode:    "503",
		Status:       models.IncidentOngoing,
		StartedAt:    time.Now().UTC(),
	}
	ev := models.IncidentEvent{Type: models.EventCreated, Message: "opened", Actor: models.SystemActor}
	got, created, err := s.store.CreateIncidentIfNoneOpen(s.ctx, inc, ev)
	s.Require().NoError(err)
	return got, created
}

func (s *StoreSuite) TestTargetRoundTrip() {
	c := s.newClient()
	t := s.newTarget(c.ID)

	got, err := s.store.GetTarget(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(c.ID, got.ClientID)
	s.Nil(got.LastCheckedAt)

	at := time.Now().UTC().Truncate(time.Second)
	s.Require().NoError(s.store.RecordCheckResult(s.ctx, t.ID, models.CheckDown, 120, at))

	got, err = s.store.GetTarget(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal("DOWN", got.LastStatus)
	s.Equal(120, got.LastResponseMs)
	s.Require().NotNil(got.LastCheckedAt)
	s.WithinDuration(at, *got.LastCheckedAt, time.Second)

	list, err := s.store.ListTargets(s.ctx, storage.TargetFilter{ClientID: &c.ID, Type: models.SourceDomain})
	s.Require().NoError(err)
	s.Len(list, 1)

	s.Require().NoError(s.store.DeleteTarget(s.ctx, t.ID))
	_, err = s.store.GetTarget(s.ctx, t.ID)
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *StoreSuite) TestGetMissingIsNotFound() {
	_, err := s.store.GetClient(s.ctx, uuid.New())
	s.ErrorIs(err, storage.ErrNotFound)
	_, err = s.store.GetIncident(s.ctx, uuid.New())
	s.ErrorIs(err, storage.ErrNotFound)
	_, err = s.store.GetSSLCert(s.ctx, uuid.New())
	s.ErrorIs(err, storage.ErrNotFound)
	_, err = s.store.LatestAccountIssues(s.ctx, uuid.New())
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *StoreSuite) TestCreateIncidentIfNoneOpen_Idempotent() {
	c := s.newClient()
	t := s.newTarget(c.ID)

	first, created := s.openIncident(t, "https://example.com")
	s.True(created)
	s.Require().Len(first.Events, 1)
	s.Equal(models.SystemActor, first.Events[0].Actor)

	second, created := s.openIncident(t, "https://example.com")
	s.False(created)
	s.Equal(first.ID, second.ID)

	_, created = s.openIncident(t, "https://example.com/contact")
	s.True(created, "a different URL gets its own incident")

	open, err := s.store.FindOpenIncidents(s.ctx, t.ID, "https://example.com")
	s.Require().NoError(err)
	s.Len(open, 1)
}

func (s *StoreSuite) TestCreateIncidentIfNoneOpen_Concurrent() {
	c := s.newClient()
	t := s.newTarget(c.ID)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inc := &models.Incident{
				ClientID: c.ID, DataSourceID: t.ID, CheckedURL: "https://example.com",
				Title: "down", Status: models.IncidentOngoing, StartedAt: time.Now().UTC(),
			}
			ev := models.IncidentEvent{Type: models.EventCreated, Actor: models.SystemActor}
			_, ok, err := s.store.CreateIncidentIfNoneOpen(s.ctx, inc, ev)
			s.NoError(err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, created)
}

func (s *StoreSuite) TestSaveIncidentTransition() {
	c := s.newClient()
	t := s.newTarget(c.ID)
	inc, _ := s.openIncident(t, "https://example.com")

	now := time.Now().UTC()
	inc.Status = models.IncidentResolved
	inc.ResolvedAt = &now
	inc.ResolvedBy = models.SystemActor
	ev := models.IncidentEvent{Type: models.EventResolved, Actor: models.SystemActor, Message: "recovered"}
	s.Require().NoError(s.store.SaveIncidentTransition(s.ctx, inc, models.IncidentOngoing, ev))

	got, err := s.store.GetIncident(s.ctx, inc.ID)
	s.Require().NoError(err)
	s.Equal(models.IncidentResolved, got.Status)
	s.Equal(models.SystemActor, got.ResolvedBy)
	s.Require().Len(got.Events, 2)
	s.Equal(models.EventCreated, got.Events[0].Type)
	s.Equal(models.EventResolved, got.Events[1].Type)

	// stale source status
	got.Status = models.IncidentAcknowledged
	err = s.store.SaveIncidentTransition(s.ctx, got, models.IncidentOngoing, models.IncidentEvent{Type: models.EventAcknowledged, Actor: "ops"})
	s.ErrorIs(err, storage.ErrConflict)

	open, err := s.store.FindOpenIncidents(s.ctx, t.ID, "https://example.com")
	s.Require().NoError(err)
	s.Empty(open)

	_, created := s.openIncident(t, "https://example.com")
	s.True(created, "a resolved incident no longer blocks a new one")
}

func (s *StoreSuite) TestSaveIncidentTransition_ReopenBlockedByOpenIncident() {
	c := s.newClient()
	t := s.newTarget(c.ID)
	old, _ := s.openIncident(t, "https://example.com")

	now := time.Now().UTC()
	old.Status = models.IncidentResolved
	old.ResolvedAt = &now
	old.ResolvedBy = models.SystemActor
	s.Require().NoError(s.store.SaveIncidentTransition(s.ctx, old, models.IncidentOngoing, models.IncidentEvent{Type: models.EventResolved, Actor: models.SystemActor}))

	newer, created := s.openIncident(t, "https://example.com")
	s.Require().True(created)

	old.Status = models.IncidentOngoing
	old.ResolvedAt = nil
	old.ResolvedBy = ""
	err := s.store.SaveIncidentTransition(s.ctx, old, models.IncidentResolved, models.IncidentEvent{Type: models.EventReopened, Actor: "ops"})
	s.ErrorIs(err, storage.ErrOpenIncidentExists)

	open, err := s.store.FindOpenIncidents(s.ctx, t.ID, "https://example.com")
	s.Require().NoError(err)
	s.Require().Len(open, 1)
	s.Equal(newer.ID, open[0].ID)

	got, err := s.store.GetIncident(s.ctx, old.ID)
	s.Require().NoError(err)
	s.Equal(models.IncidentResolved, got.Status)
	s.Len(got.Events, 2)

	// once the newer one resolves, the reopen goes through
	newer.Status = models.IncidentResolved
	newer.ResolvedAt = &now
	s.Require().NoError(s.store.SaveIncidentTransition(s.ctx, newer, models.IncidentOngoing, models.IncidentEvent{Type: models.EventResolved, Actor: models.SystemActor}))
	s.Require().NoError(s.store.SaveIncidentTransition(s.ctx, old, models.IncidentResolved, models.IncidentEvent{Type: models.EventReopened, Actor: "ops"}))
}

func (s *StoreSuite) TestListIncidentsFilter() {
	c := s.newClient()
	t := s.newTarget(c.ID)
	s.openIncident(t, "https://example.com")
	s.openIncident(t, "https://example.com/a")

	all, err := s.store.ListIncidents(s.ctx, storage.IncidentFilter{ClientID: &c.ID})
	s.Require().NoError(err)
	s.Len(all, 2)

	resolved, err := s.store.ListIncidents(s.ctx, storage.IncidentFilter{ClientID: &c.ID, Status: models.IncidentResolved})
	s.Require().NoError(err)
	s.Empty(resolved)

	limited, err := s.store.ListIncidents(s.ctx, storage.IncidentFilter{Limit: 1})
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *StoreSuite) TestCreateNotificationIfAbsent_Window() {
	c := s.newClient()
	base := time.Now().UTC().Truncate(time.Second)
	notif := func(at time.Time) *models.Notification {
		return &models.Notification{
			ClientID: c.ID, URL: "https://example.com/x", StatusCode: 404,
			Severity: models.SeverityWarning, Title: "t", Message: "m", CreatedAt: at,
		}
	}

	ok, err := s.store.CreateNotificationIfAbsent(s.ctx, notif(base), base.Add(-time.Hour))
	s.Require().NoError(err)
	s.True(ok)

	later := base.Add(59 * time.Minute)
	ok, err = s.store.CreateNotificationIfAbsent(s.ctx, notif(later), later.Add(-time.Hour))
	s.Require().NoError(err)
	s.False(ok)

	later = base.Add(61 * time.Minute)
	ok, err = s.store.CreateNotificationIfAbsent(s.ctx, notif(later), later.Add(-time.Hour))
	s.Require().NoError(err)
	s.True(ok)
}

func (s *StoreSuite) TestCreateNotificationIfAbsent_ReadDoesNotBlock() {
	c := s.newClient()
	now := time.Now().UTC()
	n := &models.Notification{ClientID: c.ID, URL: "u", StatusCode: 500, Severity: models.SeverityCritical, Title: "t", Message: "m", CreatedAt: now}
	ok, err := s.store.CreateNotificationIfAbsent(s.ctx, n, now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Require().NoError(s.store.MarkNotificationRead(s.ctx, n.ID, now))

	again := &models.Notification{ClientID: c.ID, URL: "u", StatusCode: 500, Severity: models.SeverityCritical, Title: "t", Message: "m", CreatedAt: now}
	ok, err = s.store.CreateNotificationIfAbsent(s.ctx, again, now.Add(-time.Hour))
	s.Require().NoError(err)
	s.True(ok)

	other := &models.Notification{ClientID: c.ID, URL: "u", StatusCode: 502, Severity: models.SeverityCritical, Title: "t", Message: "m", CreatedAt: now}
	ok, err = s.store.CreateNotificationIfAbsent(s.ctx, other, now.Add(-time.Hour))
	s.Require().NoError(err)
	s.True(ok, "a different status code is a different key")

	unread, err := s.store.ListNotifications(s.ctx, storage.NotificationFilter{ClientID: &c.ID, UnreadOnly: true})
	s.Require().NoError(err)
	s.Len(unread, 2)
}

func (s *StoreSuite) TestMetricsUpsertAndRange() {
	c := s.newClient()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rows := []models.CampaignMetric{
		{ClientID: c.ID, CampaignID: "c1", Date: day, Spend: 10},
		{ClientID: c.ID, CampaignID: "c1", Date: day.AddDate(0, 0, 1), Spend: 20},
		{ClientID: c.ID, CampaignID: "c1", Date: day.AddDate(0, 0, 7), Spend: 99},
	}
	s.Require().NoError(s.store.UpsertMetrics(s.ctx, rows))
	s.Require().NoError(s.store.UpsertMetrics(s.ctx, []models.CampaignMetric{
		{ClientID: c.ID, CampaignID: "c1", Date: day, Spend: 15},
	}))

	got, err := s.store.ListMetrics(s.ctx, c.ID, day, day.AddDate(0, 0, 7))
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.InDelta(15, got[0].Spend, 1e-9)
	s.InDelta(20, got[1].Spend, 1e-9)
}

func (s *StoreSuite) TestSSLCertUpsert() {
	c := s.newClient()
	t := s.newTarget(c.ID)

	cert := &models.SSLCert{DataSourceID: t.ID, Domain: "example.com", Issuer: "R3", LastCheckedAt: time.Now().UTC()}
	s.Require().NoError(s.store.UpsertSSLCert(s.ctx, cert))
	cert2 := &models.SSLCert{DataSourceID: t.ID, Domain: "example.com", Issuer: "R11", LastCheckedAt: time.Now().UTC()}
	s.Require().NoError(s.store.UpsertSSLCert(s.ctx, cert2))

	got, err := s.store.GetSSLCert(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal("R11", got.Issuer)
}

func (s *StoreSuite) TestReportsNewestFirst() {
	c := s.newClient()
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		r := &models.KPIReport{ClientID: c.ID, TargetType: "CPA", HealthScore: 70 + i, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		s.Require().NoError(s.store.SaveReport(s.ctx, r))
	}
	got, err := s.store.ListReports(s.ctx, c.ID, 2)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(72, got[0].HealthScore)
}

func (s *StoreSuite) TestLatestAccountIssues() {
	c := s.newClient()
	base := time.Now().UTC()
	s.Require().NoError(s.store.SaveAccountIssues(s.ctx, &models.AccountIssues{ClientID: c.ID, Disapprovals: 1, RecordedAt: base.Add(-time.Hour)}))
	s.Require().NoError(s.store.SaveAccountIssues(s.ctx, &models.AccountIssues{ClientID: c.ID, Disapprovals: 4, RecordedAt: base}))

	got, err := s.store.LatestAccountIssues(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(4, got.Disapprovals)
}
