package incident

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"gorm.io/datatypes"

	"github.com/ahmetk3436/markops/internal/alert"
	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
	"github.com/ahmetk3436/markops/internal/storage/memory"
	"github.com/ahmetk3436/markops/internal/testdata/mockalert"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.IncidentEvent
}

func (p *recordingPublisher) PublishIncidentEvent(_ models.Incident, ev models.IncidentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type ManagerTestSuite struct {
	suite.Suite

	ctx       context.Context
	store     *memory.Store
	alerts    *mockalert.Submitter
	publisher *recordingPublisher
	clock     time.Time
	manager   *Manager
	client    *models.Client
	sourceID  uuid.UUID
}

func TestManager(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (s *ManagerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.alerts = &mockalert.Submitter{}
	s.publisher = &recordingPublisher{}
	s.clock = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	s.manager = NewManager(s.store, s.store, s.alerts,
		WithClock(func() time.Time { return s.clock }),
		WithPublisher(s.publisher),
	)
	s.client = &models.Client{
		Name:            "Bakkerij Jansen",
		AlertEmails:     datatypes.JSONSlice[string]{"ops@jansen.nl"},
		SlackWebhookURL: "https://hooks.slack.com/services/T/B/X",
	}
	s.Require().NoError(s.store.CreateClient(s.ctx, s.client))
	s.sourceID = uuid.New()
}

func (s *ManagerTestSuite) TearDownTest() {
	s.alerts.AssertExpectations(s.T())
}

func (s *ManagerTestSuite) failure(code *int) Failure {
	return Failure{ClientID: s.client.ID, DataSourceID: s.sourceID, URL: "https://jansen.nl", StatusCode: code, ResponseTimeMs: 10000}
}

func (s *ManagerTestSuite) TestAutoOpen_Timeout() {
	s.alerts.On("Submit", mock.MatchedBy(func(a alert.IncidentAlert) bool {
		return a.ClientName == "Bakkerij Jansen" && a.Cause == "Status T/O" &&
			len(a.Recipients) == 1 && a.SlackWebhookURL != ""
	})).Return(true).Once()

	inc, created, err := s.manager.AutoOpen(s.ctx, s.failure(nil))

	s.Require().NoError(err)
	s.True(created)
	s.Equal(models.IncidentOngoing, inc.Status)
	s.Equal("Status T/O", inc.Cause)
	s.Equal("T/O", inc.CauseCode)
	s.Nil(inc.StatusCode)
	s.Equal(s.clock, inc.StartedAt)
	s.Require().Len(inc.Events, 1)
	s.Equal(models.EventCreated, inc.Events[0].Type)
	s.Equal(models.SystemActor, inc.Events[0].Actor)
	s.Contains(inc.Events[0].Message, "Connection Timeout")
	s.Len(s.publisher.events, 1)
}

func (s *ManagerTestSuite) TestAutoOpen_IdempotentUnderRepeatedFailures() {
	s.alerts.On("Submit", mock.Anything).Return(true).Once()
	code := 503

	first, created, err := s.manager.AutoOpen(s.ctx, s.failure(&code))
	s.Require().NoError(err)
	s.True(created)

	for i := 0; i < 3; i++ {
		s.clock = s.clock.Add(5 * time.Minute)
		again, created, err := s.manager.AutoOpen(s.ctx, s.failure(&code))
		s.Require().NoError(err)
		s.False(created)
		s.Equal(first.ID, again.ID)
	}

	all, err := s.store.ListIncidents(s.ctx, storage.IncidentFilter{ClientID: &s.client.ID})
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *ManagerTestSuite) TestAutoOpen_AcknowledgedStillBlocks() {
	s.alerts.On("Submit", mock.Anything).Return(true).Once()
	code := 500
	inc, _, err := s.manager.AutoOpen(s.ctx, s.failure(&code))
	s.Require().NoError(err)
	_, err = s.manager.Acknowledge(s.ctx, inc.ID, "Sanne", "")
	s.Require().NoError(err)

	again, created, err := s.manager.AutoOpen(s.ctx, s.failure(&code))
	s.Require().NoError(err)
	s.False(created)
	s.Equal(inc.ID, again.ID)
}

func (s *ManagerTestSuite) TestAutoOpen_DroppedAlertDoesNotFail() {
	s.alerts.On("Submit", mock.Anything).Return(false).Once()

	_, created, err := s.manager.AutoOpen(s.ctx, s.failure(nil))

	s.Require().NoError(err)
	s.True(created)
}

func (s *ManagerTestSuite) TestAutoOpen_UnknownClientSkipsAlert() {
	f := s.failure(nil)
	f.ClientID = uuid.New()

	_, created, err := s.manager.AutoOpen(s.ctx, f)

	s.Require().NoError(err)
	s.True(created)
	s.alerts.AssertNotCalled(s.T(), "Submit", mock.Anything)
}

func (s *ManagerTestSuite) TestAutoResolve() {
	s.alerts.On("Submit", mock.Anything).Return(true).Once()
	inc, _, err := s.manager.AutoOpen(s.ctx, s.failure(nil))
	s.Require().NoError(err)

	s.clock = s.clock.Add(10 * time.Minute)
	resolved, err := s.manager.AutoResolve(s.ctx, s.sourceID, "https://jansen.nl")
	s.Require().NoError(err)
	s.Require().Len(resolved, 1)

	got, err := s.store.GetIncident(s.ctx, inc.ID)
	s.Require().NoError(err)
	s.Equal(models.IncidentResolved, got.Status)
	s.Equal(models.SystemActor, got.ResolvedBy)
	s.Require().NotNil(got.ResolvedAt)
	s.Equal(s.clock, *got.ResolvedAt)
	s.Require().Len(got.Events, 2)
	s.Equal(models.EventResolved, got.Events[1].Type)
	s.Equal(models.SystemActor, got.Events[1].Actor)
}

func (s *ManagerTestSuite) TestAutoResolve_NothingOpen() {
	resolved, err := s.manager.AutoResolve(s.ctx, s.sourceID, "https://jansen.nl")
	s.Require().NoError(err)
	s.Empty(resolved)
}

func (s *ManagerTestSuite) TestRecoveryThenNewFailureOpensNewIncident() {
	s.alerts.On("Submit", mock.Anything).Return(true).Twice()
	first, _, err := s.manager.AutoOpen(s.ctx, s.failure(nil))
	s.Require().NoError(err)
	_, err = s.manager.AutoResolve(s.ctx, s.sourceID, "https://jansen.nl")
	s.Require().NoError(err)

	second, created, err := s.manager.AutoOpen(s.ctx, s.failure(nil))
	s.Require().NoError(err)
	s.True(created)
	s.NotEqual(first.ID, second.ID)
}

func (s *ManagerTestSuite) TestManualLifecycle() {
	s.alerts.On("Submit", mock.Anything).Return(true).Once()
	inc, _, err := s.manager.AutoOpen(s.ctx, s.failure(nil))
	s.Require().NoError(err)

	got, err := s.manager.Acknowledge(s.ctx, inc.ID, "Sanne", "")
	s.Require().NoError(err)
	s.Equal(models.IncidentAcknowledged, got.Status)
	s.Equal("Sanne", got.AcknowledgedBy)

	_, err = s.manager.Acknowledge(s.ctx, inc.ID, "Sanne", "")
	s.ErrorIs(err, ErrInvalidTransition)

	got, err = s.manager.Resolve(s.ctx, inc.ID, "Sanne", "DNS fixed")
	s.Require().NoError(err)
	s.Equal(models.IncidentResolved, got.Status)

	got, err = s.manager.Reopen(s.ctx, inc.ID, "Pieter", "")
	s.Require().NoError(err)
	s.Equal(models.IncidentOngoing, got.Status)
	s.Nil(got.ResolvedAt)
	s.Empty(got.AcknowledgedBy)

	stored, err := s.store.GetIncident(s.ctx, inc.ID)
	s.Require().NoError(err)
	types := make([]models.IncidentEventType, 0, len(stored.Events))
	for _, ev := range stored.Events {
		types = append(types, ev.Type)
	}
	s.Equal([]models.IncidentEventType{models.EventCreated, models.EventAcknowledged, models.EventResolved, models.EventReopened}, types)
	s.Equal("DNS fixed", stored.Events[2].Message)
}

func (s *ManagerTestSuite) TestReopen_BlockedByNewerOpenIncident() {
	s.alerts.On("Submit", mock.Anything).Return(true).Twice()
	first, _, err := s.manager.AutoOpen(s.ctx, s.failure(nil))
	s.Require().NoError(err)
	_, err = s.manager.AutoResolve(s.ctx, s.sourceID, "https://jansen.nl")
	s.Require().NoError(err)
	_, _, err = s.manager.AutoOpen(s.ctx, s.failure(nil))
	s.Require().NoError(err)

	_, err = s.manager.Reopen(s.ctx, first.ID, "Pieter", "")

	s.ErrorIs(err, ErrOpenIncidentExists)
}

// interleavingStore runs hook right after an incident is read, so a
// concurrent open lands between Reopen's read and its write.
type interleavingStore struct {
	*memory.Store
	hook func()
}

func (st *interleavingStore) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	inc, err := st.Store.GetIncident(ctx, id)
	if st.hook != nil {
		st.hook()
		st.hook = nil
	}
	return inc, err
}

func (s *ManagerTestSuite) TestReopen_RacingAutoOpenKeepsSingleOpenIncident() {
	s.alerts.On("Submit", mock.Anything).Return(true).Once()
	first, _, err := s.manager.AutoOpen(s.ctx, s.failure(nil))
	s.Require().NoError(err)
	_, err = s.manager.AutoResolve(s.ctx, s.sourceID, "https://jansen.nl")
	s.Require().NoError(err)

	racing := &interleavingStore{Store: s.store}
	racing.hook = func() {
		inc := &models.Incident{
			ClientID: s.client.ID, DataSourceID: s.sourceID, CheckedURL: "https://jansen.nl",
			Title: "down again", Status: models.IncidentOngoing, StartedAt: s.clock,
		}
		_, created, err := s.store.CreateIncidentIfNoneOpen(s.ctx, inc, models.IncidentEvent{Type: models.EventCreated, Actor: models.SystemActor})
		s.Require().NoError(err)
		s.Require().True(created)
	}
	manager := NewManager(racing, s.store, s.alerts, WithClock(func() time.Time { return s.clock }))

	_, err = manager.Reopen(s.ctx, first.ID, "Pieter", "")

	s.ErrorIs(err, ErrOpenIncidentExists)
	open, err := s.store.FindOpenIncidents(s.ctx, s.sourceID, "https://jansen.nl")
	s.Require().NoError(err)
	s.Len(open, 1)
	s.NotEqual(first.ID, open[0].ID)
}

func (s *ManagerTestSuite) TestManual_NotFound() {
	_, err := s.manager.Acknowledge(s.ctx, uuid.New(), "Sanne", "")
	s.True(errors.Is(err, storage.ErrNotFound))
}
