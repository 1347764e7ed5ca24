package incident

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahmetk3436/markops/internal/alert"
	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/notify"
	"github.com/ahmetk3436/markops/internal/storage"
)

// Submitter accepts alerts for asynchronous delivery. It must not block.
type Submitter interface {
	Submit(a alert.IncidentAlert) bool
}

// Publisher receives every appended incident event, e.g. for live feeds.
type Publisher interface {
	PublishIncidentEvent(inc models.Incident, ev models.IncidentEvent)
}

// Failure describes a failing probe that should open an incident.
type Failure struct {
	ClientID       uuid.UUID
	DataSourceID   uuid.UUID
	URL            string
	Title          string
	StatusCode     *int
	ResponseTimeMs int
}

type Manager struct {
	store     storage.IncidentStore
	clients   storage.ClientStore
	alerts    Submitter
	publisher Publisher
	now       func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func NewManager(store storage.IncidentStore, clients storage.ClientStore, alerts Submitter, opts ...Option) *Manager {
	m := &Manager{store: store, clients: clients, alerts: alerts, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AutoOpen opens an incident for f unless one is already open for the same
// (data source, URL). created is false when the existing one was returned.
func (m *Manager) AutoOpen(ctx context.Context, f Failure) (*models.Incident, bool, error) {
	now := m.now().UTC()
	label := notify.CauseLabel(f.StatusCode)
	title := f.Title
	if title == "" {
		title = fmt.Sprintf("%s is down", f.URL)
	}

	inc := &models.Incident{
		ClientID:       f.ClientID,
		DataSourceID:   f.DataSourceID,
		CheckedURL:     f.URL,
		Title:          title,
		Cause:          notify.Cause(f.StatusCode),
		CauseCode:      notify.CauseCode(f.StatusCode),
		Status:         models.IncidentOngoing,
		StatusCode:     f.StatusCode,
		ResponseTimeMs: f.ResponseTimeMs,
		StartedAt:      now,
	}
	ev := models.IncidentEvent{
		Type:      models.EventCreated,
		Message:   "Incident automatically opened: " + label,
		Actor:     models.SystemActor,
		CreatedAt: now,
	}

	got, created, err := m.store.CreateIncidentIfNoneOpen(ctx, inc, ev)
	if err != nil {
		return nil, false, fmt.Errorf("open incident for %s: %w", f.URL, err)
	}
	if !created {
		return got, false, nil
	}

	slog.Info("Incident opened", "incident_id", got.ID, "client_id", got.ClientID, "checked_url", got.CheckedURL, "cause", got.Cause)
	m.publish(*got, ev)
	m.dispatch(ctx, got)
	return got, true, nil
}

// dispatch hands the alert to the submitter. Lookup failures are logged and
// never reach the caller.
func (m *Manager) dispatch(ctx context.Context, inc *models.Incident) {
	if m.alerts == nil || m.clients == nil {
		return
	}
	client, err := m.clients.GetClient(ctx, inc.ClientID)
	if err != nil {
		slog.Warn("Skipping incident alert, client lookup failed", "incident_id", inc.ID, "client_id", inc.ClientID, "error", err)
		return
	}
	m.alerts.Submit(alert.IncidentAlert{
		IncidentID:      inc.ID,
		ClientID:        client.ID,
		ClientName:      client.Name,
		Title:           inc.Title,
		Cause:           inc.Cause,
		CheckedURL:      inc.CheckedURL,
		StartedAt:       inc.StartedAt,
		Recipients:      []string(client.AlertEmails),
		SlackWebhookURL: client.SlackWebhookURL,
	})
}

// AutoResolve resolves every open incident for (dataSourceID, url) as the
// system actor and returns the ones it resolved.
func (m *Manager) AutoResolve(ctx context.Context, dataSourceID uuid.UUID, url string) ([]models.Incident, error) {
	open, err := m.store.FindOpenIncidents(ctx, dataSourceID, url)
	if err != nil {
		return nil, fmt.Errorf("find open incidents for %s: %w", url, err)
	}
	var resolved []models.Incident
	for i := range open {
		inc := open[i]
		err := m.transition(ctx, &inc, ActionResolve, models.SystemActor, "Automatically resolved: check succeeded")
		if errors.Is(err, storage.ErrConflict) {
			slog.Info("Incident changed concurrently, skipping auto-resolve", "incident_id", inc.ID)
			continue
		}
		if err != nil {
			return resolved, err
		}
		resolved = append(resolved, inc)
	}
	return resolved, nil
}

func (m *Manager) Acknowledge(ctx context.Context, id uuid.UUID, actor, note string) (*models.Incident, error) {
	return m.manual(ctx, id, ActionAcknowledge, actor, note, "Acknowledged by "+actor)
}

func (m *Manager) Resolve(ctx context.Context, id uuid.UUID, actor, note string) (*models.Incident, error) {
	return m.manual(ctx, id, ActionResolve, actor, note, "Resolved by "+actor)
}

// Reopen moves a resolved incident back to ONGOING unless a newer incident
// is already open for the same URL.
func (m *Manager) Reopen(ctx context.Context, id uuid.UUID, actor, note string) (*models.Incident, error) {
	return m.manual(ctx, id, ActionReopen, actor, note, "Reopened by "+actor)
}

func (m *Manager) manual(ctx context.Context, id uuid.UUID, a Action, actor, note, fallback string) (*models.Incident, error) {
	if actor == "" {
		actor = "unknown"
	}
	msg := note
	if msg == "" {
		msg = fallback
	}
	inc, err := m.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	// The store refuses to reopen while another incident for the URL is open.
	if err := m.transition(ctx, inc, a, actor, msg); err != nil {
		return nil, err
	}
	return inc, nil
}

func (m *Manager) transition(ctx context.Context, inc *models.Incident, a Action, actor, msg string) error {
	from := inc.Status
	ev, err := Apply(inc, a, actor, msg, m.now().UTC())
	if err != nil {
		return err
	}
	if err := m.store.SaveIncidentTransition(ctx, inc, from, ev); err != nil {
		return fmt.Errorf("save incident transition: %w", err)
	}
	slog.Info("Incident transitioned", "incident_id", inc.ID, "from", from, "to", inc.Status, "actor", actor)
	m.publish(*inc, ev)
	return nil
}

func (m *Manager) publish(inc models.Incident, ev models.IncidentEvent) {
	if m.publisher != nil {
		m.publisher.PublishIncidentEvent(inc, ev)
	}
}
