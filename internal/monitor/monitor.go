// Package monitor runs uptime checks for DOMAIN data sources and feeds the
// outcomes into notifications and incidents.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahmetk3436/markops/internal/incident"
	"github.com/ahmetk3436/markops/internal/lock"
	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/notify"
	"github.com/ahmetk3436/markops/internal/probe"
	"github.com/ahmetk3436/markops/internal/storage"
)

var (
	ErrNotDomainTarget = errors.New("data source is not a DOMAIN target")
	ErrCheckInProgress = errors.New("check already in progress for target")
)

type HTTPProber interface {
	Probe(ctx context.Context, url string) probe.Result
}

type TLSProber interface {
	Probe(ctx context.Context, host string) probe.CertResult
}

type Notifier interface {
	Notify(ctx context.Context, clientID uuid.UUID, url string, statusCode int) (*models.Notification, bool, error)
}

type Incidents interface {
	AutoOpen(ctx context.Context, f incident.Failure) (*models.Incident, bool, error)
	AutoResolve(ctx context.Context, dataSourceID uuid.UUID, url string) ([]models.Incident, error)
}

type Deps struct {
	Targets   storage.TargetStore
	Checks    storage.CheckStore
	HTTP      HTTPProber
	TLS       TLSProber
	Notifier  Notifier
	Incidents Incidents
	Locker    lock.Locker
	Now       func() time.Time
}

type Monitor struct {
	targets   storage.TargetStore
	checks    storage.CheckStore
	http      HTTPProber
	tls       TLSProber
	notifier  Notifier
	incidents Incidents
	locker    lock.Locker
	now       func() time.Time
}

func New(d Deps) *Monitor {
	if d.Locker == nil {
		d.Locker = lock.NewKeyedLocker()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Monitor{
		targets:   d.Targets,
		checks:    d.Checks,
		http:      d.HTTP,
		tls:       d.TLS,
		notifier:  d.Notifier,
		incidents: d.Incidents,
		locker:    d.Locker,
		now:       d.Now,
	}
}

// URLOutcome is what happened for one probed URL.
type URLOutcome struct {
	URL               string           `json:"url"`
	Kind              models.CheckKind `json:"kind"`
	Result            probe.Result     `json:"result"`
	Healthy           bool             `json:"healthy"`
	Notified          bool             `json:"notified"`
	IncidentOpened    *uuid.UUID       `json:"incident_opened,omitempty"`
	IncidentsResolved []uuid.UUID      `json:"incidents_resolved,omitempty"`
}

type CheckReport struct {
	TargetID  uuid.UUID          `json:"target_id"`
	ClientID  uuid.UUID          `json:"client_id"`
	Status    models.CheckStatus `json:"status"`
	CheckedAt time.Time          `json:"checked_at"`
	Outcomes  []URLOutcome       `json:"outcomes"`
	SSL       *probe.CertResult  `json:"ssl,omitempty"`
}

// PerformUptimeCheck loads the target and runs Check on it.
func (m *Monitor) PerformUptimeCheck(ctx context.Context, targetID uuid.UUID) (*CheckReport, error) {
	t, err := m.targets.GetTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("load target %s: %w", targetID, err)
	}
	return m.Check(ctx, t)
}

// Check probes the target's main URL, every monitored page and, when
// enabled, its certificate. Probes run one after another. Persistence errors
// for one URL do not stop the others; they are joined into the returned error.
func (m *Monitor) Check(ctx context.Context, t *models.DataSource) (*CheckReport, error) {
	if t.Type != models.SourceDomain {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotDomainTarget, t.ID, t.Type)
	}
	sc, err := t.DecodeConfig()
	if err != nil {
		return nil, err
	}
	cfg := sc.(models.DomainConfig)

	unlock, err := m.locker.TryLock(ctx, "target:"+t.ID.String())
	if errors.Is(err, lock.ErrLocked) {
		return nil, fmt.Errorf("%w: %s", ErrCheckInProgress, t.ID)
	}
	if err != nil {
		return nil, err
	}
	defer unlock()

	report := &CheckReport{TargetID: t.ID, ClientID: t.ClientID, CheckedAt: m.now().UTC()}
	var errs []error

	home := m.http.Probe(ctx, cfg.URL)
	out, err := m.handle(ctx, t, home, models.CheckKindDomain, home.Up(), fmt.Sprintf("%s is down", cfg.Host()))
	report.Outcomes = append(report.Outcomes, out)
	errs = append(errs, err)
	report.Status = home.Status

	for _, page := range cfg.MonitoredPages {
		res := m.http.Probe(ctx, page)
		healthy := res.StatusCode != nil && *res.StatusCode < 400
		out, err := m.handle(ctx, t, res, models.CheckKindPage, healthy, fmt.Sprintf("%s returned %s", page, notify.CauseLabel(res.StatusCode)))
		report.Outcomes = append(report.Outcomes, out)
		errs = append(errs, err)
	}

	if cfg.Checks.SSL && m.tls != nil {
		cert := m.tls.Probe(ctx, cfg.Host())
		report.SSL = &cert
		errs = append(errs, m.saveCert(ctx, t, cert))
	}

	checks := make([]models.UptimeCheck, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		checks = append(checks, models.UptimeCheck{
			DataSourceID:   t.ID,
			ClientID:       t.ClientID,
			URL:            o.URL,
			Kind:           o.Kind,
			Status:         o.Result.Status,
			StatusCode:     o.Result.StatusCode,
			ResponseTimeMs: o.Result.ResponseTimeMs(),
			Error:          o.Result.Error,
			CheckedAt:      o.Result.CheckedAt,
		})
	}
	if err := m.checks.SaveUptimeChecks(ctx, checks); err != nil {
		errs = append(errs, fmt.Errorf("save uptime checks: %w", err))
	}
	if err := m.targets.RecordCheckResult(ctx, t.ID, home.Status, home.ResponseTimeMs(), report.CheckedAt); err != nil {
		errs = append(errs, fmt.Errorf("record check result: %w", err))
	}

	slog.Info("Uptime check finished", "target_id", t.ID, "client_id", t.ClientID, "status", report.Status, "urls", len(report.Outcomes))
	return report, errors.Join(errs...)
}

// handle applies notification and incident rules to a single probe result.
func (m *Monitor) handle(ctx context.Context, t *models.DataSource, res probe.Result, kind models.CheckKind, healthy bool, title string) (URLOutcome, error) {
	out := URLOutcome{URL: res.URL, Kind: kind, Result: res, Healthy: healthy}

	if healthy {
		resolved, err := m.incidents.AutoResolve(ctx, t.ID, res.URL)
		for _, inc := range resolved {
			out.IncidentsResolved = append(out.IncidentsResolved, inc.ID)
		}
		return out, err
	}

	var errs []error
	if res.StatusCode != nil && *res.StatusCode >= 400 && m.notifier != nil {
		_, created, err := m.notifier.Notify(ctx, t.ClientID, res.URL, *res.StatusCode)
		if err != nil {
			errs = append(errs, err)
		}
		out.Notified = created
	}

	inc, created, err := m.incidents.AutoOpen(ctx, incident.Failure{
		ClientID:       t.ClientID,
		DataSourceID:   t.ID,
		URL:            res.URL,
		Title:          title,
		StatusCode:     res.StatusCode,
		ResponseTimeMs: res.ResponseTimeMs(),
	})
	if err != nil {
		errs = append(errs, err)
	} else if created {
		out.IncidentOpened = &inc.ID
	}
	return out, errors.Join(errs...)
}

func (m *Monitor) saveCert(ctx context.Context, t *models.DataSource, c probe.CertResult) error {
	errMsg := c.Error
	if errMsg == "" {
		errMsg = c.AuthorizationError
	}
	cert := &models.SSLCert{
		DataSourceID:  t.ID,
		Domain:        c.Host,
		Issuer:        c.Issuer,
		Subject:       c.Subject,
		ValidFrom:     c.ValidFrom,
		ValidTo:       c.ValidTo,
		DaysRemaining: c.DaysRemaining(c.CheckedAt),
		Authorized:    c.Authorized,
		Error:         errMsg,
		LastCheckedAt: c.CheckedAt,
	}
	if err := m.checks.UpsertSSLCert(ctx, cert); err != nil {
		return fmt.Errorf("save ssl cert: %w", err)
	}
	if c.Error != "" {
		slog.Warn("TLS probe failed", "target_id", t.ID, "host", c.Host, "error", c.Error)
	}
	return nil
}
