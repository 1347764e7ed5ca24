// Package alert delivers incident alerts by email and Slack. Delivery runs on
// a background worker; callers only enqueue.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IncidentAlert is the payload for a newly opened incident.
type IncidentAlert struct {
	IncidentID      uuid.UUID
	ClientID        uuid.UUID
	ClientName      string
	Title           string
	Cause           string
	CheckedURL      string
	StartedAt       time.Time
	Recipients      []string
	SlackWebhookURL string
}

type EmailSender interface {
	SendIncidentAlertEmail(ctx context.Context, title, cause, clientName string, startedAt time.Time, recipients []string) error
}

type SlackSender interface {
	SendSlackAlert(ctx context.Context, webhookURL string, payload SlackPayload) error
}

const deliveryTimeout = time.Minute

// Dispatcher owns a bounded queue and one delivery goroutine. Submit never
// blocks; when the queue is full the alert is dropped and logged.
type Dispatcher struct {
	email  EmailSender
	slack  SlackSender
	policy Policy

	mu     sync.RWMutex
	closed bool
	queue  chan IncidentAlert
	wg     sync.WaitGroup
}

func NewDispatcher(email EmailSender, slack SlackSender, policy Policy, size int) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{
		email:  email,
		slack:  slack,
		policy: policy,
		queue:  make(chan IncidentAlert, size),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

// Submit enqueues a and reports whether it was accepted.
func (d *Dispatcher) Submit(a IncidentAlert) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		slog.Warn("Alert dispatcher closed, dropping alert", "incident_id", a.IncidentID)
		return false
	}
	select {
	case d.queue <- a:
		return true
	default:
		slog.Warn("Alert queue full, dropping alert", "incident_id", a.IncidentID, "client_id", a.ClientID)
		return false
	}
}

// Shutdown stops accepting alerts and waits for queued ones to be delivered
// or for ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for a := range d.queue {
		d.deliver(a)
	}
}

func (d *Dispatcher) deliver(a IncidentAlert) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Alert delivery panicked", "incident_id", a.IncidentID, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if d.email != nil && len(a.Recipients) > 0 {
		err := d.policy.Do(ctx, "incident_email", func(ctx context.Context) error {
			return d.email.SendIncidentAlertEmail(ctx, a.Title, a.Cause, a.ClientName, a.StartedAt, a.Recipients)
		})
		if err != nil {
			slog.Error("Incident email failed", "incident_id", a.IncidentID, "client_id", a.ClientID, "error", err)
		}
	}

	if d.slack != nil && a.SlackWebhookURL != "" {
		payload := BuildSlackPayload(a)
		err := d.policy.Do(ctx, "incident_slack", func(ctx context.Context) error {
			return d.slack.SendSlackAlert(ctx, a.SlackWebhookURL, payload)
		})
		if err != nil {
			slog.Error("Incident Slack alert failed", "incident_id", a.IncidentID, "client_id", a.ClientID, "error", err)
		}
	}
}
