package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
)

const DefaultWindow = time.Hour

// Deduplicator records a notification for (client, url, status code) unless
// an unread one with the same key was created within the window.
type Deduplicator struct {
	store  storage.NotificationStore
	window time.Duration
	now    func() time.Time
}

type Option func(*Deduplicator)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Deduplicator) { d.now = now }
}

func NewDeduplicator(store storage.NotificationStore, window time.Duration, opts ...Option) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	d := &Deduplicator{store: store, window: window, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify returns the stored notification and true when one was created, or
// nil and false when it was suppressed.
func (d *Deduplicator) Notify(ctx context.Context, clientID uuid.UUID, url string, statusCode int) (*models.Notification, bool, error) {
	now := d.now()
	label := StatusLabel(statusCode)
	n := &models.Notification{
		ClientID:   clientID,
		URL:        url,
		StatusCode: statusCode,
		Severity:   SeverityFor(statusCode),
		Title:      fmt.Sprintf("%d %s", statusCode, label),
		Message:    fmt.Sprintf("%s returned status %d (%s)", url, statusCode, label),
		CreatedAt:  now,
	}
	created, err := d.store.CreateNotificationIfAbsent(ctx, n, now.Add(-d.window))
	if err != nil {
		return nil, false, fmt.Errorf("create notification: %w", err)
	}
	if !created {
		slog.Debug("Notification suppressed", "client_id", clientID, "url", url, "status_code", statusCode)
		return nil, false, nil
	}
	return n, true, nil
}
