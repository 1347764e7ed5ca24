package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
	"github.com/ahmetk3436/markops/internal/storage/memory"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{301, "Moved Permanently"},
		{404, "Not Found"},
		{429, "Too Many Requests"},
		{503, "Service Unavailable"},
		{504, "Gateway Timeout"},
		{418, "HTTP 418"},
		{520, "HTTP 520"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusLabel(tt.code), "code %d", tt.code)
	}
}

func TestCause(t *testing.T) {
	code := 502
	assert.Equal(t, "Status 502", Cause(&code))
	assert.Equal(t, "Status T/O", Cause(nil))
	assert.Equal(t, "T/O", CauseCode(nil))
	assert.Equal(t, "Connection Timeout", CauseLabel(nil))
	assert.Equal(t, "Bad Gateway", CauseLabel(&code))
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, SeverityFor(500))
	assert.Equal(t, models.SeverityCritical, SeverityFor(599))
	assert.Equal(t, models.SeverityWarning, SeverityFor(400))
	assert.Equal(t, models.SeverityWarning, SeverityFor(499))
	assert.Equal(t, models.SeverityInfo, SeverityFor(302))
	assert.Equal(t, models.SeverityInfo, SeverityFor(200))
}

func TestDeduplicator_Window(t *testing.T) {
	tests := []struct {
		name string
		gap  time.Duration
		want int
	}{
		{"within window", 59 * time.Minute, 1},
		{"after window", 61 * time.Minute, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			clock := &fakeClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
			d := NewDeduplicator(store, time.Hour, WithClock(clock.Now))
			client := uuid.New()

			_, created, err := d.Notify(ctx, client, "https://example.com/shop", 404)
			require.NoError(t, err)
			assert.True(t, created)

			clock.Advance(tt.gap)
			_, _, err = d.Notify(ctx, client, "https://example.com/shop", 404)
			require.NoError(t, err)

			got, err := store.ListNotifications(ctx, storage.NotificationFilter{ClientID: &client})
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestDeduplicator_DistinctKeys(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := NewDeduplicator(store, time.Hour)
	client := uuid.New()

	n, created, err := d.Notify(ctx, client, "https://example.com", 503)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, models.SeverityCritical, n.Severity)
	assert.Contains(t, n.Message, "Service Unavailable")

	_, created, err = d.Notify(ctx, client, "https://example.com", 500)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = d.Notify(ctx, uuid.New(), "https://example.com", 503)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = d.Notify(ctx, client, "https://example.com", 503)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDeduplicator_ReadNotificationReleasesKey(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := NewDeduplicator(store, time.Hour)
	client := uuid.New()

	n, created, err := d.Notify(ctx, client, "https://example.com", 404)
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, store.MarkNotificationRead(ctx, n.ID, time.Now()))

	_, created, err = d.Notify(ctx, client, "https://example.com", 404)
	require.NoError(t, err)
	assert.True(t, created)
}
