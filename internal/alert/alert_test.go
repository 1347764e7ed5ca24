package alert_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahmetk3436/markops/internal/alert"
	"github.com/ahmetk3436/markops/internal/testdata/mockalert"
)

func fastPolicy() alert.Policy {
	return alert.Policy{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffFactor: 2}
}

func sampleAlert() alert.IncidentAlert {
	return alert.IncidentAlert{
		IncidentID:      uuid.New(),
		ClientID:        uuid.New(),
		ClientName:      "Bakkerij Jansen",
		Title:           "example.com is down",
		Cause:           "Status T/O",
		CheckedURL:      "https://example.com",
		StartedAt:       time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
		Recipients:      []string{"ops@example.com"},
		SlackWebhookURL: "https://hooks.slack.com/services/T/B/X",
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"503", &alert.StatusError{Service: "slack", Code: 503}, true},
		{"429", &alert.StatusError{Service: "slack", Code: 429}, true},
		{"404", &alert.StatusError{Service: "slack", Code: 404}, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"invalid", errors.New("invalid slack webhook URL"), false},
		{"unknown", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, alert.IsRetryable(tt.err))
		})
	}
}

func TestPolicy_RetriesTransientErrors(t *testing.T) {
	var calls int
	err := fastPolicy().Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return &alert.StatusError{Service: "x", Code: 502}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_StopsOnPermanentError(t *testing.T) {
	var calls int
	err := fastPolicy().Do(context.Background(), "op", func(context.Context) error {
		calls++
		return &alert.StatusError{Service: "x", Code: 400}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int
	err := fastPolicy().Do(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("timeout")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRegistry_FallsBackOnFailure(t *testing.T) {
	primary := &mockalert.Provider{ProviderName: "resend", Configured: true}
	fallback := &mockalert.Provider{ProviderName: "ses", Configured: true}
	primary.On("Send", mock.Anything, mock.Anything).Return(errors.New("resend down")).Once()
	fallback.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	reg := alert.NewRegistry("resend", fallback, primary)
	err := reg.Send(context.Background(), &alert.EmailRequest{To: []string{"a@b.c"}})

	require.NoError(t, err)
	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}

func TestRegistry_SkipsUnconfigured(t *testing.T) {
	primary := &mockalert.Provider{ProviderName: "resend", Configured: false}
	fallback := &mockalert.Provider{ProviderName: "ses", Configured: true}
	fallback.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	err := alert.NewRegistry("resend", primary, fallback).Send(context.Background(), &alert.EmailRequest{To: []string{"a@b.c"}})

	require.NoError(t, err)
	primary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRegistry_NoProvider(t *testing.T) {
	err := alert.NewRegistry("resend", &mockalert.Provider{ProviderName: "resend"}).Send(context.Background(), &alert.EmailRequest{})
	assert.ErrorIs(t, err, alert.ErrNoProvider)
}

func TestMailer_RendersIncident(t *testing.T) {
	p := &mockalert.Provider{ProviderName: "resend", Configured: true}
	p.On("Send", mock.Anything, mock.MatchedBy(func(req *alert.EmailRequest) bool {
		return req.From == "alerts@markops.local" &&
			req.Subject == "[Bakkerij <Jansen>] Incident: shop is down" &&
			assert.ObjectsAreEqual([]string{"ops@example.com"}, req.To) &&
			strings.Contains(req.HTML, "Bakkerij &lt;Jansen&gt;") &&
			strings.Contains(req.Text, "Cause: Status 503") &&
			strings.Contains(req.Text, "https://app.example.com/incidents")
	})).Return(nil).Once()

	m := alert.NewMailer("alerts@markops.local", "https://app.example.com/", alert.NewRegistry("resend", p))
	err := m.SendIncidentAlertEmail(context.Background(), "shop is down", "Status 503", "Bakkerij <Jansen>", time.Now(), []string{"ops@example.com"})

	require.NoError(t, err)
	p.AssertExpectations(t)
}

func TestSlackClient_PostsPayload(t *testing.T) {
	var got alert.SlackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := sampleAlert()
	err := alert.NewSlackClient(time.Second).SendSlackAlert(context.Background(), srv.URL, alert.BuildSlackPayload(a))

	require.NoError(t, err)
	assert.Contains(t, got.Text, "Bakkerij Jansen")
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "Status T/O", got.Attachments[0].Fields[0].Value)
}

func TestSlackClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := alert.NewSlackClient(time.Second).SendSlackAlert(context.Background(), srv.URL, alert.SlackPayload{Text: "x"})

	var se *alert.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
}

func TestSlackClient_RejectsChannelName(t *testing.T) {
	err := alert.NewSlackClient(time.Second).SendSlackAlert(context.Background(), "#alerts", alert.SlackPayload{})
	require.Error(t, err)
	assert.False(t, alert.IsRetryable(err))
}

func TestDispatcher_DeliversEmailAndSlack(t *testing.T) {
	email := &mockalert.EmailSender{}
	slack := &mockalert.SlackSender{}
	a := sampleAlert()
	email.On("SendIncidentAlertEmail", mock.Anything, a.Title, a.Cause, a.ClientName, a.StartedAt, a.Recipients).Return(nil).Once()
	slack.On("SendSlackAlert", mock.Anything, a.SlackWebhookURL, alert.BuildSlackPayload(a)).Return(nil).Once()

	d := alert.NewDispatcher(email, slack, fastPolicy(), 4)
	assert.True(t, d.Submit(a))
	require.NoError(t, d.Shutdown(context.Background()))

	email.AssertExpectations(t)
	slack.AssertExpectations(t)
}

func TestDispatcher_FailuresAreSwallowed(t *testing.T) {
	email := &mockalert.EmailSender{}
	slack := &mockalert.SlackSender{}
	email.On("SendIncidentAlertEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("invalid recipient"))
	slack.On("SendSlackAlert", mock.Anything, mock.Anything, mock.Anything).Return(&alert.StatusError{Service: "slack", Code: 500})

	d := alert.NewDispatcher(email, slack, fastPolicy(), 4)
	assert.True(t, d.Submit(sampleAlert()))
	require.NoError(t, d.Shutdown(context.Background()))

	email.AssertNumberOfCalls(t, "SendIncidentAlertEmail", 1)
	slack.AssertNumberOfCalls(t, "SendSlackAlert", 3)
}

type blockingEmail struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingEmail) SendIncidentAlertEmail(ctx context.Context, _, _, _ string, _ time.Time, _ []string) error {
	b.calls.Add(1)
	<-b.release
	return nil
}

func TestDispatcher_SubmitNeverBlocks(t *testing.T) {
	email := &blockingEmail{release: make(chan struct{})}
	d := alert.NewDispatcher(email, nil, fastPolicy(), 1)

	a := sampleAlert()
	a.SlackWebhookURL = ""
	require.True(t, d.Submit(a))
	require.Eventually(t, func() bool { return email.calls.Load() == 1 }, time.Second, time.Millisecond)

	assert.True(t, d.Submit(a), "fills the single queue slot")

	done := make(chan bool)
	go func() { done <- d.Submit(a) }()
	select {
	case accepted := <-done:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(email.release)
	require.NoError(t, d.Shutdown(context.Background()))
	assert.False(t, d.Submit(a))
}
