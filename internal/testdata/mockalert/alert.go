package mockalert

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ahmetk3436/markops/internal/alert"
)

type EmailSender struct {
	mock.Mock
}

var _ alert.EmailSender = &EmailSender{}

func (m *EmailSender) SendIncidentAlertEmail(ctx context.Context, title, cause, clientName string, startedAt time.Time, recipients []string) error {
	return m.Called(ctx, title, cause, clientName, startedAt, recipients).Error(0)
}

type SlackSender struct {
	mock.Mock
}

var _ alert.SlackSender = &SlackSender{}

func (m *SlackSender) SendSlackAlert(ctx context.Context, webhookURL string, payload alert.SlackPayload) error {
	return m.Called(ctx, webhookURL, payload).Error(0)
}

type Provider struct {
	mock.Mock
	ProviderName string
	Configured   bool
}

var _ alert.Provider = &Provider{}

func (m *Provider) Name() string       { return m.ProviderName }
func (m *Provider) IsConfigured() bool { return m.Configured }

func (m *Provider) Send(ctx context.Context, req *alert.EmailRequest) error {
	return m.Called(ctx, req).Error(0)
}

// Submitter records alerts handed to the dispatcher.
type Submitter struct {
	mock.Mock
}

func (m *Submitter) Submit(a alert.IncidentAlert) bool {
	return m.Called(a).Bool(0)
}
