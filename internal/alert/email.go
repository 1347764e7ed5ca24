package alert

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/resend/resend-go/v2"
)

var ErrNoProvider = errors.New("no configured email provider available")

type EmailRequest struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

type Provider interface {
	Name() string
	Send(ctx context.Context, req *EmailRequest) error
	IsConfigured() bool
}

// Registry sends through the primary provider and falls back to the others
// in registration order when it fails or is unconfigured.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	primary   string
}

func NewRegistry(primary string, providers ...Provider) *Registry {
	return &Registry{primary: primary, providers: providers}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
	slog.Info("Registered email provider", "name", p.Name(), "configured", p.IsConfigured())
}

func (r *Registry) ordered() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if p.Name() == r.primary {
			out = append([]Provider{p}, out...)
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *Registry) Send(ctx context.Context, req *EmailRequest) error {
	var firstErr error
	tried := 0
	for _, p := range r.ordered() {
		if !p.IsConfigured() {
			continue
		}
		tried++
		err := p.Send(ctx, req)
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
		slog.Warn("Email provider failed", "provider", p.Name(), "error", err)
	}
	if tried == 0 {
		return ErrNoProvider
	}
	return firstErr
}

type ResendProvider struct {
	client *resend.Client
}

func NewResendProvider(apiKey string) *ResendProvider {
	if apiKey == "" {
		return &ResendProvider{}
	}
	return &ResendProvider{client: resend.NewClient(apiKey)}
}

func (p *ResendProvider) Name() string       { return "resend" }
func (p *ResendProvider) IsConfigured() bool { return p.client != nil }

func (p *ResendProvider) Send(ctx context.Context, req *EmailRequest) error {
	if p.client == nil {
		return errors.New("resend client not initialized")
	}
	if len(req.To) == 0 {
		return errors.New("no recipients specified")
	}
	params := &resend.SendEmailRequest{
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
		Text:    req.Text,
	}
	sent, err := p.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}
	slog.Info("Email sent via Resend", "email_id", sent.Id, "to", req.To)
	return nil
}

type SESProvider struct {
	client *sesv2.Client
}

func NewSESProvider(ctx context.Context, region string) *SESProvider {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		slog.Warn("Failed to load AWS config, SES provider unavailable", "error", err)
		return &SESProvider{}
	}
	return &SESProvider{client: sesv2.NewFromConfig(cfg)}
}

func (p *SESProvider) Name() string       { return "ses" }
func (p *SESProvider) IsConfigured() bool { return p.client != nil }

func (p *SESProvider) Send(ctx context.Context, req *EmailRequest) error {
	if p.client == nil {
		return errors.New("ses client not initialized")
	}
	if len(req.To) == 0 {
		return errors.New("no recipients specified")
	}
	body := &sestypes.Body{}
	if req.HTML != "" {
		body.Html = &sestypes.Content{Data: &req.HTML}
	}
	if req.Text != "" {
		body.Text = &sestypes.Content{Data: &req.Text}
	}
	out, err := p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &req.From,
		Destination:      &sestypes.Destination{ToAddresses: req.To},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: &req.Subject},
				Body:    body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}
	if out.MessageId != nil {
		slog.Info("Email sent via SES", "message_id", *out.MessageId, "to", req.To)
	}
	return nil
}

type sender interface {
	Send(ctx context.Context, req *EmailRequest) error
}

// Mailer renders incident alert emails and hands them to a provider.
type Mailer struct {
	from         string
	dashboardURL string
	sender       sender
}

func NewMailer(from, dashboardURL string, s sender) *Mailer {
	return &Mailer{from: from, dashboardURL: strings.TrimRight(dashboardURL, "/"), sender: s}
}

func (m *Mailer) SendIncidentAlertEmail(ctx context.Context, title, cause, clientName string, startedAt time.Time, recipients []string) error {
	if len(recipients) == 0 {
		return errors.New("no recipients specified")
	}
	started := startedAt.UTC().Format("2006-01-02 15:04 MST")
	subject := fmt.Sprintf("[%s] Incident: %s", clientName, title)
	text := fmt.Sprintf("Incident for %s\n\n%s\nCause: %s\nStarted: %s\n\n%s/incidents\n",
		clientName, title, cause, started, m.dashboardURL)
	htmlBody := fmt.Sprintf(`<h2>Incident for %s</h2><p><strong>%s</strong></p><p>Cause: %s<br>Started: %s</p><p><a href="%s/incidents">Open dashboard</a></p>`,
		html.EscapeString(clientName), html.EscapeString(title), html.EscapeString(cause), started, html.EscapeString(m.dashboardURL))

	return m.sender.Send(ctx, &EmailRequest{
		From:    m.from,
		To:      recipients,
		Subject: subject,
		Text:    text,
		HTML:    htmlBody,
	})
}
