package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
	Ts     int64        `json:"ts"`
}

type SlackPayload struct {
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// BuildSlackPayload renders an incident alert as an incoming webhook message.
func BuildSlackPayload(a IncidentAlert) SlackPayload {
	return SlackPayload{
		Text: fmt.Sprintf(":rotating_light: Incident for %s: %s", a.ClientName, a.Title),
		Attachments: []SlackAttachment{{
			Color: "#d63031",
			Title: a.Title,
			Fields: []SlackField{
				{Title: "Cause", Value: a.Cause, Short: true},
				{Title: "URL", Value: a.CheckedURL, Short: true},
				{Title: "Started", Value: a.StartedAt.UTC().Format(time.RFC3339), Short: true},
			},
			Ts: a.StartedAt.Unix(),
		}},
	}
}

type SlackClient struct {
	httpClient *http.Client
}

func NewSlackClient(timeout time.Duration) *SlackClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackClient{httpClient: &http.Client{Timeout: timeout}}
}

func (c *SlackClient) SendSlackAlert(ctx context.Context, webhookURL string, payload SlackPayload) error {
	if webhookURL == "" {
		return errors.New("slack webhook URL is required")
	}
	if !strings.HasPrefix(webhookURL, "http://") && !strings.HasPrefix(webhookURL, "https://") {
		return fmt.Errorf("invalid slack webhook URL %q", maskURL(webhookURL))
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send slack alert to %s: %w", maskURL(webhookURL), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Service: "slack", Code: resp.StatusCode}
	}
	return nil
}

func maskURL(u string) string {
	if len(u) > 50 {
		return u[:30] + "..." + u[len(u)-10:]
	}
	return u
}
