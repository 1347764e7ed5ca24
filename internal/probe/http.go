// Package probe performs single network checks against a target. Probes never
// return errors: every failure is folded into the result.
package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ahmetk3436/markops/internal/models"
)

const DefaultHTTPTimeout = 10 * time.Second

// Result is the outcome of one HTTP GET. StatusCode is nil when no response
// was received (DNS, connect, TLS or timeout failure).
type Result struct {
	URL          string             `json:"url"`
	Status       models.CheckStatus `json:"status"`
	StatusCode   *int               `json:"status_code"`
	ResponseTime time.Duration      `json:"response_time"`
	Error        string             `json:"error,omitempty"`
	CheckedAt    time.Time          `json:"checked_at"`
}

func (r Result) ResponseTimeMs() int {
	return int(r.ResponseTime.Milliseconds())
}

// Up reports whether the probe reached an ok (2xx) response.
func (r Result) Up() bool {
	return r.Status == models.CheckUp
}

type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
	now     func() time.Time
}

type HTTPOption func(*HTTPProber)

// WithoutRedirects reports a 3xx response as-is instead of following it, so
// a moved page surfaces as DOWN with its 301/302 code.
func WithoutRedirects() HTTPOption {
	return func(p *HTTPProber) {
		p.client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
}

// NewHTTPProber follows redirects unless WithoutRedirects is given.
func NewHTTPProber(timeout time.Duration, opts ...HTTPOption) *HTTPProber {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	p := &HTTPProber{
		client:  &http.Client{},
		timeout: timeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe issues a GET bounded by the prober's timeout. Latency is measured
// from request start to response headers or error.
func (p *HTTPProber) Probe(ctx context.Context, url string) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := p.now()
	result := Result{URL: url, Status: models.CheckDown, CheckedAt: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = "invalid request: " + err.Error()
		return result
	}
	req.Header.Set("User-Agent", "markops-uptime/1.0")

	resp, err := p.client.Do(req)
	result.ResponseTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	code := resp.StatusCode
	result.StatusCode = &code
	if code >= 200 && code < 300 {
		result.Status = models.CheckUp
	}
	return result
}
