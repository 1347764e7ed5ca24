package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"
)

// Policy is an exponential backoff retry policy for transient delivery errors.
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	// Jitter is the relative spread applied to each backoff (0.25 = ±25%).
	Jitter float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.25,
	}
}

// StatusError is returned by HTTP based senders for non-2xx responses.
type StatusError struct {
	Service string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.Code)
}

// IsRetryable reports whether err looks transient: timeouts, refused or reset
// connections, throttling and 5xx responses.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"invalid", "malformed", "not verified", "no recipients"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	for _, s := range []string{"timeout", "connection refused", "connection reset", "temporary", "rate limit", "throttl", "too many requests", "try again"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Do runs fn until it succeeds, fails with a permanent error, runs out of
// retries or ctx is done.
func (p Policy) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				slog.Info("Alert delivery succeeded after retry", "operation", operation, "attempt", attempt+1)
			}
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == p.MaxRetries {
			return err
		}

		backoff := p.backoff(attempt)
		slog.Warn("Alert delivery failed, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func (p Policy) backoff(attempt int) time.Duration {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	b := float64(p.InitialBackoff) * math.Pow(factor, float64(attempt))
	if p.MaxBackoff > 0 && b > float64(p.MaxBackoff) {
		b = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		b += b * p.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(b)
}
