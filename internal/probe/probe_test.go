package probe

import (
	"context"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetk3436/markops/internal/models"
)

func TestHTTPProber_Up(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := NewHTTPProber(time.Second).Probe(context.Background(), srv.URL)

	assert.Equal(t, models.CheckUp, res.Status)
	require.NotNil(t, res.StatusCode)
	assert.Equal(t, http.StatusOK, *res.StatusCode)
	assert.Empty(t, res.Error)
	assert.False(t, res.CheckedAt.IsZero())
}

func TestHTTPProber_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := NewHTTPProber(time.Second).Probe(context.Background(), srv.URL+"/old")

	assert.True(t, res.Up())
}

func TestHTTPProber_WithoutRedirectsReportsMovedCode(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{"moved permanently", http.StatusMovedPermanently},
		{"found", http.StatusFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/new" {
					w.WriteHeader(http.StatusOK)
					return
				}
				http.Redirect(w, r, "/new", tt.code)
			}))
			defer srv.Close()

			res := NewHTTPProber(time.Second, WithoutRedirects()).Probe(context.Background(), srv.URL+"/old")

			assert.Equal(t, models.CheckDown, res.Status)
			require.NotNil(t, res.StatusCode)
			assert.Equal(t, tt.code, *res.StatusCode)
			assert.Empty(t, res.Error)
		})
	}
}

func TestHTTPProber_ErrorStatusIsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res := NewHTTPProber(time.Second).Probe(context.Background(), srv.URL)

	assert.Equal(t, models.CheckDown, res.Status)
	require.NotNil(t, res.StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, *res.StatusCode)
}

func TestHTTPProber_UnreachableHost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	res := NewHTTPProber(time.Second).Probe(context.Background(), "http://"+addr)

	assert.Equal(t, models.CheckDown, res.Status)
	assert.Nil(t, res.StatusCode)
	assert.NotEmpty(t, res.Error)
}

func TestHTTPProber_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	timeout := 50 * time.Millisecond
	res := NewHTTPProber(timeout).Probe(context.Background(), srv.URL)

	assert.Equal(t, models.CheckDown, res.Status)
	assert.Nil(t, res.StatusCode)
	assert.GreaterOrEqual(t, res.ResponseTime, timeout)
}

func TestHTTPProber_InvalidURL(t *testing.T) {
	res := NewHTTPProber(time.Second).Probe(context.Background(), "http://bad host/")

	assert.Equal(t, models.CheckDown, res.Status)
	assert.Nil(t, res.StatusCode)
	assert.Contains(t, res.Error, "invalid request")
}

func TestTLSProber_ReadsCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())

	res := NewTLSProber(time.Second, WithPort(port), WithRootCAs(roots)).Probe(context.Background(), host)

	require.Empty(t, res.Error)
	require.NotNil(t, res.ValidTo)
	assert.True(t, res.ValidTo.After(time.Now()))
	assert.True(t, res.Authorized, res.AuthorizationError)
	assert.NotEmpty(t, res.Issuer)
	assert.Positive(t, res.DaysRemaining(time.Now()))
}

func TestCertResult_DaysRemaining(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		validTo time.Duration
		want    int
	}{
		{"valid for half a day", 12 * time.Hour, 0},
		{"expired half a day ago", -12 * time.Hour, -1},
		{"valid for ten days and a bit", 10*24*time.Hour + time.Hour, 10},
		{"expired three days ago", -3 * 24 * time.Hour, -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to := now.Add(tt.validTo)
			assert.Equal(t, tt.want, CertResult{ValidTo: &to}.DaysRemaining(now))
		})
	}
	assert.Zero(t, CertResult{}.DaysRemaining(now))
}

func TestTLSProber_UntrustedCertificateStillReported(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	res := NewTLSProber(time.Second, WithPort(port), WithRootCAs(x509.NewCertPool())).Probe(context.Background(), host)

	assert.Empty(t, res.Error)
	assert.NotNil(t, res.ValidTo)
	assert.False(t, res.Authorized)
	assert.NotEmpty(t, res.AuthorizationError)
}

func TestTLSProber_HandshakeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	res := NewTLSProber(time.Second, WithPort(port)).Probe(context.Background(), host)

	assert.NotEmpty(t, res.Error)
	assert.Nil(t, res.ValidTo)
	assert.False(t, res.Authorized)
}
