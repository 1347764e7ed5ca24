package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"math"
	"net"
	"time"
)

const DefaultTLSTimeout = 5 * time.Second

// CertResult describes the peer certificate of a host. Error is set when the
// handshake itself failed; AuthorizationError when the chain did not verify.
type CertResult struct {
	Host               string     `json:"host"`
	Issuer             string     `json:"issuer,omitempty"`
	Subject            string     `json:"subject,omitempty"`
	ValidFrom          *time.Time `json:"valid_from,omitempty"`
	ValidTo            *time.Time `json:"valid_to,omitempty"`
	Authorized         bool       `json:"authorized"`
	AuthorizationError string     `json:"authorization_error,omitempty"`
	Error              string     `json:"error,omitempty"`
	CheckedAt          time.Time  `json:"checked_at"`
}

// DaysRemaining is the number of whole days until ValidTo, rounded down so
// an expired certificate is negative.
func (c CertResult) DaysRemaining(now time.Time) int {
	if c.ValidTo == nil {
		return 0
	}
	return int(math.Floor(c.ValidTo.Sub(now).Hours() / 24))
}

type TLSOption func(*TLSProber)

// WithPort overrides the default port 443.
func WithPort(port string) TLSOption {
	return func(p *TLSProber) { p.port = port }
}

// WithRootCAs verifies chains against pool instead of the system roots.
func WithRootCAs(pool *x509.CertPool) TLSOption {
	return func(p *TLSProber) { p.roots = pool }
}

type TLSProber struct {
	timeout time.Duration
	port    string
	roots   *x509.CertPool
	now     func() time.Time
}

func NewTLSProber(timeout time.Duration, opts ...TLSOption) *TLSProber {
	if timeout <= 0 {
		timeout = DefaultTLSTimeout
	}
	p := &TLSProber{timeout: timeout, port: "443", now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe opens a TLS connection to host with SNI set to host. The handshake
// skips verification so expired or untrusted certificates can still be
// inspected; the chain is verified afterwards.
func (p *TLSProber) Probe(ctx context.Context, host string) CertResult {
	now := p.now()
	result := CertResult{Host: host, CheckedAt: now}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, p.port))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		result.Error = "not a TLS connection"
		return result
	}
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		result.Error = "no peer certificate"
		return result
	}

	leaf := certs[0]
	from, to := leaf.NotBefore, leaf.NotAfter
	result.Issuer = nameOf(leaf.Issuer.CommonName, leaf.Issuer.Organization)
	result.Subject = nameOf(leaf.Subject.CommonName, leaf.Subject.Organization)
	result.ValidFrom = &from
	result.ValidTo = &to

	if err := p.verify(host, certs, now); err != nil {
		result.AuthorizationError = err.Error()
	} else {
		result.Authorized = true
	}
	return result
}

func (p *TLSProber) verify(host string, certs []*x509.Certificate, now time.Time) error {
	intermediates := x509.NewCertPool()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}
	_, err := certs[0].Verify(x509.VerifyOptions{
		DNSName:       host,
		Roots:         p.roots,
		Intermediates: intermediates,
		CurrentTime:   now,
	})
	if err != nil {
		var invalid x509.CertificateInvalidError
		if errors.As(err, &invalid) && invalid.Reason == x509.Expired {
			return errors.New("certificate has expired")
		}
	}
	return err
}

func nameOf(cn string, org []string) string {
	if cn != "" {
		return cn
	}
	if len(org) > 0 {
		return org[0]
	}
	return ""
}
