package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSourceConfig(t *testing.T) {
	cases := []struct {
		name    string
		typ     SourceType
		raw     string
		wantErr bool
	}{
		{"domain", SourceDomain, `{"url":"https://shop.example","checks":{"uptime":true,"ssl":true}}`, false},
		{"domain with pages", SourceDomain, `{"url":"https://shop.example","monitored_pages":["https://shop.example/contact"]}`, false},
		{"domain bad scheme", SourceDomain, `{"url":"ftp://shop.example"}`, true},
		{"domain missing host", SourceDomain, `{"url":"https://"}`, true},
		{"domain bad page", SourceDomain, `{"url":"https://shop.example","monitored_pages":["/contact"]}`, true},
		{"domain negative interval", SourceDomain, `{"url":"https://shop.example","interval_minutes":-1}`, true},
		{"business", SourceGoogleBusiness, `{"location_id":"123"}`, false},
		{"business missing location", SourceGoogleBusiness, `{"account_id":"1"}`, true},
		{"gtm", SourceGoogleTagManager, `{"container_id":"GTM-ABC123"}`, false},
		{"gtm bad container", SourceGoogleTagManager, `{"container_id":"UA-1"}`, true},
		{"empty", SourceDomain, ``, true},
		{"malformed", SourceDomain, `{`, true},
		{"unknown type", SourceType("FTP"), `{}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := DecodeSourceConfig(tc.typ, []byte(tc.raw))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.typ, cfg.Kind())
		})
	}
}

func TestDomainConfig_IntervalAndHost(t *testing.T) {
	c := DomainConfig{URL: "https://shop.example:8443/home"}
	assert.Equal(t, 5*time.Minute, c.Interval())
	assert.Equal(t, "shop.example", c.Host())

	c.IntervalMinutes = 15
	assert.Equal(t, 15*time.Minute, c.Interval())
}

func TestDataSource_Due(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := &DataSource{}
	assert.True(t, d.Due(now, 5*time.Minute), "never checked")

	last := now.Add(-4 * time.Minute)
	d.LastCheckedAt = &last
	assert.False(t, d.Due(now, 5*time.Minute))

	last = now.Add(-5 * time.Minute)
	assert.True(t, d.Due(now, 5*time.Minute))
}

func TestIncident_IsOpen(t *testing.T) {
	for status, want := range map[IncidentStatus]bool{
		IncidentOngoing:      true,
		IncidentAcknowledged: true,
		IncidentResolved:     false,
	} {
		assert.Equal(t, want, (&Incident{Status: status}).IsOpen(), status)
	}
}
