package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "CHECK_TICK", "PROBE_TIMEOUT", "TLS_TIMEOUT", "NOTIFICATION_WINDOW", "CHECK_CONCURRENCY", "KPI_REPORT_INTERVAL", "PROBE_FOLLOW_REDIRECTS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "8097", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.CheckTick)
	assert.Equal(t, 10*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 5*time.Second, cfg.TLSTimeout)
	assert.Equal(t, time.Hour, cfg.NotificationWindow)
	assert.Equal(t, 8, cfg.CheckConcurrency)
	assert.Equal(t, 24*time.Hour, cfg.KPIReportInterval)
	assert.True(t, cfg.FollowRedirects)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CHECK_TICK", "1m")
	t.Setenv("PROBE_TIMEOUT", "3")
	t.Setenv("CHECK_CONCURRENCY", "2")
	t.Setenv("KPI_REPORT_INTERVAL", "0s")
	t.Setenv("ALERT_QUEUE_SIZE", "nope")
	t.Setenv("PROBE_FOLLOW_REDIRECTS", "false")

	cfg := Load()

	assert.Equal(t, time.Minute, cfg.CheckTick)
	assert.Equal(t, 3*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 2, cfg.CheckConcurrency)
	assert.Zero(t, cfg.KPIReportInterval)
	assert.Equal(t, 256, cfg.AlertQueueSize)
	assert.False(t, cfg.FollowRedirects)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "n", DBSSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.DSN())
}
