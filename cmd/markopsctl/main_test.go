package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	got := map[string]any{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	return got, nil
}

func TestKPICommand(t *testing.T) {
	rows := []map[string]any{
		{"campaign_id": "brand", "date": "2026-05-05", "spend": 150, "conversions": 5, "clicks": 60, "status": "ENABLED", "serving_status": "SERVING"},
		{"campaign_id": "brand", "date": "2026-04-30", "spend": 100, "conversions": 5, "clicks": 50, "status": "ENABLED", "serving_status": "SERVING"},
	}
	raw, err := json.Marshal(rows)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	got, err := run(t, "kpi", "-f", path, "--target", "25", "--end", "2026-05-11")

	require.NoError(t, err)
	assert.Equal(t, 30.0, got["blended_kpi"])
	assert.Equal(t, "warning", got["target_status"])
	assert.Equal(t, "DECLINING", got["trend_direction"])
}

func TestKPICommand_BadTargetType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))

	_, err := run(t, "kpi", "-f", path, "--target-type", "CPM")
	assert.Error(t, err)
}

func TestCheckCommand_DownSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	got, err := run(t, "check", srv.URL)

	require.NoError(t, err)
	assert.Len(t, got["incidents"], 1)
	assert.Len(t, got["notifications"], 1)
	report := got["report"].(map[string]any)
	assert.Equal(t, "DOWN", report["status"])
}

func TestProbeCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	got, err := run(t, "probe", srv.URL)

	require.NoError(t, err)
	httpResult := got["http"].(map[string]any)
	assert.Equal(t, "UP", httpResult["status"])
}
