package routes

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetk3436/markops/internal/config"
	"github.com/ahmetk3436/markops/internal/handlers"
	"github.com/ahmetk3436/markops/internal/incident"
	"github.com/ahmetk3436/markops/internal/realtime"
	"github.com/ahmetk3436/markops/internal/reporting"
	"github.com/ahmetk3436/markops/internal/storage/memory"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		AdminUsername:    "admin",
		AdminPassword:    "correct horse",
		AdminDisplayName: "Ops Team",
		AdminRole:        "admin",
		JWTSecret:        "routes-test-secret",
	}
	store := memory.New()
	app := fiber.New()
	Setup(app, cfg, Handlers{
		Auth:          handlers.NewAuthHandler(cfg),
		System:        handlers.NewSystemHandler(nil, store),
		Clients:       handlers.NewClientHandler(store),
		Targets:       handlers.NewTargetHandler(store, store, store, nil),
		Incidents:     handlers.NewIncidentHandler(store, incident.NewManager(store, store, nil)),
		Notifications: handlers.NewNotificationHandler(store),
		KPI:           handlers.NewKPIHandler(reporting.NewService(store, store, 1), store),
		Stream:        handlers.NewStreamHandler(realtime.NewHub(4)),
	})
	return app
}

func TestSetup_AuthFlow(t *testing.T) {
	app := newApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/clients", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"username":"admin","password":"correct horse"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	require.NotEmpty(t, login.AccessToken)

	req = httptest.NewRequest("GET", "/api/clients", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// A plain GET on the stream endpoint is not a websocket upgrade.
	req = httptest.NewRequest("GET", "/api/incidents/stream", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestSetup_BadLogin(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"username":"admin","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := newApp(t).Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
