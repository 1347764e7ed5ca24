package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ahmetk3436/markops/internal/config"
	"github.com/ahmetk3436/markops/internal/handlers"
	"github.com/ahmetk3436/markops/internal/middleware"
)

type Handlers struct {
	Auth          *handlers.AuthHandler
	System        *handlers.SystemHandler
	Clients       *handlers.ClientHandler
	Targets       *handlers.TargetHandler
	Incidents     *handlers.IncidentHandler
	Notifications *handlers.NotificationHandler
	KPI           *handlers.KPIHandler
	Stream        *handlers.StreamHandler
}

func Setup(app *fiber.App, cfg *config.Config, h Handlers) {
	// ─── Public ──────────────────────────────────────────────────────────
	app.Get("/api/health", h.System.Health)

	// ─── Auth ────────────────────────────────────────────────────────────
	app.Post("/api/auth/login", h.Auth.Login)
	app.Post("/api/auth/refresh", h.Auth.Refresh)

	// ─── Protected routes ────────────────────────────────────────────────
	api := app.Group("/api", middleware.JWTProtected(cfg.JWTSecret))

	// Auth (protected)
	api.Get("/auth/me", h.Auth.Me)
	api.Put("/auth/password", h.Auth.ChangePassword)

	// Dashboard
	api.Get("/dashboard/overview", h.System.DashboardOverview)

	// Clients
	api.Get("/clients", h.Clients.ListClients)
	api.Post("/clients", h.Clients.CreateClient)
	api.Get("/clients/:id", h.Clients.GetClient)
	api.Post("/clients/:id/account-issues", h.Clients.SaveAccountIssues)

	// KPI
	api.Post("/kpi/calculate", h.KPI.Calculate)
	api.Get("/clients/:id/kpi", h.KPI.ClientKPI)
	api.Get("/clients/:id/reports", h.KPI.ListReports)
	api.Post("/clients/:id/reports", h.KPI.GenerateReport)
	api.Post("/clients/:id/metrics", h.KPI.UpsertMetrics)

	// Data sources
	api.Get("/data-sources", h.Targets.ListTargets)
	api.Post("/data-sources", h.Targets.CreateTarget)
	api.Get("/data-sources/:id", h.Targets.GetTarget)
	api.Put("/data-sources/:id", h.Targets.UpdateTarget)
	api.Delete("/data-sources/:id", h.Targets.DeleteTarget)
	api.Post("/data-sources/:id/check", h.Targets.RunCheck)
	api.Get("/data-sources/:id/checks", h.Targets.ListChecks)
	api.Get("/data-sources/:id/ssl", h.Targets.GetSSL)

	// Incidents
	api.Get("/incidents", h.Incidents.ListIncidents)
	api.Use("/incidents/stream", h.Stream.UpgradeCheck())
	api.Get("/incidents/stream", h.Stream.HandleIncidentStream())
	api.Get("/incidents/:id", h.Incidents.GetIncident)
	api.Post("/incidents/:id/acknowledge", h.Incidents.Acknowledge)
	api.Post("/incidents/:id/resolve", h.Incidents.Resolve)
	api.Post("/incidents/:id/reopen", h.Incidents.Reopen)

	// Notifications
	api.Get("/notifications", h.Notifications.ListNotifications)
	api.Post("/notifications/:id/read", h.Notifications.MarkRead)
}
