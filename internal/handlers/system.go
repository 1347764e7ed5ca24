package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
)

var startTime = time.Now()
var Version = "1.0.0"

// PingFunc checks the backing database.
type PingFunc func(ctx context.Context) error

type SystemHandler struct {
	ping  PingFunc
	store storage.Store
}

func NewSystemHandler(ping PingFunc, store storage.Store) *SystemHandler {
	return &SystemHandler{ping: ping, store: store}
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	dbStatus := "ok"
	statusCode := fiber.StatusOK

	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			dbStatus = "unreachable: " + err.Error()
			statusCode = fiber.StatusServiceUnavailable
		}
	}

	overall := "ok"
	if statusCode != fiber.StatusOK {
		overall = "degraded"
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":  overall,
		"service": "markops",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"uptime":  time.Since(startTime).String(),
		"db":      dbStatus,
	})
}

func (h *SystemHandler) DashboardOverview(c *fiber.Ctx) error {
	ctx := c.UserContext()

	targets, err := h.store.ListTargets(ctx, storage.TargetFilter{Type: models.SourceDomain, ActiveOnly: true})
	if err != nil {
		return storeError(c, err, "Failed to load overview")
	}
	var up, down int
	for _, t := range targets {
		switch models.CheckStatus(t.LastStatus) {
		case models.CheckUp:
			up++
		case models.CheckDown:
			down++
		}
	}

	ongoing, err := h.store.ListIncidents(ctx, storage.IncidentFilter{Status: models.IncidentOngoing})
	if err != nil {
		return storeError(c, err, "Failed to load overview")
	}
	acked, err := h.store.ListIncidents(ctx, storage.IncidentFilter{Status: models.IncidentAcknowledged})
	if err != nil {
		return storeError(c, err, "Failed to load overview")
	}
	unread, err := h.store.ListNotifications(ctx, storage.NotificationFilter{UnreadOnly: true})
	if err != nil {
		return storeError(c, err, "Failed to load overview")
	}

	return c.JSON(fiber.Map{
		"domains": fiber.Map{
			"total": len(targets),
			"up":    up,
			"down":  down,
		},
		"incidents": fiber.Map{
			"ongoing":      len(ongoing),
			"acknowledged": len(acked),
		},
		"unread_notifications": len(unread),
		"uptime_seconds":       int64(time.Since(startTime).Seconds()),
	})
}
