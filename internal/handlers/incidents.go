package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
)

// IncidentActions is the manual side of the incident lifecycle.
type IncidentActions interface {
	Acknowledge(ctx context.Context, id uuid.UUID, actor, note string) (*models.Incident, error)
	Resolve(ctx context.Context, id uuid.UUID, actor, note string) (*models.Incident, error)
	Reopen(ctx context.Context, id uuid.UUID, actor, note string) (*models.Incident, error)
}

type IncidentHandler struct {
	store   storage.IncidentStore
	actions IncidentActions
}

func NewIncidentHandler(store storage.IncidentStore, actions IncidentActions) *IncidentHandler {
	return &IncidentHandler{store: store, actions: actions}
}

func (h *IncidentHandler) ListIncidents(c *fiber.Ctx) error {
	clientID, ok := queryID(c, "client_id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid client_id")
	}
	sourceID, ok := queryID(c, "data_source_id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid data_source_id")
	}
	status := models.IncidentStatus(strings.ToUpper(c.Query("status")))
	switch status {
	case "", models.IncidentOngoing, models.IncidentAcknowledged, models.IncidentResolved:
	default:
		return fail(c, fiber.StatusBadRequest, "Invalid status")
	}

	incidents, err := h.store.ListIncidents(c.UserContext(), storage.IncidentFilter{
		ClientID:     clientID,
		DataSourceID: sourceID,
		Status:       status,
		Limit:        queryLimit(c, 50, 500),
	})
	if err != nil {
		return storeError(c, err, "Failed to list incidents")
	}
	return c.JSON(fiber.Map{"incidents": incidents})
}

// GetIncident returns the incident with its event timeline.
func (h *IncidentHandler) GetIncident(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid incident ID")
	}
	inc, err := h.store.GetIncident(c.UserContext(), id)
	if err != nil {
		return storeError(c, err, "Failed to load incident")
	}
	return c.JSON(inc)
}

func (h *IncidentHandler) Acknowledge(c *fiber.Ctx) error {
	return h.act(c, h.actions.Acknowledge)
}

func (h *IncidentHandler) Resolve(c *fiber.Ctx) error {
	return h.act(c, h.actions.Resolve)
}

func (h *IncidentHandler) Reopen(c *fiber.Ctx) error {
	return h.act(c, h.actions.Reopen)
}

type transitionFunc func(ctx context.Context, id uuid.UUID, actor, note string) (*models.Incident, error)

func (h *IncidentHandler) act(c *fiber.Ctx, fn transitionFunc) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid incident ID")
	}
	var req struct {
		Note string `json:"note"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	inc, err := fn(c.UserContext(), id, actorOf(c), strings.TrimSpace(req.Note))
	if err != nil {
		return storeError(c, err, "Failed to update incident")
	}
	return c.JSON(inc)
}
