package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ahmetk3436/markops/internal/incident"
	"github.com/ahmetk3436/markops/internal/kpi"
	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/monitor"
	"github.com/ahmetk3436/markops/internal/storage"
)

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

// storeError maps domain and storage errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a 500 with the given fallback.
func storeError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Not found")
	case errors.Is(err, storage.ErrConflict),
		errors.Is(err, incident.ErrInvalidTransition),
		errors.Is(err, incident.ErrOpenIncidentExists),
		errors.Is(err, monitor.ErrCheckInProgress):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInvalidConfig),
		errors.Is(err, kpi.ErrInvalidTargetType),
		errors.Is(err, monitor.ErrNotDomainTarget):
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	slog.Error(fallback, "path", c.Path(), "error", err)
	return fail(c, fiber.StatusInternalServerError, fallback)
}

func paramID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

// queryID parses an optional uuid query parameter.
func queryID(c *fiber.Ctx, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}

func queryLimit(c *fiber.Ctx, def, max int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func actorOf(c *fiber.Ctx) string {
	if name, _ := c.Locals("display_name").(string); name != "" {
		return name
	}
	username, _ := c.Locals("username").(string)
	return username
}
