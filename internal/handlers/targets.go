package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/monitor"
	"github.com/ahmetk3436/markops/internal/storage"
)

// UptimeChecker runs an on-demand check for one target.
type UptimeChecker interface {
	PerformUptimeCheck(ctx context.Context, targetID uuid.UUID) (*monitor.CheckReport, error)
}

type TargetHandler struct {
	clients storage.ClientStore
	targets storage.TargetStore
	checks  storage.CheckStore
	checker UptimeChecker
}

func NewTargetHandler(clients storage.ClientStore, targets storage.TargetStore, checks storage.CheckStore, checker UptimeChecker) *TargetHandler {
	return &TargetHandler{clients: clients, targets: targets, checks: checks, checker: checker}
}

type targetRequest struct {
	ClientID uuid.UUID       `json:"client_id"`
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Config   json.RawMessage `json:"config"`
	Active   *bool           `json:"active"`
}

func (h *TargetHandler) ListTargets(c *fiber.Ctx) error {
	clientID, ok := queryID(c, "client_id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid client_id")
	}
	list, err := h.targets.ListTargets(c.UserContext(), storage.TargetFilter{
		ClientID:   clientID,
		Type:       models.SourceType(strings.ToUpper(c.Query("type"))),
		ActiveOnly: c.QueryBool("active"),
	})
	if err != nil {
		return storeError(c, err, "Failed to list data sources")
	}
	return c.JSON(fiber.Map{"data_sources": list})
}

func (h *TargetHandler) CreateTarget(c *fiber.Ctx) error {
	var req targetRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.ClientID == uuid.Nil {
		return fail(c, fiber.StatusBadRequest, "client_id is required")
	}
	sourceType := models.SourceType(strings.ToUpper(req.Type))
	if _, err := models.DecodeSourceConfig(sourceType, req.Config); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	if _, err := h.clients.GetClient(c.UserContext(), req.ClientID); err != nil {
		return storeError(c, err, "Failed to load client")
	}

	t := &models.DataSource{
		ClientID:   req.ClientID,
		Type:       sourceType,
		Name:       req.Name,
		Config:     datatypes.JSON(req.Config),
		Active:     req.Active == nil || *req.Active,
		LastStatus: "UNKNOWN",
	}
	if err := h.targets.CreateTarget(c.UserContext(), t); err != nil {
		return storeError(c, err, "Failed to create data source")
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *TargetHandler) GetTarget(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid data source ID")
	}
	t, err := h.targets.GetTarget(c.UserContext(), id)
	if err != nil {
		return storeError(c, err, "Failed to load data source")
	}
	return c.JSON(t)
}

// UpdateTarget changes name, config or active. Type and client are fixed.
func (h *TargetHandler) UpdateTarget(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid data source ID")
	}
	var req targetRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	t, err := h.targets.GetTarget(c.UserContext(), id)
	if err != nil {
		return storeError(c, err, "Failed to load data source")
	}

	if req.Name != "" {
		t.Name = req.Name
	}
	if len(req.Config) > 0 {
		if _, err := models.DecodeSourceConfig(t.Type, req.Config); err != nil {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
		t.Config = datatypes.JSON(req.Config)
	}
	if req.Active != nil {
		t.Active = *req.Active
	}
	if err := h.targets.UpdateTarget(c.UserContext(), t); err != nil {
		return storeError(c, err, "Failed to update data source")
	}
	return c.JSON(t)
}

func (h *TargetHandler) DeleteTarget(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid data source ID")
	}
	if err := h.targets.DeleteTarget(c.UserContext(), id); err != nil {
		return storeError(c, err, "Failed to delete data source")
	}
	return c.JSON(fiber.Map{"message": "Data source deleted"})
}

// RunCheck performs an uptime check now and returns the per-URL outcome.
func (h *TargetHandler) RunCheck(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid data source ID")
	}
	report, err := h.checker.PerformUptimeCheck(c.UserContext(), id)
	if report == nil {
		return storeError(c, err, "Uptime check failed")
	}
	resp := fiber.Map{"report": report}
	if err != nil {
		resp["warning"] = err.Error()
	}
	return c.JSON(resp)
}

func (h *TargetHandler) ListChecks(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid data source ID")
	}
	checks, err := h.checks.ListUptimeChecks(c.UserContext(), id, queryLimit(c, 100, 1000))
	if err != nil {
		return storeError(c, err, "Failed to list checks")
	}
	return c.JSON(fiber.Map{"checks": checks})
}

func (h *TargetHandler) GetSSL(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid data source ID")
	}
	cert, err := h.checks.GetSSLCert(c.UserContext(), id)
	if err != nil {
		return storeError(c, err, "Failed to load certificate")
	}
	return c.JSON(cert)
}
