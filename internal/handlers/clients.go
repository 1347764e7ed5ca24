package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"

	"github.com/ahmetk3436/markops/internal/kpi"
	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
)

type ClientHandler struct {
	clients storage.ClientStore
}

func NewClientHandler(clients storage.ClientStore) *ClientHandler {
	return &ClientHandler{clients: clients}
}

func (h *ClientHandler) ListClients(c *fiber.Ctx) error {
	list, err := h.clients.ListClients(c.UserContext())
	if err != nil {
		return storeError(c, err, "Failed to list clients")
	}
	return c.JSON(fiber.Map{"clients": list})
}

func (h *ClientHandler) CreateClient(c *fiber.Ctx) error {
	var req struct {
		Name            string   `json:"name"`
		AlertEmails     []string `json:"alert_emails"`
		SlackWebhookURL string   `json:"slack_webhook_url"`
		KPITargetType   string   `json:"kpi_target_type"`
		KPITargetValue  float64  `json:"kpi_target_value"`
		KPITolerancePct *float64 `json:"kpi_tolerance_pct"`
		ProfitMarginPct *float64 `json:"profit_margin_pct"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return fail(c, fiber.StatusBadRequest, "Name is required")
	}
	if req.KPITargetType == "" {
		req.KPITargetType = string(kpi.TargetCPA)
	}
	targetType, err := kpi.ParseTargetType(req.KPITargetType)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	tolerance := 15.0
	if req.KPITolerancePct != nil {
		if *req.KPITolerancePct < 0 {
			return fail(c, fiber.StatusBadRequest, "kpi_tolerance_pct must not be negative")
		}
		tolerance = *req.KPITolerancePct
	}

	client := &models.Client{
		Name:            strings.TrimSpace(req.Name),
		AlertEmails:     datatypes.JSONSlice[string](req.AlertEmails),
		SlackWebhookURL: req.SlackWebhookURL,
		KPITargetType:   string(targetType),
		KPITargetValue:  req.KPITargetValue,
		KPITolerancePct: tolerance,
		ProfitMarginPct: req.ProfitMarginPct,
	}
	if err := h.clients.CreateClient(c.UserContext(), client); err != nil {
		return storeError(c, err, "Failed to create client")
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

func (h *ClientHandler) GetClient(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid client ID")
	}
	client, err := h.clients.GetClient(c.UserContext(), id)
	if err != nil {
		return storeError(c, err, "Failed to load client")
	}
	return c.JSON(client)
}

// SaveAccountIssues records the latest disapproval snapshot for a client.
func (h *ClientHandler) SaveAccountIssues(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid client ID")
	}
	var req struct {
		Disapprovals           int     `json:"disapprovals"`
		MerchantDisapprovalPct float64 `json:"merchant_disapproval_pct"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Disapprovals < 0 || req.MerchantDisapprovalPct < 0 {
		return fail(c, fiber.StatusBadRequest, "Counts must not be negative")
	}
	if _, err := h.clients.GetClient(c.UserContext(), id); err != nil {
		return storeError(c, err, "Failed to load client")
	}

	issues := &models.AccountIssues{
		ClientID:               id,
		Disapprovals:           req.Disapprovals,
		MerchantDisapprovalPct: req.MerchantDisapprovalPct,
		RecordedAt:             time.Now().UTC(),
	}
	if err := h.clients.SaveAccountIssues(c.UserContext(), issues); err != nil {
		return storeError(c, err, "Failed to save account issues")
	}
	return c.Status(fiber.StatusCreated).JSON(issues)
}
