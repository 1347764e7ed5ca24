package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetk3436/markops/internal/storage"
)

type NotificationHandler struct {
	store storage.NotificationStore
}

func NewNotificationHandler(store storage.NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	clientID, ok := queryID(c, "client_id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid client_id")
	}
	list, err := h.store.ListNotifications(c.UserContext(), storage.NotificationFilter{
		ClientID:   clientID,
		UnreadOnly: c.QueryBool("unread"),
		Limit:      queryLimit(c, 50, 500),
	})
	if err != nil {
		return storeError(c, err, "Failed to list notifications")
	}
	return c.JSON(fiber.Map{"notifications": list})
}

// MarkRead releases the dedup key, so the next failure with the same status
// code produces a fresh notification.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid notification ID")
	}
	if err := h.store.MarkNotificationRead(c.UserContext(), id, time.Now().UTC()); err != nil {
		return storeError(c, err, "Failed to update notification")
	}
	return c.JSON(fiber.Map{"message": "Notification marked as read"})
}
