package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// Subscriber hands out live incident event streams.
type Subscriber interface {
	Subscribe() (<-chan []byte, func())
}

type StreamHandler struct {
	hub  Subscriber
	ping time.Duration
}

func NewStreamHandler(hub Subscriber) *StreamHandler {
	return &StreamHandler{hub: hub, ping: 30 * time.Second}
}

// UpgradeCheck is middleware that rejects non-websocket requests.
func (h *StreamHandler) UpgradeCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// HandleIncidentStream pushes every incident event as a JSON text frame
// until the client goes away.
func (h *StreamHandler) HandleIncidentStream() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		events, unsubscribe := h.hub.Subscribe()
		defer unsubscribe()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(h.ping)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-events:
				if !ok {
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					slog.Debug("Incident stream write failed", "error", err)
					return
				}
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	})
}
