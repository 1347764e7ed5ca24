// Package realtime fans incident events out to live subscribers.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ahmetk3436/markops/internal/models"
)

type Message struct {
	Incident models.Incident      `json:"incident"`
	Event    models.IncidentEvent `json:"event"`
}

// Hub broadcasts to every subscriber without blocking. A subscriber whose
// buffer is full misses the message.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan []byte]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[chan []byte]struct{}), buffer: buffer}
}

// Subscribe returns a message channel and a func that unsubscribes and
// closes it.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) PublishIncidentEvent(inc models.Incident, ev models.IncidentEvent) {
	inc.Events = nil
	payload, err := json.Marshal(Message{Incident: inc, Event: ev})
	if err != nil {
		slog.Error("Failed to encode incident event", "incident_id", inc.ID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
			slog.Warn("Live subscriber lagging, dropping incident event", "incident_id", inc.ID)
		}
	}
}
