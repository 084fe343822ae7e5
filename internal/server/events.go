package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/mutecast/mutecast/internal/detect"
)

// eventPayload is the wire form of a detection event on /api/events.
type eventPayload struct {
	Type       string    `json:"type"`
	Pattern    string    `json:"pattern"`
	Score      float64   `json:"score,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	At         time.Time `json:"at"`
}

// subscriberBuffer is the per-connection event queue depth. Detection events
// are sparse (a handful per hour), so a slow client only loses events after
// a sustained stall.
const subscriberBuffer = 16

// writeTimeout bounds a single websocket write to one subscriber.
const writeTimeout = 5 * time.Second

// Hub fans detection events out to websocket subscribers. It implements
// [detect.Listener]; HandleEvent never blocks the capture loop — a
// subscriber whose queue is full has the event dropped and a warning
// logged.
type Hub struct {
	mu   sync.Mutex
	subs map[chan eventPayload]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan eventPayload]struct{})}
}

// HandleEvent implements [detect.Listener].
func (h *Hub) HandleEvent(ev detect.Event) {
	payload := eventPayload{
		Type:       ev.Type.String(),
		Pattern:    ev.Pattern.Name,
		Score:      ev.Score,
		DurationMS: ev.Duration.Milliseconds(),
		At:         ev.At,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub <- payload:
		default:
			slog.Warn("event subscriber queue full, dropping event",
				"type", payload.Type,
				"pattern", payload.Pattern,
			)
		}
	}
}

// Subscribers returns the number of connected event subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe() chan eventPayload {
	sub := make(chan eventPayload, subscriberBuffer)
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub chan eventPayload) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request to a websocket and streams detection
// events until the client disconnects or the server shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "server shutting down")

	sub := h.subscribe()
	defer h.unsubscribe(sub)

	// Reads are discarded, but CloseRead surfaces client disconnects through
	// context cancellation.
	ctx := conn.CloseRead(r.Context())

	slog.Debug("event subscriber connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-sub:
			data, err := json.Marshal(payload)
			if err != nil {
				slog.Error("marshal event payload", "err", err)
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("event subscriber write failed, disconnecting",
					"remote", r.RemoteAddr,
					"err", err,
				)
				return
			}
		}
	}
}
