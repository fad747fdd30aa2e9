package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"scavenger/core/events"
	"scavenger/core/types"
)

const (
	wsWriteTimeout   = 10 * time.Second
	subscriberBuffer = 64
)

type subscriber struct {
	prefix string
	ch     chan types.Event
}

// Hub fans committed events out to websocket subscribers. Slow subscribers
// miss events instead of stalling the runtime.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, subs: make(map[uint64]*subscriber)}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	converted := events.Convert(evt)
	if converted == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		if sub.prefix != "" && !strings.HasPrefix(converted.Type, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- *converted:
		default:
			h.logger.Debug("websocket subscriber lagging, event dropped", "subscriber", id, "type", converted.Type)
		}
	}
}

// Subscribe registers a subscriber for events whose type starts with prefix.
// The returned cancel function must be called to release it.
func (h *Hub) Subscribe(prefix string) (<-chan types.Event, func()) {
	sub := &subscriber{prefix: strings.TrimSpace(prefix), ch: make(chan types.Event, subscriberBuffer)}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()
	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, prefix); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, prefix string) error {
	updates, cancel := s.hub.Subscribe(prefix)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-updates:
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt types.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
