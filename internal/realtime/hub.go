package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Hub owns the set of live clients and their room memberships, and is the
// single emission path for outbound events. When a backplane is attached,
// every emission is mirrored through it so sibling processes deliver to
// their own clients; frames arriving from siblings enter via HandleRemote.
type Hub struct {
	log      *slog.Logger
	originID string

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	backplane Backplane
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:      log,
		originID: uuid.NewString(),
		clients:  make(map[*Client]struct{}),
		rooms:    make(map[string]map[*Client]struct{}),
	}
}

// AttachBackplane enables cross-process fan-out. Call before serving traffic.
func (h *Hub) AttachBackplane(b Backplane) {
	h.backplane = b
}

// Register adds a client with its room memberships. Rooms are fixed for the
// connection's lifetime; the transport teardown in Unregister is the only
// way memberships end.
func (h *Hub) Register(c *Client, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	for _, room := range rooms {
		set, ok := h.rooms[room]
		if !ok {
			set = make(map[*Client]struct{})
			h.rooms[room] = set
		}
		set[c] = struct{}{}
	}
}

// Unregister removes a client from the hub and every room, closing its send
// channel. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropClientLocked(c)
}

func (h *Hub) dropClientLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room, set := range h.rooms {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)
}

// ClientCount returns the number of connected clients on this process.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// EmitToRooms delivers an event to every client in any of the given rooms,
// locally and (when attached) across the backplane.
func (h *Hub) EmitToRooms(event string, data any, rooms ...string) {
	frame, ok := h.newFrame(event, data, rooms)
	if !ok {
		return
	}
	h.deliver(frame)
	h.mirror(frame)
}

// EmitAll delivers an event to every connected client, locally and across
// the backplane.
func (h *Hub) EmitAll(event string, data any) {
	frame, ok := h.newFrame(event, data, nil)
	if !ok {
		return
	}
	h.deliver(frame)
	h.mirror(frame)
}

// HandleRemote delivers a frame received from the backplane, skipping frames
// this process published itself.
func (h *Hub) HandleRemote(frame BroadcastFrame) {
	if frame.Origin == h.originID {
		return
	}
	h.deliver(frame)
}

func (h *Hub) newFrame(event string, data any, rooms []string) (BroadcastFrame, bool) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Error("marshal outbound event", "event", event, "err", err)
		return BroadcastFrame{}, false
	}
	return BroadcastFrame{Origin: h.originID, Event: event, Rooms: rooms, Data: raw}, true
}

func (h *Hub) mirror(frame BroadcastFrame) {
	if h.backplane == nil {
		return
	}
	if err := h.backplane.Publish(context.Background(), frame); err != nil {
		// Degraded to process-local delivery for this broadcast.
		h.log.Warn("backplane publish failed", "event", frame.Event, "err", err)
	}
}

func (h *Hub) deliver(frame BroadcastFrame) {
	payload, err := json.Marshal(Envelope{Event: frame.Event, Data: frame.Data})
	if err != nil {
		h.log.Error("marshal envelope", "event", frame.Event, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	targets := make(map[*Client]struct{})
	if frame.Rooms == nil {
		for c := range h.clients {
			targets[c] = struct{}{}
		}
	} else {
		for _, room := range frame.Rooms {
			for c := range h.rooms[room] {
				targets[c] = struct{}{}
			}
		}
	}

	for c := range targets {
		select {
		case c.send <- payload:
		default:
			// Slow consumer: its buffer is full, drop the connection rather
			// than block every other delivery behind it.
			h.log.Warn("send buffer full, dropping client",
				"user_id", c.userID, "conn_id", c.id)
			h.dropClientLocked(c)
		}
	}
}
