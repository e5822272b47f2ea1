package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Event is a message pushed to every client watching a production line.
type Event struct {
	Type    string          `json:"type"`
	Plant   string          `json:"plant"`
	Line    string          `json:"line"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an Event for line of plant.
func NewEvent(eventType, plant, line string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Plant: plant, Line: line, Payload: raw}, nil
}

// Hub maintains the set of active clients per production line and
// broadcasts events to them.
type Hub struct {
	// Registered clients by line
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}

	mu  sync.RWMutex
	log zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes registrations and broadcasts until ctx is done, then closes
// every client's send channel.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for line, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, line)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.line] == nil {
				h.rooms[client.line] = make(map[*Client]bool)
			}
			h.rooms[client.line][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				h.log.Error().Err(err).Str("type", event.Type).Msg("marshal websocket event")
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.Line] {
				if !client.accepts(event) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Send buffer full: disconnect the client.
					h.log.Warn().Str("line", event.Line).Msg("websocket client send buffer full, disconnecting")
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.line]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.line)
	}
}

// BroadcastToLine queues event for every client watching line. When the queue
// is full the event is dropped and logged.
func (h *Hub) BroadcastToLine(line string, event Event) {
	event.Line = line
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn().Str("line", line).Str("type", event.Type).Msg("websocket broadcast queue full, event dropped")
	}
}

func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of clients watching line.
func (h *Hub) ClientCount(line string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[line])
}
