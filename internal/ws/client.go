package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prodtrack/api/internal/auth"
	"github.com/prodtrack/api/internal/enum"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers on the shop floor connect from the dashboard origin; the JWT
	// in the query string is what authorizes the connection.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one dashboard connection watching a production line.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	line  string
	plant string // empty: events of every plant
	send  chan []byte
}

// accepts reports whether ev may be delivered to c.
func (c *Client) accepts(ev Event) bool {
	return c.plant == "" || strings.EqualFold(c.plant, ev.Plant)
}

// Handler upgrades GET /ws/lines/{line}/orders?token=JWT and subscribes the
// connection to that line. Operators and supervisors only receive events of
// orders in their own plant.
func (h *Hub) Handler(jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		claims, err := auth.ValidateToken(jwtSecret, token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		line := strings.TrimSpace(chi.URLParam(r, "line"))
		if line == "" {
			http.Error(w, "missing line", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client.
			h.log.Warn().Err(err).Str("line", line).Msg("websocket upgrade")
			return
		}

		client := &Client{hub: h, conn: conn, line: line, send: make(chan []byte, sendBuffer)}
		if claims.Role != enum.UserRoleAdmin {
			client.plant = claims.Plant
		}
		if !h.join(client) {
			conn.Close()
			return
		}

		h.log.Debug().Str("line", line).Str("user_id", claims.UserID.String()).Msg("websocket client joined")
		go client.writeLoop()
		go client.readLoop()
	}
}

// readLoop discards inbound frames. It keeps the read deadline moving on
// pongs and unregisters the client once the peer goes away.
func (c *Client) readLoop() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Str("line", c.line).Msg("websocket read")
			}
			return
		}
	}
}

// writeLoop sends each queued event as its own text frame and pings the peer
// every pingPeriod. It exits when the hub closes send or a write fails.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.log.Debug().Err(err).Str("line", c.line).Msg("websocket write")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
