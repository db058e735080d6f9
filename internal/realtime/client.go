package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// HandlerFunc processes one inbound event payload on behalf of a client.
type HandlerFunc func(c *Client, data json.RawMessage)

// Client is one live websocket connection after a successful handshake.
// Identity fields are set once during connection setup and never change.
type Client struct {
	id          string
	userID      int64
	displayName string
	handle      string

	conn *websocket.Conn
	send chan []byte

	// handlers is the per-connection dispatch table, keyed by event name.
	// Built once at connection-setup time; events without an entry are
	// dropped.
	handlers map[string]HandlerFunc

	// onClose runs exactly once when the read pump exits, after the
	// transport is no longer readable.
	onClose func(*Client)

	log *slog.Logger
}

// UserID returns the authenticated internal user id.
func (c *Client) UserID() int64 { return c.userID }

// ConnID returns the connection's opaque id.
func (c *Client) ConnID() string { return c.id }

// start launches the read and write pumps.
func (c *Client) start() {
	go c.writePump()
	go c.readPump()
}

// readPump is the connection's single dispatch queue: events are decoded and
// handled in arrival order, giving per-sender FIFO within one connection.
func (c *Client) readPump() {
	defer func() {
		if c.onClose != nil {
			c.onClose(c)
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error("set read deadline", "err", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("unexpected websocket close", "err", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Debug("dropping malformed frame", "err", err)
			continue
		}
		c.dispatch(env)
	}
}

// dispatch runs the handler registered for the event. A panicking handler is
// contained: it is logged and the connection's other handlers, and every
// other connection, stay unaffected.
func (c *Client) dispatch(env Envelope) {
	h, ok := c.handlers[env.Event]
	if !ok {
		c.log.Debug("dropping unknown event", "event", env.Event)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("event handler panicked", "event", env.Event, "panic", r)
		}
	}()
	h(c, env.Data)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error("set write deadline", "err", err)
				return
			}
			if !ok {
				// The hub dropped us; tell the peer before hanging up.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
