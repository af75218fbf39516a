package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	readLimit  = 4096
)

// client is one live WebSocket session. Its send channel decouples the
// coordinator from the socket: Consume enqueues and never blocks, the write
// pump drains.
type client struct {
	id   domain.ConnID
	conn *websocket.Conn
	send chan outEnvelope
	log  *slog.Logger
}

func newClient(id domain.ConnID, conn *websocket.Conn, buffer int, log *slog.Logger) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan outEnvelope, buffer),
		log:  log,
	}
}

// Consume implements contract.EventSink. A full send buffer drops the event
// rather than stalling the coordinator; the health checks will reap a client
// that stopped reading.
func (c *client) Consume(e event.DomainEvent) {
	select {
	case c.send <- outEnvelope{Event: e.EventName(), Data: e}:
	default:
		c.log.Warn("send buffer full, dropping event", "conn", c.id, "event", e.EventName())
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump decodes inbound frames into commands and dispatches them in
// arrival order. It returns when the connection drops, after which the
// caller runs the disconnect sequence.
func (c *client) readPump(dispatch func(domain.ConnID, domain.Command)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("connection closed abnormally", "conn", c.id, "err", err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Debug("dropping malformed frame", "conn", c.id, "err", err)
			continue
		}

		cmd, err := decodeCommand(env)
		if err != nil {
			c.log.Debug("dropping frame", "conn", c.id, "err", err)
			continue
		}
		dispatch(c.id, cmd)
	}
}
