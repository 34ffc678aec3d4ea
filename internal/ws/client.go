package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"chat-relay/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20 // 1MB
	sendQueueSize  = 256
)

// Client is one websocket connection. The sess field is owned by the read
// goroutine: nil until a successful join, which is the connection's
// authenticated/unauthenticated state.
type Client struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	ip          string
	connectedAt time.Time

	sess *session.Session
}

func newClient(id string, conn *websocket.Conn, ip string) *Client {
	return &Client{
		id:          id,
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		ip:          ip,
		connectedAt: time.Now(),
	}
}

// readPump pulls frames off the connection and hands them to the relay. On
// exit the connection is deregistered and its session released.
func (c *Client) readPump(relay *Relay) {
	defer func() {
		relay.Disconnect(c)
		relay.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("websocket read error")
			}
			return
		}
		relay.Dispatch(c, data)
	}
}

// writePump drains the send queue to the connection and keeps it alive with
// pings. The hub closing the send channel terminates the pump.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
