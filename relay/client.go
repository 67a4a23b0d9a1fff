package relay

import (
	"encoding/json"
	"time"

	"github.com/ayushdevani01/real-time-video-chat-app/types"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size. SDP payloads stay well under this.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

// client is one connected signaling channel. All of its state beyond the
// connection itself lives in the relay's registry.
type client struct {
	id    string
	relay *Relay
	conn  *websocket.Conn
	send  chan []byte
}

func newClient(id string, r *Relay, conn *websocket.Conn) *client {
	return &client{
		id:    id,
		relay: r,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
	}
}

// enqueue hands an envelope to the write pump. A full buffer means the
// consumer stopped draining; the message is dropped rather than blocking
// the relay loop.
func (c *client) enqueue(env *types.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Errorf("[relay]: Failed to marshal %v event for %v: %v", env.Event, c.id, err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warnf("[relay]: Send buffer full for %v, dropping %v event", c.id, env.Event)
	}
}

// readPump pumps envelopes from the websocket into the relay loop. It is
// the only reader on the connection.
func (c *client) readPump() {
	defer func() {
		select {
		case c.relay.unregister <- c:
		case <-c.relay.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env types.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("[relay]: Read error from %v: %v", c.id, err)
			}
			break
		}
		select {
		case c.relay.inbound <- inbound{client: c, env: &env}:
		case <-c.relay.done:
			return
		}
	}
}

// writePump pumps queued messages to the websocket and keeps the
// connection alive with pings. It is the only writer on the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Errorf("[relay]: Write error to %v: %v", c.id, err)
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
