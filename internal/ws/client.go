// internal/ws/client.go
//
// One authenticated websocket connection.
// Responsibilities:
//   - Implement proto.Client over a gorilla/websocket connection.
//   - Buffered, non-blocking outbound send (writePump with 54s pings).
//   - Inbound read loop with a 60s read deadline refreshed by pongs.
//
// The 54s/60s ping/pong pairing leaves headroom under common 60s proxy
// idle timeouts.

package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quorbit/quoridor-server/internal/proto"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// client implements proto.Client.
type client struct {
	conn *websocket.Conn

	connID string
	userID string
	name   string
	rating int

	send      chan proto.Envelope
	sendMu    sync.Mutex // serializes Send against channel close
	alive     atomic.Bool
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, connID, userID, name string, rating int) *client {
	c := &client{
		conn:   conn,
		connID: connID,
		userID: userID,
		name:   name,
		rating: rating,
		send:   make(chan proto.Envelope, sendBuffer),
	}
	c.alive.Store(true)
	return c
}

func (c *client) ConnID() string      { return c.connID }
func (c *client) UserID() string      { return c.userID }
func (c *client) DisplayName() string { return c.name }
func (c *client) Rating() int         { return c.rating }
func (c *client) Alive() bool         { return c.alive.Load() }

// Send enqueues an envelope without blocking; a full buffer means the
// consumer is too slow and the event is dropped.
func (c *client) Send(env proto.Envelope) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.alive.Load() {
		return
	}
	select {
	case c.send <- env:
	default:
		log.Warn().Str("conn", c.connID).Str("event", env.Type).Msg("send buffer full, dropping")
	}
}

// Close marks the client dead and tears the socket down. Safe to call
// more than once; the write pump drains out via the closed channel.
func (c *client) Close() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.alive.Store(false)
		close(c.send)
		c.sendMu.Unlock()
		_ = c.conn.Close()
	})
}

// writePump serializes all writes to the socket: queued envelopes and
// periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
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

// inbound is the raw frame before payload decoding.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readPump delivers inbound frames to handle until the socket dies.
// Runs on the HTTP handler goroutine.
func (c *client) readPump(handle func(*client, inbound)) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn", c.connID).Msg("websocket read error")
			}
			return
		}
		handle(c, msg)
	}
}
