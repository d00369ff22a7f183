// ABOUTME: WebSocket client wrapper with buffered outbound queue and pump goroutines
// ABOUTME: Implements session.Sender; a full buffer or closed socket is a channel write error

package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tckeong/ChatWidget/internal/auth"
	"github.com/tckeong/ChatWidget/internal/session"
)

var _ session.Sender = (*Client)(nil)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Outbound queue depth per connection.
	sendBufferSize = 256
)

// Channel write errors reported to the broadcaster.
var (
	errClientClosed   = errors.New("client closed")
	errSendBufferFull = errors.New("send buffer full")
)

// Client is the middleman between one websocket connection and the relay.
// Frames queued via Send are drained by writePump; readPump feeds inbound
// frames to the gateway's state machine.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	sessionID string
	identity  auth.Identity
	logger    *slog.Logger
}

func newClient(conn *websocket.Conn, identity auth.Identity, logger *slog.Logger) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		identity: identity,
		logger:   logger,
	}
}

// Send queues a frame for delivery. Non-blocking: returns an error when the
// client is closed or its buffer is full, which the broadcaster treats as a
// broken channel.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		return errSendBufferFull
	}
}

// Close shuts the connection down. Idempotent and safe from any goroutine.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
	return nil
}

// sendFrame marshals and queues an outbound frame, logging on failure.
func (c *Client) sendFrame(frameType string, payload interface{}) {
	data, err := encodeFrame(frameType, payload)
	if err != nil {
		c.logger.Error("encoding frame", "type", frameType, "error", err)
		return
	}
	if err := c.Send(data); err != nil {
		c.logger.Warn("queueing frame", "type", frameType, "error", err)
	}
}

// sendError emits an error frame to this client only.
func (c *Client) sendError(code, message string) {
	c.sendFrame(frameError, map[string]string{
		"code":    code,
		"message": message,
	})
}

// writePump pumps queued frames to the websocket connection.
// One writePump per connection; all writes go through it.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// readPump pumps inbound frames into the handler until the connection drops.
// handle is invoked once per frame; onClose fires exactly once afterwards.
func (c *Client) readPump(handle func(data []byte), onClose func()) {
	defer func() {
		onClose()
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read", "session_id", c.sessionID, "error", err)
			}
			return
		}
		handle(message)
	}
}

func encodeFrame(frameType string, payload interface{}) ([]byte, error) {
	frame := struct {
		Type    string      `json:"type"`
		Payload interface{} `json:"payload,omitempty"`
	}{Type: frameType, Payload: payload}
	return json.Marshal(frame)
}
