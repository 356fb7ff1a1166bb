package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
)

const (
	// writeWait bounds a single frame write before the connection is dropped.
	writeWait = 10 * time.Second
	// handshakeWait is how long the first Connect frame may take to arrive.
	handshakeWait = 10 * time.Second
	// sendBufferSize is the per-client frame backlog; full buffer = drop.
	sendBufferSize = 256
	// maxFrameBytes caps inbound frames; bigger ones are logged and dropped.
	maxFrameBytes = 64 * 1024
)

var (
	errClientClosed   = errors.New("client connection closed")
	errSendBufferFull = errors.New("client send buffer full")
)

// wsConnection is the slice of *websocket.Conn the pumps need, so tests can
// drive them with an in-memory fake.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Client is one player's live connection to a room. All outbound frames go
// through a buffered channel drained by a single write pump, so broadcast
// fan-out never blocks on a slow socket and every recipient sees frames in
// enqueue order.
type Client struct {
	conn     wsConnection
	gateway  *Gateway
	playerID string
	roomID   string
	gameID   string

	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newClient(conn wsConnection, gateway *Gateway, playerID, roomID, gameID string) *Client {
	return &Client{
		conn:     conn,
		gateway:  gateway,
		playerID: playerID,
		roomID:   roomID,
		gameID:   gameID,
		send:     make(chan []byte, sendBufferSize),
	}
}

// enqueue hands one frame to the write pump without blocking. A full buffer
// or a closed client is the caller's signal to count a delivery failure.
func (c *Client) enqueue(frame []byte) (err error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errClientClosed
	}
	c.mu.RUnlock()

	// The channel can close between the flag check and the send.
	defer func() {
		if r := recover(); r != nil {
			err = errClientClosed
		}
	}()

	select {
	case c.send <- frame:
		return nil
	default:
		return errSendBufferFull
	}
}

// beginClose closes the send channel exactly once. The write pump drains
// what is buffered, sends a close frame, and closes the socket.
func (c *Client) beginClose() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.send)
}

func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()

	for {
		frame, ok := <-c.send
		if !ok {
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			logging.Error(context.Background(), "websocket write failed",
				zap.String("player_id", c.playerID),
				zap.String("room_id", c.roomID),
				zap.Error(err),
			)
			return
		}
	}
}

func (c *Client) readPump() {
	defer c.gateway.handleDisconnect(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if len(data) > maxFrameBytes {
			logging.Warn(context.Background(), "dropping oversized frame",
				zap.String("player_id", c.playerID),
				zap.Int("bytes", len(data)),
			)
			continue
		}
		if stop := c.gateway.route(c, data); stop {
			return
		}
	}
}
