package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/metrics"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/protocol"
)

// route handles one inbound frame from a connected client. Returns true when
// the client asked to disconnect and the read pump should stop. Identity
// always comes from the session, not from the frame, so a client cannot speak
// as anyone else.
func (g *Gateway) route(c *Client, data []byte) bool {
	ctx := context.Background()

	msg, err := protocol.Decode(data)
	if err != nil {
		metrics.MessagesRelayed.WithLabelValues("unknown", "error").Inc()
		logging.Warn(ctx, "dropping undecodable frame",
			zap.String("player_id", c.playerID),
			zap.Error(err),
		)
		return false
	}

	msgType := string(msg.MessageType())
	timer := prometheus.NewTimer(metrics.MessageHandlingDuration.WithLabelValues(msgType))
	defer timer.ObserveDuration()

	status := "ok"
	switch m := msg.(type) {
	case *protocol.PlayerUpdate:
		m.PlayerID = c.playerID
		if _, ok := g.registry.UpdatePose(c.playerID, m.Transform); !ok {
			status = "dropped"
			break
		}
		g.dispatcher.Broadcast(ctx, c.roomID, m, c.playerID)

	case *protocol.VoiceData:
		g.voice.BroadcastAudio(ctx, c.roomID, c.playerID, m.AudioData)

	case *protocol.ObjectSpawned, *protocol.ObjectMoved, *protocol.ObjectDestroyed,
		*protocol.ObjectGrabbed, *protocol.ObjectReleased, *protocol.CustomEvent:
		g.dispatcher.Broadcast(ctx, c.roomID, msg, c.playerID)

	case *protocol.Disconnect:
		metrics.MessagesRelayed.WithLabelValues(msgType, status).Inc()
		return true

	default:
		// Server-to-client frames echoed back, and anything unforeseen.
		status = "ignored"
	}

	metrics.MessagesRelayed.WithLabelValues(msgType, status).Inc()
	return false
}

// sendTo delivers one message to a single client outside any broadcast.
func (g *Gateway) sendTo(c *Client, msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		logging.Error(context.Background(), "encode failed",
			zap.String("message_type", string(msg.MessageType())),
			zap.Error(err),
		)
		return
	}
	if err := c.enqueue(frame); err != nil {
		logging.Warn(context.Background(), "direct send failed",
			zap.String("player_id", c.playerID),
			zap.Error(err),
		)
	}
}

// readConnectFrame waits for the client's first frame and requires it to be a
// Connect. The handshake deadline is lifted once the frame arrives.
func readConnectFrame(conn wsConnection) (*protocol.Connect, error) {
	if err := conn.SetReadDeadline(time.Now().Add(handshakeWait)); err != nil {
		return nil, err
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read handshake frame: %w", err)
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode handshake frame: %w", err)
	}
	connect, ok := msg.(*protocol.Connect)
	if !ok {
		return nil, fmt.Errorf("expected Connect, got %s", msg.MessageType())
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	return connect, nil
}

// rejectAndClose answers a failed handshake with an Error frame and a close
// frame, then drops the socket.
func rejectAndClose(conn wsConnection, reason string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if frame, err := protocol.Encode(&protocol.ErrorMessage{Message: reason}); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
}

// validateOrigin checks if the request origin is in the allowed list. An
// absent Origin header passes: native VR clients are not browsers.
func validateOrigin(r *http.Request, allowedOrigins []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		logging.Warn(context.Background(), "invalid origin URL", zap.String("origin", origin), zap.Error(err))
		return fmt.Errorf("invalid origin URL: %w", err)
	}

	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return nil
		}
	}

	logging.Warn(context.Background(), "origin not in allowed list",
		zap.String("origin", origin),
		zap.Strings("allowed_origins", allowedOrigins),
	)
	return fmt.Errorf("origin not allowed: %s", origin)
}

// upgrade performs the WebSocket upgrade with origin enforcement.
func (g *Gateway) upgrade(c *gin.Context) (wsConnection, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, g.allowedOrigins) == nil
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return nil, err
	}
	return conn, nil
}
