// Package transport owns the WebSocket edge of the relay: upgrade, the
// Connect handshake, per-connection read/write pumps and the live
// player-to-connection table the dispatcher delivers through.
//
// A connection is anonymous until its first frame. The client proves who it
// is with a Connect frame carrying an access token; only then does the player
// join a room and start relaying. Everything after the handshake is
// fire-and-forget: outbound frames ride a buffered channel and are dropped,
// never awaited, when a client cannot keep up.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/accounts"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/dispatch"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/metrics"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/protocol"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/ratelimit"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/registry"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/token"
)

// Gateway accepts WebSocket connections and bridges them to the room registry
// and dispatcher. It is the dispatch.Sender: the dispatcher hands it encoded
// frames and it finds the recipient's connection.
type Gateway struct {
	registry *registry.Registry
	accounts *accounts.Store
	tokens   *token.Service
	limiter  *ratelimit.RateLimiter // nil disables connection limits

	dispatcher *dispatch.Dispatcher
	voice      *dispatch.Voice

	allowedOrigins []string

	mu      sync.Mutex
	clients map[string]*Client // player id -> live connection
}

// NewGateway wires a gateway to its collaborators. The dispatcher and voice
// overlay are built here because both deliver through the gateway itself.
func NewGateway(reg *registry.Registry, accts *accounts.Store, tokens *token.Service, limiter *ratelimit.RateLimiter, allowedOrigins []string) *Gateway {
	g := &Gateway{
		registry:       reg,
		accounts:       accts,
		tokens:         tokens,
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
		clients:        make(map[string]*Client),
	}
	g.dispatcher = dispatch.NewDispatcher(reg, g)
	g.voice = dispatch.NewVoice(g)
	return g
}

// Voice exposes the voice overlay for the REST layer's join/leave endpoints.
func (g *Gateway) Voice() *dispatch.Voice {
	return g.voice
}

// Send queues one encoded frame for a player's connection. It never blocks;
// an unknown player or a full buffer is a delivery failure the caller counts.
func (g *Gateway) Send(playerID string, frame []byte) error {
	g.mu.Lock()
	client, ok := g.clients[playerID]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("no connection for player %s", playerID)
	}
	return client.enqueue(frame)
}

// ServeWs rate-limits, checks the origin and upgrades to a WebSocket, then
// hands the socket to HandleConnection.
func (g *Gateway) ServeWs(c *gin.Context) {
	if g.limiter != nil && !g.limiter.CheckWebSocket(c) {
		return // response already written
	}

	if err := validateOrigin(c.Request, g.allowedOrigins); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}

	conn, err := g.upgrade(c)
	if err != nil {
		return
	}

	g.HandleConnection(c, conn)
}

// HandleConnection runs the Connect handshake on an established socket and,
// on success, joins the player to the room and starts the message pumps.
// Handshake failures are answered with an Error frame and a close; the exact
// join failure message reaches the client so it can tell a full room from a
// missing one.
func (g *Gateway) HandleConnection(c *gin.Context, conn wsConnection) {
	ctx := c.Request.Context()
	roomID := c.Param("roomId")

	connect, err := readConnectFrame(conn)
	if err != nil {
		logging.Warn(ctx, "websocket handshake failed",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		rejectAndClose(conn, "Expected Connect frame")
		return
	}

	playerID, err := g.tokens.Verify(connect.Token)
	if err != nil {
		logging.Warn(ctx, "websocket token rejected",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		rejectAndClose(conn, "Invalid token")
		return
	}

	if g.limiter != nil {
		if err := g.limiter.CheckWebSocketPlayer(ctx, playerID); err != nil {
			rejectAndClose(conn, "Connection rate limit exceeded")
			return
		}
	}

	profile, ok := g.accounts.GetProfile(playerID)
	if !ok {
		// A signed token whose subject no longer exists gets the same answer
		// as a bad signature.
		logging.Warn(ctx, "token subject has no profile", zap.String("player_id", playerID))
		rejectAndClose(conn, "Invalid token")
		return
	}

	player := protocol.PlayerState{
		PlayerID:  playerID,
		Username:  profile.Username,
		AvatarURL: profile.AvatarURL,
	}
	if err := g.registry.Join(ctx, roomID, player); err != nil {
		rejectAndClose(conn, err.Error())
		return
	}

	// Snapshot after joining so a racing second join is visible to one of the
	// two newcomers; the list still includes us, filtered below.
	occupants := g.registry.Players(roomID)

	client := newClient(conn, g, playerID, roomID, connect.GameID)
	g.mu.Lock()
	g.clients[playerID] = client
	g.mu.Unlock()

	metrics.IncConnection()
	g.registry.BindConnection(playerID, c.ClientIP())
	if connect.GameID != "" {
		g.accounts.RecordPlayedGame(ctx, playerID, connect.GameID)
	}

	g.dispatcher.Broadcast(ctx, roomID, &protocol.PlayerJoined{Player: player}, playerID)

	g.sendTo(client, &protocol.SuccessMessage{Message: "Connected to room " + roomID})
	for _, occupant := range occupants {
		if occupant.PlayerID == playerID {
			continue
		}
		g.sendTo(client, &protocol.PlayerJoined{Player: occupant})
	}

	logging.Info(ctx, "player connected",
		zap.String("player_id", playerID),
		zap.String("room_id", roomID),
		zap.String("game_id", connect.GameID),
	)

	go client.writePump()
	go client.readPump()
}

// handleDisconnect tears down one connection: the registry entry, the voice
// enrollment and the connection binding all go, then remaining occupants hear
// PlayerLeft. Runs exactly once per client, from its readPump defer.
func (g *Gateway) handleDisconnect(c *Client) {
	ctx := context.Background()

	c.beginClose()

	g.mu.Lock()
	if current, ok := g.clients[c.playerID]; ok && current == c {
		delete(g.clients, c.playerID)
	}
	g.mu.Unlock()

	metrics.DecConnection()

	roomID, left := g.registry.Leave(ctx, c.playerID)
	g.voice.Leave(ctx, c.roomID, c.playerID)
	g.registry.UnbindConnection(c.playerID)

	if left {
		g.dispatcher.Broadcast(ctx, roomID, &protocol.PlayerLeft{PlayerID: c.playerID}, c.playerID)
		if _, stillThere := g.registry.GetRoom(roomID); !stillThere {
			g.dispatcher.ForgetRoom(roomID)
		}
	}

	logging.Info(ctx, "player disconnected",
		zap.String("player_id", c.playerID),
		zap.String("room_id", c.roomID),
	)
}

// Shutdown closes every live connection. Each write pump drains its backlog,
// sends a close frame and closes the socket; the read pumps then run the
// normal disconnect path.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	clients := make([]*Client, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	for _, c := range clients {
		c.beginClose()
	}

	logging.Info(ctx, "gateway shut down", zap.Int("connections_closed", len(clients)))
	return nil
}
