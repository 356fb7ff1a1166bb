package registry

import (
	"context"

	"go.uber.org/zap"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/metrics"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/protocol"
)

// --- Room lifecycle ---

// CreateRoom registers a new public room and returns its id. The host is not
// placed in the room; hosts join over the data plane like everyone else.
func (r *Registry) CreateRoom(ctx context.Context, gameID, hostID string, maxPlayers int) string {
	rm := &room{
		id:        newRoomID(),
		gameID:    gameID,
		hostID:    hostID,
		capacity:  maxPlayers,
		public:    true,
		createdAt: r.now().UTC().Unix(),
		index:     make(map[string]int),
		gameState: make(map[string]string),
	}

	r.mu.Lock()
	r.rooms[rm.id] = rm
	r.mu.Unlock()

	metrics.ActiveRooms.Inc()
	metrics.RoomOccupancy.WithLabelValues(rm.id).Set(0)

	logging.Info(ctx, "room created",
		zap.String("room_id", rm.id),
		zap.String("game_id", gameID),
		zap.String("host_id", hostID),
		zap.Int("max_players", maxPlayers),
	)
	return rm.id
}

// Join places a player into a room. The capacity check, the membership
// append and the reverse-index insert share one critical section; a player
// already in any room is rejected before capacity is consumed.
func (r *Registry) Join(ctx context.Context, roomID string, player protocol.PlayerState) error {
	r.mu.Lock()

	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	if _, inRoom := r.playerToRoom[player.PlayerID]; inRoom {
		r.mu.Unlock()
		return ErrAlreadyInRoom
	}
	if len(rm.players) >= rm.capacity {
		r.mu.Unlock()
		return ErrRoomFull
	}

	rm.index[player.PlayerID] = len(rm.players)
	rm.players = append(rm.players, player.Clone())
	r.playerToRoom[player.PlayerID] = roomID
	occupancy := len(rm.players)

	r.mu.Unlock()

	metrics.RoomOccupancy.WithLabelValues(roomID).Set(float64(occupancy))

	logging.Info(ctx, "player joined room",
		zap.String("room_id", roomID),
		zap.String("player_id", player.PlayerID),
		zap.Int("occupancy", occupancy),
	)
	return nil
}

// Leave removes a player from whatever room they are in and reports which
// room that was. A room left empty is deleted in the same critical section.
// Leaving while not in a room is a no-op.
func (r *Registry) Leave(ctx context.Context, playerID string) (string, bool) {
	r.mu.Lock()

	roomID, ok := r.playerToRoom[playerID]
	if !ok {
		r.mu.Unlock()
		return "", false
	}
	delete(r.playerToRoom, playerID)

	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		logging.Error(ctx, "reverse index pointed at missing room",
			zap.String("room_id", roomID),
			zap.String("player_id", playerID),
		)
		return "", false
	}

	rm.removePlayerLocked(playerID)
	occupancy := len(rm.players)
	deleted := occupancy == 0
	if deleted {
		delete(r.rooms, roomID)
	}

	r.mu.Unlock()

	if deleted {
		metrics.ActiveRooms.Dec()
		metrics.RoomOccupancy.DeleteLabelValues(roomID)
		logging.Info(ctx, "room deleted (empty)", zap.String("room_id", roomID))
	} else {
		metrics.RoomOccupancy.WithLabelValues(roomID).Set(float64(occupancy))
		logging.Info(ctx, "player left room",
			zap.String("room_id", roomID),
			zap.String("player_id", playerID),
		)
	}
	return roomID, true
}

// removePlayerLocked drops one player and keeps join order for the rest.
// Caller holds r.mu.
func (rm *room) removePlayerLocked(playerID string) {
	pos, ok := rm.index[playerID]
	if !ok {
		return
	}
	delete(rm.index, playerID)
	copy(rm.players[pos:], rm.players[pos+1:])
	rm.players = rm.players[:len(rm.players)-1]
	for i := pos; i < len(rm.players); i++ {
		rm.index[rm.players[i].PlayerID] = i
	}
}

// --- Player state ---

// UpdatePose replaces a player's transform in place and reports their room.
// Poses are opaque; nothing is validated or normalized.
func (r *Registry) UpdatePose(playerID string, transform protocol.PlayerTransform) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.playerToRoom[playerID]
	if !ok {
		return "", false
	}
	rm, ok := r.rooms[roomID]
	if !ok {
		return "", false
	}
	pos, ok := rm.index[playerID]
	if !ok {
		return "", false
	}
	rm.players[pos].Transform = transform
	return roomID, true
}

// Players returns a deep copy of a room's occupants in join order.
// Missing rooms yield an empty slice.
func (r *Registry) Players(roomID string) []protocol.PlayerState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]protocol.PlayerState, 0, len(rm.players))
	for _, p := range rm.players {
		out = append(out, p.Clone())
	}
	return out
}

// --- Lookup ---

// GetRoom returns a deep copy of the room.
func (r *Registry) GetRoom(roomID string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotLocked(rm), true
}

// FindRooms lists public rooms for a game that still have space.
func (r *Registry) FindRooms(gameID string) []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Summary
	for _, rm := range r.rooms {
		if rm.gameID != gameID || !rm.public || len(rm.players) >= rm.capacity {
			continue
		}
		out = append(out, Summary{
			RoomID:     rm.id,
			Players:    len(rm.players),
			MaxPlayers: rm.capacity,
		})
	}
	return out
}

// SetGameState writes one key of a room's free-form state map.
func (r *Registry) SetGameState(ctx context.Context, roomID, key, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	rm.gameState[key] = value
	return true
}

// --- Connections ---

// BindConnection records the remote address serving a player's socket.
func (r *Registry) BindConnection(playerID, remoteAddr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[playerID] = remoteAddr
}

// UnbindConnection forgets a player's socket. Idempotent.
func (r *Registry) UnbindConnection(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, playerID)
}

// --- Stats ---

// GetStats counts rooms, players and live connections in one consistent view.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	players := 0
	for _, rm := range r.rooms {
		players += len(rm.players)
	}
	return Stats{
		TotalRooms:        len(r.rooms),
		TotalPlayers:      players,
		ActiveConnections: len(r.connections),
	}
}
