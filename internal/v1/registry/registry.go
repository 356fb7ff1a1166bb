// Package registry is the authoritative in-memory index of rooms: who is in
// which room, at what pose, over which connection.
//
// One RWMutex guards the room map, the player-to-room reverse index and the
// connection table together, so membership and the reverse index can never
// disagree: a capacity check and the insert it guards happen in the same
// critical section, and a room that empties is deleted before the lock drops.
// The registry performs no network I/O and invokes no callbacks while locked;
// fan-out works from deep copies taken here.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/protocol"
)

// Join failures carry the exact messages clients display.
var (
	ErrRoomNotFound  = errors.New("Room not found")
	ErrRoomFull      = errors.New("Room is full")
	ErrAlreadyInRoom = errors.New("Already in a room")
)

// room is the live record. It never leaves the registry; readers get deep
// copies via Snapshot, Players or Summary.
type room struct {
	id        string
	gameID    string
	hostID    string
	capacity  int
	public    bool
	createdAt int64
	players   []protocol.PlayerState
	index     map[string]int // player id -> position in players
	gameState map[string]string
}

// Snapshot is a deep copy of one room, safe to hold after the lock drops.
type Snapshot struct {
	RoomID     string                 `json:"room_id"`
	GameID     string                 `json:"game_id"`
	HostID     string                 `json:"host_id"`
	MaxPlayers int                    `json:"max_players"`
	Players    []protocol.PlayerState `json:"players"`
	CreatedAt  int64                  `json:"created_at"`
	IsPublic   bool                   `json:"is_public"`
	GameState  map[string]string      `json:"game_state"`
}

// Summary is one row of a lobby listing.
type Summary struct {
	RoomID     string `json:"room_id"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
}

// Stats is the server-wide headcount.
type Stats struct {
	TotalRooms        int `json:"total_rooms"`
	TotalPlayers      int `json:"total_players"`
	ActiveConnections int `json:"active_connections"`
}

// Registry owns every room on this relay.
type Registry struct {
	mu           sync.RWMutex
	rooms        map[string]*room
	playerToRoom map[string]string // player id -> room id
	connections  map[string]string // player id -> remote addr
	now          func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		rooms:        make(map[string]*room),
		playerToRoom: make(map[string]string),
		connections:  make(map[string]string),
		now:          time.Now,
	}
}

func newRoomID() string {
	return "room_" + uuid.NewString()
}

// snapshotLocked deep-copies a room. Caller holds r.mu.
func snapshotLocked(rm *room) Snapshot {
	snap := Snapshot{
		RoomID:     rm.id,
		GameID:     rm.gameID,
		HostID:     rm.hostID,
		MaxPlayers: rm.capacity,
		Players:    make([]protocol.PlayerState, 0, len(rm.players)),
		CreatedAt:  rm.createdAt,
		IsPublic:   rm.public,
		GameState:  make(map[string]string, len(rm.gameState)),
	}
	for _, p := range rm.players {
		snap.Players = append(snap.Players, p.Clone())
	}
	for k, v := range rm.gameState {
		snap.GameState[k] = v
	}
	return snap
}
