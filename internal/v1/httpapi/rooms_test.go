package httpapi

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/protocol"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/registry"
)

func TestCreateRoom(t *testing.T) {
	a := newTestAPI(t)
	hostID, tok := a.signupPlayer(t, "alice")

	w := a.do(t, http.MethodPost, "/api/v1/rooms", gin.H{"game_id": "game_1", "capacity": 4}, tok)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		RoomID string `json:"room_id"`
	}
	decodeJSON(t, w, &resp)
	assert.True(t, strings.HasPrefix(resp.RoomID, "room_"))

	// The creator hosts but does not occupy a slot.
	snapshot, ok := a.registry.GetRoom(resp.RoomID)
	require.True(t, ok)
	assert.Equal(t, hostID, snapshot.HostID)
	assert.Equal(t, 4, snapshot.MaxPlayers)
	assert.Empty(t, snapshot.Players)
	assert.True(t, snapshot.IsPublic)
}

func TestCreateRoom_Rejections(t *testing.T) {
	a := newTestAPI(t)
	_, tok := a.signupPlayer(t, "alice")

	tests := []struct {
		name     string
		payload  gin.H
		bearer   string
		wantCode int
	}{
		{"zero capacity", gin.H{"game_id": "game_1", "capacity": 0}, tok, http.StatusBadRequest},
		{"negative capacity", gin.H{"game_id": "game_1", "capacity": -2}, tok, http.StatusBadRequest},
		{"missing game_id", gin.H{"capacity": 4}, tok, http.StatusBadRequest},
		{"no bearer", gin.H{"game_id": "game_1", "capacity": 4}, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, http.MethodPost, "/api/v1/rooms", tt.payload, tt.bearer)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestListRooms_FiltersFullAndOtherGames(t *testing.T) {
	a := newTestAPI(t)
	_, tok := a.signupPlayer(t, "alice")
	ctx := context.Background()

	w := a.do(t, http.MethodPost, "/api/v1/rooms", gin.H{"game_id": "game_a", "capacity": 4}, tok)
	require.Equal(t, http.StatusCreated, w.Code)
	var open struct {
		RoomID string `json:"room_id"`
	}
	decodeJSON(t, w, &open)

	// A second game_a room, filled to capacity through the registry.
	fullID := a.registry.CreateRoom(ctx, "game_a", "user_host", 1)
	require.NoError(t, a.registry.Join(ctx, fullID, protocol.PlayerState{PlayerID: "user_occupant", Username: "occupant"}))

	a.registry.CreateRoom(ctx, "game_b", "user_host", 4)

	w = a.do(t, http.MethodGet, "/api/v1/rooms?game_id=game_a", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Rooms []registry.Summary `json:"rooms"`
	}
	decodeJSON(t, w, &resp)
	require.Len(t, resp.Rooms, 1)
	assert.Equal(t, open.RoomID, resp.Rooms[0].RoomID)

	w = a.do(t, http.MethodGet, "/api/v1/rooms", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "game_id is required")
}

func TestGetRoom(t *testing.T) {
	a := newTestAPI(t)
	_, tok := a.signupPlayer(t, "alice")

	w := a.do(t, http.MethodPost, "/api/v1/rooms", gin.H{"game_id": "game_1", "capacity": 2}, tok)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		RoomID string `json:"room_id"`
	}
	decodeJSON(t, w, &created)

	w = a.do(t, http.MethodGet, "/api/v1/rooms/"+created.RoomID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot registry.Snapshot
	decodeJSON(t, w, &snapshot)
	assert.Equal(t, created.RoomID, snapshot.RoomID)
	assert.Equal(t, "game_1", snapshot.GameID)

	w = a.do(t, http.MethodGet, "/api/v1/rooms/room_missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Room not found")
}

func TestVoiceJoinAndLeave(t *testing.T) {
	a := newTestAPI(t)
	playerID, tok := a.signupPlayer(t, "alice")

	w := a.do(t, http.MethodPost, "/api/v1/rooms/room_1/voice/join", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{playerID}, a.voice.Members("room_1"))

	w = a.do(t, http.MethodPost, "/api/v1/rooms/room_1/voice/leave", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, a.voice.Members("room_1"))

	// Leaving a channel you are not in is a quiet success.
	w = a.do(t, http.MethodPost, "/api/v1/rooms/room_1/voice/leave", nil, tok)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodPost, "/api/v1/rooms/room_1/voice/join", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
