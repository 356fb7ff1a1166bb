package httpapi

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/accounts"
)

func TestGetPlayer(t *testing.T) {
	a := newTestAPI(t)
	playerID, _ := a.signupPlayer(t, "alice")

	w := a.do(t, http.MethodGet, "/api/v1/players/"+playerID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var profile accounts.PublicProfile
	decodeJSON(t, w, &profile)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, "alice@example.com", profile.Email)

	w = a.do(t, http.MethodGet, "/api/v1/players/user_missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Player not found")
}

func TestUpdateAvatar_SetAndClear(t *testing.T) {
	a := newTestAPI(t)
	playerID, tok := a.signupPlayer(t, "alice")

	w := a.do(t, http.MethodPut, "/api/v1/me/avatar", gin.H{"avatar_url": "https://cdn.example.com/alice.png"}, tok)
	require.Equal(t, http.StatusOK, w.Code)

	profile, ok := a.accounts.GetProfile(playerID)
	require.True(t, ok)
	require.NotNil(t, profile.AvatarURL)
	assert.Equal(t, "https://cdn.example.com/alice.png", *profile.AvatarURL)

	// Explicit null clears it.
	w = a.do(t, http.MethodPut, "/api/v1/me/avatar", gin.H{"avatar_url": nil}, tok)
	require.Equal(t, http.StatusOK, w.Code)

	profile, ok = a.accounts.GetProfile(playerID)
	require.True(t, ok)
	assert.Nil(t, profile.AvatarURL)
}

func TestAddFriend(t *testing.T) {
	a := newTestAPI(t)
	_, aliceToken := a.signupPlayer(t, "alice")
	bobID, _ := a.signupPlayer(t, "bob")

	w := a.do(t, http.MethodPost, "/api/v1/me/friends", gin.H{"friend_id": bobID}, aliceToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"added":true`)

	// The edge is recorded once.
	w = a.do(t, http.MethodPost, "/api/v1/me/friends", gin.H{"friend_id": bobID}, aliceToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"added":false`)

	w = a.do(t, http.MethodPost, "/api/v1/me/friends", gin.H{}, aliceToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordCreatedGame(t *testing.T) {
	a := newTestAPI(t)
	playerID, tok := a.signupPlayer(t, "alice")

	w := a.do(t, http.MethodPost, "/api/v1/me/games", gin.H{"game_id": "game_sculpt"}, tok)
	require.Equal(t, http.StatusOK, w.Code)

	profile, ok := a.accounts.GetProfile(playerID)
	require.True(t, ok)
	assert.Equal(t, []string{"game_sculpt"}, profile.GamesCreated)
}

func TestUnlockAchievement_NotDeduplicated(t *testing.T) {
	a := newTestAPI(t)
	playerID, tok := a.signupPlayer(t, "alice")

	payload := gin.H{"id": "ach_first_step", "name": "First Step", "description": "Enter a room"}
	for i := 0; i < 2; i++ {
		w := a.do(t, http.MethodPost, "/api/v1/me/achievements", payload, tok)
		require.Equal(t, http.StatusOK, w.Code)
	}

	// Achievements do not appear in the public profile; check the record.
	for _, player := range a.accounts.Snapshot() {
		if player.ID == playerID {
			assert.Len(t, player.Achievements, 2)
			assert.Equal(t, "First Step", player.Achievements[0].Name)
		}
	}
}
