package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	GameID   string `json:"game_id" binding:"required"`
	Capacity int    `json:"capacity"`
}

// createRoom opens a lobby. The creator is its host but is NOT placed inside;
// players enter by connecting to the room's WebSocket.
func (h *Handlers) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Capacity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Capacity must be at least 1"})
		return
	}

	roomID := h.registry.CreateRoom(c.Request.Context(), req.GameID, c.GetString(playerIDKey), req.Capacity)
	c.JSON(http.StatusCreated, gin.H{"room_id": roomID})
}

func (h *Handlers) listRooms(c *gin.Context) {
	gameID := c.Query("game_id")
	if gameID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game_id is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": h.registry.FindRooms(gameID)})
}

func (h *Handlers) getRoom(c *gin.Context) {
	snapshot, ok := h.registry.GetRoom(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// joinVoice enrolls the caller in the room's voice channel. Enrollment is not
// checked against room membership; clients join voice before or after
// entering the room as they please.
func (h *Handlers) joinVoice(c *gin.Context) {
	h.voice.Join(c.Request.Context(), c.Param("id"), c.GetString(playerIDKey))
	c.JSON(http.StatusOK, gin.H{"message": "Joined voice channel"})
}

func (h *Handlers) leaveVoice(c *gin.Context) {
	h.voice.Leave(c.Request.Context(), c.Param("id"), c.GetString(playerIDKey))
	c.JSON(http.StatusOK, gin.H{"message": "Left voice channel"})
}
