package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type queueRequest struct {
	GameID string `json:"game_id" binding:"required"`
}

func (h *Handlers) enqueueMatch(c *gin.Context) {
	var req queueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	depth := h.queue.Enqueue(c.Request.Context(), req.GameID, c.GetString(playerIDKey))
	c.JSON(http.StatusOK, gin.H{"queued": true, "depth": depth})
}

func (h *Handlers) dequeueMatch(c *gin.Context) {
	removed := h.queue.Dequeue(c.Request.Context(), c.Param("gameId"), c.GetString(playerIDKey))
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

type matchRequest struct {
	GameID string `json:"game_id" binding:"required"`
	Size   int    `json:"size"`
}

// tryMatch pops a cohort if the queue holds one. A formed cohort gets a room
// sized to fit, hosted by its first (longest-waiting) member; the players
// connect to it themselves.
func (h *Handlers) tryMatch(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Size < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Size must be at least 1"})
		return
	}

	players, ok := h.queue.TryMatch(c.Request.Context(), req.GameID, req.Size)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"matched": false})
		return
	}

	roomID := h.registry.CreateRoom(c.Request.Context(), req.GameID, players[0], len(players))
	c.JSON(http.StatusOK, gin.H{
		"matched": true,
		"room_id": roomID,
		"players": players,
	})
}
