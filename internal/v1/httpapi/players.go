package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) getPlayer(c *gin.Context) {
	profile, ok := h.accounts.GetProfile(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// avatarRequest distinguishes null (clear the avatar) from a URL.
type avatarRequest struct {
	AvatarURL *string `json:"avatar_url"`
}

func (h *Handlers) updateAvatar(c *gin.Context) {
	var req avatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if !h.accounts.UpdateAvatar(c.Request.Context(), c.GetString(playerIDKey), req.AvatarURL) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Avatar updated"})
}

type friendRequest struct {
	FriendID string `json:"friend_id" binding:"required"`
}

func (h *Handlers) addFriend(c *gin.Context) {
	var req friendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	added := h.accounts.AddFriend(c.Request.Context(), c.GetString(playerIDKey), req.FriendID)
	c.JSON(http.StatusOK, gin.H{"added": added})
}

type gameRequest struct {
	GameID string `json:"game_id" binding:"required"`
}

func (h *Handlers) recordCreatedGame(c *gin.Context) {
	var req gameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	h.accounts.RecordCreatedGame(c.Request.Context(), c.GetString(playerIDKey), req.GameID)
	c.JSON(http.StatusOK, gin.H{"message": "Game recorded"})
}

type achievementRequest struct {
	ID          string `json:"id" binding:"required"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handlers) unlockAchievement(c *gin.Context) {
	var req achievementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	h.accounts.UnlockAchievement(c.Request.Context(), c.GetString(playerIDKey), req.ID, req.Name, req.Description)
	c.JSON(http.StatusOK, gin.H{"message": "Achievement unlocked"})
}
