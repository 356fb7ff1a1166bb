package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/accounts"
)

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// authResponse is returned by signup and login: the token plus the profile
// the client renders immediately.
type authResponse struct {
	PlayerID string                 `json:"player_id"`
	Token    string                 `json:"token"`
	Profile  accounts.PublicProfile `json:"profile"`
}

func (h *Handlers) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	profile, err := h.accounts.Signup(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInternal) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		// Validation failures carry their wire message.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tok := h.tokens.Issue(profile.ID)
	h.sessions.Put(tok, profile.ID)
	c.JSON(http.StatusCreated, authResponse{PlayerID: profile.ID, Token: tok, Profile: profile})
}

func (h *Handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	profile, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown email and wrong password are deliberately identical here.
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	tok := h.tokens.Issue(profile.ID)
	h.sessions.Put(tok, profile.ID)
	c.JSON(http.StatusOK, authResponse{PlayerID: profile.ID, Token: tok, Profile: profile})
}

// logout drops the session entry. The token itself stays valid until expiry;
// sessions are bookkeeping, not revocation.
func (h *Handlers) logout(c *gin.Context) {
	h.sessions.Remove(c.GetString(bearerTokenKey))
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
