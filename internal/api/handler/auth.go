package handler

import (
	"net/http"

	"tickethub/backend/internal/config"
	"tickethub/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type tokenRequest struct {
	Name string `json:"name" binding:"required"`
}

// IssueClientToken реєструє клієнта та повертає JWT для рукостискання
// шлюзу. Admin tokens are never issued here; those come from the admin CLI.
func (h *Handler) IssueClientToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	user := &models.User{DisplayName: req.Name, Role: models.RoleClient}
	if err := h.Storage.SaveUser(user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	actor := models.Actor{ID: user.ID, DisplayName: user.DisplayName, Role: user.Role}
	token, err := h.Verifier.IssueToken(actor, config.ClientTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": user.ID})
}

// Health is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
