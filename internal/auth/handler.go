package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	issuer *Issuer
	logger *zap.Logger
}

func NewHandler(issuer *Issuer, logger *zap.Logger) *Handler {
	return &Handler{issuer: issuer, logger: logger}
}

// Me echoes the authenticated session.
func (h *Handler) Me(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
		return
	}
	c.JSON(http.StatusOK, session)
}

type issueTokenRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Email    string `json:"email"`
	UserType string `json:"user_type" binding:"required,oneof=client professional"`
}

// IssueToken signs a token for the posted identity. Development only.
func (h *Handler) IssueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.issuer.Issue(Session{UserID: req.UserID, Email: req.Email, UserType: req.UserType})
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "token_type": "Bearer", "expires_in": int(h.issuer.ttl.Seconds())})
}
