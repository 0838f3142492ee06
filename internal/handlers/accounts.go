package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mentor-chat-service/internal/repositories"
)

// SessionIssuer creates bearer tokens for profiles.
type SessionIssuer interface {
	CreateSession(ctx context.Context, profileID string) (string, error)
}

// AccountHandler manages profile registration and session issuance. Identity
// proofing lives upstream; this service only needs a stable profile row and
// a token to key requests by.
type AccountHandler struct {
	profileRepo repositories.ProfileRepository
	sessions    SessionIssuer
	logger      *zap.Logger
}

// NewAccountHandler builds an AccountHandler.
func NewAccountHandler(profileRepo repositories.ProfileRepository, sessions SessionIssuer, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{profileRepo: profileRepo, sessions: sessions, logger: logger}
}

// UpsertProfile registers or refreshes a profile keyed by email.
func (h *AccountHandler) UpsertProfile(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = "user"
	}
	if req.Role != "user" && req.Role != "mentor" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be user or mentor"})
		return
	}

	profile, err := h.profileRepo.UpsertProfile(c.Request.Context(), req.Email, req.DisplayName, req.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// CreateSession issues a bearer token for an existing profile.
func (h *AccountHandler) CreateSession(c *gin.Context) {
	var req struct {
		ProfileID string `json:"profile_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.profileRepo.GetProfile(c.Request.Context(), req.ProfileID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrProfileNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "profile not found"})
		return
	}

	token, err := h.sessions.CreateSession(c.Request.Context(), req.ProfileID)
	if err != nil {
		h.logger.Error("session issuance failed", zap.String("profile_id", req.ProfileID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
