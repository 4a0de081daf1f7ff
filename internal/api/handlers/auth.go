// Package handlers provides HTTP handlers for the MachineHub API.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/machinehub/machinehub/internal/auth"
	"github.com/machinehub/machinehub/internal/models"
	"github.com/rs/zerolog"
)

// UserStore defines the interface for user persistence operations.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthHandler handles authentication-related HTTP endpoints.
type AuthHandler struct {
	sessions  *auth.SessionStore
	userStore UserStore
	logger    zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sessions *auth.SessionStore, userStore UserStore, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:  sessions,
		userStore: userStore,
		logger:    logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterRoutes registers auth routes on the given router group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/me", h.Me)
}

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response for a successful login.
type LoginResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

// Login authenticates a user with username and password.
//
// @Summary Login
// @Description Authenticates with username and password, creating a session cookie.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userStore.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		h.logger.Debug().Str("username", req.Username).Msg("user not found for login")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.logger.Debug().Str("user_id", user.ID.String()).Msg("password verification failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	sessionUser := &auth.SessionUser{
		ID:              user.ID,
		Username:        user.Username,
		Role:            string(user.Role),
		AuthenticatedAt: time.Now().UTC(),
	}

	if err := h.sessions.SetUser(c.Request, c.Writer, sessionUser); err != nil {
		h.logger.Error().Err(err).Msg("failed to save user to session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		return
	}

	h.logger.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Msg("user authenticated")

	c.JSON(http.StatusOK, LoginResponse{
		ID:       user.ID,
		Username: user.Username,
		Role:     string(user.Role),
	})
}

// Logout terminates the user session.
//
// @Summary Logout
// @Description Terminates the current user session and clears the session cookie
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if sessionUser, err := h.sessions.GetUser(c.Request); err == nil {
		h.logger.Info().
			Str("user_id", sessionUser.ID.String()).
			Msg("user logging out")
	}

	if err := h.sessions.ClearUser(c.Request, c.Writer); err != nil {
		h.logger.Error().Err(err).Msg("failed to clear session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// MeResponse is the response for the /auth/me endpoint.
type MeResponse struct {
	ID              uuid.UUID `json:"id"`
	Username        string    `json:"username"`
	Role            string    `json:"role"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

// Me returns the current authenticated user.
//
// @Summary Get current user
// @Tags Auth
// @Produce json
// @Success 200 {object} MeResponse
// @Failure 401 {object} map[string]string
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	sessionUser, err := h.sessions.GetUser(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		ID:              sessionUser.ID,
		Username:        sessionUser.Username,
		Role:            sessionUser.Role,
		AuthenticatedAt: sessionUser.AuthenticatedAt,
	})
}
