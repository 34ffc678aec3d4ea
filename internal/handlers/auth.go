package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-relay/internal/service"
	"chat-relay/internal/telemetry"
)

// AuthHandler manages registration, login and profile endpoints.
type AuthHandler struct {
	users *service.UserService
	audit *telemetry.AuditEmitter
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users *service.UserService, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{users: users, audit: audit}
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username    string  `json:"username" binding:"required"`
		Password    string  `json:"password" binding:"required"`
		Email       *string `json:"email"`
		AvatarColor string  `json:"avatarColor"`
		Theme       string  `json:"theme"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password, req.Email, req.AvatarColor, req.Theme)
	if err != nil {
		h.emitAudit(c, "ERROR", "registration failed")
		c.JSON(statusFor(err), gin.H{"error": publicError(err)})
		return
	}

	h.emitAudit(c, "INFO", "user registered")
	c.JSON(http.StatusCreated, user)
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.emitAudit(c, "WARN", "login rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username or password"})
			return
		}
		h.emitAudit(c, "ERROR", "login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	h.emitAudit(c, "INFO", "user logged in")
	c.JSON(http.StatusOK, result)
}

// Logout handles POST /api/logout. Tokens are stateless, so this only records
// the event; the client discards its token.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.emitAudit(c, "INFO", "user logged out")
	c.Status(http.StatusOK)
}

// CurrentUser handles GET /api/user.
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	userID := c.GetInt("userID")
	user, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": publicError(err)})
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles PUT /api/user.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID := c.GetInt("userID")

	var patch service.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, patch)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": publicError(err)})
		return
	}

	h.emitAudit(c, "INFO", "profile updated")
	c.JSON(http.StatusOK, user)
}

// UpdateTheme handles PUT /api/user/theme.
func (h *AuthHandler) UpdateTheme(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Theme string `json:"theme" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.UpdateTheme(c.Request.Context(), userID, req.Theme)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": publicError(err)})
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteAccount handles DELETE /api/user.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	userID := c.GetInt("userID")
	if err := h.users.Delete(c.Request.Context(), userID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": publicError(err)})
		return
	}
	h.emitAudit(c, "INFO", "account deleted")
	c.Status(http.StatusOK)
}

func (h *AuthHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
