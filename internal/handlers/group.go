package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-relay/internal/service"
	"chat-relay/internal/telemetry"
)

// GroupHandler exposes read-only group endpoints for clients that are
// not holding a relay connection (initial page load, tooling).
type GroupHandler struct {
	groups   *service.GroupService
	messages *service.MessageService
	audit    *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groups *service.GroupService, messages *service.MessageService, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{groups: groups, messages: messages, audit: audit}
}

// ListGroups handles GET /api/groups.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groups.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": publicError(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// MyGroups handles GET /api/groups/mine.
func (h *GroupHandler) MyGroups(c *gin.Context) {
	userID := c.GetInt("userID")
	groups, err := h.groups.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": publicError(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup handles GET /api/groups/:group_id.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	group, err := h.groups.Get(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": publicError(err)})
		return
	}
	c.JSON(http.StatusOK, group)
}

// ListMembers handles GET /api/groups/:group_id/members.
func (h *GroupHandler) ListMembers(c *gin.Context) {
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	members, err := h.groups.Members(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": publicError(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// GetMessages handles GET /api/groups/:group_id/messages. Members only.
func (h *GroupHandler) GetMessages(c *gin.Context) {
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	member, err := h.groups.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "membership check failed")
		c.JSON(statusFor(err), gin.H{"error": publicError(err)})
		return
	}
	if !member {
		h.emitAudit(c, "WARN", "message history denied")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	limit := service.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	msgs, err := h.messages.History(c.Request.Context(), groupID, limit)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": publicError(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": service.OldestFirst(msgs)})
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func groupIDParam(c *gin.Context) (int, bool) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return 0, false
	}
	return groupID, true
}
