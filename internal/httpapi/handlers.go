package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"forum-platform/internal/calls"
	"forum-platform/internal/chat"
	"forum-platform/internal/identity"
	"forum-platform/internal/notifications"
	"forum-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Chat          *chat.Service
	Calls         *calls.Service
	Notifications *notifications.Service
	Identity      *identity.Manager
}

// Me echoes the authenticated identity.
func (h Handlers) Me(c *gin.Context) {
	id, ok := identity.FromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":      id.UserID,
		"displayName": id.DisplayName,
		"handle":      id.Handle,
	})
}

// ListChatUsers returns everyone except the caller, for the partner picker.
func (h Handlers) ListChatUsers(c *gin.Context) {
	id, ok := identity.FromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	users, err := h.Chat.ListChatUsers(c.Request.Context(), id.UserID)
	if err != nil {
		logger.FromGin(c).Error("list chat users", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// ListConversation returns message history with one other user, oldest first.
func (h Handlers) ListConversation(c *gin.Context) {
	id, ok := identity.FromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	otherID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || otherID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id must be a positive integer"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	msgs, err := h.Chat.ListConversation(c.Request.Context(), id.UserID, otherID, limit)
	if err != nil {
		logger.FromGin(c).Error("list conversation", "other_user_id", otherID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// videoCallResponse carries explicit null timestamps rather than omitting
// them, which is what polling clients key reconciliation on.
type videoCallResponse struct {
	ID            string     `json:"id"`
	CallerID      int64      `json:"callerId"`
	RecipientID   int64      `json:"recipientId"`
	CallerName    string     `json:"callerName"`
	RecipientName string     `json:"recipientName"`
	Status        string     `json:"status"`
	StartedAt     *time.Time `json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt"`
}

// GetVideoCall returns one call record by id.
func (h Handlers) GetVideoCall(c *gin.Context) {
	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call id is required"})
		return
	}

	call, err := h.Calls.Get(c.Request.Context(), callID)
	if errors.Is(err, calls.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("get video call", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": videoCallResponse{
		ID:            call.ID,
		CallerID:      call.CallerID,
		RecipientID:   call.RecipientID,
		CallerName:    call.CallerName,
		RecipientName: call.RecipientName,
		Status:        string(call.Status),
		StartedAt:     call.StartedAt,
		EndedAt:       call.EndedAt,
	}})
}

type threadEventRequest struct {
	Type notifications.Type `json:"type" binding:"required"`
}

// NotifyThreadEvent records a reply or like on a thread and fans the
// notification out to the author. Called by the forum service after the
// reply or like row lands; the actor is the authenticated caller.
func (h Handlers) NotifyThreadEvent(c *gin.Context) {
	id, ok := identity.FromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	threadID, err := strconv.ParseInt(c.Param("thread_id"), 10, 64)
	if err != nil || threadID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "thread_id must be a positive integer"})
		return
	}

	var req threadEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	switch req.Type {
	case notifications.TypeReplyOnThread:
		err = h.Notifications.NotifyReply(c.Request.Context(), threadID, id.UserID)
	case notifications.TypeLikeOnThread:
		err = h.Notifications.NotifyLike(c.Request.Context(), threadID, id.UserID)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
		return
	}

	if errors.Is(err, notifications.ErrThreadNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("thread event notify", "thread_id", threadID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

type devTokenRequest struct {
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
}

// DevToken mints a gateway token without the external identity provider.
// Routes must only mount this outside production.
func (h Handlers) DevToken(c *gin.Context) {
	if h.Identity == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "identity not configured"})
		return
	}
	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	tok, err := h.Identity.Issue(time.Now(), identity.Identity{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		Handle:      req.Handle,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}
