package main

import (
	"database/sql"
	"net/http"
	"time"

	"forum-platform/internal/calls"
	"forum-platform/internal/chat"
	"forum-platform/internal/config"
	"forum-platform/internal/httpapi"
	"forum-platform/internal/identity"
	"forum-platform/internal/notifications"
	"forum-platform/internal/realtime"
	"forum-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(
	r *gin.Engine,
	cfg config.Config,
	db *sql.DB,
	resolver *identity.Manager,
	chatSvc *chat.Service,
	callSvc *calls.Service,
	notifySvc *notifications.Service,
	gateway *realtime.Gateway,
) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Realtime gateway. Auth happens inside the handshake (token query
	// param or bearer header), not via middleware, so a rejected socket
	// gets the reject-fast close the clients expect.
	r.GET("/ws", gateway.Handler())

	h := httpapi.Handlers{
		Chat:          chatSvc,
		Calls:         callSvc,
		Notifications: notifySvc,
		Identity:      resolver,
	}

	// protected API group
	v1 := r.Group("/v1")

	// Dev-only token minting; production gets tokens from the external
	// identity provider.
	if !cfg.IsProduction() {
		v1.POST("/auth/token", h.DevToken)
	}

	authed := v1.Group("")
	authed.Use(identity.RequireUser(resolver))
	{
		authed.GET("/me", h.Me)

		chatGroup := authed.Group("/chat")
		{
			chatGroup.GET("/users", h.ListChatUsers)
			chatGroup.GET("/messages/:user_id", h.ListConversation)
		}

		authed.GET("/video-calls/:call_id", h.GetVideoCall)

		authed.POST("/threads/:thread_id/events", h.NotifyThreadEvent)
	}
}
