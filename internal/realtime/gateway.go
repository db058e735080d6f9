package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"forum-platform/internal/calls"
	"forum-platform/internal/chat"
	"forum-platform/internal/identity"
	"forum-platform/internal/presence"
	"forum-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const connSlotTTL = 24 * time.Hour

// GatewayDeps wires the gateway's collaborators.
type GatewayDeps struct {
	Log      *slog.Logger
	Resolver identity.Resolver
	Presence *presence.Registry
	Hub      *Hub
	Chat     *chat.Service
	Calls    *calls.Service

	// Redis enables the cross-process per-user connection cap. Nil disables
	// the cap (single-process or degraded deployments).
	Redis           *redis.Client
	MaxConnsPerUser int

	AllowedOrigins []string
}

// Gateway accepts websocket connections, authenticates them against the
// identity resolver, and dispatches inbound events to the direct-messaging
// and call-signaling handlers.
type Gateway struct {
	log      *slog.Logger
	resolver identity.Resolver
	presence *presence.Registry
	hub      *Hub
	chat     *chat.Service
	calls    *calls.Service

	rdb             *redis.Client
	maxConnsPerUser int

	upgrader websocket.Upgrader
}

func NewGateway(d GatewayDeps) *Gateway {
	g := &Gateway{
		log:             d.Log,
		resolver:        d.Resolver,
		presence:        d.Presence,
		hub:             d.Hub,
		chat:            d.Chat,
		calls:           d.Calls,
		rdb:             d.Redis,
		maxConnsPerUser: d.MaxConnsPerUser,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(d.AllowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		// Local/dev posture; production config requires an explicit list.
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser client
		}
		for _, a := range allowed {
			if strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}
}

// Handler upgrades an authenticated request to a websocket connection.
//
// The handshake is reject-fast: a missing token, a resolver failure, or a
// non-positive resolved user id terminates the attempt before the upgrade,
// with no retry.
func (g *Gateway) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := handshakeToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		id, err := g.resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			g.log.Warn("handshake identity resolution failed", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !id.Valid() {
			g.log.Warn("handshake resolved invalid user id", "user_id", id.UserID)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if ok := g.acquireConnSlot(c.Request.Context(), id.UserID); !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "connection limit reached"})
			return
		}

		conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			g.log.Warn("websocket upgrade failed", "err", err)
			g.releaseConnSlot(id.UserID)
			return
		}

		client := &Client{
			id:          uuid.NewString(),
			userID:      id.UserID,
			displayName: id.DisplayName,
			handle:      id.Handle,
			conn:        conn,
			send:        make(chan []byte, sendBufferSize),
			handlers:    g.handlerTable(),
			onClose:     g.handleDisconnect,
		}
		client.log = g.log.With("conn_id", client.id, "user_id", client.userID)

		g.hub.Register(client, NotificationsRoom(id.UserID), DMRoom(id.UserID))
		g.presence.AddConnection(id.UserID, client.id)
		g.broadcastPresence()

		client.log.Info("client connected",
			"connections", g.presence.ConnectionCount(id.UserID))
		client.start()
	}
}

func handshakeToken(c *gin.Context) string {
	if t := strings.TrimSpace(c.Query("token")); t != "" {
		return t
	}
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(raw, "Bearer ") {
		return strings.TrimPrefix(raw, "Bearer ")
	}
	return ""
}

// handlerTable builds the per-connection dispatch table. One table per
// connection keeps dispatch free of shared mutable state.
func (g *Gateway) handlerTable() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		EventDMSend:   g.handleDMSend,
		EventDMTyping: g.handleDMTyping,

		EventCallInitiate: g.handleCallInitiate,
		EventCallAccept:   g.handleCallAccept,
		EventCallReject:   g.handleCallReject,
		EventCallEnd:      g.handleCallEnd,

		EventSignalOffer:  g.relaySignal(EventSignalOffer),
		EventSignalAnswer: g.relaySignal(EventSignalAnswer),
		EventSignalICE:    g.relaySignal(EventSignalICE),
	}
}

func (g *Gateway) handleDisconnect(c *Client) {
	g.presence.RemoveConnection(c.userID, c.id)
	g.broadcastPresence()
	g.releaseConnSlot(c.userID)
	g.hub.Unregister(c)
	c.log.Info("client disconnected",
		"connections", g.presence.ConnectionCount(c.userID))
}

// broadcastPresence pushes the full online-id list to every connected
// client. Full refresh, not a delta: costs bandwidth, eliminates
// delta-ordering bugs.
func (g *Gateway) broadcastPresence() {
	g.hub.EmitAll(EventPresenceUpdate, presencePayload{
		OnlineUserIDs: g.presence.OnlineUserIDs(),
	})
}

/* ===================== CONNECTION CAP ===================== */

func connSlotKey(userID int64) string {
	return fmt.Sprintf("rt:conns:user:%d", userID)
}

// acquireConnSlot enforces the per-user device cap through redis. Redis
// being unreachable fails open: capping is protection, not correctness.
func (g *Gateway) acquireConnSlot(ctx context.Context, userID int64) bool {
	if g.rdb == nil || g.maxConnsPerUser <= 0 {
		return true
	}
	ok, err := utils.AcquireConnSlot(ctx, g.rdb, connSlotKey(userID), g.maxConnsPerUser, connSlotTTL)
	if err != nil {
		g.log.Warn("conn slot acquire failed, allowing connection", "user_id", userID, "err", err)
		return true
	}
	if !ok {
		g.log.Info("connection rejected by per-user cap", "user_id", userID)
	}
	return ok
}

func (g *Gateway) releaseConnSlot(userID int64) {
	if g.rdb == nil || g.maxConnsPerUser <= 0 {
		return
	}
	if err := utils.ReleaseConnSlot(context.Background(), g.rdb, connSlotKey(userID)); err != nil {
		g.log.Warn("conn slot release failed", "user_id", userID, "err", err)
	}
}
