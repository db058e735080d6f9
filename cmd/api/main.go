package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forum-platform/internal/calls"
	"forum-platform/internal/chat"
	"forum-platform/internal/config"
	"forum-platform/internal/identity"
	"forum-platform/internal/notifications"
	"forum-platform/internal/presence"
	"forum-platform/internal/realtime"
	"forum-platform/pkg/logger"
	"forum-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	resolver, err := identity.NewManager(cfg.Auth)
	if err != nil {
		log.Error("identity init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis is optional at startup: without it the gateway runs with
	// process-local delivery and no cross-process connection caps.
	var rdb *redis.Client
	if r, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()}); err != nil {
		log.Warn("redis unavailable, realtime degraded to process-local delivery", "err", err)
	} else {
		rdb = r
		defer rdb.Close()
	}

	chatSvc := chat.NewService(chat.NewPostgresRepo(db))
	callSvc := calls.NewService(calls.NewPostgresRepo(db))
	reg := presence.NewRegistry()

	hub := realtime.NewHub(logger.Component(log, "realtime-hub"))

	if cfg.Realtime.EnableBackplane && rdb != nil {
		bp, err := realtime.NewRedisBackplane(rootCtx, rdb, "", logger.Component(log, "backplane"))
		if err != nil {
			log.Warn("backplane unavailable, falling back to process-local delivery", "err", err)
		} else {
			hub.AttachBackplane(bp)
			go bp.Run(hub.HandleRemote)
			defer bp.Close()
		}
	}

	gateway := realtime.NewGateway(realtime.GatewayDeps{
		Log:             logger.Component(log, "gateway"),
		Resolver:        resolver,
		Presence:        reg,
		Hub:             hub,
		Chat:            chatSvc,
		Calls:           callSvc,
		Redis:           rdb,
		MaxConnsPerUser: cfg.Realtime.MaxConnsPerUser,
		AllowedOrigins:  cfg.Realtime.AllowedOrigins,
	})

	notifySvc := notifications.NewService(notifications.NewPostgresRepo(db), hub)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, cfg, db, resolver, chatSvc, callSvc, notifySvc, gateway)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Long-lived websocket connections are exempt from these by the
		// hijack in the upgrade; they bound only plain HTTP handlers.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
