package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-relay/internal/config"
	"chat-relay/internal/db"
	"chat-relay/internal/handlers"
	applog "chat-relay/internal/log"
	"chat-relay/internal/middleware"
	"chat-relay/internal/observability"
	"chat-relay/internal/rabbitmq"
	"chat-relay/internal/repositories"
	"chat-relay/internal/service"
	"chat-relay/internal/session"
	"chat-relay/internal/telemetry"
	"chat-relay/internal/ws"
)

func main() {
	cfg := config.Load()
	applog.Init(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, "chat-relay", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Info().Str("mode", rabbitmq.PublisherMode(publisher)).Msg("audit publisher ready")
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat-relay", "chat-relay", cfg.Env)

	userRepo := repositories.NewUserRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	users := service.NewUserService(userRepo, cfg)
	groups := service.NewGroupService(groupRepo)
	messages := service.NewMessageService(messageRepo, groupRepo)

	sessions := session.NewRegistry()
	hub := ws.NewHub()
	relay := ws.NewRelay(hub, sessions, users, groups, messages, audit)
	wsHandler := ws.NewHandler(hub, relay)

	authHandler := handlers.NewAuthHandler(users, audit)
	groupHandler := handlers.NewGroupHandler(groups, messages, audit)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-relay"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	api := router.Group("/api")
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)
		api.POST("/logout", authMiddleware, authHandler.Logout)

		api.GET("/user", authMiddleware, authHandler.CurrentUser)
		api.PUT("/user", authMiddleware, authHandler.UpdateProfile)
		api.PUT("/user/theme", authMiddleware, authHandler.UpdateTheme)
		api.DELETE("/user", authMiddleware, authHandler.DeleteAccount)

		api.GET("/groups", authMiddleware, groupHandler.ListGroups)
		api.GET("/groups/mine", authMiddleware, groupHandler.MyGroups)
		api.GET("/groups/:group_id", authMiddleware, groupHandler.GetGroup)
		api.GET("/groups/:group_id/members", authMiddleware, groupHandler.ListMembers)
		api.GET("/groups/:group_id/messages", authMiddleware, groupHandler.GetMessages)
	}

	router.GET("/ws", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterDebugRoutes(router, audit, sessions, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("chat-relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
