package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"mentor-chat-service/internal/attachments"
	"mentor-chat-service/internal/auth"
	"mentor-chat-service/internal/changefeed"
	"mentor-chat-service/internal/config"
	"mentor-chat-service/internal/db"
	"mentor-chat-service/internal/handlers"
	"mentor-chat-service/internal/middleware"
	"mentor-chat-service/internal/notify"
	"mentor-chat-service/internal/observability"
	"mentor-chat-service/internal/repositories"
	"mentor-chat-service/internal/ws"
)

const serviceName = "mentor-chat-service"

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	database, err := db.Connect(cfg.DBDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	feed, err := changefeed.New(cfg.DBDSN, logger)
	if err != nil {
		logger.Fatal("failed to open change feed", zap.Error(err))
	}
	go feed.Run(ctx)

	publisher := notify.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	dispatcher := notify.NewDispatcher(publisher, "notifications.message", serviceName, cfg.Env)

	tokens := auth.NewTokenStore(cfg.RedisURL, cfg.SessionTTL, logger)
	defer tokens.Close()

	store, err := attachments.NewStore(cfg.MinioURL, cfg.MinioUser, cfg.MinioPassword, cfg.MinioBucket, cfg.MinioPublicURL, logger)
	if err != nil {
		logger.Warn("attachment storage unavailable", zap.Error(err))
	}

	convRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	profileRepo := repositories.NewProfileRepo(database)

	hub := ws.NewHub()
	defer hub.CloseAll()

	inboxHandler := handlers.NewInboxHandler(convRepo, messageRepo, profileRepo, dispatcher, logger)
	accountHandler := handlers.NewAccountHandler(profileRepo, tokens, logger)

	socketHandler := ws.NewConversationSocketHandler(hub, convRepo, messageRepo, profileRepo, feed, dispatcher, tokens, logger)
	socketHandler.ReloadBackoff = cfg.ReloadBackoff

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware(serviceName))

	authMiddleware := middleware.Auth(tokens)

	router.POST("/profiles", accountHandler.UpsertProfile)
	router.POST("/sessions", accountHandler.CreateSession)

	router.GET("/conversations", authMiddleware, inboxHandler.ListConversations)
	router.POST("/conversations/start", authMiddleware, inboxHandler.StartConversation)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, inboxHandler.GetMessages)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, inboxHandler.PostMessage)
	router.POST("/conversations/:conversation_id/read", authMiddleware, inboxHandler.MarkRead)

	if store != nil {
		attachmentHandler := handlers.NewAttachmentHandler(store)
		router.POST("/attachments/presign", authMiddleware, attachmentHandler.Presign)
	}

	router.GET("/ws/conversations/:conversation_id", socketHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("listening", zap.String("port", cfg.ServerPort))
	if err := router.Run(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
