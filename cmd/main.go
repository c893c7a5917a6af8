package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"home-services/realtime-service/internal/config"
	"home-services/realtime-service/internal/handler"
	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/realtime"
	"home-services/realtime-service/internal/repository"
	"home-services/realtime-service/internal/repository/memory"
	"home-services/realtime-service/internal/services"
	"home-services/realtime-service/internal/utils"
	"home-services/realtime-service/internal/utils/mongodb"
)

func main() {
	// 1. Context and shutdown manager
	baseCtx := context.Background()
	ctx, shutdownManager := utils.NewShutdownManager(baseCtx)
	shutdownManager.StartListening()

	// 2. Configuration and logging
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.Server)

	// 3. Redis
	redisClient, err := utils.NewRedisClient(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	shutdownManager.Register(func(ctx context.Context) error {
		log.Info().Msg("[SHUTDOWN] Closing Redis connection...")
		return redisClient.Close()
	})

	// 4. Attachment store, optional
	var attachments services.AttachmentStore
	if cfg.Minio.Endpoint != "" {
		minioClient, err := utils.NewMinioClient(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL, cfg.Minio.Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MinIO")
		}
		attachments = utils.NewMinioAttachmentStore(minioClient, cfg.Minio.Bucket, cfg.Minio.PublicURL)
	} else {
		log.Warn().Msg("MINIO_ENDPOINT is not set, inline attachments are disabled")
	}

	// 5. Credential verification
	var verifier services.TokenVerifier
	switch {
	case cfg.Auth.ServiceURL != "":
		verifier = utils.NewAuthClient(cfg.Auth.ServiceURL)
	case cfg.Auth.JWTSecret != "":
		verifier = utils.NewJWTUtil(cfg.Auth.JWTSecret, redisClient)
	default:
		log.Fatal().Msg("either AUTH_SERVICE_URL or JWT_SECRET must be set")
	}
	authenticator := services.NewSessionAuthenticator(verifier)

	// 6. Repositories
	repos := openRepositories(ctx, cfg, shutdownManager)

	// 7. Realtime registry and cross-instance bus
	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := realtime.NewMetrics(metricsRegistry)

	bus := realtime.NewRedisBus(redisClient.Client(), realtime.DefaultBusChannel)
	registry := realtime.NewRegistry(cfg.Realtime.InstanceID, bus, metrics)

	busCtx, stopBus := context.WithCancel(ctx)
	go bus.Run(busCtx, registry.HandleBusMessage)

	// 8. Services
	tasks := services.NewTaskRunner(256)
	taskCtx, stopTaskLog := context.WithCancel(context.Background())
	go tasks.LogErrors(taskCtx)

	authz := services.NewAuthorizationEngine(repos.conversations, repos.messages, repos.engagements, repos.support)
	notificationService := services.NewNotificationService(repos.notifications, repos.users, registry, tasks)
	chatService := services.NewChatService(repos.conversations, repos.messages, authz, attachments, notificationService, registry, tasks)
	supportService := services.NewSupportService(repos.support, repos.users, authz, attachments, notificationService, registry, tasks)

	subscriber := services.NewEventSubscriber(notificationService, chatService, redisClient.Client())
	subCtx, stopSubscriber := context.WithCancel(ctx)
	go subscriber.Start(subCtx)

	// 9. Gateway and routes
	gateway := realtime.NewGateway(cfg.Realtime, authenticator, registry, realtime.NewRouter(registry, chatService, notificationService, supportService), metrics)

	notificationHandler := handler.NewNotificationHandler(notificationService)
	conversationHandler := handler.NewConversationHandler(chatService)
	supportHandler := handler.NewSupportHandler(supportService)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": registry.ConnectionCount()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})))
	router.GET("/ws", gin.WrapH(gateway))

	authMiddleware := handler.AuthMiddleware(authenticator)
	agentsOnly := handler.RoleMiddleware(models.RoleAdmin)

	notifications := router.Group("/api/notifications", authMiddleware)
	{
		notifications.GET("", notificationHandler.GetNotifications)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.PUT("/read-all", notificationHandler.MarkAllAsRead)
		notifications.PUT("/:id/read", notificationHandler.MarkAsRead)
		notifications.DELETE("/:id", notificationHandler.Delete)
		notifications.POST("/send", agentsOnly, notificationHandler.Send)
		notifications.POST("/admins", agentsOnly, notificationHandler.SendToAdmins)
	}

	conversations := router.Group("/api/conversations", authMiddleware)
	{
		conversations.GET("", conversationHandler.ListConversations)
		conversations.POST("", agentsOnly, conversationHandler.CreateConversation)
		conversations.GET("/:id/messages", conversationHandler.GetMessages)
		conversations.GET("/:id/messages/search", conversationHandler.SearchMessages)
	}

	support := router.Group("/api/support/tickets", authMiddleware)
	{
		support.POST("", supportHandler.CreateTicket)
		support.GET("", supportHandler.GetTickets)
		support.GET("/:id", supportHandler.GetTicket)
		support.GET("/:id/messages", supportHandler.GetMessages)
		support.PUT("/:id/assign", agentsOnly, supportHandler.AssignTicket)
		support.PATCH("/:id/status", agentsOnly, supportHandler.UpdateStatus)
	}

	// 10. HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("instance", registry.Origin()).Msg("Realtime service running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	shutdownManager.Register(func(ctx context.Context) error {
		log.Info().Msg("[SHUTDOWN] Waiting for background tasks...")
		done := make(chan struct{})
		go func() {
			tasks.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
		stopTaskLog()
		return nil
	})

	shutdownManager.Register(func(ctx context.Context) error {
		log.Info().Msg("[SHUTDOWN] Stopping redis subscribers...")
		stopSubscriber()
		stopBus()
		return nil
	})

	shutdownManager.Register(func(ctx context.Context) error {
		log.Info().Msg("[SHUTDOWN] Closing websocket connections...")
		return gateway.Shutdown(ctx)
	})

	shutdownManager.Register(func(ctx context.Context) error {
		log.Info().Msg("[SHUTDOWN] Shutting down HTTP server...")
		return server.Shutdown(ctx)
	})

	<-shutdownManager.Done()
}

type repositories struct {
	conversations services.ConversationRepository
	messages      services.MessageRepository
	support       services.SupportRepository
	notifications services.NotificationRepository
	engagements   services.EngagementRepository
	users         services.UserDirectory
}

func openRepositories(ctx context.Context, cfg *config.Config, shutdownManager *utils.ShutdownManager) repositories {
	if cfg.Server.StoreBackend == "memory" {
		log.Warn().Msg("STORE_BACKEND=memory, nothing will be persisted")
		return repositories{
			conversations: memory.NewConversations(),
			messages:      memory.NewMessages(),
			support:       memory.NewSupport(),
			notifications: memory.NewNotifications(),
			engagements:   memory.NewEngagements(),
			users:         memory.NewUsers(),
		}
	}

	mongoClient, err := mongodb.NewMongoDBConnection(cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	db := mongoClient.Database(cfg.MongoDB.DBName)

	shutdownManager.Register(func(ctx context.Context) error {
		log.Info().Msg("[SHUTDOWN] Closing MongoDB connection...")
		return mongoClient.Disconnect(ctx)
	})

	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	supportRepo := repository.NewSupportRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	indexCtx, indexCancel := context.WithTimeout(ctx, 30*time.Second)
	defer indexCancel()
	for name, ensure := range map[string]func(context.Context) error{
		"conversations": conversationRepo.EnsureIndexes,
		"messages":      messageRepo.EnsureIndexes,
		"support":       supportRepo.EnsureIndexes,
		"notifications": notificationRepo.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			log.Fatal().Err(err).Str("collection", name).Msg("Failed to create indexes")
		}
	}

	return repositories{
		conversations: conversationRepo,
		messages:      messageRepo,
		support:       supportRepo,
		notifications: notificationRepo,
		engagements:   repository.NewEngagementRepository(db),
		users:         repository.NewUserRepository(db),
	}
}

func setupLogger(cfg config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
