package main

import (
	"context"
	"log"

	"salon-chat/config"
	"salon-chat/internal/events"
	"salon-chat/internal/gateway"
	"salon-chat/internal/handler"
	"salon-chat/internal/redis"
	"salon-chat/internal/repository"
	"salon-chat/internal/server"
	"salon-chat/internal/services"
	"salon-chat/internal/storage"
	"salon-chat/internal/typing"
	"salon-chat/pkg/database"
	"salon-chat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)

	database.Connect(cfg)
	defer database.Close()

	if err := database.ApplyRawMigrations("migrations"); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redis.Initialize(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	redisClient := redis.GetClient()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	convRepo := repository.NewConversationRepository(database.DB)
	msgRepo := repository.NewMessageRepository(database.DB)

	publisher := events.NewRedisPublisher(redisClient)
	subscriber := events.NewRedisSubscriber(redisClient)

	authService := services.NewAuthService(cfg)
	convService := services.NewConversationService(convRepo)
	msgService := services.NewMessageService(msgRepo, convRepo, publisher, l)
	msgService.SetRateLimiter(redis.NewRateLimiter(redisClient, redis.DefaultRateLimitConfig()))
	msgService.SetHistoryLimit(cfg.HistoryLimit)

	var attachmentService *services.AttachmentService
	if cfg.S3Bucket != "" {
		s3Client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PresignTTL: cfg.PresignTTL(),
		})
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
		attachmentService = services.NewAttachmentService(s3Client)
	}

	typingStore := redis.NewTypingStore(redisClient, cfg.TypingWindow())
	coordinator := typing.NewCoordinator(cfg.TypingWindow(), typingStore, publisher, l)

	hub := gateway.NewHub(gateway.NewWSLogger())
	go hub.Run(ctx)

	bridge := gateway.NewBridge(hub, subscriber, msgService)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			l.Errorf("bus bridge stopped: %s", err)
		}
	}()

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Conversation: handler.NewConversationHandler(convService, msgService),
		Attachment:   handler.NewAttachmentHandler(convService, attachmentService),
		WebSocket:    gateway.NewHandler(hub, authService, convService, msgService, coordinator),
	}, authService)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
