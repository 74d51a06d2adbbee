package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courier/config"
	"courier/internal/handler"
	"courier/internal/middleware"
	"courier/internal/redis"
	"courier/internal/repository"
	"courier/internal/server"
	"courier/internal/services"
	"courier/pkg/database"
	"courier/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	defer l.Sync()
	logger.SetGlobalLogger(l)

	// Connect to Database
	database.Connect(cfg)
	defer database.Close()

	if err := database.Migrate(database.DB); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	// Redis: cache + pub/sub
	redis.Initialize(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	redisClient := redis.GetClient()

	cacheTTL := time.Duration(cfg.CacheTTLSec) * time.Second
	cache := redis.NewCacheStore(redisClient, redis.CacheConfig{
		UnreadTTL:       cacheTTL,
		ConversationTTL: cacheTTL,
	})
	publisher := redis.NewPublisher(redisClient)
	subscriber := redis.NewSubscriber(redisClient)

	// Repositories
	userRepo := repository.NewUserRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	notificationRepo := repository.NewNotificationRepository(database.DB)

	// Services
	authService := services.NewAuthService(userRepo, cfg)
	userService := services.NewUserService(database.DB, userRepo, cache, publisher)
	messageService := services.NewMessageService(database.DB, messageRepo, userRepo, cache, publisher, cfg.UnreadBatchSize)
	notificationService := services.NewNotificationService(notificationRepo)

	// WebSocket hub for live event delivery
	hub := server.NewHub(subscriber, l)
	go hub.Run()
	defer hub.Stop()

	// Handlers
	authHandler := handler.NewAuthHandler(authService, userService)
	userHandler := handler.NewUserHandler(userService)
	messageHandler := handler.NewMessageHandler(messageService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	wsHandler := server.NewWebSocketHandler(hub, authService)

	if cfg.AppMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(l))
	r.Use(middleware.ErrorHandler(l))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		authorized := api.Group("")
		authorized.Use(middleware.AuthMiddleware(authService))
		{
			authorized.GET("/users/me", userHandler.Me)
			authorized.DELETE("/users/me", userHandler.Delete)

			messages := authorized.Group("/messages")
			{
				messages.POST("", messageHandler.Send)
				messages.PUT("/:id", messageHandler.Edit)
				messages.GET("/:id/history", messageHandler.History)
				messages.GET("/unread", messageHandler.Unread)
				messages.GET("/unread/count", messageHandler.UnreadCount)
				messages.GET("/unread/by-sender", messageHandler.UnreadBySender)
				messages.POST("/read", messageHandler.MarkRead)
			}

			authorized.GET("/conversations/:user_id", messageHandler.Conversation)

			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", notificationHandler.List)
				notifications.POST("/read", notificationHandler.MarkRead)
				notifications.GET("/unread/count", notificationHandler.UnreadCount)
			}
		}

		api.GET("/ws", wsHandler.Handle)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.AppPort),
		Handler: r,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}
