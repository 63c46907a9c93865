package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schoolhub/backend/internal/clients/redis"
	"github.com/schoolhub/backend/internal/content"
	"github.com/schoolhub/backend/internal/db"
	"github.com/schoolhub/backend/internal/handlers"
	"github.com/schoolhub/backend/internal/middleware"
	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/platform/sendgrid"
	"github.com/schoolhub/backend/internal/repos"
	"github.com/schoolhub/backend/internal/server"
	"github.com/schoolhub/backend/internal/services"
	"github.com/schoolhub/backend/internal/sse"
	"github.com/schoolhub/backend/internal/storage"
	"github.com/schoolhub/backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	courseRepo := repos.NewCourseRepo(thePG, log)
	assignmentRepo := repos.NewAssignmentRepo(thePG, log)
	submissionRepo := repos.NewSubmissionRepo(thePG, log)
	articleRepo := repos.NewArticleRepo(thePG, log)
	questionRepo := repos.NewQuestionRepo(thePG, log)
	commentRepo := repos.NewCommentRepo(thePG, log)

	// SSE hub and optional redis bridge
	log.Info("Setting up SSE hub now...")
	hub := sse.NewHub(log)
	var bus sse.EventBus
	if os.Getenv("REDIS_ADDR") != "" {
		redisBus, err := redis.NewBus(log)
		if err != nil {
			log.Warn("Redis bus init failed, running single-instance", "error", err)
		} else {
			defer redisBus.Close()
			if err := redisBus.StartForwarder(context.Background(), hub.Broadcast); err != nil {
				log.Warn("Redis forwarder failed to start", "error", err)
			} else {
				bus = redisBus
			}
		}
	}
	publisher := sse.NewPublisher(log, hub, bus)

	// Services
	log.Info("Setting up services from main...")
	bucketService, err := storage.NewBucketService(log)
	if err != nil {
		log.Error("Could not init BucketService", "error", err)
		os.Exit(1)
	}
	avatarService, err := services.NewAvatarService(log, userRepo, bucketService)
	if err != nil {
		log.Error("Could not init AvatarService", "error", err)
		os.Exit(1)
	}
	authService := services.NewAuthService(
		thePG, log, userRepo, userTokenRepo, avatarService,
		jwtSecretKey,
		time.Duration(accessTokenTTL)*time.Second,
		time.Duration(refreshTokenTTL)*time.Second,
	)
	userService := services.NewUserService(thePG, log, userRepo, userTokenRepo)

	var mailer services.Mailer
	if os.Getenv("SENDGRID_API_KEY") != "" {
		mailClient, err := sendgrid.NewFromEnv(log)
		if err != nil {
			log.Warn("Could not init mail client, grade notifications disabled", "error", err)
		} else {
			mailer = mailClient
		}
	}
	assignmentService := services.NewAssignmentService(
		thePG, log, assignmentRepo, submissionRepo, courseRepo, userRepo, bucketService, mailer,
	)
	socialService := services.NewSocialService(thePG, log, articleRepo, questionRepo, commentRepo)

	// Content manager
	log.Info("Setting up content manager from main...")
	manager := content.NewManager(log, content.NewGormCourseStore(courseRepo), bucketService, publisher)
	if err := manager.Load(context.Background()); err != nil {
		log.Warn("Initial course load failed, list starts empty", "error", err)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(log, userService)
	courseHandler := handlers.NewCourseHandler(log, manager)
	assignmentHandler := handlers.NewAssignmentHandler(log, assignmentService)
	socialHandler := handlers.NewSocialHandler(log, socialService)
	eventsHandler := handlers.NewEventsHandler(log, hub)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	var origins []string
	if raw := os.Getenv("CORS_ALLOW_ORIGINS"); raw != "" {
		origins = strings.Split(raw, ",")
	}
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:       authHandler,
		AuthMiddleware:    authMiddleware,
		UserHandler:       userHandler,
		CourseHandler:     courseHandler,
		AssignmentHandler: assignmentHandler,
		SocialHandler:     socialHandler,
		EventsHandler:     eventsHandler,
		AllowOrigins:      origins,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
