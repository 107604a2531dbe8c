package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vhvplatform/go-routine-service/internal/consumer"
	"github.com/vhvplatform/go-routine-service/internal/delivery"
	"github.com/vhvplatform/go-routine-service/internal/handler"
	"github.com/vhvplatform/go-routine-service/internal/metrics"
	"github.com/vhvplatform/go-routine-service/internal/middleware"
	"github.com/vhvplatform/go-routine-service/internal/repository"
	"github.com/vhvplatform/go-routine-service/internal/scheduler"
	"github.com/vhvplatform/go-routine-service/internal/service"
	"github.com/vhvplatform/go-routine-service/internal/shared/config"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
	"github.com/vhvplatform/go-routine-service/internal/shared/mongodb"
	"github.com/vhvplatform/go-routine-service/internal/shared/rabbitmq"
)

func main() {
	// Initialize logger
	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting Routine Service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	// All calendar math happens in the engine timezone
	loc, err := time.LoadLocation(cfg.Engine.Timezone)
	if err != nil {
		log.Fatal("Invalid engine timezone", "error", err, "timezone", cfg.Engine.Timezone)
	}

	// Initialize MongoDB
	mongoClient, err := mongodb.NewMongoClient(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(context.Background())

	// Initialize RabbitMQ
	rabbitMQClient, err := rabbitmq.NewRabbitMQClient(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", "error", err)
	}
	defer rabbitMQClient.Close()

	// Initialize repositories
	templateRepo := repository.NewTemplateRepository(mongoClient)
	generationRepo := repository.NewGenerationRepository(mongoClient)
	taskRepo := repository.NewTaskRepository(mongoClient)
	reminderRepo := repository.NewReminderRepository(mongoClient)
	notificationLogRepo := repository.NewNotificationLogRepository(mongoClient)
	settingsRepo := repository.NewSettingsRepository(mongoClient)
	bindingRepo := repository.NewBindingRepository(mongoClient)

	// Ensure indexes, including the unique generation key index the
	// idempotency guarantee rests on
	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelIndexes()
	type indexedRepo interface {
		EnsureIndexes(ctx context.Context) error
	}
	for _, repo := range []indexedRepo{templateRepo, generationRepo, taskRepo, reminderRepo, notificationLogRepo, settingsRepo, bindingRepo} {
		if err := repo.EnsureIndexes(indexCtx); err != nil {
			log.Fatal("Failed to create indexes", "error", err)
		}
	}

	// Initialize the delivery channel
	chatChannel, err := delivery.NewChatChannel(rabbitMQClient, log)
	if err != nil {
		log.Fatal("Failed to initialize chat channel", "error", err)
	}

	// Initialize services
	plannerService := service.NewPlannerService(settingsRepo, bindingRepo, reminderRepo, loc, log)
	taskService := service.NewTaskService(taskRepo, plannerService, log)
	dispatcherService := service.NewDispatcherService(
		reminderRepo,
		taskRepo,
		settingsRepo,
		bindingRepo,
		notificationLogRepo,
		chatChannel,
		service.DispatcherConfig{
			SendTimeout:        cfg.Engine.SendTimeout,
			DispatchInterval:   cfg.Engine.DispatchInterval,
			OverdueBatchLimit:  cfg.Engine.OverdueBatchLimit,
			OverdueDedupWindow: cfg.Engine.OverdueDedupWindow,
			MaxAttempts:        cfg.Engine.ReminderMaxAttempts,
		},
		loc,
		log,
	)
	generationService := service.NewGenerationService(templateRepo, generationRepo, taskService, dispatcherService, log)

	// Initialize the orchestrator
	orchestrator := scheduler.NewOrchestrator(
		generationService,
		templateRepo,
		dispatcherService,
		generationRepo,
		cfg.Scheduler,
		cfg.Engine.RetentionDays,
		loc,
		log,
	)
	if err := orchestrator.Start(); err != nil {
		log.Fatal("Failed to start orchestrator", "error", err)
	}
	defer orchestrator.Stop()

	// Initialize HTTP handlers
	generationHandler := handler.NewGenerationHandler(generationService, generationRepo, loc, log)
	templateHandler := handler.NewTemplateHandler(templateRepo, log)
	taskHandler := handler.NewTaskHandler(taskService, loc, log)
	settingsHandler := handler.NewSettingsHandler(settingsRepo, bindingRepo, log)
	notificationHandler := handler.NewNotificationHandler(notificationLogRepo, log)
	adminHandler := handler.NewAdminHandler(dispatcherService, orchestrator, log)

	// Initialize rate limiter
	rateLimiter := middleware.NewUserRateLimiter(cfg.RateLimit.PerUser, cfg.RateLimit.Burst)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes with rate limiting
	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimitMiddleware(rateLimiter))
	{
		// Routine templates
		templates := v1.Group("/templates")
		{
			templates.POST("", templateHandler.Create)
			templates.GET("", templateHandler.List)
			templates.GET("/:id", templateHandler.Get)
			templates.PUT("/:id", templateHandler.Update)
			templates.PATCH("/:id/active", templateHandler.SetActive)
			templates.POST("/:id/tasks", templateHandler.AddTask)
			templates.PUT("/:id/tasks/:taskId", templateHandler.UpdateTask)
			templates.DELETE("/:id/tasks/:taskId", templateHandler.RemoveTask)

			// Generation
			templates.POST("/:id/generate", generationHandler.Generate)
			templates.GET("/:id/preview", generationHandler.Preview)
			templates.DELETE("/:id/generation", generationHandler.DeleteGeneration)
		}
		v1.POST("/generate-all", generationHandler.GenerateAll)
		v1.GET("/generations", generationHandler.History)

		// Task instances
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", taskHandler.Create)
			tasks.GET("", taskHandler.List)
			tasks.GET("/:id", taskHandler.Get)
			tasks.PUT("/:id", taskHandler.Update)
			tasks.DELETE("/:id", taskHandler.Delete)
		}

		// Reminder settings and chat binding
		settings := v1.Group("/settings")
		{
			settings.GET("", settingsHandler.Get)
			settings.PUT("", settingsHandler.Update)
			settings.GET("/chat-binding", settingsHandler.GetChatBinding)
			settings.PUT("/chat-binding", settingsHandler.BindChat)
		}

		// Notification history
		notifications := v1.Group("/notifications")
		{
			notifications.GET("", notificationHandler.History)
			notifications.GET("/stats", notificationHandler.Stats)
		}

		// Manual triggers and orchestrator status
		admin := v1.Group("/admin")
		{
			admin.POST("/reminders/process", adminHandler.ProcessPending)
			admin.POST("/reminders/check-overdue", adminHandler.CheckOverdue)
			admin.POST("/reminders/send-summaries", adminHandler.SendSummaries)
			admin.GET("/scheduler/status", adminHandler.SchedulerStatus)
		}
	}

	// Start the task event consumer, restarting on channel loss
	taskEventConsumer := consumer.NewTaskEventConsumer(rabbitMQClient, taskRepo, plannerService, log)
	go func() {
		for {
			if err := taskEventConsumer.Start(); err != nil {
				log.Error("Task event consumer stopped", "error", err)
			}
			metrics.ConsumerRestarts.Inc()
			time.Sleep(5 * time.Second)
		}
	}()

	// Start HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Routine Service started", "port", cfg.Server.Port, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Routine Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Routine Service stopped")
}
