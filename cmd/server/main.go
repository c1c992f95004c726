package main

import (
	"fmt"
	"log"
	"net/http"

	"hookd/internal/api"
	"hookd/internal/api/handlers"
	"hookd/internal/api/middleware"
	"hookd/internal/engine/analytics"
	"hookd/internal/platform/auth"
	"hookd/internal/platform/config"
	"hookd/internal/platform/database"
	"hookd/internal/platform/repositories"
	"hookd/internal/platform/store"
	"hookd/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Repositories and storage
	userRepo := repositories.NewUserRepository(db)
	kvStore := store.NewSQLiteStore(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	tracker := analytics.NewTracker(cfg.Analytics)

	middleware.Configure(cfg.RateLimit.APIReadPerMinute, cfg.RateLimit.APIWritePerMinute)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, tokenSvc)
	webhookHandler := handlers.NewWebhookHandler(kvStore, tracker, cfg.Pagination)
	healthHandler := handlers.NewHealthHandler(db)
	metricsHandler := handlers.NewMetricsHandler()

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)

	// Router
	deps := &api.Dependencies{
		AuthHandler:    authHandler,
		WebhookHandler: webhookHandler,
		HealthHandler:  healthHandler,
		MetricsHandler: metricsHandler,
		AuthMiddleware: authMiddleware,
	}
	router := api.NewRouter(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
