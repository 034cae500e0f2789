package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tally/internal/config"
	"tally/internal/database"
	"tally/internal/events"
	"tally/internal/handlers"
	"tally/internal/logger"
	"tally/internal/router"
	"tally/internal/services"
	"tally/internal/validator"
)

// @title           Tally API
// @version         1.0
// @description     Tally reconciles weekly budgets against scheduled payments and the transaction ledger, and analyses spending.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig(appConfig)
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("Failed to close database", "error", err)
		}
	}()

	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	publisher := events.New(appConfig.AMQPURL, appConfig.AMQPExchange)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warnw("Failed to close event publisher", "error", err)
		}
	}()

	validator.Register()

	// Initialize services
	db := dbManager.DB()
	opts := services.OptionsFromConfig(appConfig)
	categoryService := services.NewCategoryService(db, appConfig.InstantPaymentCategory)
	if err := categoryService.SeedSystemCategories(context.Background()); err != nil {
		return fmt.Errorf("failed to seed system categories: %w", err)
	}
	accessService := services.NewAccessService(db)
	auditService := services.NewAuditService(db)
	transactionService := services.NewTransactionService(db)
	analyticsService := services.NewAnalyticsService(db, accessService, opts)
	budgetService := services.NewBudgetService(db, accessService, analyticsService, publisher, opts)
	paymentService := services.NewPaymentService(db, accessService, publisher, opts)

	engine := router.New(appConfig, router.Handlers{
		Budget:      handlers.NewBudgetHandler(budgetService, analyticsService, auditService),
		Payment:     handlers.NewPaymentHandler(paymentService, auditService),
		Analytics:   handlers.NewAnalyticsHandler(analyticsService),
		Transaction: handlers.NewTransactionHandler(transactionService, auditService),
		Category:    handlers.NewCategoryHandler(categoryService),
		Pipeline:    handlers.NewPipelineHandler(budgetService, auditService),
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Tally API on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("Server stopped gracefully")
	return nil
}
