package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"careerguide/internal/api/v1/router"
	"careerguide/internal/config"
	"careerguide/internal/logger"

	"github.com/joho/godotenv"
)

// @title CareerGuide Entitlement Gateway API
// @version 1.0
// @description Subscription entitlements, usage estimates and payment status for the career-guidance UI
// @host localhost:8080
// @BasePath /v1
// @Schemes http https

func main() {
	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		l := logger.New()
		l.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		l := logger.New()
		l.Fatal().Msgf("Error loading config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)
	if err := cfg.RequireGateway(); err != nil {
		logger.Fatal().Msgf("Invalid config: %v", err)
	}

	// 2. Build router and its connections
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	r, cleanup, err := router.New(startCtx, cfg, logger)
	cancelStart()
	if err != nil {
		logger.Fatal().Msgf("Failed to build router: %v", err)
	}
	defer cleanup()

	// 3. Create HTTP server. The payment return endpoint polls for up to
	// PaymentPollMaxAttempts intervals, so writes get that long plus slack.
	pollBudget := time.Duration(cfg.PaymentPollMaxAttempts) * cfg.PaymentPollInterval()
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: pollBudget + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 4. Start server in a goroutine
	go func() {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Msgf("Listen: %s", err)
		}
	}()

	// 5. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutdown signal received, exiting...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Msgf("Server forced to shutdown: %v", err)
	}
	logger.Info().Msg("Server shut down gracefully")
}
