package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/persona-chat-go/internal/config"
	"github.com/persona-chat-go/internal/handlers"
	"github.com/persona-chat-go/internal/i18n"
	"github.com/persona-chat-go/internal/middleware"
	"github.com/persona-chat-go/internal/services/ai"
	"github.com/persona-chat-go/internal/services/persona"
	"github.com/persona-chat-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting persona chat gateway...")

	// Only report whether the key is present, never its value
	log.WithFields(logrus.Fields{
		"env":     cfg.Upstream.APIKeyEnv,
		"present": os.Getenv(cfg.Upstream.APIKeyEnv) != "",
	}).Info("Completion provider key checked")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize persona
	p, err := persona.Load(&cfg.Persona, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load persona")
	}

	// Initialize AI service
	aiService := ai.NewClient(&cfg.Upstream, log)

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)
	rateLimiter.StartJanitor(ctx, cfg.RateLimit.CleanupInterval)

	// Initialize i18n
	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Initialize metrics
	metrics := middleware.NewMetrics()

	var metricsServer *http.Server
	if cfg.Monitoring.Metrics.Enabled {
		metricsServer = middleware.NewMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path)
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	// Initialize handlers
	chatHandler := handlers.NewChatHandler(
		&cfg.Upstream,
		aiService,
		p,
		rateLimiter,
		localizer,
		metrics,
		log,
	)
	router := handlers.NewRouter(&cfg.Server, chatHandler, metrics, localizer, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":  cfg.Server.Port,
			"path":  cfg.Server.ChatPath,
			"model": cfg.Upstream.Model,
		}).Info("Listening for chat requests")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Start periodic tasks
	go startPeriodicTasks(ctx, rateLimiter, metrics, log)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan
	log.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to shut down HTTP server")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Failed to shut down metrics server")
		}
	}

	// Cancel context to stop all goroutines
	cancel()

	log.Info("Gateway stopped")
}

// startPeriodicTasks publishes the rate table size
func startPeriodicTasks(ctx context.Context, limiter middleware.RateLimiter, metrics *middleware.Metrics, log *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			size := limiter.Size()
			metrics.SetRateTableEntries(size)
			log.WithField("entries", size).Debug("Rate table size")
		}
	}
}
