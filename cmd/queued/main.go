package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"campus-queue-backend/config"
	"campus-queue-backend/internal/api"
	"campus-queue-backend/internal/db"
	"campus-queue-backend/internal/dispatch"
	"campus-queue-backend/internal/gate"
	"campus-queue-backend/internal/notification"
	"campus-queue-backend/internal/realtime"
	"campus-queue-backend/internal/snapshot"
	"campus-queue-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "queued ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Auth.JWTSecret == "" {
		logger.Fatalf("auth.jwt_secret must be configured")
	}
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire the engine: store, snapshot builder, broadcast hub, dispatch.
	appStore := store.NewGormStore(gormDB)
	builder := snapshot.NewBuilder(appStore)
	hub := realtime.NewHub(builder)
	accessGate := gate.New(appStore)

	emailSender := notification.NewGomailSender(&cfg.SMTP)
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions, emailSender)
	workerPool.Start(ctx)

	scope := store.PolicyScope(cfg.Policy.SingleTicketScope)
	dispatcher := dispatch.NewService(appStore, scope, hub, workerPool)
	logger.Printf("dispatch engine initialized (single ticket scope: %s)", scope)

	// Initialize router
	handler := api.NewHandler(appStore, dispatcher, builder, hub, accessGate, &webpushOptions)
	router := api.NewRouter(handler, api.RouterConfig{
		JWTSecret:       cfg.Auth.JWTSecret,
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
