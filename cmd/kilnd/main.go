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

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kilnworks-backend/config"
	"kilnworks-backend/internal/api"
	"kilnworks-backend/internal/db"
	"kilnworks-backend/internal/firing"
	"kilnworks-backend/internal/notification"
	"kilnworks-backend/internal/store"
	"kilnworks-backend/internal/upstream"
)

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = lvl
	if lvl.Level() == zap.DebugLevel {
		cfg.Development = true
		cfg.Encoding = "console"
	}
	return cfg.Build()
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath), zap.String("backend", cfg.Backend.Mode))

	if logger.Level() > zap.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Kiln registration and push subscriptions need kiln rows in the local
	// database, so they are only served when the database is the backend.
	// The remote backend runs without opening a database at all.
	var (
		appStore      store.Store
		backend       firing.Backend
		kilns         api.KilnCreator
		subscriptions api.SubscriptionStore
	)
	remote := cfg.Backend.Mode == config.BackendModeRemote
	if remote {
		backend = upstream.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger.Named("upstream"))
		logger.Info("using remote backend", zap.String("base_url", cfg.Backend.BaseURL))
	} else {
		gormDB, err := db.Init(&cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to initialize database", zap.Error(err))
		}
		appStore = store.NewGormStore(gormDB, logger.Named("store"))
		backend, kilns, subscriptions = appStore, appStore, appStore
	}

	var webpushOptions *webpush.Options
	var notifier firing.CompletionNotifier
	switch {
	case remote:
		logger.Info("remote backend in use, completion notifications are disabled")
	case cfg.Push.Enabled():
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, logger)
		pool.Start(ctx)
		notifier = pool
	default:
		logger.Warn("VAPID keys not configured, completion notifications are disabled")
	}

	coordinator := firing.NewCoordinator(backend, notifier, logger.Named("firing"))
	handler := api.NewHandler(coordinator, kilns, subscriptions, webpushOptions, logger.Named("api"))
	router := api.NewRouter(handler, cfg.Server, cfg.Auth, logger.Named("http"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("server gracefully stopped")
}
