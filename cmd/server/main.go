package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"offline-sync-engine/internal/api"
	"offline-sync-engine/internal/cache"
	"offline-sync-engine/internal/config"
	"offline-sync-engine/internal/connectivity"
	"offline-sync-engine/internal/logger"
	"offline-sync-engine/internal/remote"
	"offline-sync-engine/internal/store"
	"offline-sync-engine/internal/sync"
)

func main() {
	// Load Config
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Init Logger
	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Log.Info("Starting offline sync engine")

	// Open local store
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		logger.Log.Fatal("Failed to open local store", zap.Error(err))
	}
	defer db.Close()

	queueStore := store.NewQueueStore(db)
	cacheStore := store.NewCacheStore(db)

	// Connectivity monitor
	var source connectivity.Source
	if cfg.Connectivity.ProbeURL != "" {
		source = connectivity.NewHTTPSource(cfg.Connectivity.ProbeURL)
	}
	monitor := connectivity.NewMonitor(source, connectivity.Config{
		PollInterval: cfg.Connectivity.GetPollInterval(),
		Optimistic:   cfg.Connectivity.Optimistic,
	})
	monitor.Start()
	defer monitor.Stop()

	// Remote backend and executor
	backend := remote.NewHTTPBackend(cfg.Remote.BaseURL, cfg.Remote.AuthToken, cfg.Remote.GetTimeout())
	executor := sync.NewExecutor(backend, queueStore, sync.RetryPolicy{
		InitialDelay:      cfg.Sync.GetInitialDelay(),
		BackoffMultiplier: cfg.Sync.BackoffMultiplier,
		MaxAttempts:       cfg.Sync.MaxAttempts,
	})

	// Read cache
	readCache := cache.New(cacheStore, cfg.Cache.GetDefaultTTL())

	// Sync coordinator
	coordinator := sync.NewCoordinator(queueStore, executor, monitor, readCache, cfg.Sync.GetRetryInterval())
	coordinator.Start()

	// Periodic sweep
	scheduler := sync.NewScheduler(cfg.Scheduler, coordinator)
	scheduler.Start()

	// Init API
	handler := api.NewHandler(coordinator, cfg.Server.CorsOrigins)
	router := handler.Routes()

	// Start Server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down...")
	scheduler.Stop()
	coordinator.Stop()
}
