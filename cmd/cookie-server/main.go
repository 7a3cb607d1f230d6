// Package main is the entry point for the cookie game server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MRamiBalles/CookieClicker/internal/domain/upgrade"
	"github.com/MRamiBalles/CookieClicker/internal/engine"
	"github.com/MRamiBalles/CookieClicker/internal/events"
	"github.com/MRamiBalles/CookieClicker/internal/infra/storage"
	"github.com/MRamiBalles/CookieClicker/internal/network"
	"github.com/MRamiBalles/CookieClicker/internal/platform/config"
	"github.com/MRamiBalles/CookieClicker/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/internal/platform/metrics"
)

const shutdownTimeout = 5 * time.Second

func main() {
	log.Println("[COOKIE-SERVER] Initializing authoritative cookie server...")

	cfg, err := config.Load()
	if err != nil {
		config.Exitf("%v", err)
	}

	appLogger := logger.NewLogger()
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			config.Exitf("open log file: %v", err)
		}
		defer f.Close()
		appLogger = logger.New(f, f)
	}

	catalog, err := upgrade.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		config.Exitf("%v", err)
	}

	appLogger.Infof("Opening %s storage...", cfg.StorageDriver)
	backend, err := storage.Open(cfg.StorageDriver, cfg.DBPath)
	if err != nil {
		appLogger.Errorf("Failed to initialize storage: %v", err)
		os.Exit(1)
	}
	defer backend.Close()

	collector := metrics.Get()

	appLogger.Info("Bootstrapping EventLog...")
	var persister events.EventPersister
	var reconstructor *storage.Reconstructor
	if cfg.PersistEvents {
		persister = storage.NewPersisterAdapter(backend.Events, cfg.SaveKey).WithMetrics(collector)
		reconstructor = storage.NewReconstructor(backend.Events)
	}
	eventLog := events.NewEventLog(persister)
	eventLog.SetWindow(cfg.EventWindow)
	backend.SetEventLimit(cfg.EventWindow)
	eventLog.OnPersistError(func(e events.GameEvent, err error) {
		appLogger.Errorf("Failed to persist %s event %s: %v", e.Type, e.ID, err)
	})

	appLogger.Info("Bootstrapping Engine...")
	gameEngine := engine.NewEngine(engine.Config{
		Catalog:      catalog,
		SaveKey:      cfg.SaveKey,
		TickInterval: cfg.TickInterval,
		SaveInterval: cfg.SaveInterval,
		Metrics:      collector,
	}, backend.Saves, eventLog, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gameEngine.Load(ctx); err != nil {
		// A broken save must not stop the server; play resumes from the current state.
		appLogger.Warnf("Continuing without saved progress: %v", err)
	}

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(gameEngine, network.HubConfig{
		SendBuffer:     cfg.ClientSendBuffer,
		MaxMessageSize: cfg.MaxMessageSize,
		AllowAnyOrigin: cfg.AllowAnyOrigin,
		Metrics:        collector,
	}, appLogger)
	gameEngine.Subscribe(hub.Observer())
	go hub.Run(ctx)

	gameEngine.Start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWs)
	network.NewControlAPI(gameEngine, appLogger).RegisterRoutes(mux)
	network.NewLedgerAPI(eventLog, reconstructor, cfg.SaveKey, appLogger).RegisterRoutes(mux)
	mux.HandleFunc("/metrics", collector.Handler())
	mux.HandleFunc("/metrics/prometheus", collector.PrometheusHandler())

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Printf("[COOKIE-SERVER] HTTP API & WS Server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[COOKIE-SERVER] Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[COOKIE-SERVER] Shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warnf("HTTP shutdown: %v", err)
	}
	cancel()
	if err := gameEngine.RequestSave(shutdownCtx); err != nil {
		appLogger.Errorf("Final save failed: %v", err)
	}
}
