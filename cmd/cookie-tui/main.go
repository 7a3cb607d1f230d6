// Package main runs the cookie game in a terminal against local storage.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/MRamiBalles/CookieClicker/internal/domain/upgrade"
	"github.com/MRamiBalles/CookieClicker/internal/engine"
	"github.com/MRamiBalles/CookieClicker/internal/events"
	"github.com/MRamiBalles/CookieClicker/internal/infra/storage"
	"github.com/MRamiBalles/CookieClicker/internal/platform/config"
	"github.com/MRamiBalles/CookieClicker/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/internal/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("%v", err)
	}

	// The screen owns stdout, so logs only go to a file.
	var logOut io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			config.Exitf("open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	appLogger := logger.New(logOut, logOut)

	catalog, err := upgrade.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		config.Exitf("%v", err)
	}

	backend, err := storage.Open(cfg.StorageDriver, cfg.DBPath)
	if err != nil {
		config.Exitf("open storage: %v", err)
	}
	defer backend.Close()

	var persister events.EventPersister
	if cfg.PersistEvents {
		persister = storage.NewPersisterAdapter(backend.Events, cfg.SaveKey)
	}
	eventLog := events.NewEventLog(persister)
	eventLog.SetWindow(cfg.EventWindow)
	backend.SetEventLimit(cfg.EventWindow)

	gameEngine := engine.NewEngine(engine.Config{
		Catalog:      catalog,
		SaveKey:      cfg.SaveKey,
		TickInterval: cfg.TickInterval,
		SaveInterval: cfg.SaveInterval,
	}, backend.Saves, eventLog, appLogger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := gameEngine.Load(ctx); err != nil {
		appLogger.Warnf("Starting fresh, saved game unreadable: %v", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		config.Exitf("create screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		config.Exitf("init screen: %v", err)
	}
	defer screen.Fini()

	var sound tui.Sound = tui.Silent{}
	if !cfg.Mute {
		if b, err := tui.NewBeeper(); err != nil {
			appLogger.Warnf("Sound disabled: %v", err)
		} else {
			sound = b
		}
	}
	defer sound.Close()

	app := tui.NewApp(screen, gameEngine, sound, appLogger)
	gameEngine.Subscribe(app.Observer())
	gameEngine.Start(ctx)

	if err := app.Run(ctx); err != nil {
		appLogger.Errorf("Terminal app stopped: %v", err)
	}
}
