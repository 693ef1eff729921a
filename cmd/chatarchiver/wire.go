package main

import (
	"context"
	"fmt"
	"time"

	"chatarchiver/internal/archiver"
	"chatarchiver/internal/browser"
	"chatarchiver/internal/bus"
	"chatarchiver/internal/config"
	"chatarchiver/internal/download"
	"chatarchiver/internal/extractor"
	"chatarchiver/internal/page"
	"chatarchiver/internal/settings"
)

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	source   page.Source
	bridge   *browser.Bridge
	store    *settings.SQLiteStore
	events   *bus.EventBus
	router   *bus.Router
	archiver *archiver.Archiver
}

func newBridge(cfg *config.Config) *browser.Bridge {
	return browser.NewBridge(browser.BridgeConfig{
		ProfileDir:  cfg.Page.ProfileDir,
		RemoteURL:   cfg.Page.RemoteURL,
		PageURL:     cfg.Page.URL,
		HostPattern: cfg.Page.HostPattern,
		Headless:    cfg.Page.Headless,
		Timeout:     time.Duration(cfg.Page.TimeoutSeconds) * time.Second,
		Settle:      time.Duration(cfg.Page.SettleMillis) * time.Millisecond,
		Logger:      logger,
	})
}

// activeURL reports the page the panel is looking at.
func activeURL(cfg *config.Config, bridge *browser.Bridge) func(context.Context) (string, error) {
	if cfg.Page.Source == config.SourceFile || bridge == nil {
		return func(context.Context) (string, error) { return cfg.Page.URL, nil }
	}
	return bridge.ActiveURL
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	switch cfg.Page.Source {
	case config.SourceFile:
		a.source = page.FileSource{Path: cfg.Page.File, URL: cfg.Page.URL}
	default:
		a.bridge = newBridge(cfg)
		a.source = a.bridge
	}

	store, err := settings.NewSQLiteStore(cfg.Settings.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("settings store: %w", err)
	}
	a.store = store

	a.events = bus.NewEventBus(logger)
	a.router = bus.NewRouter(logger)
	a.archiver = archiver.New(archiver.Config{
		Source:      a.source,
		HostPattern: cfg.Page.HostPattern,
		Extractor: extractor.New(extractor.Config{
			PrimarySelectors:  cfg.Extractor.PrimarySelectors,
			FallbackSelectors: cfg.Extractor.FallbackSelectors,
			MinFallbackLength: cfg.Extractor.MinFallbackLength,
			Logger:            logger,
		}),
		Downloader:  download.NewDirDownloader(download.Config{Dir: cfg.Download.Dir, Logger: logger}),
		Settings:    store,
		Events:      a.events,
		Logger:      logger,
	})
	a.archiver.Register(a.router)
	return a, nil
}

func (a *app) Close() {
	a.archiver.Close()
	a.router.Close()
	if err := a.store.Close(); err != nil {
		logger.Warn("close settings store", "err", err)
	}
}
