// Package main provides the entry point for the COCO Annotator application.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"coco-annotator/internal/app"
	"coco-annotator/internal/backend"
	"coco-annotator/internal/config"
	"coco-annotator/internal/logging"
	"coco-annotator/internal/metrics"
	"coco-annotator/internal/session"
	"coco-annotator/internal/version"
	"coco-annotator/ui/canvas"
	"coco-annotator/ui/mainwindow"
	"coco-annotator/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
	"go.uber.org/zap"
)

const appID = "io.github.coco-annotator"

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	imageID := flag.Int("image", 0, "image id to open; defaults to the last opened image")
	hotReload := flag.Bool("hot-reload", false, "offer a restart when the binary is rebuilt")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting", zap.String("version", version.String()), zap.String("backend", cfg.Backend.URL))

	if err := run(cfg, *configPath, *imageID, *hotReload, logger); err != nil {
		logger.Fatal("annotator failed", zap.Error(err))
	}
}

func run(cfg *config.Config, configPath string, imageID int, hotReload bool, logger *zap.Logger) error {
	collector := metrics.New("annotator")

	client, err := backend.New(backend.Options{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
		Breaker: cfg.Backend.Breaker,
		Logger:  logger.Named("backend"),
		Metrics: collector,
	})
	if err != nil {
		return err
	}

	loop := canvas.NewLoop(logger.Named("loop"))
	defer loop.Stop()

	s, err := session.New(session.Options{
		Backend:     client,
		Logger:      logger.Named("session"),
		Metrics:     collector,
		MarginX:     cfg.Viewport.MarginX,
		MarginY:     cfg.Viewport.MarginY,
		UndoMax:     cfg.Undo.MaxItems,
		Preferences: cfg.Tools,
		Shortcuts:   cfg.Shortcuts,
		Async:       loop.Async,
	})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      newStatusRouter(collector, s, loop, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("status server listening", zap.String("address", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	a := fyneapp.NewWithID(appID)
	a.Settings().SetTheme(app.NewTheme())
	win := mainwindow.New(a, s, loop, prefs.Load(), logger.Named("ui"))

	if configPath != "" {
		watcher := config.NewWatcher(configPath, cfg, logger.Named("config"))
		watcher.OnChange(func(next *config.Config) {
			applyConfig(s, loop, next, logger)
			win.SyncShortcuts()
		})
		if err := watcher.Start(); err != nil {
			logger.Warn("config hot reload disabled", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	if hotReload {
		setupHotReload(win, loop, logger)
	}

	if imageID == 0 {
		if last, ok := win.LastImage(); ok {
			imageID = last
		}
	}
	if imageID > 0 {
		loop.Do(func() { s.LoadAsync(imageID) })
	}

	win.ShowAndRun()
	return nil
}

// applyConfig installs the reloadable parts of a new configuration.
func applyConfig(s *session.Session, loop *canvas.Loop, cfg *config.Config, logger *zap.Logger) {
	loop.Do(func() {
		s.ApplyPreferences(cfg.Tools)
		sc := s.Shortcuts()
		sc.Restore()
		for name, key := range cfg.Shortcuts {
			if err := sc.Set(session.Action(name), key); err != nil {
				logger.Warn("ignoring shortcut", zap.String("action", name), zap.Error(err))
			}
		}
	})
}

// setupHotReload offers a restart when the binary is rebuilt.
func setupHotReload(win *mainwindow.MainWindow, loop *canvas.Loop, logger *zap.Logger) {
	reloader, err := app.NewHotReloader(logger.Named("hotreload"))
	if err != nil {
		logger.Warn("hot reload unavailable", zap.Error(err))
		return
	}
	reloader.OnNewBinary(func() {
		dialog.ShowConfirm("New Version Available",
			"The application binary has been updated.\nRestart now?",
			func(restart bool) {
				if !restart {
					reloader.ResetBaseline()
					if err := reloader.Start(); err != nil {
						logger.Warn("hot reload restart watch", zap.Error(err))
					}
					return
				}
				win.SavePreferences()
				loop.Stop()
				if err := reloader.Restart(); err != nil {
					logger.Error("restart failed", zap.Error(err))
				}
			}, win)
	})
	if err := reloader.Start(); err != nil {
		logger.Warn("hot reload unavailable", zap.Error(err))
		return
	}
	logger.Info("hot reload watching", zap.String("path", reloader.ExecPath()))
}
