package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"videowall/internal/assignment"
	"videowall/internal/compositor"
	"videowall/internal/host"
	"videowall/internal/platform/config"
	"videowall/internal/platform/logger"
	"videowall/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	layoutFile := config.GetEnv("LAYOUT_FILE", "")
	harnessURL := config.GetEnv("PLAYER_HARNESS_URL", "")
	hostMode := config.GetEnv("HOST_MODE", "null")

	grid := compositor.GridConfig{
		Cols:        config.GetEnvInt("GRID_COLS", 3),
		Rows:        config.GetEnvInt("GRID_ROWS", 3),
		PixelWidth:  config.GetEnvInt("PIXEL_WIDTH", 1920),
		PixelHeight: config.GetEnvInt("PIXEL_HEIGHT", 1080),
	}

	log := logger.New(logLevel, logFormat)

	var factory host.Factory
	switch hostMode {
	case "rod":
		rodFactory, err := host.NewRodFactory(
			config.GetEnv("ROD_CONTROL_URL", ""),
			config.GetEnvBool("HEADLESS", true),
			log)
		if err != nil {
			log.Error("browser setup failed", "error", err)
			os.Exit(1)
		}
		defer rodFactory.Close()
		factory = rodFactory
	case "null":
		factory = &host.NullFactory{Logger: log}
	default:
		log.Error("unknown HOST_MODE", "host_mode", hostMode)
		os.Exit(1)
	}

	met := metrics.New()
	engine := compositor.New(compositor.Options{
		Grid:       grid,
		Factory:    factory,
		Logger:     log,
		Metrics:    met,
		HarnessURL: harnessURL,
	})
	h := compositor.NewHandler(engine, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		_ = engine.Run(ctx)
	}()

	states := engine.Aggregator().Subscribe(8)
	go func() {
		for snap := range states {
			log.Debug("state published", "regions", len(snap))
		}
	}()

	if layoutFile != "" {
		watcher, err := assignment.NewWatcher(layoutFile, grid, func(l *assignment.Layout) {
			engine.SetAssignment(l.Cells, l.Streams)
		}, log)
		if err != nil {
			log.Error("layout watcher setup failed", "error", err)
			os.Exit(1)
		}
		if err := watcher.Start(); err != nil {
			log.Error("layout load failed", "error", err)
			os.Exit(1)
		}
		defer watcher.Stop()
	}

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", met.Handler(func() {
		snapshot := engine.Snapshot()
		met.SetRegionsActive(len(snapshot))
	}).ServeHTTP)
	r.Group(h.Routes)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"grid_cols", grid.Cols,
		"grid_rows", grid.Rows,
		"host_mode", hostMode,
		"layout_file", layoutFile,
	)

	<-ctx.Done()
	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	select {
	case <-engineDone:
	case <-shutdownCtx.Done():
	}

	log.Info("server stopped")
}
