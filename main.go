// Command geozone-planner serves a geozone engine flying a simulated
// vehicle, for trying out zone files before they go to a flight controller.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geozone-planner/internal/config"
	"geozone-planner/internal/log"
	"geozone-planner/internal/timeutil"
)

var (
	configPath = flag.String("config", "geozones.yaml", "Zone file (.yaml, .geojson or a CLI dump)")
	addr       = flag.String("addr", ":8080", "Listen address")
	logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn or error")
	logDir     = flag.String("log-dir", "", "Directory for rotated log files, stderr when empty")
	realtime   = flag.Bool("realtime", false, "Run the engine on the wall clock instead of the simulation clock")
)

func main() {
	flag.Parse()

	logger := log.New(*logLevel, *logDir)

	f, err := config.Load(*configPath)
	if err != nil {
		logger.Error("loading zone file", "error", err)
		os.Exit(1)
	}
	if err := f.Settings.Validate(); err != nil {
		logger.Error("invalid settings", "error", err)
		os.Exit(1)
	}

	var clock timeutil.Clock = timeutil.NewMockClock(time.Now())
	if *realtime {
		clock = timeutil.RealClock{}
	}

	srv := newServer(f, clock, logger)
	logger.Info("zone file loaded", "path", *configPath,
		"vertices", f.Store.UsedVertexCount(),
		"origin_lat", srv.origin.Lat, "origin_lon", srv.origin.Lon)

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	logger.Info("server stopped")
}
