package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphummel/devices/internal/config"
	"github.com/tphummel/devices/internal/db"
	"github.com/tphummel/devices/internal/handlers"
	"github.com/tphummel/devices/internal/logging"
	"github.com/tphummel/devices/internal/metrics"
	"github.com/tphummel/devices/internal/middleware"
	"github.com/tphummel/devices/internal/service"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

// store is everything the server needs from a device backend. db.DB and
// db.Memory both provide it.
type store interface {
	service.Repository
	handlers.Pinger
	metrics.DeviceCounter
	io.Closer
}

func openStore(cfg *config.Config) (store, error) {
	if cfg.DBDriver == "memory" {
		return db.NewMemory(), nil
	}
	d, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	return d, nil
}

// newMux wires every route, the auth and metrics wrappers, and the outer
// request id / logging / panic recovery chain.
func newMux(cfg *config.Config, s store, logger *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	h := &handlers.Handler{
		Devices: service.New(s, logger),
		Store:   s,
		Logger:  logger,
		Version: version,
		Commit:  commit,
	}

	mux := http.NewServeMux()

	// Prometheus metrics, no auth
	mux.Handle("GET /metrics", metrics.Handler(gatherer))

	// Device CRUD requires a Bearer token or JWT; health and docs are public
	secret := []byte(cfg.JWTSecret)
	h.Mount(mux, func(next http.Handler) http.Handler {
		return middleware.Auth(cfg.APIToken, secret, next)
	}, metrics.Middleware)

	skip := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	return middleware.RequestID(
		middleware.RequestLogger(logger, skip,
			middleware.Recoverer(logger, mux)))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	s, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	// The default registry already carries the Go and process collectors.
	reg := prometheus.NewRegistry()
	metrics.Register(reg, s)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           newMux(cfg, s, logger, reg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", cfg.Port, "driver", cfg.DBDriver, "version", version)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	if err := s.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}
	logger.Info("server stopped")
}
