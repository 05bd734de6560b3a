package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/automaxprocs/maxprocs"

	"versus-backend/internal/config"
	"versus-backend/internal/container"
	"versus-backend/internal/handler"
	"versus-backend/internal/middleware"
	"versus-backend/pkg/logger"
)

const (
	version            = "1.0.0"
	streamDrainTimeout = 5 * time.Second
)

// Resources holds all resources that need cleanup
type Resources struct {
	container *container.Container
	server    *http.Server
	log       *logger.Logger
	mu        sync.Mutex
	closed    bool
}

// Cleanup stops the HTTP server, which also ends open event streams, then
// closes the container
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error

	r.log.Info("Starting graceful shutdown...")

	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	if r.container != nil {
		r.log.Info("Closing broadcast hub and stores...")
		if err := r.container.Close(ctx); err != nil {
			r.log.WithError(err).Error("Failed to close resources")
			errs = append(errs, err)
		} else {
			r.log.Info("Resources closed successfully")
		}
	}

	if len(errs) > 0 {
		r.log.WithField("error_count", len(errs)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if _, err := maxprocs.Set(maxprocs.Logger(log.Sugar().Debugf)); err != nil {
		log.WithError(err).Warn("Failed to set GOMAXPROCS")
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
	}).Info("Starting versus-backend server")

	ctx := context.Background()
	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	resources := &Resources{container: c, log: log}

	if err := c.Start(ctx); err != nil {
		_ = resources.Cleanup(ctx)
		log.WithError(err).Fatal("Failed to start services")
	}

	server := newServer(c)
	resources.server = server

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	log.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// newServer builds the HTTP server. Event streams only end when the hub
// closes them, so Shutdown drains the hub instead of waiting them out.
func newServer(c *container.Container) *http.Server {
	server := &http.Server{
		Addr:              ":" + c.Config.Port,
		Handler:           setupRouter(c),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		// No WriteTimeout: event streams stay open; each SSE write sets its own deadline.
	}
	server.RegisterOnShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), streamDrainTimeout)
		defer cancel()
		if err := c.DrainStreams(ctx); err != nil {
			c.Logger.WithError(err).Warn("Event streams did not drain in time")
		}
	})
	return server
}

// setupRouter configures and returns the HTTP router
func setupRouter(c *container.Container) *chi.Mux {
	cfg := c.Config
	log := c.Logger

	r := chi.NewRouter()

	if cfg.TrustProxyHeaders {
		r.Use(chiMiddleware.RealIP)
	}
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins

	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))
	r.Use(chiMiddleware.Recoverer)

	handlers := &handler.Handlers{
		Battle: handler.NewBattleHandler(c.Battles, c.Validator, cfg.TrendingLimit, log),
		Social: handler.NewSocialHandler(c.Social, c.Validator, log),
		Stream: handler.NewStreamHandler(c.Hub, c.Battles, log),
	}
	healthHandler := handler.NewHealthHandler(c, version, log)
	writeLimit := middleware.RateLimit(c.RateLimiter, log.Component("ratelimit"))

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))

	handlers.Mount(r, writeLimit)
	r.Route("/api", func(r chi.Router) {
		handlers.Mount(r, writeLimit)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Endpoint not found","type":"not_found"}`))
	})

	log.Info("Router configured successfully")
	return r
}
