package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/lorrc/helpdesk-analytics/internal/adapters/primary/http"
	mw "github.com/lorrc/helpdesk-analytics/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-analytics/internal/adapters/primary/websocket"
	"github.com/lorrc/helpdesk-analytics/internal/adapters/secondary/cache"
	"github.com/lorrc/helpdesk-analytics/internal/adapters/secondary/postgres"
	"github.com/lorrc/helpdesk-analytics/internal/config"
	"github.com/lorrc/helpdesk-analytics/internal/core/ports"
	"github.com/lorrc/helpdesk-analytics/internal/core/services"
	"github.com/lorrc/helpdesk-analytics/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. Initialize the ticket store (optional: without it only
	// caller-supplied tickets can be filtered)
	var (
		ticketRepo ports.TicketRepository
		dbCheck    httpAdapter.HealthChecker
		cacheCheck httpAdapter.HealthChecker
		serviceOps []services.Option
	)
	if cfg.HasDatabase() {
		pool, err := connectDatabase(ctx, cfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("database connection established")

		ticketRepo = postgres.NewTicketRepository(pool)
		dbCheck = pool

		if cfg.HasRedis() {
			client := cache.NewClient(ctx, cache.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			}, logger)
			defer func() { _ = client.Close() }()

			ticketCache := cache.NewTicketCache(ticketRepo, client, cfg.Redis.TTL, logger)
			ticketRepo = ticketCache
			cacheCheck = ticketCache
			serviceOps = append(serviceOps, services.WithCacheInvalidator(ticketCache))
		}
	} else {
		logger.Warn("DATABASE_URL not set, technician endpoints are disabled")
	}

	// 4. Initialize Real-time Components
	hub := websocket.NewHub(logger)
	go hub.Run()
	serviceOps = append(serviceOps, services.WithNotifier(hub))

	// 5. Initialize Rate Limiter
	var rateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		defer rateLimiter.Stop()
	}

	// 6. Dependency Injection (Wiring the Hexagon)
	errorHandler := httpAdapter.NewErrorHandler(logger)

	analyticsService := services.NewAnalyticsService(ticketRepo, cfg.Analytics.MaxTickets, serviceOps...)

	analyticsHandler := httpAdapter.NewAnalyticsHandler(analyticsService, errorHandler, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(ctx, hub, analyticsService, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(dbCheck, cfg.App.Version).
		WithCache(cacheCheck).
		WithConnections(hub)

	// 7. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders:   []string{mw.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	// Health check endpoints (outside /api/v1 for standard probe paths)
	healthHandler.RegisterRoutes(r)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if rateLimiter != nil {
			r.Use(rateLimiter.Middleware)
		}

		// Live filtering over a WebSocket
		r.Get("/ws", wsHandler.ServeHTTP)

		analyticsHandler.RegisterRoutes(r)
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not covered by srv.Shutdown
	stop()
	hub.Shutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

func connectDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
