package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/JdHeer/kbc-p3dh/internal/config"
	apierrors "github.com/JdHeer/kbc-p3dh/internal/errors"
	"github.com/JdHeer/kbc-p3dh/internal/infrastructure"
	customMiddleware "github.com/JdHeer/kbc-p3dh/internal/middleware"
	"github.com/JdHeer/kbc-p3dh/internal/services"
	"github.com/JdHeer/kbc-p3dh/internal/store"
	handlers "github.com/JdHeer/kbc-p3dh/internal/transport/http"
)

// Application is the composition root for the facts API server. It owns
// the configuration, the database handle, the service layer and the HTTP
// server, and tears them down in reverse order on Stop.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Store         *store.Store
	FactsService  *services.FactsService
	HealthService *services.HealthService
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
}

// NewApplication creates a new application instance with dependency injection
func NewApplication() (*Application, error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Single infrastructure logger shared by every component
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", cfg.Server.Port))

	// Initialize OpenTelemetry
	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	// Initialize services in order
	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Setup router
	app.setupRouter()

	// Create HTTP server
	app.createServer()

	return app, nil
}

// initializeServices opens the store and builds the service layer on top
// of it.
func (a *Application) initializeServices() error {
	paths, err := a.Config.ResolvedPaths()
	if err != nil {
		return fmt.Errorf("failed to resolve paths: %w", err)
	}

	st, err := store.Open(paths.DBFile, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open store %s: %w", paths.DBFile, err)
	}
	a.Store = st

	metrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create business metrics: %w", err)
	}

	a.FactsService = services.NewFactsService(st, metrics, a.Logger)
	a.HealthService = services.NewHealthService(config.AppVersion, st, a.Logger)

	// Table totals as observable gauges, re-read on every scrape.
	err = infrastructure.RegisterTotalsGauges(a.OTelProviders.Meter,
		func(ctx context.Context) (int64, int64, int64, int64, error) {
			totals, err := st.Totals(ctx)
			if err != nil {
				return 0, 0, 0, 0, err
			}
			return int64(totals.Facts), int64(totals.Entities),
				int64(totals.Periods), int64(totals.Templates), nil
		})
	if err != nil {
		return fmt.Errorf("failed to register totals gauges: %w", err)
	}

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID and RealIP stay outside the group so every request,
	// including /metrics scrapes, carries an ID.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// Route group with the full middleware chain:
	// RequestID → RealIP → OTel → Logger → Recoverer → SecurityHeaders → CORS → RateLimiter
	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.getCORSConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	// Prometheus endpoint outside the group: scrapes must not count
	// against the rate limit or fill the request log.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))
		r.Use(customMiddleware.Compress(5))

		errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
		r.NotFound(errorHandler.NotFound)
		r.MethodNotAllowed(errorHandler.MethodNotAllowed)

		// Health handler
		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		// Facts handler
		factsHandler := handlers.NewFactsHandler(a.FactsService, a.Logger, errorHandler)
		r.Mount("/facts", factsHandler.Routes())

		// Dimension lookups for building fact filters
		r.Get("/entities", factsHandler.ListEntities)
		r.Get("/periods", factsHandler.ListPeriods)
		r.Get("/templates", factsHandler.ListTemplates)
		r.Get("/groups", factsHandler.ListGroups)
	})
}

// getCORSConfig builds the CORS policy. The API is read-only, so only
// safe methods are offered.
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
		Logger:         a.Logger,
	}

	if a.Config.Security.EnableCORS {
		cfg.AllowedOrigins = a.Config.Security.AllowedOrigins
	}

	return cfg
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the HTTP server. A listen failure cancels the supplied
// context so Run can unwind.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	// Stop server
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// Close the database after the last in-flight request has drained
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "error closing store", slog.String("error", err.Error()))
		}
	}

	// Shutdown OpenTelemetry providers
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "server stopped")
	}

	// Shut down on a fresh context: ctx may already be cancelled, which
	// would abort the drain before it starts.
	return a.Stop(context.Background())
}

// performStartupHealthCheck verifies the store answers before the first
// request arrives. Failures are reported as warnings: the readiness
// endpoint keeps probing afterwards.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	if err := a.Store.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	totals, err := a.Store.Totals(ctx)
	if err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}

	a.Logger.InfoContext(ctx, "startup health check passed",
		slog.Int("facts", totals.Facts),
		slog.Int("entities", totals.Entities),
		slog.Int("periods", totals.Periods),
		slog.Int("templates", totals.Templates))
	return nil
}
