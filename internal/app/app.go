package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/go-chi/chi/v5"

	"pangandash/internal/config"
	"pangandash/internal/dataprocessing"
	apierrors "pangandash/internal/errors"
	"pangandash/internal/exporter"
	"pangandash/internal/infrastructure"
	customMiddleware "pangandash/internal/middleware"
	"pangandash/internal/services"
	"pangandash/internal/session"
	handlers "pangandash/internal/transport/http"
	"pangandash/internal/validation"
	ws "pangandash/internal/websocket"
	"pangandash/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config           *config.Config
	Router           *chi.Mux
	Server           *http.Server
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	Metrics          *infrastructure.BusinessMetrics
	Store            session.Store
	Pipeline         *dataprocessing.Pipeline
	WebSocketHub     *ws.Hub
	DashboardService *services.DashboardService
	HealthService    *services.HealthService
	ErrorHandler     *apierrors.ErrorHandler
}

// NewApplication wires every component from cfg. The caller owns logger
// initialization so CLI commands can share it.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("session_backend", cfg.Session.Backend))

	app := &Application{
		Config:       cfg,
		Logger:       logger,
		ErrorHandler: apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	otelCfg := infrastructure.OTelConfigFrom(cfg.Telemetry)
	otelCfg.ServiceVersion = contracts.Version
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	app.OTelProviders = providers

	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	app.Metrics = metrics

	if err := app.initializeServices(ctx); err != nil {
		app.release(ctx)
		return nil, err
	}

	app.setupRouter()
	app.createServer()
	return app, nil
}

// NewPipeline builds the load and aggregation pipeline described by cfg.
// The serve command and the offline CLI commands share it.
func NewPipeline(cfg *config.Config, logger *slog.Logger) (*dataprocessing.Pipeline, error) {
	catalog := dataprocessing.DefaultCatalog()
	if cfg.Analysis.CatalogFile != "" {
		data, err := os.ReadFile(cfg.Analysis.CatalogFile)
		if err != nil {
			return nil, apierrors.NewConfigError("read catalog "+cfg.Analysis.CatalogFile, err)
		}
		catalog, err = dataprocessing.ParseCatalog(data)
		if err != nil {
			return nil, apierrors.NewConfigError("parse catalog "+cfg.Analysis.CatalogFile, err)
		}
		logger.Info("Custom catalog loaded", slog.String("file", cfg.Analysis.CatalogFile))
	}

	loader := dataprocessing.NewCachedLoader(dataprocessing.NewFileLoader(logger), cfg.Upload.CacheEntries, logger)
	return dataprocessing.NewPipeline(loader, catalog, logger), nil
}

// LoadOptions maps the upload section to pipeline defaults.
func LoadOptions(cfg config.UploadConfig) dataprocessing.LoadOptions {
	opts := dataprocessing.DefaultLoadOptions()
	opts.HeaderRow = cfg.HeaderRow
	if cfg.FallbackEncoding != "" {
		opts.FallbackEncoding = cfg.FallbackEncoding
	}
	return opts
}

// NewSheetsReader returns nil when no Google credentials are configured.
func NewSheetsReader(ctx context.Context, cfg config.SheetsConfig, logger *slog.Logger) (*dataprocessing.SheetsReader, error) {
	reader, err := dataprocessing.NewSheetsReader(ctx, dataprocessing.SheetsOptions{
		APIKey:          cfg.APIKey,
		CredentialsFile: cfg.CredentialsFile,
	}, logger)
	if errors.Is(err, dataprocessing.ErrSheetsDisabled) {
		return nil, nil
	}
	return reader, err
}

// initializeServices creates the stores, hub and services
func (a *Application) initializeServices(ctx context.Context) error {
	cfg := a.Config

	pipeline, err := NewPipeline(cfg, infrastructure.WithComponent(a.Logger, "pipeline"))
	if err != nil {
		return err
	}
	a.Pipeline = pipeline

	// The store's janitor reports expiries to the service created below.
	var expiries atomic.Pointer[services.DashboardService]
	store, err := session.New(ctx, cfg.Session, infrastructure.WithComponent(a.Logger, "session"), func(id string) {
		if svc := expiries.Load(); svc != nil {
			svc.SessionExpired(id)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	a.Store = store

	a.WebSocketHub = ws.NewHub(infrastructure.WithComponent(a.Logger, "websocket"), a.Metrics)
	a.WebSocketHub.Start()

	reader, err := NewSheetsReader(ctx, cfg.Sheets, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create sheets reader: %w", err)
	}

	deps := services.DashboardDeps{
		Pipeline:  pipeline,
		Store:     store,
		Notifier:  a.WebSocketHub,
		Validator: validation.NewFileValidator(a.Logger, config.AllowedUploadExtensions, cfg.Upload.MaxSizeBytes),
		Exporter:  exporter.New(exporter.Options{BOM: cfg.Upload.CSVBOM}, a.Logger),
		Metrics:   a.Metrics,
		Logger:    infrastructure.WithComponent(a.Logger, "dashboard"),
	}
	if reader != nil {
		deps.Sheets = reader
	}

	dashboard := services.NewDashboardService(deps, services.DashboardOptions{
		Load:          LoadOptions(cfg.Upload),
		MaxTopN:       cfg.Analysis.MaxTopN,
		SheetsTimeout: cfg.Sheets.Timeout,
	})
	expiries.Store(dashboard)
	a.DashboardService = dashboard
	a.HealthService = services.NewHealthService(store, a.WebSocketHub, reader != nil, a.Logger)

	a.Logger.InfoContext(ctx, "Services initialized",
		slog.Bool("sheets_enabled", reader != nil),
		slog.Int("max_top_n", cfg.Analysis.MaxTopN),
		slog.Int64("max_upload_bytes", cfg.Upload.MaxSizeBytes))
	return nil
}

// setupRouter configures the router
// Ordering: RequestID → RealIP → OTel → Logger → Recoverer → Timeout
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	// WebSocket connections are long lived and skip the timeout and logger
	wsHandler := handlers.NewWebSocketHandler(
		a.WebSocketHub,
		a.DashboardService,
		a.Config.WebSocket,
		a.allowedOrigins(),
		a.Logger,
		a.ErrorHandler,
	)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Handle("/ws", wsHandler)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.CORS.Enabled {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.CORS.AllowedOrigins,
				ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
				Logger:         a.Logger,
			}))
		}

		if a.Config.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.RateLimit.RPS,
				a.Config.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

		a.setupHealthRoutes(r)
		a.setupAPIRoutes(r)
	})

	// Prometheus scrapes outside the middleware group
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
}

func (a *Application) setupHealthRoutes(r chi.Router) {
	health := handlers.NewHealthHandler(a.HealthService, a.Logger)
	r.Get("/healthz", health.HealthCheck)
	r.Get("/readyz", health.ReadinessCheck)
	r.Get("/livez", health.LivenessCheck)
	r.Get("/version", health.Version)
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	dashboard := handlers.NewDashboardHandler(a.DashboardService, handlers.DashboardHandlerOptions{
		MaxUploadBytes: a.Config.Upload.MaxSizeBytes,
		MaxTopN:        a.Config.Analysis.MaxTopN,
	}, a.Logger, a.ErrorHandler)

	clientLog := handlers.NewClientLogHandler(a.Logger, customMiddleware.NewValidationMiddleware(a.Logger), a.ErrorHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", dashboard.Routes())
		r.With(customMiddleware.ContentTypeValidator("application/json")).Post("/logs", clientLog.Handle)
	})
}

func (a *Application) allowedOrigins() []string {
	if !a.Config.CORS.Enabled {
		return nil
	}
	return a.Config.CORS.AllowedOrigins
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts serving in the background. A listener failure cancels ctx
// through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting HTTP server",
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
	}

	a.release(shutdownCtx)

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return shutdownErr
}

// release stops background components in reverse start order.
func (a *Application) release(ctx context.Context) {
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing session store", slog.String("error", err.Error()))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
}

// Run runs the application until interrupted
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Context cancelled, shutting down")
	}

	// The run context may already be cancelled.
	return a.Stop(context.Background())
}
