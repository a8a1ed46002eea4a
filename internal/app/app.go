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

	"creditpulse/internal/config"
	"creditpulse/internal/errors"
	"creditpulse/internal/infrastructure"
	customMiddleware "creditpulse/internal/middleware"
	"creditpulse/internal/merton"
	"creditpulse/internal/services"
	handlers "creditpulse/internal/transport/http"
)

const (
	// VERSION is the application version
	VERSION = "1.0.0"
	// AppName is the human-readable application name
	AppName = "CreditPulse - Structural Credit Analytics"
)

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Router          *chi.Mux
	Server          *http.Server
	Logger          *slog.Logger
	Metrics         *infrastructure.Metrics
	Analyzer        *merton.Analyzer
	AnalysisService *services.AnalysisService
}

// NewApplication creates a new application instance with dependency injection
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION))

	app := &Application{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices wires the analyzer, providers, and analysis service
func (a *Application) initializeServices() error {
	a.Metrics = infrastructure.NewMetrics()

	analyzer, err := merton.NewAnalyzer(a.Config.Analysis, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	a.Analyzer = analyzer

	var equity services.EquityDataProvider
	if a.Config.Providers.Equity.BaseURL != "" {
		equity = services.NewEquityClient(
			a.Config.Providers.Equity.BaseURL,
			a.Config.Providers.Equity.Timeout,
			a.Config.Providers.Equity.RPS,
			a.Config.Providers.Equity.Burst,
			a.Logger,
		)
	} else {
		a.Logger.Warn("equity data provider disabled, only explicit inputs can be analyzed")
	}

	var spreads services.MarketSpreadProvider
	if a.Config.Providers.FRED.APIKey != "" {
		spreads = services.NewFREDClient(
			a.Config.Providers.FRED.BaseURL,
			a.Config.Providers.FRED.APIKey,
			a.Config.Providers.FRED.Series,
			a.Config.Providers.FRED.Timeout,
			a.Config.Providers.FRED.RPS,
			a.Config.Providers.FRED.Burst,
			a.Logger,
		)
	} else {
		a.Logger.Warn("benchmark spread provider disabled, market spreads must be supplied explicitly")
	}

	a.AnalysisService = services.NewAnalysisService(analyzer, equity, spreads, a.Metrics, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	errorHandler := errors.NewErrorHandler(a.Logger, false)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.Metrics(a.Metrics))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
		r.Use(customMiddleware.Compress(5))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Use(customMiddleware.Timeout(a.Config.Server.AnalysisTimeout, a.Logger))

			handlers.NewAnalysisHandler(a.AnalysisService, a.Logger).RegisterRoutes(r)
			handlers.NewHealthHandler(VERSION, a.Logger).RegisterRoutes(r)
		})
	})

	r.NotFound(errorHandler.NotFound)

	// Prometheus scrape endpoint outside the middleware group
	r.Handle("/metrics", a.Metrics.Handler())

	a.Router = r
}

// getCORSConfig returns CORS configuration
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
		Logger:         a.Logger,
	}
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

// Start starts the HTTP server in the background
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.ErrorContext(ctx, "Error closing log file", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
