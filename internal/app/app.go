package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"sbscli/internal/config"
	"sbscli/internal/infrastructure"
	customMiddleware "sbscli/internal/middleware"
	"sbscli/internal/services"
	"sbscli/internal/store"
	handlers "sbscli/internal/transport/http"
)

// Application wires the reporting API around a store.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Store         store.Store
	OTelProviders *infrastructure.OTelProviders
	Logger        *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewApplication builds the router and HTTP server. addr overrides the
// configured port when non-empty.
func NewApplication(cfg *config.Config, st store.Store, providers *infrastructure.OTelProviders, logger *slog.Logger, addr string) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	if st == nil {
		return nil, fmt.Errorf("app: nil store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if providers == nil {
		providers = infrastructure.NoopProviders()
	}

	a := &Application{
		Config:        cfg,
		Store:         st,
		OTelProviders: providers,
		Logger:        infrastructure.WithComponent(logger, "app"),
	}
	if err := a.setupRouter(); err != nil {
		return nil, err
	}
	a.createServer(addr)
	return a, nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	// RequestID → RealIP → SecurityHeaders → OTel → Logger → Recoverer → RateLimit
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.SecurityHeaders)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("otel middleware: %w", err)
	}

	r.Group(func(r chi.Router) {
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		if a.Config.Server.RateLimitRPS > 0 {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Server.RateLimitRPS,
				a.Config.Server.RateLimitBurst,
				a.Logger,
			).Handler)
		}

		healthHandler := handlers.NewHealthHandler(a.healthService(), a.Logger)
		r.Route("/health", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Get("/", healthHandler.HealthCheck)
			r.Get("/ready", healthHandler.ReadinessCheck)
		})

		validator := customMiddleware.NewValidator(a.Logger)
		reportHandler := handlers.NewReportHandler(services.NewReportService(a.Store, a.Logger), validator, a.Logger)
		r.Mount("/api/v1", reportHandler.Routes())
	})

	// Prometheus scrapes bypass logging and rate limits.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
	return nil
}

func (a *Application) healthService() *services.HealthService {
	pinger, _ := a.Store.(services.Pinger)
	return services.NewHealthService(config.AppVersion, pinger, a.Logger)
}

// createServer creates the HTTP server
func (a *Application) createServer(addr string) {
	if addr == "" {
		addr = fmt.Sprintf(":%d", a.Config.Server.Port)
	}
	a.Server = &http.Server{
		Addr:         addr,
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// Start binds the listener and serves in the background. A serve failure
// calls cancel so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Server.Addr, err)
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "server started",
		slog.String("address", ln.Addr().String()),
		slog.String("version", config.AppVersion))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return a.Server.Addr
	}
	return a.listener.Addr().String()
}

// Stop gracefully stops the server and flushes telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}

	a.Logger.InfoContext(ctx, "shutdown complete")
	return errors.Join(errs...)
}

// Run serves until SIGINT/SIGTERM or until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, stop); err != nil {
		return err
	}
	<-ctx.Done()

	return a.Stop(context.WithoutCancel(ctx))
}
