package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pranaytiwariii/SlotSwapper/internal/swaps/handler"
	"github.com/pranaytiwariii/SlotSwapper/pkg/client"
	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
	"github.com/pranaytiwariii/SlotSwapper/pkg/contracts"
	"github.com/pranaytiwariii/SlotSwapper/pkg/kafka"
	"github.com/pranaytiwariii/SlotSwapper/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore *middleware.InMemoryIdempotencyStore
	rateLimiter      *middleware.UserRateLimiter
	producer         *kafka.Producer
	healthHandler    http.Handler
	appHttpHandler   http.Handler
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// SetProducer registers the event producer so shutdown can flush it.
func (a *Application) SetProducer(producer *kafka.Producer) {
	a.producer = producer
}

func (a *Application) SetApp(appHandlers ...contracts.Handler) {
	a.setHealthHandler()
	a.setAppHandler(appHandlers...)
	a.setAppServer()
}

func (a *Application) setHealthHandler() {
	healthRouter := httprouter.New()
	healthHandler := handler.NewHealthHandler(a.cfg)
	healthHandler.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(appHandlers ...contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range appHandlers {
		h.RegisterRoutes(appRouter)
	}

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewUserRateLimiter(
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		a.cfg.Log,
	)

	var identityClient *client.IdentityClient
	if a.cfg.IdentityURL != "" {
		identityClient = client.NewIdentityClient(a.cfg.IdentityURL)
		a.cfg.Log.Info("Identity provider configured", "url", a.cfg.IdentityURL)
	} else {
		a.cfg.Log.Info("No identity provider configured, trusting gateway user header")
	}

	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore, "Idempotency-Key")(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(a.cfg.RequestTimeout)(appHttpHandler)
	appHttpHandler = middleware.UserRateLimit(a.rateLimiter)(appHttpHandler)
	appHttpHandler = middleware.Identity(identityClient, a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Recovery(a.cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	a.cfg.Log.Info("Application endpoints configured with full middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHttpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	a.cfg.Log.Info("Stopping background workers...")
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.cfg.Log.Error("Failed to close event producer", "error", err)
		}
	}
	a.cfg.Log.Info("Background workers stopped")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
