// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and routes,
// and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and builds the logger, then:
//
//	Server.New() creates:
//	  store (memory | sqlite | redis)          → repository.UserRepository
//	  privy.Client + twitter.Client            → upstream APIs (otelhttp transport)
//	  LoginService / UserService / TweetService
//	  AuthHandler / UserHandler / TweetHandler / StaticHandler
//
// This is the "composition root" pattern: every dependency is wired here, once,
// and each layer only receives the interfaces it needs.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/x-oauth/internal/auth"
	"github.com/sakif/x-oauth/internal/config"
	"github.com/sakif/x-oauth/internal/handler"
	"github.com/sakif/x-oauth/internal/metrics"
	"github.com/sakif/x-oauth/internal/middleware"
	"github.com/sakif/x-oauth/internal/privy"
	"github.com/sakif/x-oauth/internal/repository"
	"github.com/sakif/x-oauth/internal/repository/memory"
	redisRepo "github.com/sakif/x-oauth/internal/repository/redis"
	sqliteRepo "github.com/sakif/x-oauth/internal/repository/sqlite"
	"github.com/sakif/x-oauth/internal/service"
	"github.com/sakif/x-oauth/internal/twitter"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the user store and the rate limiter's cleanup goroutine.
// Both are released in Close, which Start calls during graceful shutdown.
type Server struct {
	router  *chi.Mux
	handler http.Handler
	config  config.Config
	logger  *slog.Logger

	store    repository.UserRepository
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry
}

// Option customises a Server. Tests use options to swap in fakes.
type Option func(*options)

type options struct {
	store      repository.UserRepository
	httpClient *http.Client
}

// WithStore makes the server use store instead of the one STORE_DRIVER selects.
func WithStore(store repository.UserRepository) Option {
	return func(o *options) { o.store = store }
}

// WithHTTPClient sets the client used for provider and X API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates a new Server from cfg.
//
// WIRING ORDER:
//  1. Open the user store chosen by STORE_DRIVER
//  2. Build the upstream clients (provider + X) over an instrumented transport
//  3. Build the metrics registry and the services
//  4. Build the handlers and the router
//
// Every layer only receives what it needs: services get the repository
// interface, handlers get small service interfaces.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// === 1. USER STORE ===
	store := o.store
	if store == nil {
		var err error
		store, err = openStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("opening %s store: %w", cfg.StoreDriver, err)
		}
	}

	// === 2. UPSTREAM CLIENTS ===
	// otelhttp.NewTransport creates a client span per outbound request and
	// propagates the trace context to the provider and to X.
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.UpstreamTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	provider, err := privy.New(privy.Config{
		AppID:           cfg.PrivyAppID,
		AppSecret:       cfg.PrivyAppSecret,
		BaseURL:         cfg.PrivyAPIURL,
		VerificationKey: cfg.PrivyVerificationKey,
		HTTPClient:      httpClient,
	})
	if err != nil {
		_ = closeStore(store)
		return nil, fmt.Errorf("creating provider client: %w", err)
	}

	poster := twitter.New(twitter.Config{
		BaseURL:    cfg.TwitterAPIURL,
		HTTPClient: httpClient,
		Timeout:    cfg.UpstreamTimeout,
	})

	// === 3. METRICS + SERVICES ===
	// A private registry keeps tests independent of the global default one.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		registry: registry,
		limiter: middleware.NewRateLimiter(
			middleware.PerMinute(cfg.TweetRatePerMinute, cfg.TweetBurst),
			logger,
		),
	}

	deps := routeDeps{
		login:    service.NewLoginService(provider, store, recorder, logger),
		users:    service.NewUserService(store),
		tweets:   service.NewTweetService(store, poster, recorder, logger),
		recorder: recorder,
	}

	// === 4. HANDLERS + ROUTES ===
	if err := s.setupRoutes(deps); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	// otelhttp.NewHandler starts a server span per request and extracts any
	// incoming trace context.
	s.handler = otelhttp.NewHandler(s.router, "x-oauth")

	return s, nil
}

// openStore creates the repository selected by cfg.StoreDriver.
//
// The persistent drivers seal OAuth tokens at rest with a key derived from the
// app secret, so the same secret must be configured across restarts.
func openStore(cfg config.Config) (repository.UserRepository, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory, "":
		return memory.New(), nil

	case config.DriverSQLite:
		sealer, err := auth.NewSealer(cfg.PrivyAppSecret)
		if err != nil {
			return nil, err
		}
		if cfg.DBPath != ":memory:" {
			// os.MkdirAll works like `mkdir -p`; the sqlite driver will not create
			// missing parent directories.
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath, sealer)
		if err != nil {
			return nil, err
		}
		return db, nil

	case config.DriverRedis:
		sealer, err := auth.NewSealer(cfg.PrivyAppSecret)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rs, err := redisRepo.New(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix, sealer)
		if err != nil {
			return nil, err
		}
		return rs, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// closeStore releases the store if it holds resources (sqlite file, redis pool).
func closeStore(store repository.UserRepository) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type routeDeps struct {
	login    handler.LoginCompleter
	users    handler.UserFinder
	tweets   handler.TweetRelay
	recorder metrics.Recorder
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /auth/twitter     → login page running the provider's X login (HTML)
// GET    /callback         → verify provider token, store user, show result (HTML)
// GET    /api/user/{id}    → one stored user (JSON)
// GET    /api/users        → every stored user (JSON)
// POST   /api/tweet        → post to X as a stored user (JSON, rate limited)
// GET    /healthz          → liveness check
// GET    /metrics          → Prometheus exposition
// GET    /*                → static front-end files
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (shows up in logs)
// 2. RealIP: rewrites RemoteAddr from proxy headers (the rate limiter keys on it)
// 3. Logger: logs each request with timing info
// 4. Metrics: counts requests by route pattern
// 5. Recoverer: catches panics and returns 500 instead of crashing; it sits
//    inside Logger and Metrics so a recovered panic is still logged and counted
func (s *Server) setupRoutes(deps routeDeps) error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(deps.recorder))
	s.router.Use(chimiddleware.Recoverer)

	// === Page Routes ===
	pages, err := handler.NewPages(s.logger)
	if err != nil {
		return fmt.Errorf("loading page templates: %w", err)
	}
	authHandler := handler.NewAuthHandler(s.config.PrivyAppID, deps.login, pages, s.logger)

	s.router.Get("/auth/twitter", authHandler.HandleLogin)
	s.router.Get(handler.CallbackPath, authHandler.HandleCallback)

	// === API Routes ===
	userHandler := handler.NewUserHandler(deps.users, s.logger)
	tweetHandler := handler.NewTweetHandler(deps.tweets, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/user/{id}", userHandler.HandleGet)
		r.Get("/users", userHandler.HandleList)
		r.With(s.limiter.Middleware).Post("/tweet", tweetHandler.HandlePost)
	})

	// === Operational Routes ===
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	s.router.Handle("/metrics", metrics.Handler(s.registry))

	// === Static Files ===
	// Everything else falls through to the front-end tree.
	s.router.Handle("/*", handler.NewStaticHandler(s.config.StaticDir, s.logger))

	return nil
}

// Handler returns the fully wrapped HTTP handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close stops the rate limiter and closes the store.
func (s *Server) Close() error {
	s.limiter.Stop()
	return closeStore(s.store)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the rate limiter and close the store (flushes sqlite WAL, drops redis pool)
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	// WriteTimeout leaves room for an upstream call that uses its full budget.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	go func() {
		s.logStartup()
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// logStartup prints the listen URL and the routes a developer will want to hit.
func (s *Server) logStartup() {
	base := fmt.Sprintf("http://localhost:%d", s.config.Port)
	s.logger.Info("server starting",
		slog.Int("port", s.config.Port),
		slog.String("url", base),
		slog.String("app_id", s.config.PrivyAppID),
		slog.String("store", s.config.StoreDriver),
	)
	s.logger.Info("routes",
		slog.String("login", base+"/auth/twitter"),
		slog.String("callback", base+handler.CallbackPath),
		slog.String("user", base+"/api/user/{id}"),
		slog.String("users", base+"/api/users"),
		slog.String("tweet", "POST "+base+"/api/tweet"),
	)
}
