package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/infra/ratelimit"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/usecase"
)

// Server represents the HTTP server
type Server struct {
	addr   string
	log    logger.Logger
	server *http.Server
}

// ServerConfig represents server configuration.
// WriteTimeout must stay zero while streaming endpoints are served, or streams are cut at the timeout.
type ServerConfig struct {
	Port             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	AllowedOrigins   []string
	StreamHeartbeat  time.Duration
	AllowDevIdentity bool
}

// Dependencies are the collaborators the handlers are built from
type Dependencies struct {
	Store      ports.DocumentStore
	Faults     ports.FaultBridge
	AI         ports.AIProviderFactory
	Tokens     TokenVerifier
	Limiter    ratelimit.Limiter
	Logger     logger.Logger
	Entities   *usecase.EntityUseCase
	Onboarding *usecase.OnboardingUseCase
	Settings   *usecase.SettingsUseCase
	Quotes     *usecase.QuoteUseCase
	Reports    *usecase.ReportUseCase
	Seed       *usecase.SeedUseCase
}

// NewRouter builds the API router
func NewRouter(config ServerConfig, deps Dependencies) http.Handler {
	log := deps.Logger

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware)
	router.Use(loggingMiddleware(log))
	router.Use(recoveryMiddleware(log))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	auth := NewAuthMiddleware(deps.Tokens, AuthConfig{AllowDevHeaders: config.AllowDevIdentity})
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.RequireAuth)

	org := api.PathPrefix("/orgs/{orgId}").Subrouter()
	org.Use(tenantMiddleware)

	limiter := deps.Limiter
	if limiter == nil {
		limiter = ratelimit.New(nil, ratelimit.Config{}, log)
	}

	NewOnboardingHandler(deps.Onboarding, deps.Seed).RegisterRoutes(api, org)
	NewQuoteHandler(deps.Quotes, deps.AI).RegisterRoutes(api, rateLimitMiddleware(limiter, log))
	NewStreamHandler(deps.Store, log, config.StreamHeartbeat).RegisterRoutes(org)
	NewLiveHandler(deps.Store, log, config.AllowedOrigins).RegisterRoutes(org)
	NewFaultHandler(deps.Faults, log, config.StreamHeartbeat).RegisterRoutes(org)
	NewEntityHandler(deps.Entities).RegisterRoutes(org)
	NewReportHandler(deps.Reports).RegisterRoutes(org)
	NewSettingsHandler(deps.Settings).RegisterRoutes(org)

	return withCORS(config.AllowedOrigins, router)
}

// NewServer creates a new HTTP server. Shutdown cancels the context of every in-flight
// request so open streams end instead of holding the drain until its deadline.
func NewServer(config ServerConfig, deps Dependencies) *Server {
	base, cancel := context.WithCancel(context.Background())
	server := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      NewRouter(config, deps),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return base },
	}
	server.RegisterOnShutdown(cancel)

	return &Server{
		addr:   ":" + config.Port,
		log:    deps.Logger,
		server: server,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info(context.Background(), "Starting HTTP server", map[string]interface{}{"addr": s.addr})
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}
