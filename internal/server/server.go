// Package server provides the phonebook HTTP server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kshg9/FSO-part11-ci-phonebook/internal/config"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/events"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/httputil"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/store"
)

const metricsNamespace = "phonebook"

// Server wraps HTTP routes and dependencies.
type Server struct {
	store       store.Store
	cfg         config.Config
	version     string
	commit      string
	buildDate   string
	openapiSpec []byte
	publisher   events.Publisher
	metrics     *httputil.Metrics
	logger      zerolog.Logger
	now         func() time.Time
	router      chi.Router
}

// Option configures server construction.
type Option func(*Server)

// WithOpenAPISpec sets the embedded OpenAPI bytes.
func WithOpenAPISpec(spec []byte) Option {
	return func(s *Server) {
		s.openapiSpec = spec
	}
}

// WithPublisher sets where change events go. Defaults to a no-op.
func WithPublisher(p events.Publisher) Option {
	return func(s *Server) {
		s.publisher = p
	}
}

// WithMetrics sets the request metrics collector. When metrics are enabled
// and none is given, the server creates its own.
func WithMetrics(m *httputil.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the base request logger. Defaults to the global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithClock overrides the time source used by /info.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New constructs a phonebook API server.
func New(st store.Store, cfg config.Config, version, commit, buildDate string, opts ...Option) *Server {
	s := &Server{
		store:     st,
		cfg:       cfg,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		publisher: events.NoopPublisher{},
		logger:    log.Logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MetricsEnabled && s.metrics == nil {
		s.metrics = httputil.NewMetrics(metricsNamespace)
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the configured router.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLogger(s.logger))
	r.Use(httputil.Recoverer)
	r.Use(httputil.CORS)
	if s.cfg.MetricsEnabled {
		r.Use(s.metrics.Middleware)
	}

	r.NotFound(s.handleUnknownEndpoint)
	r.MethodNotAllowed(s.handleUnknownEndpoint)

	r.Group(func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/readiness", s.handleReadiness)
		r.Get("/version", s.handleVersion)
		r.Get("/info", s.handleInfo)
		if s.cfg.MetricsEnabled {
			r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		}
		r.Get("/api/openapi.yaml", s.handleOpenAPI)
	})

	r.Route("/api/persons", func(r chi.Router) {
		r.Get("/", s.handleListPersons)
		r.Post("/", s.handleCreatePerson)
		r.Get("/{id}", s.handleGetPerson)
		r.Put("/{id}", s.handleUpdatePerson)
		r.Delete("/{id}", s.handleDeletePerson)
	})

	return r
}
