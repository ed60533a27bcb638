package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/protoguard/pkg/audit"
	"github.com/platinummonkey/protoguard/pkg/httputil"
	"github.com/platinummonkey/protoguard/pkg/middleware"
	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/reload"
	"github.com/platinummonkey/protoguard/pkg/schema"
)

// Backend supplies the active snapshot. Handlers load it once per request so
// decoding and validation agree across a reload. *reload.Holder satisfies it.
type Backend interface {
	Load() *reload.Snapshot
}

// Config wires a Server. Only Backend is required.
type Config struct {
	Backend Backend
	// Cache holds schemas compiled for /v1/check. Nil disables the endpoint.
	Cache *schema.Cache
	// CheckLimiter rate limits /v1/check per client IP.
	CheckLimiter middleware.Limiter
	// TrustProxyHeaders takes the client IP from X-Forwarded-For.
	TrustProxyHeaders bool
	Metrics           *observability.Metrics
	MetricsRegistry   *prometheus.Registry
	Recorder          *audit.Recorder
	// AuditStore backs GET /v1/audit. Only database sinks can be queried.
	AuditStore audit.Store
	Logger     logrus.FieldLogger
	Version    string
}

// Server is the HTTP validation API
type Server struct {
	cfg     Config
	router  *mux.Router
	handler http.Handler
	logger  logrus.FieldLogger
	started time.Time
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	s := &Server{
		cfg:     cfg,
		router:  mux.NewRouter(),
		logger:  cfg.Logger,
		started: time.Now(),
	}
	s.setupRoutes()
	s.handler = s.buildHandler()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.cfg.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.cfg.Metrics, routeTemplate))
	}

	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/messages", s.listMessages).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/messages/{message}", s.getMessage).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/validate/{message}", s.validateMessage).Methods(http.MethodPost)

	if s.cfg.Cache != nil {
		var check http.Handler = http.HandlerFunc(s.check)
		if s.cfg.CheckLimiter != nil {
			check = middleware.NewRateLimitMiddleware(s.cfg.CheckLimiter, s.logger, true).
				TrustProxyHeaders(s.cfg.TrustProxyHeaders).
				Handler(check)
		}
		s.router.Handle("/v1/check", check).Methods(http.MethodPost)
		s.router.HandleFunc("/v1/check/cache", s.cacheStats).Methods(http.MethodGet)
	}

	if s.cfg.AuditStore != nil {
		s.router.HandleFunc("/v1/audit", s.listAudit).Methods(http.MethodGet)
	}

	if s.cfg.MetricsRegistry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.cfg.MetricsRegistry)).Methods(http.MethodGet)
	}
}

// Router exposes the route table, mainly for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the full middleware stack: tracing, request ids, request
// logging and panic recovery around the router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
	)
	return otelhttp.NewHandler(chain(s.router), "protoguard.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		Version:    s.cfg.Version,
		Validators: s.cfg.Backend.Load().Engine.Registry().Len(),
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		CheckedAt:  time.Now().UTC(),
	}
	if s.cfg.Cache != nil {
		stats := s.cfg.Cache.Stats()
		resp.Cache = &stats
	}
	httputil.WriteSuccess(w, resp)
}
