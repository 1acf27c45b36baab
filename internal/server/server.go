// Package server exposes the central node's HTTP surface: health and
// status probes, graph queries, and the worker artifact ingest
// endpoint.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/config"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/sched"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/store"
)

// Ingestor lands uploaded artifact bytes in the graph.
type Ingestor interface {
	ImportBytes(ctx context.Context, data []byte, defaultDomain string) (int, error)
}

// StatusSource reports scheduler state for the status probe.
type StatusSource interface {
	Running() bool
	LastCycle() sched.CycleStats
}

// HealthChecker verifies a backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// StatusInfo is static deployment information echoed by /status.
type StatusInfo struct {
	Role           string   `json:"role"`
	Targets        []string `json:"targets"`
	CleanupEnabled bool     `json:"cleanup_enabled"`
}

// Store answers the query endpoints.
type Store interface {
	Hosts(ctx context.Context, q store.HostQuery) ([]store.HostRow, error)
	Events(ctx context.Context, q store.EventQuery) ([]store.EventRow, error)
}

// Options wires a Server. Store and Ingestor may be nil on deployments
// without a graph; the corresponding endpoints then answer 503.
type Options struct {
	Config       config.APIConfig
	WorkerTokens map[string]string
	Store        Store
	Ingestor     Ingestor
	Status       StatusSource
	Health       HealthChecker
	Info         StatusInfo

	// MaxUploadBytes caps a decoded worker upload; zero means the
	// built-in default.
	MaxUploadBytes int64

	Logger *slog.Logger
}

// Server is the HTTP front of a central node.
type Server struct {
	opts   Options
	router *gin.Engine
	http   *http.Server
}

func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{opts: opts}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(s.opts.Logger))
	if s.opts.Config.RateLimitPerMinute > 0 {
		r.Use(rateLimiter(s.opts.Config.RateLimitPerMinute))
	}

	r.GET("/healthz", s.handleHealthz)

	// Worker uploads authenticate with worker credentials, not the API
	// token, so the ingest route sits outside the token group.
	r.POST("/ingest/output", s.handleIngest)

	api := r.Group("/", apiTokenAuth(s.opts.Config.Token))
	api.GET("/status", s.handleStatus)
	api.POST("/query", s.handleHostQuery)
	api.POST("/events/query", s.handleEventQuery)

	return r
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving and blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.opts.Config.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.opts.Logger.Info("http server listening", "addr", s.opts.Config.Listen)

	if s.opts.Config.SSLCertFile != "" && s.opts.Config.SSLKeyFile != "" {
		return s.http.ListenAndServeTLS(s.opts.Config.SSLCertFile, s.opts.Config.SSLKeyFile)
	}
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"request_id", c.GetString("request_id"),
			"duration", time.Since(start))
	}
}
