// Package server provides the HTTP surface for the world engine (§6):
// the gin router, middleware chain, and the handlers backing every
// route in the external interface table.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/piquet-h/worldengine/internal/areagen"
	"github.com/piquet-h/worldengine/internal/config"
	"github.com/piquet-h/worldengine/internal/debounce"
	"github.com/piquet-h/worldengine/internal/eventlog"
	"github.com/piquet-h/worldengine/internal/graph"
	"github.com/piquet-h/worldengine/internal/heading"
	"github.com/piquet-h/worldengine/internal/metrics"
	"github.com/piquet-h/worldengine/internal/move"
	"github.com/piquet-h/worldengine/internal/player"
	"github.com/piquet-h/worldengine/internal/telemetry"
)

// Server is the world engine's HTTP surface: a gin router wired to the
// C1-C11 collaborators and the shared telemetry/metrics/logging stack.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	router  *gin.Engine
	server  *http.Server

	graph    graph.Store
	players  player.Store
	headings heading.Store
	debounce debounce.Store
	events   eventlog.Store
	sink     telemetry.Sink

	move    *move.Pipeline
	areagen *areagen.Orchestrator

	startTime time.Time
}

// Deps wires every collaborator a Server needs. Players, Headings,
// Debounce and Events are required: unlike the move pipeline's own
// nil-tolerant wiring (used by tests that exercise a narrower slice of
// the pipeline), a composition root has no excuse not to supply all of
// them.
type Deps struct {
	Graph    graph.Store
	Players  player.Store
	Headings heading.Store
	Debounce debounce.Store
	Events   eventlog.Store
	Sink     telemetry.Sink
	Metrics  *metrics.Metrics
}

// New builds a Server from cfg, logger and deps, wiring the move
// pipeline and area generation orchestrator internally so callers don't
// have to hand-assemble them.
func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	m := deps.Metrics
	if m == nil {
		m = metrics.Default()
	}

	router := gin.New()

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		router:  router,

		graph:    deps.Graph,
		players:  deps.Players,
		headings: deps.Headings,
		debounce: deps.Debounce,
		events:   deps.Events,
		sink:     deps.Sink,

		startTime: time.Now(),
	}

	s.move = &move.Pipeline{
		Graph:          deps.Graph,
		Headings:       deps.Headings,
		Debounce:       deps.Debounce,
		Players:        deps.Players,
		Sink:           deps.Sink,
		Logger:         logger,
		DebounceWindow: cfg.Debounce.WindowDuration(),
	}

	s.areagen = &areagen.Orchestrator{
		Graph:              deps.Graph,
		Events:             deps.Events,
		Sink:               deps.Sink,
		MaxBudgetLocations: cfg.AreaGen.MaxBudgetLocations,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware installs the chain in order: panic recovery first,
// security headers, then tracing so every later middleware runs inside
// the request span,
// then the correlation/telemetry envelope, structured logging, CORS,
// and finally the per-request timeout.
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.securityHeadersMiddleware())

	if s.cfg.Tracing.Enabled {
		s.router.Use(otelgin.Middleware(s.cfg.Tracing.ServiceName))
	}

	s.router.Use(telemetry.Middleware(telemetry.MiddlewareConfig{
		Sink:            s.sink,
		Service:         s.cfg.Tracing.ServiceName,
		PersistenceMode: string(s.cfg.Persistence.Mode),
	}))

	s.router.Use(s.loggingMiddleware())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.timeoutMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("correlation_id", telemetry.CorrelationID(c)),
		)

		s.metrics.RecordHTTPRequest(method, path, status, latency.Seconds())
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, o := range s.cfg.Server.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, x-player-guid, x-correlation-id")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) timeoutMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timeout := s.cfg.Server.RequestTimeout
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// setupRoutes registers every route the backend exposes, plus the
// Prometheus scrape endpoint served alongside the API surface.
func (s *Server) setupRoutes() {
	s.router.GET("/api/ping", s.handlePing)
	s.router.GET("/api/backend/health", s.handleHealth)

	s.router.GET("/api/player/bootstrap", s.handlePlayerBootstrap)
	s.router.GET("/api/player/get", s.handlePlayerGet)
	s.router.GET("/api/player/move", s.handlePlayerMove)
	s.router.POST("/api/player/move", s.handlePlayerMove)

	s.router.GET("/api/location", s.handleLocationGet)
	s.router.GET("/api/location/look", s.handleLocationLook)

	s.router.POST("/api/world/generate-area", s.handleGenerateArea)
	s.router.POST("/api/world/link-rooms", s.handleLinkRooms)

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Start runs the HTTP server on the configured port. It blocks until
// the server stops, returning http.ErrServerClosed on a graceful
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests within the configured
// grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the underlying gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
