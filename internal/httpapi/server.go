// Package httpapi exposes the mesh simulator over HTTP using gin.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/signalsfoundry/starlinker/internal/logging"
	"github.com/signalsfoundry/starlinker/internal/observability"
	"github.com/signalsfoundry/starlinker/kb"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultMaxSatellites bounds the shell size a single request may ask for.
const DefaultMaxSatellites = 5000

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Server holds the dependencies shared by all handlers.
type Server struct {
	catalog       *kb.Catalog
	metrics       *observability.MeshCollector
	log           logging.Logger
	tracer        trace.Tracer
	maxSatellites int
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the base logger; requests log through a child carrying
// the request ID.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics enables the Prometheus middleware, the /metrics endpoint
// and engine measurements.
func WithMetrics(c *observability.MeshCollector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithTracer sets the tracer handed to per-request engines.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// WithMaxSatellites overrides DefaultMaxSatellites.
func WithMaxSatellites(n int) Option {
	return func(s *Server) {
		s.maxSatellites = n
	}
}

// NewServer builds a Server around a station catalogue.
func NewServer(catalog *kb.Catalog, opts ...Option) *Server {
	s := &Server{
		catalog:       catalog,
		log:           logging.Noop(),
		tracer:        noop.NewTracerProvider().Tracer(""),
		maxSatellites: DefaultMaxSatellites,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = kb.DefaultCatalog()
	}
	return s
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if s.metrics != nil {
		r.Use(s.metrics.GinMiddleware())
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	r.GET("/healthz", s.health)

	v1 := r.Group("/api/v1")
	v1.GET("/stations", s.listStations)
	v1.POST("/stations", s.addStation)
	v1.GET("/stations/:name", s.getStation)
	v1.GET("/constellation", s.constellation)
	v1.POST("/route", s.route)

	return r
}

// requestLogger attaches a request ID and a request-scoped logger to the
// request context, echoes the ID and logs completion.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()
		if id := c.GetHeader(RequestIDHeader); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, log := logging.WithRequestLogger(ctx, s.log)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, logging.RequestIDFromContext(ctx))

		c.Next()

		log.Info(ctx, "http request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}

func requestLog(c *gin.Context, fallback logging.Logger) logging.Logger {
	return logging.FromContext(c.Request.Context(), fallback)
}
