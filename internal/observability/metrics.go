package observability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// MeshCollector bundles Prometheus metrics for topology rebuilds, route
// queries and the daemon's HTTP and gRPC surfaces.
type MeshCollector struct {
	gatherer prometheus.Gatherer

	TopologyBuilds        prometheus.Counter
	TopologyBuildDuration prometheus.Histogram
	TopologyNodes         prometheus.Gauge
	TopologyEdges         *prometheus.GaugeVec

	RouteQueries  *prometheus.CounterVec
	RouteDuration prometheus.Histogram
	RouteHops     prometheus.Histogram

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

// NewMeshCollector registers mesh metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewMeshCollector(reg prometheus.Registerer) (*MeshCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &MeshCollector{gatherer: gatherer}
	var err error

	if c.TopologyBuilds, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mesh_topology_builds_total",
		Help: "Total number of topology graphs built.",
	}), "mesh_topology_builds_total"); err != nil {
		return nil, err
	}
	if c.TopologyBuildDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mesh_topology_build_duration_seconds",
		Help:    "Time spent building one topology snapshot.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}), "mesh_topology_build_duration_seconds"); err != nil {
		return nil, err
	}
	if c.TopologyNodes, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mesh_topology_nodes",
		Help: "Number of nodes in the most recent topology snapshot.",
	}), "mesh_topology_nodes"); err != nil {
		return nil, err
	}
	if c.TopologyEdges, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mesh_topology_edges",
		Help: "Number of links in the most recent topology snapshot, by link kind.",
	}, []string{"kind"}), "mesh_topology_edges"); err != nil {
		return nil, err
	}

	if c.RouteQueries, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mesh_route_queries_total",
		Help: "Total number of route queries, labeled by outcome.",
	}, []string{"outcome"}), "mesh_route_queries_total"); err != nil {
		return nil, err
	}
	if c.RouteDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mesh_route_computation_duration_seconds",
		Help:    "Duration of shortest-path computations.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "mesh_route_computation_duration_seconds"); err != nil {
		return nil, err
	}
	if c.RouteHops, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mesh_route_hops",
		Help:    "Intermediate relay count of successful routes.",
		Buckets: prometheus.LinearBuckets(0, 1, 16),
	}), "mesh_route_hops"); err != nil {
		return nil, err
	}

	if c.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"}), "http_requests_total"); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route", "method"}), "http_request_duration_seconds"); err != nil {
		return nil, err
	}

	if c.RPCRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grpc_requests_total",
		Help: "Total number of handled RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "grpc_requests_total"); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grpc_request_duration_seconds",
		Help:    "RPC latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service", "method"}), "grpc_request_duration_seconds"); err != nil {
		return nil, err
	}

	return c, nil
}

// ObserveBuild records one topology rebuild.
func (c *MeshCollector) ObserveBuild(d time.Duration, nodes int, edgesByKind map[string]int) {
	if c == nil {
		return
	}
	c.TopologyBuilds.Inc()
	c.TopologyBuildDuration.Observe(d.Seconds())
	c.TopologyNodes.Set(float64(nodes))
	for kind, n := range edgesByKind {
		c.TopologyEdges.WithLabelValues(kind).Set(float64(n))
	}
}

// ObserveRoute records one shortest-path query. hops is ignored unless
// outcome is "ok".
func (c *MeshCollector) ObserveRoute(outcome string, d time.Duration, hops int) {
	if c == nil {
		return
	}
	c.RouteQueries.WithLabelValues(outcome).Inc()
	c.RouteDuration.Observe(d.Seconds())
	if outcome == "ok" {
		c.RouteHops.Observe(float64(hops))
	}
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *MeshCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		c.RPCRequests.WithLabelValues(service, method, code).Inc()
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())

		return resp, err
	}
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *MeshCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *MeshCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}
