// Command meshd serves the routing HTTP API alongside a gRPC health
// endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/signalsfoundry/starlinker/internal/httpapi"
	"github.com/signalsfoundry/starlinker/internal/logging"
	"github.com/signalsfoundry/starlinker/internal/observability"
	"github.com/signalsfoundry/starlinker/kb"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// meshServiceName is the health-check service name reported alongside
// the overall server status.
const meshServiceName = "starlinker.Mesh"

func main() {
	def := defaultConfig()
	configPath := flag.String("config", "", "optional INI file with [server] and [stations] sections")
	httpAddr := flag.String("http-addr", def.HTTPAddr, "TCP address for the HTTP API and /metrics")
	grpcAddr := flag.String("grpc-addr", def.GRPCAddr, "TCP address for the gRPC health service")
	maxSats := flag.Int("max-satellites", def.MaxSatellites, "largest constellation a single request may build")
	flag.Parse()

	log := logging.NewFromEnv("meshd")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := def
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			log.Error(ctx, "failed to read config", logging.String("path", *configPath), logging.Err(err))
			os.Exit(1)
		}
		cfg = loaded
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-addr":
			cfg.HTTPAddr = *httpAddr
		case "grpc-addr":
			cfg.GRPCAddr = *grpcAddr
		case "max-satellites":
			cfg.MaxSatellites = *maxSats
		}
	})

	catalog := kb.DefaultCatalog()
	for _, gs := range cfg.Stations {
		if err := catalog.AddStation(gs); err != nil {
			log.Warn(ctx, "skipping configured station", logging.String("station", gs.Name), logging.Err(err))
		}
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv("meshd"), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewMeshCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for HTTP", logging.String("addr", cfg.HTTPAddr), logging.Err(err))
		os.Exit(1)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.GRPCAddr), logging.Err(err))
		os.Exit(1)
	}

	d := newDaemon(catalog, collector, log, cfg.MaxSatellites)
	if err := d.serve(ctx, httpLis, grpcLis); err != nil {
		log.Error(ctx, "meshd exited", logging.Err(err))
		os.Exit(1)
	}
}

type daemon struct {
	log    logging.Logger
	http   *http.Server
	grpc   *grpc.Server
	health *health.Server

	unsubscribe func()
}

func newDaemon(catalog *kb.Catalog, collector *observability.MeshCollector, log logging.Logger, maxSatellites int) *daemon {
	if log == nil {
		log = logging.Noop()
	}
	gin.SetMode(gin.ReleaseMode)

	api := httpapi.NewServer(catalog,
		httpapi.WithLogger(log),
		httpapi.WithMetrics(collector),
		httpapi.WithTracer(observability.Tracer()),
		httpapi.WithMaxSatellites(maxSatellites),
	)

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(collector.UnaryServerInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	d := &daemon{
		log:    log,
		http:   &http.Server{Handler: api.Router(), ReadHeaderTimeout: 10 * time.Second},
		grpc:   grpcServer,
		health: hs,
	}
	if catalog != nil {
		d.unsubscribe = catalog.Subscribe(d.logCatalogEvent)
	}
	return d
}

func (d *daemon) logCatalogEvent(ev kb.Event) {
	action := "ground station added"
	if ev.Type == kb.EventStationRemoved {
		action = "ground station removed"
	}
	d.log.Info(context.Background(), action, logging.String("station", ev.Station.Name))
}

// serve runs both listeners until ctx is cancelled or one of them fails,
// then drains them. Health flips to NOT_SERVING before the drain starts.
func (d *daemon) serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	errCh := make(chan error, 2)

	go func() {
		d.log.Info(ctx, "serving HTTP API", logging.String("addr", httpLis.Addr().String()))
		if err := d.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		d.log.Info(ctx, "serving gRPC health", logging.String("addr", grpcLis.Addr().String()))
		if err := d.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()

	d.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	d.health.SetServingStatus(meshServiceName, healthpb.HealthCheckResponse_SERVING)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	d.log.Info(context.Background(), "shutting down meshd")
	d.health.Shutdown()
	if d.unsubscribe != nil {
		d.unsubscribe()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.http.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	d.grpc.GracefulStop()
	return runErr
}
