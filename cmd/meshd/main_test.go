package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalsfoundry/starlinker/internal/logging"
	"github.com/signalsfoundry/starlinker/internal/observability"
	"github.com/signalsfoundry/starlinker/kb"
	"github.com/signalsfoundry/starlinker/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type running struct {
	catalog   *kb.Catalog
	collector *observability.MeshCollector
	httpURL   string
	health    healthpb.HealthClient
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

func startDaemon(t *testing.T) *running {
	t.Helper()

	collector, err := observability.NewMeshCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMeshCollector: %v", err)
	}
	catalog := kb.DefaultCatalog()
	d := newDaemon(catalog, collector, logging.Noop(), 500)

	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	grpcLis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{
		catalog:   catalog,
		collector: collector,
		httpURL:   "http://" + httpLis.Addr().String(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go func() {
		r.err = d.serve(ctx, httpLis, grpcLis)
		close(r.done)
	}()
	t.Cleanup(r.stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return grpcLis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	r.health = healthpb.NewHealthClient(conn)
	return r
}

func (r *running) stop() {
	r.cancel()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
	}
}

func waitServing(t *testing.T, client healthpb.HealthClient, service string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		cancel()
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("service %q never reported SERVING (last err %v)", service, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDaemon_HealthAndMetrics(t *testing.T) {
	r := startDaemon(t)
	waitServing(t, r.health, "")
	waitServing(t, r.health, meshServiceName)

	got := testutil.ToFloat64(r.collector.RPCRequests.WithLabelValues("Health", "Check", "OK"))
	if got < 2 {
		t.Fatalf("grpc_requests_total for Health/Check = %v, want >= 2", got)
	}
}

func TestDaemon_ServesHTTPAPI(t *testing.T) {
	r := startDaemon(t)
	waitServing(t, r.health, "")

	resp, err := http.Get(r.httpURL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status = %d", resp.StatusCode)
	}

	for _, gs := range []model.GroundStation{
		{Name: "East", LongitudeDeg: 15},
		{Name: "West", LongitudeDeg: -15},
	} {
		if err := r.catalog.AddStation(gs); err != nil {
			t.Fatalf("AddStation(%s): %v", gs.Name, err)
		}
	}
	body := `{"constellation":{"planes":1,"sats_per_plane":4},"from":"East","to":"West","stations":["East","West"]}`
	resp, err = http.Post(r.httpURL+"/api/v1/route", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/v1/route: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"Sat_0"`) {
		t.Fatalf("route status=%d body=%s", resp.StatusCode, data)
	}

	resp, err = http.Get(r.httpURL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	data, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(data), "mesh_route_queries_total") {
		t.Fatalf("/metrics missing route counter:\n%s", data)
	}
}

func TestDaemon_ShutdownStopsServing(t *testing.T) {
	r := startDaemon(t)
	waitServing(t, r.health, "")

	r.cancel()
	select {
	case <-r.done:
		if r.err != nil {
			t.Fatalf("serve returned %v", r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := r.health.Check(ctx, &healthpb.HealthCheckRequest{}); err == nil {
		t.Fatalf("health check succeeded after shutdown")
	}
}

func TestDaemon_CatalogChangesDoNotBlock(t *testing.T) {
	r := startDaemon(t)
	for i := 0; i < 3; i++ {
		gs := model.GroundStation{Name: fmt.Sprintf("Site %d", i), LatitudeDeg: float64(i), LongitudeDeg: float64(i)}
		if err := r.catalog.AddStation(gs); err != nil {
			t.Fatalf("AddStation: %v", err)
		}
	}
	if err := r.catalog.RemoveStation("Site 1"); err != nil {
		t.Fatalf("RemoveStation: %v", err)
	}
}
