package sim

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/starlinker/core"
	"github.com/signalsfoundry/starlinker/internal/logging"
	"github.com/signalsfoundry/starlinker/internal/observability"
	"github.com/signalsfoundry/starlinker/model"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type routeRecord struct {
	outcome string
	hops    int
}

type stubRecorder struct {
	mu     sync.Mutex
	builds []int
	routes []routeRecord
}

func (r *stubRecorder) ObserveBuild(_ time.Duration, nodes int, _ map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builds = append(r.builds, nodes)
}

func (r *stubRecorder) ObserveRoute(outcome string, _ time.Duration, hops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, routeRecord{outcome: outcome, hops: hops})
}

// relayScenario is one sparse plane with two equatorial stations that can
// only reach each other through Sat_0 at step 0.
func relayScenario() *core.Scenario {
	sc := core.DefaultScenario()
	sc.Constellation = core.ConstellationConfig{Planes: 1, SatsPerPlane: 4, InclinationDeg: 53, AltitudeKm: 550}
	sc.Stations = []model.GroundStation{
		{Name: "East", LongitudeDeg: 15},
		{Name: "West", LongitudeDeg: -15},
	}
	sc.Source = "East"
	sc.Destination = "West"
	return sc
}

func TestEngineStep_RoutesThroughRelay(t *testing.T) {
	rec := &stubRecorder{}
	eng, err := NewEngine(relayScenario(), WithMetrics(rec), WithLogger(logging.Noop()))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	snap, err := eng.Step(context.Background(), 0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap.RouteErr != nil {
		t.Fatalf("RouteErr = %v", snap.RouteErr)
	}
	if !reflect.DeepEqual(snap.Route.Nodes, []string{"East", "Sat_0", "West"}) {
		t.Fatalf("route = %v", snap.Route.Nodes)
	}
	if len(snap.Satellites) != 4 || snap.Graph.NodeCount() != 6 {
		t.Fatalf("satellites=%d nodes=%d, want 4 and 6", len(snap.Satellites), snap.Graph.NodeCount())
	}
	if snap.Outcome() != core.RouteOK {
		t.Fatalf("Outcome() = %q", snap.Outcome())
	}

	if !reflect.DeepEqual(rec.builds, []int{6}) {
		t.Fatalf("builds = %v, want [6]", rec.builds)
	}
	if !reflect.DeepEqual(rec.routes, []routeRecord{{outcome: "ok", hops: 1}}) {
		t.Fatalf("routes = %v", rec.routes)
	}
}

func TestEngineStep_RoutingFailuresAreNotStepErrors(t *testing.T) {
	sc := relayScenario()
	sc.Disabled = core.NewDisabledSet("Sat_0")
	rec := &stubRecorder{}
	eng, err := NewEngine(sc, WithMetrics(rec))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	snap, err := eng.Step(context.Background(), 0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !errors.Is(snap.RouteErr, core.ErrNoPathFound) || snap.Outcome() != core.RouteNoPath {
		t.Fatalf("RouteErr = %v, want ErrNoPathFound", snap.RouteErr)
	}
	if snap.Graph.HasNode("Sat_0") {
		t.Fatalf("disabled satellite in graph")
	}

	sc = relayScenario()
	sc.Destination = "Atlantis"
	eng, err = NewEngine(sc, WithMetrics(rec))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	snap, err = eng.Step(context.Background(), 0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !errors.Is(snap.RouteErr, core.ErrUnknownNode) {
		t.Fatalf("RouteErr = %v, want ErrUnknownNode", snap.RouteErr)
	}

	want := []routeRecord{{outcome: "no_path"}, {outcome: "unknown_node"}}
	if !reflect.DeepEqual(rec.routes, want) {
		t.Fatalf("routes = %v, want %v", rec.routes, want)
	}
}

func TestEngineStep_InvalidInputs(t *testing.T) {
	if _, err := NewEngine(nil); !errors.Is(err, ErrNoScenario) {
		t.Fatalf("nil scenario err = %v", err)
	}

	sc := relayScenario()
	sc.Constellation.Planes = 0
	if _, err := NewEngine(sc); !errors.Is(err, core.ErrInvalidConfiguration) {
		t.Fatalf("bad constellation err = %v, want ErrInvalidConfiguration", err)
	}

	sc = relayScenario()
	sc.Stations = append(sc.Stations, model.GroundStation{Name: "East"})
	if _, err := NewEngine(sc); !errors.Is(err, core.ErrInvalidTopology) {
		t.Fatalf("duplicate station err = %v, want ErrInvalidTopology", err)
	}

	sc = relayScenario()
	sc.Stations = []model.GroundStation{{Name: "Sat_2"}}
	eng, err := NewEngine(sc)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := eng.Step(context.Background(), 0); !errors.Is(err, core.ErrInvalidTopology) {
		t.Fatalf("station/satellite clash err = %v, want ErrInvalidTopology", err)
	}

	eng, err = NewEngine(relayScenario())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := eng.Step(context.Background(), -1); !errors.Is(err, core.ErrInvalidConfiguration) {
		t.Fatalf("negative step err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestEngineRun_NotifiesListenersPerStep(t *testing.T) {
	eng, err := NewEngine(relayScenario())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	var steps []float64
	eng.RegisterTickListener(func(s *Snapshot) { steps = append(steps, s.Step) })
	eng.RegisterTickListener(nil)

	if err := eng.Run(context.Background(), 2, 5); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(steps, []float64{2, 3, 4, 5}) {
		t.Fatalf("steps = %v, want [2 3 4 5]", steps)
	}

	if err := eng.Run(context.Background(), 3, 1); !errors.Is(err, core.ErrInvalidConfiguration) {
		t.Fatalf("empty range err = %v", err)
	}
}

func TestEngineRun_StopsOnCancel(t *testing.T) {
	eng, err := NewEngine(relayScenario())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	eng.RegisterTickListener(func(*Snapshot) {
		calls++
		if calls == 2 {
			cancel()
		}
	})

	if err := eng.Run(ctx, 0, 100); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if calls != 2 {
		t.Fatalf("listener calls = %d, want 2", calls)
	}
}

func TestEngine_CustomSourceAndSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	src := staticSource{"Relay": core.ToECEF(0, 0, 550)}
	eng, err := NewEngine(relayScenario(), WithSource(src), WithTracer(tp.Tracer("test")))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	snap, err := eng.Step(context.Background(), 7)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !reflect.DeepEqual(snap.Route.Nodes, []string{"East", "Relay", "West"}) {
		t.Fatalf("route = %v", snap.Route.Nodes)
	}

	names := map[string]bool{}
	for _, s := range exp.GetSpans() {
		names[s.Name] = true
		if s.Name != "route.shortest_path" {
			continue
		}
		attrs := map[string]string{}
		for _, kv := range s.Attributes {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		if attrs[string(observability.AttrOutcome)] != "ok" || attrs[string(observability.AttrHops)] != "1" {
			t.Fatalf("route span attributes = %v", attrs)
		}
	}
	for _, want := range []string{"sim.step", "constellation.generate", "topology.build", "route.shortest_path"} {
		if !names[want] {
			t.Fatalf("missing span %q (got %v)", want, names)
		}
	}
}

func TestEngine_TopologyOptions(t *testing.T) {
	src := staticSource{"Relay": core.ToECEF(0, 0, 550)}
	eng, err := NewEngine(relayScenario(), WithSource(src), WithTopologyOptions(core.WithMinElevation(60)))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	snap, err := eng.Step(context.Background(), 0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !errors.Is(snap.RouteErr, core.ErrNoPathFound) {
		t.Fatalf("relay 15° away should be masked at 60° elevation, got %v", snap.RouteErr)
	}
}

type staticSource map[string]core.Vec3

func (s staticSource) SatellitePositions(float64) (map[string]core.Vec3, error) {
	return s, nil
}
