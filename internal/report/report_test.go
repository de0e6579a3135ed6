package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/signalsfoundry/starlinker/core"
)

func relayRoute(t *testing.T) (*core.TopologyGraph, core.Path) {
	t.Helper()
	sats, err := core.GenerateConstellation(core.ConstellationConfig{Planes: 1, SatsPerPlane: 4, InclinationDeg: 53, AltitudeKm: 550}, 0)
	if err != nil {
		t.Fatalf("GenerateConstellation: %v", err)
	}
	stations := map[string]core.Vec3{
		"East": core.ToECEF(0, 15, 0),
		"West": core.ToECEF(0, -15, 0),
	}
	g, err := core.NewTopologyBuilder(core.WithGroundThreshold(2800)).Build(sats, stations, nil, core.WeatherCloudy)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	p, err := core.ShortestPath(g, "East", "West")
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	return g, p
}

func TestNewRouteRows(t *testing.T) {
	g, p := relayRoute(t)
	r := NewRoute(g, "East", "West", 0, core.WeatherCloudy, p, nil)

	if len(r.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(r.Rows))
	}
	if r.Rows[0].Kind != core.NodeGroundStation || r.Rows[1].Kind != core.NodeSatellite {
		t.Fatalf("unexpected kinds: %+v", r.Rows)
	}
	if r.Rows[0].DistanceKm != 0 || r.Rows[1].Link != core.LinkGround {
		t.Fatalf("first hop row = %+v", r.Rows[1])
	}
	if r.Rows[1].Weight <= r.Rows[1].DistanceKm {
		t.Fatalf("cloudy ground link should weigh more than its distance: %+v", r.Rows[1])
	}
	if got := r.Summary(); got != "Connection established via 1 hops" {
		t.Fatalf("Summary() = %q", got)
	}
}

func TestRenderIncludesTableAndSummary(t *testing.T) {
	g, p := relayRoute(t)
	out := Render(NewRoute(g, "East", "West", 0, core.WeatherCloudy, p, nil))

	for _, want := range []string{"East", "Sat_0", "West", "Ground Station", "LEO Satellite", "Distance (km)", "Connection established via 1 hops", "ms"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryForFailures(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{core.ErrNoPathFound, NoPathHint},
		{&core.UnknownNodeError{IDs: []string{"Atlantis"}}, "Unknown endpoint: unknown node: Atlantis"},
		{errors.New("disk on fire"), "Routing failed: disk on fire"},
	}
	for _, tc := range cases {
		r := NewRoute(nil, "a", "b", 0, core.WeatherClear, core.Path{}, tc.err)
		if got := r.Summary(); got != tc.want {
			t.Fatalf("Summary() = %q, want %q", got, tc.want)
		}
		if out := Render(r); !strings.Contains(out, tc.want) {
			t.Fatalf("Render missing %q:\n%s", tc.want, out)
		}
		if len(r.Rows) != 0 {
			t.Fatalf("failed route should have no rows")
		}
	}
}
