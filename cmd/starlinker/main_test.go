package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/starlinker/internal/report"
)

// relayScenario is a single sparse plane where East and West only meet
// through Sat_0.
const relayScenario = `{
  "constellation": {"planes": 1, "sats_per_plane": 4, "inclination_deg": 53, "altitude_km": 550},
  "stations": [
    {"name": "East", "lat": 0, "lon": 15},
    {"name": "West", "lat": 0, "lon": -15}
  ],
  "source": "East",
  "destination": "West"
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("MESH_TRACING_ENABLED", "false")
	t.Setenv("MESH_LOG_LEVEL", "error")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_RouteFound(t *testing.T) {
	path := writeFile(t, "scenario.json", relayScenario)

	code, out, errOut := runCLI(t, "-scenario", path)
	if code != exitOK {
		t.Fatalf("exit = %d, want %d; stderr=%s", code, exitOK, errOut)
	}
	for _, want := range []string{"East", "Sat_0", "West", "Connection established via 1 hops"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_DisabledRelayIsNoPath(t *testing.T) {
	path := writeFile(t, "scenario.json", relayScenario)

	code, out, errOut := runCLI(t, "-scenario", path, "-disable", "Sat_0")
	if code != exitNoPath {
		t.Fatalf("exit = %d, want %d; stderr=%s", code, exitNoPath, errOut)
	}
	if !strings.Contains(out, report.NoPathHint) {
		t.Fatalf("output missing no-path hint:\n%s", out)
	}
}

func TestRun_UnknownEndpoint(t *testing.T) {
	path := writeFile(t, "scenario.json", relayScenario)

	code, out, _ := runCLI(t, "-scenario", path, "-to", "Atlantis")
	if code != exitError {
		t.Fatalf("exit = %d, want %d", code, exitError)
	}
	if !strings.Contains(out, "Atlantis") {
		t.Fatalf("output should name the unknown endpoint:\n%s", out)
	}
}

func TestRun_FlagsOverrideScenario(t *testing.T) {
	path := writeFile(t, "scenario.json", relayScenario)

	// A 60 degree mask hides Sat_0 from both stations.
	code, _, errOut := runCLI(t, "-scenario", path, "-min-elevation", "60")
	if code != exitNoPath {
		t.Fatalf("exit = %d, want %d; stderr=%s", code, exitNoPath, errOut)
	}

	code, out, errOut := runCLI(t, "-scenario", path, "-weather", "Stormy")
	if code != exitOK {
		t.Fatalf("exit = %d, want %d; stderr=%s", code, exitOK, errOut)
	}
	if !strings.Contains(out, "Stormy") {
		t.Fatalf("report should mention the weather:\n%s", out)
	}
}

func TestRun_Sweep(t *testing.T) {
	path := writeFile(t, "scenario.json", relayScenario)

	code, out, errOut := runCLI(t, "-scenario", path, "-sweep", "2")
	if code != exitOK && code != exitNoPath {
		t.Fatalf("exit = %d; stderr=%s", code, errOut)
	}
	if n := strings.Count(out, "East"); n < 3 {
		t.Fatalf("expected a report per step, saw East %d times:\n%s", n, out)
	}
}

func TestRun_TLEFile(t *testing.T) {
	tle := "ISS (ZARYA)\n" +
		"1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990\n" +
		"2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760\n"
	path := writeFile(t, "iss.tle", tle)

	code, _, errOut := runCLI(t, "-tle", path, "-from", "New York (USA)", "-to", "London (UK)")
	if code != exitOK && code != exitNoPath {
		t.Fatalf("exit = %d; stderr=%s", code, errOut)
	}
}

func TestRun_Errors(t *testing.T) {
	cases := map[string][]string{
		"unknown flag":      {"-bogus"},
		"stray argument":    {"extra"},
		"missing scenario":  {"-scenario", filepath.Join(t.TempDir(), "nope.json")},
		"missing tle":       {"-tle", filepath.Join(t.TempDir(), "nope.tle")},
		"bad constellation": {"-planes", "0"},
		"negative range":    {"-isl", "-1"},
		"nan range":         {"-isl", "NaN"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			code, _, errOut := runCLI(t, args...)
			if code != exitError {
				t.Fatalf("exit = %d, want %d", code, exitError)
			}
			if errOut == "" {
				t.Fatalf("expected a diagnostic on stderr")
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" Sat_1, ,Sat_2 ,")
	if len(got) != 2 || got[0] != "Sat_1" || got[1] != "Sat_2" {
		t.Fatalf("splitList = %q", got)
	}
	if splitList("") != nil {
		t.Fatalf("empty input should give nil")
	}
}
