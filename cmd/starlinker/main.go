// Command starlinker computes a routing path across a simulated LEO mesh
// and prints it as a table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/signalsfoundry/starlinker/core"
	"github.com/signalsfoundry/starlinker/internal/logging"
	"github.com/signalsfoundry/starlinker/internal/observability"
	"github.com/signalsfoundry/starlinker/internal/report"
	"github.com/signalsfoundry/starlinker/internal/sim"
	"github.com/signalsfoundry/starlinker/timectrl"
)

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitNoPath = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	from, to     string
	planes       int
	perPlane     int
	inclination  float64
	altitude     float64
	step         float64
	isl, gs      float64
	weather      string
	disable      string
	scenarioPath string
	tlePath      string
	tleStep      time.Duration
	lineOfSight  bool
	minElevation float64
	sweep        int
	interval     time.Duration
	realtime     bool
	logLevel     string
	logFormat    string

	// set records which flags appeared on the command line.
	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	def := core.DefaultScenario()
	o := &options{set: map[string]bool{}}

	fs := flag.NewFlagSet("starlinker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.from, "from", def.Source, "source node (ground station name or satellite ID)")
	fs.StringVar(&o.to, "to", def.Destination, "destination node")
	fs.IntVar(&o.planes, "planes", def.Constellation.Planes, "number of orbital planes")
	fs.IntVar(&o.perPlane, "per-plane", def.Constellation.SatsPerPlane, "satellites per plane")
	fs.Float64Var(&o.inclination, "inclination", def.Constellation.InclinationDeg, "orbital inclination in degrees")
	fs.Float64Var(&o.altitude, "altitude", def.Constellation.AltitudeKm, "orbital altitude in km")
	fs.Float64Var(&o.step, "step", 0, "simulation time step")
	fs.Float64Var(&o.isl, "isl", def.ISLThresholdKm, "inter-satellite link range in km")
	fs.Float64Var(&o.gs, "gs", def.GroundThresholdKm, "ground link range in km")
	fs.StringVar(&o.weather, "weather", string(core.WeatherClear), "weather on ground links: Clear, Cloudy, Rainy or Stormy")
	fs.StringVar(&o.disable, "disable", "", "comma-separated satellite IDs to mark as failed")
	fs.StringVar(&o.scenarioPath, "scenario", "", "JSON scenario file; explicit flags override it")
	fs.StringVar(&o.tlePath, "tle", "", "propagate satellites from a 3-line TLE file instead of the Walker shell")
	fs.DurationVar(&o.tleStep, "tle-step", core.DefaultTLEStep, "wall-clock time per step for -tle")
	fs.BoolVar(&o.lineOfSight, "los", false, "drop links blocked by the Earth")
	fs.Float64Var(&o.minElevation, "min-elevation", 0, "minimum ground link elevation in degrees")
	fs.IntVar(&o.sweep, "sweep", 0, "advance this many further steps, routing at each")
	fs.DurationVar(&o.interval, "interval", time.Second, "wall-clock interval between sweep steps with -realtime")
	fs.BoolVar(&o.realtime, "realtime", false, "pace sweep steps at -interval instead of running flat out")
	fs.StringVar(&o.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	fs.StringVar(&o.logFormat, "log-format", "", "log format json|text (overrides LOG_FORMAT)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// scenario loads the optional scenario file and layers explicit flags on
// top of it.
func (o *options) scenario() (*core.Scenario, error) {
	sc := core.DefaultScenario()
	if o.scenarioPath != "" {
		f, err := os.Open(o.scenarioPath)
		if err != nil {
			return nil, fmt.Errorf("open scenario: %w", err)
		}
		defer f.Close()
		if sc, err = core.LoadScenario(f); err != nil {
			return nil, err
		}
	}

	explicit := func(name string) bool { return o.scenarioPath == "" || o.set[name] }
	if explicit("from") {
		sc.Source = o.from
	}
	if explicit("to") {
		sc.Destination = o.to
	}
	if explicit("planes") {
		sc.Constellation.Planes = o.planes
	}
	if explicit("per-plane") {
		sc.Constellation.SatsPerPlane = o.perPlane
	}
	if explicit("inclination") {
		sc.Constellation.InclinationDeg = o.inclination
	}
	if explicit("altitude") {
		sc.Constellation.AltitudeKm = o.altitude
	}
	if explicit("step") {
		sc.TimeStep = o.step
	}
	if explicit("isl") {
		sc.ISLThresholdKm = o.isl
	}
	if explicit("gs") {
		sc.GroundThresholdKm = o.gs
	}
	if explicit("weather") {
		sc.Weather = core.ParseWeather(o.weather)
	}
	if explicit("disable") {
		sc.Disabled = core.NewDisabledSet(splitList(o.disable)...)
	}
	return sc, nil
}

func (o *options) source() (core.SatelliteSource, error) {
	if o.tlePath == "" {
		return nil, nil
	}
	f, err := os.Open(o.tlePath)
	if err != nil {
		return nil, fmt.Errorf("open TLE file: %w", err)
	}
	defer f.Close()

	set, err := core.ParseTLE(f)
	if err != nil {
		return nil, err
	}
	return core.NewTLESource(set.Entries, set.LatestEpoch(), o.tleStep)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "starlinker: %v\n", err)
		return exitError
	}

	logCfg := logging.ConfigFromEnv("starlinker", o.logLevel, o.logFormat)
	logCfg.Output = stderr
	log := logging.New(logCfg)

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv("starlinker"), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.Err(err))
		return exitError
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	sc, err := o.scenario()
	if err != nil {
		fmt.Fprintf(stderr, "starlinker: %v\n", err)
		return exitError
	}

	engineOpts := []sim.Option{
		sim.WithLogger(log),
		sim.WithTracer(observability.Tracer()),
	}
	src, err := o.source()
	if err != nil {
		fmt.Fprintf(stderr, "starlinker: %v\n", err)
		return exitError
	}
	if src != nil {
		engineOpts = append(engineOpts, sim.WithSource(src))
	}
	if o.lineOfSight {
		engineOpts = append(engineOpts, sim.WithTopologyOptions(core.WithLineOfSight()))
	}
	if o.minElevation > 0 {
		engineOpts = append(engineOpts, sim.WithTopologyOptions(core.WithMinElevation(o.minElevation)))
	}

	eng, err := sim.NewEngine(sc, engineOpts...)
	if err != nil {
		fmt.Fprintf(stderr, "starlinker: %v\n", err)
		return exitError
	}

	last, err := routeAndPrint(ctx, eng, sc, sc.TimeStep, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "starlinker: %v\n", err)
		return exitError
	}

	if o.sweep > 0 {
		mode := timectrl.Accelerated
		if o.realtime {
			mode = timectrl.RealTime
		}
		sweepCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		clock := timectrl.NewStepController(sc.TimeStep, o.interval, mode)
		var sweepErr error
		clock.AddListener(func(step float64) {
			snap, err := routeAndPrint(sweepCtx, eng, sc, step, stdout)
			if err != nil {
				sweepErr = err
				cancel()
				return
			}
			last = snap
		})
		<-clock.Start(sweepCtx, o.sweep)

		if sweepErr != nil {
			fmt.Fprintf(stderr, "starlinker: %v\n", sweepErr)
			return exitError
		}
		if err := ctx.Err(); err != nil {
			fmt.Fprintf(stderr, "starlinker: %v\n", err)
			return exitError
		}
	}

	switch last.Outcome() {
	case core.RouteOK:
		return exitOK
	case core.RouteNoPath:
		return exitNoPath
	default:
		return exitError
	}
}

func routeAndPrint(ctx context.Context, eng *sim.Engine, sc *core.Scenario, step float64, w io.Writer) (*sim.Snapshot, error) {
	snap, err := eng.Step(ctx, step)
	if err != nil {
		return nil, err
	}
	r := report.NewRoute(snap.Graph, sc.Source, sc.Destination, snap.Step, sc.Weather, snap.Route, snap.RouteErr)
	fmt.Fprintln(w, report.Render(r))
	return snap, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
