// Package sim drives the generate → build → route cycle one time step at
// a time.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/starlinker/core"
	"github.com/signalsfoundry/starlinker/internal/logging"
	"github.com/signalsfoundry/starlinker/internal/observability"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrNoScenario is returned by NewEngine when called without a scenario.
var ErrNoScenario = errors.New("sim: nil scenario")

// Recorder receives per-step measurements. It is satisfied by
// *observability.MeshCollector.
type Recorder interface {
	ObserveBuild(d time.Duration, nodes int, edgesByKind map[string]int)
	ObserveRoute(outcome string, d time.Duration, hops int)
}

// Snapshot is the result of one Step: the satellite positions, the graph
// built from them and the routing outcome between the scenario endpoints.
type Snapshot struct {
	Step       float64
	Satellites map[string]core.Vec3
	Graph      *core.TopologyGraph
	Route      core.Path
	// RouteErr is ErrNoPathFound or ErrUnknownNode (wrapped) when no
	// route was produced. It is not a Step failure.
	RouteErr error
}

// Outcome classifies RouteErr.
func (s *Snapshot) Outcome() core.RouteOutcome {
	return core.Outcome(s.RouteErr)
}

// Engine owns one scenario and recomputes the mesh on demand.
type Engine struct {
	scenario *core.Scenario
	source   core.SatelliteSource
	builder  *core.TopologyBuilder
	stations map[string]core.Vec3

	log     logging.Logger
	metrics Recorder
	tracer  trace.Tracer

	mu            sync.RWMutex
	tickListeners []func(*Snapshot)
}

// Option customises Engine construction.
type Option func(*engineOptions)

type engineOptions struct {
	log          logging.Logger
	metrics      Recorder
	tracer       trace.Tracer
	source       core.SatelliteSource
	topologyOpts []core.TopologyOption
}

// WithLogger sets the engine logger. The default drops everything.
func WithLogger(l logging.Logger) Option {
	return func(o *engineOptions) {
		o.log = l
	}
}

// WithMetrics attaches a Recorder for build and route measurements.
func WithMetrics(r Recorder) Option {
	return func(o *engineOptions) {
		o.metrics = r
	}
}

// WithTracer sets the tracer used for per-step spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *engineOptions) {
		o.tracer = t
	}
}

// WithSource replaces the Walker-Delta shell derived from the scenario,
// e.g. with a core.TLESource.
func WithSource(src core.SatelliteSource) Option {
	return func(o *engineOptions) {
		o.source = src
	}
}

// WithTopologyOptions adds builder options (line-of-sight, elevation
// mask) on top of the scenario thresholds.
func WithTopologyOptions(opts ...core.TopologyOption) Option {
	return func(o *engineOptions) {
		o.topologyOpts = append(o.topologyOpts, opts...)
	}
}

// NewEngine validates sc and prepares station positions. The scenario is
// read once; later changes to it are not observed.
func NewEngine(sc *core.Scenario, opts ...Option) (*Engine, error) {
	if sc == nil {
		return nil, ErrNoScenario
	}
	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Noop()
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer("")
	}
	if o.source == nil {
		if err := sc.Constellation.Validate(); err != nil {
			return nil, err
		}
		o.source = core.WalkerDeltaSource{Config: sc.Constellation}
	}

	stations, err := sc.StationPositions()
	if err != nil {
		return nil, err
	}

	return &Engine{
		scenario: sc,
		source:   o.source,
		builder:  sc.Builder(o.topologyOpts...),
		stations: stations,
		log:      o.log,
		metrics:  o.metrics,
		tracer:   o.tracer,
	}, nil
}

// RegisterTickListener adds fn to the listeners Run notifies after each
// step.
func (e *Engine) RegisterTickListener(fn func(*Snapshot)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickListeners = append(e.tickListeners, fn)
}

// Step generates positions for the given time step, rebuilds the graph
// and routes between the scenario's source and destination.
//
// Errors are limited to invalid configuration or topology input; an
// unreachable or unknown endpoint is reported in Snapshot.RouteErr.
func (e *Engine) Step(ctx context.Context, step float64) (*Snapshot, error) {
	ctx, span := e.tracer.Start(ctx, "sim.step", trace.WithAttributes(observability.AttrStep.Float64(step)))
	defer span.End()

	snap, err := e.step(ctx, step)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Error(ctx, "step failed", logging.Step(step), logging.Err(err))
		return nil, err
	}
	return snap, nil
}

func (e *Engine) step(ctx context.Context, step float64) (*Snapshot, error) {
	_, genSpan := e.tracer.Start(ctx, "constellation.generate")
	sats, err := e.source.SatellitePositions(step)
	genSpan.SetAttributes(observability.AttrSatellites.Int(len(sats)))
	genSpan.End()
	if err != nil {
		return nil, fmt.Errorf("generate positions: %w", err)
	}

	g, err := e.Build(ctx, sats)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Step: step, Satellites: sats, Graph: g}
	snap.Route, snap.RouteErr = e.Route(ctx, g, e.scenario.Source, e.scenario.Destination)
	return snap, nil
}

// Build constructs the graph for the given satellite positions using the
// scenario's stations, failures and weather.
func (e *Engine) Build(ctx context.Context, sats map[string]core.Vec3) (*core.TopologyGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := e.tracer.Start(ctx, "topology.build")
	defer span.End()

	start := time.Now()
	g, err := e.builder.Build(sats, e.stations, e.scenario.Disabled, e.scenario.Weather)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("build topology: %w", err)
	}

	byKind := g.EdgeCountByKind()
	span.SetAttributes(
		observability.AttrNodes.Int(g.NodeCount()),
		observability.AttrISLEdges.Int(byKind[core.LinkISL]),
		observability.AttrGroundEdges.Int(byKind[core.LinkGround]),
	)
	if e.metrics != nil {
		e.metrics.ObserveBuild(elapsed, g.NodeCount(), map[string]int{
			string(core.LinkISL):    byKind[core.LinkISL],
			string(core.LinkGround): byKind[core.LinkGround],
		})
	}
	e.log.Debug(ctx, "topology built",
		logging.Int("nodes", g.NodeCount()),
		logging.Int("isl_links", byKind[core.LinkISL]),
		logging.Int("ground_links", byKind[core.LinkGround]),
		logging.Duration("elapsed", elapsed),
	)
	return g, nil
}

// Route runs a shortest-path query on g and records its outcome.
func (e *Engine) Route(ctx context.Context, g *core.TopologyGraph, from, to string) (core.Path, error) {
	ctx, span := e.tracer.Start(ctx, "route.shortest_path", trace.WithAttributes(
		observability.AttrSource.String(from),
		observability.AttrDestination.String(to),
	))
	defer span.End()

	start := time.Now()
	p, err := core.ShortestPath(g, from, to)
	elapsed := time.Since(start)
	outcome := core.Outcome(err)

	span.SetAttributes(observability.AttrOutcome.String(string(outcome)))
	if e.metrics != nil {
		e.metrics.ObserveRoute(string(outcome), elapsed, p.Hops())
	}

	switch outcome {
	case core.RouteOK:
		span.SetAttributes(observability.AttrHops.Int(p.Hops()))
		e.log.Info(ctx, "route found", append(logging.Endpoints(from, to),
			logging.Int("hops", p.Hops()),
			logging.Float64("weight", p.Weight),
		)...)
	case core.RouteNoPath, core.RouteUnknownNode:
		e.log.Warn(ctx, "no route", append(logging.Endpoints(from, to), logging.Err(err))...)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return p, err
}

// Run executes steps from..to inclusive, notifying tick listeners after
// each one. It stops early when ctx is done or a step fails.
func (e *Engine) Run(ctx context.Context, from, to int) error {
	if to < from {
		return fmt.Errorf("%w: run range %d..%d is empty", core.ErrInvalidConfiguration, from, to)
	}
	for step := from; step <= to; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap, err := e.Step(ctx, float64(step))
		if err != nil {
			return err
		}
		e.mu.RLock()
		listeners := append([]func(*Snapshot){}, e.tickListeners...)
		e.mu.RUnlock()
		for _, fn := range listeners {
			fn(snap)
		}
	}
	return nil
}
