package core

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidTopology is returned when Build inputs cannot form a
// well-defined graph, e.g. a station named like a satellite.
var ErrInvalidTopology = errors.New("invalid topology input")

const (
	// DefaultISLThresholdKm is the maximum inter-satellite link range.
	DefaultISLThresholdKm = 2000.0
	// DefaultGroundThresholdKm is the maximum ground-to-satellite slant
	// range. Ground antennas tolerate longer, low-elevation links.
	DefaultGroundThresholdKm = 2500.0
)

// DisabledSet holds the identifiers of failed satellites. The caller
// owns it; Build never modifies it.
type DisabledSet map[string]struct{}

// NewDisabledSet builds a set from a list of identifiers.
func NewDisabledSet(ids ...string) DisabledSet {
	s := make(DisabledSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Contains reports whether id is disabled. A nil set disables nothing.
func (s DisabledSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the disabled identifiers in sorted order.
func (s DisabledSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// TopologyBuilder turns node positions into a TopologyGraph. Thresholds
// belong to the builder, not the call, so one builder can be reused for
// every time step.
type TopologyBuilder struct {
	// ISLThresholdKm is the exclusive upper bound for sat–sat links.
	ISLThresholdKm float64
	// GroundThresholdKm is the exclusive upper bound for ground–sat links.
	GroundThresholdKm float64

	// RequireLineOfSight drops links whose chord passes through the Earth.
	RequireLineOfSight bool
	// MinElevationDeg, when > 0, drops ground links below this elevation
	// as seen from the station.
	MinElevationDeg float64
}

// TopologyOption customises a TopologyBuilder.
type TopologyOption func(*TopologyBuilder)

// WithISLThreshold overrides the inter-satellite range.
func WithISLThreshold(km float64) TopologyOption {
	return func(b *TopologyBuilder) {
		b.ISLThresholdKm = km
	}
}

// WithGroundThreshold overrides the ground-link range.
func WithGroundThreshold(km float64) TopologyOption {
	return func(b *TopologyBuilder) {
		b.GroundThresholdKm = km
	}
}

// WithLineOfSight enables Earth-occlusion checks on every link.
func WithLineOfSight() TopologyOption {
	return func(b *TopologyBuilder) {
		b.RequireLineOfSight = true
	}
}

// WithMinElevation sets an elevation mask for ground links.
func WithMinElevation(deg float64) TopologyOption {
	return func(b *TopologyBuilder) {
		b.MinElevationDeg = deg
	}
}

// NewTopologyBuilder returns a builder with the default thresholds and
// no geometric masks, then applies opts.
func NewTopologyBuilder(opts ...TopologyOption) *TopologyBuilder {
	b := &TopologyBuilder{
		ISLThresholdKm:    DefaultISLThresholdKm,
		GroundThresholdKm: DefaultGroundThresholdKm,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build constructs a fresh graph from the given positions.
//
// Every satellite not in disabled becomes a node, as does every ground
// station. Active satellite pairs closer than ISLThresholdKm are linked
// with weight = distance. Station/satellite pairs closer than
// GroundThresholdKm are linked with weight = distance × weather penalty.
//
// The ISL pass is an O(n²) scan over active satellites.
func (b *TopologyBuilder) Build(satellites, stations map[string]Vec3, disabled DisabledSet, weather Weather) (*TopologyGraph, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	satIDs := make([]string, 0, len(satellites))
	for id := range satellites {
		if id == "" {
			return nil, fmt.Errorf("%w: empty satellite identifier", ErrInvalidTopology)
		}
		if disabled.Contains(id) {
			continue
		}
		satIDs = append(satIDs, id)
	}
	sort.Strings(satIDs)

	stationIDs := make([]string, 0, len(stations))
	for id := range stations {
		if id == "" {
			return nil, fmt.Errorf("%w: empty ground station name", ErrInvalidTopology)
		}
		if _, clash := satellites[id]; clash {
			return nil, fmt.Errorf("%w: ground station %q collides with a satellite identifier", ErrInvalidTopology, id)
		}
		stationIDs = append(stationIDs, id)
	}
	sort.Strings(stationIDs)

	g := newTopologyGraph(len(satIDs) + len(stationIDs))

	for _, id := range satIDs {
		g.addNode(Node{ID: id, Kind: NodeSatellite, Position: satellites[id]})
	}
	for _, id := range stationIDs {
		g.addNode(Node{ID: id, Kind: NodeGroundStation, Position: stations[id]})
	}

	// Inter-satellite links.
	for i := 0; i < len(satIDs); i++ {
		pa := satellites[satIDs[i]]
		for j := i + 1; j < len(satIDs); j++ {
			pb := satellites[satIDs[j]]
			d := pa.DistanceTo(pb)
			if !(d < b.ISLThresholdKm) {
				continue
			}
			if b.RequireLineOfSight && !hasLineOfSight(pa, pb) {
				continue
			}
			g.addEdge(satIDs[i], satIDs[j], LinkISL, d, d)
		}
	}

	// Ground links. satIDs already excludes disabled satellites.
	penalty := weather.Penalty()
	for _, gsID := range stationIDs {
		gsPos := stations[gsID]
		for _, satID := range satIDs {
			satPos := satellites[satID]
			d := gsPos.DistanceTo(satPos)
			if !(d < b.GroundThresholdKm) {
				continue
			}
			if !b.groundLinkVisible(gsPos, satPos) {
				continue
			}
			g.addEdge(gsID, satID, LinkGround, d, d*penalty)
		}
	}

	return g, nil
}

func (b *TopologyBuilder) groundLinkVisible(ground, sat Vec3) bool {
	if b.RequireLineOfSight && !hasLineOfSight(ground, sat) {
		return false
	}
	if b.MinElevationDeg > 0 && ElevationDegrees(ground, sat) < b.MinElevationDeg {
		return false
	}
	return true
}

func (b *TopologyBuilder) validate() error {
	if !(b.ISLThresholdKm >= 0) || !(b.GroundThresholdKm >= 0) {
		return fmt.Errorf("%w: link thresholds must be numbers >= 0 (isl=%v, ground=%v)",
			ErrInvalidConfiguration, b.ISLThresholdKm, b.GroundThresholdKm)
	}
	return nil
}
