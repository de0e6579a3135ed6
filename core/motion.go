package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// SatelliteSource produces satellite positions for a simulated time step.
// Implementations must keep identifiers stable across time steps.
type SatelliteSource interface {
	SatellitePositions(timeStep float64) (map[string]Vec3, error)
}

// WalkerDeltaSource is the idealised circular Walker-Delta shell.
type WalkerDeltaSource struct {
	Config ConstellationConfig
}

// SatellitePositions implements SatelliteSource.
func (s WalkerDeltaSource) SatellitePositions(timeStep float64) (map[string]Vec3, error) {
	return GenerateConstellation(s.Config, timeStep)
}

// DefaultTLEStep is the wall-clock interval represented by one time step
// when propagating real element sets.
const DefaultTLEStep = time.Minute

// TLESource propagates a catalogue of two-line element sets with SGP4.
// Time step n maps to Epoch + n*Step.
type TLESource struct {
	Epoch time.Time
	Step  time.Duration

	ids  []string
	sats map[string]satellite.Satellite
}

// NewTLESource prepares SGP4 state for every entry. Entry names become
// node identifiers; duplicate names are suffixed with the NORAD ID.
func NewTLESource(entries []TLEEntry, epoch time.Time, step time.Duration) (*TLESource, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no TLE entries", ErrInvalidConfiguration)
	}
	if step <= 0 {
		step = DefaultTLEStep
	}

	src := &TLESource{
		Epoch: epoch.UTC(),
		Step:  step,
		sats:  make(map[string]satellite.Satellite, len(entries)),
	}
	for _, e := range entries {
		id := e.Name
		if id == "" {
			id = "NORAD_" + strconv.Itoa(e.NORADID)
		}
		if _, dup := src.sats[id]; dup {
			id = id + "_" + strconv.Itoa(e.NORADID)
		}
		if _, dup := src.sats[id]; dup {
			return nil, fmt.Errorf("%w: duplicate TLE entry %q", ErrInvalidConfiguration, id)
		}
		sat, err := tleToSat(e.Line1, e.Line2)
		if err != nil {
			return nil, fmt.Errorf("%w: TLE %q: %v", ErrInvalidConfiguration, id, err)
		}
		src.sats[id] = sat
		src.ids = append(src.ids, id)
	}
	sort.Strings(src.ids)
	return src, nil
}

// IDs returns the satellite identifiers in sorted order.
func (s *TLESource) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// SatellitePositions implements SatelliteSource. Satellites whose SGP4
// propagation diverges at the requested instant are omitted.
func (s *TLESource) SatellitePositions(timeStep float64) (map[string]Vec3, error) {
	if math.IsNaN(timeStep) || math.IsInf(timeStep, 0) || timeStep < 0 {
		return nil, fmt.Errorf("%w: time step must be a finite value >= 0, got %v", ErrInvalidConfiguration, timeStep)
	}
	offset := timeStep * float64(s.Step)
	if offset >= math.MaxInt64 {
		return nil, fmt.Errorf("%w: time step %v is too far past the epoch", ErrInvalidConfiguration, timeStep)
	}
	at := s.Epoch.Add(time.Duration(offset))

	year, month, day := at.Date()
	hour, min, sec := at.Clock()
	gmst := satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, min, sec))

	out := make(map[string]Vec3, len(s.ids))
	for _, id := range s.ids {
		posECI, _ := satellite.Propagate(s.sats[id], year, int(month), day, hour, min, sec)
		ecef := satellite.ECIToECEF(posECI, gmst)
		pos := Vec3{X: ecef.X, Y: ecef.Y, Z: ecef.Z}
		if !pos.isFinite() || pos.Norm() == 0 {
			continue
		}
		out[id] = pos
	}
	return out, nil
}

// tleToSat guards the SGP4 initialisation, which panics on malformed
// element sets instead of returning an error.
func tleToSat(line1, line2 string) (sat satellite.Satellite, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sgp4 init: %v", r)
		}
	}()
	if len(line1) < 69 || len(line2) < 69 {
		return sat, errors.New("element lines must be 69 characters")
	}
	sat = satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	return sat, nil
}
