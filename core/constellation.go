package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidConfiguration is returned when constellation parameters would
// produce an empty or degenerate geometry.
var ErrInvalidConfiguration = errors.New("invalid configuration")

const (
	// TimeStepRadians is the mean-anomaly advance applied per simulated
	// time step. It is a simulation-speed knob, not an orbital rate.
	TimeStepRadians = 0.05

	// DefaultInclinationDeg and DefaultAltitudeKm describe a
	// Starlink-like shell.
	DefaultInclinationDeg = 53.0
	DefaultAltitudeKm     = 550.0

	satelliteIDPrefix = "Sat_"
)

// ConstellationConfig describes a Walker-Delta style shell: Planes
// evenly spaced in RAAN, each carrying SatsPerPlane evenly spaced
// satellites on a circular orbit.
type ConstellationConfig struct {
	Planes         int     `json:"planes"`
	SatsPerPlane   int     `json:"sats_per_plane"`
	InclinationDeg float64 `json:"inclination_deg"`
	AltitudeKm     float64 `json:"altitude_km"`
}

// DefaultConstellationConfig returns a 10×15 shell at 550 km / 53°.
func DefaultConstellationConfig() ConstellationConfig {
	return ConstellationConfig{
		Planes:         10,
		SatsPerPlane:   15,
		InclinationDeg: DefaultInclinationDeg,
		AltitudeKm:     DefaultAltitudeKm,
	}
}

// Size returns the number of satellites the config produces.
func (c ConstellationConfig) Size() int {
	return c.Planes * c.SatsPerPlane
}

// Validate reports configuration problems wrapped in ErrInvalidConfiguration.
func (c ConstellationConfig) Validate() error {
	if c.Planes < 1 {
		return fmt.Errorf("%w: plane count must be >= 1, got %d", ErrInvalidConfiguration, c.Planes)
	}
	if c.SatsPerPlane < 1 {
		return fmt.Errorf("%w: satellites per plane must be >= 1, got %d", ErrInvalidConfiguration, c.SatsPerPlane)
	}
	if math.IsNaN(c.InclinationDeg) || math.IsInf(c.InclinationDeg, 0) {
		return fmt.Errorf("%w: inclination must be finite", ErrInvalidConfiguration)
	}
	if math.IsNaN(c.AltitudeKm) || math.IsInf(c.AltitudeKm, 0) {
		return fmt.Errorf("%w: altitude must be finite", ErrInvalidConfiguration)
	}
	if c.AltitudeKm <= -EarthRadiusKm {
		return fmt.Errorf("%w: altitude %.1f km places the orbit at or below the Earth's centre", ErrInvalidConfiguration, c.AltitudeKm)
	}
	return nil
}

// SatelliteID returns the stable identifier of the satellite in the given
// plane and slot.
func SatelliteID(plane, slot, satsPerPlane int) string {
	return satelliteIDPrefix + strconv.Itoa(plane*satsPerPlane+slot)
}

// IsSatelliteID reports whether id is in the namespace GenerateConstellation
// uses, so that a ground station with that name could collide with a
// satellite in some shell.
func IsSatelliteID(id string) bool {
	return strings.HasPrefix(id, satelliteIDPrefix)
}

// GenerateConstellation places every satellite of cfg at the given time
// step. Identifiers depend only on (Planes, SatsPerPlane), so advancing
// timeStep moves satellites without renaming them.
func GenerateConstellation(cfg ConstellationConfig, timeStep float64) (map[string]Vec3, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(timeStep) || math.IsInf(timeStep, 0) || timeStep < 0 {
		return nil, fmt.Errorf("%w: time step must be a finite value >= 0, got %v", ErrInvalidConfiguration, timeStep)
	}

	r := EarthRadiusKm + cfg.AltitudeKm
	inc := degToRad(cfg.InclinationDeg)
	cosInc, sinInc := math.Cos(inc), math.Sin(inc)
	offset := timeStep * TimeStepRadians

	positions := make(map[string]Vec3, cfg.Size())
	for p := 0; p < cfg.Planes; p++ {
		raan := 2 * math.Pi * float64(p) / float64(cfg.Planes)
		cosRaan, sinRaan := math.Cos(raan), math.Sin(raan)

		for s := 0; s < cfg.SatsPerPlane; s++ {
			anomaly := 2*math.Pi*float64(s)/float64(cfg.SatsPerPlane) + offset
			xOrb := r * math.Cos(anomaly)
			yOrb := r * math.Sin(anomaly)

			positions[SatelliteID(p, s, cfg.SatsPerPlane)] = Vec3{
				X: xOrb*cosRaan - yOrb*sinRaan*cosInc,
				Y: xOrb*sinRaan + yOrb*cosRaan*cosInc,
				Z: yOrb * sinInc,
			}
		}
	}
	return positions, nil
}
