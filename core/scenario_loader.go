// core/scenario_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/signalsfoundry/starlinker/model"
)

// Scenario is everything needed for one routing query cycle apart from
// the time step.
type Scenario struct {
	Constellation     ConstellationConfig
	Stations          []model.GroundStation
	Source            string
	Destination       string
	Disabled          DisabledSet
	Weather           Weather
	ISLThresholdKm    float64
	GroundThresholdKm float64
	TimeStep          float64
}

// DefaultScenario mirrors the stock demo: 10×15 shell, New York to
// Bengaluru, 2200/2800 km thresholds, clear sky.
func DefaultScenario() *Scenario {
	return &Scenario{
		Constellation:     DefaultConstellationConfig(),
		Stations:          model.DefaultCities(),
		Source:            "New York (USA)",
		Destination:       "Bengaluru (India)",
		Disabled:          DisabledSet{},
		Weather:           WeatherClear,
		ISLThresholdKm:    2200,
		GroundThresholdKm: 2800,
	}
}

// StationPositions converts the scenario's stations to ECEF.
func (s *Scenario) StationPositions() (map[string]Vec3, error) {
	return StationPositions(s.Stations)
}

// Builder returns a TopologyBuilder configured with the scenario's
// thresholds.
func (s *Scenario) Builder(opts ...TopologyOption) *TopologyBuilder {
	base := []TopologyOption{
		WithISLThreshold(s.ISLThresholdKm),
		WithGroundThreshold(s.GroundThresholdKm),
	}
	return NewTopologyBuilder(append(base, opts...)...)
}

// StationPositions converts ground stations to ECEF, rejecting empty or
// duplicate names.
func StationPositions(stations []model.GroundStation) (map[string]Vec3, error) {
	out := make(map[string]Vec3, len(stations))
	for _, gs := range stations {
		if gs.Name == "" {
			return nil, fmt.Errorf("%w: ground station with empty name", ErrInvalidTopology)
		}
		if _, dup := out[gs.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate ground station %q", ErrInvalidTopology, gs.Name)
		}
		out[gs.Name] = ToECEF(gs.LatitudeDeg, gs.LongitudeDeg, gs.AltitudeKm)
	}
	return out, nil
}

// internal JSON shapes – keep them unexported so we’re free to evolve them.
type scenarioJSON struct {
	Constellation *constellationJSON `json:"constellation"`
	Stations      []stationJSON      `json:"stations"`
	Source        string             `json:"source"`
	Destination   string             `json:"destination"`
	Disabled      []string           `json:"disabled"`
	Weather       string             `json:"weather"`
	ISLThreshold  *float64           `json:"isl_threshold_km"`
	GSThreshold   *float64           `json:"gs_threshold_km"`
	TimeStep      float64            `json:"time_step"`
}

type constellationJSON struct {
	Planes         *int     `json:"planes"`
	SatsPerPlane   *int     `json:"sats_per_plane"`
	InclinationDeg *float64 `json:"inclination_deg"`
	AltitudeKm     *float64 `json:"altitude_km"`
}

type stationJSON struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lon"`
	Altitude  float64  `json:"alt_km"`
}

// LoadScenario reads a JSON scenario from r on top of DefaultScenario.
// Omitted fields keep their defaults; a stations list, when present,
// replaces the default city catalogue entirely.
//
// It fails on JSON / structural errors and on constellation parameters
// that Validate rejects.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	sc := DefaultScenario()

	if c := payload.Constellation; c != nil {
		if c.Planes != nil {
			sc.Constellation.Planes = *c.Planes
		}
		if c.SatsPerPlane != nil {
			sc.Constellation.SatsPerPlane = *c.SatsPerPlane
		}
		if c.InclinationDeg != nil {
			sc.Constellation.InclinationDeg = *c.InclinationDeg
		}
		if c.AltitudeKm != nil {
			sc.Constellation.AltitudeKm = *c.AltitudeKm
		}
	}
	if err := sc.Constellation.Validate(); err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}

	if payload.Stations != nil {
		sc.Stations = make([]model.GroundStation, 0, len(payload.Stations))
		for i, st := range payload.Stations {
			name := strings.TrimSpace(st.Name)
			if name == "" {
				return nil, fmt.Errorf("LoadScenario: station %d has empty name", i)
			}
			if st.Latitude == nil || st.Longitude == nil {
				return nil, fmt.Errorf("LoadScenario: station %q needs lat and lon", name)
			}
			sc.Stations = append(sc.Stations, model.GroundStation{
				Name:         name,
				LatitudeDeg:  *st.Latitude,
				LongitudeDeg: *st.Longitude,
				AltitudeKm:   st.Altitude,
			})
		}
	}

	if payload.Source != "" {
		sc.Source = payload.Source
	}
	if payload.Destination != "" {
		sc.Destination = payload.Destination
	}
	sc.Disabled = NewDisabledSet(payload.Disabled...)
	sc.Weather = ParseWeather(payload.Weather)
	if payload.ISLThreshold != nil {
		sc.ISLThresholdKm = *payload.ISLThreshold
	}
	if payload.GSThreshold != nil {
		sc.GroundThresholdKm = *payload.GSThreshold
	}
	if payload.TimeStep < 0 {
		return nil, fmt.Errorf("LoadScenario: %w: time_step must be >= 0", ErrInvalidConfiguration)
	}
	sc.TimeStep = payload.TimeStep

	return sc, nil
}
