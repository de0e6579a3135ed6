package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/signalsfoundry/starlinker/core"
	"github.com/signalsfoundry/starlinker/internal/logging"
	"github.com/signalsfoundry/starlinker/internal/report"
	"github.com/signalsfoundry/starlinker/internal/sim"
	"github.com/signalsfoundry/starlinker/kb"
	"github.com/signalsfoundry/starlinker/model"
)

var errBadRequest = errors.New("bad request")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, kb.ErrStationNotFound), errors.Is(err, core.ErrUnknownNode):
		return http.StatusNotFound
	case errors.Is(err, kb.ErrStationExists):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, kb.ErrInvalidStation),
		errors.Is(err, core.ErrInvalidConfiguration),
		errors.Is(err, core.ErrInvalidTopology):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		requestLog(c, s.log).Error(c.Request.Context(), "request failed", logging.Err(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type stationJSON struct {
	Name       string   `json:"name" binding:"required"`
	Latitude   *float64 `json:"lat" binding:"required"`
	Longitude  *float64 `json:"lon" binding:"required"`
	AltitudeKm float64  `json:"alt_km"`
}

func toStationJSON(gs model.GroundStation) stationJSON {
	lat, lon := gs.LatitudeDeg, gs.LongitudeDeg
	return stationJSON{Name: gs.Name, Latitude: &lat, Longitude: &lon, AltitudeKm: gs.AltitudeKm}
}

func (s *Server) listStations(c *gin.Context) {
	list := s.catalog.ListStations()
	out := make([]stationJSON, 0, len(list))
	for _, gs := range list {
		out = append(out, toStationJSON(gs))
	}
	c.JSON(http.StatusOK, gin.H{"stations": out})
}

func (s *Server) getStation(c *gin.Context) {
	gs, err := s.catalog.GetStation(c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toStationJSON(gs))
}

func (s *Server) addStation(c *gin.Context) {
	var req stationJSON
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	gs := model.GroundStation{
		Name:         req.Name,
		LatitudeDeg:  *req.Latitude,
		LongitudeDeg: *req.Longitude,
		AltitudeKm:   req.AltitudeKm,
	}
	if err := s.catalog.AddStation(gs); err != nil {
		s.fail(c, err)
		return
	}
	stored, err := s.catalog.GetStation(gs.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	requestLog(c, s.log).Info(c.Request.Context(), "station added", logging.String("station", stored.Name))
	c.JSON(http.StatusCreated, toStationJSON(stored))
}

type satelliteJSON struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

func (s *Server) constellation(c *gin.Context) {
	cfg := core.DefaultConstellationConfig()
	var step float64
	var err error

	if cfg.Planes, err = queryInt(c, "planes", cfg.Planes); err != nil {
		s.fail(c, err)
		return
	}
	if cfg.SatsPerPlane, err = queryInt(c, "per_plane", cfg.SatsPerPlane); err != nil {
		s.fail(c, err)
		return
	}
	if cfg.InclinationDeg, err = queryFloat(c, "inclination", cfg.InclinationDeg); err != nil {
		s.fail(c, err)
		return
	}
	if cfg.AltitudeKm, err = queryFloat(c, "altitude", cfg.AltitudeKm); err != nil {
		s.fail(c, err)
		return
	}
	if step, err = queryFloat(c, "step", 0); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.checkSize(cfg); err != nil {
		s.fail(c, err)
		return
	}

	sats, err := core.GenerateConstellation(cfg, step)
	if err != nil {
		s.fail(c, err)
		return
	}

	ids := make([]string, 0, len(sats))
	for id := range sats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return satelliteIndex(ids[i]) < satelliteIndex(ids[j])
	})
	out := make([]satelliteJSON, 0, len(ids))
	for _, id := range ids {
		p := sats[id]
		out = append(out, satelliteJSON{ID: id, X: p.X, Y: p.Y, Z: p.Z})
	}
	c.JSON(http.StatusOK, gin.H{
		"constellation": cfg,
		"step":          step,
		"satellites":    out,
	})
}

// satelliteIndex orders "Sat_<n>" identifiers numerically.
func satelliteIndex(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "Sat_"))
	if err != nil {
		return -1
	}
	return n
}

type constellationParams struct {
	Planes         *int     `json:"planes"`
	SatsPerPlane   *int     `json:"sats_per_plane"`
	InclinationDeg *float64 `json:"inclination_deg"`
	AltitudeKm     *float64 `json:"altitude_km"`
}

type routeRequest struct {
	Constellation   *constellationParams `json:"constellation"`
	From            string               `json:"from" binding:"required"`
	To              string               `json:"to" binding:"required"`
	Stations        []string             `json:"stations"`
	Disabled        []string             `json:"disabled"`
	Weather         string               `json:"weather"`
	ISLThresholdKm  *float64             `json:"isl_threshold_km"`
	GSThresholdKm   *float64             `json:"gs_threshold_km"`
	TimeStep        float64              `json:"time_step"`
	LineOfSight     bool                 `json:"line_of_sight"`
	MinElevationDeg float64              `json:"min_elevation_deg"`
}

type hopJSON struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	Label      string  `json:"label"`
	Link       string  `json:"link,omitempty"`
	DistanceKm float64 `json:"distance_km"`
	Weight     float64 `json:"weight"`
}

type routeResponse struct {
	Status     core.RouteOutcome `json:"status"`
	Message    string            `json:"message"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	Step       float64           `json:"step"`
	Weather    core.Weather      `json:"weather"`
	Nodes      int               `json:"nodes"`
	Edges      int               `json:"edges"`
	Path       []hopJSON         `json:"path,omitempty"`
	Hops       int               `json:"hops"`
	Weight     float64           `json:"weight"`
	DistanceKm float64           `json:"distance_km"`
	LatencyMs  float64           `json:"latency_ms"`
}

func (s *Server) scenarioFor(req routeRequest) (*core.Scenario, error) {
	sc := core.DefaultScenario()
	if p := req.Constellation; p != nil {
		if p.Planes != nil {
			sc.Constellation.Planes = *p.Planes
		}
		if p.SatsPerPlane != nil {
			sc.Constellation.SatsPerPlane = *p.SatsPerPlane
		}
		if p.InclinationDeg != nil {
			sc.Constellation.InclinationDeg = *p.InclinationDeg
		}
		if p.AltitudeKm != nil {
			sc.Constellation.AltitudeKm = *p.AltitudeKm
		}
	}
	if err := s.checkSize(sc.Constellation); err != nil {
		return nil, err
	}

	stations, err := s.stationsFor(req)
	if err != nil {
		return nil, err
	}
	sc.Stations = stations
	sc.Source = req.From
	sc.Destination = req.To
	sc.Disabled = core.NewDisabledSet(req.Disabled...)
	sc.Weather = core.ParseWeather(req.Weather)
	if req.ISLThresholdKm != nil {
		sc.ISLThresholdKm = *req.ISLThresholdKm
	}
	if req.GSThresholdKm != nil {
		sc.GroundThresholdKm = *req.GSThresholdKm
	}
	sc.TimeStep = req.TimeStep
	return sc, nil
}

func (s *Server) route(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	sc, err := s.scenarioFor(req)
	if err != nil {
		s.fail(c, err)
		return
	}

	var topo []core.TopologyOption
	if req.LineOfSight {
		topo = append(topo, core.WithLineOfSight())
	}
	if req.MinElevationDeg > 0 {
		topo = append(topo, core.WithMinElevation(req.MinElevationDeg))
	}
	opts := []sim.Option{
		sim.WithLogger(requestLog(c, s.log)),
		sim.WithTracer(s.tracer),
		sim.WithTopologyOptions(topo...),
	}
	if s.metrics != nil {
		opts = append(opts, sim.WithMetrics(s.metrics))
	}

	eng, err := sim.NewEngine(sc, opts...)
	if err != nil {
		s.fail(c, err)
		return
	}
	snap, err := eng.Step(c.Request.Context(), sc.TimeStep)
	if err != nil {
		s.fail(c, err)
		return
	}

	r := report.NewRoute(snap.Graph, sc.Source, sc.Destination, snap.Step, sc.Weather, snap.Route, snap.RouteErr)
	resp := routeResponse{
		Status:  snap.Outcome(),
		Message: r.Summary(),
		From:    r.From,
		To:      r.To,
		Step:    r.Step,
		Weather: r.Weather,
		Nodes:   snap.Graph.NodeCount(),
		Edges:   snap.Graph.EdgeCount(),
	}
	if snap.RouteErr == nil {
		resp.Hops = snap.Route.Hops()
		resp.Weight = snap.Route.Weight
		resp.DistanceKm = snap.Route.DistanceKm
		resp.LatencyMs = snap.Route.LatencyMs()
		for _, row := range r.Rows {
			resp.Path = append(resp.Path, hopJSON{
				ID:         row.Node,
				Kind:       string(row.Kind),
				Label:      row.Kind.Label(),
				Link:       string(row.Link),
				DistanceKm: row.DistanceKm,
				Weight:     row.Weight,
			})
		}
	}

	code := http.StatusOK
	switch resp.Status {
	case core.RouteUnknownNode:
		code = http.StatusNotFound
	case core.RouteError:
		code = http.StatusInternalServerError
	}
	c.JSON(code, resp)
}

func (s *Server) checkSize(cfg core.ConstellationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.maxSatellites > 0 && cfg.Size() > s.maxSatellites {
		return fmt.Errorf("%w: %d satellites exceeds the limit of %d", core.ErrInvalidConfiguration, cfg.Size(), s.maxSatellites)
	}
	return nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", errBadRequest, key, raw)
	}
	return v, nil
}

func queryFloat(c *gin.Context, key string, def float64) (float64, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", errBadRequest, key, raw)
	}
	return v, nil
}

// stationsFor returns the ground stations a route query builds with. An
// explicit list is looked up as given; otherwise only the endpoints that
// name catalogue stations take part, and the rest are left to the router.
func (s *Server) stationsFor(req routeRequest) ([]model.GroundStation, error) {
	if len(req.Stations) > 0 {
		return s.catalog.Lookup(req.Stations...)
	}
	var out []model.GroundStation
	for _, name := range []string{req.From, req.To} {
		if len(out) > 0 && out[0].Name == name {
			continue
		}
		gs, err := s.catalog.GetStation(name)
		if err != nil {
			continue
		}
		out = append(out, gs)
	}
	return out, nil
}
