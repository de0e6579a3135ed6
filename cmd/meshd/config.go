package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/signalsfoundry/starlinker/internal/httpapi"
	"github.com/signalsfoundry/starlinker/model"
	"gopkg.in/ini.v1"
)

// config is the daemon's process configuration. An INI file supplies
// the base values and explicit flags override them.
//
//	[server]
//	http_addr = :8080
//	grpc_addr = :50051
//	max_satellites = 5000
//
//	[stations]
//	Reykjavik (Iceland) = 64.1466, -21.9426
//	Quito (Ecuador)     = -0.1807, -78.4678, 2.85
type config struct {
	HTTPAddr      string
	GRPCAddr      string
	MaxSatellites int
	// Stations are added to the default city catalogue.
	Stations []model.GroundStation
}

func defaultConfig() config {
	return config{
		HTTPAddr:      ":8080",
		GRPCAddr:      ":50051",
		MaxSatellites: httpapi.DefaultMaxSatellites,
	}
}

func loadConfig(source any) (config, error) {
	cfg := defaultConfig()

	file, err := ini.Load(source)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}

	server := file.Section("server")
	cfg.HTTPAddr = server.Key("http_addr").MustString(cfg.HTTPAddr)
	cfg.GRPCAddr = server.Key("grpc_addr").MustString(cfg.GRPCAddr)
	if server.HasKey("max_satellites") {
		n, err := server.Key("max_satellites").Int()
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("load config: max_satellites must be a positive integer")
		}
		cfg.MaxSatellites = n
	}

	for _, key := range file.Section("stations").Keys() {
		gs, err := parseStation(key.Name(), key.String())
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg.Stations = append(cfg.Stations, gs)
	}
	return cfg, nil
}

// parseStation reads "lat, lon" or "lat, lon, alt_km".
func parseStation(name, value string) (model.GroundStation, error) {
	parts := strings.Split(value, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return model.GroundStation{}, fmt.Errorf("station %q: want \"lat, lon[, alt_km]\", got %q", name, value)
	}
	nums := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.GroundStation{}, fmt.Errorf("station %q: %w", name, err)
		}
		nums[i] = v
	}
	gs := model.GroundStation{Name: strings.TrimSpace(name), LatitudeDeg: nums[0], LongitudeDeg: nums[1]}
	if len(nums) == 3 {
		gs.AltitudeKm = nums[2]
	}
	return gs, nil
}
