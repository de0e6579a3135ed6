// Package kb holds the ground-station catalogue: named terrestrial
// endpoints that routing queries can refer to.
package kb

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/signalsfoundry/starlinker/core"
	"github.com/signalsfoundry/starlinker/model"
)

var (
	ErrStationExists   = errors.New("ground station already exists")
	ErrStationNotFound = errors.New("ground station not found")
	ErrInvalidStation  = errors.New("invalid ground station")
)

// EventType indicates what kind of change happened in the catalogue.
type EventType int

const (
	EventStationAdded EventType = iota
	EventStationRemoved
)

// Event is emitted to subscribers when the catalogue changes.
type Event struct {
	Type    EventType
	Station model.GroundStation
}

// Catalog is an in-memory, thread-safe store of ground stations keyed by
// name.
type Catalog struct {
	mu sync.RWMutex

	stations map[string]model.GroundStation

	nextSub int
	subs    map[int]func(Event)
}

// NewCatalog constructs a catalogue seeded with stations.
func NewCatalog(stations ...model.GroundStation) (*Catalog, error) {
	c := &Catalog{
		stations: make(map[string]model.GroundStation, len(stations)),
		subs:     make(map[int]func(Event)),
	}
	for _, gs := range stations {
		if err := c.AddStation(gs); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DefaultCatalog returns a catalogue of the built-in cities.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(model.DefaultCities()...)
	if err != nil {
		// The built-in table is static; a failure here is a programming error.
		panic(err)
	}
	return c
}

// AddStation validates and stores gs, then notifies subscribers.
func (c *Catalog) AddStation(gs model.GroundStation) error {
	gs.Name = strings.TrimSpace(gs.Name)
	if err := validateStation(gs); err != nil {
		return err
	}

	c.mu.Lock()
	if _, exists := c.stations[gs.Name]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrStationExists, gs.Name)
	}
	c.stations[gs.Name] = gs
	subs := c.subscribersLocked()
	c.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(Event{Type: EventStationAdded, Station: gs})
	}
	return nil
}

// RemoveStation deletes the named station.
func (c *Catalog) RemoveStation(name string) error {
	c.mu.Lock()
	gs, ok := c.stations[name]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrStationNotFound, name)
	}
	delete(c.stations, name)
	subs := c.subscribersLocked()
	c.mu.Unlock()

	for _, sub := range subs {
		sub(Event{Type: EventStationRemoved, Station: gs})
	}
	return nil
}

// GetStation returns the named station.
func (c *Catalog) GetStation(name string) (model.GroundStation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	gs, ok := c.stations[name]
	if !ok {
		return model.GroundStation{}, fmt.Errorf("%w: %q", ErrStationNotFound, name)
	}
	return gs, nil
}

// ListStations returns a snapshot of all stations sorted by name.
func (c *Catalog) ListStations() []model.GroundStation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]model.GroundStation, 0, len(c.stations))
	for _, gs := range c.stations {
		res = append(res, gs)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Lookup returns the named stations in the order given. With no names it
// returns every station.
func (c *Catalog) Lookup(names ...string) ([]model.GroundStation, error) {
	if len(names) == 0 {
		return c.ListStations(), nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]model.GroundStation, 0, len(names))
	var missing []string
	for _, name := range names {
		gs, ok := c.stations[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		res = append(res, gs)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, strings.Join(missing, ", "))
	}
	return res, nil
}

// Resolve converts the named stations (all stations when none are given)
// to ECEF positions keyed by name.
func (c *Catalog) Resolve(names ...string) (map[string]core.Vec3, error) {
	stations, err := c.Lookup(names...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.Vec3, len(stations))
	for _, gs := range stations {
		out[gs.Name] = core.ToECEF(gs.LatitudeDeg, gs.LongitudeDeg, gs.AltitudeKm)
	}
	return out, nil
}

// Subscribe registers a callback for catalogue events. It returns an
// unsubscribe function.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Catalog) subscribersLocked() []func(Event) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, c.subs[id])
	}
	return out
}

func validateStation(gs model.GroundStation) error {
	if gs.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidStation)
	}
	if core.IsSatelliteID(gs.Name) {
		return fmt.Errorf("%w: %q is reserved for satellite identifiers", ErrInvalidStation, gs.Name)
	}
	for _, v := range []float64{gs.LatitudeDeg, gs.LongitudeDeg, gs.AltitudeKm} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %q has non-finite coordinates", ErrInvalidStation, gs.Name)
		}
	}
	if gs.LatitudeDeg < -90 || gs.LatitudeDeg > 90 {
		return fmt.Errorf("%w: %q latitude %v outside [-90, 90]", ErrInvalidStation, gs.Name, gs.LatitudeDeg)
	}
	if gs.LongitudeDeg < -180 || gs.LongitudeDeg > 180 {
		return fmt.Errorf("%w: %q longitude %v outside [-180, 180]", ErrInvalidStation, gs.Name, gs.LongitudeDeg)
	}
	return nil
}
