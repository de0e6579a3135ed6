package kb

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/signalsfoundry/starlinker/core"
	"github.com/signalsfoundry/starlinker/model"
)

func TestDefaultCatalogHasCities(t *testing.T) {
	c := DefaultCatalog()
	list := c.ListStations()
	if len(list) != len(model.DefaultCities()) {
		t.Fatalf("got %d stations, want %d", len(list), len(model.DefaultCities()))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name >= list[i].Name {
			t.Fatalf("ListStations not sorted: %q before %q", list[i-1].Name, list[i].Name)
		}
	}

	ny, err := c.GetStation("New York (USA)")
	if err != nil {
		t.Fatalf("GetStation: %v", err)
	}
	if ny.LatitudeDeg != 40.7128 || ny.LongitudeDeg != -74.0060 {
		t.Fatalf("New York = %+v", ny)
	}
}

func TestAddStationDuplicateAndInvalid(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if err := c.AddStation(model.GroundStation{Name: " Quito ", LatitudeDeg: -0.18, LongitudeDeg: -78.47}); err != nil {
		t.Fatalf("AddStation: %v", err)
	}
	if _, err := c.GetStation("Quito"); err != nil {
		t.Fatalf("name should be trimmed: %v", err)
	}
	if err := c.AddStation(model.GroundStation{Name: "Quito"}); !errors.Is(err, ErrStationExists) {
		t.Fatalf("duplicate err = %v, want ErrStationExists", err)
	}

	bad := []model.GroundStation{
		{Name: ""},
		{Name: "north of north", LatitudeDeg: 91},
		{Name: "far east", LongitudeDeg: 181},
		{Name: "nan", LatitudeDeg: math.NaN()},
		{Name: "Sat_3"},
	}
	for _, gs := range bad {
		if err := c.AddStation(gs); !errors.Is(err, ErrInvalidStation) {
			t.Fatalf("AddStation(%+v) err = %v, want ErrInvalidStation", gs, err)
		}
	}

	if _, err := NewCatalog(model.GroundStation{Name: "A"}, model.GroundStation{Name: "A"}); !errors.Is(err, ErrStationExists) {
		t.Fatalf("NewCatalog duplicate err = %v", err)
	}
}

func TestResolveAndLookup(t *testing.T) {
	c := DefaultCatalog()

	pos, err := c.Resolve("London (UK)", "Tokyo (Japan)")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(pos) != 2 {
		t.Fatalf("Resolve returned %d positions, want 2", len(pos))
	}
	want := core.ToECEF(51.5074, -0.1278, 0)
	if pos["London (UK)"] != want {
		t.Fatalf("London = %+v, want %+v", pos["London (UK)"], want)
	}

	all, err := c.Resolve()
	if err != nil {
		t.Fatalf("Resolve(): %v", err)
	}
	if len(all) != len(model.DefaultCities()) {
		t.Fatalf("Resolve() returned %d, want every station", len(all))
	}

	if _, err := c.Resolve("London (UK)", "Atlantis"); !errors.Is(err, ErrStationNotFound) {
		t.Fatalf("Resolve unknown err = %v, want ErrStationNotFound", err)
	}

	got, err := c.Lookup("Tokyo (Japan)", "London (UK)")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got[0].Name != "Tokyo (Japan)" || got[1].Name != "London (UK)" {
		t.Fatalf("Lookup should keep caller order, got %v", got)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	c, _ := NewCatalog()

	var first, second []Event
	unsubFirst := c.Subscribe(func(e Event) { first = append(first, e) })
	c.Subscribe(func(e Event) { second = append(second, e) })

	if err := c.AddStation(model.GroundStation{Name: "Nairobi", LatitudeDeg: -1.29, LongitudeDeg: 36.82}); err != nil {
		t.Fatalf("AddStation: %v", err)
	}
	unsubFirst()
	unsubFirst()
	if err := c.RemoveStation("Nairobi"); err != nil {
		t.Fatalf("RemoveStation: %v", err)
	}

	if len(first) != 1 || first[0].Type != EventStationAdded || first[0].Station.Name != "Nairobi" {
		t.Fatalf("first subscriber events = %+v", first)
	}
	if len(second) != 2 || second[1].Type != EventStationRemoved {
		t.Fatalf("second subscriber events = %+v", second)
	}
	if err := c.RemoveStation("Nairobi"); !errors.Is(err, ErrStationNotFound) {
		t.Fatalf("second remove err = %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := DefaultCatalog()

	var wg sync.WaitGroup
	// Concurrent readers/writers
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = c.GetStation("London (UK)")
			_ = c.ListStations()
			_, _ = c.Resolve()
		}()
		go func() {
			defer wg.Done()
			_ = c.AddStation(model.GroundStation{Name: fmt.Sprintf("gs-%d", i), LongitudeDeg: float64(i)})
		}()
	}
	wg.Wait()

	if got := len(c.ListStations()); got != len(model.DefaultCities())+10 {
		t.Fatalf("got %d stations after concurrent adds, want %d", got, len(model.DefaultCities())+10)
	}
}
