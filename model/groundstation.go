package model

// GroundStation is a fixed terrestrial endpoint, typically a city.
// Positions are geodetic on the mean sphere; altitude is in kilometres.
type GroundStation struct {
	Name         string  `json:"name"`
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	AltitudeKm   float64 `json:"altitude_km,omitempty"`
}

// DefaultCities is the built-in catalogue of well-known cities.
func DefaultCities() []GroundStation {
	return []GroundStation{
		{Name: "New York (USA)", LatitudeDeg: 40.7128, LongitudeDeg: -74.0060},
		{Name: "Bengaluru (India)", LatitudeDeg: 12.9716, LongitudeDeg: 77.5946},
		{Name: "London (UK)", LatitudeDeg: 51.5074, LongitudeDeg: -0.1278},
		{Name: "Tokyo (Japan)", LatitudeDeg: 35.6762, LongitudeDeg: 139.6503},
		{Name: "Sydney (Australia)", LatitudeDeg: -33.8688, LongitudeDeg: 151.2093},
		{Name: "Cape Town (South Africa)", LatitudeDeg: -33.9249, LongitudeDeg: 18.4241},
	}
}
