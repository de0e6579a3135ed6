package core

import "strings"

// Weather is the atmospheric condition applied to ground-to-satellite
// links. Unrecognised values are valid and carry no penalty.
type Weather string

const (
	WeatherClear  Weather = "Clear"
	WeatherCloudy Weather = "Cloudy"
	WeatherRainy  Weather = "Rainy"
	WeatherStormy Weather = "Stormy"
)

var weatherPenalties = map[Weather]float64{
	WeatherClear:  1.0,
	WeatherCloudy: 1.3,
	WeatherRainy:  2.0,
	WeatherStormy: 5.0,
}

// KnownWeather lists the conditions with a defined penalty, mildest first.
func KnownWeather() []Weather {
	return []Weather{WeatherClear, WeatherCloudy, WeatherRainy, WeatherStormy}
}

// Penalty returns the ground-link weight multiplier for w, defaulting
// to 1.0 for anything not in the table.
func (w Weather) Penalty() float64 {
	if p, ok := weatherPenalties[w]; ok {
		return p
	}
	return 1.0
}

// ParseWeather maps user input onto a known condition, ignoring case and
// surrounding space. Empty input means Clear; other unknown strings are
// returned as-is so Penalty falls back to 1.0.
func ParseWeather(s string) Weather {
	v := strings.TrimSpace(s)
	if v == "" {
		return WeatherClear
	}
	for _, w := range KnownWeather() {
		if strings.EqualFold(v, string(w)) {
			return w
		}
	}
	return Weather(v)
}
