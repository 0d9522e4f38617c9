package models

import "time"

// IntervalWidth is the fixed width of one forecast slice.
const IntervalWidth = 30 * time.Minute

// WeatherInterval is one fixed-width slice of a forecast horizon.
// Ephemeral: recomputed per request, never persisted.
type WeatherInterval struct {
	StartTime                time.Time `json:"start_time"`
	Temperature              float64   `json:"temperature_c"`
	Humidity                 float64   `json:"humidity_percent"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
}

// OptimalWindow is a contiguous run of suitable intervals with averaged
// conditions and a suitability score. Derived, never persisted.
type OptimalWindow struct {
	StartTime                   time.Time `json:"start_time"`
	EndTime                     time.Time `json:"end_time"`
	AvgTemperature              float64   `json:"avg_temperature"`
	AvgHumidity                 float64   `json:"avg_humidity"`
	AvgPrecipitationProbability float64   `json:"avg_precipitation_probability"`
	SuitabilityScore            float64   `json:"suitability_score"`
}

// Duration returns the window length.
func (w OptimalWindow) Duration() time.Duration {
	return w.EndTime.Sub(w.StartTime)
}
