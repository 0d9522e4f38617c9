// Package window scans a weather forecast for sun-drying windows.
//
// Pure and deterministic: no clock, no I/O. The caller decides what a missing
// forecast means; this package only ever sees well-formed interval slices.
package window

import (
	"fmt"
	"sort"

	"github.com/futonlab/miteguard/internal/models"
	"github.com/futonlab/miteguard/internal/risk"
)

// Hard limits an interval must satisfy to join a drying run.
const (
	MinTemperature       = 8.0  // °C
	MaxHumidity          = 90.0 // %
	MaxPrecipProbability = 50.0 // %
	DaylightStartHour    = 7
	DaylightEndHour      = 19
)

// Tuning holds the suitability scoring weights. The defaults are tuned
// constants; only their monotonic direction is contractual (hotter within
// range, drier, and less rain all raise the score).
type Tuning struct {
	TempWeight     float64 `yaml:"temp_weight"`
	TempCap        float64 `yaml:"temp_cap"`
	HumidityWeight float64 `yaml:"humidity_weight"`
	HumidityCap    float64 `yaml:"humidity_cap"`
	PrecipWeight   float64 `yaml:"precip_weight"`
	PrecipCap      float64 `yaml:"precip_cap"`
	Threshold      float64 `yaml:"threshold"`
}

// DefaultTuning caps the three terms at 40+35+25 = 100 points.
func DefaultTuning() Tuning {
	return Tuning{
		TempWeight:     2.5,
		TempCap:        40,
		HumidityWeight: 0.7,
		HumidityCap:    35,
		PrecipWeight:   0.5,
		PrecipCap:      25,
		Threshold:      60,
	}
}

// Assessment is the top-level classification of a forecast. Reason is set
// only when IsOptimalForSunDrying is false, and distinguishes "no window at
// all" from "a window exists but scored below threshold". A failed forecast
// fetch never reaches this type; that is an error on the caller's side.
type Assessment struct {
	Windows               []models.OptimalWindow `json:"windows"`
	IsOptimalForSunDrying bool                   `json:"is_optimal_for_sun_drying"`
	Reason                string                 `json:"reason,omitempty"`
}

// Finder scans interval series using a fixed tuning.
type Finder struct {
	tuning Tuning
}

// NewFinder creates a Finder. Zero-valued tuning fields fall back to defaults.
func NewFinder(t Tuning) *Finder {
	def := DefaultTuning()
	if t.TempWeight == 0 {
		t.TempWeight = def.TempWeight
	}
	if t.TempCap == 0 {
		t.TempCap = def.TempCap
	}
	if t.HumidityWeight == 0 {
		t.HumidityWeight = def.HumidityWeight
	}
	if t.HumidityCap == 0 {
		t.HumidityCap = def.HumidityCap
	}
	if t.PrecipWeight == 0 {
		t.PrecipWeight = def.PrecipWeight
	}
	if t.PrecipCap == 0 {
		t.PrecipCap = def.PrecipCap
	}
	if t.Threshold == 0 {
		t.Threshold = def.Threshold
	}
	return &Finder{tuning: t}
}

// FindOptimalWindows groups consecutive suitable intervals into windows and
// returns them sorted descending by suitability score. A single suitable
// interval is still a window; short runs are emitted, not discarded.
func (f *Finder) FindOptimalWindows(intervals []models.WeatherInterval) []models.OptimalWindow {
	var windows []models.OptimalWindow
	var run []models.WeatherInterval

	flush := func() {
		if len(run) > 0 {
			windows = append(windows, f.buildWindow(run))
			run = nil
		}
	}

	for _, iv := range intervals {
		if suitableInterval(iv) {
			run = append(run, iv)
		} else {
			flush()
		}
	}
	flush()

	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].SuitabilityScore > windows[j].SuitabilityScore
	})
	return windows
}

// Assess classifies a forecast. When not optimal, the reason is derived in
// priority order: widespread rain, low temperature, high humidity, no run at
// all, then the marginal case recommending the best sub-threshold window.
func (f *Finder) Assess(intervals []models.WeatherInterval) Assessment {
	windows := f.FindOptimalWindows(intervals)
	a := Assessment{Windows: windows}

	if len(windows) > 0 && windows[0].SuitabilityScore >= f.tuning.Threshold {
		a.IsOptimalForSunDrying = true
		return a
	}

	var rainy int
	var tempSum, humSum float64
	for _, iv := range intervals {
		if iv.PrecipitationProbability > MaxPrecipProbability {
			rainy++
		}
		tempSum += iv.Temperature
		humSum += iv.Humidity
	}

	switch {
	case len(intervals) > 0 && float64(rainy)/float64(len(intervals)) > 0.5:
		a.Reason = "high chance of rain through most of the forecast period"
	case len(intervals) > 0 && tempSum/float64(len(intervals)) < MinTemperature:
		a.Reason = "temperatures are too low for effective drying"
	case len(intervals) > 0 && humSum/float64(len(intervals)) > MaxHumidity:
		a.Reason = "humidity is too high for effective drying"
	case len(windows) == 0:
		a.Reason = "no suitable daylight window in the forecast period"
	default:
		best := windows[0]
		a.Reason = fmt.Sprintf("conditions are marginal; best window is %s to %s",
			best.StartTime.Format("15:04"), best.EndTime.Format("15:04"))
	}
	return a
}

func suitableInterval(iv models.WeatherInterval) bool {
	h := iv.StartTime.Hour()
	return iv.Temperature >= MinTemperature &&
		iv.Humidity <= MaxHumidity &&
		iv.PrecipitationProbability <= MaxPrecipProbability &&
		h >= DaylightStartHour && h < DaylightEndHour
}

func (f *Finder) buildWindow(run []models.WeatherInterval) models.OptimalWindow {
	var tempSum, humSum, precipSum float64
	for _, iv := range run {
		tempSum += iv.Temperature
		humSum += iv.Humidity
		precipSum += iv.PrecipitationProbability
	}
	n := float64(len(run))
	avgTemp := tempSum / n
	avgHum := humSum / n
	avgPrecip := precipSum / n

	return models.OptimalWindow{
		StartTime:                   run[0].StartTime,
		EndTime:                     run[len(run)-1].StartTime.Add(models.IntervalWidth),
		AvgTemperature:              risk.Round2(avgTemp),
		AvgHumidity:                 risk.Round2(avgHum),
		AvgPrecipitationProbability: risk.Round2(avgPrecip),
		SuitabilityScore:            risk.Round2(f.score(avgTemp, avgHum, avgPrecip)),
	}
}

// score is a weighted linear combination with each term's contribution
// capped. Monotonic: warmer (above the minimum), drier, and less rain all
// increase it.
func (f *Finder) score(avgTemp, avgHum, avgPrecip float64) float64 {
	tempTerm := capTerm((avgTemp-MinTemperature)*f.tuning.TempWeight, f.tuning.TempCap)
	humTerm := capTerm((MaxHumidity-avgHum)*f.tuning.HumidityWeight, f.tuning.HumidityCap)
	precipTerm := capTerm((MaxPrecipProbability-avgPrecip)*f.tuning.PrecipWeight, f.tuning.PrecipCap)
	return tempTerm + humTerm + precipTerm
}

func capTerm(v, cap float64) float64 {
	if v < 0 {
		return 0
	}
	if v > cap {
		return cap
	}
	return v
}
