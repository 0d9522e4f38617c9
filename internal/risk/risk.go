// Package risk implements the hourly mite-risk growth model.
//
// Pure functions only. No side effects, no clock, no I/O: same inputs
// always produce the same outputs. Callers own persistence and scheduling.
package risk

import (
	"math"

	"github.com/futonlab/miteguard/internal/models"
)

// BaseHourlyRate is the growth in score points per hour under perfect
// mite conditions for a baseline material and thickness.
const BaseHourlyRate = 0.5

// Score bounds.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

var materialMultipliers = map[models.Material]float64{
	models.MaterialCotton:    1.2,
	models.MaterialWool:      1.1,
	models.MaterialPolyester: 0.8,
	models.MaterialSilk:      0.6,
	models.MaterialFeather:   1.0,
}

var thicknessMultipliers = map[models.Thickness]float64{
	models.ThicknessThin:       0.9,
	models.ThicknessMedium:     1.0,
	models.ThicknessThick:      1.1,
	models.ThicknessExtraThick: 1.2,
}

// MaterialMultiplier returns the growth multiplier for a material.
// Unknown categories default to 1.0.
func MaterialMultiplier(m models.Material) float64 {
	if mult, ok := materialMultipliers[m]; ok {
		return mult
	}
	return 1.0
}

// ThicknessMultiplier returns the growth multiplier for a thickness.
// Unknown categories default to 1.0.
func ThicknessMultiplier(t models.Thickness) float64 {
	if mult, ok := thicknessMultipliers[t]; ok {
		return mult
	}
	return 1.0
}

// Suitability scores how favorable ambient conditions are for mite growth,
// in [0,1]. It is the product of two independent membership functions over
// temperature and humidity. Values outside physically expected ranges fall
// into the nearest bucket; there is no error path.
func Suitability(tempC, humidityPct float64) float64 {
	return temperatureFactor(tempC) * humidityFactor(humidityPct)
}

func temperatureFactor(t float64) float64 {
	switch {
	case t >= 20 && t <= 30:
		return 1.0
	case (t >= 15 && t < 20) || (t > 30 && t <= 35):
		return 0.5
	default:
		return 0.1
	}
}

func humidityFactor(h float64) float64 {
	switch {
	case h >= 70 && h <= 80:
		return 1.0
	case (h >= 60 && h < 70) || (h > 80 && h <= 90):
		return 0.7
	case (h >= 50 && h < 60) || (h > 90 && h <= 100):
		return 0.3
	default:
		return 0.1
	}
}

// HourlyGrowth computes the score increase for one hour under the given
// conditions, rounded to 2 decimal places. Never negative.
func HourlyGrowth(tempC, humidityPct float64, material models.Material, thickness models.Thickness) float64 {
	growth := BaseHourlyRate * Suitability(tempC, humidityPct) *
		MaterialMultiplier(material) * ThicknessMultiplier(thickness)
	return Round2(growth)
}

// ApplyGrowth adds growth to a score and clamps the result to [0,100].
// Negative growth is treated as zero: only interventions reduce a score.
func ApplyGrowth(currentScore, growth float64) float64 {
	if growth < 0 {
		growth = 0
	}
	return Clamp(currentScore + growth)
}

// Clamp bounds a score to [0,100].
func Clamp(score float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, score))
}

// Round2 rounds to 2 decimal places, the precision persisted for scores.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
