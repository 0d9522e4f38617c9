// Package predictor estimates the outcome of a drying intervention.
//
// The AI path runs through langchaingo; every failure degrades to a
// deterministic formula built from the same window attributes, so an
// unavailable model never fails the scheduling flow.
package predictor

import (
	"context"
	"time"

	"github.com/futonlab/miteguard/internal/models"
	"github.com/futonlab/miteguard/internal/risk"
)

// Reduction bounds. Every predictor output lands inside these.
const (
	MinReduction = 10.0
	MaxReduction = 40.0
)

// Outcome is the predicted effect of one intervention.
type Outcome struct {
	EffectivenessScore float64 `json:"effectiveness_score"`
	ScoreReduction     float64 `json:"score_reduction"`
	FinalScore         float64 `json:"final_score"`
}

// Request describes the intervention to predict.
type Request struct {
	PhotoRef    string
	BeforeScore float64
	Window      models.OptimalWindow
	Duration    time.Duration // defaults to the window length when zero
}

// Predictor estimates an intervention outcome.
type Predictor interface {
	Predict(ctx context.Context, req Request) (Outcome, error)
}

// Fallback is the deterministic predictor: favorable temperature, dryness,
// low precipitation, and a longer duration each add to a base reduction,
// summed into the [MinReduction, MaxReduction] range. No network dependency.
type Fallback struct{}

// Compile-time check that Fallback implements Predictor.
var _ Predictor = Fallback{}

// Predict computes the outcome from window attributes alone. Never errors.
func (Fallback) Predict(_ context.Context, req Request) (Outcome, error) {
	w := req.Window
	duration := req.Duration
	if duration == 0 {
		duration = w.Duration()
	}

	reduction := MinReduction +
		bonus((w.AvgTemperature-8)*0.6, 12) +
		bonus((90-w.AvgHumidity)*0.15, 9) +
		bonus((50-w.AvgPrecipitationProbability)*0.1, 5) +
		bonus(duration.Hours(), 4)

	return clampOutcome(req.BeforeScore, reduction), nil
}

// clampOutcome normalizes a raw reduction into a valid Outcome.
func clampOutcome(beforeScore, reduction float64) Outcome {
	if reduction < MinReduction {
		reduction = MinReduction
	}
	if reduction > MaxReduction {
		reduction = MaxReduction
	}
	reduction = risk.Round2(reduction)

	final := beforeScore - reduction
	if final < 0 {
		final = 0
	}

	return Outcome{
		EffectivenessScore: risk.Round2(reduction / MaxReduction * 100),
		ScoreReduction:     reduction,
		FinalScore:         risk.Round2(final),
	}
}

func bonus(v, cap float64) float64 {
	if v < 0 {
		return 0
	}
	if v > cap {
		return cap
	}
	return v
}
