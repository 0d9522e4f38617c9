package predictor

import (
	"context"
	"testing"
	"time"

	"github.com/futonlab/miteguard/internal/models"
)

func window(temp, hum, precip float64, hours int) models.OptimalWindow {
	start := time.Date(2026, 5, 12, 10, 0, 0, 0, time.Local)
	return models.OptimalWindow{
		StartTime:                   start,
		EndTime:                     start.Add(time.Duration(hours) * time.Hour),
		AvgTemperature:              temp,
		AvgHumidity:                 hum,
		AvgPrecipitationProbability: precip,
	}
}

func TestFallbackBounds(t *testing.T) {
	tests := []struct {
		name string
		w    models.OptimalWindow
	}{
		{"ideal long window", window(35, 20, 0, 8)},
		{"poor short window", window(8, 90, 50, 1)},
		{"extreme values", window(100, 0, 0, 48)},
		{"below range values", window(-10, 120, 100, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Fallback{}.Predict(context.Background(), Request{
				BeforeScore: 80,
				Window:      tt.w,
			})
			if err != nil {
				t.Fatalf("fallback must not error: %v", err)
			}
			if out.ScoreReduction < MinReduction || out.ScoreReduction > MaxReduction {
				t.Errorf("reduction %v outside [%v,%v]", out.ScoreReduction, MinReduction, MaxReduction)
			}
			if out.FinalScore < 0 {
				t.Errorf("final score %v must not go below 0", out.FinalScore)
			}
		})
	}
}

func TestFallbackMonotonicity(t *testing.T) {
	ctx := context.Background()

	better, _ := Fallback{}.Predict(ctx, Request{BeforeScore: 80, Window: window(28, 40, 5, 4)})
	worse, _ := Fallback{}.Predict(ctx, Request{BeforeScore: 80, Window: window(12, 85, 45, 1)})
	if better.ScoreReduction <= worse.ScoreReduction {
		t.Errorf("more favorable window should reduce more: %v <= %v",
			better.ScoreReduction, worse.ScoreReduction)
	}

	long, _ := Fallback{}.Predict(ctx, Request{BeforeScore: 80, Window: window(15, 70, 20, 6)})
	short, _ := Fallback{}.Predict(ctx, Request{BeforeScore: 80, Window: window(15, 70, 20, 1)})
	if long.ScoreReduction <= short.ScoreReduction {
		t.Errorf("longer duration should reduce more: %v <= %v",
			long.ScoreReduction, short.ScoreReduction)
	}
}

func TestFallbackFinalScoreClamped(t *testing.T) {
	out, err := Fallback{}.Predict(context.Background(), Request{
		BeforeScore: 5,
		Window:      window(30, 30, 0, 6),
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.FinalScore != 0 {
		t.Errorf("final score = %v, want clamp at 0 when reduction exceeds before score", out.FinalScore)
	}
}

func TestClampOutcome(t *testing.T) {
	out := clampOutcome(50, 25)
	if out.ScoreReduction != 25 {
		t.Errorf("reduction = %v, want 25", out.ScoreReduction)
	}
	if out.FinalScore != 25 {
		t.Errorf("final = %v, want 25", out.FinalScore)
	}

	out = clampOutcome(50, 100)
	if out.ScoreReduction != MaxReduction {
		t.Errorf("reduction = %v, want clamp at %v", out.ScoreReduction, MaxReduction)
	}
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    float64
		wantErr bool
	}{
		{"plain", `{"score_reduction": 22}`, 22, false},
		{"fenced", "```json\n{\"score_reduction\": 31.5}\n```", 31.5, false},
		{"with prose", `Sure! {"score_reduction": 18} hope that helps`, 18, false},
		{"no json", "about twenty", 0, true},
		{"broken json", `{"score_reduction": `, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnswer(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAnswer(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got.ScoreReduction != tt.want {
				t.Errorf("parseAnswer(%q) = %v, want %v", tt.in, got.ScoreReduction, tt.want)
			}
		})
	}
}
