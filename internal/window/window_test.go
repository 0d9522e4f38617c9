package window

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/futonlab/miteguard/internal/models"
)

// series builds a 30-minute interval series starting at the given local hour.
func series(startHour, count int, temp, hum, precip float64) []models.WeatherInterval {
	start := time.Date(2026, 5, 12, startHour, 0, 0, 0, time.Local)
	out := make([]models.WeatherInterval, count)
	for i := range out {
		out[i] = models.WeatherInterval{
			StartTime:                start.Add(time.Duration(i) * models.IntervalWidth),
			Temperature:              temp,
			Humidity:                 hum,
			PrecipitationProbability: precip,
		}
	}
	return out
}

func TestFindOptimalWindowsAllGood(t *testing.T) {
	f := NewFinder(Tuning{})
	// 12-hour horizon starting 07:00, entirely inside the daylight band.
	intervals := series(7, 24, 25, 50, 10)

	windows := f.FindOptimalWindows(intervals)
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want exactly 1", len(windows))
	}

	w := windows[0]
	if !w.StartTime.Equal(intervals[0].StartTime) {
		t.Errorf("window start = %v, want %v", w.StartTime, intervals[0].StartTime)
	}
	wantEnd := intervals[len(intervals)-1].StartTime.Add(models.IntervalWidth)
	if !w.EndTime.Equal(wantEnd) {
		t.Errorf("window end = %v, want %v", w.EndTime, wantEnd)
	}
	if w.AvgTemperature != 25 || w.AvgHumidity != 50 || w.AvgPrecipitationProbability != 10 {
		t.Errorf("window averages = %v/%v/%v, want 25/50/10",
			w.AvgTemperature, w.AvgHumidity, w.AvgPrecipitationProbability)
	}
}

func TestFindOptimalWindowsAllBad(t *testing.T) {
	f := NewFinder(Tuning{})
	intervals := series(7, 24, 3, 95, 80)

	if windows := f.FindOptimalWindows(intervals); len(windows) != 0 {
		t.Fatalf("got %d windows from all-bad forecast, want 0", len(windows))
	}

	a := f.Assess(intervals)
	if a.IsOptimalForSunDrying {
		t.Error("all-bad forecast classified as optimal")
	}
	if a.Reason == "" {
		t.Error("expected a reason for non-optimal classification")
	}
}

func TestFindOptimalWindowsSplitsOnBadInterval(t *testing.T) {
	f := NewFinder(Tuning{})
	intervals := series(9, 8, 24, 55, 10)
	// A rainy interval in the middle closes the first run.
	intervals[4].PrecipitationProbability = 90

	windows := f.FindOptimalWindows(intervals)
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
}

func TestSingleIntervalRunIsEmitted(t *testing.T) {
	f := NewFinder(Tuning{})
	intervals := series(10, 3, 25, 50, 10)
	intervals[0].Humidity = 99
	intervals[2].Humidity = 99

	windows := f.FindOptimalWindows(intervals)
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1 (30-minute runs still count)", len(windows))
	}
	if got := windows[0].Duration(); got != models.IntervalWidth {
		t.Errorf("window duration = %v, want %v", got, models.IntervalWidth)
	}
}

func TestNoDaylightIntervals(t *testing.T) {
	f := NewFinder(Tuning{})
	// Perfect weather, but entirely at night.
	intervals := series(21, 12, 25, 50, 0)

	if windows := f.FindOptimalWindows(intervals); len(windows) != 0 {
		t.Fatalf("got %d windows outside the daylight band, want 0", len(windows))
	}
}

func TestWindowsSortedAndIdempotent(t *testing.T) {
	f := NewFinder(Tuning{})
	intervals := series(8, 12, 28, 45, 5)
	// Make the middle stretch worse but still suitable, producing multiple
	// runs with distinct scores.
	for i := 4; i < 8; i++ {
		intervals[i].Temperature = 10
		intervals[i].Humidity = 85
	}
	intervals[3].PrecipitationProbability = 90 // run break
	intervals[8].PrecipitationProbability = 90 // run break

	first := f.FindOptimalWindows(intervals)
	if len(first) < 2 {
		t.Fatalf("got %d windows, want at least 2", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i].SuitabilityScore > first[i-1].SuitabilityScore {
			t.Errorf("windows not sorted descending at index %d: %v > %v",
				i, first[i].SuitabilityScore, first[i-1].SuitabilityScore)
		}
	}

	second := f.FindOptimalWindows(intervals)
	if !reflect.DeepEqual(first, second) {
		t.Error("FindOptimalWindows is not idempotent for identical input")
	}
}

func TestAssessReasonPriority(t *testing.T) {
	f := NewFinder(Tuning{})

	tests := []struct {
		name      string
		intervals []models.WeatherInterval
		contains  string
	}{
		{"mostly rain", series(7, 24, 20, 60, 80), "rain"},
		{"too cold", series(7, 24, 2, 60, 10), "too low"},
		{"too humid", series(7, 24, 20, 97, 10), "humidity"},
		{"no daylight", series(21, 8, 25, 50, 0), "no suitable daylight window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := f.Assess(tt.intervals)
			if a.IsOptimalForSunDrying {
				t.Fatal("expected non-optimal classification")
			}
			if !strings.Contains(a.Reason, tt.contains) {
				t.Errorf("reason %q does not contain %q", a.Reason, tt.contains)
			}
		})
	}
}

func TestAssessMarginalReportsBestWindow(t *testing.T) {
	f := NewFinder(Tuning{})
	// Suitable but chilly and damp: a window exists, scores below threshold.
	intervals := series(10, 4, 9, 88, 45)

	a := f.Assess(intervals)
	if a.IsOptimalForSunDrying {
		t.Fatal("marginal forecast classified as optimal")
	}
	if len(a.Windows) == 0 {
		t.Fatal("expected a sub-threshold window to be reported")
	}
	if !strings.Contains(a.Reason, "marginal") {
		t.Errorf("reason %q does not describe the marginal case", a.Reason)
	}
}

func TestScoreMonotonicity(t *testing.T) {
	f := NewFinder(Tuning{})

	// Warmer within range raises the score.
	if f.score(12, 60, 20) >= f.score(20, 60, 20) {
		t.Error("score not increasing with temperature")
	}
	// Drier raises the score.
	if f.score(20, 80, 20) >= f.score(20, 50, 20) {
		t.Error("score not increasing as humidity drops")
	}
	// Less rain raises the score.
	if f.score(20, 60, 45) >= f.score(20, 60, 5) {
		t.Error("score not increasing as precipitation drops")
	}
}
