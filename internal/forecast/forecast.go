// Package forecast fetches weather forecasts for the window finder and the
// growth tick. A failed fetch is "forecast unavailable" (retryable) and must
// never be conflated with "conditions are poor".
package forecast

import (
	"context"
	"errors"

	"github.com/futonlab/miteguard/internal/models"
)

// ErrUnavailable indicates the forecast could not be fetched (network,
// quota, malformed response). Always retryable; never a classification of
// the weather itself.
var ErrUnavailable = errors.New("forecast unavailable")

// HorizonHours is the fixed forward horizon a provider must cover.
const HorizonHours = 12

// Provider returns an ordered series of fixed-width weather intervals for a
// coordinate, covering the forward horizon.
type Provider interface {
	Forecast(ctx context.Context, lat, lon float64) ([]models.WeatherInterval, error)
}
