package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/futonlab/miteguard/internal/models"
)

// Client fetches forecasts from an HTTP weather service that returns
// 30-minute interval slices as JSON:
//
//	{"intervals": [{"time": "...", "temperature_c": 21.5,
//	                "humidity_percent": 55, "precipitation_probability": 10}]}
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check that Client implements Provider.
var _ Provider = (*Client)(nil)

// NewClient creates a forecast client. If baseURL is empty, uses the
// MITEGUARD_FORECAST_URL env var.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("MITEGUARD_FORECAST_URL")
	}

	timeout := 15 * time.Second
	if t := os.Getenv("MITEGUARD_FORECAST_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type wireInterval struct {
	Time                     time.Time `json:"time"`
	TemperatureC             float64   `json:"temperature_c"`
	HumidityPercent          float64   `json:"humidity_percent"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
}

type wireResponse struct {
	Intervals []wireInterval `json:"intervals"`
}

// Forecast fetches the interval series for a coordinate. All failure modes
// are wrapped in ErrUnavailable so callers can branch with errors.Is.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) ([]models.WeatherInterval, error) {
	u, err := url.Parse(c.baseURL + "/v1/forecast")
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", ErrUnavailable, err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("hours", strconv.Itoa(HorizonHours))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	// An empty series is a provider failure, not a statement about weather.
	if len(wire.Intervals) == 0 {
		return nil, fmt.Errorf("%w: empty interval series", ErrUnavailable)
	}

	intervals := make([]models.WeatherInterval, len(wire.Intervals))
	for i, w := range wire.Intervals {
		intervals[i] = models.WeatherInterval{
			StartTime:                w.Time,
			Temperature:              w.TemperatureC,
			Humidity:                 w.HumidityPercent,
			PrecipitationProbability: w.PrecipitationProbability,
		}
	}
	return intervals, nil
}
