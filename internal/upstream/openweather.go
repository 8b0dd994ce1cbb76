package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/envlens/envmonitor-service/internal/models"
)

// OpenWeatherCurrent fetches current conditions from OpenWeatherMap. Requires
// an API key, so it sits behind the keyless sources in every chain.
type OpenWeatherCurrent struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewOpenWeatherCurrent creates the strategy. An empty API key is allowed at
// construction; the chain simply falls through when the key is rejected.
func NewOpenWeatherCurrent(apiKey, baseURL string, timeout time.Duration) *OpenWeatherCurrent {
	return &OpenWeatherCurrent{APIKey: apiKey, BaseURL: baseURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *OpenWeatherCurrent) Name() string { return "openweathermap" }

type openWeatherResponse struct {
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Dt int64 `json:"dt"`
}

// Fetch returns a TempSample. A 200 with a null main.temp is invalid.
func (s *OpenWeatherCurrent) Fetch(ctx context.Context, q models.Query) (any, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("%s: no API key configured: %w", s.Name(), ErrUnauthorized)
	}
	u := fmt.Sprintf("%s/data/2.5/weather?%s", strings.TrimRight(s.BaseURL, "/"), url.Values{
		"lat":   {formatCoord(q.Lat)},
		"lon":   {formatCoord(q.Lon)},
		"appid": {s.APIKey},
		"units": {"metric"},
	}.Encode())

	var resp openWeatherResponse
	if err := getJSON(ctx, s.Client, s.Name(), u, s.Timeout, &resp); err != nil {
		return nil, err
	}
	if resp.Main.Temp == nil {
		return nil, fmt.Errorf("%s: main.temp missing: %w", s.Name(), ErrInvalidPayload)
	}
	ts := time.Now().UTC()
	if resp.Dt > 0 {
		ts = time.Unix(resp.Dt, 0).UTC()
	}
	return TempSample{Provider: s.Name(), Time: ts, Celsius: *resp.Main.Temp}, nil
}

// OpenWeatherAirPollution fetches pollutant concentrations from the
// OpenWeatherMap air-pollution endpoint.
type OpenWeatherAirPollution struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewOpenWeatherAirPollution creates the air-quality fallback strategy.
func NewOpenWeatherAirPollution(apiKey, baseURL string, timeout time.Duration) *OpenWeatherAirPollution {
	return &OpenWeatherAirPollution{APIKey: apiKey, BaseURL: baseURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *OpenWeatherAirPollution) Name() string { return "openweathermap-air" }

type openWeatherAirResponse struct {
	List []struct {
		Dt         int64 `json:"dt"`
		Components struct {
			PM25 *float64 `json:"pm2_5"`
			PM10 *float64 `json:"pm10"`
			O3   *float64 `json:"o3"`
			NO2  *float64 `json:"no2"`
			SO2  *float64 `json:"so2"`
			CO   *float64 `json:"co"`
		} `json:"components"`
	} `json:"list"`
}

// Fetch returns an AirObservation from the first list element. An empty list
// or missing pm2_5 is invalid.
func (s *OpenWeatherAirPollution) Fetch(ctx context.Context, q models.Query) (any, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("%s: no API key configured: %w", s.Name(), ErrUnauthorized)
	}
	u := fmt.Sprintf("%s/data/2.5/air_pollution?%s", strings.TrimRight(s.BaseURL, "/"), url.Values{
		"lat":   {formatCoord(q.Lat)},
		"lon":   {formatCoord(q.Lon)},
		"appid": {s.APIKey},
	}.Encode())

	var resp openWeatherAirResponse
	if err := getJSON(ctx, s.Client, s.Name(), u, s.Timeout, &resp); err != nil {
		return nil, err
	}
	if len(resp.List) == 0 {
		return nil, fmt.Errorf("%s: empty pollution list: %w", s.Name(), ErrInvalidPayload)
	}
	first := resp.List[0]
	if first.Components.PM25 == nil {
		return nil, fmt.Errorf("%s: pm2_5 missing: %w", s.Name(), ErrInvalidPayload)
	}

	ts := time.Now().UTC()
	if first.Dt > 0 {
		ts = time.Unix(first.Dt, 0).UTC()
	}
	obs := AirObservation{Provider: s.Name(), Time: ts}
	add := func(name string, v *float64) {
		if v != nil {
			obs.Readings = append(obs.Readings, PollutantReading{Name: name, UgPerM3: *v})
		}
	}
	add("pm2_5", first.Components.PM25)
	add("pm10", first.Components.PM10)
	add("o3", first.Components.O3)
	add("no2", first.Components.NO2)
	add("so2", first.Components.SO2)
	add("co", first.Components.CO)
	return obs, nil
}
