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

// WAQIFeed fetches the nearest-station feed from the World Air Quality Index
// project. WAQI wraps errors in a 200 response with status != "ok", which is
// exactly the semantically-empty case the invalid-payload rule exists for.
type WAQIFeed struct {
	Token   string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewWAQIFeed creates the WAQI strategy.
func NewWAQIFeed(token, baseURL string, timeout time.Duration) *WAQIFeed {
	return &WAQIFeed{Token: token, BaseURL: baseURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *WAQIFeed) Name() string { return "waqi" }

type waqiResponse struct {
	Status string `json:"status"`
	Data   struct {
		AQI  *float64 `json:"aqi"`
		IAQI map[string]struct {
			V float64 `json:"v"`
		} `json:"iaqi"`
		Time struct {
			ISO string `json:"iso"`
		} `json:"time"`
	} `json:"data"`
}

// Fetch returns an AirObservation from the station's individual AQI readings.
func (s *WAQIFeed) Fetch(ctx context.Context, q models.Query) (any, error) {
	if s.Token == "" {
		return nil, fmt.Errorf("%s: no token configured: %w", s.Name(), ErrUnauthorized)
	}
	u := fmt.Sprintf("%s/feed/geo:%s;%s/?%s",
		strings.TrimRight(s.BaseURL, "/"),
		formatCoord(q.Lat), formatCoord(q.Lon),
		url.Values{"token": {s.Token}}.Encode())

	var resp waqiResponse
	if err := getJSON(ctx, s.Client, s.Name(), u, s.Timeout, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("%s: status %q: %w", s.Name(), resp.Status, ErrInvalidPayload)
	}
	if _, ok := resp.Data.IAQI["pm25"]; !ok {
		return nil, fmt.Errorf("%s: pm25 reading missing: %w", s.Name(), ErrInvalidPayload)
	}

	ts := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, resp.Data.Time.ISO); err == nil {
		ts = t
	}
	obs := AirObservation{Provider: s.Name(), Time: ts}
	// WAQI reports station-level IAQI values; the processor treats the pm
	// readings as concentration surrogates when nothing better is available.
	for _, name := range []string{"pm25", "pm10", "o3", "no2", "so2", "co"} {
		if r, ok := resp.Data.IAQI[name]; ok {
			canonical := name
			if name == "pm25" {
				canonical = "pm2_5"
			}
			obs.Readings = append(obs.Readings, PollutantReading{Name: canonical, UgPerM3: r.V})
		}
	}
	return obs, nil
}
