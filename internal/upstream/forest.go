package upstream

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/envlens/envmonitor-service/internal/models"
)

// GFWForestCover fetches tree-cover extent around a point from the Global
// Forest Watch data API.
type GFWForestCover struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewGFWForestCover creates the forest-cover strategy.
func NewGFWForestCover(apiKey, baseURL string, timeout time.Duration) *GFWForestCover {
	return &GFWForestCover{APIKey: apiKey, BaseURL: baseURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *GFWForestCover) Name() string { return "gfw-cover" }

type gfwCoverResponse struct {
	Data struct {
		TreeCoverExtentHa *float64 `json:"treeCoverExtentHa"`
		AreaHa            *float64 `json:"areaHa"`
		Year              int      `json:"year"`
	} `json:"data"`
}

// Fetch returns a measured CoverObservation. Null extent or area invalidates
// the payload.
func (s *GFWForestCover) Fetch(ctx context.Context, q models.Query) (any, error) {
	u := fmt.Sprintf("%s/v1/forest-cover/summary?%s", strings.TrimRight(s.BaseURL, "/"), url.Values{
		"lat":       {formatCoord(q.Lat)},
		"lon":       {formatCoord(q.Lon)},
		"radius_km": {fmt.Sprintf("%.1f", radiusOrDefault(q.RadiusKm))},
		"api_key":   {s.APIKey},
	}.Encode())

	var resp gfwCoverResponse
	if err := getJSON(ctx, s.Client, s.Name(), u, s.Timeout, &resp); err != nil {
		return nil, err
	}
	if resp.Data.TreeCoverExtentHa == nil || resp.Data.AreaHa == nil || *resp.Data.AreaHa <= 0 {
		return nil, fmt.Errorf("%s: cover extent or area missing: %w", s.Name(), ErrInvalidPayload)
	}

	year := resp.Data.Year
	if year == 0 {
		year = time.Now().Year()
	}
	return CoverObservation{
		Provider:      s.Name(),
		Year:          year,
		CoverFraction: clamp01(*resp.Data.TreeCoverExtentHa / *resp.Data.AreaHa),
		AreaHa:        *resp.Data.AreaHa,
		Measured:      true,
	}, nil
}

// GFWBiomass fetches above-ground biomass density for carbon estimation.
type GFWBiomass struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewGFWBiomass creates the biomass strategy.
func NewGFWBiomass(apiKey, baseURL string, timeout time.Duration) *GFWBiomass {
	return &GFWBiomass{APIKey: apiKey, BaseURL: baseURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *GFWBiomass) Name() string { return "gfw-biomass" }

type gfwBiomassResponse struct {
	Data struct {
		BiomassDensityTPerHa *float64 `json:"biomassDensityTPerHa"`
		AreaHa               *float64 `json:"areaHa"`
	} `json:"data"`
}

// Fetch returns a measured BiomassObservation.
func (s *GFWBiomass) Fetch(ctx context.Context, q models.Query) (any, error) {
	u := fmt.Sprintf("%s/v1/biomass/summary?%s", strings.TrimRight(s.BaseURL, "/"), url.Values{
		"lat":       {formatCoord(q.Lat)},
		"lon":       {formatCoord(q.Lon)},
		"radius_km": {fmt.Sprintf("%.1f", radiusOrDefault(q.RadiusKm))},
		"api_key":   {s.APIKey},
	}.Encode())

	var resp gfwBiomassResponse
	if err := getJSON(ctx, s.Client, s.Name(), u, s.Timeout, &resp); err != nil {
		return nil, err
	}
	if resp.Data.BiomassDensityTPerHa == nil || resp.Data.AreaHa == nil || *resp.Data.AreaHa <= 0 {
		return nil, fmt.Errorf("%s: biomass density or area missing: %w", s.Name(), ErrInvalidPayload)
	}
	return BiomassObservation{
		Provider:    s.Name(),
		TonnesPerHa: *resp.Data.BiomassDensityTPerHa,
		AreaHa:      *resp.Data.AreaHa,
		Measured:    true,
	}, nil
}

// radiusOrDefault returns the query radius or the 25 km default.
func radiusOrDefault(r float64) float64 {
	if r <= 0 {
		return 25
	}
	return r
}

// circleAreaHa converts a radius in km to the enclosed area in hectares.
func circleAreaHa(radiusKm float64) float64 {
	r := radiusOrDefault(radiusKm)
	return math.Pi * r * r * 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
