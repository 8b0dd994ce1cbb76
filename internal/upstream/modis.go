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

// modisScale converts the ORNL subset's integer NDVI encoding to the unit range.
const modisScale = 0.0001

// ORNLModisNDVI fetches an NDVI subset from the ORNL DAAC MODIS web service.
// Product selects the satellite: MOD13Q1 (Terra) or MYD13Q1 (Aqua); the two
// instances act as primary and fallback in the vegetation chain.
type ORNLModisNDVI struct {
	Product string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewORNLModisNDVI creates an NDVI strategy for the given MODIS product.
func NewORNLModisNDVI(product, baseURL string, timeout time.Duration) *ORNLModisNDVI {
	return &ORNLModisNDVI{Product: product, BaseURL: baseURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *ORNLModisNDVI) Name() string { return "modis-" + strings.ToLower(s.Product) }

// modisDate renders the AYYYYDDD ordinal-date form the subset API expects.
func modisDate(t time.Time) string {
	return fmt.Sprintf("A%d%03d", t.Year(), t.YearDay())
}

type modisSubsetResponse struct {
	Subset []struct {
		CalendarDate string    `json:"calendar_date"`
		Data         []float64 `json:"data"`
	} `json:"subset"`
}

// Fetch returns a VegetationObservation covering roughly the last six months
// of 16-day composites. Composites with no valid pixels are skipped.
func (s *ORNLModisNDVI) Fetch(ctx context.Context, q models.Query) (any, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, -6, 0)

	u := fmt.Sprintf("%s/api/v1/%s/subset?%s", strings.TrimRight(s.BaseURL, "/"), s.Product, url.Values{
		"latitude":     {formatCoord(q.Lat)},
		"longitude":    {formatCoord(q.Lon)},
		"startDate":    {modisDate(start)},
		"endDate":      {modisDate(end)},
		"band":         {"250m_16_days_NDVI"},
		"kmAboveBelow": {"1"},
		"kmLeftRight":  {"1"},
	}.Encode())

	var resp modisSubsetResponse
	if err := getJSON(ctx, s.Client, s.Name(), u, s.Timeout, &resp); err != nil {
		return nil, err
	}
	if len(resp.Subset) == 0 {
		return nil, fmt.Errorf("%s: empty subset: %w", s.Name(), ErrInvalidPayload)
	}

	obs := VegetationObservation{Provider: s.Name(), Time: time.Now().UTC()}
	for _, composite := range resp.Subset {
		sum, n := 0.0, 0
		for _, raw := range composite.Data {
			v := raw * modisScale
			if v < -0.2 || v > 1 { // fill values fall outside the valid NDVI range
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			continue
		}
		obs.Samples = append(obs.Samples, NDVISample{Date: composite.CalendarDate, NDVI: sum / float64(n)})
	}
	if len(obs.Samples) == 0 {
		return nil, fmt.Errorf("%s: no composite carried valid pixels: %w", s.Name(), ErrInvalidPayload)
	}
	return obs, nil
}
