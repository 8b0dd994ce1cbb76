package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/envlens/envmonitor-service/internal/models"
)

// Open-Meteo is keyless and the most authoritative free source for current
// conditions, air quality, and archived climate, so it leads every chain that
// it can serve.

// OpenMeteoCurrent fetches the current 2m temperature at a point.
type OpenMeteoCurrent struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewOpenMeteoCurrent creates the strategy with a dedicated HTTP client.
func NewOpenMeteoCurrent(baseURL string, timeout time.Duration) *OpenMeteoCurrent {
	return &OpenMeteoCurrent{BaseURL: baseURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *OpenMeteoCurrent) Name() string { return "open-meteo" }

type openMeteoCurrentResponse struct {
	Current struct {
		Time          string   `json:"time"`
		Temperature2M *float64 `json:"temperature_2m"`
	} `json:"current"`
}

// Fetch returns a TempSample. A 200 with a null temperature field is an
// invalid payload, not a success.
func (s *OpenMeteoCurrent) Fetch(ctx context.Context, q models.Query) (any, error) {
	u := fmt.Sprintf("%s/v1/forecast?%s", strings.TrimRight(s.BaseURL, "/"), url.Values{
		"latitude":  {formatCoord(q.Lat)},
		"longitude": {formatCoord(q.Lon)},
		"current":   {"temperature_2m"},
	}.Encode())

	var resp openMeteoCurrentResponse
	if err := getJSON(ctx, s.Client, s.Name(), u, s.Timeout, &resp); err != nil {
		return nil, err
	}
	if resp.Current.Temperature2M == nil {
		return nil, fmt.Errorf("%s: temperature_2m missing: %w", s.Name(), ErrInvalidPayload)
	}
	return TempSample{
		Provider: s.Name(),
		Time:     parseTimeOrNow(resp.Current.Time),
		Celsius:  *resp.Current.Temperature2M,
	}, nil
}

// OpenMeteoGrid samples current temperature on a 3x3 grid around the query
// point using Open-Meteo's multi-coordinate request form.
type OpenMeteoGrid struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewOpenMeteoGrid creates the heat-map grid strategy.
func NewOpenMeteoGrid(baseURL string, timeout time.Duration) *OpenMeteoGrid {
	return &OpenMeteoGrid{BaseURL: baseURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *OpenMeteoGrid) Name() string { return "open-meteo-grid" }

// Fetch returns a GridObservation with one sample per grid point. The whole
// observation is invalid when every point came back null.
func (s *OpenMeteoGrid) Fetch(ctx context.Context, q models.Query) (any, error) {
	lats, lons := gridPoints(q.Lat, q.Lon, q.RadiusKm)

	u := fmt.Sprintf("%s/v1/forecast?%s", strings.TrimRight(s.BaseURL, "/"), url.Values{
		"latitude":  {strings.Join(lats, ",")},
		"longitude": {strings.Join(lons, ",")},
		"current":   {"temperature_2m"},
	}.Encode())

	// Multi-coordinate requests return a JSON array of per-point responses.
	var resp []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Current   struct {
			Time          string   `json:"time"`
			Temperature2M *float64 `json:"temperature_2m"`
		} `json:"current"`
	}
	if err := getJSON(ctx, s.Client, s.Name(), u, s.Timeout, &resp); err != nil {
		return nil, err
	}

	obs := GridObservation{Provider: s.Name(), Time: time.Now().UTC()}
	for _, p := range resp {
		if p.Current.Temperature2M == nil {
			continue
		}
		obs.Samples = append(obs.Samples, GridSample{
			Lat:     p.Latitude,
			Lon:     p.Longitude,
			Celsius: *p.Current.Temperature2M,
		})
	}
	if len(obs.Samples) == 0 {
		return nil, fmt.Errorf("%s: no grid point carried a temperature: %w", s.Name(), ErrInvalidPayload)
	}
	return obs, nil
}

// gridPoints builds a 3x3 coordinate grid spanning radiusKm around the center.
func gridPoints(lat, lon, radiusKm float64) (lats, lons []string) {
	if radiusKm <= 0 {
		radiusKm = 25
	}
	step := radiusKm / 111.0 // ~111 km per degree of latitude
	for _, dy := range []float64{-1, 0, 1} {
		for _, dx := range []float64{-1, 0, 1} {
			lats = append(lats, formatCoord(lat+dy*step))
			lons = append(lons, formatCoord(lon+dx*step))
		}
	}
	return lats, lons
}

// OpenMeteoAirQuality fetches current pollutant concentrations.
type OpenMeteoAirQuality struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewOpenMeteoAirQuality creates the air-quality strategy.
func NewOpenMeteoAirQuality(baseURL string, timeout time.Duration) *OpenMeteoAirQuality {
	return &OpenMeteoAirQuality{BaseURL: baseURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *OpenMeteoAirQuality) Name() string { return "open-meteo-air" }

type openMeteoAirResponse struct {
	Current struct {
		Time            string   `json:"time"`
		PM25            *float64 `json:"pm2_5"`
		PM10            *float64 `json:"pm10"`
		Ozone           *float64 `json:"ozone"`
		NitrogenDioxide *float64 `json:"nitrogen_dioxide"`
		SulphurDioxide  *float64 `json:"sulphur_dioxide"`
		CarbonMonoxide  *float64 `json:"carbon_monoxide"`
	} `json:"current"`
}

// Fetch returns an AirObservation. PM2.5 is the critical field: without it no
// AQI can be computed, so its absence invalidates the payload.
func (s *OpenMeteoAirQuality) Fetch(ctx context.Context, q models.Query) (any, error) {
	u := fmt.Sprintf("%s/v1/air-quality?%s", strings.TrimRight(s.BaseURL, "/"), url.Values{
		"latitude":  {formatCoord(q.Lat)},
		"longitude": {formatCoord(q.Lon)},
		"current":   {"pm2_5,pm10,ozone,nitrogen_dioxide,sulphur_dioxide,carbon_monoxide"},
	}.Encode())

	var resp openMeteoAirResponse
	if err := getJSON(ctx, s.Client, s.Name(), u, s.Timeout, &resp); err != nil {
		return nil, err
	}
	if resp.Current.PM25 == nil {
		return nil, fmt.Errorf("%s: pm2_5 missing: %w", s.Name(), ErrInvalidPayload)
	}

	obs := AirObservation{Provider: s.Name(), Time: parseTimeOrNow(resp.Current.Time)}
	add := func(name string, v *float64) {
		if v != nil {
			obs.Readings = append(obs.Readings, PollutantReading{Name: name, UgPerM3: *v})
		}
	}
	add("pm2_5", resp.Current.PM25)
	add("pm10", resp.Current.PM10)
	add("o3", resp.Current.Ozone)
	add("no2", resp.Current.NitrogenDioxide)
	add("so2", resp.Current.SulphurDioxide)
	add("co", resp.Current.CarbonMonoxide)
	return obs, nil
}

// OpenMeteoArchive fetches a full year of daily climate aggregates.
type OpenMeteoArchive struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewOpenMeteoArchive creates the historical-climate strategy.
func NewOpenMeteoArchive(baseURL string, timeout time.Duration) *OpenMeteoArchive {
	return &OpenMeteoArchive{BaseURL: baseURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *OpenMeteoArchive) Name() string { return "open-meteo-archive" }

type openMeteoArchiveResponse struct {
	Daily struct {
		Time              []string   `json:"time"`
		Temperature2MMin  []*float64 `json:"temperature_2m_min"`
		Temperature2MMax  []*float64 `json:"temperature_2m_max"`
		Temperature2MMean []*float64 `json:"temperature_2m_mean"`
		PrecipitationSum  []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// Fetch returns a ClimateObservation for q.Year. Days missing any temperature
// value are skipped; an entirely empty series is invalid.
func (s *OpenMeteoArchive) Fetch(ctx context.Context, q models.Query) (any, error) {
	year := q.Year
	if year == 0 {
		year = time.Now().Year() - 1
	}
	u := fmt.Sprintf("%s/v1/archive?%s", strings.TrimRight(s.BaseURL, "/"), url.Values{
		"latitude":   {formatCoord(q.Lat)},
		"longitude":  {formatCoord(q.Lon)},
		"start_date": {fmt.Sprintf("%d-01-01", year)},
		"end_date":   {fmt.Sprintf("%d-12-31", year)},
		"daily":      {"temperature_2m_min,temperature_2m_max,temperature_2m_mean,precipitation_sum"},
	}.Encode())

	var resp openMeteoArchiveResponse
	if err := getJSON(ctx, s.Client, s.Name(), u, s.Timeout, &resp); err != nil {
		return nil, err
	}

	d := resp.Daily
	obs := ClimateObservation{Provider: s.Name(), Year: year}
	for i, date := range d.Time {
		if i >= len(d.Temperature2MMin) || i >= len(d.Temperature2MMax) || i >= len(d.Temperature2MMean) {
			break
		}
		if d.Temperature2MMin[i] == nil || d.Temperature2MMax[i] == nil || d.Temperature2MMean[i] == nil {
			continue
		}
		day := DailyClimate{
			Date:  date,
			MinC:  *d.Temperature2MMin[i],
			MaxC:  *d.Temperature2MMax[i],
			MeanC: *d.Temperature2MMean[i],
		}
		if i < len(d.PrecipitationSum) && d.PrecipitationSum[i] != nil {
			day.PrecipMm = *d.PrecipitationSum[i]
		}
		obs.Days = append(obs.Days, day)
	}
	if len(obs.Days) == 0 {
		return nil, fmt.Errorf("%s: empty daily series for %d: %w", s.Name(), year, ErrInvalidPayload)
	}
	return obs, nil
}

// formatCoord renders a coordinate with fixed precision so cache keys and
// request URLs stay deterministic.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// parseTimeOrNow parses Open-Meteo's minute-resolution timestamps, falling
// back to the current clock when the field is absent or malformed.
func parseTimeOrNow(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
