package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/envlens/envmonitor-service/internal/models"
)

// NASA POWER serves satellite-derived point meteorology. It lags a few days
// behind real time, which makes it a fallback rather than a primary source
// for live domains. Missing values are encoded as -999.
const powerMissing = -999

// NASAPowerRecentTemp fetches the most recent available daily mean temperature.
type NASAPowerRecentTemp struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewNASAPowerRecentTemp creates the point-temperature fallback strategy.
func NewNASAPowerRecentTemp(baseURL string, timeout time.Duration) *NASAPowerRecentTemp {
	return &NASAPowerRecentTemp{BaseURL: baseURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *NASAPowerRecentTemp) Name() string { return "nasa-power" }

type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// Fetch returns a TempSample from the newest non-missing T2M value within the
// last ten days.
func (s *NASAPowerRecentTemp) Fetch(ctx context.Context, q models.Query) (any, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -10)

	resp, err := s.query(ctx, q, "T2M", start, end)
	if err != nil {
		return nil, err
	}

	t2m := resp.Properties.Parameter["T2M"]
	if len(t2m) == 0 {
		return nil, fmt.Errorf("%s: T2M series missing: %w", s.Name(), ErrInvalidPayload)
	}

	dates := make([]string, 0, len(t2m))
	for d := range t2m {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	for _, d := range dates {
		v := t2m[d]
		if v <= powerMissing {
			continue
		}
		ts, terr := time.Parse("20060102", d)
		if terr != nil {
			ts = time.Now().UTC()
		}
		return TempSample{Provider: s.Name(), Time: ts, Celsius: v}, nil
	}
	return nil, fmt.Errorf("%s: every T2M value missing: %w", s.Name(), ErrInvalidPayload)
}

func (s *NASAPowerRecentTemp) query(ctx context.Context, q models.Query, params string, start, end time.Time) (*powerResponse, error) {
	u := fmt.Sprintf("%s/api/temporal/daily/point?%s", strings.TrimRight(s.BaseURL, "/"), url.Values{
		"parameters": {params},
		"community":  {"RE"},
		"latitude":   {formatCoord(q.Lat)},
		"longitude":  {formatCoord(q.Lon)},
		"start":      {start.Format("20060102")},
		"end":        {end.Format("20060102")},
		"format":     {"JSON"},
	}.Encode())

	var resp powerResponse
	if err := getJSON(ctx, s.Client, s.Name(), u, s.Timeout, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NASAPowerClimate fetches one year of daily min/max/mean temperature and
// precipitation as the historical-climate fallback.
type NASAPowerClimate struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewNASAPowerClimate creates the climate fallback strategy.
func NewNASAPowerClimate(baseURL string, timeout time.Duration) *NASAPowerClimate {
	return &NASAPowerClimate{BaseURL: baseURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *NASAPowerClimate) Name() string { return "nasa-power-climate" }

// Fetch returns a ClimateObservation for q.Year, skipping days with missing
// temperature values.
func (s *NASAPowerClimate) Fetch(ctx context.Context, q models.Query) (any, error) {
	year := q.Year
	if year == 0 {
		year = time.Now().Year() - 1
	}
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)

	inner := &NASAPowerRecentTemp{BaseURL: s.BaseURL, Timeout: s.Timeout, Client: s.Client}
	resp, err := inner.query(ctx, q, "T2M,T2M_MIN,T2M_MAX,PRECTOTCORR", start, end)
	if err != nil {
		return nil, err
	}

	mean := resp.Properties.Parameter["T2M"]
	min := resp.Properties.Parameter["T2M_MIN"]
	max := resp.Properties.Parameter["T2M_MAX"]
	precip := resp.Properties.Parameter["PRECTOTCORR"]
	if len(mean) == 0 || len(min) == 0 || len(max) == 0 {
		return nil, fmt.Errorf("%s: temperature series missing: %w", s.Name(), ErrInvalidPayload)
	}

	dates := make([]string, 0, len(mean))
	for d := range mean {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	obs := ClimateObservation{Provider: s.Name(), Year: year}
	for _, d := range dates {
		mn, okMin := min[d]
		mx, okMax := max[d]
		me := mean[d]
		if !okMin || !okMax || me <= powerMissing || mn <= powerMissing || mx <= powerMissing {
			continue
		}
		date, terr := time.Parse("20060102", d)
		if terr != nil {
			continue
		}
		day := DailyClimate{Date: date.Format("2006-01-02"), MinC: mn, MaxC: mx, MeanC: me}
		if p, ok := precip[d]; ok && p > powerMissing {
			day.PrecipMm = p
		}
		obs.Days = append(obs.Days, day)
	}
	if len(obs.Days) == 0 {
		return nil, fmt.Errorf("%s: empty daily series for %d: %w", s.Name(), year, ErrInvalidPayload)
	}
	return obs, nil
}
