package models

import "time"

// Domain identifies one category of monitored data. Each domain has its own
// source chain, cache TTL, and status entry.
type Domain string

const (
	DomainHeatmap            Domain = "heatmap"
	DomainAirQuality         Domain = "air_quality"
	DomainSurfaceTemperature Domain = "surface_temperature"
	DomainClimate            Domain = "climate"
	DomainVegetation         Domain = "vegetation"
	DomainForestCover        Domain = "forest_cover"
	DomainCarbon             Domain = "carbon"
)

// AllDomains lists every domain in display order.
func AllDomains() []Domain {
	return []Domain{
		DomainHeatmap,
		DomainAirQuality,
		DomainSurfaceTemperature,
		DomainClimate,
		DomainVegetation,
		DomainForestCover,
		DomainCarbon,
	}
}

// ParseDomain returns the Domain for a route/query string, or false.
func ParseDomain(s string) (Domain, bool) {
	for _, d := range AllDomains() {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// State is the lifecycle state of one domain's data.
type State string

const (
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
	StateNoData  State = "no-data"
)

// Query carries the geographic and domain-specific parameters of one fetch.
// Zero values mean "use the configured default" at the chain level.
type Query struct {
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	RadiusKm    float64  `json:"radiusKm,omitempty"`
	WindowHours int      `json:"windowHours,omitempty"`
	Year        int      `json:"year,omitempty"`
	Pollutants  []string `json:"pollutants,omitempty"`
}

// DomainStatus is the coordinator's per-domain record. LastPayload holds the
// last normalized result and is never blanked by a failed refresh.
type DomainStatus struct {
	Domain        Domain     `json:"domain"`
	State         State      `json:"state"`
	LastTimestamp *time.Time `json:"lastTimestamp"`
	LastPayload   any        `json:"lastPayload"`
	LastError     string     `json:"lastError,omitempty"`
}

// HeatmapCell is one bucketed grid cell of the temperature heat map.
type HeatmapCell struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Celsius float64 `json:"celsius"`
	Samples int     `json:"samples"`
}

// HeatmapGrid is the normalized heat-map payload.
type HeatmapGrid struct {
	CenterLat float64       `json:"centerLat"`
	CenterLon float64       `json:"centerLon"`
	Cells     []HeatmapCell `json:"cells"`
	MinC      float64       `json:"minC"`
	MaxC      float64       `json:"maxC"`
	Provider  string        `json:"provider"`
	Timestamp time.Time     `json:"timestamp"`
}

// PollutantLevel is one pollutant's concentration in the display schema.
type PollutantLevel struct {
	Name    string  `json:"name"`
	UgPerM3 float64 `json:"ugPerM3"`
}

// AirQualityBundle is the normalized air-quality payload.
type AirQualityBundle struct {
	Pollutants []PollutantLevel `json:"pollutants"`
	AQI        int              `json:"aqi"`
	Category   string           `json:"category"`
	Provider   string           `json:"provider"`
	Timestamp  time.Time        `json:"timestamp"`
}

// TemperatureReading is the normalized point surface-temperature payload.
type TemperatureReading struct {
	Celsius   float64   `json:"celsius"`
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
}

// ClimatePoint is one aggregated day in a climate series.
type ClimatePoint struct {
	Date     string  `json:"date"`
	MinC     float64 `json:"minC"`
	MaxC     float64 `json:"maxC"`
	MeanC    float64 `json:"meanC"`
	PrecipMm float64 `json:"precipMm"`
}

// ClimateSeries is the normalized historical-climate payload for one year.
type ClimateSeries struct {
	Year          int            `json:"year"`
	Days          []ClimatePoint `json:"days"`
	AnnualMean    float64        `json:"annualMean"`
	AnnualMin     float64        `json:"annualMin"`
	AnnualMax     float64        `json:"annualMax"`
	TotalPrecipMm float64        `json:"totalPrecipMm"`
	Provider      string         `json:"provider"`
}

// NDVIPoint is one dated vegetation-index sample.
type NDVIPoint struct {
	Date string  `json:"date"`
	NDVI float64 `json:"ndvi"`
}

// VegetationIndex is the normalized vegetation payload.
type VegetationIndex struct {
	Samples   []NDVIPoint `json:"samples"`
	MeanNDVI  float64     `json:"meanNdvi"`
	Provider  string      `json:"provider"`
	Timestamp time.Time   `json:"timestamp"`
}

// ForestCover is the normalized forest-coverage payload. Estimated is true when
// the value was derived from a vegetation index rather than measured upstream.
type ForestCover struct {
	CoverFraction float64   `json:"coverFraction"`
	AreaHa        float64   `json:"areaHa"`
	CoveredHa     float64   `json:"coveredHa"`
	Year          int       `json:"year"`
	Estimated     bool      `json:"estimated"`
	Provider      string    `json:"provider"`
	Timestamp     time.Time `json:"timestamp"`
}

// CarbonEstimate is the normalized carbon-stock payload. Always labeled
// estimated when derived from biomass factors instead of direct measurement.
type CarbonEstimate struct {
	TotalTonnes float64   `json:"totalTonnes"`
	TonnesPerHa float64   `json:"tonnesPerHa"`
	AreaHa      float64   `json:"areaHa"`
	Estimated   bool      `json:"estimated"`
	Provider    string    `json:"provider"`
	Timestamp   time.Time `json:"timestamp"`
}
