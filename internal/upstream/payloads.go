package upstream

import "time"

// Raw payload types produced by strategies and cached by the source chains.
// The processor normalizes these into the display schema; nothing below is
// shown to the UI directly.

// TempSample is one validated point temperature observation.
type TempSample struct {
	Provider string
	Time     time.Time
	Celsius  float64
}

// GridSample is one temperature sample at a grid point.
type GridSample struct {
	Lat     float64
	Lon     float64
	Celsius float64
}

// GridObservation is a set of temperature samples around a center point.
type GridObservation struct {
	Provider string
	Time     time.Time
	Samples  []GridSample
}

// PollutantReading is one pollutant concentration in µg/m³.
type PollutantReading struct {
	Name    string
	UgPerM3 float64
}

// AirObservation is a validated set of pollutant readings.
type AirObservation struct {
	Provider string
	Time     time.Time
	Readings []PollutantReading
}

// DailyClimate is one day of historical climate aggregates.
type DailyClimate struct {
	Date     string
	MinC     float64
	MaxC     float64
	MeanC    float64
	PrecipMm float64
}

// ClimateObservation is a validated year of daily climate aggregates.
type ClimateObservation struct {
	Provider string
	Year     int
	Days     []DailyClimate
}

// NDVISample is one dated normalized-difference vegetation index value.
type NDVISample struct {
	Date string
	NDVI float64
}

// VegetationObservation is a validated set of NDVI samples.
type VegetationObservation struct {
	Provider string
	Time     time.Time
	Samples  []NDVISample
}

// CoverObservation is a forest-cover reading. Measured is false when the value
// was derived from a vegetation index instead of reported upstream.
type CoverObservation struct {
	Provider      string
	Year          int
	CoverFraction float64
	AreaHa        float64
	Measured      bool
}

// BiomassObservation is an above-ground biomass reading used for carbon
// estimation. Measured is false for factor-derived values.
type BiomassObservation struct {
	Provider    string
	TonnesPerHa float64
	AreaHa      float64
	Measured    bool
}
