// Package processor normalizes raw upstream observations into the display
// schema. Everything here is pure: no I/O, no clocks, no goroutines.
package processor

import (
	"fmt"
	"math"
	"sort"

	"github.com/envlens/envmonitor-service/internal/models"
	"github.com/envlens/envmonitor-service/internal/upstream"
)

// carbonFraction is the IPCC default fraction of dry biomass that is carbon.
const carbonFraction = 0.47

// KelvinToCelsius converts an absolute temperature to Celsius.
func KelvinToCelsius(k float64) float64 { return k - 273.15 }

// MpsToKmh converts a wind speed from meters per second to km/h.
func MpsToKmh(mps float64) float64 { return mps * 3.6 }

// Normalize converts a raw chain payload into the display model for its
// domain. Unknown payload shapes are an error, never a silent pass-through.
func Normalize(domain models.Domain, raw any) (any, error) {
	switch domain {
	case models.DomainHeatmap:
		obs, ok := raw.(upstream.GridObservation)
		if !ok {
			return nil, typeMismatch(domain, raw)
		}
		return NormalizeHeatmap(obs), nil
	case models.DomainAirQuality:
		obs, ok := raw.(upstream.AirObservation)
		if !ok {
			return nil, typeMismatch(domain, raw)
		}
		return NormalizeAirQuality(obs), nil
	case models.DomainSurfaceTemperature:
		obs, ok := raw.(upstream.TempSample)
		if !ok {
			return nil, typeMismatch(domain, raw)
		}
		return NormalizeTemperature(obs), nil
	case models.DomainClimate:
		obs, ok := raw.(upstream.ClimateObservation)
		if !ok {
			return nil, typeMismatch(domain, raw)
		}
		return NormalizeClimate(obs), nil
	case models.DomainVegetation:
		obs, ok := raw.(upstream.VegetationObservation)
		if !ok {
			return nil, typeMismatch(domain, raw)
		}
		return NormalizeVegetation(obs), nil
	case models.DomainForestCover:
		obs, ok := raw.(upstream.CoverObservation)
		if !ok {
			return nil, typeMismatch(domain, raw)
		}
		return NormalizeForestCover(obs), nil
	case models.DomainCarbon:
		obs, ok := raw.(upstream.BiomassObservation)
		if !ok {
			return nil, typeMismatch(domain, raw)
		}
		return NormalizeCarbon(obs), nil
	default:
		return nil, fmt.Errorf("no normalizer for domain %q", domain)
	}
}

func typeMismatch(domain models.Domain, raw any) error {
	return fmt.Errorf("unexpected %q payload type %T", domain, raw)
}

// NormalizeHeatmap buckets grid samples into cells and computes the min/max
// range the UI scales its color ramp to. Samples at the same coordinate (to
// 4 decimal places) merge into one averaged cell.
func NormalizeHeatmap(obs upstream.GridObservation) models.HeatmapGrid {
	type bucket struct {
		lat, lon float64
		sum      float64
		n        int
	}
	buckets := make(map[string]*bucket)
	order := make([]string, 0, len(obs.Samples))

	var centerLat, centerLon float64
	for _, s := range obs.Samples {
		centerLat += s.Lat
		centerLon += s.Lon
		key := fmt.Sprintf("%.4f,%.4f", s.Lat, s.Lon)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{lat: s.Lat, lon: s.Lon}
			buckets[key] = b
			order = append(order, key)
		}
		b.sum += s.Celsius
		b.n++
	}

	grid := models.HeatmapGrid{
		Provider:  obs.Provider,
		Timestamp: obs.Time,
		Cells:     make([]models.HeatmapCell, 0, len(order)),
	}
	if len(obs.Samples) == 0 {
		return grid
	}
	grid.CenterLat = centerLat / float64(len(obs.Samples))
	grid.CenterLon = centerLon / float64(len(obs.Samples))

	grid.MinC = math.Inf(1)
	grid.MaxC = math.Inf(-1)
	for _, key := range order {
		b := buckets[key]
		mean := b.sum / float64(b.n)
		grid.Cells = append(grid.Cells, models.HeatmapCell{
			Lat:     b.lat,
			Lon:     b.lon,
			Celsius: round1(mean),
			Samples: b.n,
		})
		if mean < grid.MinC {
			grid.MinC = mean
		}
		if mean > grid.MaxC {
			grid.MaxC = mean
		}
	}
	grid.MinC = round1(grid.MinC)
	grid.MaxC = round1(grid.MaxC)
	return grid
}

// NormalizeAirQuality computes the composite AQI over all reported pollutants
// and attaches the category label.
func NormalizeAirQuality(obs upstream.AirObservation) models.AirQualityBundle {
	bundle := models.AirQualityBundle{
		Provider:   obs.Provider,
		Timestamp:  obs.Time,
		Pollutants: make([]models.PollutantLevel, 0, len(obs.Readings)),
	}
	worst := 0
	for _, r := range obs.Readings {
		bundle.Pollutants = append(bundle.Pollutants, models.PollutantLevel{
			Name:    r.Name,
			UgPerM3: r.UgPerM3,
		})
		if aqi, ok := pollutantAQI(r.Name, r.UgPerM3); ok && aqi > worst {
			worst = aqi
		}
	}
	bundle.AQI = worst
	bundle.Category = AQICategory(worst)
	return bundle
}

// NormalizeTemperature converts a point sample to the display reading.
func NormalizeTemperature(obs upstream.TempSample) models.TemperatureReading {
	return models.TemperatureReading{
		Celsius:   round1(obs.Celsius),
		Provider:  obs.Provider,
		Timestamp: obs.Time,
	}
}

// NormalizeClimate keeps the daily series and adds annual aggregates.
func NormalizeClimate(obs upstream.ClimateObservation) models.ClimateSeries {
	series := models.ClimateSeries{
		Year:     obs.Year,
		Provider: obs.Provider,
		Days:     make([]models.ClimatePoint, 0, len(obs.Days)),
	}
	if len(obs.Days) == 0 {
		return series
	}

	series.AnnualMin = math.Inf(1)
	series.AnnualMax = math.Inf(-1)
	var meanSum float64
	for _, d := range obs.Days {
		series.Days = append(series.Days, models.ClimatePoint{
			Date:     d.Date,
			MinC:     d.MinC,
			MaxC:     d.MaxC,
			MeanC:    d.MeanC,
			PrecipMm: d.PrecipMm,
		})
		meanSum += d.MeanC
		series.TotalPrecipMm += d.PrecipMm
		if d.MinC < series.AnnualMin {
			series.AnnualMin = d.MinC
		}
		if d.MaxC > series.AnnualMax {
			series.AnnualMax = d.MaxC
		}
	}
	series.AnnualMean = round1(meanSum / float64(len(obs.Days)))
	series.TotalPrecipMm = round1(series.TotalPrecipMm)
	return series
}

// NormalizeVegetation sorts samples by date and computes the mean index.
func NormalizeVegetation(obs upstream.VegetationObservation) models.VegetationIndex {
	idx := models.VegetationIndex{
		Provider:  obs.Provider,
		Timestamp: obs.Time,
		Samples:   make([]models.NDVIPoint, 0, len(obs.Samples)),
	}
	if len(obs.Samples) == 0 {
		return idx
	}
	var sum float64
	for _, s := range obs.Samples {
		idx.Samples = append(idx.Samples, models.NDVIPoint{Date: s.Date, NDVI: s.NDVI})
		sum += s.NDVI
	}
	sort.Slice(idx.Samples, func(i, j int) bool { return idx.Samples[i].Date < idx.Samples[j].Date })
	idx.MeanNDVI = math.Round(sum/float64(len(obs.Samples))*10000) / 10000
	return idx
}

// NormalizeForestCover computes the covered hectares from fraction and area.
func NormalizeForestCover(obs upstream.CoverObservation) models.ForestCover {
	return models.ForestCover{
		CoverFraction: obs.CoverFraction,
		AreaHa:        round1(obs.AreaHa),
		CoveredHa:     round1(obs.CoverFraction * obs.AreaHa),
		Year:          obs.Year,
		Estimated:     !obs.Measured,
		Provider:      obs.Provider,
	}
}

// NormalizeCarbon converts above-ground biomass to a carbon-stock estimate
// using the standard dry-biomass carbon fraction.
func NormalizeCarbon(obs upstream.BiomassObservation) models.CarbonEstimate {
	perHa := obs.TonnesPerHa * carbonFraction
	return models.CarbonEstimate{
		TonnesPerHa: round1(perHa),
		TotalTonnes: round1(perHa * obs.AreaHa),
		AreaHa:      round1(obs.AreaHa),
		Estimated:   !obs.Measured,
		Provider:    obs.Provider,
	}
}

// aqiBreakpoint maps a concentration band to an AQI band per the US EPA
// piecewise-linear method.
type aqiBreakpoint struct {
	cLow, cHigh float64
	iLow, iHigh int
}

var aqiBreakpoints = map[string][]aqiBreakpoint{
	"pm2_5": {
		{0, 12.0, 0, 50},
		{12.1, 35.4, 51, 100},
		{35.5, 55.4, 101, 150},
		{55.5, 150.4, 151, 200},
		{150.5, 250.4, 201, 300},
		{250.5, 500.4, 301, 500},
	},
	"pm10": {
		{0, 54, 0, 50},
		{55, 154, 51, 100},
		{155, 254, 101, 150},
		{255, 354, 151, 200},
		{355, 424, 201, 300},
		{425, 604, 301, 500},
	},
	// Ozone bands in µg/m³ (8-hour ppb bands converted at 1 ppb ≈ 2 µg/m³).
	"o3": {
		{0, 108, 0, 50},
		{109, 140, 51, 100},
		{141, 170, 101, 150},
		{171, 210, 151, 200},
		{211, 400, 201, 300},
		{401, 800, 301, 500},
	},
}

// pollutantAQI returns the sub-index for one pollutant, or false when the
// pollutant has no breakpoint table.
func pollutantAQI(name string, ugPerM3 float64) (int, bool) {
	bands, ok := aqiBreakpoints[name]
	if !ok {
		return 0, false
	}
	if ugPerM3 < 0 {
		return 0, false
	}
	for _, b := range bands {
		if ugPerM3 <= b.cHigh {
			if b.cHigh == b.cLow {
				return b.iHigh, true
			}
			frac := (ugPerM3 - b.cLow) / (b.cHigh - b.cLow)
			return int(math.Round(float64(b.iLow) + frac*float64(b.iHigh-b.iLow))), true
		}
	}
	// Above the last band: pin to the scale ceiling.
	return bands[len(bands)-1].iHigh, true
}

// AQICategory maps a composite AQI to its display label.
func AQICategory(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive Groups"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
