package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/envlens/envmonitor-service/internal/models"
)

// Computation-method strategies: lowest-priority chain members that derive a
// domain's payload from another domain's real upstream data. They never
// fabricate values; every number traces back to a live provider response, and
// the Measured=false flag keeps derived results visibly labeled as estimates
// all the way to the UI.

// NDVI at or above the canopy threshold counts as fully covered; the linear
// ramp between the two thresholds approximates partial cover.
const (
	bareGroundNDVI   = 0.2
	closedCanopyNDVI = 0.8
)

// Default above-ground biomass density for covered temperate/boreal forest,
// tonnes per hectare. Used only by the factor-derived carbon fallback.
const defaultBiomassTPerHa = 150.0

// CoverFromNDVI derives forest cover from a vegetation-index strategy.
type CoverFromNDVI struct {
	NDVI Strategy
}

func (s *CoverFromNDVI) Name() string { return "cover-from-ndvi" }

// Fetch runs the wrapped NDVI strategy and maps its mean onto a cover
// fraction over the query circle.
func (s *CoverFromNDVI) Fetch(ctx context.Context, q models.Query) (any, error) {
	raw, err := s.NDVI.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name(), err)
	}
	veg, ok := raw.(VegetationObservation)
	if !ok || len(veg.Samples) == 0 {
		return nil, fmt.Errorf("%s: unusable vegetation payload: %w", s.Name(), ErrInvalidPayload)
	}

	sum := 0.0
	for _, sample := range veg.Samples {
		sum += sample.NDVI
	}
	mean := sum / float64(len(veg.Samples))
	fraction := clamp01((mean - bareGroundNDVI) / (closedCanopyNDVI - bareGroundNDVI))

	return CoverObservation{
		Provider:      s.Name(),
		Year:          time.Now().Year(),
		CoverFraction: fraction,
		AreaHa:        circleAreaHa(q.RadiusKm),
		Measured:      false,
	}, nil
}

// BiomassFromCover derives biomass from a forest-cover strategy using a fixed
// density factor on the covered area.
type BiomassFromCover struct {
	Cover Strategy
}

func (s *BiomassFromCover) Name() string { return "biomass-from-cover" }

// Fetch runs the wrapped cover strategy and applies the biomass factor.
func (s *BiomassFromCover) Fetch(ctx context.Context, q models.Query) (any, error) {
	raw, err := s.Cover.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name(), err)
	}
	cover, ok := raw.(CoverObservation)
	if !ok || cover.AreaHa <= 0 {
		return nil, fmt.Errorf("%s: unusable cover payload: %w", s.Name(), ErrInvalidPayload)
	}

	return BiomassObservation{
		Provider:    s.Name(),
		TonnesPerHa: cover.CoverFraction * defaultBiomassTPerHa,
		AreaHa:      cover.AreaHa,
		Measured:    false,
	}, nil
}

// GridFromPoint adapts a point-temperature strategy into a single-cell grid
// so it can back up the heat-map chain.
type GridFromPoint struct {
	Point Strategy
}

func (s *GridFromPoint) Name() string { return "grid-from-" + s.Point.Name() }

// Fetch runs the wrapped point strategy and wraps its sample in a one-cell
// observation.
func (s *GridFromPoint) Fetch(ctx context.Context, q models.Query) (any, error) {
	raw, err := s.Point.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name(), err)
	}
	sample, ok := raw.(TempSample)
	if !ok {
		return nil, fmt.Errorf("%s: unusable temperature payload: %w", s.Name(), ErrInvalidPayload)
	}
	return GridObservation{
		Provider: s.Name(),
		Time:     sample.Time,
		Samples:  []GridSample{{Lat: q.Lat, Lon: q.Lon, Celsius: sample.Celsius}},
	}, nil
}
