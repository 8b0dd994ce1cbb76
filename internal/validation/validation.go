package validation

import (
	"errors"
	"time"
)

// ErrLatitudeOutOfRange is returned when latitude is outside [-90, 90].
var ErrLatitudeOutOfRange = errors.New("latitude out of range")

// ErrLongitudeOutOfRange is returned when longitude is outside [-180, 180].
var ErrLongitudeOutOfRange = errors.New("longitude out of range")

// ErrYearOutOfRange is returned when a requested year is before satellite
// records begin or after the current year.
var ErrYearOutOfRange = errors.New("year out of range")

// ErrWindowOutOfRange is returned when a lookback window is non-positive or
// longer than the retained history.
var ErrWindowOutOfRange = errors.New("window out of range")

// ErrRadiusOutOfRange is returned when a radius is non-positive or wider than
// the maximum query area.
var ErrRadiusOutOfRange = errors.New("radius out of range")

// earliestYear is the first year with usable satellite climate records.
const earliestYear = 1981

// maxWindowHours caps lookback windows at one year.
const maxWindowHours = 24 * 365

// maxRadiusKm caps the query area around a center point.
const maxRadiusKm = 500

// ValidateCoordinates checks a latitude/longitude pair. Errors are suitable
// for 400 responses.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return ErrLatitudeOutOfRange
	}
	if lon < -180 || lon > 180 {
		return ErrLongitudeOutOfRange
	}
	return nil
}

// ValidateYear checks a historical-climate year against the record range.
func ValidateYear(year int) error {
	if year < earliestYear || year > time.Now().Year() {
		return ErrYearOutOfRange
	}
	return nil
}

// ValidateWindowHours checks a lookback window in hours.
func ValidateWindowHours(hours int) error {
	if hours <= 0 || hours > maxWindowHours {
		return ErrWindowOutOfRange
	}
	return nil
}

// ValidateRadiusKm checks a query radius in kilometers.
func ValidateRadiusKm(radius float64) error {
	if radius <= 0 || radius > maxRadiusKm {
		return ErrRadiusOutOfRange
	}
	return nil
}
