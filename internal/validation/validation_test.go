package validation

import (
	"errors"
	"testing"
	"time"
)

func TestValidateCoordinates_Valid(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
	}{
		{"origin", 0, 0},
		{"north pole", 90, 0},
		{"south pole", -90, 0},
		{"date line", 47.6, 180},
		{"west bound", 47.6, -180},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateCoordinates(tc.lat, tc.lon); err != nil {
				t.Errorf("ValidateCoordinates(%v, %v) = %v, want nil", tc.lat, tc.lon, err)
			}
		})
	}
}

func TestValidateCoordinates_LatitudeOutOfRange(t *testing.T) {
	for _, lat := range []float64{90.001, -90.001, 200} {
		err := ValidateCoordinates(lat, 0)
		if !errors.Is(err, ErrLatitudeOutOfRange) {
			t.Errorf("ValidateCoordinates(%v, 0) = %v, want ErrLatitudeOutOfRange", lat, err)
		}
	}
}

func TestValidateCoordinates_LongitudeOutOfRange(t *testing.T) {
	for _, lon := range []float64{180.001, -180.001, 500} {
		err := ValidateCoordinates(0, lon)
		if !errors.Is(err, ErrLongitudeOutOfRange) {
			t.Errorf("ValidateCoordinates(0, %v) = %v, want ErrLongitudeOutOfRange", lon, err)
		}
	}
}

func TestValidateYear(t *testing.T) {
	current := time.Now().Year()
	if err := ValidateYear(current); err != nil {
		t.Errorf("ValidateYear(current) = %v, want nil", err)
	}
	if err := ValidateYear(1981); err != nil {
		t.Errorf("ValidateYear(1981) = %v, want nil", err)
	}
	if err := ValidateYear(1980); !errors.Is(err, ErrYearOutOfRange) {
		t.Errorf("ValidateYear(1980) = %v, want ErrYearOutOfRange", err)
	}
	if err := ValidateYear(current + 1); !errors.Is(err, ErrYearOutOfRange) {
		t.Errorf("ValidateYear(next year) = %v, want ErrYearOutOfRange", err)
	}
}

func TestValidateWindowHours(t *testing.T) {
	if err := ValidateWindowHours(24); err != nil {
		t.Errorf("ValidateWindowHours(24) = %v, want nil", err)
	}
	if err := ValidateWindowHours(0); !errors.Is(err, ErrWindowOutOfRange) {
		t.Errorf("ValidateWindowHours(0) = %v, want ErrWindowOutOfRange", err)
	}
	if err := ValidateWindowHours(24*365 + 1); !errors.Is(err, ErrWindowOutOfRange) {
		t.Errorf("ValidateWindowHours(>1y) = %v, want ErrWindowOutOfRange", err)
	}
}

func TestValidateRadiusKm(t *testing.T) {
	if err := ValidateRadiusKm(25); err != nil {
		t.Errorf("ValidateRadiusKm(25) = %v, want nil", err)
	}
	if err := ValidateRadiusKm(0); !errors.Is(err, ErrRadiusOutOfRange) {
		t.Errorf("ValidateRadiusKm(0) = %v, want ErrRadiusOutOfRange", err)
	}
	if err := ValidateRadiusKm(501); !errors.Is(err, ErrRadiusOutOfRange) {
		t.Errorf("ValidateRadiusKm(501) = %v, want ErrRadiusOutOfRange", err)
	}
}
