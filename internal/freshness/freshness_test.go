package freshness

import (
	"testing"
	"time"
)

// TestClassifyAt_Buckets verifies the age-to-bucket and confidence mapping at
// representative ages on both sides of each boundary.
func TestClassifyAt_Buckets(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		age        time.Duration
		wantBucket AgeBucket
		wantPct    int
	}{
		{"just updated", 0, BucketFresh, 100},
		{"under 5 min", 4*time.Minute + 59*time.Second, BucketFresh, 100},
		{"exactly 5 min", 5 * time.Minute, BucketRecent, 80},
		{"under 30 min", 29 * time.Minute, BucketRecent, 80},
		{"exactly 30 min", 30 * time.Minute, BucketStale, 60},
		{"under 60 min", 59 * time.Minute, BucketStale, 60},
		{"exactly 60 min", time.Hour, BucketOld, 40},
		{"several hours", 6 * time.Hour, BucketOld, 40},
		{"days old", 48 * time.Hour, BucketOld, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ClassifyAt(now, now.Add(-tt.age))
			if v.AgeBucket != tt.wantBucket {
				t.Errorf("bucket = %s, want %s", v.AgeBucket, tt.wantBucket)
			}
			if v.ConfidencePercent != tt.wantPct {
				t.Errorf("confidence = %d, want %d", v.ConfidencePercent, tt.wantPct)
			}
			if v.DisplayLabel == "" {
				t.Error("display label is empty")
			}
		})
	}
}

// TestClassifyAt_ZeroTimestamp verifies the never-updated case maps to the
// lowest confidence.
func TestClassifyAt_ZeroTimestamp(t *testing.T) {
	v := ClassifyAt(time.Now(), time.Time{})
	if v.AgeBucket != BucketOld {
		t.Errorf("bucket = %s, want %s", v.AgeBucket, BucketOld)
	}
	if v.ConfidencePercent != 20 {
		t.Errorf("confidence = %d, want 20", v.ConfidencePercent)
	}
}

// TestClassifyAt_Monotonic verifies that for t1 < t2 <= now, the older
// timestamp never has higher confidence than the newer one.
func TestClassifyAt_Monotonic(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	ages := []time.Duration{
		0, time.Minute, 4 * time.Minute, 5 * time.Minute, 10 * time.Minute,
		29 * time.Minute, 30 * time.Minute, 45 * time.Minute, time.Hour,
		2 * time.Hour, 23 * time.Hour, 24 * time.Hour, 30 * 24 * time.Hour,
	}

	prev := 101
	for _, age := range ages {
		v := ClassifyAt(now, now.Add(-age))
		if v.ConfidencePercent > prev {
			t.Errorf("confidence at age %v = %d, exceeds %d at a younger age", age, v.ConfidencePercent, prev)
		}
		prev = v.ConfidencePercent
	}
}
