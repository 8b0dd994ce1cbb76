package freshness

import (
	"fmt"
	"time"
)

// AgeBucket classifies how old a displayed value is relative to now. It is a
// presentation concern only: cache expiry decides when to refetch, never this.
type AgeBucket string

const (
	BucketFresh  AgeBucket = "fresh"  // under 5 minutes
	BucketRecent AgeBucket = "recent" // under 30 minutes
	BucketStale  AgeBucket = "stale"  // under 60 minutes
	BucketOld    AgeBucket = "old"    // 60 minutes or more
)

// Verdict is the derived freshness of one timestamp. Recomputed on every
// request, never stored.
type Verdict struct {
	AgeBucket         AgeBucket `json:"ageBucket"`
	ConfidencePercent int       `json:"confidencePercent"`
	DisplayLabel      string    `json:"displayLabel"`
}

// Classify maps a last-update timestamp to an age bucket, a confidence score,
// and a display label, using the current clock.
func Classify(ts time.Time) Verdict {
	return ClassifyAt(time.Now(), ts)
}

// ClassifyAt is Classify with an explicit clock. Pure and deterministic given
// now. Confidence is a non-increasing step function of age: 100/80/60/40/20.
func ClassifyAt(now, ts time.Time) Verdict {
	if ts.IsZero() {
		return Verdict{AgeBucket: BucketOld, ConfidencePercent: 20, DisplayLabel: "no data yet"}
	}

	age := now.Sub(ts)
	switch {
	case age < 5*time.Minute:
		return Verdict{AgeBucket: BucketFresh, ConfidencePercent: 100, DisplayLabel: "updated just now"}
	case age < 30*time.Minute:
		return Verdict{AgeBucket: BucketRecent, ConfidencePercent: 80, DisplayLabel: fmt.Sprintf("updated %d min ago", int(age.Minutes()))}
	case age < time.Hour:
		return Verdict{AgeBucket: BucketStale, ConfidencePercent: 60, DisplayLabel: fmt.Sprintf("updated %d min ago", int(age.Minutes()))}
	case age < 24*time.Hour:
		return Verdict{AgeBucket: BucketOld, ConfidencePercent: 40, DisplayLabel: fmt.Sprintf("updated %d h ago", int(age.Hours()))}
	default:
		return Verdict{AgeBucket: BucketOld, ConfidencePercent: 20, DisplayLabel: fmt.Sprintf("updated %d d ago", int(age.Hours()/24))}
	}
}
