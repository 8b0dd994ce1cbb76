package traffic

import (
	"testing"
	"time"
)

// TestErrorRate_Empty verifies that an untracked domain reports (0, 0).
func TestErrorRate_Empty(t *testing.T) {
	Reset()
	errors, total := ErrorRate("heatmap", 1*time.Minute)
	if errors != 0 || total != 0 {
		t.Errorf("ErrorRate() = (%d, %d), want (0, 0)", errors, total)
	}
}

// TestErrorRate_SuccessAndError verifies that ErrorRate correctly calculates
// error rate from recorded success and error outcomes.
func TestErrorRate_SuccessAndError(t *testing.T) {
	Reset()
	RecordSuccess("heatmap")
	RecordSuccess("heatmap")
	RecordError("heatmap")
	errors, total := ErrorRate("heatmap", 1*time.Minute)
	if errors != 1 || total != 3 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 3)", errors, total)
	}
}

// TestErrorRate_DomainsIsolated verifies one domain's outcomes never leak
// into another domain's rate.
func TestErrorRate_DomainsIsolated(t *testing.T) {
	Reset()
	RecordError("carbon")
	RecordSuccess("climate")
	errors, total := ErrorRate("climate", 1*time.Minute)
	if errors != 0 || total != 1 {
		t.Errorf("ErrorRate(climate) = (%d, %d), want (0, 1)", errors, total)
	}
	errors, total = ErrorRate("carbon", 1*time.Minute)
	if errors != 1 || total != 1 {
		t.Errorf("ErrorRate(carbon) = (%d, %d), want (1, 1)", errors, total)
	}
}

// TestErrorRate_DeniedExcluded verifies that rate-limit denials stay out of
// every domain's error rate.
func TestErrorRate_DeniedExcluded(t *testing.T) {
	Reset()
	RecordSuccess("air_quality")
	RecordDenied()
	RecordDenied()
	errors, total := ErrorRate("air_quality", 1*time.Minute)
	if errors != 0 || total != 1 {
		t.Errorf("ErrorRate() = (%d, %d), want (0, 1) - denied excluded", errors, total)
	}
	if n := DenialCount(1 * time.Minute); n != 2 {
		t.Errorf("DenialCount() = %d, want 2", n)
	}
}

// TestWorstErrorRate verifies the degraded verdict picks the worst domain.
func TestWorstErrorRate(t *testing.T) {
	Reset()
	RecordSuccess("heatmap")
	RecordSuccess("heatmap")
	RecordError("vegetation")
	RecordSuccess("vegetation")

	domain, rate := WorstErrorRate(1 * time.Minute)
	if domain != "vegetation" {
		t.Errorf("WorstErrorRate() domain = %q, want vegetation", domain)
	}
	if rate != 0.5 {
		t.Errorf("WorstErrorRate() rate = %v, want 0.5", rate)
	}
}

// TestWorstErrorRate_NoOutcomes verifies an empty tracker reports no domain.
func TestWorstErrorRate_NoOutcomes(t *testing.T) {
	Reset()
	domain, rate := WorstErrorRate(1 * time.Minute)
	if domain != "" || rate != 0 {
		t.Errorf("WorstErrorRate() = (%q, %v), want empty", domain, rate)
	}
}

// TestReset verifies that Reset clears all recorded outcomes.
func TestReset(t *testing.T) {
	Reset()
	RecordSuccess("heatmap")
	RecordError("heatmap")
	RecordDenied()
	Reset()
	errors, total := ErrorRate("heatmap", 1*time.Minute)
	if errors != 0 || total != 0 {
		t.Errorf("ErrorRate() = (%d, %d), want (0, 0)", errors, total)
	}
	if n := DenialCount(1 * time.Minute); n != 0 {
		t.Errorf("DenialCount() = %d, want 0", n)
	}
}
