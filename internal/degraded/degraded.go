package degraded

import (
	"time"

	"github.com/kjstillabower/uv-weather-service/internal/traffic"
)

// RecordSuccess records an aggregation that returned a result.
func RecordSuccess() {
	traffic.RecordSuccess()
}

// RecordError records an aggregation that failed upstream (either stage, timeout, etc.).
func RecordError() {
	traffic.RecordError()
}

// ErrorRate returns (errorCount, totalCount) within the window. totalCount = successes + errors.
func ErrorRate(window time.Duration) (errors, total int) {
	return traffic.ErrorRate(window)
}

// IsDegraded reports whether the upstream error share within window reached thresholdPct.
// A non-positive window or threshold disables detection; an empty window is never degraded.
func IsDegraded(window time.Duration, thresholdPct int) bool {
	if window <= 0 || thresholdPct <= 0 {
		return false
	}
	errs, total := ErrorRate(window)
	if total == 0 {
		return false
	}
	return float64(errs)*100/float64(total) >= float64(thresholdPct)
}

// Reset clears all recorded data. For tests only.
func Reset() {
	traffic.Reset()
}
