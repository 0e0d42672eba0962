package warehouse

import "time"

// IsWithinThresholdPeriod reports whether t happened no longer than
// threshold ago. A zero t is never within the window.
func IsWithinThresholdPeriod(t time.Time, threshold time.Duration) bool {
	if t.IsZero() {
		return false
	}
	if t.After(time.Now()) {
		return false
	}
	return time.Since(t) <= threshold
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(t time.Time, threshold time.Duration) bool {
	return !IsWithinThresholdPeriod(t, threshold)
}
