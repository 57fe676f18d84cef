package shared

import "time"

// Clock supplies the current time. Services take it as a dependency so
// created/approved timestamps stay deterministic under test.
type Clock func() time.Time

// SystemClock returns the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock pinned to the given instant.
func FixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}
