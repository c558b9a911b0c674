package tracelog

import "time"

// Clock supplies timestamps. Durations are computed with Time.Sub, which uses
// the monotonic reading carried by time.Now.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process clock
type SystemClock struct{}

// Now implements Clock
func (SystemClock) Now() time.Time {
	return time.Now()
}

// elapsedMs returns the non-negative duration between two instants in
// fractional milliseconds.
func elapsedMs(start, end time.Time) float64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
