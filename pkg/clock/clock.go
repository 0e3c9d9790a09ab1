// Package clock provides the wall clock used by the keeper loop
package clock

import "time"

// SystemClock reads and waits on real time. Tests substitute a fake with a tick channel.
type SystemClock struct{}

// After returns a channel that fires once d has elapsed
func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Now returns the current wall-clock time in UTC
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
