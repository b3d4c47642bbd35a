package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze "today" via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for default prediction dates. Pass nil
// to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Today returns the current day-of-year according to the package clock.
func Today() int {
	return clock.Now().YearDay()
}

// Now returns the current time according to the package clock.
func Now() time.Time {
	return clock.Now()
}
