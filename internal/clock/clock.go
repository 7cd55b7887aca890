// Package clock lets the authority schedule bid-timer ticks against either
// wall time or a fake that tests drive by hand.
package clock

import "time"

type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer cancels a pending AfterFunc call.
type Timer interface {
	// Stop reports whether it prevented the call.
	Stop() bool
}

func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
