package statemachine

import "time"

// Timer is a pending callback armed by a Clock.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the timer
	// already fired or was stopped.
	Stop() bool
}

// Clock schedules the delayed transitions of an actor. Tests substitute a
// manual clock to control time.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f on its own goroutine once d has elapsed. It must never
	// call f synchronously.
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Timer { //nolint:ireturn
	return time.AfterFunc(d, f)
}
