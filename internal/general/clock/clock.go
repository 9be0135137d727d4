// Package clock provides the production Clock and Scheduler used by the
// phase controller. Both are thin wrappers over the time package; tests
// substitute manual implementations of the same ports.
package clock

import (
	"time"

	"ride-dispatch/internal/ports"
)

// System is the wall clock.
type System struct{}

// NewSystem returns the production clock.
func NewSystem() ports.Clock { return System{} }

// Now returns the current UTC time.
func (System) Now() time.Time { return time.Now().UTC() }

// Timers schedules callbacks with time.AfterFunc. Handles live only in
// memory; losing one is tolerated because recovery re-derives timers from
// the store.
type Timers struct{}

// NewTimers returns the production scheduler.
func NewTimers() ports.Scheduler { return Timers{} }

// Schedule runs fn after d on its own goroutine and returns a cancel func.
func (Timers) Schedule(d time.Duration, fn func()) (cancel func()) {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
