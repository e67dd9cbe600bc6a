// timemock is a thin wrapper over stdlib/time package that overloads a few
// functions to allow time manipulation in tests.
package timemock

import (
	"sync"
	"time"
)

var (
	mu    sync.RWMutex
	now   = time.Now
	after = time.After
)

// Now returns the current time, or the frozen time in tests.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return now()
}

// After waits for d, or not at all when time is skipped in tests.
func After(d time.Duration) <-chan time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return after(d)
}

// Sleep blocks for d using After.
func Sleep(d time.Duration) {
	<-After(d)
}

// SkipWaits makes every After fire immediately.
// The returned function restores the real clock.
func SkipWaits() func() {
	mu.Lock()
	defer mu.Unlock()
	after = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- now()
		return ch
	}
	return reset
}

// Freeze pins Now to at. Waits still take real time.
// The returned function restores the real clock.
func Freeze(at time.Time) func() {
	mu.Lock()
	defer mu.Unlock()
	now = func() time.Time { return at }
	return reset
}

func reset() {
	mu.Lock()
	defer mu.Unlock()
	now = time.Now
	after = time.After
}
