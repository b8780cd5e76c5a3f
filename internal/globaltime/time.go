// Package globaltime is the process clock. Persisted timestamps all go
// through UTC so job ledgers and audit entries compare across machines;
// tests pin the clock with SetFixed.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc func() time.Time = time.Now
)

// Now returns the current clock reading in the local zone.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

// UTC returns the current clock reading in UTC. Storage writes use this.
func UTC() time.Time {
	return Now().UTC()
}

// SetFixed pins the clock to a fixed instant until Reset is called.
func SetFixed(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
}

// Reset restores the real clock.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
