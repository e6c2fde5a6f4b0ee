// Package throttle decides whether a notification for an
// (item, subscriber) pair may fire now, based on when the pair last
// fired and the subscriber's minimum re-notify interval.
package throttle

import (
	"sync"
	"time"
)

type pairKey struct {
	item string
	sub  string
}

// Engine tracks last-fired timestamps per (item, subscriber) pair.
//
// The fire decision and the timestamp update are one atomic step: two
// concurrent first-fire checks for the same pair can never both return
// true. State is in-memory only; a restart re-arms every pair, which is
// acceptable (the first notification after a restart is legitimate).
type Engine struct {
	mu        sync.Mutex
	lastFired map[pairKey]time.Time
}

func New() *Engine {
	return &Engine{lastFired: map[pairKey]time.Time{}}
}

// ShouldFire reports whether a notification may be sent now, and if so
// records now as the pair's last-fired time.
//
// Policy:
//   - never fired: fire (the first notification is always sent)
//   - interval == 0: notify-once, suppress everything after the first
//   - elapsed >= interval: fire
//   - otherwise: suppress
func (e *Engine) ShouldFire(itemKey, subKey string, interval time.Duration, now time.Time) bool {
	k := pairKey{item: itemKey, sub: subKey}

	e.mu.Lock()
	defer e.mu.Unlock()

	last, ok := e.lastFired[k]
	if ok {
		if interval <= 0 {
			return false
		}
		if now.Sub(last) < interval {
			return false
		}
	}
	e.lastFired[k] = now
	return true
}

// LastFired returns the recorded last-fired time for a pair, if any.
func (e *Engine) LastFired(itemKey, subKey string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.lastFired[pairKey{item: itemKey, sub: subKey}]
	return t, ok
}
