// Package eventlog keeps the durable history of observed "became
// available" events per item: an in-memory log written by the pollers
// and a checkpoint store that persists snapshots of it.
package eventlog

import (
	"sync"
	"time"
)

// Snapshot maps item keys to their ordered availability timestamps.
type Snapshot map[string][]time.Time

// Log is the in-memory event log. Pollers append, the checkpointer
// snapshots; one mutex guards both so a snapshot never observes a
// partially appended sequence.
type Log struct {
	mu     sync.Mutex
	events map[string][]time.Time
}

func New() *Log {
	return &Log{events: map[string][]time.Time{}}
}

// NewFromSnapshot seeds the log from a loaded checkpoint.
func NewFromSnapshot(s Snapshot) *Log {
	l := New()
	for k, ts := range s {
		l.events[k] = append([]time.Time(nil), ts...)
	}
	return l
}

// EnsureItems creates empty sequences for items that have no history
// yet, so new items show up in checkpoints immediately.
func (l *Log) EnsureItems(keys []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		if _, ok := l.events[k]; !ok {
			l.events[k] = nil
		}
	}
}

// Record appends an availability event for the item.
func (l *Log) Record(itemKey string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[itemKey] = append(l.events[itemKey], at)
}

// Snapshot returns a deep copy of the current state.
func (l *Log) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(Snapshot, len(l.events))
	for k, ts := range l.events {
		out[k] = append([]time.Time(nil), ts...)
	}
	return out
}

// Count returns the number of recorded events for the item.
func (l *Log) Count(itemKey string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events[itemKey])
}
