// Package ratelimit implements the fixed-window admission control applied to
// /ask callers. State lives in process memory only and is keyed by the hashed
// client identity.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired windows are dropped.
const DefaultSweepInterval = 5 * time.Minute

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetIn is the number of whole seconds until the current window closes.
	ResetIn int
}

// Limiter decides admission for a raw client address.
type Limiter interface {
	Check(address string) Decision
}

// KeyFunc maps a raw address to the store key.
type KeyFunc func(address string) string

// Entry is the per-identity window state.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Window configures a fixed window.
type Window struct {
	MaxRequests int
	Duration    time.Duration
}

// FixedWindow is a mutex-guarded in-memory fixed-window limiter.
type FixedWindow struct {
	Window Window
	Key    KeyFunc
	Clock  func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry
}

// NewFixedWindow creates a limiter. key is usually identity.Hasher.Hash.
func NewFixedWindow(window Window, key KeyFunc) *FixedWindow {
	return &FixedWindow{
		Window:  window,
		Key:     key,
		entries: make(map[string]*Entry),
	}
}

// Check counts one request for address and reports whether it is admitted.
// Rejected requests still count.
func (l *FixedWindow) Check(address string) Decision {
	key := address
	if l.Key != nil {
		key = l.Key(address)
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.entries == nil {
		l.entries = make(map[string]*Entry)
	}

	entry, ok := l.entries[key]
	if !ok || entry.ResetAt.Before(now) {
		entry = &Entry{ResetAt: now.Add(l.Window.Duration)}
		l.entries[key] = entry
	}
	entry.Count++

	remaining := l.Window.MaxRequests - entry.Count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   entry.Count <= l.Window.MaxRequests,
		Limit:     l.Window.MaxRequests,
		Remaining: remaining,
		ResetIn:   int(math.Ceil(entry.ResetAt.Sub(now).Seconds())),
	}
}

// Sweep removes every entry whose window has already closed and returns the
// number removed. Active windows are untouched.
func (l *FixedWindow) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, entry := range l.entries {
		if entry.ResetAt.Before(now) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked identities.
func (l *FixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run sweeps every interval until ctx is done. onSweep, when set, receives
// the removed and remaining entry counts after each pass.
func (l *FixedWindow) Run(ctx context.Context, interval time.Duration, onSweep func(removed, remaining int)) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := l.Sweep()
			if onSweep != nil {
				onSweep(removed, l.Len())
			}
		}
	}
}

func (l *FixedWindow) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now()
}
