// Package dedup suppresses track-creation storms caused by overlapping or
// duplicate sensors. It is only consulted for addresses without an existing
// track; known tracks always accept fresh updates.
package dedup

import "time"

// Window is the default suppression window for repeat sightings.
const Window = 3 * time.Second

// Filter is a short-time-window duplicate suppressor keyed by an arbitrary
// string, typically "mac:eventType". Not safe for concurrent use; the
// engine owns it on the single update path.
type Filter struct {
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

// New creates a Filter with the given suppression window.
func New(window time.Duration) *Filter {
	return &Filter{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (f *Filter) SetClock(now func() time.Time) {
	f.now = now
}

// IsDuplicate reports whether key was already seen within the suppression
// window. A first sighting records the current time and reports false. A
// repeat inside the window reports true without refreshing the stored time,
// so duplicates cannot extend suppression indefinitely.
func (f *Filter) IsDuplicate(key string) bool {
	now := f.now()
	if last, ok := f.seen[key]; ok && now.Sub(last) < f.window {
		return true
	}
	f.seen[key] = now
	return false
}

// Prune drops entries older than twice the window. Called opportunistically
// from the maintenance sweep.
func (f *Filter) Prune() {
	cutoff := f.now().Add(-2 * f.window)
	for key, at := range f.seen {
		if at.Before(cutoff) {
			delete(f.seen, key)
		}
	}
}

// Len returns the number of retained entries.
func (f *Filter) Len() int {
	return len(f.seen)
}
