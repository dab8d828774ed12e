package correlate

import (
	"sync"
	"time"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

// FeedTTL is how long a snapshot counts as live. A bridge that stops
// publishing reads as disconnected, which short-circuits correlation to
// clearing stale references.
const FeedTTL = 10 * time.Second

// SnapshotFeed adapts push-style RF snapshots to the pull-style Feed the
// correlator sweeps against. Update runs on the bus callback goroutine, so
// access is mutex-guarded.
type SnapshotFeed struct {
	mu        sync.Mutex
	tracks    []types.RFTrack
	updatedAt time.Time
	now       func() time.Time
}

// NewSnapshotFeed creates an empty, disconnected feed.
func NewSnapshotFeed() *SnapshotFeed {
	return &SnapshotFeed{now: time.Now}
}

// SetClock overrides the time source, for tests.
func (f *SnapshotFeed) SetClock(now func() time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// Update replaces the held snapshot.
func (f *SnapshotFeed) Update(tracks []types.RFTrack) {
	f.mu.Lock()
	f.tracks = tracks
	f.updatedAt = f.now()
	f.mu.Unlock()
}

// Connected reports whether a snapshot arrived within FeedTTL.
func (f *SnapshotFeed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.updatedAt.IsZero() && f.now().Sub(f.updatedAt) <= FeedTTL
}

// Tracks returns a copy of the current snapshot.
func (f *SnapshotFeed) Tracks() []types.RFTrack {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.RFTrack, len(f.tracks))
	copy(out, f.tracks)
	return out
}
