// Package stats tracks ingestion statistics for the detection engine.
package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

// Stats tracks record processing statistics. Counter updates are atomic so
// the periodic logger can read them from its own goroutine.
type Stats struct {
	TotalRecords    uint64
	DroppedRecords  uint64
	TracksCreated   uint64
	TracksUpdated   uint64
	TracksExpired   uint64
	OperatorLinks   uint64
	CrossReferences uint64
	DeauthFloods    uint64

	ActiveTracks uint64

	eventTypes map[types.EventType]uint64
	startedAt  time.Time
	mu         sync.RWMutex
}

// New creates a new Stats instance.
func New() *Stats {
	return &Stats{
		eventTypes: make(map[types.EventType]uint64),
		startedAt:  time.Now(),
	}
}

func (s *Stats) IncrementTotal()     { atomic.AddUint64(&s.TotalRecords, 1) }
func (s *Stats) IncrementDropped()   { atomic.AddUint64(&s.DroppedRecords, 1) }
func (s *Stats) IncrementCreated()   { atomic.AddUint64(&s.TracksCreated, 1) }
func (s *Stats) IncrementUpdated()   { atomic.AddUint64(&s.TracksUpdated, 1) }
func (s *Stats) IncrementOperators() { atomic.AddUint64(&s.OperatorLinks, 1) }
func (s *Stats) IncrementCrossRefs() { atomic.AddUint64(&s.CrossReferences, 1) }
func (s *Stats) IncrementFloods()    { atomic.AddUint64(&s.DeauthFloods, 1) }

func (s *Stats) AddExpired(n int) { atomic.AddUint64(&s.TracksExpired, uint64(n)) }

func (s *Stats) SetActiveTracks(n uint64) { atomic.StoreUint64(&s.ActiveTracks, n) }

// IncrementEventType counts one record of the given type.
func (s *Stats) IncrementEventType(t types.EventType) {
	s.mu.Lock()
	s.eventTypes[t]++
	s.mu.Unlock()
}

// EventTypeCount returns the count for one event type.
func (s *Stats) EventTypeCount(t types.EventType) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventTypes[t]
}

// String returns a formatted summary.
func (s *Stats) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf(
		"records=%d dropped=%d tracks=%d created=%d updated=%d expired=%d operators=%d crossrefs=%d floods=%d uptime=%s",
		atomic.LoadUint64(&s.TotalRecords),
		atomic.LoadUint64(&s.DroppedRecords),
		atomic.LoadUint64(&s.ActiveTracks),
		atomic.LoadUint64(&s.TracksCreated),
		atomic.LoadUint64(&s.TracksUpdated),
		atomic.LoadUint64(&s.TracksExpired),
		atomic.LoadUint64(&s.OperatorLinks),
		atomic.LoadUint64(&s.CrossReferences),
		atomic.LoadUint64(&s.DeauthFloods),
		time.Since(s.startedAt).Round(time.Second),
	)
}
