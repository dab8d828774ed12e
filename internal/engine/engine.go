// Package engine is the detection and track fusion core. One goroutine
// owns every mutable registry (tracks, operator links, cross-references)
// and applies records, maintenance, and correlation sequentially, so the
// rolling signal windows and counters never see torn updates.
package engine

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/correlate"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/fingerprint"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/history"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/stats"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/tracker"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

const (
	// DefaultStaleInterval flags a quiet track as stale; it stays listed
	// (dimmed by consumers) until DefaultMaxAge evicts it.
	DefaultStaleInterval = 30 * time.Second
	DefaultMaxAge        = 2 * time.Minute
	DefaultSweepInterval = 5 * time.Second

	// DefaultOperatorIdle prunes operator links long after track eviction
	// would have fired; controllers probe far less often than drones
	// beacon.
	DefaultOperatorIdle = 10 * time.Minute

	// DefaultFloodCooldown gates repeat deauth-flood alerts per address.
	DefaultFloodCooldown = 60 * time.Second

	// historyTrimChance makes the retention trim an occasional sweep
	// side-effect rather than a per-sweep query.
	historyTrimChance = 0.02
)

// HistoryStore is the optional append-only audit collaborator.
type HistoryStore interface {
	AppendDetection(rec *types.DetectionRecord) error
	Trim(maxRows int) (int64, error)
}

// StateMirror is the optional live-state mirror collaborator.
type StateMirror interface {
	StoreTrack(ctx context.Context, tr *types.Track) error
	DeleteTrack(ctx context.Context, mac string) error
	StoreOperator(ctx context.Context, op *types.OperatorLink) error
	DeleteOperator(ctx context.Context, mac string) error
}

// Options configures an Engine. Zero values fall back to defaults; nil
// collaborators become no-ops.
type Options struct {
	StaleInterval  time.Duration
	MaxAge         time.Duration
	SweepInterval  time.Duration
	OperatorIdle   time.Duration
	FloodCooldown  time.Duration
	AlertNewTracks bool

	History HistoryStore
	Mirror  StateMirror
	RFFeed  correlate.Feed
}

// Engine fuses the two detection streams into the track registry and
// pushes outbound events for its consumers.
type Engine struct {
	opts       Options
	tracks     *tracker.Manager
	correlator *correlate.Correlator
	stats      *stats.Stats

	events      chan *types.Event
	floodAlerts map[string]time.Time

	now func() time.Time
}

// New creates an Engine around an existing track manager.
func New(tracks *tracker.Manager, opts Options) *Engine {
	if opts.StaleInterval <= 0 {
		opts.StaleInterval = DefaultStaleInterval
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.OperatorIdle <= 0 {
		opts.OperatorIdle = DefaultOperatorIdle
	}
	if opts.FloodCooldown <= 0 {
		opts.FloodCooldown = DefaultFloodCooldown
	}
	return &Engine{
		opts:        opts,
		tracks:      tracks,
		correlator:  correlate.New(),
		stats:       stats.New(),
		events:      make(chan *types.Event, 256),
		floodAlerts: make(map[string]time.Time),
		now:         time.Now,
	}
}

// SetClock overrides the time source for the engine and everything it
// owns, for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.tracks.SetClock(now)
	e.correlator.SetClock(now)
}

// Events returns the outbound event channel.
func (e *Engine) Events() <-chan *types.Event {
	return e.events
}

// Tracks exposes the track registry for read-side consumers.
func (e *Engine) Tracks() *tracker.Manager {
	return e.tracks
}

// CrossReferences returns the current cross-reference table.
func (e *Engine) CrossReferences() []*types.CrossReference {
	return e.correlator.ListAll()
}

// Stats returns the ingestion statistics.
func (e *Engine) Stats() *stats.Stats {
	return e.stats
}

// Run consumes records and link errors until the context is canceled. Each
// delivered record is applied sequentially against the registry; the
// maintenance ticker shares the same loop, so no two mutations ever race.
func (e *Engine) Run(ctx context.Context, records <-chan *types.DetectionRecord, linkErrs <-chan *types.LinkError) {
	sweep := time.NewTicker(e.opts.SweepInterval)
	defer sweep.Stop()
	statsLog := time.NewTicker(1 * time.Minute)
	defer statsLog.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			e.ProcessRecord(rec)
		case linkErr, ok := <-linkErrs:
			if !ok {
				linkErrs = nil
				continue
			}
			e.emit(&types.Event{
				Kind:      types.EventKindLinkError,
				LinkError: linkErr,
				Timestamp: linkErr.Timestamp,
			})
		case <-sweep.C:
			e.Sweep()
		case <-statsLog.C:
			log.Printf("Statistics: %s", e.stats)
		}
	}
}

// ProcessRecord applies one detection record. Records that fail
// fingerprinting or arrive malformed are counted and dropped; nothing here
// returns an error because no single bad record may stop ingestion.
func (e *Engine) ProcessRecord(rec *types.DetectionRecord) {
	if rec == nil || rec.Type == "" {
		return
	}
	e.stats.IncrementTotal()
	e.stats.IncrementEventType(rec.Type)

	var applied bool
	switch rec.Type {
	case types.EventBeacon, types.EventProbeResponse:
		applied = e.handleBeacon(rec)
	case types.EventProbeRequest:
		applied = e.handleProbeRequest(rec)
	case types.EventAssociation:
		applied = e.handleAssociation(rec)
	case types.EventDeauth:
		applied = e.handleDeauth(rec)
	case types.EventDeauthFlood:
		applied = e.handleDeauthFlood(rec)
	case types.EventDataFrame:
		applied = e.handleDataFrame(rec)
	case types.EventHiddenAP:
		applied = e.handleHiddenAP(rec)
	default:
		// heartbeat/status never reach the engine; anything else is noise
	}

	if !applied {
		e.stats.IncrementDropped()
		return
	}

	e.stats.SetActiveTracks(uint64(e.tracks.Len()))
	if e.opts.History != nil {
		if err := e.opts.History.AppendDetection(rec); err != nil {
			log.Printf("Warning: failed to append detection to history: %v", err)
		}
	}
}

func (e *Engine) handleBeacon(rec *types.DetectionRecord) bool {
	tr, created := e.tracks.Upsert(rec.MAC, tracker.Update{
		Type:         rec.Type,
		SSID:         rec.SSID,
		RSSI:         rec.RSSI,
		Channel:      rec.Channel,
		Tier:         rec.Tier,
		Manufacturer: rec.Manufacturer,
		Timestamp:    rec.Timestamp,
	})
	if tr == nil {
		return false
	}
	e.afterUpsert(tr, created)
	return true
}

func (e *Engine) handleHiddenAP(rec *types.DetectionRecord) bool {
	tr, created := e.tracks.Upsert(rec.MAC, tracker.Update{
		Type:      types.EventHiddenAP,
		RSSI:      rec.RSSI,
		Channel:   rec.Channel,
		Tier:      rec.Tier,
		Timestamp: rec.Timestamp,
	})
	if tr == nil {
		return false
	}
	e.afterUpsert(tr, created)
	return true
}

// handleProbeRequest correlates a probing client with the network name it
// asks for. Probe+beacon agreement is the strongest signal available, so a
// successful link forces the track to high confidence.
func (e *Engine) handleProbeRequest(rec *types.DetectionRecord) bool {
	if rec.SSID == "" {
		return false
	}

	tr := e.tracks.GetBySSID(rec.SSID)
	mfr, known := fingerprint.BySSID(rec.SSID)
	if tr == nil && !known {
		return false
	}
	if tr != nil && tr.Manufacturer != "" {
		mfr = tr.Manufacturer
	}

	op := e.tracks.UpsertOperator(rec.MAC, rec.SSID, mfr)
	e.stats.IncrementOperators()
	e.mirrorOperator(op)

	if tr != nil && tr.OperatorMAC == "" {
		e.tracks.Upsert(tr.MAC, tracker.Update{
			Type:        types.EventProbeRequest,
			OperatorMAC: rec.MAC,
			Timestamp:   rec.Timestamp,
		})
		e.tracks.RaiseConfidence(tr.MAC, types.ConfidenceHigh)
		e.mirrorTrack(tr)
		e.emit(&types.Event{
			Kind:         types.EventKindOperatorLinked,
			MAC:          tr.MAC,
			SSID:         tr.SSID,
			Manufacturer: tr.Manufacturer,
			Confidence:   tr.Confidence.String(),
			OperatorMAC:  types.NormalizeMAC(rec.MAC),
			Timestamp:    rec.Timestamp,
		})
	}
	return true
}

func (e *Engine) handleAssociation(rec *types.DetectionRecord) bool {
	tr := e.tracks.Get(rec.DestMAC)
	if tr == nil {
		return false
	}
	e.tracks.Upsert(tr.MAC, tracker.Update{
		Type:        types.EventAssociation,
		OperatorMAC: rec.MAC,
		ActiveLink:  true,
		Timestamp:   rec.Timestamp,
	})
	op := e.tracks.UpsertOperator(rec.MAC, tr.SSID, tr.Manufacturer)
	e.stats.IncrementOperators()
	e.mirrorOperator(op)
	e.afterUpsert(tr, false)
	return true
}

func (e *Engine) handleDeauth(rec *types.DetectionRecord) bool {
	tr := e.tracks.Get(rec.MAC)
	if tr == nil {
		tr = e.tracks.Get(rec.DestMAC)
	}
	if tr == nil {
		return false
	}
	e.tracks.Upsert(tr.MAC, tracker.Update{
		Type:      types.EventDeauth,
		Timestamp: rec.Timestamp,
	})
	e.afterUpsert(tr, false)
	return true
}

// handleDeauthFlood gates the alert per target address so a sustained
// flood produces one notification per cooldown, not one per frame.
func (e *Engine) handleDeauthFlood(rec *types.DetectionRecord) bool {
	now := e.now()
	if last, ok := e.floodAlerts[rec.MAC]; ok && now.Sub(last) < e.opts.FloodCooldown {
		return true
	}
	e.floodAlerts[rec.MAC] = now
	e.stats.IncrementFloods()
	e.emit(&types.Event{
		Kind:      types.EventKindDeauthFlood,
		MAC:       rec.MAC,
		Timestamp: rec.Timestamp,
	})
	return true
}

func (e *Engine) handleDataFrame(rec *types.DetectionRecord) bool {
	tr := e.tracks.Get(rec.MAC)
	other := rec.DestMAC
	if tr == nil {
		tr = e.tracks.Get(rec.DestMAC)
		other = rec.MAC
	}
	if tr == nil {
		return false
	}

	update := tracker.Update{
		Type:       types.EventDataFrame,
		ActiveLink: true,
		Timestamp:  rec.Timestamp,
	}
	if tr.OperatorMAC == "" && other != "" {
		update.OperatorMAC = other
		op := e.tracks.UpsertOperator(other, tr.SSID, tr.Manufacturer)
		e.stats.IncrementOperators()
		e.mirrorOperator(op)
	}
	e.tracks.Upsert(tr.MAC, update)
	e.afterUpsert(tr, false)
	return true
}

// afterUpsert mirrors the track and emits the create/update event.
func (e *Engine) afterUpsert(tr *types.Track, created bool) {
	e.mirrorTrack(tr)
	if created {
		e.stats.IncrementCreated()
		if e.opts.AlertNewTracks {
			e.emit(e.trackEvent(types.EventKindNewTrack, tr))
		}
		return
	}
	e.stats.IncrementUpdated()
	e.emit(e.trackEvent(types.EventKindTrackUpdated, tr))
}

// Sweep runs one maintenance pass: eviction, staleness, pruning,
// correlation, and the occasional history trim.
func (e *Engine) Sweep() {
	now := e.now()

	for _, tr := range e.tracks.ExpireOlderThan(now.Add(-e.opts.MaxAge)) {
		e.stats.AddExpired(1)
		if e.opts.Mirror != nil {
			if err := e.opts.Mirror.DeleteTrack(context.Background(), tr.MAC); err != nil {
				log.Printf("Warning: failed to remove track from mirror: %v", err)
			}
		}
		e.emit(e.trackEvent(types.EventKindTrackExpired, tr))
	}

	for _, tr := range e.tracks.MarkStale(now.Add(-e.opts.StaleInterval)) {
		e.mirrorTrack(tr)
	}

	for _, op := range e.tracks.PruneOperators(now.Add(-e.opts.OperatorIdle)) {
		if e.opts.Mirror != nil {
			if err := e.opts.Mirror.DeleteOperator(context.Background(), op.MAC); err != nil {
				log.Printf("Warning: failed to remove operator from mirror: %v", err)
			}
		}
	}

	// Expired cooldown entries would re-alert anyway; dropping them keeps
	// the table bounded against floods that rotate spoofed addresses.
	for mac, at := range e.floodAlerts {
		if now.Sub(at) >= e.opts.FloodCooldown {
			delete(e.floodAlerts, mac)
		}
	}

	e.tracks.PruneDedup()
	e.stats.SetActiveTracks(uint64(e.tracks.Len()))

	matched, cleared := e.correlator.Sweep(e.tracks.ListAll(), e.opts.RFFeed)
	for _, ref := range matched {
		e.stats.IncrementCrossRefs()
		e.emit(&types.Event{
			Kind:       types.EventKindCrossRefNew,
			MAC:        ref.MAC,
			RFTrackID:  ref.RFTrackID,
			Confidence: ref.Confidence.String(),
			Timestamp:  now,
		})
	}
	for _, mac := range cleared {
		e.emit(&types.Event{
			Kind:      types.EventKindCrossRefCleared,
			MAC:       mac,
			Timestamp: now,
		})
	}

	if e.opts.History != nil && rand.Float64() < historyTrimChance {
		if deleted, err := e.opts.History.Trim(history.DefaultMaxRows); err != nil {
			log.Printf("Warning: history trim failed: %v", err)
		} else if deleted > 0 {
			log.Printf("History trimmed %d records", deleted)
		}
	}
}

func (e *Engine) trackEvent(kind types.EventKind, tr *types.Track) *types.Event {
	return &types.Event{
		ID:           uuid.New().String(),
		Kind:         kind,
		MAC:          tr.MAC,
		SSID:         tr.SSID,
		Manufacturer: tr.Manufacturer,
		Confidence:   tr.Confidence.String(),
		Tier:         tr.Tier.String(),
		RSSI:         tr.RSSI,
		Channel:      tr.Channel,
		Trend:        string(tr.Trend),
		OperatorMAC:  tr.OperatorMAC,
		Timestamp:    e.now(),
	}
}

// emit pushes an event without ever blocking the update path. A full
// buffer drops the event with a warning; consumers that need a complete
// feed read the bus, not this channel.
func (e *Engine) emit(ev *types.Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	select {
	case e.events <- ev:
	default:
		log.Printf("Warning: event buffer full, dropping %s for %s", ev.Kind, ev.MAC)
	}
}

func (e *Engine) mirrorTrack(tr *types.Track) {
	if e.opts.Mirror == nil {
		return
	}
	if err := e.opts.Mirror.StoreTrack(context.Background(), tr); err != nil {
		log.Printf("Warning: failed to mirror track: %v", err)
	}
}

func (e *Engine) mirrorOperator(op *types.OperatorLink) {
	if e.opts.Mirror == nil {
		return
	}
	if err := e.opts.Mirror.StoreOperator(context.Background(), op); err != nil {
		log.Printf("Warning: failed to mirror operator link: %v", err)
	}
}
