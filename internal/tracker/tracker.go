// Package tracker owns the live registry of detected drone radios and their
// inferred ground-control operators. All mutation happens on the engine's
// single update path, so the registry needs no locking by construction.
package tracker

import (
	"time"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/dedup"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/fingerprint"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

const (
	// rssiWindowCap bounds the rolling signal history per track.
	rssiWindowCap = 10
	// trendSamples is how many samples each side of the trend comparison
	// uses; trend stays unknown until 2*trendSamples have been seen.
	trendSamples = 4
	// trendThreshold is the dBm delta between window means that counts as
	// movement. Deliberately coarse: RSSI at these rates is noisy and
	// anything smarter than a windowed mean buys little.
	trendThreshold = 5.0
)

// Update carries the fields of one detection applied to a track. Zero
// values mean "not present" (RSSI is dBm and always negative in practice).
type Update struct {
	Type         types.EventType
	SSID         string
	RSSI         int
	Channel      int
	Tier         types.Tier
	Manufacturer string
	Confidence   types.Confidence
	OperatorMAC  string
	ActiveLink   bool
	Timestamp    time.Time
}

// Manager is the track registry. Creation consults the fingerprint tables
// through the dedup filter; updates apply the targeted merge rules.
type Manager struct {
	tracks    map[string]*types.Track
	operators map[string]*types.OperatorLink
	dedup     *dedup.Filter
	now       func() time.Time
}

// New creates a Manager backed by the given dedup filter.
func New(filter *dedup.Filter) *Manager {
	return &Manager{
		tracks:    make(map[string]*types.Track),
		operators: make(map[string]*types.OperatorLink),
		dedup:     filter,
		now:       time.Now,
	}
}

// SetClock overrides the time source, for tests. The dedup filter shares it.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
	if m.dedup != nil {
		m.dedup.SetClock(now)
	}
}

// Get returns the track for a normalized address, or nil.
func (m *Manager) Get(mac string) *types.Track {
	return m.tracks[types.NormalizeMAC(mac)]
}

// GetBySSID returns the first track broadcasting the given name, or nil.
func (m *Manager) GetBySSID(ssid string) *types.Track {
	if ssid == "" {
		return nil
	}
	for _, tr := range m.tracks {
		if tr.SSID == ssid {
			return tr
		}
	}
	return nil
}

// ListAll returns every active track.
func (m *Manager) ListAll() []*types.Track {
	out := make([]*types.Track, 0, len(m.tracks))
	for _, tr := range m.tracks {
		out = append(out, tr)
	}
	return out
}

// Len returns the number of active tracks.
func (m *Manager) Len() int {
	return len(m.tracks)
}

// Upsert creates or updates the track for u's address. For a new address it
// first runs the dedup filter (existing tracks bypass it entirely), then
// requires a fingerprint match unless the update already carries a
// manufacturer. Returns the track and whether it was created; (nil, false)
// means the record was dropped.
func (m *Manager) Upsert(mac string, u Update) (*types.Track, bool) {
	mac = types.NormalizeMAC(mac)
	if mac == "" {
		return nil, false
	}
	ts := u.Timestamp
	if ts.IsZero() {
		ts = m.now()
	}

	tr, exists := m.tracks[mac]
	if !exists {
		// Dedup guards creation only: overlapping sensors replaying the
		// same frame must not spawn duplicate side effects.
		if m.dedup != nil && m.dedup.IsDuplicate(mac+":"+string(u.Type)) {
			return nil, false
		}
		if u.Manufacturer == "" {
			match := fingerprint.Identify(mac, u.SSID)
			if match == nil {
				return nil, false
			}
			u.Manufacturer = match.Manufacturer
			u.Confidence = u.Confidence.Max(match.Confidence)
		}
		tr = &types.Track{
			MAC:        mac,
			Tier:       u.Tier,
			FirstSeen:  ts,
			Trend:      types.TrendUnknown,
			EventTypes: make(map[types.EventType]bool),
		}
		m.tracks[mac] = tr
		m.merge(tr, u, ts)
		return tr, true
	}

	m.merge(tr, u, ts)
	return tr, false
}

// merge applies the targeted update rules from one detection.
func (m *Manager) merge(tr *types.Track, u Update, ts time.Time) {
	if tr.SSID == "" && u.SSID != "" {
		tr.SSID = u.SSID
	}
	if tr.Manufacturer == "" && u.Manufacturer != "" {
		tr.Manufacturer = u.Manufacturer
	}
	tr.Confidence = tr.Confidence.Max(u.Confidence)
	tr.Tier = tr.Tier.Max(u.Tier)
	if u.Channel != 0 {
		tr.Channel = u.Channel
		tr.Band = types.BandForChannel(u.Channel)
	}
	if u.RSSI != 0 {
		tr.RSSI = u.RSSI
		tr.RSSIHistory = append(tr.RSSIHistory, u.RSSI)
		if len(tr.RSSIHistory) > rssiWindowCap {
			tr.RSSIHistory = tr.RSSIHistory[len(tr.RSSIHistory)-rssiWindowCap:]
		}
		tr.Trend = computeTrend(tr.RSSIHistory)
	}
	if u.Type != "" {
		tr.EventTypes[u.Type] = true
		if u.Type == types.EventDeauth {
			tr.DeauthCount++
		}
	}
	if u.OperatorMAC != "" {
		tr.OperatorMAC = types.NormalizeMAC(u.OperatorMAC)
	}
	if u.ActiveLink {
		tr.ActiveLink = true
	}
	tr.Stale = false
	if ts.After(tr.LastSeen) {
		tr.LastSeen = ts
	}
}

// RaiseConfidence bumps a track's confidence if the new level outranks the
// current one. Used by probe/beacon correlation, the strongest signal the
// engine has.
func (m *Manager) RaiseConfidence(mac string, c types.Confidence) {
	if tr := m.Get(mac); tr != nil {
		tr.Confidence = tr.Confidence.Max(c)
	}
}

// computeTrend compares the mean of the newest trendSamples against the
// mean of the preceding trendSamples.
func computeTrend(history []int) types.Trend {
	if len(history) < 2*trendSamples {
		return types.TrendUnknown
	}
	recent := mean(history[len(history)-trendSamples:])
	previous := mean(history[len(history)-2*trendSamples : len(history)-trendSamples])
	switch {
	case recent-previous > trendThreshold:
		return types.TrendApproaching
	case previous-recent > trendThreshold:
		return types.TrendDeparting
	default:
		return types.TrendStable
	}
}

func mean(samples []int) float64 {
	sum := 0
	for _, s := range samples {
		sum += s
	}
	return float64(sum) / float64(len(samples))
}

// MarkStale flags tracks not updated since cutoff and clears their active
// control-link flag (a stale track cannot have a live session). Returns the
// tracks newly flagged.
func (m *Manager) MarkStale(cutoff time.Time) []*types.Track {
	var flagged []*types.Track
	for _, tr := range m.tracks {
		if !tr.Stale && tr.LastSeen.Before(cutoff) {
			tr.Stale = true
			tr.ActiveLink = false
			flagged = append(flagged, tr)
		}
	}
	return flagged
}

// ExpireOlderThan removes tracks whose last update predates cutoff and
// returns them so the engine can fire expired notifications.
func (m *Manager) ExpireOlderThan(cutoff time.Time) []*types.Track {
	var expired []*types.Track
	for mac, tr := range m.tracks {
		if tr.LastSeen.Before(cutoff) {
			delete(m.tracks, mac)
			expired = append(expired, tr)
		}
	}
	return expired
}

// UpsertOperator records or refreshes a suspected ground-control device.
func (m *Manager) UpsertOperator(mac, ssid, manufacturer string) *types.OperatorLink {
	mac = types.NormalizeMAC(mac)
	ts := m.now()
	op, ok := m.operators[mac]
	if !ok {
		op = &types.OperatorLink{MAC: mac, FirstSeen: ts}
		m.operators[mac] = op
	}
	if ssid != "" {
		op.SSID = ssid
	}
	if manufacturer != "" {
		op.Manufacturer = manufacturer
	}
	if ts.After(op.LastSeen) {
		op.LastSeen = ts
	}
	return op
}

// Operator returns the operator entry for an address, or nil.
func (m *Manager) Operator(mac string) *types.OperatorLink {
	return m.operators[types.NormalizeMAC(mac)]
}

// Operators returns every known operator link.
func (m *Manager) Operators() []*types.OperatorLink {
	out := make([]*types.OperatorLink, 0, len(m.operators))
	for _, op := range m.operators {
		out = append(out, op)
	}
	return out
}

// PruneOperators drops and returns operator entries idle since before
// cutoff. Operator pruning is independent of track eviction.
func (m *Manager) PruneOperators(cutoff time.Time) []*types.OperatorLink {
	var pruned []*types.OperatorLink
	for mac, op := range m.operators {
		if op.LastSeen.Before(cutoff) {
			delete(m.operators, mac)
			pruned = append(pruned, op)
		}
	}
	return pruned
}

// PruneDedup drops aged dedup entries. Called from the maintenance sweep.
func (m *Manager) PruneDedup() {
	if m.dedup != nil {
		m.dedup.Prune()
	}
}
