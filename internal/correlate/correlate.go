// Package correlate matches WiFi tracks against the external RF sensor
// feed and maintains the cross-reference table. Matching is additive
// scoring with a manufacturer-match floor: temporal agreement alone never
// produces a cross-reference.
package correlate

import (
	"strings"
	"time"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

const (
	// RecentWindow is the tight both-sides-fresh bonus window.
	RecentWindow = 30 * time.Second
	// CorrelationWindow is the loose temporal window.
	CorrelationWindow = 90 * time.Second
	// StaleThreshold drops cross-references whose WiFi track has gone
	// quiet, independent of track eviction.
	StaleThreshold = 60 * time.Second

	scoreManufacturer = 10
	scoreRecent       = 3
	scoreWindow       = 1
	scoreTrend        = 1
	scorePosition     = 2

	// AcceptScore is the minimum total; equal to the manufacturer bonus,
	// so a manufacturer match is a hard requirement.
	AcceptScore = 10
	highScore   = 13
	mediumScore = 11
)

// manufacturerAliases maps common name variants to the canonical label
// used by the fingerprint tables.
var manufacturerAliases = map[string]string{
	"dji":                    "DJI",
	"dji technology":         "DJI",
	"da-jiang innovations":   "DJI",
	"sz dji technology":      "DJI",
	"parrot":                 "Parrot",
	"parrot sa":              "Parrot",
	"parrot drones":          "Parrot",
	"skydio":                 "Skydio",
	"skydio inc":             "Skydio",
	"autel":                  "Autel Robotics",
	"autel robotics":         "Autel Robotics",
	"yuneec":                 "Yuneec",
	"yuneec international":   "Yuneec",
	"hubsan":                 "Hubsan",
	"powervision":            "PowerVision",
	"powervision technology": "PowerVision",
	"ehang":                  "EHang",
}

// Canonical normalizes a manufacturer name variant to its canonical label.
// Unknown names pass through trimmed.
func Canonical(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := manufacturerAliases[key]; ok {
		return canonical
	}
	return strings.TrimSpace(name)
}

// Feed is the external RF sensor collaborator.
type Feed interface {
	Connected() bool
	Tracks() []types.RFTrack
}

// Correlator owns the cross-reference table. Like the track registry it is
// only mutated from the engine's maintenance sweep.
type Correlator struct {
	refs map[string]*types.CrossReference
	now  func() time.Time
}

// New creates an empty Correlator.
func New() *Correlator {
	return &Correlator{
		refs: make(map[string]*types.CrossReference),
		now:  time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (c *Correlator) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns the cross-reference for a track address, or nil.
func (c *Correlator) Get(mac string) *types.CrossReference {
	return c.refs[types.NormalizeMAC(mac)]
}

// ListAll returns every current cross-reference.
func (c *Correlator) ListAll() []*types.CrossReference {
	out := make([]*types.CrossReference, 0, len(c.refs))
	for _, ref := range c.refs {
		out = append(out, ref)
	}
	return out
}

// Score rates one track/RF-object pair. Pairs below AcceptScore are never
// kept.
func (c *Correlator) Score(tr *types.Track, rf *types.RFTrack) (int, types.MatchType) {
	now := c.now()
	score := 0
	matchType := types.MatchTemporal

	if tr.Manufacturer != "" && rf.Manufacturer != "" &&
		Canonical(tr.Manufacturer) == Canonical(rf.Manufacturer) {
		score += scoreManufacturer
		matchType = types.MatchManufacturer
	}

	trackAge := now.Sub(tr.LastSeen)
	rfAge := now.Sub(rf.LastUpdate)
	switch {
	case trackAge <= RecentWindow && rfAge <= RecentWindow:
		score += scoreRecent
	case trackAge <= CorrelationWindow && rfAge <= CorrelationWindow:
		score += scoreWindow
	}

	if rf.Trend != "" && rf.Trend == tr.Trend &&
		(tr.Trend == types.TrendApproaching || tr.Trend == types.TrendDeparting) {
		score += scoreTrend
	}

	if rf.HasPosition {
		score += scorePosition
	}

	return score, matchType
}

// Sweep re-correlates the current track snapshot against the RF feed.
// Returns cross-references created or refreshed to a different RF object,
// and the addresses whose references were cleared. When the feed is down
// or empty the sweep short-circuits to clearing stale references.
func (c *Correlator) Sweep(tracks []*types.Track, feed Feed) (matched []*types.CrossReference, cleared []string) {
	now := c.now()

	var rfTracks []types.RFTrack
	if feed != nil && feed.Connected() {
		rfTracks = feed.Tracks()
	}

	live := make(map[string]*types.Track, len(tracks))
	for _, tr := range tracks {
		live[tr.MAC] = tr
	}
	rfByID := make(map[string]bool, len(rfTracks))
	for _, rf := range rfTracks {
		rfByID[rf.ID] = true
	}

	// Remove references whose track vanished, went quiet, or whose RF
	// counterpart disappeared from the feed.
	for mac, ref := range c.refs {
		tr, ok := live[mac]
		switch {
		case !ok:
			delete(c.refs, mac)
			cleared = append(cleared, mac)
		case now.Sub(tr.LastSeen) > StaleThreshold:
			delete(c.refs, mac)
			cleared = append(cleared, mac)
		case !rfByID[ref.RFTrackID]:
			delete(c.refs, mac)
			cleared = append(cleared, mac)
		}
	}

	if len(rfTracks) == 0 {
		return matched, cleared
	}

	for _, tr := range tracks {
		if now.Sub(tr.LastSeen) > StaleThreshold {
			continue
		}
		best := -1
		var bestRef *types.CrossReference
		for i := range rfTracks {
			rf := &rfTracks[i]
			score, matchType := c.Score(tr, rf)
			if score < AcceptScore || score <= best {
				continue
			}
			best = score
			bestRef = &types.CrossReference{
				MAC:        tr.MAC,
				RFTrackID:  rf.ID,
				RFType:     rf.Type,
				MatchType:  matchType,
				Score:      score,
				Confidence: bucketConfidence(score),
				Latitude:   rf.Latitude,
				Longitude:  rf.Longitude,
				MatchedAt:  now,
			}
		}
		if bestRef == nil {
			continue
		}
		prev := c.refs[tr.MAC]
		c.refs[tr.MAC] = bestRef
		if prev == nil || prev.RFTrackID != bestRef.RFTrackID {
			matched = append(matched, bestRef)
		}
	}

	return matched, cleared
}

func bucketConfidence(score int) types.Confidence {
	switch {
	case score >= highScore:
		return types.ConfidenceHigh
	case score >= mediumScore:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}
