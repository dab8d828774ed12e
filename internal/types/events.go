package types

import "time"

// EventKind identifies an outbound engine event.
type EventKind string

const (
	EventKindNewTrack        EventKind = "track.new"
	EventKindTrackUpdated    EventKind = "track.updated"
	EventKindTrackExpired    EventKind = "track.expired"
	EventKindOperatorLinked  EventKind = "track.operator_linked"
	EventKindDeauthFlood     EventKind = "alert.deauth_flood"
	EventKindCrossRefNew     EventKind = "track.crossref_new"
	EventKindCrossRefCleared EventKind = "track.crossref_cleared"
	EventKindLinkError       EventKind = "link.error"
)

// Event is one outbound notification pushed by the engine. It carries only
// the fields a consumer needs, never internal registry structures.
type Event struct {
	ID           string     `json:"id"`
	Kind         EventKind  `json:"kind"`
	MAC          string     `json:"mac,omitempty"`
	SSID         string     `json:"ssid,omitempty"`
	Manufacturer string     `json:"manufacturer,omitempty"`
	Confidence   string     `json:"confidence,omitempty"`
	Tier         string     `json:"tier,omitempty"`
	RSSI         int        `json:"rssi,omitempty"`
	Channel      int        `json:"channel,omitempty"`
	Trend        string     `json:"trend,omitempty"`
	OperatorMAC  string     `json:"operator_mac,omitempty"`
	RFTrackID    string     `json:"rf_track_id,omitempty"`
	LinkError    *LinkError `json:"link_error,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}
