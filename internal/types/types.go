package types

import (
	"strings"
	"time"
)

// EventType identifies the kind of 802.11 observation a detection record
// describes. Tier 0 scan results are normalized to beacons before they
// reach the engine.
type EventType string

const (
	EventBeacon        EventType = "beacon"
	EventProbeRequest  EventType = "probe_request"
	EventProbeResponse EventType = "probe_response"
	EventAssociation   EventType = "association"
	EventDeauth        EventType = "deauth"
	EventDeauthFlood   EventType = "deauth_flood"
	EventDataFrame     EventType = "data"
	EventHiddenAP      EventType = "hidden_ap"
	EventHeartbeat     EventType = "heartbeat"
	EventStatus        EventType = "status"
)

// Confidence is the ordered manufacturer-match confidence for a track.
// The ordering matters: merges only ever move a track upward.
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

// Max returns the higher of two confidence levels.
func (c Confidence) Max(other Confidence) Confidence {
	if other > c {
		return other
	}
	return c
}

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "none"
	}
}

// Tier identifies which input pipeline produced a detection. Tier 1
// (continuous event stream) outranks Tier 0 (periodic scan snapshots);
// a track's tier only ever upgrades.
type Tier int

const (
	TierScan   Tier = iota // periodic scan snapshots
	TierStream             // continuous sniffer event stream
)

// Max returns the higher-fidelity of two tiers.
func (t Tier) Max(other Tier) Tier {
	if other > t {
		return other
	}
	return t
}

func (t Tier) String() string {
	if t == TierStream {
		return "stream"
	}
	return "scan"
}

// Trend is the signal-strength movement derived from a track's rolling
// RSSI window.
type Trend string

const (
	TrendUnknown     Trend = "unknown"
	TrendApproaching Trend = "approaching"
	TrendDeparting   Trend = "departing"
	TrendStable      Trend = "stable"
)

// DetectionRecord is a single normalized observation handed to the engine
// by an ingestion adapter. It is consumed once and not retained.
type DetectionRecord struct {
	Type         EventType `json:"type"`
	MAC          string    `json:"mac"`
	DestMAC      string    `json:"dest_mac,omitempty"`
	SSID         string    `json:"ssid,omitempty"`
	RSSI         int       `json:"rssi,omitempty"`
	Channel      int       `json:"channel,omitempty"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	Tier         Tier      `json:"tier"`
	Unit         string    `json:"unit,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Track is the live record for one uniquely addressed radio believed to be
// a drone, keyed by normalized MAC.
type Track struct {
	MAC          string             `json:"mac"`
	SSID         string             `json:"ssid"`
	Manufacturer string             `json:"manufacturer"`
	Confidence   Confidence         `json:"confidence"`
	Tier         Tier               `json:"tier"`
	Channel      int                `json:"channel"`
	Band         string             `json:"band"`
	FirstSeen    time.Time          `json:"first_seen"`
	LastSeen     time.Time          `json:"last_seen"`
	RSSI         int                `json:"rssi"`
	RSSIHistory  []int              `json:"rssi_history"`
	Trend        Trend              `json:"trend"`
	EventTypes   map[EventType]bool `json:"event_types"`
	OperatorMAC  string             `json:"operator_mac,omitempty"`
	ActiveLink   bool               `json:"active_link"`
	DeauthCount  int                `json:"deauth_count"`
	Stale        bool               `json:"stale"`
}

// OperatorLink is an inferred association between a ground-control device
// address and a drone network name.
type OperatorLink struct {
	MAC          string    `json:"mac"`
	SSID         string    `json:"ssid"`
	Manufacturer string    `json:"manufacturer"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}

// MatchType tags how a cross-reference was established.
type MatchType string

const (
	MatchManufacturer MatchType = "manufacturer"
	MatchTemporal     MatchType = "temporal"
)

// CrossReference is a fused match between a WiFi track and an object from
// the external RF feed, keyed by track MAC.
type CrossReference struct {
	MAC        string     `json:"mac"`
	RFTrackID  string     `json:"rf_track_id"`
	RFType     string     `json:"rf_type"`
	MatchType  MatchType  `json:"match_type"`
	Score      int        `json:"score"`
	Confidence Confidence `json:"confidence"`
	Latitude   float64    `json:"latitude,omitempty"`
	Longitude  float64    `json:"longitude,omitempty"`
	MatchedAt  time.Time  `json:"matched_at"`
}

// RFTrack is one object reported by the external RF sensor feed.
type RFTrack struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	HasPosition  bool      `json:"has_position"`
	Latitude     float64   `json:"latitude,omitempty"`
	Longitude    float64   `json:"longitude,omitempty"`
	Trend        Trend     `json:"trend,omitempty"`
	LastUpdate   time.Time `json:"last_update"`
}

// LinkStatus is the connection state of one supervised unit.
type LinkStatus int

const (
	LinkDisconnected LinkStatus = iota
	LinkConnecting
	LinkConnected
)

func (s LinkStatus) String() string {
	switch s {
	case LinkConnecting:
		return "connecting"
	case LinkConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// LinkError is the structured guidance payload surfaced when a connection
// fails, throttled upstream so repeated failures do not storm consumers.
type LinkError struct {
	Kind        string    `json:"kind"`
	Message     string    `json:"message"`
	Remediation []string  `json:"remediation,omitempty"`
	Port        string    `json:"port,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ConnectionState is the externally visible state of one tier/unit link.
type ConnectionState struct {
	Unit          string     `json:"unit"`
	Tier          Tier       `json:"tier"`
	Status        LinkStatus `json:"status"`
	Attempts      int        `json:"attempts"`
	LastError     *LinkError `json:"last_error,omitempty"`
	LastHeartbeat time.Time  `json:"last_heartbeat,omitempty"`
}

// NormalizeMAC canonicalizes a hardware address for use as a registry key.
func NormalizeMAC(mac string) string {
	return strings.ToUpper(strings.TrimSpace(mac))
}

// BandForChannel classifies an 802.11 channel number into a band label.
func BandForChannel(channel int) string {
	switch {
	case channel >= 1 && channel <= 14:
		return "2.4GHz"
	case channel >= 32 && channel <= 177:
		return "5GHz"
	default:
		return "unknown"
	}
}
