// Package ingest normalizes the two detection input shapes, the Tier 1
// newline-delimited sniffer stream and Tier 0 scan snapshots, into
// detection records for the engine.
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

var validEventTypes = map[types.EventType]bool{
	types.EventBeacon:        true,
	types.EventProbeRequest:  true,
	types.EventProbeResponse: true,
	types.EventAssociation:   true,
	types.EventDeauth:        true,
	types.EventDeauthFlood:   true,
	types.EventDataFrame:     true,
	types.EventHiddenAP:      true,
	types.EventHeartbeat:     true,
	types.EventStatus:        true,
}

// ParseLine parses one Tier 1 stream line into a detection record. Lines
// are JSON objects with a "type" discriminator; anything that fails to
// parse, carries an unknown type, or (for detection types) lacks an address
// is an error the caller drops silently.
func ParseLine(line string, unit string, timestamp time.Time) (*types.DetectionRecord, error) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "{") {
		return nil, fmt.Errorf("not a record line")
	}

	var rec types.DetectionRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	if !validEventTypes[rec.Type] {
		return nil, fmt.Errorf("unknown record type %q", rec.Type)
	}
	if rec.MAC == "" && rec.Type != types.EventHeartbeat && rec.Type != types.EventStatus {
		return nil, fmt.Errorf("record type %q missing address", rec.Type)
	}

	rec.MAC = types.NormalizeMAC(rec.MAC)
	rec.DestMAC = types.NormalizeMAC(rec.DestMAC)
	rec.Tier = types.TierStream
	rec.Unit = unit
	if rec.Timestamp.IsZero() {
		rec.Timestamp = timestamp
	}
	return &rec, nil
}

// ScanResult is one entry from a Tier 0 scan batch as delivered by the
// platform's WiFi scanning source.
type ScanResult struct {
	MAC       string `json:"mac"`
	SSID      string `json:"ssid"`
	Frequency int    `json:"frequency"` // MHz
	Signal    int    `json:"signal"`    // dBm
}

// FrequencyToChannel converts a WiFi center frequency in MHz to a channel
// number. Returns 0 for frequencies outside the 2.4/5 GHz bands.
func FrequencyToChannel(mhz int) int {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz <= 2472:
		return (mhz - 2407) / 5
	case mhz >= 5160 && mhz <= 5885:
		return (mhz - 5000) / 5
	default:
		return 0
	}
}

// NormalizeScan converts a Tier 0 scan batch into beacon-equivalent
// detection records. Scan results carry no event type of their own; each is
// upserted exactly as a beacon would be, with the tier fixed to
// scan-derived.
func NormalizeScan(results []ScanResult, timestamp time.Time) []*types.DetectionRecord {
	records := make([]*types.DetectionRecord, 0, len(results))
	for _, r := range results {
		if r.MAC == "" {
			continue
		}
		records = append(records, &types.DetectionRecord{
			Type:      types.EventBeacon,
			MAC:       types.NormalizeMAC(r.MAC),
			SSID:      r.SSID,
			RSSI:      r.Signal,
			Channel:   FrequencyToChannel(r.Frequency),
			Tier:      types.TierScan,
			Timestamp: timestamp,
		})
	}
	return records
}
