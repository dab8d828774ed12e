package ingest

import (
	"testing"
	"time"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

func TestParseLine(t *testing.T) {
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		line     string
		wantErr  bool
		wantType types.EventType
		wantMAC  string
	}{
		{
			name:     "beacon",
			line:     `{"type":"beacon","mac":"60:60:1f:aa:bb:cc","ssid":"DJI_TEST01","rssi":-55,"channel":6}`,
			wantType: types.EventBeacon,
			wantMAC:  "60:60:1F:AA:BB:CC",
		},
		{
			name:     "probe request with dest",
			line:     `{"type":"probe_request","mac":"aa:bb:cc:dd:ee:ff","ssid":"DJI_TEST01","rssi":-70}`,
			wantType: types.EventProbeRequest,
			wantMAC:  "AA:BB:CC:DD:EE:FF",
		},
		{
			name:     "heartbeat without address",
			line:     `{"type":"heartbeat"}`,
			wantType: types.EventHeartbeat,
		},
		{
			name:    "malformed json",
			line:    `{"type":"beacon",`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			line:    `{"type":"warp_drive","mac":"aa:bb:cc:dd:ee:ff"}`,
			wantErr: true,
		},
		{
			name:    "detection missing address",
			line:    `{"type":"beacon","ssid":"DJI_TEST01"}`,
			wantErr: true,
		},
		{
			name:    "firmware boot noise",
			line:    "ets Jul 29 2019 12:21:46",
			wantErr: true,
		},
		{
			name:    "blank line",
			line:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseLine(tt.line, "unit-0", ts)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLine() expected error, got %+v", rec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine() unexpected error: %v", err)
			}
			if rec.Type != tt.wantType {
				t.Errorf("type = %s, want %s", rec.Type, tt.wantType)
			}
			if rec.MAC != tt.wantMAC {
				t.Errorf("mac = %s, want %s", rec.MAC, tt.wantMAC)
			}
			if rec.Tier != types.TierStream {
				t.Errorf("tier = %s, want stream", rec.Tier)
			}
			if rec.Unit != "unit-0" {
				t.Errorf("unit = %s, want unit-0", rec.Unit)
			}
			if rec.Timestamp != ts {
				t.Errorf("timestamp = %v, want %v", rec.Timestamp, ts)
			}
		})
	}
}

func TestFrequencyToChannel(t *testing.T) {
	tests := []struct {
		mhz  int
		want int
	}{
		{2412, 1},
		{2437, 6},
		{2462, 11},
		{2484, 14},
		{5180, 36},
		{5745, 149},
		{900, 0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := FrequencyToChannel(tt.mhz); got != tt.want {
			t.Errorf("FrequencyToChannel(%d) = %d, want %d", tt.mhz, got, tt.want)
		}
	}
}

func TestNormalizeScan(t *testing.T) {
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	results := []ScanResult{
		{MAC: "60:60:1f:aa:bb:cc", SSID: "DJI_TEST01", Frequency: 2437, Signal: -62},
		{MAC: "", SSID: "ghost", Frequency: 2412, Signal: -80},
	}

	records := NormalizeScan(results, ts)
	if len(records) != 1 {
		t.Fatalf("NormalizeScan() returned %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Type != types.EventBeacon {
		t.Errorf("type = %s, want beacon", rec.Type)
	}
	if rec.Tier != types.TierScan {
		t.Errorf("tier = %s, want scan", rec.Tier)
	}
	if rec.Channel != 6 {
		t.Errorf("channel = %d, want 6", rec.Channel)
	}
	if rec.MAC != "60:60:1F:AA:BB:CC" {
		t.Errorf("mac = %s, want normalized", rec.MAC)
	}
}
