package tracker

import (
	"fmt"
	"testing"
	"time"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/dedup"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

func newTestManager(clock *time.Time) *Manager {
	m := New(dedup.New(dedup.Window))
	m.SetClock(func() time.Time { return *clock })
	return m
}

func TestUpsertCreatesOnFingerprintMatch(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&clock)

	tr, created := m.Upsert("60:60:1F:AA:BB:CC", Update{
		Type:    types.EventBeacon,
		SSID:    "DJI_TEST01",
		RSSI:    -55,
		Channel: 6,
		Tier:    types.TierStream,
	})
	if !created || tr == nil {
		t.Fatal("Upsert() did not create track for recognized drone")
	}
	if tr.Manufacturer != "DJI" {
		t.Errorf("manufacturer = %s, want DJI", tr.Manufacturer)
	}
	if tr.Confidence != types.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", tr.Confidence)
	}
	if tr.Band != "2.4GHz" {
		t.Errorf("band = %s, want 2.4GHz", tr.Band)
	}
	if !tr.EventTypes[types.EventBeacon] {
		t.Error("beacon not recorded in observed event types")
	}
}

func TestUpsertDropsUnrecognized(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&clock)

	tr, created := m.Upsert("AA:BB:CC:DD:EE:FF", Update{
		Type: types.EventBeacon,
		SSID: "HomeRouter",
		RSSI: -40,
	})
	if created || tr != nil {
		t.Error("Upsert() created a track for an unrecognized radio")
	}
	if m.Len() != 0 {
		t.Errorf("registry has %d tracks, want 0", m.Len())
	}
}

func TestConfidenceNeverDecreases(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&clock)

	m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, SSID: "DJI_TEST01", RSSI: -50})
	tr := m.Get("60:60:1F:AA:BB:CC")
	if tr.Confidence != types.ConfidenceHigh {
		t.Fatalf("setup: confidence = %s, want high", tr.Confidence)
	}

	// Later updates with lower or no confidence must not downgrade.
	for _, c := range []types.Confidence{types.ConfidenceNone, types.ConfidenceLow, types.ConfidenceMedium} {
		clock = clock.Add(time.Second)
		m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, RSSI: -51, Confidence: c})
		if tr.Confidence != types.ConfidenceHigh {
			t.Errorf("confidence dropped to %s after update with %s", tr.Confidence, c)
		}
	}
}

func TestTierNeverRegresses(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&clock)

	m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, RSSI: -60, Tier: types.TierScan})
	tr := m.Get("60:60:1F:AA:BB:CC")
	if tr.Tier != types.TierScan {
		t.Fatalf("setup: tier = %s, want scan", tr.Tier)
	}

	clock = clock.Add(time.Second)
	m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, RSSI: -59, Tier: types.TierStream})
	if tr.Tier != types.TierStream {
		t.Errorf("tier = %s, want stream after corroboration", tr.Tier)
	}

	clock = clock.Add(time.Second)
	m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, RSSI: -58, Tier: types.TierScan})
	if tr.Tier != types.TierStream {
		t.Errorf("tier regressed to %s after scan-derived update", tr.Tier)
	}
}

func TestLastSeenMonotonic(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&clock)

	m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, RSSI: -60})
	tr := m.Get("60:60:1F:AA:BB:CC")
	seen := tr.LastSeen

	// A record carrying an older timestamp must not move lastSeen backward.
	m.Upsert("60:60:1F:AA:BB:CC", Update{
		Type:      types.EventBeacon,
		RSSI:      -61,
		Timestamp: seen.Add(-10 * time.Second),
	})
	if tr.LastSeen.Before(seen) {
		t.Errorf("lastSeen moved backward: %v -> %v", seen, tr.LastSeen)
	}
}

func TestSSIDSticky(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&clock)

	// Hidden AP first: empty name.
	m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventHiddenAP})
	tr := m.Get("60:60:1F:AA:BB:CC")
	if tr.SSID != "" {
		t.Fatalf("setup: ssid = %q, want empty", tr.SSID)
	}

	clock = clock.Add(time.Second)
	m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, SSID: "DJI_TEST01"})
	if tr.SSID != "DJI_TEST01" {
		t.Errorf("empty ssid not filled, got %q", tr.SSID)
	}

	clock = clock.Add(time.Second)
	m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, SSID: "DJI_RENAMED"})
	if tr.SSID != "DJI_TEST01" {
		t.Errorf("first-seen ssid was overwritten, got %q", tr.SSID)
	}
}

func TestTrendComputation(t *testing.T) {
	tests := []struct {
		name    string
		history []int
		want    types.Trend
	}{
		{"too few samples", []int{-80, -75, -70, -65, -60, -55, -50}, types.TrendUnknown},
		{"approaching", []int{-80, -80, -80, -80, -60, -60, -60, -60}, types.TrendApproaching},
		{"departing", []int{-50, -50, -50, -50, -75, -75, -75, -75}, types.TrendDeparting},
		{"stable", []int{-60, -62, -61, -60, -61, -60, -62, -61}, types.TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeTrend(tt.history); got != tt.want {
				t.Errorf("computeTrend(%v) = %s, want %s", tt.history, got, tt.want)
			}
		})
	}
}

func TestRSSIWindowBounded(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&clock)

	for i := 0; i < 25; i++ {
		clock = clock.Add(time.Second)
		m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, RSSI: -40 - i})
	}
	tr := m.Get("60:60:1F:AA:BB:CC")
	if len(tr.RSSIHistory) != rssiWindowCap {
		t.Errorf("history length = %d, want %d", len(tr.RSSIHistory), rssiWindowCap)
	}
	if tr.RSSIHistory[len(tr.RSSIHistory)-1] != -64 {
		t.Errorf("newest sample = %d, want -64", tr.RSSIHistory[len(tr.RSSIHistory)-1])
	}
}

func TestDedupGuardsCreationOnly(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&clock)

	u := Update{Type: types.EventBeacon, SSID: "DJI_TEST01", RSSI: -50}
	created := 0
	for i := 0; i < 2; i++ {
		if _, c := m.Upsert("60:60:1F:AA:BB:CC", u); c {
			created++
		}
	}
	if created != 1 {
		t.Errorf("duplicate records created %d tracks, want 1", created)
	}

	// Existing track: both identical records apply as updates.
	tr := m.Get("60:60:1F:AA:BB:CC")
	before := len(tr.RSSIHistory)
	m.Upsert("60:60:1F:AA:BB:CC", u)
	m.Upsert("60:60:1F:AA:BB:CC", u)
	if got := len(tr.RSSIHistory) - before; got != 2 {
		t.Errorf("existing track applied %d updates, want 2", got)
	}
}

func TestDeauthCounter(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&clock)

	m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, RSSI: -50})
	tr := m.Get("60:60:1F:AA:BB:CC")

	for i := 0; i < 3; i++ {
		clock = clock.Add(time.Second)
		m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventDeauth})
	}
	if tr.DeauthCount != 3 {
		t.Errorf("deauth count = %d, want 3", tr.DeauthCount)
	}

	clock = clock.Add(time.Second)
	m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, RSSI: -51})
	if tr.DeauthCount != 3 {
		t.Errorf("non-deauth update changed counter to %d", tr.DeauthCount)
	}
}

func TestStaleAndEviction(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&clock)

	m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, RSSI: -50, ActiveLink: true})
	tr := m.Get("60:60:1F:AA:BB:CC")

	clock = clock.Add(45 * time.Second)
	flagged := m.MarkStale(clock.Add(-30 * time.Second))
	if len(flagged) != 1 || !tr.Stale {
		t.Fatal("track past stale cutoff not flagged")
	}
	if tr.ActiveLink {
		t.Error("stale track kept its active control-link flag")
	}
	if m.Len() != 1 {
		t.Error("stale track was removed before max age")
	}

	// Second sweep does not re-flag.
	if again := m.MarkStale(clock.Add(-30 * time.Second)); len(again) != 0 {
		t.Errorf("MarkStale() re-flagged %d tracks", len(again))
	}

	// A fresh update clears staleness.
	m.Upsert("60:60:1F:AA:BB:CC", Update{Type: types.EventBeacon, RSSI: -52})
	if tr.Stale {
		t.Error("update did not clear stale flag")
	}

	clock = clock.Add(3 * time.Minute)
	expired := m.ExpireOlderThan(clock.Add(-2 * time.Minute))
	if len(expired) != 1 || expired[0].MAC != "60:60:1F:AA:BB:CC" {
		t.Fatalf("ExpireOlderThan() = %v, want the aged track", expired)
	}
	if m.Get("60:60:1F:AA:BB:CC") != nil {
		t.Error("evicted track still present in registry")
	}
}

func TestOperatorLifecycle(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&clock)

	op := m.UpsertOperator("AA:BB:CC:DD:EE:FF", "DJI_TEST01", "DJI")
	if op.FirstSeen != clock || op.LastSeen != clock {
		t.Error("operator timestamps not initialized")
	}

	clock = clock.Add(5 * time.Minute)
	m.UpsertOperator("AA:BB:CC:DD:EE:FF", "", "")
	if op.LastSeen != clock {
		t.Error("operator lastSeen not refreshed")
	}
	if op.SSID != "DJI_TEST01" {
		t.Error("empty refresh cleared operator ssid")
	}

	clock = clock.Add(15 * time.Minute)
	if pruned := m.PruneOperators(clock.Add(-10 * time.Minute)); len(pruned) != 1 {
		t.Errorf("PruneOperators() returned %d entries, want 1", len(pruned))
	}
	if m.Operator("AA:BB:CC:DD:EE:FF") != nil {
		t.Error("pruned operator still present")
	}
}

func TestManyDistinctTracks(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(&clock)

	for i := 0; i < 20; i++ {
		mac := fmt.Sprintf("60:60:1F:00:00:%02X", i)
		m.Upsert(mac, Update{Type: types.EventBeacon, RSSI: -60})
	}
	if m.Len() != 20 {
		t.Errorf("registry has %d tracks, want 20", m.Len())
	}
	if len(m.ListAll()) != 20 {
		t.Errorf("ListAll() returned %d tracks, want 20", len(m.ListAll()))
	}
}
