package correlate

import (
	"testing"
	"time"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

func TestSnapshotFeedConnected(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	feed := NewSnapshotFeed()
	feed.SetClock(func() time.Time { return now })

	if feed.Connected() {
		t.Error("empty feed should read disconnected")
	}

	feed.Update([]types.RFTrack{{ID: "rf-1", Type: "drone"}})
	if !feed.Connected() {
		t.Error("feed with a fresh snapshot should read connected")
	}
	if got := feed.Tracks(); len(got) != 1 || got[0].ID != "rf-1" {
		t.Errorf("Tracks() = %+v, want the held snapshot", got)
	}

	now = now.Add(FeedTTL + time.Second)
	if feed.Connected() {
		t.Error("feed past TTL should read disconnected")
	}
}

func TestSnapshotFeedTracksIsCopy(t *testing.T) {
	feed := NewSnapshotFeed()
	feed.Update([]types.RFTrack{{ID: "rf-1"}})

	got := feed.Tracks()
	got[0].ID = "mutated"
	if feed.Tracks()[0].ID != "rf-1" {
		t.Error("Tracks() must return a copy, not the held slice")
	}
}
