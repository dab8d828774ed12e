package livestate

import (
	"context"
	"strings"
	"testing"
	"time"

	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := rediscontainer.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get Redis connection string: %v", err)
	}
	return strings.TrimPrefix(url, "redis://")
}

func TestClient_Integration_TrackRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client, err := New(startRedis(t))
	if err != nil {
		t.Fatalf("Failed to create live-state client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	tr := &types.Track{
		MAC:          "60:60:1F:AA:BB:CC",
		SSID:         "DJI_TEST01",
		Manufacturer: "DJI",
		Confidence:   types.ConfidenceHigh,
		Tier:         types.TierStream,
		FirstSeen:    time.Now().UTC(),
		LastSeen:     time.Now().UTC(),
	}
	if err := client.StoreTrack(ctx, tr); err != nil {
		t.Fatalf("StoreTrack() failed: %v", err)
	}

	got, err := client.GetTrack(ctx, tr.MAC)
	if err != nil {
		t.Fatalf("GetTrack() failed: %v", err)
	}
	if got == nil || got.SSID != tr.SSID || got.Manufacturer != tr.Manufacturer {
		t.Errorf("GetTrack() = %+v, want stored track", got)
	}

	if err := client.DeleteTrack(ctx, tr.MAC); err != nil {
		t.Fatalf("DeleteTrack() failed: %v", err)
	}
	got, err = client.GetTrack(ctx, tr.MAC)
	if err != nil {
		t.Fatalf("GetTrack() after delete failed: %v", err)
	}
	if got != nil {
		t.Error("track still present after delete")
	}
}

func TestClient_Integration_OperatorRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client, err := New(startRedis(t))
	if err != nil {
		t.Fatalf("Failed to create live-state client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	op := &types.OperatorLink{
		MAC:          "AA:BB:CC:DD:EE:FF",
		SSID:         "DJI_TEST01",
		Manufacturer: "DJI",
		FirstSeen:    time.Now().UTC(),
		LastSeen:     time.Now().UTC(),
	}
	if err := client.StoreOperator(ctx, op); err != nil {
		t.Fatalf("StoreOperator() failed: %v", err)
	}
	if err := client.DeleteOperator(ctx, op.MAC); err != nil {
		t.Fatalf("DeleteOperator() failed: %v", err)
	}
}
