// Package testutils holds shared helpers for the test suites.
package testutils

import (
	"context"
	"fmt"
	"time"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

// MockBeacon creates a beacon detection record for testing.
func MockBeacon(mac, ssid string, rssi int) *types.DetectionRecord {
	return &types.DetectionRecord{
		Type:      types.EventBeacon,
		MAC:       types.NormalizeMAC(mac),
		SSID:      ssid,
		RSSI:      rssi,
		Channel:   6,
		Tier:      types.TierStream,
		Unit:      "test-unit",
		Timestamp: time.Now().UTC(),
	}
}

// MockRecord creates a detection record of an arbitrary type for testing.
func MockRecord(eventType types.EventType, mac string) *types.DetectionRecord {
	return &types.DetectionRecord{
		Type:      eventType,
		MAC:       types.NormalizeMAC(mac),
		Tier:      types.TierStream,
		Unit:      "test-unit",
		Timestamp: time.Now().UTC(),
	}
}

// WaitForCondition waits for a condition to be true with timeout.
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
