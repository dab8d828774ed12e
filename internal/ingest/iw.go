package ingest

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// IWScanner polls the platform WiFi scan facility through `iw dev <iface>
// scan`. It needs CAP_NET_ADMIN or root, which the sentry daemon already
// holds for the sniffer units.
type IWScanner struct {
	Iface string
}

// Scan runs one scan and parses the BSS list.
func (s *IWScanner) Scan(ctx context.Context) ([]ScanResult, error) {
	out, err := exec.CommandContext(ctx, "iw", "dev", s.Iface, "scan").Output()
	if err != nil {
		return nil, fmt.Errorf("iw scan on %s failed: %w", s.Iface, err)
	}
	return parseIWScan(string(out)), nil
}

// parseIWScan extracts one ScanResult per BSS block. Fields iw does not
// report stay zero; NormalizeScan tolerates that.
func parseIWScan(out string) []ScanResult {
	var results []ScanResult
	var cur *ScanResult

	flush := func() {
		if cur != nil && cur.MAC != "" {
			results = append(results, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "BSS "):
			flush()
			mac := strings.TrimPrefix(line, "BSS ")
			if i := strings.IndexAny(mac, "( "); i >= 0 {
				mac = mac[:i]
			}
			cur = &ScanResult{MAC: mac}
		case cur == nil:
			continue
		case strings.HasPrefix(trimmed, "freq: "):
			if f, err := strconv.ParseFloat(strings.TrimPrefix(trimmed, "freq: "), 64); err == nil {
				cur.Frequency = int(f)
			}
		case strings.HasPrefix(trimmed, "signal: "):
			field := strings.TrimSuffix(strings.TrimPrefix(trimmed, "signal: "), " dBm")
			if sig, err := strconv.ParseFloat(field, 64); err == nil {
				cur.Signal = int(sig)
			}
		case strings.HasPrefix(trimmed, "SSID: "):
			cur.SSID = strings.TrimPrefix(trimmed, "SSID: ")
		}
	}
	flush()
	return results
}
