package ingest

import "testing"

const sampleIWOutput = `BSS 60:60:1f:aa:bb:cc(on wlan0) -- associated
	last seen: 123.456s [boottime]
	TSF: 0 usec
	freq: 2437.0
	beacon interval: 100 TUs
	signal: -55.00 dBm
	SSID: DJI_TEST01
BSS 11:22:33:44:55:66(on wlan0)
	freq: 5180.0
	signal: -82.00 dBm
	SSID: NeighborWifi
BSS aa:bb:cc:dd:ee:ff(on wlan0)
	freq: 2412.0
	signal: -70.50 dBm
`

func TestParseIWScan(t *testing.T) {
	results := parseIWScan(sampleIWOutput)
	if len(results) != 3 {
		t.Fatalf("parsed %d results, want 3", len(results))
	}

	first := results[0]
	if first.MAC != "60:60:1f:aa:bb:cc" {
		t.Errorf("MAC = %s, want 60:60:1f:aa:bb:cc", first.MAC)
	}
	if first.SSID != "DJI_TEST01" {
		t.Errorf("SSID = %s, want DJI_TEST01", first.SSID)
	}
	if first.Frequency != 2437 {
		t.Errorf("Frequency = %d, want 2437", first.Frequency)
	}
	if first.Signal != -55 {
		t.Errorf("Signal = %d, want -55", first.Signal)
	}

	if results[1].Frequency != 5180 {
		t.Errorf("Frequency = %d, want 5180", results[1].Frequency)
	}

	// Hidden network: no SSID line, still a usable result.
	if results[2].SSID != "" || results[2].MAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("hidden network parsed as %+v", results[2])
	}
}

func TestParseIWScanEmpty(t *testing.T) {
	if got := parseIWScan(""); len(got) != 0 {
		t.Errorf("parsed %d results from empty output, want 0", len(got))
	}
}
